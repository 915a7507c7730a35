package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type exchange struct {
	query  string
	answer string
}

// Manager keeps per-session conversation history in memory, bounded to
// maxHistory exchanges. Sessions live only as long as the process.
type Manager struct {
	mu         sync.RWMutex
	maxHistory int
	sessions   map[string][]exchange
}

func NewManager(maxHistory int) *Manager {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &Manager{
		maxHistory: maxHistory,
		sessions:   make(map[string][]exchange),
	}
}

func (m *Manager) Create() string {
	id := uuid.New().String()
	m.mu.Lock()
	m.sessions[id] = nil
	m.mu.Unlock()
	return id
}

// AddExchange records one query/answer pair, dropping the oldest exchanges
// beyond the history bound. Unknown session ids are created implicitly.
func (m *Manager) AddExchange(sessionID, query, answer string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.sessions[sessionID], exchange{query: query, answer: answer})
	if len(history) > m.maxHistory {
		history = history[len(history)-m.maxHistory:]
	}
	m.sessions[sessionID] = history
}

// History renders the session transcript, oldest first.
func (m *Manager) History(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.sessions[sessionID]
	lines := make([]string, 0, len(history))
	for _, e := range history {
		lines = append(lines, fmt.Sprintf("User: %s\nAssistant: %s", e.query, e.answer))
	}
	return strings.Join(lines, "\n")
}

func (m *Manager) Clear(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}
