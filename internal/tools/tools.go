package tools

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/danskfisk/ragchatbot/pkg/logger"
)

// Tool is one model-invocable operation. Execute returns a plain string in
// all cases; failures are reported as text so the model can react to them.
type Tool interface {
	Name() string
	Definition() *schema.ToolInfo
	Execute(ctx context.Context, args map[string]interface{}) string
}

// SourceTracker is implemented by tools that record which documents backed
// their last answer.
type SourceTracker interface {
	LastSources() []string
	ResetSources()
}

// Manager dispatches tool calls by name and aggregates source tracking.
type Manager struct {
	tools map[string]Tool
	order []string
}

func NewManager(ts ...Tool) *Manager {
	m := &Manager{tools: make(map[string]Tool)}
	for _, t := range ts {
		m.Register(t)
	}
	return m
}

func (m *Manager) Register(t Tool) {
	if _, exists := m.tools[t.Name()]; !exists {
		m.order = append(m.order, t.Name())
	}
	m.tools[t.Name()] = t
}

func (m *Manager) Definitions() []*schema.ToolInfo {
	defs := make([]*schema.ToolInfo, 0, len(m.order))
	for _, name := range m.order {
		defs = append(defs, m.tools[name].Definition())
	}
	return defs
}

// Execute decodes the model-supplied JSON arguments and runs the named
// tool. Unknown tools and bad arguments come back as strings, never
// errors.
func (m *Manager) Execute(ctx context.Context, name, argsJSON string) string {
	t, ok := m.tools[name]
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name)
	}
	args := map[string]interface{}{}
	if argsJSON != "" {
		if err := sonic.Unmarshal([]byte(argsJSON), &args); err != nil {
			return fmt.Sprintf("Invalid arguments for tool '%s': %v", name, err)
		}
	}
	logger.Debug(ctx, "executing tool", "tool", name)
	return t.Execute(ctx, args)
}

// LastSources returns the sources recorded by the most recently productive
// tracking tool.
func (m *Manager) LastSources() []string {
	for _, name := range m.order {
		if tracker, ok := m.tools[name].(SourceTracker); ok {
			if sources := tracker.LastSources(); len(sources) > 0 {
				return sources
			}
		}
	}
	return []string{}
}

func (m *Manager) ResetSources() {
	for _, name := range m.order {
		if tracker, ok := m.tools[name].(SourceTracker); ok {
			tracker.ResetSources()
		}
	}
}

// toInt normalizes the numeric types a decoded JSON argument or stored
// metadata value may carry.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
