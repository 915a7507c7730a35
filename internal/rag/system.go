package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/danskfisk/ragchatbot/internal/common/models"
	"github.com/danskfisk/ragchatbot/internal/ingest"
	"github.com/danskfisk/ragchatbot/internal/session"
	"github.com/danskfisk/ragchatbot/internal/tools"
	"github.com/danskfisk/ragchatbot/pkg/logger"
)

// Store is the slice of the vector store the façade needs.
type Store interface {
	AddCourseMetadata(ctx context.Context, course *models.Course) error
	AddCourseContent(ctx context.Context, chunks []models.CourseChunk) error
	ExistingCourseTitles(ctx context.Context) ([]string, error)
	ClearAll(ctx context.Context) error
}

type Generator interface {
	GenerateResponse(ctx context.Context, query, history string, manager *tools.Manager) (string, error)
}

// System composes the document processor, vector store, tools, generator
// and session manager into the query and ingest entrypoints.
type System struct {
	processor *ingest.Processor
	store     Store
	tools     *tools.Manager
	gen       Generator
	sessions  *session.Manager
	redis     *redis.Client
}

func NewSystem(processor *ingest.Processor, store Store, manager *tools.Manager, gen Generator, sessions *session.Manager, redisClient *redis.Client) *System {
	return &System{
		processor: processor,
		store:     store,
		tools:     manager,
		gen:       gen,
		sessions:  sessions,
		redis:     redisClient,
	}
}

const answerCacheTTL = 60 * time.Second

type cachedAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func cacheKey(query, history string) string {
	h := sha256.Sum256([]byte(query + "\x00" + history))
	return "rag:answer:" + hex.EncodeToString(h[:8])
}

// Query answers one user question, optionally inside a session. Returns
// the answer together with the sources the search tools touched.
func (s *System) Query(ctx context.Context, query, sessionID string) (string, []string, error) {
	prompt := fmt.Sprintf("Answer this question about course materials: %s", query)
	history := ""
	if s.sessions != nil {
		history = s.sessions.History(sessionID)
	}

	ckey := cacheKey(query, history)
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, ckey).Result(); err == nil && val != "" {
			var cached cachedAnswer
			if err := sonic.Unmarshal([]byte(val), &cached); err == nil {
				logger.Info(ctx, "answer cache hit", "key", ckey)
				s.record(sessionID, query, cached.Answer)
				return cached.Answer, cached.Sources, nil
			}
		}
	}

	answer, err := s.gen.GenerateResponse(ctx, prompt, history, s.tools)
	if err != nil {
		return "", nil, err
	}

	sources := s.tools.LastSources()
	s.tools.ResetSources()
	s.record(sessionID, query, answer)

	if s.redis != nil {
		if payload, err := sonic.Marshal(cachedAnswer{Answer: answer, Sources: sources}); err == nil {
			_ = s.redis.Set(ctx, ckey, payload, answerCacheTTL).Err()
		}
	}

	return answer, sources, nil
}

func (s *System) record(sessionID, query, answer string) {
	if s.sessions != nil && sessionID != "" {
		s.sessions.AddExchange(sessionID, query, answer)
	}
}

// AddCourseDocument parses and indexes one course document.
func (s *System) AddCourseDocument(ctx context.Context, path string) (*models.Course, int, error) {
	course, chunks, err := s.processor.ProcessFile(path)
	if err != nil {
		return nil, 0, err
	}
	if err := s.store.AddCourseMetadata(ctx, course); err != nil {
		return nil, 0, err
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return nil, 0, err
	}
	return course, len(chunks), nil
}

var docExtensions = map[string]bool{".txt": true, ".pdf": true, ".docx": true}

// AddCourseFolder indexes every course document in a folder, skipping
// titles that are already cataloged. Per-file failures are logged and
// skipped. Returns the number of courses and chunks added.
func (s *System) AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	if clearExisting {
		logger.Info(ctx, "clearing existing data for rebuild")
		if err := s.store.ClearAll(ctx); err != nil {
			return 0, 0, err
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read docs folder: %w", err)
	}

	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, err
	}
	existing := make(map[string]bool, len(titles))
	for _, t := range titles {
		existing[t] = true
	}

	courses, totalChunks := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !docExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		filePath := filepath.Join(path, entry.Name())
		course, chunks, err := s.processor.ProcessFile(filePath)
		if err != nil {
			logger.Warn(ctx, "skipping unreadable document", "file", entry.Name(), "error", err.Error())
			continue
		}
		if existing[course.Title] {
			continue
		}
		if err := s.store.AddCourseMetadata(ctx, course); err != nil {
			logger.Warn(ctx, "failed to catalog course", "file", entry.Name(), "error", err.Error())
			continue
		}
		if err := s.store.AddCourseContent(ctx, chunks); err != nil {
			logger.Warn(ctx, "failed to index course content", "file", entry.Name(), "error", err.Error())
			continue
		}
		existing[course.Title] = true
		courses++
		totalChunks += len(chunks)
		logger.Info(ctx, "indexed course document", "file", entry.Name(), "title", course.Title, "chunks", len(chunks))
	}

	return courses, totalChunks, nil
}

// Analytics reports the catalog size and titles.
func (s *System) Analytics(ctx context.Context) (*models.CourseAnalytics, error) {
	titles, err := s.store.ExistingCourseTitles(ctx)
	if err != nil {
		return nil, err
	}
	return &models.CourseAnalytics{
		TotalCourses: len(titles),
		CourseTitles: titles,
	}, nil
}
