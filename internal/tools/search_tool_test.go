package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/danskfisk/ragchatbot/internal/common/models"
)

type fakeSearcher struct {
	results *models.SearchResults
	err     error

	gotQuery  string
	gotCourse string
	gotLesson *int
}

func (f *fakeSearcher) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (*models.SearchResults, error) {
	f.gotQuery = query
	f.gotCourse = courseName
	f.gotLesson = lessonNumber
	return f.results, f.err
}

func intPtr(n int) *int { return &n }

func TestSearchToolDefinition(t *testing.T) {
	tool := NewCourseSearchTool(&fakeSearcher{})
	def := tool.Definition()
	if def.Name != "search_course_content" {
		t.Fatalf("name = %q", def.Name)
	}
	if def.ParamsOneOf == nil {
		t.Fatalf("missing params schema")
	}
}

func TestSearchToolFormatsResults(t *testing.T) {
	store := &fakeSearcher{results: &models.SearchResults{
		Documents: []string{"chunk one", "chunk two"},
		Metadata: []map[string]interface{}{
			{"course_title": "Introduction to Python", "lesson_number": 1, "chunk_index": 0},
			{"course_title": "Introduction to Python", "chunk_index": 5},
		},
		Distances: []float32{0.9, 0.7},
	}}
	tool := NewCourseSearchTool(store)

	out := tool.Execute(context.Background(), map[string]interface{}{
		"query":         "what is python",
		"course_name":   "Python",
		"lesson_number": float64(1),
	})

	if store.gotQuery != "what is python" || store.gotCourse != "Python" {
		t.Fatalf("store got query=%q course=%q", store.gotQuery, store.gotCourse)
	}
	if store.gotLesson == nil || *store.gotLesson != 1 {
		t.Fatalf("store got lesson=%v", store.gotLesson)
	}
	if !strings.Contains(out, "[Introduction to Python - Lesson 1]\nchunk one") {
		t.Fatalf("missing lesson-tagged block:\n%s", out)
	}
	if !strings.Contains(out, "[Introduction to Python]\nchunk two") {
		t.Fatalf("missing untagged block:\n%s", out)
	}

	sources := tool.LastSources()
	if len(sources) != 2 {
		t.Fatalf("sources = %v", sources)
	}
	if sources[0] != "Introduction to Python - Lesson 1" || sources[1] != "Introduction to Python" {
		t.Fatalf("sources = %v", sources)
	}

	tool.ResetSources()
	if len(tool.LastSources()) != 0 {
		t.Fatalf("sources not reset")
	}
}

func TestSearchToolEmptyResults(t *testing.T) {
	store := &fakeSearcher{results: &models.SearchResults{
		Documents: []string{}, Metadata: []map[string]interface{}{}, Distances: []float32{},
	}}
	tool := NewCourseSearchTool(store)

	out := tool.Execute(context.Background(), map[string]interface{}{
		"query":         "anything",
		"course_name":   "Python",
		"lesson_number": float64(2),
	})
	want := "No relevant content found in course 'Python' in lesson 2."
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
}

func TestSearchToolDomainError(t *testing.T) {
	store := &fakeSearcher{results: models.EmptyResults("No course found matching 'Nonexistent'")}
	tool := NewCourseSearchTool(store)

	out := tool.Execute(context.Background(), map[string]interface{}{"query": "q", "course_name": "Nonexistent"})
	if out != "No course found matching 'Nonexistent'" {
		t.Fatalf("out = %q", out)
	}
}

func TestSearchToolStoreError(t *testing.T) {
	store := &fakeSearcher{err: errors.New("milvus connection failed")}
	tool := NewCourseSearchTool(store)

	out := tool.Execute(context.Background(), map[string]interface{}{"query": "q"})
	if out != "milvus connection failed" {
		t.Fatalf("out = %q", out)
	}
}

func TestSearchToolMissingQuery(t *testing.T) {
	tool := NewCourseSearchTool(&fakeSearcher{})
	out := tool.Execute(context.Background(), map[string]interface{}{})
	if !strings.Contains(out, "'query'") {
		t.Fatalf("out = %q", out)
	}
}

func TestManagerDispatch(t *testing.T) {
	store := &fakeSearcher{results: &models.SearchResults{
		Documents: []string{"doc"},
		Metadata:  []map[string]interface{}{{"course_title": "C", "lesson_number": 2}},
		Distances: []float32{0.5},
	}}
	m := NewManager(NewCourseSearchTool(store))

	defs := m.Definitions()
	if len(defs) != 1 || defs[0].Name != "search_course_content" {
		t.Fatalf("definitions = %+v", defs)
	}

	out := m.Execute(context.Background(), "search_course_content", `{"query":"hello"}`)
	if !strings.Contains(out, "[C - Lesson 2]") {
		t.Fatalf("out = %q", out)
	}
	if store.gotQuery != "hello" {
		t.Fatalf("query = %q", store.gotQuery)
	}

	sources := m.LastSources()
	if len(sources) != 1 || sources[0] != "C - Lesson 2" {
		t.Fatalf("sources = %v", sources)
	}
	m.ResetSources()
	if len(m.LastSources()) != 0 {
		t.Fatalf("sources not reset")
	}
}

func TestManagerUnknownTool(t *testing.T) {
	m := NewManager()
	out := m.Execute(context.Background(), "nope", "{}")
	if out != "Tool 'nope' not found" {
		t.Fatalf("out = %q", out)
	}
}

func TestManagerBadArguments(t *testing.T) {
	m := NewManager(NewCourseSearchTool(&fakeSearcher{}))
	out := m.Execute(context.Background(), "search_course_content", `{not json`)
	if !strings.Contains(out, "Invalid arguments") {
		t.Fatalf("out = %q", out)
	}
}
