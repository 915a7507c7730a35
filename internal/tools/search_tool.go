package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/danskfisk/ragchatbot/internal/common/models"
)

// Searcher is the slice of the vector store the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (*models.SearchResults, error)
}

// CourseSearchTool searches course content with optional course and lesson
// filtering. It remembers the sources behind its last result set so the
// API can surface them alongside the answer.
type CourseSearchTool struct {
	store       Searcher
	lastSources []string
}

func NewCourseSearchTool(store Searcher) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

func (t *CourseSearchTool) Name() string {
	return "search_course_content"
}

func (t *CourseSearchTool) Definition() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Search course materials with smart course name matching and lesson filtering",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "What to search for in the course content",
				Required: true,
			},
			"course_name": {
				Type: schema.String,
				Desc: "Course title (partial matches supported, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": {
				Type: schema.Integer,
				Desc: "Specific lesson number to search within (e.g. 1, 2, 3)",
			},
		}),
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, args map[string]interface{}) string {
	query, _ := args["query"].(string)
	if query == "" {
		return "Tool argument 'query' is required"
	}
	courseName, _ := args["course_name"].(string)
	var lessonNumber *int
	if raw, ok := args["lesson_number"]; ok {
		if n, ok := toInt(raw); ok {
			lessonNumber = &n
		}
	}

	results, err := t.store.Search(ctx, query, courseName, lessonNumber, 0)
	if err != nil {
		return err.Error()
	}
	if results.Err != "" {
		return results.Err
	}
	if results.IsEmpty() {
		filterInfo := ""
		if courseName != "" {
			filterInfo += fmt.Sprintf(" in course '%s'", courseName)
		}
		if lessonNumber != nil {
			filterInfo += fmt.Sprintf(" in lesson %d", *lessonNumber)
		}
		return fmt.Sprintf("No relevant content found%s.", filterInfo)
	}

	return t.format(results)
}

func (t *CourseSearchTool) format(results *models.SearchResults) string {
	blocks := make([]string, 0, len(results.Documents))
	sources := make([]string, 0, len(results.Documents))

	for i, doc := range results.Documents {
		meta := results.Metadata[i]
		title, _ := meta["course_title"].(string)
		if title == "" {
			title = "unknown"
		}

		header := title
		source := title
		if raw, ok := meta["lesson_number"]; ok {
			if n, ok := toInt(raw); ok {
				header = fmt.Sprintf("%s - Lesson %d", title, n)
				source = header
			}
		}

		sources = append(sources, source)
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", header, doc))
	}

	t.lastSources = sources
	return strings.Join(blocks, "\n\n")
}

func (t *CourseSearchTool) LastSources() []string {
	return t.lastSources
}

func (t *CourseSearchTool) ResetSources() {
	t.lastSources = nil
}
