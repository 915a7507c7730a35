package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/danskfisk/ragchatbot/internal/common/models"
)

// CatalogReader is the slice of the vector store the outline tool needs.
type CatalogReader interface {
	ResolveCourseName(ctx context.Context, name string) (string, error)
	CourseMetadata(ctx context.Context, title string) (*models.Course, error)
}

// CourseOutlineTool returns a course's title, link and full lesson list.
type CourseOutlineTool struct {
	store       CatalogReader
	lastSources []string
}

func NewCourseOutlineTool(store CatalogReader) *CourseOutlineTool {
	return &CourseOutlineTool{store: store}
}

func (t *CourseOutlineTool) Name() string {
	return "get_course_outline"
}

func (t *CourseOutlineTool) Definition() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Get the complete outline of a course: its title, link and all lesson numbers and titles",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"course_name": {
				Type:     schema.String,
				Desc:     "Course title (partial matches supported)",
				Required: true,
			},
		}),
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, args map[string]interface{}) string {
	name, _ := args["course_name"].(string)
	if name == "" {
		return "Tool argument 'course_name' is required"
	}

	title, err := t.store.ResolveCourseName(ctx, name)
	if err != nil {
		return err.Error()
	}
	if title == "" {
		return fmt.Sprintf("No course found matching '%s'", name)
	}

	course, err := t.store.CourseMetadata(ctx, title)
	if err != nil {
		return err.Error()
	}
	if course == nil {
		return fmt.Sprintf("No course found matching '%s'", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.CourseLink != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.CourseLink)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(course.Lessons))
	for _, l := range course.Lessons {
		fmt.Fprintf(&b, "  %d. %s\n", l.Number, l.Title)
	}

	t.lastSources = []string{course.Title}
	return strings.TrimRight(b.String(), "\n")
}

func (t *CourseOutlineTool) LastSources() []string {
	return t.lastSources
}

func (t *CourseOutlineTool) ResetSources() {
	t.lastSources = nil
}
