package vector

import (
	"fmt"
	"strings"
)

// BuildFilter renders the Milvus boolean expression for a content search:
// empty when unfiltered, a single equality predicate, or a conjunction of
// both. lessonNumber is nil when no lesson filter applies.
func BuildFilter(courseTitle string, lessonNumber *int) string {
	var conds []string
	if courseTitle != "" {
		conds = append(conds, fmt.Sprintf(`course_title == "%s"`, escapeExprString(courseTitle)))
	}
	if lessonNumber != nil {
		conds = append(conds, fmt.Sprintf("lesson_number == %d", *lessonNumber))
	}
	return strings.Join(conds, " && ")
}

func escapeExprString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
