package vector

import "testing"

func TestBuildFilterEmpty(t *testing.T) {
	if got := BuildFilter("", nil); got != "" {
		t.Fatalf("filter = %q", got)
	}
}

func TestBuildFilterCourseOnly(t *testing.T) {
	got := BuildFilter("Introduction to Python", nil)
	want := `course_title == "Introduction to Python"`
	if got != want {
		t.Fatalf("filter = %q, want %q", got, want)
	}
}

func TestBuildFilterLessonOnly(t *testing.T) {
	n := 3
	got := BuildFilter("", &n)
	if got != "lesson_number == 3" {
		t.Fatalf("filter = %q", got)
	}
}

func TestBuildFilterConjunction(t *testing.T) {
	n := 1
	got := BuildFilter("Advanced Machine Learning", &n)
	want := `course_title == "Advanced Machine Learning" && lesson_number == 1`
	if got != want {
		t.Fatalf("filter = %q, want %q", got, want)
	}
}

func TestBuildFilterEscapesQuotes(t *testing.T) {
	got := BuildFilter(`The "Best" Course`, nil)
	want := `course_title == "The \"Best\" Course"`
	if got != want {
		t.Fatalf("filter = %q, want %q", got, want)
	}
}
