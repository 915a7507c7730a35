package ingest

import (
	"strings"
	"testing"
)

const sampleDoc = `Course Title: Introduction to Python
Course Link: https://example.com/python
Course Instructor: Dr. Smith

Lesson 0: Getting Started
Lesson Link: https://example.com/python/lesson0
Python is a programming language. It is widely used.

Lesson 1: Variables
Variables store values. They have names.
`

func TestParseHeadersAndLessons(t *testing.T) {
	p := NewProcessor(800, 100)
	course, chunks := p.Parse(sampleDoc, "fallback")

	if course.Title != "Introduction to Python" {
		t.Fatalf("title = %q", course.Title)
	}
	if course.CourseLink != "https://example.com/python" {
		t.Fatalf("course link = %q", course.CourseLink)
	}
	if course.Instructor != "Dr. Smith" {
		t.Fatalf("instructor = %q", course.Instructor)
	}
	if len(course.Lessons) != 2 {
		t.Fatalf("lessons = %d", len(course.Lessons))
	}
	if course.Lessons[0].Number != 0 || course.Lessons[0].Title != "Getting Started" {
		t.Fatalf("lesson 0 = %+v", course.Lessons[0])
	}
	if course.Lessons[0].Link != "https://example.com/python/lesson0" {
		t.Fatalf("lesson 0 link = %q", course.Lessons[0].Link)
	}
	if course.Lessons[1].Link != "" {
		t.Fatalf("lesson 1 link should be empty, got %q", course.Lessons[1].Link)
	}

	if len(chunks) != 2 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, "Lesson 0 content: ") {
		t.Fatalf("first lesson chunk missing prefix: %q", chunks[0].Content)
	}
	if !strings.HasPrefix(chunks[1].Content, "Lesson 1 content: ") {
		t.Fatalf("second lesson chunk missing prefix: %q", chunks[1].Content)
	}
	for i, c := range chunks {
		if c.CourseTitle != "Introduction to Python" {
			t.Fatalf("chunk %d course title = %q", i, c.CourseTitle)
		}
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d index = %d", i, c.ChunkIndex)
		}
		if c.LessonNumber == nil || *c.LessonNumber != i {
			t.Fatalf("chunk %d lesson number = %v", i, c.LessonNumber)
		}
	}
}

func TestParseFallbackTitle(t *testing.T) {
	p := NewProcessor(800, 100)
	course, chunks := p.Parse("Just some text without any headers.", "my_course")

	if course.Title != "my_course" {
		t.Fatalf("title = %q", course.Title)
	}
	if len(course.Lessons) != 0 {
		t.Fatalf("lessons = %d", len(course.Lessons))
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d", len(chunks))
	}
	if chunks[0].LessonNumber != nil {
		t.Fatalf("preamble chunk must have no lesson number")
	}
	if strings.Contains(chunks[0].Content, "content:") {
		t.Fatalf("preamble chunk must not carry a lesson prefix: %q", chunks[0].Content)
	}
}

func TestParseLessonWithoutBody(t *testing.T) {
	p := NewProcessor(800, 100)
	course, chunks := p.Parse("Course Title: T\n\nLesson 3: Empty\n", "f")

	if len(course.Lessons) != 1 || course.Lessons[0].Number != 3 {
		t.Fatalf("lessons = %+v", course.Lessons)
	}
	if len(chunks) != 0 {
		t.Fatalf("empty lesson must produce no chunks, got %d", len(chunks))
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Hello world. How are you? Fine! trailing fragment")
	want := []string{"Hello world.", "How are you?", "Fine!", "trailing fragment"}
	if len(got) != len(want) {
		t.Fatalf("sentences = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkTextOverlap(t *testing.T) {
	p := NewProcessor(10, 5)
	chunks := p.chunkText("A b. C d. E f. G h.")

	want := []string{"A b. C d.", "C d. E f.", "E f. G h."}
	if len(chunks) != len(want) {
		t.Fatalf("chunks = %v", chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunkTextForceSplitsOversizedSentence(t *testing.T) {
	p := NewProcessor(10, 0)
	chunks := p.chunkText(strings.Repeat("x", 25))

	if len(chunks) != 3 {
		t.Fatalf("chunks = %v", chunks)
	}
	for i, c := range chunks {
		if len(c) > 10 {
			t.Fatalf("chunk %d exceeds size: %q", i, c)
		}
	}
}

func TestChunkTextKeepsSentencesWhole(t *testing.T) {
	p := NewProcessor(50, 0)
	text := "First sentence here. Second sentence follows. Third one closes."
	for i, c := range p.chunkText(text) {
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("chunk %d split mid-sentence: %q", i, c)
		}
	}
}
