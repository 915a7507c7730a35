package vector

import (
	"testing"

	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

func TestParseContentHits(t *testing.T) {
	res := []milvus.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar("id", []string{"a", "b"}),
		Fields: milvus.ResultSet{
			entity.NewColumnVarChar("content", []string{"first chunk", "second chunk"}),
			entity.NewColumnVarChar("course_title", []string{"Introduction to Python", "Introduction to Python"}),
			entity.NewColumnInt64("lesson_number", []int64{1, noLesson}),
			entity.NewColumnInt64("chunk_index", []int64{0, 1}),
		},
		Scores: []float32{0.9, 0.8},
	}}

	out, err := parseContentHits(res)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Documents) != 2 || len(out.Metadata) != 2 || len(out.Distances) != 2 {
		t.Fatalf("slices not parallel: %d/%d/%d", len(out.Documents), len(out.Metadata), len(out.Distances))
	}
	if out.Documents[0] != "first chunk" {
		t.Fatalf("document 0 = %q", out.Documents[0])
	}
	if out.Metadata[0]["course_title"] != "Introduction to Python" {
		t.Fatalf("metadata 0 = %+v", out.Metadata[0])
	}
	if out.Metadata[0]["lesson_number"] != 1 {
		t.Fatalf("lesson number = %v", out.Metadata[0]["lesson_number"])
	}
	if _, ok := out.Metadata[1]["lesson_number"]; ok {
		t.Fatalf("sentinel lesson number must be stripped: %+v", out.Metadata[1])
	}
	if out.Metadata[1]["chunk_index"] != 1 {
		t.Fatalf("chunk index = %v", out.Metadata[1]["chunk_index"])
	}
	if out.Distances[0] != 0.9 {
		t.Fatalf("distance 0 = %v", out.Distances[0])
	}
}

func TestParseContentHitsEmpty(t *testing.T) {
	out, err := parseContentHits([]milvus.SearchResult{{ResultCount: 0}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.IsEmpty() {
		t.Fatalf("expected empty results")
	}
	if out.Documents == nil || out.Metadata == nil || out.Distances == nil {
		t.Fatalf("slices must be non-nil")
	}
}

func TestDecodeCatalogRows(t *testing.T) {
	rs := []entity.Column{
		entity.NewColumnVarChar("title", []string{"Introduction to Python"}),
		entity.NewColumnVarChar("instructor", []string{"Dr. Smith"}),
		entity.NewColumnVarChar("course_link", []string{"https://example.com/python"}),
		entity.NewColumnJSONBytes("lessons", [][]byte{
			[]byte(`[{"lesson_number":0,"lesson_title":"Getting Started","lesson_link":"https://example.com/python/lesson0"}]`),
		}),
	}

	courses, err := decodeCatalogRows(rs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(courses) != 1 {
		t.Fatalf("courses = %d", len(courses))
	}
	c := courses[0]
	if c.Title != "Introduction to Python" || c.Instructor != "Dr. Smith" {
		t.Fatalf("course = %+v", c)
	}
	if len(c.Lessons) != 1 || c.Lessons[0].Number != 0 || c.Lessons[0].Title != "Getting Started" {
		t.Fatalf("lessons = %+v", c.Lessons)
	}
	if c.Lessons[0].Link != "https://example.com/python/lesson0" {
		t.Fatalf("lesson link = %q", c.Lessons[0].Link)
	}
}

func TestDecodeCatalogRowsEmpty(t *testing.T) {
	courses, err := decodeCatalogRows(nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("courses = %d", len(courses))
	}
}

func TestToFloat32(t *testing.T) {
	out := toFloat32([]float64{0.5, 1.5})
	if len(out) != 2 || out[0] != 0.5 || out[1] != 1.5 {
		t.Fatalf("out = %v", out)
	}
}
