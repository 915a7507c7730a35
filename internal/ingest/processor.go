package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/danskfisk/ragchatbot/internal/common/models"
)

// Processor turns course documents into a catalog entry plus content
// chunks. Chunking is sentence based with a sliding character window:
// sentences are packed until the chunk size is reached, then the window
// slides back over whole sentences up to the overlap budget.
type Processor struct {
	chunkSize int
	overlap   int
}

func NewProcessor(chunkSize, overlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Processor{chunkSize: chunkSize, overlap: overlap}
}

// ProcessFile reads and parses one course document. The filename (without
// extension) is the fallback course title when the header is missing.
func (p *Processor) ProcessFile(path string) (*models.Course, []models.CourseChunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read course document: %w", err)
	}
	base := filepath.Base(path)
	fallback := strings.TrimSuffix(base, filepath.Ext(base))
	course, chunks := p.Parse(string(raw), fallback)
	return course, chunks, nil
}

var lessonHeaderRegex = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// segment is one chunkable span of the document: the preamble before the
// first lesson marker (number nil) or a single lesson's body.
type segment struct {
	number *int
	title  string
	link   string
	lines  []string
}

// Parse extracts the course header, lesson structure and content chunks
// from a document. Expected layout:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: Introduction
//	Lesson Link: <url>
//	<content...>
//
// Missing headers degrade gracefully: the title falls back to
// fallbackTitle and content before the first lesson marker is chunked
// without a lesson number.
func (p *Processor) Parse(raw, fallbackTitle string) (*models.Course, []models.CourseChunk) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	course := &models.Course{Title: fallbackTitle}

	idx := 0
header:
	for idx < len(lines) {
		line := strings.TrimSpace(lines[idx])
		switch {
		case line == "":
			idx++
		case strings.HasPrefix(line, "Course Title:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "Course Title:")); v != "" {
				course.Title = v
			}
			idx++
		case strings.HasPrefix(line, "Course Link:"):
			course.CourseLink = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
			idx++
		case strings.HasPrefix(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
			idx++
		default:
			break header
		}
	}

	current := &segment{}
	var segments []*segment
	for ; idx < len(lines); idx++ {
		trimmed := strings.TrimSpace(lines[idx])
		if m := lessonHeaderRegex.FindStringSubmatch(trimmed); m != nil {
			segments = append(segments, current)
			n, _ := strconv.Atoi(m[1])
			current = &segment{number: &n, title: strings.TrimSpace(m[2])}
			if idx+1 < len(lines) {
				next := strings.TrimSpace(lines[idx+1])
				if strings.HasPrefix(next, "Lesson Link:") {
					current.link = strings.TrimSpace(strings.TrimPrefix(next, "Lesson Link:"))
					idx++
				}
			}
			continue
		}
		current.lines = append(current.lines, lines[idx])
	}
	segments = append(segments, current)

	var chunks []models.CourseChunk
	chunkIndex := 0
	for _, seg := range segments {
		if seg.number != nil {
			course.Lessons = append(course.Lessons, models.Lesson{
				Number: *seg.number,
				Title:  seg.title,
				Link:   seg.link,
			})
		}
		body := strings.TrimSpace(strings.Join(seg.lines, "\n"))
		if body == "" {
			continue
		}
		for k, text := range p.chunkText(body) {
			if k == 0 && seg.number != nil {
				text = fmt.Sprintf("Lesson %d content: %s", *seg.number, text)
			}
			chunks = append(chunks, models.CourseChunk{
				Content:      text,
				CourseTitle:  course.Title,
				LessonNumber: seg.number,
				ChunkIndex:   chunkIndex,
			})
			chunkIndex++
		}
	}

	return course, chunks
}

var sentenceEndRegex = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// splitSentences cuts text after sentence-ending punctuation. Text without
// terminal punctuation comes back as a single trailing sentence.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var sentences []string
	last := 0
	for _, loc := range sentenceEndRegex.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// chunkText packs whole sentences into chunks of at most chunkSize
// characters, sliding the window back over complete sentences within the
// overlap budget. A single sentence longer than the chunk size is force
// split at the size boundary.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var parts []string
	for _, s := range sentences {
		runes := []rune(s)
		if len(runes) <= p.chunkSize {
			parts = append(parts, s)
			continue
		}
		for i := 0; i < len(runes); i += p.chunkSize {
			end := i + p.chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			parts = append(parts, string(runes[i:end]))
		}
	}

	var chunks []string
	i := 0
	for i < len(parts) {
		total := 0
		j := i
		for j < len(parts) {
			add := len([]rune(parts[j]))
			if total > 0 {
				add++ // joining space
			}
			if total+add > p.chunkSize && total > 0 {
				break
			}
			total += add
			j++
		}
		chunks = append(chunks, strings.Join(parts[i:j], " "))
		if j >= len(parts) {
			break
		}
		// back up whole sentences within the overlap budget, always
		// keeping forward progress
		next := j
		budget := p.overlap
		for next > i+1 {
			size := len([]rune(parts[next-1]))
			if size > budget {
				break
			}
			budget -= size + 1
			next--
		}
		i = next
	}
	return chunks
}
