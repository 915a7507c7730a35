package vector

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	milret "github.com/cloudwego/eino-ext/components/retriever/milvus"
	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/danskfisk/ragchatbot/internal/common/models"
	"github.com/danskfisk/ragchatbot/pkg/logger"
)

// noLesson marks chunks without a lesson number; Milvus scalar fields are
// not nullable so absence is encoded in-band and stripped on the way out.
const noLesson int64 = -1

type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

type Config struct {
	CatalogCollection string
	ContentCollection string
	VectorField       string
	VectorDim         int
	MaxResults        int
}

// Store wraps two Milvus collections: a course catalog keyed by title and
// the chunked course content. Catalog rows carry a title embedding so
// course names resolve by nearest neighbor when no exact match exists.
type Store struct {
	client    milvus.Client
	embed     Embedder
	retriever *milret.Retriever
	cfg       Config
}

type milvusSearchParam struct {
	params map[string]interface{}
}

func (sp *milvusSearchParam) Params() map[string]interface{} {
	p := make(map[string]interface{}, len(sp.params))
	for k, v := range sp.params {
		p[k] = v
	}
	return p
}

func (sp *milvusSearchParam) AddRadius(radius float64) {
	sp.params["radius"] = radius
}

func (sp *milvusSearchParam) AddRangeFilter(rangeFilter float64) {
	sp.params["range_filter"] = rangeFilter
}

func NewMilvusSearchParam(params map[string]interface{}) entity.SearchParam {
	p := make(map[string]interface{}, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &milvusSearchParam{params: p}
}

// NewStore ensures both collections exist and builds the catalog
// retriever used for fuzzy course-name resolution.
func NewStore(ctx context.Context, cli milvus.Client, embed Embedder, einoEmb einoembedding.Embedder, cfg Config) (*Store, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	s := &Store{client: cli, embed: embed, cfg: cfg}
	if err := s.EnsureCollections(ctx); err != nil {
		return nil, err
	}

	vectorConverter := func(ctx context.Context, vectors [][]float64) ([]entity.Vector, error) {
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			return nil, fmt.Errorf("empty vectors")
		}
		return []entity.Vector{entity.FloatVector(toFloat32(vectors[0]))}, nil
	}

	// Closest catalog row wins, whatever its score.
	titleConverter := func(ctx context.Context, result milvus.SearchResult) ([]*schema.Document, error) {
		titleCol := varcharColumn(result.Fields, "title")
		if titleCol == nil {
			if c, ok := result.IDs.(*entity.ColumnVarChar); ok {
				titleCol = c
			}
		}
		if titleCol == nil {
			return nil, fmt.Errorf("title field not in search result")
		}
		docs := make([]*schema.Document, 0, len(titleCol.Data()))
		for i, title := range titleCol.Data() {
			doc := &schema.Document{ID: title, Content: title, MetaData: map[string]any{}}
			if i < len(result.Scores) {
				doc.MetaData["score"] = result.Scores[i]
			}
			docs = append(docs, doc)
		}
		return docs, nil
	}

	ret, err := milret.NewRetriever(ctx, &milret.RetrieverConfig{
		Client:            cli,
		Collection:        cfg.CatalogCollection,
		Embedding:         einoEmb,
		TopK:              1,
		VectorField:       cfg.VectorField,
		MetricType:        entity.COSINE,
		VectorConverter:   vectorConverter,
		Sp:                NewMilvusSearchParam(map[string]interface{}{"ef": 64}),
		ScoreThreshold:    0,
		DocumentConverter: titleConverter,
		OutputFields:      []string{"title"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog retriever: %w", err)
	}
	s.retriever = ret
	return s, nil
}

func (s *Store) EnsureCollections(ctx context.Context) error {
	if err := s.ensureCollection(ctx, s.cfg.CatalogCollection, s.catalogFields()); err != nil {
		return err
	}
	return s.ensureCollection(ctx, s.cfg.ContentCollection, s.contentFields())
}

func (s *Store) ensureCollection(ctx context.Context, name string, fields []*entity.Field) error {
	has, err := s.client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !has {
		sch := &entity.Schema{CollectionName: name, Fields: fields}
		if err := s.client.CreateCollection(ctx, sch, 1); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return fmt.Errorf("failed to build index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, name, s.cfg.VectorField, idx, false); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
		logger.Info(ctx, "created collection", "collection", name)
	}
	if err := s.client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) catalogFields() []*entity.Field {
	dim := fmt.Sprintf("%d", s.cfg.VectorDim)
	return []*entity.Field{
		{Name: "title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "512"}, PrimaryKey: true},
		{Name: "instructor", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "256"}},
		{Name: "course_link", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "1024"}},
		{Name: "lessons", DataType: entity.FieldTypeJSON},
		{Name: "lesson_count", DataType: entity.FieldTypeInt64},
		{Name: s.cfg.VectorField, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": dim}},
	}
}

func (s *Store) contentFields() []*entity.Field {
	dim := fmt.Sprintf("%d", s.cfg.VectorDim)
	return []*entity.Field{
		{Name: "id", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "64"}, PrimaryKey: true},
		{Name: "content", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "8192"}},
		{Name: "course_title", DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "512"}},
		{Name: "lesson_number", DataType: entity.FieldTypeInt64},
		{Name: "chunk_index", DataType: entity.FieldTypeInt64},
		{Name: s.cfg.VectorField, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": dim}},
	}
}

// AddCourseMetadata catalogs one course, embedding its title for fuzzy
// name resolution.
func (s *Store) AddCourseMetadata(ctx context.Context, course *models.Course) error {
	lessonsJSON, err := sonic.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("failed to encode lessons: %w", err)
	}
	vecs, err := s.embed.Embed(ctx, []string{course.Title})
	if err != nil {
		return fmt.Errorf("failed to embed course title: %w", err)
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("title", []string{course.Title}),
		entity.NewColumnVarChar("instructor", []string{course.Instructor}),
		entity.NewColumnVarChar("course_link", []string{course.CourseLink}),
		entity.NewColumnJSONBytes("lessons", [][]byte{lessonsJSON}),
		entity.NewColumnInt64("lesson_count", []int64{int64(len(course.Lessons))}),
		entity.NewColumnFloatVector(s.cfg.VectorField, s.cfg.VectorDim, [][]float32{toFloat32(vecs[0])}),
	}

	if _, err := s.client.Insert(ctx, s.cfg.CatalogCollection, "", columns...); err != nil {
		return fmt.Errorf("failed to insert course metadata: %w", err)
	}
	logger.Info(ctx, "cataloged course", "title", course.Title, "lessons", len(course.Lessons))
	return nil
}

// AddCourseContent embeds and indexes content chunks. An empty slice is a
// no-op.
func (s *Store) AddCourseContent(ctx context.Context, chunks []models.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embed.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vecs), len(chunks))
	}

	n := len(chunks)
	ids := make([]string, n)
	contents := make([]string, n)
	titles := make([]string, n)
	lessonNumbers := make([]int64, n)
	chunkIndexes := make([]int64, n)
	vectors := make([][]float32, n)

	for i, c := range chunks {
		ids[i] = uuid.New().String()
		contents[i] = c.Content
		titles[i] = c.CourseTitle
		lessonNumbers[i] = noLesson
		if c.LessonNumber != nil {
			lessonNumbers[i] = int64(*c.LessonNumber)
		}
		chunkIndexes[i] = int64(c.ChunkIndex)
		vectors[i] = toFloat32(vecs[i])
	}

	columns := []entity.Column{
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("content", contents),
		entity.NewColumnVarChar("course_title", titles),
		entity.NewColumnInt64("lesson_number", lessonNumbers),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnFloatVector(s.cfg.VectorField, s.cfg.VectorDim, vectors),
	}

	if _, err := s.client.Insert(ctx, s.cfg.ContentCollection, "", columns...); err != nil {
		return fmt.Errorf("failed to insert course content: %w", err)
	}
	logger.Info(ctx, "indexed chunks", "collection", s.cfg.ContentCollection, "count", n)
	return nil
}

// ResolveCourseName maps a user-supplied course name to a cataloged title:
// exact match first, then nearest neighbor over title embeddings. Returns
// "" when the catalog is empty or nothing resolves.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	expr := fmt.Sprintf(`title == "%s"`, escapeExprString(name))
	rs, err := s.client.Query(ctx, s.cfg.CatalogCollection, nil, expr, []string{"title"})
	if err != nil {
		return "", fmt.Errorf("failed to query catalog: %w", err)
	}
	if col := varcharColumn(rs, "title"); col != nil && len(col.Data()) > 0 {
		return col.Data()[0], nil
	}

	docs, err := s.retriever.Retrieve(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve course name: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].Content, nil
}

// Search runs a filtered vector search over course content. An
// unresolvable course name is a domain failure reported inside the
// results, not an error.
func (s *Store) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) (*models.SearchResults, error) {
	resolvedTitle := ""
	if courseName != "" {
		title, err := s.ResolveCourseName(ctx, courseName)
		if err != nil {
			return nil, err
		}
		if title == "" {
			return models.EmptyResults(fmt.Sprintf("No course found matching '%s'", courseName)), nil
		}
		resolvedTitle = title
	}

	if limit <= 0 {
		limit = s.cfg.MaxResults
	}

	vecs, err := s.embed.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	expr := BuildFilter(resolvedTitle, lessonNumber)
	results, err := s.client.Search(ctx,
		s.cfg.ContentCollection,
		nil,
		expr,
		[]string{"content", "course_title", "lesson_number", "chunk_index"},
		[]entity.Vector{entity.FloatVector(toFloat32(vecs[0]))},
		s.cfg.VectorField,
		entity.COSINE,
		limit,
		NewMilvusSearchParam(map[string]interface{}{"ef": 64}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}

	return parseContentHits(results)
}

// parseContentHits flattens Milvus search results into parallel slices.
func parseContentHits(results []milvus.SearchResult) (*models.SearchResults, error) {
	out := &models.SearchResults{
		Documents: []string{},
		Metadata:  []map[string]interface{}{},
		Distances: []float32{},
	}
	for _, res := range results {
		contentCol := varcharColumn(res.Fields, "content")
		titleCol := varcharColumn(res.Fields, "course_title")
		lessonCol := int64Column(res.Fields, "lesson_number")
		indexCol := int64Column(res.Fields, "chunk_index")
		if contentCol == nil || titleCol == nil {
			if res.ResultCount == 0 {
				continue
			}
			return nil, fmt.Errorf("search result missing content fields")
		}
		for i := 0; i < res.ResultCount; i++ {
			if i >= len(contentCol.Data()) || i >= len(titleCol.Data()) {
				break
			}
			meta := map[string]interface{}{
				"course_title": titleCol.Data()[i],
			}
			if indexCol != nil && i < len(indexCol.Data()) {
				meta["chunk_index"] = int(indexCol.Data()[i])
			}
			if lessonCol != nil && i < len(lessonCol.Data()) {
				if n := lessonCol.Data()[i]; n != noLesson {
					meta["lesson_number"] = int(n)
				}
			}
			out.Documents = append(out.Documents, contentCol.Data()[i])
			out.Metadata = append(out.Metadata, meta)
			if i < len(res.Scores) {
				out.Distances = append(out.Distances, res.Scores[i])
			} else {
				out.Distances = append(out.Distances, 0)
			}
		}
	}
	return out, nil
}

// ExistingCourseTitles lists every cataloged title.
func (s *Store) ExistingCourseTitles(ctx context.Context) ([]string, error) {
	rs, err := s.client.Query(ctx, s.cfg.CatalogCollection, nil, `title != ""`, []string{"title"})
	if err != nil {
		return nil, fmt.Errorf("failed to list course titles: %w", err)
	}
	col := varcharColumn(rs, "title")
	if col == nil {
		return []string{}, nil
	}
	return col.Data(), nil
}

func (s *Store) CourseCount(ctx context.Context) (int, error) {
	titles, err := s.ExistingCourseTitles(ctx)
	if err != nil {
		return 0, err
	}
	return len(titles), nil
}

// CourseMetadata fetches one catalog row with lessons decoded.
func (s *Store) CourseMetadata(ctx context.Context, title string) (*models.Course, error) {
	expr := fmt.Sprintf(`title == "%s"`, escapeExprString(title))
	rs, err := s.client.Query(ctx, s.cfg.CatalogCollection, nil, expr,
		[]string{"title", "instructor", "course_link", "lessons"})
	if err != nil {
		return nil, fmt.Errorf("failed to query course metadata: %w", err)
	}
	courses, err := decodeCatalogRows(rs)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, nil
	}
	return courses[0], nil
}

// AllCoursesMetadata fetches every catalog row with lessons decoded.
func (s *Store) AllCoursesMetadata(ctx context.Context) ([]*models.Course, error) {
	rs, err := s.client.Query(ctx, s.cfg.CatalogCollection, nil, `title != ""`,
		[]string{"title", "instructor", "course_link", "lessons"})
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	return decodeCatalogRows(rs)
}

func decodeCatalogRows(rs []entity.Column) ([]*models.Course, error) {
	titleCol := varcharColumn(rs, "title")
	if titleCol == nil || len(titleCol.Data()) == 0 {
		return []*models.Course{}, nil
	}
	instructorCol := varcharColumn(rs, "instructor")
	linkCol := varcharColumn(rs, "course_link")
	lessonsCol := jsonColumn(rs, "lessons")

	courses := make([]*models.Course, 0, len(titleCol.Data()))
	for i, title := range titleCol.Data() {
		c := &models.Course{Title: title}
		if instructorCol != nil && i < len(instructorCol.Data()) {
			c.Instructor = instructorCol.Data()[i]
		}
		if linkCol != nil && i < len(linkCol.Data()) {
			c.CourseLink = linkCol.Data()[i]
		}
		if lessonsCol != nil && i < len(lessonsCol.Data()) {
			if err := sonic.Unmarshal(lessonsCol.Data()[i], &c.Lessons); err != nil {
				return nil, fmt.Errorf("failed to decode lessons for %s: %w", title, err)
			}
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// CourseLink returns the cataloged link for a course, "" when unknown.
func (s *Store) CourseLink(ctx context.Context, title string) (string, error) {
	course, err := s.CourseMetadata(ctx, title)
	if err != nil {
		return "", err
	}
	if course == nil {
		return "", nil
	}
	return course.CourseLink, nil
}

// LessonLink returns the link for one lesson of a course, "" when unknown.
func (s *Store) LessonLink(ctx context.Context, title string, lessonNumber int) (string, error) {
	course, err := s.CourseMetadata(ctx, title)
	if err != nil {
		return "", err
	}
	if course == nil {
		return "", nil
	}
	for _, l := range course.Lessons {
		if l.Number == lessonNumber {
			return l.Link, nil
		}
	}
	return "", nil
}

// ClearAll drops and recreates both collections.
func (s *Store) ClearAll(ctx context.Context) error {
	for _, name := range []string{s.cfg.CatalogCollection, s.cfg.ContentCollection} {
		has, err := s.client.HasCollection(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check collection %s: %w", name, err)
		}
		if has {
			if err := s.client.DropCollection(ctx, name); err != nil {
				return fmt.Errorf("failed to drop collection %s: %w", name, err)
			}
		}
	}
	logger.Info(ctx, "cleared all collections")
	return s.EnsureCollections(ctx)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func varcharColumn(cols []entity.Column, name string) *entity.ColumnVarChar {
	for _, col := range cols {
		if col.Name() == name {
			if c, ok := col.(*entity.ColumnVarChar); ok {
				return c
			}
		}
	}
	return nil
}

func int64Column(cols []entity.Column, name string) *entity.ColumnInt64 {
	for _, col := range cols {
		if col.Name() == name {
			if c, ok := col.(*entity.ColumnInt64); ok {
				return c
			}
		}
	}
	return nil
}

func jsonColumn(cols []entity.Column, name string) *entity.ColumnJSONBytes {
	for _, col := range cols {
		if col.Name() == name {
			if c, ok := col.(*entity.ColumnJSONBytes); ok {
				return c
			}
		}
	}
	return nil
}
