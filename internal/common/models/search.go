package models

// SearchResults carries parallel result slices from a vector search.
// Documents, Metadata and Distances always have equal length. Err holds a
// domain-level failure (for example an unresolvable course name); when it
// is set all three slices are empty.
type SearchResults struct {
	Documents []string
	Metadata  []map[string]interface{}
	Distances []float32
	Err       string
}

func EmptyResults(errMsg string) *SearchResults {
	return &SearchResults{
		Documents: []string{},
		Metadata:  []map[string]interface{}{},
		Distances: []float32{},
		Err:       errMsg,
	}
}

func (r *SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}
