package match

// Raw is one record as a backing store returned it, before normalization.
// Fields keeps the store-specific columns as strings; Score is the store's similarity.
type Raw struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Field returns a field value, or "" when absent.
func (r Raw) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}
