package logs

// Column names understood by the parser.
const (
	FieldTime   = "Time"
	FieldNanos  = "nanos"
	FieldTsNs   = "tsNs"
	FieldLabels = "labels"
)

// Field is a named column of a raw series.
type Field struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// RawSeries is the column-oriented payload returned by the log backend.
type RawSeries struct {
	Fields []Field `json:"fields"`
}

// Field returns the column with the given name.
func (s RawSeries) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Len returns the number of rows, taken from the time column.
func (s RawSeries) Len() int {
	f, ok := s.Field(FieldTime)
	if !ok {
		return 0
	}
	return len(f.Values)
}
