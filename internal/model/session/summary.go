package session

import "github.com/revela-app/revela/backend/internal/model/capture"

// NumericStats are aggregates over the cells of a numeric column.
type NumericStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	// NonNumeric counts non-empty cells that did not parse as numbers.
	NonNumeric int `json:"nonNumeric"`
}

// ColumnStats describes one column: numeric columns carry aggregates,
// everything else a capped distinct-value count.
type ColumnStats struct {
	Numeric        *NumericStats `json:"numeric,omitempty"`
	DistinctValues int           `json:"distinctValues"`
}

// Summary is the immutable derived description of a session's capture.
// Once built it is never mutated; callers receive copies.
type Summary struct {
	Type        capture.Kind           `json:"type"`
	RowCount    int                    `json:"rowCount"`
	ColumnCount int                    `json:"columnCount"`
	Columns     []string               `json:"columns,omitempty"`
	SampleRows  [][]string             `json:"sampleRows,omitempty"`
	Stats       map[string]ColumnStats `json:"stats,omitempty"`

	// Image/canvas captures carry metadata instead of tabular shape.
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Alt         string `json:"alt,omitempty"`
	Src         string `json:"src,omitempty"`
	ChartLikely bool   `json:"chartLikely,omitempty"`
}

// Clone returns a deep copy so callers can hold a Summary without aliasing
// the session's own value.
func (s Summary) Clone() Summary {
	out := s
	out.Columns = append([]string(nil), s.Columns...)
	if s.SampleRows != nil {
		out.SampleRows = make([][]string, len(s.SampleRows))
		for i, row := range s.SampleRows {
			out.SampleRows[i] = append([]string(nil), row...)
		}
	}
	if s.Stats != nil {
		out.Stats = make(map[string]ColumnStats, len(s.Stats))
		for col, stats := range s.Stats {
			if stats.Numeric != nil {
				n := *stats.Numeric
				stats.Numeric = &n
			}
			out.Stats[col] = stats
		}
	}
	return out
}
