// Package summary computes descriptive statistics for a session's capture.
// It runs in time proportional to the table size and never calls the model.
package summary

import (
	"strconv"
	"strings"

	"github.com/revela-app/revela/backend/internal/dataset"
	"github.com/revela-app/revela/backend/internal/model/capture"
	"github.com/revela-app/revela/backend/internal/model/session"
)

const (
	// distinctCap bounds the distinct-value count per categorical column.
	distinctCap = 20
	// numericShare is the fraction of non-empty cells that must parse as
	// numbers for a column to be treated as numeric.
	numericShare = 0.8
)

var chartKeywords = []string{"chart", "graph", "plot", "diagram", "visualization", "data", "analytics"}

type columnAccum struct {
	nonEmpty   int
	numeric    int
	nonNumeric int
	sum        float64
	min        float64
	max        float64
	distinct   map[string]struct{}
}

// FromTable derives a table summary from an ingested store: shape, column
// names, the first sampleRows rows, and per-column type-aware stats.
func FromTable(store *dataset.Store, sampleRows int) (session.Summary, error) {
	columns := store.Columns()

	samples, err := store.SampleRows(sampleRows)
	if err != nil {
		return session.Summary{}, err
	}

	accums := make([]*columnAccum, len(columns))
	for i := range accums {
		accums[i] = &columnAccum{distinct: make(map[string]struct{}, distinctCap)}
	}

	err = store.ForEachRow(func(cells []string) error {
		for i, cell := range cells {
			acc := accums[i]
			if len(acc.distinct) < distinctCap {
				acc.distinct[cell] = struct{}{}
			}

			value := strings.TrimSpace(cell)
			if value == "" {
				continue
			}
			acc.nonEmpty++

			num, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
			if err != nil {
				acc.nonNumeric++
				continue
			}
			if acc.numeric == 0 || num < acc.min {
				acc.min = num
			}
			if acc.numeric == 0 || num > acc.max {
				acc.max = num
			}
			acc.sum += num
			acc.numeric++
		}
		return nil
	})
	if err != nil {
		return session.Summary{}, err
	}

	stats := make(map[string]session.ColumnStats, len(columns))
	for i, col := range columns {
		stats[col] = accums[i].finish()
	}

	return session.Summary{
		Type:        capture.KindTable,
		RowCount:    store.RowCount(),
		ColumnCount: len(columns),
		Columns:     columns,
		SampleRows:  samples,
		Stats:       stats,
	}, nil
}

// FromCapture derives a metadata summary for image and canvas captures.
func FromCapture(p capture.Payload) session.Summary {
	return session.Summary{
		Type:        p.Kind,
		Width:       p.Width,
		Height:      p.Height,
		Alt:         p.Alt,
		Src:         p.Src,
		ChartLikely: looksLikeChart(p),
	}
}

func (a *columnAccum) finish() session.ColumnStats {
	stats := session.ColumnStats{DistinctValues: len(a.distinct)}
	if a.nonEmpty == 0 || float64(a.numeric) < numericShare*float64(a.nonEmpty) {
		return stats
	}
	stats.Numeric = &session.NumericStats{
		Min:        a.min,
		Max:        a.max,
		Mean:       a.sum / float64(a.numeric),
		NonNumeric: a.nonNumeric,
	}
	return stats
}

// looksLikeChart is a cheap pre-check on alt text and dimensions; the model
// makes the real call later.
func looksLikeChart(p capture.Payload) bool {
	if p.Width > 0 && p.Width < 100 || p.Height > 0 && p.Height < 100 {
		return false
	}
	alt := strings.ToLower(p.Alt)
	for _, kw := range chartKeywords {
		if strings.Contains(alt, kw) {
			return true
		}
	}
	return false
}
