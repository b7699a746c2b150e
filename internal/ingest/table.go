// Package ingest parses captured HTML table markup into a rectangular
// row/column structure ready for loading into a session dataset.
package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is the normalized rectangular form of a captured table. Every row
// has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ParseHTML extracts the first <table> element from markup. The header row
// becomes the column names; data rows are right-padded or truncated to the
// header width. A table with a header and no data rows is valid.
func ParseHTML(markup string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Table{}, fmt.Errorf("parse html: %w", err)
	}

	tableSel := doc.Find("table").First()
	if tableSel.Length() == 0 {
		return Table{}, fmt.Errorf("no table element in capture")
	}

	var raw [][]string
	tableSel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			raw = append(raw, cells)
		}
	})

	if len(raw) == 0 {
		return Table{}, nil
	}

	columns := normalizeColumns(raw[0])
	rows := make([][]string, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make([]string, len(columns))
		copy(row, cells)
		rows = append(rows, row)
	}

	return Table{Columns: columns, Rows: rows}, nil
}

// normalizeColumns turns raw header cells into valid, unique column names:
// lower-cased, whitespace and dashes collapsed to underscores, other
// non-alphanumerics stripped. Empty or digit-leading names fall back to
// column_<i>; repeated names get a numeric suffix.
func normalizeColumns(headers []string) []string {
	columns := make([]string, 0, len(headers))
	next := make(map[string]int, len(headers))
	used := make(map[string]bool, len(headers))

	for i, header := range headers {
		name := cleanColumnName(header)
		if name == "" || (name[0] >= '0' && name[0] <= '9') {
			name = fmt.Sprintf("column_%d", i)
		}

		// Suffixed names count as taken too, so a generated name can never
		// collide with a later literal header.
		base := name
		for used[name] {
			next[base]++
			name = fmt.Sprintf("%s_%d", base, next[base])
		}
		used[name] = true
		columns = append(columns, name)
	}

	return columns
}

func cleanColumnName(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(header)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '-':
			b.WriteRune('_')
		}
	}
	return b.String()
}
