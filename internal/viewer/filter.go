package viewer

import (
	"strings"

	"github.com/h0rv/ghsync/internal/domain"
)

// QuickFilter keeps the rows where any field's rendered text contains term,
// ignoring case. An empty term keeps everything.
func QuickFilter(rows []domain.Record, term string, f Formatter) []domain.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows
	}
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		for _, fld := range row {
			if strings.Contains(strings.ToLower(f.Text(fld.Value)), term) {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

// FieldSearch keeps the rows whose value at the dot path contains term, ignoring
// case. Only the rows passed in are searched. An empty path or term keeps everything.
func FieldSearch(rows []domain.Record, path, term string) []domain.Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if path == "" || term == "" {
		return rows
	}
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		v, ok := row.Lookup(path)
		if !ok || v.Kind == domain.KindNull {
			continue
		}
		if strings.Contains(strings.ToLower(v.Text()), term) {
			out = append(out, row)
		}
	}
	return out
}

// MatchFilters keeps the rows whose value at every filter path equals the
// filter value, ignoring case. Empty filter values are skipped.
func MatchFilters(rows []domain.Record, filters map[string]string) []domain.Record {
	active := 0
	for _, v := range filters {
		if v != "" {
			active++
		}
	}
	if active == 0 {
		return rows
	}
	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		if matchesAll(row, filters) {
			out = append(out, row)
		}
	}
	return out
}

func matchesAll(row domain.Record, filters map[string]string) bool {
	for path, want := range filters {
		if want == "" {
			continue
		}
		v, ok := row.Lookup(path)
		if !ok || !strings.EqualFold(v.Text(), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}
