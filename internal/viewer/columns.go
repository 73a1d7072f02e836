package viewer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/prefs"
)

// Column is one grid column.
type Column struct {
	Field  string
	Header string
	// Width is in terminal cells.
	Width int
}

// Pixel widths by field name, as the web grid sized them.
var widthTable = map[string]int{
	"id":         80,
	"hash":       200,
	"message":    400,
	"title":      300,
	"url":        350,
	"created_at": 150,
	"updated_at": 150,
	"avatar_url": 120,
	"login":      120,
	"name":       150,
	"email":      200,
}

const (
	defaultWidth  = 150
	pixelsPerCell = 10
)

// Width returns the terminal width of field.
func Width(field string) int {
	w, ok := widthTable[field]
	if !ok {
		w = defaultWidth
	}
	return w / pixelsPerCell
}

// Header turns a field name into a column title: "repository_name" -> "Repository Name",
// "author.name" -> "Author Name".
func Header(field string) string {
	words := strings.FieldsFunc(field, func(r rune) bool {
		return r == '_' || r == '.' || r == ' '
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func newColumn(field, header string) Column {
	if header == "" {
		header = Header(field)
	}
	return Column{Field: field, Header: header, Width: Width(field)}
}

// InferColumns derives the grid columns for page. Explicit field metadata (from
// the response, else meta) wins; otherwise the keys of the first row are used in
// order. An empty page has no columns.
func InferColumns(page Page, meta []domain.FieldInfo) []Column {
	if len(page.Rows) == 0 {
		return nil
	}
	fields := page.Fields
	if len(fields) == 0 {
		fields = meta
	}
	if len(fields) > 0 {
		cols := make([]Column, 0, len(fields))
		for _, f := range fields {
			cols = append(cols, newColumn(f.Name, f.DisplayName))
		}
		return cols
	}

	first := page.Rows[0]
	cols := make([]Column, 0, len(first))
	for _, name := range first.Keys() {
		cols = append(cols, newColumn(name, ""))
	}
	return cols
}

// ApplyColumnPrefs reorders, hides and resizes cols per saved preferences.
// Saved entries come first in saved order; columns with no saved entry follow in
// their inferred order. Saved fields the data no longer has are ignored.
func ApplyColumnPrefs(cols []Column, saved []prefs.ColumnPref) []Column {
	if len(saved) == 0 {
		return cols
	}
	byField := make(map[string]Column, len(cols))
	for _, c := range cols {
		byField[c.Field] = c
	}
	seen := make(map[string]bool, len(saved))
	out := make([]Column, 0, len(cols))
	for _, p := range saved {
		c, ok := byField[p.Field]
		if !ok || seen[p.Field] {
			continue
		}
		seen[p.Field] = true
		if p.Hidden {
			continue
		}
		if p.Width > 0 {
			c.Width = p.Width
		}
		out = append(out, c)
	}
	for _, c := range cols {
		if !seen[c.Field] {
			out = append(out, c)
		}
	}
	return out
}

var essentialFields = map[string][]string{
	"issues":        {"github_id", "number", "title", "state", "created_at", "updated_at", "html_url", "user.login", "assignee.login"},
	"commits":       {"sha", "message", "author.name", "author.email", "repository_name", "branch", "created_at_db", "html_url"},
	"repositories":  {"github_id", "name", "full_name", "private", "language", "stargazers_count", "forks_count", "created_at", "updated_at", "html_url"},
	"pull_requests": {"github_id", "number", "title", "state", "created_at", "updated_at", "html_url", "user.login"},
	"organizations": {"github_id", "login", "name", "description", "html_url", "created_at", "updated_at"},
	"users":         {"github_id", "login", "name", "email", "created_at", "updated_at", "html_url"},
	"default":       {"_id", "name", "created_at", "updated_at", "html_url"},
}

// EssentialFields returns the preset field paths for collection.
func EssentialFields(collection string) []string {
	key := "default"
	if kind, ok := domain.ParseKind(collection); ok {
		key = string(kind)
		if kind == domain.KindPullRequests {
			key = "pull_requests"
		}
	}
	return essentialFields[key]
}

// EssentialColumns returns the preset columns of collection that at least one
// row actually carries. It returns nil when none match.
func EssentialColumns(collection string, rows []domain.Record) []Column {
	var cols []Column
	for _, field := range EssentialFields(collection) {
		for _, row := range rows {
			if _, ok := row.Lookup(field); ok {
				cols = append(cols, newColumn(field, ""))
				break
			}
		}
	}
	return cols
}
