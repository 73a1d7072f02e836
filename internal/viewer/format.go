package viewer

import (
	"regexp"
	"strings"
	"time"

	"github.com/h0rv/ghsync/internal/domain"
)

// LinkLabel stands in for URL values in the grid.
const LinkLabel = "🔗 Link"

// TimeLayout is how timestamps are shown.
const TimeLayout = "2006-01-02 15:04:05"

var isoTimestamp = regexp.MustCompile(`T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

// IsURLField reports whether field holds a link: html_url, url or *_url.
func IsURLField(field string) bool {
	if i := strings.LastIndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	return field == "html_url" || field == "url" || strings.HasSuffix(field, "_url")
}

// Formatter renders cell values.
type Formatter struct {
	// Loc is the zone timestamps are shown in; nil means time.Local.
	Loc *time.Location
}

// Cell renders field of row for the grid.
func (f Formatter) Cell(row domain.Record, field string) string {
	v, ok := row.Lookup(field)
	if !ok {
		return ""
	}
	if IsURLField(field) && v.Kind == domain.KindString && v.Str != "" {
		return LinkLabel
	}
	return f.Text(v)
}

// Text renders v in full: people as "Name <email>", other objects and arrays as
// compact JSON, ISO timestamps in Loc, everything else as its plain text.
func (f Formatter) Text(v domain.Value) string {
	switch v.Kind {
	case domain.KindObject:
		name, okName := v.Object.Get("name")
		email, okEmail := v.Object.Get("email")
		if okName && okEmail && name.Text() != "" && email.Text() != "" {
			return name.Text() + " <" + email.Text() + ">"
		}
		return v.Text()
	case domain.KindString:
		if isoTimestamp.MatchString(v.Str) {
			if t, err := time.Parse(time.RFC3339Nano, v.Str); err == nil {
				return t.In(f.location()).Format(TimeLayout)
			}
		}
		return v.Str
	}
	return v.Text()
}

// Links returns the (field, url) pairs of row in field order, for opening in a browser.
func Links(row domain.Record) [][2]string {
	var out [][2]string
	for _, fld := range row {
		if IsURLField(fld.Name) && fld.Value.Kind == domain.KindString && fld.Value.Str != "" {
			out = append(out, [2]string{fld.Name, fld.Value.Str})
		}
	}
	return out
}

func (f Formatter) location() *time.Location {
	if f.Loc == nil {
		return time.Local
	}
	return f.Loc
}
