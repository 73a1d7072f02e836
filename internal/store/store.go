// Package store holds the view-model state of the data grid: the current query,
// the fetched page, the inferred columns and the fetch state machine.
// It is owned by the TUI event loop and is not safe for concurrent use.
package store

import (
	"errors"
	"fmt"

	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/h0rv/ghsync/internal/viewer"
)

var (
	// ErrNoCollection indicates no collection has been selected.
	ErrNoCollection = errors.New("no collection selected")
	// ErrStale indicates a response for a fetch that has since been superseded.
	ErrStale = errors.New("stale response")
	// ErrRowNotFound indicates a row index outside the visible rows.
	ErrRowNotFound = errors.New("row not found")
)

// Phase is the fetch state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseErrored:
		return "errored"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Store manages the grid state for one collection at a time.
type Store struct {
	query domain.Query
	meta  []domain.FieldInfo

	// Fetch state machine
	phase      Phase
	generation uint64
	err        error

	// Last applied result
	rows        []domain.Record
	columns     []viewer.Column
	pagination  domain.PaginationInfo
	localSearch bool
	localSort   bool
	localFilter bool

	// Client-local narrowing
	fieldPath string
	fieldTerm string

	// Column presentation
	essential   bool
	columnPrefs []prefs.ColumnPref

	formatter viewer.Formatter
}

// New creates an idle store. limit is the initial page size.
func New(formatter viewer.Formatter, limit int) *Store {
	return &Store{
		query:     domain.Query{Page: 1, Limit: limit},
		formatter: formatter,
	}
}

// Formatter returns the cell formatter.
func (s *Store) Formatter() viewer.Formatter {
	return s.formatter
}

// Query returns a copy of the current query.
func (s *Store) Query() domain.Query {
	q := s.query
	if s.query.Filters != nil {
		q.Filters = make(map[string]string, len(s.query.Filters))
		for k, v := range s.query.Filters {
			q.Filters[k] = v
		}
	}
	return q
}

// SetCollection switches collection, resetting page, search, sort and filters.
// Rows and columns from the previous collection are dropped.
func (s *Store) SetCollection(name string, meta []domain.FieldInfo) {
	s.query = domain.Query{Collection: name, Page: 1, Limit: s.query.Limit}
	s.meta = meta
	s.fieldPath, s.fieldTerm = "", ""
	s.columnPrefs = nil
	s.Clear()
}

// Meta returns the catalog field metadata of the selected collection.
func (s *Store) Meta() []domain.FieldInfo {
	return s.meta
}

// Collection returns the selected collection name.
func (s *Store) Collection() string {
	return s.query.Collection
}

// SetPage moves to page n (clamped to 1).
func (s *Store) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	s.query.Page = n
}

// SetLimit changes the page size and returns to page 1.
func (s *Store) SetLimit(n int) {
	if n > 0 {
		s.query.Limit = n
		s.query.Page = 1
	}
}

// SetSearch sets the free-text term and returns to page 1. It reports whether the
// term changed.
func (s *Store) SetSearch(term string) bool {
	if term == s.query.Search {
		return false
	}
	s.query.Search = term
	s.query.Page = 1
	return true
}

// SetSort sets the server-side sort. An empty field clears it.
func (s *Store) SetSort(field string, order domain.SortOrder) {
	s.query.SortField = field
	if field == "" {
		order = ""
	}
	s.query.SortOrder = order
	s.query.Page = 1
}

// ToggleSort sorts by field ascending, or flips the order when already sorted by it.
func (s *Store) ToggleSort(field string) {
	order := domain.SortAsc
	if s.query.SortField == field && s.query.SortOrder == domain.SortAsc {
		order = domain.SortDesc
	}
	s.SetSort(field, order)
}

// SetFilter sets filter key to value; an empty value removes it.
func (s *Store) SetFilter(key, value string) {
	if value == "" {
		delete(s.query.Filters, key)
	} else {
		if s.query.Filters == nil {
			s.query.Filters = make(map[string]string)
		}
		s.query.Filters[key] = value
	}
	s.query.Page = 1
}

// SetFieldSearch narrows the loaded rows to those whose value at path contains term.
func (s *Store) SetFieldSearch(path, term string) {
	s.fieldPath, s.fieldTerm = path, term
}

// FieldSearch returns the current field search.
func (s *Store) FieldSearch() (path, term string) {
	return s.fieldPath, s.fieldTerm
}

// SetEssential toggles the essential-columns preset.
func (s *Store) SetEssential(on bool) {
	s.essential = on
}

// Essential reports whether the essential-columns preset is active.
func (s *Store) Essential() bool {
	return s.essential
}

// SetColumnPrefs sets the saved column configuration of the current collection.
func (s *Store) SetColumnPrefs(p []prefs.ColumnPref) {
	s.columnPrefs = p
}

// ColumnPrefs returns the saved column configuration of the current collection.
func (s *Store) ColumnPrefs() []prefs.ColumnPref {
	return s.columnPrefs
}

// MoveColumn shifts visible column i by delta places and returns the new
// column configuration. ok is false when the move is out of range or the
// essential preset is showing.
func (s *Store) MoveColumn(i, delta int) (p []prefs.ColumnPref, ok bool) {
	fields := s.visibleFields()
	j := i + delta
	if fields == nil || i < 0 || i >= len(fields) || j < 0 || j >= len(fields) || i == j {
		return nil, false
	}
	f := fields[i]
	fields = append(fields[:i], fields[i+1:]...)
	fields = append(fields[:j], append([]string{f}, fields[j:]...)...)
	s.columnPrefs = s.layout(fields, "")
	return s.columnPrefs, true
}

// HideColumn hides visible column i and returns the new column configuration.
// The last visible column cannot be hidden.
func (s *Store) HideColumn(i int) (p []prefs.ColumnPref, ok bool) {
	fields := s.visibleFields()
	if len(fields) < 2 || i < 0 || i >= len(fields) {
		return nil, false
	}
	hidden := fields[i]
	fields = append(fields[:i], fields[i+1:]...)
	s.columnPrefs = s.layout(fields, hidden)
	return s.columnPrefs, true
}

// visibleFields returns the fields of the preference-driven columns in order,
// or nil while the essential preset replaces them.
func (s *Store) visibleFields() []string {
	if s.essential && len(viewer.EssentialColumns(s.query.Collection, s.rows)) > 0 {
		return nil
	}
	cols := viewer.ApplyColumnPrefs(s.columns, s.columnPrefs)
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = c.Field
	}
	return fields
}

// layout builds a full configuration: visible fields in order with their saved
// widths, then every hidden field.
func (s *Store) layout(visible []string, hide string) []prefs.ColumnPref {
	widths := map[string]int{}
	var hidden []prefs.ColumnPref
	for _, p := range s.columnPrefs {
		if p.Hidden {
			hidden = append(hidden, p)
		} else {
			widths[p.Field] = p.Width
		}
	}
	out := make([]prefs.ColumnPref, 0, len(visible)+len(hidden)+1)
	for _, f := range visible {
		out = append(out, prefs.ColumnPref{Field: f, Width: widths[f]})
	}
	if hide != "" {
		out = append(out, prefs.ColumnPref{Field: hide, Hidden: true, Width: widths[hide]})
	}
	return append(out, hidden...)
}

// Begin starts a fetch: the phase becomes loading and a new generation is issued.
// Only the result carrying the latest generation will be accepted.
func (s *Store) Begin() (domain.Query, uint64, error) {
	if s.query.Collection == "" {
		return domain.Query{}, 0, ErrNoCollection
	}
	s.generation++
	s.phase = PhaseLoading
	return s.Query(), s.generation, nil
}

// Apply installs the result of fetch gen. Results of superseded fetches are
// dropped with ErrStale and leave the state untouched.
func (s *Store) Apply(gen uint64, res viewer.Result) error {
	if gen != s.generation {
		return ErrStale
	}
	s.phase = PhaseLoaded
	s.err = nil
	s.rows = res.Page.Rows
	s.pagination = res.Page.Pagination
	s.localSearch = res.LocalSearch
	s.localSort = res.LocalSort
	s.localFilter = len(res.LocalFilters) > 0
	s.columns = res.Columns
	return nil
}

// Fail records the failure of fetch gen. Previously loaded rows are kept.
func (s *Store) Fail(gen uint64, err error) error {
	if gen != s.generation {
		return ErrStale
	}
	s.phase = PhaseErrored
	s.err = err
	return nil
}

// Phase returns the fetch state.
func (s *Store) Phase() Phase {
	return s.phase
}

// Generation returns the latest issued fetch generation.
func (s *Store) Generation() uint64 {
	return s.generation
}

// Err returns the error of the last failed fetch.
func (s *Store) Err() error {
	return s.err
}

// Loading reports whether a fetch is outstanding.
func (s *Store) Loading() bool {
	return s.phase == PhaseLoading
}

// LocalSearch reports whether the search term filters locally.
func (s *Store) LocalSearch() bool {
	return s.localSearch
}

// PageLocal reports whether the sort or filters of the last applied page were
// applied to that page only, after the fetch.
func (s *Store) PageLocal() (sorted, filtered bool) {
	return s.localSort, s.localFilter
}

// Pagination returns the paging block of the last applied page.
func (s *Store) Pagination() domain.PaginationInfo {
	return s.pagination
}

// AllRows returns every row of the loaded page.
func (s *Store) AllRows() []domain.Record {
	return s.rows
}

// Rows returns the loaded rows after the local search and field search.
func (s *Store) Rows() []domain.Record {
	rows := s.rows
	if s.localSearch {
		rows = viewer.QuickFilter(rows, s.query.Search, s.formatter)
	}
	return viewer.FieldSearch(rows, s.fieldPath, s.fieldTerm)
}

// Row returns visible row i.
func (s *Store) Row(i int) (domain.Record, error) {
	rows := s.Rows()
	if i < 0 || i >= len(rows) {
		return nil, fmt.Errorf("%w: %d", ErrRowNotFound, i)
	}
	return rows[i], nil
}

// Columns returns the columns to show: the essential preset when enabled and
// applicable, otherwise the inferred columns with saved preferences applied.
func (s *Store) Columns() []viewer.Column {
	if s.essential {
		if cols := viewer.EssentialColumns(s.query.Collection, s.rows); len(cols) > 0 {
			return cols
		}
	}
	return viewer.ApplyColumnPrefs(s.columns, s.columnPrefs)
}

// InferredColumns returns the columns before presets and preferences.
func (s *Store) InferredColumns() []viewer.Column {
	return s.columns
}

// Empty reports whether the last applied page had no rows.
func (s *Store) Empty() bool {
	return s.phase == PhaseLoaded && len(s.rows) == 0
}

// Clear drops the loaded data and returns to idle. Any in-flight fetch becomes stale.
func (s *Store) Clear() {
	s.rows = nil
	s.columns = nil
	s.pagination = domain.PaginationInfo{}
	s.localSearch = false
	s.localSort, s.localFilter = false, false
	s.err = nil
	s.phase = PhaseIdle
	s.generation++
}

// Reset completely resets the store to initial state, keeping the page size.
func (s *Store) Reset() {
	s.query = domain.Query{Page: 1, Limit: s.query.Limit}
	s.meta = nil
	s.fieldPath, s.fieldTerm = "", ""
	s.essential = false
	s.columnPrefs = nil
	s.Clear()
}
