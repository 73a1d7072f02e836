package viewer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/h0rv/ghsync/internal/domain"
)

// Result is one completed fetch.
type Result struct {
	Query   domain.Query
	Page    Page
	Columns []Column
	// LocalSearch is true when Query.Search must be applied to Page.Rows by the caller.
	LocalSearch bool
	// LocalSort is true when Page.Rows were sorted after the fetch, so the
	// order holds within this page only.
	LocalSort bool
	// LocalFilters lists the filter keys matched against Page.Rows after the fetch.
	LocalFilters []string
}

// Viewer runs queries through the registry.
type Viewer struct {
	registry     *Registry
	defaultLimit int
}

// New creates a viewer. defaultLimit replaces non-positive query limits.
func New(registry *Registry, defaultLimit int) *Viewer {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &Viewer{registry: registry, defaultLimit: defaultLimit}
}

// Registry returns the source registry.
func (v *Viewer) Registry() *Registry { return v.registry }

// Load fetches one page for q and infers its columns. meta is optional field
// metadata from the catalog.
func (v *Viewer) Load(ctx context.Context, q domain.Query, meta []domain.FieldInfo) (Result, error) {
	if q.Collection == "" {
		return Result{}, fmt.Errorf("no collection selected")
	}
	q = q.Clamp(v.defaultLimit)
	src := v.registry.Source(q.Collection)

	start := time.Now()
	page, err := src.Fetch(ctx, q)
	if err != nil {
		v.registry.logger.Warn("fetch failed", "collection", q.Collection, "page", q.Page, "error", err)
		return Result{}, err
	}
	v.registry.logger.Debug("fetched", "collection", q.Collection, "source", src.Name(),
		"rows", len(page.Rows), "total", page.Total, "duration", time.Since(start))

	res := Result{
		Query:       q,
		Page:        page,
		Columns:     InferColumns(page, meta),
		LocalSearch: !src.SupportsServerSearch(),
	}
	local := map[string]string{}
	for k, val := range q.Filters {
		if val != "" && !src.ServerFilter(k) {
			local[k] = val
			res.LocalFilters = append(res.LocalFilters, k)
		}
	}
	if len(local) > 0 {
		slices.Sort(res.LocalFilters)
		res.Page.Rows = MatchFilters(res.Page.Rows, local)
	}
	if q.SortField != "" && !src.SupportsServerSort() {
		res.LocalSort = true
		res.Page.Rows = SortRows(res.Page.Rows, q.SortField, q.SortOrder)
	}
	return res, nil
}
