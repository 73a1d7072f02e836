// Package viewer turns an arbitrary backend collection into rows and columns.
// Per-entity endpoints and the generic search endpoint sit behind one Source
// interface; whatever envelope nesting a source returns is normalized into a Page.
package viewer

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/domain"
)

// Source fetches one page of a collection.
type Source interface {
	Name() string
	// SupportsServerSearch reports whether Query.Search is sent to the backend.
	// When false the caller filters the fetched rows locally instead.
	SupportsServerSearch() bool
	// SupportsServerSort reports whether Query.SortField and SortOrder are sent
	// to the backend. When false the caller sorts the fetched rows.
	SupportsServerSort() bool
	// ServerFilter reports whether the filter key is applied by the backend.
	// Other keys are matched against the fetched rows.
	ServerFilter(key string) bool
	Fetch(ctx context.Context, q domain.Query) (Page, error)
}

// Backend is the part of the API client the sources use.
type Backend interface {
	ListOrganizations(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)
	ListRepositories(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)
	ListCommits(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)
	ListIssues(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)
	ListPullRequests(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)
	ListGithubUsers(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)
	SearchCollection(ctx context.Context, name string, opts api.SearchOptions) (json.RawMessage, error)
	RawCollectionData(ctx context.Context, name string, q domain.Query) (json.RawMessage, error)
}

type listFunc func(ctx context.Context, opts api.ListOptions) (json.RawMessage, error)

// entitySource reads a dedicated per-entity list endpoint.
type entitySource struct {
	name         string
	listKey      string // key holding the rows in {<listKey>: [...], pagination}
	serverSearch bool
	filters      []string // filter keys the endpoint accepts as query params
	list         listFunc
}

func (s *entitySource) Name() string               { return s.name }
func (s *entitySource) SupportsServerSearch() bool { return s.serverSearch }
func (s *entitySource) SupportsServerSort() bool   { return false }

func (s *entitySource) ServerFilter(key string) bool {
	return slices.Contains(s.filters, key)
}

func (s *entitySource) Fetch(ctx context.Context, q domain.Query) (Page, error) {
	opts := api.ListOptions{Page: q.Page, Limit: q.Limit}
	for _, k := range s.filters {
		switch v := q.Filters[k]; k {
		case "organization_id":
			opts.OrganizationID = v
		case "repository_id":
			opts.RepositoryID = v
		case "author":
			opts.Author = v
		}
	}
	if s.serverSearch {
		opts.Search = q.Search
	}
	raw, err := s.list(ctx, opts)
	if err != nil {
		return Page{}, err
	}
	return Normalize(raw, s.listKey, q)
}

// searchSource reads the generic /data/search endpoint. Free-text search is
// applied locally, matching the generic grid.
type searchSource struct {
	backend Backend
	name    string
}

func (s *searchSource) Name() string               { return s.name }
func (s *searchSource) SupportsServerSearch() bool { return false }
func (s *searchSource) SupportsServerSort() bool   { return true }
func (s *searchSource) ServerFilter(string) bool   { return true }

func (s *searchSource) Fetch(ctx context.Context, q domain.Query) (Page, error) {
	opts := api.SearchOptionsFromQuery(q)
	opts.Search = ""
	raw, err := s.backend.SearchCollection(ctx, s.name, opts)
	if err != nil {
		return Page{}, err
	}
	return Normalize(raw, s.name, q)
}

// rawSource reads the legacy /collections/{name} route.
type rawSource struct {
	backend Backend
	name    string
}

func (s *rawSource) Name() string               { return s.name }
func (s *rawSource) SupportsServerSearch() bool { return true }
func (s *rawSource) SupportsServerSort() bool   { return true }
func (s *rawSource) ServerFilter(string) bool   { return true }

func (s *rawSource) Fetch(ctx context.Context, q domain.Query) (Page, error) {
	raw, err := s.backend.RawCollectionData(ctx, s.name, q)
	if err != nil {
		return Page{}, err
	}
	return Normalize(raw, s.name, q)
}

// ListKey returns the key an entity listing nests its rows under.
func ListKey(kind domain.EntityKind) string {
	switch kind {
	case domain.KindPullRequests:
		return "pullRequests"
	case domain.KindUsers:
		return "githubUsers"
	}
	return string(kind)
}

// Registry maps collection names to sources.
type Registry struct {
	backend Backend
	logger  *slog.Logger
	legacy  atomic.Bool
}

// NewRegistry creates a registry over backend.
func NewRegistry(backend Backend, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{backend: backend, logger: logger.With("component", "viewer")}
}

// SetLegacy switches unregistered collections from the generic search endpoint
// to the legacy /collections route.
func (r *Registry) SetLegacy(legacy bool) {
	r.legacy.Store(legacy)
}

// Source returns the strategy for collection: the dedicated endpoint of a known
// entity kind, otherwise the generic (or legacy) collection reader.
func (r *Registry) Source(collection string) Source {
	if kind, ok := domain.ParseKind(collection); ok {
		return r.entity(kind)
	}
	if r.legacy.Load() {
		return &rawSource{backend: r.backend, name: collection}
	}
	return &searchSource{backend: r.backend, name: collection}
}

func (r *Registry) entity(kind domain.EntityKind) Source {
	s := &entitySource{name: string(kind), listKey: ListKey(kind)}
	switch kind {
	case domain.KindOrganizations:
		s.list, s.serverSearch = r.backend.ListOrganizations, true
	case domain.KindRepositories:
		s.list, s.serverSearch = r.backend.ListRepositories, true
		s.filters = []string{"organization_id"}
	case domain.KindCommits:
		s.list = r.backend.ListCommits
		s.filters = []string{"repository_id", "author"}
	case domain.KindIssues:
		s.list = r.backend.ListIssues
	case domain.KindPullRequests:
		s.list = r.backend.ListPullRequests
	case domain.KindUsers:
		s.list = r.backend.ListGithubUsers
	}
	return s
}
