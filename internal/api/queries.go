package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/h0rv/ghsync/internal/domain"
)

// ListOptions are the query parameters of the per-entity list endpoints.
// Fields an endpoint does not understand are simply left empty.
type ListOptions struct {
	Page           int
	Limit          int
	Search         string
	OrganizationID string
	RepositoryID   string
	Author         string
}

func (o ListOptions) params() Params {
	p := Params{
		"search":          o.Search,
		"organization_id": o.OrganizationID,
		"repository_id":   o.RepositoryID,
		"author":          o.Author,
	}
	p.SetInt("page", o.Page)
	p.SetInt("limit", o.Limit)
	return p
}

// SearchOptions are the query parameters of the generic collection search.
type SearchOptions struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder domain.SortOrder
	Filters   map[string]string
}

// SearchOptionsFromQuery maps a viewer query onto the generic search parameters.
func SearchOptionsFromQuery(q domain.Query) SearchOptions {
	return SearchOptions{
		Page:      q.Page,
		Limit:     q.Limit,
		Search:    q.Search,
		SortBy:    q.SortField,
		SortOrder: q.SortOrder,
		Filters:   q.Filters,
	}
}

func (o SearchOptions) params() Params {
	p := Params{
		"search":    o.Search,
		"sortBy":    o.SortBy,
		"sortOrder": string(o.SortOrder),
	}
	p.SetInt("page", o.Page)
	p.SetInt("limit", o.Limit)
	for k, v := range o.Filters {
		p["filter["+k+"]"] = v
	}
	return p
}

// AuthStatus returns the connected account. A user with Connected=false is
// returned as-is; interpreting it is up to the caller.
func (c *Client) AuthStatus(ctx context.Context) (*domain.AuthUser, error) {
	raw, err := c.data(ctx, http.MethodGet, "/auth/status", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth status: %w", err)
	}
	user, err := decodeData[domain.AuthUser](raw, "auth status")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListOrganizations returns the raw organizations listing.
func (c *Client) ListOrganizations(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	return c.list(ctx, "/organizations", ListOptions{Page: opts.Page, Limit: opts.Limit, Search: opts.Search})
}

// GetOrganization returns one organization by backend id.
func (c *Client) GetOrganization(ctx context.Context, id string) (domain.Record, error) {
	return c.record(ctx, "/organizations/"+url.PathEscape(id), "organization")
}

// GetOrganizationByGithubID returns one organization by its GitHub id.
func (c *Client) GetOrganizationByGithubID(ctx context.Context, githubID string) (domain.Record, error) {
	return c.record(ctx, "/organizations/github/"+url.PathEscape(githubID), "organization")
}

// ListRepositories returns the raw repositories listing.
func (c *Client) ListRepositories(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	return c.list(ctx, "/repositories", ListOptions{
		Page: opts.Page, Limit: opts.Limit, Search: opts.Search, OrganizationID: opts.OrganizationID,
	})
}

// GetRepository returns one repository by backend id.
func (c *Client) GetRepository(ctx context.Context, id string) (domain.Record, error) {
	return c.record(ctx, "/repositories/"+url.PathEscape(id), "repository")
}

// GetRepositoryByGithubID returns one repository by its GitHub id.
func (c *Client) GetRepositoryByGithubID(ctx context.Context, githubID string) (domain.Record, error) {
	return c.record(ctx, "/repositories/github/"+url.PathEscape(githubID), "repository")
}

// RepositoryStats returns the statistics block of one repository.
func (c *Client) RepositoryStats(ctx context.Context, id string) (domain.Record, error) {
	return c.record(ctx, "/repositories/"+url.PathEscape(id)+"/stats", "repository stats")
}

// ListCommits returns the raw commits listing.
func (c *Client) ListCommits(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	return c.list(ctx, "/commits", ListOptions{
		Page: opts.Page, Limit: opts.Limit, RepositoryID: opts.RepositoryID, Author: opts.Author,
	})
}

// GetCommit returns one commit by backend id.
func (c *Client) GetCommit(ctx context.Context, id string) (domain.Record, error) {
	return c.record(ctx, "/commits/"+url.PathEscape(id), "commit")
}

// GetCommitBySHA returns one commit by its hash.
func (c *Client) GetCommitBySHA(ctx context.Context, sha string) (domain.Record, error) {
	return c.record(ctx, "/commits/sha/"+url.PathEscape(sha), "commit")
}

// CommitStats returns commit statistics for one repository.
func (c *Client) CommitStats(ctx context.Context, repositoryID string) (domain.Record, error) {
	return c.record(ctx, "/commits/stats/"+url.PathEscape(repositoryID), "commit stats")
}

// ListIssues returns the raw issues listing.
func (c *Client) ListIssues(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	return c.list(ctx, "/issues", ListOptions{Page: opts.Page, Limit: opts.Limit})
}

// IssuesSyncStatus returns the per-repository issue sync state.
func (c *Client) IssuesSyncStatus(ctx context.Context) ([]domain.SyncStatus, error) {
	raw, err := c.data(ctx, http.MethodGet, "/issues/sync-status", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get issues sync status: %w", err)
	}
	// Either a bare list or {repositories: [...]}.
	if list, err := decodeData[[]domain.SyncStatus](raw, "issues sync status"); err == nil {
		return list, nil
	}
	wrapped, err := decodeData[struct {
		Repositories []domain.SyncStatus `json:"repositories"`
	}](raw, "issues sync status")
	if err != nil {
		return nil, err
	}
	return wrapped.Repositories, nil
}

// ListPullRequests returns the raw pull requests listing.
func (c *Client) ListPullRequests(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	return c.list(ctx, "/pull-requests", ListOptions{Page: opts.Page, Limit: opts.Limit})
}

// ListGithubUsers returns the raw GitHub users listing.
func (c *Client) ListGithubUsers(ctx context.Context, opts ListOptions) (json.RawMessage, error) {
	return c.list(ctx, "/github-users", ListOptions{Page: opts.Page, Limit: opts.Limit})
}

// Collections lists the collections known to the generic data API.
func (c *Client) Collections(ctx context.Context) ([]domain.Collection, error) {
	raw, err := c.data(ctx, http.MethodGet, "/data/collections", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return decodeData[[]domain.Collection](raw, "collections")
}

// CollectionSchema returns one collection with its field metadata.
func (c *Client) CollectionSchema(ctx context.Context, name string) (*domain.Collection, error) {
	raw, err := c.data(ctx, http.MethodGet, "/data/collections/"+url.PathEscape(name), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema of %s: %w", name, err)
	}
	col, err := decodeData[domain.Collection](raw, "collection schema")
	if err != nil {
		return nil, err
	}
	if col.Name == "" {
		col.Name = name
	}
	return &col, nil
}

// SearchCollection runs the generic search over one collection and returns the raw payload.
func (c *Client) SearchCollection(ctx context.Context, name string, opts SearchOptions) (json.RawMessage, error) {
	raw, err := c.data(ctx, http.MethodGet, "/data/search/"+url.PathEscape(name), opts.params(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	return raw, nil
}

// GetRecord returns one record of a collection by id.
func (c *Client) GetRecord(ctx context.Context, collection, id string) (domain.Record, error) {
	return c.record(ctx, "/data/"+url.PathEscape(collection)+"/"+url.PathEscape(id), collection)
}

// CollectionStats returns the statistics block of one collection.
func (c *Client) CollectionStats(ctx context.Context, name string) (domain.Record, error) {
	return c.record(ctx, "/data/stats/"+url.PathEscape(name), "collection stats")
}

// GlobalSearch searches every collection and returns the raw result list.
func (c *Client) GlobalSearch(ctx context.Context, query string, page, limit int) (json.RawMessage, error) {
	p := Params{"q": query}
	p.SetInt("page", page)
	p.SetInt("limit", limit)
	raw, err := c.data(ctx, http.MethodGet, "/data/global-search", p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to run global search: %w", err)
	}
	return raw, nil
}

// ExportFormat is the file format of an export.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportJSON  ExportFormat = "json"
	ExportExcel ExportFormat = "excel"
)

// ParseExportFormat validates a user-supplied format name.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(s); f {
	case ExportCSV, ExportJSON, ExportExcel:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want csv, json or excel)", s)
}

// Export downloads a collection in format, narrowed by search and filters.
// It returns the response content type and the number of bytes written.
func (c *Client) Export(ctx context.Context, name string, format ExportFormat, opts SearchOptions, w io.Writer) (string, int64, error) {
	p := Params{"format": string(format), "search": opts.Search}
	for k, v := range opts.Filters {
		p["filter["+k+"]"] = v
	}
	ct, n, err := c.Download(ctx, "/data/export/"+url.PathEscape(name), p, w)
	if err != nil {
		return "", n, fmt.Errorf("failed to export %s: %w", name, err)
	}
	return ct, n, nil
}

// RawCollectionNames lists collection names from the legacy /collections route.
func (c *Client) RawCollectionNames(ctx context.Context) ([]string, error) {
	raw, err := c.data(ctx, http.MethodGet, "/collections", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	// {data: [names]} or a bare list.
	if names, err := decodeData[[]string](raw, "collection names"); err == nil {
		return names, nil
	}
	wrapped, err := decodeData[struct {
		Data []string `json:"data"`
	}](raw, "collection names")
	if err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

// RawCollectionData reads one page from the legacy /collections/{name} route.
// Filters are sent as plain query keys.
func (c *Client) RawCollectionData(ctx context.Context, name string, q domain.Query) (json.RawMessage, error) {
	p := Params{
		"search":    q.Search,
		"sortField": q.SortField,
		"sortOrder": string(q.SortOrder),
	}
	for k, v := range q.Filters {
		p[k] = v
	}
	p.SetInt("page", q.Page)
	p.SetInt("limit", q.Limit)
	raw, err := c.data(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return raw, nil
}

func (c *Client) list(ctx context.Context, path string, opts ListOptions) (json.RawMessage, error) {
	raw, err := c.data(ctx, http.MethodGet, path, opts.params(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path[1:], err)
	}
	return raw, nil
}

func (c *Client) record(ctx context.Context, path, what string) (domain.Record, error) {
	raw, err := c.data(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return decodeData[domain.Record](raw, what)
}
