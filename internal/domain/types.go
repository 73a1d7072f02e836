// Package domain defines the normalized types shared by the ghsync client.
// These types describe what the backend returns independent of any one endpoint's
// envelope nesting, which the api and viewer packages take care of.
package domain

import (
	"errors"
	"strings"
)

// Envelope is the uniform wrapper every backend response is expected to use.
// Success=true normally implies Data is present; this is not enforced by the backend.
type Envelope[T any] struct {
	Success bool                `json:"success"`
	Data    *T                  `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// Reason returns the most specific human-readable failure text in the envelope.
func (e Envelope[T]) Reason() string {
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	for field, msgs := range e.Errors {
		if len(msgs) > 0 {
			return field + ": " + msgs[0]
		}
	}
	return ""
}

// Err returns a *SoftError when the backend reported success=false, nil otherwise.
func (e Envelope[T]) Err() error {
	if e.Success {
		return nil
	}
	return &SoftError{Message: e.Reason()}
}

// Value returns the payload. ok is false when success=true arrived without data.
func (e Envelope[T]) Value() (v T, ok bool) {
	if e.Data == nil {
		return v, false
	}
	return *e.Data, true
}

// ErrSoftFailure matches every *SoftError.
var ErrSoftFailure = errors.New("backend reported failure")

// SoftError is a response that arrived intact but carried success=false.
type SoftError struct {
	Message string
}

func (e *SoftError) Error() string {
	if e.Message == "" {
		return ErrSoftFailure.Error()
	}
	return e.Message
}

// Is lets errors.Is(err, ErrSoftFailure) match.
func (e *SoftError) Is(target error) bool {
	return target == ErrSoftFailure
}

// Collection is a named, server-defined tabular dataset.
type Collection struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName,omitempty"`
	Description string      `json:"description,omitempty"`
	Count       int         `json:"count"`
	Fields      []FieldInfo `json:"fields,omitempty"`
	LastUpdated string      `json:"lastUpdated,omitempty"`
}

// Label returns the display name, falling back to the collection name.
func (c Collection) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// FieldInfo describes one column of a collection.
type FieldInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	DisplayName string   `json:"displayName,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Unique      bool     `json:"unique,omitempty"`
	Indexed     bool     `json:"indexed,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// PaginationInfo is the paging block returned next to list data.
type PaginationInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Normalize fills TotalPages, HasNext and HasPrev when the backend left them out.
// Backend-provided values are never overridden.
func (p PaginationInfo) Normalize() PaginationInfo {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.TotalPages == 0 && p.Limit > 0 && p.Total > 0 {
		p.TotalPages = (p.Total + p.Limit - 1) / p.Limit
	}
	if !p.HasNext && p.Page < p.TotalPages {
		p.HasNext = true
	}
	if !p.HasPrev && p.Page > 1 {
		p.HasPrev = true
	}
	return p
}

// SyncStatus is the per-repository issue sync state shown in the issues panel.
type SyncStatus struct {
	RepositoryID   string `json:"repository_id"`
	RepositoryName string `json:"repository_name"`
	FullName       string `json:"full_name"`
	HasIssues      bool   `json:"has_issues"`
	IssueCount     int    `json:"issue_count"`
	NeedsSync      bool   `json:"needs_sync"`
}

// AuthUser is the connected account as reported by the status endpoint.
type AuthUser struct {
	Connected   bool   `json:"connected"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	ConnectedAt string `json:"connected_at"`
	Status      string `json:"status"`
}

// SortOrder is the direction of a server-side sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Query is the full set of inputs to one tabular fetch.
type Query struct {
	Collection string
	Page       int
	Limit      int
	Search     string
	SortField  string
	SortOrder  SortOrder
	Filters    map[string]string
}

// Clamp returns a copy of q with Page and Limit forced into their valid ranges.
func (q Query) Clamp(defaultLimit int) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		q.SortOrder = ""
	}
	return q
}

// EntityKind identifies one of the entity types the backend can synchronize.
type EntityKind string

const (
	KindOrganizations EntityKind = "organizations"
	KindRepositories  EntityKind = "repositories"
	KindCommits       EntityKind = "commits"
	KindIssues        EntityKind = "issues"
	KindPullRequests  EntityKind = "pull-requests"
	KindUsers         EntityKind = "users"
)

// AllKinds lists every entity kind in dashboard order.
var AllKinds = []EntityKind{
	KindOrganizations,
	KindRepositories,
	KindCommits,
	KindPullRequests,
	KindIssues,
	KindUsers,
}

// Label returns the human-readable plural name of the kind.
func (k EntityKind) Label() string {
	switch k {
	case KindOrganizations:
		return "Organizations"
	case KindRepositories:
		return "Repositories"
	case KindCommits:
		return "Commits"
	case KindIssues:
		return "Issues"
	case KindPullRequests:
		return "Pull Requests"
	case KindUsers:
		return "Users"
	}
	return string(k)
}

// ParseKind resolves user input ("pull_requests", "PRs", "github-users", ...) to a kind.
func ParseKind(s string) (EntityKind, bool) {
	switch strings.ToLower(strings.NewReplacer("_", "-", " ", "-").Replace(strings.TrimSpace(s))) {
	case "organizations", "organization", "orgs", "org":
		return KindOrganizations, true
	case "repositories", "repository", "repos", "repo":
		return KindRepositories, true
	case "commits", "commit":
		return KindCommits, true
	case "issues", "issue":
		return KindIssues, true
	case "pull-requests", "pull-request", "pullrequests", "pulls", "prs", "pr":
		return KindPullRequests, true
	case "users", "user", "github-users", "github-user", "githubusers":
		return KindUsers, true
	}
	return "", false
}
