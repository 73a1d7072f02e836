package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/h0rv/ghsync/internal/domain"
)

// SyncResult is what a sync endpoint reports on success.
type SyncResult struct {
	Message string
	Data    json.RawMessage
}

// RemoveAuth disconnects the GitHub account on the backend. It does not touch
// the local session cookie.
func (c *Client) RemoveAuth(ctx context.Context) error {
	if _, err := c.data(ctx, http.MethodDelete, "/auth/remove", nil, nil); err != nil {
		return fmt.Errorf("failed to remove auth: %w", err)
	}
	return nil
}

// SyncOrganizations refreshes organizations from GitHub.
func (c *Client) SyncOrganizations(ctx context.Context) (*SyncResult, error) {
	return c.sync(ctx, "/organizations/sync", nil)
}

// SyncRepositories refreshes repositories, optionally for one organization.
func (c *Client) SyncRepositories(ctx context.Context, organizationID string) (*SyncResult, error) {
	return c.sync(ctx, "/repositories/sync", Params{"organization_id": organizationID})
}

// SyncCommits refreshes the commits of one repository, optionally bounded by
// since and until (ISO-8601 dates, passed through verbatim).
func (c *Client) SyncCommits(ctx context.Context, repositoryID, since, until string) (*SyncResult, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("sync commits: repository id required")
	}
	return c.sync(ctx, "/commits/sync/"+url.PathEscape(repositoryID), Params{"since": since, "until": until})
}

// SyncIssues refreshes issues for every repository.
func (c *Client) SyncIssues(ctx context.Context) (*SyncResult, error) {
	return c.sync(ctx, "/issues/sync", nil)
}

// SyncIssuesForRepo refreshes the issues of one repository.
func (c *Client) SyncIssuesForRepo(ctx context.Context, repositoryID string) (*SyncResult, error) {
	if repositoryID == "" {
		return nil, fmt.Errorf("sync issues: repository id required")
	}
	return c.sync(ctx, "/issues/sync/"+url.PathEscape(repositoryID), nil)
}

// SyncPullRequests refreshes pull requests.
func (c *Client) SyncPullRequests(ctx context.Context) (*SyncResult, error) {
	return c.sync(ctx, "/pull-requests/sync", nil)
}

// SyncGithubUsers refreshes GitHub users.
func (c *Client) SyncGithubUsers(ctx context.Context) (*SyncResult, error) {
	return c.sync(ctx, "/github-users/sync", nil)
}

func (c *Client) sync(ctx context.Context, path string, params Params) (*SyncResult, error) {
	env, err := c.Do(ctx, http.MethodPost, path, params, struct{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to sync (%s): %w", path, err)
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	res := &SyncResult{Message: env.Message}
	if raw, ok := env.Value(); ok {
		res.Data = raw
	}
	return res, nil
}

// CreateRecord inserts body into collection and returns the stored record.
func (c *Client) CreateRecord(ctx context.Context, collection string, body domain.Record) (domain.Record, error) {
	raw, err := c.data(ctx, http.MethodPost, "/data/"+url.PathEscape(collection), nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s record: %w", collection, err)
	}
	return decodeData[domain.Record](raw, collection)
}

// UpdateRecord replaces the fields in body on record id and returns the result.
func (c *Client) UpdateRecord(ctx context.Context, collection, id string, body domain.Record) (domain.Record, error) {
	raw, err := c.data(ctx, http.MethodPut, "/data/"+url.PathEscape(collection)+"/"+url.PathEscape(id), nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return decodeData[domain.Record](raw, collection)
}

// DeleteRecord removes record id from collection.
func (c *Client) DeleteRecord(ctx context.Context, collection, id string) error {
	if _, err := c.data(ctx, http.MethodDelete, "/data/"+url.PathEscape(collection)+"/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}
