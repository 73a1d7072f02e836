package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/h0rv/ghsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCollection_OmitsEmptyFilter(t *testing.T) {
	var query map[string][]string
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"success":true,"data":{"data":[],"pagination":{"page":1,"limit":10,"total":0}}}`))
	})

	_, err := c.SearchCollection(context.Background(), "commits", SearchOptions{
		Page:      2,
		Limit:     10,
		SortBy:    "created_at",
		SortOrder: domain.SortDesc,
		Filters:   map[string]string{"state": "", "repository_name": "core"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/data/search/commits", path)
	assert.Equal(t, []string{"core"}, query["filter[repository_name]"])
	assert.NotContains(t, query, "filter[state]")
	assert.NotContains(t, query, "search")
	assert.Equal(t, []string{"2"}, query["page"])
	assert.Equal(t, []string{"created_at"}, query["sortBy"])
	assert.Equal(t, []string{"desc"}, query["sortOrder"])
}

func TestRawCollectionData_PlainFilterKeys(t *testing.T) {
	var query map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"success":true,"data":{"fields":["a"],"data":[{"a":1}]}}`))
	})

	raw, err := c.RawCollectionData(context.Background(), "issues", domain.Query{
		Page:      1,
		Limit:     100,
		SortField: "number",
		Filters:   map[string]string{"state": "open", "label": ""},
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"fields"`)
	assert.Equal(t, []string{"open"}, query["state"])
	assert.NotContains(t, query, "label")
	assert.Equal(t, []string{"number"}, query["sortField"])
	assert.NotContains(t, query, "sortOrder")
}

func TestListRepositories_Params(t *testing.T) {
	var query map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	})

	_, err := c.ListRepositories(context.Background(), ListOptions{
		Page: 1, Limit: 10, Search: "core", OrganizationID: "org1", Author: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, query["search"])
	assert.Equal(t, []string{"org1"}, query["organization_id"])
	assert.NotContains(t, query, "author")
}

func TestAuthStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"connected":true,"username":"octo","connected_at":"2024-01-01T00:00:00.000Z","status":"active"}}`))
	})

	user, err := c.AuthStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, user.Connected)
	assert.Equal(t, "octo", user.Username)
}

func TestAuthStatus_NoData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	_, err := c.AuthStatus(context.Background())
	assert.ErrorIs(t, err, ErrShape)
}

func TestIssuesSyncStatus_BothShapes(t *testing.T) {
	bodies := []string{
		`{"success":true,"data":[{"repository_id":"r1","full_name":"acme/core","needs_sync":true}]}`,
		`{"success":true,"data":{"repositories":[{"repository_id":"r1","full_name":"acme/core","needs_sync":true}]}}`,
	}
	for _, body := range bodies {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		list, err := c.IssuesSyncStatus(context.Background())
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "acme/core", list[0].FullName)
		assert.True(t, list[0].NeedsSync)
	}
}

func TestCollections(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[{"name":"commits","displayName":"Commits","count":12}]}`))
	})

	cols, err := c.Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "Commits", cols[0].Label())
	assert.Equal(t, 12, cols[0].Count)
}

func TestRawCollectionNames(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":["issues","commits"]}`))
	})

	names, err := c.RawCollectionNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"issues", "commits"}, names)
}

func TestGetRecord_KeepsOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data/commits/abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"sha":"abc","message":"m","_id":"abc"}}`))
	})

	rec, err := c.GetRecord(context.Background(), "commits", "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"sha", "message", "_id"}, rec.Keys())
}

func TestPathSegmentsAreEscaped(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath()+"?"+r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"x"}}`))
	})
	ctx := context.Background()

	_, err := c.GetOrganization(ctx, "a/b")
	require.NoError(t, err)
	_, err = c.RepositoryStats(ctx, "../users")
	require.NoError(t, err)
	_, err = c.GetRecord(ctx, "my widgets", "id?x=1")
	require.NoError(t, err)
	_, err = c.SearchCollection(ctx, "a#b", SearchOptions{Page: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/organizations/a%2Fb?",
		"/api/repositories/..%2Fusers/stats?",
		"/api/data/my%20widgets/id%3Fx=1?",
		"/api/data/search/a%23b?page=1",
	}, paths)
}

func TestPlainPathsUnchanged(t *testing.T) {
	var path string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"x"}}`))
	})

	_, err := c.GetCommitBySHA(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "/api/commits/sha/abc123", path)
}

func TestExport(t *testing.T) {
	var query map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "sha,message\nabc,m\n")
	})

	var buf bytes.Buffer
	ct, n, err := c.Export(context.Background(), "commits", ExportCSV, SearchOptions{
		Filters: map[string]string{"author": "ada", "state": ""},
	}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", ct)
	assert.EqualValues(t, buf.Len(), n)
	assert.Equal(t, "sha,message\nabc,m\n", buf.String())
	assert.Equal(t, []string{"csv"}, query["format"])
	assert.Equal(t, []string{"ada"}, query["filter[author]"])
	assert.NotContains(t, query, "filter[state]")
}

func TestExport_StatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"bad format"}`))
	})

	var buf bytes.Buffer
	_, _, err := c.Export(context.Background(), "commits", ExportJSON, SearchOptions{}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad format")
	assert.Zero(t, buf.Len())
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, ExportExcel, f)

	_, err = ParseExportFormat("xml")
	assert.Error(t, err)
}
