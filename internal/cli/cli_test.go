package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves the subset of the backend API the commands call.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []string
	queries  map[string]map[string][]string
	noData   bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{t: t, queries: make(map[string]map[string][]string)}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) URL() string { return fb.srv.URL + "/api" }

func (fb *fakeBackend) Requests() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.requests...)
}

func (fb *fakeBackend) Query(path string) map[string][]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.queries[path]
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.requests = append(fb.requests, r.Method+" "+r.URL.Path)
	fb.queries[r.URL.Path] = r.URL.Query()
	noData := fb.noData
	fb.mu.Unlock()

	ok := func(body string) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
	cookie, _ := r.Cookie("connect.sid")

	switch r.Method + " " + r.URL.Path {
	case "GET /api/auth/status":
		if cookie == nil || cookie.Value != "abc" {
			ok(`{"success":true,"data":{"connected":false}}`)
			return
		}
		ok(`{"success":true,"data":{"connected":true,"username":"octo","display_name":"Octo Cat","status":"active"}}`)
	case "DELETE /api/auth/remove":
		ok(`{"success":true,"message":"removed"}`)
	case "GET /api/data/collections":
		if noData {
			http.NotFound(w, r)
			return
		}
		ok(`{"success":true,"data":[{"name":"widgets","displayName":"Widgets","count":2,"fields":[{"name":"title","type":"string"}]}]}`)
	case "GET /api/collections":
		ok(`{"data":["widgets"]}`)
	case "GET /api/data/collections/widgets":
		if noData {
			http.NotFound(w, r)
			return
		}
		ok(`{"success":true,"data":{"name":"widgets","fields":[{"name":"title","type":"string","required":true}]}}`)
	case "GET /api/data/search/widgets":
		if noData {
			http.NotFound(w, r)
			return
		}
		ok(`{"success":true,"data":{"data":[{"_id":"w1","title":"fix login"},{"_id":"w2","title":"add export"}],"pagination":{"page":1,"limit":2,"total":4,"totalPages":2}}}`)
	case "GET /api/collections/widgets":
		ok(`{"success":true,"data":[{"_id":"legacy1","title":"from legacy"}]}`)
	case "GET /api/repositories":
		ok(`{"success":true,"data":{"repositories":[{"github_id":1,"name":"core","full_name":"acme/core","html_url":"https://github.com/acme/core"},{"github_id":2,"name":"web","full_name":"acme/web","html_url":"https://github.com/acme/web"}],"pagination":{"page":1,"limit":100,"total":2,"totalPages":1}}}`)
	case "POST /api/organizations/sync":
		ok(`{"success":true,"message":"Synced 3 organizations","data":{"count":3}}`)
	case "POST /api/repositories/sync":
		ok(`{"success":true,"message":"Synced 5 repositories"}`)
	case "GET /api/issues/sync-status":
		ok(`{"success":true,"data":[{"repository_id":"r1","full_name":"acme/core","issue_count":3,"needs_sync":true},{"repository_id":"r2","full_name":"acme/web","issue_count":0,"needs_sync":false}]}`)
	case "GET /api/data/export/widgets":
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("_id,title\nw1,fix login\n"))
	case "GET /api/data/stats/widgets":
		ok(`{"success":true,"data":{"count":2,"lastUpdated":"2024-01-01T00:00:00.000Z"}}`)
	default:
		http.NotFound(w, r)
	}
}

// isolate points every per-user path at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("GHSYNC_PREFS_PATH", filepath.Join(dir, "prefs.db"))
	t.Setenv("GHSYNC_SESSION", "")
	return dir
}

// run executes one command line and returns stdout and stderr.
func run(t *testing.T, fb *fakeBackend, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--base-url", fb.URL()))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "ghsync", cmd.Use)
	assert.NotEmpty(t, cmd.Short)

	for _, name := range []string{"config", "base-url", "session", "prefs-path", "page-size", "timezone", "log-level", "log-format", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "persistent flag %s", name)
	}
	assert.NotNil(t, cmd.Flags().Lookup("collection"))

	want := []string{"status", "login", "logout", "collections", "schema", "rows", "export", "stats", "search", "sync", "sync-status", "prefs"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRowsCmd_Flags(t *testing.T) {
	cmd := newRowsCmd()
	assert.Equal(t, "rows <collection>", cmd.Use)
	for _, name := range []string{"page", "limit", "search", "sort", "order", "filter", "field", "essential", "columns"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "s", cmd.Flags().Lookup("search").Shorthand)
}

func TestParseOutputFormat(t *testing.T) {
	f, err := parseOutputFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, formatJSON, f)

	f, err = parseOutputFormat("md")
	require.NoError(t, err)
	assert.Equal(t, formatMarkdown, f)

	_, err = parseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestStatus_NotConnected(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not connected")
}

func TestStatus_Connected(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "status", "--session", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "@octo")
	assert.Contains(t, out, "Octo Cat")

	out, _, err = run(t, fb, "", "status", "--session", "connect.sid=abc", "--output", "json")
	require.NoError(t, err)
	var user map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "octo", user["username"])
}

func TestLogin_StoresSession(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	var opened string
	prev := openURL
	openURL = func(u string) error { opened = u; return nil }
	t.Cleanup(func() { openURL = prev })

	out, _, err := run(t, fb, "Cookie: theme=dark; connect.sid=abc\n", "login")
	require.NoError(t, err)
	assert.Equal(t, fb.URL()+"/auth/github", opened)
	assert.Contains(t, out, "Connected as @octo")

	// The stored session is picked up without --session.
	out, _, err = run(t, fb, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "@octo")

	out, _, err = run(t, fb, "", "prefs", "get", "session")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, strings.TrimSpace(out))
}

func TestLogin_RejectedSession(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	_, _, err := run(t, fb, "wrong\n", "login", "--no-browser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not accept")

	_, _, err = run(t, fb, "", "login", "--no-browser")
	assert.EqualError(t, err, "no session entered")
}

func TestLogout_ForgetsSession(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)
	prev := openURL
	openURL = func(string) error { return nil }
	t.Cleanup(func() { openURL = prev })

	_, _, err := run(t, fb, "abc\n", "login")
	require.NoError(t, err)

	out, _, err := run(t, fb, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Disconnected.")
	assert.Contains(t, fb.Requests(), "DELETE /api/auth/remove")

	out, _, err = run(t, fb, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not connected")
}

func TestCollections_Table(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "widgets")
	assert.Contains(t, out, "Widgets")
	assert.Contains(t, out, "Display Name")
}

func TestCollections_LegacyFallback(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)
	fb.noData = true

	out, errOut, err := run(t, fb, "", "collections", "--output", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "widgets")
	assert.Contains(t, errOut, "legacy")
}

func TestSchema(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "schema", "widgets", "--output", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "| title")
	assert.Contains(t, out, "yes")
}

func TestRows_EntityKindJSON(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, errOut, err := run(t, fb, "", "rows", "repos", "--search", "core", "--output", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "acme/core", rows[0]["full_name"])
	assert.Equal(t, []string{"core"}, fb.Query("/api/repositories")["search"], "repositories search on the server")
	assert.Contains(t, errOut, "page 1/1")
}

func TestRows_EntitySortAndFilterWithinPage(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, errOut, err := run(t, fb, "", "rows", "repos", "--sort", "github_id", "--order", "desc",
		"--filter", "name=core", "--filter", "organization_id=7", "--output", "json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "acme/core", rows[0]["full_name"])
	q := fb.Query("/api/repositories")
	assert.Equal(t, []string{"7"}, q["organization_id"])
	assert.NotContains(t, q, "name")
	assert.Contains(t, errOut, "(sorted and filtered within this page only)")

	out, _, err = run(t, fb, "", "rows", "repos", "--sort", "github_id", "--order", "desc", "--output", "json")
	require.NoError(t, err)
	var sorted []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sorted))
	require.Len(t, sorted, 2)
	assert.Equal(t, "acme/web", sorted[0]["full_name"])
}

func TestRows_GenericCollectionTable(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, errOut, err := run(t, fb, "", "rows", "widgets", "--limit", "2", "--sort", "title", "--order", "desc", "--filter", "state=open")
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "fix login")
	assert.Contains(t, errOut, "page 1/2, 2 rows of 4")

	q := fb.Query("/api/data/search/widgets")
	assert.Equal(t, []string{"title"}, q["sortBy"])
	assert.Equal(t, []string{"desc"}, q["sortOrder"])
	assert.Equal(t, []string{"open"}, q["filter[state]"])
	assert.Equal(t, []string{"2"}, q["limit"])
}

func TestRows_LocalSearchAndFieldFilter(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, errOut, err := run(t, fb, "", "rows", "widgets", "--search", "export")
	require.NoError(t, err)
	assert.Contains(t, out, "add export")
	assert.NotContains(t, out, "fix login")
	assert.Contains(t, errOut, "this page only")

	out, _, err = run(t, fb, "", "rows", "widgets", "--field", "title=login", "--columns", "_id")
	require.NoError(t, err)
	assert.Contains(t, out, "w1")
	assert.NotContains(t, out, "w2")
	assert.NotContains(t, out, "Title", "only the requested columns")

	_, _, err = run(t, fb, "", "rows", "widgets", "--field", "title")
	assert.Error(t, err)
	_, _, err = run(t, fb, "", "rows", "widgets", "--order", "sideways")
	assert.Error(t, err)
}

func TestRows_LegacyFallback(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)
	fb.noData = true

	out, _, err := run(t, fb, "", "rows", "widgets")
	require.NoError(t, err)
	assert.Contains(t, out, "from legacy")
	assert.Contains(t, fb.Requests(), "GET /api/collections/widgets")
}

func TestSync_Kind(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "sync", "orgs")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 3 organizations")
	assert.Contains(t, fb.Requests(), "POST /api/organizations/sync")

	out, _, err = run(t, fb, "", "sync", "organizations", "--output", "json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "organizations", res["key"])
	assert.Equal(t, "Synced 3 organizations", res["message"])
}

func TestSync_Integration(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "sync", "integration")
	require.NoError(t, err)
	assert.Contains(t, out, "Synced 5 repositories")
	assert.Equal(t, []string{"POST /api/organizations/sync", "POST /api/repositories/sync"}, fb.Requests())
}

func TestSync_InvalidRequests(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	_, _, err := run(t, fb, "", "sync", "commits")
	assert.Error(t, err, "commits needs --repo")

	_, _, err = run(t, fb, "", "sync", "stars")
	assert.ErrorContains(t, err, "unknown kind")
	assert.Empty(t, fb.Requests())
}

func TestSyncStatus(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "sync-status")
	require.NoError(t, err)
	assert.Contains(t, out, "acme/core")
	assert.Contains(t, out, "acme/web")

	out, _, err = run(t, fb, "", "sync-status", "--needs-sync")
	require.NoError(t, err)
	assert.Contains(t, out, "acme/core")
	assert.NotContains(t, out, "acme/web")
}

func TestExport_ToFile(t *testing.T) {
	dir := isolate(t)
	fb := newFakeBackend(t)
	path := filepath.Join(dir, "widgets.csv")

	_, errOut, err := run(t, fb, "", "export", "widgets", "-o", path, "--search", "login")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Wrote 23 bytes")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "_id,title\nw1,fix login\n", string(data))
	assert.Equal(t, []string{"login"}, fb.Query("/api/data/export/widgets")["search"])

	_, _, err = run(t, fb, "", "export", "widgets", "--format", "pdf")
	assert.Error(t, err)
}

func TestStats_Collection(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "stats", "widgets", "--timezone", "UTC")
	require.NoError(t, err)
	assert.Contains(t, out, "count")
	assert.Contains(t, out, "2024-01-01 00:00:00")
}

func TestPrefs_ListRemoveClear(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)
	prev := openURL
	openURL = func(string) error { return nil }
	t.Cleanup(func() { openURL = prev })

	_, _, err := run(t, fb, "abc\n", "login")
	require.NoError(t, err)

	out, _, err := run(t, fb, "", "prefs", "list", "--output", "json")
	require.NoError(t, err)
	var keys []string
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.Equal(t, []string{"session"}, keys)

	_, _, err = run(t, fb, "", "prefs", "rm", "session")
	require.NoError(t, err)
	_, _, err = run(t, fb, "", "prefs", "get", "session")
	assert.ErrorContains(t, err, "no preference")

	_, _, err = run(t, fb, "abc\n", "login")
	require.NoError(t, err)
	out, _, err = run(t, fb, "", "prefs", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Preferences cleared.")

	out, _, err = run(t, fb, "", "prefs", "list", "--output", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestPrefs_SetColumnsReordersRows(t *testing.T) {
	isolate(t)
	fb := newFakeBackend(t)

	out, _, err := run(t, fb, "", "prefs", "set-columns", "repos", "full_name=30", "name", "--hide", "html_url")
	require.NoError(t, err)
	assert.Contains(t, out, "saved (3 fields)")

	out, _, err = run(t, fb, "", "rows", "repos", "--output", "csv")
	require.NoError(t, err)
	header, _, _ := strings.Cut(out, "\n")
	assert.Equal(t, "Full Name,Name,Github Id", header)

	out, _, err = run(t, fb, "", "prefs", "get", "grid_columns")
	require.NoError(t, err)
	assert.Contains(t, out, `"hidden": true`)

	out, _, err = run(t, fb, "", "prefs", "set-columns", "repos")
	require.NoError(t, err)
	assert.Contains(t, out, "reset")
	out, _, err = run(t, fb, "", "rows", "repos", "--output", "csv")
	require.NoError(t, err)
	header, _, _ = strings.Cut(out, "\n")
	assert.Equal(t, "Github Id,Name,Full Name,Html Url", header)

	_, _, err = run(t, fb, "", "prefs", "set-columns", "repos", "name=wide")
	assert.ErrorContains(t, err, "invalid width")
}
