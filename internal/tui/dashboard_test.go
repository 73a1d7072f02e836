package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/dashboard"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/h0rv/ghsync/internal/syncer"
	"github.com/h0rv/ghsync/internal/testutil"
	"github.com/h0rv/ghsync/internal/viewer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct{}

func (fakeStatus) IssuesSyncStatus(context.Context) ([]domain.SyncStatus, error) {
	return []domain.SyncStatus{
		{RepositoryID: "r1", FullName: "acme/core", IssueCount: 3, NeedsSync: true},
		{RepositoryID: "r2", FullName: "acme/web", IssueCount: 0, NeedsSync: false},
		{RepositoryID: "r3", FullName: "acme/cli", IssueCount: 9, NeedsSync: true},
	}, nil
}

// fakeSyncBackend records every sync call.
type fakeSyncBackend struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSyncBackend) do(name string) (*api.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return &api.SyncResult{Message: name + " synced"}, nil
}

func (f *fakeSyncBackend) SyncOrganizations(context.Context) (*api.SyncResult, error) {
	return f.do("organizations")
}

func (f *fakeSyncBackend) SyncRepositories(_ context.Context, org string) (*api.SyncResult, error) {
	return f.do("repositories" + org)
}

func (f *fakeSyncBackend) SyncCommits(_ context.Context, repo, _, _ string) (*api.SyncResult, error) {
	return f.do("commits:" + repo)
}

func (f *fakeSyncBackend) SyncIssues(context.Context) (*api.SyncResult, error) {
	return f.do("issues")
}

func (f *fakeSyncBackend) SyncIssuesForRepo(_ context.Context, repo string) (*api.SyncResult, error) {
	return f.do("issues:" + repo)
}

func (f *fakeSyncBackend) SyncPullRequests(context.Context) (*api.SyncResult, error) {
	return f.do("pull-requests")
}

func (f *fakeSyncBackend) SyncGithubUsers(context.Context) (*api.SyncResult, error) {
	return f.do("users")
}

func (f *fakeSyncBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type dashboardFixture struct {
	model   DashboardModel
	syncs   *fakeSyncBackend
	syncer  *syncer.Syncer
	notices []syncer.Notification
}

func newDashboardFixture(t *testing.T, p *prefs.Store) *dashboardFixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	loader := dashboard.NewLoader(viewer.NewRegistry(&fakeBackend{}, logger), fakeStatus{}, logger)

	f := &dashboardFixture{syncs: &fakeSyncBackend{}}
	f.syncer = syncer.New(f.syncs, logger)
	f.syncer.OnNotify(func(n syncer.Notification) { f.notices = append(f.notices, n) })

	user := &domain.AuthUser{Connected: true, Username: "octo"}
	f.model = NewDashboardModel(loader, f.syncer, p, user, context.Background())
	return f
}

// loaded runs the first dashboard load to completion.
func (f *dashboardFixture) loaded(t *testing.T) DashboardModel {
	t.Helper()
	cmd := f.model.load()
	require.NotNil(t, cmd)
	next, _ := f.model.Update(cmd())
	return next.(DashboardModel)
}

func dashPress(m DashboardModel, msg tea.Msg) (DashboardModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(DashboardModel), cmd
}

func TestDashboard_LoadRendersPanels(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	require.NotNil(t, m.stats)
	assert.False(t, m.loading)
	assert.Len(t, m.stats.Panels, len(domain.AllKinds))
	assert.Len(t, m.needsSync(), 2)

	view := m.View()
	assert.Contains(t, view, "@octo")
	assert.Contains(t, view, "Organizations")
	assert.Contains(t, view, "Acme")
	assert.Contains(t, view, "acme/core")
	assert.NotContains(t, view, "acme/web", "repositories in sync are not listed")
}

func TestDashboard_SyncKindKey(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	_, cmd := dashPress(m, runeKey('1'))
	require.NotNil(t, cmd)
	done, ok := cmd().(syncDoneMsg)
	require.True(t, ok)
	assert.NoError(t, done.err)
	assert.Equal(t, "organizations", done.key)
	assert.Equal(t, []string{"organizations"}, f.syncs.Calls())

	require.Len(t, f.notices, 1)
	m, _ = dashPress(m, NotifyMsg{Notification: f.notices[0]})
	assert.Equal(t, "organizations synced", m.toast)
	assert.False(t, m.toastFailed)
}

func TestDashboard_CommitsPromptsForRepository(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	m, _ = dashPress(m, runeKey('3'))
	require.True(t, m.promptOpen)
	assert.Empty(t, f.syncs.Calls())

	for _, r := range "42" {
		m, _ = dashPress(m, runeKey(r))
	}
	m, cmd := dashPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.promptOpen)
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"commits:42"}, f.syncs.Calls())
}

func TestDashboard_EmptyRepositoryIsRejected(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	m, _ = dashPress(m, runeKey('3'))
	m, cmd := dashPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	m, _ = dashPress(m, cmd())
	assert.Empty(t, f.syncs.Calls())
	assert.True(t, m.toastFailed)
	assert.Contains(t, m.toast, "repository id")
}

func TestDashboard_SyncIssuesForSelectedRepository(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	m, _ = dashPress(m, runeKey('j'))
	assert.Equal(t, 1, m.cursor)
	m, _ = dashPress(m, runeKey('j'))
	assert.Equal(t, 1, m.cursor, "cursor stops at the last repository")

	_, cmd := dashPress(m, runeKey('i'))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"issues:r3"}, f.syncs.Calls())
}

func TestDashboard_Resync(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	_, cmd := dashPress(m, runeKey('R'))
	require.NotNil(t, cmd)
	done := cmd().(syncDoneMsg)
	assert.Equal(t, syncer.ResyncKey, done.key)
	assert.Equal(t, []string{"organizations", "repositories"}, f.syncs.Calls())
	assert.Len(t, f.notices, 1)
}

func TestDashboard_InFlightRejectionShowsToast(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	m, _ = dashPress(m, syncDoneMsg{key: "users", err: fmt.Errorf("%w: users", syncer.ErrSyncInFlight)})
	assert.True(t, m.toastFailed)
	assert.Contains(t, m.toast, "users")

	// Completed actions are reported by notification only.
	m.toast = ""
	m, _ = dashPress(m, syncDoneMsg{key: "users"})
	assert.Empty(t, m.toast)
}

func TestDashboard_RefetchReloads(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	m, cmd := dashPress(m, RefetchMsg{Kinds: []domain.EntityKind{domain.KindOrganizations}})
	require.NotNil(t, cmd)
	_, ok := cmd().(statsLoadedMsg)
	assert.True(t, ok)
}

func TestDashboard_SettingsToggleAndPersist(t *testing.T) {
	p, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"), testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	f := newDashboardFixture(t, p)
	m := f.loaded(t)

	m, cmd := dashPress(m, runeKey('V'))
	require.NotNil(t, cmd)
	m, _ = dashPress(m, cmd())
	assert.Empty(t, m.stats.Panels, "data overview hidden")
	assert.NotContains(t, m.View(), "[1] Organizations")

	saved, err := p.DashboardSettings()
	require.NoError(t, err)
	assert.False(t, saved.ShowDataOverview)
	assert.True(t, saved.ShowIntegrationOverview)

	m, cmd = dashPress(m, runeKey('O'))
	m, _ = dashPress(m, cmd())
	assert.Nil(t, m.stats.SyncStatus)
	assert.NotContains(t, m.View(), "Issue sync status")
}

func TestDashboard_NavigationMessages(t *testing.T) {
	f := newDashboardFixture(t, nil)
	m := f.loaded(t)

	_, cmd := dashPress(m, runeKey('c'))
	require.NotNil(t, cmd)
	assert.IsType(t, showCollectionsMsg{}, cmd())

	_, cmd = dashPress(m, runeKey('L'))
	require.NotNil(t, cmd)
	assert.IsType(t, logoutRequestedMsg{}, cmd())
}
