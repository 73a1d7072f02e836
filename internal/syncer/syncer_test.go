package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	// block, when set, holds every call until closed.
	block   chan struct{}
	started chan string
}

func (f *fakeBackend) do(name string) (*api.SyncResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.errs[name]
	f.mu.Unlock()
	if f.started != nil {
		f.started <- name
	}
	if f.block != nil {
		<-f.block
	}
	if err != nil {
		return nil, err
	}
	return &api.SyncResult{Message: name + " ok"}, nil
}

func (f *fakeBackend) SyncOrganizations(context.Context) (*api.SyncResult, error) {
	return f.do("organizations")
}

func (f *fakeBackend) SyncRepositories(_ context.Context, org string) (*api.SyncResult, error) {
	return f.do("repositories" + org)
}

func (f *fakeBackend) SyncCommits(_ context.Context, repo, since, until string) (*api.SyncResult, error) {
	return f.do("commits:" + repo + since + until)
}

func (f *fakeBackend) SyncIssues(context.Context) (*api.SyncResult, error) {
	return f.do("issues")
}

func (f *fakeBackend) SyncIssuesForRepo(_ context.Context, repo string) (*api.SyncResult, error) {
	return f.do("issues:" + repo)
}

func (f *fakeBackend) SyncPullRequests(context.Context) (*api.SyncResult, error) {
	return f.do("pull-requests")
}

func (f *fakeBackend) SyncGithubUsers(context.Context) (*api.SyncResult, error) {
	return f.do("users")
}

type recorder struct {
	mu            sync.Mutex
	notifications []Notification
	refetches     [][]domain.EntityKind
}

func (r *recorder) attach(s *Syncer) {
	s.OnNotify(func(n Notification) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.notifications = append(r.notifications, n)
	})
	s.OnRefetch(func(kinds ...domain.EntityKind) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.refetches = append(r.refetches, kinds)
	})
}

func newTestSyncer(t *testing.T, fb *fakeBackend) (*Syncer, *recorder) {
	s := New(fb, testutil.NewTestLogger(t))
	rec := &recorder{}
	rec.attach(s)
	return s, rec
}

func TestSync_SuccessRefetchesOnce(t *testing.T) {
	fb := &fakeBackend{}
	s, rec := newTestSyncer(t, fb)

	res, err := s.Sync(context.Background(), Request{Kind: domain.KindRepositories, OrganizationID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, "repositorieso1 ok", res.Message)

	require.Len(t, rec.refetches, 1)
	assert.Equal(t, []domain.EntityKind{domain.KindRepositories}, rec.refetches[0])
	require.Len(t, rec.notifications, 1)
	assert.True(t, rec.notifications[0].Success)
	assert.Equal(t, "repositorieso1 ok", rec.notifications[0].Message)
	assert.Equal(t, StateDone, s.State("repositories"))
}

func TestSync_FailureNotifiesOnceWithoutRefetch(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"soft failure", &domain.SoftError{Message: "GitHub token expired"}},
		{"transport failure", &api.TransportError{Method: "POST", URL: "x", Err: errors.New("refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{errs: map[string]error{"issues": tt.err}}
			s, rec := newTestSyncer(t, fb)

			_, err := s.Sync(context.Background(), Request{Kind: domain.KindIssues})
			require.Error(t, err)

			assert.Empty(t, rec.refetches)
			require.Len(t, rec.notifications, 1)
			assert.False(t, rec.notifications[0].Success)
			assert.Contains(t, rec.notifications[0].Message, "Failed to sync Issues")
			assert.Equal(t, StateFailed, s.State("issues"))
			assert.False(t, s.InFlight("issues"))
		})
	}
}

func TestSync_RejectsConcurrentSameKey(t *testing.T) {
	fb := &fakeBackend{block: make(chan struct{}), started: make(chan string, 4)}
	s, rec := newTestSyncer(t, fb)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(context.Background(), Request{Kind: domain.KindOrganizations})
		done <- err
	}()
	<-fb.started
	assert.True(t, s.InFlight("organizations"))

	_, err := s.Sync(context.Background(), Request{Kind: domain.KindOrganizations})
	assert.ErrorIs(t, err, ErrSyncInFlight)

	// A different key is not blocked.
	go func() { _, _ = s.Sync(context.Background(), Request{Kind: domain.KindUsers}) }()
	assert.Equal(t, "users", <-fb.started)

	close(fb.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateDone, s.State("organizations"))

	fb.mu.Lock()
	assert.Equal(t, 1, countOf(fb.calls, "organizations"), "rejected request never reached the backend")
	fb.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	orgNotes := 0
	for _, n := range rec.notifications {
		if n.Key == "organizations" {
			orgNotes++
		}
	}
	assert.Equal(t, 1, orgNotes, "a rejected request is not notified")
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}

func TestSync_RepositoryScopedKeys(t *testing.T) {
	assert.Equal(t, "commits:r1", Request{Kind: domain.KindCommits, RepositoryID: "r1"}.Key())
	assert.Equal(t, "issues:r1", Request{Kind: domain.KindIssues, RepositoryID: "r1"}.Key())
	assert.Equal(t, "issues", Request{Kind: domain.KindIssues}.Key())
	assert.Equal(t, "repositories", Request{Kind: domain.KindRepositories, OrganizationID: "o"}.Key())
}

func TestSync_Dispatch(t *testing.T) {
	fb := &fakeBackend{}
	s, _ := newTestSyncer(t, fb)
	ctx := context.Background()

	for _, req := range []Request{
		{Kind: domain.KindOrganizations},
		{Kind: domain.KindCommits, RepositoryID: "r1", Since: "2024"},
		{Kind: domain.KindIssues, RepositoryID: "r2"},
		{Kind: domain.KindIssues},
		{Kind: domain.KindPullRequests},
		{Kind: domain.KindUsers},
	} {
		_, err := s.Sync(ctx, req)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"organizations", "commits:r12024", "issues:r2", "issues", "pull-requests", "users"}, fb.calls)
}

func TestSync_Validation(t *testing.T) {
	fb := &fakeBackend{}
	s, rec := newTestSyncer(t, fb)

	_, err := s.Sync(context.Background(), Request{Kind: domain.KindCommits})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = s.Sync(context.Background(), Request{Kind: "widgets"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = s.Sync(context.Background(), Request{Kind: "prs"})
	assert.ErrorIs(t, err, ErrInvalidRequest, "aliases are resolved by the caller")

	assert.Empty(t, fb.calls)
	assert.Empty(t, rec.notifications)
}

func TestResync(t *testing.T) {
	fb := &fakeBackend{}
	s, rec := newTestSyncer(t, fb)

	require.NoError(t, s.Resync(context.Background()))
	assert.Equal(t, []string{"organizations", "repositories"}, fb.calls)
	require.Len(t, rec.refetches, 1)
	assert.Equal(t, []domain.EntityKind{domain.KindOrganizations, domain.KindRepositories}, rec.refetches[0])
	require.Len(t, rec.notifications, 1)
	assert.Equal(t, StateDone, s.State(ResyncKey))
}

func TestResync_StopsAtFirstFailure(t *testing.T) {
	fb := &fakeBackend{errs: map[string]error{"organizations": errors.New("boom")}}
	s, rec := newTestSyncer(t, fb)

	assert.Error(t, s.Resync(context.Background()))
	assert.Equal(t, []string{"organizations"}, fb.calls)
	assert.Empty(t, rec.refetches)
	require.Len(t, rec.notifications, 1)
	assert.False(t, rec.notifications[0].Success)
	assert.Equal(t, StateFailed, s.State(ResyncKey))
}

func TestResync_ExcludesSingleKindSyncs(t *testing.T) {
	fb := &fakeBackend{block: make(chan struct{}), started: make(chan string, 4)}
	s, _ := newTestSyncer(t, fb)

	done := make(chan error, 1)
	go func() { done <- s.Resync(context.Background()) }()
	assert.Equal(t, "organizations", <-fb.started)
	assert.True(t, s.InFlight(ResyncKey))

	_, err := s.Sync(context.Background(), Request{Kind: domain.KindOrganizations})
	assert.ErrorIs(t, err, ErrSyncInFlight)
	_, err = s.Sync(context.Background(), Request{Kind: domain.KindRepositories, OrganizationID: "7"})
	assert.ErrorIs(t, err, ErrSyncInFlight)

	close(fb.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateDone, s.State(ResyncKey))
	assert.Equal(t, StateIdle, s.State("organizations"), "held keys go back to their prior state")

	fb.mu.Lock()
	assert.Equal(t, []string{"organizations", "repositories"}, fb.calls, "rejected syncs never reached the backend")
	fb.mu.Unlock()
}

func TestResync_WaitsForSingleKindSync(t *testing.T) {
	fb := &fakeBackend{block: make(chan struct{}), started: make(chan string, 4)}
	s, _ := newTestSyncer(t, fb)

	done := make(chan error, 1)
	go func() {
		_, err := s.Sync(context.Background(), Request{Kind: domain.KindRepositories})
		done <- err
	}()
	<-fb.started

	err := s.Resync(context.Background())
	assert.ErrorIs(t, err, ErrSyncInFlight)
	assert.ErrorContains(t, err, "repositories")
	assert.Equal(t, StateIdle, s.State(ResyncKey), "a rejected resync holds nothing")
	assert.Equal(t, StateIdle, s.State("organizations"))

	close(fb.block)
	require.NoError(t, <-done)
	assert.Equal(t, StateDone, s.State("repositories"))
}

func TestStates(t *testing.T) {
	s, _ := newTestSyncer(t, &fakeBackend{})
	assert.Empty(t, s.States())
	_, _ = s.Sync(context.Background(), Request{Kind: domain.KindUsers})
	assert.Equal(t, map[string]State{"users": StateDone}, s.States())
	assert.Equal(t, StateIdle, s.State("never"))
	assert.Equal(t, "syncing", StateInFlight.String())
}

func TestSync_NoHooks(t *testing.T) {
	s := New(&fakeBackend{}, nil)
	_, err := s.Sync(context.Background(), Request{Kind: domain.KindUsers})
	assert.NoError(t, err)
}
