// Package syncer triggers backend synchronization of GitHub entities.
// Each sync target has its own state machine (idle -> in-flight -> done|failed);
// a second request for a target that is already in flight is rejected rather
// than queued.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/domain"
)

// ErrSyncInFlight is returned when the same target is already syncing.
var ErrSyncInFlight = errors.New("sync already in progress")

// ErrInvalidRequest is returned for a request that names no known kind or lacks
// a required id. Nothing is sent and no notification is emitted.
var ErrInvalidRequest = errors.New("invalid sync request")

// State is the lifecycle position of one sync target.
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "syncing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ResyncKey is the state key of Resync.
const ResyncKey = "resync"

// Request describes one sync action.
type Request struct {
	Kind           domain.EntityKind
	OrganizationID string // repositories only
	RepositoryID   string // commits (required), issues (scopes to one repository)
	Since, Until   string // commits only
}

// Key identifies the state machine a request runs on. Repository-scoped syncs
// get their own key so different repositories can sync side by side.
func (r Request) Key() string {
	switch r.Kind {
	case domain.KindCommits:
		return string(r.Kind) + ":" + r.RepositoryID
	case domain.KindIssues:
		if r.RepositoryID != "" {
			return string(r.Kind) + ":" + r.RepositoryID
		}
	}
	return string(r.Kind)
}

func (r Request) label() string {
	if r.RepositoryID != "" {
		return r.Kind.Label() + " for repository " + r.RepositoryID
	}
	return r.Kind.Label()
}

// Backend is the part of the API client the syncer drives.
type Backend interface {
	SyncOrganizations(ctx context.Context) (*api.SyncResult, error)
	SyncRepositories(ctx context.Context, organizationID string) (*api.SyncResult, error)
	SyncCommits(ctx context.Context, repositoryID, since, until string) (*api.SyncResult, error)
	SyncIssues(ctx context.Context) (*api.SyncResult, error)
	SyncIssuesForRepo(ctx context.Context, repositoryID string) (*api.SyncResult, error)
	SyncPullRequests(ctx context.Context) (*api.SyncResult, error)
	SyncGithubUsers(ctx context.Context) (*api.SyncResult, error)
}

// Notification reports the outcome of one sync action.
type Notification struct {
	Key     string
	Success bool
	Message string
	Err     error
}

// Syncer runs sync actions and tracks their state.
type Syncer struct {
	backend Backend
	logger  *slog.Logger

	mu      sync.Mutex
	states  map[string]State
	notify  func(Notification)
	refetch func(kinds ...domain.EntityKind)
}

// New creates a syncer with every target idle.
func New(backend Backend, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		backend: backend,
		logger:  logger.With("component", "syncer"),
		states:  make(map[string]State),
	}
}

// OnNotify registers the function told about every finished action.
func (s *Syncer) OnNotify(fn func(Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// OnRefetch registers the function called once after every successful action
// with the kinds whose listings are now out of date.
func (s *Syncer) OnRefetch(fn func(kinds ...domain.EntityKind)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refetch = fn
}

// State returns the state of key.
func (s *Syncer) State(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

// InFlight reports whether key is currently syncing.
func (s *Syncer) InFlight(key string) bool {
	return s.State(key) == StateInFlight
}

// States returns a snapshot of every target that has left idle.
func (s *Syncer) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}

// acquire marks every key in flight, or none of them when one already is. It
// returns the states the keys held before, or the first busy key.
func (s *Syncer) acquire(keys ...string) (prev map[string]State, busy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if s.states[k] == StateInFlight {
			return nil, k
		}
	}
	prev = make(map[string]State, len(keys))
	for _, k := range keys {
		if st, ok := s.states[k]; ok {
			prev[k] = st
		}
		s.states[k] = StateInFlight
	}
	return prev, ""
}

// restore puts keys back to the state they held before acquire.
func (s *Syncer) restore(prev map[string]State, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if st, ok := prev[k]; ok {
			s.states[k] = st
		} else {
			delete(s.states, k)
		}
	}
}

func (s *Syncer) release(key string, err error) (func(Notification), func(...domain.EntityKind)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.states[key] = StateFailed
	} else {
		s.states[key] = StateDone
	}
	return s.notify, s.refetch
}

// Sync runs one sync action. It returns ErrSyncInFlight without contacting the
// backend when the same key is already syncing.
func (s *Syncer) Sync(ctx context.Context, req Request) (*api.SyncResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	key := req.Key()
	if _, busy := s.acquire(key); busy != "" {
		return nil, fmt.Errorf("%w: %s", ErrSyncInFlight, busy)
	}
	s.logger.Info("sync started", "key", key)

	res, err := s.call(ctx, req)
	s.finish(key, req.label(), res, err, req.Kind)
	return res, err
}

// Resync refreshes organizations and then repositories, stopping at the first failure.
// It counts as one action: one notification and at most one refetch. The
// organizations and repositories keys are held for its duration, so it never
// overlaps a single-kind sync of either.
func (s *Syncer) Resync(ctx context.Context) error {
	orgs := Request{Kind: domain.KindOrganizations}.Key()
	repos := Request{Kind: domain.KindRepositories}.Key()
	prev, busy := s.acquire(ResyncKey, orgs, repos)
	if busy != "" {
		return fmt.Errorf("%w: %s", ErrSyncInFlight, busy)
	}
	s.logger.Info("sync started", "key", ResyncKey)

	_, err := s.backend.SyncOrganizations(ctx)
	var res *api.SyncResult
	if err == nil {
		res, err = s.backend.SyncRepositories(ctx, "")
	}
	s.restore(prev, orgs, repos)
	s.finish(ResyncKey, "Integration", res, err, domain.KindOrganizations, domain.KindRepositories)
	return err
}

func (s *Syncer) finish(key, label string, res *api.SyncResult, err error, kinds ...domain.EntityKind) {
	notify, refetch := s.release(key, err)

	n := Notification{Key: key, Success: err == nil, Err: err}
	if err != nil {
		n.Message = fmt.Sprintf("Failed to sync %s: %v", label, err)
		s.logger.Warn("sync failed", "key", key, "error", err)
	} else {
		n.Message = label + " synced successfully"
		if res != nil && res.Message != "" {
			n.Message = res.Message
		}
		s.logger.Info("sync finished", "key", key)
	}
	if notify != nil {
		notify(n)
	}
	if err == nil && refetch != nil {
		refetch(kinds...)
	}
}

func (s *Syncer) call(ctx context.Context, req Request) (*api.SyncResult, error) {
	switch req.Kind {
	case domain.KindOrganizations:
		return s.backend.SyncOrganizations(ctx)
	case domain.KindRepositories:
		return s.backend.SyncRepositories(ctx, req.OrganizationID)
	case domain.KindCommits:
		return s.backend.SyncCommits(ctx, req.RepositoryID, req.Since, req.Until)
	case domain.KindIssues:
		if req.RepositoryID != "" {
			return s.backend.SyncIssuesForRepo(ctx, req.RepositoryID)
		}
		return s.backend.SyncIssues(ctx)
	case domain.KindPullRequests:
		return s.backend.SyncPullRequests(ctx)
	case domain.KindUsers:
		return s.backend.SyncGithubUsers(ctx)
	}
	return nil, fmt.Errorf("unknown sync kind %q", req.Kind)
}

func validate(req Request) error {
	if k, ok := domain.ParseKind(string(req.Kind)); !ok || k != req.Kind {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, req.Kind)
	}
	if req.Kind == domain.KindCommits && req.RepositoryID == "" {
		return fmt.Errorf("%w: syncing commits needs a repository id", ErrInvalidRequest)
	}
	return nil
}
