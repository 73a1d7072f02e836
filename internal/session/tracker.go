// Package session tracks whether the backend considers the user connected to GitHub.
// The tracker is the only writer of that state; any number of readers may
// query it or subscribe to changes.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/h0rv/ghsync/internal/domain"
)

// StatusSource is the part of the API client the tracker needs.
type StatusSource interface {
	AuthStatus(ctx context.Context) (*domain.AuthUser, error)
	RemoveAuth(ctx context.Context) error
}

// Snapshot is the published state at one point in time.
type Snapshot struct {
	User          *domain.AuthUser
	Authenticated bool
}

func (s Snapshot) equal(o Snapshot) bool {
	if s.Authenticated != o.Authenticated || (s.User == nil) != (o.User == nil) {
		return false
	}
	return s.User == nil || *s.User == *o.User
}

// Tracker holds the current user and authenticated flag.
type Tracker struct {
	src    StatusSource
	logger *slog.Logger

	mu   sync.RWMutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
}

// New creates a tracker in the unauthenticated state.
func New(src StatusSource, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		src:    src,
		logger: logger.With("component", "session"),
		subs:   make(map[chan Snapshot]struct{}),
	}
}

// Current returns the latest snapshot.
func (t *Tracker) Current() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Authenticated reports whether the last check found a connected account.
func (t *Tracker) Authenticated() bool {
	return t.Current().Authenticated
}

// User returns the connected account, or nil.
func (t *Tracker) User() *domain.AuthUser {
	return t.Current().User
}

// Check refreshes state from the status endpoint. Any failure, or a status with
// connected=false, leaves the tracker unauthenticated; the error is returned so
// callers can tell "not connected" from "could not ask".
func (t *Tracker) Check(ctx context.Context) (Snapshot, error) {
	user, err := t.src.AuthStatus(ctx)
	var next Snapshot
	switch {
	case err != nil:
		t.logger.Warn("auth status check failed", "error", err)
	case user != nil && user.Connected:
		u := *user
		next = Snapshot{User: &u, Authenticated: true}
	default:
		t.logger.Info("github account not connected")
	}
	t.set(next)
	return next, err
}

// Logout asks the backend to disconnect the account. Local state is left as is;
// call Clear once the result has been observed.
func (t *Tracker) Logout(ctx context.Context) error {
	if err := t.src.RemoveAuth(ctx); err != nil {
		t.logger.Warn("logout failed", "error", err)
		return err
	}
	return nil
}

// Clear drops the current user.
func (t *Tracker) Clear() {
	t.set(Snapshot{})
}

// Subscribe returns a channel that receives a snapshot after every change, and a
// function that unsubscribes. The channel holds one value; a slow reader only
// ever sees the latest snapshot.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) set(next Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.equal(next) {
		return
	}
	t.snap = next
	for ch := range t.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}
