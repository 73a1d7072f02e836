// Package dashboard loads the overview statistics: a total and the most recent
// items for every entity kind, plus the per-repository issue sync status.
// All panels load concurrently and the result is only handed back once every
// one of them has finished.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/viewer"
	"golang.org/x/sync/errgroup"
)

// DefaultRecent is how many recent items each panel shows.
const DefaultRecent = 5

// StatusSource reports the issue sync status.
type StatusSource interface {
	IssuesSyncStatus(ctx context.Context) ([]domain.SyncStatus, error)
}

// Panel is the overview of one entity kind.
type Panel struct {
	Kind   domain.EntityKind
	Total  int
	Recent []domain.Record
	Err    error
}

// Stats is one complete dashboard load.
type Stats struct {
	Panels        []Panel
	SyncStatus    []domain.SyncStatus
	SyncStatusErr error
	LoadedAt      time.Time
}

// NeedsSync counts repositories whose issues are out of date.
func (s *Stats) NeedsSync() int {
	n := 0
	for _, st := range s.SyncStatus {
		if st.NeedsSync {
			n++
		}
	}
	return n
}

// Errors returns every panel failure.
func (s *Stats) Errors() []error {
	var errs []error
	for _, p := range s.Panels {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	if s.SyncStatusErr != nil {
		errs = append(errs, s.SyncStatusErr)
	}
	return errs
}

// Loader fetches dashboard statistics.
type Loader struct {
	registry *viewer.Registry
	status   StatusSource
	logger   *slog.Logger

	// Kinds are the panels to load, in display order.
	Kinds []domain.EntityKind
	// Recent is the number of items fetched per panel.
	Recent int
	// WithSyncStatus also loads the issue sync status.
	WithSyncStatus bool
}

// NewLoader creates a loader for every entity kind.
func NewLoader(registry *viewer.Registry, status StatusSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		registry:       registry,
		status:         status,
		logger:         logger.With("component", "dashboard"),
		Kinds:          domain.AllKinds,
		Recent:         DefaultRecent,
		WithSyncStatus: true,
	}
}

// Load fetches every panel concurrently and waits for all of them. A failing
// panel records its error and does not cancel the others; Load itself only
// fails when ctx is done.
func (l *Loader) Load(ctx context.Context) (*Stats, error) {
	stats := &Stats{Panels: make([]Panel, len(l.Kinds))}
	var g errgroup.Group

	for i, kind := range l.Kinds {
		g.Go(func() error {
			stats.Panels[i] = l.loadPanel(ctx, kind)
			return nil
		})
	}
	if l.WithSyncStatus && l.status != nil {
		g.Go(func() error {
			stats.SyncStatus, stats.SyncStatusErr = l.status.IssuesSyncStatus(ctx)
			if stats.SyncStatusErr != nil {
				l.logger.Warn("issues sync status failed", "error", stats.SyncStatusErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats.LoadedAt = time.Now()
	if errs := stats.Errors(); len(errs) > 0 {
		l.logger.Debug("dashboard loaded with failures", "failures", len(errs), "error", errors.Join(errs...))
	}
	return stats, nil
}

func (l *Loader) loadPanel(ctx context.Context, kind domain.EntityKind) Panel {
	p := Panel{Kind: kind}
	page, err := l.registry.Source(string(kind)).Fetch(ctx, domain.Query{
		Collection: string(kind),
		Page:       1,
		Limit:      l.Recent,
	})
	if err != nil {
		l.logger.Warn("dashboard panel failed", "kind", kind, "error", err)
		p.Err = err
		return p
	}
	p.Total = page.Total
	p.Recent = page.Rows
	if len(p.Recent) > l.Recent {
		p.Recent = p.Recent[:l.Recent]
	}
	return p
}
