// Package catalog resolves which collections the backend exposes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/h0rv/ghsync/internal/api"
	"github.com/h0rv/ghsync/internal/domain"
)

// Source is the part of the API client the catalog reads from.
type Source interface {
	Collections(ctx context.Context) ([]domain.Collection, error)
	CollectionSchema(ctx context.Context, name string) (*domain.Collection, error)
	RawCollectionNames(ctx context.Context) ([]string, error)
}

// Catalog lists collections and their field metadata. Nothing is cached.
type Catalog struct {
	src    Source
	logger *slog.Logger
	legacy atomic.Bool
}

// New creates a catalog over src.
func New(src Source, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{src: src, logger: logger.With("component", "catalog")}
}

// List returns the available collections. When the backend has no generic data
// API (the route 404s) it falls back to the legacy name list and Legacy reports true.
func (c *Catalog) List(ctx context.Context) ([]domain.Collection, error) {
	cols, err := c.src.Collections(ctx)
	if err == nil {
		c.legacy.Store(false)
		return cols, nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		c.logger.Warn("list collections failed", "error", err)
		return nil, err
	}

	c.logger.Info("generic data api missing, using legacy collection list")
	names, err := c.src.RawCollectionNames(ctx)
	if err != nil {
		c.logger.Warn("legacy collection list failed", "error", err)
		return nil, err
	}
	c.legacy.Store(true)
	cols = make([]domain.Collection, 0, len(names))
	for _, name := range names {
		cols = append(cols, domain.Collection{Name: name})
	}
	return cols, nil
}

// Legacy reports whether the last successful List used the legacy route.
func (c *Catalog) Legacy() bool {
	return c.legacy.Load()
}

// Schema returns one collection with its fields.
func (c *Catalog) Schema(ctx context.Context, name string) (*domain.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name required")
	}
	col, err := c.src.CollectionSchema(ctx, name)
	if err != nil {
		c.logger.Warn("get schema failed", "collection", name, "error", err)
		return nil, err
	}
	return col, nil
}
