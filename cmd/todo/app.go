package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"todo/internal/core"
	"todo/internal/store"
)

const (
	loadTimeout     = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// app is one opened store with its sync core.
type app struct {
	store  *store.SQLiteStore
	core   *core.Core
	logger *zap.Logger
}

func (c *cli) open() (*app, error) {
	dbPath := c.cfg.DBPath
	file, err := store.DatabaseFile(dbPath)
	if err != nil {
		return nil, err
	}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	s, err := store.NewSQLiteStore(dbPath, store.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	opts := append(c.cfg.CoreOptions(), core.WithLogger(c.logger))
	return &app{
		store:  s,
		core:   core.New(s, opts...),
		logger: c.logger,
	}, nil
}

// close stops the core, lets queued writes drain and closes the store.
func (a *app) close(ctx context.Context) error {
	a.core.Close()
	if err := a.core.Flush(ctx); err != nil {
		a.logger.Warn("writes still pending at shutdown", zap.Error(err))
	}
	return a.store.Close()
}

// closeWithTimeout is close bounded by shutdownTimeout.
func (a *app) closeWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.close(ctx)
}

// snapshot waits for the first loaded state.
func (a *app) snapshot(ctx context.Context) (core.State, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	for s := range a.core.Watch(ctx) {
		if s.Loading {
			continue
		}
		if s.Failed() {
			return s, errors.New(s.Err)
		}
		return s, nil
	}
	if err := ctx.Err(); err != nil {
		return core.State{}, fmt.Errorf("timed out loading items: %w", err)
	}
	return core.State{}, core.ErrClosed
}
