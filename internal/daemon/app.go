// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Runner is a background subsystem that runs until ctx is cancelled.
type Runner func(ctx context.Context) error

type namedRunner struct {
	name string
	run  Runner
}

// App owns the long-lived runtime (scheduler, event forwarders, consumers)
// and delegates server management to Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	runners []namedRunner
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager) *App {
	return &App{logger: logger, manager: manager}
}

// Manager returns the server manager, mainly so callers can register shutdown hooks.
func (a *App) Manager() Manager { return a.manager }

// AddRunner registers a background subsystem started by Run.
func (a *App) AddRunner(name string, run Runner) {
	a.runners = append(a.runners, namedRunner{name: name, run: run})
}

// Run starts all owned background subsystems and blocks until ctx is cancelled
// or one of them fails, in which case the rest are cancelled too.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, r := range a.runners {
		g.Go(func() error {
			a.logger.Debug().Str("runner", r.name).Msg("runner started")
			err := r.run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Str("runner", r.name).Msg("runner failed")
				return fmt.Errorf("%s: %w", r.name, err)
			}
			a.logger.Debug().Str("runner", r.name).Msg("runner stopped")
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
