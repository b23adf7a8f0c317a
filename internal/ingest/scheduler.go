package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Scheduler triggers Ingester ticks on a fixed interval and, optionally, when
// a file is created in the watched directory.
type Scheduler struct {
	ing      *Ingester
	interval time.Duration
	watchDir string
	log      zerolog.Logger
	wg       sync.WaitGroup
}

// NewScheduler returns a Scheduler. An empty watchDir disables wake-ups.
func NewScheduler(ing *Ingester, interval time.Duration, watchDir string, log zerolog.Logger) *Scheduler {
	return &Scheduler{ing: ing, interval: interval, watchDir: watchDir, log: log}
}

// Run fires a tick immediately and then on every trigger until ctx is done.
// A trigger that arrives while a tick is still running is skipped. Run returns
// once the in-flight tick, if any, has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if s.watchDir != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer w.Close()
		if err := w.Add(s.watchDir); err != nil {
			return fmt.Errorf("watch %s: %w", s.watchDir, err)
		}
		events, watchErrs = w.Events, w.Errors
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.wg.Wait()

	s.log.Info().Dur("interval", s.interval).Str("watch", s.watchDir).Msg("scheduler started")
	s.fire(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return nil
		case <-ticker.C:
			s.fire(ctx, "interval")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Create) {
				s.fire(ctx, "watch")
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

// fire starts a tick unless shutdown has been requested. select picks among
// ready cases at random, so a tick can arrive together with ctx.Done.
func (s *Scheduler) fire(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if ctx.Err() != nil {
			return
		}
		summary, err := s.ing.Tick(ctx)
		switch {
		case errors.Is(err, ErrBusy):
			s.log.Debug().Str("trigger", trigger).Msg("tick skipped, previous tick still running")
		case err != nil:
			s.log.Error().Err(err).Str("trigger", trigger).Msg("tick failed")
		case summary != nil:
			s.log.Info().
				Str("trigger", trigger).
				Str("file", summary.FilePath).
				Str("status", summary.Status).
				Int64("records", summary.RecordsQueued).
				Str("duration", summary.DurationTotal.String()).
				Msg("tick complete")
		}
	}()
}
