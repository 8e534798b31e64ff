// Package scheduler runs a periodic, best-effort compaction sweep over the
// chat/search/dedupe stores, grounded on the teacher's
// pkg/devclaw/scheduler.Scheduler (same robfig/cron/v3 wiring, reduced from
// arbitrary user-defined cron jobs to one fixed internal hygiene job). The
// stores already purge lazily on every read/write (spec.md §4.2-§4.4); this
// is a supplementary sweep, never load-bearing for correctness.
package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Compactable is anything the sweep can purge; ChatContextStore,
// SearchContextStore, and DedupeCache all satisfy it.
type Compactable interface {
	Purge() int
}

// Sweeper periodically calls Purge on a fixed set of stores.
type Sweeper struct {
	cron    *cron.Cron
	stores  map[string]Compactable
	logger  *slog.Logger
}

// New builds a Sweeper over the named stores.
func New(stores map[string]Compactable, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cron:   cron.New(),
		stores: stores,
		logger: logger.With("component", "scheduler"),
	}
}

// Start registers the sweep at schedule, a standard 5-field cron expression
// (e.g. "*/5 * * * *" for every five minutes), and starts the cron loop.
// Returns an error only if schedule fails to parse.
func (s *Sweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	for name, store := range s.stores {
		n := store.Purge()
		if n > 0 {
			s.logger.Debug("compaction sweep purged entries", "store", name, "count", n)
		}
	}
}
