// Package scheduler runs the tier-cadence loops: one ticker per urgency
// tier plus reclassification, discovery, and stale-sweep loops, all
// supervised together so one loop's fatal error cancels the rest.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/snapshot"
	"github.com/polyharvest/tiered-trader/internal/types"
)

// SnapshotSink receives every assembled snapshot; the trading engine's
// scanner.SnapshotStore and the collector's logging sink implement it.
type SnapshotSink interface {
	OnSnapshot(types.Snapshot)
}

type Config struct {
	ReclassifyInterval time.Duration
	DiscoveryInterval  time.Duration
	StaleSweepInterval time.Duration
	EnabledTiers       []int
}

// Scheduler owns the per-tier polling loops described by market.Registry's
// tier table and snapshot.Assembler's per-tick build.
type Scheduler struct {
	cfg       Config
	registry  *market.Registry
	assembler *snapshot.Assembler
	sink      SnapshotSink
	log       zerolog.Logger
}

func New(cfg Config, reg *market.Registry, asm *snapshot.Assembler, sink SnapshotSink, log zerolog.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, registry: reg, assembler: asm, sink: sink, log: log}
}

// Run starts every loop under one errgroup and blocks until ctx is
// cancelled or a loop returns a fatal error.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, tier := range s.enabledTiers() {
		tier := tier
		g.Go(func() error { return s.runTierLoop(ctx, tier) })
	}
	g.Go(func() error { return s.runReclassifyLoop(ctx) })
	g.Go(func() error { return s.runDiscoveryLoop(ctx) })
	g.Go(func() error { return s.runStaleSweepLoop(ctx) })

	return g.Wait()
}

func (s *Scheduler) enabledTiers() []int {
	if len(s.cfg.EnabledTiers) > 0 {
		return s.cfg.EnabledTiers
	}
	return []int{0, 1, 2, 3, 4}
}

// runTierLoop ticks at the tier's configured interval and assembles a
// snapshot for every active market at that tier. If a tick is still running
// when the next one fires, the overrun tick is skipped rather than queued.
func (s *Scheduler) runTierLoop(ctx context.Context, tier int) error {
	interval := types.TierInterval(tier)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	busy := make(chan struct{}, 1)
	busy <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case <-busy:
			default:
				s.log.Debug().Int("tier", tier).Msg("tick skipped: previous tick still running")
				continue
			}
			go func() {
				defer func() { busy <- struct{}{} }()
				s.tick(ctx, tier)
			}()
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, tier int) {
	now := time.Now()
	ids := s.registry.ByTier(tier, now)
	for _, id := range ids {
		snap, ok := s.assembler.Assemble(ctx, id, now)
		if !ok {
			continue
		}
		if s.sink != nil {
			s.sink.OnSnapshot(snap)
		}
	}
}

func (s *Scheduler) runReclassifyLoop(ctx context.Context) error {
	interval := s.cfg.ReclassifyInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changes := s.registry.RecomputeTiers(time.Now())
			if len(changes) > 0 {
				s.log.Info().Int("count", len(changes)).Msg("tier reclassification")
			}
		}
	}
}

func (s *Scheduler) runDiscoveryLoop(ctx context.Context) error {
	interval := s.cfg.DiscoveryInterval
	if interval <= 0 {
		interval = 60 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			added, updated, err := s.registry.DiscoverOnce(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("discovery pass failed")
				continue
			}
			s.log.Info().Int("added", added).Int("updated", updated).Msg("discovery pass")
		}
	}
}

func (s *Scheduler) runStaleSweepLoop(ctx context.Context) error {
	interval := s.cfg.StaleSweepInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			swept := s.registry.SweepStale(time.Now())
			if len(swept) > 0 {
				s.log.Info().Int("count", len(swept)).Msg("stale markets swept")
			}
		}
	}
}
