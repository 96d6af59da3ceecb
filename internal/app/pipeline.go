// Package app wires the domain packages into the two runnable orchestration
// containers: Pipeline (the tiered collection pipeline, shared by both
// binaries) and Trader (the trading engine core, built on top of Pipeline).
// Each container is one struct holding every dependency its constructor
// received, a single Run(ctx) loop supervising its independent background
// loops, and a read surface for whatever wants a point-in-time view
// without blocking the loop.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/polyharvest/tiered-trader/internal/config"
	"github.com/polyharvest/tiered-trader/internal/market"
	"github.com/polyharvest/tiered-trader/internal/ringbuffer"
	"github.com/polyharvest/tiered-trader/internal/scheduler"
	"github.com/polyharvest/tiered-trader/internal/snapshot"
	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
	"github.com/polyharvest/tiered-trader/internal/wsmanager"
)

// Pipeline is the tiered collection pipeline: discovery, tiering, the trade
// ring buffer, the snapshot assembler, the tier scheduler, and the WS
// subscription pool. cmd/collector runs it standalone; the trading engine
// embeds it because trading needs the same live snapshots and nothing here
// persists them for a second process to read.
type Pipeline struct {
	cfg config.Config
	log zerolog.Logger

	Registry  *market.Registry
	Buffer    *ringbuffer.Buffer
	Assembler *snapshot.Assembler
	Scheduler *scheduler.Scheduler
	WSManager *wsmanager.Manager
}

// NewPipeline builds the collection pipeline around venue clients the
// caller has already authenticated. sink receives every assembled
// snapshot — cmd/collector passes a logging-only sink, the trading engine
// passes its scanner's SnapshotStore.
func NewPipeline(
	cfg config.Config,
	discovery *venue.DiscoveryClient,
	orderbook *venue.OrderbookClient,
	newStreamClient func() *venue.TradeStreamClient,
	sink scheduler.SnapshotSink,
	log zerolog.Logger,
) *Pipeline {
	filter := market.DiscoveryFilter{
		MinVolume24h:     cfg.Discovery.VolumeThreshold,
		RequireOrderBook: true,
		MinHoursToClose:  0,
		MaxHoursToClose:  cfg.Discovery.LookaheadHours,
	}
	registry := market.NewRegistry(discovery, filter)
	buffer := ringbuffer.New(cfg.RingBuffer.Capacity, cfg.RingBuffer.TTL)
	assembler := snapshot.NewAssembler(registry, discovery, orderbook, buffer, cfg.Whale.Thresholds(), log.With().Str("component", "snapshot").Logger())

	sched := scheduler.New(scheduler.Config{
		ReclassifyInterval: cfg.Scheduler.ReclassifyInterval,
		DiscoveryInterval:  cfg.Discovery.Interval,
		StaleSweepInterval: cfg.Scheduler.StaleSweepInterval,
		EnabledTiers:       nil, // scheduler ticks every tier; wsmanager is the one that's bandwidth-limited
	}, registry, assembler, sink, log.With().Str("component", "scheduler").Logger())

	ingest := newTradeIngest(registry, buffer, cfg.Whale.Thresholds())
	wsMgr := wsmanager.New(wsmanager.Config{
		Connections:      cfg.WSManager.Connections,
		PerConnectionCap: cfg.WSManager.PerConnectionCap,
		RefreshInterval:  cfg.WSManager.RefreshInterval,
		StaggerSeconds:   cfg.WSManager.StaggerSeconds,
		StaleAfter:       cfg.WSManager.StaleAfter,
		MinTradeRate:     cfg.WSManager.MinTradeRate,
		EnabledTiers:     cfg.WSManager.EnabledTiers,
	}, registry, newStreamClient, ingest, log.With().Str("component", "wsmanager").Logger())

	return &Pipeline{
		cfg:       cfg,
		log:       log,
		Registry:  registry,
		Buffer:    buffer,
		Assembler: assembler,
		Scheduler: sched,
		WSManager: wsMgr,
	}
}

// Run seeds the registry with one discovery pass and supervises the
// scheduler and WS manager loops until ctx is canceled or either exits.
func (p *Pipeline) Run(ctx context.Context) error {
	added, updated, err := p.Registry.DiscoverOnce(ctx)
	if err != nil {
		return fmt.Errorf("initial discovery: %w", err)
	}
	p.log.Info().Int("added", added).Int("updated", updated).Msg("pipeline: initial discovery complete")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Scheduler.Run(ctx) })
	g.Go(func() error { return p.WSManager.Run(ctx) })
	return g.Wait()
}

// loggingSink implements scheduler.SnapshotSink for cmd/collector, where no
// downstream scanner exists to absorb assembled snapshots.
type loggingSink struct {
	log      zerolog.Logger
	interval time.Duration

	lastLog time.Time
	count   int
}

func newLoggingSink(log zerolog.Logger) *loggingSink {
	return &loggingSink{log: log, interval: time.Minute}
}

func (s *loggingSink) OnSnapshot(snap types.Snapshot) {
	s.count++
	if time.Since(s.lastLog) < s.interval {
		return
	}
	s.lastLog = time.Now()
	s.log.Info().Int("assembled_total", s.count).Str("last_condition_id", snap.ConditionID).Msg("collector: snapshot throughput")
}
