package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/polyharvest/tiered-trader/internal/config"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// Collector is cmd/collector's entire orchestration surface: the tiered
// collection pipeline, running with no trading engine attached. Useful on
// its own to validate discovery, tiering, and WS pool health without
// touching risk or execution.
type Collector struct {
	Pipeline *Pipeline
	log      zerolog.Logger
}

func NewCollector(
	cfg config.Config,
	discovery *venue.DiscoveryClient,
	orderbook *venue.OrderbookClient,
	newStreamClient func() *venue.TradeStreamClient,
	log zerolog.Logger,
) *Collector {
	sink := newLoggingSink(log.With().Str("component", "snapshot_sink").Logger())
	return &Collector{
		Pipeline: NewPipeline(cfg, discovery, orderbook, newStreamClient, sink, log),
		log:      log,
	}
}

func (c *Collector) Run(ctx context.Context) error {
	c.log.Info().Msg("collector: starting tiered collection pipeline")
	return c.Pipeline.Run(ctx)
}
