package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	polymarket "github.com/GoPolymarket/polymarket-go-sdk"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"

	"github.com/polyharvest/tiered-trader/internal/app"
	"github.com/polyharvest/tiered-trader/internal/config"
	"github.com/polyharvest/tiered-trader/internal/logging"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	log := logging.New(cfg.LogLevel, os.Stdout)
	if err != nil {
		log.Warn().Err(err).Msg("config file: using defaults")
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	log = logging.New(cfg.LogLevel, os.Stdout)

	log.Info().Msg("tiered-collector starting")

	if cfg.PrivateKey == "" || cfg.APIKey == "" {
		log.Fatal().Msg("POLYMARKET_PK and POLYMARKET_API_KEY are required")
	}
	signer, err := auth.NewPrivateKeySigner(strings.TrimSpace(cfg.PrivateKey), 137)
	if err != nil {
		log.Fatal().Err(err).Msg("signer")
	}
	apiKey := &auth.APIKey{
		Key:        strings.TrimSpace(cfg.APIKey),
		Secret:     strings.TrimSpace(cfg.APISecret),
		Passphrase: strings.TrimSpace(cfg.APIPassphrase),
	}

	sdkClient := polymarket.NewClient()
	clobClient := sdkClient.CLOB.WithAuth(signer, apiKey)
	wsClient := sdkClient.CLOBWS.Authenticate(signer, apiKey)

	discovery := venue.NewDiscoveryClient(sdkClient.Gamma)
	orderbook := venue.NewOrderbookClient(clobClient)
	newStreamClient := func() *venue.TradeStreamClient {
		return venue.NewTradeStreamClient(wsClient)
	}

	collector := app.NewCollector(cfg, discovery, orderbook, newStreamClient, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := collector.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("collector exited")
	}
	log.Info().Msg("tiered-collector shut down cleanly")
}
