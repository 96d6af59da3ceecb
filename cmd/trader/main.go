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

	log.Info().Str("mode", cfg.TradingMode).Bool("dry_run", cfg.DryRun).Msg("tiered-trader starting")

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

	if cfg.BuilderKey != "" && cfg.BuilderSecret != "" {
		clobClient = clobClient.WithBuilderConfig(&auth.BuilderConfig{
			Local: &auth.BuilderCredentials{
				Key:        strings.TrimSpace(cfg.BuilderKey),
				Secret:     strings.TrimSpace(cfg.BuilderSecret),
				Passphrase: strings.TrimSpace(cfg.BuilderPassphrase),
			},
		})
		log.Info().Msg("builder attribution enabled")
	}

	wsClient := sdkClient.CLOBWS.Authenticate(signer, apiKey)

	deps := app.Dependencies{
		Discovery: venue.NewDiscoveryClient(sdkClient.Gamma),
		Orderbook: venue.NewOrderbookClient(clobClient),
		NewStreamClient: func() *venue.TradeStreamClient {
			return venue.NewTradeStreamClient(wsClient)
		},
		CLOB:   clobClient,
		Signer: signer,
	}
	if cfg.TradingMode == "live" {
		deps.Data = sdkClient.Data
	}

	trader, err := app.New(cfg, deps, log)
	if err != nil {
		log.Fatal().Err(err).Msg("trader init")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := trader.Run(ctx)

	if shutdownErr := trader.Shutdown(); shutdownErr != nil {
		log.Warn().Err(shutdownErr).Msg("store shutdown")
	}
	if runErr != nil && ctx.Err() == nil {
		log.Fatal().Err(runErr).Msg("trader exited")
	}
	log.Info().Msg("tiered-trader shut down cleanly")
}
