package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"
	clob "github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/data"

	"github.com/polyharvest/tiered-trader/internal/config"
	"github.com/polyharvest/tiered-trader/internal/execution"
	"github.com/polyharvest/tiered-trader/internal/ledger"
	"github.com/polyharvest/tiered-trader/internal/notify"
	"github.com/polyharvest/tiered-trader/internal/portfolio"
	"github.com/polyharvest/tiered-trader/internal/reaper"
	"github.com/polyharvest/tiered-trader/internal/risk"
	"github.com/polyharvest/tiered-trader/internal/scanner"
	"github.com/polyharvest/tiered-trader/internal/store"
	"github.com/polyharvest/tiered-trader/internal/strategy"
	"github.com/polyharvest/tiered-trader/internal/types"
	"github.com/polyharvest/tiered-trader/internal/venue"
)

// Trader is the trading engine core: it embeds a collection Pipeline (a
// trader has to see the same live snapshots the collector does — nothing
// here persists snapshots for a second process to read) and runs the
// scan -> strategy -> risk -> execute -> ledger cycle plus the resolution
// reaper on top of it.
//
// New takes every collaborator the constructor needs and Run drives one
// supervised loop whose body is the periodic scan cycle, gating an
// open-ended strategy.Strategy set built from config through the risk gate.
type Trader struct {
	cfg config.Config
	log zerolog.Logger

	pipeline  *Pipeline
	orderbook *venue.OrderbookClient
	scanStore *scanner.SnapshotStore
	scan      *scanner.Scanner

	strategies   []strategy.Strategy
	wantsHistory map[string]bool // strategy instance name -> needs price history

	riskMgr  *risk.Manager
	executor execution.Executor
	reaper   *reaper.Reaper
	ledger   *ledger.Ledger
	store    store.Store
	notifier *notify.Notifier

	portfolio *portfolio.Reconciler // live mode only
}

// Dependencies bundles every venue-facing collaborator New needs, so the
// constructor signature doesn't balloon with the SDK's own client types.
type Dependencies struct {
	Discovery       *venue.DiscoveryClient
	Orderbook       *venue.OrderbookClient
	NewStreamClient func() *venue.TradeStreamClient

	CLOB   clob.Client
	Signer auth.Signer
	Data   data.Client // nil is fine; live reconciliation is then skipped
}

func New(cfg config.Config, deps Dependencies, log zerolog.Logger) (*Trader, error) {
	scanStore := scanner.NewSnapshotStore(0)
	pipeline := NewPipeline(cfg, deps.Discovery, deps.Orderbook, deps.NewStreamClient, scanStore, log)

	strategies, wantsHistory, wallets, err := buildStrategies(cfg.Strategies, cfg.Trading.CapitalBaseUSD)
	if err != nil {
		return nil, fmt.Errorf("build strategies: %w", err)
	}

	riskMgr := risk.New(risk.Config{
		MaxPositionUSD:      cfg.Risk.Risk.MaxPositionUSD,
		MaxTotalExposureUSD: cfg.Risk.Risk.MaxTotalExposureUSD,
		MaxPositions:        cfg.Risk.Risk.MaxPositions,
		MaxDrawdownPct:      cfg.Risk.Risk.MaxDrawdownPct,
		SizingMethod:        cfg.Risk.Sizing.Method,
		FixedAmountUSD:      cfg.Risk.Sizing.FixedAmountUSD,
		KellyFraction:       cfg.Risk.Sizing.KellyFraction,
		MinSizeUSD:          cfg.Risk.Sizing.MinSizeUSD,
		MaxSizeUSD:          cfg.Risk.Sizing.MaxSizeUSD,
		VolatilityFloor:     cfg.Risk.Sizing.VolatilityFloor,
	})
	for name, allocated := range wallets {
		riskMgr.RegisterWallet(name, allocated)
	}

	execCfg := execution.Config{
		FeeBps:               cfg.Paper.FeeBps,
		SlippageBps:          cfg.Paper.SlippageBps,
		SlippageDepthK:       cfg.Paper.SlippageDepthK,
		MaxSlippageBps:       cfg.Paper.MaxSlippageBps,
		AllowShort:           cfg.Paper.AllowShort,
		LimitOffsetBps:       cfg.Risk.Execution.LimitOffsetBps,
		SpreadTimeoutSeconds: cfg.Risk.Execution.SpreadTimeoutSeconds,
	}
	var executor execution.Executor
	if cfg.TradingMode == "live" {
		if deps.Signer == nil {
			return nil, fmt.Errorf("live trading mode requires a signer")
		}
		executor = execution.NewLiveExecutor(deps.CLOB, deps.Signer, execCfg)
	} else {
		executor = execution.NewPaperExecutor(execCfg, cfg.Paper.InitialBalanceUSD)
	}

	var backing store.Store
	if cfg.Store.Path == "" || cfg.Store.Path == ":memory:" {
		backing = store.NewMemStore()
	} else {
		s, err := store.OpenSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		backing = s
	}

	reap := reaper.New(deps.Discovery, pipeline.Registry, riskMgr, reaper.Config{
		InvalidRecoveryPrice: cfg.Risk.InvalidRecoveryPrice,
	}, log.With().Str("component", "reaper").Logger())

	var recon *portfolio.Reconciler
	if cfg.TradingMode == "live" && deps.Data != nil && deps.Signer != nil {
		recon = portfolio.NewReconciler(deps.Data, deps.Signer.Address(), riskMgr, 5*time.Minute, 1, log.With().Str("component", "portfolio").Logger())
	}

	return &Trader{
		cfg:          cfg,
		log:          log,
		pipeline:     pipeline,
		orderbook:    deps.Orderbook,
		scanStore:    scanStore,
		scan:         scanner.New(pipeline.Registry, scanStore),
		strategies:   strategies,
		wantsHistory: wantsHistory,
		riskMgr:      riskMgr,
		executor:     executor,
		reaper:       reap,
		ledger:       ledger.New(backing, 0, log.With().Str("component", "ledger").Logger()),
		store:        backing,
		notifier:     notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID),
		portfolio:    recon,
	}, nil
}

// buildStrategies constructs one Strategy per configured, enabled instance
// across every type in the document, merging each instance's params over
// its type's defaults block, and sizes each instance's wallet allocation as
// SizePct of capitalBaseUSD.
func buildStrategies(doc config.StrategiesDocument, capitalBaseUSD float64) ([]strategy.Strategy, map[string]bool, map[string]float64, error) {
	var out []strategy.Strategy
	wantsHistory := make(map[string]bool)
	wallets := make(map[string]float64)

	for typeName, instances := range doc.Types {
		for _, inst := range instances {
			if inst.Enabled != nil && !*inst.Enabled {
				continue
			}
			merged := mergeParams(doc.Defaults[typeName], inst.Params)
			raw, err := json.Marshal(merged)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("marshal params for %s/%s: %w", typeName, inst.Name, err)
			}
			s, err := strategy.Build(typeName, inst.Name, raw)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("build %s/%s: %w", typeName, inst.Name, err)
			}
			out = append(out, s)
			wantsHistory[inst.Name] = strategy.WantsPriceHistory(typeName)
			wallets[inst.Name] = inst.SizePct * capitalBaseUSD
		}
	}
	return out, wantsHistory, wallets, nil
}

func mergeParams(defaults any, override map[string]any) map[string]any {
	merged := make(map[string]any)
	if d, ok := defaults.(map[string]any); ok {
		for k, v := range d {
			merged[k] = v
		}
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Run starts the collection pipeline, the scan cycle, the resolution
// reaper, and (live mode) the portfolio reconciler, and blocks until ctx
// is canceled or one of them returns an error.
func (t *Trader) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return t.pipeline.Run(ctx) })
	g.Go(func() error { return t.reaper.Run(ctx) })
	if t.portfolio != nil {
		g.Go(func() error { return t.portfolio.Run(ctx) })
	}
	g.Go(func() error { return t.runScanLoop(ctx) })

	return g.Wait()
}

func (t *Trader) runScanLoop(ctx context.Context) error {
	interval := t.cfg.Trading.ScanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.runCycle(ctx)
		}
	}
}

// runCycle runs every strategy's exit check over its own open positions,
// then its entry scan over the markets it filters in, gates every
// resulting signal through the risk manager, executes the approved ones,
// and records every decision — approved or not — to the ledger.
func (t *Trader) runCycle(ctx context.Context) {
	plain := t.scan.Scan(scanner.Options{})
	withHistory := plain
	if t.anyWantsHistory() {
		withHistory = t.scan.Scan(scanner.WithPriceHistory())
	}
	byCondition := make(map[string]scanner.MarketData, len(plain))
	for _, m := range plain {
		byCondition[m.ConditionID] = m
	}

	for _, s := range t.strategies {
		markets := plain
		if t.wantsHistory[s.Name()] {
			markets = withHistory
		}

		t.runExitChecks(ctx, s, markets)

		filtered := make([]scanner.MarketData, 0, len(markets))
		for _, m := range markets {
			if s.Filter(m) {
				filtered = append(filtered, m)
			}
		}
		for _, sig := range s.Scan(filtered) {
			t.handleEntry(ctx, sig, byCondition[sig.ConditionID])
		}
	}
}

func (t *Trader) anyWantsHistory() bool {
	for _, want := range t.wantsHistory {
		if want {
			return true
		}
	}
	return false
}

func (t *Trader) runExitChecks(ctx context.Context, s strategy.Strategy, markets []scanner.MarketData) {
	for _, m := range markets {
		for _, pos := range t.riskMgr.PositionsForMarket(m.ConditionID) {
			if pos.Strategy != s.Name() {
				continue
			}
			sig, exit := s.ShouldExit(*pos, m)
			if !exit {
				continue
			}
			t.handleExit(ctx, sig, pos)
		}
	}
}

// handleEntry gates a new-position signal through the risk manager before
// executing it. Dedup against an already-open position is the risk
// manager's job (RejectDuplicatePosition), so an entry never overwrites
// the exit path's tracked position.
func (t *Trader) handleEntry(ctx context.Context, sig types.Signal, m scanner.MarketData) {
	order, reason, err := t.riskMgr.Evaluate(sig)
	decision := types.TradeDecision{Signal: sig, Decided: time.Now(), Reason: reason}
	if err != nil {
		t.log.Warn().Err(err).Str("strategy", sig.Strategy).Msg("risk evaluation failed")
		t.ledger.Record(ctx, decision)
		return
	}
	if reason == types.RejectDrawdownExceeded {
		if nErr := t.notifier.NotifyEmergencyStop(ctx); nErr != nil {
			t.log.Warn().Err(nErr).Msg("emergency stop notification failed")
		}
	}
	if order == nil {
		decision.Approved = false
		t.ledger.Record(ctx, decision)
		return
	}
	order.Type = t.cfg.Risk.Execution.DefaultOrderType
	order.Price = sig.Price
	order.ClientID = uuid.New().String()
	decision.Approved = true
	decision.Order = order

	fill, ok := t.execute(ctx, *order, &decision)
	if !ok {
		return
	}

	token := types.TokenYes
	if order.TokenID == m.NoTokenID {
		token = types.TokenNo
	}
	pos := &types.Position{
		Strategy:    sig.Strategy,
		ConditionID: sig.ConditionID,
		TokenID:     sig.TokenID,
		Token:       token,
		Side:        sig.Side,
		Paper:       t.cfg.TradingMode != "live",
	}
	pos.ApplyFill(fill)
	t.riskMgr.OpenPosition(pos)
	t.ledger.Record(ctx, decision)

	if nErr := t.notifier.NotifyFill(ctx, sig.TokenID, string(sig.Side), fill.Price, fill.Shares); nErr != nil {
		t.log.Warn().Err(nErr).Msg("fill notification failed")
	}
}

// handleExit executes a strategy's exit signal against the position it
// already tracks, bypassing the risk gate entirely — reducing or closing
// exposure never needs the entry-time checks. pos is updated in place so
// the same pointer risk.Manager already holds reflects the new state.
func (t *Trader) handleExit(ctx context.Context, sig types.Signal, pos *types.Position) {
	order := types.Order{
		ConditionID: sig.ConditionID,
		TokenID:     sig.TokenID,
		Side:        sig.Side,
		Type:        t.cfg.Risk.Execution.DefaultOrderType,
		Price:       sig.Price,
		SizeUSD:     pos.CostBasis,
		ClientID:    uuid.New().String(),
	}
	decision := types.TradeDecision{Signal: sig, Decided: time.Now(), Approved: true, Order: &order}

	fill, ok := t.execute(ctx, order, &decision)
	if !ok {
		return
	}

	pos.ApplyFill(fill)
	if pos.Status == types.PositionClosed {
		t.riskMgr.ClosePosition(pos)
		if pos.RealizedPnL < 0 {
			if nErr := t.notifier.NotifyStopLoss(ctx, sig.TokenID, pos.RealizedPnL); nErr != nil {
				t.log.Warn().Err(nErr).Msg("stop-loss notification failed")
			}
		}
	}
	t.ledger.Record(ctx, decision)
}

// execute fetches the current book and runs the configured executor,
// logging and recording to the ledger on any failure so a ledger entry
// always exists for an approved decision even when the fill never lands.
func (t *Trader) execute(ctx context.Context, order types.Order, decision *types.TradeDecision) (types.Fill, bool) {
	book, err := t.orderbook.GetOrderbook(ctx, order.TokenID)
	if err != nil {
		t.log.Warn().Err(err).Str("token_id", order.TokenID).Str("client_id", order.ClientID).Msg("could not fetch book for execution")
		t.ledger.Record(ctx, *decision)
		return types.Fill{}, false
	}

	fill, err := t.executor.Execute(ctx, order, book)
	if err != nil {
		t.log.Warn().Err(err).Str("strategy", decision.Signal.Strategy).Str("client_id", order.ClientID).Msg("execution failed")
		t.ledger.Record(ctx, *decision)
		return types.Fill{}, false
	}
	decision.Fill = &fill
	return fill, true
}

// Shutdown releases the persisted-state backend.
func (t *Trader) Shutdown() error {
	return t.store.Close()
}

// RecentDecisions exposes the ledger's in-memory trail for operational
// inspection.
func (t *Trader) RecentDecisions(n int) []types.TradeDecision {
	return t.ledger.Recent(n)
}
