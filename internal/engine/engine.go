// Package engine orchestrates the full detection-to-execution pipeline:
// it wires the price feed bus and rolling windows into every detector
// family, routes their raw events through the classifier and plan
// builder, and drives accepted plans through a Trade Lifecycle
// Supervisor. One Engine owns one configuration, one clock, and one
// execution venue client.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/riftline/ineffic-engine/internal/adapters"
	"github.com/riftline/ineffic-engine/internal/bus"
	"github.com/riftline/ineffic-engine/internal/classifier"
	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/config"
	"github.com/riftline/ineffic-engine/internal/correlation"
	"github.com/riftline/ineffic-engine/internal/detectors/arbitrage"
	"github.com/riftline/ineffic-engine/internal/detectors/basis"
	"github.com/riftline/ineffic-engine/internal/detectors/breakdown"
	"github.com/riftline/ineffic-engine/internal/detectors/btcmove"
	"github.com/riftline/ineffic-engine/internal/detectors/depeg"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/exitengine"
	"github.com/riftline/ineffic-engine/internal/lifecycle"
	"github.com/riftline/ineffic-engine/internal/liquidity"
	"github.com/riftline/ineffic-engine/internal/money"
	"github.com/riftline/ineffic-engine/internal/planbuilder"
	"github.com/riftline/ineffic-engine/internal/ports"
	"github.com/riftline/ineffic-engine/internal/stats"
	"github.com/riftline/ineffic-engine/internal/telemetry"
	"github.com/riftline/ineffic-engine/internal/window"

	"github.com/riftline/ineffic-engine/infra/breakers"
	"github.com/riftline/ineffic-engine/infra/limits"
)

// Config holds the orchestrator's own scheduling tunables; detector and
// downstream component tunables live in config.Config and are read from
// the live config.Store on every cycle.
type Config struct {
	DetectionInterval time.Duration
	MonitorInterval   time.Duration
	WindowRetention   time.Duration
	WindowMaxAge      time.Duration
	ReturnStep        time.Duration // bucket width assumed between window samples for breakdown series
}

// DefaultConfig returns sane scheduling defaults.
func DefaultConfig() Config {
	return Config{
		DetectionInterval: 10 * time.Second,
		MonitorInterval:   5 * time.Second,
		WindowRetention:   6 * time.Hour,
		WindowMaxAge:      2 * time.Minute,
		ReturnStep:        time.Minute,
	}
}

// Engine wires every pipeline component together and drives it on the
// clock's schedule.
type Engine struct {
	cfg      Config
	cfgStore *config.Store
	clk      clock.Clock
	client   ports.ExchangeClient // decorated with breaker/limiter/health protection

	bus     *bus.Bus
	windows *window.Store
	corr    *correlation.Store

	depegDetectors map[string]*depeg.Detector
	btc            *btcmove.Detector
	breakdownDet   *breakdown.Detector
	basisDet       *basis.Detector
	arbDet         *arbitrage.Detector

	classifier *classifier.Classifier
	liquidityA *liquidity.Analyzer
	planB      *planbuilder.Builder

	health   *adapters.Registry
	breakers *breakers.Registry
	limiter  *limits.Registry

	stats   *stats.Recorder
	metrics *telemetry.Metrics
	log     zerolog.Logger

	mu     sync.Mutex
	trades map[string]*lifecycle.Supervisor

	booksMu         sync.Mutex
	liquidityScores map[string]money.Dec // venue -> most recent liquidity.Analyzer score

	tickVenuesMu sync.Mutex
	tickVenues   map[string]map[string]venueQuote // symbol -> venue -> most recent tick liquidity/price

	basisMu        sync.Mutex
	basisContracts map[string][]events.BasisContract // base asset -> non-perpetual contracts observed, for calendar-spread pairing

	recentArbMu sync.Mutex
	recentArb   []events.ArbitrageOpportunity // bounded ring for the HTTP control surface

	disabledMu sync.RWMutex
	disabled   map[string]bool // detector family name -> suspended by /subsystems/{name}/stop

	tokens []clock.Token
}

// subsystem names recognized by Start/Stop, matching the keys used for
// stats.Recorder and telemetry detector labels.
const (
	subsystemDepeg       = "depeg"
	subsystemMomentum    = "momentum_transfer"
	subsystemBreakdown   = "correlation_breakdown"
	subsystemArbitrage   = "cross_exchange_arbitrage"
	subsystemBasis       = "basis_arbitrage"
)

const recentArbCap = 50

// New constructs an Engine. history and corrHistory may be nil ports
// (detectors fall back to their in-cycle defaults) when no persistence
// backend is configured.
func New(
	cfg Config,
	cfgStore *config.Store,
	clk clock.Clock,
	client ports.ExchangeClient,
	history ports.DepegHistoryStore,
	metrics *telemetry.Metrics,
	log zerolog.Logger,
) *Engine {
	live := cfgStore.Current()

	e := &Engine{
		cfg:      cfg,
		cfgStore: cfgStore,
		clk:      clk,
		client:   client,
		bus:      bus.New(),
		windows:  window.NewStore(cfg.WindowRetention, cfg.WindowMaxAge),
		health:   adapters.NewRegistry(),
		breakers: breakers.NewRegistry(),
		limiter:  limits.NewRegistry(5, 10),
		stats:    stats.New(),
		metrics:  metrics,
		log:      log.With().Str("component", "engine").Logger(),
		trades:   make(map[string]*lifecycle.Supervisor),
		liquidityScores: make(map[string]money.Dec),
		tickVenues:      make(map[string]map[string]venueQuote),
		basisContracts:  make(map[string][]events.BasisContract),
		disabled:        make(map[string]bool),
	}
	e.client = newResilientClient(client, e.breakers, e.limiter, e.health, e.clk.Now)

	e.corr = correlation.NewStore(live.Correlation.ReferenceSymbol, correlationConfigFrom(live.Correlation))

	e.depegDetectors = make(map[string]*depeg.Detector, len(live.Depeg.Stablecoins))
	for _, coin := range live.Depeg.Stablecoins {
		e.depegDetectors[coin] = depeg.New(coin, depegConfigFrom(live.Depeg), clk, history)
	}

	refWindow := e.windows.Get("composite", live.Correlation.ReferenceSymbol)
	e.btc = btcmove.New(btcmove.DefaultConfig(), refWindow, e.corr)
	e.breakdownDet = breakdown.New(e.corr, e.buildSeries)
	e.basisDet = basis.New(basis.DefaultConfig())
	e.arbDet = arbitrage.New(arbitrage.DefaultConfig(), client)

	e.classifier = classifier.New(classifierConfigFrom(live.Classifier))
	e.liquidityA = liquidity.New(liquidity.DefaultConfig())
	e.planB = planbuilder.New(planBuilderConfigFrom(live.PlanBuilder))

	return e
}

func depegConfigFrom(c config.DepegConfig) depeg.Config {
	return depeg.Config{
		PegValue:             money.One,
		MinExchangesRequired: c.MinExchangesRequired,
		MinLiquidityRequired: money.D(c.MinLiquidityUsd),
		MaxPriceAgeMs:        c.MaxPriceAgeMs,
		Thresholds: depeg.Thresholds{
			Minor:    money.D(c.ThresholdMinor),
			Moderate: money.D(c.ThresholdModerate),
			Severe:   money.D(c.ThresholdSevere),
			Extreme:  money.D(c.ThresholdExtreme),
		},
	}
}

func correlationConfigFrom(c config.CorrelationConfig) correlation.Config {
	cfg := correlation.DefaultConfig()
	cfg.MinSamples = c.MinSamples
	cfg.Lookback = time.Duration(c.LookbackHours) * time.Hour
	cfg.BreakdownDelta = money.D(c.BreakdownDelta)
	cfg.MinConfidence = money.D(c.MinConfidence)
	return cfg
}

func classifierConfigFrom(c config.ClassifierConfig) classifier.Config {
	cfg := classifier.DefaultConfig()
	cfg.WeightProfit = money.D(c.WeightProfit)
	cfg.WeightLiquidity = money.D(c.WeightLiquidity)
	cfg.WeightHistorical = money.D(c.WeightHistorical)
	cfg.WeightReversion = money.D(c.WeightReversion)
	cfg.WeightMarket = money.D(c.WeightMarket)
	cfg.FractionalKelly = money.D(c.FractionalKelly)
	cfg.AbsoluteCap = money.D(c.AbsoluteCapUsd)
	return cfg
}

func planBuilderConfigFrom(c config.PlanBuilderConfig) planbuilder.Config {
	cfg := planbuilder.DefaultConfig()
	cfg.MarketThresholdPct = money.D(c.MarketThresholdPct)
	cfg.TWAPThresholdPct = money.D(c.TWAPThresholdPct)
	cfg.SlippageTolerance = money.D(c.SlippageTolerance)
	cfg.MaxExecutionTime = time.Duration(c.MaxExecutionSecs) * time.Second
	return cfg
}

// Bus exposes the price feed bus so adapters can publish ticks/books into
// the pipeline.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Stats exposes the recorder for the HTTP control surface.
func (e *Engine) Stats() *stats.Recorder { return e.stats }

// Run subscribes to the bus and starts the periodic detection and
// monitoring cycles. It returns once ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticks, unsubTicks := e.bus.SubscribeTicks(nil)
	books, unsubBooks := e.bus.SubscribeBooks(nil)
	defer unsubTicks()
	defer unsubBooks()

	detectionTok := e.clk.Every(e.cfg.DetectionInterval, func() { e.runDetectionCycle(ctx) })
	monitorTok := e.clk.Every(e.cfg.MonitorInterval, func() { e.monitorTrades(ctx) })
	e.tokens = append(e.tokens, detectionTok, monitorTok)

	for {
		select {
		case <-ctx.Done():
			e.clk.Cancel(detectionTok)
			e.clk.Cancel(monitorTok)
			return
		case t, ok := <-ticks:
			if !ok {
				return
			}
			e.handleTick(t)
		case <-books.Notify():
			for _, ob := range books.Drain() {
				e.handleBook(ob)
			}
		}
	}
}

func (e *Engine) handleTick(t events.PriceTick) {
	win := e.windows.Get(t.Exchange, t.Symbol)
	win.Append(window.Sample{Timestamp: t.Timestamp, Price: t.Price, Liquidity: t.Liquidity, Volume: t.Volume24h})
	e.recordTickVenue(t.Symbol, t.Exchange, t.Liquidity, t.Price)

	if d, ok := e.depegDetectors[t.Symbol]; ok {
		d.Observe(t)
	}

	live := e.cfgStore.Current()
	sample := window.Sample{Timestamp: t.Timestamp, Price: t.Price, Liquidity: t.Liquidity, Volume: t.Volume24h}
	switch {
	case t.Symbol == live.Correlation.ReferenceSymbol:
		e.windows.Get("composite", t.Symbol).Append(sample)
	case isAltcoin(live.Correlation.Altcoins, t.Symbol):
		// momentum transfer looks up an altcoin's latest composite price by
		// its bare symbol; buildSeries looks up its return series by the
		// pair key (e.g. "ETH-BTC"). Mirror the sample under both.
		e.windows.Get("composite", t.Symbol).Append(sample)
		e.windows.Get("composite", t.Symbol+"-"+live.Correlation.ReferenceSymbol).Append(sample)
	}
}

func isAltcoin(altcoins []string, symbol string) bool {
	for _, c := range altcoins {
		if c == symbol {
			return true
		}
	}
	return false
}

// venueQuote is the most recent liquidity and price a venue quoted for a
// symbol, tracked from the tick stream for detector families with no
// natural per-event venue list.
type venueQuote struct {
	Liquidity money.Dec
	Price     money.Dec
}

// recordTickVenue remembers the most recent liquidity/price a venue quoted
// for symbol, so detector families with no natural per-event venue list
// (momentum transfer, correlation breakdown) can still size and rank
// entry/exit venues from the tick stream instead of falling back to none
// at all.
func (e *Engine) recordTickVenue(symbol, venue string, liquidity, price money.Dec) {
	e.tickVenuesMu.Lock()
	defer e.tickVenuesMu.Unlock()
	byVenue, ok := e.tickVenues[symbol]
	if !ok {
		byVenue = make(map[string]venueQuote)
		e.tickVenues[symbol] = byVenue
	}
	byVenue[venue] = venueQuote{Liquidity: liquidity, Price: price}
}

// venueLiquidityForSymbol returns venue liquidity for every exchange that
// has quoted symbol, ranked by the engine's last observed order-book
// score for that venue.
func (e *Engine) venueLiquidityForSymbol(symbol string) []planbuilder.VenueLiquidity {
	e.tickVenuesMu.Lock()
	byVenue := e.tickVenues[symbol]
	out := make([]planbuilder.VenueLiquidity, 0, len(byVenue))
	for venue, q := range byVenue {
		out = append(out, planbuilder.VenueLiquidity{Venue: venue, Score: e.venueScore(venue), AvailableLiquidity: q.Liquidity, Price: q.Price})
	}
	e.tickVenuesMu.Unlock()
	return out
}

func (e *Engine) handleBook(ob events.OrderBook) {
	e.health.For(ob.Exchange).Record(ob.Timestamp, 0, false)
	win := e.windows.Get(ob.Exchange, ob.Pair)
	win.Append(window.Sample{Timestamp: ob.Timestamp, Price: ob.BestBid.Add(ob.BestAsk).Div(money.D(2)), Liquidity: ob.TotalBidLiq.Add(ob.TotalAskLiq)})

	recovery := money.D(e.health.For(ob.Exchange).RecoveryScore(ob.Timestamp))
	volume := ob.TotalBidLiq.Add(ob.TotalAskLiq)
	score := e.liquidityA.Score(ob, volume, nil, recovery)

	e.booksMu.Lock()
	e.liquidityScores[ob.Exchange] = score
	e.booksMu.Unlock()
}

// venueScore returns the last computed liquidity score for venue, or a
// neutral default if no order book has been observed for it yet.
func (e *Engine) venueScore(venue string) money.Dec {
	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	if s, ok := e.liquidityScores[venue]; ok {
		return s
	}
	return money.D(50)
}

// buildSeries reconstructs short-horizon, per-minute-aligned return
// series for a pair's reference and altcoin legs from the rolling window
// store, for the breakdown detector.
func (e *Engine) buildSeries(pair string, now time.Time) (ref, alt correlation.ReturnSeries, confidence money.Dec, ok bool) {
	live := e.cfgStore.Current()
	refSym := live.Correlation.ReferenceSymbol

	refWin := e.windows.Get("composite", refSym)
	altWin := e.windows.Get("composite", pair)

	refReturns, err1 := refWin.Returns(now, live.Correlation.MinSamples)
	altReturns, err2 := altWin.Returns(now, live.Correlation.MinSamples)
	if err1 != nil || err2 != nil || len(refReturns) == 0 || len(altReturns) != len(refReturns) {
		return correlation.ReturnSeries{}, correlation.ReturnSeries{}, money.Zero, false
	}

	n := len(refReturns)
	refTs := make([]time.Time, n)
	altTs := make([]time.Time, n)
	for i := 0; i < n; i++ {
		offset := time.Duration(n-1-i) * e.cfg.ReturnStep
		refTs[i] = now.Add(-offset)
		altTs[i] = now.Add(-offset)
	}

	c, hasC := e.corr.Get(pair)
	conf := money.D(0.5)
	if hasC {
		conf = c.Confidence
	}

	return correlation.ReturnSeries{Timestamps: refTs, Returns: refReturns},
		correlation.ReturnSeries{Timestamps: altTs, Returns: altReturns},
		conf, true
}

// runDetectionCycle runs every detector family once, classifying and
// planning for anything each one emits.
func (e *Engine) runDetectionCycle(ctx context.Context) {
	now := e.clk.Now()
	live := e.cfgStore.Current()

	e.runDepegCycle(ctx, now)
	e.runMomentumCycle(ctx, now, live.Correlation.Altcoins)
	e.runCorrelationBaselineCycle(now, live.Correlation.Altcoins)
	e.runBreakdownCycle(ctx, now, live.Correlation.Altcoins)
}

// runCorrelationBaselineCycle seeds each tracked pair's stored baseline
// correlation the first time enough samples are available. Without this,
// the Correlation Store never has a baseline and breakdown detection
// never fires; once seeded, the baseline is left in place so the
// breakdown check has something stable to compare later, divergent
// windows against instead of re-seeding from (and thus matching) the
// same window it is about to check.
func (e *Engine) runCorrelationBaselineCycle(now time.Time, altcoins []string) {
	live := e.cfgStore.Current()
	for _, coin := range altcoins {
		pair := coin + "-" + live.Correlation.ReferenceSymbol
		if _, ok := e.corr.Get(pair); ok {
			continue
		}
		ref, alt, _, ok := e.buildSeries(pair, now)
		if !ok {
			continue
		}
		if _, err := e.corr.Recompute(pair, ref, alt, now); err != nil {
			e.log.Debug().Err(err).Str("pair", pair).Msg("correlation baseline seed skipped")
		}
	}
}

// enabled reports whether name's subsystem is currently active; every
// family starts enabled and is only suspended by an explicit Stop call.
func (e *Engine) enabled(name string) bool {
	e.disabledMu.RLock()
	defer e.disabledMu.RUnlock()
	return !e.disabled[name]
}

// Start re-enables a previously stopped detector family.
func (e *Engine) Start(name string) error {
	if !isKnownSubsystem(name) {
		return fmt.Errorf("unknown subsystem %q", name)
	}
	e.disabledMu.Lock()
	delete(e.disabled, name)
	e.disabledMu.Unlock()
	return nil
}

// Stop suspends a detector family; in-flight trades continue to be
// monitored, only new detections for that family are skipped.
func (e *Engine) Stop(name string) error {
	if !isKnownSubsystem(name) {
		return fmt.Errorf("unknown subsystem %q", name)
	}
	e.disabledMu.Lock()
	e.disabled[name] = true
	e.disabledMu.Unlock()
	return nil
}

func isKnownSubsystem(name string) bool {
	switch name {
	case subsystemDepeg, subsystemMomentum, subsystemBreakdown, subsystemArbitrage, subsystemBasis:
		return true
	default:
		return false
	}
}

// Trades returns a snapshot of every trade currently tracked by a live
// lifecycle supervisor.
func (e *Engine) Trades() []events.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.Trade, 0, len(e.trades))
	for _, sup := range e.trades {
		out = append(out, sup.Trade())
	}
	return out
}

// Opportunities returns the most recent cross-exchange arbitrage
// opportunities surfaced by the detector, bounded to recentArbCap.
func (e *Engine) Opportunities() []events.ArbitrageOpportunity {
	e.recentArbMu.Lock()
	defer e.recentArbMu.Unlock()
	out := make([]events.ArbitrageOpportunity, len(e.recentArb))
	copy(out, e.recentArb)
	return out
}

// Correlations returns a snapshot of every pair's stored baseline, for a
// background loop to persist to a cache backend between restarts.
func (e *Engine) Correlations() map[string]events.CoinCorrelation {
	return e.corr.All()
}

// SeedCorrelation installs a previously-persisted correlation baseline,
// restoring state a cache backend saved from a prior run instead of
// waiting for runCorrelationBaselineCycle to recompute it from scratch.
func (e *Engine) SeedCorrelation(pair string, c events.CoinCorrelation) {
	e.corr.Seed(pair, c)
}

func (e *Engine) recordArbOpportunity(opp events.ArbitrageOpportunity) {
	e.recentArbMu.Lock()
	defer e.recentArbMu.Unlock()
	e.recentArb = append(e.recentArb, opp)
	if len(e.recentArb) > recentArbCap {
		e.recentArb = e.recentArb[len(e.recentArb)-recentArbCap:]
	}
}

func (e *Engine) runDepegCycle(ctx context.Context, now time.Time) {
	if !e.enabled(subsystemDepeg) {
		return
	}
	for coin, d := range e.depegDetectors {
		ev, err := d.Evaluate(ctx)
		if err != nil {
			e.log.Debug().Err(err).Str("stablecoin", coin).Msg("depeg evaluation skipped")
			continue
		}
		if ev == nil {
			continue
		}
		e.stats.RecordDetection("depeg")
		e.metrics.DetectionsTotal.WithLabelValues("depeg").Inc()
		e.handleDepeg(ctx, now, *ev)
	}
}

func (e *Engine) handleDepeg(ctx context.Context, now time.Time, ev events.DepegEvent) {
	venues := e.venueLiquidityFromTicks(ev.Exchanges)
	entryVenues, exitVenues := venueScoresFrom(venues, ev.AvgPrice, ev.PegValue)

	in := classifier.Input{
		SourceKind:           events.SourceDepeg,
		SourceEventID:        ev.ID,
		ExpectedProfitPct:    money.Abs(ev.Magnitude),
		ExpectedProfitUsd:    money.Abs(ev.Magnitude).Mul(ev.LiquidityScore),
		Severity:             severityScore(ev.Severity),
		Volatility:           money.D(0.2),
		LiquidityUsd:         ev.LiquidityScore,
		HistoricalSuccess:    money.D(0.5),
		ReversionTimeMs:      ev.EstimatedReversionTimeMs,
		MaxReversionTimeMs:   int64(30 * time.Minute / time.Millisecond),
		MarketConditionScore: money.D(60),
		Confidence:           money.D(0.7),
		EntryVenues:          entryVenues,
		ExitVenues:           exitVenues,
		OptimalEntryPrice:    ev.AvgPrice,
		OptimalExitPrice:     ev.PegValue,
		WinProbability:       money.D(0.55),
		WinLossRatio:         money.D(1.5),
		Capital:              money.D(10_000),
	}

	e.classifyPlanAndEnter(ctx, now, ev.Stablecoin, in, ev.PegValue, ev.AvgPrice, venues)
}

func severityScore(sev events.DepegSeverity) money.Dec {
	switch sev {
	case events.SeverityExtreme:
		return money.D(0.9)
	case events.SeveritySevere:
		return money.D(0.7)
	case events.SeverityModerate:
		return money.D(0.4)
	default:
		return money.D(0.2)
	}
}

func (e *Engine) runMomentumCycle(ctx context.Context, now time.Time, altcoins []string) {
	if !e.enabled(subsystemMomentum) {
		return
	}
	for _, mv := range e.btc.EvaluateMovements(now) {
		e.stats.RecordDetection("btc_move")
		e.metrics.DetectionsTotal.WithLabelValues("btc_move").Inc()
		if !mv.Significant {
			continue
		}
		for _, opp := range e.btc.EvaluateMomentumTransfer(now, mv, altcoins) {
			e.stats.RecordDetection("momentum_transfer")
			e.metrics.DetectionsTotal.WithLabelValues("momentum_transfer").Inc()
			e.handleMomentum(ctx, now, opp)
		}
	}
}

func (e *Engine) handleMomentum(ctx context.Context, now time.Time, opp events.MomentumTransferOpportunity) {
	win := e.windows.Get("composite", opp.Altcoin)
	sample, ok := win.Latest(now)
	price := money.Zero
	if ok {
		price = sample.Price
	}

	exitPrice := price.Mul(money.One.Add(opp.ExpectedMagnitude))
	venues := e.venueLiquidityForSymbol(opp.Altcoin)
	entryVenues, exitVenues := venueScoresFrom(venues, price, exitPrice)

	in := classifier.Input{
		SourceKind:           events.SourceMomentumTransfer,
		SourceEventID:        opp.ID,
		ExpectedProfitPct:    money.Abs(opp.ExpectedMagnitude),
		ExpectedProfitUsd:    money.Abs(opp.ExpectedMagnitude).Mul(money.D(10_000)),
		Severity:             money.D(0.3),
		Volatility:           money.D(0.3),
		LiquidityUsd:         sample.Liquidity,
		HistoricalSuccess:    opp.Confidence,
		ReversionTimeMs:      opp.ExpectedDelayMs,
		MaxReversionTimeMs:   int64(time.Hour / time.Millisecond),
		MarketConditionScore: money.D(55),
		Confidence:           opp.Confidence,
		EntryVenues:          entryVenues,
		ExitVenues:           exitVenues,
		OptimalEntryPrice:    price,
		OptimalExitPrice:     exitPrice,
		WinProbability:       opp.Confidence,
		WinLossRatio:         money.D(1.2),
		Capital:              money.D(10_000),
	}
	e.classifyPlanAndEnter(ctx, now, opp.Altcoin, in, in.OptimalExitPrice, in.OptimalEntryPrice, venues)
}

func (e *Engine) runBreakdownCycle(ctx context.Context, now time.Time, altcoins []string) {
	if !e.enabled(subsystemBreakdown) {
		return
	}
	live := e.cfgStore.Current()
	for _, coin := range altcoins {
		pair := coin + "-" + live.Correlation.ReferenceSymbol
		ev, changed := e.breakdownDet.Evaluate(pair, now)
		if !changed || ev == nil || ev.Status != events.BreakdownActive {
			continue
		}
		e.stats.RecordDetection("correlation_breakdown")
		e.metrics.DetectionsTotal.WithLabelValues("correlation_breakdown").Inc()
		e.handleBreakdown(ctx, now, *ev)
	}
}

func (e *Engine) handleBreakdown(ctx context.Context, now time.Time, ev events.CorrelationBreakdownEvent) {
	altcoin := strings.TrimSuffix(ev.Pair, "-"+e.cfgStore.Current().Correlation.ReferenceSymbol)
	venues := e.venueLiquidityForSymbol(altcoin)
	// ev's anchors are correlation coefficients, not prices, so there is no
	// meaningful price-improvement/peg-proximity signal here; rank on
	// liquidity alone by passing unquoted anchors.
	entryVenues, exitVenues := venueScoresFrom(venues, money.Zero, money.Zero)

	in := classifier.Input{
		SourceKind:           events.SourceCorrelationBreak,
		SourceEventID:        ev.ID,
		ExpectedProfitPct:    money.Abs(ev.Deviation),
		ExpectedProfitUsd:    money.Abs(ev.Deviation).Mul(money.D(5_000)),
		Severity:             money.Clamp(money.Abs(ev.Deviation), money.Zero, money.One),
		Volatility:           money.D(0.35),
		LiquidityUsd:         money.D(500_000),
		HistoricalSuccess:    ev.Confidence,
		ReversionTimeMs:      ev.ExpectedReversionTimeMs,
		MaxReversionTimeMs:   int64(2 * time.Hour / time.Millisecond),
		MarketConditionScore: money.D(50),
		Confidence:           ev.Confidence,
		EntryVenues:          entryVenues,
		ExitVenues:           exitVenues,
		WinProbability:       ev.Confidence,
		WinLossRatio:         money.D(1.3),
		Capital:              money.D(10_000),
	}
	e.classifyPlanAndEnter(ctx, now, altcoin, in, ev.ExpectedReversionTarget, ev.CurrentCorrelation, venues)
}

// SubmitArbitrageQuotes lets a venue adapter feed a fresh cross-venue
// quote set for one asset into the arbitrage detector; it is not
// discoverable from ticks alone since arbitrage compares simultaneous
// venue snapshots rather than a single rolling series.
func (e *Engine) SubmitArbitrageQuotes(ctx context.Context, now time.Time, asset string, quotes []arbitrage.Quote) {
	if !e.enabled(subsystemArbitrage) {
		return
	}
	fees := make(map[string]ports.FeeSchedule, len(quotes))
	for _, q := range quotes {
		fees[q.Venue] = e.arbDet.FeesFor(ctx, q.Venue, asset)
	}
	for _, opp := range e.arbDet.EvaluateAll(asset, quotes, fees, now) {
		e.stats.RecordDetection("cross_exchange_arbitrage")
		e.metrics.DetectionsTotal.WithLabelValues("cross_exchange_arbitrage").Inc()
		e.recordArbOpportunity(opp)
		e.handleArbitrage(ctx, now, opp)
	}
}

func (e *Engine) handleArbitrage(ctx context.Context, now time.Time, opp events.ArbitrageOpportunity) {
	in := classifier.Input{
		SourceKind:           events.SourceCrossExchangeArb,
		SourceEventID:        opp.ID,
		ExpectedProfitPct:    opp.NetProfitPct,
		ExpectedProfitUsd:    opp.NetProfit,
		Severity:             opp.Risk.OverallRisk,
		Volatility:           opp.Risk.PriceMovementRisk,
		LiquidityUsd:         opp.MaxTradeSize.Mul(opp.BuyPrice),
		HistoricalSuccess:    money.D(0.6),
		ReversionTimeMs:      opp.ExecutionTimeEstimateMs,
		MaxReversionTimeMs:   int64(10 * time.Minute / time.Millisecond),
		MarketConditionScore: money.D(65),
		Confidence:           opp.Confidence,
		OptimalEntryPrice:    opp.BuyPrice,
		OptimalExitPrice:     opp.SellPrice,
		WinProbability:       opp.Confidence,
		WinLossRatio:         money.D(2),
		Capital:              money.D(10_000),
	}
	venues := []planbuilder.VenueLiquidity{
		{Venue: opp.BuyVenue, Score: e.venueScore(opp.BuyVenue), AvailableLiquidity: opp.MaxTradeSize.Mul(opp.BuyPrice), Price: opp.BuyPrice},
		{Venue: opp.SellVenue, Score: e.venueScore(opp.SellVenue), AvailableLiquidity: opp.MaxTradeSize.Mul(opp.SellPrice), Price: opp.SellPrice},
	}
	e.classifyPlanAndEnter(ctx, now, opp.Asset, in, opp.SellPrice, opp.BuyPrice, venues)
}

// SubmitBasisContract feeds one venue's futures/perpetual snapshot into
// the basis detector; contract data arrives out-of-band from ticks
// (funding rate, open interest, mark/index prices), so no bus ingestion
// path covers it. Non-perpetual contracts are also paired against every
// other tracked contract for the same base asset to scan for calendar
// spreads.
func (e *Engine) SubmitBasisContract(ctx context.Context, now time.Time, contract events.BasisContract) {
	if !e.enabled(subsystemBasis) {
		return
	}
	if opp := e.basisDet.ScanBasis(contract, now); opp != nil {
		e.stats.RecordDetection("basis_arbitrage")
		e.metrics.DetectionsTotal.WithLabelValues("basis_arbitrage").Inc()
		e.handleBasis(ctx, now, *opp)
	}
	if contract.ContractType != events.ContractPerpetual {
		e.runCalendarSpreadCycle(ctx, now, contract)
	}
}

// runCalendarSpreadCycle pairs contract against every other tracked
// non-perpetual contract for the same base asset, ascending by expiry, and
// scans each adjacent pair for a calendar-spread opportunity.
func (e *Engine) runCalendarSpreadCycle(ctx context.Context, now time.Time, contract events.BasisContract) {
	e.basisMu.Lock()
	tracked := append(e.basisContracts[contract.BaseAsset], contract)
	e.basisContracts[contract.BaseAsset] = tracked
	ordered := basis.PairByExpiry(tracked)
	e.basisMu.Unlock()

	for i := 0; i+1 < len(ordered); i++ {
		near, far := ordered[i], ordered[i+1]
		opp := e.basisDet.ScanCalendarSpread(near, far, now)
		if opp == nil || !opp.Active {
			continue
		}
		e.stats.RecordDetection("calendar_spread")
		e.metrics.DetectionsTotal.WithLabelValues("calendar_spread").Inc()
		e.handleCalendarSpread(ctx, now, *opp)
	}
}

func (e *Engine) handleCalendarSpread(ctx context.Context, now time.Time, opp events.CalendarSpreadOpportunity) {
	reversionMs := int64(30 * 24 * time.Hour / time.Millisecond)
	if opp.Near.ExpiryDate != nil {
		if until := opp.Near.ExpiryDate.Sub(now); until > 0 {
			reversionMs = int64(until / time.Millisecond)
		}
	}

	in := classifier.Input{
		SourceKind:           events.SourceCalendarSpread,
		SourceEventID:        opp.ID,
		ExpectedProfitPct:    money.Abs(opp.SpreadAnnualized),
		ExpectedProfitUsd:    money.Abs(opp.SpreadAnnualized).Mul(money.D(5_000)),
		Severity:             money.D(0.35),
		Volatility:           money.D(0.3),
		LiquidityUsd:         money.Min(opp.Near.OpenInterest, opp.Far.OpenInterest),
		HistoricalSuccess:    money.D(0.5),
		ReversionTimeMs:      reversionMs,
		MaxReversionTimeMs:   int64(30 * 24 * time.Hour / time.Millisecond),
		MarketConditionScore: money.D(50),
		Confidence:           opp.Confidence,
		OptimalEntryPrice:    opp.Near.MarkPrice,
		OptimalExitPrice:     opp.Far.MarkPrice,
		WinProbability:       opp.Confidence,
		WinLossRatio:         money.D(1.3),
		Capital:              money.D(10_000),
	}
	venues := []planbuilder.VenueLiquidity{
		{Venue: opp.Near.Exchange, Score: e.venueScore(opp.Near.Exchange), AvailableLiquidity: opp.Near.OpenInterest, Price: opp.Near.MarkPrice},
	}
	e.classifyPlanAndEnter(ctx, now, opp.Near.BaseAsset, in, opp.Far.MarkPrice, opp.Near.MarkPrice, venues)
}

func (e *Engine) handleBasis(ctx context.Context, now time.Time, opp events.BasisArbitrageOpportunity) {
	in := classifier.Input{
		SourceKind:           events.SourceBasisArbitrage,
		SourceEventID:        opp.ID,
		ExpectedProfitPct:    opp.SpreadOpportunityPct,
		ExpectedProfitUsd:    opp.SpreadOpportunityPct.Mul(money.D(10_000)),
		Severity:             money.D(0.4),
		Volatility:           money.D(0.25),
		LiquidityUsd:         opp.Contract.OpenInterest,
		HistoricalSuccess:    money.D(0.55),
		ReversionTimeMs:      int64(4 * time.Hour / time.Millisecond),
		MaxReversionTimeMs:   int64(24 * time.Hour / time.Millisecond),
		MarketConditionScore: money.D(55),
		Confidence:           opp.Confidence,
		OptimalEntryPrice:    opp.Contract.MarkPrice,
		OptimalExitPrice:     opp.Contract.IndexPrice,
		WinProbability:       money.D(0.55),
		WinLossRatio:         money.D(1.4),
		Capital:              money.D(10_000),
	}
	venues := []planbuilder.VenueLiquidity{
		{Venue: opp.Contract.Exchange, Score: e.venueScore(opp.Contract.Exchange), AvailableLiquidity: opp.Contract.OpenInterest},
	}
	e.classifyPlanAndEnter(ctx, now, opp.Contract.Symbol, in, opp.Contract.IndexPrice, opp.Contract.MarkPrice, venues)
}

// classifyPlanAndEnter is the common tail shared by every detector
// family: classify, build a plan, validate it, and if accepted, hand it
// to a new Trade Lifecycle Supervisor.
func (e *Engine) classifyPlanAndEnter(ctx context.Context, now time.Time, symbol string, in classifier.Input, targetPrice, stopLossBasis money.Dec, venues []planbuilder.VenueLiquidity) {
	classification := e.classifier.Classify(now, in, nil)
	e.stats.RecordClassification(string(in.SourceKind))
	e.metrics.ClassificationsTotal.WithLabelValues(string(in.SourceKind)).Inc()
	e.metrics.OpportunityScore.WithLabelValues(string(in.SourceKind)).Observe(f64(classification.OpportunityScore))
	e.metrics.RiskAdjustedScore.WithLabelValues(string(in.SourceKind)).Observe(f64(classification.RiskAdjustedScore))

	if venues == nil {
		venues = defaultVenuesFrom(classification)
	}

	plan := e.planB.Build(now, symbol, classification, classification.RecommendedPositionSize, venues, targetPrice, stopLossBasis)
	verdict := e.planB.Validate(plan)
	e.metrics.PlanValidationsTotal.WithLabelValues(acceptedLabel(verdict.Accepted)).Inc()
	if !verdict.Accepted {
		e.log.Debug().Strs("reasons", verdict.Reasons).Str("source", string(in.SourceKind)).Msg("plan rejected")
		return
	}

	sup := lifecycle.New(plan, lifecycle.DefaultConfig(), e.clk, e.client)
	if err := sup.Enter(ctx, plan); err != nil {
		e.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("trade entry failed")
		return
	}

	trade := sup.Trade()
	e.mu.Lock()
	e.trades[trade.ID] = sup
	e.mu.Unlock()

	e.stats.RecordTradeEntered(string(in.SourceKind))
	e.metrics.TradeTransitionsTotal.WithLabelValues(string(trade.Status)).Inc()
}

// monitorTrades runs one monitoring cycle over every active supervisor,
// removing trades that reach a terminal status.
func (e *Engine) monitorTrades(ctx context.Context) {
	e.mu.Lock()
	sups := make(map[string]*lifecycle.Supervisor, len(e.trades))
	for id, s := range e.trades {
		sups[id] = s
	}
	e.mu.Unlock()

	now := e.clk.Now()
	for id, sup := range sups {
		trade := sup.Trade()
		snap := e.snapshotFor(trade, now)
		maxHold := now.Add(4 * time.Hour)
		auto, forPolicy := sup.MonitorCycle(ctx, snap, maxHold)

		if auto != nil {
			e.metrics.ExitSignalsTotal.WithLabelValues(string(auto.Type), string(auto.Urgency)).Inc()
		}
		for _, sig := range forPolicy {
			e.metrics.ExitSignalsTotal.WithLabelValues(string(sig.Type), string(sig.Urgency)).Inc()
		}

		trade = sup.Trade()
		if isTerminal(trade.Status) {
			pnl := money.Zero
			if trade.PnL != nil {
				pnl = *trade.PnL
			}
			e.stats.RecordTradeExited("trade", trade.Status == events.TradeExited && pnl.IsPositive(), pnl)
			if trade.PnL != nil {
				e.metrics.TradePnL.WithLabelValues("trade").Observe(f64(*trade.PnL))
			}
			e.mu.Lock()
			delete(e.trades, id)
			e.mu.Unlock()
		}
	}
}

func isTerminal(status events.TradeStatus) bool {
	switch status {
	case events.TradeExited, events.TradeExpired, events.TradeFailed:
		return true
	default:
		return false
	}
}

// snapshotFor builds an exit-engine Snapshot from the best available
// current price for the trade's entry symbol, read from the composite
// window the same way every detector reads live prices.
func (e *Engine) snapshotFor(trade events.Trade, now time.Time) exitengine.Snapshot {
	if trade.EntryPrice == nil || trade.EntryTime == nil {
		return exitengine.Snapshot{}
	}
	currentPrice := *trade.EntryPrice
	if trade.Symbol != "" {
		if sample, ok := e.windows.Get("composite", trade.Symbol).Latest(now); ok {
			currentPrice = sample.Price
		}
	}
	pnl := money.Zero
	pnlPct := money.Zero
	if !trade.EntryPrice.IsZero() {
		pnl = currentPrice.Sub(*trade.EntryPrice)
		pnlPct = pnl.Div(*trade.EntryPrice)
	}
	return exitengine.Snapshot{
		CurrentPrice:   currentPrice,
		PnL:            pnl,
		PnLPct:         pnlPct,
		TimeSinceEntry: now.Sub(*trade.EntryTime),
		TimeRemaining:  4*time.Hour - now.Sub(*trade.EntryTime),
	}
}

func f64(d money.Dec) float64 {
	f, _ := d.Float64()
	return f
}

func acceptedLabel(b bool) string {
	if b {
		return "accepted"
	}
	return "rejected"
}

func (e *Engine) venueLiquidityFromTicks(ticks []events.PriceTick) []planbuilder.VenueLiquidity {
	out := make([]planbuilder.VenueLiquidity, 0, len(ticks))
	for _, t := range ticks {
		out = append(out, planbuilder.VenueLiquidity{Venue: t.Exchange, Score: e.venueScore(t.Exchange), AvailableLiquidity: t.Liquidity, Price: t.Price})
	}
	return out
}

// venueScoresFrom ranks venues for entry and exit via
// classifier.RankEntryVenues/RankExitVenues: entry favors venues quoting
// closest to entryPrice (price improvement), exit favors venues quoting
// closest to targetPrice (peg proximity), both blended 0.7/0.3 against the
// venue's liquidity score.
func venueScoresFrom(venues []planbuilder.VenueLiquidity, entryPrice, targetPrice money.Dec) (entry, exit []events.VenueScore) {
	liquidity := make(map[string]money.Dec, len(venues))
	priceImprovement := make(map[string]money.Dec, len(venues))
	pegProximity := make(map[string]money.Dec, len(venues))
	for _, v := range venues {
		liquidity[v.Venue] = money.Clamp(v.Score.Div(money.D(100)), money.Zero, money.One)
		priceImprovement[v.Venue] = proximityScore(v.Price, entryPrice)
		pegProximity[v.Venue] = proximityScore(v.Price, targetPrice)
	}
	return classifier.RankEntryVenues(priceImprovement, liquidity), classifier.RankExitVenues(pegProximity, liquidity)
}

// proximityScore scores how close price is to anchor on a 0-1 scale,
// falling back to a neutral midpoint when either side is unquoted.
func proximityScore(price, anchor money.Dec) money.Dec {
	if price.IsZero() || anchor.IsZero() {
		return money.D(0.5)
	}
	diff := money.Abs(price.Sub(anchor)).Div(anchor)
	return money.Max(money.Zero, money.One.Sub(diff))
}

func defaultVenuesFrom(c events.OpportunityClassification) []planbuilder.VenueLiquidity {
	out := make([]planbuilder.VenueLiquidity, 0, len(c.BestEntryVenues))
	for _, v := range c.BestEntryVenues {
		out = append(out, planbuilder.VenueLiquidity{Venue: v.Venue, Score: v.Score, AvailableLiquidity: money.D(100_000)})
	}
	return out
}
