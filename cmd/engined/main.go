// Command engined runs the market-inefficiency detection and trade
// orchestration engine: it wires the detector families, classifier, plan
// builder, and trade lifecycle supervisor behind the price feed bus,
// serves the HTTP control surface, and optionally persists depeg history
// and correlation baselines.
//
// The CLI is a root cobra command with persistent flags, subcommands
// registered in init(), and RunE handlers returning wrapped errors
// instead of calling os.Exit directly.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/riftline/ineffic-engine/internal/adapters/simulated"
	"github.com/riftline/ineffic-engine/internal/cache"
	"github.com/riftline/ineffic-engine/internal/clilog"
	"github.com/riftline/ineffic-engine/internal/clock"
	"github.com/riftline/ineffic-engine/internal/config"
	"github.com/riftline/ineffic-engine/internal/engine"
	"github.com/riftline/ineffic-engine/internal/events"
	"github.com/riftline/ineffic-engine/internal/httpapi"
	"github.com/riftline/ineffic-engine/internal/persistence/postgres"
	"github.com/riftline/ineffic-engine/internal/ports"
	"github.com/riftline/ineffic-engine/internal/telemetry"
)

var (
	cfgPath string
	logMode string
)

// rootCmd is the base command for the engine CLI.
var rootCmd = &cobra.Command{
	Use:   "engined",
	Short: "Market-inefficiency detection and trade orchestration engine",
	Long: `engined detects cross-venue arbitrage, stablecoin depegs, BTC-led
momentum transfer, correlation breakdowns, and basis arbitrage, classifies
and sizes the resulting opportunities, and drives accepted plans through a
trade lifecycle supervisor.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("engined - use 'engined run' to start the engine, or --help for other commands")
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine against live configuration",
	Long: `Loads configuration, wires every detector family behind the price
feed bus, starts the HTTP control surface, and blocks until interrupted.`,
	RunE: runEngine,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded NDJSON tick/book log through the engine",
	Long: `Reads newline-delimited JSON records from --file, each either a
PriceTick or OrderBook envelope, and publishes them onto the engine's bus
in file order. Useful for deterministically reproducing a detection run
against a captured market session.`,
	RunE: runReplay,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or validate the engine configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load --config and report whether it passes validation",
	RunE:  runConfigValidate,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Fetch and print /stats from a running engine's HTTP control surface",
	RunE:  runStats,
}

var (
	replayFile  string
	replaySpeed float64

	statsAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config/engine.yaml", "path to the engine's YAML configuration")
	rootCmd.PersistentFlags().StringVar(&logMode, "log", string(clilog.ModeAuto), "log output mode: auto, plain, json")

	replayCmd.Flags().StringVar(&replayFile, "file", "", "path to an NDJSON tick/book log (required)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "replay throttle in records/sec; 0 replays as fast as possible")
	replayCmd.MarkFlagRequired("file")

	statsCmd.Flags().StringVar(&statsAddr, "addr", "http://127.0.0.1:8080", "base URL of the running engine's HTTP control surface")

	configCmd.AddCommand(configValidateCmd)

	rootCmd.AddCommand(runCmd, replayCmd, configCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("%s is valid: %d stablecoins, %d altcoins tracked, server on %s\n",
		cfgPath, len(cfg.Depeg.Stablecoins), len(cfg.Correlation.Altcoins), cfg.Server.ListenAddr)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(statsAddr + "/stats")
	if err != nil {
		return fmt.Errorf("fetching stats from %s: %w", statsAddr, err)
	}
	defer resp.Body.Close()

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decoding stats response: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// httpConfigFrom splits a "host:port" listen address into an
// httpapi.Config, falling back to DefaultConfig's timeouts.
func httpConfigFrom(listenAddr string) (httpapi.Config, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return httpapi.Config{}, fmt.Errorf("parsing server.listen_addr %q: %w", listenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return httpapi.Config{}, fmt.Errorf("parsing server.listen_addr port %q: %w", listenAddr, err)
	}
	cfg := httpapi.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return cfg, nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	log := clilog.Init(clilog.Mode(logMode), os.Stdout)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfgStore := config.NewStore(cfg)

	clk := clock.NewReal()
	defer clk.Stop()

	client := simulated.New(clk)

	var history ports.DepegHistoryStore
	if cfg.Infra.PostgresDSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Infra.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		timeout := time.Duration(cfg.Infra.QueryTimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		history = postgres.New(db, timeout)
		log.Info().Msg("depeg history persisted to postgres")
	}

	var corrStore *cache.CorrelationStore
	if cfg.Infra.RedisAddr != "" {
		corrStore = cache.New(redis.NewClient(&redis.Options{Addr: cfg.Infra.RedisAddr}), "ineffic:correlation:")
		log.Info().Msg("correlation baselines persisted to redis")
	}

	metrics := telemetry.New(prometheus.NewRegistry())
	eng := engine.New(engine.DefaultConfig(), cfgStore, clk, client, history, metrics, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if corrStore != nil {
		seedCorrelations(ctx, eng, corrStore, cfg.Correlation.Altcoins, cfg.Correlation.ReferenceSymbol, log)
		go persistCorrelationsLoop(ctx, eng, corrStore, log)
	}

	httpCfg, err := httpConfigFrom(cfg.Server.ListenAddr)
	if err != nil {
		return err
	}
	srv := httpapi.New(httpCfg, log, eng.Stats(), cfgStore, eng, eng, eng)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http control surface stopped")
		}
	}()

	go eng.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// seedCorrelations warms the engine's correlation store from a prior
// run's persisted baselines, so breakdown detection has something to
// compare against immediately instead of waiting for a fresh
// MinSamples window to accumulate.
func seedCorrelations(ctx context.Context, eng *engine.Engine, store *cache.CorrelationStore, altcoins []string, refSymbol string, log zerolog.Logger) {
	for _, coin := range altcoins {
		pair := coin + "-" + refSymbol
		c, ok, err := store.Seed(ctx, pair)
		if err != nil {
			log.Warn().Err(err).Str("pair", pair).Msg("correlation seed fetch failed")
			continue
		}
		if !ok {
			continue
		}
		eng.SeedCorrelation(pair, c)
		log.Info().Str("pair", pair).Msg("seeded correlation baseline from redis")
	}
}

// persistCorrelationsLoop periodically snapshots every tracked pair's
// baseline correlation to the cache backend, so a restart can seed from
// it via seedCorrelations instead of recomputing from scratch.
func persistCorrelationsLoop(ctx context.Context, eng *engine.Engine, store *cache.CorrelationStore, log zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for pair, c := range eng.Correlations() {
				if err := store.Persist(ctx, c); err != nil {
					log.Warn().Err(err).Str("pair", pair).Msg("correlation persist failed")
				}
			}
		}
	}
}

// replayRecord is one line of the NDJSON log: exactly one of Tick or
// Book is populated, selected by Type.
type replayRecord struct {
	Type string             `json:"type"`
	Tick *events.PriceTick  `json:"tick,omitempty"`
	Book *events.OrderBook  `json:"book,omitempty"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	log := clilog.Init(clilog.Mode(logMode), os.Stdout)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfgStore := config.NewStore(cfg)

	f, err := os.Open(replayFile)
	if err != nil {
		return fmt.Errorf("opening replay file %s: %w", replayFile, err)
	}
	defer f.Close()

	clk := clock.NewReal()
	defer clk.Stop()
	client := simulated.New(clk)
	metrics := telemetry.New(prometheus.NewRegistry())
	eng := engine.New(engine.DefaultConfig(), cfgStore, clk, client, nil, metrics, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	progress := clilog.NewProgress(os.Stdout)
	defer progress.Done()

	var interval time.Duration
	if replaySpeed > 0 {
		interval = time.Duration(float64(time.Second) / replaySpeed)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var ticks, books, lineNo int
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec replayRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("line %d: decoding replay record: %w", lineNo, err)
		}
		switch rec.Type {
		case "tick":
			if rec.Tick == nil {
				return fmt.Errorf("line %d: tick record missing tick payload", lineNo)
			}
			eng.Bus().PublishTick(*rec.Tick)
			ticks++
		case "book":
			if rec.Book == nil {
				return fmt.Errorf("line %d: book record missing book payload", lineNo)
			}
			eng.Bus().PublishBook(*rec.Book)
			books++
		default:
			return fmt.Errorf("line %d: unrecognized record type %q", lineNo, rec.Type)
		}

		if lineNo%100 == 0 {
			progress.Update("replayed %d ticks, %d books", ticks, books)
		}
		if interval > 0 {
			time.Sleep(interval)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading replay file: %w", err)
	}
	progress.Update("replayed %d ticks, %d books (%d lines)", ticks, books, lineNo)

	// Let the engine's subscriber goroutine drain whatever is still
	// queued on the bus before the process exits.
	time.Sleep(250 * time.Millisecond)
	cancel()

	trades := eng.Trades()
	fmt.Printf("\n%d trade(s) entered during replay:\n", len(trades))
	for _, tr := range trades {
		fmt.Printf("  %s  plan=%s  status=%s\n", tr.ID, tr.PlanID, tr.Status)
	}
	return nil
}
