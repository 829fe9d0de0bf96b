// Package cli wires the process together: env → config → logger →
// singletons → client, and exposes the subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marketgrid/searchkit/internal/breaker"
	"github.com/marketgrid/searchkit/internal/cache"
	"github.com/marketgrid/searchkit/internal/cache/memory"
	rediscache "github.com/marketgrid/searchkit/internal/cache/redis"
	"github.com/marketgrid/searchkit/internal/config"
	"github.com/marketgrid/searchkit/internal/metrics"
	"github.com/marketgrid/searchkit/internal/ratelimit"
	"github.com/marketgrid/searchkit/internal/search"
	"github.com/marketgrid/searchkit/internal/search/client"
	"github.com/marketgrid/searchkit/internal/search/tavily"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "searchkit",
	Short: "Resilient client for the search/extract/map/crawl API",
	Long: `searchkit wraps a third-party search and content-extraction service
with rate limiting, circuit breaking, response caching and usage metrics.

Operations degrade gracefully: a failure returns an empty result set with
an error message instead of a non-zero exit.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of tables")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(sentimentCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

// app holds the process-wide singletons. Every command builds exactly one
// and shares it by reference; nothing talks to the transport directly.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	client    *client.Client
	limiter   *ratelimit.Limiter
	breakers  *breaker.Group
	collector *metrics.Collector
	registry  *prometheus.Registry
	store     cache.Store
}

func bootstrap(cmd *cobra.Command) (*app, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		store, err = rediscache.New(cmd.Context(), rediscache.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, logger)
		if err != nil {
			return nil, err
		}
	default:
		store = memory.New()
	}

	costs := metrics.DefaultCosts()
	if cfg.Metrics.CostTablePath != "" {
		costs, err = metrics.LoadCosts(cfg.Metrics.CostTablePath)
		if err != nil {
			return nil, err
		}
	}

	registry := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(registry)
	collector := metrics.New(metrics.Config{
		Window:     cfg.Metrics.Window,
		MaxEntries: cfg.Metrics.MaxEntries,
		Costs:      costs,
		Classify:   client.ClassifyError,
	}, prom, logger)

	limiter := ratelimit.New(ratelimit.Config{
		Capacity:        cfg.RateLimit.Capacity,
		RefillPerMinute: cfg.RateLimit.RefillPerMinute,
		MaxQueue:        cfg.RateLimit.MaxQueue,
		WaitTimeout:     cfg.RateLimit.WaitTimeout,
	}, logger)

	breakers := breaker.NewGroup(search.Endpoints(), breaker.Policy{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		FailureWindow:    cfg.Breaker.FailureWindow,
		CoolDown:         cfg.Breaker.CoolDown,
		MaxAttempts:      cfg.Breaker.MaxAttempts,
		BaseBackoff:      cfg.Breaker.BaseBackoff,
		MaxBackoff:       cfg.Breaker.MaxBackoff,
		Retryable:        search.IsRetryable,
	}, logger)

	provider := tavily.New(tavily.Config{
		APIKey:  cfg.Tavily.APIKey,
		BaseURL: cfg.Tavily.BaseURL,
		Timeout: cfg.Tavily.Timeout,
	}, logger)

	if !cfg.Configured() {
		logger.Warn("TAVILY_API_KEY is not set, operations will return degraded results")
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client.New(client.Config{Configured: cfg.Configured()},
			provider, limiter, breakers, store, collector, prom, logger),
		limiter:   limiter,
		breakers:  breakers,
		collector: collector,
		registry:  registry,
		store:     store,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("cache close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func exitOnDegraded(errMsg string) {
	if errMsg != "" {
		fmt.Fprintln(os.Stderr, "warning:", errMsg)
	}
}
