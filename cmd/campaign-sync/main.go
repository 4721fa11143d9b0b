// Command campaign-sync performs one full synchronization of remote
// campaigns into the local SQLite store and exits. Exit code 0 means the
// run completed, even with partial per-record failures; any fatal error
// exits non-zero.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/adops-io/campaign-sync/internal/testutil"
	"github.com/adops-io/campaign-sync/pkg/auth"
	"github.com/adops-io/campaign-sync/pkg/campaign"
	"github.com/adops-io/campaign-sync/pkg/client"
	"github.com/adops-io/campaign-sync/pkg/logging"
	"github.com/adops-io/campaign-sync/pkg/ratelimit"
	"github.com/adops-io/campaign-sync/pkg/store"
	"github.com/adops-io/campaign-sync/pkg/sync"
)

type config struct {
	baseURL      string
	clientID     string
	clientSecret string
	minInterval  time.Duration
	timeout      time.Duration
	maxRetries   int
	pageLimit    int
	dbPath       string
	logLevel     string
	logPretty    bool
	metricsAddr  string
	mockAPI      bool
}

func loadConfig() config {
	return config{
		baseURL:      getEnv("API_BASE_URL", "https://api.example.com/v1"),
		clientID:     getEnv("API_CLIENT_ID", ""),
		clientSecret: getEnv("API_CLIENT_SECRET", ""),
		minInterval:  getDurationEnv("MIN_REQUEST_INTERVAL", ratelimit.DefaultMinInterval),
		timeout:      getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		maxRetries:   getIntEnv("MAX_RETRIES", 3),
		pageLimit:    getIntEnv("PAGE_LIMIT", campaign.DefaultPageLimit),
		dbPath:       getEnv("DB_PATH", "campaign-sync.db"),
		logLevel:     getEnv("LOG_LEVEL", "info"),
		logPretty:    getBoolEnv("LOG_PRETTY", false),
		metricsAddr:  getEnv("METRICS_ADDR", ""),
		mockAPI:      getBoolEnv("API_MOCK", false),
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := loadConfig()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.logLevel),
		Pretty: cfg.logPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.mockAPI {
		mock := testutil.NewMockAPI(testutil.SeedCampaigns(120))
		defer mock.Close()
		cfg.baseURL = mock.URL()
		if cfg.clientID == "" {
			cfg.clientID = "mock-client"
			cfg.clientSecret = "mock-secret"
		}
		logger.Info().Str("base_url", cfg.baseURL).Msg("Running against in-process mock API")
	}

	if cfg.metricsAddr != "" {
		go serveMetrics(cfg.metricsAddr, logger)
	}

	logger.Info().
		Str("base_url", cfg.baseURL).
		Str("db_path", cfg.dbPath).
		Dur("min_interval", cfg.minInterval).
		Int("max_retries", cfg.maxRetries).
		Msg("Starting campaign sync")

	sink, err := store.Open(ctx, cfg.dbPath, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open persistence sink")
		return 1
	}

	limiter := ratelimit.NewLimiter(cfg.minInterval, logging.NewLogger("ratelimit"))

	tokens, err := auth.NewManager(auth.Config{
		BaseURL:      cfg.baseURL,
		ClientID:     cfg.clientID,
		ClientSecret: cfg.clientSecret,
		Timeout:      cfg.timeout,
	}, limiter, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create token manager")
		sink.Close()
		return 1
	}

	executorCfg := client.DefaultConfig(cfg.baseURL)
	executorCfg.Timeout = cfg.timeout
	executorCfg.MaxRetries = cfg.maxRetries

	executor, err := client.NewExecutor(executorCfg, tokens, limiter, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create request executor")
		sink.Close()
		return 1
	}

	api := campaign.NewAPI(executor, cfg.pageLimit)
	paginator := campaign.NewPaginator(api, logger)

	// The orchestrator owns the sink from here; it closes it on every
	// exit path.
	orchestrator := sync.NewOrchestrator(paginator, api, sink, logger)

	outcome, err := orchestrator.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Sync run failed")
		return 1
	}

	logger.Info().
		Int("success", outcome.Success).
		Int("failure", outcome.Failure).
		Int("total", outcome.Total).
		Msg("Campaign sync finished")

	return 0
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn().Err(err).Msg("Metrics listener stopped")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
