package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/contaflow/sii-reconciliation-backend/internal/domain/values"
	"github.com/contaflow/sii-reconciliation-backend/internal/infrastructure/cache"
	"github.com/contaflow/sii-reconciliation-backend/internal/infrastructure/config"
	"github.com/contaflow/sii-reconciliation-backend/internal/infrastructure/repository"
	infrasii "github.com/contaflow/sii-reconciliation-backend/internal/infrastructure/sii"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/bankrecon"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/dashboard"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/reconrun"
	"github.com/contaflow/sii-reconciliation-backend/internal/service/taxrecon"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
		periodFlag = flag.String("period", "", "Tax period to reconcile (YYYY-MM, default: previous month)")
		company    = flag.String("company", "", "Reconcile a single company (UUID, default: all active)")
	)
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer logger.Sync()

	period, err := resolvePeriod(*periodFlag)
	if err != nil {
		logger.Fatal("invalid period flag", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, period, *company); err != nil {
		logger.Error("reconciler failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, period values.Period, companyFlag string) error {
	logger.Info("starting reconciler",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.String("period", period.String()))

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisCache, err := cache.NewRedisCache(&cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("initializing redis: %w", err)
	}
	defer redisCache.Close()

	metricsServer := startMetricsServer(cfg, logger)
	defer shutdownMetricsServer(metricsServer, cfg, logger)

	// Repositories
	documents := repository.NewDocumentRepository(pool)
	companies := repository.NewCompanyRepository(pool)
	bankTransactions := repository.NewBankTransactionRepository(pool)

	// SII access path: client -> signer -> token source -> cached fetcher
	client := infrasii.NewClient(cfg.SII, logger)
	signer := infrasii.NewRemoteSigner(cfg.SII.SignerURL, cfg.SII.RequestTimeout)
	tokens := infrasii.NewTokenSource(client, signer, cfg.SII.TokenTTL, logger)
	rcvCache := cache.NewRcvCache(redisCache, cfg.Redis.RcvTTL, logger)
	fetcher := infrasii.NewRcvFetcher(client, tokens, rcvCache, logger)

	// Services
	engine := taxrecon.NewEngine(fetcher, documents, companies, logger)
	matcher, err := bankrecon.NewMatcher(bankTransactions, cfg.Matching.ToMatcherConfig(), logger)
	if err != nil {
		return fmt.Errorf("initializing matcher: %w", err)
	}
	dashboards := dashboard.NewAggregator(bankTransactions, matcher, logger)
	runner := reconrun.NewRunner(engine, dashboards, cfg.Reconciliation.Concurrency, logger)

	companyIDs, err := resolveCompanies(ctx, companies, companyFlag)
	if err != nil {
		return err
	}

	results, err := runner.Run(ctx, companyIDs, period)
	recordResults(results)
	if err != nil {
		return err
	}

	failures := 0
	for _, result := range results {
		if result.Failed() {
			failures++
		}
	}
	logger.Info("reconciler finished",
		zap.Int("companies", len(results)),
		zap.Int("failures", failures))

	if failures > 0 {
		return fmt.Errorf("%d of %d companies failed to reconcile", failures, len(results))
	}
	return nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func startMetricsServer(cfg *config.Config, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: mux,
	}

	go func() {
		logger.Info("metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return server
}

func shutdownMetricsServer(server *http.Server, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", zap.Error(err))
	}
}

// resolvePeriod defaults to the month before now: the authority's ledger
// for the current month is still moving.
func resolvePeriod(flagValue string) (values.Period, error) {
	if flagValue != "" {
		return values.ParsePeriod(flagValue)
	}
	now := time.Now().UTC()
	// Anchor on the first of the month so date arithmetic cannot
	// normalize across month boundaries.
	lastMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return values.NewPeriod(lastMonth.Year(), lastMonth.Month())
}

func resolveCompanies(ctx context.Context, companies *repository.CompanyRepository, companyFlag string) ([]uuid.UUID, error) {
	if companyFlag != "" {
		id, err := uuid.Parse(companyFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid company flag: %w", err)
		}
		return []uuid.UUID{id}, nil
	}
	return companies.ActiveCompanyIDs(ctx)
}

func recordResults(results []reconrun.CompanyResult) {
	for _, result := range results {
		outcome := "success"
		if result.Failed() {
			outcome = "failure"
		}
		RecordCompanyRun(outcome, result.Elapsed)

		for _, detail := range result.TaxDetails {
			RecordTaxDetail(detail.Status.String())
		}
		if result.Dashboard != nil {
			for _, suggestion := range result.Dashboard.Suggestions {
				RecordMatchSuggestion(suggestion.Confidence.String())
			}
		}
	}
}
