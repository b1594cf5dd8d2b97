// cmd/onboarding-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"restaurant-onboarding/internal/api"
	"restaurant-onboarding/internal/common/aws"
	"restaurant-onboarding/internal/common/config"
	"restaurant-onboarding/internal/common/database"
	"restaurant-onboarding/internal/common/logger"
	"restaurant-onboarding/internal/common/observability"
	"restaurant-onboarding/internal/draftstore"
	"restaurant-onboarding/internal/notify"
	"restaurant-onboarding/internal/repository"
	"restaurant-onboarding/internal/roles"
	"restaurant-onboarding/internal/search"
	"restaurant-onboarding/internal/trust"
	"restaurant-onboarding/internal/wizard"
	"restaurant-onboarding/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting onboarding manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("onboarding-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (only when search is enabled) ---
	var indexer search.Indexer = search.Noop{}
	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		indexer = search.NewElasticsearchIndexer(esClient.Client, cfg.Search.Index, log)
	}

	// --- Init Notification Dispatcher ---
	sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("ses client failed", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("sns client failed", zap.Error(err))
	}
	dispatcher := notify.NewAWSDispatcher(
		sesClient, snsClient,
		cfg.Notifications.Email.FromEmail,
		cfg.Notifications.Managers.TopicARN,
		log,
	)

	// --- Init Role Granter ---
	var granter roles.Granter = roles.Noop{}
	if cfg.Roles.BaseURL != "" {
		granter = roles.NewKeycloakGranter(
			cfg.Roles.BaseURL,
			cfg.Roles.Realm,
			cfg.Roles.ClientID,
			cfg.Roles.ClientSecret,
			log,
		)
	}

	zapLog.Info("All external service clients initialized")

	// --- Wire Domain Components ---
	repo := repository.NewPostgresRepository(pg.DB, log)
	drafts := draftstore.NewRedisStore(redisClient.Client, cfg.Wizard.DraftKeyPrefix, cfg.Wizard.SessionTTL)

	controller := wizard.NewController(drafts, repo, dispatcher, log)
	engine := workflow.NewEngine(repo, dispatcher, granter, indexer, log)
	autoApproval := trust.NewAutoApprovalEngine(
		trust.AutoApprovalConfig{
			Enabled:        cfg.AutoApproval.Enabled,
			MinOwnerRating: cfg.AutoApproval.MinOwnerRating,
			SystemActor:    cfg.AutoApproval.SystemActor,
		},
		repo, engine, log,
	)

	apiHandler := api.NewHandler(controller, engine, log)

	zapLog.Info("Domain components wired successfully")

	sweepCtx, stopSweeps := context.WithCancel(ctx)

	// --- Auto-Approval Sweep ---
	go func() {
		ticker := time.NewTicker(cfg.AutoApproval.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := autoApproval.EvaluateAllPending(sweepCtx); err != nil {
					zapLog.Error("auto-approval sweep failed", zap.Error(err))
				}
			}
		}
	}()

	// --- Expiry Sweep ---
	go func() {
		ticker := time.NewTicker(cfg.Workflow.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := engine.ExpireStale(sweepCtx, cfg.Workflow.ExpiryWindow, cfg.AutoApproval.SystemActor); err != nil {
					zapLog.Error("expiry sweep failed", zap.Error(err))
				}
			}
		}
	}()

	zapLog.Info("Background sweeps started",
		zap.Duration("autoApprovalInterval", cfg.AutoApproval.SweepInterval),
		zap.Duration("expirySweepInterval", cfg.Workflow.SweepInterval),
	)

	// --- HTTP Server (API, health, metrics) ---
	mux := http.NewServeMux()
	apiHandler.Register(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	// pprof registers itself on the default mux.
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	srv := &http.Server{
		Addr:    cfg.Server.MetricsAddress,
		Handler: mux,
	}
	go func() {
		zapLog.Info("HTTP server listening on " + cfg.Server.MetricsAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping sweeps...")
	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Onboarding manager stopped gracefully")
}
