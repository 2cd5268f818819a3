package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deriv-labs/fraud-triage/aiqueue"
	"github.com/deriv-labs/fraud-triage/casestore"
	"github.com/deriv-labs/fraud-triage/config"
	"github.com/deriv-labs/fraud-triage/logger"
	"github.com/deriv-labs/fraud-triage/observability"
	"github.com/deriv-labs/fraud-triage/pushbus"
	"github.com/deriv-labs/fraud-triage/redisclient"
	"github.com/deriv-labs/fraud-triage/router"
	"github.com/deriv-labs/fraud-triage/ruleengine"
	"github.com/deriv-labs/fraud-triage/streamsource"
	"github.com/deriv-labs/fraud-triage/trafficmeter"
	"github.com/deriv-labs/fraud-triage/triage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("fraud triage service starting")

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer db.Close()
	if _, err := db.Exec(casestore.FraudCasesSchema); err != nil {
		log.Fatal().Err(err).Msg("fraud_cases schema migration failed")
	}
	store := casestore.New(db)

	rc, err := redisclient.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	defer rc.Close()
	if err := rc.Ping(); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}
	log.Info().Msg("redis connected")

	source := streamsource.New(rc, cfg.TransactionStream, cfg.ConsumerGroup, cfg.ConsumerName, cfg.StreamBatchSize, cfg.StreamBlockTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := source.EnsureGroup(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to create consumer group")
	}
	cancel()

	queue := aiqueue.New(rc, cfg.AIQueueStream)
	bus := pushbus.New(cfg.PushBufferSize)
	meter := trafficmeter.New()
	tracker := ruleengine.NewVelocityTracker(cfg.VelocityWindow)
	metrics := observability.New()

	pipeline := &triage.Pipeline{
		Source:           source,
		Store:            store,
		Queue:            queue,
		Bus:              bus,
		Meter:            meter,
		Tracker:          tracker,
		Log:              log,
		Metrics:          metrics,
		PoisonRetryLimit: cfg.PoisonRetryLimit,
	}
	broadcaster := &triage.StatsBroadcaster{
		Store:    store,
		Meter:    meter,
		Bus:      bus,
		Interval: cfg.StatsInterval,
	}

	r := router.New(cfg, log, router.Deps{
		Store:       store,
		Bus:         bus,
		Broadcaster: broadcaster,
		Metrics:     metrics,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownCtx, stopTriage := context.WithCancel(context.Background())

	go runTriageLoop(shutdownCtx, pipeline, cfg.TriageInterval, log)
	go broadcaster.Run(shutdownCtx)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("fraud triage listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	stopTriage()

	ctx, cancel = context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("fraud triage service stopped gracefully")
	}
}

// runTriageLoop ticks the Triage Pipeline at interval until ctx is
// cancelled, logging (but not exiting on) per-tick errors so a
// transient Redis or Postgres blip does not take the process down.
func runTriageLoop(ctx context.Context, p *triage.Pipeline, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				log.Warn().Err(err).Msg("triage tick failed")
			}
		}
	}
}
