package main

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/ingestion"
	"ArtistExchange/internal/observability"
	"ArtistExchange/internal/persistence"
	"ArtistExchange/internal/server"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	logger := observability.NewLogger("main")
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("artist exchange stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(logger zerolog.Logger) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info().Str("owner", cfg.Owner.String()).Bool("open_listing", cfg.OpenListing).Msg("starting artist exchange")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	logger.Info().Msg("connected to Postgres")

	applied, err := persistence.NewMigrator(db, persistence.EmbeddedMigrations()).Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")

	metrics := observability.NewMetrics()
	health := observability.NewHealthChecker()
	health.AddCheck("postgres", db.PingContext)

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer nc.Close()
	health.AddCheck("nats", func(context.Context) error {
		if !nc.IsConnected() {
			return errors.New("nats not connected")
		}
		return nil
	})

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}
	logger.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")

	// --- Core ---
	dedup, err := core.NewIdempotencyChecker(cfg.IdempotencyLRUCap, persistence.NewPostgresIdempotencyChecker(db), metrics)
	if err != nil {
		return err
	}

	persistChan := make(chan core.CoreOutput, cfg.PersistChanSize)
	publishChan := make(chan core.CoreOutput, cfg.PublishChanSize)
	publisher := ingestion.NewOutboundPublisher(js, publishChan, metrics)

	coreLogger := observability.NewLogger("core")
	exchange := core.NewExchange(core.Config{
		Owner:       cfg.Owner,
		OpenListing: cfg.OpenListing,
		PersistChan: persistChan,
		PublishChan: publishChan,
		Idempotency: dedup,
		Payouts:     publisher,
		Metrics:     metrics,
		Logger:      &coreLogger,
	})

	// --- Recovery: snapshot, then the log tail ---
	snapMgr := persistence.NewSnapshotManager(db)
	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		if err := exchange.RestoreFromSnapshot(snap); err != nil {
			return err
		}
	} else {
		logger.Info().Msg("no snapshot found, replaying from genesis")
	}

	replayStart := time.Now()
	replayed, err := persistence.NewReplayer(snapMgr, exchange).Run(ctx)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	hash := exchange.StateHash()
	logger.Info().Int64("replayed", replayed).Int64("next_sequence", exchange.Sequence()).
		Hex("state_hash", hash[:]).Dur("duration", time.Since(replayStart)).Msg("state recovered")

	// --- Goroutines ---
	// The pipeline (persistence, publishing) outlives the front end so the
	// final snapshot can wait for every committed event to reach the log.
	pipeCtx, pipeCancel := context.WithCancel(context.Background())
	defer pipeCancel()

	var pipeline, front sync.WaitGroup
	errChan := make(chan error, 8)
	spawn := func(wg *sync.WaitGroup, name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	// 1. Persistence worker
	worker := persistence.NewPersistenceWorker(db, persistChan, cfg.PersistBatchSize, cfg.PersistFlushTimeout, metrics)
	spawn(&pipeline, "persistence worker", func() error { return worker.Run(pipeCtx) })

	// 2. Outbound publisher
	spawn(&pipeline, "publisher", func() error { return publisher.Run(pipeCtx) })

	// 3. Inbound commands
	cmdChan := make(chan ingestion.RawCommand, 1024)
	subscriber := ingestion.NewNATSSubscriber(js, cmdChan)
	if err := subscriber.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	dispatcher := ingestion.NewDispatcher(exchange, dedup, metrics)
	spawn(&front, "dispatcher", func() error { return dispatcher.Run(ctx, cmdChan) })

	// 4. gRPC + HTTP
	var limiter *server.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter, err = server.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitClients, metrics)
		if err != nil {
			return err
		}
	}
	srv := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, &server.ServerDeps{
		Exchange:      exchange,
		Metadata:      persistence.NewMetadataStore(db, "postgres"),
		HealthChecker: health,
		Limiter:       limiter,
		Metrics:       metrics,
	})
	spawn(&front, "grpc server", func() error { return srv.StartGRPC(ctx) })
	spawn(&front, "http gateway", func() error { return srv.StartHTTPGateway(ctx) })

	// 5. Snapshots
	snaps := newSnapshotter(exchange, snapMgr, cfg.SnapshotInterval, metrics)
	spawn(&front, "snapshotter", func() error { return snaps.Run(ctx) })

	// 6. Metrics endpoint and channel gauges
	spawn(&front, "metrics server", func() error { return serveMetrics(ctx, cfg.MetricsAddr) })
	spawn(&front, "channel gauges", func() error {
		reportChannels(ctx, metrics, persistChan, publishChan)
		return nil
	})

	health.SetReady(true)
	srv.SetServing(true)
	logger.Info().Str("grpc", cfg.GRPCAddr).Str("http", cfg.HTTPAddr).Str("metrics", cfg.MetricsAddr).
		Msg("artist exchange ready")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errChan:
		logger.Error().Err(runErr).Msg("component failed, shutting down")
	}

	health.SetReady(false)
	srv.SetServing(false)
	stop()
	subscriber.Stop()
	front.Wait()

	finalCtx, finalCancel := context.WithTimeout(context.Background(), durableWaitTimeout+5*time.Second)
	if err := snaps.Take(finalCtx); err != nil {
		logger.Error().Err(err).Msg("final snapshot failed")
	}
	finalCancel()

	pipeCancel()
	pipeline.Wait()
	return runErr
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func reportChannels(ctx context.Context, metrics *observability.Metrics, persist, publish chan core.CoreOutput) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetChannelMetrics("persist", len(persist), cap(persist))
			metrics.SetChannelMetrics("publish", len(publish), cap(publish))
		}
	}
}
