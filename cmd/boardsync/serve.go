package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/metrics"
	"github.com/gosuda/boardsync/internal/server"
	"github.com/gosuda/boardsync/internal/store/postgres"
	redisstore "github.com/gosuda/boardsync/internal/store/redis"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL()); err != nil {
			return err
		}
		log.Info().Msg("database migrations applied")
	}

	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	opts := []ws.Option{ws.WithMetrics(collector)}
	var (
		presence ws.Presence = ws.NewMemoryPresence(cfg.Presence.TTL, nil)
		redis    server.Pinger
	)
	if cfg.Redis.Enabled {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()

		redis = pubsub
		opts = append(opts, ws.WithRelay(ws.NewRelay(pubsub)))
		if cfg.Presence.Backend == config.PresenceRedis {
			presence = pubsub.Presence(cfg.Presence.TTL)
		}
	}

	hub := ws.NewHub(ws.Config{
		WriteTimeout:    cfg.WS.WriteTimeout,
		SendQueueSize:   cfg.WS.SendQueueSize,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		EchoMutations:   cfg.WS.EchoMutations,
		OriginPatterns:  originPatterns(cfg.Server.CORSOrigins),
	}, store, presence, authSvc, opts...)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := hub.RunRelay(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("relay stopped")
		}
	}()

	srv := server.New(ctx, cfg, store, authSvc, hub, redis, reg)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("presence", cfg.Presence.Backend).Bool("redis", cfg.Redis.Enabled).Msg("starting server")
		if err := srv.Start(ctx); err != nil {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks. "*" allows any origin.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			log.Warn().Str("origin", o).Msg("ignoring malformed CORS origin for websocket")
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
