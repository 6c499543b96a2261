package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signage-manifest/internal/livesync"
	"signage-manifest/internal/mediastore"
	"signage-manifest/internal/platform/config"
	"signage-manifest/internal/platform/logger"
	"signage-manifest/internal/platform/metrics"
	"signage-manifest/internal/signage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	watchDebounce   = 100 * time.Millisecond
	readHeaderLimit = 10 * time.Second
)

func newServeCmd(loadConfig func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live sync endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, loadConfig())
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	media, err := openMediaStorage(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := signage.NewFileStore(cfg.DataDir)
	if err != nil {
		return err
	}
	registry, err := signage.NewFileRegistry(cfg.DataDir)
	if err != nil {
		return err
	}
	repo := signage.NewRepository(store)

	bus := livesync.NewBus(cfg.EventPrefix)
	var pub livesync.Publisher = bus
	var (
		rdb   *redis.Client
		relay *livesync.Relay
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		relay = livesync.NewRelay(rdb, bus, log)
		pub = livesync.NewRedisPublisher(rdb, relay, log)
	}

	met := metrics.New()
	svc := signage.NewService(repo, registry, media, pub, log,
		signage.WithLocation(cfg.Location()),
		signage.WithSignalCounter(met))
	h := signage.NewHandler(svc, log, met, signage.HandlerConfig{
		MaxUploadBytes:      int64(cfg.MaxUploadMB) << 20,
		UploadRatePerMinute: cfg.UploadRatePerMinute,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(middleware.Recoverer)
	r.Get("/metrics", met.Handler(func() {
		met.SetLiveSubscribers(bus.Count())
		if players, err := registry.List(); err == nil {
			met.SetPlayers(len(players))
		}
	}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h.Routes(r)
	r.Get("/ws/players/{player_id}", livesync.NewHandler(bus, log, cfg.WSPingInterval).ServeHTTP)
	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: readHeaderLimit,
		// Live sync connections end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		log.Info("server starting",
			slog.String("port", cfg.Port),
			slog.Bool("tls", cfg.TLSEnabled()),
			slog.String("storage", cfg.StorageBackend),
			slog.String("data_dir", cfg.DataDir),
			slog.Bool("redis", rdb != nil),
			slog.String("log_level", cfg.LogLevel),
		)
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if relay != nil {
		g.Go(func() error { return relay.Run(ctx) })
	}

	if cfg.ManifestWatch {
		g.Go(func() error {
			return store.Watch(ctx, log, watchDebounce, func(id signage.PlayerID) {
				log.Debug("manifest changed on disk", slog.String("player_id", string(id)))
				svc.Announce(ctx, id)
			})
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func openMediaStorage(ctx context.Context, cfg config.Config) (mediastore.Storage, error) {
	switch cfg.StorageBackend {
	case "", "disk":
		return mediastore.NewDisk(cfg.UploadDir)
	case "minio":
		return mediastore.NewMinIO(ctx, mediastore.MinIOConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
}
