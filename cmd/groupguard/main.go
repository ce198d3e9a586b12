package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupguard/internal/analytics"
	"groupguard/internal/bot"
	"groupguard/internal/config"
	"groupguard/internal/messaging"
	"groupguard/internal/metrics"
	"groupguard/internal/moderation"
	"groupguard/internal/modules/antiflood"
	"groupguard/internal/modules/audit"
	"groupguard/internal/modules/blacklist"
	"groupguard/internal/modules/punish"
	"groupguard/internal/modules/warns"
	"groupguard/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sweepInterval = 5 * time.Minute
	// flood windows longer than this restart after a sweep
	sweepMaxAge = 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("storage init failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	group, ctx := errgroup.WithContext(ctx)

	auditLogger := audit.NewLogger(store, logger)
	if cfg.NATS.URL != "" {
		natsCfg := messaging.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Name != "" {
			natsCfg.Name = cfg.NATS.Name
		}
		publisher, err := messaging.Connect(natsCfg, logger)
		if err != nil {
			logger.Fatal("nats connect failed", zap.String("url", cfg.NATS.URL), zap.Error(err))
		}
		defer publisher.Close()
		auditLogger.SetNotifier(publisher.PublishAudit)
		logger.Info("publishing audit events", zap.String("subject", messaging.SubjectAudit))
	}

	var counter antiflood.Counter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		counter = antiflood.NewRedisCounter(rdb)
		logger.Info("flood counters stored in redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		memory := antiflood.NewMemoryCounter()
		group.Go(func() error {
			memory.RunSweeper(ctx, sweepInterval, sweepMaxAge)
			return nil
		})
		counter = memory
	}

	tb, err := bot.NewTelegram(cfg.TelegramToken, time.Duration(cfg.PollTimeout)*time.Second, logger)
	if err != nil {
		logger.Fatal("telegram init failed", zap.Error(err))
	}
	client := bot.NewClient(tb, time.Duration(cfg.AdminCacheTTL)*time.Second)

	executor := punish.NewExecutor(client, store, auditLogger, logger)
	engine := moderation.New(client, store, moderation.Modules{
		Flood:     antiflood.New(counter, store, executor, client, auditLogger, cfg.Antiflood.Settings(), cfg.Features.Antiflood, logger),
		Blacklist: blacklist.New(store, client, auditLogger, cfg.Blacklist, cfg.Features.Blacklist, logger),
		Warns:     warns.New(store, executor, client, auditLogger, cfg.Warns.Settings(), logger),
		Executor:  executor,
		Audit:     auditLogger,
		Analytics: analytics.New(store),
	}, logger)

	botSvc := bot.New(tb, engine, logger)
	group.Go(func() error {
		return botSvc.Run(ctx)
	})
	logger.Info("bot started", zap.Int64("bot_id", client.BotID()))

	if cfg.Health.Enabled {
		server := healthServer(cfg.Health.Addr, store)
		group.Go(func() error {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	if err := group.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
	}
}

func healthServer(addr string, store *storage.Store) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
