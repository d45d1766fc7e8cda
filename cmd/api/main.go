package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"remit-backoffice/internal/audit"
	"remit-backoffice/internal/auth"
	"remit-backoffice/internal/config"
	"remit-backoffice/internal/records"
	"remit-backoffice/internal/requestctx"
	"remit-backoffice/pkg/logger"
	"remit-backoffice/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	schema := records.DefaultSchema()

	store, err := records.NewSQLStore(db, schema)
	if err != nil {
		log.Error("record store init failed", "err", err)
		os.Exit(1)
	}

	ctxStore, err := newContextStore(cfg, rdb)
	if err != nil {
		log.Error("request context store init failed", "err", err)
		os.Exit(1)
	}

	rules, err := audit.NewRules(cfg.Audit, schema)
	if err != nil {
		log.Error("audit rules invalid", "err", err)
		os.Exit(1)
	}

	interceptor, err := audit.NewInterceptor(audit.InterceptorConfig{
		Inner:     store,
		Snapshots: store,
		Contexts:  ctxStore,
		Repo:      audit.NewSQLRepo(db),
		Rules:     rules,
		Logger:    log,
	})
	if err != nil {
		log.Error("audit interceptor init failed", "err", err)
		os.Exit(1)
	}

	auditService := audit.NewService(audit.NewSQLRepo(db))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Auth:     authManager,
		Contexts: ctxStore,
		Exec:     interceptor,
		Schema:   schema,
		Audit:    auditService,
		DB:       db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// In-flight audit writes finish before the process exits.
	if err := interceptor.Drain(shutdownCtx); err != nil {
		log.Error("audit drain incomplete", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

func newContextStore(cfg config.Config, rdb *redis.Client) (requestctx.Store, error) {
	switch cfg.Audit.ContextStore {
	case "redis":
		return requestctx.NewRedisStore(rdb, cfg.Audit.ContextTTL)
	case "memory", "":
		return requestctx.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown context store %q", cfg.Audit.ContextStore)
	}
}
