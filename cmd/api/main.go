package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-service/internal/audit"
	"token-service/internal/claims"
	"token-service/internal/config"
	"token-service/internal/grant"
	"token-service/internal/ratelimit"
	"token-service/internal/token"
	"token-service/internal/tokenstore"
	"token-service/pkg/logger"
	"token-service/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	signer, err := token.NewSigner(cfg.Token)
	if err != nil {
		log.Error("signer init failed", "err", err)
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

	store := tokenstore.NewRedisStore(rdb)
	limiter, err := ratelimit.NewRedisLimiter(rdb)
	if err != nil {
		log.Error("rate limiter init failed", "err", err)
		os.Exit(1)
	}

	grants := grant.NewService(
		claims.NewResolver(claims.NewPostgresDirectory(db), cfg.Token.Audience),
		signer,
		store,
		store,
		grant.NewPostgresLedger(db),
		audit.NewService(audit.NewPostgresRepo(db)),
		grant.ServiceConfig{
			DefaultGrantDays: cfg.Token.DefaultGrantDays,
			MaxGrantDays:     cfg.Token.MaxGrantDays,
		},
	)

	// Background sweep: the ledger is authoritative, so secrets whose
	// grant went inactive are removed here instead of cross-store locking
	// on the request path.
	go grants.RunReconciler(logger.With(rootCtx, log), cfg.App.ReconcileInterval)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		signer:  signer,
		grants:  grants,
		limiter: limiter,
		limits:  cfg.RateLimit,
		db:      db,
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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
