// Command smartnotes-server serves the SmartNotes HTTP API and note stream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/smartnotes/internal/ai"
	"github.com/and161185/smartnotes/internal/config"
	"github.com/and161185/smartnotes/internal/crypto"
	"github.com/and161185/smartnotes/internal/hub"
	"github.com/and161185/smartnotes/internal/limiter"
	"github.com/and161185/smartnotes/internal/migrate"
	"github.com/and161185/smartnotes/internal/repository/postgres"
	httpserver "github.com/and161185/smartnotes/internal/server/http"
	"github.com/and161185/smartnotes/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.LoadDotEnv(""); err != nil {
		logger.Fatal("dotenv", zap.Error(err))
	}
	cfg, err := config.LoadServer(os.Args[1:], os.Getenv)
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	noteRepo := postgres.NewNoteRepo(db)
	lim := limiter.NewPG(db.Pool, limiter.DefaultPolicy)

	// Services
	authSvc := service.NewAuthService(userRepo, crypto.DefaultHasher, []byte(cfg.JWTSecret), cfg.AccessTTL, lim)
	noteSvc := service.NewNoteService(noteRepo)
	llm := ai.New(cfg.AI, logger)
	assistant := service.NewStudyAssistant(llm)

	changes := hub.New(noteRepo, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gin.SetMode(gin.ReleaseMode)
	app := httpserver.New(httpserver.Deps{
		Auth:      authSvc,
		Notes:     noteSvc,
		Assistant: assistant,
		Changes:   changes,
		SignKey:   []byte(cfg.JWTSecret),
		Log:       logger,
		Registry:  reg,
		AIReady:   llm.Configured(),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := changes.Run(gctx, postgres.NewChangeListener(cfg.DSN, logger))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// graceful shutdown; open note streams are cut when the deadline passes
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("forced shutdown", zap.Error(err))
			return srv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
