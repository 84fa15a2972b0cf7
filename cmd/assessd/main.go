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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-assess/internal/api/http"
	"github.com/mind-engage/mindengage-assess/internal/attempt"
	auth "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/cache"
	"github.com/mind-engage/mindengage-assess/internal/config"
	"github.com/mind-engage/mindengage-assess/internal/logging"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
	"github.com/mind-engage/mindengage-assess/internal/store"
	"github.com/mind-engage/mindengage-assess/internal/typemeta"
)

func main() {
	issue := flag.String("issue-token", "", "print a dev token for subject[:role] and exit")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	if *issue != "" {
		sub, role, _ := strings.Cut(*issue, ":")
		tok, err := authSvc.IssueJWT(sub, role, 8*time.Hour)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, authSvc, logger); err != nil {
		logger.Fatal("assessd stopped", zap.Error(err))
	}
}

func run(cfg config.Config, authSvc *auth.AuthService, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, closeStore, err := store.Open(openCtx, cfg.DBDriver, cfg.DBDSN, cfg.SiteID)
	cancel()
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer closeStore()

	if cfg.SeedFile != "" {
		n, err := store.SeedFile(ctx, st, cfg.SeedFile)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", zap.String("file", cfg.SeedFile), zap.Int("assessments", n))
		if cfg.SeedWatch {
			sw, err := store.NewSeedWatcher(st, cfg.SeedFile, logger)
			if err != nil {
				return err
			}
			go sw.Run(ctx)
		}
	}

	// --- Progress backend ---
	var progress attempt.ProgressStore = st
	if cfg.ProgressBackend == "redis" {
		rc, err := cache.Dial(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer rc.Close()
		progress = cache.NewProgressStore(rc, cfg.ProgressTTL)
	}

	engine := scoring.NewEngine(scoring.WithMetadata(typemeta.Default()))
	sessions := attempt.NewManager(st, attempt.Deps{
		Progress: progress,
		Results:  st,
		Scorer:   engine,
		Logger:   logger,
	},
		attempt.WithAutosaveInterval(cfg.AutosaveInterval),
		attempt.WithAutoAdvanceDelay(cfg.AutoAdvanceDelay),
	)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	api.Mount(r, api.Deps{Auth: authSvc, Sessions: sessions, Store: st, Scoring: engine})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("db", cfg.DBDriver),
			zap.String("progress", cfg.ProgressBackend))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Flush in-flight progress before the stores close.
	sessions.Shutdown(shutdownCtx)
	return nil
}
