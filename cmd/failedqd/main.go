package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"

	api "github.com/mind-engage/mindengage-failedq/internal/api/http"
	auth "github.com/mind-engage/mindengage-failedq/internal/auth/middleware"
	"github.com/mind-engage/mindengage-failedq/internal/config"
	"github.com/mind-engage/mindengage-failedq/internal/db"
	"github.com/mind-engage/mindengage-failedq/internal/eventlog"
	"github.com/mind-engage/mindengage-failedq/internal/events"
	"github.com/mind-engage/mindengage-failedq/internal/generator"
	"github.com/mind-engage/mindengage-failedq/internal/host"
	"github.com/mind-engage/mindengage-failedq/internal/ledger"
	"github.com/mind-engage/mindengage-failedq/internal/lifecycle"
	"github.com/mind-engage/mindengage-failedq/internal/logger"
	"github.com/mind-engage/mindengage-failedq/internal/quizcache"
	"github.com/mind-engage/mindengage-failedq/internal/settings"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatal("db open failed", "error", err)
	}
	defer dbh.Close()
	if cfg.BootstrapHostSchema {
		if err := db.EnsureHostSchema(ctx, dbh, cfg.HostTablePrefix); err != nil {
			log.Fatal("host schema bootstrap failed", "error", err)
		}
	}

	settingsRepo := settings.NewRepo(dbh)
	if err := settingsRepo.EnsureDefaults(ctx); err != nil {
		log.Fatal("install default settings", "error", err)
	}

	store := ledger.NewSQLStore(dbh)
	catalog := host.NewSQLCatalog(dbh, cfg.HostTablePrefix)
	audit := eventlog.NewRepo(dbh)

	var cache quizcache.Store
	if cfg.RedisAddr != "" {
		rdb, err := quizcache.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect failed", "addr", cfg.RedisAddr, "error", err)
		}
		defer rdb.Close()
		cache = quizcache.NewRedisStore(rdb, cfg.DescriptorTTL)
	} else {
		log.Warn("REDIS_ADDR is empty, remedial quizzes are cached in process")
		cache = quizcache.NewMemoryStore(cfg.DescriptorTTL)
	}

	updater := &lifecycle.Updater{
		Ledger:   store,
		Catalog:  catalog,
		Settings: settingsRepo,
		Log:      log.With("component", "lifecycle"),
	}
	dispatcher := events.NewDispatcher(updater, audit, log.With("component", "events"), cfg.ExtraHooks...)

	consumer, err := events.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, dispatcher, log.With("component", "amqp"))
	if err != nil {
		log.Fatal("amqp connect failed", "error", err)
	}
	if err := consumer.Start(); err != nil {
		log.Fatal("amqp consumer start failed", "error", err)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Secure = cfg.Mode == config.ModeOnline

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logger.HTTPMiddleware(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Authenticate(authSvc))
		api.Mount(pr, api.Deps{
			Ledger:   store,
			Catalog:  catalog,
			Settings: settingsRepo,
			Updater:  updater,
			Generator: &generator.Generator{
				Ledger:   store,
				Catalog:  catalog,
				Settings: settingsRepo,
			},
			Cache:       cache,
			Dispatcher:  dispatcher,
			Audit:       audit,
			Sessions:    sessionStore,
			Log:         log.With("component", "http"),
			MenuURL:     cfg.MenuURL,
			HostQuizURL: cfg.HostQuizURL,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := consumer.Close(); err != nil {
		log.Error("amqp shutdown", "error", err)
	}
}
