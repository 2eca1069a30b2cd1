// Command server is the composition root: it loads configuration, wires
// every subsystem's constructor together the way the teacher's cmd/main.go
// does (config → logger → db → cache → auth → realtime → voice → router),
// then runs http.Server with graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emberhall/ember/internal/auth"
	"github.com/emberhall/ember/internal/cache"
	"github.com/emberhall/ember/internal/config"
	"github.com/emberhall/ember/internal/db"
	apperrors "github.com/emberhall/ember/internal/errors"
	"github.com/emberhall/ember/internal/events"
	"github.com/emberhall/ember/internal/httpapi"
	"github.com/emberhall/ember/internal/logger"
	"github.com/emberhall/ember/internal/maintenance"
	"github.com/emberhall/ember/internal/middleware"
	"github.com/emberhall/ember/internal/nanoid"
	"github.com/emberhall/ember/internal/realtime"
	"github.com/emberhall/ember/internal/voice"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	database, err := db.NewDatabase(db.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.DBName,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisCache, err := cache.NewCache(cache.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Enabled:  cfg.Redis.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache")
	}
	defer redisCache.Close()

	tokens := auth.NewTokenService(cfg.AccessTokenSigningKey)
	refresh := auth.NewRefreshService(tokens, database, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.BotRefreshTokenTTL).WithCache(redisCache)

	realtimeService := realtime.NewService()

	instanceID := nanoid.MustGenerate(12)
	bridge := events.Connect(events.Config{Enabled: cfg.NATS.Enabled, URL: cfg.NATS.URL}, realtimeService, instanceID)
	defer bridge.Close()

	workerPool, err := voice.NewWorkerPool(cfg.Voice)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize voice worker pool")
	}
	voiceManager := voice.NewManager(workerPool, cfg.Voice, realtimeService).WithCache(redisCache)

	janitor, err := maintenance.New(database, "*/15 * * * *", "0 * * * *")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize janitor")
	}
	janitor.Start()
	defer janitor.Stop()

	router := newRouter(cfg, database, tokens, refresh, realtimeService, voiceManager)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newRouter(cfg *config.Config, store *db.Database, tokens *auth.TokenService, refresh *auth.RefreshService, rt *realtime.Service, voiceManager *voice.Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.StructuredLogger(),
		apperrors.Recovery(),
		middleware.SecurityHeaders(),
		middleware.DefaultSizeLimiter(),
		middleware.Timeout(middleware.DefaultTimeoutConfig()),
		middleware.Gzip(5),
		apperrors.ErrorHandler(),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	httpapi.RegisterAuthRoutes(router, store, refresh)
	httpapi.RegisterMessageRoutes(router, store, rt, tokens)
	httpapi.RegisterFriendRoutes(router, store, rt, tokens)

	router.GET("/events/ws", auth.RequireAuth(tokens), realtime.Handler(rt))

	voice.RegisterRoutes(router, voiceManager, store, tokens)

	return router
}
