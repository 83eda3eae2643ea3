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
	"github.com/rs/zerolog/log"

	"github.com/jack/golang-shortlink-service/internal/background"
	"github.com/jack/golang-shortlink-service/internal/clicks"
	"github.com/jack/golang-shortlink-service/internal/codegen"
	"github.com/jack/golang-shortlink-service/internal/config"
	"github.com/jack/golang-shortlink-service/internal/geo"
	"github.com/jack/golang-shortlink-service/internal/handler"
	"github.com/jack/golang-shortlink-service/internal/logger"
	"github.com/jack/golang-shortlink-service/internal/middleware"
	"github.com/jack/golang-shortlink-service/internal/ratelimit"
	"github.com/jack/golang-shortlink-service/internal/repository"
	"github.com/jack/golang-shortlink-service/internal/resolver"
	"github.com/jack/golang-shortlink-service/internal/scheduler"
	"github.com/jack/golang-shortlink-service/internal/service"
)

const backgroundTaskTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Setup(cfg.App.Env, cfg.App.LogLevel)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	postgresRepo, err := repository.NewPostgresRepository(&cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer postgresRepo.Close()
	log.Info().Msg("connected to postgres")

	redisRepo, err := repository.NewRedisRepository(&cfg.Redis, &cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisRepo.Close()
	log.Info().Msg("connected to redis")

	clickSync := scheduler.NewClickSyncScheduler(postgresRepo, redisRepo, cfg.Clicks.SyncInterval)
	clickSync.Start()
	defer clickSync.Stop()

	pool := background.NewPool(cfg.Clicks.Workers, cfg.Clicks.QueueSize, backgroundTaskTimeout)
	defer pool.Close()

	classifier := clicks.NewClassifier(
		cfg.Clicks.BotTokens,
		cfg.Clicks.MobileTokens,
		cfg.Clicks.TabletTokens,
		cfg.Clicks.TVTokens,
	)
	recorder := clicks.NewRecorder(postgresRepo, redisRepo,
		geo.NewResolver(&cfg.Geo), classifier, cfg.Clicks.CountBots)

	redirectLimiter := ratelimit.NewLimiter(redisRepo.Client(),
		cfg.RateLimit.RedirectRequests, cfg.RateLimit.RedirectDuration)
	apiLimiter := ratelimit.NewLimiter(redisRepo.Client(),
		cfg.RateLimit.Requests, cfg.RateLimit.Duration)

	res := resolver.New(postgresRepo, redisRepo, redirectLimiter, recorder, pool, resolver.Options{
		CacheTimeout: cfg.Cache.Timeout,
		RedirectBots: cfg.Clicks.RedirectBots,
	})

	gen := codegen.NewGenerator(postgresRepo, cfg.Code.Length, cfg.Code.MaxRetries)
	links := service.NewLinkService(postgresRepo, redisRepo, redisRepo, gen, cfg)

	h := handler.NewHandler(links, res, postgresRepo, redisRepo)

	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().Str("path", c.Request.URL.Path).Any("panic", recovered).Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}))
	router.Use(gin.Logger())

	// Behind Nginx/Proxy the trusted sources must be set, otherwise
	// ClientIP() can be spoofed.
	router.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	router.GET("/health", h.Health)
	router.GET("/health/detailed", h.HealthDetailed)

	SetupSwagger(router, &cfg.Auth)

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit(apiLimiter))
	{
		api.POST("/links", h.CreateLink)
		api.PATCH("/links/:id", h.UpdateLink)
		api.DELETE("/links/:id", h.DeleteLink)
		api.GET("/stats/:code", h.GetStats)
	}

	// The resolver applies its own per-code limit internally.
	router.GET("/:code", h.Redirect)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
