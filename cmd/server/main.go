package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"synagogue/docs"
	"synagogue/internal/auth"
	"synagogue/internal/cache"
	"synagogue/internal/calendar"
	"synagogue/internal/config"
	"synagogue/internal/db"
	"synagogue/internal/handler"
	"synagogue/internal/logging"
	"synagogue/internal/repository"
	"synagogue/internal/router"
	"synagogue/internal/service"
)

// @title Synagogue Aliyot API
// @version 1.0
// @description Aliyah debt ledger with full, partial and bulk payments, role based access and a Hebrew calendar view.
// @host localhost:5000
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	if err := db.Migrate(gormDB, cfg.ResetDB, logger); err != nil {
		logger.Fatal("database migrate", zap.Error(err))
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RedisPrefix)
	defer func() { _ = cacheClient.Close() }()
	if err := cacheClient.Ping(context.Background()); err != nil {
		logger.Warn("redis unavailable, running without cache", zap.Error(err))
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	aliyahRepo := repository.NewAliyahRepository(gormDB)
	synagogueRepo := repository.NewSynagogueRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	hebcal := calendar.NewHebcalClient(calendar.Config{
		BaseURL:  cfg.HebcalBaseURL,
		CacheTTL: cfg.CalendarCacheTTL,
	}, cacheClient, logger)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, logger)
	userService := service.NewUserService(userRepo, cacheClient, logger)
	ledgerService := service.NewLedgerService(userRepo, aliyahRepo, logger)
	paymentService := service.NewPaymentService(ledgerService, userRepo, aliyahRepo, service.BulkPolicy(cfg.BulkFullPolicy), logger)
	synagogueService := service.NewSynagogueService(synagogueRepo, logger)
	calendarService := service.NewCalendarService(hebcal, synagogueService, ledgerService, cfg.DefaultGeonameID, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())

	router.Register(e, logger, jwtService, tokenStore, userRepo, router.Handlers{
		Auth:      handler.NewAuthHandler(authService, logger),
		User:      handler.NewUserHandler(userService, logger),
		Aliyah:    handler.NewAliyahHandler(ledgerService, paymentService, logger),
		Synagogue: handler.NewSynagogueHandler(synagogueService, logger),
		Calendar:  handler.NewCalendarHandler(calendarService, logger),
	})

	swaggerURL := "http://localhost:5000/swagger/index.html"
	if cfg.SwaggerHost != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
		docs.SwaggerInfo.Host = host
		if strings.HasPrefix(cfg.SwaggerHost, "http") {
			swaggerURL = strings.TrimRight(cfg.SwaggerHost, "/") + "/swagger/index.html"
		} else {
			swaggerURL = "http://" + cfg.SwaggerHost + "/swagger/index.html"
		}
	}
	logger.Info("swagger documentation available", zap.String("url", swaggerURL))

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("server starting", zap.String("addr", addr), zap.String("bulk_full_policy", cfg.BulkFullPolicy))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
