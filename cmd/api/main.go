package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/majstori/marketplace-chat/internal/config"
	"github.com/majstori/marketplace-chat/internal/handler"
	"github.com/majstori/marketplace-chat/internal/middleware"
	"github.com/majstori/marketplace-chat/internal/migration"
	"github.com/majstori/marketplace-chat/internal/repository"
	"github.com/majstori/marketplace-chat/internal/routes"
	"github.com/majstori/marketplace-chat/internal/service"
	"github.com/majstori/marketplace-chat/internal/ws"
	pkgcache "github.com/majstori/marketplace-chat/pkg/cache"
	"github.com/majstori/marketplace-chat/pkg/jwt"
	pkglogger "github.com/majstori/marketplace-chat/pkg/logger"
	pkgredis "github.com/majstori/marketplace-chat/pkg/redis"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           Marketplace Chat API
// @version         1.0
// @description     Conversations, messages and realtime delivery between customers and tradespeople
//
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db, false); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := middleware.RegisterDBStats(sqlDB); err != nil {
			pkglogger.Warn("db stats collector not registered: %v", err)
		}
	}

	redisClient, err := pkgredis.NewClient(
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Redis.PoolSize,
	)
	if err != nil {
		pkglogger.Warn("Failed to connect to Redis: %v (continuing single-instance without cache)", err)
		redisClient = nil
	} else {
		pkglogger.Info("Connected to Redis")
	}

	var cacheService pkgcache.Service
	if redisClient != nil {
		cacheService = pkgcache.NewService(redisClient)
	}

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)

	chatRepo := repository.NewChatRepository(db)
	providers := repository.NewProviderDirectory(db, cacheService)
	chatService := service.NewChatService(chatRepo, providers)

	hub := ws.NewHub(redisClient)
	go hub.Run()
	gateway := ws.NewGateway(hub, chatService)

	chatHandler := handler.NewChatHandler(chatService, gateway)
	wsHandler := handler.NewWSHandler(gateway, jwtManager, cfg.SocketOrigins())

	router := gin.New()
	router.Use(gin.Recovery())

	allowOrigins := cfg.CORSOrigins()
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics("/health", "/ws/chat"))
	router.Use(middleware.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbState := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbState = "down"
		}
		redisState := "disabled"
		if cacheService != nil {
			redisState = "ok"
			if err := cacheService.Ping(c.Request.Context()); err != nil {
				redisState = "down"
			}
		}
		c.JSON(status, gin.H{
			"status":  dbState,
			"redis":   redisState,
			"sockets": hub.ClientCount(),
			"service": "marketplace-chat",
			"time":    time.Now().Unix(),
		})
	})

	// no rate limiting in development
	var limiterRedis *redis.Client
	if !cfg.IsDevelopment() {
		limiterRedis = redisClient
	}
	routes.Setup(router, chatHandler, wsHandler, jwtManager, limiterRedis, middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.Requests * 60 / cfg.RateLimit.WindowSeconds,
		KeyPrefix:         "chat:ratelimit:",
		Message:           "Too many requests. Please try again shortly.",
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"code": "NOT_FOUND", "message": "not found"}})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	pkglogger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		pkglogger.Error("server shutdown: %v", err)
	}
	hub.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// initDB opens the MySQL pool with the session pinned to UTC
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+00:00'"
	mysqlCfg.ParseTime = true
	mysqlCfg.Loc = time.UTC

	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}
