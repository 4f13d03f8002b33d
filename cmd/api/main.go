package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/damoang/angple-forum/internal/config"
	"github.com/damoang/angple-forum/internal/handler"
	"github.com/damoang/angple-forum/internal/metrics"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/internal/migration"
	"github.com/damoang/angple-forum/internal/notify"
	"github.com/damoang/angple-forum/internal/permission"
	"github.com/damoang/angple-forum/internal/presence"
	"github.com/damoang/angple-forum/internal/repository"
	"github.com/damoang/angple-forum/internal/routes"
	"github.com/damoang/angple-forum/internal/scheduler"
	"github.com/damoang/angple-forum/internal/service"
	pkgcache "github.com/damoang/angple-forum/pkg/cache"
	"github.com/damoang/angple-forum/pkg/jwt"
	pkglogger "github.com/damoang/angple-forum/pkg/logger"
	pkgredis "github.com/damoang/angple-forum/pkg/redis"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Angple Forum API
// @version         1.0
// @description     Angple forum engine: boards, topics, polls, read state and moderation
//
// @license.name    MIT
//
// @host            localhost:8082
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

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

	// 로거 초기화 (설정 로드 전 콘솔 출력)
	pkglogger.Init()

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	pkglogger.Configure(cfg.Server.Env, cfg.Log.Level, pkglogger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	pkglogger.Info("Loaded config from %s (env files: %v)", configPath, dotenvFiles)
	config.LogResolved(cfg)

	// DB 연결
	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if cfg.IsDevelopment() {
		if err := migration.Seed(db); err != nil {
			pkglogger.Warn("Seed warning: %v", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := metrics.RegisterDBStats(sqlDB); err != nil {
			pkglogger.Warn("DB stats collector not registered: %v", err)
		}
	}

	// Redis 연결 (선택)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(pkgredis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			pkglogger.Warn("Failed to connect to Redis: %v (continuing without Redis)", err)
			redisClient = nil
		} else {
			pkglogger.Info("Connected to Redis")
		}
	}

	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.JWT.RefreshIn)

	// 권한 / 알림
	perm := permission.NewCached(
		permission.NewConfigChecker(cfg.Forum.ModeratorIDs, cfg.Forum.ReadOnlyBoards),
		1024,
		time.Duration(cfg.Forum.ModeratorCacheSec)*time.Second,
	)
	sinks := notify.MultiSink{notify.NewLogSink()}
	if redisClient != nil {
		sinks = append(sinks, notify.NewRedisSink(redisClient))
	}

	// Services
	store := repository.NewStore(db)
	forumService := service.NewForumService(store, perm, service.Options{
		TopicsPerPage:   cfg.Forum.TopicsPerPage,
		MessagesPerPage: cfg.Forum.MessagesPerPage,
		MaxPageSize:     cfg.Forum.MaxPageSize,
		MaxPollChoices:  cfg.Forum.MaxPollChoices,
	})
	forumService.SetNotifier(sinks)
	if redisClient != nil {
		forumService.SetCache(pkgcache.NewService(redisClient))
	}
	pollService := service.NewPollService(store, perm)
	readStateService := service.NewReadStateService(store, cfg.Forum.MaxPageSize)
	moderationService := service.NewModerationService(store, perm, cfg.Forum.MaxPageSize)
	moderationService.SetNotifier(sinks)
	reconcileService := service.NewReconcileService(store)

	// Background jobs
	sched := scheduler.New(scheduler.DefaultResolution)
	tracker := presence.NewTracker(newPresenceStore(cfg, db, redisClient), presence.Config{
		Window:        cfg.Presence.Window(),
		SweepInterval: cfg.Presence.SweepInterval(),
		PoolSize:      cfg.Presence.WorkerPool,
	})
	if err := tracker.Start(sched); err != nil {
		log.Fatalf("Failed to start presence tracker: %v", err)
	}
	if cfg.Maintenance.ReconcileMinutes > 0 {
		sched.Register("fix-message-pointers", time.Duration(cfg.Maintenance.ReconcileMinutes)*time.Minute, reconcileService.Run)
	}
	sched.Start()

	// Gin 라우터 생성
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	allowOrigins := cfg.CORS.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "http://localhost:3000"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitAndTrim(allowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "angple-forum",
			"time":    time.Now().Unix(),
		})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.Setup(router, routes.Handlers{
		Forum:       handler.NewForumHandler(forumService),
		Poll:        handler.NewPollHandler(pollService),
		ReadState:   handler.NewReadStateHandler(readStateService),
		Report:      handler.NewReportHandler(moderationService, cfg.Forum.MaxPageSize),
		Maintenance: handler.NewMaintenanceHandler(reconcileService, sched),
		Presence:    handler.NewPresenceHandler(tracker),
	}, routes.Options{
		JWT:        jwtManager,
		Redis:      redisClient,
		RateLimit:  middleware.DefaultRateLimitConfig(),
		AdminLevel: cfg.Forum.AdminLevel,
		Presence:   tracker,
	})

	// 서버 시작
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
	pkglogger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		pkglogger.Error("Server shutdown: %v", err)
	}
	sched.Stop()
	tracker.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// splitAndTrim splits a string by delimiter and trims spaces
func splitAndTrim(s string, delimiter string) []string {
	parts := []string{}
	for _, part := range strings.Split(s, delimiter) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
