package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/snmusic/snmusic/backend/go-services/handlers"
	"github.com/snmusic/snmusic/backend/go-services/internal/access"
	"github.com/snmusic/snmusic/backend/go-services/internal/auth"
	"github.com/snmusic/snmusic/backend/go-services/internal/cache"
	"github.com/snmusic/snmusic/backend/go-services/internal/config"
	"github.com/snmusic/snmusic/backend/go-services/internal/database"
	"github.com/snmusic/snmusic/backend/go-services/internal/jobs"
	"github.com/snmusic/snmusic/backend/go-services/internal/mailer"
	"github.com/snmusic/snmusic/backend/go-services/internal/storage"
	"github.com/snmusic/snmusic/backend/go-services/internal/study"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
	"github.com/snmusic/snmusic/backend/go-services/internal/watermark"
	"github.com/snmusic/snmusic/backend/go-services/pkg/logger"
	"github.com/snmusic/snmusic/backend/go-services/pkg/metrics"
	"github.com/snmusic/snmusic/backend/go-services/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v minio=%v smtp=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.SMTP.Host != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// (Keep this intentionally simple — production should use a stricter policy.)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Global middlewares: logging + recovery
	r.Use(gin.Logger(), gin.Recovery())

	// Connect to Redis early so the rate-limiter and token blacklist can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			auth.SetBlacklistClient(redisClient)
			logger.Infof("connected to Redis: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per-user when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Connect to MongoDB with retry/backoff to tolerate startup races
	ctx := context.Background()
	const maxAttempts = 5
	backoff := time.Second
	var client *mongo.Client
	var errConn error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if errConn == nil {
			break
		}
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	if errConn != nil {
		logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
	}
	defer func() { _ = client.Disconnect(ctx) }()
	db := client.Database(cfg.MongoDB.Database)

	// Repositories
	userRepo, err := users.NewMongoUserRepository(ctx, db.Collection("users"))
	if err != nil {
		logger.Fatalf("failed to initialize user repository: %v", err)
	}
	studyRepo, err := study.NewMongoRepository(ctx, db.Collection("study"))
	if err != nil {
		logger.Fatalf("failed to initialize study repository: %v", err)
	}
	accessRepo := access.NewMongoRepository(client, db, cfg.Admin.ID)

	// Shared cache: Redis when available, process-local otherwise
	var sharedCache cache.Cache
	if redisClient != nil {
		sharedCache = cache.NewRedis(redisClient, "cache:")
	} else {
		logger.Warnf("Redis unavailable; falling back to in-process cache")
		sharedCache = cache.NewMemory()
	}

	// Media storage: MinIO when configured, in-memory fallback for dev
	var store storage.MediaStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(&cfg.MinIO)
		if err != nil {
			logger.Fatalf("failed to initialize MinIO storage: %v", err)
		}
		store = ms
	} else {
		logger.Warnf("MinIO not configured; media kept in memory (dev only)")
		store = storage.NewMemoryStore()
	}

	// Outbound mail: SMTP when configured, discard otherwise
	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTP(cfg.SMTP)
	} else {
		logger.Warnf("SMTP not configured; verification mail is discarded")
		mail = mailer.Discard{}
	}

	// Services
	userSvc := users.NewService(userRepo)
	studySvc := study.NewService(studyRepo, sharedCache, cfg.Cache.TTL, store, watermark.NewStamper(""), userSvc)
	accessSvc := access.NewService(accessRepo, sharedCache, cfg.Cache.TTL)

	var authSvc *auth.Service
	if redisClient != nil {
		authSvc = auth.NewService(cfg, userRepo,
			auth.NewOTPStore(redisClient, 10*time.Minute),
			auth.NewRedisSessionRepository(redisClient, "session:"),
			mail)
	}

	// Nightly entitlement-expiry sweep
	sweeper := jobs.NewExpirySweeper(userRepo)
	scheduler := cron.New()
	if _, err := sweeper.Schedule(scheduler, cfg.Jobs.ExpirySweepCron); err != nil {
		logger.Fatalf("failed to schedule expiry sweep (%q): %v", cfg.Jobs.ExpirySweepCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Routes
	authed := middleware.AuthMiddleware(cfg.JWT.Secret)
	api := r.Group("/api/v1")
	handlers.NewNotificationHandler(accessSvc).Register(api, authed)
	handlers.NewStudyHandler(studySvc).Register(api, authed)
	handlers.NewUserHandler(userSvc).Register(api, authed)
	if authSvc != nil {
		handlers.NewAuthHandler(authSvc, userSvc).Register(api, authed)
	} else {
		logger.Warnf("auth routes not registered: Redis is required for sessions and verification codes")
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness endpoint — return 200 only when critical dependencies are available
	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{}

		deps["mongo"] = client.Ping(c.Request.Context(), nil) == nil
		if !deps["mongo"] {
			ready = false
		}

		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		} else {
			deps["redis"] = true
		}

		deps["auth"] = authSvc != nil

		status := http.StatusOK
		label := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			label = "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	// Expose Prometheus metrics
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting service on %s (env=%s)", addr, cfg.Server.Environment)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
