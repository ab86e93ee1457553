package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/soconnect-backend/internal/config"
	"github.com/AnshRaj112/soconnect-backend/internal/database"
	"github.com/AnshRaj112/soconnect-backend/internal/events"
	"github.com/AnshRaj112/soconnect-backend/internal/handlers"
	"github.com/AnshRaj112/soconnect-backend/internal/logging"
	"github.com/AnshRaj112/soconnect-backend/internal/middleware"
	"github.com/AnshRaj112/soconnect-backend/internal/repository"
	"github.com/AnshRaj112/soconnect-backend/internal/routes"
	"github.com/AnshRaj112/soconnect-backend/internal/services"
	"github.com/AnshRaj112/soconnect-backend/internal/storage"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()
	logger := logging.New(cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	logger.Info(ctx, "Connecting to PostgreSQL...")
	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer db.Close()
	logger.Info(ctx, "✅ PostgreSQL connected, migrations applied")

	// Connect to Redis
	logger.Info(ctx, "Connecting to Redis...")
	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()
	logger.Info(ctx, "✅ Redis connected")

	// MongoDB is optional and only backs the orphaned-attachment journal
	var journal services.OrphanJournal
	if cfg.MongoURI != "" {
		mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Warn(ctx, "⚠️  MongoDB unavailable, orphaned attachments will only be logged", "error", err)
		} else {
			defer database.DisconnectMongo(mdb)
			journal = storage.NewMongoJournal(mdb)
			logger.Info(ctx, "✅ MongoDB orphan journal ready")
		}
	}

	// Change signals: NATS across instances, in-process otherwise
	var feed events.Feed = events.NewLocalFeed()
	if cfg.NatsURL != "" {
		nc, err := events.ConnectNATS(cfg.NatsURL, logger)
		if err != nil {
			logger.Warn(ctx, "⚠️  NATS unavailable, change signals stay in-process", "error", err)
		} else {
			defer nc.Drain()
			feed = events.NewNATSFeed(nc, logger)
			logger.Info(ctx, "✅ NATS change feed connected", "url", cfg.NatsURL)
		}
	}

	users := repository.NewPostgresUserRepository(db)
	messagesRepo := repository.NewPostgresMessageRepository(db)
	sessions := services.NewRedisSessionStore(rdb)
	cache := services.NewRedisConversationCache(rdb, 0)

	auth, err := services.NewAuthority(users, sessions, cfg.SessionTTL, cfg.StoreTimeout, logger)
	if err != nil {
		log.Fatal("Failed to initialize auth:", err)
	}
	messageLog := services.NewMessageLog(messagesRepo, cfg.StoreTimeout, logger,
		services.WithConversationCache(cache),
		services.WithChangeNotifier(feed),
	)
	index := services.NewConversationIndex(messagesRepo, cache, cfg.StoreTimeout)
	admin := services.NewAdminService(db, sessions, cache, cfg.StoreTimeout, logger)

	uploads := newAttachmentPipeline(ctx, cfg, messageLog, journal, logger)
	sendLimiter := services.NewSendLimiter(rdb, cfg.SendRateLimit)

	h := handlers.New(handlers.Deps{
		Auth:         auth,
		Messages:     messageLog,
		Index:        index,
		Uploads:      uploads,
		Admin:        admin,
		Feed:         feed,
		SendLimiter:  sendLimiter,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.TrustProxy) {
			r.Use(mw)
		}
		logger.Info(ctx, "✅ Production security enabled (security headers, per-IP + login rate limiting)")
	}
	// Polling clients hit the conversation reads every couple of seconds
	r.Use(middleware.PollRateLimit(middleware.NewIPRateLimiter(rate.Limit(10), 20, cfg.TrustProxy)))

	routes.SetupRoutes(r, h, routes.Guards{
		Auth:        auth,
		SendLimiter: sendLimiter,
		AdminToken:  cfg.AdminToken,
	})
	if cfg.AdminToken == "" {
		logger.Warn(ctx, "⚠️  ADMIN_TOKEN not set, admin routes are disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info(ctx, "🚀 SoConnect backend running", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "graceful shutdown failed", "error", err)
	}
}

// newAttachmentPipeline returns nil when no object store is configured, which
// disables the upload route.
func newAttachmentPipeline(ctx context.Context, cfg *config.Config, messageLog *services.MessageLog, journal services.OrphanJournal, logger logging.Logger) *services.AttachmentPipeline {
	if !cfg.UploadsEnabled() {
		logger.Warn(ctx, "Warning: no storage backend configured. File uploads will not be available")
		return nil
	}

	var store services.ObjectStore
	switch cfg.StorageBackend {
	case "cloudinary":
		cs, err := storage.NewCloudinaryStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			logger.Warn(ctx, "Warning: failed to initialize Cloudinary. File uploads will not be available", "error", err)
			return nil
		}
		store = cs
	case "s3":
		ss, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			logger.Warn(ctx, "Warning: failed to initialize S3. File uploads will not be available", "error", err)
			return nil
		}
		store = ss
	}

	logger.Info(ctx, "✅ Storage backend initialized", "backend", cfg.StorageBackend)
	return services.NewAttachmentPipeline(store, messageLog, journal, cfg.UploadMaxBytes, cfg.StoreTimeout, storage.RandomKey, logger)
}
