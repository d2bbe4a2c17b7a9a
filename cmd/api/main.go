//	@title			MediaVault API
//	@version		1.0
//	@description	Image upload service: stores binaries in S3-compatible object storage, metadata in Postgres, and returns public or time-limited signed download URLs.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/mediavault/service/internal/config"
	"github.com/mediavault/service/internal/db"
	"github.com/mediavault/service/internal/events"
	"github.com/mediavault/service/internal/media"
	appMiddleware "github.com/mediavault/service/internal/middleware"
	"github.com/mediavault/service/internal/ratelimit"
	"github.com/mediavault/service/internal/storage"

	_ "github.com/mediavault/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	publicRead := cfg.PublicDownloads && cfg.StoragePublicBase != ""
	store, err := storage.NewMinioStorage(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StoragePublicBase,
		cfg.StorageUseSSL,
		publicRead,
	)
	if err != nil {
		log.Fatalf("object storage init failed: %v", err)
	}

	var limiter ratelimit.Limiter
	var notifier events.Notifier
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.RateLimitWindow, cfg.RateLimitMax)
		if err != nil {
			log.Fatalf("rate limiter init failed: %v", err)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter

		redisNotifier, err := events.NewRedisNotifier(cfg.RedisURL, cfg.EventsChannel)
		if err != nil {
			log.Fatalf("event notifier init failed: %v", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
	} else {
		log.Println("REDIS_URL not set: using in-process rate limiter, events disabled")
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
		notifier = events.NoopNotifier{}
	}

	// Wire dependencies: repository → service → handler
	mediaRepo := media.NewRepository(pool)
	mediaSvc := media.NewService(cfg, mediaRepo, store, notifier)
	mediaHandler := media.NewHandler(mediaSvc, cfg)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-Id", "X-User-Role"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/media", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.With(appMiddleware.RateLimit(limiter)).Post("/upload", mediaHandler.Upload)
			r.With(appMiddleware.RateLimit(limiter)).Post("/presign", mediaHandler.Presign)
			r.Get("/", mediaHandler.List)
			r.Get("/{id}", mediaHandler.Get)
			r.Delete("/{id}", mediaHandler.Delete)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
