package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"classifieds/internal/adapter/api"
	"classifieds/internal/adapter/api/handler"
	apimiddleware "classifieds/internal/adapter/api/middleware"
	"classifieds/internal/adapter/api/router"
	"classifieds/internal/adapter/repository"
	domainrepo "classifieds/internal/domain/repository"
	"classifieds/internal/domain/service"
	"classifieds/internal/infrastructure/firebase"
	"classifieds/internal/infrastructure/jwtauth"
	"classifieds/internal/infrastructure/metrics"
	"classifieds/internal/infrastructure/presence"
	"classifieds/internal/infrastructure/ratelimit"
	"classifieds/internal/infrastructure/storage"
	"classifieds/internal/infrastructure/websocket"
	"classifieds/internal/usecase"
	"classifieds/pkg/config"
	"classifieds/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []io.Closer

	var opt option.ClientOption
	if cfg.FirebaseServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	} else if cfg.FirebaseServiceAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
		}
		log.Printf("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
		opt = option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
	}
	var clientOpts []option.ClientOption
	if opt != nil {
		clientOpts = append(clientOpts, opt)
	}

	var firebaseApp *fbapp.App
	if cfg.StorageDriver == "firestore" || cfg.AuthProvider == "firebase" {
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, clientOpts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
	}

	var (
		userRepo         domainrepo.UserRepository
		chatRepo         domainrepo.ChatRepository
		notificationRepo domainrepo.NotificationRepository
	)
	switch cfg.StorageDriver {
	case "firestore":
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, clientOpts...)
		if err != nil {
			log.Fatalf("Failed to create Firestore client: %v", err)
		}
		closers = append(closers, firestoreClient)

		userRepo = repository.NewFirestoreUserRepository(firestoreClient)
		chatRepo = repository.NewFirestoreChatRepository(firestoreClient)
		notificationRepo = repository.NewFirestoreNotificationRepository(firestoreClient)
	case "memory":
		logger.Warn("Using in-memory storage, data is lost on restart")
		userRepo = repository.NewMemoryUserRepository()
		chatRepo = repository.NewMemoryChatRepository()
		notificationRepo = repository.NewMemoryNotificationRepository()
	default:
		log.Fatalf("Unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	var validator service.CredentialValidator
	switch cfg.AuthProvider {
	case "firebase":
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}
		validator = firebase.NewFirebaseAuthClient(authClient)
	case "jwt":
		if cfg.IsProduction() && cfg.JWTSecret == "your-secret-key" {
			log.Fatalf("JWT_SECRET must be set in production")
		}
		validator = jwtauth.NewAuthority(cfg.JWTSecret, time.Duration(cfg.JWTExpiry)*time.Second)
	default:
		log.Fatalf("Unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}

	var media service.MediaStore
	if cfg.StorageBucket != "" {
		storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, clientOpts...)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		closers = append(closers, storageClient)
		media = storageClient
	}

	var mirror presence.Mirror
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable at %s, last-seen mirror disabled: %v", cfg.RedisAddr, err)
			rdb.Close()
		} else {
			mirror = presence.NewRedisMirror(rdb, cfg.PresenceTTL)
		}
	}

	collectors := metrics.New(prometheus.NewRegistry())
	rateLimiter := ratelimit.NewRateLimiter(nil)
	rateLimiter.StartCleanupRoutine(ctx)

	registry := presence.NewRegistry(mirror)
	authUseCase := usecase.NewAuthUseCase(validator, userRepo)

	wsManager := websocket.NewManager(registry, authUseCase, websocket.Options{
		AuthTimeout: cfg.WSAuthTimeout,
		SendBuffer:  cfg.WSSendBuffer,
		Metrics:     collectors,
		RateLimiter: rateLimiter,
	})

	notificationUseCase := usecase.NewNotificationUseCase(notificationRepo, wsManager, collectors)
	chatUseCase := usecase.NewChatUseCase(chatRepo, notificationUseCase, wsManager, usecase.ChatOptions{
		Accounts:         authUseCase,
		RateLimiter:      rateLimiter,
		Media:            media,
		Metrics:          collectors,
		MessageMaxLength: cfg.MessageMaxLength,
	})
	wsManager.UseChatService(chatUseCase)

	handler.SetupHealthHandler(wsManager)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(apimiddleware.RateLimit(rateLimiter, ratelimit.ActionHTTPRequest))

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(authUseCase)

	router.Setup(e, router.Handlers{
		Chat:         handler.NewChatHandler(chatUseCase),
		Notification: handler.NewNotificationHandler(notificationUseCase),
		Presence:     handler.NewPresenceHandler(registry),
		WebSocket:    handler.NewWebSocketHandler(wsManager),
		Metrics:      collectors.Handler(),
		Attachments:  chatUseCase.AttachmentsEnabled(),
	}, authMiddleware)

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown: %v", err)
	}
	if err := wsManager.Close(shutdownCtx); err != nil {
		logger.Error("WebSocket shutdown: %v", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("Closing client: %v", err)
		}
	}
}
