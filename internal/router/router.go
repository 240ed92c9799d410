package router

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/blob"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/feed"
	"github.com/anonto42/socialicon/internal/handlers"
	"github.com/anonto42/socialicon/internal/middleware"
	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/session"
	"github.com/anonto42/socialicon/pkg/config"
)

// Dependencies are the outside resources the routes are built on
type Dependencies struct {
	Config *config.Config
	Store  docstore.Store
	Blobs  blob.Store
	// Verifier checks Firebase ID tokens. When nil, development tokens
	// signed with Config.JWTSecret are accepted instead.
	Verifier middleware.TokenVerifier
	// Cache is optional.
	Cache feed.SnapshotCache
}

// SetupRoutes configures all application routes and injects dependencies.
// The returned hub owns the live sessions; the caller runs and closes it.
func SetupRoutes(e *echo.Echo, deps Dependencies) (*session.Hub, error) {
	cfg := deps.Config

	auth, err := authMiddleware(deps)
	if err != nil {
		return nil, err
	}

	// --- Initialize Repositories ---
	notificationRepo := repositories.NewNotificationRepository(deps.Store)
	userRepo := repositories.NewUserRepository(deps.Store)
	postRepo := repositories.NewPostRepository(deps.Store)
	likeRepo := repositories.NewLikeRepository(deps.Store, notificationRepo)
	savedPostRepo := repositories.NewSavedPostRepository(deps.Store)
	followRepo := repositories.NewFollowRepository(deps.Store, notificationRepo)
	commentRepo := repositories.NewCommentRepository(deps.Store, userRepo, notificationRepo)
	commentLikeRepo := repositories.NewCommentLikeRepository(deps.Store)
	chatRepo := repositories.NewChatRepository(deps.Store, deps.Blobs)

	hub := session.NewHub(deps.Store, userRepo, chatRepo, session.Config{
		IdleTimeout:      cfg.SessionIdleTimeout,
		ConversationIdle: cfg.ConversationIdleTimeout,
		Feed: feed.Options{
			PageSize:   cfg.FeedPageSize,
			LiveWindow: cfg.FeedLiveWindow,
			Cache:      deps.Cache,
		},
	})
	browser := feed.NewBrowser(deps.Store, nil)

	// Health check - always accessible
	e.GET("/health", handlers.NewHealthHandler(hub).HealthCheck)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "socialicon api"})
	})

	// --- Unprotected routes for development tokens ---
	if deps.Verifier == nil && cfg.IsDevelopment() {
		authGroup := e.Group("/api/v1/auth")
		handlers.NewAuthHandler(cfg.JWTSecret).RegisterAuthRoutes(authGroup)
		log.Println("Development token route configured.")
	}

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(auth)

	handlers.NewUserHandler(userRepo, followRepo, browser, deps.Blobs).RegisterProfileRoutes(api)
	handlers.NewPostHandler(postRepo, userRepo).RegisterPostRoutes(api)
	handlers.NewFeedHandler(hub, browser, likeRepo, savedPostRepo).RegisterFeedRoutes(api)
	handlers.NewFollowHandler(followRepo, userRepo).RegisterFollowRoutes(api)
	handlers.NewCommentHandler(deps.Store, commentRepo, commentLikeRepo, userRepo).RegisterCommentRoutes(api)
	handlers.NewLikeHandler(likeRepo, userRepo, hub).RegisterLikeRoutes(api)
	handlers.NewSavedPostHandler(savedPostRepo).RegisterSavedPostRoutes(api)
	handlers.NewNotificationHandler(hub, notificationRepo).RegisterNotificationRoutes(api)
	handlers.NewChatHandler(hub, chatRepo).RegisterChatRoutes(api)
	handlers.NewUploadHandler(deps.Blobs).RegisterUploadRoutes(api)
	handlers.NewLiveHandler(hub).RegisterLiveRoutes(api)

	log.Println("All routes configured.")
	return hub, nil
}

func authMiddleware(deps Dependencies) (echo.MiddlewareFunc, error) {
	if deps.Verifier != nil {
		log.Println("Firebase authentication middleware applied to /api/v1 group.")
		return middleware.FirebaseAuthMiddleware(deps.Verifier), nil
	}
	if !deps.Config.IsDevelopment() || deps.Config.JWTSecret == "" {
		return nil, errors.New("no Firebase auth client: development tokens need ENV=development and JWT_SECRET")
	}
	log.Println("Development JWT middleware applied to /api/v1 group.")
	return middleware.JWTAuthMiddleware(deps.Config.JWTSecret), nil
}
