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

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/anonto42/socialicon/internal/blob"
	"github.com/anonto42/socialicon/internal/router"
	"github.com/anonto42/socialicon/pkg/config"
	"github.com/anonto42/socialicon/pkg/firebase"
	"github.com/anonto42/socialicon/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase unless running fully in memory
	var fb *firebase.App
	if cfg.Backend != config.BackendMemory {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID, cfg.FirebaseStorageBucket)
		if err != nil {
			if cfg.Backend == config.BackendFirestore {
				log.Fatalf("Failed to initialize Firebase: %v", err)
			}
			log.Printf("Firebase unavailable, continuing without it: %v", err)
		} else {
			fb = app
		}
	}

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, fb)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	deps := router.Dependencies{Config: cfg, Store: db.Store}
	if fb != nil {
		deps.Verifier = fb.AuthClient
	}
	if fb != nil && fb.Bucket != nil {
		deps.Blobs = blob.NewBucket(fb.Bucket, fb.BucketName)
	} else {
		log.Println("No storage bucket configured; uploads are kept in memory.")
		deps.Blobs = blob.NewMemory()
	}
	if db.Cache != nil {
		deps.Cache = db.Cache
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e)

	// Setup routes and dependencies
	hub, err := router.SetupRoutes(e, deps)
	if err != nil {
		log.Fatalf("Failed to configure routes: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Server stopped: %v", err)
	}
	log.Println("Server shut down.")
}
