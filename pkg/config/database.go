package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/docstore/firestore"
	"github.com/anonto42/socialicon/internal/docstore/memory"
	mongostore "github.com/anonto42/socialicon/internal/docstore/mongo"
	"github.com/anonto42/socialicon/internal/snapshotcache"
	"github.com/anonto42/socialicon/pkg/firebase"
)

// DB holds the document store and the optional feed snapshot cache
type DB struct {
	Store docstore.Store
	Cache *snapshotcache.Cache
}

// InitDB opens the document store selected by cfg.Backend and, when
// configured, the snapshot cache. fb is required for the firestore backend.
func InitDB(ctx context.Context, cfg *Config, fb *firebase.App) (*DB, error) {
	db := &DB{}
	switch cfg.Backend {
	case BackendFirestore:
		if fb == nil || fb.Firestore == nil {
			return nil, fmt.Errorf("firestore backend requires an initialized Firebase app")
		}
		db.Store = firestore.New(fb.Firestore)
		log.Println("Using Firestore document store.")
	case BackendMongo:
		client, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db.Store = mongostore.New(client, cfg.MongoDatabase)
	case BackendMemory:
		db.Store = memory.New()
		log.Println("Using in-memory document store; data is lost on exit.")
	default:
		return nil, fmt.Errorf("unknown BACKEND %q", cfg.Backend)
	}

	if cfg.SnapshotCacheURL != "" {
		cache, err := snapshotcache.Open(cfg.SnapshotCacheURL)
		if err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
		}
		db.Cache = cache
		log.Println("Feed snapshot cache ready.")
	}
	return db, nil
}

// initMongo initializes the MongoDB connection. Change streams need a
// replica set.
func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Println("Successfully connected to MongoDB!")
	return client, nil
}

// CloseDB closes the store and the snapshot cache
func (db *DB) CloseDB() {
	if db.Store != nil {
		if err := db.Store.Close(); err != nil {
			log.Printf("Error closing document store: %v\n", err)
		} else {
			log.Println("Document store closed.")
		}
	}
	if db.Cache != nil {
		if err := db.Cache.Close(); err != nil {
			log.Printf("Error closing snapshot cache: %v\n", err)
		} else {
			log.Println("Snapshot cache closed.")
		}
	}
}
