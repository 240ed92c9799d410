package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend selects the document store implementation
type Backend string

const (
	BackendFirestore Backend = "firestore"
	BackendMongo     Backend = "mongo"
	BackendMemory    Backend = "memory"
)

type Config struct {
	Port                    string
	Env                     string
	Backend                 Backend
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseStorageBucket   string
	MongoURI                string
	MongoDatabase           string
	SnapshotCacheURL        string
	JWTSecret               string
	FeedPageSize            int
	FeedLiveWindow          int
	SessionIdleTimeout      time.Duration
	ConversationIdleTimeout time.Duration
}

// Load reads the configuration from the environment, loading .env first
// when present.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		Backend:                 Backend(getEnv("BACKEND", string(BackendFirestore))),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "socialicon"),
		SnapshotCacheURL:        getEnv("SNAPSHOT_CACHE_URL", ""),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		FeedPageSize:            getEnvInt("FEED_PAGE_SIZE", 40),
		FeedLiveWindow:          getEnvInt("FEED_LIVE_WINDOW", 50),
		SessionIdleTimeout:      getEnvDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		ConversationIdleTimeout: getEnvDuration("CONVERSATION_IDLE_TIMEOUT", 2*time.Minute),
	}
}

// IsDevelopment reports whether development-only features are enabled
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
