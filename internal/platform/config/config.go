package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. Everything is resolved once at
// startup so no package reads the environment ad hoc.
type Server struct {
	Addr          string
	JWTSigningKey string

	DatabaseURL string
	Redis       Redis

	// AuthBypass lets local development act as a fixed user without the
	// external OAuth flow. Resolved here, never read from env elsewhere.
	AuthBypassEnabled bool
	AuthBypassHandle  string

	// IPHashSalt keys the one-way hash applied to client IPs before they are
	// persisted in download dedupe records. Raw IPs never reach storage.
	IPHashSalt string

	Downloads Downloads
	Blob      Blob
}

// Redis holds connection settings for the shared rate-limit counters.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Downloads tunes the abuse mitigation policies.
type Downloads struct {
	RateLimit       int
	RateWindow      time.Duration
	DedupeRetention time.Duration
	PruneInterval   time.Duration
}

// Blob selects the file storage backend for version archives.
type Blob struct {
	Backend  string // "fs", "s3" or "memory"
	Dir      string
	S3Bucket string
	S3Region string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SKILLHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	salt := os.Getenv("IP_HASH_SALT")
	if salt == "" {
		salt = "dev-ip-hash-salt"
	}

	blobBackend := os.Getenv("BLOB_BACKEND")
	if blobBackend == "" {
		blobBackend = "fs"
	}
	blobDir := os.Getenv("BLOB_DIR")
	if blobDir == "" {
		blobDir = "./data/blobs"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		AuthBypassEnabled: os.Getenv("AUTH_BYPASS") == "true",
		AuthBypassHandle:  envString("AUTH_BYPASS_HANDLE", "local"),
		IPHashSalt:        salt,
		Downloads: Downloads{
			RateLimit:       envInt("DOWNLOAD_RATE_LIMIT", 5),
			RateWindow:      envDuration("DOWNLOAD_RATE_WINDOW", time.Hour),
			DedupeRetention: envDuration("DOWNLOAD_DEDUPE_RETENTION", 14*24*time.Hour),
			PruneInterval:   envDuration("DOWNLOAD_PRUNE_INTERVAL", time.Hour),
		},
		Blob: Blob{
			Backend:  blobBackend,
			Dir:      blobDir,
			S3Bucket: os.Getenv("BLOB_S3_BUCKET"),
			S3Region: os.Getenv("BLOB_S3_REGION"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
