// Package config centralizes how the gate-pass service reads environment
// variables and exposes them as strongly typed Go values.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by GATEPASS_STORE. The backend is always an explicit
// choice; there is no automatic fallback between them.
const (
	StorePostgres = "postgres"
	StoreFile     = "file"
	StoreMemory   = "memory"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address string

	// Record store selection.
	StoreBackend string
	DatabaseURL  string
	FilePath     string

	// Render queue (asynq over redis). An empty RedisAddr disables the
	// render pipeline.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	WorkerCount   int

	// Artifact storage for rendered documents. An empty S3Endpoint disables
	// the document endpoints.
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	S3Region       string
	DocumentBucket string

	// HMAC secret and TTL for API-served document download links.
	SigningSecret []byte
	SignedURLTTL  time.Duration

	// Letterhead printed on every rendered pass.
	OrgName    string
	OrgAddress string
	OrgPhone   string
}

const (
	defaultAddress     = ":8080"
	defaultStore       = StoreFile
	defaultFilePath    = "gate_passes.json"
	defaultBucket      = "gate-pass-documents"
	defaultRegion      = "us-east-1"
	defaultSignedTTL   = 5 * time.Minute
	defaultWorkerCount = 2
	defaultOrgName     = "Dispatchworks"
	defaultOrgAddress  = "12 Harbour Road, Colombo"
	defaultOrgPhone    = "011-2400332"
)

// Load reads configuration from environment variables falling back to
// defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Address:        readEnv("GATEPASS_ADDRESS", defaultAddress),
		StoreBackend:   strings.ToLower(readEnv("GATEPASS_STORE", defaultStore)),
		DatabaseURL:    readEnv("GATEPASS_DATABASE_URL", ""),
		FilePath:       readEnv("GATEPASS_FILE_PATH", defaultFilePath),
		RedisAddr:      readEnv("GATEPASS_REDIS_ADDR", ""),
		RedisPassword:  readEnv("GATEPASS_REDIS_PASSWORD", ""),
		RedisDB:        parseInt("GATEPASS_REDIS_DB", 0),
		WorkerCount:    parseInt("GATEPASS_WORKERS", defaultWorkerCount),
		S3Endpoint:     readEnv("GATEPASS_S3_ENDPOINT", ""),
		S3AccessKey:    readEnv("GATEPASS_S3_ACCESS_KEY", ""),
		S3SecretKey:    readEnv("GATEPASS_S3_SECRET_KEY", ""),
		S3UseSSL:       parseBool("GATEPASS_S3_USE_SSL", false),
		S3Region:       readEnv("GATEPASS_S3_REGION", defaultRegion),
		DocumentBucket: readEnv("GATEPASS_DOCUMENT_BUCKET", defaultBucket),
		SigningSecret:  parseSecret("GATEPASS_SIGNING_SECRET"),
		SignedURLTTL:   parseDuration("GATEPASS_SIGNED_TTL", defaultSignedTTL),
		OrgName:        readEnv("GATEPASS_ORG_NAME", defaultOrgName),
		OrgAddress:     readEnv("GATEPASS_ORG_ADDRESS", defaultOrgAddress),
		OrgPhone:       readEnv("GATEPASS_ORG_PHONE", defaultOrgPhone),
	}
	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("GATEPASS_DATABASE_URL is required for the postgres store")
		}
	case StoreFile, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown GATEPASS_STORE %q (want postgres, file or memory)", cfg.StoreBackend)
	}
	if cfg.SigningSecret == nil {
		// If no secret was supplied we generate one using crypto/rand.
		// Download links then stop validating across restarts, which is fine
		// for development and wrong for production, hence the env override.
		cfg.SigningSecret = randomSecret()
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaultWorkerCount
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte("gatepass-dev-secret")
	}
	return buf
}
