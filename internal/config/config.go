// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cloudmesh/cloudmesh/internal/crypto"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// EncryptionKey is the 32-byte AES key protecting sensitive
	// credential fields at rest.
	EncryptionKey []byte

	ListenAddr       string
	DBPath           string
	SweepInterval    time.Duration
	SweepConcurrency int

	// Platform AWS identity used to assume customer roles during
	// validation. Optional; without it AWS live validation reports a
	// configuration error.
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSDefaultRegion   string
}

// HasAWSCredentials returns true when the platform AWS key pair is
// configured.
func (c *Config) HasAWSCredentials() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. CLOUDMESH_ENCRYPTION_KEY is required and must be a base64-encoded
// 32-byte key (see the keygen command). Optional variables with defaults:
// CLOUDMESH_LISTEN_ADDR (127.0.0.1:8080), CLOUDMESH_DB_PATH (cloudmesh.db),
// CLOUDMESH_SWEEP_INTERVAL (30m), CLOUDMESH_SWEEP_CONCURRENCY (4).
func Load() (*Config, error) {
	encoded := os.Getenv("CLOUDMESH_ENCRYPTION_KEY")
	if encoded == "" {
		return nil, fmt.Errorf("CLOUDMESH_ENCRYPTION_KEY is required")
	}
	key, err := crypto.ParseKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("CLOUDMESH_ENCRYPTION_KEY is invalid: %w", err)
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("CLOUDMESH_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "cloudmesh.db"
	if v, ok := os.LookupEnv("CLOUDMESH_DB_PATH"); ok {
		dbPath = v
	}

	sweepInterval := 30 * time.Minute
	if v, ok := os.LookupEnv("CLOUDMESH_SWEEP_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CLOUDMESH_SWEEP_INTERVAL has invalid duration %q: %w", v, err)
		}
		sweepInterval = parsed
	}

	sweepConcurrency := 4
	if v, ok := os.LookupEnv("CLOUDMESH_SWEEP_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("CLOUDMESH_SWEEP_CONCURRENCY must be a positive integer, got %q", v)
		}
		sweepConcurrency = parsed
	}

	return &Config{
		EncryptionKey:      key,
		ListenAddr:         listenAddr,
		DBPath:             dbPath,
		SweepInterval:      sweepInterval,
		SweepConcurrency:   sweepConcurrency,
		AWSAccessKeyID:     os.Getenv("CLOUDMESH_AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("CLOUDMESH_AWS_SECRET_ACCESS_KEY"),
		AWSDefaultRegion:   os.Getenv("CLOUDMESH_AWS_DEFAULT_REGION"),
	}, nil
}
