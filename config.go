package main

import (
	"fmt"
	"github.com/lumigo-io/lambda-telemetry-demo/service/posts"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	TableName    string
	BucketName   string
	ReplicaCount int
	APIBaseURL   string

	RDSHost     string
	RDSPort     int
	RDSDatabase string
	RDSUsername string
	RDSPassword string

	HTTPTimeout         time.Duration
	RelationalTimeout   time.Duration
	ResourceWaitTimeout time.Duration
}

func LoadConfig() Config {
	return Config{
		TableName:    envOr("DYNAMODB_TABLE_NAME", "example-table"),
		BucketName:   envOr("S3_BUCKET_NAME", "example-bucket"),
		ReplicaCount: envIntOr("REPLICA_COUNT", 3),
		APIBaseURL:   envOr("API_BASE_URL", posts.DefaultBaseURL),

		RDSHost:     envOr("RDS_HOST", "localhost"),
		RDSPort:     envIntOr("RDS_PORT", 5432),
		RDSDatabase: envOr("RDS_DATABASE_NAME", "lumigo_test"),
		RDSUsername: envOr("RDS_USERNAME", "lumigo_admin"),
		RDSPassword: envOr("RDS_PASSWORD", "LumigoTest123!"),

		HTTPTimeout:         10 * time.Second,
		RelationalTimeout:   30 * time.Second,
		ResourceWaitTimeout: time.Duration(envIntOr("RESOURCE_WAIT_TIMEOUT", 30)) * time.Second,
	}
}

// DatabaseURL builds the pgx connection string from the RDS parameters.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(c.RDSUsername),
		url.QueryEscape(c.RDSPassword),
		c.RDSHost,
		c.RDSPort,
		c.RDSDatabase,
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func envIntOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}

	return v
}
