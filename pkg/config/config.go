package config

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Output storage backends.
const (
	StorageFS  = "fs"
	StorageS3  = "s3"
	StorageGCS = "gcs"
)

// Config holds process configuration read from the environment.
type Config struct {
	LogLevel    string
	LogFormat   string
	Parallelism int

	OutputStorage string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3Prefix      string
	GCSBucket     string
	GCSPrefix     string

	OTelEnabled  bool
	OTelEndpoint string
	OTelInsecure bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := strings.ToUpper(os.Getenv("CWGEN_LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "INFO"
	}

	logFormat := strings.ToLower(os.Getenv("CWGEN_LOG_FORMAT"))
	if logFormat == "" {
		logFormat = "text"
	}

	parallelism, err := strconv.Atoi(os.Getenv("CWGEN_PARALLELISM"))
	if err != nil || parallelism < 1 {
		parallelism = runtime.NumCPU()
	}

	storage := strings.ToLower(os.Getenv("CWGEN_OUTPUT_STORAGE"))
	if storage == "" {
		storage = StorageFS
	}

	region := os.Getenv("CWGEN_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	endpoint := os.Getenv("CWGEN_OTEL_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	return &Config{
		LogLevel:      logLevel,
		LogFormat:     logFormat,
		Parallelism:   parallelism,
		OutputStorage: storage,
		S3Bucket:      os.Getenv("CWGEN_S3_BUCKET"),
		S3Region:      region,
		S3Endpoint:    os.Getenv("CWGEN_S3_ENDPOINT"),
		S3Prefix:      os.Getenv("CWGEN_S3_PREFIX"),
		GCSBucket:     os.Getenv("CWGEN_GCS_BUCKET"),
		GCSPrefix:     os.Getenv("CWGEN_GCS_PREFIX"),
		OTelEnabled:   os.Getenv("CWGEN_OTEL_ENABLED") == "true",
		OTelEndpoint:  endpoint,
		OTelInsecure:  os.Getenv("CWGEN_OTEL_INSECURE") == "true",
	}
}

// Level maps LogLevel to a slog level. Unknown names fall back to INFO.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
