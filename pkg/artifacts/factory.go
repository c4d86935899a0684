package artifacts

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/permissionlessweb/bs-accounts/pkg/config"
)

// NewSinkFromConfig selects the output backend named by
// cfg.OutputStorage. The filesystem sink writes under outPath; bucket
// sinks use outPath's base name when no prefix is configured.
func NewSinkFromConfig(ctx context.Context, cfg *config.Config, outPath string) (Sink, error) {
	switch cfg.OutputStorage {
	case "", config.StorageFS:
		return NewFileSink(outPath)
	case config.StorageS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("CWGEN_S3_BUCKET is required for S3 storage")
		}
		return NewS3Sink(ctx, S3SinkConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   prefixOr(cfg.S3Prefix, outPath),
		})
	case config.StorageGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("CWGEN_GCS_BUCKET is required for GCS storage")
		}
		return newGCSSinkFromConfig(ctx, cfg.GCSBucket, prefixOr(cfg.GCSPrefix, outPath))
	default:
		return nil, fmt.Errorf("unsupported output storage type: %s", cfg.OutputStorage)
	}
}

func prefixOr(prefix, outPath string) string {
	if prefix != "" {
		return prefix
	}
	base := path.Base(strings.ReplaceAll(outPath, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// joinPrefix normalizes an object key prefix to "" or "dir/".
func joinPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func contentType(p string) string {
	if strings.HasSuffix(p, ".go") {
		return "text/x-go; charset=utf-8"
	}
	return "application/octet-stream"
}
