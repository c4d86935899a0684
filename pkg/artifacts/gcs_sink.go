//go:build gcp

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSink writes generated files as objects under an optional prefix.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSSinkConfig holds configuration for GCSSink.
type GCSSinkConfig struct {
	Bucket string
	Prefix string
}

// NewGCSSink creates a GCS-backed sink using application default credentials.
func NewGCSSink(ctx context.Context, cfg GCSSinkConfig) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSSink{
		client: client,
		bucket: cfg.Bucket,
		prefix: joinPrefix(cfg.Prefix),
	}, nil
}

func (s *GCSSink) object(p string) (*storage.ObjectHandle, string, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return nil, "", err
	}
	name := s.prefix + rel
	return s.client.Bucket(s.bucket).Object(name), name, nil
}

func (s *GCSSink) Put(ctx context.Context, p string, data []byte) (string, error) {
	obj, name, err := s.object(p)
	if err != nil {
		return "", err
	}
	hash := contentHash(data)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType(p)
	w.Metadata = map[string]string{"cwgen-hash": hash}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed for %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed for %s: %w", name, err)
	}
	return hash, nil
}

func (s *GCSSink) Get(ctx context.Context, p string) ([]byte, error) {
	obj, name, err := s.object(p)
	if err != nil {
		return nil, err
	}
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", name, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

func (s *GCSSink) Exists(ctx context.Context, p string) (bool, error) {
	obj, name, err := s.object(p)
	if err != nil {
		return false, err
	}
	if _, err := obj.Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs failed for %s: %w", name, err)
	}
	return true, nil
}

func (s *GCSSink) Delete(ctx context.Context, p string) error {
	obj, name, err := s.object(p)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete failed for %s: %w", name, err)
	}
	return nil
}

func (s *GCSSink) Location(p string) string {
	return "gs://" + s.bucket + "/" + s.prefix + p
}

// Close closes the GCS client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
