//go:build gcp

package artifacts

import "context"

func newGCSSinkFromConfig(ctx context.Context, bucket, prefix string) (Sink, error) {
	return NewGCSSink(ctx, GCSSinkConfig{Bucket: bucket, Prefix: prefix})
}
