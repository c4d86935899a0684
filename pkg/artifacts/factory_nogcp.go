//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

func newGCSSinkFromConfig(ctx context.Context, bucket, prefix string) (Sink, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
