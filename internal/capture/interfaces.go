package capture

import (
	"context"
	"time"
)

// RemoteJobClient talks to the remote rendering service.
type RemoteJobClient interface {
	Submit(ctx context.Context, url string, cfg JobConfig, useTunnel bool, browsers []BrowserProfile) (Job, error)
	FetchStatus(ctx context.Context, jobID string) (Job, error)
	Download(ctx context.Context, sourceURL string) ([]byte, error)
	Browsers(ctx context.Context) ([]BrowserProfile, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	Exists(ctx context.Context, path string) (bool, error)
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for integrity reporting.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces batch IDs.
type IDGenerator interface {
	NewID() (string, error)
}
