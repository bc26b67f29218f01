package crawler

import (
	"context"
	"io"
	"time"
)

// Browser is the page-hosting environment. Navigate and Click replace the
// current document, which ends the page lifetime.
type Browser interface {
	Navigate(ctx context.Context, rawURL string) error
	Click(ctx context.Context, selector string) error
	Snapshot(ctx context.Context) (url string, html []byte, err error)
	Close() error
}

// BlobStore writes export artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes signals to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time and schedules single-shot delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
