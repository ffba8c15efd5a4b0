package campaign

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by Store lookups when no row matches the id.
var ErrNotFound = errors.New("campaign not found")

// Scraper extracts best-effort metadata from a product page. Implementations
// never fail outward: fetch and parse errors collapse to DefaultMetadata at
// the boundary, with the underlying error logged rather than returned.
type Scraper interface {
	Scrape(ctx context.Context, url string) PageMetadata
}

// Completer sends a single prompt to a text-completion service and returns
// the raw model output.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator runs the scrape -> prompt -> parse pipeline for one URL. It
// either returns a fully shaped campaign or an error; never a partial one.
type Generator interface {
	Generate(ctx context.Context, url string) (Campaign, error)
}

// Store persists campaigns.
type Store interface {
	// Insert writes the campaign and returns the stored row with ID and
	// CreatedAt assigned.
	Insert(ctx context.Context, c Campaign) (Campaign, error)
	// GetByID returns ErrNotFound when no row matches.
	GetByID(ctx context.Context, id int64) (Campaign, error)
	// ListAll returns every campaign, newest first.
	ListAll(ctx context.Context) ([]Campaign, error)
}

// Publisher emits service events such as campaign.created.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore archives fetched page snapshots.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher produces a stable digest used for snapshot keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}
