package ports

import (
	"context"
	"time"

	"ArxivDigest/internal/domain"
)

// PageRequest addresses one listing page of a category.
type PageRequest struct {
	Category string
	Offset   int
	Size     int
}

// PageFetcher retrieves and parses one listing page. Retry policy, if any,
// belongs to the implementation.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (domain.ListingPage, error)
}

// SummaryLookup returns abstracts keyed by paper ID. Missing IDs are omitted.
type SummaryLookup interface {
	Summaries(ctx context.Context, ids []string) (map[string]string, error)
}

// EngagementSearcher returns social mentions of one paper.
type EngagementSearcher interface {
	Search(ctx context.Context, paperID string) ([]domain.EngagementRecord, error)
}

// Notifier streams rendered digests to a chat or other channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
