package domain

import "context"

// Service is the single entry point request handlers consult before and
// after running the story-generation pipeline.
type Service interface {
	// CanGenerate combines the paywall classification with the
	// subscriber monthly quota.
	CanGenerate(ctx context.Context, userID string, includeIllustrations bool) (Decision, error)

	// IncrementUsage runs once after a story finishes generating. The
	// paywall-relevant state is snapshotted before any counter moves.
	IncrementUsage(ctx context.Context, req IncrementUsageRequest) (IncrementUsageResult, error)

	GetUsageStats(ctx context.Context, userID string) (UsageStats, error)
}
