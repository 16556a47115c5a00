package engine

import (
	"context"
	"time"
)

// CollectionOptions controls one collection dispatch. The zero value means
// "collect everything configured for the brand".
type CollectionOptions struct {
	Collectors []string
	Locale     string
	Country    string
	Since      *time.Time

	// WorkItemIDs restricts the run to exactly these items. Retry jobs use
	// this to re-collect only what previously failed instead of a full
	// re-run.
	WorkItemIDs []string
}

type CollectionStats struct {
	ItemsProcessed  int
	ResultsProduced int
	Succeeded       int
	Failed          int
	Errors          []string
}

// CollectionRunner is the data-collection collaborator that queries the
// answer engines. Implementations live outside this engine; the worker only
// depends on this boundary.
type CollectionRunner interface {
	Execute(ctx context.Context, ownerID, brandID string, opts CollectionOptions) (*CollectionStats, error)
}

type ScoringOptions struct {
	Since    *time.Time
	Limit    int
	Parallel int
}

type ScoringStats struct {
	PositionsProcessed            int
	SentimentsProcessed           int
	CompetitorSentimentsProcessed int
	CitationsProcessed            int
	Errors                        []string
}

// ScoringRunner is the scoring/sentiment collaborator that analyzes collected
// answers.
type ScoringRunner interface {
	Score(ctx context.Context, brandID, ownerID string, opts ScoringOptions) (*ScoringStats, error)
}
