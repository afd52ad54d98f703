package main

import "time"

// ProcessingType selects which pipeline stages run for an endorsement.
type ProcessingType string

const (
	ProcessingAnonymization          ProcessingType = "anonymization"
	ProcessingSentimentNormalization ProcessingType = "sentiment_normalization"
	ProcessingFullPipeline           ProcessingType = "full_pipeline"
)

func (p ProcessingType) Valid() bool {
	switch p {
	case ProcessingAnonymization, ProcessingSentimentNormalization, ProcessingFullPipeline:
		return true
	}
	return false
}

// StageOutcome records how a single pipeline stage produced its output:
// via the remote capability, via the deterministic local fallback, or not
// at all (stage skipped for this processing type, or empty input).
type StageOutcome string

const (
	OutcomeRemote   StageOutcome = "remote"
	OutcomeFallback StageOutcome = "fallback"
	OutcomeSkipped  StageOutcome = "skipped"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Endorsement struct {
	ID                   int64
	ReviewerID           string
	SubjectID            string
	Text                 string
	StarRating           int // 1-5
	BiasReductionApplied bool
	BiasReductionAt      time.Time
	CreatedAt            time.Time
}

// ProcessingLogEntry is one append-only audit record per processing attempt.
// OriginalText always equals the text submitted to the attempt, success or
// failure, so the trail stays trustworthy when processing degrades.
type ProcessingLogEntry struct {
	ID               int64
	EndorsementID    int64
	RunID            string // batch run UUID, empty for single-item calls
	OriginalText     string
	AnonymizedText   *string
	NormalizedText   *string
	ProcessingType   ProcessingType
	Status           string // completed | failed
	ErrorMessage     string
	AnonymizeOutcome StageOutcome
	NormalizeOutcome StageOutcome
	DurationMs       int64
	CreatedAt        time.Time
}

// ConsistencyProfile is the per-reviewer fairness profile. It is upserted
// (replace-on-recompute) keyed by reviewer id; concurrent recomputes are
// last-write-wins.
type ConsistencyProfile struct {
	ReviewerID        string
	TotalReviews      int
	AverageRating     float64
	StandardDeviation float64
	ConsistencyScore  *int // nil when fewer than 3 ratings
	IsConsistent      bool
	Issues            []string
	LastAnalyzedAt    time.Time
}
