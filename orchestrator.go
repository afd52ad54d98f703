package main

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Orchestrator sequences transformer stages per endorsement, writes the
// append-only processing log, and drives batch runs with per-item failure
// isolation and a fixed inter-item pause as client-side rate limiting
// against the remote capability.
type Orchestrator struct {
	db          *sql.DB
	transformer *Transformer
	batchPause  time.Duration
}

func NewOrchestrator(db *sql.DB, transformer *Transformer, batchPause time.Duration) *Orchestrator {
	if batchPause <= 0 {
		batchPause = 100 * time.Millisecond
	}
	return &Orchestrator{db: db, transformer: transformer, batchPause: batchPause}
}

type BatchItemResult struct {
	Endorsement Endorsement
	Entry       ProcessingLogEntry
	Err         error
}

type ProcessTextResult struct {
	Endorsement Endorsement
	Entry       ProcessingLogEntry
}

// ProcessOne runs the requested stages for a single endorsement, measuring
// wall-clock duration, and appends one audit entry for the attempt. The
// entry's OriginalText always equals the submitted text. A fallback-degraded
// run is logged with status=failed but still returns the usable result with
// a nil error; only validation and persistence problems surface as errors.
func (o *Orchestrator) ProcessOne(ctx context.Context, e Endorsement, ptype ProcessingType) (Endorsement, ProcessingLogEntry, error) {
	return o.processOne(ctx, e, ptype, "")
}

func (o *Orchestrator) processOne(ctx context.Context, e Endorsement, ptype ProcessingType, runID string) (Endorsement, ProcessingLogEntry, error) {
	if e.ID <= 0 {
		return e, ProcessingLogEntry{}, &ValidationError{Field: "endorsement_id", Reason: "must be set"}
	}
	if strings.TrimSpace(e.Text) == "" {
		return e, ProcessingLogEntry{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if !ptype.Valid() {
		return e, ProcessingLogEntry{}, &ValidationError{Field: "processing_type", Reason: "unknown value " + string(ptype)}
	}

	start := time.Now()
	result, report := o.runStages(ctx, e, ptype)
	durationMs := time.Since(start).Milliseconds()

	entry := ProcessingLogEntry{
		EndorsementID:    e.ID,
		RunID:            runID,
		OriginalText:     e.Text,
		ProcessingType:   ptype,
		Status:           StatusCompleted,
		AnonymizeOutcome: report.AnonymizeOutcome,
		NormalizeOutcome: report.NormalizeOutcome,
		DurationMs:       durationMs,
	}
	if report.AnonymizeOutcome != OutcomeSkipped {
		anon := report.AnonymizedText
		entry.AnonymizedText = &anon
	}
	if report.NormalizeOutcome != OutcomeSkipped {
		norm := report.NormalizedText
		entry.NormalizedText = &norm
	}
	// A degraded run still produced a usable result, but the attempt itself
	// is recorded as failed so the audit trail shows the remote outage.
	if report.FallbackUsed() {
		entry.Status = StatusFailed
		entry.ErrorMessage = strings.Join(report.RemoteErrors, "; ")
	}

	log.Printf("process endorsement=%d type=%s status=%s anonymize=%s normalize=%s duration_ms=%d run=%s",
		e.ID, ptype, entry.Status, entry.AnonymizeOutcome, entry.NormalizeOutcome, durationMs, runID)

	if err := AppendProcessingLog(o.db, entry); err != nil {
		// Best-effort: the transformation result is not discarded just
		// because audit logging failed.
		return result, entry, &PersistenceError{Op: "processing log append", Err: err}
	}
	return result, entry, nil
}

func (o *Orchestrator) runStages(ctx context.Context, e Endorsement, ptype ProcessingType) (Endorsement, StageReport) {
	switch ptype {
	case ProcessingAnonymization:
		report := StageReport{AnonymizeOutcome: OutcomeSkipped, NormalizeOutcome: OutcomeSkipped}
		anonymized, outcome, remoteErr := o.transformer.Anonymize(ctx, e.Text)
		report.AnonymizeOutcome = outcome
		report.AnonymizedText = anonymized
		if remoteErr != nil {
			report.RemoteErrors = append(report.RemoteErrors, "anonymization fallback: "+remoteErr.Error())
		}
		result := e
		result.Text = anonymized
		result.BiasReductionApplied = true
		result.BiasReductionAt = time.Now()
		return result, report

	case ProcessingSentimentNormalization:
		report := StageReport{AnonymizeOutcome: OutcomeSkipped, NormalizeOutcome: OutcomeSkipped}
		normalized, outcome, remoteErr := o.transformer.NormalizeSentiment(ctx, e.Text)
		report.NormalizeOutcome = outcome
		report.NormalizedText = normalized
		if remoteErr != nil {
			report.RemoteErrors = append(report.RemoteErrors, "sentiment normalization fallback: "+remoteErr.Error())
		}
		result := e
		result.Text = normalized
		result.BiasReductionApplied = true
		result.BiasReductionAt = time.Now()
		return result, report

	default: // full pipeline
		result, report, _ := o.transformer.ProcessEndorsement(ctx, &e)
		return *result, report
	}
}

// ProcessBatch processes endorsements strictly sequentially with a fixed
// pause between items. Failures are isolated per item: the failed item
// comes back unchanged while the rest of the batch continues. The result
// list always has the same length and order as the input, and every audit
// entry of the run carries the same run id.
func (o *Orchestrator) ProcessBatch(ctx context.Context, items []Endorsement, ptype ProcessingType) ([]BatchItemResult, string) {
	runID := uuid.NewString()
	results := make([]BatchItemResult, len(items))

	for i, item := range items {
		if i > 0 {
			time.Sleep(o.batchPause)
		}
		result, entry, err := o.processOne(ctx, item, ptype, runID)
		if err != nil && !isPersistenceError(err) {
			log.Printf("batch item endorsement=%d isolated err=%v run=%s", item.ID, err, runID)
			results[i] = BatchItemResult{Endorsement: item, Entry: entry, Err: err}
			continue
		}
		// A persistence failure after a successful transformation keeps the
		// processed result; the error is still reported for the item.
		results[i] = BatchItemResult{Endorsement: result, Entry: entry, Err: err}
	}

	log.Printf("batch complete run=%s items=%d failed=%d", runID, len(items), countBatchFailures(results))
	return results, runID
}

func countBatchFailures(results []BatchItemResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// --- Caller-facing operations (invoked by the external controller layer) ---

// ProcessEndorsementText runs the requested processing on the given text and
// persists the processed version over the endorsement record. A persistence
// failure still returns the computed result alongside the error.
func (o *Orchestrator) ProcessEndorsementText(ctx context.Context, endorsementID int64, text string, ptype ProcessingType) (ProcessTextResult, error) {
	result, entry, err := o.processOne(ctx, Endorsement{ID: endorsementID, Text: text}, ptype, "")
	out := ProcessTextResult{Endorsement: result, Entry: entry}
	if err != nil {
		return out, err
	}

	if uerr := UpdateEndorsementText(o.db, endorsementID, result.Text, result.BiasReductionAt); uerr != nil {
		return out, &PersistenceError{Op: "endorsement update", Err: uerr}
	}
	return out, nil
}

// AnalyzeReviewerConsistency computes and upserts the reviewer's profile
// from the supplied endorsement history. Ordering is normalized here:
// created_at ascending with insertion id as the deterministic tie-break.
func (o *Orchestrator) AnalyzeReviewerConsistency(reviewerID string, endorsements []Endorsement) (ConsistencyProfile, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return ConsistencyProfile{}, &ValidationError{Field: "reviewer_id", Reason: "must be set"}
	}

	sorted := make([]Endorsement, len(endorsements))
	copy(sorted, endorsements)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	ratings := make([]int, len(sorted))
	for i, e := range sorted {
		ratings[i] = e.StarRating
	}

	profile := AnalyzeConsistency(reviewerID, ratings)
	log.Printf("analyze reviewer=%s reviews=%d consistent=%t issues=%d",
		reviewerID, profile.TotalReviews, profile.IsConsistent, len(profile.Issues))

	if err := UpsertConsistencyProfile(o.db, profile); err != nil {
		return profile, &PersistenceError{Op: "profile upsert", Err: err}
	}
	return profile, nil
}

// ProcessBatchByIDs loads each endorsement and runs the full pipeline over
// the batch. Unknown ids and per-item failures are isolated in place; the
// returned run id locates the batch's entries in the processing log.
func (o *Orchestrator) ProcessBatchByIDs(ctx context.Context, ids []int64) ([]BatchItemResult, string, error) {
	if len(ids) == 0 {
		return nil, "", &ValidationError{Field: "endorsement_ids", Reason: "must not be empty"}
	}

	runID := uuid.NewString()
	results := make([]BatchItemResult, len(ids))

	for i, id := range ids {
		if i > 0 {
			time.Sleep(o.batchPause)
		}

		e, err := GetEndorsementByID(o.db, id)
		if err != nil {
			log.Printf("batch item endorsement=%d load err=%v run=%s", id, err, runID)
			results[i] = BatchItemResult{
				Endorsement: Endorsement{ID: id},
				Err:         &ValidationError{Field: "endorsement_id", Reason: "not found"},
			}
			continue
		}

		result, entry, err := o.processOne(ctx, e, ProcessingFullPipeline, runID)
		if err != nil {
			log.Printf("batch item endorsement=%d isolated err=%v run=%s", id, err, runID)
			results[i] = BatchItemResult{Endorsement: e, Entry: entry, Err: err}
			continue
		}

		if uerr := UpdateEndorsementText(o.db, e.ID, result.Text, result.BiasReductionAt); uerr != nil {
			results[i] = BatchItemResult{Endorsement: result, Entry: entry, Err: &PersistenceError{Op: "endorsement update", Err: uerr}}
			continue
		}
		results[i] = BatchItemResult{Endorsement: result, Entry: entry}
	}

	log.Printf("batch complete run=%s items=%d failed=%d", runID, len(ids), countBatchFailures(results))
	return results, runID, nil
}
