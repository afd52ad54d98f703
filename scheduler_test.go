package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunSweepProcessesAndFlagsReviewers(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeCapability{transform: func(text, instruction string) (string, error) {
		return text, nil
	}})
	cfg := Config{SweepBatchLimit: 200}

	// A reviewer whose ratings split into a low era and a high era: high
	// variance plus recent drift pushes the score below the threshold.
	base := time.Now().UTC().Add(-10 * time.Hour).Truncate(time.Second)
	for i, rating := range []int{1, 1, 1, 1, 1, 5, 5, 5, 5, 5} {
		mustInsertEndorsement(t, orch.db, Endorsement{
			ReviewerID: "rev-drift",
			SubjectID:  "sub-1",
			Text:       "solid work",
			StarRating: rating,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}

	result, err := RunSweep(context.Background(), cfg, orch.db, nil, orch)
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}
	if result.Scanned != 10 || result.Processed != 10 || result.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.ProfilesRefreshed != 1 {
		t.Fatalf("expected 1 profile refresh, got %d", result.ProfilesRefreshed)
	}
	if len(result.NewlyFlagged) != 1 || result.NewlyFlagged[0] != "rev-drift" {
		t.Fatalf("reviewer must be newly flagged: %+v", result.NewlyFlagged)
	}
	if result.RunID == "" {
		t.Fatal("expected a run id")
	}

	profile, err := GetConsistencyProfile(orch.db, "rev-drift")
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if profile.IsConsistent || profile.ConsistencyScore == nil || *profile.ConsistencyScore != 65 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// The processed endorsements no longer count as pending, and a reviewer
	// already flagged is not re-announced.
	second, err := RunSweep(context.Background(), cfg, orch.db, nil, orch)
	if err != nil {
		t.Fatalf("second RunSweep failed: %v", err)
	}
	if second.Scanned != 0 || len(second.NewlyFlagged) != 0 {
		t.Fatalf("second sweep must be a no-op: %+v", second)
	}
}

func TestRunSweepCountsDegradedItems(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeCapability{transform: func(text, instruction string) (string, error) {
		return "", &FatalError{Err: errors.New("capability down")}
	}})
	cfg := Config{SweepBatchLimit: 200}

	mustInsertEndorsement(t, orch.db, Endorsement{
		ReviewerID: "rev-1", SubjectID: "sub-1", Text: "good work by John Smith", StarRating: 4,
	})

	result, err := RunSweep(context.Background(), cfg, orch.db, nil, orch)
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}
	if result.Processed != 1 || result.Degraded != 1 || result.Failed != 0 {
		t.Fatalf("fallback-degraded items must count as processed and degraded: %+v", result)
	}

	stored, _ := GetEndorsementByID(orch.db, 1)
	if !strings.Contains(stored.Text, "the candidate") {
		t.Fatalf("fallback result must be persisted, got %q", stored.Text)
	}
}

func TestRunSweepRespectsBatchLimit(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeCapability{})
	cfg := Config{SweepBatchLimit: 2}

	for i := 0; i < 5; i++ {
		mustInsertEndorsement(t, orch.db, Endorsement{
			ReviewerID: "rev-1", SubjectID: "sub-1", Text: "fine work", StarRating: 3,
		})
	}

	result, err := RunSweep(context.Background(), cfg, orch.db, nil, orch)
	if err != nil {
		t.Fatalf("RunSweep failed: %v", err)
	}
	if result.Scanned != 2 || result.Processed != 2 {
		t.Fatalf("sweep must honor the batch limit: %+v", result)
	}
}

func TestFormatSweepSummary(t *testing.T) {
	if got := FormatSweepSummary(SweepResult{}); got != "No unprocessed endorsements." {
		t.Fatalf("empty sweep summary wrong: %q", got)
	}

	got := FormatSweepSummary(SweepResult{
		Scanned:           5,
		Processed:         4,
		Degraded:          1,
		Failed:            1,
		ProfilesRefreshed: 2,
		NewlyFlagged:      []string{"rev-1"},
	})
	for _, want := range []string{"Sweep of 5 endorsements", "4 processed", "1 via fallback", "1 failed", "2 profiles refreshed", "1 reviewers newly flagged"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q: %q", want, got)
		}
	}

	withErrors := FormatSweepSummary(SweepResult{Scanned: 1, Processed: 1, Errors: []string{"endorsement 7: boom"}})
	if !strings.Contains(withErrors, "Warnings:") || !strings.Contains(withErrors, "endorsement 7: boom") {
		t.Fatalf("summary must carry warnings: %q", withErrors)
	}
}
