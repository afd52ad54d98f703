package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// SweepResult tracks separate counters for each outcome of a sweep.
type SweepResult struct {
	Scanned           int
	Processed         int
	Degraded          int // processed via fallback, attempt logged as failed
	Failed            int
	ProfilesRefreshed int
	NewlyFlagged      []string
	RunID             string
	Errors            []string
}

// RunSweep processes all unprocessed endorsements through the full pipeline,
// then recomputes consistency profiles for the affected reviewers. It has no
// Slack dependency beyond alerting, so it can be called from the scheduler
// or invoked directly.
func RunSweep(ctx context.Context, cfg Config, db *sql.DB, api *slack.Client, orch *Orchestrator) (SweepResult, error) {
	var result SweepResult

	pending, err := ListUnprocessedEndorsements(db, cfg.SweepBatchLimit)
	if err != nil {
		return result, fmt.Errorf("listing unprocessed endorsements: %w", err)
	}
	result.Scanned = len(pending)
	if len(pending) == 0 {
		return result, nil
	}

	ids := make([]int64, len(pending))
	for i, e := range pending {
		ids[i] = e.ID
	}
	batch, runID, err := orch.ProcessBatchByIDs(ctx, ids)
	if err != nil {
		return result, err
	}
	result.RunID = runID

	reviewers := make(map[string]bool)
	for _, item := range batch {
		if item.Err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("endorsement %d: %v", item.Endorsement.ID, item.Err))
			continue
		}
		result.Processed++
		if item.Entry.Status == StatusFailed {
			result.Degraded++
		}
		reviewers[item.Endorsement.ReviewerID] = true
	}

	// Refresh profiles in a stable order so two sweeps over the same data
	// behave identically.
	var reviewerIDs []string
	for id := range reviewers {
		reviewerIDs = append(reviewerIDs, id)
	}
	sort.Strings(reviewerIDs)

	for _, reviewerID := range reviewerIDs {
		previous, prevErr := GetConsistencyProfile(db, reviewerID)

		history, err := ListEndorsementsByReviewer(db, reviewerID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reviewer %s history: %v", reviewerID, err))
			continue
		}
		profile, err := orch.AnalyzeReviewerConsistency(reviewerID, history)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reviewer %s profile: %v", reviewerID, err))
			continue
		}
		result.ProfilesRefreshed++

		wasConsistent := prevErr != nil || previous.IsConsistent
		if wasConsistent && !profile.IsConsistent {
			result.NewlyFlagged = append(result.NewlyFlagged, reviewerID)
			NotifyInconsistentReviewer(api, cfg, profile)
		}
	}

	return result, nil
}

// FormatSweepSummary returns a human-readable summary of a SweepResult.
func FormatSweepSummary(result SweepResult) string {
	if result.Scanned == 0 {
		return "No unprocessed endorsements."
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d processed", result.Processed))
	if result.Degraded > 0 {
		parts = append(parts, fmt.Sprintf("%d via fallback", result.Degraded))
	}
	if result.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", result.Failed))
	}
	parts = append(parts, fmt.Sprintf("%d profiles refreshed", result.ProfilesRefreshed))
	if len(result.NewlyFlagged) > 0 {
		parts = append(parts, fmt.Sprintf("%d reviewers newly flagged", len(result.NewlyFlagged)))
	}

	msg := fmt.Sprintf("Sweep of %d endorsements: %s", result.Scanned, strings.Join(parts, ", "))
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// StartSweepScheduler starts a cron-based scheduler that periodically runs
// a sweep and posts a summary to the alert channel.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "0 2 * * *" (daily 2am), "*/30 * * * *" (every 30 minutes).
func StartSweepScheduler(cfg Config, db *sql.DB, api *slack.Client, orch *Orchestrator) {
	schedule := strings.TrimSpace(cfg.SweepSchedule)
	if schedule == "" {
		log.Println("Sweep disabled (sweep_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid sweep_schedule '%s': %v, sweep disabled", schedule, err)
		return
	}

	log.Printf("Sweep scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, sweepErr := RunSweep(context.Background(), cfg, db, api, orch)
			summary := FormatSweepSummary(result)
			if sweepErr != nil {
				log.Printf("Sweep error: %v", sweepErr)
			}
			log.Printf("Sweep complete: %s", summary)

			if api != nil && cfg.AlertChannelID != "" && result.Scanned > 0 {
				_, _, postErr := api.PostMessage(cfg.AlertChannelID, slack.MsgOptionText(
					fmt.Sprintf("Sweep complete: %s", summary), false))
				if postErr != nil {
					log.Printf("Sweep post error: %v", postErr)
				}
			}
		}
	}()
}
