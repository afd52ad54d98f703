package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
)

// NotifyInconsistentReviewer posts a moderation alert when a reviewer's
// profile flips to inconsistent. Alerting is best-effort: failures are
// logged and never propagate into the sweep.
func NotifyInconsistentReviewer(api *slack.Client, cfg Config, profile ConsistencyProfile) {
	if api == nil || cfg.AlertChannelID == "" {
		return
	}

	score := "n/a"
	if profile.ConsistencyScore != nil {
		score = fmt.Sprintf("%d/100", *profile.ConsistencyScore)
	}

	var issueLines []string
	for _, issue := range profile.Issues {
		issueLines = append(issueLines, "• "+issue)
	}

	msg := fmt.Sprintf(
		"Reviewer `%s` flagged for suspect rating patterns (score %s, %d reviews, avg %.2f):\n%s",
		profile.ReviewerID, score, profile.TotalReviews, profile.AverageRating,
		strings.Join(issueLines, "\n"),
	)

	_, _, err := api.PostMessage(cfg.AlertChannelID, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("Error posting reviewer alert for %s: %v", profile.ReviewerID, err)
	} else {
		log.Printf("Posted reviewer alert for %s", profile.ReviewerID)
	}
}
