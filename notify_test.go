package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/slack-go/slack"
)

func TestNotifyInconsistentReviewerPosts(t *testing.T) {
	var posted string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		posted = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1.0"}`))
	}))
	defer server.Close()

	api := slack.New("xoxb-test", slack.OptionAPIURL(server.URL+"/"))
	score := 45
	NotifyInconsistentReviewer(api, Config{AlertChannelID: "C123"}, ConsistencyProfile{
		ReviewerID:       "rev-9",
		TotalReviews:     10,
		AverageRating:    3.0,
		ConsistencyScore: &score,
		Issues:           []string{issueVariance, issueDrift},
	})

	if !strings.Contains(posted, "rev-9") || !strings.Contains(posted, "45%2F100") && !strings.Contains(posted, "45/100") {
		t.Fatalf("alert body missing reviewer details: %q", posted)
	}
}

func TestNotifyInconsistentReviewerNoopWithoutChannel(t *testing.T) {
	// Must not panic or reach the network with no client or channel set.
	NotifyInconsistentReviewer(nil, Config{}, ConsistencyProfile{ReviewerID: "rev-1"})

	api := slack.New("xoxb-test")
	NotifyInconsistentReviewer(api, Config{}, ConsistencyProfile{ReviewerID: "rev-1"})
}
