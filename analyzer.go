package main

import (
	"math"
	"time"
)

const (
	consistentScoreThreshold = 70
	extremeVarianceThreshold = 1.5
	recentDriftThreshold     = 1.5
)

const (
	issueAlwaysHigh = "Always gives high ratings (4-5 stars)"
	issueAlwaysLow  = "Always gives low ratings (1-2 stars)"
	issueVariance   = "High variance in ratings (inconsistent scoring)"
	issueDrift      = "Recent ratings significantly different from historical average"
)

// AnalyzeConsistency computes the fairness profile for a reviewer from
// their rating history. Ratings must be sorted chronologically ascending by
// the caller (created_at, then insertion id as the tie-break). Pure: same
// values and order always produce the same deductions.
func AnalyzeConsistency(reviewerID string, ratings []int) ConsistencyProfile {
	profile := ConsistencyProfile{
		ReviewerID:     reviewerID,
		TotalReviews:   len(ratings),
		LastAnalyzedAt: time.Now(),
	}

	// Fewer than 3 ratings is insufficient data, not inconsistency.
	if len(ratings) < 3 {
		profile.IsConsistent = true
		return profile
	}

	mean := meanOf(ratings)
	stddev := populationStddev(ratings, mean)

	score := 100
	var issues []string

	allHigh, allLow := true, true
	for _, r := range ratings {
		if r < 4 {
			allHigh = false
		}
		if r > 2 {
			allLow = false
		}
	}
	if allHigh {
		score -= 30
		issues = append(issues, issueAlwaysHigh)
	}
	if allLow {
		score -= 30
		issues = append(issues, issueAlwaysLow)
	}

	if stddev > extremeVarianceThreshold {
		score -= 20
		issues = append(issues, issueVariance)
	}

	recent := ratings
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	if len(recent) >= 3 {
		recentMean := meanOf(recent)
		if math.Abs(recentMean-mean) > recentDriftThreshold {
			score -= 15
			issues = append(issues, issueDrift)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	profile.AverageRating = round2(mean)
	profile.StandardDeviation = round2(stddev)
	profile.ConsistencyScore = &score
	profile.IsConsistent = score >= consistentScoreThreshold
	profile.Issues = issues
	return profile
}

func meanOf(ratings []int) float64 {
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

func populationStddev(ratings []int, mean float64) float64 {
	var sumSq float64
	for _, r := range ratings {
		d := float64(r) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(ratings)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
