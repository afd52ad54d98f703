package main

import (
	"reflect"
	"testing"
)

func TestAnalyzeInsufficientData(t *testing.T) {
	for _, ratings := range [][]int{nil, {3}, {3, 4}} {
		profile := AnalyzeConsistency("rev-1", ratings)
		if !profile.IsConsistent {
			t.Fatalf("ratings %v: insufficient data must not be flagged inconsistent", ratings)
		}
		if profile.ConsistencyScore != nil {
			t.Fatalf("ratings %v: expected nil score, got %d", ratings, *profile.ConsistencyScore)
		}
		if profile.TotalReviews != len(ratings) {
			t.Fatalf("ratings %v: TotalReviews = %d", ratings, profile.TotalReviews)
		}
		if profile.AverageRating != 0 || profile.StandardDeviation != 0 {
			t.Fatalf("ratings %v: expected zeroed stats, got %+v", ratings, profile)
		}
	}
}

func TestAnalyzeAlwaysHighIsBoundaryConsistent(t *testing.T) {
	profile := AnalyzeConsistency("rev-1", []int{5, 5, 5, 5, 5})
	if profile.ConsistencyScore == nil || *profile.ConsistencyScore != 70 {
		t.Fatalf("expected score 70, got %+v", profile.ConsistencyScore)
	}
	// 70 is inclusive: exactly at the threshold still counts as consistent.
	if !profile.IsConsistent {
		t.Fatal("score 70 must be consistent")
	}
	if !reflect.DeepEqual(profile.Issues, []string{issueAlwaysHigh}) {
		t.Fatalf("expected always-high issue only, got %v", profile.Issues)
	}
	if profile.AverageRating != 5 || profile.StandardDeviation != 0 {
		t.Fatalf("unexpected stats: %+v", profile)
	}
}

func TestAnalyzeAlwaysLowIsBoundaryConsistent(t *testing.T) {
	profile := AnalyzeConsistency("rev-1", []int{1, 1, 1, 1, 1})
	if profile.ConsistencyScore == nil || *profile.ConsistencyScore != 70 {
		t.Fatalf("expected score 70, got %+v", profile.ConsistencyScore)
	}
	if !profile.IsConsistent {
		t.Fatal("score 70 must be consistent")
	}
	if !reflect.DeepEqual(profile.Issues, []string{issueAlwaysLow}) {
		t.Fatalf("expected always-low issue only, got %v", profile.Issues)
	}
}

func TestAnalyzeExtremeVariance(t *testing.T) {
	profile := AnalyzeConsistency("rev-1", []int{1, 5, 1, 5, 1})
	if profile.ConsistencyScore == nil || *profile.ConsistencyScore != 80 {
		t.Fatalf("expected score 80, got %+v", profile.ConsistencyScore)
	}
	if !reflect.DeepEqual(profile.Issues, []string{issueVariance}) {
		t.Fatalf("expected variance issue only, got %v", profile.Issues)
	}
	if profile.AverageRating != 2.6 {
		t.Fatalf("expected mean 2.6, got %v", profile.AverageRating)
	}
	// Population stddev of [1,5,1,5,1] is sqrt(3.84) = 1.9595..., rounded.
	if profile.StandardDeviation != 1.96 {
		t.Fatalf("expected stddev 1.96, got %v", profile.StandardDeviation)
	}
}

func TestAnalyzeRecentDrift(t *testing.T) {
	profile := AnalyzeConsistency("rev-1", []int{1, 1, 1, 1, 1, 5, 5, 5, 5, 5})
	// Variance (-20) and drift (-15) both trigger: overall mean 3, last-5 mean 5.
	if profile.ConsistencyScore == nil || *profile.ConsistencyScore != 65 {
		t.Fatalf("expected score 65, got %+v", profile.ConsistencyScore)
	}
	if profile.IsConsistent {
		t.Fatal("score 65 must be inconsistent")
	}
	if !reflect.DeepEqual(profile.Issues, []string{issueVariance, issueDrift}) {
		t.Fatalf("issues must keep deduction order, got %v", profile.Issues)
	}
}

func TestAnalyzeHealthyHistory(t *testing.T) {
	profile := AnalyzeConsistency("rev-1", []int{3, 4, 5, 3, 4, 2})
	if profile.ConsistencyScore == nil || *profile.ConsistencyScore != 100 {
		t.Fatalf("expected score 100, got %+v", profile.ConsistencyScore)
	}
	if !profile.IsConsistent || len(profile.Issues) != 0 {
		t.Fatalf("healthy history flagged: %+v", profile)
	}
	if profile.AverageRating != 3.5 {
		t.Fatalf("expected mean 3.5, got %v", profile.AverageRating)
	}
}

func TestAnalyzeIsPure(t *testing.T) {
	ratings := []int{1, 5, 1, 5, 1, 4, 2}
	a := AnalyzeConsistency("rev-1", ratings)
	b := AnalyzeConsistency("rev-1", ratings)
	a.LastAnalyzedAt = b.LastAnalyzedAt
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input produced different profiles:\n%+v\n%+v", a, b)
	}
}
