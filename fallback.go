package main

import (
	"regexp"
	"strings"
)

// Deterministic local anonymization, used when the remote capability is
// unavailable. Pattern-based on purpose: it trades completeness for
// determinism and availability, and re-applying it to its own output is a
// no-op.
var (
	// "Firstname Lastname" style two-word capitalized sequences.
	namePairPattern = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
	// Gendered pronouns, whole-word, any case.
	pronounPattern = regexp.MustCompile(`(?i)\b(he|him|his|she|her|hers)\b`)
	// Age descriptors stripped outright.
	ageWordPattern = regexp.MustCompile(`(?i)\b(young|old|senior|junior|experienced|newbie|veteran)\b`)
	// Simple location phrases: "from City" / "in City, City" / "at City".
	locationPattern   = regexp.MustCompile(`\b(from|in|at) [A-Z][a-z]+(, [A-Z][a-z]+)?`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

func fallbackAnonymize(text string) string {
	out := namePairPattern.ReplaceAllString(text, "the candidate")

	out = pronounPattern.ReplaceAllStringFunc(out, func(m string) string {
		switch strings.ToLower(m) {
		case "his", "her", "hers":
			return "their"
		default:
			return "they"
		}
	})

	out = ageWordPattern.ReplaceAllString(out, "")
	out = locationPattern.ReplaceAllString(out, "")

	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
