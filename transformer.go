package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const anonymizeInstruction = `You rewrite peer endorsement text to remove identifying and biased language.
Rules:
- Replace personal names with generic role terms (e.g. "the candidate", "the engineer").
- Replace gendered pronouns with neutral ones (they/them/their).
- Remove racial, ethnic, cultural, age and location identifiers that are not relevant to the work being described.
- Preserve all technical content and keep a professional tone.

Respond with the rewritten text only (no preamble, no markdown).`

const normalizeInstruction = `You rewrite peer endorsement text into a constructive, objective register.
Rules:
- Remove excessive emotional language, whether overly positive or overly negative.
- Standardize the tone to constructive and objective.
- Preserve every specific technical claim unchanged.

Respond with the rewritten text only (no preamble, no markdown).`

// StageReport captures what each pipeline stage actually did for one
// endorsement, including the intermediate texts for the audit log and any
// remote errors that were absorbed by a fallback.
type StageReport struct {
	AnonymizeOutcome StageOutcome
	NormalizeOutcome StageOutcome
	AnonymizedText   string
	NormalizedText   string
	RemoteErrors     []string
}

func (r StageReport) FallbackUsed() bool {
	return r.AnonymizeOutcome == OutcomeFallback || r.NormalizeOutcome == OutcomeFallback
}

// Transformer runs the two bias-reduction stages, remote-first with
// deterministic local fallbacks. It holds no mutable state and is safe for
// concurrent use.
type Transformer struct {
	capability TextCapability
	timeout    time.Duration
	retries    int
}

func NewTransformer(capability TextCapability, timeout time.Duration, retries int) *Transformer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 1 {
		retries = 3
	}
	return &Transformer{capability: capability, timeout: timeout, retries: retries}
}

// transform drives the remote capability with a per-attempt timeout and a
// bounded number of attempts. Only transient failures are retried; a fatal
// failure returns immediately.
func (t *Transformer) transform(ctx context.Context, text, instruction string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= t.retries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		out, err := t.capability.Transform(callCtx, text, instruction)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isTransient(err) {
			return "", err
		}
		log.Printf("llm transform transient attempt=%d/%d err=%v", attempt, t.retries, err)
	}
	return "", lastErr
}

// Anonymize removes identifying and biased language from text. Empty or
// whitespace-only input is returned unchanged. On unrecoverable remote
// failure the deterministic local substitution is applied instead; the
// remote error is returned for audit purposes but the call still succeeds.
func (t *Transformer) Anonymize(ctx context.Context, text string) (string, StageOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return text, OutcomeSkipped, nil
	}

	out, err := t.transform(ctx, text, anonymizeInstruction)
	if err != nil {
		log.Printf("transform anonymize fallback err=%v", err)
		return fallbackAnonymize(text), OutcomeFallback, err
	}
	return out, OutcomeRemote, nil
}

// NormalizeSentiment rewrites text to an objective register. Unlike
// Anonymize, its fallback is the identity: on remote failure the input is
// returned unchanged. The asymmetry mirrors the anonymization stage being
// the one with a usable local approximation.
func (t *Transformer) NormalizeSentiment(ctx context.Context, text string) (string, StageOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return text, OutcomeSkipped, nil
	}

	out, err := t.transform(ctx, text, normalizeInstruction)
	if err != nil {
		log.Printf("transform normalize fallback err=%v", err)
		return text, OutcomeFallback, err
	}
	return out, OutcomeRemote, nil
}

// ProcessEndorsement runs anonymize then normalize on the endorsement text;
// normalization always consumes the anonymized output, never the raw
// original. BiasReductionApplied and its timestamp are set whether the
// stages ran remotely or fell back. Transformation failures never surface
// here; the only error is a contract violation.
func (t *Transformer) ProcessEndorsement(ctx context.Context, e *Endorsement) (*Endorsement, StageReport, error) {
	if e == nil {
		return nil, StageReport{}, &ValidationError{Field: "endorsement", Reason: "must not be nil"}
	}

	report := StageReport{AnonymizeOutcome: OutcomeSkipped, NormalizeOutcome: OutcomeSkipped}

	anonymized, outcome, remoteErr := t.Anonymize(ctx, e.Text)
	report.AnonymizeOutcome = outcome
	report.AnonymizedText = anonymized
	if remoteErr != nil {
		report.RemoteErrors = append(report.RemoteErrors, fmt.Sprintf("anonymization fallback: %v", remoteErr))
	}

	normalized, outcome, remoteErr := t.NormalizeSentiment(ctx, anonymized)
	report.NormalizeOutcome = outcome
	report.NormalizedText = normalized
	if remoteErr != nil {
		report.RemoteErrors = append(report.RemoteErrors, fmt.Sprintf("sentiment normalization fallback: %v", remoteErr))
	}

	result := *e
	result.Text = normalized
	result.BiasReductionApplied = true
	result.BiasReductionAt = time.Now()
	return &result, report, nil
}
