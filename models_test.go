package main

import "testing"

func TestProcessingTypeValid(t *testing.T) {
	for _, pt := range []ProcessingType{ProcessingAnonymization, ProcessingSentimentNormalization, ProcessingFullPipeline} {
		if !pt.Valid() {
			t.Errorf("%s must be valid", pt)
		}
	}
	for _, pt := range []ProcessingType{"", "anon", "ANONYMIZATION", "pipeline"} {
		if pt.Valid() {
			t.Errorf("%q must be invalid", pt)
		}
	}
}
