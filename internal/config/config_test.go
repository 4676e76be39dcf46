package config

import (
	"errors"
	"testing"
)

func valid() *Config {
	c := &Config{
		Sources: &SourcesConfig{Enabled: []string{"remoteok", "arbeitnow"}},
		Scoring: &ScoringConfig{
			RelevanceWeight: 0.4,
			MatchWeight:     0.6,
			MinRelevance:    5,
			MinCombined:     5.0,
		},
	}
	c.ApplyDefaults()
	return c
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	cases := []struct {
		name       string
		rel, match float64
	}{
		{"over", 0.5, 0.6},
		{"under", 0.3, 0.6},
		{"zero", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			c.Scoring.RelevanceWeight = tc.rel
			c.Scoring.MatchWeight = tc.match
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidateAllowsWeightFloatDrift(t *testing.T) {
	c := valid()
	c.Scoring.RelevanceWeight = 0.1
	c.Scoring.MatchWeight = 0.9
	if err := c.Validate(); err != nil {
		t.Fatalf("0.1+0.9 must validate: %v", err)
	}
}

func TestValidateRequiresThresholds(t *testing.T) {
	c := valid()
	c.Scoring.MinRelevance = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing min-relevance")
	}

	c = valid()
	c.Scoring.MinCombined = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for missing min-combined")
	}
}

func TestValidateRequiresSources(t *testing.T) {
	c := valid()
	c.Sources.Enabled = nil
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty sources")
	}

	c = valid()
	c.Sources.Enabled = []string{"remoteok", "RemoteOK"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for duplicate source")
	}
}

func TestValidateGeminiNeedsKeyFile(t *testing.T) {
	c := valid()
	c.Oracle.Provider = "gemini"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for gemini without key file")
	}

	c.Oracle.Gemini = &GeminiConfig{APIKeyFile: "/tmp/key"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnabledSourcesPreservesOrder(t *testing.T) {
	c := valid()
	c.Sources.Enabled = []string{" RemoteOK ", "arbeitnow", "Jobicy"}
	got := c.EnabledSources()
	want := []string{"remoteok", "arbeitnow", "jobicy"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order not preserved: got %v", got)
		}
	}
}
