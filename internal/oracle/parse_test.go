package oracle

import (
	"errors"
	"testing"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"plain json", `{"score": 8, "reason": "core ML role"}`, 8},
		{"code fence", "```json\n{\"score\": 9}\n```", 9},
		{"score as string", `{"score": "7"}`, 7},
		{"surrounding prose", `Sure! Here is my assessment: {"score": 6, "is_ml_role": true} Hope it helps.`, 6},
		{"score field in text", `The result is "score": 5 overall.`, 5},
		{"bare number", "I would rate this job 7 out of 10.", 7},
		{"out of range passes through", `{"score": 15}`, 15},
		{"zero passes through", "0", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseScore(tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestParseScoreUnparsable(t *testing.T) {
	for _, raw := range []string{"", "no numbers here", "I cannot rate this."} {
		_, err := ParseScore(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if !errors.Is(err, ErrUnparsable) {
			t.Fatalf("expected ErrUnparsable, got %v", err)
		}
	}
}

func TestParseMatch(t *testing.T) {
	raw := "```json\n" +
		`{"match_score": 7, "matching_skills": ["python", "pytorch"], "missing_skills": ["kubernetes"], "match_summary": "good"}` +
		"\n```"

	got, err := ParseMatch(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Score != 7 {
		t.Fatalf("expected score 7, got %d", got.Score)
	}
	if len(got.MatchedSkills) != 2 || got.MatchedSkills[0] != "python" {
		t.Fatalf("unexpected matched skills: %v", got.MatchedSkills)
	}
	if len(got.MissingSkills) != 1 || got.MissingSkills[0] != "kubernetes" {
		t.Fatalf("unexpected missing skills: %v", got.MissingSkills)
	}
}

func TestParseMatchFallsBackToScoreOnly(t *testing.T) {
	got, err := ParseMatch("match score is 6")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Score != 6 {
		t.Fatalf("expected 6, got %d", got.Score)
	}
	if got.MatchedSkills != nil || got.MissingSkills != nil {
		t.Fatalf("expected empty skill lists, got %v / %v", got.MatchedSkills, got.MissingSkills)
	}
}
