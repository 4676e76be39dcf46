package profile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jobradar/jobradar/internal/config"
)

func TestExtractSkills(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		text   string
		expect []string
	}{
		{
			name:   "plain tokens",
			text:   "Built models with PyTorch and TensorFlow on AWS.",
			expect: []string{"aws", "pytorch", "tensorflow"},
		},
		{
			name:   "symbol-suffixed languages",
			text:   "Ported a C++ service to Go.",
			expect: []string{"c++", "go"},
		},
		{
			name:   "aliases fold to canonical",
			text:   "Deployed sklearn pipelines on k8s.",
			expect: []string{"kubernetes", "scikit-learn"},
		},
		{
			name:   "no partial word matches",
			text:   "We value rigor and rapport.",
			expect: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractSkills(tt.text)
			if !reflect.DeepEqual(got, tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	if got := Canonical("  ML "); got != "machine learning" {
		t.Fatalf("expected machine learning, got %q", got)
	}
	if got := Canonical("Rust"); got != "rust" {
		t.Fatalf("expected rust, got %q", got)
	}
}

func TestLoadMergesConfigAndResume(t *testing.T) {
	t.Parallel()

	resume := filepath.Join(t.TempDir(), "resume.txt")
	if err := os.WriteFile(resume, []byte("Senior engineer, strong in PyTorch and SQL."), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := Load(&config.ProfileConfig{
		ResumeFile: resume,
		Skills:     []string{"Python", "ml"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect := []string{"machine learning", "python", "pytorch", "sql"}
	if got := p.SkillList(); !reflect.DeepEqual(got, expect) {
		t.Fatalf("expected %v, got %v", expect, got)
	}
	if !p.Has("PyTorch") {
		t.Fatal("expected Has to fold case")
	}

	a := p.Analyze()
	if a.ExperienceLevel != "senior" {
		t.Fatalf("expected senior, got %q", a.ExperienceLevel)
	}
	if a.Domain != "AI/ML" {
		t.Fatalf("expected AI/ML domain, got %q", a.Domain)
	}
}

func TestLoadMissingResumeIsNotFatal(t *testing.T) {
	t.Parallel()

	p, err := Load(&config.ProfileConfig{
		ResumeFile: filepath.Join(t.TempDir(), "absent.txt"),
		Skills:     []string{"go"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Empty() {
		t.Fatal("expected configured skills to survive")
	}
}
