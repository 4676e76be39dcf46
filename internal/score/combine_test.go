package score

import (
	"testing"
	"time"

	"github.com/jobradar/jobradar/internal/job"
)

func TestCombineWorkedExample(t *testing.T) {
	t.Parallel()

	jobs := []job.Job{{IdentityKey: "a", Relevance: 8, Match: 6}}
	Combine(jobs, 0.4, 0.6)

	if got := jobs[0].Combined; got != 6.8 {
		t.Fatalf("expected combined 6.8, got %v", got)
	}

	// With MinCombined 7.0 the job is rejected, with 6.5 it survives.
	if kept := Filter(jobs, 1, 7.0); len(kept) != 0 {
		t.Fatalf("expected rejection at threshold 7.0, kept %d", len(kept))
	}
	if kept := Filter(jobs, 1, 6.5); len(kept) != 1 {
		t.Fatalf("expected survival at threshold 6.5, kept %d", len(kept))
	}
}

func TestCombineSkipsUnscored(t *testing.T) {
	t.Parallel()

	jobs := []job.Job{
		{IdentityKey: "scored", Relevance: 8, Match: 8},
		{IdentityKey: "half", Relevance: 8},
		{IdentityKey: "none"},
	}
	Combine(jobs, 0.5, 0.5)

	if jobs[0].Combined != 8.0 {
		t.Fatalf("expected 8.0, got %v", jobs[0].Combined)
	}
	if jobs[1].Combined != 0 || jobs[2].Combined != 0 {
		t.Fatal("unscored jobs must not receive a combined score")
	}
}

func TestFilterGatesAreIndependent(t *testing.T) {
	t.Parallel()

	jobs := []job.Job{
		// High combined cannot buy back low relevance.
		{IdentityKey: "low-relevance", Relevance: 4, Match: 10},
		// High relevance cannot buy back low combined.
		{IdentityKey: "low-combined", Relevance: 9, Match: 1},
		{IdentityKey: "passes", Relevance: 8, Match: 8},
	}
	Combine(jobs, 0.5, 0.5)

	kept := Filter(jobs, 7, 6.0)
	if len(kept) != 1 || kept[0].IdentityKey != "passes" {
		t.Fatalf("expected only the passing job, got %v", kept)
	}
}

func TestRankOrdering(t *testing.T) {
	t.Parallel()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	jobs := []job.Job{
		{IdentityKey: "d", Combined: 7.0, PostedAt: nil},
		{IdentityKey: "b", Combined: 7.0, PostedAt: &older},
		{IdentityKey: "a", Combined: 7.0, PostedAt: &newer},
		{IdentityKey: "c", Combined: 9.0},
		{IdentityKey: "e", Combined: 7.0, PostedAt: nil},
	}
	Rank(jobs)

	want := []string{"c", "a", "b", "d", "e"}
	for i, key := range want {
		if jobs[i].IdentityKey != key {
			t.Fatalf("position %d: expected %s, got %s", i, key, jobs[i].IdentityKey)
		}
	}
}

func TestRankIsDeterministic(t *testing.T) {
	t.Parallel()

	build := func() []job.Job {
		return []job.Job{
			{IdentityKey: "x", Combined: 6.8},
			{IdentityKey: "y", Combined: 7.2},
			{IdentityKey: "z", Combined: 6.8},
		}
	}

	first := build()
	Rank(first)
	for i := 0; i < 5; i++ {
		again := build()
		Rank(again)
		for n := range first {
			if first[n].IdentityKey != again[n].IdentityKey {
				t.Fatalf("run %d: order diverged at %d", i, n)
			}
		}
	}
}
