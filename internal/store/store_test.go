package store

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleJob(key string, combined float64, seen time.Time) job.Job {
	posted := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return job.Job{
		IdentityKey:   key,
		Title:         "ML Engineer",
		Company:       "Acme",
		Location:      "Remote",
		URL:           "https://x/" + key,
		SourceName:    "remoteok",
		Sources:       []string{"remoteok"},
		ExternalID:    key,
		PostedAt:      &posted,
		Description:   "Train models.",
		Relevance:     8,
		Match:         6,
		MatchedSkills: []string{"python"},
		MissingSkills: []string{"spark"},
		Combined:      combined,
		FirstSeenAt:   seen,
		LastSeenAt:    seen,
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	report := &pipeline.Report{
		RunID:      "run-1",
		StartedAt:  now,
		FinishedAt: now.Add(time.Minute),
		Fetched:    2,
		Deduped:    1,
		Scored:     1,
		Retained:   1,
	}
	if err := s.SaveResults(ctx, []job.Job{sampleJob("remoteok:1", 7.2, now)}, report); err != nil {
		t.Fatalf("save: %v", err)
	}

	jobs, err := s.Jobs(ctx, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	got := jobs[0]
	if got.Relevance != 8 || got.Match != 6 || got.Combined != 7.2 {
		t.Fatalf("scores did not round-trip: %+v", got)
	}
	if len(got.Sources) != 1 || got.Sources[0] != "remoteok" {
		t.Fatalf("sources did not round-trip: %v", got.Sources)
	}
	if got.PostedAt == nil || got.PostedAt.Day() != 1 {
		t.Fatalf("posted at did not round-trip: %v", got.PostedAt)
	}
	if len(got.MatchedSkills) != 1 || got.MatchedSkills[0] != "python" {
		t.Fatalf("skills did not round-trip: %v", got.MatchedSkills)
	}
}

func TestUpsertPreservesFirstSeenAt(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	firstRun := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	secondRun := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveResults(ctx, []job.Job{sampleJob("remoteok:1", 7.0, firstRun)}, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Second run sees the same identity with fresh timestamps.
	updated := sampleJob("remoteok:1", 8.0, secondRun)
	if err := s.SaveResults(ctx, []job.Job{updated}, nil); err != nil {
		t.Fatalf("second save: %v", err)
	}

	jobs, err := s.Jobs(ctx, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := jobs[0]
	if !got.FirstSeenAt.Equal(firstRun) {
		t.Fatalf("expected first_seen_at preserved at %v, got %v", firstRun, got.FirstSeenAt)
	}
	if !got.LastSeenAt.Equal(secondRun) {
		t.Fatalf("expected last_seen_at advanced to %v, got %v", secondRun, got.LastSeenAt)
	}
	if got.Combined != 8.0 {
		t.Fatalf("expected refreshed combined score, got %v", got.Combined)
	}
}

func TestIndexReturnsPriorIdentities(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	seen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveResults(ctx, []job.Job{
		sampleJob("remoteok:1", 7.0, seen),
		sampleJob("jobicy:9", 6.0, seen),
	}, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	index, err := s.Index(ctx)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(index))
	}
	if !index["remoteok:1"].FirstSeenAt.Equal(seen) {
		t.Fatalf("expected first seen %v, got %v", seen, index["remoteok:1"].FirstSeenAt)
	}
}

func TestSaveResultsRollsBackAsOneTransaction(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	report := &pipeline.Report{RunID: "run-1", StartedAt: now, FinishedAt: now}
	if err := s.SaveResults(ctx, []job.Job{sampleJob("remoteok:1", 7.0, now)}, report); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Reusing the run id violates the primary key after the job upsert,
	// so the whole write must roll back.
	err := s.SaveResults(ctx, []job.Job{sampleJob("remoteok:1", 9.9, now)}, report)
	if err == nil {
		t.Fatal("expected duplicate run id to fail")
	}

	jobs, lerr := s.Jobs(ctx, 0)
	if lerr != nil {
		t.Fatalf("load: %v", lerr)
	}
	if jobs[0].Combined != 7.0 {
		t.Fatalf("expected rollback to keep combined 7.0, got %v", jobs[0].Combined)
	}
}

func TestJobsOrderingAndLimit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	if err := s.SaveResults(ctx, []job.Job{
		sampleJob("a", 6.0, now),
		sampleJob("b", 9.0, now),
		sampleJob("c", 7.5, now),
	}, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	jobs, err := s.Jobs(ctx, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(jobs) != 2 || jobs[0].IdentityKey != "b" || jobs[1].IdentityKey != "c" {
		t.Fatalf("unexpected order: %+v", jobs)
	}
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	if err := s.SaveResults(ctx, []job.Job{sampleJob("remoteok:1", 7.2, now)}, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(ctx, &buf, 0); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 record, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "identity_key,") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "ML Engineer") || !strings.Contains(lines[1], "7.20") {
		t.Fatalf("unexpected record %q", lines[1])
	}
}
