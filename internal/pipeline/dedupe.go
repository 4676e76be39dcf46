package pipeline

import (
	"time"

	"github.com/jobradar/jobradar/internal/job"
)

// Dedupe collapses jobs sharing an identity key and folds in what the
// prior runs already know. Output order is the arrival order of each
// key's first occurrence, which keeps the stage deterministic.
func Dedupe(jobs []job.Job, prior map[string]job.Job, now time.Time) []job.Job {
	order := make([]string, 0, len(jobs))
	byKey := make(map[string]job.Job, len(jobs))

	for _, j := range jobs {
		existing, ok := byKey[j.IdentityKey]
		if !ok {
			order = append(order, j.IdentityKey)
			byKey[j.IdentityKey] = j
			continue
		}
		byKey[j.IdentityKey] = merge(existing, j)
	}

	out := make([]job.Job, 0, len(order))
	for _, key := range order {
		j := byKey[key]
		if prev, ok := prior[key]; ok {
			j.SeenBefore = true
			if !prev.FirstSeenAt.IsZero() {
				j.FirstSeenAt = prev.FirstSeenAt
			}
		}
		j.LastSeenAt = now
		out = append(out, j)
	}
	return out
}

// merge resolves a same-run collision: the more complete record wins,
// ties broken by newer posting date, then by arrival. The longer
// description always survives, and provenance is unioned either way.
func merge(first, second job.Job) job.Job {
	winner, loser := first, second

	fc, sc := first.Completeness(), second.Completeness()
	switch {
	case sc > fc:
		winner, loser = second, first
	case sc == fc && newerPostedAt(second, first):
		winner, loser = second, first
	}

	if len(loser.Description) > len(winner.Description) {
		winner.Description = loser.Description
	}
	for _, s := range loser.Sources {
		winner.AddSource(s)
	}
	if winner.PostedAt == nil {
		winner.PostedAt = loser.PostedAt
	}
	if winner.URL == "" {
		winner.URL = loser.URL
	}
	if winner.Location == job.UnknownLocation && loser.Location != job.UnknownLocation {
		winner.Location = loser.Location
	}
	return winner
}

func newerPostedAt(a, b job.Job) bool {
	if a.PostedAt == nil {
		return false
	}
	if b.PostedAt == nil {
		return true
	}
	return a.PostedAt.After(*b.PostedAt)
}
