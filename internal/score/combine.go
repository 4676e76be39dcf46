package score

import (
	"sort"

	"github.com/jobradar/jobradar/internal/job"
)

// Combine sets the weighted combined score on every fully scored job.
// Unscored jobs are left untouched. Weight validation happens at config
// load, before any scoring work starts.
func Combine(jobs []job.Job, relevanceWeight, matchWeight float64) {
	for i := range jobs {
		if !jobs[i].FullyScored() {
			continue
		}
		jobs[i].Combined = float64(jobs[i].Relevance)*relevanceWeight +
			float64(jobs[i].Match)*matchWeight
	}
}

// Filter keeps jobs passing both threshold gates. The gates are
// independent: a high combined score never compensates for relevance
// below the floor. Unscored jobs never pass.
func Filter(jobs []job.Job, minRelevance int, minCombined float64) []job.Job {
	out := make([]job.Job, 0, len(jobs))
	for _, j := range jobs {
		if !j.FullyScored() {
			continue
		}
		if j.Relevance < minRelevance {
			continue
		}
		if j.Combined < minCombined {
			continue
		}
		out = append(out, j)
	}
	return out
}

// Rank orders jobs by combined score descending, then freshness
// descending with unknown posting dates last, then identity key. The
// sort is stable so equal jobs keep their arrival order.
func Rank(jobs []job.Job) {
	sort.SliceStable(jobs, func(a, b int) bool {
		ja, jb := &jobs[a], &jobs[b]
		if ja.Combined != jb.Combined {
			return ja.Combined > jb.Combined
		}
		switch {
		case ja.PostedAt == nil && jb.PostedAt == nil:
		case ja.PostedAt == nil:
			return false
		case jb.PostedAt == nil:
			return true
		case !ja.PostedAt.Equal(*jb.PostedAt):
			return ja.PostedAt.After(*jb.PostedAt)
		}
		return ja.IdentityKey < jb.IdentityKey
	})
}
