package job

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// UnknownLocation is substituted when a source does not report a location.
const UnknownLocation = "Unknown"

// Job is the canonical, deduplicated record for one real-world posting.
// Relevance and Match are zero until scored; valid scores are in [1,10].
type Job struct {
	IdentityKey string     `json:"identity_key"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	URL         string     `json:"url"`
	SourceName  string     `json:"source_name"`
	Sources     []string   `json:"sources"`
	ExternalID  string     `json:"external_id,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	Description string     `json:"description,omitempty"`

	Relevance     int      `json:"relevance_score,omitempty"`
	Match         int      `json:"match_score,omitempty"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
	MissingSkills []string `json:"missing_skills,omitempty"`
	Combined      float64  `json:"combined_score,omitempty"`

	// Degraded is set when any fallback path was used while scoring.
	Degraded bool `json:"degraded,omitempty"`
	// Unscored marks the terminal state when the oracle is down and no
	// heuristic input exists. Unscored jobs never reach the ranking.
	Unscored bool `json:"unscored,omitempty"`
	// SeenBefore is set when the identity existed in the prior-run index.
	SeenBefore bool `json:"seen_before,omitempty"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// FullyScored reports whether both component scores are present.
func (j *Job) FullyScored() bool {
	return j.Relevance >= 1 && j.Match >= 1
}

// AddSource records provenance for the identity, keeping the list sorted
// and unique.
func (j *Job) AddSource(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	for _, s := range j.Sources {
		if s == name {
			return
		}
	}
	j.Sources = append(j.Sources, name)
	sort.Strings(j.Sources)
}

// Completeness counts how many optional fields carry real data. Used by
// the deduplicator to pick the better record on identity collision.
func (j *Job) Completeness() int {
	n := 0
	if j.Location != "" && j.Location != UnknownLocation {
		n++
	}
	if j.PostedAt != nil && !j.PostedAt.IsZero() {
		n++
	}
	if j.Description != "" {
		n++
	}
	if j.URL != "" {
		n++
	}
	return n
}

// IdentityKey derives the deterministic identity for a listing. A stable
// external id is preferred since titles get re-posted with minor edits;
// otherwise the key is normalized title and company, which also lets the
// same posting advertised on two boards collapse into one record.
func IdentityKey(source, externalID, title, company string) string {
	externalID = strings.TrimSpace(externalID)
	if externalID != "" {
		return normalizeToken(source) + ":" + externalID
	}
	return normalizeToken(title) + "|" + normalizeToken(company)
}

// ClampScore forces an oracle score into the valid [1,10] range. Values
// outside the range are a contract violation and must never pass through.
func ClampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// normalizeToken lowercases, strips everything but letters, digits and
// spaces, and collapses runs of whitespace.
func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
