// Package pipeline turns raw listings into scored, ranked, persisted
// jobs: normalize, dedupe, score, combine, filter, rank.
package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/source"
)

const descriptionLimit = 1000

// ErrMalformed marks a listing too broken to keep: the driver logs and
// counts it, the run continues.
var ErrMalformed = errors.New("malformed listing")

// postedAtLayouts are tried in order against raw date strings.
var postedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize maps one raw listing onto the canonical record. Both title
// and company are required, plus an external id or a URL to make the
// record addressable.
func Normalize(l source.Listing, sourceName string, now time.Time) (job.Job, error) {
	title := strings.TrimSpace(l.Title)
	company := strings.TrimSpace(l.Company)
	externalID := strings.TrimSpace(l.ExternalID)
	url := strings.TrimSpace(l.URL)

	if title == "" || company == "" {
		return job.Job{}, fmt.Errorf("%w: missing title or company", ErrMalformed)
	}
	if externalID == "" && url == "" {
		return job.Job{}, fmt.Errorf("%w: missing both external id and url", ErrMalformed)
	}

	location := strings.TrimSpace(l.Location)
	if location == "" {
		location = job.UnknownLocation
	}

	description := cleanDescription(l.Description)
	if len(l.Skills) > 0 {
		skills := "Skills: " + strings.Join(l.Skills, ", ")
		if description == "" {
			description = skills
		} else {
			description += "\n" + skills
		}
	}

	j := job.Job{
		IdentityKey: job.IdentityKey(sourceName, externalID, title, company),
		Title:       title,
		Company:     company,
		Location:    location,
		URL:         url,
		SourceName:  sourceName,
		ExternalID:  externalID,
		PostedAt:    parsePostedAt(l.PostedAt),
		Description: description,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
	j.AddSource(sourceName)
	return j, nil
}

// cleanDescription strips markup, collapses whitespace and bounds the
// length. Board descriptions arrive as HTML more often than not.
func cleanDescription(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + raw + "</div>"))
		if err == nil {
			raw = doc.Text()
		}
	}

	raw = strings.Join(strings.Fields(raw), " ")

	runes := []rune(raw)
	if len(runes) > descriptionLimit {
		raw = string(runes[:descriptionLimit])
	}
	return raw
}

// parsePostedAt tries the known layouts and unix seconds. Anything
// unparsable is an unknown date, never an error.
func parsePostedAt(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		t := time.Unix(secs, 0).UTC()
		return &t
	}

	return nil
}
