package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/source"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	t.Parallel()

	l := source.Listing{
		Title:       "  ML Engineer ",
		Company:     "Acme",
		URL:         "https://x/1",
		ExternalID:  "1",
		PostedAt:    "2026-08-01T10:00:00Z",
		Description: "<p>Train <b>models</b>.</p>\n\n<p>Ship them.</p>",
		Skills:      []string{"python", "pytorch"},
	}

	j, err := Normalize(l, "remoteok", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if j.IdentityKey != "remoteok:1" {
		t.Fatalf("unexpected identity key %q", j.IdentityKey)
	}
	if j.Title != "ML Engineer" {
		t.Fatalf("expected trimmed title, got %q", j.Title)
	}
	if j.Location != job.UnknownLocation {
		t.Fatalf("expected unknown-location sentinel, got %q", j.Location)
	}
	if j.PostedAt == nil || !j.PostedAt.Equal(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected posted at %v", j.PostedAt)
	}
	if strings.Contains(j.Description, "<") {
		t.Fatalf("expected html stripped, got %q", j.Description)
	}
	if !strings.Contains(j.Description, "Skills: python, pytorch") {
		t.Fatalf("expected skills folded into description, got %q", j.Description)
	}
	if !j.FirstSeenAt.Equal(testNow) || !j.LastSeenAt.Equal(testNow) {
		t.Fatal("expected seen timestamps set to now")
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		listing source.Listing
	}{
		{"no title", source.Listing{Company: "Acme", URL: "https://x"}},
		{"no company", source.Listing{Title: "ML Engineer", URL: "https://x"}},
		{"no url and no id", source.Listing{Title: "ML Engineer", Company: "Acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Normalize(tt.listing, "remoteok", testNow); !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParsePostedAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		expect *time.Time
	}{
		{"rfc3339", "2026-08-01T10:00:00Z", timePtr(2026, 8, 1, 10, 0, 0)},
		{"date only", "2026-08-01", timePtr(2026, 8, 1, 0, 0, 0)},
		{"datetime", "2026-08-01 10:30:00", timePtr(2026, 8, 1, 10, 30, 0)},
		{"unix seconds", "1756600000", func() *time.Time {
			t := time.Unix(1756600000, 0).UTC()
			return &t
		}()},
		{"garbage", "yesterday-ish", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := parsePostedAt(tt.raw)
			switch {
			case tt.expect == nil && got != nil:
				t.Fatalf("expected nil, got %v", got)
			case tt.expect != nil && (got == nil || !got.Equal(*tt.expect)):
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func timePtr(y int, mo time.Month, d, h, mi, s int) *time.Time {
	t := time.Date(y, mo, d, h, mi, s, 0, time.UTC)
	return &t
}

func TestCleanDescriptionTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 2*descriptionLimit)
	if got := cleanDescription(long); len([]rune(got)) != descriptionLimit {
		t.Fatalf("expected truncation to %d runes, got %d", descriptionLimit, len([]rune(got)))
	}
}
