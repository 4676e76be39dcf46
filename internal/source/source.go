// Package source fetches raw job listings from the supported boards.
// Each adapter speaks one board's API and emits typed listings; nothing
// outside this package sees board-specific payloads.
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/config"
)

// ErrUnavailable wraps any transport or decode failure of a board. The
// driver skips the board and keeps the run going.
var ErrUnavailable = errors.New("source unavailable")

// Listing is a raw posting as one board reported it. Fields the board
// does not provide stay empty; the normalizer fills in sentinels.
type Listing struct {
	Title       string
	Company     string
	Location    string
	URL         string
	ExternalID  string
	PostedAt    string
	Description string
	Skills      []string
}

// Fetcher is one job board.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Listing, error)
}

// defaultKeywords is the AI/ML prefilter applied when the config does
// not override it.
var defaultKeywords = []string{
	"machine learning", "ml engineer", "ml ", " ml",
	"artificial intelligence", "ai engineer", "ai ", " ai",
	"deep learning", "neural network", "nlp", "natural language",
	"computer vision", "data scientist", "data science",
	"tensorflow", "pytorch", "llm", "large language model",
	"generative ai", "gen ai", "mlops", "research scientist",
	"research engineer", "applied scientist", "ml platform",
}

// KeywordFilter drops listings that mention none of the keywords
// anywhere in title or description.
type KeywordFilter struct {
	keywords []string
}

func NewKeywordFilter(keywords []string) *KeywordFilter {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(kw); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &KeywordFilter{keywords: lowered}
}

// Matches reports whether the listing mentions any configured keyword.
func (f *KeywordFilter) Matches(l Listing) bool {
	combined := strings.ToLower(l.Title + " " + l.Description)
	for _, kw := range f.keywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}

// Registry builds the enabled fetchers in declaration order. The order
// fixes the join order downstream, so it must not be reshuffled here.
func Registry(cfg *config.SourcesConfig, enabled []string, logger *zap.Logger) ([]Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := NewClient(cfg.RequestsPerSecond, cfg.Burst, cfg.Timeout, logger)
	filter := NewKeywordFilter(cfg.Keywords)
	maxJobs := cfg.MaxPerSource

	fetchers := make([]Fetcher, 0, len(enabled))
	for _, name := range enabled {
		switch name {
		case "remoteok":
			fetchers = append(fetchers, NewRemoteOK(client, filter, maxJobs, logger))
		case "arbeitnow":
			fetchers = append(fetchers, NewArbeitnow(client, filter, maxJobs, logger))
		case "jobicy":
			fetchers = append(fetchers, NewJobicy(client, filter, maxJobs, logger))
		case "hackernews":
			fetchers = append(fetchers, NewHackerNews(client, filter, maxJobs, logger))
		default:
			return nil, fmt.Errorf("unknown source %q", name)
		}
	}
	return fetchers, nil
}
