package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	hackernewsURL   = "https://hacker-news.firebaseio.com/v0"
	whoIsHiringUser = "whoishiring"
	maxThreadScan   = 10
	maxComments     = 200
)

// HackerNews walks the latest "Who is hiring?" thread through the
// Firebase API. Each top-level comment is one posting in the loose
// "Company | Position | Location | ..." convention.
type HackerNews struct {
	client  *Client
	filter  *KeywordFilter
	maxJobs int
	logger  *zap.Logger
	apiURL  string
}

func NewHackerNews(client *Client, filter *KeywordFilter, maxJobs int, logger *zap.Logger) *HackerNews {
	return &HackerNews{
		client:  client,
		filter:  filter,
		maxJobs: maxJobs,
		logger:  logger.Named("hackernews"),
		apiURL:  hackernewsURL,
	}
}

func (h *HackerNews) Name() string { return "hackernews" }

type hnUser struct {
	Submitted []int64 `json:"submitted"`
}

type hnItem struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Kids  []int64 `json:"kids"`
}

func (h *HackerNews) Fetch(ctx context.Context) ([]Listing, error) {
	thread, err := h.findHiringThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("hackernews: %w", err)
	}

	kids := thread.Kids
	if len(kids) > maxComments {
		kids = kids[:maxComments]
	}
	h.logger.Info("walking hiring thread",
		zap.String("title", thread.Title),
		zap.Int("comments", len(kids)),
	)

	listings := make([]Listing, 0, h.maxJobs)
	for _, id := range kids {
		if len(listings) >= h.maxJobs {
			break
		}

		var comment hnItem
		if err := h.client.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.apiURL, id), &comment); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("hackernews: %w", ctx.Err())
			}
			continue
		}
		if comment.Text == "" {
			continue
		}

		listing := parseHiringComment(comment.Text, id)
		if !h.filter.Matches(listing) {
			continue
		}
		listings = append(listings, listing)
	}

	h.logger.Info("fetched listings", zap.Int("count", len(listings)))
	return listings, nil
}

func (h *HackerNews) findHiringThread(ctx context.Context) (*hnItem, error) {
	var user hnUser
	if err := h.client.GetJSON(ctx, fmt.Sprintf("%s/user/%s.json", h.apiURL, whoIsHiringUser), &user); err != nil {
		return nil, err
	}

	scan := user.Submitted
	if len(scan) > maxThreadScan {
		scan = scan[:maxThreadScan]
	}

	for _, id := range scan {
		var item hnItem
		if err := h.client.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.apiURL, id), &item); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if strings.Contains(strings.ToLower(item.Title), "who is hiring") {
			return &item, nil
		}
	}
	return nil, fmt.Errorf("%w: no hiring thread in recent submissions", ErrUnavailable)
}

// parseHiringComment extracts a listing from the comment's HTML. The
// first line usually carries the pipe-separated header.
func parseHiringComment(htmlText string, id int64) Listing {
	text := stripCommentHTML(htmlText)

	lines := strings.Split(strings.TrimSpace(text), "\n")
	firstLine := text
	if len(lines) > 0 {
		firstLine = lines[0]
	}

	parts := strings.Split(firstLine, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	listing := Listing{
		Company:     "Unknown",
		Title:       "Unknown Position",
		URL:         fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id),
		ExternalID:  fmt.Sprintf("%d", id),
		Description: truncateRunes(text, 1000),
	}
	if len(parts) > 0 && parts[0] != "" {
		listing.Company = truncateRunes(parts[0], 100)
	}
	if len(parts) > 1 && parts[1] != "" {
		listing.Title = truncateRunes(parts[1], 200)
	}
	if len(parts) > 2 && parts[2] != "" {
		listing.Location = parts[2]
	}

	// Headers that lead with a URL make a poor company name.
	if strings.Contains(strings.ToLower(listing.Company), "http") || len(listing.Company) > 50 {
		words := strings.Fields(listing.Company)
		if len(words) > 0 {
			listing.Company = words[0]
		}
	}

	return listing
}

// stripCommentHTML flattens comment markup to plain text, keeping
// paragraph breaks as newlines.
func stripCommentHTML(htmlText string) string {
	htmlText = strings.ReplaceAll(htmlText, "<p>", "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + htmlText + "</div>"))
	if err != nil {
		return htmlText
	}
	return doc.Text()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
