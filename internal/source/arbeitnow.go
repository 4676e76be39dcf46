package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const arbeitnowURL = "https://www.arbeitnow.com/api/job-board-api"

// Arbeitnow reads the board's JSON API. Listings arrive under "data"
// with stable slugs we use as external ids.
type Arbeitnow struct {
	client  *Client
	filter  *KeywordFilter
	maxJobs int
	logger  *zap.Logger
	apiURL  string
}

func NewArbeitnow(client *Client, filter *KeywordFilter, maxJobs int, logger *zap.Logger) *Arbeitnow {
	return &Arbeitnow{
		client:  client,
		filter:  filter,
		maxJobs: maxJobs,
		logger:  logger.Named("arbeitnow"),
		apiURL:  arbeitnowURL,
	}
}

func (a *Arbeitnow) Name() string { return "arbeitnow" }

type arbeitnowResponse struct {
	Data []struct {
		Slug        string   `json:"slug"`
		Title       string   `json:"title"`
		CompanyName string   `json:"company_name"`
		Location    string   `json:"location"`
		URL         string   `json:"url"`
		Description string   `json:"description"`
		Remote      bool     `json:"remote"`
		Tags        []string `json:"tags"`
		CreatedAt   int64    `json:"created_at"`
	} `json:"data"`
}

func (a *Arbeitnow) Fetch(ctx context.Context) ([]Listing, error) {
	var resp arbeitnowResponse
	if err := a.client.GetJSON(ctx, a.apiURL, &resp); err != nil {
		return nil, fmt.Errorf("arbeitnow: %w", err)
	}

	listings := make([]Listing, 0, len(resp.Data))
	for _, item := range resp.Data {
		if len(listings) >= a.maxJobs {
			break
		}

		listing := Listing{
			Title:       item.Title,
			Company:     item.CompanyName,
			Location:    item.Location,
			URL:         item.URL,
			ExternalID:  item.Slug,
			PostedAt:    unixString(item.CreatedAt),
			Description: item.Description,
			Skills:      item.Tags,
		}
		if listing.Location == "" && item.Remote {
			listing.Location = "Remote"
		}
		if !a.filter.Matches(listing) {
			continue
		}
		listings = append(listings, listing)
	}

	a.logger.Info("fetched listings", zap.Int("count", len(listings)))
	return listings, nil
}

func unixString(seconds int64) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", seconds)
}
