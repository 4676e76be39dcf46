package source

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

const remoteokURL = "https://remoteok.com/api"

// RemoteOK reads the board's public JSON API. The payload is a single
// array whose first element is a legal notice, not a listing.
type RemoteOK struct {
	client  *Client
	filter  *KeywordFilter
	maxJobs int
	logger  *zap.Logger
	apiURL  string
}

func NewRemoteOK(client *Client, filter *KeywordFilter, maxJobs int, logger *zap.Logger) *RemoteOK {
	return &RemoteOK{
		client:  client,
		filter:  filter,
		maxJobs: maxJobs,
		logger:  logger.Named("remoteok"),
		apiURL:  remoteokURL,
	}
}

func (r *RemoteOK) Name() string { return "remoteok" }

type remoteokItem struct {
	ID          string   `mapstructure:"id"`
	Slug        string   `mapstructure:"slug"`
	Position    string   `mapstructure:"position"`
	Company     string   `mapstructure:"company"`
	Location    string   `mapstructure:"location"`
	Description string   `mapstructure:"description"`
	Date        string   `mapstructure:"date"`
	URL         string   `mapstructure:"url"`
	Tags        []string `mapstructure:"tags"`
}

func (r *RemoteOK) Fetch(ctx context.Context) ([]Listing, error) {
	var raw []map[string]any
	if err := r.client.GetJSON(ctx, r.apiURL, &raw); err != nil {
		return nil, fmt.Errorf("remoteok: %w", err)
	}

	listings := make([]Listing, 0, len(raw))
	for _, entry := range raw {
		if len(listings) >= r.maxJobs {
			break
		}
		// Skips the legal-notice element and anything else malformed.
		if _, ok := entry["position"]; !ok {
			continue
		}

		var item remoteokItem
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &item,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, fmt.Errorf("remoteok: build decoder: %w", err)
		}
		if err := decoder.Decode(entry); err != nil {
			r.logger.Debug("skipping undecodable item", zap.Error(err))
			continue
		}

		listing := Listing{
			Title:       item.Position,
			Company:     item.Company,
			Location:    item.Location,
			URL:         remoteokLink(item),
			ExternalID:  item.ID,
			PostedAt:    item.Date,
			Description: item.Description,
			Skills:      item.Tags,
		}
		if listing.Location == "" {
			listing.Location = "Remote"
		}
		if !r.filter.Matches(listing) {
			continue
		}
		listings = append(listings, listing)
	}

	r.logger.Info("fetched listings", zap.Int("count", len(listings)))
	return listings, nil
}

func remoteokLink(item remoteokItem) string {
	switch {
	case item.Slug != "":
		return "https://remoteok.com/remote-jobs/" + item.Slug
	case item.ID != "":
		return "https://remoteok.com/remote-jobs/" + item.ID
	default:
		return item.URL
	}
}
