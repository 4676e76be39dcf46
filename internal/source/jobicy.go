package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const jobicyURL = "https://jobicy.com/api/v2/remote-jobs"

// jobicyTags are the board-side search tags queried in order. Results
// across tags overlap, so fetched ids are tracked to avoid repeats.
var jobicyTags = []string{
	"data-science", "machine-learning", "artificial-intelligence", "python",
}

type Jobicy struct {
	client  *Client
	filter  *KeywordFilter
	maxJobs int
	logger  *zap.Logger
	apiURL  string
}

func NewJobicy(client *Client, filter *KeywordFilter, maxJobs int, logger *zap.Logger) *Jobicy {
	return &Jobicy{
		client:  client,
		filter:  filter,
		maxJobs: maxJobs,
		logger:  logger.Named("jobicy"),
		apiURL:  jobicyURL,
	}
}

func (j *Jobicy) Name() string { return "jobicy" }

type jobicyResponse struct {
	Jobs []struct {
		ID             int64  `json:"id"`
		JobTitle       string `json:"jobTitle"`
		CompanyName    string `json:"companyName"`
		JobGeo         string `json:"jobGeo"`
		URL            string `json:"url"`
		JobDescription string `json:"jobDescription"`
		PubDate        string `json:"pubDate"`
		JobLevel       string `json:"jobLevel"`
	} `json:"jobs"`
}

func (j *Jobicy) Fetch(ctx context.Context) ([]Listing, error) {
	listings := make([]Listing, 0, j.maxJobs)
	seen := make(map[int64]struct{})
	var lastErr error

	for _, tag := range jobicyTags {
		if len(listings) >= j.maxJobs {
			break
		}

		var resp jobicyResponse
		url := fmt.Sprintf("%s?count=50&tag=%s", j.apiURL, tag)
		if err := j.client.GetJSON(ctx, url, &resp); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("jobicy: %w", ctx.Err())
			}
			j.logger.Warn("tag query failed", zap.String("tag", tag), zap.Error(err))
			lastErr = err
			continue
		}

		for _, item := range resp.Jobs {
			if len(listings) >= j.maxJobs {
				break
			}
			if _, dup := seen[item.ID]; dup {
				continue
			}

			listing := Listing{
				Title:       item.JobTitle,
				Company:     item.CompanyName,
				Location:    item.JobGeo,
				URL:         item.URL,
				ExternalID:  fmt.Sprintf("%d", item.ID),
				PostedAt:    item.PubDate,
				Description: item.JobDescription,
			}
			if listing.Location == "" {
				listing.Location = "Remote"
			}
			if !j.filter.Matches(listing) {
				continue
			}
			seen[item.ID] = struct{}{}
			listings = append(listings, listing)
		}
	}

	// Every tag failing means the board is down, partial results pass.
	if len(listings) == 0 && lastErr != nil {
		return nil, fmt.Errorf("jobicy: %w", lastErr)
	}

	j.logger.Info("fetched listings", zap.Int("count", len(listings)))
	return listings, nil
}
