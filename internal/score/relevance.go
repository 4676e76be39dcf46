// Package score implements the two scoring stages and the combine,
// filter and rank stage that follows them.
package score

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/oracle"
)

const descriptionPromptLimit = 500

const relevancePrompt = `You are an AI/ML job relevance scorer. Analyze this job posting and score its relevance for AI/Machine Learning roles.

Job Details:
- Title: %s
- Company: %s
- Description: %s

Scoring Criteria (1-10 scale):
- 9-10: Core AI/ML role (ML Engineer, Data Scientist, AI Researcher, Deep Learning, NLP, Computer Vision, MLOps, LLM Engineer)
- 7-8: AI/ML adjacent role (Data Engineer with ML, Backend with ML systems, Research roles)
- 5-6: Roles with some AI/ML exposure (Data Analyst, Full Stack with AI features)
- 1-4: Not AI/ML related (Generic software, unrelated positions)

Respond with ONLY a JSON object:
{"score": <number 1-10>, "reason": "<brief 10-word explanation>"}`

// Keyword tiers for the fallback path when the oracle is unavailable.
var (
	highRelevance = []string{
		"machine learning engineer", "ml engineer", "ai engineer",
		"deep learning engineer", "data scientist", "research scientist",
		"applied scientist", "nlp engineer", "computer vision engineer",
		"mlops engineer", "ml platform", "ai researcher", "llm engineer",
	}
	mediumRelevance = []string{
		"data engineer", "ml ", " ml", " ai ", "ai ", "analytics engineer",
		"research engineer", "quantitative", "machine learning",
		"artificial intelligence", "neural network", "deep learning",
	}
	lowRelevance = []string{
		"data analyst", "business intelligence", "python developer",
		"backend engineer", "software engineer", "full stack",
	}
)

// RelevanceScorer scores how well a posting fits the target role family.
// A nil oracle client means every job takes the keyword fallback.
type RelevanceScorer struct {
	client *oracle.Client
	logger *zap.Logger
}

func NewRelevanceScorer(client *oracle.Client, logger *zap.Logger) *RelevanceScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelevanceScorer{client: client, logger: logger}
}

// Score sets j.Relevance. The oracle answer wins when one arrives; any
// fallback marks the job degraded. Only context cancellation is returned
// as an error.
func (s *RelevanceScorer) Score(ctx context.Context, j *job.Job) error {
	if s.client != nil {
		raw, err := s.client.AskScore(ctx, s.prompt(j))
		if err == nil {
			j.Relevance = job.ClampScore(raw)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.logger.Debug("relevance oracle failed, using keyword fallback",
			zap.String("identity", j.IdentityKey),
			zap.Error(err),
		)
	}

	j.Relevance = fallbackRelevance(j)
	j.Degraded = true
	return nil
}

func (s *RelevanceScorer) prompt(j *job.Job) string {
	description := truncate(j.Description, descriptionPromptLimit)
	if description == "" {
		description = "No description available"
	}
	return fmt.Sprintf(relevancePrompt, j.Title, j.Company, description)
}

func fallbackRelevance(j *job.Job) int {
	combined := strings.ToLower(j.Title + " " + j.Description)
	for _, kw := range highRelevance {
		if strings.Contains(combined, kw) {
			return 9
		}
	}
	for _, kw := range mediumRelevance {
		if strings.Contains(combined, kw) {
			return 7
		}
	}
	for _, kw := range lowRelevance {
		if strings.Contains(combined, kw) {
			return 5
		}
	}
	return 3
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
