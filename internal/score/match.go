package score

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/oracle"
	"github.com/jobradar/jobradar/internal/profile"
)

const skillListLimit = 10

const matchPrompt = `You are a resume-job matcher. Compare the candidate's skills with the job requirements.

Candidate Profile:
%s

Job Details:
- Title: %s
- Company: %s
- Description: %s

Analyze the match and respond with JSON only:
{
    "match_score": <1-10>,
    "matching_skills": ["skill1", "skill2", ...],
    "missing_skills": ["skill1", "skill2", ...]
}`

// MatchScorer scores how well a posting fits the candidate profile.
type MatchScorer struct {
	client  *oracle.Client
	profile *profile.Profile
	logger  *zap.Logger
}

func NewMatchScorer(client *oracle.Client, p *profile.Profile, logger *zap.Logger) *MatchScorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchScorer{client: client, profile: p, logger: logger}
}

// Score sets j.Match and the skill lists. The oracle answer is
// authoritative when it parses; the skill-overlap heuristic covers every
// failure. A job with no oracle and no profile to compare against stays
// unscored for good.
func (s *MatchScorer) Score(ctx context.Context, j *job.Job) error {
	if s.client != nil {
		answer, err := s.client.AskMatch(ctx, s.prompt(j))
		if err == nil {
			j.Match = job.ClampScore(answer.Score)
			j.MatchedSkills = canonicalize(answer.MatchedSkills)
			j.MissingSkills = canonicalize(answer.MissingSkills)
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.logger.Debug("match oracle failed, using skill overlap",
			zap.String("identity", j.IdentityKey),
			zap.Error(err),
		)
	}

	if s.profile.Empty() {
		j.Unscored = true
		return nil
	}

	s.heuristic(j)
	j.Degraded = true
	return nil
}

func (s *MatchScorer) prompt(j *job.Job) string {
	summary := s.profile.ResumeText
	if len(summary) > 1000 {
		summary = truncate(summary, 1000)
	}
	if summary == "" {
		summary = "Skills: " + strings.Join(s.profile.SkillList(), ", ")
	}

	description := truncate(j.Description, descriptionPromptLimit)
	if description == "" {
		description = "No description available"
	}

	return fmt.Sprintf(matchPrompt, summary, j.Title, j.Company, description)
}

// heuristic intersects the skills the posting mentions with the
// candidate's. Score is the matched ratio mapped onto the 1-10 scale,
// with a neutral 5 when the posting names no recognizable skills.
func (s *MatchScorer) heuristic(j *job.Job) {
	required := profile.ExtractSkills(j.Title + " " + j.Description)

	var matched, missing []string
	for _, skill := range required {
		if s.profile.Has(skill) {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}

	if len(required) == 0 {
		j.Match = 5
	} else {
		ratio := float64(len(matched)) / float64(len(required))
		j.Match = job.ClampScore(int(ratio*10) + 2)
	}

	j.MatchedSkills = cap10(matched)
	j.MissingSkills = cap10(missing)
}

func canonicalize(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		c := profile.Canonical(s)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return cap10(out)
}

func cap10(skills []string) []string {
	if len(skills) > skillListLimit {
		return skills[:skillListLimit]
	}
	return skills
}
