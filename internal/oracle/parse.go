package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MatchAnswer is the structured part of a match-scoring response.
type MatchAnswer struct {
	Score         int
	MatchedSkills []string
	MissingSkills []string
}

var (
	reScoreField = regexp.MustCompile(`"(?:match_)?score"\s*:\s*"?(\d+)`)
	reBareNumber = regexp.MustCompile(`\b(\d{1,3})\b`)
)

// ParseScore extracts an integer score from a free-form oracle response.
// It tries, in order: a JSON object with a score field, a score field
// embedded in surrounding prose, and finally any bare number in [1,10].
// The result is NOT clamped; callers decide how to treat out-of-range
// values.
func ParseScore(raw string) (int, error) {
	cleaned := extractJSON(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
		if score, ok := numberField(obj, "score"); ok {
			return score, nil
		}
	}

	if m := reScoreField.FindStringSubmatch(raw); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil {
			return score, nil
		}
	}

	if m := reBareNumber.FindStringSubmatch(raw); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil {
			return score, nil
		}
	}

	return 0, fmt.Errorf("%w: no score found", ErrUnparsable)
}

// ParseMatch extracts a match assessment from the response. The skill
// lists are optional; the score is required.
func ParseMatch(raw string) (*MatchAnswer, error) {
	cleaned := extractJSON(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
		if score, ok := numberField(obj, "match_score"); ok {
			return &MatchAnswer{
				Score:         score,
				MatchedSkills: stringList(obj["matching_skills"]),
				MissingSkills: stringList(obj["missing_skills"]),
			}, nil
		}
		if score, ok := numberField(obj, "score"); ok {
			return &MatchAnswer{
				Score:         score,
				MatchedSkills: stringList(obj["matching_skills"]),
				MissingSkills: stringList(obj["missing_skills"]),
			}, nil
		}
	}

	score, err := ParseScore(raw)
	if err != nil {
		return nil, err
	}
	return &MatchAnswer{Score: score}, nil
}

// extractJSON strips markdown code fences and whatever prose surrounds
// the first JSON object in the response.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}
	return raw
}

// numberField pulls an integer out of a decoded JSON value, tolerating
// numbers encoded as strings.
func numberField(obj map[string]any, key string) (int, bool) {
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return int(val), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
