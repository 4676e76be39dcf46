package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubEvaluator struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubEvaluator) Evaluate(_ context.Context, _ string) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp string
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func newTestClient(ev Evaluator, maxRetries int) *Client {
	c := NewClient(ev, maxRetries, 6000, zap.NewNop())
	c.wait = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestAskScoreRetriesOnTransportError(t *testing.T) {
	stub := &stubEvaluator{
		responses: []string{"", `{"score": 8}`},
		errs:      []error{errors.New("connection refused"), nil},
	}

	score, err := newTestClient(stub, 3).AskScore(context.Background(), "rate this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 8 {
		t.Fatalf("expected 8, got %d", score)
	}
	if stub.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", stub.calls)
	}
}

func TestAskScoreRetriesOnUnparsableResponse(t *testing.T) {
	stub := &stubEvaluator{
		responses: []string{"I am unable to answer.", "Definitely a 9."},
	}

	score, err := newTestClient(stub, 2).AskScore(context.Background(), "rate this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 9 {
		t.Fatalf("expected 9, got %d", score)
	}
}

func TestAskScoreExhaustsRetries(t *testing.T) {
	stub := &stubEvaluator{
		errs: []error{errors.New("down"), errors.New("down"), errors.New("down")},
	}

	_, err := newTestClient(stub, 3).AskScore(context.Background(), "rate this")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if stub.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", stub.calls)
	}
}

func TestAskScoreStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubEvaluator{
		errs: []error{errors.New("down"), errors.New("down")},
	}

	c := newTestClient(stub, 5)
	c.wait = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.AskScore(ctx, "rate this")
	if err == nil {
		t.Fatal("expected error")
	}
	if stub.calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", stub.calls)
	}
}

func TestAskMatchParsesSkills(t *testing.T) {
	stub := &stubEvaluator{
		responses: []string{`{"match_score": 6, "matching_skills": ["go"], "missing_skills": ["rust"]}`},
	}

	got, err := newTestClient(stub, 1).AskMatch(context.Background(), "match this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Score != 6 || len(got.MatchedSkills) != 1 || len(got.MissingSkills) != 1 {
		t.Fatalf("unexpected answer: %+v", got)
	}
}
