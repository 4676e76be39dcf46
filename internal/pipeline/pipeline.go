package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/score"
	"github.com/jobradar/jobradar/internal/source"
)

// ErrLocked is returned when another run holds the data directory.
var ErrLocked = errors.New("another run is in progress")

// Store is what the driver needs from persistence.
type Store interface {
	Index(ctx context.Context) (map[string]job.Job, error)
	SaveResults(ctx context.Context, jobs []job.Job, report *Report) error
}

// Notifier delivers the ranked digest. It only ever sees jobs that
// passed both gates.
type Notifier interface {
	Notify(ctx context.Context, jobs []job.Job, report *Report) error
}

// SourceResult is the per-board outcome recorded in the run report.
type SourceResult struct {
	Name    string `json:"name"`
	Fetched int    `json:"fetched"`
	Failed  bool   `json:"failed"`
	Error   string `json:"error,omitempty"`
}

// Report is the run's accounting. Every stage adds its counts so a run
// can never fail silently.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceResult `json:"sources"`
	Fetched    int            `json:"fetched"`
	Dropped    int            `json:"dropped"`
	Deduped    int            `json:"deduped"`
	Scored     int            `json:"scored"`
	Degraded   int            `json:"degraded"`
	Unscored   int            `json:"unscored"`
	Retained   int            `json:"retained"`
	Cancelled  bool           `json:"cancelled"`
}

// Pipeline wires the stages together for one run.
type Pipeline struct {
	cfg       *config.Config
	fetchers  []source.Fetcher
	relevance *score.RelevanceScorer
	match     *score.MatchScorer
	store     Store
	notifier  Notifier
	logger    *zap.Logger

	now func() time.Time
}

func New(
	cfg *config.Config,
	fetchers []source.Fetcher,
	relevance *score.RelevanceScorer,
	match *score.MatchScorer,
	store Store,
	notifier Notifier,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:       cfg,
		fetchers:  fetchers,
		relevance: relevance,
		match:     match,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes the whole pipeline once. Cancellation mid-scoring is
// honored but never wasteful: jobs scored so far still get combined,
// filtered and persisted.
func (p *Pipeline) Run(ctx context.Context, runID string) (*Report, error) {
	report := &Report{RunID: runID, StartedAt: p.now().UTC()}

	unlock, err := p.acquireLock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	prior, err := p.store.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading prior-run index: %w", err)
	}

	jobs := p.collect(ctx, report, prior)
	report.Deduped = len(jobs)

	p.scoreAll(ctx, report, jobs)

	score.Combine(jobs, p.cfg.Scoring.RelevanceWeight, p.cfg.Scoring.MatchWeight)
	kept := score.Filter(jobs, p.cfg.Scoring.MinRelevance, p.cfg.Scoring.MinCombined)
	score.Rank(kept)
	report.Retained = len(kept)

	report.FinishedAt = p.now().UTC()

	// Persistence runs even when the context is already cancelled;
	// losing scored work to a Ctrl-C would make reruns pay twice.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := p.store.SaveResults(persistCtx, jobs, report); err != nil {
		return report, fmt.Errorf("persisting results: %w", err)
	}

	p.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("fetched", report.Fetched),
		zap.Int("deduped", report.Deduped),
		zap.Int("scored", report.Scored),
		zap.Int("degraded", report.Degraded),
		zap.Int("unscored", report.Unscored),
		zap.Int("retained", report.Retained),
		zap.Bool("cancelled", report.Cancelled),
	)

	if p.notifier != nil {
		if err := p.notifier.Notify(persistCtx, kept, report); err != nil {
			return report, fmt.Errorf("sending notification: %w", err)
		}
	}

	return report, nil
}

func (p *Pipeline) acquireLock() (func(), error) {
	if err := os.MkdirAll(p.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	lock := flock.New(filepath.Join(p.cfg.DataDir, "jobradar.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("releasing run lock", zap.Error(err))
		}
	}, nil
}

// collect fans out over the boards, then normalizes and dedupes. Each
// board gets its own slot so the join order is the declaration order no
// matter which board answers first.
func (p *Pipeline) collect(ctx context.Context, report *Report, prior map[string]job.Job) []job.Job {
	slots := make([][]source.Listing, len(p.fetchers))
	results := make([]SourceResult, len(p.fetchers))

	var g errgroup.Group
	for i, f := range p.fetchers {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, p.cfg.Sources.Timeout)
			defer cancel()

			listings, err := f.Fetch(fctx)
			results[i] = SourceResult{Name: f.Name(), Fetched: len(listings)}
			if err != nil {
				// A dead board degrades the run, it does not end it.
				results[i].Failed = true
				results[i].Error = err.Error()
				p.logger.Warn("source failed", zap.String("source", f.Name()), zap.Error(err))
				return nil
			}
			slots[i] = listings
			return nil
		})
	}
	g.Wait()

	report.Sources = results

	now := p.now().UTC()
	normalized := make([]job.Job, 0, 64)
	for i, listings := range slots {
		name := p.fetchers[i].Name()
		for _, l := range listings {
			report.Fetched++
			j, err := Normalize(l, name, now)
			if err != nil {
				report.Dropped++
				p.logger.Debug("dropping listing",
					zap.String("source", name),
					zap.String("title", l.Title),
					zap.Error(err),
				)
				continue
			}
			normalized = append(normalized, j)
		}
	}

	return Dedupe(normalized, prior, now)
}

// scoreAll runs both scoring stages over every job with bounded
// concurrency. Workers write only their own slot.
func (p *Pipeline) scoreAll(ctx context.Context, report *Report, jobs []job.Job) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Scoring.Concurrency)

	for i := range jobs {
		g.Go(func() error {
			if err := p.relevance.Score(gctx, &jobs[i]); err != nil {
				return err
			}
			return p.match.Score(gctx, &jobs[i])
		})
	}

	if err := g.Wait(); err != nil {
		report.Cancelled = true
		p.logger.Warn("scoring interrupted, keeping scored jobs", zap.Error(err))
	}

	for i := range jobs {
		if jobs[i].FullyScored() {
			report.Scored++
		}
		if jobs[i].Degraded {
			report.Degraded++
		}
		if jobs[i].Unscored {
			report.Unscored++
		}
	}
}
