// Package store persists jobs and run analytics in a local SQLite
// database. One writer, whole-run transactions.
package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/pipeline"
)

const fileName = "jobradar.db"

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database under dataDir and brings
// the schema up to date.
func Open(dataDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.Join(dataDir, fileName))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// sqlite wants a single writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
  identity_key TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  source_name TEXT NOT NULL,
  sources TEXT NOT NULL DEFAULT '[]',
  external_id TEXT NOT NULL DEFAULT '',
  posted_at TEXT,
  description TEXT NOT NULL DEFAULT '',
  relevance INTEGER NOT NULL DEFAULT 0,
  match_score INTEGER NOT NULL DEFAULT 0,
  matched_skills TEXT NOT NULL DEFAULT '[]',
  missing_skills TEXT NOT NULL DEFAULT '[]',
  combined REAL NOT NULL DEFAULT 0,
  degraded INTEGER NOT NULL DEFAULT 0,
  unscored INTEGER NOT NULL DEFAULT 0,
  first_seen_at TEXT NOT NULL,
  last_seen_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  sources TEXT NOT NULL DEFAULT '[]',
  fetched INTEGER NOT NULL DEFAULT 0,
  dropped INTEGER NOT NULL DEFAULT 0,
  deduped INTEGER NOT NULL DEFAULT 0,
  scored INTEGER NOT NULL DEFAULT 0,
  degraded INTEGER NOT NULL DEFAULT 0,
  unscored INTEGER NOT NULL DEFAULT 0,
  retained INTEGER NOT NULL DEFAULT 0,
  cancelled INTEGER NOT NULL DEFAULT 0,
  score_distribution TEXT NOT NULL DEFAULT '{}'
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_jobs_combined ON jobs(combined);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

// Index loads the identity index of everything persisted so far. The
// deduplicator uses it to tell new jobs from reappearing ones.
func (s *Store) Index(ctx context.Context) (map[string]job.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity_key, first_seen_at FROM jobs;`)
	if err != nil {
		return nil, fmt.Errorf("query identity index: %w", err)
	}
	defer rows.Close()

	out := make(map[string]job.Job)
	for rows.Next() {
		var key, firstSeen string
		if err := rows.Scan(&key, &firstSeen); err != nil {
			return nil, err
		}
		j := job.Job{IdentityKey: key}
		if t, perr := time.Parse(time.RFC3339Nano, firstSeen); perr == nil {
			j.FirstSeenAt = t
		}
		out[key] = j
	}
	return out, rows.Err()
}

// SaveResults writes the whole result set and the run's analytics row
// in one transaction. A mid-write failure rolls everything back and the
// previous state stays intact.
func (s *Store) SaveResults(ctx context.Context, jobs []job.Job, report *pipeline.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range jobs {
		if err := upsertJob(ctx, tx, &jobs[i]); err != nil {
			return err
		}
	}

	if report != nil {
		if err := insertRun(ctx, tx, jobs, report); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}

	s.logger.Debug("persisted results", zap.Int("jobs", len(jobs)))
	return nil
}

// upsertJob inserts or refreshes one job. first_seen_at is written only
// on insert so cross-run continuity survives any merge.
func upsertJob(ctx context.Context, tx *sql.Tx, j *job.Job) error {
	sources, _ := json.Marshal(j.Sources)
	matched, _ := json.Marshal(emptyIfNil(j.MatchedSkills))
	missing, _ := json.Marshal(emptyIfNil(j.MissingSkills))

	var postedAt any
	if j.PostedAt != nil {
		postedAt = j.PostedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := tx.ExecContext(ctx, `
INSERT INTO jobs (
  identity_key, title, company, location, url, source_name, sources,
  external_id, posted_at, description, relevance, match_score, matched_skills,
  missing_skills, combined, degraded, unscored, first_seen_at, last_seen_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity_key) DO UPDATE SET
  title = excluded.title,
  company = excluded.company,
  location = excluded.location,
  url = excluded.url,
  source_name = excluded.source_name,
  sources = excluded.sources,
  external_id = excluded.external_id,
  posted_at = excluded.posted_at,
  description = excluded.description,
  relevance = excluded.relevance,
  match_score = excluded.match_score,
  matched_skills = excluded.matched_skills,
  missing_skills = excluded.missing_skills,
  combined = excluded.combined,
  degraded = excluded.degraded,
  unscored = excluded.unscored,
  last_seen_at = excluded.last_seen_at;`,
		j.IdentityKey, j.Title, j.Company, j.Location, j.URL, j.SourceName,
		string(sources), j.ExternalID, postedAt, j.Description, j.Relevance,
		j.Match, string(matched), string(missing), j.Combined,
		boolInt(j.Degraded), boolInt(j.Unscored),
		j.FirstSeenAt.UTC().Format(time.RFC3339Nano),
		j.LastSeenAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", j.IdentityKey, err)
	}
	return nil
}

func insertRun(ctx context.Context, tx *sql.Tx, jobs []job.Job, report *pipeline.Report) error {
	sources, _ := json.Marshal(report.Sources)
	distribution, _ := json.Marshal(scoreDistribution(jobs))

	_, err := tx.ExecContext(ctx, `
INSERT INTO runs (
  run_id, started_at, finished_at, sources, fetched, dropped, deduped,
  scored, degraded, unscored, retained, cancelled, score_distribution
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		report.RunID,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		string(sources), report.Fetched, report.Dropped, report.Deduped,
		report.Scored, report.Degraded, report.Unscored, report.Retained,
		boolInt(report.Cancelled), string(distribution),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}
	return nil
}

// scoreDistribution buckets combined scores by their integer part, an
// analytics aid for tuning thresholds.
func scoreDistribution(jobs []job.Job) map[string]int {
	out := make(map[string]int)
	for i := range jobs {
		if !jobs[i].FullyScored() {
			continue
		}
		bucket := strconv.Itoa(int(jobs[i].Combined))
		out[bucket]++
	}
	return out
}

// Jobs returns the persisted jobs ordered by combined score descending,
// identity key ascending. limit <= 0 means all.
func (s *Store) Jobs(ctx context.Context, limit int) ([]job.Job, error) {
	query := `
SELECT identity_key, title, company, location, url, source_name, sources,
       external_id, posted_at, description, relevance, match_score,
       matched_skills, missing_skills, combined, degraded, unscored,
       first_seen_at, last_seen_at
FROM jobs
ORDER BY combined DESC, identity_key ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query+";", args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []job.Job
	for rows.Next() {
		var (
			j                         job.Job
			sources, matched, missing string
			postedAt                  sql.NullString
			degraded, unscored        int
			firstSeen, lastSeen       string
		)
		if err := rows.Scan(
			&j.IdentityKey, &j.Title, &j.Company, &j.Location, &j.URL,
			&j.SourceName, &sources, &j.ExternalID, &postedAt,
			&j.Description, &j.Relevance, &j.Match, &matched, &missing,
			&j.Combined, &degraded, &unscored, &firstSeen, &lastSeen,
		); err != nil {
			return nil, err
		}

		_ = json.Unmarshal([]byte(sources), &j.Sources)
		_ = json.Unmarshal([]byte(matched), &j.MatchedSkills)
		_ = json.Unmarshal([]byte(missing), &j.MissingSkills)
		j.Degraded = degraded != 0
		j.Unscored = unscored != 0
		if postedAt.Valid {
			if t, perr := time.Parse(time.RFC3339Nano, postedAt.String); perr == nil {
				j.PostedAt = &t
			}
		}
		if t, perr := time.Parse(time.RFC3339Nano, firstSeen); perr == nil {
			j.FirstSeenAt = t
		}
		if t, perr := time.Parse(time.RFC3339Nano, lastSeen); perr == nil {
			j.LastSeenAt = t
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ExportCSV writes the persisted jobs as a spreadsheet-friendly CSV.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, limit int) error {
	jobs, err := s.Jobs(ctx, limit)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"identity_key", "title", "company", "location", "url", "sources",
		"posted_at", "relevance", "match", "combined", "degraded",
		"first_seen_at", "last_seen_at",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i := range jobs {
		j := &jobs[i]
		postedAt := ""
		if j.PostedAt != nil {
			postedAt = j.PostedAt.UTC().Format("2006-01-02")
		}
		record := []string{
			j.IdentityKey, j.Title, j.Company, j.Location, j.URL,
			strings.Join(j.Sources, ";"), postedAt,
			strconv.Itoa(j.Relevance), strconv.Itoa(j.Match),
			strconv.FormatFloat(j.Combined, 'f', 2, 64),
			strconv.FormatBool(j.Degraded),
			j.FirstSeenAt.UTC().Format(time.RFC3339),
			j.LastSeenAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
