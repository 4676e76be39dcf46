// Package notify delivers the run digest. The email notifier is the
// real transport; the log notifier covers dry runs.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/job"
	"github.com/jobradar/jobradar/internal/pipeline"
	"github.com/jobradar/jobradar/internal/secrets"
)

const (
	defaultSMTPPort = 587
	maxDigestJobs   = 10
	passwordEnvVar  = "JOBRADAR_SMTP_PASSWORD"
)

// Email sends the ranked digest over SMTP with STARTTLS.
type Email struct {
	cfg      *config.NotifyConfig
	password string
	logger   *zap.Logger

	// send is swappable in tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail resolves the SMTP password (file over env over inline) and
// builds the notifier.
func NewEmail(cfg *config.NotifyConfig, logger *zap.Logger) (*Email, error) {
	if cfg == nil || cfg.SMTPHost == "" || cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("notify requires smtp-host, from and to")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	password, err := secrets.Load(secrets.Source{
		Name: "smtp password",
		File: cfg.PasswordFile,
		Env:  passwordEnvVar,
	})
	if err != nil {
		return nil, err
	}

	return &Email{
		cfg:      cfg,
		password: password,
		logger:   logger,
		send:     smtp.SendMail,
	}, nil
}

// Notify mails the digest. An empty result set still sends, so a quiet
// day is distinguishable from a broken run.
func (e *Email) Notify(ctx context.Context, jobs []job.Job, report *pipeline.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	port := e.cfg.SMTPPort
	if port <= 0 {
		port = defaultSMTPPort
	}
	addr := fmt.Sprintf("%s:%d", e.cfg.SMTPHost, port)
	auth := smtp.PlainAuth("", e.cfg.From, e.password, e.cfg.SMTPHost)

	subject := fmt.Sprintf("jobradar: %d matching jobs (%s)",
		len(jobs), time.Now().Format("Jan 2, 2006"))
	msg := buildMessage(e.cfg.From, e.cfg.To, subject, buildDigest(jobs, report))

	if err := e.send(addr, auth, e.cfg.From, []string{e.cfg.To}, msg); err != nil {
		return fmt.Errorf("sending digest email: %w", err)
	}

	e.logger.Info("digest sent",
		zap.String("to", e.cfg.To),
		zap.Int("jobs", len(jobs)),
	)
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// buildDigest renders the top jobs and the run summary as simple HTML.
func buildDigest(jobs []job.Job, report *pipeline.Report) string {
	var b strings.Builder

	b.WriteString("<html><body style=\"font-family: sans-serif; color: #333;\">")
	fmt.Fprintf(&b, "<h1>Job digest</h1><p>%d jobs passed both gates.</p>", len(jobs))

	top := jobs
	if len(top) > maxDigestJobs {
		top = top[:maxDigestJobs]
	}

	for i := range top {
		j := &top[i]
		fmt.Fprintf(&b, "<div style=\"border:1px solid #ddd; border-radius:8px; padding:12px; margin-bottom:10px;\">")
		fmt.Fprintf(&b, "<a href=%q><b>%s</b></a> at %s<br>",
			j.URL, html.EscapeString(j.Title), html.EscapeString(j.Company))
		fmt.Fprintf(&b, "%s &middot; combined %.1f (relevance %d, match %d)",
			html.EscapeString(j.Location), j.Combined, j.Relevance, j.Match)
		if j.Degraded {
			b.WriteString(" &middot; degraded")
		}
		if len(j.MatchedSkills) > 0 {
			fmt.Fprintf(&b, "<br>matched: %s", html.EscapeString(strings.Join(j.MatchedSkills, ", ")))
		}
		if len(j.MissingSkills) > 0 {
			fmt.Fprintf(&b, "<br>missing: %s", html.EscapeString(strings.Join(j.MissingSkills, ", ")))
		}
		b.WriteString("</div>")
	}

	if report != nil {
		fmt.Fprintf(&b,
			"<p style=\"color:#666; font-size:12px;\">run %s: fetched %d, deduped %d, scored %d, degraded %d, unscored %d, dropped %d</p>",
			html.EscapeString(report.RunID), report.Fetched, report.Deduped,
			report.Scored, report.Degraded, report.Unscored, report.Dropped)
	}

	b.WriteString("</body></html>")
	return b.String()
}

// Log is the dry-run notifier: it prints what would have been sent.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, jobs []job.Job, report *pipeline.Report) error {
	for i := range jobs {
		j := &jobs[i]
		l.logger.Info("matching job",
			zap.String("title", j.Title),
			zap.String("company", j.Company),
			zap.String("url", j.URL),
			zap.Float64("combined", j.Combined),
			zap.Int("relevance", j.Relevance),
			zap.Int("match", j.Match),
			zap.Bool("degraded", j.Degraded),
		)
	}
	if report != nil {
		l.logger.Info("dry run, no email sent",
			zap.String("run_id", report.RunID),
			zap.Int("retained", report.Retained),
		)
	}
	return nil
}
