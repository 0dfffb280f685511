// Package file implements the file delivery adapter: writes a rendered
// report to a retention-managed directory, pruning files older than the
// configured retention window after every successful write.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/trekops/unifi-reporter/internal/model"
)

// Format selects the rendered file extension/content shape.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
	FormatBoth Format = "both"
)

// Config controls the output location, format, and retention policy.
type Config struct {
	OutputDir     string
	Format        Format
	RetentionDays int
}

func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
}

// Delivery writes reports to disk. render produces the body for a given
// format; callers may supply their own renderer, otherwise a minimal
// plain-text/HTML default is used.
type Delivery struct {
	cfg           Config
	retentionDays atomic.Int64
	render        func(model.Report, Format) (string, error)
	now           func() time.Time
}

func New(cfg Config, render func(model.Report, Format) (string, error)) *Delivery {
	cfg.setDefaults()
	if render == nil {
		render = defaultRender
	}
	d := &Delivery{cfg: cfg, render: render, now: time.Now}
	d.retentionDays.Store(int64(cfg.RetentionDays))
	return d
}

// SetRetentionDays updates the prune window live; a config watcher calls
// this after a validated reload.
func (d *Delivery) SetRetentionDays(days int) {
	if days <= 0 {
		days = 30
	}
	d.retentionDays.Store(int64(days))
}

func defaultRender(report model.Report, format Format) (string, error) {
	var b strings.Builder
	if format == FormatHTML {
		b.WriteString("<html><body>\n")
	}
	fmt.Fprintf(&b, "Site: %s\nWindow: %s - %s\n\n", report.SiteName, report.PeriodStart, report.PeriodEnd)
	for _, f := range report.Findings {
		fmt.Fprintf(&b, "[%s] %s: %s (x%d)\n", f.Severity, f.RuleName, f.Title, f.OccurrenceCount)
	}
	if format == FormatHTML {
		b.WriteString("</body></html>\n")
	}
	return b.String(), nil
}

// Deliver writes the report to OutputDir, then prunes files older than
// RetentionDays. ctx cancellation is honored between the write and the
// prune pass, since neither is a single blocking syscall worth racing.
func (d *Delivery) Deliver(ctx context.Context, report model.Report) error {
	if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("file: create output dir: %w", err)
	}

	formats := []Format{d.cfg.Format}
	if d.cfg.Format == FormatBoth {
		formats = []Format{FormatHTML, FormatText}
	}

	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("file: %w", err)
		}
		if err := d.writeOne(report, f); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("file: %w", err)
	}
	d.prune()
	return nil
}

func (d *Delivery) writeOne(report model.Report, format Format) error {
	body, err := d.render(report, format)
	if err != nil {
		return fmt.Errorf("file: render report: %w", err)
	}
	ext := "txt"
	if format == FormatHTML {
		ext = "html"
	}
	name := fmt.Sprintf("report-%s.%s", d.now().UTC().Format("20060102T150405Z"), ext)
	path := filepath.Join(d.cfg.OutputDir, name)

	tmp, err := os.CreateTemp(d.cfg.OutputDir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("file: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return fmt.Errorf("file: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("file: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("file: rename: %w", err)
	}
	return nil
}

// prune removes report files older than RetentionDays. Failures are
// best-effort: a prune error never fails the delivery that already
// succeeded.
func (d *Delivery) prune() {
	cutoff := d.now().Add(-time.Duration(d.retentionDays.Load()) * 24 * time.Hour)
	entries, err := os.ReadDir(d.cfg.OutputDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "report-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(d.cfg.OutputDir, entry.Name()))
		}
	}
}
