package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vsporte/fhm-matches/internal/browser"
	"github.com/vsporte/fhm-matches/internal/failure"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/match"
	"github.com/vsporte/fhm-matches/internal/scraper"
)

const (
	DefaultTableWait = 15 * time.Second
	DefaultAttempts  = 3
)

// TableReady is present once the schedule has rendered
var TableReady = browser.CSS("table td")

// Authenticator logs a page into the portal
type Authenticator interface {
	Login(ctx context.Context, page browser.Page) error
}

// Saver persists a snapshot
type Saver interface {
	Save(ctx context.Context, snap *match.Snapshot) error
}

// Pipeline wires the stages of one extraction run
type Pipeline struct {
	Launcher  browser.Launcher
	Auth      Authenticator
	Scraper   *scraper.Scraper
	Store     Saver
	TargetURL string

	// Attempts bounds navigation tries to the schedule page
	Attempts  int
	TableWait time.Duration
	// DebugDir receives page dumps of failed runs; empty disables dumps
	DebugDir string
	// Location defines the calendar day used as "today"
	Location *time.Location
	Now      func() time.Time
	Logger   *logger.Logger
	Metrics  *logger.Metrics
}

// Run performs one extraction and writes its snapshot. Stage failures produce a
// fail-safe snapshot and a nil error. The error is non-nil only when the snapshot
// could not be written or ctx was cancelled, in which case nothing is written.
func (p *Pipeline) Run(ctx context.Context) (*match.Snapshot, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.logger().With(logger.Fields{"run_id": runID})
	metrics := p.metrics()

	metrics.IncrCounter("pipeline.runs")
	log.Info("pipeline started", logger.Fields{"target": p.TargetURL})

	records, err := p.extract(ctx, log)
	if ctx.Err() != nil {
		log.Warn("pipeline cancelled", logger.Fields{"duration": time.Since(start).String()})
		return nil, ctx.Err()
	}

	var snap *match.Snapshot
	if err != nil {
		kind := failure.KindOf(err)
		if kind == "" {
			kind = "unclassified"
		}
		metrics.IncrCounter("pipeline.failures." + string(kind))
		log.Error("pipeline failed, writing fail-safe snapshot", logger.Fields{"kind": string(kind)}, err)
		snap = match.FailedSnapshot(err.Error(), p.now())
	} else {
		snap = match.NewSnapshot(records, p.now())
	}

	if err := p.Store.Save(ctx, snap); err != nil {
		metrics.IncrCounter("pipeline.failures." + string(failure.SnapshotWrite))
		log.Error("snapshot write failed", nil, err)
		return nil, err
	}

	metrics.SetGauge("pipeline.matches", float64(snap.TotalMatches))
	metrics.RecordTiming("pipeline.duration", time.Since(start))
	log.Info("pipeline finished", logger.Fields{
		"matches":     snap.TotalMatches,
		"arenas":      len(snap.Arenas),
		"failed":      snap.Failed(),
		"last_update": snap.LastUpdate.Format(time.RFC3339Nano),
		"duration":    time.Since(start).String(),
	})
	return snap, nil
}

// extract runs stages 1 to 4 inside one browser session.
func (p *Pipeline) extract(ctx context.Context, log *logger.Logger) ([]match.MatchRecord, error) {
	page, err := p.Launcher.Launch(ctx)
	if err != nil {
		return nil, failure.Wrap(failure.Navigation, err, "starting browser")
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("closing browser failed", logger.Fields{"error": err.Error()})
		}
	}()

	fail := func(err error) error {
		if ctx.Err() == nil {
			p.dump(ctx, page, failure.KindOf(err), log)
		}
		return err
	}

	if err := p.Auth.Login(ctx, page); err != nil {
		return nil, fail(err)
	}
	log.Debug("stage complete", logger.Fields{"stage": "authenticate"})

	err = browser.GotoWithRetry(ctx, page, p.TargetURL, p.attempts(), func(attempt int, err error) {
		log.Warn("schedule page navigation failed, retrying", logger.Fields{"attempt": attempt, "error": err.Error()})
	})
	if err != nil {
		return nil, fail(failure.Wrap(failure.Navigation, err, "loading schedule page"))
	}

	if err := page.WaitFor(ctx, TableReady, p.tableWait()); err != nil {
		if browser.IsTimeout(err) {
			return nil, fail(failure.Wrap(failure.TableNotFound, err, "schedule table did not render"))
		}
		return nil, fail(failure.Wrap(failure.Navigation, err, "waiting for schedule table"))
	}

	body, err := page.HTML(ctx)
	if err != nil {
		return nil, fail(failure.Wrap(failure.Navigation, err, "reading schedule page"))
	}
	pageURL, err := page.URL(ctx)
	if err != nil {
		return nil, fail(failure.Wrap(failure.Navigation, err, "reading schedule page url"))
	}

	res, err := p.Scraper.Parse(body, pageURL)
	if err != nil {
		if failure.KindOf(err) == "" {
			err = failure.Wrap(failure.TableNotFound, err, "parsing schedule page")
		}
		return nil, fail(err)
	}
	log.Debug("stage complete", logger.Fields{
		"stage":    "extract",
		"strategy": res.Strategy,
		"rows":     len(res.Rows),
		"skipped":  res.Skipped,
	})

	today := match.DateOf(p.now().In(p.location()))
	records, stats := match.Normalize(res.Rows, today)

	metrics := p.metrics()
	metrics.AddCounter("pipeline.skipped."+string(failure.RowParse), int64(res.Skipped))
	metrics.AddCounter("pipeline.skipped."+string(failure.DateParse), int64(stats.Unparseable))
	log.Info("rows normalized", logger.Fields{
		"today":        today.String(),
		"rows":         stats.Rows,
		"retained":     stats.Retained,
		"unparseable":  stats.Unparseable,
		"not_upcoming": stats.NotUpcoming,
	})

	return records, nil
}

// dump writes the page HTML and, where the driver supports it, a screenshot.
// Dump failures are logged only.
func (p *Pipeline) dump(ctx context.Context, page browser.Page, kind failure.Kind, log *logger.Logger) {
	if p.DebugDir == "" {
		return
	}
	if kind == "" {
		kind = "unclassified"
	}
	if err := os.MkdirAll(p.DebugDir, 0o755); err != nil {
		log.Warn("creating debug dir failed", logger.Fields{"dir": p.DebugDir, "error": err.Error()})
		return
	}

	if body, err := page.HTML(ctx); err != nil {
		log.Warn("reading page for debug dump failed", logger.Fields{"error": err.Error()})
	} else {
		p.writeDump(fmt.Sprintf("%s_page.html", kind), []byte(body), log)
	}

	shot, err := page.Screenshot(ctx)
	switch {
	case errors.Is(err, browser.ErrUnsupported):
		log.Debug("screenshot not supported by driver", nil)
	case err != nil:
		log.Warn("taking debug screenshot failed", logger.Fields{"error": err.Error()})
	default:
		p.writeDump(fmt.Sprintf("%s_screenshot.png", kind), shot, log)
	}
}

func (p *Pipeline) writeDump(name string, data []byte, log *logger.Logger) {
	path := filepath.Join(p.DebugDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("writing debug dump failed", logger.Fields{"path": path, "error": err.Error()})
		return
	}
	log.Info("debug dump written", logger.Fields{"path": path})
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

func (p *Pipeline) attempts() int {
	if p.Attempts <= 0 {
		return DefaultAttempts
	}
	return p.Attempts
}

func (p *Pipeline) tableWait() time.Duration {
	if p.TableWait <= 0 {
		return DefaultTableWait
	}
	return p.TableWait
}

func (p *Pipeline) logger() *logger.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logger.Default()
}

func (p *Pipeline) metrics() *logger.Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return logger.DefaultMetrics()
}
