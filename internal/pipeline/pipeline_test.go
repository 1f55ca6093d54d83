package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vsporte/fhm-matches/internal/auth"
	"github.com/vsporte/fhm-matches/internal/browser"
	"github.com/vsporte/fhm-matches/internal/failure"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/match"
	"github.com/vsporte/fhm-matches/internal/scraper"
	"github.com/vsporte/fhm-matches/internal/storage"
)

const loginPage = `<html><body><div id="content_user_login">
<form method="post" action="/adm/index.php">
<input type="text" name="login"><input type="password" name="password">
<input type="submit" value="Войти">
</form></div></body></html>`

// portal serves a login form and a cookie-protected schedule page
type portal struct {
	mu       sync.Mutex
	schedule string
}

func (p *portal) setSchedule(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schedule = s
}

func (p *portal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/adm/index.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if r.FormValue("login") == "ref" && r.FormValue("password") == "pw" {
				http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "s1", Path: "/"})
				http.Redirect(w, r, "/adm/main.php", http.StatusFound)
				return
			}
		}
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/adm/main.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Добро пожаловать</body></html>`)
	})
	mux.HandleFunc("/adm/vsporte.php", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("PHPSESSID"); err != nil || c.Value != "s1" {
			http.Redirect(w, r, "/adm/index.php", http.StatusFound)
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		fmt.Fprint(w, p.schedule)
	})
	return mux
}

// countingLauncher records how often sessions are closed
type countingLauncher struct {
	browser.Launcher
	mu     sync.Mutex
	closes int
}

func (l *countingLauncher) Launch(ctx context.Context) (browser.Page, error) {
	page, err := l.Launcher.Launch(ctx)
	if err != nil {
		return nil, err
	}
	return &countingPage{Page: page, l: l}, nil
}

type countingPage struct {
	browser.Page
	l *countingLauncher
}

func (p *countingPage) Close() error {
	p.l.mu.Lock()
	p.l.closes++
	p.l.mu.Unlock()
	return p.Page.Close()
}

type fixture struct {
	portal   *portal
	srv      *httptest.Server
	pipeline *Pipeline
	launcher *countingLauncher
	store    *storage.Store
	metrics  *logger.Metrics
	debugDir string
}

func loadSchedule(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/schedule.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

func newFixture(t *testing.T, password string) *fixture {
	t.Helper()

	p := &portal{schedule: loadSchedule(t)}
	srv := httptest.NewServer(p.handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	store, err := storage.New(filepath.Join(dir, "matches.json"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}

	a := auth.New(srv.URL+"/adm/index.php", auth.Credentials{Login: "ref", Password: password})
	a.Grace = time.Millisecond
	a.Logger = logger.Nop()

	launcher := &countingLauncher{
		Launcher: &browser.HTTPLauncher{Options: browser.Options{NavigationTimeout: 2 * time.Second}},
	}
	metrics := logger.NewMetrics()
	debugDir := filepath.Join(dir, "debug")

	return &fixture{
		portal:   p,
		srv:      srv,
		launcher: launcher,
		store:    store,
		metrics:  metrics,
		debugDir: debugDir,
		pipeline: &Pipeline{
			Launcher:  launcher,
			Auth:      a,
			Scraper:   scraper.New(),
			Store:     store,
			TargetURL: srv.URL + "/adm/vsporte.php",
			TableWait: 10 * time.Millisecond,
			DebugDir:  debugDir,
			Location:  time.UTC,
			Now:       func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) },
			Logger:    logger.Nop(),
			Metrics:   metrics,
		},
	}
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t, "pw")

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if snap.Failed() {
		t.Fatalf("snapshot failed: %s", snap.Error)
	}

	// 2020 row is past and "скоро" does not parse
	if snap.TotalMatches != 3 || len(snap.Matches) != 3 {
		t.Fatalf("TotalMatches = %d, matches = %d, want 3", snap.TotalMatches, len(snap.Matches))
	}

	first := snap.Matches[0]
	if first.Date != (match.Date{Year: 2099, Month: 1, Day: 1}) {
		t.Errorf("first match date = %v, want table order", first.Date)
	}
	if first.Pair != "Team A – Team B" {
		t.Errorf("Pair = %q", first.Pair)
	}
	if first.MapLink != "https://yandex.ru/maps/?text=arena-x" {
		t.Errorf("MapLink = %q", first.MapLink)
	}
	if snap.Matches[2].Pair != "" {
		t.Errorf("Pair with a missing team = %q, want empty", snap.Matches[2].Pair)
	}

	wantArenas := []string{"Arena X", "Первенство Москвы"}
	if strings.Join(snap.Arenas, "|") != strings.Join(wantArenas, "|") {
		t.Errorf("Arenas = %v, want %v", snap.Arenas, wantArenas)
	}

	saved, err := f.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.TotalMatches != 3 {
		t.Errorf("saved TotalMatches = %d, want 3", saved.TotalMatches)
	}
	if f.launcher.closes != 1 {
		t.Errorf("page closed %d times, want 1", f.launcher.closes)
	}
	if f.metrics.Counter("pipeline.runs") != 1 {
		t.Errorf("pipeline.runs = %d, want 1", f.metrics.Counter("pipeline.runs"))
	}
	if _, err := os.Stat(f.debugDir); !os.IsNotExist(err) {
		t.Error("successful run should not write debug dumps")
	}
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t, "pw")

	first, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	second, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !second.LastUpdate.After(first.LastUpdate) {
		t.Errorf("LastUpdate did not increase: %v then %v", first.LastUpdate, second.LastUpdate)
	}

	a, b := *first, *second
	a.LastUpdate, b.LastUpdate = time.Time{}, time.Time{}
	if fmt.Sprintf("%+v", a) != fmt.Sprintf("%+v", b) {
		t.Errorf("snapshots differ beyond last_update:\n%+v\n%+v", a, b)
	}
	if f.launcher.closes != 2 {
		t.Errorf("page closed %d times, want 2", f.launcher.closes)
	}
}

func TestRun_TableNotFound(t *testing.T) {
	f := newFixture(t, "pw")
	f.portal.setSchedule(`<html><body><table><tr><td>Новостей нет</td></tr></table></body></html>`)

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want fail-safe snapshot", err)
	}
	assertFailSafe(t, snap, failure.TableNotFound)

	if f.metrics.Counter("pipeline.failures.table_not_found") != 1 {
		t.Error("expected table_not_found failure to be counted")
	}
	if _, err := os.Stat(filepath.Join(f.debugDir, "table_not_found_page.html")); err != nil {
		t.Errorf("expected page dump: %v", err)
	}
	if f.launcher.closes != 1 {
		t.Errorf("page closed %d times, want 1", f.launcher.closes)
	}
}

func TestRun_TableNeverRenders(t *testing.T) {
	f := newFixture(t, "pw")
	f.portal.setSchedule(`<html><body><p>loading...</p></body></html>`)

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertFailSafe(t, snap, failure.TableNotFound)
}

func TestRun_AuthenticationFailure(t *testing.T) {
	f := newFixture(t, "wrong")

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertFailSafe(t, snap, failure.Authentication)

	saved, err := f.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if saved.Error != snap.Error {
		t.Errorf("saved error = %q, want %q", saved.Error, snap.Error)
	}
	if _, err := os.Stat(filepath.Join(f.debugDir, "authentication_failure_page.html")); err != nil {
		t.Errorf("expected page dump: %v", err)
	}
	if f.launcher.closes != 1 {
		t.Errorf("page closed %d times, want 1", f.launcher.closes)
	}
}

func TestRun_NavigationFailure(t *testing.T) {
	f := newFixture(t, "pw")
	f.srv.Close()

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertFailSafe(t, snap, failure.Navigation)
}

type failingLauncher struct{}

func (failingLauncher) Launch(ctx context.Context) (browser.Page, error) {
	return nil, errors.New("chrome not found")
}

func TestRun_LaunchFailure(t *testing.T) {
	f := newFixture(t, "pw")
	f.pipeline.Launcher = failingLauncher{}

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	assertFailSafe(t, snap, failure.Navigation)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, "pw")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := f.pipeline.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if snap != nil {
		t.Error("cancelled run should not return a snapshot")
	}
	if _, err := f.store.Load(); !errors.Is(err, storage.ErrNoSnapshot) {
		t.Errorf("cancelled run wrote a snapshot: %v", err)
	}
}

type failingSaver struct{}

func (failingSaver) Save(ctx context.Context, snap *match.Snapshot) error {
	return failure.Wrap(failure.SnapshotWrite, errors.New("disk full"), "writing")
}

func TestRun_SnapshotWriteErrorPropagates(t *testing.T) {
	f := newFixture(t, "pw")
	f.pipeline.Store = failingSaver{}

	_, err := f.pipeline.Run(context.Background())
	if failure.KindOf(err) != failure.SnapshotWrite {
		t.Fatalf("Run() error = %v, want snapshot_write_error", err)
	}
}

func TestRun_TodayIsExcluded(t *testing.T) {
	f := newFixture(t, "pw")
	f.pipeline.Now = func() time.Time { return time.Date(2099, 1, 1, 23, 0, 0, 0, time.UTC) }

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, m := range snap.Matches {
		if !m.Date.After(match.Date{Year: 2099, Month: 1, Day: 1}) {
			t.Errorf("match dated %v retained on its own day", m.Date)
		}
	}
	if snap.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", snap.TotalMatches)
	}
}

func TestRun_TodayUsesLocation(t *testing.T) {
	f := newFixture(t, "pw")
	// 22:30 UTC on 31 Dec is already 1 Jan in Moscow.
	f.pipeline.Now = func() time.Time { return time.Date(2098, 12, 31, 22, 30, 0, 0, time.UTC) }
	f.pipeline.Location = time.FixedZone("MSK", 3*3600)

	snap, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if snap.TotalMatches != 2 {
		t.Errorf("TotalMatches = %d, want 2", snap.TotalMatches)
	}
}

func assertFailSafe(t *testing.T, snap *match.Snapshot, kind failure.Kind) {
	t.Helper()

	if snap == nil {
		t.Fatal("expected a fail-safe snapshot")
	}
	if snap.TotalMatches != 0 || len(snap.Matches) != 0 || len(snap.Arenas) != 0 {
		t.Errorf("fail-safe snapshot not empty: %+v", snap)
	}
	if snap.Matches == nil || snap.Arenas == nil {
		t.Error("fail-safe snapshot should carry empty lists, not nil")
	}
	if !strings.HasPrefix(snap.Error, string(kind)) {
		t.Errorf("Error = %q, want prefix %q", snap.Error, kind)
	}
}
