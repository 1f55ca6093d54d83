package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vsporte/fhm-matches/internal/auth"
	"github.com/vsporte/fhm-matches/internal/browser"
	"github.com/vsporte/fhm-matches/internal/config"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/pipeline"
	"github.com/vsporte/fhm-matches/internal/scraper"
	"github.com/vsporte/fhm-matches/internal/storage"
)

// loadConfig reads settings, applies flag overrides, validates them and
// installs the default logger.
func loadConfig() (*config.Config, error) {
	path, required := flagConfig, true
	if path == "" {
		path, required = config.DefaultPath, false
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	if flagOutput != "" {
		cfg.Output = flagOutput
	}
	if flagDriver != "" {
		cfg.Browser.Driver = flagDriver
	}
	if flagAddr != "" {
		cfg.HTTP.Addr = flagAddr
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &config.Error{Code: config.ErrCodeInvalid, Err: err}
	}
	logger.SetDefault(logger.New(level, os.Stderr))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the components shared by run and serve
type app struct {
	cfg      *config.Config
	location *time.Location
	store    *storage.Store
	pipeline *pipeline.Pipeline
}

// newApp builds the extraction stack. Credentials must already be validated.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	if cfg.Mongo.Enabled() {
		mirror, err := storage.NewMongoMirror(ctx, cfg.Mongo)
		if err != nil {
			logger.Warn("mongo mirror disabled", logger.Fields{"error": err.Error()})
		} else {
			store.SetMirror(mirror)
			logger.Info("mongo mirror enabled", logger.Fields{
				"database":   cfg.Mongo.Database,
				"collection": cfg.Mongo.Collection,
			})
		}
	}

	launcher, err := browser.NewLauncher(cfg.Browser.Driver, browser.Options{
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		UserAgent:         cfg.Browser.UserAgent,
		Headless:          cfg.Browser.Headless,
		Retries:           cfg.Browser.Retries,
		ExecPath:          cfg.Browser.ExecPath,
	})
	if err != nil {
		return nil, err
	}

	authenticator := auth.New(cfg.LoginURL, auth.Credentials{
		Login:    cfg.Credentials.Login,
		Password: cfg.Credentials.Password,
	})
	authenticator.Attempts = cfg.Browser.NavigationAttempts
	authenticator.Grace = cfg.Browser.Grace

	extractor := scraper.NewExtractor(cfg.Columns)
	extractor.MinCells = cfg.MinCells
	extractor.FallbackMapURL = cfg.FallbackMapURL

	sc := &scraper.Scraper{
		Locator: scraper.NewLocator(scraper.LocatorConfig{
			Markers:  cfg.Locator.Markers,
			Keywords: cfg.Locator.Keywords,
			Class:    cfg.Locator.Class,
			MinRows:  cfg.Locator.MinRows,
		}),
		Extractor: extractor,
	}

	return &app{
		cfg:      cfg,
		location: loc,
		store:    store,
		pipeline: &pipeline.Pipeline{
			Launcher:  launcher,
			Auth:      authenticator,
			Scraper:   sc,
			Store:     store,
			TargetURL: cfg.TargetURL,
			Attempts:  cfg.Browser.NavigationAttempts,
			TableWait: cfg.Browser.TableWait,
			DebugDir:  cfg.DebugDir,
			Location:  loc,
		},
	}, nil
}

// Close releases the snapshot mirror, if any
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		logger.Warn("closing store", logger.Fields{"error": err.Error()})
	}
}
