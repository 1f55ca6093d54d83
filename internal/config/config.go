// Package config loads fhm-matches settings.
//
// Non-secret settings come from an optional YAML file; every field has a default,
// so the file only needs the values that differ. Credentials are read from the
// environment (FHMO_LOGIN, FHMO_PASS), after loading a .env file if present.
// Nothing is validated at load time: commands call Validate and
// ValidateCredentials for the parts they need.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vsporte/fhm-matches/internal/scraper"
	"github.com/vsporte/fhm-matches/internal/storage"
)

const (
	DefaultPath    = "fhm-matches.yaml"
	DefaultEnvFile = ".env"

	EnvLogin         = "FHMO_LOGIN"
	EnvPassword      = "FHMO_PASS"
	EnvMongoPassword = "FHMO_MONGO_PASS"
)

const (
	// ErrCodeInvalid means the file could not be read or a field is out of range
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingCredentials means FHMO_LOGIN or FHMO_PASS is empty
	ErrCodeMissingCredentials = "missing_credentials"
)

// Error is a configuration error with a stable code
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code extracts the code of a *Error, or "" for other errors
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

type Credentials struct {
	Login    string
	Password string
}

type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	ErrorTTL time.Duration `yaml:"error_ttl"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type BrowserConfig struct {
	// Driver is "chrome" or "http"
	Driver             string        `yaml:"driver"`
	Headless           bool          `yaml:"headless"`
	UserAgent          string        `yaml:"user_agent"`
	ExecPath           string        `yaml:"exec_path"`
	NavigationTimeout  time.Duration `yaml:"navigation_timeout"`
	NavigationAttempts int           `yaml:"navigation_attempts"`
	TableWait          time.Duration `yaml:"table_wait"`
	Grace              time.Duration `yaml:"grace"`
	Retries            int           `yaml:"retries"`
}

type LocatorConfig struct {
	Markers  []string `yaml:"markers"`
	Keywords []string `yaml:"keywords"`
	Class    string   `yaml:"class"`
	MinRows  int      `yaml:"min_rows"`
}

// Config holds every setting of the service
type Config struct {
	LoginURL       string         `yaml:"login_url"`
	TargetURL      string         `yaml:"target_url"`
	Output         string         `yaml:"output"`
	DebugDir       string         `yaml:"debug_dir"`
	Timezone       string         `yaml:"timezone"`
	LogLevel       string         `yaml:"log_level"`
	FallbackMapURL string         `yaml:"fallback_map_url"`
	MinCells       int            `yaml:"min_cells"`
	Columns        scraper.Layout `yaml:"columns"`

	Cache   CacheConfig         `yaml:"cache"`
	HTTP    HTTPConfig          `yaml:"http"`
	Browser BrowserConfig       `yaml:"browser"`
	Locator LocatorConfig       `yaml:"locator"`
	Mongo   storage.MongoConfig `yaml:"mongo"`

	Credentials Credentials `yaml:"-"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		LoginURL:       "http://referee.fhmoscow.com/adm/index.php",
		TargetURL:      "http://referee.fhmoscow.com/adm/vsporte.php",
		Output:         "data/matches.json",
		DebugDir:       "debug",
		Timezone:       "Europe/Moscow",
		LogLevel:       "info",
		FallbackMapURL: scraper.DefaultFallbackMapURL,
		MinCells:       scraper.DefaultMinCells,
		Columns:        scraper.DefaultLayout,
		Cache: CacheConfig{
			TTL:      time.Hour,
			ErrorTTL: 5 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8000",
		},
		Browser: BrowserConfig{
			Driver:             "chrome",
			Headless:           true,
			NavigationTimeout:  30 * time.Second,
			NavigationAttempts: 3,
			TableWait:          15 * time.Second,
			Grace:              2 * time.Second,
			Retries:            1,
		},
		Locator: LocatorConfig{
			Markers:  append([]string{}, scraper.DefaultMarkers...),
			Keywords: append([]string{}, scraper.DefaultKeywords...),
			MinRows:  scraper.DefaultMinRows,
		},
	}
}

// Load reads path over the defaults, then the environment. A missing file is an
// error only when required is set (the user named it explicitly).
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
			}
		case os.IsNotExist(err) && !required:
		default:
			return nil, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
		}
	}

	if err := cfg.LoadEnv(DefaultEnvFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads envFile (if it exists) into the process environment without
// overriding variables already set, then reads the credentials.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return &Error{Code: ErrCodeInvalid, Path: envFile, Err: err}
		}
	}

	c.Credentials = Credentials{
		Login:    strings.TrimSpace(os.Getenv(EnvLogin)),
		Password: os.Getenv(EnvPassword),
	}
	if pw := os.Getenv(EnvMongoPassword); pw != "" {
		c.Mongo.Password = pw
	}
	return nil
}

// Validate checks every non-secret setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return &Error{Code: ErrCodeInvalid, Err: fmt.Errorf(format, args...)}
	}

	for name, raw := range map[string]string{"login_url": c.LoginURL, "target_url": c.TargetURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("%s must be an absolute http(s) url, got %q", name, raw)
		}
	}
	if strings.TrimSpace(c.Output) == "" {
		return invalid("output must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return invalid("timezone: %v", err)
	}

	switch c.Browser.Driver {
	case "chrome", "http":
	default:
		return invalid("browser.driver must be 'chrome' or 'http', got %q", c.Browser.Driver)
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.TableWait <= 0 || c.Browser.Grace < 0 {
		return invalid("browser timeouts must be positive")
	}
	if c.Browser.NavigationAttempts < 1 {
		return invalid("browser.navigation_attempts must be at least 1")
	}
	if c.Cache.TTL <= 0 || c.Cache.ErrorTTL <= 0 {
		return invalid("cache ttls must be positive")
	}
	if c.MinCells < 1 {
		return invalid("min_cells must be at least 1")
	}
	if c.Locator.MinRows < 0 {
		return invalid("locator.min_rows must not be negative")
	}

	cols := c.Columns
	for name, i := range map[string]int{
		"day": cols.Day, "date": cols.Date, "tour": cols.Tour, "game_number": cols.GameNumber,
		"time": cols.Time, "year": cols.Year, "team1": cols.Team1, "team2": cols.Team2,
		"venue": cols.Venue, "map": cols.Map, "address": cols.Address,
	} {
		if i < 0 {
			return invalid("columns.%s must not be negative", name)
		}
	}
	return nil
}

// ValidateCredentials fails when the portal login or password is missing.
func (c *Config) ValidateCredentials() error {
	var missing []string
	if c.Credentials.Login == "" {
		missing = append(missing, EnvLogin)
	}
	if c.Credentials.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if len(missing) > 0 {
		return &Error{
			Code: ErrCodeMissingCredentials,
			Err:  fmt.Errorf("%s not set (environment or %s)", strings.Join(missing, ", "), DefaultEnvFile),
		}
	}
	return nil
}

// Location loads the configured timezone. Moscow falls back to a fixed UTC+3
// zone when the system has no tz database.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err == nil {
		return loc, nil
	}
	if c.Timezone == "Europe/Moscow" {
		return time.FixedZone("MSK", 3*3600), nil
	}
	return nil, err
}
