package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized for credentials.
const (
	EnvUsername = "USGS_USERNAME"
	EnvAuth     = "USGS_AUTH"
	EnvEndpoint = "USGS_ENDPOINT"
)

// Datasets the download pipeline knows how to order, keyed by catalog alias.
var KnownDatasets = map[string]string{
	"landsat_em_c2_l1":     "Landsat 4/5 Collection 2 Level 1",
	"landsat_em_c2_l2":     "Landsat 4/5 Collection 2 Level 2",
	"landsat_etm_c2_l1":    "Landsat 7 Collection 2 Level 1",
	"landsat_etm_c2_l2":    "Landsat 7 Collection 2 Level 2",
	"landsat_ot_c2_l1":     "Landsat 8/9 Collection 2 Level 1",
	"landsat_ot_c2_l2":     "Landsat 8/9 Collection 2 Level 2",
	"landsat_ba_tile_c2":   "Landsat Burned Area Product",
	"landsat_dswe_tile_c2": "Landsat Dynamic Surface Water Extent",
	"landsat_fsca_tile_c2": "Landsat Fractional Snow Covered Area",
}

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// Config holds all configuration for the scenefetch application
type Config struct {
	// Catalog service
	Endpoint   string `yaml:"endpoint"`
	Username   string `yaml:"username"`
	Auth       string `yaml:"-"` // secret, env or .env only, never the config file
	AuthMethod string `yaml:"auth_method"` // token|password

	// Search
	Dataset              string   `yaml:"dataset"`
	StartDate            string   `yaml:"start_date"` // YYYY-MM-DD
	EndDate              string   `yaml:"end_date"`   // YYYY-MM-DD
	CloudCoverMin        int      `yaml:"cloudcover_min"`
	CloudCoverMax        int      `yaml:"cloudcover_max"`
	IncludeUnknownClouds bool     `yaml:"include_unknown_clouds"`
	Months               []string `yaml:"months"` // jan..dec, empty means all
	MaxResults           int      `yaml:"max_results"`

	// File system
	OutputDir    string `yaml:"output_dir"` // user-provided
	AbsOutputDir string `yaml:"-"`          // resolved/absolute path
	DBPath       string `yaml:"db_path"`    // user-provided
	AbsDBPath    string `yaml:"-"`          // resolved/absolute path

	// Download queue behavior
	Label        string        `yaml:"label"`
	PollInterval time.Duration `yaml:"-"` // flag-configured
	BackoffBase  time.Duration `yaml:"-"`
	BackoffMax   time.Duration `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	DryRun bool `yaml:"-"`
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		AuthMethod:    "token",
		StartDate:     "2000-01-01",
		EndDate:       time.Now().Format(time.DateOnly),
		CloudCoverMin: 0,
		CloudCoverMax: 100,
		MaxResults:    100,
		Label:         "scenefetch",
		PollInterval:  30 * time.Second,
		BackoffBase:   2 * time.Second,
		BackoffMax:    4 * time.Minute,
		LogLevel:      "info",
	}
}

// LoadEnv pulls credentials from the environment, preceded by a best-effort
// .env load so checked-out working directories can carry local credentials.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvAuth); v != "" {
		c.Auth = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
}

// LoadFile overlays settings from a YAML config file.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that all required configuration is present and valid
func (c *Config) Validate() error {
	if c.AuthMethod != "token" && c.AuthMethod != "password" {
		return fmt.Errorf("invalid auth method: %s (must be token|password)", c.AuthMethod)
	}

	for _, d := range []struct{ name, value string }{
		{"start date", c.StartDate},
		{"end date", c.EndDate},
	} {
		if _, err := time.Parse(time.DateOnly, d.value); err != nil {
			return fmt.Errorf("invalid %s: %s (must be YYYY-MM-DD)", d.name, d.value)
		}
	}
	if c.StartDate > c.EndDate {
		return fmt.Errorf("start date %s is after end date %s", c.StartDate, c.EndDate)
	}

	if c.CloudCoverMin < 0 || c.CloudCoverMax > 100 || c.CloudCoverMin > c.CloudCoverMax {
		return fmt.Errorf("invalid cloud cover range: %d-%d (must be within 0-100)",
			c.CloudCoverMin, c.CloudCoverMax)
	}

	for _, m := range c.Months {
		if m == "all" {
			continue
		}
		if _, ok := monthNumbers[strings.ToLower(m)]; !ok {
			return fmt.Errorf("invalid month: %s (must be jan..dec or all)", m)
		}
	}

	if c.MaxResults < 1 {
		c.MaxResults = 100
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	c.LogLevel = strings.ToLower(c.LogLevel)
	valid := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid log level: %s (must be debug|info|warn|error)", c.LogLevel)
	}

	return nil
}

// ValidateDataset checks the dataset against the known product aliases.
// Only the download pipeline needs it; store-only commands don't care.
func (c *Config) ValidateDataset() error {
	if c.Dataset == "" {
		return fmt.Errorf("no dataset given (one of: %s)", strings.Join(DatasetAliases(), ", "))
	}
	if _, ok := KnownDatasets[c.Dataset]; !ok {
		return fmt.Errorf("unknown dataset: %s (one of: %s)", c.Dataset, strings.Join(DatasetAliases(), ", "))
	}
	return nil
}

// ValidateCredentials checks that username and auth secret are present.
func (c *Config) ValidateCredentials() error {
	if c.Username == "" {
		return fmt.Errorf("no username given (flag or %s)", EnvUsername)
	}
	if c.Auth == "" {
		return fmt.Errorf("no auth secret given (flag or %s)", EnvAuth)
	}
	return nil
}

// MonthNumbers resolves the configured month names to calendar numbers.
// Empty or "all" means no seasonal restriction and returns nil.
func (c *Config) MonthNumbers() []int {
	var out []int
	for _, m := range c.Months {
		if m == "all" {
			return nil
		}
		if n, ok := monthNumbers[strings.ToLower(m)]; ok {
			out = append(out, n)
		}
	}
	return out
}

// DatasetAliases returns the known dataset aliases, sorted.
func DatasetAliases() []string {
	out := make([]string, 0, len(KnownDatasets))
	for alias := range KnownDatasets {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// ResolveOutputDir expands the output directory path and resolves it to an absolute path
// If empty, defaults to $HOME/scenefetch
func (c *Config) ResolveOutputDir() error {
	if c.OutputDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("get home directory: %w", err)
		}
		c.OutputDir = filepath.Join(home, "scenefetch")
	}

	expanded, err := expandHome(c.OutputDir)
	if err != nil {
		return err
	}
	c.OutputDir = expanded

	abs, err := filepath.Abs(c.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.OutputDir, err)
	}
	c.AbsOutputDir = abs

	return nil
}

// ResolveDBPath expands the database path and resolves it to an absolute path
// If empty, defaults to OS cache directory
func (c *Config) ResolveDBPath() error {
	if c.DBPath == "" {
		c.DBPath = defaultCacheDBPath()
	}

	expanded, err := expandHome(c.DBPath)
	if err != nil {
		return err
	}
	c.DBPath = expanded

	abs, err := filepath.Abs(c.DBPath)
	if err != nil {
		return fmt.Errorf("resolve absolute path for %s: %w", c.DBPath, err)
	}
	c.AbsDBPath = abs

	return nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// defaultCacheDBPath returns the cross-platform default path for the SQLite DB
// - Windows: %APPDATA%/scenefetch/scenefetch.db
// - Linux/macOS: $HOME/.cache/scenefetch/scenefetch.db
func defaultCacheDBPath() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "scenefetch", "scenefetch.db")
		}
		// Fallback to user home if APPDATA is not set
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "AppData", "Roaming", "scenefetch", "scenefetch.db")
		}
		// Last resort: current directory
		return "scenefetch.db"
	}
	// Linux/macOS default cache location
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "scenefetch", "scenefetch.db")
	}
	// Fallback: place in working directory
	return filepath.Join("scenefetch", "scenefetch.db")
}

// Summary returns a one-line summary of key configuration
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"endpoint":   c.Endpoint,
		"dataset":    c.Dataset,
		"dates":      c.StartDate + ".." + c.EndDate,
		"output_dir": c.AbsOutputDir,
		"db_path":    c.AbsDBPath,
		"label":      c.Label,
		"log_level":  c.LogLevel,
		"dry_run":    c.DryRun,
	}
}
