// Package config resolves sentrivault settings from, in increasing priority:
// built-in defaults, ~/.sentrivault/config.yaml, a .env file and SENTRIVAULT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the default data directory under the user's home.
	DirName = ".sentrivault"
	// FileName is the config file looked up inside the data directory.
	FileName = "config.yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SENTRIVAULT_"
	// LedgerDirName is the activity ledger directory inside the data directory.
	LedgerDirName = "ledger"
)

// Environment variable names.
const (
	EnvDataDir           = EnvPrefix + "DATA_DIR"
	EnvPassphrase        = EnvPrefix + "PASSPHRASE"
	EnvLogLevel          = EnvPrefix + "LOG_LEVEL"
	EnvCheckDelay        = EnvPrefix + "CHECK_DELAY"
	EnvResetOnCorruption = EnvPrefix + "RESET_ON_CORRUPTION"
	EnvLedger            = EnvPrefix + "LEDGER"
)

var (
	ErrNotFound = errors.New("config: file not found")
	ErrInsecure = errors.New("config: file has insecure permissions")
	ErrSymlink  = errors.New("config: file is a symlink")
	ErrNotOwned = errors.New("config: file not owned by current user")
)

// Config holds resolved settings.
type Config struct {
	// DataDir holds the database, ledger and config file.
	DataDir string `yaml:"data_dir"`
	// Passphrase seals the record document. Empty means prompt.
	Passphrase string `yaml:"passphrase"`
	// LogLevel is the diagnostics level passed to the logger.
	LogLevel string `yaml:"log_level"`
	// CheckDelay is the simulated lookup latency of website checks.
	CheckDelay time.Duration `yaml:"check_delay"`
	// ResetOnCorruption replaces an unreadable document with an empty one.
	ResetOnCorruption bool `yaml:"reset_on_corruption"`
	// Ledger mirrors store activity into the tamper-evident ledger.
	Ledger bool `yaml:"ledger"`
	// MCP configures the agent tool server.
	MCP MCPConfig `yaml:"mcp"`
}

// MCPConfig limits the tools exposed over MCP.
type MCPConfig struct {
	DisabledTools []string `yaml:"disabled_tools"`
}

// ToolEnabled reports whether name is not disabled.
func (m MCPConfig) ToolEnabled(name string) bool {
	for _, t := range m.DisabledTools {
		if t == name {
			return false
		}
	}
	return true
}

// LedgerDir returns the activity ledger directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.DataDir, LedgerDirName)
}

// Default returns the built-in settings.
func Default() *Config {
	dir := DirName
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, DirName)
	}
	return &Config{
		DataDir:    dir,
		LogLevel:   "warn",
		CheckDelay: 1500 * time.Millisecond,
		Ledger:     true,
	}
}

// Load resolves the configuration. envFile names an optional dotenv file
// (missing is fine); the config file is read from the data directory chosen by
// SENTRIVAULT_DATA_DIR or the default.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}

	if err := cfg.readFile(filepath.Join(cfg.DataDir, FileName)); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile merges the YAML file at path into c. The file is opened without
// following symlinks and checked on the open descriptor, so it cannot be
// swapped between the check and the read.
func (c *Config) readFile(path string) error {
	f, err := openConfigFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if err := checkFileSecurity(info); err != nil {
		return err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	dataDir := c.DataDir
	if err := yaml.Unmarshal(content, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	// The file lives inside the data directory and cannot move it.
	c.DataDir = dataDir
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvPassphrase); ok {
		c.Passphrase = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvCheckDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("config: invalid %s %q", EnvCheckDelay, v)
		}
		c.CheckDelay = d
	}
	for name, dst := range map[string]*bool{
		EnvResetOnCorruption: &c.ResetOnCorruption,
		EnvLedger:            &c.Ledger,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: invalid %s %q", name, v)
		}
		*dst = b
	}
	return nil
}
