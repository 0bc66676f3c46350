package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains every filesystem location minder touches. Empty fields are
// derived from DataDir and ApplianceDir during normalization.
type Paths struct {
	DataDir                 string `toml:"data_dir"`
	ApplianceDir            string `toml:"appliance_dir"`
	SettingsPath            string `toml:"settings_path"`
	StatsPath               string `toml:"stats_path"`
	ConfPath                string `toml:"conf_path"`
	TemplatePath            string `toml:"template_path"`
	BackupIgnorePath        string `toml:"backup_ignore_path"`
	ReindexMarker           string `toml:"reindex_marker"`
	ReindexChainstateMarker string `toml:"reindex_chainstate_marker"`
	LockPath                string `toml:"lock_path"`
	HistoryDB               string `toml:"history_db"`
}

// Bitcoind contains the supervised daemon's executable names and the local
// Tor SOCKS port used for onion routing.
type Bitcoind struct {
	Binary       string `toml:"binary"`
	CLIBinary    string `toml:"cli_binary"`
	TorSocksPort int    `toml:"tor_socks_port"`
}

// Telemetry contains polling cadence for the sidecar and the settings
// readiness gate.
type Telemetry struct {
	PollInterval         int `toml:"poll_interval"`
	SettingsPollInterval int `toml:"settings_poll_interval"`
}

// History contains configuration for the local telemetry history store.
type History struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Proxy contains the RPC proxy settings used when the node prunes chain data.
type Proxy struct {
	Upstream           string `toml:"upstream"`
	Listen             string `toml:"listen"`
	PeerTimeout        int    `toml:"peer_timeout"`
	MaxPeerAge         int    `toml:"max_peer_age"`
	MaxPeerConcurrency int    `toml:"max_peer_concurrency"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for minder.
//
// Configuration sections by subsystem:
//   - Paths: data directory, appliance artifacts, markers, and lock file
//   - Bitcoind: daemon and query binaries plus the Tor SOCKS port
//   - Telemetry: sidecar poll interval and settings readiness gate
//   - History: local telemetry sample retention
//   - Proxy: RPC proxy endpoints for pruned nodes
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Bitcoind  Bitcoind  `toml:"bitcoind"`
	Telemetry Telemetry `toml:"telemetry"`
	History   History   `toml:"history"`
	Proxy     Proxy     `toml:"proxy"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/minder/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/minder/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("minder.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ApplianceDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
