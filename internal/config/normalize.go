package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBitcoind()
	c.normalizeTelemetry()
	c.normalizeHistory()
	c.normalizeProxy()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ApplianceDir) == "" {
		c.Paths.ApplianceDir = filepath.Join(c.Paths.DataDir, "minder")
	}
	if c.Paths.ApplianceDir, err = expandPath(c.Paths.ApplianceDir); err != nil {
		return fmt.Errorf("paths.appliance_dir: %w", err)
	}

	derived := []struct {
		field    *string
		key      string
		fallback string
	}{
		{&c.Paths.SettingsPath, "paths.settings_path", filepath.Join(c.Paths.ApplianceDir, "config.yaml")},
		{&c.Paths.StatsPath, "paths.stats_path", filepath.Join(c.Paths.ApplianceDir, "stats.yaml")},
		{&c.Paths.ConfPath, "paths.conf_path", filepath.Join(c.Paths.DataDir, "bitcoin.conf")},
		{&c.Paths.TemplatePath, "paths.template_path", defaultTemplatePath},
		{&c.Paths.BackupIgnorePath, "paths.backup_ignore_path", filepath.Join(c.Paths.DataDir, ".backupignore")},
		{&c.Paths.ReindexMarker, "paths.reindex_marker", filepath.Join(c.Paths.DataDir, "requires.reindex")},
		{&c.Paths.ReindexChainstateMarker, "paths.reindex_chainstate_marker", filepath.Join(c.Paths.DataDir, "requires.reindex_chainstate")},
		{&c.Paths.LockPath, "paths.lock_path", filepath.Join(c.Paths.ApplianceDir, "minder.lock")},
		{&c.Paths.HistoryDB, "paths.history_db", filepath.Join(c.Paths.ApplianceDir, "history.db")},
	}
	for _, entry := range derived {
		if strings.TrimSpace(*entry.field) == "" {
			*entry.field = entry.fallback
		}
		if *entry.field, err = expandPath(*entry.field); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeBitcoind() {
	c.Bitcoind.Binary = strings.TrimSpace(c.Bitcoind.Binary)
	if c.Bitcoind.Binary == "" {
		c.Bitcoind.Binary = defaultBitcoindBinary
	}
	c.Bitcoind.CLIBinary = strings.TrimSpace(c.Bitcoind.CLIBinary)
	if c.Bitcoind.CLIBinary == "" {
		c.Bitcoind.CLIBinary = defaultCLIBinary
	}
	if c.Bitcoind.TorSocksPort <= 0 {
		c.Bitcoind.TorSocksPort = defaultTorSocksPort
	}
}

func (c *Config) normalizeTelemetry() {
	if c.Telemetry.PollInterval <= 0 {
		c.Telemetry.PollInterval = defaultTelemetryPollInterval
	}
	if c.Telemetry.SettingsPollInterval <= 0 {
		c.Telemetry.SettingsPollInterval = defaultSettingsPollInterval
	}
}

func (c *Config) normalizeHistory() {
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
}

func (c *Config) normalizeProxy() {
	c.Proxy.Upstream = strings.TrimSpace(c.Proxy.Upstream)
	if c.Proxy.Upstream == "" {
		c.Proxy.Upstream = defaultProxyUpstream
	}
	c.Proxy.Listen = strings.TrimSpace(c.Proxy.Listen)
	if c.Proxy.Listen == "" {
		c.Proxy.Listen = defaultProxyListen
	}
	if c.Proxy.PeerTimeout <= 0 {
		c.Proxy.PeerTimeout = defaultProxyPeerTimeout
	}
	if c.Proxy.MaxPeerAge <= 0 {
		c.Proxy.MaxPeerAge = defaultProxyMaxPeerAge
	}
	if c.Proxy.MaxPeerConcurrency <= 0 {
		c.Proxy.MaxPeerConcurrency = defaultProxyMaxPeerConcurrency
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
