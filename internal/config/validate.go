package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBitcoind(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	if err := c.validateProxy(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TemplatePath) == "" {
		return errors.New("paths.template_path must be set")
	}
	return nil
}

func (c *Config) validateBitcoind() error {
	if strings.TrimSpace(c.Bitcoind.Binary) == "" {
		return errors.New("bitcoind.binary must be set")
	}
	if strings.TrimSpace(c.Bitcoind.CLIBinary) == "" {
		return errors.New("bitcoind.cli_binary must be set")
	}
	if c.Bitcoind.TorSocksPort < 1 || c.Bitcoind.TorSocksPort > 65535 {
		return errors.New("bitcoind.tor_socks_port must be a valid port number")
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	return ensurePositiveMap(map[string]int{
		"telemetry.poll_interval":          c.Telemetry.PollInterval,
		"telemetry.settings_poll_interval": c.Telemetry.SettingsPollInterval,
	})
}

func (c *Config) validateProxy() error {
	parsed, err := url.Parse(c.Proxy.Upstream)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("proxy.upstream must be a valid URL, got %q", c.Proxy.Upstream)
	}
	if _, _, err := net.SplitHostPort(c.Proxy.Listen); err != nil {
		return fmt.Errorf("proxy.listen must be host:port, got %q", c.Proxy.Listen)
	}
	return ensurePositiveMap(map[string]int{
		"proxy.peer_timeout":         c.Proxy.PeerTimeout,
		"proxy.max_peer_age":         c.Proxy.MaxPeerAge,
		"proxy.max_peer_concurrency": c.Proxy.MaxPeerConcurrency,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
