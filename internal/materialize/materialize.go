// Package materialize turns the appliance settings document into the
// artifacts bitcoind needs at startup: the rendered configuration file, the
// command-line argument list, and the chain-data backup exclusion list.
package materialize

import (
	"fmt"
	"os"
	"strings"

	"minder/internal/config"
	"minder/internal/fileutil"
	"minder/internal/settings"
	"minder/internal/tmpl"
)

// Environment carries the appliance-provided network addresses.
type Environment struct {
	HostIP         string
	PeerTorAddress string
	RPCTorAddress  string
}

// EnvFromOS reads the required environment variables. All three must be
// present and non-empty; a missing one means the appliance did not provision
// this container and startup cannot proceed.
func EnvFromOS() (Environment, error) {
	var env Environment
	fields := []struct {
		name string
		dst  *string
	}{
		{"HOST_IP", &env.HostIP},
		{"PEER_TOR_ADDRESS", &env.PeerTorAddress},
		{"RPC_TOR_ADDRESS", &env.RPCTorAddress},
	}
	for _, field := range fields {
		value, ok := os.LookupEnv(field.name)
		if !ok || strings.TrimSpace(value) == "" {
			return Environment{}, fmt.Errorf("environment variable %s is not set", field.name)
		}
		*field.dst = strings.TrimSpace(value)
	}
	return env, nil
}

// BaseArgs computes the always-present bitcoind arguments, plus the forced
// SOCKS proxy when the peer policy is onion-only.
func BaseArgs(cfg *config.Config, doc *settings.Document, env Environment) []string {
	args := []string{
		fmt.Sprintf("-onion=%s:%d", env.HostIP, cfg.Bitcoind.TorSocksPort),
		"-externalip=" + env.PeerTorAddress,
		"-datadir=" + cfg.Paths.DataDir,
		"-deprecatedrpc=warnings",
		"-conf=" + cfg.Paths.ConfPath,
	}
	if doc.OnlyOnion() {
		args = append(args, fmt.Sprintf("-proxy=%s:%d", env.HostIP, cfg.Bitcoind.TorSocksPort))
	}
	return args
}

var backupIgnoreEntries = []string{"blocks/", "chainstate/", "indexes/", "testnet3/"}

// WriteBackupIgnore rewrites the backup exclusion list covering the chain
// data directories. Safe to run on every startup.
func WriteBackupIgnore(path string) error {
	content := strings.Join(backupIgnoreEntries, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write backup ignore list: %w", err)
	}
	return nil
}

// ReindexArgs consumes at most one reindex marker and returns the matching
// argument list. The full reindex marker takes priority; the consumed marker
// is deleted in the same step so the reindex runs exactly once. A deletion
// failure other than absence is fatal, since a marker that cannot be cleared
// would reindex on every restart.
func ReindexArgs(cfg *config.Config) ([]string, error) {
	present, err := fileutil.ConsumeMarker(cfg.Paths.ReindexMarker)
	if err != nil {
		return nil, fmt.Errorf("clear reindex marker: %w", err)
	}
	if present {
		return []string{"-reindex"}, nil
	}

	present, err = fileutil.ConsumeMarker(cfg.Paths.ReindexChainstateMarker)
	if err != nil {
		return nil, fmt.Errorf("clear reindex chainstate marker: %w", err)
	}
	if present {
		return []string{"-reindex-chainstate"}, nil
	}
	return nil, nil
}

// RenderConf renders the configuration template against the settings
// document and writes the result to the bitcoind config path.
func RenderConf(cfg *config.Config, doc *settings.Document) error {
	src, err := os.ReadFile(cfg.Paths.TemplatePath)
	if err != nil {
		return fmt.Errorf("read config template: %w", err)
	}
	rendered, err := tmpl.Render(src, doc)
	if err != nil {
		return fmt.Errorf("render config template: %w", err)
	}
	if err := os.WriteFile(cfg.Paths.ConfPath, rendered, 0o600); err != nil {
		return fmt.Errorf("write bitcoind config: %w", err)
	}
	return nil
}

// Materialize prepares every startup artifact and returns bitcoind's
// argument list: base arguments, then the backup exclusion list side
// effect, then at most one one-shot reindex argument, then the rendered
// configuration file.
func Materialize(cfg *config.Config, doc *settings.Document, env Environment) ([]string, error) {
	args := BaseArgs(cfg, doc, env)

	if err := WriteBackupIgnore(cfg.Paths.BackupIgnorePath); err != nil {
		return nil, err
	}

	reindex, err := ReindexArgs(cfg)
	if err != nil {
		return nil, err
	}
	args = append(args, reindex...)

	if err := RenderConf(cfg, doc); err != nil {
		return nil, err
	}
	return args, nil
}
