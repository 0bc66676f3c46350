package config

const (
	defaultDataDir                 = "/root/.bitcoin"
	defaultTemplatePath            = "/mnt/assets/bitcoin.conf.template"
	defaultBitcoindBinary          = "bitcoind"
	defaultCLIBinary               = "bitcoin-cli"
	defaultTorSocksPort            = 9050
	defaultTelemetryPollInterval   = 5
	defaultSettingsPollInterval    = 1
	defaultHistoryRetentionDays    = 30
	defaultProxyUpstream           = "http://127.0.0.1:18332/"
	defaultProxyListen             = "0.0.0.0:48332"
	defaultProxyPeerTimeout        = 30
	defaultProxyMaxPeerAge         = 300
	defaultProxyMaxPeerConcurrency = 1
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with appliance defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			TemplatePath: defaultTemplatePath,
		},
		Bitcoind: Bitcoind{
			Binary:       defaultBitcoindBinary,
			CLIBinary:    defaultCLIBinary,
			TorSocksPort: defaultTorSocksPort,
		},
		Telemetry: Telemetry{
			PollInterval:         defaultTelemetryPollInterval,
			SettingsPollInterval: defaultSettingsPollInterval,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetentionDays,
		},
		Proxy: Proxy{
			Upstream:           defaultProxyUpstream,
			Listen:             defaultProxyListen,
			PeerTimeout:        defaultProxyPeerTimeout,
			MaxPeerAge:         defaultProxyMaxPeerAge,
			MaxPeerConcurrency: defaultProxyMaxPeerConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
