package sidecar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"minder/internal/config"
	"minder/internal/history"
	"minder/internal/logging"
	"minder/internal/settings"
	"minder/internal/statusdoc"
)

// warmingUpExitCode is bitcoin-cli's exit code while the daemon is still
// loading. It means "ask again later", not failure.
const warmingUpExitCode = 28

// activeForkNewsWindow is how many blocks past activation a deployment stays
// in the published document, roughly twelve weeks of ten-minute blocks.
const activeForkNewsWindow = 12096

const (
	torQuickConnectPort = 48332
	lanQuickConnectPort = 443
)

// errNotReady marks a query answered with the warming-up exit code.
var errNotReady = errors.New("daemon is warming up")

// Runner executes the status query tool and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// Collector assembles one status document per telemetry cycle.
type Collector struct {
	runner    Runner
	cliBinary string
	confPath  string
	rpcAddr   string

	username string
	password string
	hasCreds bool

	logger *slog.Logger
}

// NewCollector builds a collector from the supervisor config, the settings
// document, and the advertised RPC onion address.
func NewCollector(cfg *config.Config, doc *settings.Document, rpcAddr string, logger *slog.Logger) *Collector {
	c := &Collector{
		runner:    execRunner{},
		cliBinary: cfg.Bitcoind.CLIBinary,
		confPath:  cfg.Paths.ConfPath,
		rpcAddr:   rpcAddr,
		logger:    logging.NewComponentLogger(logger, "sidecar"),
	}
	c.username, c.password, c.hasCreds = doc.RPCCredentials()
	return c
}

// Cycle produces the next status document plus a history sample when the
// chain query succeeded. A nil document with a nil error means the daemon is
// warming up and nothing should be published this cycle.
func (c *Collector) Cycle(ctx context.Context) (*statusdoc.Document, *history.Sample, error) {
	doc := statusdoc.New()
	c.addQuickConnect(doc)

	var sample *history.Sample

	out, err := c.query(ctx, "getblockchaininfo")
	switch {
	case errors.Is(err, errNotReady):
		return nil, nil, nil
	case err != nil:
		return nil, nil, err
	case out == nil:
		// Query exited non-zero; the section is omitted this cycle.
	default:
		info, decodeErr := DecodeChainInfo(out)
		if decodeErr != nil {
			c.logger.Error("decode chain status", logging.Error(decodeErr))
		} else {
			c.addChainStats(doc, info)
			sample = &history.Sample{
				RecordedAt:  time.Now().UTC(),
				Blocks:      info.Blocks,
				Headers:     info.Headers,
				Progress:    info.VerificationProgress,
				SizeOnDisk:  info.SizeOnDisk,
				PruneHeight: info.PruneHeight,
			}
		}
	}

	out, err = c.query(ctx, "getnetworkinfo")
	switch {
	case errors.Is(err, errNotReady):
		return nil, nil, nil
	case err != nil:
		return nil, nil, err
	case out == nil:
	default:
		info, decodeErr := DecodeNetworkInfo(out)
		if decodeErr != nil {
			c.logger.Error("decode network status", logging.Error(decodeErr))
		} else {
			doc.Add("Connections", statusdoc.Stat{
				Type:        statusdoc.TypeString,
				Value:       formatConnections(info.Connections, info.ConnectionsIn, info.ConnectionsOut),
				Description: statusdoc.Describe("The number of peers connected (inbound and outbound)"),
			})
			if sample != nil {
				sample.Connections = info.Connections
				sample.ConnectionsIn = info.ConnectionsIn
				sample.ConnectionsOut = info.ConnectionsOut
			}
		}
	}

	return doc, sample, nil
}

// query runs one bitcoin-cli subcommand. A warming-up daemon maps to
// errNotReady, any other non-zero exit is logged here and reported as a nil
// result, and a failure to run the tool at all fails the cycle.
func (c *Collector) query(ctx context.Context, subcommand string) ([]byte, error) {
	out, err := c.runner.Output(ctx, c.cliBinary, "-conf="+c.confPath, subcommand)
	if err == nil {
		return out, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == warmingUpExitCode {
			return nil, errNotReady
		}
		c.logger.Error("status query failed",
			logging.String("subcommand", subcommand),
			logging.Int("exit_code", exitErr.ExitCode()),
			logging.String("stderr", strings.TrimSpace(string(exitErr.Stderr))))
		return nil, nil
	}
	return nil, fmt.Errorf("run %s %s: %w", c.cliBinary, subcommand, err)
}

func (c *Collector) addQuickConnect(doc *statusdoc.Document) {
	if !c.hasCreds {
		return
	}
	doc.Add("Tor Quick Connect", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       fmt.Sprintf("btcstandup://%s:%s@%s:%d", c.username, c.password, c.rpcAddr, torQuickConnectPort),
		Description: statusdoc.Describe("Bitcoin-Standup Tor Quick Connect URL"),
		Copyable:    true,
		QR:          true,
		Masked:      true,
	})
	doc.Add("LAN Quick Connect", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       fmt.Sprintf("btcstandup://%s:%s@%s:%d", c.username, c.password, lanAddress(c.rpcAddr), lanQuickConnectPort),
		Description: statusdoc.Describe("Bitcoin-Standup LAN Quick Connect URL"),
		Copyable:    true,
		QR:          true,
		Masked:      true,
	})
	doc.Add("RPC Username", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       c.username,
		Description: statusdoc.Describe("Bitcoin RPC Username"),
		Copyable:    true,
	})
	doc.Add("RPC Password", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       c.password,
		Description: statusdoc.Describe("Bitcoin RPC Password"),
		Copyable:    true,
		Masked:      true,
	})
}

// lanAddress swaps the advertised address's onion suffix for the local
// domain the appliance serves on the LAN.
func lanAddress(addr string) string {
	if base, ok := strings.CutSuffix(addr, "onion"); ok {
		return base + "local"
	}
	return addr
}

func (c *Collector) addChainStats(doc *statusdoc.Document, info *ChainInfo) {
	doc.Add("Block Height", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       strconv.Itoa(info.Headers),
		Description: statusdoc.Describe("The current block height for the network"),
	})
	doc.Add("Synced Block Height", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       strconv.Itoa(info.Blocks),
		Description: statusdoc.Describe("The number of blocks the node has verified"),
	})
	doc.Add("Sync Progress", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       formatSyncProgress(info.Blocks, info.Headers, info.VerificationProgress),
		Description: statusdoc.Describe("The percentage of the blockchain that has been verified"),
	})

	for _, fork := range info.SoftForks {
		addForkStats(doc, info.Blocks, fork)
	}

	doc.Add("Disk Usage", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       formatGiB(info.SizeOnDisk),
		Description: statusdoc.Describe("The blockchain size on disk"),
	})
	if info.PruneHeight > 0 {
		doc.Add("Prune Height", statusdoc.Stat{
			Type:        statusdoc.TypeString,
			Value:       strconv.Itoa(info.PruneHeight),
			Description: statusdoc.Describe("The number of blocks that have been deleted from disk"),
		})
	}
}

// addForkStats renders one deployment's entries. Buried forks never appear,
// and a long-active deployment stops being newsworthy once the chain is
// activeForkNewsWindow blocks past its activation height.
func addForkStats(doc *statusdoc.Document, blocks int, fork NamedFork) {
	bip9, ok := fork.Fork.(Bip9Fork)
	if !ok {
		return
	}

	var (
		label  string
		window Window
	)
	switch state := bip9.State.(type) {
	case Defined:
		label, window = "Defined", state.Window
	case Started:
		label, window = "Started", state.Window
	case LockedIn:
		label, window = "Locked In", state.Window
	case Active:
		if blocks >= state.Since+activeForkNewsWindow {
			return
		}
		label, window = "Active", state.Window
	case Failed:
		// The reference implementation labels failed deployments "Active";
		// downstream consumers depend on the exact string.
		label, window = "Active", state.Window
	default:
		return
	}

	name := displayName(fork.Name)
	doc.Add(name+" Status", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       label,
		Description: statusdoc.Describe(fmt.Sprintf("The Bip9 deployment status for %s", name)),
	})
	doc.Add(name+" Start Time", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       formatTimestamp(window.StartTime),
		Description: statusdoc.Describe(fmt.Sprintf("The start time (UTC) of the Bip9 signaling period for %s", name)),
	})
	doc.Add(name+" Timeout", statusdoc.Stat{
		Type:        statusdoc.TypeString,
		Value:       formatTimestamp(window.Timeout),
		Description: statusdoc.Describe(fmt.Sprintf("The timeout time (UTC) of the Bip9 signaling period for %s", name)),
	})
	if started, ok := bip9.State.(Started); ok {
		doc.Add(name+" Signal Percentage", statusdoc.Stat{
			Type:        statusdoc.TypeString,
			Value:       formatSignalPercentage(started.Stats.Count, started.Stats.Elapsed),
			Description: statusdoc.Describe(fmt.Sprintf("Percentage of the blocks in the current signaling window that are signaling for the activation of %s", name)),
		})
	}
}
