package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/cli"
	"github.com/studiowebux/bitcoin-tui/internal/config"
	"github.com/studiowebux/bitcoin-tui/internal/engine"
	"github.com/studiowebux/bitcoin-tui/internal/journal"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
	"github.com/studiowebux/bitcoin-tui/internal/logging"
	"github.com/studiowebux/bitcoin-tui/internal/metrics"
	"github.com/studiowebux/bitcoin-tui/internal/rpc"
	"github.com/studiowebux/bitcoin-tui/internal/tui"
	"github.com/studiowebux/bitcoin-tui/internal/zmq"
)

var (
	version = "0.1.0"
)

// Startup probe: retry while the node loads its indexes.
const (
	probeAttempts = 5
	probeDelay    = 2 * time.Second
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bitcoin-tui",
	Short: "Terminal dashboard for a Bitcoin Core node",
	Long: `bitcoin-tui is a terminal dashboard for a Bitcoin Core node.

It polls the node over JSON-RPC, shows chain, mempool, network and peer
telemetry, lets you call any RPC method with typed arguments, searches
transactions, and streams block and transaction announcements over ZMQ.

Credentials come from the node's .cookie file unless --rpcuser is set.

Examples:
  bitcoin-tui                              # Mainnet node on 127.0.0.1
  bitcoin-tui --regtest --zmqport 28332    # Regtest with the ZMQ tab
  bitcoin-tui call getblockhash 840000     # One-shot call
  bitcoin-tui call getbalances --wallet w1 # Wallet-scoped call
  bitcoin-tui methods --category wallet    # List wallet methods
  bitcoin-tui history --limit 20           # Recent journaled calls
  bitcoin-tui keybinds --context peers     # Key bindings of the Peers tab`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd)
	},
}

var callCmd = &cobra.Command{
	Use:   "call <method> [args...]",
	Short: "Call one RPC method and print the result",
	Long: `Call one RPC method through the same validation as the TUI.

Each argument is one JSON value: numbers and booleans as-is, strings in
double quotes, arrays and objects as JSON. An empty argument skips an
optional parameter. Without arguments, they are read comma-separated from
piped stdin, or prompted for on a terminal.

Examples:
  bitcoin-tui call getblockhash 840000
  bitcoin-tui call getblock '"<hash>"' 1 --filter 'tx[0]'
  bitcoin-tui call getblockchaininfo -o yaml
  echo '"<txid>", true' | bitcoin-tui call getrawtransaction`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd, args[0], args[1:])
	},
}

var methodsCmd = &cobra.Command{
	Use:   "methods [name]",
	Short: "List the RPC method catalog or show one method's help",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.MethodsOptions{Category: flagCategory, OutputFormat: flagOutput}
		if len(args) > 0 {
			opts.Name = args[0]
		}
		return cli.PrintMethods(cmd.OutOrStdout(), catalog.Default(), opts)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the call journal, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if _, err := os.Stat(config.JournalPath); os.IsNotExist(err) {
			return fmt.Errorf("no journal at %s (run with --journal to record calls)", config.JournalPath)
		}
		j, err := journal.NewManager(config.JournalPath)
		if err != nil {
			return err
		}
		defer j.Close()
		if flagClear {
			n, err := j.GetCount()
			if err != nil {
				return err
			}
			if err := j.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Removed %d journal entries\n", n)
			return nil
		}
		if flagStats {
			return cli.PrintStats(cmd.OutOrStdout(), j, flagCategory, flagOutput)
		}
		return cli.PrintHistory(cmd.OutOrStdout(), j, cli.HistoryOptions{
			Method:       flagMethod,
			Limit:        flagLimit,
			OutputFormat: flagOutput,
		})
	},
}

var keybindsCmd = &cobra.Command{
	Use:   "keybinds",
	Short: "List the active key bindings or export the defaults",
	Long: `List the key bindings the TUI uses, including overrides from
~/.bitcoin-tui/keybinds.json.

With --export the default bindings are written to keybinds.json as a
starting point for customisation. An existing file is kept unless --force
is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if flagExport {
			if _, err := os.Stat(config.KeybindsFile); err == nil && !flagForce {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.KeybindsFile)
			}
			if err := keybinds.SaveConfig(keybinds.ExportDefaults(), config.KeybindsFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Default keybinds written to %s\n", config.KeybindsFile)
			return nil
		}
		registry, err := keybinds.LoadOrDefault(config.KeybindsFile)
		if err != nil {
			return err
		}
		return cli.PrintKeybinds(cmd.OutOrStdout(), registry, flagContext, flagOutput)
	},
}

// Connection flags shared by the TUI and `call`
var connFlags *config.Flags

// Flags for call
var (
	flagWallet string
	flagOutput string
	flagFilter string
	flagSave   string
)

// Flags for methods and history
var (
	flagCategory string
	flagMethod   string
	flagLimit    int
	flagStats    bool
	flagClear    bool
)

// Flags for keybinds
var (
	flagContext string
	flagExport  bool
	flagForce   bool
)

func init() {
	connFlags = config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.MarkFlagsMutuallyExclusive("testnet", "testnet4", "regtest", "signet")

	callCmd.Flags().StringVarP(&flagWallet, "wallet", "w", "", "Wallet for wallet methods")
	callCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output format (json/yaml/body/text)")
	callCmd.Flags().StringVarP(&flagFilter, "filter", "f", "", "JMESPath expression or $(command) applied to the result")
	callCmd.Flags().StringVarP(&flagSave, "save", "s", "", "Save output to file")

	methodsCmd.Flags().StringVarP(&flagCategory, "category", "c", "", "Only list general or wallet methods")
	methodsCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output format (text/json/yaml)")

	historyCmd.Flags().StringVarP(&flagMethod, "method", "m", "", "Only show calls to this method")
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	historyCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output format (text/json/yaml)")
	historyCmd.Flags().BoolVar(&flagStats, "stats", false, "Show per-method call statistics instead of entries")
	historyCmd.Flags().StringVarP(&flagCategory, "category", "c", "", "With --stats, only general or wallet methods")
	historyCmd.Flags().BoolVar(&flagClear, "clear", false, "Delete all journaled calls")
	historyCmd.MarkFlagsMutuallyExclusive("clear", "stats")

	keybindsCmd.Flags().StringVar(&flagContext, "context", "", "Only list bindings of this context")
	keybindsCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output format (text/json/yaml)")
	keybindsCmd.Flags().BoolVar(&flagExport, "export", false, "Write the default bindings to keybinds.json")
	keybindsCmd.Flags().BoolVar(&flagForce, "force", false, "With --export, overwrite an existing keybinds.json")

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(keybindsCmd)
}

// node bundles what both the TUI and `call` need from the resolved settings.
type node struct {
	settings config.Settings
	client   *rpc.Client
	journal  *journal.Manager
	closers  []io.Closer
}

func (n *node) Close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		_ = n.closers[i].Close()
	}
}

// recorder returns the journal as an engine.Recorder, nil when disabled.
func (n *node) recorder() engine.Recorder {
	if n.journal == nil {
		return nil
	}
	return n.journal
}

func setup(cmd *cobra.Command) (*node, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	settings, err := connFlags.Resolve(cmd.Flags())
	if err != nil {
		return nil, err
	}

	n := &node{settings: settings}

	logCloser, err := logging.Setup(logging.Options{Debug: settings.Debug, File: settings.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	n.closers = append(n.closers, logCloser)

	rpcCfg := rpc.Config{
		URL:      settings.RPCURL(),
		User:     settings.User,
		Password: settings.Password,
		Timeout:  settings.RequestTimeout(),
	}
	if settings.UsesCookie() {
		cookie, err := settings.CookiePath()
		if err != nil {
			n.Close()
			return nil, err
		}
		rpcCfg.CookiePath = cookie
	}
	n.client = rpc.NewClient(rpcCfg)

	if settings.Journal {
		j, err := journal.NewManager(config.JournalPath)
		if err != nil {
			n.Close()
			return nil, err
		}
		n.journal = j
		n.closers = append(n.closers, j)
	}

	log.Info().
		Str("version", version).
		Str("url", settings.RPCURL()).
		Str("network", settings.Network).
		Bool("cookie", settings.UsesCookie()).
		Str("zmq", settings.ZMQAddress()).
		Bool("journal", settings.Journal).
		Msg("starting")

	return n, nil
}

func runTUI(cmd *cobra.Command) error {
	n, err := setup(cmd)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := rpc.Probe(ctx, n.client, rpc.ProbeOptions{Attempts: probeAttempts, Delay: probeDelay}); err != nil {
		if !rpc.IsWarmingUp(err) {
			return fmt.Errorf("cannot reach node at %s: %w", n.settings.RPCURL(), err)
		}
		log.Warn().Err(err).Msg("node still warming up, starting anyway")
	}

	if addr := n.settings.MetricsAddr; addr != "" {
		metrics.Serve(ctx, addr)
	}

	registry, err := keybinds.LoadOrDefault(config.KeybindsFile)
	if err != nil {
		return fmt.Errorf("failed to load keybinds: %w", err)
	}

	opts := tui.Options{
		Caller:       n.client,
		Catalog:      catalog.Default(),
		Keybinds:     registry,
		Interval:     n.settings.PollInterval(),
		RecentBlocks: n.settings.RecentBlocks,
		ZMQBuffer:    n.settings.ZMQBuffer,
		Endpoint:     n.settings.RPCURL(),
	}
	if n.journal != nil {
		opts.Journal = n.journal
	}
	if addr := n.settings.ZMQAddress(); addr != "" {
		sub := zmq.NewSubscriber(addr)
		sub.Start(ctx)
		opts.Events = sub
	}

	return tui.Run(ctx, opts)
}

func runCall(cmd *cobra.Command, method string, args []string) error {
	n, err := setup(cmd)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := cli.CallOptions{
		Method:       method,
		Args:         args,
		Wallet:       flagWallet,
		OutputFormat: flagOutput,
		Filter:       flagFilter,
		SavePath:     flagSave,
		Stdout:       cmd.OutOrStdout(),
		Stderr:       cmd.ErrOrStderr(),
		Interactive:  cli.IsInteractive(),
	}
	if len(args) == 0 && (opts.Interactive || cli.StdinPiped()) {
		opts.Stdin = os.Stdin
	}
	return cli.Call(ctx, n.client, n.recorder(), opts)
}
