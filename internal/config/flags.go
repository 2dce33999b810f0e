package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flags holds the command-line values. Only flags the user actually set
// override the file and defaults.
type Flags struct {
	configPath  string
	host        string
	port        int
	cookieFile  string
	user        string
	password    string
	testnet     bool
	testnet4    bool
	regtest     bool
	signet      bool
	interval    int
	zmqHost     string
	zmqPort     int
	journal     bool
	debug       bool
	logFile     string
	metricsAddr string
}

// RegisterFlags declares the connection flags on fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{}
	fs.StringVar(&f.configPath, "config", "", "config file (default ~/.bitcoin-tui/config.{yaml,toml,json})")
	fs.StringVar(&f.host, "host", d.Host, "RPC host")
	fs.IntVar(&f.port, "port", 0, "RPC port (default depends on network)")
	fs.StringVar(&f.cookieFile, "rpccookiefile", "", "path to the node's .cookie file")
	fs.StringVar(&f.user, "rpcuser", "", "RPC username")
	fs.StringVar(&f.password, "rpcpassword", "", "RPC password")
	fs.BoolVar(&f.testnet, "testnet", false, "use testnet3")
	fs.BoolVar(&f.testnet4, "testnet4", false, "use testnet4")
	fs.BoolVar(&f.regtest, "regtest", false, "use regtest")
	fs.BoolVar(&f.signet, "signet", false, "use signet")
	fs.IntVarP(&f.interval, "interval", "i", d.Interval, "poll interval in seconds")
	fs.StringVar(&f.zmqHost, "zmqhost", d.ZMQHost, "ZMQ host")
	fs.IntVar(&f.zmqPort, "zmqport", 0, "ZMQ port (enables the ZMQ tab)")
	fs.BoolVar(&f.journal, "journal", false, "record RPC calls in ~/.bitcoin-tui/journal.db")
	fs.BoolVar(&f.debug, "debug", false, "write debug logs")
	fs.StringVar(&f.logFile, "log-file", "", "debug log path (default ~/.bitcoin-tui/debug.log)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return f
}

// Resolve builds Settings from defaults, the config file, then set flags.
func (f *Flags) Resolve(fs *pflag.FlagSet) (Settings, error) {
	s := Default()

	path := f.configPath
	if path == "" {
		path = DefaultConfigFile()
	}
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return Settings{}, err
		}
		if err := LoadFile(expanded, &s); err != nil {
			return Settings{}, err
		}
	}

	if err := f.apply(fs, &s); err != nil {
		return Settings{}, err
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func (f *Flags) apply(fs *pflag.FlagSet, s *Settings) error {
	changed := fs.Changed

	if changed("host") {
		s.Host = f.host
	}
	if changed("port") {
		s.Port = f.port
	}
	if changed("rpccookiefile") {
		s.CookieFile = f.cookieFile
	}
	if changed("rpcuser") {
		s.User = f.user
	}
	if changed("rpcpassword") {
		s.Password = f.password
	}
	if changed("interval") {
		s.Interval = f.interval
	}
	if changed("zmqhost") {
		s.ZMQHost = f.zmqHost
	}
	if changed("zmqport") {
		s.ZMQPort = f.zmqPort
	}
	if changed("journal") {
		s.Journal = f.journal
	}
	if changed("debug") {
		s.Debug = f.debug
	}
	if changed("log-file") {
		s.LogFile = f.logFile
	}
	if changed("metrics-addr") {
		s.MetricsAddr = f.metricsAddr
	}

	var networks []string
	for name, set := range map[string]bool{
		NetworkTestnet:  f.testnet,
		NetworkTestnet4: f.testnet4,
		NetworkRegtest:  f.regtest,
		NetworkSignet:   f.signet,
	} {
		if set {
			networks = append(networks, name)
		}
	}
	switch len(networks) {
	case 0:
	case 1:
		s.Network = networks[0]
	default:
		return fmt.Errorf("only one of --testnet, --testnet4, --regtest, --signet may be set")
	}
	return nil
}
