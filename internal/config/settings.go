package config

import (
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

// Networks supported by the node.
const (
	NetworkMain     = "main"
	NetworkTestnet  = "testnet"
	NetworkTestnet4 = "testnet4"
	NetworkRegtest  = "regtest"
	NetworkSignet   = "signet"
)

var defaultPorts = map[string]int{
	NetworkMain:     8332,
	NetworkTestnet:  18332,
	NetworkTestnet4: 48332,
	NetworkRegtest:  18443,
	NetworkSignet:   38332,
}

// dataSubdirs are the per-network data directories below the node's datadir
var dataSubdirs = map[string]string{
	NetworkMain:     "",
	NetworkTestnet:  "testnet3",
	NetworkTestnet4: "testnet4",
	NetworkRegtest:  "regtest",
	NetworkSignet:   "signet",
}

// Settings is the resolved runtime configuration. It is read-only once the
// TUI starts.
type Settings struct {
	Host         string
	Port         int // 0 derives the port from Network
	Network      string
	CookieFile   string
	User         string
	Password     string
	Interval     int // seconds between telemetry polls
	Timeout      int // seconds per RPC request
	ZMQHost      string
	ZMQPort      int // 0 disables the push subscriber
	ZMQBuffer    int
	RecentBlocks int
	Journal      bool
	Debug        bool
	LogFile      string
	MetricsAddr  string
}

// Default returns settings for a local mainnet node.
func Default() Settings {
	return Settings{
		Host:         "127.0.0.1",
		Network:      NetworkMain,
		Interval:     5,
		Timeout:      30,
		ZMQHost:      "127.0.0.1",
		ZMQBuffer:    256,
		RecentBlocks: 72,
		LogFile:      LogFile,
	}
}

// Validate rejects settings the rest of the program cannot run with.
func (s Settings) Validate() error {
	if _, ok := defaultPorts[s.Network]; !ok {
		return fmt.Errorf("unknown network %q (want main, testnet, testnet4, regtest or signet)", s.Network)
	}
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.ZMQPort < 0 || s.ZMQPort > 65535 {
		return fmt.Errorf("zmq port %d out of range", s.ZMQPort)
	}
	if s.Interval < 1 {
		return fmt.Errorf("interval must be at least 1 second, got %d", s.Interval)
	}
	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}
	if s.ZMQBuffer < 1 {
		return fmt.Errorf("zmq buffer must be positive, got %d", s.ZMQBuffer)
	}
	if s.RecentBlocks < 0 {
		return fmt.Errorf("recent blocks cannot be negative, got %d", s.RecentBlocks)
	}
	if (s.User == "") != (s.Password == "") {
		return fmt.Errorf("rpcuser and rpcpassword must be given together")
	}
	return nil
}

// RPCPort returns the explicit port or the network default.
func (s Settings) RPCPort() int {
	if s.Port != 0 {
		return s.Port
	}
	return defaultPorts[s.Network]
}

// RPCURL is the node-level JSON-RPC endpoint.
func (s Settings) RPCURL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.RPCPort()))
}

// ZMQAddress returns the push socket endpoint, or "" when disabled.
func (s Settings) ZMQAddress() string {
	if s.ZMQPort == 0 {
		return ""
	}
	return "tcp://" + net.JoinHostPort(s.ZMQHost, strconv.Itoa(s.ZMQPort))
}

// PollInterval is the telemetry tick period.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

// RequestTimeout bounds each RPC request.
func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// UsesCookie reports whether cookie authentication applies.
func (s Settings) UsesCookie() bool {
	return s.User == ""
}

// CookiePath returns the explicit cookie file or the node's default location
// for the selected network.
func (s Settings) CookiePath() (string, error) {
	if s.CookieFile != "" {
		return ExpandPath(s.CookieFile)
	}

	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(nodeDataDir(home, runtime.GOOS), dataSubdirs[s.Network], ".cookie"), nil
}

func nodeDataDir(home, goos string) string {
	if goos == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "Bitcoin")
	}
	return filepath.Join(home, ".bitcoin")
}
