package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Settings with optional fields so only keys present in
// the file override defaults.
type fileConfig struct {
	Host         *string `yaml:"host" toml:"host" json:"host"`
	Port         *int    `yaml:"port" toml:"port" json:"port"`
	Network      *string `yaml:"network" toml:"network" json:"network"`
	CookieFile   *string `yaml:"rpccookiefile" toml:"rpccookiefile" json:"rpccookiefile"`
	User         *string `yaml:"rpcuser" toml:"rpcuser" json:"rpcuser"`
	Password     *string `yaml:"rpcpassword" toml:"rpcpassword" json:"rpcpassword"`
	Interval     *int    `yaml:"interval" toml:"interval" json:"interval"`
	Timeout      *int    `yaml:"timeout" toml:"timeout" json:"timeout"`
	ZMQHost      *string `yaml:"zmqhost" toml:"zmqhost" json:"zmqhost"`
	ZMQPort      *int    `yaml:"zmqport" toml:"zmqport" json:"zmqport"`
	ZMQBuffer    *int    `yaml:"zmq_buffer" toml:"zmq_buffer" json:"zmq_buffer"`
	RecentBlocks *int    `yaml:"recent_blocks" toml:"recent_blocks" json:"recent_blocks"`
	Journal      *bool   `yaml:"journal" toml:"journal" json:"journal"`
	Debug        *bool   `yaml:"debug" toml:"debug" json:"debug"`
	LogFile      *string `yaml:"log_file" toml:"log_file" json:"log_file"`
	MetricsAddr  *string `yaml:"metrics_addr" toml:"metrics_addr" json:"metrics_addr"`
}

// LoadFile overlays the settings file at path onto s. The format follows the
// extension: .yaml/.yml, .toml, .json or .jsonc.
func LoadFile(path string, s *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".toml":
		_, err = toml.Decode(string(data), &fc)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &fc)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	fc.apply(s)
	return nil
}

func (fc fileConfig) apply(s *Settings) {
	setString(&s.Host, fc.Host)
	setInt(&s.Port, fc.Port)
	setString(&s.Network, fc.Network)
	setString(&s.CookieFile, fc.CookieFile)
	setString(&s.User, fc.User)
	setString(&s.Password, fc.Password)
	setInt(&s.Interval, fc.Interval)
	setInt(&s.Timeout, fc.Timeout)
	setString(&s.ZMQHost, fc.ZMQHost)
	setInt(&s.ZMQPort, fc.ZMQPort)
	setInt(&s.ZMQBuffer, fc.ZMQBuffer)
	setInt(&s.RecentBlocks, fc.RecentBlocks)
	setBool(&s.Journal, fc.Journal)
	setBool(&s.Debug, fc.Debug)
	setString(&s.LogFile, fc.LogFile)
	setString(&s.MetricsAddr, fc.MetricsAddr)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
