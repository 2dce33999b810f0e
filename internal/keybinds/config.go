package keybinds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the user's keybinding configuration.
// Each section maps a key (or comma-separated keys) to an action name.
type Config struct {
	Version      string            `json:"version"`
	Global       map[string]string `json:"global,omitempty"`
	TabBar       map[string]string `json:"tabbar,omitempty"`
	Dashboard    map[string]string `json:"dashboard,omitempty"`
	Peers        map[string]string `json:"peers,omitempty"`
	Methods      map[string]string `json:"methods,omitempty"`
	Detail       map[string]string `json:"detail,omitempty"`
	Transactions map[string]string `json:"transactions,omitempty"`
	Zmq          map[string]string `json:"zmq,omitempty"`
	Modal        map[string]string `json:"modal,omitempty"`
	Viewer       map[string]string `json:"viewer,omitempty"`
	TextInput    map[string]string `json:"text_input,omitempty"`
}

// LoadConfig loads keybinding configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid keybinds.json format: %w", err)
	}

	return &config, nil
}

// SaveConfig saves keybinding configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create keybinds directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) sections() map[Context]map[string]string {
	return map[Context]map[string]string{
		ContextGlobal:       c.Global,
		ContextTabBar:       c.TabBar,
		ContextDashboard:    c.Dashboard,
		ContextPeers:        c.Peers,
		ContextMethods:      c.Methods,
		ContextDetail:       c.Detail,
		ContextTransactions: c.Transactions,
		ContextZmq:          c.Zmq,
		ContextModal:        c.Modal,
		ContextViewer:       c.Viewer,
		ContextTextInput:    c.TextInput,
	}
}

// ApplyConfig applies user configuration to a registry.
// User bindings override default bindings; an empty action unbinds the key.
func ApplyConfig(registry *Registry, config *Config) error {
	for context, bindings := range config.sections() {
		for keys, actionStr := range bindings {
			for _, key := range strings.Split(keys, ",") {
				key = strings.TrimSpace(key)
				if err := ValidateKey(key); err != nil {
					return fmt.Errorf("context '%s': %w", context, err)
				}
				if actionStr == "" {
					registry.Unregister(context, key)
					continue
				}
				registry.Register(context, key, Action(actionStr))
			}
		}
	}
	return nil
}

// LoadOrDefault loads user config if it exists, otherwise returns default registry
func LoadOrDefault(configPath string) (*Registry, error) {
	registry := NewDefaultRegistry()

	if configPath == "" {
		return registry, nil
	}

	if _, err := os.Stat(configPath); err == nil {
		config, err := LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load keybinds.json: %w", err)
		}

		if result := NewValidator().ValidateConfig(config); result.HasErrors() {
			return nil, fmt.Errorf("invalid keybinds.json:\n%s", result.String())
		}

		if err := ApplyConfig(registry, config); err != nil {
			return nil, fmt.Errorf("failed to apply keybinds config: %w", err)
		}
		if err := registry.Validate(); err != nil {
			return nil, fmt.Errorf("invalid keybinds.json: %w", err)
		}
	}

	return registry, nil
}

// ExportDefaults returns the default bindings as a config, one key per entry.
func ExportDefaults() *Config {
	reg := NewDefaultRegistry()
	config := &Config{Version: "1.0"}
	out := map[Context]*map[string]string{
		ContextGlobal:       &config.Global,
		ContextTabBar:       &config.TabBar,
		ContextDashboard:    &config.Dashboard,
		ContextPeers:        &config.Peers,
		ContextMethods:      &config.Methods,
		ContextDetail:       &config.Detail,
		ContextTransactions: &config.Transactions,
		ContextZmq:          &config.Zmq,
		ContextModal:        &config.Modal,
		ContextViewer:       &config.Viewer,
		ContextTextInput:    &config.TextInput,
	}
	for context, section := range out {
		m := make(map[string]string)
		for key, action := range reg.bindings[context] {
			m[key] = string(action)
		}
		*section = m
	}
	return config
}
