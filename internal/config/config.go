// Package config provides configuration loading and persistence for seshterm.
//
// Configuration is loaded from:
// 1. ~/.seshterm/config.json (file)
// 2. Environment variables (override file values)
//
// Environment variables:
//   - SESHTERM_ROWS, SESHTERM_COLS: Initial terminal size
//   - SESHTERM_SCROLLBACK: Scrollback rows kept per session
//   - SESHTERM_DELTA_HISTORY: Deltas kept for resuming observers
//   - SESHTERM_SUBSCRIBER_QUEUE: Undelivered deltas per observer before resync
//   - SESHTERM_LISTEN: HTTP/WebSocket listen address
//   - SESHTERM_SSH_LISTEN: SSH listen address (empty disables SSH)
//   - SESHTERM_SSH_HOST_KEY: SSH host key file
//   - SESHTERM_SHELL: Program run in the session
//   - SESHTERM_TERM: TERM value given to the program
//   - SESHTERM_CONFIG_DIR: Override config directory (for testing)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/trybotster/seshterm/internal/pty"
	"github.com/trybotster/seshterm/internal/session"
)

// Config holds all configuration for seshterm.
type Config struct {
	// Rows and Cols are the initial terminal dimensions.
	Rows int `json:"rows"`
	Cols int `json:"cols"`

	// Scrollback is the maximum number of scrollback rows.
	Scrollback int `json:"scrollback"`

	// DeltaHistory is how many recent deltas are kept so a reconnecting
	// observer can resume without a full snapshot.
	DeltaHistory int `json:"delta_history"`

	// SubscriberQueue bounds the undelivered deltas per observer.
	SubscriberQueue int `json:"subscriber_queue"`

	// InputQueue bounds pending writes toward the child.
	InputQueue int `json:"input_queue"`

	// Listen is the HTTP/WebSocket listen address.
	Listen string `json:"listen"`

	// SSHListen is the SSH listen address. Empty disables SSH.
	SSHListen string `json:"ssh_listen,omitempty"`

	// SSHHostKey is a PEM host key file. Empty generates one per run.
	SSHHostKey string `json:"ssh_host_key,omitempty"`

	// Shell is the program run in the session.
	Shell string `json:"shell"`

	// Term is the TERM value given to the program.
	Term string `json:"term"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	sc := session.DefaultConfig()
	return &Config{
		Rows:            sc.Rows,
		Cols:            sc.Cols,
		Scrollback:      sc.Scrollback,
		DeltaHistory:    sc.History,
		SubscriberQueue: sc.QueueSize,
		InputQueue:      sc.InputQueue,
		Listen:          "127.0.0.1:7681",
		SSHListen:       "",
		Shell:           pty.DefaultShell(),
		Term:            "xterm-256color",
	}
}

// ConfigDir returns the configuration directory path, creating it if necessary.
// Respects SESHTERM_CONFIG_DIR environment variable for testing.
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if testDir := os.Getenv("SESHTERM_CONFIG_DIR"); testDir != "" {
		if err := os.MkdirAll(testDir, 0700); err != nil {
			return "", fmt.Errorf("could not create config directory: %w", err)
		}
		return testDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".seshterm")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}

	return dir, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration from file and applies environment variable overrides.
// Priority: Environment variables > config file > defaults
//
// A missing file is not an error; a malformed one is.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	// Override with environment variables
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from the config file.
func (c *Config) loadFromFile() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() error {
	strs := []struct {
		env string
		dst *string
	}{
		{"SESHTERM_LISTEN", &c.Listen},
		{"SESHTERM_SSH_LISTEN", &c.SSHListen},
		{"SESHTERM_SSH_HOST_KEY", &c.SSHHostKey},
		{"SESHTERM_SHELL", &c.Shell},
		{"SESHTERM_TERM", &c.Term},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"SESHTERM_ROWS", &c.Rows},
		{"SESHTERM_COLS", &c.Cols},
		{"SESHTERM_SCROLLBACK", &c.Scrollback},
		{"SESHTERM_DELTA_HISTORY", &c.DeltaHistory},
		{"SESHTERM_SUBSCRIBER_QUEUE", &c.SubscriberQueue},
		{"SESHTERM_INPUT_QUEUE", &c.InputQueue},
	}
	for _, n := range ints {
		v := os.Getenv(n.env)
		if v == "" {
			continue
		}
		val, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", n.env, v, err)
		}
		*n.dst = val
	}
	return nil
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.Rows <= 0 || c.Cols <= 0:
		return fmt.Errorf("invalid terminal size %dx%d", c.Rows, c.Cols)
	case c.Rows > 0xffff || c.Cols > 0xffff:
		return fmt.Errorf("terminal size %dx%d too large", c.Rows, c.Cols)
	case c.Scrollback < 0:
		return fmt.Errorf("scrollback must not be negative, got %d", c.Scrollback)
	case c.DeltaHistory <= 0:
		return fmt.Errorf("delta_history must be positive, got %d", c.DeltaHistory)
	case c.SubscriberQueue <= 0:
		return fmt.Errorf("subscriber_queue must be positive, got %d", c.SubscriberQueue)
	case c.InputQueue <= 0:
		return fmt.Errorf("input_queue must be positive, got %d", c.InputQueue)
	case c.Listen == "":
		return errors.New("listen address must be set")
	case c.Shell == "":
		return errors.New("shell must be set")
	}
	return nil
}

// SessionConfig returns the session limits.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Rows:       c.Rows,
		Cols:       c.Cols,
		Scrollback: c.Scrollback,
		History:    c.DeltaHistory,
		QueueSize:  c.SubscriberQueue,
		InputQueue: c.InputQueue,
	}
}

// Save writes configuration to the config file.
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}
