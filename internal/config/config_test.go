package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var envVars = []string{
	"SESHTERM_ROWS",
	"SESHTERM_COLS",
	"SESHTERM_SCROLLBACK",
	"SESHTERM_DELTA_HISTORY",
	"SESHTERM_SUBSCRIBER_QUEUE",
	"SESHTERM_INPUT_QUEUE",
	"SESHTERM_LISTEN",
	"SESHTERM_SSH_LISTEN",
	"SESHTERM_SSH_HOST_KEY",
	"SESHTERM_SHELL",
	"SESHTERM_TERM",
}

// setupTestEnv points the config directory at a temp dir and clears
// every override. t.Setenv restores the originals.
func setupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	t.Setenv("SESHTERM_CONFIG_DIR", tmpDir)
	for _, name := range envVars {
		t.Setenv(name, "")
	}
	return tmpDir
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")
	cfg := DefaultConfig()

	want := &Config{
		Rows:            24,
		Cols:            80,
		Scrollback:      10000,
		DeltaHistory:    256,
		SubscriberQueue: 64,
		InputQueue:      256,
		Listen:          "127.0.0.1:7681",
		Shell:           "/bin/zsh",
		Term:            "xterm-256color",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("DefaultConfig() mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigDirOverride(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "dir")
	t.Setenv("SESHTERM_CONFIG_DIR", tmpDir)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir failed: %v", err)
	}
	if dir != tmpDir {
		t.Errorf("ConfigDir = %q, want %q", dir, tmpDir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("config directory not created: %v", err)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "config.json"); path != want {
		t.Errorf("ConfigPath = %q, want %q", path, want)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	setupTestEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := setupTestEnv(t)

	data := `{"rows": 40, "cols": 132, "listen": "0.0.0.0:9000", "ssh_listen": ":2222"}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Rows != 40 || cfg.Cols != 132 {
		t.Errorf("size = %dx%d, want 40x132", cfg.Rows, cfg.Cols)
	}
	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, "0.0.0.0:9000")
	}
	if cfg.SSHListen != ":2222" {
		t.Errorf("SSHListen = %q, want %q", cfg.SSHListen, ":2222")
	}
	// Fields missing from the file keep their defaults.
	if cfg.Scrollback != 10000 {
		t.Errorf("Scrollback = %d, want default 10000", cfg.Scrollback)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	tmpDir := setupTestEnv(t)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("Load should fail on a malformed config file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	tmpDir := setupTestEnv(t)

	data := `{"rows": 40, "listen": "file:1"}`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SESHTERM_ROWS", "50")
	t.Setenv("SESHTERM_LISTEN", "env:2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Rows != 50 {
		t.Errorf("Rows = %d, want 50 (env should override file)", cfg.Rows)
	}
	if cfg.Listen != "env:2" {
		t.Errorf("Listen = %q, want %q (env should override file)", cfg.Listen, "env:2")
	}
}

func TestAllEnvOverrides(t *testing.T) {
	setupTestEnv(t)

	t.Setenv("SESHTERM_ROWS", "30")
	t.Setenv("SESHTERM_COLS", "100")
	t.Setenv("SESHTERM_SCROLLBACK", "500")
	t.Setenv("SESHTERM_DELTA_HISTORY", "32")
	t.Setenv("SESHTERM_SUBSCRIBER_QUEUE", "8")
	t.Setenv("SESHTERM_INPUT_QUEUE", "16")
	t.Setenv("SESHTERM_LISTEN", ":8080")
	t.Setenv("SESHTERM_SSH_LISTEN", ":2222")
	t.Setenv("SESHTERM_SSH_HOST_KEY", "/etc/seshterm/host_key")
	t.Setenv("SESHTERM_SHELL", "/bin/bash")
	t.Setenv("SESHTERM_TERM", "vt100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := &Config{
		Rows:            30,
		Cols:            100,
		Scrollback:      500,
		DeltaHistory:    32,
		SubscriberQueue: 8,
		InputQueue:      16,
		Listen:          ":8080",
		SSHListen:       ":2222",
		SSHHostKey:      "/etc/seshterm/host_key",
		Shell:           "/bin/bash",
		Term:            "vt100",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidNumericEnv(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("SESHTERM_COLS", "wide")

	_, err := Load()
	if err == nil {
		t.Fatal("Load should fail on a non-numeric SESHTERM_COLS")
	}
	if !strings.Contains(err.Error(), "SESHTERM_COLS") {
		t.Errorf("error %q should name the variable", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	setupTestEnv(t)

	cfg := DefaultConfig()
	cfg.Rows = 48
	cfg.SSHListen = "127.0.0.1:2222"
	cfg.Shell = "/usr/bin/fish"

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path, _ := ConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero rows", func(c *Config) { c.Rows = 0 }, "terminal size"},
		{"negative cols", func(c *Config) { c.Cols = -1 }, "terminal size"},
		{"too wide", func(c *Config) { c.Cols = 70000 }, "too large"},
		{"negative scrollback", func(c *Config) { c.Scrollback = -1 }, "scrollback"},
		{"no scrollback", func(c *Config) { c.Scrollback = 0 }, ""},
		{"zero history", func(c *Config) { c.DeltaHistory = 0 }, "delta_history"},
		{"zero subscriber queue", func(c *Config) { c.SubscriberQueue = 0 }, "subscriber_queue"},
		{"zero input queue", func(c *Config) { c.InputQueue = 0 }, "input_queue"},
		{"no listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"no shell", func(c *Config) { c.Shell = "" }, "shell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Shell = "/bin/sh"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows, cfg.Cols = 10, 20
	cfg.DeltaHistory = 7
	cfg.SubscriberQueue = 3

	sc := cfg.SessionConfig()
	if sc.Rows != 10 || sc.Cols != 20 {
		t.Errorf("size = %dx%d, want 10x20", sc.Rows, sc.Cols)
	}
	if sc.History != 7 || sc.QueueSize != 3 {
		t.Errorf("History/QueueSize = %d/%d, want 7/3", sc.History, sc.QueueSize)
	}
	if sc.Scrollback != cfg.Scrollback || sc.InputQueue != cfg.InputQueue {
		t.Errorf("SessionConfig() = %+v", sc)
	}
}
