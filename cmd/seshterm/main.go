// Seshterm - a shareable terminal session.
//
// This is the main entry point for the seshterm CLI. "serve" runs a shell
// in a pseudo-terminal, emulates its screen, and streams it to any number of
// observers over WebSocket and SSH. "attach" is the local viewer for such a
// stream, and "replay" renders a recorded byte stream offline.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trybotster/seshterm/internal/config"
	"github.com/trybotster/seshterm/internal/interp"
	"github.com/trybotster/seshterm/internal/notification"
	"github.com/trybotster/seshterm/internal/pty"
	"github.com/trybotster/seshterm/internal/qr"
	"github.com/trybotster/seshterm/internal/render"
	"github.com/trybotster/seshterm/internal/server"
	"github.com/trybotster/seshterm/internal/session"
	"github.com/trybotster/seshterm/internal/sshserver"
	"github.com/trybotster/seshterm/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Set up panic recovery to restore terminal on crash
	defer func() {
		if r := recover(); r != nil {
			// Restore terminal - in case we crashed while in raw/alt-screen mode
			fmt.Print("\033[?1049l") // Exit alt screen
			fmt.Print("\033[?25h")   // Show cursor
			fmt.Print("\033[0m")     // Reset colors

			fmt.Fprintf(os.Stderr, "\n\nPANIC: %v\n", r)
			os.Exit(1)
		}
	}()

	// Log to a file so the attach viewer doesn't get corrupted by log output
	logPath := os.Getenv("SESHTERM_LOG_FILE")
	if logPath == "" {
		logPath = "/tmp/seshterm.log"
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logLevel := slog.LevelInfo
	if os.Getenv("SESHTERM_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "seshterm",
		Short:         "Share a terminal session over WebSocket and SSH",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// serve command - run a shell and stream it
	serveCmd := &cobra.Command{
		Use:   "serve [command [args...]]",
		Short: "Run a command in a shared terminal",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", "", "HTTP/WebSocket listen address")
	serveCmd.Flags().String("ssh-listen", "", "SSH listen address (empty disables SSH)")
	serveCmd.Flags().Int("rows", 0, "Initial terminal rows")
	serveCmd.Flags().Int("cols", 0, "Initial terminal columns")
	serveCmd.Flags().Bool("qr", false, "Print the attach URL as a QR code")
	rootCmd.AddCommand(serveCmd)

	// attach command - the local viewer
	attachCmd := &cobra.Command{
		Use:   "attach <url>",
		Short: "Attach to a running session",
		Args:  cobra.ExactArgs(1),
		RunE:  runAttach,
	}
	attachCmd.Flags().Bool("view-only", false, "Watch without sending input or resizing")
	rootCmd.AddCommand(attachCmd)

	// status command - query a running server
	statusCmd := &cobra.Command{
		Use:   "status <url>",
		Short: "Show the state of a running session",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	// replay command - render a recorded byte stream
	replayCmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Feed a recorded terminal stream through the emulator and print the screen",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().Int("rows", 0, "Terminal rows (default: current terminal or 24)")
	replayCmd.Flags().Int("cols", 0, "Terminal columns (default: current terminal or 80)")
	replayCmd.Flags().Bool("ansi", false, "Print with colors and attributes")
	replayCmd.Flags().Bool("scrollback", false, "Include scrollback rows before the screen")
	replayCmd.Flags().Bool("notifications", false, "List OSC 9/777 notifications found in the recording")
	rootCmd.AddCommand(replayCmd)

	// config command
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE:  runConfig,
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a value from the config file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigGet,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE:  runConfigSet,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key from the config file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigDelete,
	})
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

// loadServeConfig merges the config file, environment and flags.
func loadServeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen, _ = flags.GetString("listen")
	}
	if flags.Changed("ssh-listen") {
		cfg.SSHListen, _ = flags.GetString("ssh-listen")
	}
	if flags.Changed("rows") {
		cfg.Rows, _ = flags.GetInt("rows")
	}
	if flags.Changed("cols") {
		cfg.Cols, _ = flags.GetInt("cols")
	}
	if len(args) > 0 {
		cfg.Shell = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := loadServeConfig(cmd, args)
	if err != nil {
		return err
	}
	var childArgs []string
	if len(args) > 1 {
		childArgs = args[1:]
	}

	logger.Info("Starting seshterm",
		"version", Version,
		"listen", cfg.Listen,
		"ssh_listen", cfg.SSHListen,
		"shell", cfg.Shell,
		"rows", cfg.Rows,
		"cols", cfg.Cols,
	)

	// Set up context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	proc := pty.New(uint16(cfg.Rows), uint16(cfg.Cols), logger)
	sess := session.New(cfg.SessionConfig(), logger,
		session.WithInputSink(proc),
		session.WithResizer(proc.Resize),
	)
	defer sess.Close()

	// The child's output feeds the session writer loop.
	pr, pw := io.Pipe()
	if err := proc.Spawn(pty.SpawnConfig{
		Command: cfg.Shell,
		Args:    childArgs,
		Term:    cfg.Term,
		Env:     []string{"SESHTERM_SESSION=" + sess.ID.String()},
		Output:  pw,
	}); err != nil {
		return fmt.Errorf("failed to start %s: %w", cfg.Shell, err)
	}
	defer proc.Kill()

	go func() {
		<-proc.Done()
		pw.Close()
	}()

	runDone := make(chan error, 1)
	go func() {
		runDone <- sess.Run(ctx, pr)
	}()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	srv := server.New(sess, server.DefaultConfig(), logger)
	go func() {
		if err := srv.Serve(ctx, ln); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	url := shareURL(ln.Addr())
	fmt.Printf("Session %s\n", sess.ID)
	fmt.Printf("Attach:  seshterm attach %s\n", url)

	if cfg.SSHListen != "" {
		sshLn, err := net.Listen("tcp", cfg.SSHListen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.SSHListen, err)
		}
		sshSrv := sshserver.New(sshLn, sess, sshserver.Config{HostKeyFile: cfg.SSHHostKey}, logger)
		go func() {
			if err := sshSrv.Serve(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("SSH server error", "error", err)
			}
		}()
		host, port, _ := net.SplitHostPort(sshLn.Addr().String())
		fmt.Printf("SSH:     ssh -t -p %s %s   (user %q is read-only)\n", port, displayHost(host), sshserver.ViewOnlyUser)
	}

	if showQR, _ := cmd.Flags().GetBool("qr"); showQR {
		printQR(os.Stdout, url)
	}

	// Run until the child exits or we are told to stop.
	select {
	case err := <-runDone:
		if err != nil && ctx.Err() == nil {
			logger.Error("Session ended with error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	logger.Info("Shutting down...")
	sess.Close()
	if err := proc.Kill(); err != nil {
		logger.Debug("Kill", "error", err)
	}

	exitErr := proc.Wait()
	fmt.Println("Session ended.")
	if exitErr != nil && ctx.Err() == nil {
		return fmt.Errorf("%s exited: %w", cfg.Shell, exitErr)
	}
	return nil
}

// shareURL turns a listen address into a URL others can reach, replacing
// an unspecified host with this machine's first non-loopback address.
func shareURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String()
	}
	return "http://" + net.JoinHostPort(displayHost(host), port)
}

func displayHost(host string) string {
	ip := net.ParseIP(host)
	if host != "" && (ip == nil || !ip.IsUnspecified()) {
		return host
	}
	if lan := lanAddress(); lan != "" {
		return lan
	}
	return "localhost"
}

// lanAddress returns the first non-loopback IPv4 address, if any.
func lanAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// printQR prints url as a QR code sized to the terminal, or just the URL
// when stdout is not a terminal.
func printQR(w io.Writer, url string) {
	width, height := 80, 40
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width, height = cols, rows
		}
	}
	if err := qr.Fprint(w, url, width, height); err != nil {
		fmt.Fprintf(w, "%v; attach with %s\n", err, url)
	}
}

// attachURL accepts "host:port" as well as a full URL.
func attachURL(arg string) string {
	if strings.Contains(arg, "://") {
		return strings.TrimRight(arg, "/")
	}
	return "http://" + strings.TrimRight(arg, "/")
}

func runAttach(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	url := attachURL(args[0])
	viewOnly, _ := cmd.Flags().GetBool("view-only")

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("attach needs a terminal")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, 15*time.Second)
	conn, err := server.NewClient(url, logger).Dial(dialCtx, nil)
	dialCancel()
	if err != nil {
		return fmt.Errorf("failed to attach to %s: %w", url, err)
	}
	defer conn.Close()

	viewer, err := tui.NewTUI(conn, tui.Options{
		ShareURL: url,
		ViewOnly: viewOnly,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	if err := viewer.Run(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	health, err := server.NewClient(attachURL(args[0]), slog.Default()).Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", args[0], err)
	}

	fmt.Printf("Status: %s\n", health.Status)
	fmt.Printf("Session: %s\n", health.Session)
	fmt.Printf("Size: %dx%d\n", health.Rows, health.Cols)
	fmt.Printf("Generation: %d\n", health.Generation)
	fmt.Printf("Observers: %d\n", health.Subscribers)
	return nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	var src io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()
		src = f
	}

	rows, _ := cmd.Flags().GetInt("rows")
	cols, _ := cmd.Flags().GetInt("cols")
	if rows <= 0 || cols <= 0 {
		tr, tc := terminalSize()
		if rows <= 0 {
			rows = tr
		}
		if cols <= 0 {
			cols = tc
		}
	}
	ansi, _ := cmd.Flags().GetBool("ansi")
	withScrollback, _ := cmd.Flags().GetBool("scrollback")

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("failed to read recording: %w", err)
	}
	out, err := replay(bytes.NewReader(data), rows, cols, ansi, withScrollback)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(out); err != nil {
		return err
	}

	if list, _ := cmd.Flags().GetBool("notifications"); list {
		for _, n := range notification.Detect(data) {
			fmt.Fprintf(os.Stderr, "notification (%s): %s\n", n.Type, tui.FormatNotification(n))
		}
	}
	return nil
}

// replay runs a recording through an emulator and returns the final
// screen as plain text or, with ansi set, as an ANSI repaint.
func replay(src io.Reader, rows, cols int, ansi, withScrollback bool) ([]byte, error) {
	emu := interp.NewEmulator(rows, cols, config.DefaultConfig().Scrollback, slog.Default())
	if _, err := io.Copy(emu, src); err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	t := emu.Terminal()
	snap, _ := t.Commit(nil)

	var sb strings.Builder
	if withScrollback {
		for _, line := range t.Scrollback().Lines() {
			if ansi {
				sb.Write(render.Line(line))
			} else {
				sb.WriteString(line.String())
			}
			sb.WriteString("\r\n")
		}
	}
	if ansi {
		sb.Write(render.Snapshot(snap))
		sb.WriteString("\x1b[0m\r\n")
		return []byte(sb.String()), nil
	}
	sb.WriteString(snap.Contents())
	sb.WriteByte('\n')
	return []byte(strings.ReplaceAll(sb.String(), "\r\n", "\n")), nil
}

// terminalSize returns stdout's size, or 24x80 when it is not a terminal.
func terminalSize() (rows, cols int) {
	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		if c, r, err := term.GetSize(fd); err == nil && r > 0 && c > 0 {
			return r, c
		}
	}
	return 24, 80
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fmt.Printf("Config file: %s\n", path)
	fmt.Printf("Size: %dx%d\n", cfg.Rows, cfg.Cols)
	fmt.Printf("Scrollback: %d rows\n", cfg.Scrollback)
	fmt.Printf("Delta history: %d\n", cfg.DeltaHistory)
	fmt.Printf("Subscriber queue: %d\n", cfg.SubscriberQueue)
	fmt.Printf("Listen: %s\n", cfg.Listen)
	if cfg.SSHListen != "" {
		fmt.Printf("SSH listen: %s\n", cfg.SSHListen)
	} else {
		fmt.Println("SSH listen: (disabled)")
	}
	fmt.Printf("Shell: %s\n", cfg.Shell)
	fmt.Printf("TERM: %s\n", cfg.Term)

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nWarning: %v\n", err)
	}
	return nil
}

// readConfigFile returns the raw config file as a map; a missing file is
// an empty map.
func readConfigFile() (map[string]interface{}, string, error) {
	configPath, err := config.ConfigPath()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get config path: %w", err)
	}

	jsonData := make(map[string]interface{})
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return jsonData, configPath, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, &jsonData); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	return jsonData, configPath, nil
}

// writeConfigFile writes jsonData back after checking it still loads as a
// valid configuration.
func writeConfigFile(configPath string, jsonData map[string]interface{}) error {
	output, err := json.MarshalIndent(jsonData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	cfg := config.DefaultConfig()
	if err := json.Unmarshal(output, cfg); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	if err := os.WriteFile(configPath, output, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	jsonData, _, err := readConfigFile()
	if err != nil {
		return err
	}

	value, ok := jsonData[key]
	if !ok {
		return fmt.Errorf("key not found: %s (known keys: %s)", key, strings.Join(configKeys(), ", "))
	}
	fmt.Println(formatValue(value))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !knownKey(key) {
		return fmt.Errorf("unknown key: %s (known keys: %s)", key, strings.Join(configKeys(), ", "))
	}

	jsonData, configPath, err := readConfigFile()
	if err != nil {
		return err
	}
	parsed := parseValue(value)
	jsonData[key] = parsed
	if err := writeConfigFile(configPath, jsonData); err != nil {
		return err
	}

	fmt.Printf("Set %s = %v\n", key, parsed)
	return nil
}

func runConfigDelete(cmd *cobra.Command, args []string) error {
	key := args[0]
	jsonData, configPath, err := readConfigFile()
	if err != nil {
		return err
	}
	if _, ok := jsonData[key]; !ok {
		return fmt.Errorf("key not found: %s", key)
	}
	delete(jsonData, key)
	if err := writeConfigFile(configPath, jsonData); err != nil {
		return err
	}

	fmt.Printf("Deleted %s\n", key)
	return nil
}

// configKeys lists the JSON keys of config.Config.
func configKeys() []string {
	data, _ := json.Marshal(config.Config{SSHListen: "x", SSHHostKey: "x"})
	var m map[string]interface{}
	_ = json.Unmarshal(data, &m)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func knownKey(key string) bool {
	for _, k := range configKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// parseValue tries a number, then a bool, then falls back to a string.
func parseValue(value string) interface{} {
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return intVal
	}
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	return value
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Check if it's an integer
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		output, _ := json.Marshal(v)
		return string(output)
	}
}
