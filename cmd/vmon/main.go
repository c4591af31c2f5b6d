package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
	"golang.org/x/term"

	"github.com/Zuo-Peng/vmon/internal/api"
	"github.com/Zuo-Peng/vmon/internal/config"
)

var version = "dev"

// globals holds the persistent flags.
type globals struct {
	configPath string
	debug      bool
}

func main() {
	var g globals

	rootCmd := &cobra.Command{
		Use:           "vmon",
		Short:         "Visitor monitor - watch live shop visitors and stream session replays",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default ~/.config/vmon/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logs")

	rootCmd.AddCommand(liveCmd(&g))
	rootCmd.AddCommand(replayCmd(&g))
	rootCmd.AddCommand(historyCmd(&g))
	rootCmd.AddCommand(sessionsCmd(&g))
	rootCmd.AddCommand(visitorsCmd(&g))
	rootCmd.AddCommand(actionCmd(&g))
	rootCmd.AddCommand(labelCmd(&g))
	rootCmd.AddCommand(archiveCmd(&g))
	rootCmd.AddCommand(doctorCmd(&g))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config, or the default one.
func (g *globals) loadConfig() (*config.Config, error) {
	if g.configPath == "" {
		return config.Load()
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return config.LoadFile(g.configPath, home)
}

// env is what every command starts from.
type env struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	logFile *os.File
}

// setup loads the config and returns a logging context that is cancelled on
// SIGINT or SIGTERM. Logs go to stderr, or to the configured log file when
// toFile is set (the TUI owns the terminal).
func (g *globals) setup(toFile bool) (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	e := &env{cfg: cfg}
	var out io.Writer = os.Stderr
	format := log.FormatJSON
	if toFile {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		e.logFile, out = f, f
	} else if term.IsTerminal(int(os.Stderr.Fd())) {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format), log.WithOutput(out))
	if g.debug || cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	e.ctx, e.cancel = signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return e, nil
}

func (e *env) Close() {
	e.cancel()
	if e.logFile != nil {
		e.logFile.Close()
	}
}

// openLogFile opens the log file the TUI writes to while it owns the terminal.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func newClient(cfg *config.Config) (*api.Client, error) {
	return api.New(cfg.BaseURL,
		api.WithToken(cfg.Token),
		api.WithTimeout(cfg.RequestTimeout.Duration),
		api.WithRateLimit(cfg.RequestsPerSecond),
	)
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 0
}
