package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/go-authgate/recruitctl/tui"
)

// Version information set at build time.
var version = "dev"

func main() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// commandFunc is the body of a command once the app is wired.
type commandFunc func(ctx context.Context, a *app) error

// runCommand resolves configuration, picks the TUI or plain output and runs fn.
// Command results are buffered and written to stdout after the TUI has exited.
func runCommand(ctx context.Context, g *globalFlags, fn commandFunc) error {
	cfg, err := loadConfig(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	tty := !g.plain && isTTY()
	logger, closeLog, err := newLogger(cfg, tty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer closeLog()

	logger.Debug().
		Str("server_url", cfg.ServerURL).
		Str("state_file", cfg.StateFile).
		Dur("timeout", cfg.Timeout).
		Msg("configuration loaded")

	if insecureServer(cfg.ServerURL) {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Credentials will be transmitted in plaintext!",
		)
		fmt.Fprintln(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out bytes.Buffer
	defer func() { _, _ = os.Stdout.Write(out.Bytes()) }()

	if tty {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(ctx, cfg, logger, d, &out, g.output, fn)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		return runErr
	}

	d := tui.NewPlainDisplayer(os.Stderr)
	d.Banner()
	return run(ctx, cfg, logger, d, &out, g.output, fn)
}

func run(
	ctx context.Context,
	cfg Config,
	logger zerolog.Logger,
	d tui.Displayer,
	out *bytes.Buffer,
	format string,
	fn commandFunc,
) error {
	a, err := newApp(cfg, logger, d, out, format)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		d.Fatal(err)
		return err
	}
	return nil
}
