package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/cancelreader"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sibterm/pkg/config"
	"sibterm/pkg/shellinabox"
	"sibterm/pkg/terminal"
)

var connectCmd = &cobra.Command{
	Use:   "connect <url>",
	Short: "Attach this terminal to a ShellInABox session",
	Long: `Open a ShellInABox session and bridge it to this terminal.

When stdin is a terminal it is switched to raw mode for the duration of the
session and window size changes are forwarded. The session ends when the remote
shell exits, when Ctrl+] then q is typed at a terminal, on SIGTERM or SIGHUP,
or on the first error.`,
	Example: `  # Connect to a local server:
  sibterm connect https://localhost:4200/

  # Accept a self-signed certificate:
  sibterm connect --no-verify https://10.0.0.5:4200/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConnect(cmd.Context(), GetConfig(), args[0], os.Stdin, os.Stdout)
	},
}

func runConnect(ctx context.Context, cfg *config.Config, url string, in *os.File, out io.Writer) error {
	client := shellinabox.NewClient(url, cfg.ClientOptions())
	defer client.Close()

	opts := terminal.Options{
		Input:            in,
		Output:           out,
		TranslateNewline: cfg.Terminal.TranslateNewline,
	}

	// Regular files cannot be registered with epoll or kqueue
	if input, err := cancelreader.NewReader(in); err == nil {
		defer input.Close()
		opts.Input = input
	} else {
		log.Debug().Err(err).Msg("Input is not cancellable, reading it directly")
	}

	dims := cfg.Dimensions()
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		opts.RawMode = terminal.NewRawMode(fd)
		opts.ExitSequence = true
		opts.Size = terminal.TerminalSize(fd)
		if size, err := opts.Size(); err == nil && size.Valid() {
			dims = size
		}

		resize, stopResize := terminal.NotifyResize()
		defer stopResize()
		opts.Resize = resize
	} else {
		log.Debug().Msg("Input is not a terminal, raw mode disabled")
	}

	bridge := terminal.NewBridge(client, opts)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	go func() {
		select {
		case sig := <-signals:
			log.Debug().Str("signal", sig.String()).Msg("Stopping session")
			bridge.Stop()
		case <-bridge.Done():
		}
	}()

	if opts.ExitSequence {
		fmt.Fprintln(os.Stderr, "Press Ctrl+] then 'q' to disconnect.")
	}
	if err := bridge.Start(ctx, dims); err != nil {
		return err
	}
	log.Debug().Str("session", bridge.Session()).Msg("Connected")

	return bridge.Wait()
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
