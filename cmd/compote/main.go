package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/compote/internal/daemon"
	"github.com/1broseidon/compote/internal/ipc"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	jsonOutput bool
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "compote",
		Short:         "X11 compositing manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.config/compote/config.yaml)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON (default when stdout is not a terminal)")

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newOutputsCmd(),
		newWindowsCmd(),
		newRepaintCmd(),
		newReloadCmd(),
		newRestackCmd("raise", "Raise a window to the top of its layer", (*ipc.Client).Raise),
		newRestackCmd("lower", "Lower a window to the bottom of its layer", (*ipc.Client).Lower),
		newConfigCmd(),
	)
	return root
}

func newRunCmd() *cobra.Command {
	var display string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start compositing (foreground)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx, daemon.Options{ConfigPath: configPath, Display: display})
		},
	}
	cmd.Flags().StringVar(&display, "display", "", "X display to composite (default: $DISPLAY)")
	return cmd
}

// wantJSON reports whether output should be machine readable.
func wantJSON(w io.Writer) bool {
	if jsonOutput {
		return true
	}
	f, ok := w.(*os.File)
	return ok && !term.IsTerminal(int(f.Fd()))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
