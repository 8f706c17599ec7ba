package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/1broseidon/compote/internal/ipc"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show compositor status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ipc.NewClient().GetStatus()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wantJSON(out) {
				return printJSON(out, status)
			}
			printStatus(out, status)
			return nil
		},
	}
}

func printStatus(w io.Writer, s *ipc.StatusData) {
	fmt.Fprintf(w, "uptime_seconds:   %d\n", s.UptimeSeconds)
	fmt.Fprintf(w, "frames_painted:   %d\n", s.FramesPainted)
	fmt.Fprintf(w, "refresh_rate:     %d\n", s.RefreshRate)
	fmt.Fprintf(w, "redraw_time_ms:   %d (optimal %d, x%d)\n", s.RedrawTimeMs, s.OptimalTimeMs, s.TimeMultiplier)
	fmt.Fprintf(w, "frame_status:     %d\n", s.FrameStatus)
	fmt.Fprintf(w, "scheduler:        %s\n", s.SchedulerState)
	fmt.Fprintf(w, "idle:             %v\n", s.Idle)
	fmt.Fprintf(w, "damage:           %s\n", s.DamageMask)
	fmt.Fprintf(w, "windows:          %d (%d mapped, %d pending destroy)\n", s.Windows, s.MappedWindows, s.PendingDestroys)
	fmt.Fprintf(w, "outputs:          %d\n", s.Outputs)
}

func newOutputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "List output devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ipc.NewClient().GetOutputs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wantJSON(out) {
				return printJSON(out, data)
			}
			return printOutputs(out, data)
		},
	}
}

func printOutputs(w io.Writer, data *ipc.OutputsData) error {
	fmt.Fprintf(w, "screen: %s\n", formatRect(data.Screen))
	if data.Overlapping {
		fmt.Fprintln(w, "outputs overlap")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tGEOMETRY\tWORK AREA")
	for _, o := range data.Outputs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.ID, o.Name, formatRect(o.Rect), formatRect(o.WorkArea))
	}
	return tw.Flush()
}

func newWindowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "List the paint list, bottom to top",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := ipc.NewClient().GetWindows()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if wantJSON(out) {
				return printJSON(out, data)
			}
			return printWindows(out, data)
		},
	}
}

func printWindows(w io.Writer, data *ipc.WindowsData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tGEOMETRY\tOPACITY\tSTATE")
	for _, win := range data.Windows {
		fmt.Fprintf(tw, "%#x\t%s\t%s\t%d%%\t%s\n",
			win.ID, win.Type, formatRect(win.Rect), int(win.Opacity)*100/0xffff, windowState(win))
	}
	return tw.Flush()
}

func windowState(w ipc.WindowInfo) string {
	var flags []string
	if w.Mapped {
		flags = append(flags, "mapped")
	} else {
		flags = append(flags, "unmapped")
	}
	if w.Damaged {
		flags = append(flags, "damaged")
	}
	if w.Invisible {
		flags = append(flags, "invisible")
	}
	if w.Destroyed {
		flags = append(flags, "destroyed")
	}
	if w.BindFailed {
		flags = append(flags, "bind-failed")
	}
	if w.DirtyRects > 0 {
		flags = append(flags, "dirty:"+strconv.Itoa(w.DirtyRects))
	}
	return strings.Join(flags, ",")
}

func formatRect(r ipc.Rect) string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

func newRepaintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repaint",
		Short: "Damage the whole screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ipc.NewClient().Repaint()
		},
	}
}

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the daemon configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ipc.NewClient().Reload(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config: reloaded")
			return nil
		},
	}
}

func newRestackCmd(name, short string, op func(*ipc.Client, uint32) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <window-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseWindowID(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			return op(ipc.NewClient(), id)
		},
	}
}

// parseWindowID accepts decimal or 0x-prefixed hex ids as printed by
// xwininfo and xprop.
func parseWindowID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	return uint32(id), nil
}
