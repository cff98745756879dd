package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/bglane/pkg/lanes"
	"github.com/harun/bglane/pkg/monitor"
	"github.com/spf13/cobra"
)

var (
	jobsAddr    string
	jobsWidth   int
	jobsTimeout time.Duration
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show pending work of a running session",
	Long: `Query the monitor of a running session (bglane run --monitor) and print
the head of every lane that still has work, the same way %bgjobs does.`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsAddr, "addr", monitor.DefaultAddr, "monitor address")
	jobsCmd.Flags().IntVarP(&jobsWidth, "width", "n", 1, "items to show per lane")
	jobsCmd.Flags().DurationVar(&jobsTimeout, "timeout", 5*time.Second, "request timeout")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsWidth < 1 {
		return fmt.Errorf("--width must be at least 1")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), jobsTimeout)
	defer cancel()

	resp, err := monitor.FetchLanes(ctx, jobsAddr, jobsWidth)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if resp.State != lanes.StateEnabled.String() {
		fmt.Fprintf(out, "Background mode: %s\n", resp.State)
		return nil
	}

	printed := 0
	for _, lane := range resp.Lanes {
		for _, item := range lane.Items {
			fmt.Fprintf(out, "[%d] %q", lane.LaneID, item.Summary)
			if !item.SubmittedAt.IsZero() {
				fmt.Fprintf(out, " (queued %s)", formatDuration(time.Since(item.SubmittedAt)))
			}
			fmt.Fprintln(out)
			printed++
		}
	}
	if printed == 0 {
		fmt.Fprintln(out, "No background jobs")
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
