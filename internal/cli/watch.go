package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kweber/scribeq/internal/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow live progress of a running batch",
	Long: `Follow live progress of a running batch over the server's websocket
feed. Each update is printed as a line; the command exits when the job
reaches a terminal state. Falls back to polling when the feed is
unavailable.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := newClient()
	id := args[0]

	var last client.JobStatus
	err := c.Stream(ctx, id, func(s client.JobStatus) error {
		printUpdate(s)
		last = s
		return nil
	})
	if err != nil {
		if errors.Is(err, client.ErrNotFound) || errors.Is(err, context.Canceled) {
			return err
		}
		// Older servers have no stream endpoint; fall back to the
		// polling UI.
		return RunJobProgress(c, id)
	}

	if last.Status == "failed" {
		return fmt.Errorf("job failed: %s", last.Error)
	}
	return nil
}

func printUpdate(s client.JobStatus) {
	line := fmt.Sprintf("[%s] %d/%d", s.Status, s.DoneFiles, s.TotalFiles)
	if s.Message != "" {
		line += " " + s.Message
	}
	fmt.Println(line)
}
