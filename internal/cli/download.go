package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kweber/scribeq/internal/client"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Download the transcript archive of a completed batch",
	Long: `Download the transcript archive of a completed batch.

The server delivers each archive exactly once and forgets the job
afterwards, so a second download of the same id will fail.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output path (default transcripts_<job-id>.zip)")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	id := args[0]
	dest := downloadOutput
	if dest == "" {
		dest = "transcripts_" + id + ".zip"
	}

	err := saveArchive(newClient(), id, dest)
	if errors.Is(err, client.ErrNotReady) {
		return fmt.Errorf("job %s has not completed yet, check 'scribeq status %s'", id, id)
	}
	return err
}

// saveArchive streams the result archive of a job into dest. A partial
// file is removed on failure so the single delivery is not wasted on a
// half-written zip left on disk.
func saveArchive(c *client.Client, id, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if err := c.Download(context.Background(), id, f); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	fmt.Printf("Saved %s\n", dest)
	return nil
}
