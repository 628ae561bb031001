// Package cli provides the command-line interface for scribeq.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/kweber/scribeq/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scribeq",
	Short: "Batch audio transcription client",
	Long: `Scribeq uploads batches of audio files to a scribeq server, follows
transcription progress, and downloads the finished transcript archive.

Results are held in memory on the server and delivered exactly once, so
download the archive before its retention window expires.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"server URL (default $SCRIBEQ_SERVER_URL or http://localhost:8134)")
}

// newClient builds a client from the global --server flag.
func newClient() *client.Client {
	return client.New(serverURL)
}
