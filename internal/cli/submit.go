package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	submitToken  string
	submitOutput string
	submitDetach bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <audio-file>...",
	Short: "Upload audio files as a transcription batch",
	Long: `Upload one or more audio files as a single transcription batch.

The server needs a Hugging Face token for the diarization models. It is
taken from --token, the SCRIBEQ_TOKEN environment variable, or prompted
for interactively.

Examples:
  scribeq submit talk.wav
  scribeq submit -o transcripts.zip *.mp3
  scribeq submit --detach interview.flac   # print the job id and exit`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitToken, "token", "", "Hugging Face access token")
	submitCmd.Flags().StringVarP(&submitOutput, "output", "o", "", "write the result archive here when the batch completes")
	submitCmd.Flags().BoolVar(&submitDetach, "detach", false, "print the job id and exit without following progress")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	token, err := resolveToken()
	if err != nil {
		return err
	}

	c := newClient()
	id, err := c.Submit(context.Background(), args, token)
	if err != nil {
		return fmt.Errorf("submit batch: %w", err)
	}

	fmt.Printf("Job %s accepted (%d files)\n", id, len(args))

	if submitDetach {
		fmt.Printf("Use 'scribeq status %s' to follow it.\n", id)
		return nil
	}

	if err := RunJobProgress(c, id); err != nil {
		return err
	}

	if submitOutput == "" {
		fmt.Printf("Use 'scribeq download %s' to fetch the archive.\n", id)
		return nil
	}
	return saveArchive(c, id, submitOutput)
}

// resolveToken picks the credential from the flag, the environment, or
// an interactive prompt. An empty result is fine: the server may carry
// a default token.
func resolveToken() (string, error) {
	if submitToken != "" {
		return submitToken, nil
	}
	if t := os.Getenv("SCRIBEQ_TOKEN"); t != "" {
		return t, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Hugging Face token (empty to use server default): ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(raw), nil
}
