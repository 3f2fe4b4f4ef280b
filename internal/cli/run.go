package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/regression"
)

var runProgress bool

var runCmd = &cobra.Command{
	Use:   "run [document_id...]",
	Short: "Run detection over stored documents",
	Long: `Run evaluates every stored document, or only the ids given, with the
configured worker pool and prints the batch tallies.

Examples:
  regress run
  regress run 12 40 41 --progress`,
	Args: cobra.ArbitraryArgs,
	RunE: runDetection,
}

func init() {
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "Print one line per document to stderr")
	rootCmd.AddCommand(runCmd)
}

func runDetection(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var progress regression.ProgressFunc
	if runProgress {
		errOut := cmd.ErrOrStderr()
		progress = func(ev regression.BatchEvent) {
			if ev.Type != regression.BatchEventDocument {
				return
			}
			line := fmt.Sprintf("[%d/%d] %s %s", ev.Done, ev.Total, ev.DocumentID, ev.Outcome)
			if ev.Error != "" {
				line += ": " + ev.Error
			}
			fmt.Fprintln(errOut, line)
		}
	}

	result, err := a.Runner.RunDetectionNow(cmd.Context(), a.Engine, args, progress)
	if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
		return perr
	}
	return err
}
