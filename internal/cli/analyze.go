package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/analyzer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Print the structural metrics of a markup file",
	Long: `Analyze extracts word count, internal link count, heading outline and
content hash from a file without touching the database.

Examples:
  regress analyze post.html
  regress analyze post.html --config ./regress.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	markup, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	return printJSON(cmd.OutOrStdout(), analyzer.Analyze(string(markup), cfg.Analyzer))
}
