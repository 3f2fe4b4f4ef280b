package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history [document_id]",
	Short: "Print a document's snapshot history, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		history, err := a.Evaluator.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if history == nil {
			history = []model.Metrics{}
		}
		return printJSON(cmd.OutOrStdout(), history)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [document_id]",
	Short: "Clear a document's history so the next save starts a new baseline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.Evaluator.ResetBaseline(cmd.Context(), args[0], a.Engine); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "baseline reset for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resetCmd)
}
