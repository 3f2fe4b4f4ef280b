package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/regression"
)

var (
	evalType      string
	evalPublished string
	evalDryRun    bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [document_id] [file]",
	Short: "Save a document and evaluate it against its history",
	Long: `Evaluate stores the file as the document's current content, records a
snapshot and prints the regression status. With --dry-run nothing is stored.

Examples:
  regress evaluate 42 post.html --type post
  regress evaluate 42 post.html --published 2025-01-10T00:00:00Z
  regress evaluate 42 draft.html --dry-run`,
	Args: cobra.ExactArgs(2),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalType, "type", "post", "Document type")
	evaluateCmd.Flags().StringVar(&evalPublished, "published", "", "Publish time (RFC 3339)")
	evaluateCmd.Flags().BoolVar(&evalDryRun, "dry-run", false, "Evaluate without storing the document or a snapshot")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	id := args[0]
	markup, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}

	doc := model.Document{ID: id, Type: evalType, Markup: string(markup)}
	if evalPublished != "" {
		doc.PublishedAt, err = time.Parse(time.RFC3339, evalPublished)
		if err != nil {
			return fmt.Errorf("invalid --published: %w", err)
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	docSettings, err := a.Settings.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	var status *model.RegressionStatus
	if evalDryRun {
		status, err = a.Evaluator.Peek(ctx, doc, a.Engine, docSettings)
	} else {
		if err := a.Documents.Put(ctx, doc); err != nil {
			return fmt.Errorf("storing document: %w", err)
		}
		if doc, err = a.Documents.Get(ctx, id); err != nil {
			return fmt.Errorf("loading document: %w", err)
		}
		status, err = a.Evaluator.Evaluate(ctx, doc, a.Engine, docSettings)
	}
	if err != nil && !errors.Is(err, regression.ErrStorageUnavailable) {
		return err
	}
	return printJSON(cmd.OutOrStdout(), status)
}
