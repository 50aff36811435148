package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rayfieldsquare/qoe-pipeline/internal/pipeline"
)

type RunOptions struct {
	RunID string
}

func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: validate, gate, transform, load",
		Example: `  # Run against the configured artifact store and warehouse
  qoectl run

  # Re-run under an existing run ID
  qoectl run --run-id 7f9c35f2-1f2e-4b57-9a93-2f6f6a1d9f10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run identifier (generated when empty)")

	return cmd
}

func runRun(ctx context.Context, opts *RunOptions) error {
	logger := newLogger()

	p, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	runID := opts.RunID
	if runID == "" {
		runID = pipeline.NewRunID()
	}

	summary, err := p.Run(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s complete\n", summary.RunID)
	fmt.Printf("  Quality score: %.2f\n", summary.Validation.DataQualityScore)
	fmt.Printf("  Rows processed: %d\n", summary.Load.Processed)
	fmt.Printf("  Rows inserted:  %d\n", summary.Load.Inserted)
	fmt.Printf("  Rows skipped:   %d\n", summary.Load.Errors)

	return nil
}
