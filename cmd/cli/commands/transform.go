package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rayfieldsquare/qoe-pipeline/internal/pipeline"
)

type TransformOptions struct {
	RunID string
}

func NewTransformCmd() *cobra.Command {
	opts := &TransformOptions{}

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Derive QoE features from the clean dataset",
		Long: `Reads the clean dataset artifact produced by validate and writes the
enriched dataset artifact with all derived features and
classifications.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run identifier (generated when empty)")

	return cmd
}

func runTransform(ctx context.Context, opts *TransformOptions) error {
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

	if err := p.Transform(ctx, runID); err != nil {
		return err
	}

	fmt.Printf("Run %s transform complete\n", runID)
	return nil
}
