package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rayfieldsquare/qoe-pipeline/internal/pipeline"
)

type LoadOptions struct {
	RunID string
}

func NewLoadCmd() *cobra.Command {
	opts := &LoadOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the enriched dataset into the warehouse",
		Long: `Reads the enriched dataset artifact, resolves every dimension key and
inserts fact rows in batches. Sessions already present in the fact
table are skipped, so replaying a dataset is safe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run identifier (generated when empty)")

	return cmd
}

func runLoad(ctx context.Context, opts *LoadOptions) error {
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

	report, err := p.Load(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s load complete\n", runID)
	fmt.Printf("  Processed: %d\n", report.Processed)
	fmt.Printf("  Inserted:  %d\n", report.Inserted)
	fmt.Printf("  Skipped:   %d\n", report.Errors)
	fmt.Printf("  Batches:   %d\n", report.Batches)

	return nil
}
