package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rayfieldsquare/qoe-pipeline/internal/pipeline"
)

type ValidateOptions struct {
	RunID      string
	ReportFile string
}

func NewValidateCmd() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the raw dataset and apply the quality gate",
		Long: `Reads the raw dataset artifact, repairs what can be repaired, writes
the clean dataset artifact and reports the data quality score. Exits
non-zero when the score is below the configured threshold.`,
		Example: `  # Validate with the default threshold
  qoectl validate

  # Write the report to a file
  qoectl validate --report report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().StringVarP(&opts.ReportFile, "report", "o", "", "Write the validation report as JSON to this file")

	return cmd
}

func runValidate(ctx context.Context, opts *ValidateOptions) error {
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

	passed, report, err := p.Validate(ctx, runID)
	if err != nil {
		return err
	}

	if opts.ReportFile != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.ReportFile, data, 0o644); err != nil {
			return err
		}
	}

	fmt.Printf("Run %s validated %d records, quality score %.2f\n",
		runID, report.TotalRecords, report.DataQualityScore)
	for _, v := range report.Violations {
		fmt.Printf("  %s: %d affected (%s)\n", v.Check, v.Affected, v.Action)
	}

	if !passed {
		return fmt.Errorf("data quality score %.2f is below the quality gate", report.DataQualityScore)
	}
	fmt.Println("Quality gate passed")
	return nil
}
