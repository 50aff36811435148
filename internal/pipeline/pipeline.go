package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/internal/artifacts"
	"github.com/rayfieldsquare/qoe-pipeline/internal/observability/metrics"
	"github.com/rayfieldsquare/qoe-pipeline/internal/runmeta"
	"github.com/rayfieldsquare/qoe-pipeline/internal/transform"
	"github.com/rayfieldsquare/qoe-pipeline/internal/validation"
	"github.com/rayfieldsquare/qoe-pipeline/internal/warehouse"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// Pipeline wires the ETL stages over shared infrastructure. Each stage
// reads its input artifact and writes its output artifact, so stages
// can run inside one process or as separate invocations against the
// same artifact store.
type Pipeline struct {
	artifacts artifacts.Store
	runMeta   *runmeta.Store
	warehouse *warehouse.Client
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	validatorConfig *validation.Config
	loaderConfig    *warehouse.LoaderConfig
}

// Summary is the outcome of a full pipeline run.
type Summary struct {
	RunID      string                   `json:"run_id"`
	Validation *models.ValidationReport `json:"validation"`
	Load       *models.LoadReport       `json:"load"`
}

// New creates a pipeline. The run metadata store and metrics are
// optional; the artifact store and warehouse client are not.
func New(
	store artifacts.Store,
	runMeta *runmeta.Store,
	wh *warehouse.Client,
	m *metrics.Metrics,
	validatorConfig *validation.Config,
	loaderConfig *warehouse.LoaderConfig,
	logger *logrus.Logger,
) (*Pipeline, error) {
	if store == nil {
		return nil, errors.NewConfigurationError("artifact store is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if validatorConfig == nil {
		validatorConfig = validation.DefaultConfig()
	}
	if loaderConfig == nil {
		loaderConfig = warehouse.DefaultLoaderConfig()
	}
	return &Pipeline{
		artifacts:       store,
		runMeta:         runMeta,
		warehouse:       wh,
		metrics:         m,
		logger:          logger,
		validatorConfig: validatorConfig,
		loaderConfig:    loaderConfig,
	}, nil
}

// NewRunID generates a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Run executes validate, gate, transform and load for one dataset. A
// failed quality gate aborts before any enrichment or warehouse write.
func (p *Pipeline) Run(ctx context.Context, runID string) (*Summary, error) {
	if runID == "" {
		runID = NewRunID()
	}
	log := p.logger.WithField("run_id", runID)
	log.Info("Starting pipeline run")

	passed, report, err := p.Validate(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !passed {
		p.saveValue(ctx, runID, "status", "quality_gate_failed")
		return nil, errors.NewQualityGateError(report.DataQualityScore, p.validatorConfig.QualityThreshold)
	}

	if err := p.Transform(ctx, runID); err != nil {
		return nil, err
	}

	loadReport, err := p.Load(ctx, runID)
	if err != nil {
		return nil, err
	}

	p.saveValue(ctx, runID, "status", "succeeded")
	log.WithFields(logrus.Fields{
		"quality_score": report.DataQualityScore,
		"inserted":      loadReport.Inserted,
	}).Info("Pipeline run complete")

	return &Summary{RunID: runID, Validation: report, Load: loadReport}, nil
}

// Validate reads the raw dataset, repairs and scores it, persists the
// clean dataset and the report, and reports whether the quality gate
// passed. The clean artifact is written even on gate failure so the
// run can be inspected.
func (p *Pipeline) Validate(ctx context.Context, runID string) (bool, *models.ValidationReport, error) {
	done := p.timeStage("validate")
	defer done()

	raw, err := p.artifacts.ReadRaw(ctx, artifacts.RawDataset)
	if err != nil {
		return false, nil, err
	}

	validator := validation.NewValidator(p.validatorConfig, p.logger)
	passed, clean, report := validator.Validate(raw)

	if err := p.artifacts.WriteClean(ctx, artifacts.CleanDataset, clean); err != nil {
		return false, nil, err
	}

	if p.metrics != nil {
		p.metrics.RowsProcessed.WithLabelValues("validate").Add(float64(report.TotalRecords))
		p.metrics.QualityScore.Set(report.DataQualityScore)
	}
	if p.runMeta != nil {
		if err := p.runMeta.SaveValidationReport(ctx, runID, report); err != nil {
			p.logger.WithField("error", err.Error()).Warn("Failed to persist validation report")
		}
		p.saveValue(ctx, runID, "quality_score", fmt.Sprintf("%.2f", report.DataQualityScore))
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":        runID,
		"records":       report.TotalRecords,
		"quality_score": report.DataQualityScore,
		"gate_passed":   passed,
	}).Info("Validation stage complete")

	return passed, report, nil
}

// Transform reads the clean dataset, derives all QoE features and
// persists the enriched dataset.
func (p *Pipeline) Transform(ctx context.Context, runID string) error {
	done := p.timeStage("transform")
	defer done()

	clean, err := p.artifacts.ReadClean(ctx, artifacts.CleanDataset)
	if err != nil {
		return err
	}

	enriched := transform.NewTransformer(p.logger).Transform(clean)

	if err := p.artifacts.WriteEnriched(ctx, artifacts.EnrichedDataset, enriched); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.RowsProcessed.WithLabelValues("transform").Add(float64(len(enriched)))
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"records": len(enriched),
	}).Info("Transform stage complete")

	return nil
}

// Load reads the enriched dataset and inserts it into the warehouse
// fact table, resolving dimensions on the way.
func (p *Pipeline) Load(ctx context.Context, runID string) (*models.LoadReport, error) {
	done := p.timeStage("load")
	defer done()

	if p.warehouse == nil {
		return nil, errors.NewConfigurationError("warehouse client is required for loading")
	}

	enriched, err := p.artifacts.ReadEnriched(ctx, artifacts.EnrichedDataset)
	if err != nil {
		return nil, err
	}

	if err := p.warehouse.Connect(ctx); err != nil {
		return nil, err
	}

	resolver, err := warehouse.NewResolver(ctx, p.warehouse, p.logger)
	if err != nil {
		return nil, err
	}

	loader, err := warehouse.NewLoader(p.loaderConfig, resolver, p.warehouse, p.logger)
	if err != nil {
		return nil, err
	}

	report, err := loader.Load(ctx, enriched)
	if err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.RowsProcessed.WithLabelValues("load").Add(float64(report.Processed))
		p.metrics.RowsInserted.Add(float64(report.Inserted))
		p.metrics.RowErrors.Add(float64(report.Errors))
		p.metrics.BatchesLoaded.Add(float64(report.Batches))
	}
	if p.runMeta != nil {
		if err := p.runMeta.SaveLoadReport(ctx, runID, report); err != nil {
			p.logger.WithField("error", err.Error()).Warn("Failed to persist load report")
		}
	}

	p.logger.WithFields(logrus.Fields{
		"run_id":   runID,
		"inserted": report.Inserted,
		"errors":   report.Errors,
	}).Info("Load stage complete")

	return report, nil
}

func (p *Pipeline) timeStage(stage string) func() {
	if p.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) saveValue(ctx context.Context, runID, name, value string) {
	if p.runMeta == nil {
		return
	}
	if err := p.runMeta.SetValue(ctx, runID, name, value); err != nil {
		p.logger.WithField("error", err.Error()).Warn("Failed to persist run metadata")
	}
}
