package warehouse

import (
	"context"
	stderrors "errors"

	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// FactStore is the fact-table slice of the warehouse the loader
// depends on.
type FactStore interface {
	InsertFactBatch(ctx context.Context, batch []models.FactRow) (int64, error)
}

// LoaderConfig holds configuration for the fact loader.
type LoaderConfig struct {
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// DefaultLoaderConfig returns a default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{BatchSize: constants.DefaultBatchSize}
}

// Validate validates the loader configuration.
func (c *LoaderConfig) Validate() error {
	if c.BatchSize < 1 {
		return errors.NewConfigurationError("loader batch size must be positive")
	}
	return nil
}

// Loader streams enriched records into fact_playback_sessions. Rows
// that cannot be fully resolved against the dimensions are skipped and
// counted, never inserted partially; a batch flush failure aborts the
// load.
type Loader struct {
	config   *LoaderConfig
	resolver *Resolver
	store    FactStore
	logger   *logrus.Logger
}

// NewLoader creates a new fact loader.
func NewLoader(config *LoaderConfig, resolver *Resolver, store FactStore, logger *logrus.Logger) (*Loader, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{
		config:   config,
		resolver: resolver,
		store:    store,
		logger:   logger,
	}, nil
}

// Load resolves every record's surrogate keys and inserts the
// resulting fact rows in batches. Records whose session_id already
// exists in the fact table are absorbed silently, so replaying the
// same dataset yields zero new inserts.
func (l *Loader) Load(ctx context.Context, records []models.EnrichedSessionRecord) (*models.LoadReport, error) {
	report := &models.LoadReport{}
	batch := make([]models.FactRow, 0, l.config.BatchSize)

	l.logger.WithFields(logrus.Fields{
		"records":    len(records),
		"batch_size": l.config.BatchSize,
	}).Info("Starting fact load")

	for i := range records {
		report.Processed++

		row, err := l.buildRow(ctx, &records[i])
		if err != nil {
			if !errors.IsRecoverable(err) {
				return report, err
			}
			report.Errors++
			l.logger.WithFields(logrus.Fields{
				"session_id": records[i].SessionID,
				"error":      err.Error(),
			}).Warn("Skipping row with unresolvable dimensions")
			continue
		}

		batch = append(batch, row)
		if len(batch) >= l.config.BatchSize {
			if err := l.flush(ctx, batch, report); err != nil {
				return report, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := l.flush(ctx, batch, report); err != nil {
			return report, err
		}
	}

	l.logger.WithFields(logrus.Fields{
		"processed": report.Processed,
		"inserted":  report.Inserted,
		"errors":    report.Errors,
		"batches":   report.Batches,
	}).Info("Fact load complete")

	return report, nil
}

func (l *Loader) flush(ctx context.Context, batch []models.FactRow, report *models.LoadReport) error {
	inserted, err := l.store.InsertFactBatch(ctx, batch)
	if err != nil {
		return err
	}
	report.Inserted += int(inserted)
	report.Batches++

	l.logger.WithFields(logrus.Fields{
		"batch":    report.Batches,
		"rows":     len(batch),
		"inserted": inserted,
	}).Debug("Flushed fact batch")

	return nil
}

// buildRow resolves all seven surrogate keys for one record. Any
// dimension miss surfaces as a recoverable row error carrying the
// session ID.
func (l *Loader) buildRow(ctx context.Context, r *models.EnrichedSessionRecord) (models.FactRow, error) {
	dateKey, err := l.resolver.ResolveDateKey(r.Timestamp)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}
	timeKey, err := l.resolver.ResolveTimeKey(r.Timestamp)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}
	deviceKey, err := l.resolver.ResolveDeviceKey(ctx, r.DeviceType, r.OSVersion, r.AppVersion)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}
	cohortKey, err := l.resolver.ResolveCohortKey(r.UserID)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}
	geoKey, err := l.resolver.ResolveGeoKey(ctx, r.CountryCode, r.ISP, r.CDNPop)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}
	contentKey, err := l.resolver.ResolveContentKey(r.ContentID)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}
	networkKey, err := l.resolver.ResolveNetworkKey(r.NetworkType, r.NetworkQualityInferred)
	if err != nil {
		return models.FactRow{}, rowError(r.SessionID, err)
	}

	playbackSec := r.SessionDurationSec - r.RebufferDurationMs/1000
	if playbackSec < 0 {
		playbackSec = 0
	}

	return models.FactRow{
		SessionID:  r.SessionID,
		DateKey:    dateKey,
		TimeKey:    timeKey,
		DeviceKey:  deviceKey,
		CohortKey:  cohortKey,
		GeoKey:     geoKey,
		ContentKey: contentKey,
		NetworkKey: networkKey,

		SessionTimestamp: r.Timestamp,

		StartupTimeMs:      r.StartupTimeMs,
		StartupCategory:    r.StartupCategory,
		RebufferCount:      r.RebufferCount,
		RebufferDurationMs: r.RebufferDurationMs,
		RebufferRatio:      r.RebufferRatio,
		BufferingSeverity:  r.BufferingSeverity,

		AvgBitrateKbps: r.BitrateKbps,
		MinBitrateKbps: r.BitrateKbps,
		MaxBitrateKbps: r.BitrateKbps,
		Resolution:     r.Resolution,
		QualityScore:   r.QualityScore,

		FramesDropped:       r.FramesDropped,
		SessionDurationSec:  r.SessionDurationSec,
		PlaybackDurationSec: playbackSec,

		OverallQoEScore: r.OverallQoEScore,
		SessionQuality:  r.SessionQuality,

		VideoStartFailure: r.VideoStartFailure,
		ErrorOccurred:     r.ErrorOccurred,
	}, nil
}

// rowError wraps a dimension miss with the session it affected while
// preserving the recoverable classification.
func rowError(sessionID string, err error) error {
	var pe *errors.PipelineError
	if stderrors.As(err, &pe) {
		return pe.WithContext("session_id", sessionID)
	}
	return errors.NewRowProcessingError(sessionID, err.Error())
}
