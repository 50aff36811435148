package artifacts

import (
	"context"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// Dataset artifact names within a run's namespace. Each pipeline stage
// reads its predecessor's artifact by name and writes its own, which
// is what lets stages run as independent invocations.
const (
	RawDataset      = "raw_sessions.csv"
	CleanDataset    = "clean_sessions.csv"
	EnrichedDataset = "enriched_sessions.csv"
)

// Store persists dataset artifacts between pipeline stages. A missing
// artifact is reported as a fatal missing-input error; stores never
// return partial datasets.
type Store interface {
	ReadRaw(ctx context.Context, name string) ([]models.RawSessionRecord, error)
	WriteClean(ctx context.Context, name string, records []models.SessionRecord) error
	ReadClean(ctx context.Context, name string) ([]models.SessionRecord, error)
	WriteEnriched(ctx context.Context, name string, records []models.EnrichedSessionRecord) error
	ReadEnriched(ctx context.Context, name string) ([]models.EnrichedSessionRecord, error)
}
