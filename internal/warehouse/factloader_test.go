package warehouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// fakeFactStore mimics the warehouse's conflict-skip semantics: a
// session ID is only counted as inserted the first time it appears.
type fakeFactStore struct {
	existing map[string]struct{}
	batches  [][]models.FactRow
	failNext bool
}

func newFakeFactStore() *fakeFactStore {
	return &fakeFactStore{existing: map[string]struct{}{}}
}

func (f *fakeFactStore) InsertFactBatch(ctx context.Context, batch []models.FactRow) (int64, error) {
	if f.failNext {
		return 0, fmt.Errorf("connection reset")
	}
	f.batches = append(f.batches, append([]models.FactRow{}, batch...))

	var inserted int64
	for _, row := range batch {
		if _, ok := f.existing[row.SessionID]; ok {
			continue
		}
		f.existing[row.SessionID] = struct{}{}
		inserted++
	}
	return inserted, nil
}

func enrichedRecord(sessionID string) models.EnrichedSessionRecord {
	return models.EnrichedSessionRecord{
		SessionRecord: models.SessionRecord{
			SessionID:          sessionID,
			UserID:             "user-1",
			Timestamp:          time.Date(2025, 6, 14, 20, 30, 0, 0, time.UTC),
			DeviceType:         "smart_tv",
			OSVersion:          "tizen-7.0",
			AppVersion:         "3.2.1",
			ContentID:          "content-42",
			StartupTimeMs:      900,
			RebufferCount:      1,
			RebufferDurationMs: 3000,
			BitrateKbps:        8000,
			Resolution:         "1080p",
			FramesDropped:      12,
			SessionDurationSec: 1800,
			NetworkType:        "wifi",
			CountryCode:        "US",
			ISP:                "Comcast",
			CDNPop:             "iad-1",
		},
		RebufferRatio:          0.17,
		QualityScore:           75,
		StartupCategory:        "excellent",
		OverallQoEScore:        84.5,
		SessionQuality:         "excellent",
		BufferingSeverity:      "minor",
		NetworkQualityInferred: "good",
	}
}

func newTestLoader(t *testing.T, batchSize int, facts FactStore) *Loader {
	t.Helper()
	resolver := newTestResolver(t, newFakeDimensionStore())
	loader, err := NewLoader(&LoaderConfig{BatchSize: batchSize}, resolver, facts, nil)
	require.NoError(t, err)
	return loader
}

func TestLoadInsertsAllRows(t *testing.T) {
	facts := newFakeFactStore()
	loader := newTestLoader(t, 1000, facts)

	records := []models.EnrichedSessionRecord{
		enrichedRecord("s-1"), enrichedRecord("s-2"), enrichedRecord("s-3"),
	}
	report, err := loader.Load(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 1, report.Batches)
}

func TestLoadIsIdempotent(t *testing.T) {
	facts := newFakeFactStore()
	loader := newTestLoader(t, 1000, facts)
	ctx := context.Background()

	records := []models.EnrichedSessionRecord{enrichedRecord("s-1"), enrichedRecord("s-2")}

	first, err := loader.Load(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := loader.Load(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Processed)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Errors)
}

func TestLoadBatching(t *testing.T) {
	facts := newFakeFactStore()
	loader := newTestLoader(t, 2, facts)

	records := make([]models.EnrichedSessionRecord, 5)
	for i := range records {
		records[i] = enrichedRecord(fmt.Sprintf("s-%d", i))
	}
	report, err := loader.Load(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Inserted)
	assert.Equal(t, 3, report.Batches)
	require.Len(t, facts.batches, 3)
	assert.Len(t, facts.batches[0], 2)
	assert.Len(t, facts.batches[2], 1)
}

func TestLoadSkipsRowsWithUnresolvableDimensions(t *testing.T) {
	facts := newFakeFactStore()
	loader := newTestLoader(t, 1000, facts)

	bad := enrichedRecord("s-bad")
	bad.ContentID = "missing-content"
	records := []models.EnrichedSessionRecord{enrichedRecord("s-1"), bad, enrichedRecord("s-2")}

	report, err := loader.Load(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 1, report.Errors)
}

func TestLoadAbortsOnStorageFailure(t *testing.T) {
	facts := newFakeFactStore()
	facts.failNext = true
	loader := newTestLoader(t, 1000, facts)

	_, err := loader.Load(context.Background(), []models.EnrichedSessionRecord{enrichedRecord("s-1")})
	require.Error(t, err)
}

func TestLoadFactRowContents(t *testing.T) {
	facts := newFakeFactStore()
	loader := newTestLoader(t, 1000, facts)

	_, err := loader.Load(context.Background(), []models.EnrichedSessionRecord{enrichedRecord("s-1")})
	require.NoError(t, err)
	require.Len(t, facts.batches, 1)

	row := facts.batches[0][0]
	assert.Equal(t, "s-1", row.SessionID)
	assert.Equal(t, int64(20250614), row.DateKey)
	assert.Equal(t, int64(20), row.TimeKey)
	assert.Equal(t, int64(7), row.ContentKey)
	assert.Equal(t, int64(3), row.NetworkKey)
	assert.NotZero(t, row.DeviceKey)
	assert.NotZero(t, row.GeoKey)
	assert.NotZero(t, row.CohortKey)

	assert.Equal(t, int64(8000), row.AvgBitrateKbps)
	assert.Equal(t, int64(1797), row.PlaybackDurationSec)
	assert.Equal(t, 84.5, row.OverallQoEScore)
}

func TestLoaderConfigValidation(t *testing.T) {
	resolver := newTestResolver(t, newFakeDimensionStore())

	_, err := NewLoader(&LoaderConfig{BatchSize: 0}, resolver, newFakeFactStore(), nil)
	require.Error(t, err)

	loader, err := NewLoader(nil, resolver, newFakeFactStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, loader.config.BatchSize)
}
