package artifacts

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	pkgerrors "github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(&LocalConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	return store
}

func writeRawFixture(t *testing.T, dir string, rows ...string) {
	t.Helper()
	lines := append([]string{strings.Join(constants.InputColumns, ",")}, rows...)
	err := os.WriteFile(filepath.Join(dir, RawDataset), []byte(strings.Join(lines, "\n")+"\n"), 0o644)
	require.NoError(t, err)
}

func TestReadRaw(t *testing.T) {
	store := newTestStore(t)
	writeRawFixture(t, store.config.Dir,
		"s-1,user-1,2025-06-14 10:30:00,smart_tv,tizen-7.0,3.2.1,content-42,1200,1,3000,8000,1080p,12,1800,wifi,US,Comcast,iad-1",
		"s-2,user-2,2025-06-14 11:00:00,mobile,ios-17,3.2.0,content-43,900,0,0,4500,720p,3,600,cellular,BR,Claro,gru-1",
	)

	records, err := store.ReadRaw(context.Background(), RawDataset)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "s-1", records[0].SessionID)
	assert.Equal(t, "8000", records[0].BitrateKbps)
	assert.Equal(t, "gru-1", records[1].CDNPop)
}

func TestReadRawMissingFile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ReadRaw(context.Background(), RawDataset)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, pkgerrors.ErrMissingInput))
}

func TestReadRawSchemaMismatch(t *testing.T) {
	store := newTestStore(t)
	err := os.WriteFile(filepath.Join(store.config.Dir, RawDataset),
		[]byte("session_id,user_id,wrong_column\n"), 0o644)
	require.NoError(t, err)

	_, err = store.ReadRaw(context.Background(), RawDataset)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, pkgerrors.ErrSchemaMismatch))
}

func TestCleanRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []models.SessionRecord{
		{
			SessionID:          "s-1",
			UserID:             "user-1",
			Timestamp:          time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC),
			DeviceType:         "smart_tv",
			OSVersion:          "tizen-7.0",
			AppVersion:         "3.2.1",
			ContentID:          "content-42",
			StartupTimeMs:      1200,
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
	}

	require.NoError(t, store.WriteClean(ctx, CleanDataset, records))

	got, err := store.ReadClean(ctx, CleanDataset)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestEnrichedRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	records := []models.EnrichedSessionRecord{
		{
			SessionRecord: models.SessionRecord{
				SessionID:          "s-1",
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
			Hour:                    20,
			DayOfWeek:               5,
			DayName:                 "Saturday",
			IsWeekend:               true,
			TimeOfDay:               "evening",
			IsPeakTime:              true,
			RebufferRatio:           0.17,
			QualityScore:            75,
			StartupCategory:         "excellent",
			OverallQoEScore:         84.57,
			SessionQuality:          "excellent",
			ViewingDurationCategory: "medium",
			BufferingSeverity:       "minor",
			NetworkQualityInferred:  "good",
			DeviceFamily:            "TV",
			ScreenSize:              "large",
			Region:                  "North America",
			MarketMaturity:          "mature",
			TimezoneGroup:           "Americas",
		},
	}

	require.NoError(t, store.WriteEnriched(ctx, EnrichedDataset, records))

	got, err := store.ReadEnriched(ctx, EnrichedDataset)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestReadCleanRejectsBadValues(t *testing.T) {
	store := newTestStore(t)
	header := strings.Join(constants.InputColumns, ",")
	row := "s-1,user-1,2025-06-14 10:30:00,smart_tv,tizen-7.0,3.2.1,content-42,not-a-number,1,3000,8000,1080p,12,1800,wifi,US,Comcast,iad-1"
	err := os.WriteFile(filepath.Join(store.config.Dir, CleanDataset),
		[]byte(header+"\n"+row+"\n"), 0o644)
	require.NoError(t, err)

	_, err = store.ReadClean(context.Background(), CleanDataset)
	require.Error(t, err)
}
