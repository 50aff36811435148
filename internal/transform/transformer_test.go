package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

func cleanRecord(sessionID string) models.SessionRecord {
	return models.SessionRecord{
		SessionID: sessionID,
		UserID:    "user-1",
		// Saturday evening, peak hour.
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
	}
}

func TestTransformPreservesEveryRecord(t *testing.T) {
	tr := NewTransformer(nil)

	records := []models.SessionRecord{cleanRecord("s-1"), cleanRecord("s-2"), cleanRecord("s-3")}
	enriched := tr.Transform(records)

	require.Len(t, enriched, len(records))
	for i := range records {
		assert.Equal(t, records[i], enriched[i].SessionRecord)
	}
}

func TestTransformTimeFeatures(t *testing.T) {
	tr := NewTransformer(nil)

	enriched := tr.Transform([]models.SessionRecord{cleanRecord("s-1")})
	e := enriched[0]

	assert.Equal(t, 20, e.Hour)
	assert.Equal(t, 5, e.DayOfWeek)
	assert.Equal(t, "Saturday", e.DayName)
	assert.True(t, e.IsWeekend)
	assert.Equal(t, constants.TimeOfDayEvening, e.TimeOfDay)
	assert.True(t, e.IsPeakTime)
}

func TestTransformWeekdayMorning(t *testing.T) {
	tr := NewTransformer(nil)

	rec := cleanRecord("s-1")
	rec.Timestamp = time.Date(2025, 6, 16, 8, 0, 0, 0, time.UTC)
	e := tr.Transform([]models.SessionRecord{rec})[0]

	assert.Equal(t, 0, e.DayOfWeek)
	assert.Equal(t, "Monday", e.DayName)
	assert.False(t, e.IsWeekend)
	assert.Equal(t, constants.TimeOfDayMorning, e.TimeOfDay)
	assert.False(t, e.IsPeakTime)
}

func TestTransformRebufferRatio(t *testing.T) {
	tr := NewTransformer(nil)

	rec := cleanRecord("s-1")
	rec.RebufferDurationMs = 9000
	rec.SessionDurationSec = 60
	e := tr.Transform([]models.SessionRecord{rec})[0]

	assert.InDelta(t, 15.0, e.RebufferRatio, 1e-9)
}

func TestTransformRebufferRatioZeroDuration(t *testing.T) {
	tr := NewTransformer(nil)

	rec := cleanRecord("s-1")
	rec.SessionDurationSec = 0
	e := tr.Transform([]models.SessionRecord{rec})[0]

	assert.Equal(t, 0.0, e.RebufferRatio)
}

func TestTransformBitrateScoreSteps(t *testing.T) {
	tr := NewTransformer(nil)

	cases := map[int64]int64{
		25000: 100,
		8000:  75,
		4000:  50,
		1500:  25,
		500:   10,
	}
	for bitrate, want := range cases {
		rec := cleanRecord("s-1")
		rec.BitrateKbps = bitrate
		e := tr.Transform([]models.SessionRecord{rec})[0]
		assert.Equal(t, want, e.QualityScore, "bitrate %d", bitrate)
	}
}

func TestTransformStartupCategories(t *testing.T) {
	tr := NewTransformer(nil)

	cases := map[int64]string{
		500:  constants.CategoryExcellent,
		1500: constants.CategoryGood,
		3000: constants.CategoryFair,
		9000: constants.CategoryPoor,
	}
	for startup, want := range cases {
		rec := cleanRecord("s-1")
		rec.StartupTimeMs = startup
		e := tr.Transform([]models.SessionRecord{rec})[0]
		assert.Equal(t, want, e.StartupCategory, "startup %d", startup)
	}
}

func TestTransformOverallQoEScore(t *testing.T) {
	tr := NewTransformer(nil)

	rec := cleanRecord("s-1")
	rec.StartupTimeMs = 3000
	rec.RebufferDurationMs = 18000
	rec.SessionDurationSec = 60
	rec.BitrateKbps = 8000
	e := tr.Transform([]models.SessionRecord{rec})[0]

	// startup normalized: 100 - 3000/300 = 90; rebuffer ratio 30%.
	want := 90*0.3 + 70*0.4 + 75*0.3
	assert.InDelta(t, want, e.OverallQoEScore, 1e-9)
	assert.Equal(t, constants.CategoryGood, e.SessionQuality)
}

func TestTransformQoEScoreStaysInBounds(t *testing.T) {
	tr := NewTransformer(nil)

	worst := cleanRecord("s-1")
	worst.StartupTimeMs = 30000
	worst.RebufferDurationMs = 600000
	worst.SessionDurationSec = 60
	worst.BitrateKbps = 100

	best := cleanRecord("s-2")
	best.StartupTimeMs = 100
	best.RebufferDurationMs = 0
	best.BitrateKbps = 50000

	for _, e := range tr.Transform([]models.SessionRecord{worst, best}) {
		assert.GreaterOrEqual(t, e.OverallQoEScore, 0.0)
		assert.LessOrEqual(t, e.OverallQoEScore, 100.0)
	}
}

func TestTransformClassifications(t *testing.T) {
	tr := NewTransformer(nil)

	rec := cleanRecord("s-1")
	rec.SessionDurationSec = 300
	rec.RebufferCount = 4
	rec.BitrateKbps = 2500
	e := tr.Transform([]models.SessionRecord{rec})[0]

	assert.Equal(t, constants.DurationShort, e.ViewingDurationCategory)
	assert.Equal(t, constants.SeverityModerate, e.BufferingSeverity)
	assert.Equal(t, constants.CategoryFair, e.NetworkQualityInferred)
}

func TestTransformStaticEnrichment(t *testing.T) {
	tr := NewTransformer(nil)

	e := tr.Transform([]models.SessionRecord{cleanRecord("s-1")})[0]
	assert.Equal(t, "TV", e.DeviceFamily)
	assert.Equal(t, "large", e.ScreenSize)
	assert.Equal(t, "North America", e.Region)
	assert.Equal(t, "mature", e.MarketMaturity)
	assert.Equal(t, "Americas", e.TimezoneGroup)

	unknown := cleanRecord("s-2")
	unknown.DeviceType = "console"
	unknown.CountryCode = "ZZ"
	e = tr.Transform([]models.SessionRecord{unknown})[0]
	assert.Equal(t, "Unknown", e.DeviceFamily)
	assert.Equal(t, "medium", e.ScreenSize)
	assert.Equal(t, "Unknown", e.Region)
	assert.Equal(t, "emerging", e.MarketMaturity)
}

func TestTransformVideoStartFailure(t *testing.T) {
	tr := NewTransformer(nil)

	failed := cleanRecord("s-1")
	failed.StartupTimeMs = 30000
	failed.SessionDurationSec = 1
	e := tr.Transform([]models.SessionRecord{failed})[0]
	assert.True(t, e.VideoStartFailure)

	ok := cleanRecord("s-2")
	e = tr.Transform([]models.SessionRecord{ok})[0]
	assert.False(t, e.VideoStartFailure)
}
