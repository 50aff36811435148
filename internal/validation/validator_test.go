package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v := NewValidator(nil, nil)
	v.now = func() time.Time { return testNow }
	return v
}

func validRaw(sessionID string) models.RawSessionRecord {
	return models.RawSessionRecord{
		SessionID:          sessionID,
		UserID:             "user-1",
		Timestamp:          "2025-06-14 10:30:00",
		DeviceType:         "smart_tv",
		OSVersion:          "tizen-7.0",
		AppVersion:         "3.2.1",
		ContentID:          "content-42",
		StartupTimeMs:      "1200",
		RebufferCount:      "1",
		RebufferDurationMs: "3000",
		BitrateKbps:        "8000",
		Resolution:         "1080p",
		FramesDropped:      "12",
		SessionDurationSec: "1800",
		NetworkType:        "wifi",
		CountryCode:        "US",
		ISP:                "Comcast",
		CDNPop:             "iad-1",
	}
}

func TestValidateCleanDataset(t *testing.T) {
	v := newTestValidator(t)

	raw := []models.RawSessionRecord{validRaw("s-1"), validRaw("s-2"), validRaw("s-3")}
	passed, records, report := v.Validate(raw)

	assert.True(t, passed)
	assert.Len(t, records, 3)
	assert.Equal(t, 100.0, report.DataQualityScore)
	assert.Empty(t, report.Violations)
}

func TestValidateScoreNeverExceedsBounds(t *testing.T) {
	v := newTestValidator(t)

	// Every row duplicated plus out-of-range values drives the score
	// down hard; it must still land in [0, 100].
	var raw []models.RawSessionRecord
	for i := 0; i < 20; i++ {
		rec := validRaw("dup")
		rec.StartupTimeMs = "999999"
		rec.BitrateKbps = "-5"
		raw = append(raw, rec)
	}

	passed, _, report := v.Validate(raw)

	assert.False(t, passed)
	assert.GreaterOrEqual(t, report.DataQualityScore, 0.0)
	assert.LessOrEqual(t, report.DataQualityScore, 100.0)
	assert.Less(t, report.DataQualityScore, 100.0)
}

func TestValidateDropsCriticalNulls(t *testing.T) {
	v := newTestValidator(t)

	missing := validRaw("s-2")
	missing.UserID = ""
	raw := []models.RawSessionRecord{validRaw("s-1"), missing}

	_, records, report := v.Validate(raw)

	require.Len(t, records, 1)
	assert.Equal(t, "s-1", records[0].SessionID)
	assert.Equal(t, 1, report.NullColumns["user_id"])
}

func TestValidateClampsOutOfRangeValues(t *testing.T) {
	v := newTestValidator(t)

	rec := validRaw("s-1")
	rec.StartupTimeMs = "999999"
	_, records, report := v.Validate([]models.RawSessionRecord{rec})

	require.Len(t, records, 1)
	assert.Equal(t, int64(30000), records[0].StartupTimeMs)
	assert.Less(t, report.DataQualityScore, 100.0)
}

func TestValidateEstimatesMissingRebufferDuration(t *testing.T) {
	v := newTestValidator(t)

	rec := validRaw("s-1")
	rec.RebufferCount = "3"
	rec.RebufferDurationMs = "0"
	_, records, _ := v.Validate([]models.RawSessionRecord{rec})

	require.Len(t, records, 1)
	assert.Equal(t, int64(6000), records[0].RebufferDurationMs)
}

func TestValidateRebufferNeverExceedsSessionDuration(t *testing.T) {
	v := newTestValidator(t)

	rec := validRaw("s-1")
	rec.SessionDurationSec = "10"
	rec.RebufferDurationMs = "50000"
	_, records, _ := v.Validate([]models.RawSessionRecord{rec})

	require.Len(t, records, 1)
	assert.Equal(t, int64(10000), records[0].RebufferDurationMs)
}

func TestValidateRemovesDuplicateSessions(t *testing.T) {
	v := newTestValidator(t)

	first := validRaw("s-1")
	first.BitrateKbps = "5000"
	dup := validRaw("s-1")
	dup.BitrateKbps = "9000"
	_, records, report := v.Validate([]models.RawSessionRecord{first, dup, validRaw("s-2")})

	require.Len(t, records, 2)
	assert.Equal(t, int64(5000), records[0].BitrateKbps)

	found := false
	for _, violation := range report.Violations {
		if violation.Check == "duplicate_check" {
			found = true
			assert.Equal(t, 1, violation.Affected)
		}
	}
	assert.True(t, found, "expected a duplicate_check violation")
}

func TestValidateDropsFutureTimestamps(t *testing.T) {
	v := newTestValidator(t)

	future := validRaw("s-2")
	future.Timestamp = "2025-06-16 09:00:00"
	_, records, report := v.Validate([]models.RawSessionRecord{validRaw("s-1"), future})

	require.Len(t, records, 1)
	assert.Equal(t, "s-1", records[0].SessionID)
	assert.Equal(t, 95.0, report.DataQualityScore)
}

func TestValidateDropsUnparseableTimestamps(t *testing.T) {
	v := newTestValidator(t)

	bad := validRaw("s-2")
	bad.Timestamp = "not-a-timestamp"
	_, records, report := v.Validate([]models.RawSessionRecord{validRaw("s-1"), bad})

	require.Len(t, records, 1)
	assert.Less(t, report.DataQualityScore, 100.0)
}

func TestValidateQualityGateThreshold(t *testing.T) {
	v := NewValidator(&Config{QualityThreshold: 99.0}, nil)
	v.now = func() time.Time { return testNow }

	rec := validRaw("s-1")
	rec.StartupTimeMs = "999999"
	passed, _, report := v.Validate([]models.RawSessionRecord{rec, validRaw("s-2")})

	assert.False(t, passed)
	assert.Less(t, report.DataQualityScore, 99.0)
}

func TestValidateNumericStats(t *testing.T) {
	v := newTestValidator(t)

	var raw []models.RawSessionRecord
	for i := 1; i <= 4; i++ {
		rec := validRaw(fmt.Sprintf("s-%d", i))
		rec.BitrateKbps = fmt.Sprintf("%d", i*1000)
		raw = append(raw, rec)
	}
	_, _, report := v.Validate(raw)

	stats, ok := report.NumericStats["bitrate_kbps"]
	require.True(t, ok)
	assert.Equal(t, 2500.0, stats.Mean)
	assert.Equal(t, 1000.0, stats.Min)
	assert.Equal(t, 4000.0, stats.Max)
}
