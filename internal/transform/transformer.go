package transform

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// QoE score weights. The composite is a fixed-weight combination of
// normalized startup time, rebuffer ratio and bitrate quality.
const (
	startupWeight  = 0.3
	rebufferWeight = 0.4
	qualityWeight  = 0.3
)

// Transformer derives QoE features and classifications from a cleaned
// dataset. It is pure: no row is dropped or reordered, and every
// output row corresponds 1:1 to an input row.
type Transformer struct {
	logger *logrus.Logger
}

// NewTransformer creates a new transformer.
func NewTransformer(logger *logrus.Logger) *Transformer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transformer{logger: logger}
}

// Transform enriches every record with time features, quality metrics,
// session classifications and static categorical attributes.
func (t *Transformer) Transform(records []models.SessionRecord) []models.EnrichedSessionRecord {
	t.logger.WithField("records", len(records)).Info("Starting transformation")

	enriched := make([]models.EnrichedSessionRecord, len(records))
	for i := range records {
		enriched[i] = t.enrich(records[i])
	}

	t.logger.WithField("records", len(enriched)).Info("Transformation complete")
	return enriched
}

func (t *Transformer) enrich(r models.SessionRecord) models.EnrichedSessionRecord {
	e := models.EnrichedSessionRecord{SessionRecord: r}

	// Time features
	e.Hour = r.Timestamp.Hour()
	e.DayOfWeek = mondayIndexed(r.Timestamp.Weekday())
	e.DayName = r.Timestamp.Weekday().String()
	e.IsWeekend = e.DayOfWeek >= 5
	e.TimeOfDay = timeOfDay(e.Hour)
	e.IsPeakTime = e.Hour >= 19 && e.Hour <= 23

	// Quality metrics
	e.RebufferRatio = rebufferRatio(r.RebufferDurationMs, r.SessionDurationSec)
	e.QualityScore = bitrateScore(r.BitrateKbps)
	e.StartupCategory = startupCategory(r.StartupTimeMs)
	e.OverallQoEScore = overallQoE(r.StartupTimeMs, e.RebufferRatio, e.QualityScore)

	// Session classifications
	e.SessionQuality = sessionQuality(e.OverallQoEScore)
	e.ViewingDurationCategory = durationCategory(r.SessionDurationSec)
	e.BufferingSeverity = bufferingSeverity(r.RebufferCount)
	e.NetworkQualityInferred = networkQuality(r.BitrateKbps)

	// Static categorical enrichment
	e.DeviceFamily = DeviceFamily(r.DeviceType)
	e.ScreenSize = ScreenSize(r.DeviceType)
	geo := GeoAttributes(r.CountryCode)
	e.Region = geo.Region
	e.MarketMaturity = geo.MarketMaturity
	e.TimezoneGroup = geo.TimezoneGroup

	// The dataset carries no explicit failure events; a session pinned
	// at maximum startup time with the minimum duration is the only
	// start-failure signal present.
	e.VideoStartFailure = r.StartupTimeMs >= 30000 && r.SessionDurationSec <= 1
	e.ErrorOccurred = false

	return e
}

// mondayIndexed converts Go's Sunday-first weekday to Monday=0,
// matching the warehouse's day_of_week convention.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func timeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return constants.TimeOfDayMorning
	case hour >= 12 && hour < 17:
		return constants.TimeOfDayAfternoon
	case hour >= 17 && hour < 22:
		return constants.TimeOfDayEvening
	default:
		return constants.TimeOfDayNight
	}
}

// rebufferRatio is the percentage of session time spent buffering,
// clamped to [0,100].
func rebufferRatio(rebufferMs, durationSec int64) float64 {
	if durationSec <= 0 {
		return 0
	}
	ratio := float64(rebufferMs) / (float64(durationSec) * 1000) * 100
	return clamp(ratio, 0, 100)
}

// bitrateScore maps achieved bitrate onto a 0-100 step function.
func bitrateScore(bitrateKbps int64) int64 {
	switch {
	case bitrateKbps >= 20000:
		return 100
	case bitrateKbps >= 6000:
		return 75
	case bitrateKbps >= 3000:
		return 50
	case bitrateKbps >= 1000:
		return 25
	default:
		return 10
	}
}

func startupCategory(startupMs int64) string {
	switch {
	case startupMs < 1000:
		return constants.CategoryExcellent
	case startupMs < 2000:
		return constants.CategoryGood
	case startupMs < 4000:
		return constants.CategoryFair
	default:
		return constants.CategoryPoor
	}
}

// overallQoE combines normalized startup time, rebuffer ratio and
// bitrate quality. Startup normalizes to zero at 30s.
func overallQoE(startupMs int64, rebufferRatio float64, qualityScore int64) float64 {
	startupNormalized := clamp(100-float64(startupMs)/300, 0, 100)
	rebufferNormalized := 100 - rebufferRatio
	return startupNormalized*startupWeight +
		rebufferNormalized*rebufferWeight +
		float64(qualityScore)*qualityWeight
}

func sessionQuality(qoeScore float64) string {
	switch {
	case qoeScore >= 80:
		return constants.CategoryExcellent
	case qoeScore >= 60:
		return constants.CategoryGood
	case qoeScore >= 40:
		return constants.CategoryFair
	default:
		return constants.CategoryPoor
	}
}

func durationCategory(durationSec int64) string {
	minutes := float64(durationSec) / 60
	switch {
	case minutes < 10:
		return constants.DurationShort
	case minutes < 40:
		return constants.DurationMedium
	default:
		return constants.DurationLong
	}
}

func bufferingSeverity(rebufferCount int64) string {
	switch {
	case rebufferCount == 0:
		return constants.SeverityNone
	case rebufferCount <= 2:
		return constants.SeverityMinor
	case rebufferCount <= 5:
		return constants.SeverityModerate
	default:
		return constants.SeveritySevere
	}
}

func networkQuality(bitrateKbps int64) string {
	switch {
	case bitrateKbps >= 10000:
		return constants.CategoryExcellent
	case bitrateKbps >= 5000:
		return constants.CategoryGood
	case bitrateKbps >= 2000:
		return constants.CategoryFair
	default:
		return constants.CategoryPoor
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
