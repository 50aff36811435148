package validation

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// Per-check score deductions. The policy is qualitative: the score
// starts at 100, every check can only subtract, and the result is
// clamped to [0,100] before the gate.
const (
	nullPenaltyPerPct        = 0.1
	coercionPenaltyPerColumn = 2.0
	rangePenaltyPerPct       = 0.5
	consistencyPenaltyPerPct = 0.5
	duplicatePenaltyPerPct   = 0.8
	futureTimestampPenalty   = 5.0
)

// estimatedRebufferMs is the assumed duration of a single rebuffer
// event when a session reports rebuffers with zero total duration.
const estimatedRebufferMs = 2000

// staleHorizon marks timestamps old enough to flag, but not drop.
const staleHorizon = 365 * 24 * time.Hour

// Config contains validator configuration.
type Config struct {
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() *Config {
	return &Config{QualityThreshold: constants.DefaultQualityThreshold}
}

// Validator checks and repairs a raw telemetry dataset, producing a
// cleaned dataset, a quality report and a 0-100 score. A Validator
// carries per-run state; construct one per dataset.
type Validator struct {
	logger *logrus.Logger
	config *Config
	now    func() time.Time

	score       float64
	violations  []models.Violation
	nullColumns map[string]int
}

// NewValidator creates a new validator for one run.
func NewValidator(config *Config, logger *logrus.Logger) *Validator {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{
		logger:      logger,
		config:      config,
		now:         time.Now,
		score:       100,
		nullColumns: make(map[string]int),
	}
}

// Validate runs every check in fixed order and reports whether the
// resulting score meets the quality threshold. Rows are only dropped
// by null handling, duplicate removal and the future-timestamp check;
// everything else repairs in place.
func (v *Validator) Validate(raw []models.RawSessionRecord) (bool, []models.SessionRecord, *models.ValidationReport) {
	v.logger.WithField("records", len(raw)).Info("Starting validation")

	raw = v.checkNulls(raw)
	records := v.coerceTypes(raw)
	v.checkValueRanges(records)
	v.checkLogicalConsistency(records)
	records = v.checkDuplicates(records)
	records = v.checkTimestamps(records)

	if v.score < 0 {
		v.score = 0
	} else if v.score > 100 {
		v.score = 100
	}

	report := v.generateReport(records)
	isValid := v.score >= v.config.QualityThreshold

	v.logger.WithFields(logrus.Fields{
		"records":       len(records),
		"quality_score": report.DataQualityScore,
		"violations":    len(report.Violations),
		"valid":         isValid,
	}).Info("Validation complete")

	return isValid, records, report
}

func (v *Validator) deduct(points float64) {
	if points > 0 {
		v.score -= points
	}
}

func (v *Validator) addViolation(check string, affected int, action string) {
	v.violations = append(v.violations, models.Violation{
		Check:    check,
		Affected: affected,
		Action:   action,
	})
}

// checkNulls counts empty cells per column, drops rows missing a
// critical identifying field, and leaves non-critical blanks for the
// coercion step to fill with zero.
func (v *Validator) checkNulls(raw []models.RawSessionRecord) []models.RawSessionRecord {
	if len(raw) == 0 {
		return raw
	}

	totalNulls := 0
	for _, rec := range raw {
		for col, val := range rawColumns(&rec) {
			if val == "" {
				v.nullColumns[col]++
				totalNulls++
			}
		}
	}
	if totalNulls == 0 {
		v.logger.Debug("No null values found")
		return raw
	}

	for col, count := range v.nullColumns {
		pct := float64(count) / float64(len(raw)) * 100
		v.logger.WithFields(logrus.Fields{
			"column": col,
			"nulls":  count,
		}).Warn("Column has null values")
		v.deduct(pct * nullPenaltyPerPct)
	}

	kept := raw[:0:0]
	dropped := 0
	for _, rec := range raw {
		if rec.SessionID == "" || rec.Timestamp == "" || rec.UserID == "" {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	if dropped > 0 {
		v.addViolation("null_check", dropped, "dropped rows with critical nulls")
		v.logger.WithField("dropped", dropped).Warn("Dropped rows with critical nulls")
	}

	nonCritical := totalNulls
	for _, col := range constants.CriticalColumns {
		nonCritical -= v.nullColumns[col]
	}
	if nonCritical > 0 {
		v.addViolation("null_fill", nonCritical, "filled non-critical numeric nulls with zero")
	}
	return kept
}

// coerceTypes converts raw string rows into typed records. Values that
// cannot be coerced become zero and cost a fixed per-column penalty;
// rows with an unparseable timestamp are dropped since every
// downstream key depends on it.
func (v *Validator) coerceTypes(raw []models.RawSessionRecord) []models.SessionRecord {
	failedColumns := make(map[string]int)
	records := make([]models.SessionRecord, 0, len(raw))

	parseInt := func(col, val string) int64 {
		if val == "" {
			return 0
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			// Fractional inputs still coerce; anything else is a failure.
			f, ferr := strconv.ParseFloat(val, 64)
			if ferr != nil {
				failedColumns[col]++
				return 0
			}
			return int64(f)
		}
		return n
	}

	for _, r := range raw {
		ts, err := parseTimestamp(r.Timestamp)
		if err != nil {
			failedColumns["timestamp"]++
			continue
		}
		records = append(records, models.SessionRecord{
			SessionID:          r.SessionID,
			UserID:             r.UserID,
			Timestamp:          ts,
			DeviceType:         r.DeviceType,
			OSVersion:          r.OSVersion,
			AppVersion:         r.AppVersion,
			ContentID:          r.ContentID,
			StartupTimeMs:      parseInt("startup_time_ms", r.StartupTimeMs),
			RebufferCount:      parseInt("rebuffer_count", r.RebufferCount),
			RebufferDurationMs: parseInt("rebuffer_duration_ms", r.RebufferDurationMs),
			BitrateKbps:        parseInt("bitrate_kbps", r.BitrateKbps),
			Resolution:         r.Resolution,
			FramesDropped:      parseInt("frames_dropped", r.FramesDropped),
			SessionDurationSec: parseInt("session_duration_sec", r.SessionDurationSec),
			NetworkType:        r.NetworkType,
			CountryCode:        r.CountryCode,
			ISP:                r.ISP,
			CDNPop:             r.CDNPop,
		})
	}

	if len(failedColumns) > 0 {
		affected := 0
		for col, count := range failedColumns {
			affected += count
			v.logger.WithFields(logrus.Fields{
				"column":   col,
				"failures": count,
			}).Warn("Values could not be coerced")
		}
		v.deduct(float64(len(failedColumns)) * coercionPenaltyPerColumn)
		v.addViolation("type_coercion", affected, "uncoercible values set to null")
	}
	return records
}

type rangeCheck struct {
	column string
	min    int64
	max    int64
	field  func(*models.SessionRecord) *int64
}

var rangeChecks = []rangeCheck{
	{"startup_time_ms", 100, 30000, func(r *models.SessionRecord) *int64 { return &r.StartupTimeMs }},
	{"rebuffer_count", 0, 100, func(r *models.SessionRecord) *int64 { return &r.RebufferCount }},
	{"rebuffer_duration_ms", 0, 600000, func(r *models.SessionRecord) *int64 { return &r.RebufferDurationMs }},
	{"bitrate_kbps", 100, 50000, func(r *models.SessionRecord) *int64 { return &r.BitrateKbps }},
	{"frames_dropped", 0, 10000, func(r *models.SessionRecord) *int64 { return &r.FramesDropped }},
	{"session_duration_sec", 1, 14400, func(r *models.SessionRecord) *int64 { return &r.SessionDurationSec }},
}

// checkValueRanges clamps every numeric field to its documented
// plausible range instead of dropping rows.
func (v *Validator) checkValueRanges(records []models.SessionRecord) {
	if len(records) == 0 {
		return
	}
	for _, check := range rangeChecks {
		outOfRange := 0
		for i := range records {
			val := check.field(&records[i])
			if *val < check.min {
				*val = check.min
				outOfRange++
			} else if *val > check.max {
				*val = check.max
				outOfRange++
			}
		}
		if outOfRange > 0 {
			pct := float64(outOfRange) / float64(len(records)) * 100
			v.logger.WithFields(logrus.Fields{
				"column":       check.column,
				"out_of_range": outOfRange,
			}).Warn("Values out of range, clamped to bounds")
			v.deduct(pct * rangePenaltyPerPct)
			v.addViolation("range_check:"+check.column, outOfRange,
				fmt.Sprintf("clamped to [%d, %d]", check.min, check.max))
		}
	}
}

// Expected bitrate window per resolution, kbps.
var resolutionBitrateRanges = map[string][2]int64{
	"4K":    {15000, 50000},
	"1080p": {3000, 10000},
	"720p":  {1500, 4000},
	"480p":  {100, 2000},
}

// checkLogicalConsistency repairs cross-field contradictions:
// rebuffers with zero duration get an estimated duration, rebuffer
// time is capped at session time, and resolution/bitrate mismatches
// are flagged but left alone.
func (v *Validator) checkLogicalConsistency(records []models.SessionRecord) {
	if len(records) == 0 {
		return
	}

	zeroDuration := 0
	overDuration := 0
	bitrateMismatch := 0

	for i := range records {
		r := &records[i]

		if r.RebufferCount > 0 && r.RebufferDurationMs == 0 {
			r.RebufferDurationMs = r.RebufferCount * estimatedRebufferMs
			zeroDuration++
		}
		if maxMs := r.SessionDurationSec * 1000; r.RebufferDurationMs > maxMs {
			r.RebufferDurationMs = maxMs
			overDuration++
		}
		if window, ok := resolutionBitrateRanges[r.Resolution]; ok {
			if r.BitrateKbps < window[0] || r.BitrateKbps > window[1] {
				bitrateMismatch++
			}
		}
	}

	if zeroDuration > 0 {
		v.addViolation("rebuffer_zero_duration", zeroDuration, "estimated duration from rebuffer count")
	}
	if overDuration > 0 {
		v.addViolation("rebuffer_over_duration", overDuration, "capped at session duration")
	}
	if bitrateMismatch > 0 {
		v.addViolation("resolution_bitrate_mismatch", bitrateMismatch, "flagged")
	}

	inconsistent := zeroDuration + overDuration + bitrateMismatch
	if inconsistent > 0 {
		pct := float64(inconsistent) / float64(len(records)) * 100
		v.logger.WithField("inconsistent", inconsistent).Warn("Logical inconsistencies found")
		v.deduct(pct * consistencyPenaltyPerPct)
	}
}

// checkDuplicates removes rows sharing a session_id, keeping the first
// occurrence.
func (v *Validator) checkDuplicates(records []models.SessionRecord) []models.SessionRecord {
	if len(records) == 0 {
		return records
	}
	seen := make(map[string]struct{}, len(records))
	kept := records[:0:0]
	duplicates := 0
	for _, r := range records {
		if _, ok := seen[r.SessionID]; ok {
			duplicates++
			continue
		}
		seen[r.SessionID] = struct{}{}
		kept = append(kept, r)
	}
	if duplicates > 0 {
		pct := float64(duplicates) / float64(len(records)) * 100
		v.logger.WithField("duplicates", duplicates).Warn("Duplicate session IDs removed")
		v.deduct(pct * duplicatePenaltyPerPct)
		v.addViolation("duplicate_check", duplicates, "kept first occurrence")
	}
	return kept
}

// checkTimestamps drops rows stamped after "now" and flags rows older
// than the stale horizon without dropping them.
func (v *Validator) checkTimestamps(records []models.SessionRecord) []models.SessionRecord {
	if len(records) == 0 {
		return records
	}
	now := v.now()
	horizon := now.Add(-staleHorizon)

	kept := records[:0:0]
	future := 0
	stale := 0
	for _, r := range records {
		if r.Timestamp.After(now) {
			future++
			continue
		}
		if r.Timestamp.Before(horizon) {
			stale++
		}
		kept = append(kept, r)
	}
	if future > 0 {
		v.logger.WithField("future", future).Warn("Future timestamps dropped")
		v.deduct(futureTimestampPenalty)
		v.addViolation("future_timestamps", future, "dropped")
	}
	if stale > 0 {
		v.addViolation("stale_timestamps", stale, "flagged")
	}
	return kept
}

func (v *Validator) generateReport(records []models.SessionRecord) *models.ValidationReport {
	report := &models.ValidationReport{
		GeneratedAt:      v.now(),
		TotalRecords:     len(records),
		DataQualityScore: round2(v.score),
		Violations:       v.violations,
		NullColumns:      v.nullColumns,
		NumericStats:     numericStats(records),
	}
	return report
}

// numericStats summarizes each numeric column of the cleaned dataset.
func numericStats(records []models.SessionRecord) map[string]models.ColumnStats {
	out := make(map[string]models.ColumnStats, len(rangeChecks))
	if len(records) == 0 {
		return out
	}
	for _, check := range rangeChecks {
		values := make([]float64, len(records))
		min, max := float64(*check.field(&records[0])), float64(*check.field(&records[0]))
		for i := range records {
			val := float64(*check.field(&records[i]))
			values[i] = val
			if val < min {
				min = val
			}
			if val > max {
				max = val
			}
		}
		mean, std := stat.MeanStdDev(values, nil)
		out[check.column] = models.ColumnStats{
			Mean:   round2(mean),
			StdDev: round2(std),
			Min:    min,
			Max:    max,
		}
	}
	return out
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(constants.TimestampLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func rawColumns(r *models.RawSessionRecord) map[string]string {
	return map[string]string{
		"session_id":           r.SessionID,
		"user_id":              r.UserID,
		"timestamp":            r.Timestamp,
		"device_type":          r.DeviceType,
		"os_version":           r.OSVersion,
		"app_version":          r.AppVersion,
		"content_id":           r.ContentID,
		"startup_time_ms":      r.StartupTimeMs,
		"rebuffer_count":       r.RebufferCount,
		"rebuffer_duration_ms": r.RebufferDurationMs,
		"bitrate_kbps":         r.BitrateKbps,
		"resolution":           r.Resolution,
		"frames_dropped":       r.FramesDropped,
		"session_duration_sec": r.SessionDurationSec,
		"network_type":         r.NetworkType,
		"country_code":         r.CountryCode,
		"isp":                  r.ISP,
		"cdn_pop":              r.CDNPop,
	}
}
