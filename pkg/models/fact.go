package models

import (
	"time"
)

// FactRow is one row of fact_playback_sessions with all surrogate keys
// resolved. session_id is the natural key for idempotent insertion.
type FactRow struct {
	SessionID  string `json:"session_id"`
	DateKey    int64  `json:"date_key"`
	TimeKey    int64  `json:"time_key"`
	DeviceKey  int64  `json:"device_key"`
	CohortKey  int64  `json:"cohort_key"`
	GeoKey     int64  `json:"geo_key"`
	ContentKey int64  `json:"content_key"`
	NetworkKey int64  `json:"network_key"`

	SessionTimestamp time.Time `json:"session_timestamp"`

	StartupTimeMs      int64   `json:"startup_time_ms"`
	StartupCategory    string  `json:"startup_category"`
	RebufferCount      int64   `json:"rebuffer_count"`
	RebufferDurationMs int64   `json:"rebuffer_duration_ms"`
	RebufferRatio      float64 `json:"rebuffer_ratio"`
	BufferingSeverity  string  `json:"buffering_severity"`

	AvgBitrateKbps int64  `json:"avg_bitrate_kbps"`
	MinBitrateKbps int64  `json:"min_bitrate_kbps"`
	MaxBitrateKbps int64  `json:"max_bitrate_kbps"`
	Resolution     string `json:"resolution"`
	QualityScore   int64  `json:"quality_score"`

	FramesDropped       int64 `json:"frames_dropped"`
	SessionDurationSec  int64 `json:"session_duration_sec"`
	PlaybackDurationSec int64 `json:"playback_duration_sec"`

	OverallQoEScore float64 `json:"overall_qoe_score"`
	SessionQuality  string  `json:"session_quality"`

	VideoStartFailure bool `json:"video_start_failure"`
	ErrorOccurred     bool `json:"error_occurred"`
}
