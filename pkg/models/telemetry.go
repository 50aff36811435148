package models

import (
	"time"
)

// RawSessionRecord is one row of the input dataset exactly as read from
// the artifact, before any coercion. All fields are strings; the
// Validator owns the conversion into a SessionRecord.
type RawSessionRecord struct {
	SessionID          string `json:"session_id"`
	UserID             string `json:"user_id"`
	Timestamp          string `json:"timestamp"`
	DeviceType         string `json:"device_type"`
	OSVersion          string `json:"os_version"`
	AppVersion         string `json:"app_version"`
	ContentID          string `json:"content_id"`
	StartupTimeMs      string `json:"startup_time_ms"`
	RebufferCount      string `json:"rebuffer_count"`
	RebufferDurationMs string `json:"rebuffer_duration_ms"`
	BitrateKbps        string `json:"bitrate_kbps"`
	Resolution         string `json:"resolution"`
	FramesDropped      string `json:"frames_dropped"`
	SessionDurationSec string `json:"session_duration_sec"`
	NetworkType        string `json:"network_type"`
	CountryCode        string `json:"country_code"`
	ISP                string `json:"isp"`
	CDNPop             string `json:"cdn_pop"`
}

// SessionRecord is a validated, typed playback session. Produced only
// by the Validator; never mutated downstream.
type SessionRecord struct {
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	Timestamp          time.Time `json:"timestamp"`
	DeviceType         string    `json:"device_type"`
	OSVersion          string    `json:"os_version"`
	AppVersion         string    `json:"app_version"`
	ContentID          string    `json:"content_id"`
	StartupTimeMs      int64     `json:"startup_time_ms"`
	RebufferCount      int64     `json:"rebuffer_count"`
	RebufferDurationMs int64     `json:"rebuffer_duration_ms"`
	BitrateKbps        int64     `json:"bitrate_kbps"`
	Resolution         string    `json:"resolution"`
	FramesDropped      int64     `json:"frames_dropped"`
	SessionDurationSec int64     `json:"session_duration_sec"`
	NetworkType        string    `json:"network_type"`
	CountryCode        string    `json:"country_code"`
	ISP                string    `json:"isp"`
	CDNPop             string    `json:"cdn_pop"`
}

// EnrichedSessionRecord is a SessionRecord plus every derived QoE
// feature. The Transformer produces exactly one enriched record per
// clean record.
type EnrichedSessionRecord struct {
	SessionRecord

	// Time features
	Hour       int    `json:"hour"`
	DayOfWeek  int    `json:"day_of_week"`
	DayName    string `json:"day_name"`
	IsWeekend  bool   `json:"is_weekend"`
	TimeOfDay  string `json:"time_of_day"`
	IsPeakTime bool   `json:"is_peak_time"`

	// Quality metrics
	RebufferRatio   float64 `json:"rebuffer_ratio"`
	QualityScore    int64   `json:"quality_score"`
	StartupCategory string  `json:"startup_category"`
	OverallQoEScore float64 `json:"overall_qoe_score"`

	// Session classifications
	SessionQuality          string `json:"session_quality"`
	ViewingDurationCategory string `json:"viewing_duration_category"`
	BufferingSeverity       string `json:"buffering_severity"`
	NetworkQualityInferred  string `json:"network_quality_inferred"`

	// Static categorical enrichment
	DeviceFamily   string `json:"device_family"`
	ScreenSize     string `json:"screen_size"`
	Region         string `json:"region"`
	MarketMaturity string `json:"market_maturity"`
	TimezoneGroup  string `json:"timezone_group"`

	// Failure flags
	VideoStartFailure bool `json:"video_start_failure"`
	ErrorOccurred     bool `json:"error_occurred"`
}
