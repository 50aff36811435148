package constants

import "time"

// Application constants
const (
	// Application metadata
	AppName        = "qoectl"
	AppDescription = "Streaming QoE telemetry warehouse pipeline"
	AppVersion     = "0.1.0"

	// Default configuration values
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Validation defaults
	DefaultQualityThreshold = 90.0

	// Warehouse defaults
	DefaultBatchSize         = 1000
	DefaultMaxConnections    = 10
	DefaultMaxIdleConns      = 5
	DefaultConnMaxLifetime   = 30 * time.Minute
	DefaultConnectionTimeout = 10 * time.Second
	DefaultQueryTimeout      = 30 * time.Second

	// Run metadata defaults
	DefaultRunMetaTTL = 14 * 24 * time.Hour
)

// Input dataset columns, in ingestion order. The artifact header must
// match exactly.
var InputColumns = []string{
	"session_id",
	"user_id",
	"timestamp",
	"device_type",
	"os_version",
	"app_version",
	"content_id",
	"startup_time_ms",
	"rebuffer_count",
	"rebuffer_duration_ms",
	"bitrate_kbps",
	"resolution",
	"frames_dropped",
	"session_duration_sec",
	"network_type",
	"country_code",
	"isp",
	"cdn_pop",
}

// Columns that identify a session; rows missing any of these are
// dropped by null handling.
var CriticalColumns = []string{"session_id", "timestamp", "user_id"}

// Dimension names as used in logs and errors
const (
	DimensionDate      = "date"
	DimensionTime      = "time"
	DimensionDevice    = "device"
	DimensionGeography = "geography"
	DimensionContent   = "content"
	DimensionNetwork   = "network"
	DimensionCohort    = "cohort"
)

// Category labels shared by the Transformer and the warehouse
const (
	CategoryExcellent = "excellent"
	CategoryGood      = "good"
	CategoryFair      = "fair"
	CategoryPoor      = "poor"

	TimeOfDayMorning   = "morning"
	TimeOfDayAfternoon = "afternoon"
	TimeOfDayEvening   = "evening"
	TimeOfDayNight     = "night"

	DurationShort  = "short"
	DurationMedium = "medium"
	DurationLong   = "long"

	SeverityNone     = "none"
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Timestamp layout used in dataset artifacts
const TimestampLayout = "2006-01-02 15:04:05"
