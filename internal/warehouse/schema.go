package warehouse

import (
	"context"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
)

// Warehouse DDL. Dimension tables carry a generated surrogate key plus
// a uniqueness constraint over their natural-key columns; the fact
// table is keyed by session_id so re-inserts are no-ops. Seeding of
// the static dimensions (date, time, network, content, cohort) is the
// bootstrap job's responsibility, not the pipeline's.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS dim_date (
		date_key INT PRIMARY KEY,
		full_date DATE NOT NULL UNIQUE,
		day_of_week INT NOT NULL,
		day_name VARCHAR(16) NOT NULL,
		day_of_month INT NOT NULL,
		day_of_year INT NOT NULL,
		week_of_year INT NOT NULL,
		month INT NOT NULL,
		month_name VARCHAR(16) NOT NULL,
		quarter INT NOT NULL,
		year INT NOT NULL,
		is_weekend BOOLEAN NOT NULL,
		is_holiday BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS dim_time (
		time_key INT PRIMARY KEY,
		hour INT NOT NULL UNIQUE,
		minute INT NOT NULL,
		time_of_day VARCHAR(16) NOT NULL,
		is_peak_time BOOLEAN NOT NULL,
		hour_label VARCHAR(16) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dim_device (
		device_key SERIAL PRIMARY KEY,
		device_type VARCHAR(32) NOT NULL,
		device_family VARCHAR(32) NOT NULL,
		os_version VARCHAR(64) NOT NULL,
		app_version VARCHAR(64) NOT NULL,
		screen_size VARCHAR(16) NOT NULL,
		supports_4k BOOLEAN NOT NULL,
		UNIQUE (device_type, os_version, app_version)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_geography (
		geo_key SERIAL PRIMARY KEY,
		country_code VARCHAR(8) NOT NULL,
		region VARCHAR(32) NOT NULL,
		timezone_group VARCHAR(16) NOT NULL,
		market_maturity VARCHAR(16) NOT NULL,
		isp VARCHAR(64) NOT NULL,
		cdn_pop VARCHAR(64) NOT NULL,
		UNIQUE (country_code, isp, cdn_pop)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_content (
		content_key SERIAL PRIMARY KEY,
		content_id VARCHAR(64) NOT NULL UNIQUE,
		content_type VARCHAR(16),
		genre VARCHAR(32),
		duration_minutes INT,
		release_year INT,
		is_original BOOLEAN,
		video_codec VARCHAR(16),
		max_resolution VARCHAR(8)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_network (
		network_key SERIAL PRIMARY KEY,
		network_type VARCHAR(32) NOT NULL,
		network_quality VARCHAR(16) NOT NULL,
		estimated_bandwidth_mbps DOUBLE PRECISION,
		is_metered BOOLEAN,
		UNIQUE (network_type, network_quality)
	)`,
	`CREATE TABLE IF NOT EXISTS dim_user_cohort (
		cohort_key SERIAL PRIMARY KEY,
		cohort_name VARCHAR(64) NOT NULL,
		signup_month VARCHAR(8) NOT NULL,
		subscription_tier VARCHAR(16) NOT NULL,
		account_age_days INT,
		avg_viewing_hours_per_week DOUBLE PRECISION,
		UNIQUE (cohort_name, signup_month)
	)`,
	`CREATE TABLE IF NOT EXISTS fact_playback_sessions (
		session_id VARCHAR(64) PRIMARY KEY,
		date_key INT NOT NULL REFERENCES dim_date (date_key),
		time_key INT NOT NULL REFERENCES dim_time (time_key),
		device_key INT NOT NULL REFERENCES dim_device (device_key),
		cohort_key INT NOT NULL REFERENCES dim_user_cohort (cohort_key),
		geo_key INT NOT NULL REFERENCES dim_geography (geo_key),
		content_key INT NOT NULL REFERENCES dim_content (content_key),
		network_key INT NOT NULL REFERENCES dim_network (network_key),
		session_timestamp TIMESTAMPTZ NOT NULL,
		startup_time_ms INT NOT NULL,
		startup_category VARCHAR(16) NOT NULL,
		rebuffer_count INT NOT NULL,
		rebuffer_duration_ms INT NOT NULL,
		rebuffer_ratio DOUBLE PRECISION NOT NULL,
		buffering_severity VARCHAR(16) NOT NULL,
		avg_bitrate_kbps INT NOT NULL,
		min_bitrate_kbps INT NOT NULL,
		max_bitrate_kbps INT NOT NULL,
		resolution VARCHAR(8) NOT NULL,
		quality_score INT NOT NULL,
		frames_dropped INT NOT NULL,
		session_duration_sec INT NOT NULL,
		playback_duration_sec INT NOT NULL,
		overall_qoe_score DOUBLE PRECISION NOT NULL,
		session_quality VARCHAR(16) NOT NULL,
		video_start_failure BOOLEAN NOT NULL,
		error_occurred BOOLEAN NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_sessions_date ON fact_playback_sessions (date_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_sessions_device ON fact_playback_sessions (device_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_sessions_geo ON fact_playback_sessions (geo_key)`,
}

// EnsureSchema creates the fact and dimension tables if they do not
// exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if c.db == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "warehouse not connected")
	}
	for _, stmt := range schemaStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeStorageError, "failed to ensure warehouse schema")
		}
	}
	return nil
}
