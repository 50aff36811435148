package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// SQL implementations of the DimensionStore and FactStore interfaces.

// LoadDateKeys loads the full date dimension keyed by ISO date string.
func (c *Client) LoadDateKeys(ctx context.Context) (map[string]int64, error) {
	rows, err := c.query(ctx, `SELECT full_date::text, date_key FROM dim_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		var date string
		var key int64
		if err := rows.Scan(&date, &key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_date row")
		}
		keys[date] = key
	}
	return keys, rows.Err()
}

// LoadTimeKeys loads the full time dimension keyed by hour of day.
func (c *Client) LoadTimeKeys(ctx context.Context) (map[int]int64, error) {
	rows, err := c.query(ctx, `SELECT hour, time_key FROM dim_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[int]int64)
	for rows.Next() {
		var hour int
		var key int64
		if err := rows.Scan(&hour, &key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_time row")
		}
		keys[hour] = key
	}
	return keys, rows.Err()
}

// LoadDeviceKeys loads the device dimension keyed by its natural key
// tuple.
func (c *Client) LoadDeviceKeys(ctx context.Context) (map[DeviceKey]int64, error) {
	rows, err := c.query(ctx, `SELECT device_type, os_version, app_version, device_key FROM dim_device`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[DeviceKey]int64)
	for rows.Next() {
		var dk DeviceKey
		var key int64
		if err := rows.Scan(&dk.DeviceType, &dk.OSVersion, &dk.AppVersion, &key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_device row")
		}
		keys[dk] = key
	}
	return keys, rows.Err()
}

// LoadGeoKeys loads the geography dimension keyed by its natural key
// tuple.
func (c *Client) LoadGeoKeys(ctx context.Context) (map[GeoKey]int64, error) {
	rows, err := c.query(ctx, `SELECT country_code, isp, cdn_pop, geo_key FROM dim_geography`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[GeoKey]int64)
	for rows.Next() {
		var gk GeoKey
		var key int64
		if err := rows.Scan(&gk.CountryCode, &gk.ISP, &gk.CDNPop, &key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_geography row")
		}
		keys[gk] = key
	}
	return keys, rows.Err()
}

// LoadContentKeys loads the content dimension keyed by content ID.
func (c *Client) LoadContentKeys(ctx context.Context) (map[string]int64, error) {
	rows, err := c.query(ctx, `SELECT content_id, content_key FROM dim_content`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]int64)
	for rows.Next() {
		var id string
		var key int64
		if err := rows.Scan(&id, &key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_content row")
		}
		keys[id] = key
	}
	return keys, rows.Err()
}

// LoadNetworkKeys loads the network dimension keyed by type and
// quality.
func (c *Client) LoadNetworkKeys(ctx context.Context) (map[NetworkKey]int64, error) {
	rows, err := c.query(ctx, `SELECT network_type, network_quality, network_key FROM dim_network`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[NetworkKey]int64)
	for rows.Next() {
		var nk NetworkKey
		var key int64
		if err := rows.Scan(&nk.NetworkType, &nk.NetworkQuality, &key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_network row")
		}
		keys[nk] = key
	}
	return keys, rows.Err()
}

// LoadCohortKeys loads every cohort surrogate key.
func (c *Client) LoadCohortKeys(ctx context.Context) ([]int64, error) {
	rows, err := c.query(ctx, `SELECT cohort_key FROM dim_user_cohort ORDER BY cohort_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to scan dim_user_cohort row")
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// InsertDevice creates a device dimension row and returns its key. A
// concurrent insert of the same natural key resolves to the existing
// row.
func (c *Client) InsertDevice(ctx context.Context, row DeviceRow) (int64, error) {
	if c.db == nil {
		return 0, errors.NewStorageError(errors.CodeConnectionFailed, "warehouse not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()

	var key int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO dim_device (device_type, device_family, os_version, app_version, screen_size, supports_4k)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (device_type, os_version, app_version)
		DO UPDATE SET device_family = EXCLUDED.device_family
		RETURNING device_key`,
		row.DeviceType, row.DeviceFamily, row.OSVersion, row.AppVersion, row.ScreenSize, row.Supports4K,
	).Scan(&key)
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to insert dim_device row")
	}
	return key, nil
}

// InsertGeography creates a geography dimension row and returns its
// key.
func (c *Client) InsertGeography(ctx context.Context, row GeographyRow) (int64, error) {
	if c.db == nil {
		return 0, errors.NewStorageError(errors.CodeConnectionFailed, "warehouse not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()

	var key int64
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO dim_geography (country_code, region, timezone_group, market_maturity, isp, cdn_pop)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (country_code, isp, cdn_pop)
		DO UPDATE SET region = EXCLUDED.region
		RETURNING geo_key`,
		row.CountryCode, row.Region, row.TimezoneGroup, row.MarketMaturity, row.ISP, row.CDNPop,
	).Scan(&key)
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to insert dim_geography row")
	}
	return key, nil
}

// factColumns lists the fact table columns in insert order.
var factColumns = []string{
	"session_id",
	"date_key",
	"time_key",
	"device_key",
	"cohort_key",
	"geo_key",
	"content_key",
	"network_key",
	"session_timestamp",
	"startup_time_ms",
	"startup_category",
	"rebuffer_count",
	"rebuffer_duration_ms",
	"rebuffer_ratio",
	"buffering_severity",
	"avg_bitrate_kbps",
	"min_bitrate_kbps",
	"max_bitrate_kbps",
	"resolution",
	"quality_score",
	"frames_dropped",
	"session_duration_sec",
	"playback_duration_sec",
	"overall_qoe_score",
	"session_quality",
	"video_start_failure",
	"error_occurred",
}

// InsertFactBatch inserts a batch of fact rows inside one transaction
// and returns how many were actually inserted. Rows whose session_id
// already exists are skipped, which is what makes re-runs idempotent.
func (c *Client) InsertFactBatch(ctx context.Context, batch []models.FactRow) (int64, error) {
	if c.db == nil {
		return 0, errors.NewStorageError(errors.CodeConnectionFailed, "warehouse not connected")
	}
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	defer cancel()

	placeholders := make([]string, len(batch))
	args := make([]interface{}, 0, len(batch)*len(factColumns))
	for i, row := range batch {
		marks := make([]string, len(factColumns))
		for j := range factColumns {
			marks[j] = fmt.Sprintf("$%d", i*len(factColumns)+j+1)
		}
		placeholders[i] = "(" + strings.Join(marks, ", ") + ")"
		args = append(args,
			row.SessionID,
			row.DateKey,
			row.TimeKey,
			row.DeviceKey,
			row.CohortKey,
			row.GeoKey,
			row.ContentKey,
			row.NetworkKey,
			row.SessionTimestamp,
			row.StartupTimeMs,
			row.StartupCategory,
			row.RebufferCount,
			row.RebufferDurationMs,
			row.RebufferRatio,
			row.BufferingSeverity,
			row.AvgBitrateKbps,
			row.MinBitrateKbps,
			row.MaxBitrateKbps,
			row.Resolution,
			row.QualityScore,
			row.FramesDropped,
			row.SessionDurationSec,
			row.PlaybackDurationSec,
			row.OverallQoEScore,
			row.SessionQuality,
			row.VideoStartFailure,
			row.ErrorOccurred,
		)
	}

	query := fmt.Sprintf(
		"INSERT INTO fact_playback_sessions (%s) VALUES %s ON CONFLICT (session_id) DO NOTHING",
		strings.Join(factColumns, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to begin fact batch transaction")
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		tx.Rollback()
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to insert fact batch")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to commit fact batch")
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to count inserted fact rows")
	}
	return inserted, nil
}

func (c *Client) query(ctx context.Context, stmt string) (*sqlRows, error) {
	if c.db == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "warehouse not connected")
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.QueryTimeout)
	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		cancel()
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "warehouse query failed")
	}
	return &sqlRows{Rows: rows, cancel: cancel}, nil
}

// sqlRows ties the query timeout's cancel func to the result set's
// lifetime.
type sqlRows struct {
	*sql.Rows
	cancel context.CancelFunc
}

func (r *sqlRows) Close() error {
	defer r.cancel()
	return r.Rows.Close()
}
