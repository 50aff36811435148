package artifacts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/models"
)

// CSV codec shared by the local and S3 stores. The raw dataset is kept
// as strings; the clean and enriched datasets round-trip their typed
// fields through the same column layout so any stage can be re-run
// from the previous stage's artifact.

// enrichedColumns extends the input columns with every derived
// feature, in the order the Transformer adds them.
var enrichedColumns = append(append([]string{}, constants.InputColumns...),
	"hour",
	"day_of_week",
	"day_name",
	"is_weekend",
	"time_of_day",
	"is_peak_time",
	"rebuffer_ratio",
	"quality_score",
	"startup_category",
	"overall_qoe_score",
	"session_quality",
	"viewing_duration_category",
	"buffering_severity",
	"network_quality_inferred",
	"device_family",
	"screen_size",
	"region",
	"market_maturity",
	"timezone_group",
	"video_start_failure",
	"error_occurred",
)

func decodeRaw(r io.Reader) ([]models.RawSessionRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("dataset is empty")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInput, errors.CodeReadFailed, "failed to read dataset header")
	}
	if err := checkHeader(header, constants.InputColumns); err != nil {
		return nil, err
	}

	var records []models.RawSessionRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInput, errors.CodeReadFailed, "failed to read dataset row")
		}
		records = append(records, models.RawSessionRecord{
			SessionID:          row[0],
			UserID:             row[1],
			Timestamp:          row[2],
			DeviceType:         row[3],
			OSVersion:          row[4],
			AppVersion:         row[5],
			ContentID:          row[6],
			StartupTimeMs:      row[7],
			RebufferCount:      row[8],
			RebufferDurationMs: row[9],
			BitrateKbps:        row[10],
			Resolution:         row[11],
			FramesDropped:      row[12],
			SessionDurationSec: row[13],
			NetworkType:        row[14],
			CountryCode:        row[15],
			ISP:                row[16],
			CDNPop:             row[17],
		})
	}
	return records, nil
}

func encodeClean(w io.Writer, records []models.SessionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(constants.InputColumns); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write dataset header")
	}
	for i := range records {
		if err := writer.Write(cleanFields(&records[i])); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write dataset row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to flush dataset")
	}
	return nil
}

func decodeClean(r io.Reader) ([]models.SessionRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("dataset is empty")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInput, errors.CodeReadFailed, "failed to read dataset header")
	}
	if err := checkHeader(header, constants.InputColumns); err != nil {
		return nil, err
	}

	var records []models.SessionRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInput, errors.CodeReadFailed, "failed to read dataset row")
		}
		rec, err := parseClean(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeEnriched(w io.Writer, records []models.EnrichedSessionRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(enrichedColumns); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write dataset header")
	}
	for i := range records {
		e := &records[i]
		fields := append(cleanFields(&e.SessionRecord),
			strconv.Itoa(e.Hour),
			strconv.Itoa(e.DayOfWeek),
			e.DayName,
			strconv.FormatBool(e.IsWeekend),
			e.TimeOfDay,
			strconv.FormatBool(e.IsPeakTime),
			formatFloat(e.RebufferRatio),
			strconv.FormatInt(e.QualityScore, 10),
			e.StartupCategory,
			formatFloat(e.OverallQoEScore),
			e.SessionQuality,
			e.ViewingDurationCategory,
			e.BufferingSeverity,
			e.NetworkQualityInferred,
			e.DeviceFamily,
			e.ScreenSize,
			e.Region,
			e.MarketMaturity,
			e.TimezoneGroup,
			strconv.FormatBool(e.VideoStartFailure),
			strconv.FormatBool(e.ErrorOccurred),
		)
		if err := writer.Write(fields); err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to write dataset row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to flush dataset")
	}
	return nil
}

func decodeEnriched(r io.Reader) ([]models.EnrichedSessionRecord, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError("dataset is empty")
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeInput, errors.CodeReadFailed, "failed to read dataset header")
	}
	if err := checkHeader(header, enrichedColumns); err != nil {
		return nil, err
	}

	var records []models.EnrichedSessionRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeInput, errors.CodeReadFailed, "failed to read dataset row")
		}
		rec, err := parseEnriched(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func cleanFields(r *models.SessionRecord) []string {
	return []string{
		r.SessionID,
		r.UserID,
		r.Timestamp.Format(constants.TimestampLayout),
		r.DeviceType,
		r.OSVersion,
		r.AppVersion,
		r.ContentID,
		strconv.FormatInt(r.StartupTimeMs, 10),
		strconv.FormatInt(r.RebufferCount, 10),
		strconv.FormatInt(r.RebufferDurationMs, 10),
		strconv.FormatInt(r.BitrateKbps, 10),
		r.Resolution,
		strconv.FormatInt(r.FramesDropped, 10),
		strconv.FormatInt(r.SessionDurationSec, 10),
		r.NetworkType,
		r.CountryCode,
		r.ISP,
		r.CDNPop,
	}
}

func parseClean(row []string) (models.SessionRecord, error) {
	p := &rowParser{row: row}
	rec := models.SessionRecord{
		SessionID:          row[0],
		UserID:             row[1],
		Timestamp:          p.timestamp(2),
		DeviceType:         row[3],
		OSVersion:          row[4],
		AppVersion:         row[5],
		ContentID:          row[6],
		StartupTimeMs:      p.int64(7),
		RebufferCount:      p.int64(8),
		RebufferDurationMs: p.int64(9),
		BitrateKbps:        p.int64(10),
		Resolution:         row[11],
		FramesDropped:      p.int64(12),
		SessionDurationSec: p.int64(13),
		NetworkType:        row[14],
		CountryCode:        row[15],
		ISP:                row[16],
		CDNPop:             row[17],
	}
	return rec, p.err
}

func parseEnriched(row []string) (models.EnrichedSessionRecord, error) {
	base, err := parseClean(row[:len(constants.InputColumns)])
	if err != nil {
		return models.EnrichedSessionRecord{}, err
	}
	p := &rowParser{row: row}
	n := len(constants.InputColumns)
	rec := models.EnrichedSessionRecord{
		SessionRecord: base,

		Hour:       p.int(n),
		DayOfWeek:  p.int(n + 1),
		DayName:    row[n+2],
		IsWeekend:  p.bool(n + 3),
		TimeOfDay:  row[n+4],
		IsPeakTime: p.bool(n + 5),

		RebufferRatio:   p.float(n + 6),
		QualityScore:    p.int64(n + 7),
		StartupCategory: row[n+8],
		OverallQoEScore: p.float(n + 9),

		SessionQuality:          row[n+10],
		ViewingDurationCategory: row[n+11],
		BufferingSeverity:       row[n+12],
		NetworkQualityInferred:  row[n+13],

		DeviceFamily:   row[n+14],
		ScreenSize:     row[n+15],
		Region:         row[n+16],
		MarketMaturity: row[n+17],
		TimezoneGroup:  row[n+18],

		VideoStartFailure: p.bool(n + 19),
		ErrorOccurred:     p.bool(n + 20),
	}
	return rec, p.err
}

// rowParser accumulates the first parse failure across a row so the
// field-by-field parsing above stays flat.
type rowParser struct {
	row []string
	err error
}

func (p *rowParser) fail(idx int, cause error) {
	if p.err == nil {
		p.err = errors.WrapError(cause, errors.ErrorTypeInput, errors.CodeTypeCoercionFailed,
			fmt.Sprintf("unparseable value in column %d", idx))
	}
}

func (p *rowParser) int64(idx int) int64 {
	v, err := strconv.ParseInt(p.row[idx], 10, 64)
	if err != nil {
		p.fail(idx, err)
	}
	return v
}

func (p *rowParser) int(idx int) int {
	return int(p.int64(idx))
}

func (p *rowParser) float(idx int) float64 {
	v, err := strconv.ParseFloat(p.row[idx], 64)
	if err != nil {
		p.fail(idx, err)
	}
	return v
}

func (p *rowParser) bool(idx int) bool {
	v, err := strconv.ParseBool(p.row[idx])
	if err != nil {
		p.fail(idx, err)
	}
	return v
}

func (p *rowParser) timestamp(idx int) time.Time {
	v, err := time.Parse(constants.TimestampLayout, p.row[idx])
	if err != nil {
		p.fail(idx, err)
	}
	return v
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return errors.NewSchemaError(fmt.Sprintf("expected %d columns, got %d", len(want), len(got)))
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return errors.NewSchemaError(fmt.Sprintf("column %d: expected %q, got %q", i, want[i], got[i]))
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
