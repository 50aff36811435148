package warehouse

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rayfieldsquare/qoe-pipeline/internal/transform"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/constants"
	"github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
)

// DeviceKey is the natural key of dim_device.
type DeviceKey struct {
	DeviceType string
	OSVersion  string
	AppVersion string
}

// GeoKey is the natural key of dim_geography.
type GeoKey struct {
	CountryCode string
	ISP         string
	CDNPop      string
}

// NetworkKey is the natural key of dim_network.
type NetworkKey struct {
	NetworkType    string
	NetworkQuality string
}

// DeviceRow is a new dim_device row to insert on a cache miss.
type DeviceRow struct {
	DeviceType   string
	DeviceFamily string
	OSVersion    string
	AppVersion   string
	ScreenSize   string
	Supports4K   bool
}

// GeographyRow is a new dim_geography row to insert on a cache miss.
type GeographyRow struct {
	CountryCode    string
	Region         string
	TimezoneGroup  string
	MarketMaturity string
	ISP            string
	CDNPop         string
}

// DimensionStore is the slice of the warehouse the resolver depends
// on: full cache loads at construction plus inserts for the two
// growth dimensions.
type DimensionStore interface {
	LoadDateKeys(ctx context.Context) (map[string]int64, error)
	LoadTimeKeys(ctx context.Context) (map[int]int64, error)
	LoadDeviceKeys(ctx context.Context) (map[DeviceKey]int64, error)
	LoadGeoKeys(ctx context.Context) (map[GeoKey]int64, error)
	LoadContentKeys(ctx context.Context) (map[string]int64, error)
	LoadNetworkKeys(ctx context.Context) (map[NetworkKey]int64, error)
	LoadCohortKeys(ctx context.Context) ([]int64, error)
	InsertDevice(ctx context.Context, row DeviceRow) (int64, error)
	InsertGeography(ctx context.Context, row GeographyRow) (int64, error)
}

// Resolver translates natural keys into warehouse surrogate keys. One
// Resolver owns its caches for the lifetime of a single pipeline run;
// it must not be shared across concurrent runs, because the
// get-or-create path on the growth dimensions is cache-then-insert.
type Resolver struct {
	store  DimensionStore
	logger *logrus.Logger

	dateKeys    map[string]int64
	timeKeys    map[int]int64
	deviceKeys  map[DeviceKey]int64
	geoKeys     map[GeoKey]int64
	contentKeys map[string]int64
	networkKeys map[NetworkKey]int64
	cohortKeys  []int64
}

// NewResolver constructs a resolver for one run, loading every
// dimension table fully into memory.
func NewResolver(ctx context.Context, store DimensionStore, logger *logrus.Logger) (*Resolver, error) {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Resolver{store: store, logger: logger}

	var err error
	if r.dateKeys, err = store.LoadDateKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load date dimension")
	}
	if r.timeKeys, err = store.LoadTimeKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load time dimension")
	}
	if r.deviceKeys, err = store.LoadDeviceKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load device dimension")
	}
	if r.geoKeys, err = store.LoadGeoKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load geography dimension")
	}
	if r.contentKeys, err = store.LoadContentKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load content dimension")
	}
	if r.networkKeys, err = store.LoadNetworkKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load network dimension")
	}
	if r.cohortKeys, err = store.LoadCohortKeys(ctx); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "failed to load cohort dimension")
	}
	sort.Slice(r.cohortKeys, func(i, j int) bool { return r.cohortKeys[i] < r.cohortKeys[j] })

	logger.WithFields(logrus.Fields{
		"dates":    len(r.dateKeys),
		"times":    len(r.timeKeys),
		"devices":  len(r.deviceKeys),
		"geos":     len(r.geoKeys),
		"contents": len(r.contentKeys),
		"networks": len(r.networkKeys),
		"cohorts":  len(r.cohortKeys),
	}).Info("Dimension caches loaded")

	return r, nil
}

// ResolveDateKey looks up the date dimension row for a timestamp. The
// date dimension is seeded externally; a miss is a per-row error.
func (r *Resolver) ResolveDateKey(ts time.Time) (int64, error) {
	date := ts.Format("2006-01-02")
	key, ok := r.dateKeys[date]
	if !ok {
		return 0, errors.NewDimensionKeyError(constants.DimensionDate, date)
	}
	return key, nil
}

// ResolveTimeKey looks up the time dimension row for a timestamp's
// hour.
func (r *Resolver) ResolveTimeKey(ts time.Time) (int64, error) {
	hour := ts.Hour()
	key, ok := r.timeKeys[hour]
	if !ok {
		return 0, errors.NewDimensionKeyError(constants.DimensionTime, fmt.Sprintf("hour=%d", hour))
	}
	return key, nil
}

// ResolveContentKey looks up the content dimension row for a content
// ID.
func (r *Resolver) ResolveContentKey(contentID string) (int64, error) {
	key, ok := r.contentKeys[contentID]
	if !ok {
		return 0, errors.NewDimensionKeyError(constants.DimensionContent, contentID)
	}
	return key, nil
}

// ResolveNetworkKey looks up the network dimension row for a network
// type and inferred quality.
func (r *Resolver) ResolveNetworkKey(networkType, networkQuality string) (int64, error) {
	nk := NetworkKey{NetworkType: networkType, NetworkQuality: networkQuality}
	key, ok := r.networkKeys[nk]
	if !ok {
		return 0, errors.NewDimensionKeyError(constants.DimensionNetwork,
			fmt.Sprintf("%s/%s", networkType, networkQuality))
	}
	return key, nil
}

// ResolveCohortKey assigns a user to a cohort deterministically by
// hashing the user ID onto the loaded cohort key set, so re-runs of
// the same session land in the same cohort.
func (r *Resolver) ResolveCohortKey(userID string) (int64, error) {
	if len(r.cohortKeys) == 0 {
		return 0, errors.NewDimensionKeyError(constants.DimensionCohort, "no cohorts seeded")
	}
	h := fnv.New64a()
	h.Write([]byte(userID))
	return r.cohortKeys[h.Sum64()%uint64(len(r.cohortKeys))], nil
}

// ResolveDeviceKey returns the surrogate key for a device natural key,
// creating the dimension row on first sight. The insert is committed
// and cached before returning, so a natural key is inserted at most
// once per run.
func (r *Resolver) ResolveDeviceKey(ctx context.Context, deviceType, osVersion, appVersion string) (int64, error) {
	dk := DeviceKey{DeviceType: deviceType, OSVersion: osVersion, AppVersion: appVersion}
	if key, ok := r.deviceKeys[dk]; ok {
		return key, nil
	}

	key, err := r.store.InsertDevice(ctx, DeviceRow{
		DeviceType:   deviceType,
		DeviceFamily: transform.DeviceFamily(deviceType),
		OSVersion:    osVersion,
		AppVersion:   appVersion,
		ScreenSize:   transform.ScreenSize(deviceType),
		Supports4K:   transform.SupportsUHD(deviceType),
	})
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to create device dimension row")
	}
	r.deviceKeys[dk] = key

	r.logger.WithFields(logrus.Fields{
		"device_type": deviceType,
		"os_version":  osVersion,
		"app_version": appVersion,
		"device_key":  key,
	}).Debug("Created device dimension row")

	return key, nil
}

// ResolveGeoKey returns the surrogate key for a geography natural key,
// creating the dimension row on first sight.
func (r *Resolver) ResolveGeoKey(ctx context.Context, countryCode, isp, cdnPop string) (int64, error) {
	gk := GeoKey{CountryCode: countryCode, ISP: isp, CDNPop: cdnPop}
	if key, ok := r.geoKeys[gk]; ok {
		return key, nil
	}

	geo := transform.GeoAttributes(countryCode)
	key, err := r.store.InsertGeography(ctx, GeographyRow{
		CountryCode:    countryCode,
		Region:         geo.Region,
		TimezoneGroup:  geo.TimezoneGroup,
		MarketMaturity: geo.MarketMaturity,
		ISP:            isp,
		CDNPop:         cdnPop,
	})
	if err != nil {
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "failed to create geography dimension row")
	}
	r.geoKeys[gk] = key

	r.logger.WithFields(logrus.Fields{
		"country_code": countryCode,
		"isp":          isp,
		"cdn_pop":      cdnPop,
		"geo_key":      key,
	}).Debug("Created geography dimension row")

	return key, nil
}
