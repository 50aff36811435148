package warehouse

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/rayfieldsquare/qoe-pipeline/pkg/errors"
)

// fakeDimensionStore serves canned dimension data and records inserts.
type fakeDimensionStore struct {
	dates    map[string]int64
	times    map[int]int64
	devices  map[DeviceKey]int64
	geos     map[GeoKey]int64
	contents map[string]int64
	networks map[NetworkKey]int64
	cohorts  []int64

	nextKey       int64
	deviceInserts []DeviceRow
	geoInserts    []GeographyRow
}

func newFakeDimensionStore() *fakeDimensionStore {
	return &fakeDimensionStore{
		dates:    map[string]int64{"2025-06-14": 20250614},
		times:    map[int]int64{20: 20},
		devices:  map[DeviceKey]int64{},
		geos:     map[GeoKey]int64{},
		contents: map[string]int64{"content-42": 7},
		networks: map[NetworkKey]int64{{NetworkType: "wifi", NetworkQuality: "good"}: 3},
		cohorts:  []int64{1, 2, 3},
		nextKey:  100,
	}
}

func (f *fakeDimensionStore) LoadDateKeys(ctx context.Context) (map[string]int64, error) {
	return f.dates, nil
}
func (f *fakeDimensionStore) LoadTimeKeys(ctx context.Context) (map[int]int64, error) {
	return f.times, nil
}
func (f *fakeDimensionStore) LoadDeviceKeys(ctx context.Context) (map[DeviceKey]int64, error) {
	return f.devices, nil
}
func (f *fakeDimensionStore) LoadGeoKeys(ctx context.Context) (map[GeoKey]int64, error) {
	return f.geos, nil
}
func (f *fakeDimensionStore) LoadContentKeys(ctx context.Context) (map[string]int64, error) {
	return f.contents, nil
}
func (f *fakeDimensionStore) LoadNetworkKeys(ctx context.Context) (map[NetworkKey]int64, error) {
	return f.networks, nil
}
func (f *fakeDimensionStore) LoadCohortKeys(ctx context.Context) ([]int64, error) {
	return f.cohorts, nil
}
func (f *fakeDimensionStore) InsertDevice(ctx context.Context, row DeviceRow) (int64, error) {
	f.deviceInserts = append(f.deviceInserts, row)
	f.nextKey++
	return f.nextKey, nil
}
func (f *fakeDimensionStore) InsertGeography(ctx context.Context, row GeographyRow) (int64, error) {
	f.geoInserts = append(f.geoInserts, row)
	f.nextKey++
	return f.nextKey, nil
}

func newTestResolver(t *testing.T, store DimensionStore) *Resolver {
	t.Helper()
	r, err := NewResolver(context.Background(), store, nil)
	require.NoError(t, err)
	return r
}

func TestResolveStaticDimensions(t *testing.T) {
	r := newTestResolver(t, newFakeDimensionStore())

	ts := time.Date(2025, 6, 14, 20, 30, 0, 0, time.UTC)

	dateKey, err := r.ResolveDateKey(ts)
	require.NoError(t, err)
	assert.Equal(t, int64(20250614), dateKey)

	timeKey, err := r.ResolveTimeKey(ts)
	require.NoError(t, err)
	assert.Equal(t, int64(20), timeKey)

	contentKey, err := r.ResolveContentKey("content-42")
	require.NoError(t, err)
	assert.Equal(t, int64(7), contentKey)

	networkKey, err := r.ResolveNetworkKey("wifi", "good")
	require.NoError(t, err)
	assert.Equal(t, int64(3), networkKey)
}

func TestResolveStaticDimensionMiss(t *testing.T) {
	r := newTestResolver(t, newFakeDimensionStore())

	_, err := r.ResolveDateKey(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, pkgerrors.ErrDimensionKeyNotFound))
	assert.True(t, pkgerrors.IsRecoverable(err))

	_, err = r.ResolveContentKey("missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRecoverable(err))

	_, err = r.ResolveNetworkKey("carrier-pigeon", "poor")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRecoverable(err))
}

func TestResolveDeviceCreatesOncePerNaturalKey(t *testing.T) {
	store := newFakeDimensionStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	first, err := r.ResolveDeviceKey(ctx, "smart_tv", "tizen-7.0", "3.2.1")
	require.NoError(t, err)
	second, err := r.ResolveDeviceKey(ctx, "smart_tv", "tizen-7.0", "3.2.1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, store.deviceInserts, 1)

	inserted := store.deviceInserts[0]
	assert.Equal(t, "TV", inserted.DeviceFamily)
	assert.Equal(t, "large", inserted.ScreenSize)
	assert.True(t, inserted.Supports4K)
}

func TestResolveDeviceDistinctNaturalKeys(t *testing.T) {
	store := newFakeDimensionStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	a, err := r.ResolveDeviceKey(ctx, "mobile", "ios-17", "3.2.1")
	require.NoError(t, err)
	b, err := r.ResolveDeviceKey(ctx, "mobile", "ios-18", "3.2.1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, store.deviceInserts, 2)
}

func TestResolveGeoCreatesWithDerivedAttributes(t *testing.T) {
	store := newFakeDimensionStore()
	r := newTestResolver(t, store)
	ctx := context.Background()

	key, err := r.ResolveGeoKey(ctx, "BR", "Claro", "gru-1")
	require.NoError(t, err)
	again, err := r.ResolveGeoKey(ctx, "BR", "Claro", "gru-1")
	require.NoError(t, err)

	assert.Equal(t, key, again)
	require.Len(t, store.geoInserts, 1)

	inserted := store.geoInserts[0]
	assert.Equal(t, "South America", inserted.Region)
	assert.Equal(t, "Americas", inserted.TimezoneGroup)
	assert.Equal(t, "growing", inserted.MarketMaturity)
}

func TestResolveCohortIsDeterministic(t *testing.T) {
	store := newFakeDimensionStore()
	r := newTestResolver(t, store)

	first, err := r.ResolveCohortKey("user-42")
	require.NoError(t, err)
	second, err := r.ResolveCohortKey("user-42")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, store.cohorts, first)
}

func TestResolveCohortWithoutSeeds(t *testing.T) {
	store := newFakeDimensionStore()
	store.cohorts = nil
	r := newTestResolver(t, store)

	_, err := r.ResolveCohortKey("user-42")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRecoverable(err))
}
