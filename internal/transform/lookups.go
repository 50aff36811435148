package transform

// Static categorical lookup tables. These mirror the warehouse's
// reference data; DimensionResolver uses the same tables when it
// creates new device or geography rows.

var deviceFamilies = map[string]string{
	"smart_tv": "TV",
	"mobile":   "Mobile",
	"tablet":   "Mobile",
	"web":      "Desktop",
}

var screenSizes = map[string]string{
	"smart_tv": "large",
	"web":      "medium",
	"tablet":   "medium",
	"mobile":   "small",
}

// Geo holds the static attributes derived from a country code.
type Geo struct {
	Region         string
	TimezoneGroup  string
	MarketMaturity string
}

var geoAttributes = map[string]Geo{
	"US": {"North America", "Americas", "mature"},
	"MX": {"North America", "Americas", "growing"},
	"BR": {"South America", "Americas", "growing"},
	"GB": {"Europe", "EMEA", "mature"},
	"FR": {"Europe", "EMEA", "mature"},
	"DE": {"Europe", "EMEA", "mature"},
	"IN": {"Asia", "APAC", "emerging"},
	"JP": {"Asia", "APAC", "mature"},
	"KR": {"Asia", "APAC", "mature"},
}

// DeviceFamily maps a device type to its family, defaulting to
// Unknown.
func DeviceFamily(deviceType string) string {
	if family, ok := deviceFamilies[deviceType]; ok {
		return family
	}
	return "Unknown"
}

// ScreenSize maps a device type to its screen-size class, defaulting
// to medium.
func ScreenSize(deviceType string) string {
	if size, ok := screenSizes[deviceType]; ok {
		return size
	}
	return "medium"
}

// GeoAttributes maps a country code to its region, timezone group and
// market maturity.
func GeoAttributes(countryCode string) Geo {
	if geo, ok := geoAttributes[countryCode]; ok {
		return geo
	}
	return Geo{Region: "Unknown", TimezoneGroup: "Unknown", MarketMaturity: "emerging"}
}

// SupportsUHD reports whether a device type is assumed to support 4K
// playback.
func SupportsUHD(deviceType string) bool {
	return deviceType == "smart_tv"
}
