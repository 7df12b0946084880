package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OCAP2/simtools/pkg/core"
	"github.com/wroge/wgs84"
)

// LOCAL PLANAR APPROXIMATION
// Offsets in meters are converted with fixed degree lengths calibrated near 35°N.
// This is not geodesy: results drift quickly away from the calibration band.
const (
	MetersPerDegreeLat = 111000.0
	MetersPerDegreeLon = 91000.0
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// MetersToLatLonOffset converts a planar offset (dx east, dy north) into degree offsets.
func MetersToLatLonOffset(dxM, dyM float64) (dLat, dLon float64) {
	return dyM / MetersPerDegreeLat, dxM / MetersPerDegreeLon
}

// Offset moves p by dx meters east and dy meters north.
func Offset(p core.LatLon, dxM, dyM float64) core.LatLon {
	dLat, dLon := MetersToLatLonOffset(dxM, dyM)
	return core.LatLon{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

// ParseLatLon parses a string in the format "lat,lon"
func ParseLatLon(s string) (core.LatLon, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.LatLon{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.LatLon{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.LatLon{}, ErrInvalidCoordinates
	}
	if !(lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180) {
		return core.LatLon{}, ErrInvalidCoordinates
	}
	return core.LatLon{Lat: lat, Lon: lon}, nil
}

var toWebMercator = wgs84.EPSG().Transform(4326, 3857)

// WebMercator projects a WGS84 point to EPSG:3857 meters for map renderers
func WebMercator(lat, lon float64) (x, y float64) {
	x, y, _ = toWebMercator(lon, lat, 0)
	return x, y
}
