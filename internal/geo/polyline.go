package geo

import (
	"fmt"

	"github.com/OCAP2/simtools/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Bounds is the axis-aligned extent of a set of points, in degrees
type Bounds struct {
	Min core.LatLon `json:"min"`
	Max core.LatLon `json:"max"`
}

// RouteLineString converts a route into a geom.LineString with X=lon, Y=lat.
// Routes with fewer than 2 waypoints yield an empty LineString. A route whose
// waypoints all coincide, or that holds a non-finite coordinate, is an error.
func RouteLineString(route []core.Waypoint) (geom.LineString, error) {
	if len(route) < 2 {
		return geom.LineString{}, nil
	}
	coords := make([]float64, 0, len(route)*2)
	for _, wp := range route {
		coords = append(coords, wp.LonDeg, wp.LatDeg)
	}
	seq := geom.NewSequence(coords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("invalid route: %w", err)
	}
	return ls, nil
}

// RouteLengthDeg returns the planar length of a route in degree units.
// Useful for comparing paths, not for distances. Routes that do not form a
// valid line have length 0.
func RouteLengthDeg(route []core.Waypoint) float64 {
	ls, err := RouteLineString(route)
	if err != nil {
		return 0
	}
	return ls.Length()
}

// BoundsOf returns the extent of the given points, skipping non-finite ones.
// ok is false when no valid point remains.
func BoundsOf(points []core.LatLon) (b Bounds, ok bool) {
	pts := make([]geom.Point, 0, len(points))
	for _, p := range points {
		pt, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.Lon, Y: p.Lat}})
		if err != nil {
			continue
		}
		pts = append(pts, pt)
	}
	if len(pts) == 0 {
		return Bounds{}, false
	}
	minXY, maxXY, ok := geom.NewMultiPoint(pts).Envelope().MinMaxXYs()
	if !ok {
		return Bounds{}, false
	}
	return Bounds{
		Min: core.LatLon{Lat: minXY.Y, Lon: minXY.X},
		Max: core.LatLon{Lat: maxXY.Y, Lon: maxXY.X},
	}, true
}

// RouteBounds returns the extent of a route
func RouteBounds(route []core.Waypoint) (Bounds, bool) {
	points := make([]core.LatLon, len(route))
	for i, wp := range route {
		points[i] = core.LatLon{Lat: wp.LatDeg, Lon: wp.LonDeg}
	}
	return BoundsOf(points)
}
