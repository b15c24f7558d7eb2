// Package geo converts game-world coordinates into map-friendly shapes for
// the community live map. Game coordinates are treated as EPSG:3857 meters;
// the web map wants WGS84 latitude/longitude.
package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when a coordinate string cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3D is a parsed game-world position.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ParsePosition parses an "x,y" or "x,y,z" string into a Position3D.
func ParsePosition(coords string) (Position3D, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return Position3D{}, ErrInvalidCoordinates
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Position3D{}, ErrInvalidCoordinates
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Position3D{}, ErrInvalidCoordinates
	}
	var z float64
	if len(parts) > 2 {
		z, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return Position3D{}, ErrInvalidCoordinates
		}
	}
	return Position3D{X: x, Y: y, Z: z}, nil
}

// ToLatLng projects game-world meters (3857) to WGS84 lat/long for the web map.
func ToLatLng(x, y float64) (lat, lng float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	lng, lat, _ = f(x, y, 0)
	return lat, lng
}

// Point3857 builds a geometry point in game-world coordinates.
func Point3857(p Position3D) geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.X, Y: p.Y},
			Z:    p.Z,
			Type: geom.CoordinatesType(geom.DimXYZ),
		},
	)
}
