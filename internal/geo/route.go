package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// RouteWKT parses a JSON array of [x,y] waypoints, as pushed inside
// dispatch call records, into a WKT LINESTRING for map overlays.
// Input format: "[[x1,y1],[x2,y2],...]"
func RouteWKT(input string) (string, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return "", fmt.Errorf("failed to parse route JSON: %w", err)
	}

	if len(coords) < 2 {
		return "", fmt.Errorf("route must have at least 2 waypoints, got %d", len(coords))
	}

	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return "", fmt.Errorf("waypoint %d has insufficient values", i)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls := geom.NewLineString(seq)
	return ls.AsText(), nil
}
