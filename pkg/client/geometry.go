package client

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PointHalfWidthDegrees is the half-width of the square AOI built around a point.
const PointHalfWidthDegrees = 0.01

// Geometry is a GeoJSON geometry. Only Point and Polygon are accepted as AOIs.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// PointGeometry returns a GeoJSON Point at lon/lat.
func PointGeometry(lon, lat float64) Geometry {
	coords, _ := json.Marshal([]float64{lon, lat})
	return Geometry{Type: "Point", Coordinates: coords}
}

// PolygonGeometry returns a GeoJSON Polygon with a single outer ring.
func PolygonGeometry(ring [][2]float64) Geometry {
	positions := make([][]float64, len(ring))
	for i, p := range ring {
		positions[i] = []float64{p[0], p[1]}
	}
	coords, _ := json.Marshal([][][]float64{positions})
	return Geometry{Type: "Polygon", Coordinates: coords}
}

// GeometryToWKT converts a GeoJSON Point or Polygon into a WKT POLYGON.
// A point becomes a square of PointHalfWidthDegrees around it. Polygon rings
// are closed when the last position differs from the first. Failures are
// ClassValidation errors.
func GeometryToWKT(g Geometry) (string, error) {
	switch strings.ToLower(g.Type) {
	case "point":
		var pos []float64
		if err := json.Unmarshal(g.Coordinates, &pos); err != nil {
			return "", NewValidationError("point coordinates must be [lon, lat]", err)
		}
		lon, lat, err := position(pos)
		if err != nil {
			return "", err
		}
		d := PointHalfWidthDegrees
		ring := [][2]float64{
			{lon - d, lat - d},
			{lon + d, lat - d},
			{lon + d, lat + d},
			{lon - d, lat + d},
			{lon - d, lat - d},
		}
		return formatPolygon([][][2]float64{ring}), nil

	case "polygon":
		var raw [][][]float64
		if err := json.Unmarshal(g.Coordinates, &raw); err != nil {
			return "", NewValidationError("polygon coordinates must be an array of rings", err)
		}
		if len(raw) == 0 {
			return "", NewValidationError("polygon has no rings", nil)
		}
		rings := make([][][2]float64, 0, len(raw))
		for i, r := range raw {
			ring, err := polygonRing(r)
			if err != nil {
				return "", NewValidationError(fmt.Sprintf("polygon ring %d: %s", i, messageOf(err)), err)
			}
			rings = append(rings, ring)
		}
		return formatPolygon(rings), nil

	case "":
		return "", NewValidationError("geometry type is required", nil)

	default:
		return "", NewValidationError(fmt.Sprintf("unsupported geometry type %q (want Point or Polygon)", g.Type), nil)
	}
}

func polygonRing(raw [][]float64) ([][2]float64, error) {
	if len(raw) < 3 {
		return nil, NewValidationError(fmt.Sprintf("needs at least 3 positions (got %d)", len(raw)), nil)
	}
	ring := make([][2]float64, 0, len(raw)+1)
	for _, pos := range raw {
		lon, lat, err := position(pos)
		if err != nil {
			return nil, err
		}
		ring = append(ring, [2]float64{lon, lat})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}

func position(pos []float64) (lon, lat float64, err error) {
	if len(pos) < 2 {
		return 0, 0, NewValidationError("position must have longitude and latitude", nil)
	}
	lon, lat = pos[0], pos[1]
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, NewValidationError(fmt.Sprintf("longitude %v out of range [-180, 180]", lon), nil)
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, NewValidationError(fmt.Sprintf("latitude %v out of range [-90, 90]", lat), nil)
	}
	return lon, lat, nil
}

func formatPolygon(rings [][][2]float64) string {
	var sb strings.Builder
	sb.WriteString("POLYGON(")
	for i, ring := range rings {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(")
		for j, p := range ring {
			if j > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(formatCoord(p[0]))
			sb.WriteString(" ")
			sb.WriteString(formatCoord(p[1]))
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")
	return sb.String()
}

// formatCoord rounds to 6 decimals (about 0.1 m) without trailing zeros.
func formatCoord(v float64) string {
	rounded := math.Round(v*1e6) / 1e6
	if rounded == 0 {
		rounded = 0 // drop negative zero
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func messageOf(err error) string {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Message
	}
	return err.Error()
}

// normalizeAOI resolves an AOI given as WKT text or as GeoJSON.
// Exactly one of the two must be set.
func normalizeAOI(wkt string, geometry *Geometry) (string, error) {
	wkt = strings.TrimSpace(wkt)
	switch {
	case wkt != "" && geometry != nil:
		return "", NewValidationError("provide either an AOI WKT string or a geometry, not both", nil)
	case geometry != nil:
		return GeometryToWKT(*geometry)
	case wkt == "":
		return "", NewValidationError("aoi is required", nil)
	case !strings.HasPrefix(strings.ToUpper(wkt), "POLYGON") && !strings.HasPrefix(strings.ToUpper(wkt), "MULTIPOLYGON"):
		return "", NewValidationError("aoi must be a WKT POLYGON or MULTIPOLYGON", nil)
	default:
		return wkt, nil
	}
}
