package geography

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultNameProperty is the feature property holding the region name in
// the Ontario public health unit boundary layer.
const DefaultNameProperty = "NAME_ENG"

// FeatureCollection is a decoded GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one boundary polygon with its properties.
type Feature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id,omitempty"`
	Properties map[string]any `json:"properties"`
	Geometry   *Geometry      `json:"geometry"`
}

// Geometry keeps coordinates raw until a polygon view is requested.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Position is a GeoJSON [longitude, latitude] pair.
type Position [2]float64

func (p Position) Lng() float64 { return p[0] }
func (p Position) Lat() float64 { return p[1] }

// Ring is a closed linear ring. The first ring of a polygon is its outer
// boundary; the rest are holes.
type Ring []Position

// Polygon is an outer ring followed by optional holes.
type Polygon []Ring

// Name returns the string value of property, or "".
func (f Feature) Name(property string) string {
	v, ok := f.Properties[property]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Polygons returns the feature's polygons. Polygon and MultiPolygon
// geometries are supported; a feature without geometry has none.
func (f Feature) Polygons() ([]Polygon, error) {
	if f.Geometry == nil || len(f.Geometry.Coordinates) == 0 {
		return nil, nil
	}
	switch f.Geometry.Type {
	case "Polygon":
		var p Polygon
		if err := json.Unmarshal(f.Geometry.Coordinates, &p); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		return []Polygon{p}, nil
	case "MultiPolygon":
		var mp []Polygon
		if err := json.Unmarshal(f.Geometry.Coordinates, &mp); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", f.Geometry.Type)
	}
}

// Names lists the feature names in collection order.
func (fc *FeatureCollection) Names(property string) []string {
	names := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		names = append(names, f.Name(property))
	}
	return names
}

// Decode parses a GeoJSON FeatureCollection.
func Decode(data []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unexpected GeoJSON type %q", fc.Type)
	}
	return &fc, nil
}
