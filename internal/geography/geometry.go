package geography

import (
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// vertices converts a ring to lat/lng pairs, dropping the closing vertex.
func vertices(r Ring) []s2.LatLng {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	out := make([]s2.LatLng, 0, n)
	for _, p := range r[:n] {
		out = append(out, s2.LatLngFromDegrees(p.Lat(), p.Lng()))
	}
	return out
}

func loopOf(r Ring) *s2.Loop {
	lls := vertices(r)
	if len(lls) < 3 {
		return nil
	}
	pts := make([]s2.Point, len(lls))
	for i, ll := range lls {
		pts[i] = s2.PointFromLatLng(ll)
	}
	loop := s2.LoopFromPoints(pts)
	// Rings from the boundary service are not consistently wound.
	loop.Normalize()
	return loop
}

type shape struct {
	outer *s2.Loop
	holes []*s2.Loop
}

func (s shape) contains(p s2.Point) bool {
	if !s.outer.ContainsPoint(p) {
		return false
	}
	for _, h := range s.holes {
		if h.ContainsPoint(p) {
			return false
		}
	}
	return true
}

func shapesOf(f Feature) []shape {
	polys, err := f.Polygons()
	if err != nil {
		return nil
	}
	var shapes []shape
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		outer := loopOf(poly[0])
		if outer == nil {
			continue
		}
		s := shape{outer: outer}
		for _, hole := range poly[1:] {
			if l := loopOf(hole); l != nil {
				s.holes = append(s.holes, l)
			}
		}
		shapes = append(shapes, s)
	}
	return shapes
}

// OuterRings returns the outer boundary of every polygon of f.
func OuterRings(f Feature) [][]s2.LatLng {
	polys, err := f.Polygons()
	if err != nil {
		return nil
	}
	var rings [][]s2.LatLng
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		if v := vertices(poly[0]); len(v) >= 3 {
			rings = append(rings, v)
		}
	}
	return rings
}

// Centroid is the vertex centroid of the feature's largest outer ring.
// ok is false for features without usable geometry.
func Centroid(f Feature) (s2.LatLng, bool) {
	polys, err := f.Polygons()
	if err != nil {
		return s2.LatLng{}, false
	}

	var best Ring
	bestArea := -1.0
	for _, poly := range polys {
		if len(poly) == 0 {
			continue
		}
		loop := loopOf(poly[0])
		if loop == nil {
			continue
		}
		if a := loop.Area(); a > bestArea {
			best, bestArea = poly[0], a
		}
	}
	if best == nil {
		return s2.LatLng{}, false
	}

	var sum r3.Vector
	for _, ll := range vertices(best) {
		sum = sum.Add(s2.PointFromLatLng(ll).Vector)
	}
	if sum.Norm() == 0 {
		return s2.LatLng{}, false
	}
	return s2.LatLngFromPoint(s2.Point{Vector: sum.Normalize()}), true
}

// Locator answers point-in-region queries for a feature collection.
type Locator struct {
	names  []string
	shapes [][]shape
}

// NewLocator indexes the features of fc by the given name property.
func NewLocator(fc *FeatureCollection, property string) *Locator {
	l := &Locator{}
	for _, f := range fc.Features {
		l.names = append(l.names, f.Name(property))
		l.shapes = append(l.shapes, shapesOf(f))
	}
	return l
}

// Locate returns the name of the first feature containing (lat, lng).
func (l *Locator) Locate(lat, lng float64) (string, bool) {
	p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	for i, shapes := range l.shapes {
		for _, s := range shapes {
			if s.contains(p) {
				return l.names[i], true
			}
		}
	}
	return "", false
}
