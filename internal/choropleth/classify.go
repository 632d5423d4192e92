// Package choropleth buckets regional rates into coloured classes and
// renders them onto static maps.
package choropleth

import (
	"math"
	"sort"
	"strings"

	"github.com/ontario-health/healthmap/internal/shared/errors"
)

// Method is a classification scheme.
type Method string

const (
	EqualInterval Method = "equal-interval"
	Quantile      Method = "quantile"
)

// MaxBins bounds the number of classes.
const MaxBins = 9

const (
	// NoDataColor fills regions without a rate.
	NoDataColor = "#e0e0e0"
	// OutOfRangeColor fills regions whose rate falls outside every bin.
	OutOfRangeColor = "#f0f0f0"
)

// ParseMethod accepts a method name; empty selects fallback.
func ParseMethod(s string, fallback Method) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case EqualInterval:
		return EqualInterval, nil
	case Quantile:
		return Quantile, nil
	}
	return "", errors.Validation("unknown classification method", map[string]string{"method": s})
}

// Bin is a closed interval [Low, High] and its fill colour.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Color string  `json:"color"`
}

// Contains reports whether v lies within the closed interval.
func (b Bin) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

func finite(rates []float64) []float64 {
	out := make([]float64, 0, len(rates))
	for _, r := range rates {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			out = append(out, r)
		}
	}
	sort.Float64s(out)
	return out
}

// Classify partitions rates into at most binCount bins. NaN and infinite
// values are ignored. Equal minimum and maximum yield a single bin; no
// finite values yield no bins. binCount is clamped to 1..MaxBins.
func Classify(rates []float64, binCount int, method Method) []Bin {
	values := finite(rates)
	if len(values) == 0 {
		return []Bin{}
	}
	binCount = max(1, min(binCount, MaxBins))

	lo, hi := values[0], values[len(values)-1]
	if lo == hi {
		return []Bin{{Low: lo, High: hi, Color: Ramp(1)[0]}}
	}

	var breaks []float64
	switch method {
	case Quantile:
		breaks = quantileBreaks(values, binCount)
	default:
		breaks = equalBreaks(lo, hi, binCount)
	}

	colors := Ramp(len(breaks) - 1)
	bins := make([]Bin, 0, len(breaks)-1)
	for i := 0; i < len(breaks)-1; i++ {
		bins = append(bins, Bin{Low: breaks[i], High: breaks[i+1], Color: colors[i]})
	}
	return bins
}

// equalBreaks returns n+1 edges from lo to hi. The last edge is hi
// exactly so the maximum is always inside the top bin.
func equalBreaks(lo, hi float64, n int) []float64 {
	width := (hi - lo) / float64(n)
	edges := make([]float64, n+1)
	for i := 0; i < n; i++ {
		edges[i] = lo + float64(i)*width
	}
	edges[n] = hi
	return edges
}

// quantileBreaks places edges at sample quantiles of the sorted values,
// merging duplicates, so heavily tied data produces fewer bins.
func quantileBreaks(sorted []float64, n int) []float64 {
	edges := []float64{sorted[0]}
	for i := 1; i < n; i++ {
		idx := int(math.Ceil(float64(i)*float64(len(sorted))/float64(n))) - 1
		idx = max(0, min(idx, len(sorted)-1))
		if v := sorted[idx]; v > edges[len(edges)-1] {
			edges = append(edges, v)
		}
	}
	if last := sorted[len(sorted)-1]; last > edges[len(edges)-1] {
		edges = append(edges, last)
	}
	return edges
}

// ColorFor maps a rate to its bin colour. Boundary values belong to the
// lower bin. Missing or NaN rates get NoDataColor; rates outside every
// bin get OutOfRangeColor.
func ColorFor(rate *float64, bins []Bin) string {
	if i := BinIndex(rate, bins); i >= 0 {
		return bins[i].Color
	} else if i == noData {
		return NoDataColor
	}
	return OutOfRangeColor
}

const (
	noData     = -1
	outOfRange = -2
)

// BinIndex returns the index of the bin containing rate, -1 for a
// missing rate and -2 when no bin contains it.
func BinIndex(rate *float64, bins []Bin) int {
	if rate == nil || math.IsNaN(*rate) {
		return noData
	}
	for i, b := range bins {
		if b.Contains(*rate) {
			return i
		}
	}
	return outOfRange
}
