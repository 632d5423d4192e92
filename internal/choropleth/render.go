package choropleth

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	sm "github.com/flopp/go-staticmaps"
	"github.com/golang/geo/s2"
	"github.com/ontario-health/healthmap/internal/geography"
)

type mapContext interface {
	SetSize(width, height int)
	SetZoom(zoom int)
	SetCenter(center s2.LatLng)
	AddObject(object sm.MapObject)
	Attribution() string
	OverrideAttribution(attribution string)
	Render() (image.Image, error)
}

var newMapContext = func() mapContext {
	return sm.NewContext()
}

// bubbleMetersPerRoot scales bubble radius with the square root of population.
const bubbleMetersPerRoot = 20.0

const (
	fillAlpha   = 180
	bubbleAlpha = 200
)

// RenderOptions sizes a rendered map. A zero Zoom fits the map to its objects.
type RenderOptions struct {
	Width  int
	Height int
	Zoom   int
}

// DefaultRenderOptions returns an 800x600 auto-fitted map.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Width: 800, Height: 600}
}

func newContext(opts RenderOptions, title string) mapContext {
	ctx := newMapContext()
	ctx.SetSize(opts.Width, opts.Height)
	if opts.Zoom > 0 {
		ctx.SetZoom(opts.Zoom)
	}
	if title != "" {
		ctx.OverrideAttribution(fmt.Sprintf("%s\n%s", title, ctx.Attribution()))
	}
	return ctx
}

// RenderChoropleth draws every feature filled with its class colour.
func RenderChoropleth(res *Result, opts RenderOptions) (image.Image, error) {
	ctx := newContext(opts, res.Measure)
	outline := parseColor("#333333", 255)

	objects := 0
	for i, f := range res.features {
		fill := parseColor(res.Regions[i].Color, fillAlpha)
		for _, ring := range geography.OuterRings(f) {
			ctx.AddObject(sm.NewArea(ring, outline, fill, 1))
			objects++
		}
	}
	if objects == 0 {
		return nil, fmt.Errorf("no drawable regions")
	}
	return ctx.Render()
}

// RenderBubbles draws one circle per region at its centroid, sized by
// population and coloured by class. Regions without population or
// geometry are skipped.
func RenderBubbles(res *Result, opts RenderOptions) (image.Image, error) {
	ctx := newContext(opts, res.Measure)
	outline := parseColor("#555555", 255)

	objects := 0
	for i, f := range res.features {
		pop := res.Regions[i].Population
		if pop == nil || *pop <= 0 {
			continue
		}
		center, ok := geography.Centroid(f)
		if !ok {
			continue
		}
		radius := math.Sqrt(float64(*pop)) * bubbleMetersPerRoot
		fill := parseColor(res.Regions[i].Color, bubbleAlpha)
		ctx.AddObject(sm.NewCircle(center, outline, fill, radius, 1))
		objects++
	}
	if objects == 0 {
		return nil, fmt.Errorf("no regions with population to draw")
	}
	return ctx.Render()
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
