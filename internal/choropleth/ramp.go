package choropleth

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	// light to dark red
	redRamp = []string{"#ffd2d2", "#ffaaaa", "#ff8282", "#ff5a5a", "#ff3232"}
	// yellow through orange to deep red
	heatRamp = []string{"#ffffcc", "#ffeda0", "#feb24c", "#fd8d3c", "#f03b20", "#bd0026", "#800026"}
)

// Ramp returns n colours ordered light to dark. The 5- and 7-class ramps
// are fixed; other sizes are sampled from the 7-class ramp in Lab space.
func Ramp(n int) []string {
	switch {
	case n <= 0:
		return []string{}
	case n == len(redRamp):
		return append([]string(nil), redRamp...)
	case n == len(heatRamp):
		return append([]string(nil), heatRamp...)
	case n == 1:
		return []string{heatRamp[len(heatRamp)/2]}
	}

	anchors := make([]colorful.Color, len(heatRamp))
	for i, h := range heatRamp {
		anchors[i], _ = colorful.Hex(h)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = sample(anchors, float64(i)/float64(n-1)).Clamped().Hex()
	}
	return out
}

// sample interpolates along the anchors at t in [0, 1].
func sample(anchors []colorful.Color, t float64) colorful.Color {
	pos := t * float64(len(anchors)-1)
	i := int(pos)
	if i >= len(anchors)-1 {
		return anchors[len(anchors)-1]
	}
	return anchors[i].BlendLab(anchors[i+1], pos-float64(i))
}

// parseColor decodes a hex colour with the given opacity.
func parseColor(hex string, alpha uint8) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{A: alpha}
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}
