package render

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// Fixed colours.
const (
	UnassignedColor = "#9e9e9e"
	BackgroundColor = "#ffffff"
	BandColor       = "#e6e6e6"
	EdgeColor       = "#8c8c8c"
	HighlightColor  = "#111111"
)

// goldenAngle spreads successive hues so neighbouring sectors contrast.
const goldenAngle = 137.50776405003785

// Palette assigns a colour to each community. Colours are a function of a
// community's position in the order the palette was built with, never of
// lookup order.
type Palette struct {
	colors map[snapshot.CommunityID]string
	n      int
}

// NewPalette builds a palette for communities in the given order. Repeated
// and unassigned ids are ignored.
func NewPalette(order []snapshot.CommunityID) *Palette {
	p := &Palette{colors: make(map[snapshot.CommunityID]string, len(order))}
	for _, c := range order {
		if !c.Assigned() {
			continue
		}
		if _, ok := p.colors[c]; ok {
			continue
		}
		p.colors[c] = hue(p.n)
		p.n++
	}
	return p
}

// Color returns the fill for community c. Communities outside the build
// order get a colour derived from their id.
func (p *Palette) Color(c snapshot.CommunityID) string {
	if !c.Assigned() {
		return UnassignedColor
	}
	if col, ok := p.colors[c]; ok {
		return col
	}
	return hue(p.n + int(c))
}

// Len returns the number of communities with a reserved colour.
func (p *Palette) Len() int { return p.n }

func hue(i int) string {
	h := math.Mod(float64(i)*goldenAngle, 360)
	return colorful.Hcl(h, 0.55, 0.62).Clamped().Hex()
}
