// Package mask builds the binary protect/editable rasters consumed by the
// synthesis provider's edit operations. The convention follows the
// provider's: fully transparent pixels are editable, fully opaque pixels
// are protected and must survive the edit byte-for-byte.
//
// Mask construction is pure and local. A malformed mask is a logic defect,
// so builders fail fast instead of retrying.
package mask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
)

const (
	// TextMargin is the fixed protective margin added around measured
	// text bounds. The protected region must be a superset of the bounds
	// plus this margin, never a subset.
	TextMargin = 16

	// BorderBand is the width of the editable band left along each edge
	// of the character panel during background inpainting.
	BorderBand = 48

	// MinProtectedFraction is the hard floor on how much of the canvas
	// an inpainting mask must protect.
	MinProtectedFraction = 0.60
)

// PreservationLevel selects how much of the identity region a variant
// edit must leave untouched. Low-motion actions warrant stricter masks.
type PreservationLevel string

const (
	LevelStrict   PreservationLevel = "strict"
	LevelModerate PreservationLevel = "moderate"
	LevelRelaxed  PreservationLevel = "relaxed"
)

// LevelForAction classifies an action into a preservation level. Calm
// poses keep most of the figure fixed; energetic poses need freedom to
// re-draw limbs.
func LevelForAction(action string) PreservationLevel {
	switch {
	case containsAnyFold(action, "sleep", "asleep", "nap", "rest", "lying", "cuddl"):
		return LevelStrict
	case containsAnyFold(action, "crawl", "jump", "run", "danc", "swim", "climb", "kick"):
		return LevelRelaxed
	default:
		return LevelModerate
	}
}

// Preservation builds the identity-protecting mask used by the variant
// stage. bounds is the character extent inside the source image; the
// protected region shrinks as the level relaxes, always anchored on the
// upper (face) portion of the figure.
func Preservation(canvas image.Rectangle, bounds image.Rectangle, level PreservationLevel) (*image.Alpha, error) {
	if canvas.Empty() {
		return nil, fmt.Errorf("canvas must not be empty")
	}
	if !bounds.In(canvas) {
		return nil, fmt.Errorf("character bounds %v exceed canvas %v", bounds, canvas)
	}

	m := newEditable(canvas)

	var protected image.Rectangle
	switch level {
	case LevelStrict:
		// Head and torso: top two thirds of the figure.
		protected = image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+bounds.Dy()*2/3)
	case LevelModerate:
		// Head and shoulders: top half.
		protected = image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+bounds.Dy()/2)
	case LevelRelaxed:
		// Face region only: top third, horizontally centered half.
		inset := bounds.Dx() / 4
		protected = image.Rect(bounds.Min.X+inset, bounds.Min.Y, bounds.Max.X-inset, bounds.Min.Y+bounds.Dy()/3)
	default:
		return nil, fmt.Errorf("unknown preservation level %q", level)
	}

	protect(m, protected)
	return m, nil
}

// Inpainting builds the background-protecting mask for the scene stage.
// The protected region is the union of the two panel interiors (leaving
// only narrow border bands editable) and the measured text bounds
// inflated by TextMargin. The text region is protected explicitly even
// though it usually falls inside the text panel's interior: the invariant
// is that it is a superset of the measured bounds plus margin, never a
// subset. Construction fails if less than MinProtectedFraction of the
// canvas ends up protected.
func Inpainting(canvas image.Rectangle, textBounds image.Rectangle, charPanel, textPanel image.Rectangle) (*image.Alpha, error) {
	if canvas.Empty() {
		return nil, fmt.Errorf("canvas must not be empty")
	}
	if !charPanel.In(canvas) {
		return nil, fmt.Errorf("character panel %v exceeds canvas %v", charPanel, canvas)
	}
	if !textPanel.In(canvas) {
		return nil, fmt.Errorf("text panel %v exceeds canvas %v", textPanel, canvas)
	}

	m := newEditable(canvas)

	if interior := charPanel.Inset(BorderBand); !interior.Empty() {
		protect(m, interior)
	}
	if interior := textPanel.Inset(BorderBand); !interior.Empty() {
		protect(m, interior)
	}
	if !textBounds.Empty() {
		protect(m, textBounds.Inset(-TextMargin).Intersect(canvas))
	}

	frac := protectedFraction(m)
	if frac < MinProtectedFraction {
		return nil, fmt.Errorf("inpainting mask protects %.0f%% of canvas, need at least %.0f%%",
			frac*100, MinProtectedFraction*100)
	}

	return m, nil
}

// Protected reports whether the pixel at p is protected by the mask.
func Protected(m *image.Alpha, p image.Point) bool {
	return m.AlphaAt(p.X, p.Y).A == 0xff
}

// EncodePNG serializes a mask for transport to the provider.
func EncodePNG(m *image.Alpha) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

func newEditable(canvas image.Rectangle) *image.Alpha {
	m := image.NewAlpha(canvas)
	draw.Draw(m, canvas, image.NewUniform(color.Alpha{A: 0}), image.Point{}, draw.Src)
	return m
}

func protect(m *image.Alpha, r image.Rectangle) {
	draw.Draw(m, r.Intersect(m.Bounds()), image.NewUniform(color.Alpha{A: 0xff}), image.Point{}, draw.Src)
}

func protectedFraction(m *image.Alpha) float64 {
	b := m.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	count := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.Pix[(y-b.Min.Y)*m.Stride : (y-b.Min.Y)*m.Stride+b.Dx()]
		for _, a := range row {
			if a == 0xff {
				count++
			}
		}
	}
	return float64(count) / float64(total)
}

func containsAnyFold(s string, words ...string) bool {
	lower := strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
