// Package compose performs the deterministic, local assembly of a page:
// the character cutout is placed into its panel and the narration text is
// rendered into the opposite panel. No AI calls happen here.
//
// The measured text bounding box returned in Result is the contract the
// inpainting stage depends on: it must exactly bound every rendered
// glyph, because the inpainting mask protects exactly that region (plus a
// margin) from the background edit.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MichaelB312/storybook/internal/story"
)

const (
	// CanvasWidth and CanvasHeight are the fixed page canvas dimensions.
	CanvasWidth  = 1024
	CanvasHeight = 1024

	// textPadding is the inset of the text block from its panel edges.
	textPadding = 48

	// lineHeight is the fixed baseline-to-baseline distance in pixels.
	lineHeight = 22
)

// Result is the output of a composition pass.
type Result struct {
	// Image is the composed canvas.
	Image *image.RGBA

	// TextBounds is the measured extent of every rendered glyph. It is
	// the zero rectangle when no narration was drawn.
	TextBounds image.Rectangle

	// PanelSide is the half of the canvas occupied by the character.
	PanelSide story.PanelSide
}

// PanelRect returns the canvas half occupied by the character for a side.
func PanelRect(side story.PanelSide) image.Rectangle {
	if side == story.PanelLeft {
		return image.Rect(0, 0, CanvasWidth/2, CanvasHeight)
	}
	return image.Rect(CanvasWidth/2, 0, CanvasWidth, CanvasHeight)
}

// Page composes a character cutout and narration text onto a fresh canvas.
// The cutout is fitted into the panel for the given side preserving aspect
// ratio; the narration is word-wrapped into the opposite panel.
func Page(cutout image.Image, side story.PanelSide, narration string) (*Result, error) {
	if cutout == nil {
		return nil, fmt.Errorf("cutout image is required")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	panel := PanelRect(side)
	drawFitted(canvas, panel.Inset(textPadding/2), cutout)

	textPanel := PanelRect(side.Opposite())
	bounds := drawNarration(canvas, textPanel, narration)

	return &Result{
		Image:      canvas,
		TextBounds: bounds,
		PanelSide:  side,
	}, nil
}

// DecodePage decodes PNG bytes and composes them; convenience for the
// pipeline, which carries stage outputs as encoded bytes.
func DecodePage(cutoutPNG []byte, side story.PanelSide, narration string) (*Result, error) {
	img, err := png.Decode(bytes.NewReader(cutoutPNG))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cutout: %w", err)
	}
	return Page(img, side, narration)
}

// EncodePNG renders the composed canvas as PNG bytes.
func (r *Result) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image); err != nil {
		return nil, fmt.Errorf("failed to encode composition: %w", err)
	}
	return buf.Bytes(), nil
}

// drawFitted scales src into dst's rect preserving aspect ratio, centered.
// Nearest-neighbor keeps the operation fully deterministic.
func drawFitted(dst *image.RGBA, rect image.Rectangle, src image.Image) {
	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return
	}

	scaleX := float64(rect.Dx()) / float64(sb.Dx())
	scaleY := float64(rect.Dy()) / float64(sb.Dy())
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}
	if scale > 1 {
		scale = 1 // never enlarge a cutout; it would soften the identity
	}

	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)
	x0 := rect.Min.X + (rect.Dx()-w)/2
	y0 := rect.Min.Y + (rect.Dy()-h)/2
	target := image.Rect(x0, y0, x0+w, y0+h)

	xdraw.NearestNeighbor.Scale(dst, target, src, sb, xdraw.Over, nil)
}

// drawNarration word-wraps and renders text into the panel, accumulating
// the exact union of every drawn line's extent. The returned rectangle is
// measured from the drawer's own metrics, never estimated from the input.
func drawNarration(dst *image.RGBA, panel image.Rectangle, narration string) image.Rectangle {
	text := strings.TrimSpace(narration)
	if text == "" {
		return image.Rectangle{}
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()

	maxWidth := panel.Dx() - 2*textPadding
	lines := wrapText(face, text, maxWidth)

	x := panel.Min.X + textPadding
	y := panel.Min.Y + textPadding + ascent

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	var bounds image.Rectangle
	for _, line := range lines {
		if y+descent > panel.Max.Y-textPadding {
			break // out of vertical room; remaining lines are dropped
		}
		drawer.Dot = fixed.P(x, y)
		advance := drawer.MeasureString(line)
		drawer.DrawString(line)

		lineRect := image.Rect(x, y-ascent, x+advance.Ceil(), y+descent)
		if bounds.Empty() {
			bounds = lineRect
		} else {
			bounds = bounds.Union(lineRect)
		}
		y += lineHeight
	}

	return bounds
}

// wrapText greedily wraps words to maxWidth as measured by the face.
// Words wider than a full line are split at rune granularity so no glyph
// ever escapes the measured extent.
func wrapText(face font.Face, text string, maxWidth int) []string {
	maxW := fixed.I(maxWidth)
	var lines []string
	var current string

	flush := func() {
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
	}

	for _, word := range strings.Fields(text) {
		for font.MeasureString(face, word) > maxW {
			// Hard-split an oversized word at the widest fitting prefix.
			runes := []rune(word)
			cut := len(runes)
			for cut > 1 && font.MeasureString(face, string(runes[:cut])) > maxW {
				cut--
			}
			flush()
			lines = append(lines, string(runes[:cut]))
			word = string(runes[cut:])
		}
		if word == "" {
			continue
		}
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if font.MeasureString(face, candidate) > maxW {
			flush()
			current = word
		} else {
			current = candidate
		}
	}
	flush()

	return lines
}
