package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// DefaultBleed is the padding in output pixels added around an upscaled
// page so downstream print layout can trim to the final size.
const DefaultBleed = 36

// Upscale scales img by the given integer factor and adds bleed padding
// on every side. Like the rest of this package it is deterministic; the
// caller treats it as best-effort and falls back to the original image on
// error.
func Upscale(imgPNG []byte, factor, bleed int) ([]byte, error) {
	if factor < 1 {
		return nil, fmt.Errorf("upscale factor must be >= 1, got %d", factor)
	}
	if bleed < 0 {
		return nil, fmt.Errorf("bleed must be >= 0, got %d", bleed)
	}

	src, err := png.Decode(bytes.NewReader(imgPNG))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for upscale: %w", err)
	}

	sb := src.Bounds()
	w := sb.Dx()*factor + 2*bleed
	h := sb.Dy()*factor + 2*bleed

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)

	target := image.Rect(bleed, bleed, bleed+sb.Dx()*factor, bleed+sb.Dy()*factor)
	xdraw.NearestNeighbor.Scale(out, target, src, sb, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode upscaled image: %w", err)
	}
	return buf.Bytes(), nil
}
