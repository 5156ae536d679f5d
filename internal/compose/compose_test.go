package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/MichaelB312/storybook/internal/story"
)

func testCutout(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 80, A: 255})
		}
	}
	return img
}

func TestPageTextBoundsContainAllGlyphs(t *testing.T) {
	narration := "Once upon a time a little baby discovered the softest, sunniest meadow in the whole wide world."

	res, err := Page(testCutout(300, 400), story.PanelLeft, narration)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if res.TextBounds.Empty() {
		t.Fatal("expected non-empty text bounds")
	}

	// Every non-white pixel in the text panel must fall inside the
	// measured bounds; any stray glyph pixel outside is a contract
	// violation that would let the inpainting stage destroy text.
	textPanel := PanelRect(story.PanelRight)
	for y := textPanel.Min.Y; y < textPanel.Max.Y; y++ {
		for x := textPanel.Min.X; x < textPanel.Max.X; x++ {
			r, g, b, _ := res.Image.At(x, y).RGBA()
			if r == 0xffff && g == 0xffff && b == 0xffff {
				continue
			}
			if !(image.Point{X: x, Y: y}).In(res.TextBounds) {
				t.Fatalf("glyph pixel at (%d,%d) outside measured bounds %v", x, y, res.TextBounds)
			}
		}
	}
}

func TestPageTextBoundsAreTight(t *testing.T) {
	res, err := Page(testCutout(100, 100), story.PanelRight, "Hello little one")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}

	// The measured bounds must actually contain drawn glyphs, not just
	// enclose empty space: at least one non-white pixel inside.
	found := false
	for y := res.TextBounds.Min.Y; y < res.TextBounds.Max.Y && !found; y++ {
		for x := res.TextBounds.Min.X; x < res.TextBounds.Max.X; x++ {
			r, g, b, _ := res.Image.At(x, y).RGBA()
			if r != 0xffff || g != 0xffff || b != 0xffff {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("no glyph pixels inside measured bounds %v", res.TextBounds)
	}
}

func TestPageEmptyNarration(t *testing.T) {
	res, err := Page(testCutout(100, 100), story.PanelLeft, "   ")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if !res.TextBounds.Empty() {
		t.Errorf("expected empty bounds for blank narration, got %v", res.TextBounds)
	}
}

func TestPageTextStaysInOppositePanel(t *testing.T) {
	for _, side := range []story.PanelSide{story.PanelLeft, story.PanelRight} {
		res, err := Page(testCutout(50, 50), side, "A short line")
		if err != nil {
			t.Fatalf("Page(%s) error = %v", side, err)
		}
		textPanel := PanelRect(story.PanelLeft)
		if side == story.PanelLeft {
			textPanel = PanelRect(story.PanelRight)
		}
		if !res.TextBounds.In(textPanel) {
			t.Errorf("side %s: text bounds %v escape text panel %v", side, res.TextBounds, textPanel)
		}
	}
}

func TestPageIsDeterministic(t *testing.T) {
	a, err := Page(testCutout(120, 160), story.PanelLeft, "The very same page")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	b, err := Page(testCutout(120, 160), story.PanelLeft, "The very same page")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if !bytes.Equal(a.Image.Pix, b.Image.Pix) {
		t.Error("identical inputs produced different canvases")
	}
	if a.TextBounds != b.TextBounds {
		t.Errorf("identical inputs produced different bounds: %v vs %v", a.TextBounds, b.TextBounds)
	}
}

func TestWrapTextSplitsOversizedWords(t *testing.T) {
	long := strings.Repeat("a", 400)
	res, err := Page(testCutout(64, 64), story.PanelLeft, long)
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	textPanel := PanelRect(story.PanelRight)
	if !res.TextBounds.In(textPanel) {
		t.Errorf("oversized word escaped panel: bounds %v panel %v", res.TextBounds, textPanel)
	}
}

func TestUpscale(t *testing.T) {
	src, err := Page(testCutout(80, 80), story.PanelLeft, "tiny")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	srcPNG, err := src.EncodePNG()
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}

	out, err := Upscale(srcPNG, 2, DefaultBleed)
	if err != nil {
		t.Fatalf("Upscale() error = %v", err)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode upscaled: %v", err)
	}
	wantW := CanvasWidth*2 + 2*DefaultBleed
	wantH := CanvasHeight*2 + 2*DefaultBleed
	if img.Bounds().Dx() != wantW || img.Bounds().Dy() != wantH {
		t.Errorf("upscaled size = %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), wantW, wantH)
	}
}

func TestUpscaleRejectsBadFactor(t *testing.T) {
	if _, err := Upscale([]byte("not png"), 0, 0); err == nil {
		t.Error("expected error for factor 0")
	}
}
