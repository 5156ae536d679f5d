package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/MichaelB312/storybook/internal/compose"
	"github.com/MichaelB312/storybook/internal/mask"
	"github.com/MichaelB312/storybook/internal/scene"
	"github.com/MichaelB312/storybook/internal/story"
	"github.com/MichaelB312/storybook/internal/synth"
)

// Progress milestones reported while a page job moves through its stages.
const (
	progressAnchorReady = 10
	progressVariant     = 30
	progressComposed    = 55
	progressInpainted   = 80
	progressUpscaling   = 95
)

const canvasSize = "1024x1024"

// run drives one job from pending to a terminal state. It is the only
// writer of that job's record after creation.
func (p *Pipeline) run(jobID, bookID string, req story.PageRequest, delay time.Duration) {
	if delay > 0 {
		time.Sleep(delay)
	}

	ctx, cancel := p.withJobContext()
	defer cancel()

	if err := p.jobs.SetProcessing(jobID); err != nil {
		p.logger.Error("failed to start job", "job_id", jobID, "error", err)
		return
	}

	start := time.Now()
	var (
		result *story.PageResult
		err    error
	)
	if req.Page == story.AnchorPage {
		result, err = p.runAnchor(ctx, jobID, bookID, req)
	} else {
		result, err = p.runPage(ctx, jobID, bookID, req)
	}

	if err != nil {
		p.logger.Error("job failed",
			"job_id", jobID,
			"book_id", bookID,
			"page", req.Page,
			"elapsed", time.Since(start).Round(time.Millisecond),
			"error", err)
		if ferr := p.jobs.Fail(jobID, err.Error()); ferr != nil {
			p.logger.Error("failed to record job failure", "job_id", jobID, "error", ferr)
		}
		return
	}

	result.ElapsedMS = time.Since(start).Milliseconds()
	if p.home != nil && len(result.ImagePNG) > 0 {
		if path, werr := p.home.SavePage(bookID, req.Page, result.ImagePNG); werr != nil {
			p.logger.Warn("failed to persist page image", "job_id", jobID, "error", werr)
		} else {
			p.logger.Debug("page image persisted", "path", path)
		}
	}
	p.logger.Info("job completed",
		"job_id", jobID,
		"book_id", bookID,
		"page", req.Page,
		"elapsed", time.Since(start).Round(time.Millisecond))
	if cerr := p.jobs.Complete(jobID, result); cerr != nil {
		p.logger.Error("failed to record job completion", "job_id", jobID, "error", cerr)
	}
}

// runAnchor synthesizes the book's character anchor cutout and resolves
// the anchor future. Anchor failures are terminal for the job and leave
// page jobs to time out on their bounded wait.
func (p *Pipeline) runAnchor(ctx context.Context, jobID, bookID string, req story.PageRequest) (*story.PageResult, error) {
	main, ok := req.Main()
	if !ok {
		return nil, &synth.InputError{Message: "anchor request has no characters"}
	}
	if len(main.PhotoPNG) == 0 && main.Description == "" {
		return nil, &synth.InputError{Message: fmt.Sprintf("character %q needs a photo or a description", main.Name)}
	}

	p.jobs.SetProgress(jobID, progressAnchorReady)

	base := main.PhotoPNG
	if len(base) == 0 {
		base = blankCanvasPNG()
	}
	res, err := p.caller.Edit(ctx, synth.EditRequest{
		Prompt: anchorPrompt(main),
		Images: [][]byte{base},
		Size:   canvasSize,
	}, synth.CallInfo{Stage: "anchor", Page: req.Page, Characters: []string{main.Name}})
	if err != nil {
		return nil, fmt.Errorf("anchor synthesis: %w", err)
	}

	p.anchors.slot(bookID).resolve(res.ImagePNG)
	p.logger.Info("anchor resolved", "book_id", bookID, "character", main.Name)

	return &story.PageResult{
		Page:            req.Page,
		ImagePNG:        res.ImagePNG,
		RewrittenPrompt: res.RewrittenPrompt,
	}, nil
}

// runPage drives the variant, composition, inpainting, and upscale stages
// for one story page.
func (p *Pipeline) runPage(ctx context.Context, jobID, bookID string, req story.PageRequest) (*story.PageResult, error) {
	if len(req.Characters) == 0 {
		return nil, &synth.InputError{Message: "page request has no characters"}
	}

	anchor, err := p.anchors.slot(bookID).await(ctx, p.cfg.AnchorWait)
	if err != nil {
		return nil, fmt.Errorf("waiting for anchor: %w", err)
	}
	p.jobs.SetProgress(jobID, progressAnchorReady)

	level := mask.LevelForAction(req.Action)
	variant, rewritten, err := p.synthesizeVariant(ctx, anchor, bookID, req, level)
	if err != nil {
		return nil, fmt.Errorf("variant synthesis: %w", err)
	}
	p.jobs.SetProgress(jobID, progressVariant)

	side := story.SideForPage(req.Page)
	composed, err := compose.DecodePage(variant, side, req.Narration)
	if err != nil {
		return nil, fmt.Errorf("composing page: %w", err)
	}
	composedPNG, err := composed.EncodePNG()
	if err != nil {
		return nil, fmt.Errorf("encoding composition: %w", err)
	}
	p.jobs.SetProgress(jobID, progressComposed)

	final, moreRewritten, err := p.synthesizeBackground(ctx, composedPNG, composed, req)
	if err != nil {
		return nil, fmt.Errorf("background inpainting: %w", err)
	}
	if rewritten == "" {
		rewritten = moreRewritten
	}
	p.jobs.SetProgress(jobID, progressInpainted)

	imagePNG := final
	upscaled := false
	p.jobs.SetProgress(jobID, progressUpscaling)
	if up, uerr := compose.Upscale(final, p.cfg.UpscaleFactor, compose.DefaultBleed); uerr != nil {
		// Upscaling is cosmetic; the base-resolution page still counts.
		p.logger.Warn("upscale failed, keeping base resolution",
			"job_id", jobID, "page", req.Page, "error", uerr)
	} else {
		imagePNG = up
		upscaled = true
	}

	return &story.PageResult{
		Page:              req.Page,
		ImagePNG:          imagePNG,
		PanelSide:         side,
		PreservationLevel: string(level),
		RewrittenPrompt:   rewritten,
		Upscaled:          upscaled,
	}, nil
}

// synthesizeVariant issues the pose-variant edit: the anchor plus any
// supporting references, under a preservation mask whose strictness comes
// from the page's action.
func (p *Pipeline) synthesizeVariant(ctx context.Context, anchor []byte, bookID string, req story.PageRequest, level mask.PreservationLevel) ([]byte, string, error) {
	canvas := image.Rect(0, 0, compose.CanvasWidth, compose.CanvasHeight)
	pm, err := mask.Preservation(canvas, cutoutBounds(anchor, canvas), level)
	if err != nil {
		return nil, "", err
	}
	maskPNG, err := mask.EncodePNG(pm)
	if err != nil {
		return nil, "", err
	}

	// The image list and the prompt's "image N" enumeration are built from
	// the same placement slice: a supporting character only gets an image
	// number when its reference is actually appended. The main character is
	// matched by the identity Main() resolved, not the raw role field, so a
	// role-less first character still maps to the anchor instead of adding
	// its own photo as a duplicate reference.
	main, _ := req.Main()
	pls := placements(req)
	images := [][]byte{anchor}
	names := make([]string, 0, len(pls))
	for i := range pls {
		names = append(names, pls[i].Char.Name)
		if pls[i].Char.ID == main.ID {
			continue
		}
		if ref := p.reference(bookID, pls[i].Char); ref != nil {
			images = append(images, ref)
			pls[i].ImageIndex = len(images)
		}
	}

	res, err := p.caller.Edit(ctx, synth.EditRequest{
		Prompt:  variantPrompt(pls, req, level),
		Images:  images,
		MaskPNG: maskPNG,
		Size:    canvasSize,
	}, synth.CallInfo{Stage: "variant", Page: req.Page, Characters: names})
	if err != nil {
		return nil, "", err
	}
	return res.ImagePNG, res.RewrittenPrompt, nil
}

// synthesizeBackground inpaints scenery around the composed page. The
// mask protects both panel interiors and the measured text bounds, so
// only the border band and the gaps around the text receive paint.
func (p *Pipeline) synthesizeBackground(ctx context.Context, composedPNG []byte, composed *compose.Result, req story.PageRequest) ([]byte, string, error) {
	canvas := composed.Image.Bounds()
	charPanel := compose.PanelRect(composed.PanelSide)
	textPanel := compose.PanelRect(composed.PanelSide.Opposite())

	im, err := mask.Inpainting(canvas, composed.TextBounds, charPanel, textPanel)
	if err != nil {
		return nil, "", err
	}
	maskPNG, err := mask.EncodePNG(im)
	if err != nil {
		return nil, "", err
	}

	sc := scene.Classify(req.Action, req.Setting)
	names := characterNames(req)
	res, err := p.caller.Edit(ctx, synth.EditRequest{
		Prompt:  inpaintPrompt(req, sc),
		Images:  [][]byte{composedPNG},
		MaskPNG: maskPNG,
		Size:    canvasSize,
	}, synth.CallInfo{Stage: "inpaint", Page: req.Page, Characters: names})
	if err != nil {
		return nil, "", err
	}
	return res.ImagePNG, res.RewrittenPrompt, nil
}

func characterNames(req story.PageRequest) []string {
	names := make([]string, 0, len(req.Characters))
	for _, c := range req.Characters {
		names = append(names, c.Name)
	}
	return names
}

// cutoutBounds finds the opaque extent of a cutout PNG so the
// preservation mask tracks the character rather than the whole canvas.
// Undecodable or fully transparent images fall back to a centered region.
func cutoutBounds(cutoutPNG []byte, canvas image.Rectangle) image.Rectangle {
	img, err := png.Decode(bytes.NewReader(cutoutPNG))
	if err != nil {
		return centeredFallback(canvas)
	}

	b := img.Bounds()
	found := false
	var min, max image.Point
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a == 0 {
				continue
			}
			if !found {
				min = image.Pt(x, y)
				max = image.Pt(x+1, y+1)
				found = true
				continue
			}
			if x < min.X {
				min.X = x
			}
			if y < min.Y {
				min.Y = y
			}
			if x+1 > max.X {
				max.X = x + 1
			}
			if y+1 > max.Y {
				max.Y = y + 1
			}
		}
	}
	if !found {
		return centeredFallback(canvas)
	}

	r := image.Rectangle{Min: min, Max: max}
	// Map source coordinates onto the working canvas when sizes differ.
	if !r.In(canvas) {
		r = r.Intersect(canvas)
		if r.Empty() {
			return centeredFallback(canvas)
		}
	}
	return r
}

func centeredFallback(canvas image.Rectangle) image.Rectangle {
	w := canvas.Dx() * 3 / 5
	h := canvas.Dy() * 4 / 5
	x := canvas.Min.X + (canvas.Dx()-w)/2
	y := canvas.Min.Y + (canvas.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}
