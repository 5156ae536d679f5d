package pipeline

import (
	"fmt"
	"strings"

	"github.com/MichaelB312/storybook/internal/mask"
	"github.com/MichaelB312/storybook/internal/scene"
	"github.com/MichaelB312/storybook/internal/story"
)

// anchorPrompt instructs the synthesizer to isolate the main character as a
// clean full-body cutout. The cutout becomes the identity reference for
// every page of the book, so it asks for a neutral pose on a plain
// background.
func anchorPrompt(c story.CharacterRef) string {
	var b strings.Builder
	b.WriteString("Create a clean full-body cutout of ")
	b.WriteString(c.Name)
	if c.Description != "" {
		b.WriteString(" (")
		b.WriteString(c.Description)
		b.WriteString(")")
	}
	b.WriteString(" in a warm children's book illustration style. ")
	if len(c.PhotoPNG) > 0 {
		b.WriteString("Match the face, hair, and features of the person in the photo exactly. ")
	}
	b.WriteString("Neutral standing pose, gentle smile, plain white background, no scenery, no text.")
	return b.String()
}

// placement is an explicit spatial assignment for one character on a page.
type placement struct {
	Char     story.CharacterRef
	Position string
	// ImageIndex is the 1-based position of this character's reference in
	// the edit request's image list. The main character is always image 1
	// (the book anchor); 0 means no reference image is sent and the
	// character is drawn from its description.
	ImageIndex int
}

// placements assigns each character on a page a left/right/center position
// in a stable order: main character first, supporting characters in their
// declared order. Actions that imply one character holding another put the
// holder beside the centered subject.
func placements(req story.PageRequest) []placement {
	main, hasMain := req.Main()
	supporting := req.Supporting()

	out := make([]placement, 0, len(req.Characters))
	action := strings.ToLower(req.Action)
	held := strings.Contains(action, "held by") ||
		strings.Contains(action, "carried by") ||
		strings.Contains(action, "in the arms of")

	holder := "the main character"
	if hasMain {
		holder = main.Name
		out = append(out, placement{Char: main, Position: "center", ImageIndex: 1})
	}
	sides := []string{"right", "left"}
	for i, c := range supporting {
		pos := sides[i%len(sides)]
		if held && i == 0 {
			pos = fmt.Sprintf("%s of center, holding %s", pos, holder)
		}
		out = append(out, placement{Char: c, Position: pos})
	}
	return out
}

// variantPrompt builds the pose-variant edit prompt from placements whose
// ImageIndex fields mirror the edit request's actual image list, so every
// "image N" in the prompt names a reference that is really attached and
// identities never swap or duplicate. Characters without a reference are
// described instead of numbered.
func variantPrompt(pls []placement, req story.PageRequest, level mask.PreservationLevel) string {
	var b strings.Builder
	b.WriteString("Using the character references exactly as provided: ")
	for i, p := range pls {
		if i > 0 {
			b.WriteString("; ")
		}
		switch {
		case p.ImageIndex == 1:
			fmt.Fprintf(&b, "image 1 is %s, the main character, placed %s", p.Char.Name, p.Position)
		case p.ImageIndex > 1:
			fmt.Fprintf(&b, "image %d is %s, a supporting character, placed %s", p.ImageIndex, p.Char.Name, p.Position)
		default:
			fmt.Fprintf(&b, "%s is a supporting character with no reference image", p.Char.Name)
			if p.Char.Description != "" {
				fmt.Fprintf(&b, " (%s)", p.Char.Description)
			}
			fmt.Fprintf(&b, ", placed %s", p.Position)
		}
	}
	b.WriteString(". ")

	fmt.Fprintf(&b, "Show the scene: %s.", req.Action)
	if req.Camera != "" {
		fmt.Fprintf(&b, " Camera: %s.", req.Camera)
	}
	b.WriteString(" Keep every face, hairstyle, body proportion, and outfit identical to its reference image.")

	switch level {
	case mask.LevelStrict:
		b.WriteString(" Change only the immediate surroundings; the characters themselves must not be redrawn.")
	case mask.LevelRelaxed:
		b.WriteString(" Limbs and body pose may change freely to match the action, but faces must stay identical.")
	default:
		b.WriteString(" Adjust pose below the shoulders only; faces and hair must stay identical.")
	}
	b.WriteString(" Plain white background, full-body cutout, no scenery, no text.")
	return b.String()
}

// inpaintPrompt builds the background inpainting prompt from the scene
// classification. The transparent mask regions are the only editable area,
// and the prompt restates that most of the canvas must remain untouched so
// the model does not drift outside the mask.
func inpaintPrompt(req story.PageRequest, sc scene.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fill in the scene background: %s.", req.Setting)
	if sc.PrimaryElement != "" {
		fmt.Fprintf(&b, " The ground is %s", sc.PrimaryElement)
		switch sc.GroundLevel {
		case scene.GroundHigh:
			fmt.Fprintf(&b, " and the character is resting directly %s it, with believable contact and soft shadows", sc.Interaction)
		case scene.GroundLow:
			fmt.Fprintf(&b, " far below; the character is %s it", sc.Interaction)
		default:
			fmt.Fprintf(&b, "; the character is standing %s it", sc.Interaction)
		}
		b.WriteString(".")
	}
	if len(sc.SecondaryElements) > 0 {
		fmt.Fprintf(&b, " Include %s in the distance.", strings.Join(sc.SecondaryElements, ", "))
	}
	b.WriteString(" Warm, soft children's book illustration style with gentle lighting.")
	b.WriteString(" Paint only the transparent regions; leave the rest of the image exactly as it is, including all characters and all text.")
	return b.String()
}
