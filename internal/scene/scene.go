// Package scene derives structured scene semantics from free-text
// action/setting metadata. The classification is pure keyword matching so
// it stays deterministic and unit-testable without any I/O.
package scene

import "strings"

// GroundLevel describes how much of the frame the ground element should
// occupy when the background is painted in.
type GroundLevel string

const (
	// GroundLow: character is airborne or upright in motion; ground stays
	// near the bottom edge.
	GroundLow GroundLevel = "low"
	// GroundMedium: standing or walking; ground reaches the lower third.
	GroundMedium GroundLevel = "medium"
	// GroundHigh: seated, lying or sleeping; the supporting surface rises
	// to mid-frame.
	GroundHigh GroundLevel = "high"
)

// Interaction describes how the character relates to the primary setting
// element.
type Interaction string

const (
	InteractionOn    Interaction = "on"
	InteractionIn    Interaction = "in"
	InteractionNear  Interaction = "near"
	InteractionAbove Interaction = "above"
)

// Context is the closed classification result consumed by the inpainting
// prompt builder.
type Context struct {
	GroundLevel       GroundLevel
	Interaction       Interaction
	PrimaryElement    string
	SecondaryElements []string
}

var highGroundWords = []string{"sitting", "sit", "lying", "lie", "sleeping", "asleep", "napping", "crawling", "curled"}

var lowGroundWords = []string{"flying", "jumping", "leaping", "floating", "thrown", "tossed", "swinging"}

var inWords = []string{"in water", "swimming", "bathing", "in the bath", "splashing", "underwater", "in a pool"}

var onWords = []string{"on ", "riding", "sitting on", "standing on", "climbing"}

var aboveWords = []string{"above", "over ", "flying over", "hovering"}

// settingElements maps setting keywords to the element name used in the
// background prompt. Order matters: the first match becomes primary.
var settingElements = []struct {
	keyword string
	element string
}{
	{"beach", "sand"},
	{"ocean", "water"},
	{"sea", "water"},
	{"pool", "water"},
	{"bath", "water"},
	{"garden", "grass"},
	{"park", "grass"},
	{"meadow", "grass"},
	{"forest", "trees"},
	{"woods", "trees"},
	{"bedroom", "bed"},
	{"crib", "crib"},
	{"nursery", "rug"},
	{"kitchen", "floor"},
	{"sky", "clouds"},
	{"snow", "snow"},
	{"blanket", "blanket"},
}

// Classify maps free-text action and setting descriptions onto the closed
// Context variants. Unrecognized input falls back to a standing character
// near an unspecified element, which produces the most conservative
// background prompt.
func Classify(action, setting string) Context {
	a := strings.ToLower(action)
	s := strings.ToLower(setting)

	out := Context{
		GroundLevel: GroundMedium,
		Interaction: InteractionNear,
	}

	for _, w := range highGroundWords {
		if strings.Contains(a, w) {
			out.GroundLevel = GroundHigh
			break
		}
	}
	if out.GroundLevel == GroundMedium {
		for _, w := range lowGroundWords {
			if strings.Contains(a, w) {
				out.GroundLevel = GroundLow
				break
			}
		}
	}

	// Interaction: "in" beats "on" beats "above" so that "swimming in the
	// pool on a sunny day" classifies as in-water.
	combined := a + " " + s
	switch {
	case containsAny(combined, inWords):
		out.Interaction = InteractionIn
	case containsAny(combined, onWords):
		out.Interaction = InteractionOn
	case containsAny(combined, aboveWords):
		out.Interaction = InteractionAbove
	}

	for _, se := range settingElements {
		if !strings.Contains(combined, se.keyword) {
			continue
		}
		if out.PrimaryElement == "" {
			out.PrimaryElement = se.element
		} else if se.element != out.PrimaryElement && !contains(out.SecondaryElements, se.element) {
			out.SecondaryElements = append(out.SecondaryElements, se.element)
		}
	}

	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
