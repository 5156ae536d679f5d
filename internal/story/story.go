// Package story defines the domain types exchanged between the narrative
// collaborator, the generation pipeline, and the presentation layer.
package story

// AnchorPage is the page number reserved for the character anchor job.
// A book's anchor job must complete before any story-page job for that
// book can issue its first synthesis call.
const AnchorPage = 0

// Role identifies how a character participates in a page.
type Role string

const (
	RoleMain       Role = "main"
	RoleSupporting Role = "supporting"
)

// CharacterRef identifies a character appearing on a page, with the best
// available visual reference for it.
type CharacterRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Description string `json:"description,omitempty"`
	// PhotoPNG is an optional reference photo. For the main character on
	// the anchor page, either this or Description must be present.
	PhotoPNG []byte `json:"photo_png,omitempty"`
}

// PageRequest is the per-page record supplied by the narrative generator.
// It is immutable input; the pipeline never mutates it.
type PageRequest struct {
	Page       int            `json:"page"`
	Narration  string         `json:"narration,omitempty"`
	Action     string         `json:"action,omitempty"`
	Camera     string         `json:"camera,omitempty"`
	Setting    string         `json:"setting,omitempty"`
	Characters []CharacterRef `json:"characters"`
}

// Main returns the main character reference, or the first character if
// none is explicitly marked main.
func (r PageRequest) Main() (CharacterRef, bool) {
	for _, c := range r.Characters {
		if c.Role == RoleMain {
			return c, true
		}
	}
	if len(r.Characters) > 0 {
		return r.Characters[0], true
	}
	return CharacterRef{}, false
}

// Supporting returns all non-main characters in their declared order.
func (r PageRequest) Supporting() []CharacterRef {
	main, ok := r.Main()
	if !ok {
		return nil
	}
	var out []CharacterRef
	for _, c := range r.Characters {
		if c.ID != main.ID {
			out = append(out, c)
		}
	}
	return out
}

// PanelSide is the canvas half the character occupies in a composed page.
type PanelSide string

const (
	PanelLeft  PanelSide = "left"
	PanelRight PanelSide = "right"
)

// Opposite returns the other canvas half.
func (s PanelSide) Opposite() PanelSide {
	if s == PanelLeft {
		return PanelRight
	}
	return PanelLeft
}

// SideForPage alternates the character panel by page parity so facing
// pages do not repeat the same layout.
func SideForPage(page int) PanelSide {
	if page%2 == 0 {
		return PanelRight
	}
	return PanelLeft
}

// PageResult is the terminal output of a page job, handed to the
// presentation layer for display and downstream layout.
type PageResult struct {
	Page              int       `json:"page"`
	ImagePNG          []byte    `json:"image_png,omitempty"`
	PanelSide         PanelSide `json:"panel_side,omitempty"`
	PreservationLevel string    `json:"preservation_level,omitempty"`
	RewrittenPrompt   string    `json:"rewritten_prompt,omitempty"`
	Upscaled          bool      `json:"upscaled"`
	ElapsedMS         int64     `json:"elapsed_ms"`
}
