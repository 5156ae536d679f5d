package scene

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		action      string
		setting     string
		ground      GroundLevel
		interaction Interaction
		primary     string
	}{
		{
			name:        "sleeping is high ground",
			action:      "sleeping peacefully",
			setting:     "a cozy bedroom",
			ground:      GroundHigh,
			interaction: InteractionNear,
			primary:     "bed",
		},
		{
			name:        "swimming is in-water",
			action:      "swimming happily",
			setting:     "a bright pool",
			ground:      GroundMedium,
			interaction: InteractionIn,
			primary:     "water",
		},
		{
			name:        "sitting on grass",
			action:      "sitting on the grass",
			setting:     "a sunny park",
			ground:      GroundHigh,
			interaction: InteractionOn,
			primary:     "grass",
		},
		{
			name:        "jumping is low ground",
			action:      "jumping with joy",
			setting:     "the garden",
			ground:      GroundLow,
			interaction: InteractionNear,
			primary:     "grass",
		},
		{
			name:        "unknown input falls back",
			action:      "giggling",
			setting:     "somewhere",
			ground:      GroundMedium,
			interaction: InteractionNear,
			primary:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.action, tt.setting)
			if got.GroundLevel != tt.ground {
				t.Errorf("GroundLevel = %q, want %q", got.GroundLevel, tt.ground)
			}
			if got.Interaction != tt.interaction {
				t.Errorf("Interaction = %q, want %q", got.Interaction, tt.interaction)
			}
			if got.PrimaryElement != tt.primary {
				t.Errorf("PrimaryElement = %q, want %q", got.PrimaryElement, tt.primary)
			}
		})
	}
}

func TestClassifySecondaryElements(t *testing.T) {
	got := Classify("sitting", "a beach by the ocean")
	if got.PrimaryElement != "sand" {
		t.Fatalf("PrimaryElement = %q, want sand", got.PrimaryElement)
	}
	if len(got.SecondaryElements) != 1 || got.SecondaryElements[0] != "water" {
		t.Errorf("SecondaryElements = %v, want [water]", got.SecondaryElements)
	}
}

func TestClassifyDeduplicatesElements(t *testing.T) {
	// "ocean" and "sea" both map to water; it must not appear twice.
	got := Classify("standing", "the ocean by the sea")
	if got.PrimaryElement != "water" {
		t.Fatalf("PrimaryElement = %q, want water", got.PrimaryElement)
	}
	if len(got.SecondaryElements) != 0 {
		t.Errorf("SecondaryElements = %v, want empty", got.SecondaryElements)
	}
}
