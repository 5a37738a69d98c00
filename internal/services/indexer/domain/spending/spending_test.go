package spending

import "testing"

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want ProjectStatus
		ok   bool
	}{
		{"planned", StatusPlanned, true},
		{"ONGOING", StatusOngoing, true},
		{"In Progress", StatusOngoing, true},
		{"in_progress", StatusOngoing, true},
		{"completed", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"canceled", StatusCancelled, true},
		{"  planned  ", StatusPlanned, true},
		{"", StatusUnspecified, false},
		{"bogus", StatusUnspecified, false},
	}
	for _, tc := range tests {
		got, ok := NormalizeStatus(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeStatus(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want BodyCategory
		ok   bool
	}{
		{"Federal", CategoryFederal, true},
		{"state", CategoryState, true},
		{"Local Council", CategoryLocalCouncil, true},
		{"LOCAL_COUNCIL", CategoryLocalCouncil, true},
		{"", CategoryUnspecified, false},
		{"Municipal", CategoryUnspecified, false},
	}
	for _, tc := range tests {
		got, ok := NormalizeCategory(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeCategory(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRatingBounds(t *testing.T) {
	for rating := MinRating; rating <= MaxRating; rating++ {
		if !IsValidRating(rating) {
			t.Errorf("rating %d should be valid", rating)
		}
	}
	if IsValidRating(0) || IsValidRating(6) {
		t.Error("out-of-range ratings should be invalid")
	}
}

func TestSDGFocusBounds(t *testing.T) {
	if !IsValidSDGFocus(1) || !IsValidSDGFocus(17) {
		t.Error("boundary SDG codes should be valid")
	}
	if IsValidSDGFocus(0) || IsValidSDGFocus(18) {
		t.Error("out-of-range SDG codes should be invalid")
	}
}
