package evaluate

import (
	"math"
	"testing"
)

func TestRouge_IdenticalTexts(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."
	r := Rouge(text, text)

	if r.Rouge1 != 1 || r.Rouge2 != 1 || r.RougeL != 1 {
		t.Errorf("expected all scores 1, got %+v", r)
	}
}

func TestRouge_DisjointTexts(t *testing.T) {
	r := Rouge("red apples", "blue whales swim")
	if r != (RougeScores{}) {
		t.Errorf("expected zero scores, got %+v", r)
	}
}

func TestRouge_PartialOverlap(t *testing.T) {
	r := Rouge("the cat sat", "the cat ran")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"rouge1", r.Rouge1, 2.0 / 3.0},
		{"rouge2", r.Rouge2, 0.5},
		{"rougeL", r.RougeL, 2.0 / 3.0},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %f, want %f", tt.name, tt.got, tt.want)
		}
	}
}

func TestRouge_StemsAndNormalises(t *testing.T) {
	r := Rouge("Running DOGS!", "run dog")
	if r.Rouge1 != 1 || r.RougeL != 1 {
		t.Errorf("expected stemmed tokens to match, got %+v", r)
	}
}

func TestRouge_LCSIgnoresGaps(t *testing.T) {
	// LCS is "a c e" (3 of 5 tokens on both sides).
	r := Rouge("a b c d e", "a x c y e")
	if math.Abs(r.RougeL-0.6) > 1e-9 {
		t.Errorf("rougeL = %f, want 0.6", r.RougeL)
	}
}

func TestRouge_Empty(t *testing.T) {
	if r := Rouge("", "some reference"); r != (RougeScores{}) {
		t.Errorf("expected zero scores for empty candidate, got %+v", r)
	}
}
