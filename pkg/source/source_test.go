package source

import "testing"

func TestIsValidSpeed(t *testing.T) {
	for _, s := range ValidSpeeds {
		if !IsValidSpeed(s) {
			t.Errorf("ValidSpeeds entry %v rejected by IsValidSpeed", s)
		}
	}
	for _, s := range []float64{0, 3, -1, 0.1, 32} {
		if IsValidSpeed(s) {
			t.Errorf("IsValidSpeed(%v) = true, want false", s)
		}
	}
}
