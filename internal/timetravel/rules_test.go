package timetravel

import "testing"

func TestStepCount(t *testing.T) {
	tests := []struct {
		rate int
		want int
	}{
		{1, 0},
		{2, 0},
		{3, 1},
		{20, 18},
		{21, 10},
		{100, 26},
		{150, 27},
	}
	for _, tc := range tests {
		if got := StepCount(tc.rate); got != tc.want {
			t.Errorf("StepCount(%d) = %d, want %d", tc.rate, got, tc.want)
		}
	}
}

func TestTargetRate(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{2, 2},
		{20, 20},
		{50, 50},
		{57, 50},
		{120, 120},
		{499, 490},
	}
	for _, tc := range tests {
		if got := TargetRate(tc.in); got != tc.want {
			t.Errorf("TargetRate(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAccelerate(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{2, 3},
		{9, 10},
		{10, 20},
		{49, 59},
		{50, 100},
	}
	for _, tc := range tests {
		if got := Accelerate(tc.in); got != tc.want {
			t.Errorf("Accelerate(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDecelerate_NeverBelowPeak(t *testing.T) {
	for r := 1; r <= 500; r++ {
		if got := Decelerate(r); got < 1 || (r > PeakRate && got < PeakRate) {
			t.Errorf("Decelerate(%d) = %d", r, got)
		}
	}
}
