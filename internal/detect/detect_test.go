package detect

import "testing"

func TestScoreFromRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  int
	}{
		{"at min threshold", 0.01, 1},
		{"below min threshold", 0.001, 1},
		{"zero", 0, 1},
		{"at max threshold", 0.25, 10},
		{"above max threshold", 0.9, 10},
		{"midpoint", 0.13, 6}, // 1 + 0.12/0.24*9 = 5.5 → 6
		{"near min", 0.02, 1}, // 1 + 0.01/0.24*9 = 1.375 → 1
		{"near max", 0.24, 10}, // 1 + 0.23/0.24*9 = 9.625 → 10
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreFromRatio(tt.ratio); got != tt.want {
				t.Errorf("ScoreFromRatio(%v) = %d, want %d", tt.ratio, got, tt.want)
			}
		})
	}
}

func TestScoreFromRatioMonotonic(t *testing.T) {
	prev := 0
	for r := 0.0; r <= 0.3; r += 0.001 {
		s := ScoreFromRatio(r)
		if s < prev {
			t.Fatalf("score decreased at ratio %v: %d -> %d", r, prev, s)
		}
		prev = s
	}
}

func TestFakeSourceHoldsLatest(t *testing.T) {
	f := NewFakeSource()

	if _, ok := f.Latest(); ok {
		t.Error("new source should report no detection")
	}

	f.Set(9)
	score, ok := f.Latest()
	if !ok || score != 9 {
		t.Errorf("Latest() = (%d, %v), want (9, true)", score, ok)
	}

	// Held value persists across repeated reads (slow detector cadence).
	for i := 0; i < 5; i++ {
		score, ok = f.Latest()
		if !ok || score != 9 {
			t.Fatalf("read %d: Latest() = (%d, %v), want (9, true)", i, score, ok)
		}
	}

	f.Clear()
	if _, ok := f.Latest(); ok {
		t.Error("Clear() should report no detection")
	}
}
