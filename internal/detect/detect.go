// Package detect is the boundary to the external detector. The detector
// process runs inference at its own cadence and publishes an integer
// distance score per poll; this package only holds the latest value.
// Between refreshes the orchestrator re-reads the same held score on every
// fast tick; that is intentional, the close streak accumulates wall time,
// not sample count.
package detect

import (
	"math"
	"sync"
)

// Score bounds. 1 = far, 10 = closest.
const (
	ScoreMin = 1
	ScoreMax = 10
)

// Bounding-box-area ratio thresholds for the published score mapping.
// The detector side maps its best box ratio through ScoreFromRatio before
// publishing; the thresholds are part of the wire contract.
const (
	minRatio = 0.01
	maxRatio = 0.25
)

// Source yields the most recent distance score.
type Source interface {
	// Latest returns the held score and whether a subject is currently
	// detected. ok=false means the last poll saw nothing.
	Latest() (score int, ok bool)
}

// ScoreFromRatio maps a bounding-box-area ratio to the 1–10 score,
// linearly between the fixed thresholds, rounded.
func ScoreFromRatio(r float64) int {
	if r <= minRatio {
		return ScoreMin
	}
	if r >= maxRatio {
		return ScoreMax
	}
	return int(math.Round(1 + (r-minRatio)/(maxRatio-minRatio)*9))
}

// FakeSource is a settable Source for tests.
type FakeSource struct {
	mu    sync.Mutex
	score int
	ok    bool
}

// NewFakeSource creates a FakeSource with no detection.
func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

// Set holds the given score.
func (f *FakeSource) Set(score int) {
	f.mu.Lock()
	f.score = score
	f.ok = true
	f.mu.Unlock()
}

// Clear marks the subject as not detected.
func (f *FakeSource) Clear() {
	f.mu.Lock()
	f.ok = false
	f.mu.Unlock()
}

// Latest returns the held score.
func (f *FakeSource) Latest() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.score, f.ok
}
