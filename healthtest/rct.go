package healthtest

const (
	rctMaxRepetitions  = 5
	rctDefaultThreshold = 5
	// MinFailureThreshold is the lowest threshold callers may configure for
	// either test, per spec.
	MinFailureThreshold = 6
)

// RCT implements the NIST SP 800-90B Repetition Count Test: a run of
// rctMaxRepetitions identical bytes counts as one failure, and more than
// the configured threshold of failures within a restart cycle latches the
// test; the latch survives Restart and is cleared only by Reset.
type RCT struct {
	threshold uint16

	hasLast       bool
	lastSample    byte
	curRepetitions int
	failureCount  uint16
	maxObserved   uint16
	latched       bool
}

// NewRCT builds an RCT test with the default failure threshold.
func NewRCT() *RCT {
	return &RCT{threshold: rctDefaultThreshold}
}

// SetThreshold configures the failure threshold; values below
// MinFailureThreshold are rejected by the caller (healthtest.Tests enforces
// the minimum).
func (r *RCT) SetThreshold(n uint16) {
	r.threshold = n
}

// Test feeds one byte through the test. It returns true once this call's
// observation causes the latch to trip (it stays true on every subsequent
// call until Reset).
func (r *RCT) Test(v byte) bool {
	if r.latched {
		return true
	}

	if r.hasLast && v == r.lastSample {
		r.curRepetitions++
		if r.curRepetitions >= rctMaxRepetitions {
			r.failureCount++
			r.curRepetitions = 1
		}
	} else {
		r.lastSample = v
		r.hasLast = true
		r.curRepetitions = 1
	}

	if r.failureCount > r.maxObserved {
		r.maxObserved = r.failureCount
	}
	if r.failureCount > r.threshold {
		r.latched = true
	}
	return r.latched
}

// Latched reports whether the test has tripped since the last Reset.
func (r *RCT) Latched() bool { return r.latched }

// MaxObserved returns the highest failure count seen in any restart cycle.
func (r *RCT) MaxObserved() uint16 { return r.maxObserved }

// Restart resets the running state at the beginning of a new bulk chunk,
// but preserves MaxObserved and the latched status across restarts —
// per spec a latch persists until the caller explicitly clears it.
func (r *RCT) Restart() {
	r.hasLast = false
	r.curRepetitions = 0
	r.failureCount = 0
}

// Reset clears the latch as well, for reconnecting with a clean slate.
func (r *RCT) Reset() {
	r.Restart()
	r.latched = false
	r.maxObserved = 0
}
