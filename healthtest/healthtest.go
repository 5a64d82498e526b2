// Package healthtest implements the NIST SP 800-90B continuous health
// tests (Repetition Count and Adaptive Proportion) the engine runs over
// every bulk chunk of noise read from the device.
package healthtest

import "github.com/tectrolabs-go/alpharng/internal/errs"

// Tests composes the RCT and APT state machines behind the single
// Test/Restart/Status surface the engine drives. Disabling the tests makes
// every call a no-op, leaving Status always zero.
type Tests struct {
	rct     *RCT
	apt     *APT
	enabled bool
}

// New builds an enabled Tests with both state machines at their default
// thresholds.
func New() *Tests {
	return &Tests{rct: NewRCT(), apt: NewAPT(), enabled: true}
}

// SetEnabled turns the tests on or off globally; a latched status from a
// prior run is cleared when disabling.
func (t *Tests) SetEnabled(enabled bool) {
	t.enabled = enabled
	if !enabled {
		t.rct.Reset()
		t.apt.Reset()
	}
}

// SetFailureThreshold sets the failure threshold for both tests; values
// below MinFailureThreshold are rejected.
func (t *Tests) SetFailureThreshold(n uint16) error {
	if n < MinFailureThreshold {
		return errs.New(errs.KindConfig, "health test failure threshold below minimum")
	}
	t.rct.SetThreshold(n)
	t.apt.SetThreshold(n)
	return nil
}

// Restart resets both tests' window state at the start of a new bulk
// chunk, without clearing a previously latched status.
func (t *Tests) Restart() {
	t.rct.Restart()
	t.apt.Restart()
}

// Test feeds a buffer of noise bytes through both tests in lockstep.
func (t *Tests) Test(data []byte) {
	if !t.enabled {
		return
	}
	for _, v := range data {
		t.rct.Test(v)
		t.apt.Test(v)
	}
}

// Status reports the device-style single-byte health status: 0 healthy, 1
// if RCT has latched, 2 if APT has latched (RCT takes priority, matching
// the device's own status precedence).
func (t *Tests) Status() byte {
	if !t.enabled {
		return 0
	}
	if t.rct.Latched() {
		return 1
	}
	if t.apt.Latched() {
		return 2
	}
	return 0
}

// MaxRCTFailures returns the highest RCT failure count observed across any
// restart cycle.
func (t *Tests) MaxRCTFailures() uint16 { return t.rct.MaxObserved() }

// MaxAPTFailures returns the highest APT cycle-failure count observed
// across any restart cycle.
func (t *Tests) MaxAPTFailures() uint16 { return t.apt.MaxObserved() }
