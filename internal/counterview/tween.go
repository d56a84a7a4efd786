package counterview

import "time"

// Tween defaults.
const (
	DefaultTweenDuration = 800 * time.Millisecond
	DefaultTweenMaxSteps = 30
)

// tween walks the displayed value from one count to another in at most
// maxSteps evenly spaced frames.
type tween struct {
	from, to int64
	steps    int
	step     int
	interval time.Duration
}

func newTween(from, to int64, duration time.Duration, maxSteps int) *tween {
	diff := to - from
	if diff < 0 {
		diff = -diff
	}

	steps := maxSteps
	if steps <= 0 {
		steps = 1
	}
	if diff < int64(steps) {
		steps = int(diff)
	}
	if steps == 0 {
		steps = 1
	}

	interval := duration / time.Duration(steps)
	if interval <= 0 {
		interval = time.Millisecond
	}

	return &tween{from: from, to: to, steps: steps, interval: interval}
}

// next advances one frame and returns the value to display and whether the
// tween has reached its target.
func (t *tween) next() (int64, bool) {
	t.step++
	if t.step >= t.steps {
		return t.to, true
	}
	return t.from + (t.to-t.from)*int64(t.step)/int64(t.steps), false
}
