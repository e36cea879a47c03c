package integrity

import (
	"sync"
	"time"
)

// TouchGestureDetector counts a screenshot attempt when a multi-finger touch
// is followed by the window losing focus shortly after, which is how most
// mobile screenshot gestures look from the page.
type TouchGestureDetector struct {
	cfg Config

	mu      sync.Mutex
	env     Env
	armed   bool
	armedAt time.Time
}

func NewTouchGestureDetector(cfg Config) *TouchGestureDetector {
	return &TouchGestureDetector{cfg: cfg}
}

func (d *TouchGestureDetector) Name() string { return "touch" }

func (d *TouchGestureDetector) Start(env Env) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env = env
	d.armed = false
}

func (d *TouchGestureDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.armed = false
}

func (d *TouchGestureDetector) Observe(sig Signal) Verdict {
	switch sig.Kind {
	case SignalTouchStart:
		d.mu.Lock()
		if sig.Touches >= 2 {
			d.armed = true
			d.armedAt = sig.At
		} else {
			d.armed = false
		}
		d.mu.Unlock()
	case SignalBlur:
		d.mu.Lock()
		hit := d.armed && sig.At.Sub(d.armedAt) <= d.cfg.TouchBlurWindow
		d.armed = false
		env := d.env
		d.mu.Unlock()
		if hit {
			env.Report(Finding{
				Kind:    FindingScreenshot,
				Detail:  "touch gesture followed by blur",
				Message: "Screenshot attempt detected. This is recorded for review.",
			})
		}
	}
	return Verdict{}
}
