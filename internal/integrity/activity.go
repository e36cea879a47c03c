package integrity

import (
	"fmt"
	"sync"
	"time"
)

// ActivityDetector reports AFK stretches. It checks on a poll interval and on
// every activity signal; each idle stretch is reported at most once.
type ActivityDetector struct {
	cfg Config

	mu       sync.Mutex
	env      Env
	last     time.Time
	flagged  bool
	stopPoll func()
}

func NewActivityDetector(cfg Config) *ActivityDetector {
	return &ActivityDetector{cfg: cfg}
}

func (d *ActivityDetector) Name() string { return "activity" }

func (d *ActivityDetector) Start(env Env) {
	d.mu.Lock()
	d.env = env
	d.last = env.Clock.Now()
	d.flagged = false
	d.mu.Unlock()

	stop := env.Clock.Every(d.cfg.AFKPoll, d.poll)

	d.mu.Lock()
	d.stopPoll = stop
	d.mu.Unlock()
}

func (d *ActivityDetector) Stop() {
	d.mu.Lock()
	stop := d.stopPoll
	d.stopPoll = nil
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (d *ActivityDetector) Observe(sig Signal) Verdict {
	if !sig.isActivity() {
		return Verdict{}
	}
	d.mu.Lock()
	env := d.env
	d.mu.Unlock()
	idx := env.QuestionIndex()

	d.mu.Lock()
	f, ok := d.checkLocked(sig.At, idx)
	if sig.At.After(d.last) {
		d.last = sig.At
	}
	d.flagged = false
	d.mu.Unlock()

	if ok {
		env.Report(f)
	}
	return Verdict{}
}

func (d *ActivityDetector) poll() {
	d.mu.Lock()
	env := d.env
	d.mu.Unlock()
	idx := env.QuestionIndex()
	now := env.Clock.Now()

	d.mu.Lock()
	f, ok := d.checkLocked(now, idx)
	d.mu.Unlock()

	if ok {
		env.Report(f)
	}
}

func (d *ActivityDetector) checkLocked(now time.Time, idx int) (Finding, bool) {
	idle := now.Sub(d.last)
	if d.flagged || idle < d.cfg.AFKThreshold {
		return Finding{}, false
	}
	d.flagged = true
	return Finding{
		Kind:          FindingAFK,
		QuestionIndex: idx,
		Duration:      idle,
		Message:       fmt.Sprintf("Inactivity of %ds detected on question %d.", int(idle.Seconds()), idx+1),
	}, true
}
