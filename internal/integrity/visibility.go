package integrity

import (
	"sync"
	"time"
)

// VisibilityDetector classifies hidden→visible round trips by duration:
// long ones are tab switches, brief blips are likely mobile screenshots.
type VisibilityDetector struct {
	cfg Config

	mu       sync.Mutex
	env      Env
	hidden   bool
	hiddenAt time.Time
}

func NewVisibilityDetector(cfg Config) *VisibilityDetector {
	return &VisibilityDetector{cfg: cfg}
}

func (d *VisibilityDetector) Name() string { return "visibility" }

func (d *VisibilityDetector) Start(env Env) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env = env
	d.hidden = false
}

func (d *VisibilityDetector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hidden = false
}

func (d *VisibilityDetector) Observe(sig Signal) Verdict {
	if sig.Kind != SignalVisibility {
		return Verdict{}
	}

	d.mu.Lock()
	if sig.Hidden {
		if !d.hidden {
			d.hidden = true
			d.hiddenAt = sig.At
		}
		d.mu.Unlock()
		return Verdict{}
	}
	if !d.hidden {
		d.mu.Unlock()
		return Verdict{}
	}
	d.hidden = false
	away := sig.At.Sub(d.hiddenAt)
	if sig.HiddenForMs > 0 {
		away = time.Duration(sig.HiddenForMs) * time.Millisecond
	}
	env := d.env
	d.mu.Unlock()

	switch {
	case away > d.cfg.TabSwitchMin:
		env.Report(Finding{
			Kind:     FindingTabSwitch,
			Duration: away,
			Message:  "Tab switch detected. This is recorded for review.",
		})
	case away >= d.cfg.ScreenshotBlipMin:
		env.Report(Finding{
			Kind:     FindingScreenshot,
			Duration: away,
			Detail:   "brief visibility change",
			Message:  "Screenshot attempt detected. This is recorded for review.",
		})
	}
	return Verdict{}
}
