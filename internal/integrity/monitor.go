package integrity

import (
	"sync"
	"time"

	"quiz-guard-service/internal/clock"
	"quiz-guard-service/internal/domain"
)

// Config holds detector thresholds.
type Config struct {
	// Hidden round trips longer than this count as tab switches.
	TabSwitchMin time.Duration
	// Hidden round trips from this up to TabSwitchMin count as screenshots.
	ScreenshotBlipMin time.Duration
	AFKThreshold      time.Duration
	AFKPoll           time.Duration
	// Blur after a multi-touch start within this window counts as a screenshot.
	TouchBlurWindow time.Duration
	// Outer/inner window delta in pixels that suggests an open devtools panel.
	DevtoolsDelta int
}

func DefaultConfig() Config {
	return Config{
		TabSwitchMin:      500 * time.Millisecond,
		ScreenshotBlipMin: 50 * time.Millisecond,
		AFKThreshold:      10 * time.Second,
		AFKPoll:           5 * time.Second,
		TouchBlurWindow:   time.Second,
		DevtoolsDelta:     200,
	}
}

// Env is what a detector gets when it starts.
type Env struct {
	Clock         clock.Clock
	QuestionIndex func() int
	Report        func(Finding)
}

// Detector is one passive integrity check. Detectors never block the quiz;
// they only report findings and may ask the page to suppress an input.
type Detector interface {
	Name() string
	Start(env Env)
	Observe(sig Signal) Verdict
	Stop()
}

// DefaultDetectors returns the full detector set.
func DefaultDetectors(cfg Config) []Detector {
	return []Detector{
		NewVisibilityDetector(cfg),
		NewActivityDetector(cfg),
		NewShortcutBlocker(),
		NewClipboardGuard(),
		NewTouchGestureDetector(cfg),
		NewEnvironmentScanner(cfg),
	}
}

// Monitor fans signals out to its detectors while active and folds their
// findings into Counters.
type Monitor struct {
	detectors []Detector
	counters  *Counters
	onFinding func(Finding)

	mu     sync.Mutex
	active bool
	clk    clock.Clock
}

// NewMonitor builds a monitor. onFinding is called after a finding was recorded, outside any lock.
func NewMonitor(counters *Counters, onFinding func(Finding), detectors ...Detector) *Monitor {
	if onFinding == nil {
		onFinding = func(Finding) {}
	}
	return &Monitor{detectors: detectors, counters: counters, onFinding: onFinding}
}

// Start activates every detector. Calling Start on an active monitor is a no-op.
func (m *Monitor) Start(clk clock.Clock, questionIndex func() int) {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.clk = clk
	m.mu.Unlock()

	env := Env{Clock: clk, QuestionIndex: questionIndex, Report: m.report}
	for _, d := range m.detectors {
		d.Start(env)
	}

	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
}

// Stop deactivates the monitor. Findings reported after Stop returns are dropped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.active = false
	m.mu.Unlock()

	for _, d := range m.detectors {
		d.Stop()
	}
}

// Active reports whether the monitor is running.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Observe forwards sig to every detector and merges their verdicts.
func (m *Monitor) Observe(sig Signal) Verdict {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return Verdict{}
	}
	if sig.At.IsZero() {
		sig.At = m.clk.Now()
	}
	m.mu.Unlock()

	var v Verdict
	for _, d := range m.detectors {
		v = v.merge(d.Observe(sig))
	}
	return v
}

// Counters exposes the aggregate.
func (m *Monitor) Counters() *Counters {
	return m.counters
}

// Policy describes the inputs the page should suppress on its own.
func (m *Monitor) Policy() domain.BlockPolicy {
	var p domain.BlockPolicy
	for _, d := range m.detectors {
		switch d.(type) {
		case *ShortcutBlocker:
			p.Shortcuts = append(p.Shortcuts, blockedShortcuts...)
		case *ClipboardGuard:
			p.BlockCopy = true
			p.BlockContextMenu = true
		}
	}
	return p
}

func (m *Monitor) report(f Finding) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.counters.Record(f)
	m.mu.Unlock()
	m.onFinding(f)
}
