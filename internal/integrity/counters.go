package integrity

import (
	"sync"
	"time"

	"quiz-guard-service/internal/domain"
)

// FindingKind classifies what a detector observed.
type FindingKind string

const (
	FindingTabSwitch        FindingKind = "tab_switch"
	FindingScreenshot       FindingKind = "screenshot"
	FindingAFK              FindingKind = "afk"
	FindingExtension        FindingKind = "extension"
	FindingDevtoolsShortcut FindingKind = "devtools_shortcut"
	FindingBlockedAction    FindingKind = "blocked_action"
)

// Finding is one structured detection event.
type Finding struct {
	Kind          FindingKind
	QuestionIndex int
	Duration      time.Duration
	Detail        string
	Message       string
}

// Counters aggregates findings into the session's integrity report.
// Counts only grow and lists only append.
type Counters struct {
	mu         sync.Mutex
	report     domain.IntegrityReport
	extensions map[string]struct{}
}

func NewCounters() *Counters {
	return &Counters{extensions: make(map[string]struct{})}
}

// Record applies a finding. Kinds without a counter are ignored.
func (c *Counters) Record(f Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch f.Kind {
	case FindingTabSwitch:
		c.report.TabSwitchCount++
	case FindingScreenshot:
		c.report.ScreenshotAttempts++
	case FindingAFK:
		c.report.AFKIncidents++
		c.report.InactivityPeriods = append(c.report.InactivityPeriods, domain.InactivityPeriod{
			QuestionIndex: f.QuestionIndex,
			DurationMs:    f.Duration.Milliseconds(),
		})
	case FindingExtension:
		if _, ok := c.extensions[f.Detail]; ok || f.Detail == "" {
			return
		}
		c.extensions[f.Detail] = struct{}{}
		c.report.SuspiciousExtensions = append(c.report.SuspiciousExtensions, f.Detail)
	}
}

// Snapshot returns a copy safe to hand to other goroutines.
func (c *Counters) Snapshot() domain.IntegrityReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.report
	out.InactivityPeriods = append([]domain.InactivityPeriod{}, c.report.InactivityPeriods...)
	out.SuspiciousExtensions = append([]string{}, c.report.SuspiciousExtensions...)
	return out
}
