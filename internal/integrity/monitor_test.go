package integrity

import (
	"testing"
	"time"

	"quiz-guard-service/internal/clock"
)

func TestMonitorRecordsFindingsWhileActive(t *testing.T) {
	clk := clock.NewManual(t0)
	var toasts []Finding
	m := NewMonitor(NewCounters(), func(f Finding) { toasts = append(toasts, f) }, DefaultDetectors(DefaultConfig())...)

	// inactive monitor ignores everything
	m.Observe(Signal{Kind: SignalVisibility, Hidden: true})
	m.Observe(Signal{Kind: SignalVisibility, Hidden: false})

	m.Start(clk, func() int { return 0 })
	m.Observe(Signal{Kind: SignalVisibility, Hidden: true})
	clk.Advance(800 * time.Millisecond)
	m.Observe(Signal{Kind: SignalVisibility, Hidden: false})

	k := Key{Key: "PrintScreen", Code: "PrintScreen"}
	if v := m.Observe(Signal{Kind: SignalKeyDown, Key: &k}); !v.Prevent {
		t.Fatalf("expected printscreen to be prevented")
	}

	got := m.Counters().Snapshot()
	if got.TabSwitchCount != 1 || got.ScreenshotAttempts != 1 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if len(toasts) != 2 {
		t.Fatalf("expected a toast per finding, got %d", len(toasts))
	}

	m.Stop()
	m.Observe(Signal{Kind: SignalKeyDown, Key: &k})
	clk.Advance(time.Minute)
	after := m.Counters().Snapshot()
	if after.ScreenshotAttempts != 1 || after.AFKIncidents != 0 {
		t.Fatalf("expected no findings after stop, got %+v", after)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected all scheduled work released, %d pending", clk.Pending())
	}
}

func TestMonitorPolicy(t *testing.T) {
	m := NewMonitor(NewCounters(), nil, DefaultDetectors(DefaultConfig())...)
	p := m.Policy()
	if !p.BlockCopy || !p.BlockContextMenu {
		t.Fatalf("expected copy and context menu blocked, got %+v", p)
	}
	if len(p.Shortcuts) == 0 {
		t.Fatalf("expected blocked shortcut list")
	}

	bare := NewMonitor(NewCounters(), nil, NewVisibilityDetector(DefaultConfig()))
	if p := bare.Policy(); p.BlockCopy || len(p.Shortcuts) != 0 {
		t.Fatalf("expected empty policy without blockers, got %+v", p)
	}
}

func TestCountersOnlyGrow(t *testing.T) {
	c := NewCounters()
	c.Record(Finding{Kind: FindingTabSwitch})
	c.Record(Finding{Kind: FindingAFK, QuestionIndex: 1, Duration: 11 * time.Second})
	c.Record(Finding{Kind: FindingExtension, Detail: "x"})
	c.Record(Finding{Kind: FindingExtension, Detail: "x"})
	c.Record(Finding{Kind: FindingDevtoolsShortcut})

	snap := c.Snapshot()
	snap.InactivityPeriods[0].DurationMs = 0
	snap.SuspiciousExtensions[0] = "mutated"

	got := c.Snapshot()
	if got.TabSwitchCount != 1 || got.AFKIncidents != 1 || got.ScreenshotAttempts != 0 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if got.InactivityPeriods[0].DurationMs != 11000 || got.InactivityPeriods[0].QuestionIndex != 1 {
		t.Fatalf("snapshot must be a copy, got %+v", got.InactivityPeriods)
	}
	if len(got.SuspiciousExtensions) != 1 || got.SuspiciousExtensions[0] != "x" {
		t.Fatalf("expected de-duplicated extension set, got %q", got.SuspiciousExtensions)
	}
}
