package integrity

import (
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-guard-service/internal/clock"
)

type recorder struct {
	mu       sync.Mutex
	findings []Finding
}

func (r *recorder) report(f Finding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findings = append(r.findings, f)
}

func (r *recorder) count(kind FindingKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

func newEnv(clk clock.Clock, idx int) (Env, *recorder) {
	rec := &recorder{}
	return Env{Clock: clk, QuestionIndex: func() int { return idx }, Report: rec.report}, rec
}

var t0 = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

func TestVisibilityLongAbsenceIsTabSwitch(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 0)
	d := NewVisibilityDetector(DefaultConfig())
	d.Start(env)

	d.Observe(Signal{Kind: SignalVisibility, Hidden: true, At: t0})
	d.Observe(Signal{Kind: SignalVisibility, Hidden: false, At: t0.Add(800 * time.Millisecond)})

	if rec.count(FindingTabSwitch) != 1 {
		t.Fatalf("expected one tab switch, got %+v", rec.findings)
	}
	if rec.count(FindingScreenshot) != 0 {
		t.Fatalf("expected no screenshot finding, got %+v", rec.findings)
	}
}

func TestVisibilityBlipIsScreenshot(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 0)
	d := NewVisibilityDetector(DefaultConfig())
	d.Start(env)

	d.Observe(Signal{Kind: SignalVisibility, Hidden: true, At: t0})
	d.Observe(Signal{Kind: SignalVisibility, Hidden: false, At: t0.Add(150 * time.Millisecond)})

	if rec.count(FindingScreenshot) != 1 || rec.count(FindingTabSwitch) != 0 {
		t.Fatalf("expected one screenshot finding only, got %+v", rec.findings)
	}
}

func TestVisibilityIgnoresNoiseAndUnpairedVisible(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 0)
	d := NewVisibilityDetector(DefaultConfig())
	d.Start(env)

	d.Observe(Signal{Kind: SignalVisibility, Hidden: false, At: t0})
	d.Observe(Signal{Kind: SignalVisibility, Hidden: true, At: t0})
	d.Observe(Signal{Kind: SignalVisibility, Hidden: false, At: t0.Add(20 * time.Millisecond)})

	if len(rec.findings) != 0 {
		t.Fatalf("expected no findings, got %+v", rec.findings)
	}
}

func TestVisibilityPrefersPageMeasuredDuration(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 0)
	d := NewVisibilityDetector(DefaultConfig())
	d.Start(env)

	d.Observe(Signal{Kind: SignalVisibility, Hidden: true, At: t0})
	// receiver saw 900ms because of network delay; the page measured 120ms
	d.Observe(Signal{Kind: SignalVisibility, Hidden: false, HiddenForMs: 120, At: t0.Add(900 * time.Millisecond)})

	if rec.count(FindingScreenshot) != 1 {
		t.Fatalf("expected screenshot classification, got %+v", rec.findings)
	}
}

func TestActivityReportsOncePerIdleStretch(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 2)
	d := NewActivityDetector(DefaultConfig())
	d.Start(env)
	defer d.Stop()

	clk.Advance(12 * time.Second)
	if rec.count(FindingAFK) != 1 {
		t.Fatalf("expected one afk finding after 12s idle, got %+v", rec.findings)
	}
	f := rec.findings[0]
	if f.QuestionIndex != 2 || f.Duration < 10*time.Second {
		t.Fatalf("unexpected afk finding %+v", f)
	}

	// later poll ticks and the activity that ends the stretch do not duplicate
	clk.Advance(8 * time.Second)
	d.Observe(Signal{Kind: SignalMouseMove, At: clk.Now()})
	if rec.count(FindingAFK) != 1 {
		t.Fatalf("expected no duplicate afk finding, got %+v", rec.findings)
	}

	// a new stretch is reported again
	clk.Advance(15 * time.Second)
	if rec.count(FindingAFK) != 2 {
		t.Fatalf("expected second afk finding for new stretch, got %d", rec.count(FindingAFK))
	}
}

func TestActivityCheckOnActivityEvent(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 0)
	cfg := DefaultConfig()
	cfg.AFKPoll = time.Hour
	d := NewActivityDetector(cfg)
	d.Start(env)
	defer d.Stop()

	d.Observe(Signal{Kind: SignalKeyDown, At: t0.Add(11 * time.Second)})
	if rec.count(FindingAFK) != 1 {
		t.Fatalf("expected afk finding from activity check, got %+v", rec.findings)
	}
	d.Observe(Signal{Kind: SignalClick, At: t0.Add(12 * time.Second)})
	if rec.count(FindingAFK) != 1 {
		t.Fatalf("expected activity to reset idle timer, got %+v", rec.findings)
	}
}

func TestActivityStopCancelsPolling(t *testing.T) {
	clk := clock.NewManual(t0)
	env, rec := newEnv(clk, 0)
	d := NewActivityDetector(DefaultConfig())
	d.Start(env)
	d.Stop()

	clk.Advance(time.Minute)
	if len(rec.findings) != 0 {
		t.Fatalf("expected no findings after stop, got %+v", rec.findings)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected poller to be released, %d timers pending", clk.Pending())
	}
}

func TestShortcutBlocker(t *testing.T) {
	env, rec := newEnv(clock.NewManual(t0), 0)
	d := NewShortcutBlocker()
	d.Start(env)

	cases := []struct {
		key        Key
		prevent    bool
		screenshot bool
	}{
		{Key{Key: "F12", Code: "F12"}, true, false},
		{Key{Key: "I", Code: "KeyI", Ctrl: true, Shift: true}, true, false},
		{Key{Key: "j", Code: "KeyJ", Meta: true, Alt: true}, true, false},
		{Key{Key: "u", Code: "KeyU", Ctrl: true}, true, false},
		{Key{Key: "PrintScreen", Code: "PrintScreen"}, true, true},
		{Key{Key: "S", Code: "KeyS", Meta: true, Shift: true}, true, true},
		{Key{Key: "#", Code: "Digit3", Meta: true, Shift: true}, true, true},
		{Key{Key: "$", Code: "Digit4", Meta: true, Ctrl: true, Shift: true}, true, true},
		{Key{Key: "a", Code: "KeyA"}, false, false},
		{Key{Key: "c", Code: "KeyC", Ctrl: true}, false, false},
	}
	for _, tc := range cases {
		before := rec.count(FindingScreenshot)
		k := tc.key
		v := d.Observe(Signal{Kind: SignalKeyDown, Key: &k})
		if v.Prevent != tc.prevent {
			t.Fatalf("key %+v: expected prevent=%v, got %v", tc.key, tc.prevent, v.Prevent)
		}
		counted := rec.count(FindingScreenshot) - before
		if tc.screenshot && counted != 1 || !tc.screenshot && counted != 0 {
			t.Fatalf("key %+v: expected screenshot=%v, counted %d", tc.key, tc.screenshot, counted)
		}
	}
}

func TestClipboardGuardPreventsWithoutCounting(t *testing.T) {
	env, rec := newEnv(clock.NewManual(t0), 0)
	d := NewClipboardGuard()
	d.Start(env)

	for _, kind := range []SignalKind{SignalCopy, SignalCut, SignalContextMenu} {
		if v := d.Observe(Signal{Kind: kind}); !v.Prevent {
			t.Fatalf("expected %s to be prevented", kind)
		}
	}
	if rec.count(FindingScreenshot)+rec.count(FindingTabSwitch) != 0 {
		t.Fatalf("clipboard guard must not produce counted findings")
	}
}

func TestTouchGestureFollowedByBlur(t *testing.T) {
	env, rec := newEnv(clock.NewManual(t0), 0)
	d := NewTouchGestureDetector(DefaultConfig())
	d.Start(env)

	d.Observe(Signal{Kind: SignalTouchStart, Touches: 3, At: t0})
	d.Observe(Signal{Kind: SignalBlur, At: t0.Add(300 * time.Millisecond)})
	if rec.count(FindingScreenshot) != 1 {
		t.Fatalf("expected screenshot from gesture, got %+v", rec.findings)
	}

	d.Observe(Signal{Kind: SignalTouchStart, Touches: 1, At: t0.Add(2 * time.Second)})
	d.Observe(Signal{Kind: SignalBlur, At: t0.Add(2100 * time.Millisecond)})
	d.Observe(Signal{Kind: SignalTouchStart, Touches: 2, At: t0.Add(3 * time.Second)})
	d.Observe(Signal{Kind: SignalBlur, At: t0.Add(5 * time.Second)})
	if rec.count(FindingScreenshot) != 1 {
		t.Fatalf("expected no extra findings, got %+v", rec.findings)
	}
}

func TestScanFindsExtensionArtifacts(t *testing.T) {
	found := Scan(Environment{
		ScriptURLs: []string{
			"https://cdn.example.com/app.js",
			"chrome-extension://abcdef/content.js",
			"chrome-extension://abcdef/other.js",
			"moz-extension://1234/awesome-screenshot/inject.js",
		},
		ResourceURLs:     []string{"chrome-extension://xyz/chatgpt-sidebar.css"},
		DOMAttributes:    []string{"class", "data-gr-ext-installed", "data-extension-id"},
		ExtensionRuntime: true,
		OuterWidth:       1600, InnerWidth: 1300,
		OuterHeight: 900, InnerHeight: 820,
	}, 200)

	want := []string{
		"extension script: chrome-extension://abcdef",
		`known tool "awesome-screenshot" injected via moz-extension://`,
		`known tool "chatgpt" injected via chrome-extension://`,
		"extension DOM marker: data-gr-ext-installed",
		"extension DOM marker: data-extension-id",
		"browser extension runtime exposed to page",
		"window size delta 300x80 suggests developer tools are open",
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d findings, got %d: %q", len(want), len(found), found)
	}
	for i := range want {
		if found[i] != want[i] {
			t.Fatalf("finding %d: expected %q, got %q", i, want[i], found[i])
		}
	}
}

func TestScanCleanEnvironment(t *testing.T) {
	found := Scan(Environment{
		ScriptURLs:    []string{"https://example.com/main.js"},
		DOMAttributes: []string{"data-next-page", "class"},
		OuterWidth:    1280, InnerWidth: 1280, OuterHeight: 800, InnerHeight: 720,
	}, 200)
	if len(found) != 0 {
		t.Fatalf("expected clean scan, got %q", found)
	}
}

func TestEnvironmentScannerRunsOnce(t *testing.T) {
	env, rec := newEnv(clock.NewManual(t0), 0)
	d := NewEnvironmentScanner(DefaultConfig())
	d.Start(env)

	report := &Environment{ExtensionRuntime: true}
	d.Observe(Signal{Kind: SignalEnvironment, Environment: report})
	d.Observe(Signal{Kind: SignalEnvironment, Environment: &Environment{ScriptURLs: []string{"chrome-extension://a/b.js"}}})

	if rec.count(FindingExtension) != 1 {
		t.Fatalf("expected only the first report to be scanned, got %+v", rec.findings)
	}
	if !strings.Contains(rec.findings[0].Detail, "runtime") {
		t.Fatalf("unexpected detail %q", rec.findings[0].Detail)
	}
}
