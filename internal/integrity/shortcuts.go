package integrity

import "strings"

var blockedShortcuts = []string{
	"F12",
	"Ctrl+Shift+I", "Ctrl+Shift+J", "Ctrl+Shift+C", "Ctrl+U",
	"Meta+Alt+I", "Meta+Alt+J", "Meta+Alt+C", "Meta+U",
	"Meta+Shift+I", "Meta+Shift+J", "Meta+Shift+C",
	"PrintScreen", "Alt+PrintScreen",
	"Meta+Shift+S",
	"Meta+Shift+3", "Meta+Shift+4", "Meta+Shift+5",
	"Meta+Ctrl+Shift+3", "Meta+Ctrl+Shift+4",
}

// ShortcutBlocker suppresses devtools and screenshot shortcuts. Screenshot
// shortcuts are also counted.
type ShortcutBlocker struct {
	env Env
}

func NewShortcutBlocker() *ShortcutBlocker {
	return &ShortcutBlocker{}
}

func (d *ShortcutBlocker) Name() string { return "shortcuts" }

func (d *ShortcutBlocker) Start(env Env) { d.env = env }

func (d *ShortcutBlocker) Stop() {}

func (d *ShortcutBlocker) Observe(sig Signal) Verdict {
	if sig.Kind != SignalKeyDown || sig.Key == nil {
		return Verdict{}
	}
	k := *sig.Key
	switch {
	case isScreenshotShortcut(k):
		d.env.Report(Finding{
			Kind:    FindingScreenshot,
			Detail:  "screenshot shortcut " + keyName(k),
			Message: "Screenshots are not allowed during the quiz. This attempt is recorded.",
		})
		return Verdict{Prevent: true}
	case isDevtoolsShortcut(k):
		d.env.Report(Finding{
			Kind:    FindingDevtoolsShortcut,
			Detail:  keyName(k),
			Message: "Developer tools are disabled during the quiz.",
		})
		return Verdict{Prevent: true}
	}
	return Verdict{}
}

// keyName normalizes a key to an upper-case letter, digit or named key,
// preferring the physical code so Shift+3 is "3" rather than "#".
func keyName(k Key) string {
	switch {
	case strings.HasPrefix(k.Code, "Key") && len(k.Code) == 4:
		return k.Code[3:]
	case strings.HasPrefix(k.Code, "Digit") && len(k.Code) == 6:
		return k.Code[5:]
	case k.Code == "PrintScreen" || k.Key == "PrintScreen":
		return "PrintScreen"
	}
	return strings.ToUpper(k.Key)
}

func isDevtoolsShortcut(k Key) bool {
	name := keyName(k)
	if name == "F12" {
		return true
	}
	cmd := k.Ctrl || k.Meta
	if cmd && (k.Shift || (k.Meta && k.Alt)) {
		switch name {
		case "I", "J", "C":
			return true
		}
	}
	return cmd && !k.Shift && name == "U"
}

func isScreenshotShortcut(k Key) bool {
	name := keyName(k)
	if name == "PrintScreen" {
		return true
	}
	if !k.Meta || !k.Shift {
		return false
	}
	switch name {
	case "S":
		return !k.Ctrl
	case "3", "4":
		return true
	case "5":
		return !k.Ctrl
	}
	return false
}
