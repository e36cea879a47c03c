package integrity

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var extensionSchemes = []string{
	"chrome-extension://",
	"moz-extension://",
	"safari-extension://",
	"safari-web-extension://",
	"ms-browser-extension://",
	"edge-extension://",
}

var (
	extensionAttr = regexp.MustCompile(`(?i)(^|[-_])(ext|extension)([-_]|$)|^data-(gr|new-gr|lt|grammarly)-`)
	knownTools    = regexp.MustCompile(`(?i)(awesome[-_ ]?screenshot|gofullpage|fireshot|lightshot|nimbus|screen[-_ ]?capture|screenshot|chatgpt|openai|copilot|gemini|quillbot|monica|merlin|sider|grammarly)`)
)

// EnvironmentScanner inspects the page environment once per session for
// extension artifacts and a likely open devtools panel.
type EnvironmentScanner struct {
	cfg Config

	mu      sync.Mutex
	env     Env
	scanned bool
}

func NewEnvironmentScanner(cfg Config) *EnvironmentScanner {
	return &EnvironmentScanner{cfg: cfg}
}

func (d *EnvironmentScanner) Name() string { return "environment" }

func (d *EnvironmentScanner) Start(env Env) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env = env
}

func (d *EnvironmentScanner) Stop() {}

func (d *EnvironmentScanner) Observe(sig Signal) Verdict {
	if sig.Kind != SignalEnvironment || sig.Environment == nil {
		return Verdict{}
	}
	d.mu.Lock()
	if d.scanned {
		d.mu.Unlock()
		return Verdict{}
	}
	d.scanned = true
	env := d.env
	d.mu.Unlock()

	for _, detail := range Scan(*sig.Environment, d.cfg.DevtoolsDelta) {
		env.Report(Finding{
			Kind:    FindingExtension,
			Detail:  detail,
			Message: "Suspicious browser extension detected: " + detail,
		})
	}
	return Verdict{}
}

// Scan returns human-readable findings for a page environment, de-duplicated and in discovery order.
func Scan(e Environment, devtoolsDelta int) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	urls := append(append([]string{}, e.ScriptURLs...), e.ResourceURLs...)
	for _, u := range urls {
		scheme, ok := extensionScheme(u)
		if !ok {
			continue
		}
		if name := knownTools.FindString(u); name != "" {
			add(fmt.Sprintf("known tool %q injected via %s", strings.ToLower(name), scheme))
			continue
		}
		add("extension script: " + extensionOrigin(u, scheme))
	}

	for _, attr := range e.DOMAttributes {
		if extensionAttr.MatchString(attr) {
			add("extension DOM marker: " + attr)
		}
	}

	if e.ExtensionRuntime {
		add("browser extension runtime exposed to page")
	}

	if e.OuterWidth > 0 && e.OuterHeight > 0 {
		dw := e.OuterWidth - e.InnerWidth
		dh := e.OuterHeight - e.InnerHeight
		if dw > devtoolsDelta || dh > devtoolsDelta {
			add(fmt.Sprintf("window size delta %dx%d suggests developer tools are open", dw, dh))
		}
	}
	return out
}

func extensionScheme(u string) (string, bool) {
	lower := strings.ToLower(u)
	for _, s := range extensionSchemes {
		if strings.HasPrefix(lower, s) {
			return s, true
		}
	}
	return "", false
}

// extensionOrigin trims a URL to scheme and extension id.
func extensionOrigin(u, scheme string) string {
	rest := u[len(scheme):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return scheme + rest
}
