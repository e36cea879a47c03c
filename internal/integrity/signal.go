package integrity

import "time"

// SignalKind names a raw UI signal forwarded by the presentation layer.
type SignalKind string

const (
	SignalVisibility  SignalKind = "visibility"
	SignalMouseMove   SignalKind = "mousemove"
	SignalMouseDown   SignalKind = "mousedown"
	SignalKeyDown     SignalKind = "keydown"
	SignalScroll      SignalKind = "scroll"
	SignalClick       SignalKind = "click"
	SignalCopy        SignalKind = "copy"
	SignalCut         SignalKind = "cut"
	SignalContextMenu SignalKind = "contextmenu"
	SignalTouchStart  SignalKind = "touchstart"
	SignalBlur        SignalKind = "blur"
	SignalFocus       SignalKind = "focus"
	SignalEnvironment SignalKind = "environment"
)

// Key describes a keydown event.
type Key struct {
	Key   string `json:"key"`
	Code  string `json:"code"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

// Environment is the one-shot page inspection the presentation layer reports at start.
type Environment struct {
	ScriptURLs       []string `json:"scriptUrls"`
	ResourceURLs     []string `json:"resourceUrls"`
	DOMAttributes    []string `json:"domAttributes"`
	ExtensionRuntime bool     `json:"extensionRuntime"`
	OuterWidth       int      `json:"outerWidth"`
	InnerWidth       int      `json:"innerWidth"`
	OuterHeight      int      `json:"outerHeight"`
	InnerHeight      int      `json:"innerHeight"`
}

// Signal is one raw UI event. At is stamped by the receiver when zero.
// HiddenForMs, when set on a visible transition, is the hidden duration measured
// on the page and takes precedence over the receiver-side measurement.
type Signal struct {
	Kind        SignalKind   `json:"kind"`
	Hidden      bool         `json:"hidden,omitempty"`
	HiddenForMs int64        `json:"hiddenForMs,omitempty"`
	Key         *Key         `json:"key,omitempty"`
	Touches     int          `json:"touches,omitempty"`
	Environment *Environment `json:"environment,omitempty"`
	At          time.Time    `json:"-"`
}

func (s Signal) isActivity() bool {
	switch s.Kind {
	case SignalMouseMove, SignalMouseDown, SignalKeyDown, SignalScroll, SignalClick:
		return true
	}
	return false
}

// Verdict is a detector's answer to a signal.
type Verdict struct {
	Prevent bool `json:"prevent"`
}

func (v Verdict) merge(o Verdict) Verdict {
	return Verdict{Prevent: v.Prevent || o.Prevent}
}
