package integrity

// ClipboardGuard suppresses copy, cut and the context menu. It is a deterrent
// only and never touches the counters.
type ClipboardGuard struct {
	env Env
}

func NewClipboardGuard() *ClipboardGuard {
	return &ClipboardGuard{}
}

func (d *ClipboardGuard) Name() string { return "clipboard" }

func (d *ClipboardGuard) Start(env Env) { d.env = env }

func (d *ClipboardGuard) Stop() {}

func (d *ClipboardGuard) Observe(sig Signal) Verdict {
	switch sig.Kind {
	case SignalCopy, SignalCut:
		d.env.Report(Finding{Kind: FindingBlockedAction, Detail: string(sig.Kind), Message: "Copying is disabled during the quiz."})
		return Verdict{Prevent: true}
	case SignalContextMenu:
		return Verdict{Prevent: true}
	}
	return Verdict{}
}
