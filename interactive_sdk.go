package hjortron

import (
	"context"

	"pkt.systems/hjortron/internal/session"
	"pkt.systems/pslog"
)

// Event is a structured session event for shell integration consumers.
type Event = session.Event

// EventKind discriminates Event values.
type EventKind = session.EventKind

const (
	EventText       = session.EventText
	EventPromptMark = session.EventPromptMark
	EventTitle      = session.EventTitle
	EventBell       = session.EventBell
	EventResized    = session.EventResized
	EventExited     = session.EventExited
)

// InteractiveOptions configures a local interactive Hjortron session.
type InteractiveOptions struct {
	SessionID       string
	Cols            int
	Rows            int
	Shell           string
	Term            string
	WorkingDir      string
	Env             []string
	ScrollbackLines int

	// Listen enables the embedded view server on the given address.
	Listen       string
	ViewPassword string
	AllowControl bool
	BufferLines  int

	Logger pslog.Logger

	// OnEvent receives structured events (text, prompt marks, title,
	// bell, resize, exit). Never raw PTY bytes.
	OnEvent func(Event)
	// OnListen receives the watch URL once the view server is up.
	OnListen func(url string)
}

// Interactive runs a local interactive session until the shell exits
// or ctx is canceled.
func Interactive(ctx context.Context, opts InteractiveOptions) error {
	return session.New(session.Options{
		SessionID:       opts.SessionID,
		Cols:            opts.Cols,
		Rows:            opts.Rows,
		Shell:           opts.Shell,
		Term:            opts.Term,
		WorkingDir:      opts.WorkingDir,
		Env:             opts.Env,
		ScrollbackLines: opts.ScrollbackLines,
		Listen:          opts.Listen,
		ViewPassword:    opts.ViewPassword,
		AllowControl:    opts.AllowControl,
		BufferLines:     opts.BufferLines,
		Logger:          opts.Logger,
		OnEvent:         opts.OnEvent,
		OnListen:        opts.OnListen,
	}).Run(ctx)
}
