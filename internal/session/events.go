package session

import (
	"pkt.systems/hjortron/internal/terminal"
)

// EventKind classifies structured session events.
type EventKind string

// Session event kinds.
const (
	// EventText carries plain text appended to the screen since the
	// previous text event.
	EventText EventKind = "text"
	// EventPromptMark reports an OSC 133 shell integration mark.
	EventPromptMark EventKind = "prompt-mark"
	// EventTitle reports a window title change.
	EventTitle EventKind = "title"
	// EventBell reports BEL.
	EventBell EventKind = "bell"
	// EventResized reports a session grid resize.
	EventResized EventKind = "resized"
	// EventExited reports shell exit; it is the final event.
	EventExited EventKind = "exited"
)

// Event is a structured observation of session activity, suitable for
// feeding assistants or logs without scraping escape sequences.
type Event struct {
	Kind EventKind

	// Text is set for EventText.
	Text string
	// Mark is set for EventPromptMark.
	Mark terminal.Mark
	// Title is set for EventTitle.
	Title string
	// Cols and Rows are set for EventResized.
	Cols int
	Rows int
	// ExitCode is set for EventExited. Killed shells report -1.
	ExitCode int
}
