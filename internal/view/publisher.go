package view

import (
	"bytes"
	"sync"

	"pkt.systems/hjortron/internal/protocol"
)

// Publisher turns emulator snapshots into wire frames for viewers. The
// first frame after a missing baseline or a size change is a full
// snapshot; later frames are row diffs. Every frame carries a
// session-scoped sequence number.
type Publisher struct {
	sessionID string

	mu       sync.Mutex
	lastSnap *protocol.Snapshot
	lastSent *protocol.Snapshot
	seq      uint64
}

// NewPublisher constructs a Publisher for a session.
func NewPublisher(sessionID string) *Publisher {
	return &Publisher{sessionID: sessionID}
}

// BuildFrame produces the next frame for snap, with its line cost for
// queue accounting. ok is false when the screen did not change. data
// is the raw PTY chunk behind the update and only informs the cost.
func (p *Publisher) BuildFrame(data []byte, snap *protocol.Snapshot) (protocol.Envelope, int, bool) {
	if snap == nil {
		return protocol.Envelope{}, 0, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSnap = snap

	diff, wantSnapshot := protocol.DiffSnapshots(p.lastSent, snap)
	if wantSnapshot {
		env, err := protocol.NewEnvelope(protocol.MessageSnapshot, p.sessionID, p.seq+1, snap)
		if err != nil {
			return protocol.Envelope{}, 0, false
		}
		p.seq++
		p.lastSent = snap
		return env, snapshotLines(snap, data), true
	}
	if diff == nil {
		return protocol.Envelope{}, 0, false
	}
	env, err := protocol.NewEnvelope(protocol.MessageDiff, p.sessionID, p.seq+1, diff)
	if err != nil {
		return protocol.Envelope{}, 0, false
	}
	p.seq++
	p.lastSent = snap
	return env, diffLines(diff, data), true
}

// SnapshotFrame returns a full-snapshot frame at the current sequence
// number, for a newly attached or lagging viewer. ok is false before
// the first publish.
func (p *Publisher) SnapshotFrame() (protocol.Envelope, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.lastSent
	if snap == nil {
		snap = p.lastSnap
	}
	if snap == nil {
		return protocol.Envelope{}, 0, false
	}
	env, err := protocol.NewEnvelope(protocol.MessageSnapshot, p.sessionID, p.seq, snap)
	if err != nil {
		return protocol.Envelope{}, 0, false
	}
	return env, snapshotLines(snap, nil), true
}

// Seq returns the sequence number of the most recent frame.
func (p *Publisher) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func countLines(data []byte) int {
	return bytes.Count(data, []byte{'\n'})
}

func snapshotLines(snap *protocol.Snapshot, data []byte) int {
	switch lines := countLines(data); {
	case lines > 0:
		return lines
	case snap == nil, snap.Rows == 0:
		return 1
	default:
		return snap.Rows
	}
}

func diffLines(diff *protocol.Diff, data []byte) int {
	switch lines := countLines(data); {
	case lines > 0:
		return lines
	case diff == nil, len(diff.DiffRows) == 0:
		return 1
	default:
		return len(diff.DiffRows)
	}
}
