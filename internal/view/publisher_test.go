package view

import (
	"testing"

	"pkt.systems/hjortron/internal/protocol"
)

func wireSnap(cols, rows int, text string) *protocol.Snapshot {
	snap := &protocol.Snapshot{
		Cols:          cols,
		Rows:          rows,
		Runes:         make([]uint32, cols*rows),
		Modes:         make([]int32, cols*rows),
		Fg:            make([]uint32, cols*rows),
		Bg:            make([]uint32, cols*rows),
		CursorVisible: true,
	}
	for i := range snap.Runes {
		snap.Runes[i] = ' '
	}
	for i, r := range text {
		if i >= len(snap.Runes) {
			break
		}
		snap.Runes[i] = uint32(r)
	}
	return snap
}

func TestPublisherFirstFrameIsSnapshot(t *testing.T) {
	p := NewPublisher("session")

	env, lines, ok := p.BuildFrame(nil, wireSnap(2, 3, "AB"))
	if !ok {
		t.Fatalf("expected a frame")
	}
	if env.Type != protocol.MessageSnapshot {
		t.Fatalf("type = %q, want %q", env.Type, protocol.MessageSnapshot)
	}
	if env.Seq != 1 {
		t.Fatalf("seq = %d, want 1", env.Seq)
	}
	if lines != 3 {
		t.Fatalf("lines = %d, want 3", lines)
	}
}

func TestPublisherDiffAfterSnapshot(t *testing.T) {
	p := NewPublisher("session")

	if _, _, ok := p.BuildFrame(nil, wireSnap(2, 2, "AB")); !ok {
		t.Fatalf("expected first frame")
	}
	env, _, ok := p.BuildFrame(nil, wireSnap(2, 2, "CB"))
	if !ok {
		t.Fatalf("expected second frame")
	}
	if env.Type != protocol.MessageDiff {
		t.Fatalf("type = %q, want %q", env.Type, protocol.MessageDiff)
	}
	if env.Seq != 2 {
		t.Fatalf("seq = %d, want 2", env.Seq)
	}

	var diff protocol.Diff
	if err := env.DecodePayload(&diff); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	if len(diff.DiffRows) != 1 || diff.DiffRows[0].Row != 0 {
		t.Fatalf("diff rows = %+v, want row 0 only", diff.DiffRows)
	}
}

func TestPublisherSkipsUnchangedScreen(t *testing.T) {
	p := NewPublisher("session")

	_, _, _ = p.BuildFrame(nil, wireSnap(2, 2, "AB"))
	if _, _, ok := p.BuildFrame(nil, wireSnap(2, 2, "AB")); ok {
		t.Fatalf("expected no frame for unchanged screen")
	}
	if got := p.Seq(); got != 1 {
		t.Fatalf("seq = %d, want 1", got)
	}
}

func TestPublisherSizeChangeForcesSnapshot(t *testing.T) {
	p := NewPublisher("session")

	_, _, _ = p.BuildFrame(nil, wireSnap(2, 2, "AB"))
	env, _, ok := p.BuildFrame(nil, wireSnap(3, 2, "AB"))
	if !ok {
		t.Fatalf("expected frame after resize")
	}
	if env.Type != protocol.MessageSnapshot {
		t.Fatalf("type = %q, want %q", env.Type, protocol.MessageSnapshot)
	}
}

func TestPublisherCountsLinesFromData(t *testing.T) {
	p := NewPublisher("session")

	_, lines, ok := p.BuildFrame([]byte("one\ntwo\n"), wireSnap(2, 5, "AB"))
	if !ok {
		t.Fatalf("expected frame")
	}
	if lines != 2 {
		t.Fatalf("lines = %d, want 2", lines)
	}
}

func TestPublisherSnapshotFrameBeforePublish(t *testing.T) {
	p := NewPublisher("session")

	if _, _, ok := p.SnapshotFrame(); ok {
		t.Fatalf("expected no frame before first publish")
	}
}

func TestPublisherSnapshotFrameCarriesCurrentSeq(t *testing.T) {
	p := NewPublisher("session")

	_, _, _ = p.BuildFrame(nil, wireSnap(2, 2, "AB"))
	_, _, _ = p.BuildFrame(nil, wireSnap(2, 2, "CD"))

	env, _, ok := p.SnapshotFrame()
	if !ok {
		t.Fatalf("expected snapshot frame")
	}
	if env.Type != protocol.MessageSnapshot {
		t.Fatalf("type = %q, want %q", env.Type, protocol.MessageSnapshot)
	}
	if env.Seq != 2 {
		t.Fatalf("seq = %d, want 2", env.Seq)
	}

	var snap protocol.Snapshot
	if err := env.DecodePayload(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Runes[0] != 'C' {
		t.Fatalf("rune = %q, want C", rune(snap.Runes[0]))
	}
}
