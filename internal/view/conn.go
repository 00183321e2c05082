package view

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"pkt.systems/hjortron/internal/protocol"
	"pkt.systems/pslog"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 1 << 20
)

// viewerConn is one attached viewer. Data frames pass through a
// bounded queue drained by writeLoop so a slow viewer cannot stall the
// session pipeline.
type viewerConn struct {
	id       string
	clientID string
	conn     *websocket.Conn
	logger   pslog.Logger

	// snapshotFrame supplies the current full-snapshot frame for
	// overflow recovery.
	snapshotFrame func() (protocol.Envelope, int, bool)

	sendMu sync.Mutex

	mu     sync.Mutex
	queue  []queuedFrame
	queued int
	limit  int
	wake   chan struct{}
}

type queuedFrame struct {
	env      protocol.Envelope
	snapshot bool
	lines    int
}

func newViewerConn(id string, conn *websocket.Conn, limit int, logger pslog.Logger) *viewerConn {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	return &viewerConn{
		id:     id,
		conn:   conn,
		logger: logger,
		limit:  limit,
		wake:   make(chan struct{}, 1),
	}
}

// enqueue queues a data frame. Overflow drops the oldest entries; once
// anything was dropped the stream is no longer contiguous, so the
// queue is replaced with a fresh full snapshot instead of replaying a
// truncated diff sequence.
func (c *viewerConn) enqueue(f queuedFrame) {
	c.mu.Lock()
	c.queue = append(c.queue, f)
	c.queued += f.lines
	dropped := false
	for c.queued > c.limit && len(c.queue) > 1 {
		c.queued -= c.queue[0].lines
		c.queue = c.queue[1:]
		dropped = true
	}
	if dropped && !c.queue[0].snapshot {
		if env, lines, ok := c.snapshotFrame(); ok {
			c.queue = []queuedFrame{{env: env, snapshot: true, lines: lines}}
			c.queued = lines
		}
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *viewerConn) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			f := c.queue[0]
			c.queue = c.queue[1:]
			c.queued -= f.lines
			c.mu.Unlock()

			if err := c.send(ctx, f.env); err != nil {
				c.logger.Debug("viewer send failed", "err", err)
				_ = c.close("write failed")
				return
			}
		}
	}
}

func (c *viewerConn) send(ctx context.Context, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *viewerConn) ping(ctx context.Context) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Ping(ctx)
}

func (c *viewerConn) close(reason string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

func readEnvelope(ctx context.Context, conn *websocket.Conn, readLimit int64) (protocol.Envelope, error) {
	conn.SetReadLimit(readLimit)
	_, data, err := conn.Read(ctx)
	if err != nil {
		return protocol.Envelope{}, err
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return protocol.Envelope{}, err
	}
	return env, nil
}
