package view

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/coder/websocket"
	"golang.org/x/term"

	"pkt.systems/hjortron/internal/protocol"
	"pkt.systems/hjortron/internal/render"
	"pkt.systems/pslog"
)

// detachKey closes the client locally. Raw mode forwards every other
// byte to the session, so a read-only viewer needs an out-of-band way
// to leave.
const detachKey = 0x1d // Ctrl-]

// ClientOptions configures a viewer client.
type ClientOptions struct {
	// URL is the watch URL, normally taken verbatim from the host.
	// The access token rides in its query string.
	URL            string
	Password       string
	RequestControl bool
	Logger         pslog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// DisableRaw keeps the local terminal in cooked mode.
	DisableRaw bool

	// TermSize overrides local terminal size detection.
	TermSize func() (cols, rows int, err error)
}

// Client attaches to a session's viewer endpoint and mirrors it on the
// local terminal. Ctrl-] detaches.
type Client struct {
	opts     ClientOptions
	logger   pslog.Logger
	clientID string

	writeMu sync.Mutex
	conn    *websocket.Conn

	// mu guards state shared between the dispatch loop and the input
	// and resize goroutines.
	mu        sync.Mutex
	viewCols  int
	viewRows  int
	holder    string
	lastSeq   uint64
	resyncing bool

	// Screen state, touched only by the envelope dispatch loop.
	screen     *protocol.Snapshot
	lastRender *protocol.Snapshot
	renderCols int
	renderRows int
	lastError  string
}

// NewClient constructs a viewer client.
func NewClient(opts ClientOptions) *Client {
	if opts.Logger == nil {
		opts.Logger = pslog.LoggerFromEnv()
	}
	return &Client{
		opts:     opts,
		logger:   opts.Logger,
		clientID: newConnID(),
	}
}

// ClientID returns the generated client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Run connects, mirrors frames until the context is canceled, the
// server closes the stream or the user detaches.
func (c *Client) Run(ctx context.Context) error {
	url, err := normalizeURL(c.opts.URL)
	if err != nil {
		return err
	}

	dialOpts := &websocket.DialOptions{}
	if c.opts.Password != "" {
		hdr := http.Header{}
		cred := base64.StdEncoding.EncodeToString([]byte("viewer:" + c.opts.Password))
		hdr.Set("Authorization", "Basic "+cred)
		dialOpts.HTTPHeader = hdr
	}
	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(wsReadLimit)
	c.conn = conn
	defer conn.Close(websocket.StatusNormalClosure, "detached")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cols, rows := c.termSize()
	c.mu.Lock()
	c.viewCols, c.viewRows = cols, rows
	c.mu.Unlock()

	hello := protocol.HelloPayload{
		ClientID:     c.clientID,
		Cols:         cols,
		Rows:         rows,
		WantsControl: c.opts.RequestControl,
		ClientType:   "terminal",
	}
	env, err := protocol.NewEnvelope(protocol.MessageHello, "", 0, hello)
	if err != nil {
		return err
	}
	if err := c.send(ctx, env); err != nil {
		return err
	}

	restore, err := c.enterRaw()
	if err != nil {
		return err
	}
	defer restore()

	go c.readInput(ctx, cancel)
	go c.watchResize(ctx)

	err = c.readLoop(ctx)
	restore()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		env, err := readEnvelope(ctx, c.conn, wsReadLimit)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.dispatch(ctx, env)
	}
}

func (c *Client) dispatch(ctx context.Context, env protocol.Envelope) {
	switch env.Type {
	case protocol.MessageWelcome:
		var welcome protocol.WelcomePayload
		if err := env.DecodePayload(&welcome); err != nil {
			return
		}
		c.mu.Lock()
		c.holder = welcome.HolderClientID
		c.mu.Unlock()
		c.logger.Debug("attached",
			"session", env.SessionID,
			"control", welcome.GrantedControl,
			"cols", welcome.ServerCols,
			"rows", welcome.ServerRows)
	case protocol.MessageSnapshot:
		var snap protocol.Snapshot
		if err := env.DecodePayload(&snap); err != nil {
			return
		}
		// A snapshot re-bases the stream at its own seq.
		c.mu.Lock()
		c.lastSeq = env.Seq
		c.resyncing = false
		c.mu.Unlock()
		c.screen = &snap
		c.render()
	case protocol.MessageDiff:
		var diff protocol.Diff
		if err := env.DecodePayload(&diff); err != nil {
			return
		}
		c.mu.Lock()
		inOrder := env.Seq == c.lastSeq+1
		if inOrder {
			c.lastSeq = env.Seq
		}
		c.mu.Unlock()
		if !inOrder {
			c.requestResync(ctx)
			return
		}
		c.screen = protocol.ApplyDiff(c.screen, &diff)
		c.render()
	case protocol.MessageControl:
		var ctl protocol.ControlPayload
		if err := env.DecodePayload(&ctl); err != nil {
			return
		}
		c.mu.Lock()
		c.holder = ctl.HolderClientID
		c.mu.Unlock()
	case protocol.MessageError:
		var ep protocol.ErrorPayload
		if err := env.DecodePayload(&ep); err != nil {
			return
		}
		if ep.Message != c.lastError {
			c.lastError = ep.Message
			fmt.Fprintf(c.stderr(), "\r\n%s\r\n", ep.Message)
		}
	}
}

// render repaints the local terminal from the current screen state.
// Only rows that differ from the previous paint are rewritten; a view
// size change invalidates that baseline and forces a full repaint.
func (c *Client) render() {
	if c.screen == nil {
		return
	}
	c.mu.Lock()
	cols, rows := c.viewCols, c.viewRows
	c.mu.Unlock()
	if cols <= 0 || rows <= 0 {
		cols, rows = c.screen.Cols, c.screen.Rows
	}
	if cols != c.renderCols || rows != c.renderRows {
		c.lastRender = nil
		c.renderCols, c.renderRows = cols, rows
	}
	if err := render.SnapshotViewportDelta(c.stdout(), c.lastRender, c.screen, cols, rows); err != nil {
		c.logger.Debug("render failed", "err", err)
		return
	}
	c.lastRender = c.screen.Clone()
}

// requestResync asks for a fresh snapshot by re-sending hello. Only
// one resync is kept in flight; the arriving snapshot clears it.
func (c *Client) requestResync(ctx context.Context) {
	c.mu.Lock()
	if c.resyncing {
		c.mu.Unlock()
		return
	}
	c.resyncing = true
	cols, rows := c.viewCols, c.viewRows
	lastSeq := c.lastSeq
	c.mu.Unlock()
	hello := protocol.HelloPayload{
		ClientID:   c.clientID,
		Cols:       cols,
		Rows:       rows,
		LastSeq:    lastSeq,
		ClientType: "terminal",
	}
	env, err := protocol.NewEnvelope(protocol.MessageHello, "", 0, hello)
	if err != nil {
		return
	}
	if err := c.send(ctx, env); err != nil {
		c.logger.Debug("resync request failed", "err", err)
	}
}

func (c *Client) readInput(ctx context.Context, cancel context.CancelFunc) {
	buf := make([]byte, 1024)
	for {
		n, err := c.stdin().Read(buf)
		if n > 0 {
			data := buf[:n]
			if i := bytes.IndexByte(data, detachKey); i >= 0 {
				if i > 0 {
					c.sendInput(ctx, data[:i])
				}
				cancel()
				_ = c.conn.Close(websocket.StatusNormalClosure, "detached")
				return
			}
			c.sendInput(ctx, data)
		}
		if err == nil && ctx.Err() == nil {
			continue
		}
		return
	}
}

func (c *Client) sendInput(ctx context.Context, data []byte) {
	payload := protocol.InputPayload{Data: append([]byte(nil), data...)}
	env, err := protocol.NewEnvelope(protocol.MessageIn, "", 0, payload)
	if err != nil {
		return
	}
	if err := c.send(ctx, env); err != nil {
		c.logger.Debug("input send failed", "err", err)
	}
}

// watchResize follows local SIGWINCH. The new size is reported to the
// server when controlling, and a resync snapshot repaints the local
// screen at the new size either way.
func (c *Client) watchResize(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
		case <-ctx.Done():
			return
		}
		cols, rows := c.termSize()
		c.mu.Lock()
		changed := cols != c.viewCols || rows != c.viewRows
		c.viewCols, c.viewRows = cols, rows
		c.mu.Unlock()
		if !changed {
			continue
		}
		if c.opts.RequestControl {
			env, err := protocol.NewEnvelope(protocol.MessageResize, "", 0, protocol.ResizePayload{
				Cols: cols,
				Rows: rows,
			})
			if err == nil {
				if err := c.send(ctx, env); err != nil {
					c.logger.Debug("resize send failed", "err", err)
				}
			}
		}
		c.requestResync(ctx)
	}
}

func (c *Client) send(ctx context.Context, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// enterRaw switches the local terminal to raw mode when stdin is a
// terminal. The returned restore is safe to call more than once.
func (c *Client) enterRaw() (func(), error) {
	if c.opts.DisableRaw {
		return func() {}, nil
	}
	f, ok := c.stdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}, nil
	}
	oldState, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = term.Restore(int(f.Fd()), oldState)
			fmt.Fprint(c.stdout(), "\x1b[0m\x1b[?25h\r\n")
		})
	}, nil
}

func (c *Client) termSize() (int, int) {
	if c.opts.TermSize != nil {
		if cols, rows, err := c.opts.TermSize(); err == nil && cols > 0 && rows > 0 {
			return cols, rows
		}
	}
	if f, ok := c.stdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if cols, rows, err := term.GetSize(int(f.Fd())); err == nil {
			return cols, rows
		}
	}
	return 80, 24
}

func (c *Client) stdin() io.Reader {
	if c.opts.Stdin != nil {
		return c.opts.Stdin
	}
	return os.Stdin
}

func (c *Client) stdout() io.Writer {
	if c.opts.Stdout != nil {
		return c.opts.Stdout
	}
	return os.Stdout
}

func (c *Client) stderr() io.Writer {
	if c.opts.Stderr != nil {
		return c.opts.Stderr
	}
	return os.Stderr
}

// normalizeURL turns what the user pasted into a websocket URL. Plain
// host:port gets the ws scheme and /ws path filled in.
func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("watch URL is required")
	}
	switch {
	case strings.HasPrefix(raw, "ws://"), strings.HasPrefix(raw, "wss://"):
	case strings.HasPrefix(raw, "http://"):
		raw = "ws://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "https://"):
		raw = "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.Contains(raw, "://"):
		return "", fmt.Errorf("unsupported scheme in %q", raw)
	default:
		raw = "ws://" + raw
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(raw, "ws://"), "wss://")
	slash := strings.IndexByte(rest, '/')
	query := strings.IndexByte(rest, '?')
	if slash == -1 || (query != -1 && query < slash) {
		// No path before the query string.
		if query == -1 {
			return raw + "/ws", nil
		}
		scheme := raw[:len(raw)-len(rest)]
		return scheme + rest[:query] + "/ws" + rest[query:], nil
	}
	return raw, nil
}
