package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/term"

	"pkt.systems/hjortron/internal/config"
	"pkt.systems/hjortron/internal/protocol"
	"pkt.systems/hjortron/internal/pty"
	"pkt.systems/hjortron/internal/render"
	"pkt.systems/hjortron/internal/terminal"
	"pkt.systems/hjortron/internal/terminal/emu"
	"pkt.systems/hjortron/internal/view"
	"pkt.systems/pslog"
)

const (
	eventBuffer = 256
	// maxPendingEventText caps text carried over when the event
	// channel is full. The oldest half is dropped on overflow.
	maxPendingEventText = 64 << 10
)

// Options configures a local interactive session.
type Options struct {
	SessionID string
	Cols      int
	Rows      int

	// Shell overrides shell resolution. Empty falls back to $SHELL,
	// then the passwd entry, then /bin/sh.
	Shell      string
	Term       string
	WorkingDir string
	Env        []string

	// ScrollbackLines bounds the emulator scrollback. Zero keeps the
	// emulator default; negative disables scrollback.
	ScrollbackLines int

	// Listen enables the embedded view server on the given address.
	Listen       string
	ViewPassword string
	AllowControl bool
	BufferLines  int

	Stdin      *os.File
	Stdout     *os.File
	DisableRaw bool
	Logger     pslog.Logger

	OnPTYRead  func([]byte)
	OnSnapshot func(terminal.Snapshot)
	// OnEvent receives every structured event synchronously. It may be
	// called from multiple session goroutines.
	OnEvent func(Event)
	// OnListen receives the watch URL once the view server is up.
	OnListen func(url string)
}

// Runner executes a local interactive session with an optional
// embedded view server.
type Runner struct {
	opts Options

	logger pslog.Logger
	sess   *pty.Session

	emulator *emu.Emulator
	emuMu    sync.Mutex
	writeMu  sync.Mutex

	sizeMu sync.Mutex
	cols   int
	rows   int

	rawMu    sync.Mutex
	rawState *term.State

	// veofOrig remembers the tty EOF byte so detach can put it back.
	veofMu   sync.Mutex
	veofSet  bool
	veofOrig uint8

	lastRender *protocol.Snapshot
	lastTitle  string

	// holderID names the client owning input control, or
	// view.HostControlID for the host.
	holderMu sync.Mutex
	holderID string

	eventMu     sync.Mutex
	events      chan Event
	pendingText []byte
}

// New constructs a Runner. The emulator exists from this point, so
// Borrow works before Run.
func New(opts Options) *Runner {
	cols := fallback(opts.Cols, config.DefaultTerminalCols)
	rows := fallback(opts.Rows, config.DefaultTerminalRows)
	e := emu.New(cols, rows)
	switch {
	case opts.ScrollbackLines > 0:
		e.SetMaxScrollback(opts.ScrollbackLines)
	case opts.ScrollbackLines < 0:
		e.SetMaxScrollback(0)
	}
	r := &Runner{
		opts:     opts,
		emulator: e,
		events:   make(chan Event, eventBuffer),
		holderID: view.HostControlID,
		cols:     cols,
		rows:     rows,
	}
	// Query replies (DA, DSR) go straight back to the child.
	e.SetResponseWriter(func(data []byte) {
		_, _ = r.writePTY(data)
	})
	return r
}

// Borrow runs fn with the emulator under the session lock. The
// emulator must not be retained past fn.
func (r *Runner) Borrow(fn func(*emu.Emulator)) {
	r.emuMu.Lock()
	defer r.emuMu.Unlock()
	fn(r.emulator)
}

// Events returns the structured event feed. Delivery is best-effort:
// when the receiver lags, text events coalesce and other events drop.
// The channel is closed when Run returns.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// applyDefaults fills in everything Run needs that the caller left
// unset, sizing from the local terminal when possible.
func (r *Runner) applyDefaults() {
	r.logger = r.opts.Logger
	if r.logger == nil {
		r.logger = pslog.LoggerFromEnv()
		r.opts.Logger = r.logger
	}
	if r.opts.SessionID == "" {
		r.opts.SessionID = config.DefaultSessionID
	}
	if r.opts.Cols < 1 || r.opts.Rows < 1 {
		if cols, rows := termSizeAny(r.stdout(), r.stdin()); cols > 0 && rows > 0 {
			r.opts.Cols, r.opts.Rows = cols, rows
		}
	}
	r.opts.Cols = fallback(r.opts.Cols, config.DefaultTerminalCols)
	r.opts.Rows = fallback(r.opts.Rows, config.DefaultTerminalRows)
	r.opts.BufferLines = fallback(r.opts.BufferLines, config.DefaultBufferLines)
}

// Run starts the shell and blocks until it exits or the context is
// canceled.
func (r *Runner) Run(ctx context.Context) error {
	r.applyDefaults()
	r.setSize(r.opts.Cols, r.opts.Rows)
	r.Borrow(func(e *emu.Emulator) { e.Resize(r.opts.Cols, r.opts.Rows) })
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := r.startShell()
	if err != nil {
		return err
	}
	r.sess = sess
	defer func() {
		_ = sess.Close()
		sess.Kill()
	}()

	r.captureVEOF()
	_ = sess.Resize(r.opts.Cols, r.opts.Rows)
	_ = sess.SetNonblock(true)
	defer func() { _ = sess.SetNonblock(false) }()

	stdin, stdout := r.stdin(), r.stdout()
	if !r.opts.DisableRaw {
		err := r.makeRaw(stdin)
		if err != nil {
			return err
		}
		defer r.restoreTerminal(stdin)
	}
	_ = setNonblock(stdin, true)
	defer func() { _ = setNonblock(stdin, false) }()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	sigCtx, stopNotify := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stopNotify()

	go func() {
		<-sigCtx.Done()
		sess.Kill()
		_ = sess.Close()
		if r.opts.Stdin != nil {
			// Closing the pipe lets a blocked read go. The real stdin
			// is left alone; its reads unblock via the nonblocking poll.
			_ = stdin.Close()
		}
	}()

	viewSrv, stopView, err := r.startView()
	if err != nil {
		return err
	}
	if stopView != nil {
		defer stopView()
	}

	var wg sync.WaitGroup
	failed := make(chan error, 1)
	report := func(err error) {
		if err != nil {
			select {
			case failed <- err:
			default:
			}
		}
	}
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() { r.pumpStdin(sigCtx, stdin, stdout, viewSrv, report) })
	start(func() { r.pumpPTY(sigCtx, stdin, stdout, viewSrv, report) })
	start(func() { r.watchResize(sigCtx, winch, stdin, stdout, viewSrv) })

	select {
	case <-sigCtx.Done():
	case <-sess.Done():
	case <-failed:
	}

	cancel()
	wg.Wait()
	<-sess.Done()

	r.emit(Event{Kind: EventExited, ExitCode: sess.ExitCode()})
	close(r.events)
	return nil
}

func (r *Runner) resolveShell() string {
	if r.opts.Shell != "" {
		return r.opts.Shell
	}
	if env := os.Getenv("SHELL"); env != "" {
		return env
	}
	if u, err := user.Current(); err == nil && u != nil && u.Uid != "" {
		if shell, err := loginShell(u.Uid); err == nil && shell != "" {
			return shell
		}
	}
	return "/bin/sh"
}

func (r *Runner) startShell() (*pty.Session, error) {
	path := r.resolveShell()
	cmd := exec.Command(path)
	cmd.Dir = r.opts.WorkingDir
	env := append(os.Environ(), r.opts.Env...)
	if r.opts.Term != "" {
		env = append(env, "TERM="+r.opts.Term)
	}
	cmd.Env = env
	sess, err := pty.Spawn(cmd)
	if err != nil {
		return nil, fmt.Errorf("start shell %s: %w", path, err)
	}
	return sess, nil
}

// startView brings up the embedded view server when Listen is set. The
// returned stop function shuts it down with a short grace period.
func (r *Runner) startView() (*view.Server, func(), error) {
	if r.opts.Listen == "" {
		return nil, nil, nil
	}
	srv, err := view.NewServer(view.ServerOptions{
		Listen:       r.opts.Listen,
		SessionID:    r.opts.SessionID,
		Password:     r.opts.ViewPassword,
		AllowControl: r.opts.AllowControl,
		BufferLines:  r.opts.BufferLines,
		Cols:         r.opts.Cols,
		Rows:         r.opts.Rows,
		Logger:       r.logger.With("component", "view"),
	})
	if err != nil {
		return nil, nil, err
	}
	srv.OnInput = func(data []byte) {
		if data = r.filterRemoteInput(data); len(data) == 0 {
			return
		}
		if _, err := r.writePTY(data); err != nil {
			r.logger.Debug("remote input write error", "err", err)
		}
	}
	srv.OnResize = func(cols, rows int) {
		if cols > 0 && rows > 0 {
			r.applyResize(cols, rows, srv)
		}
	}
	srv.OnControl = func(holderID string) {
		if holderID != "" {
			r.setHolder(holderID)
		}
	}
	if err := srv.Start(); err != nil {
		return nil, nil, fmt.Errorf("start view server: %w", err)
	}
	stop := func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
	}
	r.logger.Info("view server listening", "url", srv.URL(), "session", r.opts.SessionID)
	if r.opts.OnListen != nil {
		r.opts.OnListen(srv.URL())
	}
	if snap, err := r.snapshotWire(); err == nil {
		srv.Publish(nil, snap)
	}
	return srv, stop, nil
}

// pumpStdin forwards local keystrokes to the PTY. Any local chunk
// reclaims control for the host.
func (r *Runner) pumpStdin(ctx context.Context, stdin, stdout *os.File, viewSrv *view.Server, report func(error)) {
	buf := make([]byte, 4096)
	for {
		n, err := pollRead(ctx, stdin.Read, buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				r.logger.Debug("stdin read error", "err", err)
			}
			if viewSrv == nil {
				report(err)
			}
			return
		}
		if viewSrv != nil {
			r.takeControl(viewSrv, stdout)
		}
		if _, err := r.writePTY(buf[:n]); err != nil {
			r.logger.Debug("pty write error", "err", err)
			if viewSrv == nil {
				report(err)
			}
			return
		}
	}
}

// pumpPTY drains shell output into the emulator and on to the local
// terminal and any viewers.
func (r *Runner) pumpPTY(ctx context.Context, stdin, stdout *os.File, viewSrv *view.Server, report func(error)) {
	buf := make([]byte, 4096)
	var fail error
	for fail == nil {
		n, err := pollRead(ctx, func(b []byte) (int, error) {
			return r.sess.ReadContext(ctx, b)
		}, buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				r.logger.Debug("pty read error", "err", err)
			}
			fail = err
			continue
		}
		fail = r.consumeOutput(ctx, buf[:n], stdin, stdout, viewSrv)
	}
	report(fail)
}

// consumeOutput runs one chunk of shell output through the emulator,
// then repaints or passes the raw bytes through depending on whether
// the local terminal matches the session size.
func (r *Runner) consumeOutput(ctx context.Context, data []byte, stdin, stdout *os.File, viewSrv *view.Server) error {
	if r.opts.OnPTYRead != nil {
		r.opts.OnPTYRead(append([]byte(nil), data...))
	}
	r.emuMu.Lock()
	if err := r.emulator.Write(data); err != nil {
		r.logger.Debug("emulator write error", "err", err)
	}
	appended := r.emulator.TakeAppended()
	marks := r.emulator.TakeMarks()
	bell := r.emulator.TakeBell()
	rawSnap, err := r.emulator.Snapshot()
	r.emuMu.Unlock()
	if err != nil {
		return err
	}
	if r.opts.OnSnapshot != nil {
		r.opts.OnSnapshot(rawSnap)
	}
	r.dispatchEvents(appended, marks, bell, rawSnap.Title)

	snap := protocol.SnapshotToWire(rawSnap)
	if r.useRenderer(stdout) {
		cols, rows := termSizeAny(stdout, stdin)
		if cols <= 0 || rows <= 0 {
			cols, rows = r.size()
		}
		if err := render.SnapshotViewportDelta(stdout, r.lastRender, snap, cols, rows); err != nil {
			r.logger.Debug("render error", "err", err)
		}
		r.lastRender = snap
	} else {
		r.lastRender = nil
		if err := writeAll(ctx, stdout, data); err != nil {
			r.logger.Debug("stdout write error", "err", err)
		}
	}
	if viewSrv != nil {
		viewSrv.Publish(data, snap)
	}
	return nil
}

// watchResize follows SIGWINCH. A host window change reclaims control
// before resizing so a remote viewer cannot fight the host terminal.
func (r *Runner) watchResize(ctx context.Context, winch <-chan os.Signal, stdin, stdout *os.File, viewSrv *view.Server) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-winch:
		}
		cols, rows := termSizeAny(stdout, stdin)
		if cols <= 0 || rows <= 0 {
			continue
		}
		if viewSrv != nil {
			viewSrv.TakeControl()
			r.setHolder(view.HostControlID)
		}
		r.applyResize(cols, rows, viewSrv)
	}
}

func (r *Runner) makeRaw(file *os.File) error {
	if file == nil {
		return errors.New("no stdin to put into raw mode")
	}
	state, err := term.MakeRaw(int(file.Fd()))
	if err != nil {
		return fmt.Errorf("stdin is not a tty: %w", err)
	}
	r.rawMu.Lock()
	r.rawState = state
	r.rawMu.Unlock()
	return nil
}

func (r *Runner) restoreTerminal(file *os.File) {
	r.rawMu.Lock()
	state := r.rawState
	r.rawState = nil
	r.rawMu.Unlock()
	if state == nil {
		return
	}
	_ = term.Restore(int(file.Fd()), state)
}

// applyResize moves the PTY and emulator to the new size and tells
// viewers and event consumers.
func (r *Runner) applyResize(cols, rows int, viewSrv *view.Server) {
	r.setSize(cols, rows)
	_ = r.sess.Resize(cols, rows)
	r.emuMu.Lock()
	r.emulator.Resize(cols, rows)
	rawSnap, err := r.emulator.Snapshot()
	r.emuMu.Unlock()
	if err == nil && viewSrv != nil {
		viewSrv.Resize(cols, rows, protocol.SnapshotToWire(rawSnap))
	}
	r.emit(Event{Kind: EventResized, Cols: cols, Rows: rows})
}

// takeControl reclaims the controller lease for the host and restores
// the host terminal size if a remote had changed it.
func (r *Runner) takeControl(viewSrv *view.Server, stdout *os.File) {
	if viewSrv == nil {
		return
	}
	viewSrv.TakeControl()
	r.setHolder(view.HostControlID)

	cols, rows := termSizeAny(stdout, r.stdin())
	if cols <= 0 || rows <= 0 {
		return
	}
	if curCols, curRows := r.size(); cols == curCols && rows == curRows {
		return
	}
	r.applyResize(cols, rows, viewSrv)
}

func (r *Runner) dispatchEvents(appended string, marks []terminal.Mark, bell bool, title string) {
	if appended != "" {
		r.emitText(appended)
	}
	for _, m := range marks {
		r.emit(Event{Kind: EventPromptMark, Mark: m})
	}
	if bell {
		r.emit(Event{Kind: EventBell})
	}
	if title != r.lastTitle {
		r.lastTitle = title
		r.emit(Event{Kind: EventTitle, Title: title})
	}
}

func (r *Runner) emit(ev Event) {
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(ev)
	}
	select {
	case r.events <- ev:
	default:
	}
}

// emitText coalesces undelivered text so a lagging consumer sees one
// catch-up event instead of a gap.
func (r *Runner) emitText(appended string) {
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(Event{Kind: EventText, Text: appended})
	}
	r.eventMu.Lock()
	defer r.eventMu.Unlock()
	r.pendingText = append(r.pendingText, appended...)
	if len(r.pendingText) > maxPendingEventText {
		cut := len(r.pendingText) - maxPendingEventText/2
		for cut < len(r.pendingText) && !utf8.RuneStart(r.pendingText[cut]) {
			cut++
		}
		r.pendingText = append(r.pendingText[:0], r.pendingText[cut:]...)
	}
	select {
	case r.events <- Event{Kind: EventText, Text: string(r.pendingText)}:
		r.pendingText = r.pendingText[:0]
	default:
	}
}

func (r *Runner) snapshotWire() (*protocol.Snapshot, error) {
	var snap terminal.Snapshot
	var err error
	r.Borrow(func(e *emu.Emulator) { snap, err = e.Snapshot() })
	if err != nil {
		return nil, err
	}
	return protocol.SnapshotToWire(snap), nil
}

func (r *Runner) writePTY(data []byte) (int, error) {
	if r.sess == nil {
		return 0, errors.New("pty not started")
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.sess.Write(data)
}

// filterRemoteInput drops Ctrl-D from remote input while the child
// terminal is in canonical mode with the default EOF character, so a
// viewer cannot end the host shell by accident.
func (r *Runner) filterRemoteInput(data []byte) []byte {
	if r.sess == nil || len(data) == 0 {
		return data
	}
	icanon, veof, err := r.sess.CanonState()
	if err != nil || !icanon || veof != 0x04 {
		return data
	}
	kept := data[:0]
	for _, b := range data {
		if b != 0x04 {
			kept = append(kept, b)
		}
	}
	return kept
}

func (r *Runner) stdin() *os.File {
	f := r.opts.Stdin
	if f == nil {
		f = os.Stdin
	}
	return f
}

func (r *Runner) stdout() *os.File {
	f := r.opts.Stdout
	if f == nil {
		f = os.Stdout
	}
	return f
}

func (r *Runner) size() (int, int) {
	r.sizeMu.Lock()
	defer r.sizeMu.Unlock()
	return r.cols, r.rows
}

func (r *Runner) setSize(cols, rows int) {
	r.sizeMu.Lock()
	defer r.sizeMu.Unlock()
	r.cols, r.rows = cols, rows
}

func (r *Runner) holder() string {
	r.holderMu.Lock()
	h := r.holderID
	r.holderMu.Unlock()
	return h
}

// setHolder records who owns input control and retunes the tty EOF
// character to match.
func (r *Runner) setHolder(holderID string) {
	r.holderMu.Lock()
	r.holderID = holderID
	r.holderMu.Unlock()

	r.applyVEOF(holderID)
}

func (r *Runner) captureVEOF() {
	if r.sess == nil {
		return
	}
	if val, err := r.sess.VEOF(); err == nil {
		r.veofMu.Lock()
		r.veofOrig, r.veofSet = val, true
		r.veofMu.Unlock()
	}
}

// applyVEOF disables the line-discipline EOF character while a remote
// viewer controls the session, so a stray Ctrl-D cannot end the host
// shell. The original value returns with host control.
func (r *Runner) applyVEOF(holderID string) {
	if r.sess == nil {
		return
	}
	r.veofMu.Lock()
	orig, ok := r.veofOrig, r.veofSet
	r.veofMu.Unlock()
	if !ok {
		return
	}
	if holderID != "" && holderID != view.HostControlID {
		_ = r.sess.SetVEOF(0)
		return
	}
	_ = r.sess.SetVEOF(orig)
}

// useRenderer decides between raw passthrough and emulated repaint.
// When the local terminal matches the session size, PTY bytes pass
// straight through; otherwise frames render cropped to the local size.
func (r *Runner) useRenderer(stdout *os.File) bool {
	cols, rows := termSizeAny(stdout, r.stdin())
	if cols < 1 || rows < 1 {
		return false
	}
	curCols, curRows := r.size()
	return cols != curCols || rows != curRows
}

func termSize(file *os.File) (int, int) {
	if file == nil {
		return 0, 0
	}
	cols, rows, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0, 0
	}
	return cols, rows
}

// termSizeAny returns the first usable terminal size among files,
// falling back to the controlling terminal.
func termSizeAny(files ...*os.File) (int, int) {
	for _, f := range files {
		if cols, rows := termSize(f); cols > 0 && rows > 0 {
			return cols, rows
		}
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return 0, 0
	}
	defer func() { _ = tty.Close() }()
	return termSize(tty)
}

func setNonblock(file *os.File, on bool) error {
	if file == nil {
		return nil
	}
	return syscall.SetNonblock(int(file.Fd()), on)
}

func fallback(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// pause waits for d or the context, whichever ends first.
func pause(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		time.Sleep(d)
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// pollRead retries EAGAIN from a nonblocking descriptor until data
// arrives, a hard error surfaces, or the context ends.
func pollRead(ctx context.Context, read func([]byte) (int, error), buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := read(buf)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK):
			if err := pause(ctx, 10*time.Millisecond); err != nil {
				return 0, err
			}
		default:
			return 0, err
		}
	}
}

// writeAll retries short and EAGAIN writes until data is fully out.
func writeAll(ctx context.Context, w io.Writer, data []byte) error {
	for len(data) > 0 {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := w.Write(data)
		if n > 0 {
			data = data[n:]
			if err == nil {
				continue
			}
		}
		if err != nil && !errors.Is(err, syscall.EAGAIN) && !errors.Is(err, syscall.EWOULDBLOCK) {
			return err
		}
		if err := pause(ctx, 5*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}
