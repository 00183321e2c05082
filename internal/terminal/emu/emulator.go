package emu

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"pkt.systems/hjortron/internal/terminal"
	"pkt.systems/hjortron/internal/terminal/parser"
)

// Screen mode bits reported through Snapshot.Mode.
const (
	modeAutoWrap uint32 = 1 << iota
	modeOrigin
	modeInsert
	modeAltActive
)

// Emulator interprets terminal output and maintains primary and
// alternate screens plus a bounded scrollback. It implements
// parser.Performer; bytes fed through Write run through the escape
// sequence parser and mutate the grid.
type Emulator struct {
	cols, rows int

	main   screen
	alt    screen
	active *screen

	scrollback    []line
	maxScrollback int

	attr cellAttr
	p    parser.Parser

	wrapMode    bool
	wrapPending bool
	originMode  bool
	insertMode  bool
	newLineMode bool

	cursorVisible bool
	title         string
	tabStops      []bool

	g0Drawing bool
	g1Drawing bool
	shiftOut  bool

	respond func([]byte)

	sel *terminal.Selection

	appended []byte
	marks    []terminal.Mark
	bell     bool
}

var (
	_ terminal.Emulator = (*Emulator)(nil)
	_ parser.Performer  = (*Emulator)(nil)
)

// New constructs an emulator with the given size and the default
// scrollback capacity.
func New(cols, rows int) *Emulator {
	if cols < 1 {
		cols = 80
	}
	if rows < 1 {
		rows = 24
	}
	e := &Emulator{cols: cols, rows: rows}
	e.main = newScreen(cols, rows)
	e.alt = newScreen(cols, rows)
	e.active = &e.main
	e.maxScrollback = DefaultMaxScrollback
	e.wrapMode = true
	e.cursorVisible = true
	e.tabStops = defaultTabs(cols)
	e.resetAttributes()
	return e
}

// SetMaxScrollback bounds the scrollback row count. Zero disables
// scrollback entirely; negative restores the default.
func (e *Emulator) SetMaxScrollback(n int) {
	if n < 0 {
		n = DefaultMaxScrollback
	}
	e.maxScrollback = n
	e.trimScrollback()
}

// SetResponseWriter installs the sink for query replies such as DA and
// DSR. Replies are dropped while no writer is set.
func (e *Emulator) SetResponseWriter(w func([]byte)) {
	e.respond = w
}

func (e *Emulator) reply(s string) {
	if e.respond != nil {
		e.respond([]byte(s))
	}
}

// Write feeds PTY output through the escape parser. It never returns
// an error; the signature matches terminal.Emulator.
func (e *Emulator) Write(p []byte) error {
	e.p.Advance(e, p)
	return nil
}

// Resize changes the emulator size. Rows are truncated or padded;
// prior soft wrapping is not recomputed.
func (e *Emulator) Resize(cols, rows int) {
	if cols < 1 || rows < 1 {
		return
	}
	if cols == e.cols && rows == e.rows {
		return
	}
	e.cols, e.rows = cols, rows
	e.main = e.main.resize(cols, rows)
	e.alt = e.alt.resize(cols, rows)
	for i := range e.scrollback {
		e.scrollback[i].cells = resizeHistoryRow(e.scrollback[i].cells, cols)
	}
	e.tabStops = defaultTabs(cols)
	e.wrapPending = false
	e.ensureCursorInBounds()
}

// Snapshot captures the visible screen state.
func (e *Emulator) Snapshot() (terminal.Snapshot, error) {
	scr := e.active
	return terminal.Snapshot{
		Cells:         append([]terminal.Cell(nil), scr.cells...),
		Wrapped:       append([]bool(nil), scr.wrapped...),
		Cols:          e.cols,
		Rows:          e.rows,
		Cursor:        scr.cursor,
		CursorVisible: e.cursorVisible,
		Title:         e.title,
		Mode:          e.modeFlags(),
	}, nil
}

func (e *Emulator) modeFlags() uint32 {
	flags := uint32(0)
	set := func(on bool, bit uint32) {
		if on {
			flags |= bit
		}
	}
	set(e.wrapMode, modeAutoWrap)
	set(e.originMode, modeOrigin)
	set(e.insertMode, modeInsert)
	set(e.active == &e.alt, modeAltActive)
	return flags
}

// Print writes one decoded rune at the cursor.
func (e *Emulator) Print(r rune) {
	e.printRune(r)
}

// Execute handles a C0 control byte.
func (e *Emulator) Execute(b byte) {
	switch b {
	case 0x07: // BEL
		e.bell = true
	case 0x08: // BS
		if e.active.cursor.X > 0 {
			e.active.cursor.X--
		}
		e.wrapPending = false
	case 0x09: // HT
		e.tab()
	case 0x0a, 0x0b, 0x0c: // LF, VT, FF
		e.lineFeed()
	case 0x0d: // CR
		e.active.cursor.X = 0
		e.wrapPending = false
	case 0x0e: // SO selects G1
		e.shiftOut = true
	case 0x0f: // SI selects G0
		e.shiftOut = false
	}
}

// CsiDispatch applies a completed CSI sequence.
func (e *Emulator) CsiDispatch(params []int, intermediates []byte, private byte, final byte) {
	if len(intermediates) > 0 {
		// DECSCUSR and other intermediate forms have no grid effect.
		return
	}
	if private != 0 {
		e.privateCSI(params, private, final)
		return
	}
	e.csi(params, final)
}

func (e *Emulator) privateCSI(params []int, private, final byte) {
	if private != '?' {
		// '>' and '=' carry vendor identification queries this
		// terminal does not answer.
		return
	}
	switch final {
	case 'h':
		e.applyPrivateModes(params, true)
	case 'l':
		e.applyPrivateModes(params, false)
	case 'J':
		e.eraseDisplay(param(params, 0, 0))
	case 'K':
		e.eraseLine(param(params, 0, 0))
	case 'n':
		if param(params, 0, 0) == 6 { // DECXCPR
			e.reply(e.cursorReport(true))
		}
	}
}

// cursorReport renders a cursor position report. The row is relative
// to the scroll region while origin mode is on.
func (e *Emulator) cursorReport(private bool) string {
	row := e.active.cursor.Y
	if e.originMode {
		row -= e.active.scrollTop
	}
	var b strings.Builder
	b.WriteString("\x1b[")
	if private {
		b.WriteByte('?')
	}
	b.WriteString(strconv.Itoa(row + 1))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(e.active.cursor.X + 1))
	b.WriteByte('R')
	return b.String()
}

func (e *Emulator) csi(params []int, final byte) {
	switch final {
	case 'A': // CUU
		e.moveCursorY(-param(params, 0, 1))
	case 'B', 'e': // CUD, VPR
		e.moveCursorY(param(params, 0, 1))
	case 'C', 'a': // CUF, HPR
		e.moveCursorX(param(params, 0, 1))
	case 'D': // CUB
		e.moveCursorX(-param(params, 0, 1))
	case 'E': // CNL
		e.moveCursorY(param(params, 0, 1))
		e.active.cursor.X = 0
	case 'F': // CPL
		e.moveCursorY(-param(params, 0, 1))
		e.active.cursor.X = 0
	case 'G', '`': // CHA, HPA
		e.setCursorColumn(param(params, 0, 1))
	case 'H', 'f': // CUP, HVP
		e.cursorPosition(param(params, 0, 1), param(params, 1, 1))
	case 'I': // CHT
		for i := param(params, 0, 1); i > 0; i-- {
			e.tab()
		}
	case 'J': // ED
		e.eraseDisplay(param(params, 0, 0))
	case 'K': // EL
		e.eraseLine(param(params, 0, 0))
	case 'L': // IL
		e.active.insertLines(e.active.cursor.Y, param(params, 0, 1), e.blankCell())
	case 'M': // DL
		e.active.deleteLines(e.active.cursor.Y, param(params, 0, 1), e.blankCell())
	case '@': // ICH
		e.active.insertChars(e.active.cursor.Y, e.active.cursor.X, param(params, 0, 1), e.blankCell())
	case 'P': // DCH
		e.active.deleteChars(e.active.cursor.Y, e.active.cursor.X, param(params, 0, 1), e.blankCell())
	case 'X': // ECH
		n := param(params, 0, 1)
		e.active.clearLine(e.active.cursor.Y, e.active.cursor.X, e.active.cursor.X+n-1, e.blankCell())
	case 'S': // SU
		e.scrollUp(param(params, 0, 1))
	case 'T': // SD
		e.active.scrollDown(param(params, 0, 1), e.blankCell())
	case 'Z': // CBT
		for i := param(params, 0, 1); i > 0; i-- {
			e.tabBack()
		}
	case 'c': // DA
		if param(params, 0, 0) == 0 {
			e.reply("\x1b[?6c")
		}
	case 'd': // VPA
		e.cursorPosition(param(params, 0, 1), e.active.cursor.X+1)
	case 'n': // DSR
		switch param(params, 0, 0) {
		case 5:
			e.reply("\x1b[0n")
		case 6:
			e.reply(e.cursorReport(false))
		}
	case 'm':
		e.applySGR(params)
	case 'r':
		e.setScrollRegion(params)
	case 's':
		e.saveCursor()
	case 'u':
		e.restoreCursor()
	case 'g':
		e.clearTabStops(param(params, 0, 0))
	case 'h':
		e.applyAnsiModes(params, true)
	case 'l':
		e.applyAnsiModes(params, false)
	}
}

// EscDispatch applies a completed escape sequence.
func (e *Emulator) EscDispatch(intermediates []byte, final byte) {
	if len(intermediates) == 0 {
		e.plainEscape(final)
		return
	}
	switch intermediates[0] {
	case '(': // G0 designation
		e.g0Drawing = final == '0'
	case ')': // G1 designation
		e.g1Drawing = final == '0'
	case '#':
		if final == '8' { // DECALN
			e.alignmentFill()
		}
	}
}

func (e *Emulator) plainEscape(final byte) {
	switch final {
	case '7': // DECSC
		e.saveCursor()
	case '8': // DECRC
		e.restoreCursor()
	case 'D': // IND
		e.index()
	case 'E': // NEL
		e.nextLine()
	case 'H': // HTS
		e.setTabStop()
	case 'M': // RI
		e.reverseIndex()
	case 'c': // RIS
		e.reset()
	case '=', '>': // keypad modes have no grid effect
	}
}

// OscDispatch applies a completed OSC string.
func (e *Emulator) OscDispatch(data []byte) {
	code, payload := parseOSC(data)
	switch code {
	case 0, 2:
		e.title = payload
	case 133:
		e.promptMark(payload)
	}
}

// DcsHook begins a device control string, which has no grid effect.
func (e *Emulator) DcsHook(params []int, intermediates []byte, private byte, final byte) {}

// DcsPut consumes one device control string byte.
func (e *Emulator) DcsPut(b byte) {}

// DcsUnhook ends a device control string.
func (e *Emulator) DcsUnhook() {}

func (e *Emulator) printRune(r rune) {
	r = e.translateRune(r)
	width := runewidth.RuneWidth(r)
	switch {
	case width <= 0:
		return
	case width > e.cols:
		width = 1
	}

	if e.wrapPending {
		e.wrapPending = false
		e.active.setWrapped(e.active.cursor.Y, true)
		e.wrapLine()
	}

	cur := &e.active.cursor
	if width == 2 && cur.X == e.cols-1 {
		if !e.wrapMode {
			return
		}
		// No room for a wide rune in the last column: blank it and wrap.
		e.active.repairWide(cur.X, cur.Y)
		e.active.cells[e.active.index(cur.X, cur.Y)] = e.blankCell()
		e.active.setWrapped(cur.Y, true)
		e.wrapLine()
	}

	if e.insertMode {
		e.active.insertChars(cur.Y, cur.X, width, e.blankCell())
	}

	e.setCell(cur.X, cur.Y, r, width)
	e.recordPrinted(r)

	cur.X += width
	if cur.X < e.cols {
		return
	}
	cur.X = e.cols - 1
	if e.wrapMode {
		e.wrapPending = true
	}
}

func (e *Emulator) wrapLine() {
	e.index()
	e.active.cursor.X = 0
}

func (e *Emulator) setCell(x, y int, r rune, width int) {
	if !e.active.inBounds(x, y) {
		return
	}
	e.active.repairWide(x, y)
	cell := terminal.Cell{Rune: r, Mode: e.attr.mode, FG: e.attr.fg, BG: e.attr.bg}
	if width == 2 {
		cell.Mode |= terminal.ModeWide
	}
	e.active.cells[e.active.index(x, y)] = cell
	if width != 2 || x+1 >= e.cols {
		return
	}
	e.active.repairWide(x+1, y)
	cont := cell
	cont.Rune = ' '
	cont.Mode = e.attr.mode | terminal.ModeWideCont
	e.active.cells[e.active.index(x+1, y)] = cont
}

func (e *Emulator) setTabStop() {
	if x := e.active.cursor.X; x >= 0 && x < len(e.tabStops) {
		e.tabStops[x] = true
	}
}

func (e *Emulator) clearTabStops(mode int) {
	x := e.active.cursor.X
	switch mode {
	case 0:
		if x >= 0 && x < len(e.tabStops) {
			e.tabStops[x] = false
		}
	case 3:
		clear(e.tabStops)
	}
}

// nextTabStop finds the tab stop in the given direction, falling back
// to the corresponding screen edge.
func (e *Emulator) nextTabStop(from, dir int) int {
	for i := from + dir; i >= 0 && i < len(e.tabStops); i += dir {
		if e.tabStops[i] {
			return i
		}
	}
	if dir > 0 {
		return e.cols - 1
	}
	return 0
}

func (e *Emulator) tab()     { e.jumpTab(1) }
func (e *Emulator) tabBack() { e.jumpTab(-1) }

func (e *Emulator) jumpTab(dir int) {
	e.active.cursor.X = e.nextTabStop(e.active.cursor.X, dir)
	e.wrapPending = false
}

func (e *Emulator) cursorPosition(row, col int) {
	y, maxY := max(row, 1)-1, e.rows-1
	if e.originMode {
		y += e.active.scrollTop
		maxY = e.active.scrollBottom
	}
	e.active.cursor.Y = clamp(min(y, maxY), 0, e.rows-1)
	e.active.cursor.X = clamp(max(col, 1)-1, 0, e.cols-1)
	e.wrapPending = false
}

func (e *Emulator) setCursorColumn(col int) {
	e.active.cursor.X = clamp(col-1, 0, e.cols-1)
	e.wrapPending = false
}

// moveCursorY moves the cursor vertically, stopping at the margin the
// motion runs into. Origin mode substitutes the scroll region margins.
func (e *Emulator) moveCursorY(n int) {
	lo, hi := 0, e.rows-1
	if e.originMode {
		lo, hi = e.active.scrollTop, e.active.scrollBottom
	}
	y := e.active.cursor.Y + n
	if n < 0 {
		y = max(y, lo)
	} else {
		y = min(y, hi)
	}
	e.active.cursor.Y = y
	e.wrapPending = false
}

func (e *Emulator) moveCursorX(n int) {
	e.active.cursor.X = clamp(e.active.cursor.X+n, 0, e.cols-1)
	e.wrapPending = false
}

func (e *Emulator) lineFeed() {
	e.index()
	if e.newLineMode {
		e.active.cursor.X = 0
	}
	e.recordNewline()
}

func (e *Emulator) nextLine() {
	e.index()
	e.active.cursor.X = 0
}

func (e *Emulator) index() {
	e.wrapPending = false
	if e.active.cursor.Y == e.active.scrollBottom {
		e.scrollUp(1)
		return
	}
	if e.active.cursor.Y < e.rows-1 {
		e.active.cursor.Y++
	}
}

func (e *Emulator) reverseIndex() {
	e.wrapPending = false
	if e.active.cursor.Y == e.active.scrollTop {
		e.active.scrollDown(1, e.blankCell())
		return
	}
	if e.active.cursor.Y > 0 {
		e.active.cursor.Y--
	}
}

// scrollUp scrolls the region up. Rows leaving the top of a region
// anchored at the first screen row land in scrollback, on the primary
// screen only.
func (e *Emulator) scrollUp(n int) {
	if n < 1 {
		n = 1
	}
	e.captureScrollback(n)
	e.active.scrollUp(n, e.blankCell())
}

func (e *Emulator) eraseDisplay(mode int) {
	blank := e.blankCell()
	switch mode {
	case 0:
		e.eraseLine(0)
		for y := e.active.cursor.Y + 1; y < e.rows; y++ {
			e.active.clearLine(y, 0, e.cols-1, blank)
		}
	case 1:
		for y := e.active.cursor.Y - 1; y >= 0; y-- {
			e.active.clearLine(y, 0, e.cols-1, blank)
		}
		e.eraseLine(1)
	case 2:
		e.active.clearAll(blank)
	case 3:
		// xterm extends ED to clear the saved lines as well.
		e.clearScrollback()
	}
}

func (e *Emulator) eraseLine(mode int) {
	y, x := e.active.cursor.Y, e.active.cursor.X
	switch mode {
	case 0:
		e.active.clearLine(y, x, e.cols-1, e.blankCell())
	case 1:
		e.active.clearLine(y, 0, x, e.blankCell())
	case 2:
		e.active.clearLine(y, 0, e.cols-1, e.blankCell())
	}
}

// setScrollRegion applies DECSTBM. Degenerate regions reset to the
// full screen; the cursor homes either way.
func (e *Emulator) setScrollRegion(params []int) {
	top := clamp(param(params, 0, 1)-1, 0, e.rows-1)
	bottom := clamp(param(params, 1, e.rows)-1, 0, e.rows-1)
	if top >= bottom {
		top, bottom = 0, e.rows-1
	}
	e.active.scrollTop, e.active.scrollBottom = top, bottom
	e.cursorPosition(1, 1)
}

func (e *Emulator) applyPrivateModes(params []int, set bool) {
	for _, mode := range params {
		switch mode {
		case 6: // DECOM
			e.originMode = set
			e.cursorPosition(1, 1)
		case 7: // DECAWM
			e.wrapMode = set
			if !set {
				e.wrapPending = false
			}
		case 25: // DECTCEM
			e.cursorVisible = set
		case 47, 1047:
			e.switchScreen(set, false)
		case 1049:
			e.switchScreen(set, true)
		}
	}
}

func (e *Emulator) applyAnsiModes(params []int, set bool) {
	for _, mode := range params {
		switch mode {
		case 4: // IRM
			e.insertMode = set
		case 20: // LNM
			e.newLineMode = set
		}
	}
}

// switchScreen flips between the primary and alternate screens. The
// alternate starts blank on every entry and never reaches scrollback;
// the primary comes back untouched.
func (e *Emulator) switchScreen(alt, save bool) {
	if alt == (e.active == &e.alt) {
		return
	}
	if alt {
		if save {
			e.saveCursor()
		}
		e.active = &e.alt
		e.active.clearAll(e.blankCell())
		e.active.cursor = terminal.Cursor{}
		e.wrapPending = false
		return
	}
	e.active = &e.main
	e.wrapPending = false
	if save {
		e.restoreCursor()
	}
}

func (e *Emulator) saveCursor() {
	e.active.saved = cursorState{
		cursor:      e.active.cursor,
		attr:        e.attr,
		origin:      e.originMode,
		pendingWrap: e.wrapPending,
		g0Drawing:   e.g0Drawing,
		g1Drawing:   e.g1Drawing,
		shiftOut:    e.shiftOut,
	}
}

func (e *Emulator) restoreCursor() {
	st := e.active.saved
	e.active.cursor = st.cursor
	e.attr = st.attr
	e.originMode = st.origin
	e.wrapPending = st.pendingWrap
	e.g0Drawing = st.g0Drawing
	e.g1Drawing = st.g1Drawing
	e.shiftOut = st.shiftOut
	e.ensureCursorInBounds()
}

func (e *Emulator) alignmentFill() {
	fill := terminal.Cell{Rune: 'E'}
	for i := range e.active.cells {
		e.active.cells[i] = fill
	}
	for i := range e.active.wrapped {
		e.active.wrapped[i] = false
	}
	e.active.scrollTop, e.active.scrollBottom = 0, e.rows-1
	e.active.cursor = terminal.Cursor{}
	e.wrapPending = false
}

func (e *Emulator) reset() {
	e.resetAttributes()
	e.title = ""
	e.sel = nil
	e.wrapMode, e.wrapPending = true, false
	e.originMode, e.insertMode, e.newLineMode = false, false, false
	e.cursorVisible = true
	e.g0Drawing, e.g1Drawing, e.shiftOut = false, false, false
	e.main.reset(e.blankCell())
	e.alt.reset(e.blankCell())
	e.active = &e.main
	e.tabStops = defaultTabs(e.cols)
}

func (e *Emulator) ensureCursorInBounds() {
	cur := &e.active.cursor
	cur.X = clamp(cur.X, 0, e.cols-1)
	cur.Y = clamp(cur.Y, 0, e.rows-1)
}

// defaultTabs marks a stop every eight columns.
func defaultTabs(cols int) []bool {
	stops := make([]bool, cols)
	for i := range stops {
		stops[i] = i%8 == 0
	}
	return stops
}

// param returns the idx'th parameter. Absent, zero and negative values
// all fall back to def.
func param(params []int, idx, def int) int {
	if idx < len(params) && params[idx] > 0 {
		return params[idx]
	}
	return def
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func parseOSC(buf []byte) (int, string) {
	num, rest, _ := strings.Cut(string(buf), ";")
	code, err := strconv.Atoi(num)
	if err != nil {
		return -1, ""
	}
	return code, rest
}
