// Package parser implements an incremental ECMA-48 escape sequence
// decoder. It consumes raw terminal output and reports printable text
// and control sequences to a Performer. The parser keeps no screen
// state of its own, and sequences may be split across chunk
// boundaries at any byte.
package parser

import "unicode/utf8"

// Performer receives decoded actions from Advance. Slice arguments
// are reused between sequences and must not be retained after the
// call returns.
type Performer interface {
	// Print handles a decoded printable rune.
	Print(r rune)

	// Execute handles a C0 control byte.
	Execute(b byte)

	// CsiDispatch handles a completed CSI sequence. params holds -1
	// for positions left empty. private is the leading marker byte
	// ('?', '>', '<' or '=') or zero.
	CsiDispatch(params []int, intermediates []byte, private byte, final byte)

	// EscDispatch handles a completed escape sequence.
	EscDispatch(intermediates []byte, final byte)

	// OscDispatch handles a completed OSC string without its
	// terminator.
	OscDispatch(data []byte)

	// DcsHook begins a DCS sequence. The data bytes that follow
	// arrive through DcsPut until DcsUnhook.
	DcsHook(params []int, intermediates []byte, private byte, final byte)

	// DcsPut handles one byte of DCS passthrough data.
	DcsPut(b byte)

	// DcsUnhook ends the current DCS sequence, including aborted ones.
	DcsUnhook()
}

const (
	stateGround = iota
	stateEscape
	stateCSIEntry
	stateCSIParam
	stateCSIIntermediate
	stateCSIIgnore
	stateOSCString
	stateDCSEntry
	stateDCSPassthrough
)

const (
	maxParams        = 16
	maxIntermediates = 2
	maxParamValue    = 65535
	maxStringLen     = 4096
)

// Parser is an incremental ECMA-48 decoder. The zero value is ready
// to use.
type Parser struct {
	state int

	private       byte
	params        []int
	current       int
	hasParam      bool
	intermediates []byte

	strBuf  []byte
	strEsc  bool
	discard bool

	utf8Buf []byte
}

// Advance feeds a chunk of bytes through the parser, invoking p for
// every completed action. Partial sequences carry over to the next
// call.
func (ps *Parser) Advance(p Performer, data []byte) {
	for _, b := range data {
		ps.advance(p, b)
	}
}

func (ps *Parser) advance(p Performer, b byte) {
	// An ESC inside a control string is either the first half of the
	// ST terminator or the start of a fresh sequence that cancels the
	// string.
	if ps.strEsc {
		ps.strEsc = false
		if b == '\\' {
			ps.finishString(p)
			return
		}
		ps.abortString(p)
		ps.enterEscape()
		ps.advance(p, b)
		return
	}

	switch b {
	case 0x18, 0x1a: // CAN, SUB
		ps.flushUTF8(p)
		if ps.state == stateDCSPassthrough {
			p.DcsUnhook()
		}
		ps.enterGround()
		return
	case 0x1b: // ESC
		ps.flushUTF8(p)
		if ps.state == stateOSCString || ps.state == stateDCSPassthrough {
			ps.strEsc = true
			return
		}
		ps.enterEscape()
		return
	}

	switch ps.state {
	case stateGround:
		ps.ground(p, b)
	case stateEscape:
		ps.escape(p, b)
	case stateCSIEntry:
		ps.csiEntry(p, b)
	case stateCSIParam:
		ps.csiParam(p, b)
	case stateCSIIntermediate:
		ps.csiIntermediate(p, b)
	case stateCSIIgnore:
		ps.csiIgnore(p, b)
	case stateOSCString:
		ps.oscString(p, b)
	case stateDCSEntry:
		ps.dcsEntry(p, b)
	case stateDCSPassthrough:
		ps.dcsPassthrough(p, b)
	default:
		ps.enterGround()
	}
}

func (ps *Parser) ground(p Performer, b byte) {
	if b < 0x20 {
		ps.flushUTF8(p)
		p.Execute(b)
		return
	}
	if b == 0x7f {
		return
	}
	if len(ps.utf8Buf) == 0 && b < utf8.RuneSelf {
		p.Print(rune(b))
		return
	}
	ps.utf8Buf = append(ps.utf8Buf, b)
	ps.drainUTF8(p)
}

// drainUTF8 prints every complete rune buffered so far. Invalid
// bytes decode as U+FFFD one byte at a time, which resynchronizes the
// stream at the next valid lead byte.
func (ps *Parser) drainUTF8(p Performer) {
	buf := ps.utf8Buf
	for len(buf) > 0 && utf8.FullRune(buf) {
		r, size := utf8.DecodeRune(buf)
		buf = buf[size:]
		p.Print(r)
	}
	ps.utf8Buf = append(ps.utf8Buf[:0], buf...)
}

// flushUTF8 discards an incomplete rune interrupted by a control
// byte, printing a single replacement character in its place.
func (ps *Parser) flushUTF8(p Performer) {
	if len(ps.utf8Buf) > 0 {
		ps.utf8Buf = ps.utf8Buf[:0]
		p.Print(utf8.RuneError)
	}
}

func (ps *Parser) escape(p Performer, b byte) {
	switch {
	case b < 0x20:
		p.Execute(b)
	case b < 0x30:
		if !ps.collect(b) {
			ps.state = stateCSIIgnore
		}
	case len(ps.intermediates) == 0 && b == '[':
		ps.enterCSI()
	case len(ps.intermediates) == 0 && b == ']':
		ps.enterString(false)
	case len(ps.intermediates) == 0 && b == 'P':
		ps.enterDCS()
	case len(ps.intermediates) == 0 && (b == 'X' || b == '^' || b == '_'):
		// SOS, PM and APC strings are consumed without dispatch.
		ps.enterString(true)
	case b <= 0x7e:
		p.EscDispatch(ps.intermediates, b)
		ps.enterGround()
	default:
		ps.enterGround()
	}
}

func (ps *Parser) csiEntry(p Performer, b byte) {
	switch {
	case b < 0x20:
		p.Execute(b)
	case b < 0x30:
		if ps.collect(b) {
			ps.state = stateCSIIntermediate
		} else {
			ps.state = stateCSIIgnore
		}
	case b >= '0' && b <= '9':
		ps.addDigit(int(b - '0'))
		ps.state = stateCSIParam
	case b == ';':
		ps.nextParam()
		ps.state = stateCSIParam
	case b == ':':
		ps.state = stateCSIIgnore
	case b >= 0x3c && b <= 0x3f:
		ps.private = b
		ps.state = stateCSIParam
	case b <= 0x7e:
		ps.dispatchCSI(p, b)
	default:
		ps.enterGround()
	}
}

func (ps *Parser) csiParam(p Performer, b byte) {
	switch {
	case b < 0x20:
		p.Execute(b)
	case b < 0x30:
		if ps.collect(b) {
			ps.state = stateCSIIntermediate
		} else {
			ps.state = stateCSIIgnore
		}
	case b >= '0' && b <= '9':
		ps.addDigit(int(b - '0'))
	case b == ';' || b == ':':
		// Colon separators are folded into plain parameters, which
		// keeps colon-form SGR such as 38:5:196 readable downstream.
		if len(ps.params) >= maxParams-1 {
			ps.state = stateCSIIgnore
			return
		}
		ps.nextParam()
	case b >= 0x3c && b <= 0x3f:
		ps.state = stateCSIIgnore
	case b <= 0x7e:
		ps.dispatchCSI(p, b)
	default:
		ps.enterGround()
	}
}

func (ps *Parser) csiIntermediate(p Performer, b byte) {
	switch {
	case b < 0x20:
		p.Execute(b)
	case b < 0x30:
		if !ps.collect(b) {
			ps.state = stateCSIIgnore
		}
	case b < 0x40:
		ps.state = stateCSIIgnore
	case b <= 0x7e:
		ps.dispatchCSI(p, b)
	default:
		ps.enterGround()
	}
}

func (ps *Parser) csiIgnore(p Performer, b byte) {
	switch {
	case b < 0x20:
		p.Execute(b)
	case b >= 0x40 && b <= 0x7e:
		ps.enterGround()
	}
}

func (ps *Parser) oscString(p Performer, b byte) {
	if b == 0x07 && !ps.discard { // BEL terminates OSC, xterm style
		p.OscDispatch(ps.strBuf)
		ps.enterGround()
		return
	}
	if b < 0x20 {
		return
	}
	if !ps.discard && len(ps.strBuf) < maxStringLen {
		ps.strBuf = append(ps.strBuf, b)
	}
}

func (ps *Parser) dcsEntry(p Performer, b byte) {
	switch {
	case b < 0x20:
		// ignored
	case b < 0x30:
		if !ps.collect(b) {
			ps.enterString(true)
		}
	case b >= '0' && b <= '9':
		if len(ps.intermediates) > 0 {
			ps.enterString(true)
			return
		}
		ps.addDigit(int(b - '0'))
	case b == ';' || b == ':':
		if len(ps.intermediates) > 0 || len(ps.params) >= maxParams-1 {
			ps.enterString(true)
			return
		}
		ps.nextParam()
	case b >= 0x3c && b <= 0x3f:
		if ps.hasParam || len(ps.params) > 0 {
			ps.enterString(true)
			return
		}
		ps.private = b
	case b <= 0x7e:
		ps.nextParam()
		p.DcsHook(ps.params, ps.intermediates, ps.private, b)
		ps.state = stateDCSPassthrough
	default:
		ps.enterGround()
	}
}

func (ps *Parser) dcsPassthrough(p Performer, b byte) {
	if b >= 0x7f {
		return
	}
	p.DcsPut(b)
}

func (ps *Parser) dispatchCSI(p Performer, final byte) {
	ps.nextParam()
	p.CsiDispatch(ps.params, ps.intermediates, ps.private, final)
	ps.enterGround()
}

func (ps *Parser) finishString(p Performer) {
	switch ps.state {
	case stateDCSPassthrough:
		p.DcsUnhook()
	case stateOSCString:
		if !ps.discard {
			p.OscDispatch(ps.strBuf)
		}
	}
	ps.enterGround()
}

// abortString ends a control string without dispatching it. A hooked
// DCS consumer is still unhooked so it can discard partial state.
func (ps *Parser) abortString(p Performer) {
	if ps.state == stateDCSPassthrough {
		p.DcsUnhook()
	}
}

func (ps *Parser) collect(b byte) bool {
	if len(ps.intermediates) >= maxIntermediates {
		return false
	}
	ps.intermediates = append(ps.intermediates, b)
	return true
}

func (ps *Parser) addDigit(d int) {
	if !ps.hasParam {
		ps.current = 0
		ps.hasParam = true
	}
	if ps.current < maxParamValue {
		ps.current = ps.current*10 + d
		if ps.current > maxParamValue {
			ps.current = maxParamValue
		}
	}
}

func (ps *Parser) nextParam() {
	if ps.hasParam {
		ps.params = append(ps.params, ps.current)
	} else {
		ps.params = append(ps.params, -1)
	}
	ps.hasParam = false
	ps.current = 0
}

func (ps *Parser) resetSeq() {
	ps.private = 0
	ps.params = ps.params[:0]
	ps.current = 0
	ps.hasParam = false
	ps.intermediates = ps.intermediates[:0]
}

func (ps *Parser) enterGround() {
	ps.state = stateGround
	ps.strEsc = false
	ps.discard = false
}

func (ps *Parser) enterEscape() {
	ps.state = stateEscape
	ps.resetSeq()
}

func (ps *Parser) enterCSI() {
	ps.state = stateCSIEntry
	ps.resetSeq()
}

func (ps *Parser) enterDCS() {
	ps.state = stateDCSEntry
	ps.resetSeq()
}

func (ps *Parser) enterString(discard bool) {
	ps.state = stateOSCString
	ps.strBuf = ps.strBuf[:0]
	ps.strEsc = false
	ps.discard = discard
}
