package parser

import (
	"reflect"
	"strings"
	"testing"
)

func TestPrintPlainText(t *testing.T) {
	rec := parse("hi")
	if got := rec.printed(); got != "hi" {
		t.Fatalf("printed = %q", got)
	}
	if len(rec.actions) != 2 {
		t.Fatalf("actions = %d", len(rec.actions))
	}
}

func TestPrintUTF8AcrossChunks(t *testing.T) {
	rec := parse("h\xc3", "\xa9j")
	if got := rec.printed(); got != "héj" {
		t.Fatalf("printed = %q", got)
	}
}

func TestInvalidUTF8PrintsReplacement(t *testing.T) {
	rec := parse("\xffa")
	if got := rec.printed(); got != "�a" {
		t.Fatalf("printed = %q", got)
	}
	rec = parse("\x80")
	if got := rec.printed(); got != "�" {
		t.Fatalf("lone continuation printed = %q", got)
	}
}

func TestTruncatedUTF8FlushedByEscape(t *testing.T) {
	rec := parse("\xe2\x82\x1b[1m")
	if got := rec.printed(); got != "�" {
		t.Fatalf("printed = %q", got)
	}
	csi := rec.byKind("csi")
	if len(csi) != 1 || csi[0].final != 'm' {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestExecuteControls(t *testing.T) {
	rec := parse("a\x07b\n")
	if got := rec.printed(); got != "ab" {
		t.Fatalf("printed = %q", got)
	}
	exec := rec.byKind("execute")
	if len(exec) != 2 || exec[0].b != 0x07 || exec[1].b != 0x0a {
		t.Fatalf("execute = %+v", exec)
	}
}

func TestDelIgnored(t *testing.T) {
	rec := parse("a\x7fb")
	if got := rec.printed(); got != "ab" {
		t.Fatalf("printed = %q", got)
	}
	if len(rec.byKind("execute")) != 0 {
		t.Fatalf("DEL executed")
	}
}

func TestCSIBasic(t *testing.T) {
	rec := parse("\x1b[2;3H")
	csi := rec.byKind("csi")
	if len(csi) != 1 {
		t.Fatalf("csi count = %d", len(csi))
	}
	if csi[0].final != 'H' || csi[0].private != 0 || csi[0].inter != "" {
		t.Fatalf("csi = %+v", csi[0])
	}
	if !reflect.DeepEqual(csi[0].params, []int{2, 3}) {
		t.Fatalf("params = %v", csi[0].params)
	}
}

func TestCSIDefaultParams(t *testing.T) {
	rec := parse("\x1b[m")
	csi := rec.byKind("csi")
	if len(csi) != 1 || !reflect.DeepEqual(csi[0].params, []int{-1}) {
		t.Fatalf("csi = %+v", csi)
	}
	rec = parse("\x1b[;5H")
	csi = rec.byKind("csi")
	if len(csi) != 1 || !reflect.DeepEqual(csi[0].params, []int{-1, 5}) {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestCSIPrivateMarker(t *testing.T) {
	rec := parse("\x1b[?25l")
	csi := rec.byKind("csi")
	if len(csi) != 1 || csi[0].private != '?' || csi[0].final != 'l' {
		t.Fatalf("csi = %+v", csi)
	}
	if !reflect.DeepEqual(csi[0].params, []int{25}) {
		t.Fatalf("params = %v", csi[0].params)
	}
}

func TestCSIIntermediateByte(t *testing.T) {
	rec := parse("\x1b[1 q")
	csi := rec.byKind("csi")
	if len(csi) != 1 || csi[0].inter != " " || csi[0].final != 'q' {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestCSIColonParams(t *testing.T) {
	rec := parse("\x1b[38:5:196m")
	csi := rec.byKind("csi")
	if len(csi) != 1 || !reflect.DeepEqual(csi[0].params, []int{38, 5, 196}) {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestCSISplitAcrossChunks(t *testing.T) {
	rec := parse("\x1b[3", "8;5;19", "6m")
	csi := rec.byKind("csi")
	if len(csi) != 1 || !reflect.DeepEqual(csi[0].params, []int{38, 5, 196}) {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestCSIExecutesEmbeddedC0(t *testing.T) {
	rec := parse("\x1b[2\bC")
	if len(rec.actions) != 2 {
		t.Fatalf("actions = %+v", rec.actions)
	}
	if rec.actions[0].kind != "execute" || rec.actions[0].b != 0x08 {
		t.Fatalf("first = %+v", rec.actions[0])
	}
	csi := rec.actions[1]
	if csi.kind != "csi" || csi.final != 'C' || !reflect.DeepEqual(csi.params, []int{2}) {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestCSICancelledByCan(t *testing.T) {
	rec := parse("\x1b[2;3\x18Z")
	if len(rec.byKind("csi")) != 0 {
		t.Fatalf("cancelled sequence dispatched")
	}
	if got := rec.printed(); got != "Z" {
		t.Fatalf("printed = %q", got)
	}
}

func TestCSIEscRestartsSequence(t *testing.T) {
	rec := parse("\x1b[12\x1b[3mA")
	csi := rec.byKind("csi")
	if len(csi) != 1 || !reflect.DeepEqual(csi[0].params, []int{3}) {
		t.Fatalf("csi = %+v", csi)
	}
	if got := rec.printed(); got != "A" {
		t.Fatalf("printed = %q", got)
	}
}

func TestCSITooManyParamsIgnored(t *testing.T) {
	rec := parse("\x1b[" + strings.Repeat("1;", 20) + "1mA")
	if len(rec.byKind("csi")) != 0 {
		t.Fatalf("oversized sequence dispatched")
	}
	if got := rec.printed(); got != "A" {
		t.Fatalf("printed = %q", got)
	}
}

func TestEscDispatch(t *testing.T) {
	rec := parse("\x1b7\x1bc")
	esc := rec.byKind("esc")
	if len(esc) != 2 || esc[0].final != '7' || esc[1].final != 'c' {
		t.Fatalf("esc = %+v", esc)
	}
}

func TestEscWithIntermediate(t *testing.T) {
	rec := parse("\x1b(0\x1b#8")
	esc := rec.byKind("esc")
	if len(esc) != 2 {
		t.Fatalf("esc = %+v", esc)
	}
	if esc[0].inter != "(" || esc[0].final != '0' {
		t.Fatalf("esc0 = %+v", esc[0])
	}
	if esc[1].inter != "#" || esc[1].final != '8' {
		t.Fatalf("esc1 = %+v", esc[1])
	}
}

func TestOscBelTerminated(t *testing.T) {
	rec := parse("\x1b]0;hello\x07")
	osc := rec.byKind("osc")
	if len(osc) != 1 || osc[0].data != "0;hello" {
		t.Fatalf("osc = %+v", osc)
	}
}

func TestOscStTerminated(t *testing.T) {
	rec := parse("\x1b]133;A\x1b\\")
	osc := rec.byKind("osc")
	if len(osc) != 1 || osc[0].data != "133;A" {
		t.Fatalf("osc = %+v", osc)
	}
}

func TestOscCancelledByEsc(t *testing.T) {
	rec := parse("\x1b]0;part\x1b[2J")
	if len(rec.byKind("osc")) != 0 {
		t.Fatalf("cancelled osc dispatched")
	}
	csi := rec.byKind("csi")
	if len(csi) != 1 || csi[0].final != 'J' {
		t.Fatalf("csi = %+v", csi)
	}
}

func TestOscUTF8Payload(t *testing.T) {
	rec := parse("\x1b]2;héllo\x07")
	osc := rec.byKind("osc")
	if len(osc) != 1 || osc[0].data != "2;héllo" {
		t.Fatalf("osc = %+v", osc)
	}
}

func TestDcsRoundTrip(t *testing.T) {
	rec := parse("\x1bP1;2q#0;\x1b\\")
	hook := rec.byKind("hook")
	if len(hook) != 1 || hook[0].final != 'q' {
		t.Fatalf("hook = %+v", hook)
	}
	if !reflect.DeepEqual(hook[0].params, []int{1, 2}) {
		t.Fatalf("params = %v", hook[0].params)
	}
	puts := rec.byKind("put")
	if len(puts) != 3 || puts[0].b != '#' || puts[1].b != '0' || puts[2].b != ';' {
		t.Fatalf("puts = %+v", puts)
	}
	if len(rec.byKind("unhook")) != 1 {
		t.Fatalf("unhook missing")
	}
}

func TestDcsCancelledStillUnhooks(t *testing.T) {
	rec := parse("\x1bPqAB\x18")
	if len(rec.byKind("hook")) != 1 {
		t.Fatalf("hook missing")
	}
	if len(rec.byKind("unhook")) != 1 {
		t.Fatalf("unhook missing after cancel")
	}
}

func TestSosPmApcConsumedSilently(t *testing.T) {
	rec := parse("\x1bXnoise\x1b\\ok")
	if got := rec.printed(); got != "ok" {
		t.Fatalf("printed = %q", got)
	}
	rec = parse("\x1b_Gdata\x1b\\x")
	if got := rec.printed(); got != "x" {
		t.Fatalf("printed = %q", got)
	}
	if len(rec.byKind("osc")) != 0 {
		t.Fatalf("apc dispatched as osc")
	}
}

func parse(chunks ...string) *recorder {
	var ps Parser
	rec := &recorder{}
	for _, c := range chunks {
		ps.Advance(rec, []byte(c))
	}
	return rec
}

type action struct {
	kind    string
	r       rune
	b       byte
	params  []int
	inter   string
	private byte
	final   byte
	data    string
}

type recorder struct {
	actions []action
}

func (rec *recorder) Print(r rune) {
	rec.actions = append(rec.actions, action{kind: "print", r: r})
}

func (rec *recorder) Execute(b byte) {
	rec.actions = append(rec.actions, action{kind: "execute", b: b})
}

func (rec *recorder) CsiDispatch(params []int, inter []byte, private byte, final byte) {
	rec.actions = append(rec.actions, action{
		kind:    "csi",
		params:  append([]int(nil), params...),
		inter:   string(inter),
		private: private,
		final:   final,
	})
}

func (rec *recorder) EscDispatch(inter []byte, final byte) {
	rec.actions = append(rec.actions, action{kind: "esc", inter: string(inter), final: final})
}

func (rec *recorder) OscDispatch(data []byte) {
	rec.actions = append(rec.actions, action{kind: "osc", data: string(data)})
}

func (rec *recorder) DcsHook(params []int, inter []byte, private byte, final byte) {
	rec.actions = append(rec.actions, action{
		kind:    "hook",
		params:  append([]int(nil), params...),
		inter:   string(inter),
		private: private,
		final:   final,
	})
}

func (rec *recorder) DcsPut(b byte) {
	rec.actions = append(rec.actions, action{kind: "put", b: b})
}

func (rec *recorder) DcsUnhook() {
	rec.actions = append(rec.actions, action{kind: "unhook"})
}

func (rec *recorder) printed() string {
	var out []rune
	for _, a := range rec.actions {
		if a.kind == "print" {
			out = append(out, a.r)
		}
	}
	return string(out)
}

func (rec *recorder) byKind(kind string) []action {
	var out []action
	for _, a := range rec.actions {
		if a.kind == kind {
			out = append(out, a)
		}
	}
	return out
}
