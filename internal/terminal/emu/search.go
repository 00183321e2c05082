package emu

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"pkt.systems/hjortron/internal/terminal"
)

// SearchOptions controls how Search interprets the query.
type SearchOptions struct {
	Regex         bool
	CaseSensitive bool
}

// Search scans scrollback and the visible grid for query and returns
// the matches in buffer order, oldest line first. Literal queries are
// quoted; regex queries use Go regexp syntax. Matches do not cross
// row boundaries.
func (e *Emulator) Search(query string, opts SearchOptions) ([]terminal.Match, error) {
	if query == "" {
		return nil, nil
	}
	pat := query
	if !opts.Regex {
		pat = regexp.QuoteMeta(pat)
	}
	if !opts.CaseSensitive {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, err
	}

	var matches []terminal.Match
	total := e.TotalLines()
	for l := 0; l < total; l++ {
		cells, _ := e.lineAt(l)
		text, xs := lineText(cells)
		if text == "" {
			continue
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if loc[1] <= loc[0] {
				continue
			}
			start := utf8.RuneCountInString(text[:loc[0]])
			n := utf8.RuneCountInString(text[loc[0]:loc[1]])
			lastX := xs[start+n-1]
			matches = append(matches, terminal.Match{
				Line:   l,
				StartX: xs[start],
				EndX:   lastX + cells[lastX].Width(),
			})
		}
	}
	return matches, nil
}

// lineText flattens a row into its text, skipping wide continuations
// and trimming trailing blanks. xs maps each rune of the returned
// string to its cell column.
func lineText(cells []terminal.Cell) (string, []int) {
	var b strings.Builder
	xs := make([]int, 0, len(cells))
	for x, c := range cells {
		if c.Mode&terminal.ModeWideCont != 0 {
			continue
		}
		b.WriteRune(c.Rune)
		xs = append(xs, x)
	}
	text := strings.TrimRight(b.String(), " ")
	return text, xs[:utf8.RuneCountInString(text)]
}

// NextMatch returns the first match strictly after from in buffer
// order, wrapping around to the first match when none follows.
func NextMatch(matches []terminal.Match, from terminal.Coord) (terminal.Match, bool) {
	if len(matches) == 0 {
		return terminal.Match{}, false
	}
	for _, m := range matches {
		if m.Line > from.Line || (m.Line == from.Line && m.StartX > from.X) {
			return m, true
		}
	}
	return matches[0], true
}

// PrevMatch returns the last match strictly before from in buffer
// order, wrapping around to the final match when none precedes.
func PrevMatch(matches []terminal.Match, from terminal.Coord) (terminal.Match, bool) {
	if len(matches) == 0 {
		return terminal.Match{}, false
	}
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if m.Line < from.Line || (m.Line == from.Line && m.StartX < from.X) {
			return m, true
		}
	}
	return matches[len(matches)-1], true
}
