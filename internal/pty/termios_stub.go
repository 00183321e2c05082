//go:build !linux

package pty

import "errors"

var errTermios = errors.New("termios control unsupported on this platform")

// VEOF returns the EOF control character of the child's terminal.
func (s *Session) VEOF() (byte, error) {
	return 0, errTermios
}

// SetVEOF replaces the EOF control character of the child's terminal.
func (s *Session) SetVEOF(_ byte) error {
	return errTermios
}

// CanonState reports whether the child's terminal is in canonical mode
// and which EOF character is active.
func (s *Session) CanonState() (bool, byte, error) {
	return false, 0, errTermios
}
