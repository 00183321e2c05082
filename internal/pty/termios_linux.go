//go:build linux

package pty

import "golang.org/x/sys/unix"

// VEOF returns the EOF control character of the child's terminal.
func (s *Session) VEOF() (byte, error) {
	tio, err := unix.IoctlGetTermios(int(s.slave.Fd()), unix.TCGETS)
	if err != nil {
		return 0, err
	}
	return tio.Cc[unix.VEOF], nil
}

// SetVEOF replaces the EOF control character of the child's terminal.
// Zero disables it.
func (s *Session) SetVEOF(c byte) error {
	tio, err := unix.IoctlGetTermios(int(s.slave.Fd()), unix.TCGETS)
	if err != nil {
		return err
	}
	tio.Cc[unix.VEOF] = c
	return unix.IoctlSetTermios(int(s.slave.Fd()), unix.TCSETS, tio)
}

// CanonState reports whether the child's terminal is in canonical mode
// and which EOF character is active.
func (s *Session) CanonState() (icanon bool, veof byte, err error) {
	tio, err := unix.IoctlGetTermios(int(s.slave.Fd()), unix.TCGETS)
	if err != nil {
		return false, 0, err
	}
	return tio.Lflag&unix.ICANON != 0, tio.Cc[unix.VEOF], nil
}
