// Package pty runs a child process on a pseudo terminal and exposes
// the transport side of that session: reads and writes against the
// master, window sizing and exit tracking.
package pty

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

// Session is one child process attached to a PTY pair. The master side
// carries the byte stream between the session and the child; the slave
// is the child's controlling terminal.
type Session struct {
	master *os.File
	slave  *os.File
	cmd    *exec.Cmd

	done     chan struct{}
	exitCode int

	closeOnce sync.Once
	closeErr  error
}

// Spawn starts cmd as a session leader on a fresh PTY pair. The
// command's stdio is attached to the slave side unless already set.
// The session reaps the child itself; callers must not Wait on cmd.
func Spawn(cmd *exec.Cmd) (*Session, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, err
	}
	attachTTY(cmd, slave)
	if err := cmd.Start(); err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, err
	}
	s := &Session{
		master:   master,
		slave:    slave,
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go s.reap()
	return s, nil
}

// attachTTY makes tty the controlling terminal of cmd and its default
// stdio.
func attachTTY(cmd *exec.Cmd, tty *os.File) {
	attr := cmd.SysProcAttr
	if attr == nil {
		attr = &syscall.SysProcAttr{}
		cmd.SysProcAttr = attr
	}
	attr.Setsid = true
	attr.Setctty = true
	if cmd.Stdin == nil {
		cmd.Stdin = tty
	}
	if cmd.Stdout == nil {
		cmd.Stdout = tty
	}
	if cmd.Stderr == nil {
		cmd.Stderr = tty
	}
}

func (s *Session) reap() {
	_ = s.cmd.Wait()
	if state := s.cmd.ProcessState; state != nil {
		s.exitCode = state.ExitCode()
	}
	close(s.done)
}

// Master returns the master side of the pair.
func (s *Session) Master() *os.File {
	return s.master
}

// Tty returns the child's terminal, the slave side of the pair.
func (s *Session) Tty() *os.File {
	return s.slave
}

// Read reads the next chunk of child output. Read reports io.EOF once
// the stream is over, whether the child exited and the PTY drained
// (Linux surfaces that as EIO) or the session was closed under a
// pending read.
func (s *Session) Read(p []byte) (int, error) {
	n, err := s.master.Read(p)
	if err != nil && (errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)) {
		err = io.EOF
	}
	return n, err
}

// Write forwards input to the child. A broken transport surfaces the
// underlying error; nothing is retried.
func (s *Session) Write(p []byte) (int, error) {
	return s.master.Write(p)
}

// Resize reports a new window size to the child, which sees SIGWINCH.
// Once the child has exited the call is a no-op.
func (s *Session) Resize(cols, rows int) error {
	if cols < 1 || rows < 1 {
		return nil
	}
	select {
	case <-s.done:
		return nil
	default:
	}
	return pty.Setsize(s.master, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// SetNonblock toggles O_NONBLOCK on the master.
func (s *Session) SetNonblock(on bool) error {
	return syscall.SetNonblock(int(s.master.Fd()), on)
}

// Kill terminates the child process.
func (s *Session) Kill() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
}

// Done is closed once the child has exited and been reaped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// ExitCode returns the child's exit status, or -1 while it still runs.
func (s *Session) ExitCode() int {
	select {
	case <-s.done:
		return s.exitCode
	default:
		return -1
	}
}

// Close releases both sides of the pair. Further calls are no-ops
// returning the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		err := s.master.Close()
		if s.slave != nil {
			if cerr := s.slave.Close(); err == nil {
				err = cerr
			}
		}
		s.closeErr = err
	})
	return s.closeErr
}
