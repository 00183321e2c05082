//go:build linux

package pty

import (
	"context"
	"errors"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const pollInterval = 50 * time.Millisecond

// ReadContext reads the next chunk of child output, polling so that
// ctx cancellation is observed between chunks. The master should be
// in nonblocking mode; callers may still see EAGAIN when a poll
// wakeup races another consumer.
func (s *Session) ReadContext(ctx context.Context, p []byte) (int, error) {
	fds := []unix.PollFd{{Fd: int32(s.master.Fd()), Events: unix.POLLIN}}
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		fds[0].Revents = 0
		switch _, err := unix.Poll(fds, int(pollInterval.Milliseconds())); {
		case errors.Is(err, syscall.EINTR):
			continue
		case err != nil:
			return 0, err
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			return s.Read(p)
		}
	}
}
