//go:build !linux

package pty

import "context"

// ReadContext reads the next chunk of child output. Without poll
// support the call blocks until bytes arrive or the stream ends.
func (s *Session) ReadContext(_ context.Context, p []byte) (int, error) {
	return s.Read(p)
}
