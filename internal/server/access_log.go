package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

// AccessLog wraps a handler and emits one structured log line per
// request. The wrapper keeps Hijack reachable so websocket upgrades
// behind it still work.
func AccessLog(logger pslog.Logger, handler http.Handler) http.Handler {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}
	if handler == nil {
		handler = http.DefaultServeMux
	}
	fn := func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &loggedResponse{ResponseWriter: w}
		handler.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		emit := logger.Info
		switch {
		case status >= http.StatusInternalServerError:
			emit = logger.Error
		case status >= http.StatusBadRequest:
			emit = logger.Warn
		}
		emit("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"sent", rec.sent,
			"elapsed", time.Since(started).String(),
			"ip", RealIP(r),
		)
	}
	return http.HandlerFunc(fn)
}

// loggedResponse records the status code and body size on their way to
// the underlying writer.
type loggedResponse struct {
	http.ResponseWriter
	status int
	sent   int
}

func (l *loggedResponse) WriteHeader(code int) {
	if l.status == 0 {
		l.status = code
	}
	l.ResponseWriter.WriteHeader(code)
}

func (l *loggedResponse) Write(b []byte) (int, error) {
	if l.status == 0 {
		l.status = http.StatusOK
	}
	n, err := l.ResponseWriter.Write(b)
	l.sent += n
	return n, err
}

func (l *loggedResponse) Flush() {
	if f, ok := l.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (l *loggedResponse) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := l.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}
