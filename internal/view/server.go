package view

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/hjortron/internal/config"
	"pkt.systems/hjortron/internal/protocol"
	"pkt.systems/hjortron/internal/server"
	"pkt.systems/pslog"
)

// HostControlID identifies the local host controller.
const HostControlID = "host"

// ServerOptions configures the embedded viewer server.
type ServerOptions struct {
	Listen       string
	SessionID    string
	Password     string
	AllowControl bool
	BufferLines  int
	Cols         int
	Rows         int
	Logger       pslog.Logger
}

// Server accepts viewer websockets and streams terminal frames to
// them. Input and resize from the controlling viewer flow back through
// the OnInput/OnResize callbacks; controller changes surface via
// OnControl.
type Server struct {
	opts   ServerOptions
	logger pslog.Logger

	OnInput   func([]byte)
	OnResize  func(cols, rows int)
	OnControl func(holderID string)

	pub          *Publisher
	token        string
	passwordHash []byte

	mu       sync.Mutex
	viewers  map[string]*viewerConn
	holderID string
	cols     int
	rows     int

	listener net.Listener
	httpSrv  server.Server
}

// NewServer constructs a viewer server. The access token is generated
// here so the watch URL is printable before Start.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = pslog.LoggerFromEnv()
	}
	if opts.SessionID == "" {
		opts.SessionID = config.DefaultSessionID
	}
	if opts.BufferLines <= 0 {
		opts.BufferLines = config.DefaultBufferLines
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		pub:      NewPublisher(opts.SessionID),
		token:    token,
		viewers:  make(map[string]*viewerConn),
		holderID: HostControlID,
		cols:     opts.Cols,
		rows:     opts.Rows,
	}
	if opts.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.passwordHash = hash
	}
	return s, nil
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	if s.opts.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return err
	}
	s.listener = ln
	handler := server.AccessLog(s.logger, s.Handler())
	s.httpSrv = server.NewServer(server.Config{Logger: s.logger}, handler)
	go s.serveListener(ln)
	return nil
}

func (s *Server) serveListener(ln net.Listener) {
	err := s.httpSrv.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("view server stopped", "err", err)
	}
}

// Shutdown closes viewer connections and stops the HTTP server.
// Websocket connections are hijacked from the HTTP server, so they are
// closed explicitly first.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, vc := range s.viewerList() {
		_ = vc.close("server shutting down")
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// URL returns the watch URL, including the access token.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("ws://%s/ws?token=%s", displayHost(s.listener.Addr()), s.token)
}

// Token returns the viewer access token.
func (s *Server) Token() string {
	return s.token
}

// Handler returns the HTTP handler for the viewer endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Publish builds the next frame for snap and queues it to every
// attached viewer. It never blocks on viewer I/O.
func (s *Server) Publish(data []byte, snap *protocol.Snapshot) {
	env, lines, ok := s.pub.BuildFrame(data, snap)
	if !ok {
		return
	}
	f := queuedFrame{env: env, snapshot: env.Type == protocol.MessageSnapshot, lines: lines}
	for _, vc := range s.viewerList() {
		vc.enqueue(f)
	}
}

// Resize records the new session size and publishes the resized
// snapshot.
func (s *Server) Resize(cols, rows int, snap *protocol.Snapshot) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
	s.Publish(nil, snap)
}

// TakeControl hands the controller lease back to the host.
func (s *Server) TakeControl() {
	s.setHolder(HostControlID)
}

// Holder returns the current controller ID.
func (s *Server) Holder() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holderID
}

// ViewerCount returns the number of attached viewers.
func (s *Server) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	logger := s.logger.With("role", "viewer")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: false,
	})
	if err != nil {
		return
	}
	ctx := r.Context()
	vc := newViewerConn(newConnID(), conn, s.opts.BufferLines, logger)
	vc.snapshotFrame = s.pub.SnapshotFrame
	defer func() {
		_ = vc.close("closing")
		s.unregister(vc)
	}()

	env, err := readEnvelope(ctx, conn, wsReadLimit)
	if err != nil {
		logger.Debug("failed to read hello", "err", err)
		return
	}
	if env.Type != protocol.MessageHello {
		_ = vc.send(ctx, errorEnvelope(s.opts.SessionID, "missing hello"))
		return
	}
	var hello protocol.HelloPayload
	if err := env.DecodePayload(&hello); err != nil {
		_ = vc.send(ctx, errorEnvelope(s.opts.SessionID, "malformed hello"))
		return
	}
	vc.clientID = hello.ClientID
	if vc.clientID == "" {
		vc.clientID = vc.id
	}

	granted, holder, cols, rows := s.register(vc, hello.WantsControl)
	welcome, err := protocol.NewEnvelope(protocol.MessageWelcome, s.opts.SessionID, 0, protocol.WelcomePayload{
		GrantedControl: granted,
		ServerCols:     cols,
		ServerRows:     rows,
		HolderClientID: holder,
	})
	if err == nil {
		_ = vc.send(ctx, welcome)
	}
	logger.Info("viewer connected", "client", vc.clientID, "session", s.opts.SessionID)
	if granted {
		s.broadcastControl()
	}

	// Catch the viewer up unless it already holds the current frame.
	if hello.LastSeq == 0 || hello.LastSeq != s.pub.Seq() {
		if snapEnv, lines, ok := s.pub.SnapshotFrame(); ok {
			vc.enqueue(queuedFrame{env: snapEnv, snapshot: true, lines: lines})
		}
	}

	go vc.writeLoop(ctx)
	go s.pingLoop(ctx, vc)

	s.serveViewer(ctx, vc)
}

func (s *Server) serveViewer(ctx context.Context, vc *viewerConn) {
	for {
		env, err := readEnvelope(ctx, vc.conn, wsReadLimit)
		if err != nil {
			return
		}
		switch env.Type {
		case protocol.MessageIn:
			var in protocol.InputPayload
			if err := env.DecodePayload(&in); err != nil || len(in.Data) == 0 {
				continue
			}
			if !s.viewerTakesControl(vc) {
				_ = vc.send(ctx, errorEnvelope(s.opts.SessionID, "control not permitted"))
				continue
			}
			if s.OnInput != nil {
				s.OnInput(in.Data)
			}
		case protocol.MessageResize:
			var rs protocol.ResizePayload
			if err := env.DecodePayload(&rs); err != nil || rs.Cols <= 0 || rs.Rows <= 0 {
				continue
			}
			if !s.viewerTakesControl(vc) {
				_ = vc.send(ctx, errorEnvelope(s.opts.SessionID, "control not permitted"))
				continue
			}
			if s.OnResize != nil {
				s.OnResize(rs.Cols, rs.Rows)
			}
		case protocol.MessageHello:
			// Resync request from a viewer that lost frame continuity.
			snapEnv, lines, ok := s.pub.SnapshotFrame()
			if !ok {
				continue
			}
			vc.enqueue(queuedFrame{env: snapEnv, snapshot: true, lines: lines})
		}
	}
}

// viewerTakesControl applies the control policy: any input or resize
// from a viewer takes the controller lease when control is allowed.
func (s *Server) viewerTakesControl(vc *viewerConn) bool {
	if !s.opts.AllowControl {
		return false
	}
	s.mu.Lock()
	isHolder := s.holderID == vc.clientID
	s.mu.Unlock()
	if !isHolder {
		s.setHolder(vc.clientID)
	}
	return true
}

func (s *Server) register(vc *viewerConn, wantsControl bool) (bool, string, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewers[vc.id] = vc
	granted := wantsControl && s.opts.AllowControl
	if granted {
		s.holderID = vc.clientID
	}
	return granted, s.holderID, s.cols, s.rows
}

func (s *Server) unregister(vc *viewerConn) {
	s.mu.Lock()
	delete(s.viewers, vc.id)
	wasHolder := vc.clientID != "" && s.holderID == vc.clientID
	s.mu.Unlock()
	if wasHolder {
		s.setHolder(HostControlID)
	}
}

// setHolder records the controller and notifies everyone when it
// changes.
func (s *Server) setHolder(holderID string) {
	s.mu.Lock()
	if s.holderID == holderID {
		s.mu.Unlock()
		return
	}
	s.holderID = holderID
	s.mu.Unlock()
	s.broadcastControl()
}

// broadcastControl sends the current controller to every viewer and
// fires the OnControl callback.
func (s *Server) broadcastControl() {
	s.mu.Lock()
	holderID := s.holderID
	viewers := make([]*viewerConn, 0, len(s.viewers))
	for _, vc := range s.viewers {
		viewers = append(viewers, vc)
	}
	cb := s.OnControl
	s.mu.Unlock()

	env, err := protocol.NewEnvelope(protocol.MessageControl, s.opts.SessionID, 0, protocol.ControlPayload{
		HolderClientID: holderID,
	})
	if err == nil {
		for _, vc := range viewers {
			_ = vc.send(context.Background(), env)
		}
	}
	if cb == nil {
		return
	}
	cb(holderID)
}

func (s *Server) viewerList() []*viewerConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*viewerConn, 0, len(s.viewers))
	for _, vc := range s.viewers {
		out = append(out, vc)
	}
	return out
}

func (s *Server) pingLoop(ctx context.Context, vc *viewerConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		pingCtx, cancel := context.WithTimeout(ctx, wsPongTimeout)
		err := vc.ping(pingCtx)
		cancel()
		if err != nil {
			vc.logger.Debug("websocket ping failed", "err", err)
		}
	}
}

func (s *Server) authorize(r *http.Request) error {
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return errors.New("invalid token")
	}
	if len(s.passwordHash) > 0 {
		_, pass, ok := r.BasicAuth()
		if !ok {
			return errors.New("password required")
		}
		if bcrypt.CompareHashAndPassword(s.passwordHash, []byte(pass)) != nil {
			return errors.New("invalid password")
		}
	}
	return nil
}

func errorEnvelope(sessionID, message string) protocol.Envelope {
	env, err := protocol.NewEnvelope(protocol.MessageError, sessionID, 0, protocol.ErrorPayload{Message: message})
	if err != nil {
		return protocol.Envelope{Type: protocol.MessageError, SessionID: sessionID}
	}
	return env
}

// displayHost rewrites an unspecified listen address to a reachable
// host so the printed URL works from another machine.
func displayHost(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsUnspecified() {
		if lan := localIP(); lan != "" {
			host = lan
		} else {
			host = "localhost"
		}
	}
	return net.JoinHostPort(host, port)
}

func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
