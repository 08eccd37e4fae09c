package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/wellsgz/pktmon/api"
	"github.com/wellsgz/pktmon/internal/types"
)

// StatsProvider is what the IPC server reports on.
type StatsProvider interface {
	Snapshot() types.StatisticsSnapshot
	Status() types.DaemonStatus
}

type methodFunc func(req api.Request) (any, error)

// Server answers newline-delimited JSON requests on a Unix socket.
type Server struct {
	path     string
	provider StatsProvider
	methods  map[string]methodFunc

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer creates a server reporting on provider.
func NewServer(socketPath string, provider StatsProvider) *Server {
	s := &Server{
		path:     socketPath,
		provider: provider,
		conns:    make(map[net.Conn]struct{}),
	}
	s.methods = map[string]methodFunc{
		api.MethodGetStats:  s.getStats,
		api.MethodGetStatus: s.getStatus,
	}
	return s
}

// Serve accepts clients until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	// A socket left behind by an unclean exit blocks Listen.
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove stale socket", "socket", s.path, "error", err)
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.path, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	// Clients run unprivileged while the daemon usually runs as root.
	if err := os.Chmod(s.path, 0o666); err != nil {
		slog.Warn("failed to chmod socket", "socket", s.path, "error", err)
	}
	slog.Info("IPC listening", "socket", s.path)

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			slog.Warn("accept failed", "error", err)
			continue
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.serveConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// Close stops accepting and drops every connected client. It is safe to
// call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for conn := range s.conns {
		conn.Close()
	}
	s.conns = nil

	if s.ln != nil {
		s.ln.Close()
		os.Remove(s.path)
	}
	slog.Info("IPC closed", "socket", s.path)
	return nil
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.untrack(conn)

	lines := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for lines.Scan() {
		if err := enc.Encode(s.dispatch(lines.Bytes())); err != nil {
			slog.Debug("client went away", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(line []byte) api.Response {
	var req api.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return failure(0, api.ErrCodeInvalidRequest, "invalid JSON")
	}

	method, ok := s.methods[req.Method]
	if !ok {
		return failure(req.ID, api.ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}

	result, err := method(req)
	if err != nil {
		return failure(req.ID, api.ErrCodeInternal, err.Error())
	}
	data, err := json.Marshal(result)
	if err != nil {
		return failure(req.ID, api.ErrCodeInternal, err.Error())
	}
	return api.Response{Result: data, ID: req.ID}
}

func failure(id, code int, msg string) api.Response {
	return api.Response{Error: &api.Error{Code: code, Message: msg}, ID: id}
}

func (s *Server) getStats(api.Request) (any, error) {
	snap := s.provider.Snapshot()
	return api.StatsResult{
		StartedAt:    snap.StartedAt,
		TakenAt:      snap.TakenAt,
		TotalPackets: snap.TotalPackets,
		TotalBytes:   snap.TotalBytes,
		PacketRate:   snap.PacketRate,
		Network:      protocolCounts(snap.NetworkCounts()),
		Transport:    protocolCounts(snap.TransportCounts()),
	}, nil
}

func protocolCounts(counts []types.ProtocolCount) []api.ProtocolCount {
	out := make([]api.ProtocolCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, api.ProtocolCount{Protocol: c.Protocol, Count: c.Count})
	}
	return out
}

func (s *Server) getStatus(api.Request) (any, error) {
	st := s.provider.Status()
	res := api.StatusResult{
		State:        st.State,
		Running:      st.State == StateRunning.String(),
		Interface:    st.Interface,
		Source:       st.Source,
		Uptime:       st.Uptime,
		Frames:       st.Frames,
		FailedFrames: st.FailedFrames,
		OutputFormat: st.OutputFormat,
		Outputs:      st.Outputs,
		Version:      st.Version,
	}
	if !st.StartTime.IsZero() {
		res.StartTime = st.StartTime.Format(time.RFC3339)
	}
	return res, nil
}
