// Package nps is the protocol framework every sub-server runs on: the
// opcode dispatch tables, the per-connection accept/read/dispatch loop
// and the frame error policy.
package nps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drazisil/mcos-sub001/internal/codec"
	"github.com/drazisil/mcos-sub001/internal/crypt"
	"github.com/drazisil/mcos-sub001/internal/registry"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIdleTimeout sets the per-connection read deadline. Zero disables.
func WithIdleTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.idleTimeout = d }
}

// WithCloseOnUnknownOpcode makes the connection loop drop clients that
// send unregistered opcodes instead of skipping the frame.
func WithCloseOnUnknownOpcode() ServerOption {
	return func(s *Server) { s.closeOnUnknown = true }
}

// Server accepts TCP connections for one sub-server and pumps its
// dispatcher. One goroutine per connection; frames of one connection are
// handled strictly in receipt order.
type Server struct {
	name string
	bind string
	port int

	disp    *Dispatcher
	state   *registry.State
	ciphers *crypt.Manager

	idleTimeout    time.Duration
	closeOnUnknown bool

	readPool *BytePool
	sendPool *BytePool

	listener net.Listener
	mu       sync.Mutex
}

// NewServer wires a dispatcher to a listening port.
func NewServer(name, bind string, port int, disp *Dispatcher, state *registry.State, ciphers *crypt.Manager, opts ...ServerOption) *Server {
	s := &Server{
		name:     name,
		bind:     bind,
		port:     port,
		disp:     disp,
		state:    state,
		ciphers:  ciphers,
		readPool: NewBytePool(DefaultReadBufSize),
		sendPool: NewBytePool(DefaultSendBufSize),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run begins listening for client connections.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.bind, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener и запускает accept loop.
// Используется для тестирования с произвольным listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("sub-server started", "server", s.name, "address", ln.Addr())
		s.acceptLoop(ctx, &wg, ln)
	})

	wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("failed to accept new connection", "server", s.name, "error", err)
				continue
			}
			wg.Go(func() {
				s.handleConnection(ctx, conn)
			})
		}
	}
}

func (s *Server) handleConnection(ctx context.Context, sock net.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer sock.Close()

	go func() {
		select {
		case <-ctx.Done():
			sock.Close()
		case <-done:
		}
	}()

	host, _, err := net.SplitHostPort(sock.RemoteAddr().String())
	if err != nil {
		slog.Error("failed to split host port", "server", s.name, "remote", sock.RemoteAddr(), "error", err)
		return
	}

	conn := registry.NewConnection(uuid.NewString(), host, s.port)
	s.state.Connections.Register(conn)
	defer func() {
		s.state.Connections.Remove(conn.ID())
		s.ciphers.Remove(conn.ID())
		slog.Info("connection closed", "server", s.name, "connection", conn.ID(), "remote", host)
	}()

	slog.Info("new connection", "server", s.name, "connection", conn.ID(), "remote", host)

	for {
		select {
		case <-ctx.Done():
			conn.SetStatus(registry.StatusClosePending)
			return
		default:
			if !s.handleFrame(ctx, conn, sock) {
				return
			}
			if conn.Status() == registry.StatusSoftKill {
				// Response for the current frame has flushed, drop now.
				return
			}
		}
	}
}

// handleFrame reads, dispatches and answers one frame. Returns false
// when the connection must close.
func (s *Server) handleFrame(ctx context.Context, conn *registry.Connection, sock net.Conn) bool {
	readBuf := s.readPool.Get(DefaultReadBufSize)
	defer s.readPool.Put(readBuf)

	if s.idleTimeout > 0 {
		if err := sock.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			slog.Error("failed to set read deadline", "server", s.name, "connection", conn.ID(), "error", err)
			return false
		}
	}

	frame, err := codec.ReadFrame(sock, s.disp.Variant(), readBuf)
	if err != nil {
		var fe *codec.FrameError
		switch {
		case errors.As(err, &fe):
			// Malformed header. The frame is rejected; on a byte stream
			// there is no way to resynchronize, so the connection goes too.
			slog.Warn("rejecting malformed frame", "server", s.name, "connection", conn.ID(), "error", err)
		case errors.Is(err, net.ErrClosed):
		default:
			slog.Debug("read ended", "server", s.name, "connection", conn.ID(), "error", err)
		}
		return false
	}

	replies, err := s.disp.Dispatch(ctx, conn.ID(), frame)
	if err != nil {
		return s.handleDispatchError(conn, err)
	}

	if conn.Status() == registry.StatusInactive {
		conn.SetStatus(registry.StatusActive)
	}

	if len(replies) == 0 {
		return true
	}

	// All replies to one inbound frame go out in a single pooled write;
	// each outbound frame is written exactly once.
	sendBuf := s.sendPool.Get(0)
	defer func() { s.sendPool.Put(sendBuf) }()
	for _, reply := range replies {
		out, err := reply.Serialize()
		if err != nil {
			slog.Error("failed to serialize reply", "server", s.name, "connection", conn.ID(), "error", err)
			return false
		}
		sendBuf = append(sendBuf, out...)
	}
	if _, err := sock.Write(sendBuf); err != nil {
		slog.Error("failed to write reply", "server", s.name, "connection", conn.ID(), "error", err)
		return false
	}
	return true
}

func (s *Server) handleDispatchError(conn *registry.Connection, err error) bool {
	var (
		unsupported *UnsupportedOpcodeError
		frameErr    *codec.FrameError
		compatErr   *codec.LegacyCompatibilityError
		encErr      *crypt.EncryptionError
		notFound    *registry.NotFoundError
	)
	switch {
	case errors.As(err, &unsupported):
		slog.Warn("unsupported opcode", "server", s.name, "connection", conn.ID(), "opcode", fmt.Sprintf("0x%04X", unsupported.Opcode))
		return !s.closeOnUnknown
	case errors.As(err, &frameErr), errors.As(err, &compatErr):
		// Recoverable at the frame level: drop the frame, keep the
		// connection.
		slog.Warn("rejecting malformed frame", "server", s.name, "connection", conn.ID(), "error", err)
		return true
	case errors.As(err, &encErr):
		// Cipher state missing or desynchronized: session integrity
		// cannot be recovered mid-stream.
		slog.Error("encryption failure", "server", s.name, "connection", conn.ID(), "error", err)
		return false
	case errors.As(err, &notFound):
		slog.Warn("lookup miss during dispatch", "server", s.name, "connection", conn.ID(), "error", err)
		return true
	default:
		slog.Error("handler failed", "server", s.name, "connection", conn.ID(), "error", err)
		return true
	}
}
