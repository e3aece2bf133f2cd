// Package rpc is a small JSON-over-TCP RPC layer for internal callers, such
// as the transcription service, that want lyric search without going through
// the public HTTP API.
//
// Protocol: newline-delimited JSON objects over a persistent TCP connection.
// Requests on one connection are answered in order.
//
//	s := rpc.NewServer()
//	s.Register("LyricService.FindSong", func(ctx context.Context, params json.RawMessage) (any, error) {
//	    var req proto.FindSongRequest
//	    ...
//	})
//	go s.Serve(ln)
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/goccy/go-json"

	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
)

// HandlerFunc processes the raw params of one request.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

type Response struct {
	ID     string          `json:"id"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status,omitempty"`
}

type Server struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
		logger:   slog.Default().With("component", "rpc-server"),
	}
}

// Register adds a handler. Method names follow "Service.Method". Register
// must not be called after Serve.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

func (s *Server) MethodCount() int { return len(s.handlers) }

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called, then returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept error", "error", err)
			continue
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}
		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{ID: req.ID}
	handler, ok := s.handlers[req.Method]
	if !ok {
		resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		resp.Status = 404
		return resp
	}
	data, err := handler(context.Background(), req.Params)
	if err != nil {
		resp.Error = err.Error()
		resp.Status = apperrors.HTTPStatusCode(err)
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		resp.Error = fmt.Sprintf("marshaling result: %v", err)
		resp.Status = 500
		return resp
	}
	resp.Data = raw
	return resp
}

// Stop closes the listener and every open connection, then waits for
// connection goroutines to exit.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("rpc server stopped")
}
