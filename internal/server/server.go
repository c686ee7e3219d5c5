// Package server exposes the storage engine over TCP. The server is
// single-threaded: connections are accepted one at a time, and each
// connection carries exactly one command/response exchange before it
// is closed. Commands are therefore applied in accept order.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/jassi-singh/kvs/internal/engine"
	"github.com/jassi-singh/kvs/internal/wire"
)

// DefaultAddr is the bind address used when none is configured.
const DefaultAddr = "127.0.0.1:4000"

// EngineKVS is the only implemented engine backend. EngineSled is a
// recognized name that the server refuses to start with.
const (
	EngineKVS  = "kvs"
	EngineSled = "sled"
)

// Server owns an open engine and dispatches wire commands against it.
type Server struct {
	addr   string
	engine *engine.Engine
}

// New validates the engine selector and builds a server around an open
// engine. An empty address falls back to DefaultAddr; an empty engine
// name falls back to kvs.
func New(addr, engineName string, eng *engine.Engine) (*Server, error) {
	switch engineName {
	case "", EngineKVS:
	case EngineSled:
		return nil, fmt.Errorf("engine %q is not implemented", engineName)
	default:
		return nil, fmt.Errorf("unknown engine %q", engineName)
	}

	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, engine: eng}, nil
}

// ListenAndServe binds the configured address and serves until the
// listener fails.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln sequentially, handling one
// command/response exchange per connection.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("server: listening",
		"addr", ln.Addr().String(),
		"engine", EngineKVS)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		s.handle(conn)
	}
}

// handle reads one command from the connection, executes it, writes
// one response, and closes the connection.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	cmd, err := wire.ReadCommand(conn)
	if err != nil {
		slog.Error("server: failed to decode command",
			"remote", conn.RemoteAddr().String(),
			"error", err)
		return
	}

	resp := s.dispatch(cmd)

	slog.Info("server: handled command",
		"remote", conn.RemoteAddr().String(),
		"command", commandName(cmd.Kind),
		"key", cmd.Key,
		"response", responseName(resp.Kind))

	if err := wire.WriteResponse(conn, resp); err != nil {
		slog.Error("server: failed to write response",
			"remote", conn.RemoteAddr().String(),
			"error", err)
	}
}

// dispatch executes one command against the engine, converting every
// failure into an Error response. An absent key on Get collapses into
// the same Error response as a failed Rm.
func (s *Server) dispatch(cmd wire.Command) wire.Response {
	switch cmd.Kind {
	case wire.CmdSet:
		if err := s.engine.Set(cmd.Key, cmd.Value); err != nil {
			return errorResponse(err)
		}
		return wire.Response{Kind: wire.RespSetOk}

	case wire.CmdGet:
		value, ok, err := s.engine.Get(cmd.Key)
		if err != nil {
			return errorResponse(err)
		}
		if !ok {
			return errorResponse(engine.ErrKeyNotFound)
		}
		return wire.Response{Kind: wire.RespGetOk, Value: value}

	case wire.CmdRm:
		if err := s.engine.Remove(cmd.Key); err != nil {
			if !errors.Is(err, engine.ErrKeyNotFound) {
				slog.Error("server: remove failed",
					"key", cmd.Key,
					"error", err)
			}
			return errorResponse(err)
		}
		return wire.Response{Kind: wire.RespRmOk}

	case wire.CmdOpen:
		return wire.Response{Kind: wire.RespError, Msg: "Open is not supported"}

	default:
		return wire.Response{Kind: wire.RespError, Msg: fmt.Sprintf("unknown command tag %d", cmd.Kind)}
	}
}

func errorResponse(err error) wire.Response {
	return wire.Response{Kind: wire.RespError, Msg: err.Error()}
}

func commandName(kind wire.CommandKind) string {
	switch kind {
	case wire.CmdSet:
		return "Set"
	case wire.CmdGet:
		return "Get"
	case wire.CmdRm:
		return "Rm"
	case wire.CmdOpen:
		return "Open"
	}
	return "unknown"
}

func responseName(kind wire.ResponseKind) string {
	switch kind {
	case wire.RespGetOk:
		return "GetOk"
	case wire.RespSetOk:
		return "SetOk"
	case wire.RespRmOk:
		return "RmOk"
	case wire.RespError:
		return "Error"
	}
	return "unknown"
}
