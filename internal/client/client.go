// Package client implements the TCP client stub. A Client wraps one
// connection and performs a single command/response exchange; the
// server closes the connection after answering, so callers dial a
// fresh client per command.
package client

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"

	"github.com/jassi-singh/kvs/internal/wire"
)

// DefaultAddr is the server address used when none is configured.
const DefaultAddr = "127.0.0.1:4000"

// Client holds one open connection to a kvs server.
type Client struct {
	conn   net.Conn
	writer *bufio.Writer
	reader *bufio.Reader
}

// Dial connects to the server at addr. An empty address falls back to
// the default server address.
func Dial(addr string) (*Client, error) {
	if addr == "" {
		addr = DefaultAddr
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	slog.Debug("client: connected", "addr", addr)
	return &Client{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		reader: bufio.NewReader(conn),
	}, nil
}

// Send writes one command, flushes it, and waits for the single
// response. The decoded response is returned verbatim.
func (c *Client) Send(cmd wire.Command) (wire.Response, error) {
	if err := wire.WriteCommand(c.writer, cmd); err != nil {
		return wire.Response{}, err
	}
	if err := c.writer.Flush(); err != nil {
		return wire.Response{}, fmt.Errorf("failed to flush command: %w", err)
	}

	resp, err := wire.ReadResponse(c.reader)
	if err != nil {
		return wire.Response{}, err
	}

	slog.Debug("client: exchange complete",
		"command", cmd.Kind,
		"response", resp.Kind)
	return resp, nil
}

// Set sends a Set command.
func (c *Client) Set(key, value string) (wire.Response, error) {
	return c.Send(wire.Command{Kind: wire.CmdSet, Key: key, Value: value})
}

// Get sends a Get command.
func (c *Client) Get(key string) (wire.Response, error) {
	return c.Send(wire.Command{Kind: wire.CmdGet, Key: key})
}

// Rm sends an Rm command.
func (c *Client) Rm(key string) (wire.Response, error) {
	return c.Send(wire.Command{Kind: wire.CmdRm, Key: key})
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
