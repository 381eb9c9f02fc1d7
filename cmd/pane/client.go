package main

import (
	"fmt"

	"github.com/ianremillard/pane/internal/autostart"
	"github.com/ianremillard/pane/internal/connio"
	"github.com/ianremillard/pane/internal/wire"
)

// client wraps a connio.Conn dialed (and, if needed, autostarted) against
// the default server, for the one-shot request/response subcommands.
type client struct {
	conn *connio.Conn
}

func dialClient(opts autostart.Options) (*client, error) {
	conn, err := autostart.Dial(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to pane server: %w", err)
	}
	return &client{conn: conn}, nil
}

func (c *client) close() { c.conn.Close() }

// request sends req and returns the server's decoded response.
func (c *client) request(req *wire.Request) (*wire.Response, error) {
	if err := c.conn.Send(&wire.WireMessage{Type: wire.TypeRequest, Request: req}); err != nil {
		return nil, err
	}
	msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.Response == nil {
		return nil, fmt.Errorf("server closed the connection without responding")
	}
	return msg.Response, nil
}
