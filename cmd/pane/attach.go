package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/ianremillard/pane/internal/autostart"
	"github.com/ianremillard/pane/internal/wire"
)

// prefixKey is the ctrl-B chord prefix (0x02) that introduces an attach-mode
// command: d=detach, c=create+switch, n=next session, p=prev session.
const prefixKey = 0x02

// attachOutcome is what caused an attach loop to return control to the
// subcommand dispatcher.
type attachOutcome int

const (
	outcomeDetach attachOutcome = iota
	outcomeCreateSwitch
	outcomeNext
	outcomePrev
	outcomeSessionExited
)

// runAttach connects the current terminal to sessionID's PTY and blocks
// until the user issues a prefix-key command or the session's child exits.
func runAttach(opts autostart.Options, sessionID string) (attachOutcome, error) {
	c, err := dialClient(opts)
	if err != nil {
		return outcomeDetach, err
	}

	fd := int(os.Stdin.Fd())
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		cols, rows = 80, 24
	}

	if err := c.conn.Send(&wire.WireMessage{
		Type: wire.TypeRequest,
		Request: &wire.Request{
			Command:   wire.CmdAttachSession,
			SessionID: sessionID,
			Cols:      cols,
			Rows:      rows,
		},
	}); err != nil {
		c.close()
		return outcomeDetach, err
	}

	msg, err := c.conn.ReadMessage()
	if err != nil || msg == nil || msg.Response == nil {
		c.close()
		return outcomeDetach, fmt.Errorf("attach failed: no response from server")
	}
	if !msg.Response.OK {
		c.close()
		return outcomeDetach, fmt.Errorf("attach failed: %s", msg.Response.Message)
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		c.close()
		return outcomeDetach, fmt.Errorf("cannot set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Fprintf(os.Stdout, "\r\n[pane] attached to %s (ctrl-B d to detach)\r\n", sessionID)

	outcome := make(chan attachOutcome, 1)
	signalDone := func(o attachOutcome) {
		select {
		case outcome <- o:
		default:
		}
	}

	go readLoop(c, signalDone)
	go writeLoop(c, fd, signalDone)

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go watchResize(c, fd, winch)
	sendResize(c, fd)

	o := <-outcome
	c.close()
	return o, nil
}

// readLoop renders server messages to stdout until the connection closes.
func readLoop(c *client, done func(attachOutcome)) {
	r := newRenderer(os.Stdout)
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil || msg == nil {
			done(outcomeSessionExited)
			return
		}
		switch msg.Type {
		case wire.TypeSnapshot:
			if msg.Snapshot != nil {
				r.drawSnapshot(msg.Snapshot)
			}
		case wire.TypeDelta:
			if msg.Delta != nil {
				r.drawDelta(msg.Delta)
			}
		}
	}
}

// writeLoop reads stdin, recognizing the ctrl-B prefix chord, and forwards
// everything else to the session as input.
func writeLoop(c *client, fd int, done func(attachOutcome)) {
	buf := make([]byte, 256)
	prefixPending := false
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			literal := make([]byte, 0, n)
			for i := 0; i < n; i++ {
				b := buf[i]
				if prefixPending {
					prefixPending = false
					switch b {
					case 'd':
						flushInput(c, literal)
						done(outcomeDetach)
						return
					case 'c':
						flushInput(c, literal)
						done(outcomeCreateSwitch)
						return
					case 'n':
						flushInput(c, literal)
						done(outcomeNext)
						return
					case 'p':
						flushInput(c, literal)
						done(outcomePrev)
						return
					default:
						literal = append(literal, prefixKey, b)
					}
					continue
				}
				if b == prefixKey {
					prefixPending = true
					continue
				}
				literal = append(literal, b)
			}
			flushInput(c, literal)
		}
		if err != nil {
			done(outcomeSessionExited)
			return
		}
	}
}

func flushInput(c *client, data []byte) {
	if len(data) == 0 {
		return
	}
	c.conn.SendBinary(&wire.WireMessage{Type: wire.TypeInput, Input: &wire.Input{Data: data}})
}

func watchResize(c *client, fd int, winch <-chan os.Signal) {
	for range winch {
		sendResize(c, fd)
	}
}

func sendResize(c *client, fd int) {
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return
	}
	c.conn.SendBinary(&wire.WireMessage{Type: wire.TypeResize, Resize: &wire.Resize{Cols: uint16(cols), Rows: uint16(rows)}})
}
