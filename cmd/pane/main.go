// pane is a terminal multiplexing daemon and its own CLI front-end: the
// same binary is both the client a user types commands into and, invoked
// with the hidden --server flag, the daemon hosting PTY-backed sessions.
//
// Usage:
//
//	pane create [name] [-- command...]   create a new session
//	pane list                            list sessions
//	pane attach [sessionID]              attach to a session (default: first)
//	pane destroy <sessionID>             terminate and remove a session
//	pane status                          show whether the server is running
//	pane list-servers                    show the default server, if any
//
// Global flags: --log <path>, --no-auto-start. pane will start the server
// automatically on first use unless --no-auto-start is given.
//
// Attach-mode keybindings: ctrl-B d detach, ctrl-B c create+switch,
// ctrl-B n next session, ctrl-B p previous session.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ianremillard/pane/internal/autostart"
	midtermemu "github.com/ianremillard/pane/internal/emulator/midterm"
	"github.com/ianremillard/pane/internal/palog"
	"github.com/ianremillard/pane/internal/registry"
	"github.com/ianremillard/pane/internal/runtimedir"
	"github.com/ianremillard/pane/internal/server"
	"github.com/ianremillard/pane/internal/session"
	"github.com/ianremillard/pane/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("pane", flag.ExitOnError)
	logPath := fs.String("log", "", "path to a log file (server also logs to stderr)")
	noAutoStart := fs.Bool("no-auto-start", false, "do not start the server if it is not already running")
	isServer := fs.Bool("server", false, "run as the daemon (internal use)")
	socketFlag := fs.String("socket", "", "override the server socket path (internal use)")
	flagArgs := os.Args[2:]
	if os.Args[1] == "--server" {
		// autostart launches the daemon with --server as its first argument.
		flagArgs = os.Args[1:]
	}
	fs.Parse(flagArgs)

	dir, err := runtimedir.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pane: %v\n", err)
		os.Exit(1)
	}
	socketPath := *socketFlag
	if socketPath == "" {
		socketPath, err = runtimedir.SocketPath(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pane: %v\n", err)
			os.Exit(1)
		}
	}

	if *isServer {
		runServer(dir, socketPath, *logPath)
		return
	}

	opts := autostart.Options{SocketPath: socketPath, LogPath: *logPath, NoAutoStart: *noAutoStart}

	switch os.Args[1] {
	case "server":
		runServer(dir, socketPath, *logPath)
	case "status":
		cmdStatus(opts)
	case "list-servers":
		cmdListServers(opts)
	case "create":
		cmdCreate(opts, os.Args[2:])
	case "list":
		cmdList(opts)
	case "attach":
		cmdAttachDispatch(opts, os.Args[2:])
	case "destroy":
		cmdDestroy(opts, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "pane: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `pane - terminal multiplexing daemon and CLI

  pane create [name] [-- command...]   create a new session
  pane list                            list sessions
  pane attach [sessionID]              attach to a session
  pane destroy <sessionID>             terminate and remove a session
  pane status                          show whether the server is running
  pane list-servers                    show the default server, if any

Global flags: --log <path>, --no-auto-start

Attach-mode: ctrl-B d detach, ctrl-B c create+switch, ctrl-B n next, ctrl-B p previous`)
}

// runServer runs the daemon side: it creates the session registry, the
// socket listener, writes the PID file, and blocks in Run.
func runServer(dir, socketPath, logPath string) {
	if logPath == "" {
		logPath = runtimedir.LogPath(dir)
	}
	log, err := palog.WithFile("server", logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pane: cannot open log file: %v\n", err)
		os.Exit(1)
	}

	if err := runtimedir.WritePID(dir, os.Getpid()); err != nil {
		log.Fatalf("write pid file: %v", err)
	}
	defer runtimedir.RemovePID(dir)

	reg := registry.New(func(cols, rows int) session.Emulator { return midtermemu.New(cols, rows) })
	srv := server.New(socketPath, reg, log)
	if err := srv.Run(); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func cmdStatus(opts autostart.Options) {
	if autostart.Ping(opts.SocketPath) {
		fmt.Printf("server running at %s\n", opts.SocketPath)
		return
	}
	fmt.Println("server not running")
}

func cmdListServers(opts autostart.Options) {
	if !autostart.Ping(opts.SocketPath) {
		fmt.Println("no servers running")
		return
	}
	fmt.Println(opts.SocketPath)
}

func cmdCreate(opts autostart.Options, args []string) {
	name, commandLine := parseCreateArgs(args)

	c, err := dialClient(opts)
	if err != nil {
		fatal(err)
	}
	defer c.close()

	resp, err := c.request(&wire.Request{Command: wire.CmdCreateSession, Name: name, CommandLine: commandLine})
	if err != nil {
		fatal(err)
	}
	if !resp.OK {
		fatal(fmt.Errorf("%s", resp.Message))
	}
	fmt.Println(resp.Session.ID)
}

// parseCreateArgs splits "pane create [name] [-- command...]" into an
// optional session name and an optional command line.
func parseCreateArgs(args []string) (name string, commandLine []string) {
	for i, a := range args {
		if a == "--" {
			return name, args[i+1:]
		}
		if name == "" {
			name = a
		}
	}
	return name, nil
}

func cmdList(opts autostart.Options) {
	c, err := dialClient(opts)
	if err != nil {
		fatal(err)
	}
	defer c.close()

	resp, err := c.request(&wire.Request{Command: wire.CmdListSessions})
	if err != nil {
		fatal(err)
	}
	if !resp.OK {
		fatal(fmt.Errorf("%s", resp.Message))
	}
	for _, s := range resp.Sessions {
		status := "exited"
		if s.IsRunning {
			status = "running"
		}
		fmt.Printf("%s\t%s\t%s\n", s.ID, status, s.Name)
	}
}

func cmdDestroy(opts autostart.Options, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pane destroy <sessionID>")
		os.Exit(1)
	}
	c, err := dialClient(opts)
	if err != nil {
		fatal(err)
	}
	defer c.close()

	resp, err := c.request(&wire.Request{Command: wire.CmdDestroySession, SessionID: args[0]})
	if err != nil {
		fatal(err)
	}
	if !resp.OK {
		fatal(fmt.Errorf("%s", resp.Message))
	}
}

// cmdAttachDispatch resolves which session to attach to (the first listed
// session if none is named) and drives the attach loop, handling
// create/next/prev switches without leaving raw mode's caller.
func cmdAttachDispatch(opts autostart.Options, args []string) {
	sessionID := ""
	if len(args) > 0 {
		sessionID = args[0]
	}

	c, err := dialClient(opts)
	if err != nil {
		fatal(err)
	}
	if sessionID == "" {
		sessionID, err = firstSessionID(c)
		if err != nil {
			c.close()
			fatal(err)
		}
	}
	c.close()

	for {
		outcome, err := runAttach(opts, sessionID)
		if err != nil {
			fatal(err)
		}
		switch outcome {
		case outcomeDetach, outcomeSessionExited:
			return
		case outcomeCreateSwitch:
			sessionID, err = createSession(opts)
			if err != nil {
				fatal(err)
			}
		case outcomeNext, outcomePrev:
			sessionID, err = adjacentSessionID(opts, sessionID, outcome == outcomeNext)
			if err != nil {
				fatal(err)
			}
		}
	}
}

func firstSessionID(c *client) (string, error) {
	resp, err := c.request(&wire.Request{Command: wire.CmdListSessions})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("%s", resp.Message)
	}
	if len(resp.Sessions) == 0 {
		return "", fmt.Errorf("no sessions to attach to; create one with 'pane create'")
	}
	return resp.Sessions[0].ID, nil
}

func createSession(opts autostart.Options) (string, error) {
	c, err := dialClient(opts)
	if err != nil {
		return "", err
	}
	defer c.close()

	resp, err := c.request(&wire.Request{Command: wire.CmdCreateSession})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("%s", resp.Message)
	}
	return resp.Session.ID, nil
}

func adjacentSessionID(opts autostart.Options, current string, next bool) (string, error) {
	c, err := dialClient(opts)
	if err != nil {
		return "", err
	}
	defer c.close()

	resp, err := c.request(&wire.Request{Command: wire.CmdListSessions})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("%s", resp.Message)
	}
	if len(resp.Sessions) == 0 {
		return current, nil
	}

	idx := 0
	for i, s := range resp.Sessions {
		if s.ID == current {
			idx = i
			break
		}
	}
	if next {
		idx = (idx + 1) % len(resp.Sessions)
	} else {
		idx = (idx - 1 + len(resp.Sessions)) % len(resp.Sessions)
	}
	return resp.Sessions[idx].ID, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "pane: %v\n", err)
	os.Exit(1)
}
