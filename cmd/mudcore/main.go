// Command mudcore runs the connection/protocol core standalone against
// the in-memory demo world, exercising the full telnet/GMCP/MCCP stack
// end to end without a real game attached.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dystopia-mud/mudcore/internal/config"
	"github.com/dystopia-mud/mudcore/internal/housekeeping"
	"github.com/dystopia-mud/mudcore/internal/loop"
	"github.com/dystopia-mud/mudcore/internal/logging"
	"github.com/dystopia-mud/mudcore/internal/restart"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/world"
)

const defaultPort = 8888

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()
	logging.DebugEnabled = *debug || os.Getenv("DEBUG") == "1"

	args := flag.Args()

	port := defaultPort
	if len(args) >= 1 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("FATAL: invalid port %q: %v", args[0], err)
		}
		port = p
	}
	if port <= 1024 {
		log.Fatalf("FATAL: port must be > 1024, got %d", port)
	}

	var recoverArgs []string
	if len(args) > 1 {
		recoverArgs = args[1:]
	}
	if handoffPath, recovering := restart.IsRecoverArgs(recoverArgs); recovering {
		if err := runRecovered(port, handoffPath); err != nil {
			log.Fatalf("FATAL: recovery failed: %v", err)
		}
		os.Exit(0)
	}

	if err := run(port); err != nil {
		log.Printf("FATAL: %v", err)
		os.Exit(1)
	}
}

// serverDeps bundles everything run and runRecovered both need to stand
// a Loop up: the listener, hooks, config registry, and housekeeping
// scheduler. Building it once keeps the two entry points from drifting.
type serverDeps struct {
	port     int
	listener net.Listener
	l        *loop.Loop
	hooks    *world.Hooks
	watcher  *config.Watcher
	cancel   context.CancelFunc
}

func buildServer(port int) (*serverDeps, context.Context, error) {
	listener, err := listen(port)
	if err != nil {
		return nil, nil, fmt.Errorf("listen: %w", err)
	}
	logging.Info("listening on port %d", port)

	demo := world.NewDemo()
	info := world.ServerInfo{
		Name:     "mudcore demo",
		Version:  "0.1",
		Port:     port,
		Language: "en",
		Genres:   []string{"fantasy"},
	}

	cfg := config.NewRegistry(config.DefaultEntries(), "mudcore.cfg.json")
	if err := cfg.Load(); err != nil {
		logging.Warn("config load: %v", err)
	}
	watcher, err := config.NewWatcher(cfg)
	if err != nil {
		logging.Warn("config watcher: %v", err)
	}

	hk := housekeeping.New()
	hk.Register(housekeeping.ConfigSaveTask(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	hk.Start(ctx)

	hooks := demo.Hooks()
	l := loop.New(listener, info, hooks, cfg)
	return &serverDeps{port: port, listener: listener, l: l, hooks: hooks, watcher: watcher, cancel: cancel}, ctx, nil
}

func (d *serverDeps) close() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.listener.Close()
	d.cancel()
}

func (d *serverDeps) runUntilShutdown(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logging.Info("shutdown signal received")
		d.l.Shutdown()
	}()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			d.copyover()
		}
	}()

	d.l.Run(ctx)
	logging.Info("shutdown complete")
}

// copyover implements the operator-triggered hot restart (spec §4.J
// steps 1-6): SIGHUP is this realization's "operator command" trigger,
// mirroring the Unix convention of SIGHUP meaning "reload/respawn"
// rather than introducing a bespoke admin verb for it. Every live
// session's descriptor is handed off, the crash-loop sentinel is armed,
// and the binary re-execs itself; the new process's "recover" argv form
// (runRecovered) re-attaches every descriptor before serving again.
func (d *serverDeps) copyover() {
	logging.Info("SIGHUP received, starting copyover restart")
	if err := restart.WriteSentinel(); err != nil {
		logging.Warn("restart: writing sentinel: %v", err)
	}
	if err := restart.WriteHandoff(d.l.Sessions(), d.hooks); err != nil {
		logging.Warn("restart: writing handoff file: %v", err)
		restart.ClearSentinel()
		return
	}
	if err := restart.Exec(d.port); err != nil {
		logging.Warn("restart: exec failed, continuing to serve: %v", err)
		restart.ClearSentinel()
	}
	// On success, Exec never returns: this process image is replaced.
}

func run(port int) error {
	if restart.SentinelPresent() {
		logging.Warn("crash sentinel present; a previous restart may not have completed cleanly")
	}

	deps, ctx, err := buildServer(port)
	if err != nil {
		return err
	}
	defer deps.close()

	deps.runUntilShutdown(ctx)
	return nil
}

// runRecovered is reached only via the "recover" argv form written by
// restart.Exec (spec §4.J step 6). It rebuilds a Loop exactly as run
// does, then re-attaches every descriptor from the handoff file through
// restart.Recover before it starts servicing new connections, so a
// recovering player's first read or pulse after copyover lands on an
// already-reattached session.
func runRecovered(port int, handoffPath string) error {
	logging.Info("recovering from %s on port %d", handoffPath, port)

	deps, ctx, err := buildServer(port)
	if err != nil {
		return err
	}
	defer deps.close()

	newSession := func(fd int) (*session.Session, error) {
		f := os.NewFile(uintptr(fd), "recovered-conn")
		conn, err := net.FileConn(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("restart: re-attaching fd %d: %w", fd, err)
		}
		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		return session.NewSession(deps.l.NextNodeID(), conn, host), nil
	}

	recovered, err := restart.Recover(handoffPath, deps.l.Handlers(), deps.l.Sink(), deps.hooks, newSession)
	if err != nil {
		logging.Warn("restart: recover failed: %v", err)
	}
	for _, s := range recovered {
		logging.Info("node %d: recovered from copyover, peer %s", s.NodeID, logging.MaskHost(s.PeerHost()))
		deps.l.Adopt(s)
	}
	restart.ClearSentinel()

	deps.runUntilShutdown(ctx)
	return nil
}

// listen opens the TCP listener with the socket options spec §6.1
// requires: SO_REUSEADDR on the listener, backlog 3, TCP_NODELAY and
// SO_DONTLINGER-equivalent applied to each accepted connection (the
// latter two happen per-connection in internal/loop.onAccept).
func listen(port int) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}
	// Go's net package has no knob to shrink the accept backlog below the
	// kernel default; spec §6.1's backlog of 3 is a historical artifact of
	// listen(2)'s original minimum and is not enforced here.
	return lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
}
