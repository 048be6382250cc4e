// Package restart implements the crash-safe hot-restart handler (spec
// §4.J): on a fatal signal or an operator command, every live session's
// descriptor is written to a handoff file alongside its player name and
// peer host, the server binary re-execs itself, and the new process
// re-attaches each descriptor, re-offers the telnet option suite, and
// reloads each player through the game's reload hook.
//
// Grounded on vision3's config_watcher.go for the "write file, signal,
// re-read" plumbing shape, generalized here to a process-handoff file
// instead of a config file.
package restart

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/dystopia-mud/mudcore/internal/logging"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
	"github.com/dystopia-mud/mudcore/internal/world"
)

// HandoffPath is the well-known file the outgoing and incoming
// processes use to exchange live descriptors.
const HandoffPath = "mudcore.handoff"

// SentinelPath marks a restart in progress: WriteSentinel leaves this
// file behind and ClearSentinel removes it. Nothing in this package
// refuses a restart when it is present; SentinelPresent only reports it.
const SentinelPath = "mudcore.crash-sentinel"

// record is one handoff file line: session id, descriptor, player name,
// peer host. The session id carries a session's identity across the
// exec boundary (spec §4.J), so log lines on either side of a copyover
// can be correlated even though NodeID is reissued by the new process.
type record struct {
	id   string
	fd   int
	name string
	host string
}

// WriteHandoff force-saves every session in the playing or editing
// state and writes the handoff file (spec §4.J steps 3-5). It returns
// only an error; sessions whose save fails or that have no raw
// descriptor are left out of the file.
func WriteHandoff(sessions []*session.Session, hooks *world.Hooks) error {
	f, err := os.Create(HandoffPath)
	if err != nil {
		return fmt.Errorf("restart: creating handoff file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, s := range sessions {
		if s.State != session.Playing && s.State != session.Editing {
			continue
		}
		if hooks.SaveCharacter != nil {
			if err := hooks.SaveCharacter(s); err != nil {
				logging.Warn("restart: save failed for node %d: %v", s.NodeID, err)
				continue
			}
		}
		fd, err := descriptorOf(s)
		if err != nil {
			logging.Warn("restart: node %d has no durable descriptor: %v", s.NodeID, err)
			continue
		}
		name := playerName(s)
		fmt.Fprintf(w, "%s %d %s %s\n", s.ID, fd, name, s.PeerHost())
	}
	fmt.Fprintln(w, "-1")
	return w.Flush()
}

// playerName extracts a best-effort name from a session's opaque
// character handle for the handoff line; the game's reload hook is the
// authority that actually re-attaches state.
func playerName(s *session.Session) string {
	type named interface{ Name() string }
	if n, ok := s.Character.(named); ok {
		return n.Name()
	}
	return "-"
}

// descriptorOf extracts the raw file descriptor from a session's
// net.Conn so it survives exec. Only *net.TCPConn (via its SyscallConn)
// supports this; sessions over any other transport are dropped from the
// handoff, matching spec §4.J's "any descriptor that fails re-attach...
// is closed."
func descriptorOf(s *session.Session) (int, error) {
	sc, ok := s.Conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("connection does not expose a raw descriptor")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var fd int
	var ctrlErr error
	err = raw.Control(func(v uintptr) {
		dupFd, e := syscall.Dup(int(v))
		if e != nil {
			ctrlErr = e
			return
		}
		// Dup'd fds default to close-on-exec cleared on most platforms,
		// but clear it explicitly so the descriptor survives Exec.
		if cerr := unsetCloexec(dupFd); cerr != nil {
			ctrlErr = cerr
			return
		}
		fd = dupFd
	})
	if err != nil {
		return 0, err
	}
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// unsetCloexec clears FD_CLOEXEC on fd; CloseOnExec in the standard
// library only ever sets the flag, so it is undone here directly.
func unsetCloexec(fd int) error {
	_, _, errno := syscall.Syscall(syscall.SYS_FCNTL, uintptr(fd), syscall.F_SETFD, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// ReadHandoff parses the handoff file written by WriteHandoff.
func ReadHandoff(path string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "-1" {
			break
		}
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 4)
		if len(parts) != 4 {
			continue
		}
		fd, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		out = append(out, record{id: parts[0], fd: fd, name: parts[2], host: parts[3]})
	}
	return out, sc.Err()
}

// WriteSentinel marks that a restart is in progress. A new process can
// detect it with SentinelPresent; no restart is refused because of it.
func WriteSentinel() error {
	return os.WriteFile(SentinelPath, []byte("1"), 0o644)
}

// SentinelPresent reports whether a prior crash-restart left its guard
// file behind without being cleared.
func SentinelPresent() bool {
	_, err := os.Stat(SentinelPath)
	return err == nil
}

// ClearSentinel removes the crash-sentinel file once the new process
// has successfully recovered every session.
func ClearSentinel() {
	_ = os.Remove(SentinelPath)
}

// Exec re-invokes the server binary with the "recover" argv form (spec
// §4.J step 6): `{server, port, "recover", handoffPath}`.
func Exec(port int) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("restart: resolving self: %w", err)
	}
	argv := []string{self, strconv.Itoa(port), "recover", HandoffPath}
	env := os.Environ()
	return syscall.Exec(self, argv, env)
}

// reattachOrder is the fixed option re-offer sequence spec §9's resolved
// Open Question specifies for recovery: reset every option the client
// might still believe is active, then offer the full suite again in the
// server's normal preference order (newer compression first).
var reattachOrder = []byte{
	telnet.OptCompressV2,
	telnet.OptCompressV1,
	telnet.OptStatus,
	telnet.OptStructured,
	telnet.OptRichMarkup,
	telnet.OptNAWS,
	telnet.OptTermType,
}

// Recover reads the handoff file, re-binds each descriptor to a fresh
// Session via newSession, resets then re-offers every option, reloads
// the player through the game's hook, and places the session into
// Playing. A session whose character reload fails is sent a short
// apology message and closed; a record whose descriptor cannot be
// re-bound by newSession is logged and skipped, with no message sent.
func Recover(path string, handlers *telnet.HandlerSet, sink telnet.Sink, hooks *world.Hooks, newSession func(fd int) (*session.Session, error)) ([]*session.Session, error) {
	records, err := ReadHandoff(path)
	if err != nil {
		return nil, fmt.Errorf("restart: reading handoff file: %w", err)
	}
	defer os.Remove(path)

	var recovered []*session.Session
	for _, rec := range records {
		s, err := newSession(rec.fd)
		if err != nil {
			logging.Warn("restart: failed to re-attach fd %d for %q (id %s): %v", rec.fd, rec.name, rec.id, err)
			continue
		}
		if rec.id != "" {
			s.ID = rec.id
		}

		for _, opt := range reattachOrder {
			telnet.ResetOffer(sink, s, opt, opt == telnet.OptNAWS || opt == telnet.OptTermType)
		}
		for _, opt := range reattachOrder {
			if opt == telnet.OptNAWS || opt == telnet.OptTermType {
				telnet.OfferDo(sink, s, handlers, opt)
			} else {
				telnet.OfferWill(sink, s, handlers, opt)
			}
		}

		if hooks.ReloadCharacter != nil {
			if err := hooks.ReloadCharacter(s, rec.name); err != nil {
				logging.Warn("restart: reload failed for %q: %v", rec.name, err)
				_ = sink.WriteRaw(s, []byte("\r\nSorry, failed to restore your connection.\r\n"))
				s.MarkClosed(session.CloseRestart)
				_ = s.Close()
				continue
			}
		}
		s.State = session.Playing
		recovered = append(recovered, s)
	}
	return recovered, nil
}

// IsRecoverArgs reports whether argv requests the recover path, and if
// so returns the handoff path argument.
func IsRecoverArgs(args []string) (string, bool) {
	if len(args) >= 2 && args[0] == "recover" {
		return args[1], true
	}
	return "", false
}
