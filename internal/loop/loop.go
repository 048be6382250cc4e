// Package loop implements the tick scheduler / game loop (spec §4.I):
// the central orchestrator wiring byte I/O, telnet negotiation, the
// line assembler, the session state machine, the renderer, the
// compressor, and the opaque game hooks.
//
// Concurrency model: one blocking-read goroutine per session feeds raw
// bytes to a single loop goroutine over a channel (idiomatic Go,
// mirroring vision3's per-accept `go s.handleConnection(conn)`). All
// telnet parsing, line assembly, state transitions, rendering, and the
// tick() callback run exclusively on the loop goroutine, driven by a
// time.Ticker at the pulse cadence — the single-threaded, cooperative,
// no-preemption model spec §5 requires, realized without a raw
// select(2) over file descriptors.
package loop

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/dystopia-mud/mudcore/internal/admin"
	"github.com/dystopia-mud/mudcore/internal/compress"
	"github.com/dystopia-mud/mudcore/internal/config"
	"github.com/dystopia-mud/mudcore/internal/gmcp"
	"github.com/dystopia-mud/mudcore/internal/line"
	"github.com/dystopia-mud/mudcore/internal/logging"
	"github.com/dystopia-mud/mudcore/internal/protocol"
	"github.com/dystopia-mud/mudcore/internal/render"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
	"github.com/dystopia-mud/mudcore/internal/world"
)

type readEvent struct {
	nodeID int
	data   []byte
	err    error
}

// Loop is the single process-wide game loop. Exactly one goroutine
// (Run) ever touches session state outside the documented DNS cell; all
// other goroutines (per-session readers, the accept loop) only ever
// send on channels.
type Loop struct {
	listener  net.Listener
	registry  *session.Registry
	handlers  *telnet.HandlerSet
	gmcp      *gmcp.Handler
	assembler *line.Assembler
	hooks     *world.Hooks
	cfg       *config.Registry
	sink      telnet.Sink

	acceptCh chan net.Conn
	readCh   chan readEvent
	shutdown chan struct{}

	dirty map[int]bool

	idleWarnPulses, idleClosePulses int
}

// New builds a Loop bound to an already-listening socket, registering
// the full startup protocol suite (spec §6.2's option table) on a fresh
// HandlerSet.
func New(listener net.Listener, info world.ServerInfo, hooks *world.Hooks, cfg *config.Registry) *Loop {
	reg := session.NewRegistry()
	handlers := telnet.NewHandlerSet()

	rawConn := func(s *session.Session) io.Writer { return s.Conn }
	handlers.Register(protocol.NewCompressHandler(session.CompressV2, telnet.OptCompressV2, rawConn))
	handlers.Register(protocol.NewCompressHandler(session.CompressV1, telnet.OptCompressV1, rawConn))
	handlers.Register(protocol.NewEchoHandler())
	handlers.Register(protocol.NewSuppressGAHandler())
	handlers.Register(protocol.NewTermTypeHandler())
	handlers.Register(protocol.NewWindowSizeHandler())
	handlers.Register(protocol.NewRichMarkupHandler())
	handlers.Register(protocol.NewStatusHandler(info, time.Now(), hooks.StatusCounts))

	gmcpHandler := gmcp.NewHandler(info, hooks, func(s *session.Session) {
		w := telnet.NewWriter(compress.CurrentWriter(s, s.Conn))
		_ = w.WriteAllChunked(s.OutBuf[:s.OutTop])
		s.ResetOutput()
	}, info.MediaBaseURL != "")
	handlers.Register(gmcpHandler)

	return &Loop{
		listener:  listener,
		registry:  reg,
		handlers:  handlers,
		gmcp:      gmcpHandler,
		assembler: line.NewAssembler(),
		hooks:     hooks,
		cfg:       cfg,
		sink:      connSink{},
		acceptCh:  make(chan net.Conn, 8),
		readCh:    make(chan readEvent, 64),
		shutdown:  make(chan struct{}),
		dirty:     make(map[int]bool),
	}
}

// Handlers returns the shared option handler set, for restart.Recover's
// reset-then-offer sequence (spec §4.J).
func (l *Loop) Handlers() *telnet.HandlerSet { return l.handlers }

// Sink returns the byte sink every handler writes through, for
// restart.Recover.
func (l *Loop) Sink() telnet.Sink { return l.sink }

// NextNodeID reserves the next session identifier, for sessions built
// outside onAccept (restart recovery).
func (l *Loop) NextNodeID() int { return l.registry.NextNodeID() }

// Sessions returns every live session, ordered by NodeID, for
// restart.WriteHandoff.
func (l *Loop) Sessions() []*session.Session { return l.registry.ListActive() }

// Adopt registers a session built outside onAccept (restart recovery)
// and starts its reader goroutine. Unlike onAccept, it does not send
// startup offers: restart.Recover has already issued the reattach
// sequence before calling this.
func (l *Loop) Adopt(s *session.Session) {
	l.registry.Register(s)
	go l.readerGoroutine(s)
}

// sendStartupOffers issues every offer a freshly accepted session
// receives, in the fixed order spec §4.C and §9's resolved Open
// Question specify: newer compression before older, then the
// capability-discovery options, then the client-driven options.
func (l *Loop) sendStartupOffers(s *session.Session) {
	telnet.OfferWill(l.sink, s, l.handlers, telnet.OptCompressV2)
	telnet.OfferWill(l.sink, s, l.handlers, telnet.OptCompressV1)
	telnet.OfferWill(l.sink, s, l.handlers, telnet.OptStatus)
	telnet.OfferWill(l.sink, s, l.handlers, telnet.OptStructured)
	telnet.OfferWill(l.sink, s, l.handlers, telnet.OptRichMarkup)
	telnet.OfferDo(l.sink, s, l.handlers, telnet.OptNAWS)
	telnet.OfferDo(l.sink, s, l.handlers, telnet.OptTermType)
}

// dispatchCoreCommand handles the two admin verbs spec §6.7 reserves to
// the core itself, ahead of the game's own interpreter: `protocols`
// reports negotiated-option state, `cfg` reaches internal/config's
// registry CLI. It reports whether ln was one of these two verbs.
func (l *Loop) dispatchCoreCommand(s *session.Session, ln string) bool {
	fields := strings.Fields(ln)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "protocols":
		s.AppendOutput([]byte(admin.Protocols(s, l.handlers)))
		return true
	case "cfg":
		out := config.Command(l.cfg, fields[1:])
		if !strings.HasSuffix(out, "\r\n") {
			out += "\r\n"
		}
		s.AppendOutput([]byte(out))
		return true
	}
	return false
}

// Shutdown requests the loop drain and exit at the end of the current
// pulse (spec §4.I: "A callback may request teardown by setting the
// shutdown flag").
func (l *Loop) Shutdown() {
	select {
	case <-l.shutdown:
	default:
		close(l.shutdown)
	}
}

// Run drives the accept loop and the pulse ticker until Shutdown is
// called or ctx is canceled.
func (l *Loop) Run(ctx context.Context) {
	go l.acceptLoop()

	l.idleWarnPulses = l.cfg.GetByEnum(config.IdleWarnPulses)
	l.idleClosePulses = l.idleWarnPulses + l.cfg.GetByEnum(config.IdleCloseExtraPulses)

	pulseRate := l.cfg.GetByEnum(config.PulseRate)
	if pulseRate <= 0 {
		pulseRate = 4
	}
	mult := l.cfg.GetByEnum(config.TickMultiplier)
	if mult <= 0 {
		mult = 1
	}
	period := time.Duration(mult) * time.Second / time.Duration(pulseRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			l.drainAndClose()
			return
		case conn := <-l.acceptCh:
			l.onAccept(conn)
		case ev := <-l.readCh:
			l.onRead(ev)
		case <-ticker.C:
			l.pulse()
		}
	}
}

func (l *Loop) acceptLoop() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.shutdown:
				return
			default:
				logging.Warn("accept: %v", err)
				continue
			}
		}
		select {
		case l.acceptCh <- conn:
		case <-l.shutdown:
			conn.Close()
			return
		}
	}
}

func (l *Loop) onAccept(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetLinger(0)
	}
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	nodeID := l.registry.NextNodeID()
	s := session.NewSession(nodeID, conn, host)
	l.registry.Register(s)
	logging.Info("node %d: connection from %s", nodeID, logging.MaskHost(host))

	go l.startDNSLookup(s)

	l.sendStartupOffers(s)
	go l.readerGoroutine(s)
}

// startDNSLookup issues a reverse lookup on a throwaway worker
// goroutine; its only externally visible effect is the single
// ResolveHostAsync pointer write (spec §5).
func (l *Loop) startDNSLookup(s *session.Session) {
	names, err := net.LookupAddr(s.PeerHostInitial)
	if err != nil || len(names) == 0 {
		return
	}
	s.ResolveHostAsync(names[0])
}

func (l *Loop) readerGoroutine(s *session.Session) {
	buf := make([]byte, session.RecvBufSize)
	for {
		n, err := s.Conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case l.readCh <- readEvent{nodeID: s.NodeID, data: data}:
			case <-l.shutdown:
				return
			}
		}
		if err != nil {
			select {
			case l.readCh <- readEvent{nodeID: s.NodeID, err: err}:
			case <-l.shutdown:
			}
			return
		}
	}
}

func (l *Loop) onRead(ev readEvent) {
	s := l.registry.Get(ev.nodeID)
	if s == nil || s.Closed() {
		return
	}
	if ev.err != nil {
		if telnet.IsGracefulClose(ev.err) {
			s.MarkClosed(session.ClosePeerEOF)
		} else {
			logging.Warn("node %d: read error from %s: %v", s.NodeID, logging.MaskHost(s.PeerHost()), ev.err)
			s.MarkClosed(session.ClosePeerIOError)
		}
		return
	}
	l.markDirty(s.NodeID)
	plain := telnet.ProcessInbound(l.sink, s, l.handlers, ev.data)
	if len(plain) == 0 {
		return
	}
	lines := l.assembler.Feed(s, plain)
	for _, ln := range lines {
		if s.Closed() {
			break
		}
		s.IdleTicks = 0
		if s.State == session.Playing && l.dispatchCoreCommand(s, ln) {
			continue
		}
		session.Dispatch(s, ln, l.hooks.Nanny, l.hooks.Interpret)
	}
	if len(lines) > 0 || s.OutTop > 0 {
		// Immediately flush so prompts arrive before the next input (spec
		// §4.I step 4); the prompt itself must be appended here, since by
		// the time pulse's write phase runs this buffer is already empty.
		l.maybePage(s)
		l.appendPromptIfDue(s)
		l.flushSession(s)
	}
	if len(lines) > 0 && !s.Closed() {
		// After the text response is on the wire: push any structured
		// updates the command may have changed (spec §4.E).
		l.emitGMCPSnapshot(s)
	}
}

// appendPromptIfDue appends the playing-state prompt for s if output
// was produced, per the "exactly one prompt per pulse of input that
// produced output" invariant (spec §8.5). Safe to call unconditionally:
// it is a no-op once maybePage has moved s out of the playing state.
func (l *Loop) appendPromptIfDue(s *session.Session) {
	if s.State != session.Playing {
		return
	}
	hadOutput := s.OutTop > 0
	var gameRender string
	if l.hooks.RenderPrompt != nil {
		gameRender = l.hooks.RenderPrompt(s)
	}
	render.AppendPrompt(l.sink, s, l.promptStats(s), hadOutput, gameRender)
}

// promptStats reads the game's vitals hook for the compact prompt's
// color-scaled numbers; absent a hook, the prompt renders an empty pair.
func (l *Loop) promptStats(s *session.Session) render.PromptStats {
	if l.hooks.Vitals == nil {
		return render.PromptStats{}
	}
	v := l.hooks.Vitals(s)
	return render.PromptStats{
		HP: v.HP, MaxHP: v.MaxHP,
		Mana: v.Mana, MaxMana: v.MaxMana,
		Move: v.Move, MaxMove: v.MaxMove,
	}
}

// emitGMCPSnapshot pushes Char.Vitals and Room.Info to s if the peer
// has announced the corresponding package (spec §4.E), driven from
// wherever fresh state might exist: after a dispatched command here,
// and once per pulse from tick() in pulse() below.
func (l *Loop) emitGMCPSnapshot(s *session.Session) {
	if !s.Protocol.GMCPEnabled || s.State != session.Playing {
		return
	}
	if s.Protocol.PackageMask&gmcp.PkgCharVitals != 0 && l.hooks.Vitals != nil {
		v := l.hooks.Vitals(s)
		l.gmcp.EmitCharVitals(l.sink, s, gmcp.Vitals{
			HP: v.HP, MaxHP: v.MaxHP,
			Mana: v.Mana, MaxMana: v.MaxMana,
			Move: v.Move, MaxMove: v.MaxMove,
		})
	}
	if s.Protocol.PackageMask&gmcp.PkgRoomInfo != 0 && l.hooks.RoomInfo != nil {
		r := l.hooks.RoomInfo(s)
		l.gmcp.EmitRoomInfo(l.sink, s, gmcp.RoomInfo{
			Num: r.Num, Name: r.Name, Area: r.Area, Terrain: r.Terrain, Exits: r.Exits,
		})
	}
}

// maybePage opens a pager over s's pending output when it spans more
// lines than the client's window height (spec §4.H "output exceeded one
// screen"). The first screenful stays in the output buffer, followed by
// a "-- more --" prompt; the rest is held for dispatchPager.
func (l *Loop) maybePage(s *session.Session) {
	if s.State != session.Playing || s.OutTop == 0 {
		return
	}
	height := s.Protocol.Height
	if height <= 0 {
		height = 24
	}
	text := string(s.OutBuf[:s.OutTop])
	if strings.Count(text, "\n") <= height {
		return
	}
	cut := cutAfterLine(text, height)
	s.ResetOutput()
	s.AppendOutput([]byte(text[:cut]))
	session.OpenPager(s, text[cut:])
	s.AppendOutput([]byte("-- more --\r\n"))
}

// cutAfterLine returns the byte offset in text immediately after the
// n-th newline, or len(text) if text has n or fewer lines.
func cutAfterLine(text string, n int) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			count++
			if count == n {
				return i + 1
			}
		}
	}
	return len(text)
}

// pulse runs one full pulse: tick the game, then flush, prompt, and
// reap every session (spec §4.I steps 3-7).
func (l *Loop) pulse() {
	for _, s := range l.registry.ListActive() {
		if s.Closed() {
			continue
		}
		if !l.dirty[s.NodeID] {
			s.IdleTicks++
			if s.IdleTicks == l.idleWarnPulses {
				s.AppendOutput([]byte("\r\n*** You have been idle a while. ***\r\n"))
			} else if s.IdleTicks >= l.idleClosePulses {
				s.MarkClosed(session.CloseIdleTimeout)
			}
		}
		l.dirty[s.NodeID] = false
	}

	if l.hooks.Tick != nil {
		l.hooks.Tick()
	}

	for _, s := range l.registry.ListActive() {
		if s.Closed() {
			continue
		}
		l.maybePage(s)
		l.appendPromptIfDue(s)
		l.flushSession(s)
		l.emitGMCPSnapshot(s)
	}

	l.reapClosed()
}

// flushSession writes a session's pending output buffer to the wire
// through the compressor, if any, and resets the buffer (spec §4.I
// step 4 "immediately flush", step 6 write phase).
func (l *Loop) flushSession(s *session.Session) {
	if s.OutTop == 0 {
		return
	}
	w := telnet.NewWriter(compress.CurrentWriter(s, s.Conn))
	if err := w.WriteAllChunked(s.OutBuf[:s.OutTop]); err != nil {
		logging.Warn("node %d: write error: %v", s.NodeID, err)
		s.MarkClosed(session.ClosePeerIOError)
	}
	_ = compress.FlushIfActive(s)
	s.ResetOutput()
}

func (l *Loop) reapClosed() {
	for _, s := range l.registry.ListActive() {
		if !s.Closed() {
			continue
		}
		if l.hooks.SaveCharacter != nil && (s.State == session.Playing || s.State == session.Editing) {
			if err := l.hooks.SaveCharacter(s); err != nil {
				logging.Warn("node %d: save on close failed: %v", s.NodeID, err)
			}
		}
		if l.hooks.FreeCharacter != nil {
			l.hooks.FreeCharacter(s)
		}
		compress.FinalizeOnClose(s)
		logging.Info("node %d: closing: %s", s.NodeID, s.CloseReason)
		_ = s.Close()
		l.registry.Unregister(s.NodeID)
	}
}

func (l *Loop) drainAndClose() {
	for _, s := range l.registry.ListActive() {
		l.flushSession(s)
		s.MarkClosed(session.CloseAdminKick)
	}
	l.reapClosed()
}

// markDirty is invoked by onRead via the registry lookup; kept separate
// so pulse's idle accounting only fires for sessions with no activity.
func (l *Loop) markDirty(nodeID int) { l.dirty[nodeID] = true }
