package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Buffer sizing constants from spec §3.
const (
	RecvBufSize     = 4096 // receive buffer capacity
	RecvBufHeadroom = 10   // bytes of headroom reserved on read
	LineSlotSize    = 256  // bounded input line length
	LineCap         = 254  // "Line too long." threshold

	OutBufInitial = 2048       // output buffer starting capacity
	OutBufCeiling = 256 * 1024 // hard ceiling; crossing it forces disconnect
	WriteChunkMax = 4096       // max bytes per underlying Write call

	SubnegCap = 2048 // telnet subnegotiation scratch area cap

	RepeatEscalation = 20 // consecutive "!" repeats before force-quit
)

// CharacterHandle is an opaque reference to whatever game object a
// session currently controls. The core never dereferences it.
type CharacterHandle any

// EditorState is the owned state of the line-oriented text editor
// sub-state (spec §4.H editor sub-protocol). Mutually exclusive with
// Pager and the note-writer states.
type EditorState struct {
	Lines       []string // up to EditorMaxLines, each up to EditorMaxCols
	CurrentLine int      // 1-based current line index
}

const (
	EditorMaxLines = 50
	EditorMaxCols  = 80
)

// PagerState is the owned state of a paged ("more"-style) output reader.
type PagerState struct {
	Held   string // remaining held text
	Offset int    // reader offset into Held
}

// NoteState holds the in-progress fields of a note being composed across
// the note-to/note-subject/note-expire/note-text/note-finish states.
type NoteState struct {
	To     string
	Subject string
	Expire  int // days, 0 = never; only reachable via the privileged path
	Lines   []string
}

// dnsStatus is the single-writer/no-lock status cell for the asynchronous
// reverse-DNS lookup described in spec §5: the lookup worker goroutine
// writes the resolved host string once and then flips status to
// dnsDone; the loop goroutine only reads Host after observing dnsDone.
type dnsStatus int32

const (
	dnsPending dnsStatus = iota
	dnsDone
)

// ProtocolState is the per-session negotiated-option state described in
// spec §3 "Per-protocol state".
type ProtocolState struct {
	Compressor Compressor

	RichMarkupEnabled bool
	RichMarkupLocked  bool // default parser mode locked once rich-markup activates

	GMCPEnabled    bool
	PackageMask    uint64 // bit flags, see internal/gmcp
	ClientName     string
	ClientVersion  string
	MediaHelloSent bool // Client.Media.Default sent once

	TermType string // cached terminal-type string, "" until negotiated

	Width, Height int // NAWS-reported window, default 80x24 until advertised

	ColorEnabled     bool // per-session color on/off
	ScreenReaderMode bool
	NeedsGoAhead     bool // peer advertised SGA refusal -> GA required after prompt
	CustomPromptTmpl string
	ForceBlankPrompt bool
}

// Session is the long-lived record attached to one TCP socket (spec §3).
// The connection manager exclusively owns every session from accept
// until final close; no other goroutine mutates Session fields except
// through the documented single-writer cells (dnsHost/dnsStatus).
type Session struct {
	NodeID int

	// ID is a process-lifetime-spanning identifier: stable across a
	// copyover restart (carried through the handoff record, spec §4.J),
	// so restart log lines can be traced to the same logical connection
	// across an exec boundary even though NodeID is reissued. It is not
	// included in structured-messaging payloads.
	ID string

	Conn net.Conn

	dnsHost   atomic.Value // string
	dnsStatus atomic.Int32

	PeerHostInitial string // dotted-quad, set at accept time

	// RecvPending counts raw bytes received since the last line
	// terminator, standing in for the fill level of the bounded receive
	// buffer (spec §3/§4.A): it is what input-overflow detection checks
	// against RecvBufSize-RecvBufHeadroom.
	RecvPending int

	LineBuf     [LineSlotSize]byte
	LineLen     int
	LineReady   bool // a completed line is waiting for consumption
	LineTooLong bool // line cap was hit; rest of the physical line is discarded

	OutBuf []byte
	OutTop int

	State     State
	PrevState State // for pager resume

	Editor *EditorState
	Pager  *PagerState
	Note   *NoteState

	Character         CharacterHandle
	OriginalCharacter CharacterHandle // set during a "switch" operation

	SnoopTargetID int // NodeID of session this one snoops on the output of, 0 = none

	Protocol ProtocolState

	// CompressorStream holds the active *compress.Stream (internal/compress),
	// typed any here to avoid an import cycle; nil when Protocol.Compressor
	// is CompressNone.
	CompressorStream any

	// Telnet negotiator scratch state lives in internal/telnet's Negotiator,
	// one per Session, referenced here so the loop can drive it.
	NegState any

	RepeatLastLine string // last non-"!" line, for "!"-repeat
	RepeatRun      int    // consecutive "!" repeats this session

	IdleTicks int

	StartTime    time.Time
	LastActivity time.Time

	CloseReason CloseReason
	closeOnce   sync.Once
	closed      bool
}

// NewSession constructs a Session in its initial ResolvingName state with
// default buffer sizes and 80x24 window dimensions.
func NewSession(nodeID int, conn net.Conn, peerHost string) *Session {
	s := &Session{
		NodeID:          nodeID,
		ID:              uuid.NewString(),
		Conn:            conn,
		PeerHostInitial: peerHost,
		OutBuf:          make([]byte, OutBufInitial),
		State:           ResolvingName,
		StartTime:       time.Now(),
		LastActivity:    time.Now(),
	}
	s.Protocol.Width = 80
	s.Protocol.Height = 24
	s.Protocol.ColorEnabled = true
	s.dnsHost.Store(peerHost)
	return s
}

// PeerHost returns the best currently-known peer host string: the
// resolved name if the DNS worker has finished, otherwise the dotted
// quad recorded at accept time. Safe to call from the loop goroutine
// without locking (spec §5: single pointer write, read after status flip).
func (s *Session) PeerHost() string {
	if s.DNSResolved() {
		if v := s.dnsHost.Load(); v != nil {
			return v.(string)
		}
	}
	return s.PeerHostInitial
}

// ResolveHostAsync is called from a throwaway DNS worker goroutine to
// publish a resolved hostname. It must be called at most once per
// session. No lock is used; this is the session's only cross-goroutine
// write outside the read channel.
func (s *Session) ResolveHostAsync(host string) {
	s.dnsHost.Store(host)
	s.dnsStatus.Store(int32(dnsDone))
}

// DNSResolved reports whether the asynchronous reverse lookup has
// completed (spec §4.H: resolving-name -> get-name on completion or timeout).
func (s *Session) DNSResolved() bool {
	return dnsStatus(s.dnsStatus.Load()) == dnsDone
}

// GrowOutput doubles the output buffer's capacity, up to OutBufCeiling.
// Returns false if the buffer is already at the ceiling and cannot grow
// further, per the invariant 0 <= outtop <= capacity <= ceiling.
func (s *Session) GrowOutput() bool {
	if len(s.OutBuf) >= OutBufCeiling {
		return false
	}
	newCap := len(s.OutBuf) * 2
	if newCap > OutBufCeiling {
		newCap = OutBufCeiling
	}
	grown := make([]byte, newCap)
	copy(grown, s.OutBuf[:s.OutTop])
	s.OutBuf = grown
	return true
}

// AppendOutput appends bytes to the session's output buffer, growing it
// as needed. Returns false (and marks the session for close with
// CloseOutputOverflow) if the data cannot fit even after growing to the
// ceiling.
func (s *Session) AppendOutput(b []byte) bool {
	for s.OutTop+len(b) > len(s.OutBuf) {
		if len(s.OutBuf) >= OutBufCeiling {
			s.MarkClosed(CloseOutputOverflow)
			return false
		}
		if !s.GrowOutput() {
			s.MarkClosed(CloseOutputOverflow)
			return false
		}
	}
	copy(s.OutBuf[s.OutTop:], b)
	s.OutTop += len(b)
	return true
}

// ResetOutput clears the output buffer write position without
// reallocating, called after a successful flush.
func (s *Session) ResetOutput() {
	s.OutTop = 0
}

// MarkClosed records the first close reason for this session. The loop
// dispatches no further input to a session once it is marked; output
// already queued in the same read is still flushed before the loop reaps
// it. MarkClosed is idempotent, and its socket is closed exactly once via
// Close.
func (s *Session) MarkClosed(reason CloseReason) {
	if s.closed {
		return
	}
	s.closed = true
	s.CloseReason = reason
}

// Closed reports whether the session has been marked for close.
func (s *Session) Closed() bool {
	return s.closed
}

// Close closes the underlying socket exactly once, regardless of how
// many call sites observed the close condition.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Conn.Close()
	})
	return err
}
