package telnet

import "github.com/dystopia-mud/mudcore/internal/session"

// Sink is how the negotiator and its handlers emit bytes back to the
// peer. Implementations fall through an optional per-session compressor
// before the bytes reach the socket (spec §4.A/§4.B): everything written
// through Sink after compression starts is wrapped, including further
// negotiation replies, exactly like the original's write_to_descriptor
// being the sole exit point for both game output and protocol bytes.
type Sink interface {
	WriteRaw(s *session.Session, b []byte) error
}

// Handler is the per-option protocol handler contract from spec §4.D.
// Implementations may not block or perform I/O directly; they emit
// output via Sink, which writes it to the peer immediately rather than
// queuing it in the session's output buffer. Calling OnAgreement with
// AlreadyOn must be a no-op.
type Handler interface {
	// Option returns the telnet option number this handler owns.
	Option() byte
	// OnAgreement is invoked when the negotiated state of this option
	// changes for a session (the peer agreed, refused, or it was
	// already active).
	OnAgreement(sink Sink, s *session.Session, change AgreementChange, weOffered bool)
	// OnSubneg is invoked with an unescaped subnegotiation payload for
	// this option.
	OnSubneg(sink Sink, s *session.Session, payload []byte)
	// Label returns the name used by the `protocols` admin command.
	Label() string
}

// HandlerSet is the shared, process-wide registry of option handlers,
// populated once at startup (spec §4.C: "Each handler is registered at
// startup").
type HandlerSet struct {
	byOption map[byte]Handler
}

// NewHandlerSet creates an empty handler registry.
func NewHandlerSet() *HandlerSet {
	return &HandlerSet{byOption: make(map[byte]Handler)}
}

// Register adds h under its own Option().
func (hs *HandlerSet) Register(h Handler) {
	hs.byOption[h.Option()] = h
}

// Get returns the handler for an option number, or nil if unsupported.
func (hs *HandlerSet) Get(opt byte) Handler {
	return hs.byOption[opt]
}

// All returns every registered handler, in no particular order, for
// `protocols` reporting.
func (hs *HandlerSet) All() []Handler {
	out := make([]Handler, 0, len(hs.byOption))
	for _, h := range hs.byOption {
		out = append(out, h)
	}
	return out
}
