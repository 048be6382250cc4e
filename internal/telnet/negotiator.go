package telnet

import (
	"log"

	"github.com/dystopia-mud/mudcore/internal/session"
)

type scanState int

const (
	stateData scanState = iota
	stateIAC
	stateWill
	stateWont
	stateDo
	stateDont
	stateSB
	stateSBData
	stateSBIAC
)

// optionState is the per-option, per-session negotiation state. Spec
// §4.C: "the core only needs enough state to avoid negotiation loops; it
// tracks local WILL offers and remote WILL advertisements explicitly."
type optionState struct {
	localActive  bool // we have WILL'd (or DO'd) this option and it's in effect
	localOffered bool // we've sent our offer and are awaiting a reply
	remoteActive bool // the peer has agreed (DO, or WILL for client-driven options)
}

// Negotiator is the per-session IAC parser and option-state tracker
// (spec §4.C). One is created per Session and stored on
// session.Session.NegState.
type Negotiator struct {
	handlers *HandlerSet

	state    scanState
	sbOption byte
	sbBuf    []byte
	sbBad    bool // malformed marker: a non-IAC, non-IAC-doubled byte followed IAC inside SB

	opts [256]optionState

	loggedMalformedSubneg bool // log malformed subnegotiations once per session
}

// NewNegotiator creates a Negotiator bound to the shared handler set.
func NewNegotiator(handlers *HandlerSet) *Negotiator {
	return &Negotiator{handlers: handlers}
}

func negotiatorFor(s *session.Session, handlers *HandlerSet) *Negotiator {
	if n, ok := s.NegState.(*Negotiator); ok {
		return n
	}
	n := NewNegotiator(handlers)
	s.NegState = n
	return n
}

// ProcessInbound scans raw telnet-escaped bytes read from the socket and
// returns the plain data bytes to hand to the input line assembler. All
// of raw is consumed into the state machine on every call; an in-progress
// subnegotiation simply waits in stateSB/stateSBData for the next call
// when IAC SE has not yet arrived, per spec §8's boundary behavior.
func ProcessInbound(sink Sink, s *session.Session, handlers *HandlerSet, raw []byte) []byte {
	n := negotiatorFor(s, handlers)
	out := make([]byte, 0, len(raw))

	for _, b := range raw {
		switch n.state {
		case stateData:
			if b == IAC {
				n.state = stateIAC
			} else {
				out = append(out, b)
			}

		case stateIAC:
			switch b {
			case IAC:
				out = append(out, 0xFF)
				n.state = stateData
			case WILL:
				n.state = stateWill
			case WONT:
				n.state = stateWont
			case DO:
				n.state = stateDo
			case DONT:
				n.state = stateDont
			case SB:
				n.state = stateSB
			case GA:
				n.state = stateData // consumed silently
			default:
				n.state = stateData // NOP and other single-byte commands
			}

		case stateWill:
			n.handleWill(sink, s, b)
			n.state = stateData
		case stateWont:
			n.handleWont(sink, s, b)
			n.state = stateData
		case stateDo:
			n.handleDo(sink, s, b)
			n.state = stateData
		case stateDont:
			n.handleDont(sink, s, b)
			n.state = stateData

		case stateSB:
			n.sbOption = b
			n.sbBuf = n.sbBuf[:0]
			n.sbBad = false
			n.state = stateSBData

		case stateSBData:
			if b == IAC {
				n.state = stateSBIAC
			} else if len(n.sbBuf) < SubnegCap {
				n.sbBuf = append(n.sbBuf, b)
			}
			// else: oversized subnegotiations are silently capped here;
			// finalization below still logs and discards.

		case stateSBIAC:
			switch b {
			case SE:
				n.finishSubneg(sink, s)
				n.state = stateData
			case IAC:
				if len(n.sbBuf) < SubnegCap {
					n.sbBuf = append(n.sbBuf, IAC)
				}
				n.state = stateSBData
			default:
				// IAC X where X is neither SE nor IAC: malformed, per spec
				// §4.C. Terminate the payload as malformed and resume
				// scanning data from this byte's successor.
				n.sbBad = true
				n.finishSubneg(sink, s)
				n.state = stateData
			}
		}
	}
	return out
}

func (n *Negotiator) finishSubneg(sink Sink, s *session.Session) {
	opt := n.sbOption
	oversized := len(n.sbBuf) >= SubnegCap
	if n.sbBad || oversized {
		if !n.loggedMalformedSubneg {
			log.Printf("WARN: telnet: node %d dropped malformed/oversized subnegotiation for option %d", s.NodeID, opt)
			n.loggedMalformedSubneg = true
		}
		return
	}
	h := n.handlers.Get(opt)
	if h == nil {
		return
	}
	payload := make([]byte, len(n.sbBuf))
	copy(payload, n.sbBuf)
	h.OnSubneg(sink, s, payload)
}

// handleWill processes a peer WILL <opt>: the peer is offering, or
// confirming, an option.
func (n *Negotiator) handleWill(sink Sink, s *session.Session, opt byte) {
	st := &n.opts[opt]
	h := n.handlers.Get(opt)
	if h == nil {
		sendCmd(sink, s, DONT, opt)
		return
	}
	if st.remoteActive {
		h.OnAgreement(sink, s, AlreadyOn, st.localOffered)
		return
	}
	st.remoteActive = true
	h.OnAgreement(sink, s, Activated, st.localOffered)
}

// handleWont processes a peer WONT <opt>: refusal or disabling.
func (n *Negotiator) handleWont(sink Sink, s *session.Session, opt byte) {
	st := &n.opts[opt]
	if !st.remoteActive {
		return
	}
	st.remoteActive = false
	if h := n.handlers.Get(opt); h != nil {
		h.OnAgreement(sink, s, Deactivated, st.localOffered)
	}
}

// handleDo processes a peer DO <opt>: the peer is asking us to enable an
// option we control, or confirming one we offered.
func (n *Negotiator) handleDo(sink Sink, s *session.Session, opt byte) {
	st := &n.opts[opt]
	h := n.handlers.Get(opt)
	if h == nil {
		sendCmd(sink, s, WONT, opt)
		return
	}
	if st.localActive {
		h.OnAgreement(sink, s, AlreadyOn, true)
		return
	}
	st.localActive = true
	st.localOffered = false
	h.OnAgreement(sink, s, Activated, true)
}

// handleDont processes a peer DONT <opt>.
func (n *Negotiator) handleDont(sink Sink, s *session.Session, opt byte) {
	st := &n.opts[opt]
	if !st.localActive && !st.localOffered {
		return
	}
	wasActive := st.localActive
	st.localActive = false
	st.localOffered = false
	if wasActive {
		if h := n.handlers.Get(opt); h != nil {
			h.OnAgreement(sink, s, Deactivated, true)
		}
	}
}

// OfferWill sends IAC WILL <opt> and records that we're awaiting a reply.
func OfferWill(sink Sink, s *session.Session, handlers *HandlerSet, opt byte) {
	n := negotiatorFor(s, handlers)
	n.opts[opt].localOffered = true
	sendCmd(sink, s, WILL, opt)
}

// OfferDo sends IAC DO <opt> (used for client-driven options like NAWS
// and TERM-TYPE where the server asks the client to activate).
func OfferDo(sink Sink, s *session.Session, handlers *HandlerSet, opt byte) {
	n := negotiatorFor(s, handlers)
	n.opts[opt].localOffered = true
	sendCmd(sink, s, DO, opt)
}

// ResetOffer sends IAC WONT/DONT for opt, used by the restart handler's
// reset-then-offer sequence (spec §9, resolved Open Question).
func ResetOffer(sink Sink, s *session.Session, opt byte, wasDo bool) {
	if wasDo {
		sendCmd(sink, s, DONT, opt)
	} else {
		sendCmd(sink, s, WONT, opt)
	}
}

func sendCmd(sink Sink, s *session.Session, cmd, opt byte) {
	_ = sink.WriteRaw(s, []byte{IAC, cmd, opt})
}

// EncodeSubneg frames a payload as IAC SB <opt> <payload, IAC-doubled>
// IAC SE, for outgoing subnegotiations (spec §4.C send path).
func EncodeSubneg(opt byte, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, IAC, SB, opt)
	for _, b := range payload {
		if b == IAC {
			out = append(out, IAC, IAC)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, IAC, SE)
	return out
}

// IsOptionActive reports whether opt is currently active in either
// direction for s (used by the `protocols` admin command and handlers).
func IsOptionActive(s *session.Session, handlers *HandlerSet, opt byte) (local, remote bool) {
	n := negotiatorFor(s, handlers)
	return n.opts[opt].localActive, n.opts[opt].remoteActive
}
