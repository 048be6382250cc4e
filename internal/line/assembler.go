// Package line implements the input line assembler (spec §4.G): moves
// post-telnet bytes into a per-session line-of-work slot, handling
// backspace, the line-length cap, and "!"-repeat with its force-quit
// escalation.
package line

import (
	"github.com/dystopia-mud/mudcore/internal/logging"
	"github.com/dystopia-mud/mudcore/internal/session"
)

const (
	backspace = 0x08
	del       = 0x7f
)

// recvBufCapacity is the bound on bytes accumulated since the last line
// terminator, standing in for the raw receive buffer's free capacity
// (spec §4.A: "up to the receive buffer's free capacity minus 10 bytes
// of headroom"). In this realization's per-session-goroutine pipeline
// (see internal/loop), the telnet layer hands already-unescaped bytes
// straight to the assembler rather than leaving them sitting in a
// session-owned byte buffer between reads, so Session.RecvPending
// tracks the same bound as a running counter instead.
const recvBufCapacity = session.RecvBufSize - session.RecvBufHeadroom

// Assembler holds no state of its own; all state lives on the Session
// (spec §3: the connection manager owns every session field).
type Assembler struct{}

func NewAssembler() *Assembler { return &Assembler{} }

// Feed processes newly-available plain (post-telnet) bytes for s and
// returns zero or more completed lines extracted from them, in order.
// A line still in progress at the end of data remains buffered on s for
// the next call (spec §4.G: "if neither is present, leave the partial
// data... for the next pulse").
func (a *Assembler) Feed(s *session.Session, data []byte) []string {
	var lines []string
	skipLF := false

	for _, b := range data {
		if skipLF && b == '\n' {
			skipLF = false
			continue
		}
		skipLF = false

		switch {
		case b == '\r' || b == '\n':
			if b == '\r' {
				skipLF = true
			}
			s.RecvPending = 0
			lines = append(lines, a.finishLine(s)...)

		case b == backspace || b == del:
			if s.LineLen > 0 {
				s.LineLen--
			}

		case b != '\t' && (b < 0x20 || b == 0x7f):
			// non-printable outside the telnet escape machinery: ignore.
			// \t is exempted (spec §6.2) and falls through to default.

		default:
			s.RecvPending++
			if s.RecvPending > recvBufCapacity {
				overflowClose(s)
				return lines
			}
			if s.LineLen >= session.LineCap {
				s.LineTooLong = true
				continue
			}
			s.LineBuf[s.LineLen] = b
			s.LineLen++
		}
	}
	return lines
}

// overflowClose implements spec §4.A's input-overflow policy and §8
// scenario 2: a peer that fills the receive buffer without ever sending
// a newline is warned once, then force-closed. No line is delivered to
// the session-state dispatcher for this call.
func overflowClose(s *session.Session) {
	s.AppendOutput([]byte("\n\r*** PUT A LID ON IT!!! ***\n\r"))
	logging.Warn("node %d: input overflow from %s", s.NodeID, logging.MaskHost(s.PeerHost()))
	s.MarkClosed(session.CloseInputOverflow)
	s.LineLen = 0
	s.LineTooLong = false
	s.RecvPending = 0
}

// finishLine finalizes whatever is in s's line slot as a completed
// line, applying the "!"-repeat rule, and resets the slot for the next
// line.
func (a *Assembler) finishLine(s *session.Session) []string {
	tooLong := s.LineTooLong
	raw := string(s.LineBuf[:s.LineLen])
	s.LineLen = 0
	s.LineTooLong = false

	if tooLong {
		s.AppendOutput([]byte("Line too long.\r\n"))
		return nil
	}

	if raw == "!" {
		if s.RepeatLastLine == "" {
			return []string{""}
		}
		s.RepeatRun++
		if s.RepeatRun >= session.RepeatEscalation {
			s.MarkClosed(session.CloseInputOverflow)
			return nil
		}
		return []string{s.RepeatLastLine}
	}

	s.RepeatRun = 0
	s.RepeatLastLine = raw
	return []string{raw}
}
