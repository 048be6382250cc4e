// Package render implements the output renderer (spec §4.F): the
// `#`-prefixed markup mini-language, session-dependent color/rich-markup/
// screen-reader translation, trailing color reset, prompt insertion, and
// snoop fan-out.
package render

import (
	"math/rand"

	"github.com/dystopia-mud/mudcore/internal/session"
)

// Translate converts a markup byte string from the game callback into
// the final bytes for s's output buffer, applying color stripping,
// screen-reader space collapsing, and rich-markup translation according
// to s's per-session flags. The caller is responsible for appending the
// result to s's output buffer (see Send).
func Translate(s *session.Session, markup []byte) []byte {
	out := make([]byte, 0, len(markup)+4)
	colorOn := s.Protocol.ColorEnabled
	richOn := s.Protocol.RichMarkupEnabled

	for i := 0; i < len(markup); i++ {
		b := markup[i]
		if b != '#' || i+1 >= len(markup) {
			out = append(out, b)
			continue
		}
		c := markup[i+1]
		switch {
		case c == '#':
			out = append(out, '#')
			i++
		case c == '-':
			out = append(out, '~')
			i++
		case c == '+':
			out = append(out, '%')
			i++
		case c == 's':
			if colorOn {
				out = append(out, randomColors[rand.Intn(len(randomColors))]...)
			}
			i++
		case c == 'x' && i+4 < len(markup) && isDigit3(markup[i+2:i+5]):
			if colorOn {
				n := int(markup[i+2]-'0')*100 + int(markup[i+3]-'0')*10 + int(markup[i+4]-'0')
				out = append(out, color256(n)...)
			}
			i += 4
		case c == 'M':
			if richOn {
				out = append(out, richSecureLineStart...)
			}
			i++
		case c == ']':
			if richOn {
				out = append(out, richLockedLine...)
			}
			i++
		case c == '<':
			if richOn {
				out = append(out, "&lt;"...)
			} else {
				out = append(out, '<')
			}
			i++
		case c == '>':
			if richOn {
				out = append(out, "&gt;"...)
			} else {
				out = append(out, '>')
			}
			i++
		default:
			if seq, ok := colorCodes[c]; ok {
				if colorOn {
					out = append(out, seq...)
				}
			}
			// else: unknown #<x>, consumed silently, per spec §4.F.
			i++
		}
	}

	if s.Protocol.ScreenReaderMode {
		out = collapseSpaces(out)
	}
	if colorOn {
		if len(out)+len(resetSeq) <= session.OutBufCeiling {
			out = append(out, resetSeq...)
		}
		// else: no room for the reset sequence; the caller's AppendOutput
		// will already be failing this session for overflow.
	}
	return out
}

func isDigit3(b []byte) bool {
	return len(b) >= 3 && b[0] >= '0' && b[0] <= '9' && b[1] >= '0' && b[1] <= '9' && b[2] >= '0' && b[2] <= '9'
}

// collapseSpaces collapses runs of two or more spaces into one, applied
// after color stripping for screen-reader sessions (spec §4.F).
func collapseSpaces(b []byte) []byte {
	out := make([]byte, 0, len(b))
	runLen := 0
	for _, c := range b {
		if c == ' ' {
			runLen++
			if runLen > 1 {
				continue
			}
		} else {
			runLen = 0
		}
		out = append(out, c)
	}
	return out
}

// richSecureLineStart (#M) and richLockedLine (#]) are the MXP line-mode
// escapes comm.c emits: secure line and locked line, respectively.
const richSecureLineStart = "\x1b[1z"
const richLockedLine = "\x1b[2z"

// Send renders markup for s, appends it to s's output buffer, and fans
// it out (prefixed "% ") to any session currently snooping s (spec §4.F
// snoop fan-out). Output buffer overflow marks the session closed via
// AppendOutput's own invariant.
func Send(reg *session.Registry, s *session.Session, markup []byte) {
	rendered := Translate(s, markup)
	s.AppendOutput(rendered)

	if reg == nil {
		return
	}
	for _, other := range reg.ListActive() {
		if other.SnoopTargetID == s.NodeID {
			fanout := make([]byte, 0, len(rendered)+2)
			fanout = append(fanout, '%', ' ')
			fanout = append(fanout, rendered...)
			other.AppendOutput(fanout)
		}
	}
}
