package render

import (
	"golang.org/x/text/encoding/charmap"

	"github.com/dystopia-mud/mudcore/internal/session"
)

// ToLegacyEncoding re-encodes already-rendered UTF-8 bytes as CP437 for
// clients that advertised a DOS-era terminal type (spec §4.D terminal-
// type handler caches client_name; this core treats certain cached
// names as CP437-only, grounded on vision3's internal/terminalio CP437
// output path). Bytes outside the CP437 repertoire are replaced with
// '?' by the encoder, matching vision3's own fallback behavior.
func ToLegacyEncoding(b []byte) []byte {
	encoded, err := charmap.CodePage437.NewEncoder().Bytes(b)
	if err != nil {
		return b
	}
	return encoded
}

// WantsLegacyEncoding reports whether s's cached terminal-type string
// indicates a DOS-era client that should receive CP437 bytes instead of
// UTF-8.
func WantsLegacyEncoding(s *session.Session) bool {
	switch s.Protocol.TermType {
	case "ANSI", "IBMPC", "IBM-PC", "DOS-ANSI":
		return true
	default:
		return false
	}
}
