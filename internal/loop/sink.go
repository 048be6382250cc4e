package loop

import (
	"log"

	"github.com/dystopia-mud/mudcore/internal/compress"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// connSink implements telnet.Sink by writing chunked, through whichever
// compressor (if any) is currently installed on the session (spec
// §4.A/§4.B fall-through).
type connSink struct{}

func (connSink) WriteRaw(s *session.Session, b []byte) error {
	w := telnet.NewWriter(compress.CurrentWriter(s, s.Conn))
	if err := w.WriteAllChunked(b); err != nil {
		log.Printf("WARN: node %d: write error: %v", s.NodeID, err)
		s.MarkClosed(session.ClosePeerIOError)
		return err
	}
	return nil
}
