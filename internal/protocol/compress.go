package protocol

import (
	"io"

	"github.com/dystopia-mud/mudcore/internal/compress"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// CompressHandler owns one of the two compression option numbers (spec
// §4.B/§4.D). Supersession is handled in OnAgreement: when this
// handler's version is agreed while the other version is active, the
// active stream is stopped before this one starts, so the most recently
// agreed version wins.
type CompressHandler struct {
	version session.Compressor
	opt     byte
	conn    func(s *session.Session) io.Writer
}

// NewCompressHandler builds a handler for the given MCCP-style version.
// conn resolves the raw (pre-compression) writer for a session; the
// loop supplies this since it owns the net.Conn.
func NewCompressHandler(version session.Compressor, opt byte, conn func(s *session.Session) io.Writer) *CompressHandler {
	return &CompressHandler{version: version, opt: opt, conn: conn}
}

func (h *CompressHandler) Option() byte { return h.opt }

func (h *CompressHandler) Label() string {
	if h.version == session.CompressV2 {
		return "compression-v2"
	}
	return "compression-v1"
}

func (h *CompressHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	switch change {
	case telnet.AlreadyOn:
		return
	case telnet.Activated:
		if s.Protocol.Compressor != session.CompressNone && s.Protocol.Compressor != h.version {
			_ = compress.Stop(s)
		}
		_ = compress.Start(s, h.conn(s), h.version)
	case telnet.Deactivated:
		if s.Protocol.Compressor == h.version {
			_ = compress.Stop(s)
		}
	}
}

func (h *CompressHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {}
