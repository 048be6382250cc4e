package protocol

import (
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// TermTypeHandler owns the terminal-type option. On agreement it sends
// a SEND request; the first IS reply is cached as the session's
// client-advertised terminal string, used only for diagnostics and to
// hint the renderer (spec §4.D).
type TermTypeHandler struct{}

func NewTermTypeHandler() *TermTypeHandler { return &TermTypeHandler{} }

func (h *TermTypeHandler) Option() byte  { return telnet.OptTermType }
func (h *TermTypeHandler) Label() string { return "terminal-type" }

func (h *TermTypeHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	if change == telnet.AlreadyOn {
		return
	}
	if change != telnet.Activated {
		return
	}
	_ = sink.WriteRaw(s, telnet.EncodeSubneg(telnet.OptTermType, []byte{telnet.TermTypeSend}))
}

func (h *TermTypeHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {
	if len(payload) < 1 || payload[0] != telnet.TermTypeIs {
		return
	}
	if s.Protocol.TermType == "" {
		s.Protocol.TermType = string(payload[1:])
	}
}
