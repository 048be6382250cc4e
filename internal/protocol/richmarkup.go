package protocol

import (
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// RichMarkupHandler owns the rich-markup option (spec §4.D): on
// agreement it sends the activation subnegotiation and locks the
// default parser mode so normal text is never tag-parsed, only the
// renderer's explicit secure-line escapes (#M ... #]) carry markup.
type RichMarkupHandler struct{}

func NewRichMarkupHandler() *RichMarkupHandler { return &RichMarkupHandler{} }

func (h *RichMarkupHandler) Option() byte  { return telnet.OptRichMarkup }
func (h *RichMarkupHandler) Label() string { return "rich-markup" }

func (h *RichMarkupHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	switch change {
	case telnet.AlreadyOn:
		return
	case telnet.Activated:
		_ = sink.WriteRaw(s, telnet.EncodeSubneg(telnet.OptRichMarkup, nil))
		s.Protocol.RichMarkupEnabled = true
		s.Protocol.RichMarkupLocked = true
	case telnet.Deactivated:
		s.Protocol.RichMarkupEnabled = false
		s.Protocol.RichMarkupLocked = false
	}
}

func (h *RichMarkupHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {
	// The rich-markup option carries no inbound subnegotiation payload
	// of interest to the core.
}
