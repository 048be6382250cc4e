package protocol

import (
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// EchoHandler owns the echo option. The core itself never needs local
// echo suppressed (it does not echo player input back); this handler
// exists only so the option is registered and negotiation never stalls
// on an unrecognized option (spec §4.C: "never leave an option
// hanging").
type EchoHandler struct{}

func NewEchoHandler() *EchoHandler { return &EchoHandler{} }

func (h *EchoHandler) Option() byte  { return telnet.OptEcho }
func (h *EchoHandler) Label() string { return "echo" }

func (h *EchoHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
}

func (h *EchoHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {}

// SuppressGAHandler owns suppress-go-ahead. When the peer refuses it,
// the session is marked as needing an explicit GA after each prompt
// (spec §4.F "if the peer advertised needs go-ahead").
type SuppressGAHandler struct{}

func NewSuppressGAHandler() *SuppressGAHandler { return &SuppressGAHandler{} }

func (h *SuppressGAHandler) Option() byte  { return telnet.OptSGA }
func (h *SuppressGAHandler) Label() string { return "suppress-go-ahead" }

func (h *SuppressGAHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	switch change {
	case telnet.Activated:
		s.Protocol.NeedsGoAhead = false
	case telnet.Deactivated:
		s.Protocol.NeedsGoAhead = true
	}
}

func (h *SuppressGAHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {}
