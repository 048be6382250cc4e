package admin

import (
	"net"
	"strings"
	"testing"

	"github.com/dystopia-mud/mudcore/internal/gmcp"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return session.NewSession(1, c1, "127.0.0.1")
}

func TestProtocols_defaultsReportEverythingOff(t *testing.T) {
	s := newTestSession(t)
	handlers := telnet.NewHandlerSet()
	out := Protocols(s, handlers)
	if !strings.Contains(out, "Compression:        none") {
		t.Fatalf("want compression none, got %q", out)
	}
	if !strings.Contains(out, "Structured messages: off") {
		t.Fatalf("want structured messages off, got %q", out)
	}
	if !strings.Contains(out, "Window size:        80x24") {
		t.Fatalf("want default window size reported, got %q", out)
	}
}

func TestProtocols_reportsNegotiatedState(t *testing.T) {
	s := newTestSession(t)
	s.Protocol.Compressor = session.CompressV2
	s.Protocol.RichMarkupEnabled = true
	s.Protocol.GMCPEnabled = true
	s.Protocol.PackageMask = gmcp.PkgCharVitals | gmcp.PkgClientMediaPlay
	s.Protocol.Width, s.Protocol.Height = 132, 43
	s.Protocol.TermType = "xterm"
	s.Protocol.ClientName = "Mudlet"
	s.Protocol.ClientVersion = "4.1"

	out := Protocols(s, telnet.NewHandlerSet())

	for _, want := range []string{
		"Compression:        MCCPv2",
		"Char.Vitals",
		"Client.Media.Play",
		"Media:              on",
		"Rich markup:        on",
		"Window size:        132x43",
		"Terminal type:      xterm",
		"Client:             Mudlet 4.1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("want report to contain %q, got %q", want, out)
		}
	}
}

func TestNegotiatedLabels_listsActiveHandlersOnly(t *testing.T) {
	s := newTestSession(t)
	handlers := telnet.NewHandlerSet()
	handlers.Register(noopHandler{opt: 86, label: "mccp-v2"})
	handlers.Register(noopHandler{opt: 91, label: "rich-markup"})

	sink := discardSink{}
	telnet.OfferWill(sink, s, handlers, 86)
	telnet.ProcessInbound(sink, s, handlers, []byte{telnet.IAC, telnet.DO, 86})

	got := negotiatedLabels(s, handlers)
	if got != "mccp-v2" {
		t.Fatalf("want only the activated handler listed, got %q", got)
	}
}

type noopHandler struct {
	opt   byte
	label string
}

func (h noopHandler) Option() byte  { return h.opt }
func (h noopHandler) Label() string { return h.label }
func (h noopHandler) OnAgreement(telnet.Sink, *session.Session, telnet.AgreementChange, bool) {}
func (h noopHandler) OnSubneg(telnet.Sink, *session.Session, []byte)                          {}

type discardSink struct{}

func (discardSink) WriteRaw(*session.Session, []byte) error { return nil }
