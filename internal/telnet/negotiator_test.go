package telnet

import (
	"net"
	"testing"

	"github.com/dystopia-mud/mudcore/internal/session"
)

type recordingSink struct {
	writes [][]byte
}

func (r *recordingSink) WriteRaw(s *session.Session, b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	r.writes = append(r.writes, cp)
	return nil
}

type fakeHandler struct {
	opt      byte
	agreed   []AgreementChange
	subnegs  [][]byte
}

func (f *fakeHandler) Option() byte  { return f.opt }
func (f *fakeHandler) Label() string { return "fake" }
func (f *fakeHandler) OnAgreement(sink Sink, s *session.Session, change AgreementChange, weOffered bool) {
	f.agreed = append(f.agreed, change)
}
func (f *fakeHandler) OnSubneg(sink Sink, s *session.Session, payload []byte) {
	f.subnegs = append(f.subnegs, payload)
}

func newFakeSessionAndHandlers(opt byte) (*session.Session, *HandlerSet, *fakeHandler) {
	c1, _ := net.Pipe()
	s := session.NewSession(1, c1, "10.0.0.1")
	hs := NewHandlerSet()
	fh := &fakeHandler{opt: opt}
	hs.Register(fh)
	return s, hs, fh
}

func TestProcessInbound_plainDataPassesThrough(t *testing.T) {
	s, hs, _ := newFakeSessionAndHandlers(1)
	sink := &recordingSink{}
	out := ProcessInbound(sink, s, hs, []byte("hello\r\n"))
	if string(out) != "hello\r\n" {
		t.Fatalf("want plain bytes unchanged, got %q", out)
	}
}

func TestProcessInbound_iacDoublingUnescapes(t *testing.T) {
	s, hs, _ := newFakeSessionAndHandlers(1)
	sink := &recordingSink{}
	out := ProcessInbound(sink, s, hs, []byte{'a', IAC, IAC, 'b'})
	if string(out) != "a\xffb" {
		t.Fatalf("want IAC-doubling collapsed to one 0xFF, got %q", out)
	}
}

func TestProcessInbound_willTriggersAgreementOnce(t *testing.T) {
	s, hs, fh := newFakeSessionAndHandlers(42)
	sink := &recordingSink{}
	ProcessInbound(sink, s, hs, []byte{IAC, WILL, 42})
	ProcessInbound(sink, s, hs, []byte{IAC, WILL, 42}) // repeated WILL should report AlreadyOn
	if len(fh.agreed) != 2 || fh.agreed[0] != Activated || fh.agreed[1] != AlreadyOn {
		t.Fatalf("want [Activated AlreadyOn], got %v", fh.agreed)
	}
}

func TestProcessInbound_unsupportedOptionRefused(t *testing.T) {
	s, hs, _ := newFakeSessionAndHandlers(1)
	sink := &recordingSink{}
	ProcessInbound(sink, s, hs, []byte{IAC, WILL, 99})
	if len(sink.writes) != 1 {
		t.Fatalf("want one refusal written, got %d", len(sink.writes))
	}
	want := []byte{IAC, DONT, 99}
	if string(sink.writes[0]) != string(want) {
		t.Fatalf("want DONT 99, got %v", sink.writes[0])
	}
}

func TestProcessInbound_subnegotiationDelivered(t *testing.T) {
	s, hs, fh := newFakeSessionAndHandlers(24)
	sink := &recordingSink{}
	raw := []byte{IAC, SB, 24, 'I', 'S', 'x', 't', 'e', 'r', 'm', IAC, SE}
	out := ProcessInbound(sink, s, hs, raw)
	if len(out) != 0 {
		t.Fatalf("want no plain data from a subnegotiation, got %q", out)
	}
	if len(fh.subnegs) != 1 || string(fh.subnegs[0]) != "ISxterm" {
		t.Fatalf("want payload \"ISxterm\", got %v", fh.subnegs)
	}
}

func TestProcessInbound_subnegotiationSplitAcrossCalls(t *testing.T) {
	s, hs, fh := newFakeSessionAndHandlers(24)
	sink := &recordingSink{}
	ProcessInbound(sink, s, hs, []byte{IAC, SB, 24, 'a', 'b'})
	ProcessInbound(sink, s, hs, []byte{'c', IAC, SE})
	if len(fh.subnegs) != 1 || string(fh.subnegs[0]) != "abc" {
		t.Fatalf("want payload \"abc\" reassembled across calls, got %v", fh.subnegs)
	}
}

func TestEncodeSubneg_escapesIAC(t *testing.T) {
	got := EncodeSubneg(86, []byte{0x01, IAC, 0x02})
	want := []byte{IAC, SB, 86, 0x01, IAC, IAC, 0x02, IAC, SE}
	if string(got) != string(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestOfferWill_andAgreementMarksLocalActive(t *testing.T) {
	s, hs, _ := newFakeSessionAndHandlers(86)
	sink := &recordingSink{}
	OfferWill(sink, s, hs, 86)
	if len(sink.writes) != 1 || string(sink.writes[0]) != string([]byte{IAC, WILL, 86}) {
		t.Fatalf("want IAC WILL 86 sent, got %v", sink.writes)
	}
	// Peer replies DO, confirming our offer.
	ProcessInbound(sink, s, hs, []byte{IAC, DO, 86})
	local, _ := IsOptionActive(s, hs, 86)
	if !local {
		t.Fatal("want option marked locally active after peer DO confirms our WILL offer")
	}
}
