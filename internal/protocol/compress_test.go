package protocol

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

func newCompressTestSession(t *testing.T) *session.Session {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return session.NewSession(1, c1, "127.0.0.1")
}

type discardSink struct{}

func (discardSink) WriteRaw(*session.Session, []byte) error { return nil }

func TestCompressHandler_newerVersionSupersedesOlder(t *testing.T) {
	s := newCompressTestSession(t)
	var rawOut bytes.Buffer
	conn := func(*session.Session) io.Writer { return &rawOut }

	v2 := NewCompressHandler(session.CompressV2, telnet.OptCompressV2, conn)
	v1 := NewCompressHandler(session.CompressV1, telnet.OptCompressV1, conn)

	v1.OnAgreement(discardSink{}, s, telnet.Activated, true)
	if s.Protocol.Compressor != session.CompressV1 {
		t.Fatalf("want v1 active first, got %v", s.Protocol.Compressor)
	}

	v2.OnAgreement(discardSink{}, s, telnet.Activated, true)
	if s.Protocol.Compressor != session.CompressV2 {
		t.Fatalf("want v2 to supersede v1, got %v", s.Protocol.Compressor)
	}
}

func TestCompressHandler_deactivationOnlyStopsOwnVersion(t *testing.T) {
	s := newCompressTestSession(t)
	var rawOut bytes.Buffer
	conn := func(*session.Session) io.Writer { return &rawOut }

	v2 := NewCompressHandler(session.CompressV2, telnet.OptCompressV2, conn)
	v1 := NewCompressHandler(session.CompressV1, telnet.OptCompressV1, conn)

	v2.OnAgreement(discardSink{}, s, telnet.Activated, true)
	v1.OnAgreement(discardSink{}, s, telnet.Deactivated, true)
	if s.Protocol.Compressor != session.CompressV2 {
		t.Fatalf("want v2 unaffected by v1's own deactivation, got %v", s.Protocol.Compressor)
	}

	v2.OnAgreement(discardSink{}, s, telnet.Deactivated, true)
	if s.Protocol.Compressor != session.CompressNone {
		t.Fatalf("want compressor cleared after its own deactivation, got %v", s.Protocol.Compressor)
	}
}
