package compress

import (
	"bytes"
	"compress/zlib"
	"io"
	"net"
	"testing"

	"github.com/dystopia-mud/mudcore/internal/session"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return session.NewSession(1, c1, "127.0.0.1")
}

func TestStart_writesMarkerThenCompresses(t *testing.T) {
	s := newTestSession(t)
	var buf bytes.Buffer
	if err := Start(s, &buf, session.CompressV2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Protocol.Compressor != session.CompressV2 {
		t.Fatalf("want CompressV2 recorded on session, got %v", s.Protocol.Compressor)
	}
	marker := StartMarker(session.CompressV2)
	if !bytes.HasPrefix(buf.Bytes(), marker) {
		t.Fatalf("want buffer to start with the v2 marker, got %v", buf.Bytes()[:len(marker)])
	}

	w := CurrentWriter(s, &buf)
	if _, err := w.Write([]byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := FlushIfActive(s); err != nil {
		t.Fatalf("FlushIfActive: %v", err)
	}
	if err := Stop(s); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	compressed := buf.Bytes()[len(marker):]
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading decompressed stream: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("want %q, got %q", "hello world", got)
	}
}

func TestStart_secondVersionIsNoOpWhileOneActive(t *testing.T) {
	s := newTestSession(t)
	var buf bytes.Buffer
	_ = Start(s, &buf, session.CompressV2)
	if err := Start(s, &buf, session.CompressV1); err != nil {
		t.Fatalf("Start (second): %v", err)
	}
	if s.Protocol.Compressor != session.CompressV2 {
		t.Fatalf("want the first compressor to remain active, got %v", s.Protocol.Compressor)
	}
}

func TestStop_thenStartSwitchesVersion(t *testing.T) {
	s := newTestSession(t)
	var buf bytes.Buffer
	_ = Start(s, &buf, session.CompressV2)
	if err := Stop(s); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Protocol.Compressor != session.CompressNone {
		t.Fatalf("want CompressNone after Stop, got %v", s.Protocol.Compressor)
	}
	if err := Start(s, &buf, session.CompressV1); err != nil {
		t.Fatalf("Start v1: %v", err)
	}
	if s.Protocol.Compressor != session.CompressV1 {
		t.Fatalf("want CompressV1 active, got %v", s.Protocol.Compressor)
	}
}

func TestCurrentWriter_fallsThroughWhenInactive(t *testing.T) {
	s := newTestSession(t)
	var buf bytes.Buffer
	w := CurrentWriter(s, &buf)
	if w != io.Writer(&buf) {
		t.Fatal("want the raw conn returned when no compressor is active")
	}
}

func TestFinalizeOnClose_swallowsErrorsAndClearsState(t *testing.T) {
	s := newTestSession(t)
	var buf bytes.Buffer
	_ = Start(s, &buf, session.CompressV2)
	FinalizeOnClose(s)
	if s.Protocol.Compressor != session.CompressNone {
		t.Fatalf("want compressor cleared, got %v", s.Protocol.Compressor)
	}
	if s.CompressorStream != nil {
		t.Fatal("want CompressorStream nil after finalize")
	}
}
