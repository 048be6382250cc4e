package line

import (
	"net"
	"strings"
	"testing"

	"github.com/dystopia-mud/mudcore/internal/session"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return session.NewSession(1, c1, "127.0.0.1")
}

func TestFeed_simpleLine(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	got := a.Feed(s, []byte("look\r\n"))
	if len(got) != 1 || got[0] != "look" {
		t.Fatalf("want [look], got %v", got)
	}
}

func TestFeed_crlfSplitAcrossCalls(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	if got := a.Feed(s, []byte("look\r")); len(got) != 1 || got[0] != "look" {
		t.Fatalf("want [look] after \\r, got %v", got)
	}
	if got := a.Feed(s, []byte("\nnorth\r\n")); len(got) != 1 || got[0] != "north" {
		t.Fatalf("want [north], got %v (\\n after split \\r should not emit a blank line)", got)
	}
}

func TestFeed_backspaceErasesLastByte(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	got := a.Feed(s, []byte("lookk\x08\r\n"))
	if len(got) != 1 || got[0] != "look" {
		t.Fatalf("want [look], got %v", got)
	}
}

func TestFeed_lineTooLong(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	long := make([]byte, session.LineCap+50)
	for i := range long {
		long[i] = 'a'
	}
	long = append(long, '\r', '\n')
	got := a.Feed(s, long)
	if len(got) != 0 {
		t.Fatalf("want no completed lines on overflow, got %v", got)
	}
	if s.OutTop == 0 {
		t.Fatal("want a \"Line too long.\" message appended to output")
	}
}

func TestFeed_repeatLastLine(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	a.Feed(s, []byte("north\r\n"))
	got := a.Feed(s, []byte("!\r\n"))
	if len(got) != 1 || got[0] != "north" {
		t.Fatalf("want [north] repeated, got %v", got)
	}
}

func TestFeed_repeatEscalatesToClose(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	a.Feed(s, []byte("north\r\n"))
	for i := 0; i < session.RepeatEscalation-1; i++ {
		a.Feed(s, []byte("!\r\n"))
		if s.Closed() {
			t.Fatalf("closed too early, after %d repeats", i+1)
		}
	}
	a.Feed(s, []byte("!\r\n"))
	if !s.Closed() {
		t.Fatal("want session closed after repeat escalation threshold")
	}
	if s.CloseReason != session.CloseInputOverflow {
		t.Fatalf("want CloseInputOverflow, got %v", s.CloseReason)
	}
}

func TestFeed_bareBangWithNoHistory(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	got := a.Feed(s, []byte("!\r\n"))
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("want a single empty line when there is no prior line to repeat, got %v", got)
	}
}

func TestFeed_receiveBufferOverflowClosesWithNoLine(t *testing.T) {
	s := newTestSession(t)
	a := NewAssembler()
	flood := make([]byte, recvBufCapacity+1)
	for i := range flood {
		flood[i] = 'a'
	}
	got := a.Feed(s, flood)
	if len(got) != 0 {
		t.Fatalf("want no line delivered on receive-buffer overflow, got %v", got)
	}
	if !s.Closed() {
		t.Fatal("want session closed after receive-buffer overflow")
	}
	if s.CloseReason != session.CloseInputOverflow {
		t.Fatalf("want CloseInputOverflow, got %v", s.CloseReason)
	}
	if !strings.Contains(string(s.OutBuf[:s.OutTop]), "PUT A LID ON IT") {
		t.Fatalf("want overflow warning appended to output, got %q", s.OutBuf[:s.OutTop])
	}
}
