package session

import (
	"net"
	"strings"
	"testing"
)

func newMachineTestSession(t *testing.T) *Session {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return NewSession(1, c1, "127.0.0.1")
}

func TestDispatchEditor_overflowReportsBufferFullAndAutoSaves(t *testing.T) {
	s := newMachineTestSession(t)
	s.State = Editing
	for i := 0; i < EditorMaxLines; i++ {
		Dispatch(s, "line", nil, nil)
		if s.State != Editing {
			t.Fatalf("overflowed too early, after %d lines", i+1)
		}
	}
	if len(s.Editor.Lines) != EditorMaxLines {
		t.Fatalf("want %d lines buffered, got %d", EditorMaxLines, len(s.Editor.Lines))
	}

	Dispatch(s, "one line too many", nil, nil)

	if s.State != Playing {
		t.Fatalf("want auto-save transition to Playing, got %v", s.State)
	}
	if s.Editor != nil {
		t.Fatal("want editor state cleared after overflow auto-save")
	}
	if !strings.Contains(string(s.OutBuf[:s.OutTop]), "Buffer full.") {
		t.Fatalf("want \"Buffer full.\" message, got %q", s.OutBuf[:s.OutTop])
	}
}

func TestDispatchEditor_columnsTruncatedNotOverflow(t *testing.T) {
	s := newMachineTestSession(t)
	s.State = Editing
	long := strings.Repeat("a", EditorMaxCols+40)
	Dispatch(s, long, nil, nil)
	if len(s.Editor.Lines) != 1 || len(s.Editor.Lines[0]) != EditorMaxCols {
		t.Fatalf("want one line truncated to %d cols, got %v", EditorMaxCols, s.Editor.Lines)
	}
}

func TestOpenPager_thenDispatchPagesThroughHeldText(t *testing.T) {
	s := newMachineTestSession(t)
	s.State = Playing
	held := strings.Repeat("x", 3000)
	OpenPager(s, held)
	if s.State != PagerOpen {
		t.Fatalf("want PagerOpen, got %v", s.State)
	}

	Dispatch(s, "", nil, nil)
	if s.State != PagerOpen {
		t.Fatal("want pager still open after one page")
	}
	if s.Pager.Offset != 2000 {
		t.Fatalf("want offset advanced by one page, got %d", s.Pager.Offset)
	}

	Dispatch(s, "", nil, nil)
	if s.State != Playing {
		t.Fatalf("want pager to close once held text is exhausted, got %v", s.State)
	}
}

func TestDispatchPager_qQuitsEarly(t *testing.T) {
	s := newMachineTestSession(t)
	s.State = Playing
	OpenPager(s, strings.Repeat("x", 3000))
	Dispatch(s, "q", nil, nil)
	if s.State != Playing {
		t.Fatalf("want q to return to Playing, got %v", s.State)
	}
	if s.Pager != nil {
		t.Fatal("want pager cleared after q")
	}
}
