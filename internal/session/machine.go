package session

import (
	"strconv"
	"strings"
)

// Dispatch routes one assembled line according to s's current state
// (spec §4.H routing rule). nanny and interpret are the game's own
// hooks; editing, note-writing, and the pager are owned by the core.
func Dispatch(s *Session, line string, nanny, interpret func(*Session, string)) {
	switch {
	case s.State == Editing:
		dispatchEditor(s, line)
	case s.State.IsNoteState():
		dispatchNote(s, line)
	case s.State == PagerOpen:
		dispatchPager(s, line)
	case s.State == Playing:
		if interpret != nil {
			interpret(s, line)
		}
	default:
		if nanny != nil {
			nanny(s, line)
		}
	}
}

// dispatchEditor implements the editor sub-protocol (spec §4.H).
func dispatchEditor(s *Session, line string) {
	ed := s.Editor
	if ed == nil {
		ed = &EditorState{CurrentLine: 1}
		s.Editor = ed
	}

	if len(line) > 0 && (line[0] == '/' || line[0] == '\\') {
		cmd := line[1:]
		switch {
		case cmd == "?":
			s.AppendOutput([]byte("/l list, /c clear, /d delete, /g n goto, /i insert, /r old new replace, /a abort, /s save\r\n"))
		case cmd == "l":
			s.AppendOutput(renderEditorBuffer(ed))
		case cmd == "c":
			ed.Lines = nil
			ed.CurrentLine = 1
		case cmd == "d" || strings.HasPrefix(cmd, "d "):
			n := ed.CurrentLine
			if f := strings.Fields(cmd); len(f) > 1 {
				if v, err := strconv.Atoi(f[1]); err == nil {
					n = v
				}
			}
			deleteEditorLine(ed, n)
		case strings.HasPrefix(cmd, "g "):
			if v, err := strconv.Atoi(strings.TrimSpace(cmd[2:])); err == nil {
				ed.CurrentLine = v
			}
		case cmd == "i" || strings.HasPrefix(cmd, "i "):
			n := ed.CurrentLine
			if f := strings.Fields(cmd); len(f) > 1 {
				if v, err := strconv.Atoi(f[1]); err == nil {
					n = v
				}
			}
			insertEditorLine(ed, n)
		case strings.HasPrefix(cmd, "r "):
			args := strings.SplitN(strings.TrimSpace(cmd[2:]), " ", 2)
			if len(args) == 2 {
				replaceEditorText(ed, args[0], args[1])
			}
		case cmd == "a":
			s.Editor = nil
			s.State = Playing
		case cmd == "s":
			s.Editor = nil
			s.State = Playing
		case strings.HasPrefix(cmd, "! "):
			// "/! cmd" is accepted and ignored: the editor has no access to
			// the interpret hook, so cmd is not run as a command.
		default:
			s.AppendOutput([]byte("Unknown editor command. Try /?\r\n"))
		}
		return
	}

	appendEditorLine(s, ed, line)
}

func renderEditorBuffer(ed *EditorState) []byte {
	var b strings.Builder
	for i, l := range ed.Lines {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(": ")
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	return []byte(b.String())
}

// appendEditorLine appends line to the editor buffer, enforcing the
// hard cap of EditorMaxLines (spec §4.H: "Buffer has a hard cap (~50
// lines x 80 chars); overflow causes 'Buffer full.' and auto-save").
// Overflow only applies to new lines; replacing an existing line via
// /g never grows the buffer.
func appendEditorLine(s *Session, ed *EditorState, line string) {
	if len(line) > EditorMaxCols {
		line = line[:EditorMaxCols]
	}
	idx := ed.CurrentLine - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ed.Lines) {
		if len(ed.Lines) >= EditorMaxLines {
			s.AppendOutput([]byte("Buffer full.\r\n"))
			s.Editor = nil
			s.State = Playing
			return
		}
		ed.Lines = append(ed.Lines, line)
	} else {
		ed.Lines[idx] = line
	}
	ed.CurrentLine = idx + 2
}

func deleteEditorLine(ed *EditorState, n int) {
	idx := n - 1
	if idx < 0 || idx >= len(ed.Lines) {
		return
	}
	ed.Lines = append(ed.Lines[:idx], ed.Lines[idx+1:]...)
}

func insertEditorLine(ed *EditorState, n int) {
	idx := n - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(ed.Lines) {
		idx = len(ed.Lines)
	}
	ed.Lines = append(ed.Lines, "")
	copy(ed.Lines[idx+1:], ed.Lines[idx:])
	ed.Lines[idx] = ""
}

func replaceEditorText(ed *EditorState, old, new string) {
	for i, l := range ed.Lines {
		ed.Lines[i] = strings.ReplaceAll(l, old, new)
	}
}

// dispatchNote implements the note-to/subject/expire/text/finish flow
// (spec §4.H transitions). The note's eventual storage is out of the
// core's scope; only the state walk lives here.
func dispatchNote(s *Session, line string) {
	note := s.Note
	if note == nil {
		note = &NoteState{}
		s.Note = note
	}

	switch s.State {
	case NoteTo:
		note.To = strings.TrimSpace(line)
		s.State = NoteSubject
		s.AppendOutput([]byte("Subject: "))
	case NoteSubject:
		note.Subject = strings.TrimSpace(line)
		if notePrivileged(s) {
			s.State = NoteExpire
			s.AppendOutput([]byte("Expire in how many days (0 = never): "))
		} else {
			s.State = NoteText
			s.AppendOutput([]byte("Enter text, end with ~ or END on its own line.\r\n"))
		}
	case NoteExpire:
		if v, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
			note.Expire = v
		}
		s.State = NoteText
		s.AppendOutput([]byte("Enter text, end with ~ or END on its own line.\r\n"))
	case NoteText:
		trimmed := strings.TrimSpace(line)
		if trimmed == "~" || trimmed == "END" {
			s.State = NoteFinish
			s.AppendOutput([]byte("(C)ontinue, (P)ost, (F)orget? "))
			return
		}
		note.Lines = append(note.Lines, line)
	case NoteFinish:
		switch strings.ToUpper(strings.TrimSpace(line)) {
		case "C":
			s.State = NoteText
		case "P", "F":
			s.Note = nil
			s.State = Playing
		default:
			s.AppendOutput([]byte("Please choose C, P, or F: "))
		}
	}
}

// notePrivileged decides whether the note-writer offers an expiry
// prompt; the core has no notion of privilege levels itself, so callers
// that need the privileged path should pre-set s.Note.Expire and leave
// the session in NoteText rather than NoteSubject.
func notePrivileged(s *Session) bool { return false }

// dispatchPager advances a paged-output reader (spec §4.H pager-open).
func dispatchPager(s *Session, line string) {
	p := s.Pager
	if p == nil {
		s.State = Playing
		return
	}
	trimmed := strings.TrimSpace(line)
	if strings.EqualFold(trimmed, "q") {
		s.Pager = nil
		s.State = Playing
		return
	}
	const pageBytes = 2000
	remaining := p.Held[p.Offset:]
	if len(remaining) <= pageBytes {
		s.AppendOutput([]byte(remaining))
		s.Pager = nil
		s.State = Playing
		return
	}
	s.AppendOutput([]byte(remaining[:pageBytes]))
	p.Offset += pageBytes
	s.AppendOutput([]byte("-- more --\r\n"))
}

// OpenPager installs a pager over held text, used when a single render
// would exceed one screen (spec §4.H "output exceeded one screen").
func OpenPager(s *Session, held string) {
	s.PrevState = s.State
	s.Pager = &PagerState{Held: held}
	s.State = PagerOpen
}
