// Package session defines the per-connection data model and the state
// machine that routes an assembled input line to the right consumer.
package session

// State enumerates the per-connection session state described in spec
// §3/§4.H. The zero value is ResolvingName, the initial state on accept.
type State int

const (
	ResolvingName State = iota
	GetName
	GetPassword
	ConfirmNew
	MOTD
	Playing
	NoteTo
	NoteSubject
	NoteExpire
	NoteText
	NoteFinish
	Editing
	PagerOpen
	Closed
)

func (s State) String() string {
	switch s {
	case ResolvingName:
		return "resolving-name"
	case GetName:
		return "get-name"
	case GetPassword:
		return "get-password"
	case ConfirmNew:
		return "confirm-new"
	case MOTD:
		return "motd"
	case Playing:
		return "playing"
	case NoteTo:
		return "note-to"
	case NoteSubject:
		return "note-subject"
	case NoteExpire:
		return "note-expire"
	case NoteText:
		return "note-text"
	case NoteFinish:
		return "note-finish"
	case Editing:
		return "editing"
	case PagerOpen:
		return "pager-open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsNoteState reports whether s is one of the note-writer sub-states.
func (s State) IsNoteState() bool {
	switch s {
	case NoteTo, NoteSubject, NoteExpire, NoteText, NoteFinish:
		return true
	default:
		return false
	}
}

// Compressor identifies which compression variant, if any, is active on
// a session's downstream byte stream (spec §4.B). A session normalizes
// to this single field rather than the original's per-version flag pair,
// per the spec's §9 Open Questions resolution: agreeing on one version
// unconditionally supersedes the other.
type Compressor int

const (
	CompressNone Compressor = iota
	CompressV1
	CompressV2
)

func (c Compressor) String() string {
	switch c {
	case CompressV1:
		return "MCCPv1"
	case CompressV2:
		return "MCCPv2"
	default:
		return "none"
	}
}

// CloseReason classifies why a session was torn down, for logging and
// for the §7 error-kind taxonomy.
type CloseReason int

const (
	NoClose CloseReason = iota
	ClosePeerEOF
	ClosePeerIOError
	CloseInputOverflow
	CloseOutputOverflow
	CloseAdminKick
	CloseLoginRejected
	CloseIdleTimeout
	CloseRestart
)

func (r CloseReason) String() string {
	switch r {
	case ClosePeerEOF:
		return "peer closed"
	case ClosePeerIOError:
		return "i/o error"
	case CloseInputOverflow:
		return "input overflow"
	case CloseOutputOverflow:
		return "output buffer overflow"
	case CloseAdminKick:
		return "admin kick"
	case CloseLoginRejected:
		return "login rejected"
	case CloseIdleTimeout:
		return "idle timeout"
	case CloseRestart:
		return "restart"
	default:
		return "none"
	}
}
