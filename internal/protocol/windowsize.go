package protocol

import (
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// RenderWidthMin and RenderWidthMax clamp the width value the renderer
// uses for centered banners and table layout (spec §4.C); the raw,
// unclamped value is still what `protocols` reports to the player.
const (
	RenderWidthMin = 60
	RenderWidthMax = 120
)

// WindowSizeHandler owns the window-size (NAWS-like) option. The server
// is the one asking the client to activate it (spec §4.C: "asks for
// window-size" among the startup offers), so agreement arrives as a
// WILL from the peer in response to our DO.
type WindowSizeHandler struct{}

func NewWindowSizeHandler() *WindowSizeHandler { return &WindowSizeHandler{} }

func (h *WindowSizeHandler) Option() byte  { return telnet.OptNAWS }
func (h *WindowSizeHandler) Label() string { return "window-size" }

func (h *WindowSizeHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	// No immediate action: the client sends its first subnegotiation
	// once it actually knows its window dimensions.
}

// OnSubneg parses four big-endian bytes (after IAC-doubling was already
// removed by the negotiator) into width/height. A zero value means
// "use default" and leaves the session's corresponding dimension
// unchanged (80x24 until a nonzero value has been reported).
func (h *WindowSizeHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {
	if len(payload) < 4 {
		return
	}
	width := int(payload[0])<<8 | int(payload[1])
	height := int(payload[2])<<8 | int(payload[3])
	if width != 0 {
		s.Protocol.Width = width
	}
	if height != 0 {
		s.Protocol.Height = height
	}
}

// RenderWidth returns s's window width clamped to the renderer's
// centered-banner/table-layout range.
func RenderWidth(s *session.Session) int {
	w := s.Protocol.Width
	if w < RenderWidthMin {
		return RenderWidthMin
	}
	if w > RenderWidthMax {
		return RenderWidthMax
	}
	return w
}
