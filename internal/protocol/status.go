// Package protocol implements the per-option handlers described in
// spec.md §4.D, grounded on stlalpha-vision3's telnetserver option
// handling style: each handler owns exactly one option number, keeps
// its state on the session, and never blocks or performs I/O directly.
package protocol

import (
	"fmt"
	"time"

	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
	"github.com/dystopia-mud/mudcore/internal/world"
)

// StatusHandler answers the server-status-query option (spec §4.D,
// supplemented with original_source/mssp.c's fuller field table: server
// name, players, uptime, port, area/room/object/mob/help counts,
// language, genre, and protocol support flags).
type StatusHandler struct {
	info      world.ServerInfo
	startedAt time.Time
	counts    func() world.StatusCounts
}

// NewStatusHandler builds a status handler. counts is called lazily on
// each query, never cached, since player/world counts change pulse to
// pulse.
func NewStatusHandler(info world.ServerInfo, startedAt time.Time, counts func() world.StatusCounts) *StatusHandler {
	return &StatusHandler{info: info, startedAt: startedAt, counts: counts}
}

func (h *StatusHandler) Option() byte { return telnet.OptStatus }
func (h *StatusHandler) Label() string { return "server-status" }

func (h *StatusHandler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	if change == telnet.AlreadyOn {
		return
	}
	if change != telnet.Activated {
		return
	}
	h.sendStatus(sink, s)
}

// OnSubneg handles a peer-initiated re-query; the option carries no
// inbound payload fields of interest, so any subnegotiation re-sends
// the current status.
func (h *StatusHandler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {
	h.sendStatus(sink, s)
}

func (h *StatusHandler) sendStatus(sink telnet.Sink, s *session.Session) {
	counts := world.StatusCounts{}
	if h.counts != nil {
		counts = h.counts()
	}
	uptime := time.Since(h.startedAt)

	var payload []byte
	pair := func(name, value string) {
		payload = append(payload, fmt.Sprintf("VAR %s VAL %s ", name, value)...)
	}
	pair("NAME", h.info.Name)
	pair("PLAYERS", fmt.Sprintf("%d", counts.Players))
	pair("MAX_PLAYERS", fmt.Sprintf("%d", counts.MaxPlayers))
	pair("UPTIME", fmt.Sprintf("%d", int(uptime.Seconds())))
	pair("PORT", fmt.Sprintf("%d", h.info.Port))
	pair("AREAS", fmt.Sprintf("%d", counts.Areas))
	pair("ROOMS", fmt.Sprintf("%d", counts.Rooms))
	pair("OBJECTS", fmt.Sprintf("%d", counts.Objects))
	pair("MOBILES", fmt.Sprintf("%d", counts.Mobiles))
	pair("HELPFILES", fmt.Sprintf("%d", counts.HelpPages))
	pair("LANGUAGE", h.info.Language)
	for _, g := range h.info.Genres {
		pair("GENRE", g)
	}
	pair("ANSI", boolFlag(s.Protocol.ColorEnabled))
	pair("MCCP", boolFlag(s.Protocol.Compressor != session.CompressNone))
	pair("GMCP", boolFlag(s.Protocol.GMCPEnabled))
	pair("MXP", boolFlag(s.Protocol.RichMarkupEnabled))
	pair("NAWS", "1")
	pair("TTYPE", "1")

	_ = sink.WriteRaw(s, telnet.EncodeSubneg(telnet.OptStatus, payload))
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
