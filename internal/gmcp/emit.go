package gmcp

import (
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// Vitals mirrors the Char.Vitals package body (spec §4.E).
type Vitals struct {
	HP, MaxHP     int
	Mana, MaxMana int
	Move, MaxMove int
}

// Status mirrors the Char.Status package body.
type Status struct {
	Level      int
	ClassName  string
	Position   string
	Experience int
}

// Info mirrors the Char.Info package body.
type Info struct {
	Name      string
	GuildName string
}

// MediaPlay mirrors the Client.Media.Play package body. Zero-value
// optional fields (empty string, zero Volume/Loops/Priority, false
// Continue) are omitted from the JSON via `omitempty`, matching spec
// §4.E: "unset optional fields are omitted from the JSON, not sent as null."
type MediaPlay struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "sound" or "music"
	Tag      string `json:"tag,omitempty"`
	Volume   int    `json:"volume,omitempty"`
	Loops    int    `json:"loops,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Key      string `json:"key,omitempty"`
	Continue bool   `json:"continue,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// MediaStopFilter mirrors the Client.Media.Stop filter object; omitted
// fields mean "match any".
type MediaStopFilter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Tag  string `json:"tag,omitempty"`
	Key  string `json:"key,omitempty"`
}

// RoomInfo mirrors the Room.Info package body.
type RoomInfo struct {
	Num     int            `json:"num"`
	Name    string         `json:"name"`
	Area    string         `json:"area"`
	Terrain string         `json:"terrain"`
	Exits   map[string]int `json:"exits"`
}

func (h *Handler) EmitCharVitals(sink telnet.Sink, s *session.Session, v Vitals) {
	if s.Protocol.PackageMask&PkgCharVitals == 0 {
		return
	}
	h.emit(sink, s, "Char.Vitals", map[string]int{
		"hp": v.HP, "maxhp": v.MaxHP,
		"mana": v.Mana, "maxmana": v.MaxMana,
		"move": v.Move, "maxmove": v.MaxMove,
	})
}

func (h *Handler) EmitCharStatus(sink telnet.Sink, s *session.Session, v Status) {
	if s.Protocol.PackageMask&PkgCharStatus == 0 {
		return
	}
	h.emit(sink, s, "Char.Status", map[string]any{
		"level": v.Level, "class": v.ClassName, "position": v.Position, "experience": v.Experience,
	})
}

func (h *Handler) EmitCharInfo(sink telnet.Sink, s *session.Session, v Info) {
	if s.Protocol.PackageMask&PkgCharInfo == 0 {
		return
	}
	h.emit(sink, s, "Char.Info", map[string]string{"name": v.Name, "guild": v.GuildName})
}

// EmitClientGUI sends the Client.GUI package each time it is called. It
// is not called on a capability change; the only automatic Client.GUI
// send is sendHello's, at agreement, when ClientGUIURL is configured.
func (h *Handler) EmitClientGUI(sink telnet.Sink, s *session.Session, url string) {
	if s.Protocol.PackageMask&PkgClientGUI == 0 {
		return
	}
	h.emit(sink, s, "Client.GUI", map[string]string{"version": h.info.Version, "url": url})
}

func (h *Handler) EmitClientMediaDefault(sink telnet.Sink, s *session.Session, url string) {
	h.emit(sink, s, "Client.Media.Default", map[string]string{"url": url})
	s.Protocol.MediaHelloSent = true
}

func (h *Handler) EmitClientMediaLoad(sink telnet.Sink, s *session.Session, name string) {
	if s.Protocol.PackageMask&PkgClientMediaLoad == 0 {
		return
	}
	h.emit(sink, s, "Client.Media.Load", map[string]string{"name": name})
}

func (h *Handler) EmitClientMediaPlay(sink telnet.Sink, s *session.Session, p MediaPlay) {
	if s.Protocol.PackageMask&PkgClientMediaPlay == 0 {
		return
	}
	h.emit(sink, s, "Client.Media.Play", p)
}

func (h *Handler) EmitClientMediaStop(sink telnet.Sink, s *session.Session, f MediaStopFilter) {
	if s.Protocol.PackageMask&PkgClientMediaStop == 0 {
		return
	}
	h.emit(sink, s, "Client.Media.Stop", f)
}

func (h *Handler) EmitRoomInfo(sink telnet.Sink, s *session.Session, r RoomInfo) {
	if s.Protocol.PackageMask&PkgRoomInfo == 0 {
		return
	}
	h.emit(sink, s, "Room.Info", r)
}
