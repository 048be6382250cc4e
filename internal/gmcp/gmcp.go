// Package gmcp implements the structured-messaging sidechannel (spec
// §4.E): package-name + JSON payload framing carried inside one telnet
// subnegotiation option, a per-session package-capability bitmask, and
// the Core.* packages the core owns directly. Everything else is
// forwarded to the game's on_structured_message hook unaltered.
package gmcp

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
	"github.com/dystopia-mud/mudcore/internal/world"
)

// Package capability bits, assigned in declaration order. The mask is
// opaque outside this package; §4.E only requires that the core can
// test "is this package enabled" before emitting a convenience message.
const (
	PkgCharVitals uint64 = 1 << iota
	PkgCharStatus
	PkgCharInfo
	PkgClientGUI
	PkgClientMediaDefault
	PkgClientMediaLoad
	PkgClientMediaPlay
	PkgClientMediaStop
	PkgRoomInfo
)

var packageNames = map[string]uint64{
	"Char.Vitals":          PkgCharVitals,
	"Char.Status":          PkgCharStatus,
	"Char.Info":            PkgCharInfo,
	"Client.GUI":           PkgClientGUI,
	"Client.Media.Default": PkgClientMediaDefault,
	"Client.Media.Load":    PkgClientMediaLoad,
	"Client.Media.Play":    PkgClientMediaPlay,
	"Client.Media.Stop":    PkgClientMediaStop,
	"Room.Info":            PkgRoomInfo,
}

// Handler owns the structured-messaging telnet option.
type Handler struct {
	info   world.ServerInfo
	hooks  *world.Hooks
	flush  func(s *session.Session) // flushes pending text output before a structured emit (spec §4.E flushing rule)
	hasMedia bool
}

// NewHandler builds the structured-messaging handler. flush is called
// before every outgoing emit so in-band text reaches the client first.
func NewHandler(info world.ServerInfo, hooks *world.Hooks, flush func(s *session.Session), hasMedia bool) *Handler {
	return &Handler{info: info, hooks: hooks, flush: flush, hasMedia: hasMedia}
}

func (h *Handler) Option() byte  { return telnet.OptStructured }
func (h *Handler) Label() string { return "structured-messaging" }

func (h *Handler) OnAgreement(sink telnet.Sink, s *session.Session, change telnet.AgreementChange, weOffered bool) {
	switch change {
	case telnet.AlreadyOn:
		return
	case telnet.Activated:
		s.Protocol.GMCPEnabled = true
		h.sendHello(sink, s)
	case telnet.Deactivated:
		s.Protocol.GMCPEnabled = false
		s.Protocol.PackageMask = 0
	}
}

func (h *Handler) sendHello(sink telnet.Sink, s *session.Session) {
	hello := map[string]string{"client": h.info.Name, "version": h.info.Version}
	h.emit(sink, s, "Core.Hello", hello)
	if h.info.ClientGUIURL != "" {
		h.emit(sink, s, "Client.GUI", map[string]string{"version": h.info.Version, "url": h.info.ClientGUIURL})
	}
}

// OnSubneg parses "<package-name> <payload>" and dispatches.
func (h *Handler) OnSubneg(sink telnet.Sink, s *session.Session, payload []byte) {
	idx := bytes.IndexByte(payload, ' ')
	var pkg string
	var body []byte
	if idx < 0 {
		pkg = string(payload)
	} else {
		pkg = string(payload[:idx])
		body = bytes.TrimSpace(payload[idx+1:])
	}

	switch pkg {
	case "Core.Hello":
		var hello struct {
			Client  string `json:"client"`
			Version string `json:"version"`
		}
		if json.Unmarshal(body, &hello) == nil {
			s.Protocol.ClientName = hello.Client
			s.Protocol.ClientVersion = hello.Version
		}
	case "Core.Supports.Set":
		s.Protocol.PackageMask = parseSupportsList(body)
		h.onCapabilitiesChanged(sink, s)
	case "Core.Supports.Add":
		s.Protocol.PackageMask |= parseSupportsList(body)
		h.onCapabilitiesChanged(sink, s)
	case "Core.Supports.Remove":
		s.Protocol.PackageMask &^= parseSupportsList(body)
	case "Core.Ping":
		// keepalive; no reply required.
	default:
		if h.hooks != nil && h.hooks.OnStructuredMessage != nil {
			h.hooks.OnStructuredMessage(s, pkg, body)
		}
	}
}

func (h *Handler) onCapabilitiesChanged(sink telnet.Sink, s *session.Session) {
	if h.hasMedia && s.Protocol.PackageMask&PkgClientMediaDefault != 0 && !s.Protocol.MediaHelloSent {
		h.EmitClientMediaDefault(sink, s, h.info.MediaBaseURL)
	}
}

// ActivePackages returns the sorted package names whose bit is set in
// mask, for the `protocols` admin command (spec §6.7).
func ActivePackages(mask uint64) []string {
	var names []string
	for name, bit := range packageNames {
		if mask&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// HasMedia reports whether any Client.Media.* package is active in mask.
func HasMedia(mask uint64) bool {
	const mediaMask = PkgClientMediaDefault | PkgClientMediaLoad | PkgClientMediaPlay | PkgClientMediaStop
	return mask&mediaMask != 0
}

// parseSupportsList parses a JSON array of "Pkg.Name <version>" tokens
// into a capability mask, matching each quoted token up to its first
// space (spec §4.E).
func parseSupportsList(body []byte) uint64 {
	var tokens []string
	if err := json.Unmarshal(body, &tokens); err != nil {
		return 0
	}
	var mask uint64
	for _, tok := range tokens {
		name := tok
		if sp := strings.IndexByte(tok, ' '); sp >= 0 {
			name = tok[:sp]
		}
		mask |= packageNames[name]
	}
	return mask
}

// emit flushes pending text output, then frames pkg+payload as JSON and
// writes the subnegotiation (spec §4.E flushing rule).
func (h *Handler) emit(sink telnet.Sink, s *session.Session, pkg string, v any) {
	if !s.Protocol.GMCPEnabled {
		return
	}
	if h.flush != nil {
		h.flush(s)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	frame := append([]byte(pkg+" "), escapeJSONBytes(body)...)
	_ = sink.WriteRaw(s, telnet.EncodeSubneg(telnet.OptStructured, frame))
}

// escapeJSONBytes re-escapes control bytes per spec §4.E's rule (",
// backslash, \n, \r, \t escaped; other control bytes below 32 dropped).
// encoding/json already produces valid escaped JSON, so this pass is a
// defensive no-op for the listed characters and only strips any stray
// control byte encoding/json would not itself emit.
func escapeJSONBytes(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c < 32 && c != '\n' && c != '\r' && c != '\t' {
			continue
		}
		out = append(out, c)
	}
	return out
}

