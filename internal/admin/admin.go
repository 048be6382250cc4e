// Package admin implements `protocols`, the per-connection protocol
// status report that is one of the two core-owned admin commands
// (spec.md §6.7). The other, `cfg`, is served by internal/config's
// Command, which internal/loop calls directly; this package has no
// function for it. Protocols is an ordinary function, grounded on stlalpha-vision3's
// command-table style of keeping admin verbs as small, self-contained
// handler functions rather than a framework.
package admin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dystopia-mud/mudcore/internal/gmcp"
	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// Protocols renders the negotiated-option status report for s: the
// active compressor, structured-messaging state and package list, media
// support, rich-markup, status-query availability, window size, and
// terminal type (spec §6.7).
func Protocols(s *session.Session, handlers *telnet.HandlerSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Compression:        %s\r\n", s.Protocol.Compressor)

	if s.Protocol.GMCPEnabled {
		pkgs := gmcp.ActivePackages(s.Protocol.PackageMask)
		if len(pkgs) == 0 {
			fmt.Fprintf(&b, "Structured messages: on (no packages announced)\r\n")
		} else {
			fmt.Fprintf(&b, "Structured messages: on (%s)\r\n", strings.Join(pkgs, ", "))
		}
		fmt.Fprintf(&b, "Media:              %s\r\n", onOff(gmcp.HasMedia(s.Protocol.PackageMask)))
	} else {
		fmt.Fprintf(&b, "Structured messages: off\r\n")
		fmt.Fprintf(&b, "Media:              off\r\n")
	}

	fmt.Fprintf(&b, "Rich markup:        %s\r\n", onOff(s.Protocol.RichMarkupEnabled))

	statusLocal, statusRemote := telnet.IsOptionActive(s, handlers, telnet.OptStatus)
	fmt.Fprintf(&b, "Status query:       %s\r\n", onOff(statusLocal || statusRemote))

	fmt.Fprintf(&b, "Window size:        %dx%d\r\n", s.Protocol.Width, s.Protocol.Height)

	if s.Protocol.TermType != "" {
		fmt.Fprintf(&b, "Terminal type:      %s\r\n", s.Protocol.TermType)
	} else {
		fmt.Fprintf(&b, "Terminal type:      (unreported)\r\n")
	}

	if s.Protocol.ClientName != "" {
		client := s.Protocol.ClientName
		if s.Protocol.ClientVersion != "" {
			client = fmt.Sprintf("%s %s", client, s.Protocol.ClientVersion)
		}
		fmt.Fprintf(&b, "Client:             %s\r\n", client)
	}

	fmt.Fprintf(&b, "Options negotiated: %s\r\n", negotiatedLabels(s, handlers))
	return b.String()
}

// negotiatedLabels lists every registered handler whose option is active
// in either direction, by its Label(), sorted for stable output.
func negotiatedLabels(s *session.Session, handlers *telnet.HandlerSet) string {
	var labels []string
	for _, h := range handlers.All() {
		local, remote := telnet.IsOptionActive(s, handlers, h.Option())
		if local || remote {
			labels = append(labels, h.Label())
		}
	}
	if len(labels) == 0 {
		return "(none)"
	}
	sort.Strings(labels)
	return strings.Join(labels, ", ")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
