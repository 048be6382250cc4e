// Package world declares the opaque game-side hooks the core calls into
// (spec.md §6.6) and nothing else: the core must be reimplementable
// without reference to game rules, so this package only ever describes
// the boundary, never the simulation behind it.
package world

import "github.com/dystopia-mud/mudcore/internal/session"

// StatusCounts is the set of world-size integers reported by the
// server-status handler (spec §4.D), supplemented with the fuller field
// list original_source/mssp.c carries beyond spec.md's prose summary.
type StatusCounts struct {
	Areas      int
	Rooms      int
	Objects    int
	Mobiles    int
	HelpPages  int
	Players    int
	MaxPlayers int
}

// VitalsSnapshot is the subset of character state driving both the
// compact prompt's color-scaled numbers and the Char.Vitals
// structured-messaging package (spec §4.E/§4.F).
type VitalsSnapshot struct {
	HP, MaxHP     int
	Mana, MaxMana int
	Move, MaxMove int
}

// RoomSnapshot is the subset of room state driving the Room.Info
// structured-messaging package (spec §4.E).
type RoomSnapshot struct {
	Num     int
	Name    string
	Area    string
	Terrain string
	Exits   map[string]int
}

// Hooks is the complete callback surface the game simulation provides
// to the core (spec §6.6). A Hooks value is supplied once at startup;
// the core never holds game state beyond these function values.
type Hooks struct {
	// Nanny handles one input line for a session that has not yet
	// reached the playing state (login/menu flow).
	Nanny func(s *session.Session, line string)

	// Interpret handles one input line for a session in the playing
	// state (the command interpreter).
	Interpret func(s *session.Session, line string)

	// Tick runs once per pulse, after all sessions have been serviced
	// for I/O this pulse.
	Tick func()

	// SaveCharacter persists whatever character s.Character references.
	SaveCharacter func(s *session.Session) error

	// ReloadCharacter re-attaches a character by name to s, used during
	// copyover recovery.
	ReloadCharacter func(s *session.Session, name string) error

	// FreeCharacter releases any game-side resources held for s's
	// character, called once the session is torn down.
	FreeCharacter func(s *session.Session)

	// StatusCounts returns the world-size integers for the
	// server-status reply.
	StatusCounts func() StatusCounts

	// Vitals returns s's current HP/mana/move numbers, used for both the
	// compact prompt and the Char.Vitals structured-messaging package.
	Vitals func(s *session.Session) VitalsSnapshot

	// RoomInfo returns a snapshot of the room s's character currently
	// occupies, for the Room.Info structured-messaging package.
	RoomInfo func(s *session.Session) RoomSnapshot

	// RenderPrompt may replace the compact prompt by appending a custom
	// rendering into the returned string; an empty return defers to the
	// core's default compact/custom-template prompt.
	RenderPrompt func(s *session.Session) string

	// OnStructuredMessage receives every inbound structured-messaging
	// package other than Core.* (spec §4.E).
	OnStructuredMessage func(s *session.Session, pkg string, payload []byte)
}

// ServerInfo is static identity used by the status registry and the
// Core.Hello structured-messaging greeting; both are core-owned but
// describe the game above it, so the game supplies the values once.
type ServerInfo struct {
	Name         string
	Version      string
	Port         int
	Language     string
	Genres       []string
	ClientGUIURL string
	MediaBaseURL string
}
