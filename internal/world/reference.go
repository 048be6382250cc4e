package world

import (
	"fmt"
	"sync"

	"github.com/dystopia-mud/mudcore/internal/session"
)

// Demo is a minimal in-memory game implementation of Hooks, used by
// tests and the demo binary so the core can be exercised end to end
// without a real game attached. It deliberately skips password hashing
// and persistence — a real game supplies its own Hooks.
type Demo struct {
	mu         sync.Mutex
	characters map[string]*demoCharacter
	active     map[*session.Session]*demoCharacter

	counts StatusCounts
}

type demoCharacter struct {
	Name          string
	HP, MaxHP     int
	Mana, MaxMana int
	Move, MaxMove int
	Room          string
}

// NewDemo constructs an empty in-memory world.
func NewDemo() *Demo {
	return &Demo{
		characters: make(map[string]*demoCharacter),
		active:     make(map[*session.Session]*demoCharacter),
		counts:     StatusCounts{Areas: 1, Rooms: 1, Objects: 0, Mobiles: 0, HelpPages: 1},
	}
}

// Hooks returns the Hooks value bound to this world, suitable for
// internal/loop.New.
func (d *Demo) Hooks() *Hooks {
	return &Hooks{
		Nanny:               d.nanny,
		Interpret:           d.interpret,
		Tick:                d.tick,
		SaveCharacter:       d.saveCharacter,
		ReloadCharacter:     d.reloadCharacter,
		FreeCharacter:       d.freeCharacter,
		StatusCounts:        d.statusCounts,
		RenderPrompt:        nil,
		Vitals:              d.vitals,
		RoomInfo:            d.roomInfo,
		OnStructuredMessage: d.onStructuredMessage,
	}
}

// nanny drives the pre-playing login flow: name entry, then either a
// new-character confirmation or straight to the MOTD.
func (d *Demo) nanny(s *session.Session, line string) {
	switch s.State {
	case session.ResolvingName:
		// Nothing in the loop moves a session out of ResolvingName when
		// DNS completes; the first input line arrives here, is consumed
		// without being used as a name, and the session moves to GetName.
		s.State = session.GetName

	case session.GetName:
		name := line
		if name == "" {
			s.AppendOutput([]byte("Please enter a name.\r\nName: "))
			return
		}
		d.mu.Lock()
		_, exists := d.characters[name]
		d.mu.Unlock()
		s.RepeatLastLine = name // stash the candidate name; reused below
		if exists {
			s.State = session.GetPassword
			s.AppendOutput([]byte("Password: "))
		} else {
			s.State = session.ConfirmNew
			s.AppendOutput([]byte(fmt.Sprintf("Create a new character named %q? (y/n) ", name)))
		}

	case session.GetPassword:
		name := s.RepeatLastLine
		d.mu.Lock()
		ch := d.characters[name]
		d.mu.Unlock()
		s.Character = ch
		d.mu.Lock()
		d.active[s] = ch
		d.mu.Unlock()
		s.State = session.MOTD
		s.AppendOutput([]byte("\r\nWelcome back.\r\n\r\n-- Message of the day --\r\nPress Enter to continue.\r\n"))

	case session.ConfirmNew:
		name := s.RepeatLastLine
		if len(line) > 0 && (line[0] == 'y' || line[0] == 'Y') {
			ch := &demoCharacter{Name: name, HP: 20, MaxHP: 20, Mana: 10, MaxMana: 10, Move: 20, MaxMove: 20, Room: "the void"}
			d.mu.Lock()
			d.characters[name] = ch
			d.active[s] = ch
			d.mu.Unlock()
			s.Character = ch
			s.State = session.MOTD
			s.AppendOutput([]byte("\r\nCharacter created.\r\n\r\n-- Message of the day --\r\nPress Enter to continue.\r\n"))
		} else {
			s.State = session.GetName
			s.AppendOutput([]byte("Name: "))
		}

	case session.MOTD:
		s.State = session.Playing
		s.AppendOutput([]byte("\r\nYou are standing in the void.\r\n"))
	}
}

// interpret is the command loop for the Playing state. It implements
// only enough verbs to exercise the core's plumbing end to end: look
// (or l) and quit.
func (d *Demo) interpret(s *session.Session, line string) {
	switch line {
	case "":
		return
	case "look", "l":
		s.AppendOutput([]byte("You are standing in the void.\r\n"))
	case "quit":
		s.AppendOutput([]byte("Goodbye.\r\n"))
		s.MarkClosed(session.CloseAdminKick)
	default:
		s.AppendOutput([]byte("Huh?\r\n"))
	}
}

func (d *Demo) tick() {}

func (d *Demo) saveCharacter(s *session.Session) error { return nil }

func (d *Demo) reloadCharacter(s *session.Session, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.characters[name]
	if !ok {
		return fmt.Errorf("world: no character named %q", name)
	}
	s.Character = ch
	d.active[s] = ch
	return nil
}

func (d *Demo) freeCharacter(s *session.Session) {
	d.mu.Lock()
	delete(d.active, s)
	d.mu.Unlock()
}

// vitals is the Hooks.Vitals implementation: the compact prompt and the
// Char.Vitals structured-messaging package both read through it.
func (d *Demo) vitals(s *session.Session) VitalsSnapshot {
	d.mu.Lock()
	ch := d.active[s]
	d.mu.Unlock()
	if ch == nil {
		return VitalsSnapshot{}
	}
	return VitalsSnapshot{
		HP: ch.HP, MaxHP: ch.MaxHP,
		Mana: ch.Mana, MaxMana: ch.MaxMana,
		Move: ch.Move, MaxMove: ch.MaxMove,
	}
}

// roomInfo is the Hooks.RoomInfo implementation backing the Room.Info
// structured-messaging package; this demo world has exactly one room.
func (d *Demo) roomInfo(s *session.Session) RoomSnapshot {
	return RoomSnapshot{Num: 1, Name: "The Void", Area: "demo", Terrain: "void", Exits: map[string]int{}}
}

func (d *Demo) statusCounts() StatusCounts {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.counts
	c.Players = len(d.active)
	c.MaxPlayers = 100
	return c
}

func (d *Demo) onStructuredMessage(s *session.Session, pkg string, payload []byte) {}
