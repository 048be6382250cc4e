package config

// Keys enumerates every configuration knob the core and the game share,
// in the fixed order the registry iterates (spec §4.K).
const (
	PulseRate Key = iota
	TickMultiplier
	IdleWarnPulses
	IdleCloseExtraPulses
	RecvBufHeadroom
	OutputCeilingKB
	RepeatEscalation
	DefaultWidth
	DefaultHeight
	numKeys
)

// DefaultEntries returns the fixed-order entry table with compile-time
// defaults (spec §4.K: "defaults are initialized in-place from
// compile-time literals").
func DefaultEntries() []Entry {
	return []Entry{
		{Key: PulseRate, Name: "pulse.rate", Default: 4},
		{Key: TickMultiplier, Name: "pulse.tick_multiplier", Default: 1},
		{Key: IdleWarnPulses, Name: "idle.warn_pulses", Default: 4 * 60 * 10},
		{Key: IdleCloseExtraPulses, Name: "idle.close_extra_pulses", Default: 4 * 60 * 2},
		{Key: RecvBufHeadroom, Name: "io.recv_headroom", Default: 10},
		{Key: OutputCeilingKB, Name: "io.output_ceiling_kb", Default: 256},
		{Key: RepeatEscalation, Name: "input.repeat_escalation", Default: 20},
		{Key: DefaultWidth, Name: "render.default_width", Default: 80},
		{Key: DefaultHeight, Name: "render.default_height", Default: 24},
	}
}
