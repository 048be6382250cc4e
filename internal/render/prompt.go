package render

import (
	"strconv"
	"strings"

	"github.com/dystopia-mud/mudcore/internal/session"
	"github.com/dystopia-mud/mudcore/internal/telnet"
)

// PromptStats is the subset of character state the compact/custom
// prompt substitutes (spec §4.F).
type PromptStats struct {
	HP, MaxHP     int
	Mana, MaxMana int
	Move, MaxMove int
}

// ratioColor scales a current-over-maximum ratio into a color, grounded
// on comm.c's col_scale_code: empty (<1) is red, full (>=max) is bright
// cyan, and the four quarter buckets in between step red -> blue -> green ->
// bright yellow as the ratio climbs.
func ratioColor(cur, max int) string {
	if cur < 1 {
		return colorCodes['R']
	}
	if max <= 0 || cur >= max {
		return colorCodes['C']
	}
	switch (4 * cur) / max {
	case 0:
		return colorCodes['R']
	case 1:
		return colorCodes['L']
	case 2:
		return colorCodes['G']
	default:
		return colorCodes['y']
	}
}

// compactPrompt renders "[HP/maxHP mana/maxMana move/maxMove]" with
// each pair's numbers colored by their ratio.
func compactPrompt(s *session.Session, stats PromptStats) string {
	var b strings.Builder
	b.WriteByte('[')
	writePair := func(cur, max int) {
		if s.Protocol.ColorEnabled {
			b.WriteString(ratioColor(cur, max))
		}
		b.WriteString(strconv.Itoa(cur))
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(max))
		if s.Protocol.ColorEnabled {
			b.WriteString(resetSeq)
		}
	}
	writePair(stats.HP, stats.MaxHP)
	b.WriteByte(' ')
	writePair(stats.Mana, stats.MaxMana)
	b.WriteByte(' ')
	writePair(stats.Move, stats.MaxMove)
	b.WriteByte(']')
	return b.String()
}

// customPrompt substitutes %h %H %m %M %v %V in tmpl for
// hp/maxhp/mana/maxmana/move/maxmove.
func customPrompt(tmpl string, stats PromptStats) string {
	r := strings.NewReplacer(
		"%h", strconv.Itoa(stats.HP), "%H", strconv.Itoa(stats.MaxHP),
		"%m", strconv.Itoa(stats.Mana), "%M", strconv.Itoa(stats.MaxMana),
		"%v", strconv.Itoa(stats.Move), "%V", strconv.Itoa(stats.MaxMove),
	)
	return r.Replace(tmpl)
}

// AppendPrompt appends the session's prompt line to its output buffer
// if s is in the playing state and hadOutput is true (spec §4.F: "after
// a pulse of work for a session, if the session is in the playing state
// and output was produced"). gameRender overrides the compact prompt when
// non-empty. When the peer needs go-ahead, IAC GA is queued right after
// the prompt line.
func AppendPrompt(sink telnet.Sink, s *session.Session, stats PromptStats, hadOutput bool, gameRender string) {
	if s.State != session.Playing || !hadOutput {
		return
	}

	var line string
	switch {
	case gameRender != "":
		line = gameRender
	case s.Protocol.CustomPromptTmpl != "":
		line = customPrompt(s.Protocol.CustomPromptTmpl, stats)
	default:
		line = compactPrompt(s, stats)
	}

	var buf []byte
	if s.Protocol.ForceBlankPrompt {
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\r', '\n')
	if s.Protocol.NeedsGoAhead {
		buf = append(buf, telnet.IAC, telnet.GA)
	}
	s.AppendOutput(buf)
}
