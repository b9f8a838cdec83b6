package rules

import (
	"fmt"
	"strings"
)

// Print renders info the way a rule listing shows it.
func (i *MatchInfo) Print() string {
	return i.render("match-set", "")
}

// Save renders info as options Parse accepts.
func (i *MatchInfo) Save() string {
	return i.render("--match-set", "--")
}

func (i *MatchInfo) render(prefix, sep string) string {
	var b strings.Builder

	if i.Flags.Invert {
		b.WriteString(" !")
	}
	fmt.Fprintf(&b, " %s %s", prefix, i.SetName)
	for n, d := range i.Dirs {
		if n == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(d.String())
	}

	if i.Flags.ReturnNomatch {
		fmt.Fprintf(&b, " %sreturn-nomatch", sep)
	}
	if i.Flags.SkipCounterUpdate {
		fmt.Fprintf(&b, " ! %supdate-counters", sep)
	}
	if i.Flags.SkipSubcounterUpdate {
		fmt.Fprintf(&b, " ! %supdate-subcounters", sep)
	}
	if i.Flags.ProxyProtocol {
		fmt.Fprintf(&b, " %sproxy-protocol", sep)
	}
	renderCounter(&b, i.Packets, "packets", sep)
	renderCounter(&b, i.Bytes, "bytes", sep)

	return strings.TrimPrefix(b.String(), " ")
}

func renderCounter(b *strings.Builder, c CounterMatch, name, sep string) {
	switch c.Op {
	case CounterEq:
		fmt.Fprintf(b, " %s%s-eq %d", sep, name, c.Value)
	case CounterNe:
		fmt.Fprintf(b, " ! %s%s-eq %d", sep, name, c.Value)
	case CounterLt:
		fmt.Fprintf(b, " %s%s-lt %d", sep, name, c.Value)
	case CounterGt:
		fmt.Fprintf(b, " %s%s-gt %d", sep, name, c.Value)
	}
}

// String renders the installed match, naming the set as the engine knows it.
func (m *Match) String() string {
	info := m.info
	if name, err := m.engine.Name(m.set); err == nil {
		info.SetName = name
	}
	return info.Print()
}
