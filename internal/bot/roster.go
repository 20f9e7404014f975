package bot

import (
	"fmt"
	"strings"

	"rotateio-server/internal/sim"
)

// Mode is a match format
type Mode string

const (
	FFA        Mode = "FFA"
	OneVsFifty Mode = "1v50"
	TwentyVs20 Mode = "20v20"
)

// ParseMode accepts any casing and falls back to FFA
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1v50":
		return OneVsFifty
	case "20v20":
		return TwentyVs20
	default:
		return FFA
	}
}

// LocalTeam is the team a human player gets in mode
func (m Mode) LocalTeam() sim.Team {
	if m == FFA {
		return sim.TeamNone
	}
	return sim.TeamRed
}

// Count returns how many bots fill mode at difficulty d
func Count(m Mode, d Difficulty) int {
	n := 6
	switch m {
	case FFA:
		n = 7
	case OneVsFifty:
		n = 50
	case TwentyVs20:
		n = 40
	}
	switch d {
	case Easy:
		n = max(3, int(float64(n)*0.6))
	case Hard:
		n = min(80, int(float64(n)*1.6))
	}
	return n
}

// Roster builds the join specs for n bots in mode
func Roster(m Mode, n int) []sim.JoinSpec {
	specs := make([]sim.JoinSpec, 0, n)
	for i := 0; i < n; i++ {
		spec := sim.JoinSpec{
			ID:   fmt.Sprintf("bot-%d", i),
			Name: fmt.Sprintf("Bot%d", i+1),
			Bot:  true,
		}
		switch m {
		case OneVsFifty:
			spec.Team = sim.TeamBlue
		case TwentyVs20:
			spec.Team = sim.Team(i%2 + 1)
		}
		specs = append(specs, spec)
	}
	return specs
}
