package chat

import (
	"strconv"
	"strings"
)

const outcomeRunes = 200

// RoundContext is the state carried across the rounds of one query. At the
// start of round k, RoundAnswers holds exactly k-1 answers.
type RoundContext struct {
	RoundIndex    int
	OriginalQuery string
	HistoryText   string
	ToolsInvoked  []string
	ToolOutputs   []string
	RoundAnswers  []string
}

func newRoundContext(query, history string) *RoundContext {
	return &RoundContext{RoundIndex: 1, OriginalQuery: query, HistoryText: history}
}

// Summary renders one "Round i outcome:" line per finished round.
func (rc *RoundContext) Summary() string {
	lines := make([]string, 0, len(rc.RoundAnswers))
	for i, answer := range rc.RoundAnswers {
		lines = append(lines, "Round "+strconv.Itoa(i+1)+" outcome: "+truncateOutcome(answer))
	}
	return strings.Join(lines, "\n")
}

func (rc *RoundContext) lastAnswer() string {
	if len(rc.RoundAnswers) == 0 {
		return ""
	}
	return rc.RoundAnswers[len(rc.RoundAnswers)-1]
}

// truncateOutcome keeps the first 200 runes of s followed by "..." when s
// is longer, and s unchanged otherwise.
func truncateOutcome(s string) string {
	runes := []rune(s)
	if len(runes) <= outcomeRunes {
		return s
	}
	return string(runes[:outcomeRunes]) + "..."
}
