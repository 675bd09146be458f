package domain

import "strings"

type Outcome string

const (
	OutcomeWin     Outcome = "W"
	OutcomeLoss    Outcome = "L"
	OutcomeDraw    Outcome = "D"
	OutcomeUnknown Outcome = "U"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeDraw, OutcomeUnknown:
		return true
	}
	return false
}

// ResolveOutcome derives the result from both scores. A missing score yields
// OutcomeUnknown.
func ResolveOutcome(self, opponent *int) Outcome {
	if self == nil || opponent == nil {
		return OutcomeUnknown
	}
	switch {
	case *self == *opponent:
		return OutcomeDraw
	case *self > *opponent:
		return OutcomeWin
	default:
		return OutcomeLoss
	}
}

// ParseOutcome accepts W/L/D in any case. Anything else is OutcomeUnknown.
func ParseOutcome(s string) Outcome {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomeWin:
		return OutcomeWin
	case OutcomeLoss:
		return OutcomeLoss
	case OutcomeDraw:
		return OutcomeDraw
	}
	return OutcomeUnknown
}
