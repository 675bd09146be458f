package domain_test

import (
	"testing"

	"github.com/dom/wartracker/internal/domain"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestResolveOutcome(t *testing.T) {
	tests := []struct {
		name     string
		self     *int
		opponent *int
		want     domain.Outcome
	}{
		{name: "higher self score wins", self: intPtr(80), opponent: intPtr(55), want: domain.OutcomeWin},
		{name: "lower self score loses", self: intPtr(40), opponent: intPtr(55), want: domain.OutcomeLoss},
		{name: "equal scores draw", self: intPtr(72), opponent: intPtr(72), want: domain.OutcomeDraw},
		{name: "zero zero draw", self: intPtr(0), opponent: intPtr(0), want: domain.OutcomeDraw},
		{name: "negative scores compare exactly", self: intPtr(-1), opponent: intPtr(-2), want: domain.OutcomeWin},
		{name: "missing self score", self: nil, opponent: intPtr(10), want: domain.OutcomeUnknown},
		{name: "missing opponent score", self: intPtr(10), opponent: nil, want: domain.OutcomeUnknown},
		{name: "no scores", want: domain.OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ResolveOutcome(tt.self, tt.opponent))
		})
	}
}

func TestResolveOutcome_SwapFlipsResult(t *testing.T) {
	flipped := map[domain.Outcome]domain.Outcome{
		domain.OutcomeWin:  domain.OutcomeLoss,
		domain.OutcomeLoss: domain.OutcomeWin,
		domain.OutcomeDraw: domain.OutcomeDraw,
	}

	for a := -3; a <= 3; a++ {
		for b := -3; b <= 3; b++ {
			forward := domain.ResolveOutcome(intPtr(a), intPtr(b))
			backward := domain.ResolveOutcome(intPtr(b), intPtr(a))
			assert.Equal(t, flipped[forward], backward, "a=%d b=%d", a, b)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	assert.Equal(t, domain.OutcomeWin, domain.ParseOutcome("w"))
	assert.Equal(t, domain.OutcomeLoss, domain.ParseOutcome(" L "))
	assert.Equal(t, domain.OutcomeDraw, domain.ParseOutcome("D"))
	assert.Equal(t, domain.OutcomeUnknown, domain.ParseOutcome(""))
	assert.Equal(t, domain.OutcomeUnknown, domain.ParseOutcome("win"))
}
