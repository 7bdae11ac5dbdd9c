// Package game holds the High/Low rules engine: deck-facing draw logic,
// outcome determination and payout math. Everything here is pure — state
// lives in the session package, storage in persist.
package game

import (
	"fmt"
	"time"

	"github.com/adamgoodwin/highlow/internal/deck"
)

// Mode selects how the next card is drawn. Fair is an unbiased draw; the
// rigged modes bias the draw relative to the player's choice and exist for
// demos and chaos testing.
type Mode string

const (
	ModeFair       Mode = "fair"
	ModeAlwaysWin  Mode = "alwaysWin"
	ModeAlwaysLose Mode = "alwaysLose"
)

// Valid reports whether m is one of the three known modes.
func (m Mode) Valid() bool {
	return m == ModeFair || m == ModeAlwaysWin || m == ModeAlwaysLose
}

// Label returns the user-facing name of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeAlwaysWin:
		return "Demo: Always Win"
	case ModeAlwaysLose:
		return "Chaos: Always Lose"
	default:
		return "Fair"
	}
}

// ParseMode maps a string onto a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return ModeFair, fmt.Errorf("unknown game mode %q", s)
	}
	return m, nil
}

// Choice is the player's prediction for the next card.
type Choice string

const (
	ChoiceHigh Choice = "high"
	ChoiceLow  Choice = "low"
)

// Valid reports whether c is high or low.
func (c Choice) Valid() bool {
	return c == ChoiceHigh || c == ChoiceLow
}

// Outcome is the result of a completed round. Ties always push: the bet is
// returned and the streak is untouched.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomePush Outcome = "push"
)

// Phase tags the session state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"      // no valid bet
	PhaseReady     Phase = "ready"     // valid bet, awaiting choice
	PhaseChoice    Phase = "choice"    // transient: next card being resolved
	PhaseRevealing Phase = "revealing" // reveal animation window
	PhaseResult    Phase = "result"    // outcome applied, shown until next round
)

// Table constants shared by every front-end.
const (
	StartingBalance  = 10_000
	MinBet           = 10
	BetStep          = 10
	DefaultBet       = 100
	BorrowCredit     = 5_000
	ShuffleThreshold = 10
	MaxHistory       = 12
)

// QuickBets are the preset bet amounts front-ends offer.
var QuickBets = []int{10, 50, 100, 500}

// BonusConfig controls the streak bonus paid on top of a winning bet.
type BonusConfig struct {
	StreakEvery int     // pay a bonus every Nth consecutive win
	BonusPct    float64 // bonus as a fraction of the bet
	BonusCap    int     // hard ceiling on a single bonus
}

// DefaultBonusConfig pays 10% of the bet, capped at 250, every third win.
var DefaultBonusConfig = BonusConfig{StreakEvery: 3, BonusPct: 0.10, BonusCap: 250}

// RoundRecord is the immutable record of one completed round.
type RoundRecord struct {
	ID        string    `json:"id"`
	Current   deck.Card `json:"current"`
	Next      deck.Card `json:"next"`
	Choice    Choice    `json:"choice"`
	Outcome   Outcome   `json:"outcome"`
	Bet       int       `json:"bet"`
	Profit    int       `json:"profit"`
	Bonus     int       `json:"bonus"`
	Mode      Mode      `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}
