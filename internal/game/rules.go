package game

import (
	rand "math/rand/v2"

	"github.com/adamgoodwin/highlow/internal/deck"
)

// Compare orders two cards by rank only; suits never break ties.
// Returns 1 if next outranks current, -1 if it ranks below, 0 on a tie.
func Compare(current, next deck.Card) int {
	switch {
	case next.Rank > current.Rank:
		return 1
	case next.Rank < current.Rank:
		return -1
	default:
		return 0
	}
}

// DetermineOutcome resolves a round. A rank tie is always a push.
func DetermineOutcome(choice Choice, current, next deck.Card) Outcome {
	cmp := Compare(current, next)
	if cmp == 0 {
		return OutcomePush
	}
	if choice == ChoiceHigh {
		if cmp > 0 {
			return OutcomeWin
		}
		return OutcomeLoss
	}
	if cmp < 0 {
		return OutcomeWin
	}
	return OutcomeLoss
}

// CalculateBonus returns the streak bonus for a win that moved the streak to
// streakAfterRound. Zero unless the streak lands on a StreakEvery multiple.
func CalculateBonus(bet, streakAfterRound int, cfg BonusConfig) int {
	if streakAfterRound <= 0 || streakAfterRound%cfg.StreakEvery != 0 {
		return 0
	}
	bonus := int(float64(bet) * cfg.BonusPct)
	if bonus > cfg.BonusCap {
		bonus = cfg.BonusCap
	}
	return bonus
}

// Payout is the financial result of a round.
type Payout struct {
	Streak int // streak after the round
	Bonus  int
	Profit int // net chips; negative on a loss
}

// ResolvePayout applies the payout rules: push returns the bet and leaves
// the streak alone, loss forfeits the bet and zeroes the streak, win pays
// the bet plus any streak bonus.
func ResolvePayout(bet int, outcome Outcome, previousStreak int, cfg BonusConfig) Payout {
	switch outcome {
	case OutcomePush:
		return Payout{Streak: previousStreak}
	case OutcomeLoss:
		return Payout{Profit: -bet}
	default:
		streak := previousStreak + 1
		bonus := CalculateBonus(bet, streak, cfg)
		return Payout{Streak: streak, Bonus: bonus, Profit: bet + bonus}
	}
}

// DrawResult is a drawn card plus the shoe without it.
type DrawResult struct {
	Card deck.Card
	Shoe deck.Shoe
}

// DrawCurrentCard draws the face-up card for a round. Rigged modes restrict
// the pool to ranks 2..12 so whichever way the player calls, a strictly
// higher or lower card can be forced later; if that pool is empty the full
// shoe is used.
func DrawCurrentCard(shoe deck.Shoe, mode Mode, rng *rand.Rand) DrawResult {
	source := shoe
	if mode != ModeFair {
		eligible := make(deck.Shoe, 0, len(shoe))
		for _, c := range shoe {
			if c.Rank > deck.RankAce && c.Rank < deck.RankKing {
				eligible = append(eligible, c)
			}
		}
		if len(eligible) > 0 {
			source = eligible
		}
	}
	card, ok := deck.DrawRandom(source, rng)
	if !ok {
		return DrawResult{Shoe: shoe}
	}
	return DrawResult{Card: card, Shoe: deck.Remove(shoe, card.ID)}
}

// PickResult is the outcome of resolving the next card.
type PickResult struct {
	Next deck.Card
	Shoe deck.Shoe
	// DidReshuffle is set when the rigged fallback had to rebuild the shoe.
	DidReshuffle bool
	// RiggedFallbackUsed is set only on the defensive last-resort path where
	// even a fresh shoe held no card satisfying the forced relation. It is
	// unreachable while DrawCurrentCard keeps rigged current cards off the
	// edge ranks, but the engine still returns a valid card if it fires.
	RiggedFallbackUsed bool
}

// PickNextCard selects the next card. Fair mode draws uniformly. Rigged
// modes force a card strictly higher or lower than current depending on the
// mode/choice combination, rebuilding a fresh deckCount shoe (minus the
// current card) if the working shoe has run out of the needed relation.
func PickNextCard(shoe deck.Shoe, current deck.Card, mode Mode, choice Choice, deckCount int, rng *rand.Rand) PickResult {
	if mode == ModeFair {
		next, ok := deck.DrawRandom(shoe, rng)
		if !ok {
			return PickResult{Shoe: shoe}
		}
		return PickResult{Next: next, Shoe: deck.Remove(shoe, next.ID)}
	}

	wantsHigher := (mode == ModeAlwaysWin && choice == ChoiceHigh) ||
		(mode == ModeAlwaysLose && choice == ChoiceLow)

	if next, ok := deck.DrawRandom(filterRelation(shoe, current.Rank, wantsHigher), rng); ok {
		return PickResult{Next: next, Shoe: deck.Remove(shoe, next.ID)}
	}

	// The working shoe has no card on the required side: rebuild and retry.
	reshuffled := deck.Shuffle(deck.Remove(deck.NewShoe(deckCount), current.ID), rng)
	if next, ok := deck.DrawRandom(filterRelation(reshuffled, current.Rank, wantsHigher), rng); ok {
		return PickResult{Next: next, Shoe: deck.Remove(reshuffled, next.ID), DidReshuffle: true}
	}

	// Last resort: avoid a tie if any non-tying card exists, else accept one.
	source := filterNonTie(reshuffled, current.Rank)
	if len(source) == 0 {
		source = reshuffled
	}
	next, _ := deck.DrawRandom(source, rng)
	return PickResult{Next: next, Shoe: deck.Remove(reshuffled, next.ID), DidReshuffle: true, RiggedFallbackUsed: true}
}

func filterRelation(shoe deck.Shoe, rank int, wantsHigher bool) deck.Shoe {
	out := make(deck.Shoe, 0, len(shoe))
	for _, c := range shoe {
		if (wantsHigher && c.Rank > rank) || (!wantsHigher && c.Rank < rank) {
			out = append(out, c)
		}
	}
	return out
}

func filterNonTie(shoe deck.Shoe, rank int) deck.Shoe {
	out := make(deck.Shoe, 0, len(shoe))
	for _, c := range shoe {
		if c.Rank != rank {
			out = append(out, c)
		}
	}
	return out
}
