package deck

import (
	"fmt"
	rand "math/rand/v2"
)

// Shoe is the ordered collection of undealt cards. All operations use value
// semantics: callers thread the returned Shoe into the next call, nothing
// mutates a shared slice behind the caller's back.
type Shoe []Card

// NewShoe builds deckCount full 52-card decks. Card IDs are namespaced by
// deck index and overall ordinal so combined decks never collide.
func NewShoe(deckCount int) Shoe {
	if deckCount < 1 {
		deckCount = 1
	}
	shoe := make(Shoe, 0, deckCount*52)
	for d := 0; d < deckCount; d++ {
		for _, suit := range Suits {
			for rank := RankAce; rank <= RankKing; rank++ {
				shoe = append(shoe, Card{
					ID:   fmt.Sprintf("%d-%s-%d-%d", d, suit, rank, len(shoe)),
					Suit: suit,
					Rank: rank,
				})
			}
		}
	}
	return shoe
}

// Shuffle returns a new shoe holding the same cards in uniformly random
// order, via Fisher-Yates over the supplied source. Deterministic for a
// deterministic rng.
func Shuffle(shoe Shoe, rng *rand.Rand) Shoe {
	shuffled := make(Shoe, len(shoe))
	copy(shuffled, shoe)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Remove returns the shoe without the first card matching id. Returns the
// input unchanged if id is not present.
func Remove(shoe Shoe, id string) Shoe {
	for i, c := range shoe {
		if c.ID == id {
			next := make(Shoe, 0, len(shoe)-1)
			next = append(next, shoe[:i]...)
			next = append(next, shoe[i+1:]...)
			return next
		}
	}
	return shoe
}

// DrawRandom picks one card uniformly from the shoe. The shoe itself is not
// modified; callers that want without-replacement semantics remove the
// returned card's ID themselves.
func DrawRandom(shoe Shoe, rng *rand.Rand) (Card, bool) {
	if len(shoe) == 0 {
		return Card{}, false
	}
	return shoe[rng.IntN(len(shoe))], true
}
