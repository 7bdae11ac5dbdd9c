// Package deck models playing cards and the working shoe for the High/Low
// table. Ranks run Ace-low: 1 = Ace up to 13 = King, which is the ordering
// the game compares on.
package deck

import "fmt"

// Suit represents a card suit.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the suit symbol.
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// IsRed returns true for Hearts and Diamonds.
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Suits lists all four suits in shoe-construction order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Rank bounds. Aces are low in this game: an Ace can never win a LOW call
// and a King can never win a HIGH call.
const (
	RankAce  = 1
	RankKing = 13
)

// Card is a single playing card. ID is unique per card instance within a
// shoe, not just per suit/rank, so multi-deck shoes never hold duplicates.
type Card struct {
	ID   string `json:"id"`
	Suit Suit   `json:"suit"`
	Rank int    `json:"rank"` // 1 = Ace (low) .. 13 = King (high)
}

// String returns the display form of the card (e.g. "A♠", "10♥").
func (c Card) String() string {
	return fmt.Sprintf("%s%s", RankLabel(c.Rank), c.Suit)
}

// IsRed returns true if the card is red.
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsAce returns true for rank 1.
func (c Card) IsAce() bool {
	return c.Rank == RankAce
}

// IsKing returns true for rank 13.
func (c Card) IsKing() bool {
	return c.Rank == RankKing
}

// RankLabel returns the display label for a rank (A, 2..10, J, Q, K).
func RankLabel(rank int) string {
	switch rank {
	case RankAce:
		return "A"
	case 11:
		return "J"
	case 12:
		return "Q"
	case RankKing:
		return "K"
	default:
		return fmt.Sprintf("%d", rank)
	}
}
