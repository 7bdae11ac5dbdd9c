package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCardString(t *testing.T) {
	assert.Equal(t, "A♠", Card{Suit: Spades, Rank: RankAce}.String())
	assert.Equal(t, "10♥", Card{Suit: Hearts, Rank: 10}.String())
	assert.Equal(t, "J♦", Card{Suit: Diamonds, Rank: 11}.String())
	assert.Equal(t, "Q♣", Card{Suit: Clubs, Rank: 12}.String())
	assert.Equal(t, "K♠", Card{Suit: Spades, Rank: RankKing}.String())
}

func TestCardPredicates(t *testing.T) {
	assert.True(t, Card{Suit: Hearts, Rank: 5}.IsRed())
	assert.True(t, Card{Suit: Diamonds, Rank: 5}.IsRed())
	assert.False(t, Card{Suit: Spades, Rank: 5}.IsRed())
	assert.False(t, Card{Suit: Clubs, Rank: 5}.IsRed())

	assert.True(t, Card{Rank: RankAce}.IsAce())
	assert.False(t, Card{Rank: 2}.IsAce())
	assert.True(t, Card{Rank: RankKing}.IsKing())
	assert.False(t, Card{Rank: 12}.IsKing())
}
