package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgoodwin/highlow/internal/randutil"
)

func TestNewShoe(t *testing.T) {
	for _, deckCount := range []int{1, 2, 3} {
		shoe := NewShoe(deckCount)
		require.Len(t, shoe, deckCount*52)

		ids := make(map[string]bool, len(shoe))
		rankCounts := make(map[int]int)
		for _, c := range shoe {
			assert.False(t, ids[c.ID], "duplicate card ID %s", c.ID)
			ids[c.ID] = true
			rankCounts[c.Rank]++
		}
		for rank := RankAce; rank <= RankKing; rank++ {
			assert.Equal(t, deckCount*4, rankCounts[rank], "rank %d", rank)
		}
	}
}

func TestNewShoeClampsDeckCount(t *testing.T) {
	assert.Len(t, NewShoe(0), 52)
	assert.Len(t, NewShoe(-3), 52)
}

func TestShuffle(t *testing.T) {
	original := NewShoe(1)
	shuffled := Shuffle(original, randutil.New(42))

	require.Len(t, shuffled, len(original))

	// Same multiset of cards, original untouched.
	seen := make(map[string]bool)
	for _, c := range shuffled {
		seen[c.ID] = true
	}
	for i, c := range original {
		assert.True(t, seen[c.ID])
		assert.Equal(t, NewShoe(1)[i], c)
	}

	// Deterministic for a fixed seed.
	again := Shuffle(original, randutil.New(42))
	assert.Equal(t, shuffled, again)

	other := Shuffle(original, randutil.New(43))
	assert.NotEqual(t, shuffled, other)
}

func TestRemove(t *testing.T) {
	shoe := NewShoe(1)
	target := shoe[10]

	removed := Remove(shoe, target.ID)
	require.Len(t, removed, 51)
	for _, c := range removed {
		assert.NotEqual(t, target.ID, c.ID)
	}
	// Input unchanged.
	assert.Len(t, shoe, 52)

	// Unknown ID is a no-op.
	assert.Equal(t, removed, Remove(removed, "nope"))
}

func TestDrawRandom(t *testing.T) {
	rng := randutil.New(7)

	_, ok := DrawRandom(Shoe{}, rng)
	assert.False(t, ok)

	shoe := NewShoe(1)
	card, ok := DrawRandom(shoe, rng)
	require.True(t, ok)
	assert.Contains(t, shoe, card)
	// Draw does not modify the shoe.
	assert.Len(t, shoe, 52)
}
