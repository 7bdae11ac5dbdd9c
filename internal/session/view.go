package session

import (
	"github.com/adamgoodwin/highlow/internal/deck"
	"github.com/adamgoodwin/highlow/internal/game"
)

// View is an immutable snapshot of the session for front-ends. Both the
// websocket binding and the TUI render from the same View, so every client
// gates its affordances on the same predicates the engine enforces.
type View struct {
	Balance       int        `json:"balance"`
	Mode          game.Mode  `json:"mode"`
	FairDeckCount int        `json:"fairDeckCount"`
	Streak        int        `json:"streak"`
	Bet           int        `json:"bet"`
	Phase         game.Phase `json:"phase"`

	Current       *deck.Card  `json:"current,omitempty"`
	Reveal        *deck.Card  `json:"reveal,omitempty"`
	PendingChoice game.Choice `json:"pendingChoice,omitempty"`

	LastRound *game.RoundRecord  `json:"lastRound,omitempty"`
	History   []game.RoundRecord `json:"history,omitempty"`
	ShoeSize  int                `json:"shoeSize"`

	CanPlay            bool `json:"canPlay"`
	CanChooseHigh      bool `json:"canChooseHigh"`
	CanChooseLow       bool `json:"canChooseLow"`
	NeedsRecovery      bool `json:"needsRecovery"`
	CanBorrow          bool `json:"canBorrow"`
	BorrowUsed         bool `json:"borrowUsed"`
	HasSessionActivity bool `json:"hasSessionActivity"`

	SoundEnabled    bool   `json:"soundEnabled"`
	ZenMode         bool   `json:"zenMode"`
	ZenMusicEnabled bool   `json:"zenMusicEnabled"`
	ZenMusicTrack   string `json:"zenMusicTrack"`
	ZenMusicVolume  int    `json:"zenMusicVolume"`
	ReducedMotion   bool   `json:"reducedMotion"`
	DebugOpen       bool   `json:"debugOpen"`

	SignedIn  bool   `json:"signedIn"`
	AuthEmail string `json:"authEmail,omitempty"`

	SessionRoundsPlayed int      `json:"sessionRoundsPlayed"`
	SessionWins         int      `json:"sessionWins"`
	Goal                GoalView `json:"goal"`
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	canPlay := s.canPlayLocked()
	v := View{
		Balance:       s.balance,
		Mode:          s.mode,
		FairDeckCount: s.fairDeckCount,
		Streak:        s.streak,
		Bet:           s.bet,
		Phase:         s.phase,
		PendingChoice: s.pendingChoice,
		ShoeSize:      len(s.shoe),

		CanPlay:       canPlay,
		CanChooseHigh: canPlay && (s.current == nil || !s.current.IsKing()),
		CanChooseLow:  canPlay && (s.current == nil || !s.current.IsAce()),
		NeedsRecovery: s.balance < game.MinBet,
		CanBorrow:     s.balance < game.MinBet && !s.borrowUsed,
		BorrowUsed:    s.borrowUsed,
		HasSessionActivity: len(s.history) > 0 || s.balance != game.StartingBalance ||
			s.streak > 0 || s.borrowUsed,

		SoundEnabled:    s.soundEnabled,
		ZenMode:         s.zenMode,
		ZenMusicEnabled: s.zenMusicEnabled,
		ZenMusicTrack:   s.zenMusicTrack,
		ZenMusicVolume:  s.zenMusicVolume,
		ReducedMotion:   s.reducedMotion,
		DebugOpen:       s.debugOpen,

		SignedIn:  s.signedInLocked(),
		AuthEmail: s.authEmail,

		SessionRoundsPlayed: s.sessionRoundsPlayed,
		SessionWins:         s.sessionWins,
		Goal:                s.goalViewLocked(),
	}

	if s.current != nil {
		c := *s.current
		v.Current = &c
	}
	if s.reveal != nil {
		c := *s.reveal
		v.Reveal = &c
	}
	if s.lastRound != nil {
		r := *s.lastRound
		v.LastRound = &r
	}
	if len(s.history) > 0 {
		v.History = append([]game.RoundRecord(nil), s.history...)
	}
	return v
}
