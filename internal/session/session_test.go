package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamgoodwin/highlow/internal/auth"
	"github.com/adamgoodwin/highlow/internal/game"
	"github.com/adamgoodwin/highlow/internal/persist"
	"github.com/adamgoodwin/highlow/internal/randutil"
)

const (
	revealDelay    = 700 * time.Millisecond
	nextRoundDelay = 750 * time.Millisecond
)

type toastRecorder struct {
	mu     sync.Mutex
	toasts []game.Toast
}

func (r *toastRecorder) Notify(kind game.ToastKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, game.Toast{Kind: kind, Message: message})
}

func (r *toastRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.toasts {
		if strings.Contains(t.Message, substr) {
			return true
		}
	}
	return false
}

type fixture struct {
	t        *testing.T
	clock    *quartz.Mock
	sess     *Session
	notifier *toastRecorder
	local    *persist.MemoryStore
}

func newFixture(t *testing.T, seed int64, saved *persist.PersistedState, cloud persist.CloudStore) *fixture {
	t.Helper()
	local := persist.NewMemoryStore()
	if saved != nil {
		local.Save(*saved)
	}
	notifier := &toastRecorder{}
	mockClock := quartz.NewMock(t)
	sess := New(Config{
		Logger:   log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}),
		Clock:    mockClock,
		RNG:      randutil.New(seed),
		Notifier: notifier,
		Local:    local,
		Cloud:    cloud,
	})
	t.Cleanup(sess.Close)
	return &fixture{t: t, clock: mockClock, sess: sess, notifier: notifier, local: local}
}

func (f *fixture) advance(d time.Duration) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.clock.Advance(d).MustWait(ctx)
}

// playRound walks one full round through reveal and the inter-round pause.
func (f *fixture) playRound(choice game.Choice) {
	f.t.Helper()
	f.sess.Choose(choice)
	require.Equal(f.t, game.PhaseRevealing, f.sess.View().Phase)
	f.advance(revealDelay)
	require.Equal(f.t, game.PhaseResult, f.sess.View().Phase)
	f.advance(nextRoundDelay)
}

func savedState(mutate func(*persist.PersistedState)) *persist.PersistedState {
	s := persist.DefaultState()
	s.WelcomeSeen = true
	if mutate != nil {
		mutate(&s)
	}
	return &s
}

func TestWelcomeToastShownOnce(t *testing.T) {
	f := newFixture(t, 1, nil, nil)
	assert.True(t, f.notifier.contains("Welcome"))

	// A second session over the same store has already seen the welcome.
	notifier2 := &toastRecorder{}
	sess2 := New(Config{
		Logger:   log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}),
		Clock:    quartz.NewMock(t),
		RNG:      randutil.New(2),
		Notifier: notifier2,
		Local:    f.local,
	})
	defer sess2.Close()
	assert.False(t, notifier2.contains("Welcome"))
}

func TestWinningRound(t *testing.T) {
	f := newFixture(t, 3, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
	}), nil)

	v := f.sess.View()
	require.Equal(t, game.PhaseReady, v.Phase)
	require.Equal(t, game.StartingBalance, v.Balance)
	require.Equal(t, game.DefaultBet, v.Bet)
	require.NotNil(t, v.Current)

	f.sess.Choose(game.ChoiceHigh)
	v = f.sess.View()
	assert.Equal(t, game.PhaseRevealing, v.Phase)
	require.NotNil(t, v.Reveal)
	assert.Greater(t, v.Reveal.Rank, v.Current.Rank)
	// Balance does not move until the reveal lands.
	assert.Equal(t, game.StartingBalance, v.Balance)
	revealed := *v.Reveal

	f.advance(revealDelay)
	v = f.sess.View()
	assert.Equal(t, game.PhaseResult, v.Phase)
	assert.Equal(t, game.StartingBalance+game.DefaultBet, v.Balance)
	assert.Equal(t, 1, v.Streak)
	require.NotNil(t, v.LastRound)
	assert.Equal(t, game.OutcomeWin, v.LastRound.Outcome)
	assert.NotEmpty(t, v.LastRound.ID)
	require.Len(t, v.History, 1)
	assert.True(t, f.notifier.contains("Win! +100"))

	f.advance(nextRoundDelay)
	v = f.sess.View()
	assert.Equal(t, game.PhaseReady, v.Phase)
	assert.Nil(t, v.Reveal)
	require.NotNil(t, v.Current)
	assert.Equal(t, revealed.ID, v.Current.ID)
}

func TestStreakBonusOnThirdWin(t *testing.T) {
	f := newFixture(t, 4, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
	}), nil)

	for i := 0; i < 3; i++ {
		f.playRound(game.ChoiceHigh)
	}

	v := f.sess.View()
	assert.Equal(t, 3, v.Streak)
	// 100 + 100 + (100 + 10 bonus)
	assert.Equal(t, game.StartingBalance+310, v.Balance)
	assert.True(t, f.notifier.contains("Nice hit! +110 (bonus)"))
	assert.True(t, f.notifier.contains("3-win streak"))
}

func TestLossDrainsBalanceAndOffersBorrow(t *testing.T) {
	f := newFixture(t, 5, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysLose
		s.Balance = 40
		s.LastBet = 40
	}), nil)

	v := f.sess.View()
	require.Equal(t, 40, v.Balance)
	require.Equal(t, 40, v.Bet)
	require.Equal(t, game.PhaseReady, v.Phase)

	f.playRound(game.ChoiceHigh)

	v = f.sess.View()
	assert.Equal(t, 0, v.Balance)
	assert.Equal(t, 0, v.Streak)
	assert.True(t, v.NeedsRecovery)
	assert.True(t, v.CanBorrow)
	assert.False(t, v.CanPlay)
	require.NotNil(t, v.LastRound)
	assert.Equal(t, game.OutcomeLoss, v.LastRound.Outcome)
	assert.True(t, f.notifier.contains("Ouch! -40"))
}

func TestBorrowChipsOnlyOnce(t *testing.T) {
	f := newFixture(t, 6, savedState(func(s *persist.PersistedState) {
		s.Balance = 0
	}), nil)

	require.True(t, f.sess.View().CanBorrow)
	f.sess.BorrowChipsOnce()

	v := f.sess.View()
	assert.Equal(t, game.BorrowCredit, v.Balance)
	assert.Equal(t, game.DefaultBet, v.Bet)
	assert.Equal(t, game.PhaseReady, v.Phase)
	assert.True(t, v.BorrowUsed)
	assert.False(t, v.CanBorrow)

	// Second borrow is a no-op even if the balance drains again.
	f.sess.BorrowChipsOnce()
	assert.Equal(t, game.BorrowCredit, f.sess.View().Balance)

	f2 := newFixture(t, 7, savedState(func(s *persist.PersistedState) {
		s.Balance = 0
		s.BorrowUsed = true
	}), nil)
	require.False(t, f2.sess.View().CanBorrow)
	f2.sess.BorrowChipsOnce()
	assert.Equal(t, 0, f2.sess.View().Balance)
}

func TestEdgeCardsBlockImpossibleCalls(t *testing.T) {
	var sawAce, sawKing bool
	for seed := int64(0); seed < 400 && !(sawAce && sawKing); seed++ {
		f := newFixture(t, seed, savedState(nil), nil)
		v := f.sess.View()
		require.NotNil(t, v.Current)

		switch {
		case v.Current.IsAce() && !sawAce:
			sawAce = true
			assert.True(t, v.CanChooseHigh)
			assert.False(t, v.CanChooseLow)
			f.sess.Choose(game.ChoiceLow)
			assert.Equal(t, game.PhaseReady, f.sess.View().Phase)
			assert.True(t, f.notifier.contains("LOW unavailable on an Ace"))

		case v.Current.IsKing() && !sawKing:
			sawKing = true
			assert.True(t, v.CanChooseLow)
			assert.False(t, v.CanChooseHigh)
			f.sess.Choose(game.ChoiceHigh)
			assert.Equal(t, game.PhaseReady, f.sess.View().Phase)
			assert.True(t, f.notifier.contains("HIGH unavailable on a King"))
		}
	}
	require.True(t, sawAce, "no seed produced an Ace as the opening card")
	require.True(t, sawKing, "no seed produced a King as the opening card")
}

func TestBetClamping(t *testing.T) {
	f := newFixture(t, 8, savedState(nil), nil)

	f.sess.SetBet(999_999)
	v := f.sess.View()
	assert.Equal(t, game.StartingBalance, v.Bet)
	assert.Equal(t, game.PhaseReady, v.Phase)

	f.sess.SetBet(-5)
	v = f.sess.View()
	assert.Equal(t, 0, v.Bet)
	assert.Equal(t, game.PhaseIdle, v.Phase)
	assert.False(t, v.CanPlay)

	f.sess.AddBet(game.BetStep)
	v = f.sess.View()
	assert.Equal(t, game.BetStep, v.Bet)
	assert.Equal(t, game.PhaseReady, v.Phase)

	f.sess.SetMaxBet()
	assert.Equal(t, game.StartingBalance, f.sess.View().Bet)

	f.sess.ClearBet()
	assert.Equal(t, 0, f.sess.View().Bet)
}

func TestResetTableCancelsPendingRound(t *testing.T) {
	f := newFixture(t, 9, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
	}), nil)

	f.sess.Choose(game.ChoiceHigh)
	require.Equal(t, game.PhaseRevealing, f.sess.View().Phase)

	f.sess.ResetTable()
	f.advance(2 * time.Second)

	// The in-flight round never lands.
	v := f.sess.View()
	assert.Equal(t, game.StartingBalance, v.Balance)
	assert.Equal(t, game.PhaseReady, v.Phase)
	assert.Nil(t, v.LastRound)
	assert.Empty(t, v.History)
	assert.Equal(t, 0, v.SessionRoundsPlayed)
	assert.True(t, f.notifier.contains("Table reset"))
}

func TestResetTableClearsBorrowLatch(t *testing.T) {
	f := newFixture(t, 10, savedState(func(s *persist.PersistedState) {
		s.Balance = 0
		s.BorrowUsed = true
	}), nil)

	f.sess.ResetTable()
	v := f.sess.View()
	assert.Equal(t, game.StartingBalance, v.Balance)
	assert.False(t, v.BorrowUsed)
	assert.Equal(t, game.DefaultBet, v.Bet)
}

func TestChangeModeCancelsPendingRound(t *testing.T) {
	f := newFixture(t, 11, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
	}), nil)

	f.sess.Choose(game.ChoiceHigh)
	require.Equal(t, game.PhaseRevealing, f.sess.View().Phase)

	f.sess.ChangeMode(game.ModeFair)
	f.advance(2 * time.Second)

	v := f.sess.View()
	assert.Equal(t, game.ModeFair, v.Mode)
	assert.Equal(t, game.StartingBalance, v.Balance)
	assert.Nil(t, v.Reveal)
	assert.Empty(t, v.History)

	// Unknown modes are rejected outright.
	f.sess.ChangeMode(game.Mode("cheat"))
	assert.Equal(t, game.ModeFair, f.sess.View().Mode)
}

func TestChangeFairDeckCount(t *testing.T) {
	f := newFixture(t, 12, savedState(nil), nil)

	f.sess.ChangeFairDeckCount(5)
	v := f.sess.View()
	assert.Equal(t, 3, v.FairDeckCount)
	// Full three-deck shoe minus the face-up card.
	assert.Equal(t, 3*52-1, v.ShoeSize)
	assert.True(t, f.notifier.contains("3 decks"))

	f.sess.ChangeFairDeckCount(0)
	assert.Equal(t, 1, f.sess.View().FairDeckCount)
}

func TestHistoryCapped(t *testing.T) {
	f := newFixture(t, 13, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
	}), nil)

	for i := 0; i < game.MaxHistory+3; i++ {
		f.playRound(game.ChoiceHigh)
	}

	v := f.sess.View()
	assert.Len(t, v.History, game.MaxHistory)
	assert.Equal(t, game.MaxHistory+3, v.SessionRoundsPlayed)
	// Newest first.
	assert.Equal(t, v.LastRound.ID, v.History[0].ID)
}

func TestReducedMotionShortensDelays(t *testing.T) {
	f := newFixture(t, 14, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
		s.ReducedMotion = true
	}), nil)

	f.sess.Choose(game.ChoiceHigh)
	f.advance(500 * time.Millisecond)
	require.Equal(t, game.PhaseResult, f.sess.View().Phase)
	f.advance(80 * time.Millisecond)
	assert.Equal(t, game.PhaseReady, f.sess.View().Phase)
}

func TestMiniGoalRotation(t *testing.T) {
	f := newFixture(t, 15, savedState(func(s *persist.PersistedState) {
		s.Mode = game.ModeAlwaysWin
	}), nil)

	require.Equal(t, "Play 10 rounds", f.sess.View().Goal.Label)

	for i := 0; i < 10; i++ {
		f.playRound(game.ChoiceHigh)
	}

	assert.True(t, f.notifier.contains("Mini goal complete: Play 10 rounds"))
	v := f.sess.View()
	assert.Equal(t, "Win 3 hands", v.Goal.Label)
	assert.Equal(t, 3, v.Goal.Progress) // capped at the target
	assert.Equal(t, 100, v.Goal.Percent)
}

// stubCloud is an in-memory CloudStore for sync tests.
type stubCloud struct {
	mu     sync.Mutex
	states map[string]persist.PersistedState
	fail   bool
}

func newStubCloud() *stubCloud {
	return &stubCloud{states: make(map[string]persist.PersistedState)}
}

func (s *stubCloud) Load(_ context.Context, userID string) (persist.PersistedState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return persist.PersistedState{}, false, errors.New("remote unavailable")
	}
	state, ok := s.states[userID]
	return state, ok, nil
}

func (s *stubCloud) Save(_ context.Context, userID string, state persist.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("remote unavailable")
	}
	s.states[userID] = state
	return nil
}

func (s *stubCloud) Close() error { return nil }

func (s *stubCloud) get(userID string) (persist.PersistedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	return state, ok
}

func TestSignInLoadsRemoteProgress(t *testing.T) {
	cloud := newStubCloud()
	remote := persist.DefaultState()
	remote.Balance = 7_777
	remote.Streak = 2
	remote.WelcomeSeen = true
	cloud.states["user-1"] = remote

	f := newFixture(t, 16, savedState(nil), cloud)
	require.False(t, f.sess.View().SignedIn)

	f.sess.HandleAuth(context.Background(), auth.SignIn(auth.Identity{
		UserID:      "user-1",
		Email:       "player@example.com",
		AccessToken: "token",
	}))

	v := f.sess.View()
	assert.True(t, v.SignedIn)
	assert.Equal(t, "player@example.com", v.AuthEmail)
	assert.Equal(t, 7_777, v.Balance)
	assert.Equal(t, 2, v.Streak)
	assert.True(t, f.notifier.contains("Cloud progress loaded"))
}

func TestSignInSeedsEmptyRemote(t *testing.T) {
	cloud := newStubCloud()
	f := newFixture(t, 17, savedState(func(s *persist.PersistedState) {
		s.Balance = 4_200
	}), cloud)

	f.sess.HandleAuth(context.Background(), auth.SignIn(auth.Identity{
		UserID:      "user-1",
		AccessToken: "token",
	}))

	seeded, ok := cloud.get("user-1")
	require.True(t, ok)
	assert.Equal(t, 4_200, seeded.Balance)
	assert.True(t, f.notifier.contains("Cloud sync ready"))
}

func TestSignInLoadFailureKeepsLocalProgress(t *testing.T) {
	cloud := newStubCloud()
	cloud.fail = true
	f := newFixture(t, 18, savedState(func(s *persist.PersistedState) {
		s.Balance = 4_200
	}), cloud)

	f.sess.HandleAuth(context.Background(), auth.SignIn(auth.Identity{
		UserID:      "user-1",
		AccessToken: "token",
	}))

	assert.Equal(t, 4_200, f.sess.View().Balance)
	assert.True(t, f.notifier.contains("Cloud sync error"))
}

func TestMutationsDebounceToCloud(t *testing.T) {
	cloud := newStubCloud()
	f := newFixture(t, 19, savedState(nil), cloud)

	f.sess.HandleAuth(context.Background(), auth.SignIn(auth.Identity{
		UserID:      "user-1",
		AccessToken: "token",
	}))

	f.sess.SetBet(200)
	f.sess.SetBet(300)

	// Nothing hits the remote store until the quiet period elapses.
	seeded, _ := cloud.get("user-1")
	require.NotEqual(t, 300, seeded.LastBet)

	f.advance(persist.DefaultQuietPeriod)
	saved, ok := cloud.get("user-1")
	require.True(t, ok)
	assert.Equal(t, 300, saved.LastBet)
}

func TestSignOutStopsCloudSync(t *testing.T) {
	cloud := newStubCloud()
	f := newFixture(t, 20, savedState(nil), cloud)

	f.sess.HandleAuth(context.Background(), auth.SignIn(auth.Identity{
		UserID:      "user-1",
		AccessToken: "token",
	}))
	f.sess.SetBet(300)
	f.sess.HandleAuth(context.Background(), auth.SignOut())

	v := f.sess.View()
	assert.False(t, v.SignedIn)
	assert.Empty(t, v.AuthEmail)
	assert.True(t, f.notifier.contains("Signed out"))

	// The pending debounced write was cancelled with the sign-out.
	f.advance(2 * persist.DefaultQuietPeriod)
	saved, _ := cloud.get("user-1")
	assert.NotEqual(t, 300, saved.LastBet)
}

func TestResumeCloudRequiresIdentity(t *testing.T) {
	cloud := newStubCloud()
	remote := persist.DefaultState()
	remote.Balance = 9_000
	remote.WelcomeSeen = true
	cloud.states["player@example.com"] = remote

	// Signed out: resume is a no-op.
	f := newFixture(t, 21, savedState(nil), cloud)
	f.sess.ResumeCloud(context.Background())
	assert.Equal(t, game.StartingBalance, f.sess.View().Balance)

	// A persisted identity resumes against the remote snapshot. The user id
	// defaults to the stored email.
	f2 := newFixture(t, 22, savedState(func(s *persist.PersistedState) {
		s.AuthEmail = "player@example.com"
		s.AuthAccessToken = "token"
	}), cloud)
	f2.sess.ResumeCloud(context.Background())
	assert.Equal(t, 9_000, f2.sess.View().Balance)
}

func TestSettingsPersist(t *testing.T) {
	f := newFixture(t, 23, savedState(nil), nil)

	f.sess.SetSoundEnabled(true)
	f.sess.SetZenMode(true)
	f.sess.SetZenMusicEnabled(true)
	f.sess.SetZenMusicTrack("rain")
	f.sess.SetZenMusicVolume(150)
	f.sess.SetReducedMotion(true)
	f.sess.ToggleDebug()

	v := f.sess.View()
	assert.True(t, v.SoundEnabled)
	assert.True(t, v.ZenMode)
	assert.True(t, v.ZenMusicEnabled)
	assert.Equal(t, "rain", v.ZenMusicTrack)
	assert.Equal(t, 100, v.ZenMusicVolume)
	assert.True(t, v.ReducedMotion)
	assert.True(t, v.DebugOpen)

	saved := f.local.Load()
	assert.True(t, saved.ZenMode)
	assert.Equal(t, "rain", saved.ZenMusicTrack)
	assert.Equal(t, 100, saved.ZenMusicVolume)
}
