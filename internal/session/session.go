// Package session implements the round/session state machine for one
// High/Low table: bet validation, phase transitions, the timed
// reveal/result/next-round sequence, the borrow mechanic and the
// persistence hooks. One Session owns one shoe, balance and history;
// nothing is shared between sessions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	rand "math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/adamgoodwin/highlow/internal/auth"
	"github.com/adamgoodwin/highlow/internal/deck"
	"github.com/adamgoodwin/highlow/internal/game"
	"github.com/adamgoodwin/highlow/internal/persist"
	"github.com/adamgoodwin/highlow/internal/randutil"
)

// Config wires a Session's collaborators. Zero-value fields get safe
// defaults: real clock, time-seeded RNG, nop notifier/sounds and an
// in-memory local store.
type Config struct {
	Logger   *log.Logger
	Clock    quartz.Clock
	RNG      *rand.Rand
	Notifier game.Notifier
	Sounds   game.SoundSink
	Local    persist.LocalStore
	Cloud    persist.CloudStore // nil when cloud sync is not configured
	// QuietPeriod overrides the debounce window for cloud saves.
	QuietPeriod time.Duration
	BonusConfig *game.BonusConfig
	// OnChange, when set, is invoked (on its own goroutine) after a
	// timer-driven transition mutates state. Front-ends use it to refresh;
	// direct calls already know they changed something.
	OnChange func()
}

// Session is the single-threaded state machine for one table. All methods
// are safe for concurrent use; mutations are serialised on one mutex so no
// two rounds can ever be in flight together.
type Session struct {
	mu       sync.Mutex
	logger   *log.Logger
	clock    quartz.Clock
	rng      *rand.Rand
	notifier game.Notifier
	sounds   game.SoundSink
	local    persist.LocalStore
	cloud    persist.CloudStore
	saver    *persist.DebouncedSaver
	bonusCfg game.BonusConfig
	onChange func()

	// persisted
	balance         int
	mode            game.Mode
	fairDeckCount   int
	soundEnabled    bool
	zenMode         bool
	zenMusicEnabled bool
	zenMusicTrack   string
	zenMusicVolume  int
	reducedMotion   bool
	streak          int
	bet             int
	borrowUsed      bool
	welcomeSeen     bool
	debugOpen       bool

	// auth identity (live session, not snapshot-owned)
	authUserID      string
	authEmail       string
	authAccessToken string

	// session-local round state, rebuilt fresh on load/reconcile
	shoe          deck.Shoe
	current       *deck.Card
	reveal        *deck.Card
	phase         game.Phase
	pendingChoice game.Choice
	lastRound     *game.RoundRecord
	history       []game.RoundRecord

	sessionRoundsPlayed     int
	sessionWins             int
	sessionGoalIndex        int
	lastGoalCompletionRound int

	// roundSeq invalidates in-flight reveal/result timers: a timer only
	// applies if the sequence it captured is still current.
	roundSeq    uint64
	revealTimer *quartz.Timer
	resultTimer *quartz.Timer
}

// New loads the persisted snapshot, builds a fresh shoe and draws the first
// current card.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.RNG == nil {
		cfg.RNG = randutil.New(time.Now().UnixNano())
	}
	if cfg.Notifier == nil {
		cfg.Notifier = game.NopNotifier
	}
	if cfg.Sounds == nil {
		cfg.Sounds = game.NopSoundSink
	}
	if cfg.Local == nil {
		cfg.Local = persist.NewMemoryStore()
	}
	bonusCfg := game.DefaultBonusConfig
	if cfg.BonusConfig != nil {
		bonusCfg = *cfg.BonusConfig
	}

	s := &Session{
		logger:                  cfg.Logger.WithPrefix("session"),
		clock:                   cfg.Clock,
		rng:                     cfg.RNG,
		notifier:                cfg.Notifier,
		sounds:                  cfg.Sounds,
		local:                   cfg.Local,
		cloud:                   cfg.Cloud,
		bonusCfg:                bonusCfg,
		onChange:                cfg.OnChange,
		lastGoalCompletionRound: -1,
	}
	if cfg.Cloud != nil {
		s.saver = persist.NewDebouncedSaver(cfg.Clock, cfg.Cloud, cfg.Notifier, cfg.Logger, cfg.QuietPeriod)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyPersistedLocked(s.local.Load())
	s.rebuildRoundLocked()

	if !s.welcomeSeen {
		s.notifier.Notify(game.ToastInfo, "Welcome. Start with 10,000 chips and take your time.")
		s.welcomeSeen = true
		s.persistLocked(true)
	}
	return s
}

// Close cancels pending round timers and any scheduled cloud write.
func (s *Session) Close() {
	s.mu.Lock()
	s.cancelRoundTimersLocked()
	s.mu.Unlock()
	if s.saver != nil {
		s.saver.Cancel()
	}
}

// --- predicates -----------------------------------------------------------

func (s *Session) canPlayLocked() bool {
	return s.current != nil &&
		s.balance > 0 &&
		s.bet >= game.MinBet && s.bet <= s.balance &&
		s.phase != game.PhaseRevealing
}

func (s *Session) audioEnabledLocked() bool {
	return s.soundEnabled && !s.zenMode
}

func (s *Session) playCueLocked(cue game.SoundCue) {
	if s.audioEnabledLocked() {
		s.sounds.Play(cue)
	}
}

func (s *Session) signedInLocked() bool {
	return s.authUserID != "" && s.authAccessToken != ""
}

// --- bet handling ---------------------------------------------------------

// SetBet clamps value into [0, balance] and recomputes the phase unless a
// reveal is in progress.
func (s *Session) SetBet(value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playCueLocked(game.CueClick)
	s.setBetLocked(value)
	s.persistLocked(true)
}

func (s *Session) setBetLocked(value int) {
	s.bet = clampInt(value, 0, maxInt(0, s.balance))
	if s.phase != game.PhaseRevealing {
		s.recomputePhaseLocked()
	}
}

func (s *Session) recomputePhaseLocked() {
	if s.current != nil && s.bet >= game.MinBet && s.bet <= s.balance && s.balance > 0 {
		s.phase = game.PhaseReady
	} else {
		s.phase = game.PhaseIdle
	}
}

// AddBet adjusts the bet by delta.
func (s *Session) AddBet(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playCueLocked(game.CueClick)
	s.setBetLocked(s.bet + delta)
	s.persistLocked(true)
}

// SetMaxBet bets the whole balance.
func (s *Session) SetMaxBet() { s.SetBet(s.balanceSnapshot()) }

// ClearBet zeroes the bet.
func (s *Session) ClearBet() { s.SetBet(0) }

func (s *Session) balanceSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

// --- round flow -----------------------------------------------------------

// Choose submits the player's prediction and runs the round: pick the next
// card, compute the payout, then walk the timed reveal → result →
// next-round sequence. Invalid calls are no-ops; edge-card calls get a
// warning toast.
func (s *Session) Choose(choice game.Choice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !choice.Valid() || !s.canPlayLocked() {
		return
	}
	current := *s.current
	if choice == game.ChoiceHigh && current.IsKing() {
		s.notifier.Notify(game.ToastWarning, "HIGH unavailable on a King")
		return
	}
	if choice == game.ChoiceLow && current.IsAce() {
		s.notifier.Notify(game.ToastWarning, "LOW unavailable on an Ace")
		return
	}
	if len(s.shoe) == 0 {
		// Nothing to draw: reshuffle and abort the round.
		s.shoe = s.freshShoeLocked(s.current)
		return
	}

	s.playCueLocked(game.CueFlip)
	s.pendingChoice = choice
	s.phase = game.PhaseChoice

	pick := game.PickNextCard(s.shoe, current, s.mode, choice, s.fairDeckCount, s.rng)
	if pick.DidReshuffle {
		s.notifier.Notify(game.ToastInfo, "Shuffling…")
	}
	if pick.RiggedFallbackUsed {
		s.logger.Warn("Rigged draw fell through to the defensive fallback",
			"current", current.String(), "mode", s.mode, "choice", choice)
	}

	outcome := game.DetermineOutcome(choice, current, pick.Next)
	payout := game.ResolvePayout(s.bet, outcome, s.streak, s.bonusCfg)
	nextBalance := maxInt(0, s.balance+payout.Profit)

	round := game.RoundRecord{
		ID:        uuid.NewString(),
		Current:   current,
		Next:      pick.Next,
		Choice:    choice,
		Outcome:   outcome,
		Bet:       s.bet,
		Profit:    payout.Profit,
		Bonus:     payout.Bonus,
		Mode:      s.mode,
		Timestamp: s.clock.Now(),
	}

	next := pick.Next
	s.reveal = &next
	s.phase = game.PhaseRevealing

	s.roundSeq++
	seq := s.roundSeq
	workingShoe := pick.Shoe
	s.revealTimer = s.clock.AfterFunc(s.revealDelayLocked(), func() {
		s.applyResult(seq, round, payout, nextBalance, workingShoe)
	})
}

// applyResult moves revealing → result and applies the round's mutations.
func (s *Session) applyResult(seq uint64, round game.RoundRecord, payout game.Payout, nextBalance int, workingShoe deck.Shoe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.roundSeq {
		return // superseded by reset/mode change
	}

	s.phase = game.PhaseResult
	s.lastRound = &round
	s.history = append([]game.RoundRecord{round}, s.history...)
	if len(s.history) > game.MaxHistory {
		s.history = s.history[:game.MaxHistory]
	}
	s.balance = nextBalance
	s.streak = payout.Streak
	s.sessionRoundsPlayed++
	if round.Outcome == game.OutcomeWin {
		s.sessionWins++
	}
	s.maybeAdvanceGoalLocked()
	s.persistLocked(true)

	switch round.Outcome {
	case game.OutcomeWin:
		s.playCueLocked(game.CueWin)
		if payout.Bonus > 0 {
			s.notifier.Notify(game.ToastSuccess, fmt.Sprintf("Nice hit! +%d (bonus)", round.Profit))
		} else {
			s.notifier.Notify(game.ToastSuccess, fmt.Sprintf("Win! +%d", round.Profit))
		}
		if payout.Streak == 3 || payout.Streak == 5 || payout.Streak == 10 {
			s.notifier.Notify(game.ToastInfo, fmt.Sprintf("Nice run: %d-win streak", payout.Streak))
		}
	case game.OutcomeLoss:
		s.playCueLocked(game.CueLoss)
		s.notifier.Notify(game.ToastError, fmt.Sprintf("Ouch! -%d", round.Bet))
	case game.OutcomePush:
		s.playCueLocked(game.CuePush)
		s.notifier.Notify(game.ToastWarning, "Push (tie), bet returned")
	}

	s.resultTimer = s.clock.AfterFunc(s.nextRoundDelayLocked(), func() {
		s.startNextRound(seq, workingShoe, round.Next)
	})
	s.fireOnChangeLocked()
}

// startNextRound promotes the revealed card to the new current card and
// re-arms the table.
func (s *Session) startNextRound(seq uint64, workingShoe deck.Shoe, nextCurrent deck.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.roundSeq {
		return
	}

	s.shoe = s.ensureShoeLocked(workingShoe, &nextCurrent)
	cur := nextCurrent
	s.current = &cur
	s.reveal = nil
	s.pendingChoice = ""
	s.bet = clampInt(s.bet, 0, maxInt(0, s.balance))
	s.recomputePhaseLocked()
	s.persistLocked(true)
	s.fireOnChangeLocked()
}

func (s *Session) fireOnChangeLocked() {
	if s.onChange != nil {
		go s.onChange()
	}
}

func (s *Session) revealDelayLocked() time.Duration {
	if s.reducedMotion || s.zenMode {
		return 500 * time.Millisecond
	}
	return 700 * time.Millisecond
}

func (s *Session) nextRoundDelayLocked() time.Duration {
	switch {
	case s.reducedMotion:
		return 80 * time.Millisecond
	case s.zenMode:
		return 560 * time.Millisecond
	default:
		return 750 * time.Millisecond
	}
}

// --- shoe management ------------------------------------------------------

// ensureShoeLocked enforces the reshuffle policy: below the threshold the
// shoe is replaced with a freshly built-and-shuffled one, excluding the
// face-up card so it can never be duplicated.
func (s *Session) ensureShoeLocked(working deck.Shoe, exclude *deck.Card) deck.Shoe {
	if len(working) >= game.ShuffleThreshold {
		return working
	}
	return s.freshShoeLocked(exclude)
}

func (s *Session) freshShoeLocked(exclude *deck.Card) deck.Shoe {
	s.notifier.Notify(game.ToastInfo, "Shuffling…")
	fresh := deck.Shuffle(deck.NewShoe(s.fairDeckCount), s.rng)
	if exclude != nil {
		fresh = deck.Remove(fresh, exclude.ID)
	}
	return fresh
}

func (s *Session) drawNewCurrentLocked() {
	source := s.shoe
	if len(source) < game.ShuffleThreshold {
		source = s.freshShoeLocked(nil)
	}
	drawn := game.DrawCurrentCard(source, s.mode, s.rng)
	s.shoe = drawn.Shoe
	cur := drawn.Card
	s.current = &cur
}

// --- settings and table management ---------------------------------------

// ChangeMode switches the draw mode and redraws the current card under the
// new mode's rules. Any in-flight round timers are cancelled first.
func (s *Session) ChangeMode(mode game.Mode) {
	if !mode.Valid() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelRoundTimersLocked()
	s.mode = mode
	s.notifier.Notify(game.ToastInfo, "Mode: "+mode.Label())
	s.drawNewCurrentLocked()
	s.reveal = nil
	s.pendingChoice = ""
	s.recomputePhaseLocked()
	s.persistLocked(true)
}

// ChangeFairDeckCount clamps n to 1..3, rebuilds a full shoe and redraws
// the current card.
func (s *Session) ChangeFairDeckCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelRoundTimersLocked()
	s.fairDeckCount = clampInt(n, 1, 3)
	suffix := ""
	if s.fairDeckCount > 1 {
		suffix = "s"
	}
	s.notifier.Notify(game.ToastInfo, fmt.Sprintf("Fair mode shoe: %d deck", s.fairDeckCount)+suffix)

	s.shoe = deck.Shuffle(deck.NewShoe(s.fairDeckCount), s.rng)
	drawn := game.DrawCurrentCard(s.shoe, s.mode, s.rng)
	s.shoe = drawn.Shoe
	cur := drawn.Card
	s.current = &cur
	s.reveal = nil
	s.pendingChoice = ""
	s.recomputePhaseLocked()
	s.persistLocked(true)
}

// ResetTable restores the starting balance and clears every trace of the
// current table session, including the one-time borrow latch.
func (s *Session) ResetTable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelRoundTimersLocked()
	s.balance = game.StartingBalance
	s.streak = 0
	s.bet = game.DefaultBet
	s.borrowUsed = false
	s.sessionRoundsPlayed = 0
	s.sessionWins = 0
	s.sessionGoalIndex = 0
	s.lastGoalCompletionRound = -1
	s.lastRound = nil
	s.reveal = nil
	s.pendingChoice = ""
	s.history = nil

	s.shoe = deck.Shuffle(deck.NewShoe(s.fairDeckCount), s.rng)
	drawn := game.DrawCurrentCard(s.shoe, s.mode, s.rng)
	s.shoe = drawn.Shoe
	cur := drawn.Card
	s.current = &cur
	s.phase = game.PhaseReady
	s.notifier.Notify(game.ToastInfo, "Table reset")
	s.persistLocked(true)
}

// BorrowChipsOnce grants the one-time house credit. Permitted only when the
// balance has dropped below the minimum bet and the borrow is unused.
func (s *Session) BorrowChipsOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(s.balance < game.MinBet && !s.borrowUsed) {
		return
	}
	s.balance += game.BorrowCredit
	s.borrowUsed = true
	if s.bet < game.MinBet {
		s.bet = game.DefaultBet
	}
	s.phase = game.PhaseReady
	s.notifier.Notify(game.ToastInfo, "House credit added: +5,000 chips (one-time borrow)")
	s.persistLocked(true)
}

// SetSoundEnabled toggles sound.
func (s *Session) SetSoundEnabled(v bool) { s.setFlag(func() { s.soundEnabled = v }) }

// SetZenMode toggles zen mode, which mutes audio and softens round pacing.
func (s *Session) SetZenMode(v bool) { s.setFlag(func() { s.zenMode = v }) }

// SetReducedMotion toggles the shortened animation timings.
func (s *Session) SetReducedMotion(v bool) { s.setFlag(func() { s.reducedMotion = v }) }

// SetZenMusicEnabled toggles the ambient music preference.
func (s *Session) SetZenMusicEnabled(v bool) { s.setFlag(func() { s.zenMusicEnabled = v }) }

// SetZenMusicTrack selects the ambient track.
func (s *Session) SetZenMusicTrack(track string) {
	s.setFlag(func() {
		if track != "" {
			s.zenMusicTrack = track
		}
	})
}

// SetZenMusicVolume clamps the volume to 0..100.
func (s *Session) SetZenMusicVolume(v int) {
	s.setFlag(func() { s.zenMusicVolume = clampInt(v, 0, 100) })
}

// ToggleDebug flips the debug panel latch.
func (s *Session) ToggleDebug() { s.setFlag(func() { s.debugOpen = !s.debugOpen }) }

func (s *Session) setFlag(apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apply()
	s.persistLocked(true)
}

// --- auth and cloud sync --------------------------------------------------

// HandleAuth consumes a sign-in/out event from the external auth provider.
// Sign-in runs the cloud reconcile; sign-out cancels any pending cloud
// write and clears the identity.
func (s *Session) HandleAuth(ctx context.Context, ev auth.Event) {
	if !ev.SignedIn {
		if s.saver != nil {
			s.saver.Cancel()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.authUserID = ""
		s.authEmail = ""
		s.authAccessToken = ""
		s.persistLocked(false)
		s.notifier.Notify(game.ToastInfo, "Signed out")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authUserID = ev.Identity.UserID
	s.authEmail = ev.Identity.Email
	s.authAccessToken = ev.Identity.AccessToken
	s.persistLocked(false)
	s.syncCloudLocked(ctx, true)
}

// ResumeCloud pulls the remote snapshot on launch for an already signed-in
// session. It does not seed the remote store when no snapshot exists.
func (s *Session) ResumeCloud(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signedInLocked() {
		return
	}
	s.syncCloudLocked(ctx, false)
}

func (s *Session) syncCloudLocked(ctx context.Context, seedIfMissing bool) {
	if s.cloud == nil || !s.signedInLocked() {
		return
	}

	remote, found, err := s.cloud.Load(ctx, s.authUserID)
	if err != nil {
		s.logger.Warn("Cloud load failed", "user", s.authUserID, "error", err)
		s.notifier.Notify(game.ToastWarning, "Cloud sync error: progress kept locally")
		return
	}

	if found {
		merged := persist.ReconcileOnSignIn(s.snapshotLocked(), remote)
		s.applyPersistedLocked(merged)
		s.rebuildRoundLocked()
		s.persistLocked(false)
		s.notifier.Notify(game.ToastInfo, "Cloud progress loaded")
		return
	}

	if seedIfMissing {
		if err := s.cloud.Save(ctx, s.authUserID, s.snapshotLocked()); err != nil {
			s.logger.Warn("Cloud seed failed", "user", s.authUserID, "error", err)
			s.notifier.Notify(game.ToastWarning, "Cloud save error: progress kept locally")
			return
		}
		s.notifier.Notify(game.ToastSuccess, "Cloud sync ready")
	}
}

// --- persistence ----------------------------------------------------------

func (s *Session) snapshotLocked() persist.PersistedState {
	return persist.PersistedState{
		Balance:         s.balance,
		Mode:            s.mode,
		FairDeckCount:   s.fairDeckCount,
		SoundEnabled:    s.soundEnabled,
		ZenMode:         s.zenMode,
		ZenMusicEnabled: s.zenMusicEnabled,
		ZenMusicTrack:   s.zenMusicTrack,
		ZenMusicVolume:  s.zenMusicVolume,
		ReducedMotion:   s.reducedMotion,
		Streak:          s.streak,
		LastBet:         s.bet,
		BorrowUsed:      s.borrowUsed,
		WelcomeSeen:     s.welcomeSeen,
		DebugOpen:       s.debugOpen,
		AuthEmail:       s.authEmail,
		AuthAccessToken: s.authAccessToken,
	}
}

func (s *Session) applyPersistedLocked(saved persist.PersistedState) {
	s.balance = saved.Balance
	s.mode = saved.Mode
	s.fairDeckCount = clampInt(saved.FairDeckCount, 1, 3)
	s.soundEnabled = saved.SoundEnabled
	s.zenMode = saved.ZenMode
	s.zenMusicEnabled = saved.ZenMusicEnabled
	s.zenMusicTrack = saved.ZenMusicTrack
	s.zenMusicVolume = saved.ZenMusicVolume
	s.reducedMotion = saved.ReducedMotion
	s.streak = saved.Streak
	s.bet = saved.LastBet
	s.borrowUsed = saved.BorrowUsed
	s.welcomeSeen = saved.WelcomeSeen
	s.debugOpen = saved.DebugOpen
	s.authEmail = saved.AuthEmail
	s.authAccessToken = saved.AuthAccessToken
	if s.authUserID == "" && s.authEmail != "" {
		s.authUserID = s.authEmail
	}
}

// rebuildRoundLocked discards all session-local round data and starts a
// fresh round from a new shoe. Used on construction and after a cloud
// reconcile: the shoe, cards and history are never resurrected from a
// snapshot.
func (s *Session) rebuildRoundLocked() {
	s.cancelRoundTimersLocked()
	s.reveal = nil
	s.pendingChoice = ""
	s.lastRound = nil
	s.history = nil
	s.shoe = deck.Shuffle(deck.NewShoe(s.fairDeckCount), s.rng)
	drawn := game.DrawCurrentCard(s.shoe, s.mode, s.rng)
	s.shoe = drawn.Shoe
	cur := drawn.Card
	s.current = &cur
	s.recomputePhaseLocked()
}

// persistLocked writes the snapshot through to local storage and, while
// signed in, queues the debounced cloud write.
func (s *Session) persistLocked(pushCloud bool) {
	snapshot := s.snapshotLocked()
	s.local.Save(snapshot)
	if pushCloud && s.saver != nil && s.signedInLocked() {
		s.saver.Queue(s.authUserID, snapshot)
	}
}

func (s *Session) cancelRoundTimersLocked() {
	s.roundSeq++
	if s.revealTimer != nil {
		s.revealTimer.Stop()
		s.revealTimer = nil
	}
	if s.resultTimer != nil {
		s.resultTimer.Stop()
		s.resultTimer = nil
	}
}

// --- small helpers --------------------------------------------------------

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
