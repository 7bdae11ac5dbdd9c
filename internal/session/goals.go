package session

import "github.com/adamgoodwin/highlow/internal/game"

// Session mini-goals rotate as each one completes: small targets computed
// from the session counters, purely cosmetic and never persisted.

type goal struct {
	label       string
	targetLabel string
	target      int
	progress    func(roundsPlayed, wins, streak int) int
}

var sessionGoals = []goal{
	{"Play 10 rounds", "10 rounds", 10, func(roundsPlayed, _, _ int) int { return roundsPlayed }},
	{"Win 3 hands", "3 wins", 3, func(_, wins, _ int) int { return wins }},
	{"Reach a 3-win streak", "3 streak", 3, func(_, _, streak int) int { return streak }},
}

// GoalView is the active mini-goal as shown to front-ends.
type GoalView struct {
	Label       string `json:"label"`
	TargetLabel string `json:"targetLabel"`
	Target      int    `json:"target"`
	Progress    int    `json:"progress"`
	Percent     int    `json:"percent"`
}

func (s *Session) goalViewLocked() GoalView {
	g := sessionGoals[s.sessionGoalIndex%len(sessionGoals)]
	progress := g.progress(s.sessionRoundsPlayed, s.sessionWins, s.streak)
	if progress > g.target {
		progress = g.target
	}
	percent := progress * 100 / g.target
	if percent > 100 {
		percent = 100
	}
	return GoalView{
		Label:       g.label,
		TargetLabel: g.targetLabel,
		Target:      g.target,
		Progress:    progress,
		Percent:     percent,
	}
}

// maybeAdvanceGoalLocked checks the active goal after a round and rotates
// to the next one on completion. Completion is latched per round so a
// single round cannot complete the same goal twice.
func (s *Session) maybeAdvanceGoalLocked() {
	g := sessionGoals[s.sessionGoalIndex%len(sessionGoals)]
	if g.progress(s.sessionRoundsPlayed, s.sessionWins, s.streak) < g.target {
		return
	}
	if s.lastGoalCompletionRound == s.sessionRoundsPlayed {
		return
	}
	s.lastGoalCompletionRound = s.sessionRoundsPlayed
	s.notifier.Notify(game.ToastInfo, "Mini goal complete: "+g.label)
	s.sessionGoalIndex = (s.sessionGoalIndex + 1) % len(sessionGoals)
}
