// Package persist owns the durable projection of a session: the
// PersistedState snapshot, its defensive deserialization, the local
// write-through store, the cloud profile store and the sign-in reconciler.
package persist

import (
	"encoding/json"
	"math"

	"github.com/adamgoodwin/highlow/internal/game"
)

// PersistedState is the serializable snapshot of session configuration and
// progress. Ephemeral round data (shoe, current card, history) never rides
// along; it is rebuilt fresh wherever a snapshot is applied.
type PersistedState struct {
	Balance         int       `json:"balance"`
	Mode            game.Mode `json:"mode"`
	FairDeckCount   int       `json:"fairDeckCount"` // 1, 2 or 3
	SoundEnabled    bool      `json:"soundEnabled"`
	ZenMode         bool      `json:"zenMode"`
	ZenMusicEnabled bool      `json:"zenMusicEnabled"`
	ZenMusicTrack   string    `json:"zenMusicTrack"`
	ZenMusicVolume  int       `json:"zenMusicVolume"` // 0..100
	ReducedMotion   bool      `json:"reducedMotion"`
	Streak          int       `json:"streak"`
	LastBet         int       `json:"lastBet"`
	BorrowUsed      bool      `json:"borrowUsed"`
	WelcomeSeen     bool      `json:"welcomeSeen"`
	DebugOpen       bool      `json:"debugOpen"`
	AuthEmail       string    `json:"authEmail,omitempty"`
	AuthAccessToken string    `json:"authAccessToken,omitempty"`
}

// DefaultState returns the first-run snapshot.
func DefaultState() PersistedState {
	return PersistedState{
		Balance:        game.StartingBalance,
		Mode:           game.ModeFair,
		FairDeckCount:  1,
		ZenMusicTrack:  "calm",
		ZenMusicVolume: 35,
		LastBet:        game.DefaultBet,
	}
}

// Sanitize turns an untrusted JSON payload into a fully valid
// PersistedState. Every field is validated independently and falls back to
// its default when absent, wrong-typed or out of range; unknown fields are
// ignored. Sanitize is total: it never fails, whatever the input.
func Sanitize(raw []byte) PersistedState {
	state := DefaultState()
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return state
	}

	if v, ok := intField(fields, "balance"); ok {
		state.Balance = clampMin(v, 0)
	}
	if v, ok := stringField(fields, "mode"); ok {
		if m := game.Mode(v); m.Valid() {
			state.Mode = m
		}
	}
	if v, ok := intField(fields, "fairDeckCount"); ok && v >= 1 && v <= 3 {
		state.FairDeckCount = v
	}
	boolField(fields, "soundEnabled", &state.SoundEnabled)
	boolField(fields, "zenMode", &state.ZenMode)
	boolField(fields, "zenMusicEnabled", &state.ZenMusicEnabled)
	if v, ok := stringField(fields, "zenMusicTrack"); ok && v != "" {
		state.ZenMusicTrack = v
	}
	if v, ok := intField(fields, "zenMusicVolume"); ok {
		state.ZenMusicVolume = clamp(v, 0, 100)
	}
	boolField(fields, "reducedMotion", &state.ReducedMotion)
	if v, ok := intField(fields, "streak"); ok {
		state.Streak = clampMin(v, 0)
	}
	if v, ok := intField(fields, "lastBet"); ok {
		state.LastBet = clampMin(v, 0)
	}
	boolField(fields, "borrowUsed", &state.BorrowUsed)
	boolField(fields, "welcomeSeen", &state.WelcomeSeen)
	boolField(fields, "debugOpen", &state.DebugOpen)
	if v, ok := stringField(fields, "authEmail"); ok {
		state.AuthEmail = v
	}
	if v, ok := stringField(fields, "authAccessToken"); ok {
		state.AuthAccessToken = v
	}
	return state
}

func intField(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(math.Floor(f)), true
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func boolField(fields map[string]json.RawMessage, key string, dst *bool) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return
	}
	*dst = b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampMin(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}
