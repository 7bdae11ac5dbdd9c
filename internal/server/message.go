package server

import (
	"encoding/json"
	"time"

	"github.com/adamgoodwin/highlow/internal/game"
	"github.com/adamgoodwin/highlow/internal/session"
)

// MessageType identifies a websocket message.
type MessageType string

// Client → server message types.
const (
	MessageTypeSetBet           MessageType = "set_bet"
	MessageTypeAddBet           MessageType = "add_bet"
	MessageTypeChoose           MessageType = "choose"
	MessageTypeChangeMode       MessageType = "change_mode"
	MessageTypeChangeDeckCount  MessageType = "change_deck_count"
	MessageTypeResetTable       MessageType = "reset_table"
	MessageTypeBorrow           MessageType = "borrow"
	MessageTypeSetSound         MessageType = "set_sound"
	MessageTypeSetZenMode       MessageType = "set_zen_mode"
	MessageTypeSetReducedMotion MessageType = "set_reduced_motion"
	MessageTypeToggleDebug      MessageType = "toggle_debug"
	MessageTypeSignIn           MessageType = "sign_in"
	MessageTypeSignOut          MessageType = "sign_out"
	MessageTypeGetState         MessageType = "get_state"
)

// Server → client message types.
const (
	MessageTypeState MessageType = "state"
	MessageTypeToast MessageType = "toast"
	MessageTypeSound MessageType = "sound"
	MessageTypeError MessageType = "error"
)

// Message is the websocket envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage wraps data in an envelope with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	var dataBytes json.RawMessage
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{Type: messageType, Data: dataBytes, Timestamp: time.Now()}, nil
}

// Client → server payloads.

type SetBetData struct {
	Value int `json:"value"`
}

type AddBetData struct {
	Delta int `json:"delta"`
}

type ChooseData struct {
	Choice game.Choice `json:"choice"`
}

type ChangeModeData struct {
	Mode game.Mode `json:"mode"`
}

type ChangeDeckCountData struct {
	Count int `json:"count"`
}

type BoolData struct {
	Value bool `json:"value"`
}

type SignInData struct {
	UserID      string `json:"userId"`
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"accessToken"`
}

// Server → client payloads.

// StateData mirrors the session view verbatim so every front-end sees the
// same predicates the engine enforces.
type StateData = session.View

type ToastData struct {
	Kind    game.ToastKind `json:"kind"`
	Message string         `json:"message"`
}

type SoundData struct {
	Cue game.SoundCue `json:"cue"`
}

type ErrorData struct {
	Message string `json:"message"`
}
