package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/adamgoodwin/highlow/internal/auth"
	"github.com/adamgoodwin/highlow/internal/game"
	"github.com/adamgoodwin/highlow/internal/session"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// Connection owns one websocket client and its table session. Toast and
// sound events stream out as they happen; a fresh state snapshot follows
// every handled command and every timer-driven transition.
type Connection struct {
	id      string
	ws      *websocket.Conn
	server  *Server
	session *session.Session
	logger  *log.Logger

	send      chan *Message
	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(ws *websocket.Conn, srv *Server) *Connection {
	id := uuid.NewString()
	c := &Connection{
		id:     id,
		ws:     ws,
		server: srv,
		logger: srv.logger.WithPrefix("conn").With("id", id[:8]),
		send:   make(chan *Message, sendBufferSize),
		done:   make(chan struct{}),
	}

	c.session = session.New(session.Config{
		Logger:   srv.logger,
		Clock:    srv.clock,
		Notifier: game.NotifierFunc(c.pushToast),
		Sounds:   game.SoundFunc(c.pushSound),
		Cloud:    srv.cloud,
		OnChange: c.pushState,
	})
	return c
}

// pushToast forwards a notification to the client. Dropped when the send
// buffer is full; notifications are fire-and-forget.
func (c *Connection) pushToast(kind game.ToastKind, message string) {
	msg, err := NewMessage(MessageTypeToast, ToastData{Kind: kind, Message: message})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (c *Connection) pushSound(cue game.SoundCue) {
	msg, err := NewMessage(MessageTypeSound, SoundData{Cue: cue})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (c *Connection) pushState() {
	msg, err := NewMessage(MessageTypeState, c.session.View())
	if err != nil {
		c.logger.Error("Failed to encode state", "error", err)
		return
	}
	c.enqueue(msg)
}

func (c *Connection) enqueue(msg *Message) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.logger.Debug("Send buffer full, dropping message", "type", msg.Type)
	}
}

// readPump consumes client commands until the connection drops.
func (c *Connection) readPump(ctx context.Context) {
	defer c.close()

	c.pushState()
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Unexpected close", "error", err)
			}
			return
		}
		c.handle(ctx, &msg)
		c.pushState()
	}
}

// writePump flushes outbound messages.
func (c *Connection) writePump() {
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Debug("Write failed", "error", err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Connection) handle(ctx context.Context, msg *Message) {
	switch msg.Type {
	case MessageTypeSetBet:
		var data SetBetData
		if c.decode(msg, &data) {
			c.session.SetBet(data.Value)
		}
	case MessageTypeAddBet:
		var data AddBetData
		if c.decode(msg, &data) {
			c.session.AddBet(data.Delta)
		}
	case MessageTypeChoose:
		var data ChooseData
		if c.decode(msg, &data) {
			c.session.Choose(data.Choice)
		}
	case MessageTypeChangeMode:
		var data ChangeModeData
		if c.decode(msg, &data) {
			c.session.ChangeMode(data.Mode)
		}
	case MessageTypeChangeDeckCount:
		var data ChangeDeckCountData
		if c.decode(msg, &data) {
			c.session.ChangeFairDeckCount(data.Count)
		}
	case MessageTypeResetTable:
		c.session.ResetTable()
	case MessageTypeBorrow:
		c.session.BorrowChipsOnce()
	case MessageTypeSetSound:
		var data BoolData
		if c.decode(msg, &data) {
			c.session.SetSoundEnabled(data.Value)
		}
	case MessageTypeSetZenMode:
		var data BoolData
		if c.decode(msg, &data) {
			c.session.SetZenMode(data.Value)
		}
	case MessageTypeSetReducedMotion:
		var data BoolData
		if c.decode(msg, &data) {
			c.session.SetReducedMotion(data.Value)
		}
	case MessageTypeToggleDebug:
		c.session.ToggleDebug()
	case MessageTypeSignIn:
		var data SignInData
		if c.decode(msg, &data) {
			c.session.HandleAuth(ctx, auth.SignIn(auth.Identity{
				UserID:      data.UserID,
				Email:       data.Email,
				AccessToken: data.AccessToken,
			}))
		}
	case MessageTypeSignOut:
		c.session.HandleAuth(ctx, auth.SignOut())
	case MessageTypeGetState:
		// state is pushed after every message anyway
	default:
		c.pushError("unknown message type: " + string(msg.Type))
	}
}

func (c *Connection) decode(msg *Message, dst any) bool {
	if err := json.Unmarshal(msg.Data, dst); err != nil {
		c.pushError("invalid payload for " + string(msg.Type))
		return false
	}
	return true
}

func (c *Connection) pushError(message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Message: message})
	if err != nil {
		return
	}
	c.enqueue(msg)
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.session.Close()
		c.ws.Close()
		// Non-blocking: during shutdown the lifecycle loop is already gone.
		select {
		case c.server.unregister <- c:
		default:
		}
	})
}
