// Package tui is the terminal front-end for a local High/Low table. It
// binds to the same session API the websocket server exposes, rendering the
// session view and forwarding key presses as player actions.
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/adamgoodwin/highlow/internal/deck"
	"github.com/adamgoodwin/highlow/internal/game"
	"github.com/adamgoodwin/highlow/internal/session"
)

const (
	refreshInterval = 100 * time.Millisecond
	maxToasts       = 4
)

// Toasts collects engine notifications for rendering. Implements
// game.Notifier; oldest entries roll off.
type Toasts struct {
	mu     sync.Mutex
	toasts []game.Toast
}

// Notify implements game.Notifier.
func (t *Toasts) Notify(kind game.ToastKind, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts = append(t.toasts, game.Toast{Kind: kind, Message: message})
	if len(t.toasts) > maxToasts {
		t.toasts = t.toasts[len(t.toasts)-maxToasts:]
	}
}

func (t *Toasts) recent() []game.Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]game.Toast(nil), t.toasts...)
}

type keyMap struct {
	High    key.Binding
	Low     key.Binding
	BetUp   key.Binding
	BetDown key.Binding
	MaxBet  key.Binding
	Mode    key.Binding
	Decks   key.Binding
	Borrow  key.Binding
	Reset   key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	High:    key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "high")),
	Low:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "low")),
	BetUp:   key.NewBinding(key.WithKeys("up", "+"), key.WithHelp("↑/+", "raise bet")),
	BetDown: key.NewBinding(key.WithKeys("down", "-"), key.WithHelp("↓/-", "lower bet")),
	MaxBet:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "max bet")),
	Mode:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "cycle mode")),
	Decks:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "cycle decks")),
	Borrow:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "borrow")),
	Reset:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset table")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// Model is the bubbletea model for the table.
type Model struct {
	sess   *session.Session
	toasts *Toasts
	view   session.View
}

// NewModel binds a model to sess. toasts must be the Notifier the session
// was built with.
func NewModel(sess *session.Session, toasts *Toasts) Model {
	return Model{sess: sess, toasts: toasts, view: sess.View()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.view = m.sess.View()
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.High):
			m.sess.Choose(game.ChoiceHigh)
		case key.Matches(msg, keys.Low):
			m.sess.Choose(game.ChoiceLow)
		case key.Matches(msg, keys.BetUp):
			m.sess.AddBet(game.BetStep)
		case key.Matches(msg, keys.BetDown):
			m.sess.AddBet(-game.BetStep)
		case key.Matches(msg, keys.MaxBet):
			m.sess.SetMaxBet()
		case key.Matches(msg, keys.Mode):
			m.sess.ChangeMode(nextMode(m.view.Mode))
		case key.Matches(msg, keys.Decks):
			m.sess.ChangeFairDeckCount(m.view.FairDeckCount%3 + 1)
		case key.Matches(msg, keys.Borrow):
			m.sess.BorrowChipsOnce()
		case key.Matches(msg, keys.Reset):
			m.sess.ResetTable()
		}
		m.view = m.sess.View()
	}
	return m, nil
}

func nextMode(m game.Mode) game.Mode {
	switch m {
	case game.ModeFair:
		return game.ModeAlwaysWin
	case game.ModeAlwaysWin:
		return game.ModeAlwaysLose
	default:
		return game.ModeFair
	}
}

// View implements tea.Model.
func (m Model) View() string {
	v := m.view
	var b strings.Builder

	b.WriteString(headerStyle.Render("HIGH / LOW"))
	b.WriteString("  " + infoStyle.Render(v.Mode.Label()))
	b.WriteString(fmt.Sprintf("  shoe:%d×52 (%d left)\n\n", v.FairDeckCount, v.ShoeSize))

	b.WriteString(fmt.Sprintf("  Balance %s   Bet %d   Streak %d\n\n",
		balanceStyle.Render(fmt.Sprintf("%d", v.Balance)), v.Bet, v.Streak))

	b.WriteString("  Current: " + renderCard(v.Current))
	if v.Reveal != nil {
		b.WriteString("   Next: " + renderCard(v.Reveal))
	}
	b.WriteString("\n")

	if v.LastRound != nil {
		b.WriteString("  " + renderOutcome(v.LastRound) + "\n")
	}
	b.WriteString(fmt.Sprintf("\n  Goal: %s (%d/%d)\n", v.Goal.Label, v.Goal.Progress, v.Goal.Target))

	for _, t := range m.toasts.recent() {
		b.WriteString("  " + renderToast(t) + "\n")
	}

	if v.CanBorrow {
		b.WriteString("\n  " + warningStyle.Render("Out of chips — press b to borrow 5,000 once") + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(
		"  h high · l low · ↑/↓ bet · m max · g mode · d decks · r reset · q quit") + "\n")
	return b.String()
}

func renderCard(c *deck.Card) string {
	if c == nil {
		return infoStyle.Render("--")
	}
	if c.IsRed() {
		return redCardStyle.Render(c.String())
	}
	return blackCardStyle.Render(c.String())
}

func renderOutcome(r *game.RoundRecord) string {
	switch r.Outcome {
	case game.OutcomeWin:
		return successStyle.Render(fmt.Sprintf("Win! +%d", r.Profit))
	case game.OutcomeLoss:
		return errorStyle.Render(fmt.Sprintf("Loss -%d", r.Bet))
	default:
		return warningStyle.Render("Push, bet returned")
	}
}

func renderToast(t game.Toast) string {
	switch t.Kind {
	case game.ToastSuccess:
		return successStyle.Render(t.Message)
	case game.ToastError:
		return errorStyle.Render(t.Message)
	case game.ToastWarning:
		return warningStyle.Render(t.Message)
	default:
		return infoStyle.Render(t.Message)
	}
}
