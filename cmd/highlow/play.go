package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/adamgoodwin/highlow/internal/auth"
	"github.com/adamgoodwin/highlow/internal/persist"
	"github.com/adamgoodwin/highlow/internal/randutil"
	"github.com/adamgoodwin/highlow/internal/session"
	"github.com/adamgoodwin/highlow/internal/tui"
)

// PlayCmd runs a local table in the terminal.
type PlayCmd struct {
	StateFile string `kong:"help='Path to the local state file (defaults to the user config dir)'"`
	ProfileDB string `kong:"help='Optional sqlite profile database for cloud-style sync'"`
	Seed      *int64 `kong:"help='Deterministic RNG seed (optional)'"`
	Debug     bool   `kong:"help='Enable debug logging'"`
}

func (c *PlayCmd) Run() error {
	logger := setupLogger("warn", c.Debug)

	statePath := c.StateFile
	if statePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = "."
		}
		statePath = filepath.Join(dir, "highlow", "state.json")
	}

	var cloud persist.CloudStore
	if c.ProfileDB != "" {
		store, err := persist.NewSQLiteStore(c.ProfileDB)
		if err != nil {
			return err
		}
		defer store.Close()
		cloud = store
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}

	toasts := &tui.Toasts{}
	sess := session.New(session.Config{
		Logger:   logger,
		RNG:      randutil.New(seed),
		Notifier: toasts,
		Local:    persist.NewFileStore(statePath, logger),
		Cloud:    cloud,
	})
	defer sess.Close()

	if id, ok := auth.FromEnv(); ok && cloud != nil {
		sess.HandleAuth(context.Background(), auth.SignIn(id))
	} else {
		sess.ResumeCloud(context.Background())
	}

	program := tea.NewProgram(tui.NewModel(sess, toasts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
