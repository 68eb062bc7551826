// Command console plays adventures in the terminal. It runs the engine
// in-process and keeps sessions in the SQLite database at SQLITE_PATH, so a
// session resumes where it was left.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/jwebster45206/adventure-engine/internal/config"
	"github.com/jwebster45206/adventure-engine/internal/logger"
	"github.com/jwebster45206/adventure-engine/internal/services/effectlog"
	"github.com/jwebster45206/adventure-engine/internal/sessions"
	"github.com/jwebster45206/adventure-engine/internal/storage"
)

const clientIDFile = ".console-client"

func main() {
	clientFlag := flag.String("client", "", "client id to play as (defaults to the id saved in DATA_DIR)")
	logPath := flag.String("log", "", "append logs to this file")
	auth := flag.Bool("auth", false, "start sessions as a signed-in player")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer func() {
			_ = f.Close() // Ignore error in defer
		}()
		logOut = f
	}
	log := logger.SetupWriter(cfg, logOut)

	store, err := storage.OpenSQLite(cfg.SQLitePath, cfg.DataDir, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close() // Ignore error in defer
	}()

	clientID, err := resolveClientID(*clientFlag, filepath.Join(cfg.DataDir, clientIDFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve client id: %v\n", err)
		os.Exit(1)
	}

	manager := sessions.NewManager(sessions.Options{
		Storage:          store,
		EffectLog:        effectlog.NewMemoryLog(cfg.EffectLogSize),
		Logger:           log,
		AdvanceTurnDelay: cfg.AdvanceTurnDelay,
		HistoryLimit:     cfg.HistoryLimit,
		RoundPolicy:      cfg.RoundPolicy(),
	})
	defer manager.Close()

	p := tea.NewProgram(NewConsoleUI(manager, store, clientID, *auth),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// resolveClientID returns the flag value when set, otherwise the id saved at
// path, creating and saving a new one on first run.
func resolveClientID(flagValue, path string) (uuid.UUID, error) {
	if flagValue != "" {
		return uuid.Parse(flagValue)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return uuid.Nil, err
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o600); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
