package tui

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/arbor/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// App wraps the Bubbletea program for the watch view.
type App struct {
	program *tea.Program
	model   Model
}

// New creates a new watch view application over a started session.
func New(sess *session.Session) *App {
	return &App{
		model: NewModel(sess),
	}
}

// Run starts the watch view and blocks until the user quits or the process
// is signalled. Stopping the session is the caller's responsibility once Run
// returns.
func (a *App) Run() error {
	a.program = tea.NewProgram(
		a.model,
		tea.WithAltScreen(),
	)

	// Forward termination signals as a quit so the terminal is restored
	// before the caller tears the session down.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		if a.program != nil {
			a.program.Send(tea.Quit())
		}
	}()

	_, err := a.program.Run()
	return err
}
