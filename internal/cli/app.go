package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/rosterkeeper/internal/config"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/dmitrijs2005/rosterkeeper/internal/logging"
	"github.com/dmitrijs2005/rosterkeeper/internal/services"
	"github.com/dmitrijs2005/rosterkeeper/internal/session"
)

type App struct {
	config *config.Config
	store  kvstore.Store
	roster *services.RosterService
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the database named in c and performs the initial load.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	store, err := kvstore.Open(ctx, c.DatabasePath)
	if err != nil {
		return nil, err
	}

	roster := services.NewRosterService(store, log)
	if err := roster.Open(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		config: c,
		store:  store,
		roster: roster,
		log:    log,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run greets the user, starts the idle watcher and blocks in the REPL.
func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.roster.StartAutoLock(ctx, a.config.AutoLockAfter)

	a.greet(ctx)
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	return nil
}

func (a *App) isUnlocked() bool {
	return a.roster.State() == session.StateUnlocked
}

func (a *App) greet(ctx context.Context) {
	printlnFn("rosterkeeper (type 'help' for commands)")
	st, err := a.roster.Status(ctx)
	if err != nil {
		a.fail(err)
		return
	}
	switch {
	case st.Corrupt:
		a.hint("Stored data is corrupted. Run 'import' to restore an export, or 'setup' if the password record is affected.")
	case !st.Configured:
		a.hint("No administrator password yet, your roster is stored unencrypted. Run 'setup' to set one.")
	case st.Locked:
		a.hint("Roster is encrypted. Run 'unlock' to open it.")
	}
}

func (a *App) getStatus() string {
	st, err := a.roster.Status(context.Background())
	if err != nil {
		return "(error)"
	}
	switch {
	case st.Corrupt:
		return "(damaged)"
	case !st.Configured:
		return "(unprotected)"
	case st.Locked:
		return "(locked)"
	default:
		return "(unlocked)"
	}
}
