package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/session"
)

// readNewPassword asks twice and checks the policy before any key work.
func (a *App) readNewPassword(prompt string) ([]byte, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return nil, err
	}
	if err := session.CheckPassword(pw); err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	again, err := getPassword(a.out, "Repeat password")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)
	if string(pw) != string(again) {
		common.WipeByteArray(pw)
		return nil, fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

// Setup sets the first administrator password. An existing password is
// changed through passwd instead. A password record that cannot be read is
// replaced after confirmation.
func (a *App) Setup(ctx context.Context) error {
	configured, err := a.roster.Configured(ctx)
	reinit := errors.Is(err, common.ErrMalformedRecord)
	switch {
	case reinit:
		a.hint("The stored password record is corrupted. The encrypted roster on disk cannot be opened any more.")
		yes, err := a.confirm("Set a new password and encrypt the roster currently in memory?")
		if err != nil || !yes {
			return err
		}
	case err != nil:
		return err
	case configured:
		a.hint("A password is already set, use passwd to change it")
		return nil
	}

	pw, err := a.readNewPassword("New administrator password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.slow("Deriving keys...", func() error {
		if reinit {
			return a.roster.ReinitializeCredential(ctx, pw)
		}
		return a.roster.InitializeCredential(ctx, pw)
	}); err != nil {
		return err
	}
	a.ok("Password set, roster is now encrypted")
	return nil
}

func (a *App) Unlock(ctx context.Context) error {
	if a.isUnlocked() {
		a.hint("Already unlocked")
		return nil
	}
	configured, err := a.roster.Configured(ctx)
	if err != nil {
		return err
	}
	if !configured {
		a.hint("No password set yet, run setup")
		return nil
	}

	pw, err := getPassword(a.out, "Administrator password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.slow("Unlocking...", func() error {
		return a.roster.Unlock(ctx, pw)
	}); err != nil {
		return err
	}
	a.ok("Unlocked")
	return nil
}

func (a *App) Lock(ctx context.Context) error {
	if err := a.roster.Lock(ctx); err != nil {
		return err
	}
	a.ok("Locked")
	return nil
}

func (a *App) Passwd(ctx context.Context) error {
	configured, err := a.roster.Configured(ctx)
	if err != nil {
		return err
	}
	if !configured {
		return a.Setup(ctx)
	}

	current, err := getPassword(a.out, "Current password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(current)

	next, err := a.readNewPassword("New password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(next)

	if err := a.slow("Re-encrypting roster...", func() error {
		return a.roster.ChangePassword(ctx, current, next)
	}); err != nil {
		return err
	}
	a.ok("Password changed")
	return nil
}

func (a *App) Status(ctx context.Context) error {
	st, err := a.roster.Status(ctx)
	if err != nil {
		return err
	}
	protection := "not set"
	if st.Configured {
		protection = "set"
	}
	fmt.Fprintf(a.out, "Password:   %s\n", protection)
	fmt.Fprintf(a.out, "Session:    %s\n", st.Session)
	fmt.Fprintf(a.out, "People:     %d (%d assigned)\n", st.People, st.Assigned)
	fmt.Fprintf(a.out, "Activities: %d\n", st.Activities)
	fmt.Fprintf(a.out, "Database:   %s\n", a.config.DatabasePath)
	if st.NeedsMigration {
		a.hint("Roster is stored unencrypted. Run setup to encrypt it.")
	}
	if st.Corrupt {
		a.hint("Stored data is corrupted. Restore an export with import.")
	}
	return nil
}
