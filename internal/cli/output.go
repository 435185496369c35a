package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/session"
	"github.com/fatih/color"
)

// spinnerEnabled is switched off in tests.
var spinnerEnabled = true

func (a *App) ok(msg string) {
	fmt.Fprintln(a.out, color.GreenString("✓")+" "+msg)
}

func (a *App) hint(msg string) {
	fmt.Fprintln(a.out, color.CyanString("→")+" "+msg)
}

// fail prints err in user terms. A wrong password and a tampered file both
// read as "incorrect password".
func (a *App) fail(err error) {
	var pe *session.PolicyError
	switch {
	case errors.As(err, &pe):
		fmt.Fprintln(a.out, color.RedString("✗")+" Password rejected:")
		for _, r := range pe.Reasons {
			fmt.Fprintln(a.out, "  - "+string(r))
		}
	case errors.Is(err, common.ErrAuthenticationFailure):
		fmt.Fprintln(a.out, color.RedString("✗")+" Incorrect password")
	case errors.Is(err, common.ErrLocked):
		fmt.Fprintln(a.out, color.RedString("✗")+" Roster is locked")
		a.hint("Run " + color.YellowString("unlock") + " first")
	case errors.Is(err, common.ErrNotFlushed):
		fmt.Fprintln(a.out, color.RedString("✗")+" Saved, but the database could not be flushed: "+err.Error())
		a.hint("The change is in effect. Check free disk space before continuing.")
	case errors.Is(err, common.ErrStorageFailure):
		fmt.Fprintln(a.out, color.RedString("✗")+" Could not save: "+err.Error())
		a.hint("Your last change is not on disk. Check the database location and retry.")
	case errors.Is(err, common.ErrMalformedRecord):
		fmt.Fprintln(a.out, color.RedString("✗")+" Stored data is corrupted: "+err.Error())
		a.hint("Restore from an export with " + color.YellowString("import") +
			". If the password record is affected, run " + color.YellowString("setup") + " too.")
	default:
		fmt.Fprintln(a.out, color.RedString("✗")+" "+err.Error())
	}
}

// slow runs fn behind a spinner; key derivation takes a noticeable moment.
func (a *App) slow(msg string, fn func() error) error {
	if !spinnerEnabled {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.out))
	s.Suffix = " " + msg
	s.Start()
	defer s.Stop()
	return fn()
}
