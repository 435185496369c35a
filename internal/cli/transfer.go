package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/rosterkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/filex"
	"github.com/fatih/color"
)

func (a *App) Export(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("export <file>")
	}
	data, err := a.roster.Export(ctx)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(args[0], data, 0o600); err != nil {
		return err
	}
	if a.isUnlocked() {
		a.ok("Encrypted export written to " + args[0])
	} else {
		a.ok("Export written to " + args[0] + " (not encrypted)")
	}
	return nil
}

// Import replaces the roster with the content of a file. Encrypted exports
// ask for the password they were made with; plaintext ones ask for
// confirmation. Nothing changes unless that step succeeds.
func (a *App) Import(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("import <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	pending, err := a.roster.BeginImport(data)
	if err != nil {
		return err
	}

	var password []byte
	if pending.NeedsPassword() {
		if password, err = getPassword(a.out, "Password of the export"); err != nil {
			return err
		}
		defer common.WipeByteArray(password)
	} else {
		yes, err := a.confirm("Import replaces the current roster. Continue?")
		if err != nil || !yes {
			return err
		}
	}

	if err := a.slow("Importing...", func() error {
		return a.roster.CompleteImport(ctx, pending, password)
	}); err != nil {
		return err
	}
	st, err := a.roster.Status(ctx)
	if err != nil {
		return err
	}
	a.ok(fmt.Sprintf("Imported %d people and %d activities", st.People, st.Activities))
	if st.Locked {
		a.hint("Not saved yet. Run " + color.YellowString("setup") + " to set a new password and save it.")
	}
	return nil
}

func (a *App) Version() error {
	buildinfo.PrintBuildData(a.out)
	return nil
}
