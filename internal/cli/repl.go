package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App implements it;
// tests use a recording stub.
type execIface interface {
	isUnlocked() bool
	report(err error)

	Setup(ctx context.Context) error
	Unlock(ctx context.Context) error
	Lock(ctx context.Context) error
	Passwd(ctx context.Context) error
	Status(ctx context.Context) error

	People(ctx context.Context) error
	Activities(ctx context.Context) error
	AddPerson(ctx context.Context, args []string) error
	RenamePerson(ctx context.Context, args []string) error
	RemovePerson(ctx context.Context, args []string) error
	AddActivity(ctx context.Context) error
	RemoveActivity(ctx context.Context, args []string) error
	Assign(ctx context.Context, args []string) error
	Unassign(ctx context.Context, args []string) error
	Reset(ctx context.Context) error
	Sort(ctx context.Context) error
	Size(ctx context.Context, args []string) error
	Background(ctx context.Context, args []string) error

	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Version() error
}

const (
	helpLocked   = "Available commands: unlock, status, version, exit"
	helpUnlocked = "Available commands: (l)s, acts, add, rename, rm, addact, rmact, assign, unassign, reset, sort, size, bg, export, import, setup, passwd, lock, status, version, exit"
)

// runREPL reads commands from scanner until EOF or exit/quit. The first
// token selects the command, the rest are its arguments. Handler errors are
// passed to a.report so one failed command never ends the loop.
//
//	ls | people              list people and where they are
//	acts                     list activities with their members
//	add <name>               add a person
//	rename <person>          rename a person (prompts for the new name)
//	rm <person>              remove a person
//	addact                   add an activity (prompts)
//	rmact <activity>         remove an activity, its members return to the pool
//	assign <person> <act>    move a person onto an activity
//	unassign <person>        move a person back to the pool
//	reset                    empty every activity, start a new day
//	sort                     sort people by name
//	size <n>                 set the bubble size
//	bg <date> <image file>   set the background for a day
//	export <file>            write an export, encrypted when unlocked
//	import <file>            replace the roster with an export
//	setup | passwd           set or change the administrator password
//	unlock | lock            open or close the encrypted roster
//	status | version | help | exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("roster %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked + "\nWithout a password yet, every unlocked command works and 'setup' protects the roster.")
			}

		case "setup":
			a.report(a.Setup(ctx))
		case "unlock":
			a.report(a.Unlock(ctx))
		case "lock":
			a.report(a.Lock(ctx))
		case "passwd":
			a.report(a.Passwd(ctx))
		case "status":
			a.report(a.Status(ctx))

		case "l", "ls", "people":
			a.report(a.People(ctx))
		case "acts":
			a.report(a.Activities(ctx))
		case "add":
			a.report(a.AddPerson(ctx, args))
		case "rename":
			a.report(a.RenamePerson(ctx, args))
		case "rm":
			a.report(a.RemovePerson(ctx, args))
		case "addact":
			a.report(a.AddActivity(ctx))
		case "rmact":
			a.report(a.RemoveActivity(ctx, args))
		case "assign":
			a.report(a.Assign(ctx, args))
		case "unassign":
			a.report(a.Unassign(ctx, args))
		case "reset":
			a.report(a.Reset(ctx))
		case "sort":
			a.report(a.Sort(ctx))
		case "size":
			a.report(a.Size(ctx, args))
		case "bg":
			a.report(a.Background(ctx, args))

		case "export":
			a.report(a.Export(ctx, args))
		case "import":
			a.report(a.Import(ctx, args))
		case "version":
			a.report(a.Version())

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// report prints a handler error; nil is ignored.
func (a *App) report(err error) {
	if err != nil {
		a.fail(err)
	}
}
