// Package cli provides the interactive rosterkeeper terminal client.
//
// It wires configuration, the local SQLite store and the roster service into
// a read-eval-print loop. Typical flow: set or enter the administrator
// password, edit the roster, move people between activities, export.
//
// The REPL is started with App.Run, which blocks until the user exits or
// stdin closes. See runREPL for the command table.
package cli
