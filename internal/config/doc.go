// Package config loads runtime configuration for rosterkeeper.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Flags
//
//	-d string   path of the SQLite database file
//	-l string   log level: debug, info, warn or error
//	-t int      auto-lock after this many idle minutes, 0 disables
//
// JSON
//
//	{
//	  "database_path": "/home/me/.local/share/rosterkeeper/roster.db",
//	  "log_level": "info",
//	  "auto_lock_after": "15m"
//	}
//
// auto_lock_after accepts a duration string or integer nanoseconds.
package config
