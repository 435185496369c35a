// Package common defines shared sentinel errors and small helpers used across
// rosterkeeper layers. Callers should use errors.Is to match error values.
package common

// DefaultDatabaseFile is the backing store file used when no path is configured.
const DefaultDatabaseFile = "roster.db"
