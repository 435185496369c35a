// Package models defines the roster dataset: people, activities, daily
// backgrounds and settings. The Dataset is the unit of persistence and
// encryption; it is serialized as JSON with field names compatible with the
// legacy plaintext format.
package models
