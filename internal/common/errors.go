package common

import "errors"

var (
	// State errors. ErrNotConfigured describes the first-run state rather
	// than a failure.
	ErrNotConfigured     = errors.New("administrator password is not configured")
	ErrAlreadyConfigured = errors.New("administrator password is already configured")
	ErrLocked            = errors.New("store is locked")

	// ErrAuthenticationFailure covers both a wrong password and a tampered
	// envelope. The two causes are never distinguished.
	ErrAuthenticationFailure = errors.New("incorrect password")

	ErrPolicyViolation     = errors.New("password does not satisfy policy")
	ErrOperationInProgress = errors.New("another authentication operation is in progress")

	// Persistence errors.
	ErrStorageFailure  = errors.New("storage failure")
	ErrMalformedRecord = errors.New("malformed record")

	// ErrNotFlushed accompanies a storage failure that happened after the
	// batch was committed. The write is in effect and must be treated as such.
	ErrNotFlushed = errors.New("committed but not flushed")

	// Validation errors for model mutations.
	ErrEmptyName       = errors.New("name is required")
	ErrDuplicateName   = errors.New("name already exists")
	ErrRosterFull      = errors.New("roster limit reached")
	ErrInvalidKind     = errors.New("invalid activity kind")
	ErrInvalidPayload  = errors.New("invalid activity payload")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidImage    = errors.New("invalid image data URL")
	ErrOutOfRange      = errors.New("value out of range")
	ErrNotFound        = errors.New("not found")
	ErrInvalidDocument = errors.New("unrecognized document format")
)
