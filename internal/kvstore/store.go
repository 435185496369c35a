// Package kvstore is the durable key/value byte store underneath the
// credential and dataset records.
//
// The contract is Get/Put/Delete plus an explicit Flush that makes writes
// survive a process restart, and Apply for all-or-nothing batches.
package kvstore

import "context"

// Storage keys.
const (
	KeyCredential       = "credential"
	KeyDatasetEncrypted = "dataset.encrypted"
	KeyDatasetPlaintext = "dataset.plaintext"
)

// Op is one write in a batch: a put of Value under Key, or a delete of Key.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

func PutOp(key string, value []byte) Op { return Op{Key: key, Value: value} }
func DeleteOp(key string) Op            { return Op{Key: key, Delete: true} }

type Store interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	// Apply runs ops in order inside one transaction. Either every op is
	// visible afterwards or none is.
	Apply(ctx context.Context, ops ...Op) error
	Flush(ctx context.Context) error
	Close() error
}
