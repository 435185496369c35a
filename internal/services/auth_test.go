package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/dmitrijs2005/rosterkeeper/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newPassword = "New!Passw0rd99"

func plainExport(t *testing.T) []byte {
	t.Helper()
	src, _, _ := newService(t)
	seed(t, src)
	data, err := src.Export(context.Background())
	require.NoError(t, err)
	return data
}

func TestChangePassword_FlushFailureKeepsRosterReadable(t *testing.T) {
	ctx := context.Background()
	s, kv, raw := newService(t)
	seed(t, s)
	require.NoError(t, s.InitializeCredential(ctx, []byte(password)))

	kv.failFlush = true
	err := s.ChangePassword(ctx, []byte(password), []byte(newPassword))
	require.ErrorIs(t, err, common.ErrNotFlushed)
	assert.Equal(t, session.StateUnlocked, s.State())

	_, err = s.AddPerson(ctx, "Ben")
	require.ErrorIs(t, err, common.ErrNotFlushed)
	kv.failFlush = false

	old := reopen(t, raw)
	assert.ErrorIs(t, old.Unlock(ctx, []byte(password)), common.ErrAuthenticationFailure)

	again := reopen(t, raw)
	require.NoError(t, again.Unlock(ctx, []byte(newPassword)))
	assert.Len(t, again.Snapshot().People, 2)
}

func TestInitialize_FlushFailureStillEncrypts(t *testing.T) {
	ctx := context.Background()
	s, kv, raw := newService(t)
	seed(t, s)

	kv.failFlush = true
	require.ErrorIs(t, s.InitializeCredential(ctx, []byte(password)), common.ErrNotFlushed)
	kv.failFlush = false

	_, err := s.AddPerson(ctx, "Ben")
	require.NoError(t, err)

	again := reopen(t, raw)
	require.NoError(t, again.Unlock(ctx, []byte(password)))
	assert.Len(t, again.Snapshot().People, 2)
}

func TestOpen_MalformedPlaintextStartsEmpty(t *testing.T) {
	ctx := context.Background()
	_, _, raw := newService(t)
	require.NoError(t, raw.Put(ctx, kvstore.KeyDatasetPlaintext, []byte("{broken")))

	s := reopen(t, raw)
	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Corrupt)
	assert.False(t, st.Locked)
	assert.Empty(t, s.Snapshot().People)

	p, err := s.BeginImport(plainExport(t))
	require.NoError(t, err)
	require.NoError(t, s.CompleteImport(ctx, p, nil))

	st, err = s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Corrupt)
	assert.Len(t, reopen(t, raw).Snapshot().People, 1)
}

func TestMalformedCredential_ImportThenReinitialize(t *testing.T) {
	ctx := context.Background()
	s, _, raw := newService(t)
	seed(t, s)
	require.NoError(t, s.InitializeCredential(ctx, []byte(password)))
	require.NoError(t, raw.Put(ctx, kvstore.KeyCredential, []byte("garbage")))

	broken := reopen(t, raw)
	st, err := broken.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Configured)
	assert.True(t, st.Corrupt)
	assert.True(t, st.Locked)

	assert.ErrorIs(t, broken.Unlock(ctx, []byte(password)), common.ErrMalformedRecord)
	assert.ErrorIs(t, broken.InitializeCredential(ctx, []byte(password)), common.ErrMalformedRecord)

	p, err := broken.BeginImport(plainExport(t))
	require.NoError(t, err)
	require.NoError(t, broken.CompleteImport(ctx, p, nil))
	imported := broken.Snapshot()
	require.Len(t, imported.People, 1)

	_, err = broken.AddPerson(ctx, "Ben")
	assert.ErrorIs(t, err, common.ErrLocked, "nothing is saved before a new password is set")

	require.NoError(t, broken.ReinitializeCredential(ctx, []byte(newPassword)))
	st, err = broken.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Corrupt)
	assert.False(t, st.Locked)

	again := reopen(t, raw)
	require.NoError(t, again.Unlock(ctx, []byte(newPassword)))
	assert.Equal(t, imported, again.Snapshot())
}

func TestMalformedCredential_ReinitializeWithoutImport(t *testing.T) {
	ctx := context.Background()
	s, _, raw := newService(t)
	seed(t, s)
	require.NoError(t, s.InitializeCredential(ctx, []byte(password)))
	require.NoError(t, raw.Put(ctx, kvstore.KeyCredential, []byte("garbage")))

	broken := reopen(t, raw)
	require.NoError(t, broken.ReinitializeCredential(ctx, []byte(newPassword)))
	assert.Empty(t, broken.Snapshot().People)

	_, err := broken.AddPerson(ctx, "Ben")
	require.NoError(t, err)
	assert.ErrorIs(t, broken.ReinitializeCredential(ctx, []byte(newPassword)), common.ErrAlreadyConfigured)
}

func TestUnlock_MalformedEnvelopeAllowsImport(t *testing.T) {
	ctx := context.Background()
	s, _, raw := newService(t)
	seed(t, s)
	require.NoError(t, s.InitializeCredential(ctx, []byte(password)))
	require.NoError(t, raw.Put(ctx, kvstore.KeyDatasetEncrypted, []byte("[]")))

	broken := reopen(t, raw)
	err := broken.Unlock(ctx, []byte(password))
	require.ErrorIs(t, err, common.ErrMalformedRecord)
	assert.Equal(t, session.StateUnlocked, broken.State())

	st, err := broken.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Corrupt)

	p, err := broken.BeginImport(plainExport(t))
	require.NoError(t, err)
	require.NoError(t, broken.CompleteImport(ctx, p, nil))

	again := reopen(t, raw)
	require.NoError(t, again.Unlock(ctx, []byte(password)))
	assert.Len(t, again.Snapshot().People, 1)
}

func TestUnlock_DerivesKeyWithoutBlockingSaves(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	seed(t, s)
	require.NoError(t, s.InitializeCredential(ctx, []byte(password)))
	require.NoError(t, s.Lock(ctx))

	s.saveMu.Lock()
	done := make(chan error, 1)
	go func() { done <- s.Unlock(ctx, []byte(password)) }()

	require.Eventually(t, func() bool {
		return s.State() == session.StateUnlocked
	}, 5*time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Snapshot().People, "roster is loaded only under the save lock")

	s.saveMu.Unlock()
	require.NoError(t, <-done)
	assert.Len(t, s.Snapshot().People, 1)
}

func TestAuthOperationsDoNotQueue(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newService(t)
	require.NoError(t, s.InitializeCredential(ctx, []byte(password)))

	// with the save lock held, a password change stops right before its
	// commit while still owning the authentication slot
	s.saveMu.Lock()
	done := make(chan error, 1)
	go func() {
		for {
			err := s.ChangePassword(ctx, []byte(password), []byte(newPassword))
			if !errors.Is(err, common.ErrOperationInProgress) {
				done <- err
				return
			}
		}
	}()

	require.Eventually(t, func() bool {
		return errors.Is(s.InitializeCredential(ctx, []byte(password)), common.ErrOperationInProgress)
	}, 5*time.Second, 5*time.Millisecond)

	s.saveMu.Unlock()
	require.NoError(t, <-done)
}
