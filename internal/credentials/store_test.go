package credentials

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/rosterkeeper/internal/common"
	"github.com/dmitrijs2005/rosterkeeper/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *kvstore.SQLiteStore) {
	t.Helper()
	kv, err := kvstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv), kv
}

func TestLoad_AbsentIsNotAnError(t *testing.T) {
	s, _ := setupStore(t)

	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	rec, err := NewRecord([]byte("Tr0ub4dor&3!!"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSave_Overwrites(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	first, err := NewRecord([]byte("first-password"))
	require.NoError(t, err)
	second, err := NewRecord([]byte("second-password"))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestLoad_MalformedRecord(t *testing.T) {
	s, kv := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{garbage`},
		{"missing fields", `{}`},
		{"short hash", `{"verify_salt":"AAAA","verify_hash":"AAAA","encryption_salt":"BBBB"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, kv.Put(ctx, kvstore.KeyCredential, []byte(tt.raw)))
			rec, err := s.Load(ctx)
			require.ErrorIs(t, err, common.ErrMalformedRecord)
			assert.Nil(t, rec)
		})
	}
}

func TestNewRecord_IndependentSalts(t *testing.T) {
	rec, err := NewRecord([]byte("password"))
	require.NoError(t, err)
	require.NoError(t, rec.Validate())
	assert.NotEqual(t, rec.VerifySalt, rec.EncryptionSalt)
}

func TestValidate_SameSaltsRejected(t *testing.T) {
	rec, err := NewRecord([]byte("password"))
	require.NoError(t, err)
	rec.EncryptionSalt = append([]byte(nil), rec.VerifySalt...)
	require.ErrorIs(t, rec.Validate(), common.ErrMalformedRecord)

	_, err = NewStore(nil).PutOp(rec)
	require.ErrorIs(t, err, common.ErrMalformedRecord)
}

func TestVerify(t *testing.T) {
	rec, err := NewRecord([]byte("Tr0ub4dor&3!!"))
	require.NoError(t, err)

	assert.True(t, Verify(rec, []byte("Tr0ub4dor&3!!")))
	assert.False(t, Verify(rec, []byte("Tr0ub4dor&3!")))
	assert.False(t, Verify(rec, []byte("")))
}

func TestSave_StorageFailureSurfaces(t *testing.T) {
	s, kv := setupStore(t)
	require.NoError(t, kv.Close())

	rec, err := NewRecord([]byte("password"))
	require.NoError(t, err)
	require.ErrorIs(t, s.Save(context.Background(), rec), common.ErrStorageFailure)

	_, err = s.Load(context.Background())
	require.ErrorIs(t, err, common.ErrStorageFailure)
}
