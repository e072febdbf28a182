package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
)

func newTestStore(t *testing.T) chunkstore.Store {
	store, err := chunkstore.NewLocalStore(t.TempDir(), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBootstrapFirstRunThenRecover(t *testing.T) {
	store := newTestStore(t)

	first, isNew, err := Bootstrap(store, "alice", "1234", "correct horse battery staple")
	require.NoError(t, err)
	require.True(t, isNew)

	second, isNew, err := Bootstrap(store, "alice", "1234", "correct horse battery staple")
	require.NoError(t, err)
	require.False(t, isNew)

	require.Equal(t, first.UniqueUserID, second.UniqueUserID)
	require.Equal(t, first.RootParentID, second.RootParentID)
	require.Equal(t, first.OwnerPublicKey, second.OwnerPublicKey)
	require.Equal(t, first.OwnerPrivateKey, second.OwnerPrivateKey)
}

func TestBootstrapWrongPasswordFails(t *testing.T) {
	store := newTestStore(t)

	_, _, err := Bootstrap(store, "alice", "1234", "correct password")
	require.NoError(t, err)

	_, _, err = Bootstrap(store, "alice", "1234", "wrong password")
	require.Error(t, err)
}

func TestBootstrapDistinctKeywordPinYieldDistinctSessions(t *testing.T) {
	store := newTestStore(t)

	sessionA, _, err := Bootstrap(store, "alice", "1234", "password")
	require.NoError(t, err)

	sessionB, _, err := Bootstrap(store, "bob", "5678", "password")
	require.NoError(t, err)

	require.NotEqual(t, sessionA.UniqueUserID, sessionB.UniqueUserID)
}

func TestSignVerify(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	data := []byte("envelope contents")
	sig := s.Sign(data)
	require.True(t, s.Verify(data, sig))
	require.False(t, s.Verify([]byte("tampered"), sig))
}

func TestLoginVerifier(t *testing.T) {
	verifier, err := NewLoginVerifier("hunter2")
	require.NoError(t, err)

	require.True(t, verifier.VerifyPassword("hunter2"))
	require.False(t, verifier.VerifyPassword("hunter3"))
}
