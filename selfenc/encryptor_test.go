package selfenc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
)

func newTestStore(t *testing.T) chunkstore.Store {
	store, err := chunkstore.NewLocalStore(t.TempDir(), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEncryptorWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	enc := NewEncryptor(store, nil)

	n, err := enc.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, uint64(5), enc.Size())

	dataMap, err := enc.Flush()
	require.NoError(t, err)
	require.Equal(t, uint64(5), dataMap.Size)

	reopened := NewEncryptor(store, dataMap.Clone())
	buf := make([]byte, 5)
	n, err = reopened.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestEncryptorSpansMultipleChunks(t *testing.T) {
	store := newTestStore(t)

	enc := NewEncryptor(store, nil)

	data := make([]byte, IOBlockSize+100)
	for i := range data {
		data[i] = byte(i % 251)
	}

	_, err := enc.WriteAt(data, 0)
	require.NoError(t, err)

	dataMap, err := enc.Flush()
	require.NoError(t, err)
	require.Len(t, dataMap.Chunks, 2)

	reopened := NewEncryptor(store, dataMap.Clone())
	buf := make([]byte, len(data))
	n, err := reopened.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf)
}

func TestEncryptorTruncateClipsReads(t *testing.T) {
	store := newTestStore(t)

	enc := NewEncryptor(store, nil)
	_, err := enc.WriteAt([]byte("0123456789"), 0)
	require.NoError(t, err)

	err = enc.Truncate(5)
	require.NoError(t, err)
	require.Equal(t, uint64(5), enc.Size())

	buf := make([]byte, 10)
	n, err := enc.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "01234", string(buf[:n]))
}

func TestEncryptorTruncateExtendThenReadReturnsZeroFill(t *testing.T) {
	store := newTestStore(t)

	enc := NewEncryptor(store, nil)
	_, err := enc.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)

	require.NoError(t, enc.Truncate(10))
	require.Equal(t, uint64(10), enc.Size())

	buf := make([]byte, 10)
	n, err := enc.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Equal(t, []byte("abc\x00\x00\x00\x00\x00\x00\x00"), buf)
}

func TestEncryptorWriteAtGapThenReadReturnsZeroFillAcrossChunkBoundary(t *testing.T) {
	store := newTestStore(t)

	enc := NewEncryptor(store, nil)

	// Write only into the second chunk, leaving the entire first chunk (and
	// the head of the second, up to the write offset) an untouched sparse
	// gap with no ChunkInfo/dirty entry at all.
	offset := uint64(IOBlockSize) + 10
	_, err := enc.WriteAt([]byte("tail"), offset)
	require.NoError(t, err)
	require.Equal(t, offset+4, enc.Size())

	buf := make([]byte, int(offset)+4)
	n, err := enc.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	require.Equal(t, make([]byte, offset), buf[:offset])
	require.Equal(t, "tail", string(buf[offset:]))
}

func TestEncryptorDeleteAllChunksReleasesStorage(t *testing.T) {
	store := newTestStore(t)

	enc := NewEncryptor(store, nil)
	_, err := enc.WriteAt(make([]byte, IOBlockSize+1), 0)
	require.NoError(t, err)

	dataMap, err := enc.Flush()
	require.NoError(t, err)
	require.Len(t, dataMap.Chunks, 2)

	for _, chunk := range dataMap.Chunks {
		_, err := store.Get(chunk.Name)
		require.NoError(t, err)
	}

	require.NoError(t, enc.DeleteAllChunks())

	for _, chunk := range dataMap.Chunks {
		_, err := store.Get(chunk.Name)
		require.ErrorIs(t, err, chunkstore.ErrNotFound)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	parentID := dirid.New()
	directoryID := dirid.New()
	dataMap := NewDataMap()
	dataMap.Size = 42

	ciphertext, err := EncryptDataMap(parentID, directoryID, dataMap)
	require.NoError(t, err)

	decrypted, err := DecryptDataMap(parentID, directoryID, ciphertext)
	require.NoError(t, err)
	require.Equal(t, dataMap.Key, decrypted.Key)
	require.Equal(t, dataMap.Size, decrypted.Size)

	_, err = DecryptDataMap(dirid.New(), directoryID, ciphertext)
	require.Error(t, err)
}
