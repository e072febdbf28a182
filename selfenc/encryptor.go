package selfenc

// The Self-Encryptor: a random-access encrypted stream backed by a Chunk
// Store. Chunks are fixed-size AES-256-GCM sealed blocks, generalizing the
// teacher's append-only cipherio.CipherReader/CipherWriter (which stream a
// whole file through one connector object) to arbitrary-offset random
// access over many independently addressed chunks.

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
)

// IOBlockSize is the cleartext size of one chunk, matching the teacher's
// cipherio.IO_BLOCK_SIZE.
const IOBlockSize = 1024 * 1024 * 4

// Encryptor is a random-access encrypted stream over a Data Map.
type Encryptor struct {
	mu    sync.Mutex
	store chunkstore.Store

	dataMap *DataMap
	size    uint64

	// Cleartext chunks currently held in memory, indexed by chunk index.
	// Populated lazily from the store (or from the dirty set) on first
	// touch by a read or write.
	chunks map[int][]byte
	dirty  map[int]bool
}

// NewEncryptor builds an Encryptor over the given Data Map (nil or empty
// for a brand new file) backed by store.
func NewEncryptor(store chunkstore.Store, dataMap *DataMap) *Encryptor {
	if dataMap == nil {
		dataMap = NewDataMap()
	}

	return &Encryptor{
		store:   store,
		dataMap: dataMap,
		size:    dataMap.Size,
		chunks:  make(map[int][]byte),
		dirty:   make(map[int]bool),
	}
}

// Size returns the current logical size of the stream.
func (this *Encryptor) Size() uint64 {
	this.mu.Lock()
	defer this.mu.Unlock()

	return this.size
}

func chunkIndexFor(offset uint64) int {
	return int(offset / IOBlockSize)
}

// ReadAt reads len(dst) bytes starting at offset, returning however many
// bytes were available before the current end of file (matching the
// "bytes_read is clamped to end-of-file" contract; the caller decides
// whether a short read is an error).
func (this *Encryptor) ReadAt(dst []byte, offset uint64) (int, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	if offset >= this.size {
		return 0, nil
	}

	end := offset + uint64(len(dst))
	if end > this.size {
		end = this.size
	}

	var written int
	for pos := offset; pos < end; {
		idx := chunkIndexFor(pos)
		chunk, err := this.loadChunkLocked(idx)
		if err != nil {
			return written, errors.WithStack(err)
		}

		chunkStart := uint64(idx) * IOBlockSize
		offsetInChunk := pos - chunkStart

		// toCopy is bounded by the chunk's full block width, not by the
		// actual (possibly shorter, possibly zero-length for a sparse gap)
		// data held in chunk, so a hole never stalls progress through the
		// stream.
		blockRemaining := uint64(IOBlockSize) - offsetInChunk
		remaining := end - pos
		toCopy := blockRemaining
		if remaining < toCopy {
			toCopy = remaining
		}

		chunkLen := uint64(len(chunk))
		var copied uint64
		if offsetInChunk < chunkLen {
			copied = chunkLen - offsetInChunk
			if copied > toCopy {
				copied = toCopy
			}
			copy(dst[written:], chunk[offsetInChunk:offsetInChunk+copied])
		}
		for i := copied; i < toCopy; i++ {
			dst[uint64(written)+i] = 0
		}

		written += int(toCopy)
		pos += toCopy
	}

	return written, nil
}

// WriteAt writes src at offset, extending the stream (with implicit zero
// fill for any gap) if necessary.
func (this *Encryptor) WriteAt(src []byte, offset uint64) (int, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	end := offset + uint64(len(src))

	var written int
	for pos := offset; pos < end; {
		idx := chunkIndexFor(pos)
		chunk, err := this.loadOrCreateChunkLocked(idx)
		if err != nil {
			return written, errors.WithStack(err)
		}

		chunkStart := uint64(idx) * IOBlockSize
		offsetInChunk := pos - chunkStart

		remaining := end - pos
		room := uint64(IOBlockSize) - offsetInChunk
		toCopy := room
		if remaining < toCopy {
			toCopy = remaining
		}

		if uint64(len(chunk)) < offsetInChunk+toCopy {
			grown := make([]byte, offsetInChunk+toCopy)
			copy(grown, chunk)
			chunk = grown
		}

		copy(chunk[offsetInChunk:offsetInChunk+toCopy], src[written:written+int(toCopy)])

		this.chunks[idx] = chunk
		this.dirty[idx] = true

		written += int(toCopy)
		pos += toCopy
	}

	if end > this.size {
		this.size = end
	}

	return written, nil
}

// Truncate sets the stream's size, dropping chunks entirely beyond it and
// clipping the tail of the boundary chunk.
func (this *Encryptor) Truncate(size uint64) error {
	this.mu.Lock()
	defer this.mu.Unlock()

	if size >= this.size {
		this.size = size
		return nil
	}

	lastKeptIdx := -1
	if size > 0 {
		lastKeptIdx = chunkIndexFor(size - 1)
	}

	// Drop any chunk metadata/data fully beyond the new size.
	newChunkInfos := this.dataMap.Chunks[:0:0]
	for _, info := range this.dataMap.Chunks {
		if info.Index <= lastKeptIdx {
			newChunkInfos = append(newChunkInfos, info)
		} else {
			if this.store != nil {
				if err := this.store.Delete(info.Name); err != nil && !errors.Is(err, chunkstore.ErrNotFound) {
					return errors.WithStack(err)
				}
			}
		}
	}
	this.dataMap.Chunks = newChunkInfos

	for idx := range this.chunks {
		if idx > lastKeptIdx {
			delete(this.chunks, idx)
			delete(this.dirty, idx)
		}
	}

	if lastKeptIdx >= 0 {
		chunkStart := uint64(lastKeptIdx) * IOBlockSize
		tailLen := size - chunkStart

		chunk, err := this.loadChunkLocked(lastKeptIdx)
		if err != nil {
			return errors.WithStack(err)
		}

		if uint64(len(chunk)) > tailLen {
			trimmed := make([]byte, tailLen)
			copy(trimmed, chunk[:tailLen])
			this.chunks[lastKeptIdx] = trimmed
			this.dirty[lastKeptIdx] = true
		}
	}

	this.size = size

	return nil
}

// Flush commits every pending write as a chunk in the store and returns
// the finalized Data Map.
func (this *Encryptor) Flush() (*DataMap, error) {
	this.mu.Lock()
	defer this.mu.Unlock()

	block, err := aes.NewCipher(this.dataMap.Key[:])
	if err != nil {
		return nil, errors.WithStack(err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	byIndex := make(map[int]ChunkInfo, len(this.dataMap.Chunks))
	for _, info := range this.dataMap.Chunks {
		byIndex[info.Index] = info
	}

	for idx := range this.dirty {
		cleartext := this.chunks[idx]

		if old, ok := byIndex[idx]; ok && this.store != nil {
			if err := this.store.Delete(old.Name); err != nil && !errors.Is(err, chunkstore.ErrNotFound) {
				return nil, errors.WithStack(err)
			}
		}

		nonce := chunkNonce(this.dataMap.Nonce, idx)
		ciphertext := gcm.Seal(nil, nonce, cleartext, nil)

		nameHash := blake3.Sum256(ciphertext)
		name := chunkstore.Name(hex.EncodeToString(nameHash[:]))

		if this.store != nil {
			if err := this.store.Put(name, ciphertext); err != nil {
				return nil, errors.WithStack(err)
			}
		}

		byIndex[idx] = ChunkInfo{
			Index: idx,
			Name:  name,
			Size:  uint64(len(cleartext)),
			Hash:  blake3.Sum256(cleartext),
		}
	}

	chunkInfos := make([]ChunkInfo, 0, len(byIndex))
	for _, info := range byIndex {
		chunkInfos = append(chunkInfos, info)
	}
	sort.Slice(chunkInfos, func(i, j int) bool { return chunkInfos[i].Index < chunkInfos[j].Index })

	this.dataMap.Chunks = chunkInfos
	this.dataMap.Size = this.size
	this.dirty = make(map[int]bool)

	return this.dataMap.Clone(), nil
}

// DeleteAllChunks removes every chunk the current Data Map references.
func (this *Encryptor) DeleteAllChunks() error {
	this.mu.Lock()
	defer this.mu.Unlock()

	for _, info := range this.dataMap.Chunks {
		if err := this.store.Delete(info.Name); err != nil && !errors.Is(err, chunkstore.ErrNotFound) {
			return errors.WithStack(err)
		}
	}

	this.dataMap.Chunks = nil
	this.chunks = make(map[int][]byte)
	this.dirty = make(map[int]bool)
	this.size = 0
	this.dataMap.Size = 0

	return nil
}

// loadChunkLocked returns the current in-memory (possibly dirty) content of
// chunk idx, loading and decrypting it from the store on first touch. The
// caller must hold this.mu.
func (this *Encryptor) loadChunkLocked(idx int) ([]byte, error) {
	if chunk, ok := this.chunks[idx]; ok {
		return chunk, nil
	}

	for _, info := range this.dataMap.Chunks {
		if info.Index != idx {
			continue
		}

		ciphertext, err := this.store.Get(info.Name)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch chunk")
		}

		block, err := aes.NewCipher(this.dataMap.Key[:])
		if err != nil {
			return nil, errors.WithStack(err)
		}

		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		nonce := chunkNonce(this.dataMap.Nonce, idx)
		cleartext, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decrypt chunk")
		}

		this.chunks[idx] = cleartext
		return cleartext, nil
	}

	// A chunk with no stored data and no in-memory copy is entirely within
	// a sparse gap. Its actual length is zero; ReadAt is responsible for
	// treating anything past that length, up to the chunk's block boundary,
	// as implicit zero fill.
	empty := make([]byte, 0, IOBlockSize)
	this.chunks[idx] = empty
	return empty, nil
}

// loadOrCreateChunkLocked is like loadChunkLocked, but is used from the
// write path where a short/missing chunk should be treated as an
// extendable zero-filled buffer rather than an error.
func (this *Encryptor) loadOrCreateChunkLocked(idx int) ([]byte, error) {
	return this.loadChunkLocked(idx)
}

func chunkNonce(base [NonceSize]byte, index int) []byte {
	nonce := make([]byte, NonceSize)
	copy(nonce, base[:])

	// Increment the nonce index times, matching the teacher's
	// util.IncrementBytes chunk-indexed nonce scheme.
	for i := 0; i < index; i++ {
		incrementBytes(nonce)
	}

	return nonce
}

func incrementBytes(bytes []byte) {
	for i := range bytes {
		bytes[i]++
		if bytes[i] != 0 {
			break
		}
	}
}

