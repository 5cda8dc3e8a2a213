// Package streaming implements the chunked AEAD framing that carries a
// container's plaintext: one self-describing frame per chunk, each sealed
// independently under a nonce derived from the file_id and the chunk's
// index. Grounded on jrick-ss/stream/stream.go's Encrypt/Decrypt
// read-chunk/seal/write loop, with the frame layout and size guards taken
// from original_source/crates/quantum-shield/src/streaming.rs.
package streaming

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/jedisct1/go-aes-siv"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/qsfs/qsfs/internal/header"
)

const (
	// MaxChunkSize bounds a single chunk's plaintext size, matching
	// quantum-shield/src/streaming.rs's MAX_CHUNK_SIZE. Kept equal to
	// header.MaxChunkSize, the bound header.Parse enforces on chunk_size
	// before a header ever reaches this package.
	MaxChunkSize = header.MaxChunkSize
	// TagSize is the per-chunk AEAD authentication tag length. Every
	// suite QSFS offers uses a 16-byte tag.
	TagSize = 16
)

// NewAEAD builds the cipher.AEAD for the given suite and stream key
// (internal/kdf's K1). aes256-gcm-siv is backed by RFC 5297 AES-SIV (see
// DESIGN.md for why: no RFC 8452 AES-GCM-SIV implementation was available
// in the retrieved pack), which only requires the key length QSFS already
// derives. The substitution trades the "true" AES-256-GCM-SIV key schedule
// for AES-SIV's narrower (but still misuse-resistant) 32-byte-key mode, a
// deliberate and documented reduction, not a silent one.
func NewAEAD(suite header.SuiteID, key []byte) (cipher.AEAD, error) {
	switch suite {
	case header.SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("streaming: new AES cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case header.SuiteAES256GCMSIV:
		return aessiv.New(key)
	case header.SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("streaming: unsupported suite %v", suite)
	}
}
