// Package kdf derives QSFS's key-encryption key and per-file stream keys
// with HKDF-SHA3-384, using a fixed label set. The salt choice (the
// literal v2.0 constant vs. the per-file v2.1 kdf_salt) is selected by the
// caller, never inferred from the presence or absence of data. Version
// detection is always explicit, never automatic.
package kdf

import (
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/qsfs/qsfs/internal/secretbuf"
)

// V2SaltLiteral is the fixed HKDF salt used by every v2.0 container, where
// no per-file kdf_salt exists. Confirmed against
// original_source/tools/verify-kat's extract_salt field and the KAT tests
// in original_source/crates/qsfs-core/tests/kat_v2.rs: the alternate
// "qsfs/hkdf/v2" spelling that appears only in prose never appears in a
// passing vector.
const V2SaltLiteral = "qsfs/kdf/v2"

const (
	infoKEK         = "qsfs/kek/v2"
	infoStreamK1    = "qsfs/v2/stream/k1"
	infoStreamK2    = "qsfs/v2/stream/k2"
	infoNoncePrefix = "qsfs/v2/nonce-prefix"

	kekLen   = 32
	k1Len    = 32
	k2Len    = 32
	fileIDLen = 8
)

func expand(salt, ikm, info []byte, length int) (*secretbuf.Buffer, error) {
	reader := hkdf.New(sha3.New384, ikm, salt, info)
	out := secretbuf.New(length)
	if _, err := io.ReadFull(reader, out.Bytes()); err != nil {
		out.Close()
		return nil, fmt.Errorf("kdf: expand %q: %w", info, err)
	}
	return out, nil
}

// DeriveKEK derives the per-recipient key-encryption key from the ML-KEM
// (and, for hybrid recipients, X25519) shared secret(s). ikm is
// mlkem_ss, or mlkem_ss‖x25519_ss in that order for hybrid. The
// concatenation order is normative and must never be swapped.
// salt is kdf_salt for v2.1 containers, or []byte(V2SaltLiteral) for v2.0.
func DeriveKEK(salt, ikm []byte) (*secretbuf.Buffer, error) {
	return expand(salt, ikm, []byte(infoKEK), kekLen)
}

// StreamKeys holds the keys and nonce-prefix derived from a content
// encryption key: K1 (the primary AEAD key), K2 (reserved for a future
// cascade construction), and the 8-byte file_id used as the
// fixed nonce prefix for every chunk.
type StreamKeys struct {
	K1     *secretbuf.Buffer
	K2     *secretbuf.Buffer
	FileID [8]byte
}

// Close zeroizes K1 and K2. The plain file_id array needs no wiping: it
// is not secret, only unique.
func (s *StreamKeys) Close() {
	secretbuf.CloseAll(s.K1, s.K2)
}

// DeriveStreamKeys derives K1, K2, and file_id from the content encryption
// key, using the same salt-selection rule as DeriveKEK.
func DeriveStreamKeys(salt []byte, cek *secretbuf.Buffer) (*StreamKeys, error) {
	k1, err := expand(salt, cek.Bytes(), []byte(infoStreamK1), k1Len)
	if err != nil {
		return nil, err
	}
	k2, err := expand(salt, cek.Bytes(), []byte(infoStreamK2), k2Len)
	if err != nil {
		k1.Close()
		return nil, err
	}
	fileIDBuf, err := expand(salt, cek.Bytes(), []byte(infoNoncePrefix), fileIDLen)
	if err != nil {
		k1.Close()
		k2.Close()
		return nil, err
	}
	defer fileIDBuf.Close()

	var fileID [8]byte
	copy(fileID[:], fileIDBuf.Bytes())

	return &StreamKeys{K1: k1, K2: k2, FileID: fileID}, nil
}
