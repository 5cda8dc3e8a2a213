// Package header implements the QSFS container header: its in-memory
// representation, its deterministic wire encoding, and the canonical
// "placeholder" form that is both the ML-DSA-87 signing input and exactly
// reconstructible by a verifier that has only the parsed header in hand.
//
// The wire encoding is a flat sequence of fields, each either fixed-size or
// length-prefixed with a big-endian u32, in the fixed order below. This
// generalizes original_source/crates/qsfs-core/src/header.rs's struct
// field order into an explicit binary layout, since Go has no postcard
// equivalent in the retrieved example pack to lean on for this.
package header

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"
)

// Magic identifies a QSFS v2 container: "QSFS2\x00".
var Magic = [6]byte{'Q', 'S', 'F', 'S', '2', 0x00}

const (
	// MaxHeaderSize bounds the serialized header, matching the original
	// implementation's `hdr_len > 1024 * 1024` rejection in lib.rs::unseal.
	MaxHeaderSize = 1024 * 1024
	// MaxRecipients bounds the recipient count; a u16 count field caps it
	// structurally, but this is the explicit policy ceiling enforced on top.
	MaxRecipients = 65535
	// MLKEMCiphertextSize is the expected size of every RecipientEntry's
	// mlkem_ct field (ML-KEM-1024 ciphertext size).
	MLKEMCiphertextSize = 1568
	// WrapNonceSize is the size of a RecipientEntry's wrap_nonce field.
	WrapNonceSize = 12
	// WrappedDEKSize is the size of a RecipientEntry's wrapped_dek field.
	WrappedDEKSize = 48
	// FileIDSize is the size of the header's file_id field.
	FileIDSize = 8
	// KDFSaltSize is the size of the header's kdf_salt field (v2.1 only).
	KDFSaltSize = 32
	// X25519KeySize is the size of eph_x25519_pk and a recipient's
	// x25519_pub field.
	X25519KeySize = 32
	// ReservedHashSize is the size of the reserved (always-zero) hash
	// field kept for wire compatibility: the pre-GCM plaintext-hash field
	// is retired but its slot is not reused.
	ReservedHashSize = 32

	// MinChunkSize and MaxChunkSize bound a container's chunk_size field.
	// Parse enforces this range on every header it decodes, before the
	// value ever reaches the streaming layer's frame-size allocation.
	MinChunkSize = 1024
	MaxChunkSize = 4 * 1024 * 1024
)

// SuiteID identifies the AEAD suite used for the chunk stream.
type SuiteID uint8

const (
	SuiteAES256GCM     SuiteID = 1
	SuiteAES256GCMSIV  SuiteID = 2
	SuiteChaCha20Poly1305 SuiteID = 3
)

// IsKnown reports whether s is one of the suites this build understands.
// Parse rejects any other value before it can reach the streaming layer.
func (s SuiteID) IsKnown() bool {
	switch s {
	case SuiteAES256GCM, SuiteAES256GCMSIV, SuiteChaCha20Poly1305:
		return true
	default:
		return false
	}
}

// String returns the ASCII suite name used in PAE/AAD encoding
// (internal/pae.ChunkAAD's suiteASCII argument).
func (s SuiteID) String() string {
	switch s {
	case SuiteAES256GCM:
		return "aes256-gcm"
	case SuiteAES256GCMSIV:
		return "aes256-gcm-siv"
	case SuiteChaCha20Poly1305:
		return "chacha20poly1305"
	default:
		return fmt.Sprintf("unknown-suite-%d", uint8(s))
	}
}

// RecipientEntry is one recipient's wrapped copy of the content encryption
// key, plus the ML-KEM ciphertext that produced the shared secret it was
// wrapped under.
type RecipientEntry struct {
	Label         string
	MLKEMCt       []byte   // ML-KEM-1024 ciphertext, MLKEMCiphertextSize bytes
	WrappedDEK    []byte   // AES-256-GCM sealed CEK, WrappedDEKSize bytes
	WrapNonce     [WrapNonceSize]byte
	X25519PKFpr   [8]byte  // BLAKE3(x25519_pub)[:8], zero if non-hybrid
	X25519Pub     []byte   // present (X25519KeySize bytes) only for hybrid recipients
}

// SignatureMetadata names the signer whose signature covers the header, so
// a verifier can look up the signer_id in the trust database without first
// trusting the embedded public key.
type SignatureMetadata struct {
	SignerID  [32]byte // SHA-256(public key)
	Algorithm string   // always "ml-dsa-87" for now
	PublicKey []byte   // MLDSAPublicKeySize bytes
}

// Header is the full parsed QSFS container header.
type Header struct {
	Magic         [6]byte
	Suite         SuiteID
	ChunkSize     uint32
	FileID        [FileIDSize]byte
	KDFSalt       []byte // nil for v2.0, KDFSaltSize bytes for v2.1
	ReservedHash  [ReservedHashSize]byte
	Recipients    []RecipientEntry
	EphX25519PK   [X25519KeySize]byte // zero if no hybrid recipient present
	MLDSASig      []byte              // empty if unsigned
	EdSig         []byte              // reserved, must be empty (Open Question #3)
	SigMeta       *SignatureMetadata  // nil unless MLDSASig is non-empty
	Fin           uint8               // always 1 in a well-formed container
}

// IsV21 reports whether this header carries a per-file kdf_salt.
func (h *Header) IsV21() bool { return h.KDFSalt != nil }

func putU32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func putLenPrefixed(out []byte, field []byte) []byte {
	out = putU32(out, uint32(len(field)))
	return append(out, field...)
}

// RecipientFingerprint computes the BLAKE3-based fingerprint QSFS stores
// for each hybrid recipient's X25519 public key, matching
// original_source/crates/qsfs-core/src/lib.rs::seal's blake3::hash(...)[..8]
// construction.
func RecipientFingerprint(x25519Pub []byte) [8]byte {
	sum := blake3.Sum256(x25519Pub)
	var fpr [8]byte
	copy(fpr[:], sum[:8])
	return fpr
}
