// Package pae implements QSFS's Pre-Authenticated Encoding: a
// length-prefixed, domain-separated canonical byte encoding used both as
// AEAD associated data and as the message input to header signing.
//
//	PAE = "QSFS-PAE" || version_tag || Σ ( u64_be(len(field_i)) || field_i )
//
// version_tag is 0x01 for the v2.0 field tuple (no kdf_salt) and 0x02 for
// the v2.1 tuple (kdf_salt appended). PAE never fails: oversize inputs are
// a caller bug, not a runtime error, since every field QSFS ever encodes
// has a fixed, small size known at compile time.
package pae

import "encoding/binary"

const (
	prefix = "QSFS-PAE"

	// VersionV1 tags the v2.0 AAD/signing-input layout (no kdf_salt field).
	VersionV1 byte = 0x01
	// VersionV2 tags the v2.1 layout (kdf_salt appended as a fifth field).
	VersionV2 byte = 0x02
)

// Encode concatenates prefix, version, and each length-prefixed field in
// order. The returned slice is always fresh; callers may retain it.
func Encode(version byte, fields ...[]byte) []byte {
	size := len(prefix) + 1
	for _, f := range fields {
		size += 8 + len(f)
	}
	out := make([]byte, 0, size)
	out = append(out, prefix...)
	out = append(out, version)
	var lenBuf [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(f)))
		out = append(out, lenBuf[:]...)
		out = append(out, f...)
	}
	return out
}

// ChunkAAD builds the per-chunk AEAD associated data for a container:
// PAE_v1("qsfs/v2", suite, u32_be(chunk_size), file_id) for v2.0, or the
// same tuple with kdf_salt appended for v2.1. The same AAD is reused for
// every chunk in the container: the whole stream is bound to one fixed
// header configuration.
func ChunkAAD(suiteASCII string, chunkSize uint32, fileID [8]byte, kdfSalt []byte) []byte {
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], chunkSize)

	if kdfSalt == nil {
		return Encode(VersionV1, []byte("qsfs/v2"), []byte(suiteASCII), sizeBuf[:], fileID[:])
	}
	return Encode(VersionV2, []byte("qsfs/v2"), []byte(suiteASCII), sizeBuf[:], fileID[:], kdfSalt)
}
