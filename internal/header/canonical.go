package header

// SigningInput produces the canonical "placeholder" encoding of h to sign
// (or to verify a signature against): the same wire layout as Encode, but
// with a zero-length mldsa_sig and meta substituted for h.SigMeta. Passing
// the signer's own metadata (including its public key) means that key is
// part of the signed bytes even though h.MLDSASig does not exist yet; a
// verifier passes back the metadata it parsed off the wire, so any bit
// flipped in signer_id, algorithm, or public_key after signing is caught
// the same way a flipped payload byte would be.
//
// This generalizes original_source/crates/qsfs-core/src/canonical.rs's
// strip-then-reserialize idea, but keeps the header's own binary field
// order instead of that file's human-readable line format: there is no
// postcard-equivalent serializer here to match byte-for-byte, so the
// signing input is simply "the header's own wire encoding, signature bytes
// blanked", which is unambiguous as long as Encode is deterministic.
func (h *Header) SigningInput(meta *SignatureMetadata) ([]byte, error) {
	return h.encode(nil, meta)
}
