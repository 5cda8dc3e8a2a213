package header

import (
	"encoding/binary"
	"fmt"
)

// version tag byte written right after Magic: 0 for v2.0 (no kdf_salt), 1
// for v2.1 (kdf_salt present). This is the only place version is recorded
// on the wire. It is never inferred from field presence elsewhere; version
// detection must never be automatic.
const (
	wireVersionV20 byte = 0
	wireVersionV21 byte = 1
)

// encode serializes h to its wire form using the given signature and
// signature-metadata values in place of h.MLDSASig/h.SigMeta. Encode()
// passes h's real fields; SigningInput (canonical.go) passes a zero-length
// signature alongside the metadata that is about to be (or was) signed
// over, so the signer's public key is part of the signed bytes even
// before h.MLDSASig exists.
func (h *Header) encode(sig []byte, meta *SignatureMetadata) ([]byte, error) {
	if len(h.Recipients) > MaxRecipients {
		return nil, fmt.Errorf("header: %d recipients exceeds max of %d", len(h.Recipients), MaxRecipients)
	}

	out := make([]byte, 0, 512+len(h.Recipients)*256)
	out = append(out, h.Magic[:]...)

	if h.IsV21() {
		out = append(out, wireVersionV21)
	} else {
		out = append(out, wireVersionV20)
	}

	out = append(out, byte(h.Suite))
	out = putU32(out, h.ChunkSize)
	out = append(out, h.FileID[:]...)

	if h.IsV21() {
		if len(h.KDFSalt) != KDFSaltSize {
			return nil, fmt.Errorf("header: kdf_salt must be %d bytes, got %d", KDFSaltSize, len(h.KDFSalt))
		}
		out = append(out, h.KDFSalt...)
	}

	out = append(out, h.ReservedHash[:]...)

	var recipCount [2]byte
	binary.BigEndian.PutUint16(recipCount[:], uint16(len(h.Recipients)))
	out = append(out, recipCount[:]...)

	for i, r := range h.Recipients {
		if len(r.MLKEMCt) != MLKEMCiphertextSize {
			return nil, fmt.Errorf("header: recipient %d mlkem_ct is %d bytes, want %d", i, len(r.MLKEMCt), MLKEMCiphertextSize)
		}
		if len(r.WrappedDEK) != WrappedDEKSize {
			return nil, fmt.Errorf("header: recipient %d wrapped_dek is %d bytes, want %d", i, len(r.WrappedDEK), WrappedDEKSize)
		}
		out = putLenPrefixed(out, []byte(r.Label))
		out = append(out, r.MLKEMCt...)
		out = append(out, r.WrappedDEK...)
		out = append(out, r.WrapNonce[:]...)
		out = append(out, r.X25519PKFpr[:]...)
		out = putLenPrefixed(out, r.X25519Pub)
	}

	out = append(out, h.EphX25519PK[:]...)

	out = putLenPrefixed(out, sig)
	out = putLenPrefixed(out, h.EdSig)

	if meta != nil {
		out = append(out, 1)
		out = append(out, meta.SignerID[:]...)
		out = putLenPrefixed(out, []byte(meta.Algorithm))
		out = putLenPrefixed(out, meta.PublicKey)
	} else {
		out = append(out, 0)
	}

	out = append(out, h.Fin)

	return out, nil
}

// Encode serializes the full header, including its signature and metadata
// if present. This is what is written to disk.
func (h *Header) Encode() ([]byte, error) {
	return h.encode(h.MLDSASig, h.SigMeta)
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("header: truncated (need %d bytes at offset %d, have %d)", n, r.pos, len(r.b))
	}
	return nil
}

func (r *reader) take(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n > MaxHeaderSize {
		return nil, fmt.Errorf("header: length-prefixed field too large: %d", n)
	}
	return r.take(int(n))
}

// Parse decodes a wire-format header. It enforces size and shape limits
// before trusting any field: magic bytes, recipient count, and fixed-size
// field lengths.
func Parse(b []byte) (*Header, error) {
	if len(b) > MaxHeaderSize {
		return nil, fmt.Errorf("header: %d bytes exceeds max header size %d", len(b), MaxHeaderSize)
	}
	r := &reader{b: b}

	magicBytes, err := r.take(6)
	if err != nil {
		return nil, err
	}
	var h Header
	copy(h.Magic[:], magicBytes)
	if h.Magic != Magic {
		return nil, fmt.Errorf("header: bad magic %x, want %x", h.Magic, Magic)
	}

	wireVersion, err := r.byte()
	if err != nil {
		return nil, err
	}
	if wireVersion != wireVersionV20 && wireVersion != wireVersionV21 {
		return nil, fmt.Errorf("header: unrecognized wire version %d", wireVersion)
	}

	suiteByte, err := r.byte()
	if err != nil {
		return nil, err
	}
	h.Suite = SuiteID(suiteByte)
	if !h.Suite.IsKnown() {
		return nil, fmt.Errorf("header: unknown suite id %d", suiteByte)
	}

	h.ChunkSize, err = r.u32()
	if err != nil {
		return nil, err
	}
	if h.ChunkSize < MinChunkSize || h.ChunkSize > MaxChunkSize {
		return nil, fmt.Errorf("header: chunk_size %d out of range [%d, %d]", h.ChunkSize, MinChunkSize, MaxChunkSize)
	}

	fileID, err := r.take(FileIDSize)
	if err != nil {
		return nil, err
	}
	copy(h.FileID[:], fileID)

	if wireVersion == wireVersionV21 {
		salt, err := r.take(KDFSaltSize)
		if err != nil {
			return nil, err
		}
		h.KDFSalt = append([]byte{}, salt...)
	}

	reservedHash, err := r.take(ReservedHashSize)
	if err != nil {
		return nil, err
	}
	copy(h.ReservedHash[:], reservedHash)

	recipCount, err := r.u16()
	if err != nil {
		return nil, err
	}

	h.Recipients = make([]RecipientEntry, 0, recipCount)
	for i := 0; i < int(recipCount); i++ {
		var rec RecipientEntry

		label, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("header: recipient %d label: %w", i, err)
		}
		rec.Label = string(label)

		ct, err := r.take(MLKEMCiphertextSize)
		if err != nil {
			return nil, fmt.Errorf("header: recipient %d mlkem_ct: %w", i, err)
		}
		rec.MLKEMCt = append([]byte{}, ct...)

		wrapped, err := r.take(WrappedDEKSize)
		if err != nil {
			return nil, fmt.Errorf("header: recipient %d wrapped_dek: %w", i, err)
		}
		rec.WrappedDEK = append([]byte{}, wrapped...)

		nonce, err := r.take(WrapNonceSize)
		if err != nil {
			return nil, fmt.Errorf("header: recipient %d wrap_nonce: %w", i, err)
		}
		copy(rec.WrapNonce[:], nonce)

		fpr, err := r.take(8)
		if err != nil {
			return nil, fmt.Errorf("header: recipient %d x25519_pk_fpr: %w", i, err)
		}
		copy(rec.X25519PKFpr[:], fpr)

		xpub, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("header: recipient %d x25519_pub: %w", i, err)
		}
		if len(xpub) != 0 {
			rec.X25519Pub = append([]byte{}, xpub...)
		}

		h.Recipients = append(h.Recipients, rec)
	}

	ephPK, err := r.take(X25519KeySize)
	if err != nil {
		return nil, err
	}
	copy(h.EphX25519PK[:], ephPK)

	mldsaSig, err := r.lenPrefixed()
	if err != nil {
		return nil, fmt.Errorf("header: mldsa_sig: %w", err)
	}
	if len(mldsaSig) != 0 {
		h.MLDSASig = append([]byte{}, mldsaSig...)
	}

	edSig, err := r.lenPrefixed()
	if err != nil {
		return nil, fmt.Errorf("header: ed25519_sig: %w", err)
	}
	if len(edSig) != 0 {
		// ed25519_sig is reserved for future use and must be empty on
		// every container QSFS v2 produces (Open Question #3 resolution,
		// see SPEC_FULL.md): a nonzero value here means either a future
		// format this build does not understand, or a corrupted header.
		return nil, fmt.Errorf("header: ed25519_sig is reserved and must be empty, got %d bytes", len(edSig))
	}

	hasSigMeta, err := r.byte()
	if err != nil {
		return nil, err
	}
	if hasSigMeta == 1 {
		signerID, err := r.take(32)
		if err != nil {
			return nil, fmt.Errorf("header: signature_metadata.signer_id: %w", err)
		}
		algorithm, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("header: signature_metadata.algorithm: %w", err)
		}
		publicKey, err := r.lenPrefixed()
		if err != nil {
			return nil, fmt.Errorf("header: signature_metadata.public_key: %w", err)
		}
		meta := &SignatureMetadata{Algorithm: string(algorithm), PublicKey: append([]byte{}, publicKey...)}
		copy(meta.SignerID[:], signerID)
		h.SigMeta = meta
	}

	h.Fin, err = r.byte()
	if err != nil {
		return nil, err
	}
	if h.Fin != 1 {
		return nil, fmt.Errorf("header: fin marker = %d, want 1", h.Fin)
	}

	if r.pos != len(r.b) {
		return nil, fmt.Errorf("header: %d trailing bytes after header", len(r.b)-r.pos)
	}

	return &h, nil
}
