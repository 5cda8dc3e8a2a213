// Package qsfs implements quantum-safe file sealing: containers encrypted
// to one or more ML-KEM-1024 recipients (optionally hybridized with
// X25519), optionally signed with ML-DSA-87, and carrying their plaintext
// as a sequence of independently authenticated chunks.
package qsfs

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/qsfs/qsfs/internal/header"
	"github.com/qsfs/qsfs/internal/kdf"
	"github.com/qsfs/qsfs/internal/keyschedule"
	"github.com/qsfs/qsfs/internal/pae"
	"github.com/qsfs/qsfs/internal/pq"
	"github.com/qsfs/qsfs/internal/secretbuf"
	"github.com/qsfs/qsfs/internal/streaming"
)

// Log is the package-level logger, matching vaultsandbox-client-go's
// convention of a single configurable logrus.Logger rather than a
// per-client one, since Seal/Unseal are stateless functions rather than
// methods on a long-lived client value.
var Log = logrus.New()

// Seal encrypts the plaintext read from src to dst, sealed to every
// recipient named by WithRecipient(s). At least one recipient is required.
// When any recipient is hybrid, a random ephemeral X25519 keypair is
// generated once per call and reused across all hybrid recipients' key
// exchanges: one ephemeral X25519 keypair per seal operation, not per
// recipient. No ephemeral keypair is generated when no recipient is hybrid.
func Seal(dst io.Writer, src io.Reader, opts ...SealOption) error {
	cfg := newSealConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.recipients) == 0 {
		return &PolicyError{Reason: "seal requires at least one recipient"}
	}
	if cfg.chunkSize < header.MinChunkSize || cfg.chunkSize > streaming.MaxChunkSize {
		return &PolicyError{Reason: fmt.Sprintf("chunk size %d out of range (%d..%d)", cfg.chunkSize, header.MinChunkSize, streaming.MaxChunkSize)}
	}

	logEntry := Log.WithFields(logrus.Fields{
		"op":         "seal",
		"recipients": len(cfg.recipients),
		"suite":      cfg.suite.String(),
	})

	cek, err := keyschedule.GenerateCEK()
	if err != nil {
		return fmt.Errorf("qsfs: seal: %w", err)
	}
	defer cek.Close()

	var kdfSalt []byte
	if cfg.formatVersion == FormatV21 {
		kdfSalt = make([]byte, header.KDFSaltSize)
		if _, err := io.ReadFull(rand.Reader, kdfSalt); err != nil {
			return fmt.Errorf("qsfs: seal: read kdf_salt: %w", err)
		}
	} else {
		kdfSalt = []byte(kdf.V2SaltLiteral)
	}

	streamKeys, err := kdf.DeriveStreamKeys(kdfSalt, cek)
	if err != nil {
		return fmt.Errorf("qsfs: seal: derive stream keys: %w", err)
	}
	defer streamKeys.Close()

	needsHybrid := false
	for _, r := range cfg.recipients {
		if len(r.X25519Public) != 0 {
			needsHybrid = true
		}
	}

	var ephX25519 *pq.X25519Keypair
	if needsHybrid {
		ephX25519, err = pq.GenerateX25519Keypair()
		if err != nil {
			return fmt.Errorf("qsfs: seal: generate ephemeral X25519 keypair: %w", err)
		}
	}

	h := &header.Header{
		Magic:     header.Magic,
		Suite:     cfg.suite,
		ChunkSize: uint32(cfg.chunkSize),
		FileID:    streamKeys.FileID,
	}
	if cfg.formatVersion == FormatV21 {
		h.KDFSalt = kdfSalt
	}
	if ephX25519 != nil {
		copy(h.EphX25519PK[:], ephX25519.PublicKey)
	}

	kekSalt := kekSaltForVersion(cfg.formatVersion, kdfSalt)
	for _, r := range cfg.recipients {
		entry, err := buildRecipientEntry(r, cek, ephX25519, kekSalt)
		if err != nil {
			return fmt.Errorf("qsfs: seal: recipient %q: %w", r.Label, err)
		}
		h.Recipients = append(h.Recipients, *entry)
	}

	if cfg.signer != nil {
		if err := cfg.signer.Sign(h); err != nil {
			return fmt.Errorf("qsfs: seal: sign header: %w", err)
		}
	}
	h.Fin = 1

	headerBytes, err := h.Encode()
	if err != nil {
		return fmt.Errorf("qsfs: seal: encode header: %w", err)
	}

	var headerLen [4]byte
	putBE32(headerLen[:], uint32(len(headerBytes)))
	if _, err := dst.Write(headerLen[:]); err != nil {
		return fmt.Errorf("qsfs: seal: write header length: %w", err)
	}
	if _, err := dst.Write(headerBytes); err != nil {
		return fmt.Errorf("qsfs: seal: write header: %w", err)
	}

	aead, err := streaming.NewAEAD(cfg.suite, streamKeys.K1.Bytes())
	if err != nil {
		return &PolicyError{Reason: fmt.Sprintf("build AEAD for suite %v: %v", cfg.suite, err)}
	}
	aad := pae.ChunkAAD(cfg.suite.String(), uint32(cfg.chunkSize), streamKeys.FileID, kdfSaltForAAD(cfg.formatVersion, kdfSalt))

	if err := streaming.Encrypt(dst, src, aead, streamKeys.FileID, aad, cfg.chunkSize); err != nil {
		return fmt.Errorf("qsfs: seal: %w", err)
	}

	logEntry.Info("seal complete")
	return nil
}

// kdfSaltForAAD returns the salt that should be mixed into chunk AAD: nil
// for v2.0 (the AAD tuple has no fifth field), the real per-file salt for
// v2.1.
func kdfSaltForAAD(version FormatVersion, salt []byte) []byte {
	if version == FormatV21 {
		return salt
	}
	return nil
}

// kekSaltForVersion returns the salt DeriveKEK must use for every recipient
// entry: the per-file kdf_salt for v2.1, the fixed literal for v2.0. This
// must match kdfSaltFromHeader's choice on the unseal side exactly, or no
// recipient entry will ever unwrap.
func kekSaltForVersion(version FormatVersion, kdfSalt []byte) []byte {
	if version == FormatV21 {
		return kdfSalt
	}
	return []byte(kdf.V2SaltLiteral)
}

func buildRecipientEntry(r Recipient, cek *secretbuf.Buffer, ephX25519 *pq.X25519Keypair, kekSalt []byte) (*header.RecipientEntry, error) {
	if len(r.MLKEMPublic) != pq.MLKEMPublicKeySize {
		return nil, &PolicyError{Reason: fmt.Sprintf("recipient ML-KEM public key is %d bytes, want %d", len(r.MLKEMPublic), pq.MLKEMPublicKeySize)}
	}

	mlkemCt, mlkemSS, err := pq.MLKEMEncapsulate(r.MLKEMPublic)
	if err != nil {
		return nil, fmt.Errorf("ML-KEM encapsulate: %w", err)
	}
	defer mlkemSS.Close()

	entry := &header.RecipientEntry{
		Label:   r.Label,
		MLKEMCt: mlkemCt,
	}

	ikm := mlkemSS.Bytes()

	if len(r.X25519Public) != 0 {
		if ephX25519 == nil {
			return nil, &PolicyError{Reason: "hybrid recipient requested but no ephemeral X25519 keypair was generated"}
		}
		x25519SS, err := pq.X25519Exchange(ephX25519.SecretKey, r.X25519Public)
		if err != nil {
			return nil, fmt.Errorf("X25519 exchange: %w", err)
		}
		defer x25519SS.Close()

		combined := pq.HybridCombine(mlkemSS, x25519SS)
		defer combined.Close()
		ikm = combined.Bytes()

		entry.X25519Pub = append([]byte{}, r.X25519Public...)
		entry.X25519PKFpr = header.RecipientFingerprint(r.X25519Public)
	}

	kek, err := kdf.DeriveKEK(kekSalt, ikm)
	if err != nil {
		return nil, fmt.Errorf("derive KEK: %w", err)
	}
	defer kek.Close()

	nonce, wrapped, err := keyschedule.WrapCEK(kek, cek)
	if err != nil {
		return nil, fmt.Errorf("wrap CEK: %w", err)
	}
	entry.WrapNonce = nonce
	entry.WrappedDEK = wrapped

	return entry, nil
}

func putBE32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// SealFile seals the file at srcPath into a new container at dstPath,
// writing through a temporary file in dstPath's directory and renaming it
// into place once sealing succeeds, so a reader never observes a partially
// written container. Grounded on original_source's
// NamedTempFile::persist pattern, adapted to os.CreateTemp + os.Rename
// since Go has no equivalent of Rust's tempfile crate in the retrieved
// pack.
func SealFile(dstPath, srcPath string, opts ...SealOption) (err error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return &IOError{Path: srcPath, Err: err}
	}
	defer src.Close()

	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, ".qsfs-seal-*")
	if err != nil {
		return &IOError{Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = Seal(tmp, src, opts...); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return &IOError{Path: tmpPath, Err: err}
	}
	if err = os.Rename(tmpPath, dstPath); err != nil {
		return &IOError{Path: dstPath, Err: err}
	}
	return nil
}
