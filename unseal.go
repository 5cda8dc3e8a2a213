package qsfs

import (
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
	"github.com/qsfs/qsfs/internal/signer"
	"github.com/qsfs/qsfs/internal/streaming"
	"github.com/qsfs/qsfs/internal/trustdb"
)

// trustAnyStore satisfies trustdb.TrustDB and trusts every signer; used
// when WithTrustAnySigner(true) is set and the caller supplied no real
// store, so signer.Verify never has to special-case a nil TrustDB.
type trustAnyStore struct{}

func (trustAnyStore) Contains([32]byte) (bool, error) { return true, nil }

// Unseal reads a container from src, verifies the header signature against
// policy, then locates the recipient entry that unwraps under the caller's
// secret key(s), and writes the recovered plaintext to dst.
//
// Recipient entries are tried in header order; the first one whose
// wrapped_dek authenticates under the derived KEK is used. ML-KEM-1024's
// implicit-rejection decapsulation means a non-matching entry produces a
// pseudorandom KEK rather than an error, so "try the next entry" and
// "this entry wasn't ours" are indistinguishable from a timing
// perspective: every entry costs the same KEM decapsulation plus AEAD
// open regardless of match.
func Unseal(dst io.Writer, src io.Reader, opts ...UnsealOption) error {
	cfg := newUnsealConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.mlkemSecret == nil {
		return &PolicyError{Reason: "unseal requires WithMLKEMSecret"}
	}

	logEntry := Log.WithField("op", "unseal")

	var headerLen [4]byte
	if _, err := io.ReadFull(src, headerLen[:]); err != nil {
		return &FormatError{Reason: "read header length", Err: err}
	}
	hdrSize := be32(headerLen[:])
	if hdrSize > header.MaxHeaderSize {
		return &FormatError{Reason: fmt.Sprintf("header length %d exceeds max %d", hdrSize, header.MaxHeaderSize)}
	}

	headerBytes := make([]byte, hdrSize)
	if _, err := io.ReadFull(src, headerBytes); err != nil {
		return &FormatError{Reason: "read header", Err: err}
	}

	h, err := header.Parse(headerBytes)
	if err != nil {
		return &FormatError{Reason: "parse header", Err: err}
	}

	if cfg.requireFormatSet {
		gotV21 := h.IsV21()
		wantV21 := cfg.requireFormat == FormatV21
		if gotV21 != wantV21 {
			return &FormatError{Reason: "container wire version does not match WithRequireFormatVersion", Err: ErrUnsupportedVersion}
		}
	}

	trustStore := cfg.trustStore
	if cfg.trustAnySigner && trustStore == nil {
		trustStore = trustAnyStore{}
	}
	if trustStore == nil {
		trustStore = emptyTrustStore{}
	}
	policy := signer.Policy{AllowUnsigned: cfg.allowUnsigned, TrustAnySigner: cfg.trustAnySigner}
	if err := signer.Verify(h, trustStore, policy); err != nil {
		return &SignatureError{Reason: "header signature check", Err: err}
	}

	cek, entryLabel, err := unwrapAnyRecipient(h, cfg)
	if err != nil {
		return err
	}
	defer cek.Close()
	logEntry = logEntry.WithField("recipient", entryLabel)

	salt := kdfSaltFromHeader(h)
	streamKeys, err := kdf.DeriveStreamKeys(salt, cek)
	if err != nil {
		return fmt.Errorf("qsfs: unseal: derive stream keys: %w", err)
	}
	defer streamKeys.Close()

	if streamKeys.FileID != h.FileID {
		return &FormatError{Reason: "derived file_id does not match header file_id"}
	}

	aead, err := streaming.NewAEAD(h.Suite, streamKeys.K1.Bytes())
	if err != nil {
		return &FormatError{Reason: "build AEAD for container suite", Err: err}
	}
	aad := pae.ChunkAAD(h.Suite.String(), h.ChunkSize, h.FileID, kdfSaltForAADFromHeader(h))

	if err := streaming.Decrypt(dst, src, aead, h.FileID, aad, int(h.ChunkSize)); err != nil {
		return &StreamError{Reason: "chunk decryption", Err: err}
	}

	logEntry.Info("unseal complete")
	return nil
}

type emptyTrustStore struct{}

func (emptyTrustStore) Contains([32]byte) (bool, error) { return false, nil }

func kdfSaltFromHeader(h *header.Header) []byte {
	if h.IsV21() {
		return h.KDFSalt
	}
	return []byte(kdf.V2SaltLiteral)
}

func kdfSaltForAADFromHeader(h *header.Header) []byte {
	if h.IsV21() {
		return h.KDFSalt
	}
	return nil
}

func unwrapAnyRecipient(h *header.Header, cfg *unsealConfig) (*secretbuf.Buffer, string, error) {
	for _, entry := range h.Recipients {
		mlkemSS, decErr := cfg.mlkemSecret.Decapsulate(entry.MLKEMCt)
		if decErr != nil {
			continue
		}

		var ikmBuf *secretbuf.Buffer
		if len(entry.X25519Pub) != 0 {
			if cfg.x25519Secret == nil {
				mlkemSS.Close()
				continue
			}
			x25519SS, exErr := pq.X25519Exchange(cfg.x25519Secret.SecretKey, h.EphX25519PK[:])
			if exErr != nil {
				mlkemSS.Close()
				continue
			}
			ikmBuf = pq.HybridCombine(mlkemSS, x25519SS)
			x25519SS.Close()
			mlkemSS.Close()
		} else {
			ikmBuf = mlkemSS
		}

		kek, kekErr := kdf.DeriveKEK(kdfSaltFromHeader(h), ikmBuf.Bytes())
		ikmBuf.Close()
		if kekErr != nil {
			continue
		}

		cekBuf, unwrapErr := keyschedule.UnwrapCEK(kek, entry.WrapNonce, entry.WrappedDEK)
		kek.Close()
		if unwrapErr != nil {
			continue
		}

		return cekBuf, entry.Label, nil
	}

	return nil, "", &KeyError{Err: fmt.Errorf("no recipient entry unwrapped with the supplied secret key(s)")}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// UnsealFile unseals the container at srcPath into a new plaintext file
// at dstPath, via a temp-file-then-rename write identical to SealFile's.
func UnsealFile(dstPath, srcPath string, opts ...UnsealOption) (err error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return &IOError{Path: srcPath, Err: err}
	}
	defer src.Close()

	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, ".qsfs-unseal-*")
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

	if err = Unseal(tmp, src, opts...); err != nil {
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

var _ trustdb.TrustDB = trustAnyStore{}
var _ trustdb.TrustDB = emptyTrustStore{}
