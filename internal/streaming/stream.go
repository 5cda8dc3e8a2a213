package streaming

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
)

// terminatorBit marks the final frame's index. A chunk count of up to
// 2^31 is far more than any real stream needs, so stealing
// the high bit of the index to signal "this is the last frame" (see
// SPEC_FULL.md for this encoding's rationale) costs nothing real. A reader
// that sees the bit set processes that frame's plaintext and then expects
// end-of-stream.
const terminatorBit = uint32(1) << 31

// maxChunkIndex is the largest chunk index this build will produce,
// leaving the high bit exclusively for the terminator flag.
const maxChunkIndex = terminatorBit - 1

func nonce96(fileID [8]byte, index uint32) [12]byte {
	var n [12]byte
	copy(n[:8], fileID[:])
	binary.BigEndian.PutUint32(n[8:], index)
	return n
}

// Encrypt reads plaintext from r in chunkSize pieces, seals each under
// aead with aad as associated data, and writes
// [u32_be index][u32_be ct_len][ct_bytes] frames to w. The final frame has
// its index's high bit set as the terminator.
func Encrypt(w io.Writer, r io.Reader, aead cipher.AEAD, fileID [8]byte, aad []byte, chunkSize int) error {
	if chunkSize <= 0 || chunkSize > MaxChunkSize {
		return fmt.Errorf("streaming: chunk size %d out of range (1..%d)", chunkSize, MaxChunkSize)
	}

	buf := make([]byte, chunkSize)
	var index uint32
	var frameHdr [8]byte

	for {
		n, readErr := io.ReadFull(r, buf)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return fmt.Errorf("streaming: read plaintext: %w", readErr)
		}

		atEOF := readErr == io.EOF || readErr == io.ErrUnexpectedEOF
		// An empty final chunk (n==0, atEOF) still emits one terminator
		// frame sealing zero plaintext bytes, so an empty input file
		// round-trips as a valid, verifiable container rather than a
		// header with no stream at all.
		lastFrame := atEOF

		if index > maxChunkIndex {
			return fmt.Errorf("streaming: chunk index overflow at chunk %d", index)
		}

		wireIndex := index
		if lastFrame {
			wireIndex |= terminatorBit
		}

		nonce := nonce96(fileID, index)
		ct := aead.Seal(nil, nonce[:], buf[:n], aad)

		binary.BigEndian.PutUint32(frameHdr[0:4], wireIndex)
		binary.BigEndian.PutUint32(frameHdr[4:8], uint32(len(ct)))
		if _, err := w.Write(frameHdr[:]); err != nil {
			return fmt.Errorf("streaming: write frame header: %w", err)
		}
		if _, err := w.Write(ct); err != nil {
			return fmt.Errorf("streaming: write frame ciphertext: %w", err)
		}

		if lastFrame {
			return nil
		}
		index++
	}
}

// Decrypt reads frames from r, opens each under aead with aad, and writes
// the recovered plaintext to w in order. It enforces monotonically
// increasing chunk indices and stops at the frame whose index has the
// terminator bit set; any frame after that is a format error.
func Decrypt(w io.Writer, r io.Reader, aead cipher.AEAD, fileID [8]byte, aad []byte, chunkSize int) error {
	var expected uint32
	var frameHdr [8]byte

	for {
		_, err := io.ReadFull(r, frameHdr[:])
		if err == io.EOF {
			return fmt.Errorf("streaming: stream ended before a terminator frame")
		}
		if err != nil {
			return fmt.Errorf("streaming: read frame header: %w", err)
		}

		wireIndex := binary.BigEndian.Uint32(frameHdr[0:4])
		ctLen := binary.BigEndian.Uint32(frameHdr[4:8])
		isTerminator := wireIndex&terminatorBit != 0
		index := wireIndex &^ terminatorBit

		if index != expected {
			return fmt.Errorf("streaming: chunk out of order: expected %d, got %d", expected, index)
		}
		if uint64(ctLen) > uint64(chunkSize)+TagSize {
			return fmt.Errorf("streaming: chunk %d ciphertext too large: %d", index, ctLen)
		}

		ct := make([]byte, ctLen)
		if _, err := io.ReadFull(r, ct); err != nil {
			return fmt.Errorf("streaming: read chunk %d ciphertext: %w", index, err)
		}

		nonce := nonce96(fileID, index)
		pt, err := aead.Open(nil, nonce[:], ct, aad)
		if err != nil {
			return fmt.Errorf("streaming: authentication failed at chunk %d: %w", index, err)
		}
		if _, err := w.Write(pt); err != nil {
			return fmt.Errorf("streaming: write plaintext: %w", err)
		}

		if isTerminator {
			var extra [1]byte
			if _, err := io.ReadFull(r, extra[:]); err != io.EOF {
				if err == nil {
					return fmt.Errorf("streaming: data after terminator frame")
				}
				return fmt.Errorf("streaming: read after terminator frame: %w", err)
			}
			return nil
		}
		if expected == maxChunkIndex {
			return fmt.Errorf("streaming: chunk index overflow at chunk %d", expected)
		}
		expected++
	}
}
