// Package fingerprint computes the content fingerprint used for change
// detection. The fingerprint hashes file size plus the first and last
// 64 KiB of bytes, so content-preserving copies and restores keep their
// identity while any byte-level edit is detected cheaply.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/gazehq/gaze-engine/internal/constants"
)

// EmptyFile is the sentinel fingerprint of a zero-byte file.
var EmptyFile = func() string {
	sum := sha256.Sum256([]byte("empty"))
	return fmt.Sprintf("%x", sum)[:constants.FingerprintLength]
}()

// File computes the fingerprint of the file at path. The digest covers
// "<size>:<head>:<tail>" where head and tail are each up to 64 KiB; for
// files smaller than 64 KiB head and tail are the whole content.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file for fingerprint: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file for fingerprint: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return EmptyFile, nil
	}

	chunk := int64(constants.FingerprintChunkSize)
	headLen := min(chunk, size)
	head := make([]byte, headLen)
	if _, err := io.ReadFull(f, head); err != nil {
		return "", fmt.Errorf("reading head chunk: %w", err)
	}

	tailLen := min(chunk, size)
	tail := make([]byte, tailLen)
	if _, err := f.ReadAt(tail, size-tailLen); err != nil {
		return "", fmt.Errorf("reading tail chunk: %w", err)
	}

	h := sha256.New()
	fmt.Fprintf(h, "%d:", size)
	h.Write(head)
	h.Write([]byte{':'})
	h.Write(tail)

	return fmt.Sprintf("%x", h.Sum(nil))[:constants.FingerprintLength], nil
}
