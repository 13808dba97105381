package logs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// TailOptions selects what to read. A negative Offset means "the last Limit
// lines"; a non-negative Offset reads every complete line written after it.
type TailOptions struct {
	Offset int64
	Limit  int
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the log file per the options. A missing file is not an error;
// it returns no lines and offset zero so follow mode can wait for the daemon
// to create it.
func Tail(path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{}, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		return readLast(path, opts.Limit)
	}
	offset := opts.Offset
	if offset > info.Size() {
		// The file was rotated or truncated; start over.
		offset = 0
	}
	return readFrom(path, offset)
}

// readLast returns the final limit complete lines. With limit zero only the
// resume offset is computed, which is how follow mode starts at the tail.
func readLast(path string, limit int) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}

	lines, n := completeLines(data)
	if limit <= 0 {
		return TailResult{Offset: int64(n)}, nil
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return TailResult{Lines: lines, Offset: int64(n)}, nil
}

// readFrom returns every complete line written after offset.
func readFrom(path string, offset int64) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{}, fmt.Errorf("seek log file: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return TailResult{}, fmt.Errorf("read log file: %w", err)
	}

	lines, n := completeLines(data)
	return TailResult{Lines: lines, Offset: offset + int64(n)}, nil
}

// completeLines splits data into newline-terminated lines and reports how
// many bytes they cover. A trailing partial line the daemon is still writing
// is not counted, so the resume offset points at its first byte and the line
// is picked up whole on a later read.
func completeLines(data []byte) ([]string, int) {
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, 0
	}
	raw := bytes.Split(data[:end], []byte{'\n'})
	lines := make([]string, len(raw))
	for i, line := range raw {
		lines[i] = strings.TrimSuffix(string(line), "\r")
	}
	return lines, end + 1
}
