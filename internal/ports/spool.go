package ports

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Spool buffers r so the returned Input can rewind. Bodies up to memLimit
// bytes stay in memory; larger ones spill to a temp file in dir (os.TempDir
// when empty) that is removed on Close. r is drained but not closed.
func Spool(r io.Reader, memLimit int64, dir string) (*Input, error) {
	// memLimit+1 must not overflow.
	memLimit = min(max(memLimit, 0), math.MaxInt64-1)
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, memLimit+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("spool input: %w", err)
	}
	if n <= memLimit {
		return NewInput(bytes.NewReader(buf.Bytes())), nil
	}

	f, err := os.CreateTemp(dir, "bodygate-input-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	tmp := &tempFile{File: f}
	if _, err := f.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("spool input: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek spool file: %w", err)
	}
	return NewInput(tmp), nil
}

// tempFile removes the file from disk once closed.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	closeErr := t.File.Close()
	if err := os.Remove(t.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return closeErr
}
