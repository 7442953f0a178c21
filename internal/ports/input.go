package ports

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

var (
	ErrPortClosed            = errors.New("port closed")
	ErrCapabilityUnsupported = errors.New("capability unsupported")
)

type inputState int

const (
	inputOpen inputState = iota
	inputExhausted
	inputClosed
)

// Input is the request-body port handed to an application.
type Input struct {
	src    io.Reader
	r      *bufio.Reader
	seeker io.Seeker // nil when the transport cannot rewind
	closer io.Closer
	state  inputState
}

// NewInput wraps r. Rewind is available when r implements io.Seeker; Close
// closes r when it implements io.Closer.
func NewInput(r io.Reader) *Input {
	in := &Input{src: r, r: bufio.NewReader(r)}
	if s, ok := r.(io.Seeker); ok {
		in.seeker = s
	}
	if c, ok := r.(io.Closer); ok {
		in.closer = c
	}
	return in
}

// Read reads up to len(p) bytes. Once it has returned io.EOF every later
// call returns 0, io.EOF.
func (in *Input) Read(p []byte) (int, error) {
	switch in.state {
	case inputClosed:
		return 0, ErrPortClosed
	case inputExhausted:
		return 0, io.EOF
	}
	n, err := in.r.Read(p)
	if err == io.EOF {
		in.state = inputExhausted
	}
	return n, err
}

// ReadLine returns the next line including its trailing newline. The last
// line may lack one. It returns nil, io.EOF when nothing is left.
func (in *Input) ReadLine() ([]byte, error) {
	switch in.state {
	case inputClosed:
		return nil, ErrPortClosed
	case inputExhausted:
		return nil, io.EOF
	}
	line, err := in.r.ReadBytes('\n')
	if err == io.EOF {
		in.state = inputExhausted
		if len(line) > 0 {
			return line, nil
		}
		return nil, io.EOF
	}
	if err != nil {
		return line, fmt.Errorf("read line: %w", err)
	}
	return line, nil
}

// maxSizeHint caps the preallocation ReadAll makes from a caller's hint.
const maxSizeHint = 1 << 20

// ReadAll reads the remaining bytes. sizeHint preallocates the result, up
// to maxSizeHint; the buffer grows past it as data arrives.
func (in *Input) ReadAll(sizeHint int) ([]byte, error) {
	switch in.state {
	case inputClosed:
		return nil, ErrPortClosed
	case inputExhausted:
		return []byte{}, nil
	}
	buf := bytes.NewBuffer(make([]byte, 0, min(max(sizeHint, 0), maxSizeHint)))
	if _, err := buf.ReadFrom(in.r); err != nil {
		return buf.Bytes(), fmt.Errorf("read all: %w", err)
	}
	in.state = inputExhausted
	return buf.Bytes(), nil
}

// CanRewind reports whether Rewind can succeed.
func (in *Input) CanRewind() bool {
	return in.seeker != nil && in.state != inputClosed
}

// Rewind moves back to the first byte. It fails with ErrCapabilityUnsupported
// when the transport is not seekable; callers should carry on without it.
func (in *Input) Rewind() error {
	if in.state == inputClosed {
		return ErrPortClosed
	}
	if in.seeker == nil {
		return ErrCapabilityUnsupported
	}
	if _, err := in.seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind input: %w", err)
	}
	in.r.Reset(in.src)
	in.state = inputOpen
	return nil
}

// Close releases the transport. It is safe to call more than once.
func (in *Input) Close() error {
	if in.state == inputClosed {
		return nil
	}
	in.state = inputClosed
	if in.closer != nil {
		return in.closer.Close()
	}
	return nil
}
