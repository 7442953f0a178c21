package ports

import (
	"bufio"
	"fmt"
	"io"
)

// Errors is the diagnostic port handed to an application. Writes are buffered
// until Flush or Close.
type Errors struct {
	dst    io.Writer
	w      *bufio.Writer
	closed bool
}

func NewErrors(dst io.Writer) *Errors {
	return &Errors{dst: dst, w: bufio.NewWriter(dst)}
}

func (e *Errors) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrPortClosed
	}
	return e.w.Write(p)
}

func (e *Errors) WriteString(s string) (int, error) {
	if e.closed {
		return 0, ErrPortClosed
	}
	return e.w.WriteString(s)
}

// Printf formats a diagnostic message onto the port.
func (e *Errors) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(e, format, args...)
	return err
}

func (e *Errors) Flush() error {
	if e.closed {
		return ErrPortClosed
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush errors port: %w", err)
	}
	return nil
}

// Close flushes pending output and closes the destination when it is an
// io.Closer. Later calls on the port fail with ErrPortClosed.
func (e *Errors) Close() error {
	if e.closed {
		return ErrPortClosed
	}
	e.closed = true
	flushErr := e.w.Flush()
	if c, ok := e.dst.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close errors port: %w", err)
		}
	}
	if flushErr != nil {
		return fmt.Errorf("flush errors port: %w", flushErr)
	}
	return nil
}

// Closed reports whether Close has been called.
func (e *Errors) Closed() bool { return e.closed }
