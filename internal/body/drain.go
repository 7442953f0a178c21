package body

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Sink accepts one chunk. It must copy the chunk if it keeps it after returning.
type Sink func(chunk []byte) error

// ErrorKind classifies a drain failure.
type ErrorKind int

const (
	ProducerFailed ErrorKind = iota + 1
	SinkFailed
	Aborted
	CloseFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ProducerFailed:
		return "producer_failed"
	case SinkFailed:
		return "sink_failed"
	case Aborted:
		return "aborted"
	case CloseFailed:
		return "close_failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *DrainError's kind.
var (
	ErrProducerFailed = errors.New("body producer failed")
	ErrSinkFailed     = errors.New("body sink failed")
	ErrAborted        = errors.New("body drain aborted")
	ErrCloseFailed    = errors.New("body close failed")
)

// DrainError reports why draining stopped. CloseErr is set when the close
// step also failed after an earlier error.
type DrainError struct {
	Kind     ErrorKind
	Source   Kind
	Chunks   int
	Err      error
	CloseErr error
}

func (e *DrainError) Error() string {
	msg := fmt.Sprintf("drain %s body: %s after %d chunks: %v", e.Source, e.Kind, e.Chunks, e.Err)
	if e.CloseErr != nil {
		msg += fmt.Sprintf(" (close: %v)", e.CloseErr)
	}
	return msg
}

func (e *DrainError) Unwrap() []error {
	if e.CloseErr != nil {
		return []error{e.Err, e.CloseErr}
	}
	return []error{e.Err}
}

func (e *DrainError) Is(target error) bool {
	switch target {
	case ErrProducerFailed:
		return e.Kind == ProducerFailed
	case ErrSinkFailed:
		return e.Kind == SinkFailed
	case ErrAborted:
		return e.Kind == Aborted
	case ErrCloseFailed:
		return e.Kind == CloseFailed
	}
	return false
}

// KindOf returns the failure kind of err, or 0 when err is not a drain error.
func KindOf(err error) ErrorKind {
	var de *DrainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// Drain feeds every chunk of src to sink in producer order. Sources with a
// close step are closed exactly once on every exit path, including panics.
// ctx is only consulted between chunks.
func Drain(ctx context.Context, src *Source, sink Sink) (err error) {
	d := &drainer{ctx: ctx, src: src, sink: sink}

	if src.Closable() {
		defer func() {
			closeErr := d.close()
			switch {
			case closeErr == nil:
			case err == nil:
				err = d.fail(CloseFailed, closeErr)
			default:
				var de *DrainError
				if errors.As(err, &de) {
					de.CloseErr = closeErr
				}
			}
		}()
	}

	switch src.kind {
	case KindChunks:
		return d.chunks()
	case KindHandle:
		return d.handle()
	case KindGenerator:
		return d.generator()
	case KindIterable:
		return d.iterable()
	}
	return fmt.Errorf("drain: unknown source kind %d", src.kind)
}

type drainer struct {
	ctx    context.Context
	src    *Source
	sink   Sink
	count  int
	closed bool
}

func (d *drainer) fail(kind ErrorKind, err error) *DrainError {
	return &DrainError{Kind: kind, Source: d.src.kind, Chunks: d.count, Err: err}
}

// emit checks for cancellation, then hands one chunk to the sink.
func (d *drainer) emit(chunk []byte) *DrainError {
	if err := d.ctx.Err(); err != nil {
		return d.fail(Aborted, err)
	}
	if err := d.sink(chunk); err != nil {
		return d.fail(SinkFailed, err)
	}
	d.count++
	return nil
}

func (d *drainer) close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	switch d.src.kind {
	case KindHandle:
		return d.src.handle.Close()
	case KindIterable:
		if d.src.closer != nil {
			return d.src.closer.Close()
		}
	}
	return nil
}

func (d *drainer) chunks() error {
	for _, c := range d.src.chunks {
		if de := d.emit(c); de != nil {
			return de
		}
	}
	return nil
}

func (d *drainer) handle() error {
	for {
		chunk, err := d.src.handle.ReadChunk()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return d.fail(ProducerFailed, err)
		}
		if de := d.emit(chunk); de != nil {
			return de
		}
	}
}

func (d *drainer) generator() error {
	for {
		chunk, err := d.src.gen()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return d.fail(ProducerFailed, err)
		}
		if de := d.emit(chunk); de != nil {
			return de
		}
	}
}

func (d *drainer) iterable() error {
	var stopped *DrainError
	yield := func(chunk []byte) error {
		if stopped != nil {
			return stopped.Err
		}
		if de := d.emit(chunk); de != nil {
			stopped = de
			return de.Err
		}
		return nil
	}

	err := d.src.iter.ForEach(yield)
	if stopped != nil {
		return stopped
	}
	if err != nil {
		return d.fail(ProducerFailed, err)
	}
	return nil
}
