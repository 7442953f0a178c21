package body

import (
	"errors"
	"io"
	"iter"
)

// DefaultChunkSize is the read size used when a reader is wrapped as a Handle.
const DefaultChunkSize = 32 * 1024

// ErrUnsupportedBody is returned by Classify for values that match no producer shape.
var ErrUnsupportedBody = errors.New("unsupported body type")

// Kind identifies which producer shape a Source wraps.
type Kind int

const (
	KindChunks Kind = iota
	KindHandle
	KindGenerator
	KindIterable
)

func (k Kind) String() string {
	switch k {
	case KindChunks:
		return "chunks"
	case KindHandle:
		return "handle"
	case KindGenerator:
		return "generator"
	case KindIterable:
		return "iterable"
	default:
		return "unknown"
	}
}

// Handle is a pull-style byte source that must be closed.
// ReadChunk returns io.EOF once the source is exhausted. The returned slice
// may be reused by the next call.
type Handle interface {
	ReadChunk() ([]byte, error)
	Close() error
}

// Iterable pushes chunks into yield in producer order. Implementations must
// stop and return the error when yield fails.
type Iterable interface {
	ForEach(yield func([]byte) error) error
}

// Generator returns the next chunk on every call and io.EOF when done.
type Generator func() ([]byte, error)

// Source is a response body normalized into exactly one producer shape.
type Source struct {
	kind   Kind
	chunks [][]byte
	handle Handle
	gen    Generator
	iter   Iterable
	closer io.Closer // optional; only set for KindIterable
}

// Kind reports the producer shape.
func (s *Source) Kind() Kind { return s.kind }

// Closable reports whether draining ends with a close step.
func (s *Source) Closable() bool {
	switch s.kind {
	case KindHandle:
		return true
	case KindIterable:
		return s.closer != nil
	}
	return false
}

func Chunks(chunks ...[]byte) *Source {
	return &Source{kind: KindChunks, chunks: chunks}
}

func Strings(chunks ...string) *Source {
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		out[i] = []byte(c)
	}
	return Chunks(out...)
}

func FromHandle(h Handle) *Source {
	return &Source{kind: KindHandle, handle: h}
}

// FromReader wraps r as a Handle reading up to chunkSize bytes per chunk.
// Close closes r when it implements io.Closer.
func FromReader(r io.Reader, chunkSize int) *Source {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return FromHandle(&readerHandle{r: r, buf: make([]byte, chunkSize)})
}

func FromGenerator(g Generator) *Source {
	return &Source{kind: KindGenerator, gen: g}
}

// FromIterable wraps it; an io.Closer implementation is detected here and
// called once after iteration.
func FromIterable(it Iterable) *Source {
	s := &Source{kind: KindIterable, iter: it}
	if c, ok := it.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func FromSeq(seq iter.Seq[[]byte]) *Source {
	return FromIterable(seqIterable(seq))
}

func FromSeq2(seq iter.Seq2[[]byte, error]) *Source {
	return FromIterable(seq2Iterable(seq))
}

// Classify turns an application's body value into a Source. Shapes are tried
// in a fixed order: finite sequences, handles and readers, generators, then
// iterables. chunkSize applies to readers.
func Classify(v any, chunkSize int) (*Source, error) {
	switch b := v.(type) {
	case *Source:
		return b, nil
	case nil:
		return Chunks(), nil
	case [][]byte:
		return Chunks(b...), nil
	case []string:
		return Strings(b...), nil
	case []byte:
		return Chunks(b), nil
	case string:
		return Strings(b), nil
	case Handle:
		return FromHandle(b), nil
	case io.Reader:
		return FromReader(b, chunkSize), nil
	case Generator:
		return FromGenerator(b), nil
	case func() ([]byte, error):
		return FromGenerator(b), nil
	case Iterable:
		return FromIterable(b), nil
	case iter.Seq[[]byte]:
		return FromSeq(b), nil
	case func(func([]byte) bool):
		return FromSeq(b), nil
	case iter.Seq2[[]byte, error]:
		return FromSeq2(b), nil
	case func(func([]byte, error) bool):
		return FromSeq2(b), nil
	}
	return nil, ErrUnsupportedBody
}

type readerHandle struct {
	r       io.Reader
	buf     []byte
	pending error
}

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

func (h *readerHandle) ReadChunk() ([]byte, error) {
	for range maxEmptyReads {
		if h.pending != nil {
			return nil, h.pending
		}
		n, err := h.r.Read(h.buf)
		if err != nil {
			h.pending = err
		}
		if n > 0 {
			return h.buf[:n], nil
		}
	}
	return nil, io.ErrNoProgress
}

func (h *readerHandle) Close() error {
	if c, ok := h.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type seqIterable iter.Seq[[]byte]

func (s seqIterable) ForEach(yield func([]byte) error) error {
	for chunk := range s {
		if err := yield(chunk); err != nil {
			return err
		}
	}
	return nil
}

type seq2Iterable iter.Seq2[[]byte, error]

func (s seq2Iterable) ForEach(yield func([]byte) error) error {
	for chunk, err := range s {
		if err != nil {
			return err
		}
		if err := yield(chunk); err != nil {
			return err
		}
	}
	return nil
}
