package ports

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"testing"
)

// streamReader hides Seek so the port sees a live, non-rewindable transport.
type streamReader struct {
	io.Reader
	closes int
}

func (s *streamReader) Close() error {
	s.closes++
	return nil
}

func TestInput_ReadAfterExhausted(t *testing.T) {
	in := NewInput(strings.NewReader("abc"))
	buf := make([]byte, 2)

	n, err := in.Read(buf)
	if err != nil || string(buf[:n]) != "ab" {
		t.Fatalf("expected ab, got %q (%v)", buf[:n], err)
	}
	n, err = in.Read(buf)
	if err != nil || string(buf[:n]) != "c" {
		t.Fatalf("expected c, got %q (%v)", buf[:n], err)
	}
	for i := 0; i < 5; i++ {
		n, err = in.Read(buf)
		if n != 0 || err != io.EOF {
			t.Fatalf("read %d after exhaustion: expected 0, io.EOF, got %d, %v", i, n, err)
		}
	}
}

func TestInput_ReadLine(t *testing.T) {
	in := NewInput(strings.NewReader("first\nsecond\nlast"))
	want := []string{"first\n", "second\n", "last"}
	for _, w := range want {
		line, err := in.ReadLine()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(line) != w {
			t.Errorf("expected %q, got %q", w, line)
		}
	}
	if _, err := in.ReadLine(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	if _, err := in.ReadLine(); err != io.EOF {
		t.Errorf("expected io.EOF again, got %v", err)
	}
}

func TestInput_ReadAll(t *testing.T) {
	in := NewInput(strings.NewReader("hello world"))
	head := make([]byte, 6)
	if _, err := io.ReadFull(in, head); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rest, err := in.ReadAll(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rest) != "world" {
		t.Errorf("expected world, got %q", rest)
	}
	rest, err = in.ReadAll(0)
	if err != nil || len(rest) != 0 {
		t.Errorf("expected empty result after exhaustion, got %q (%v)", rest, err)
	}
	if n, err := in.Read(make([]byte, 4)); n != 0 || err != io.EOF {
		t.Errorf("expected io.EOF after ReadAll, got %d, %v", n, err)
	}
}

func TestInput_RewindSeekable(t *testing.T) {
	in := NewInput(strings.NewReader("payload"))
	if !in.CanRewind() {
		t.Fatal("strings.Reader should be rewindable")
	}
	first, _ := in.ReadAll(0)
	if err := in.Rewind(); err != nil {
		t.Fatalf("unexpected rewind error: %v", err)
	}
	second, _ := in.ReadAll(0)
	if !bytes.Equal(first, second) {
		t.Errorf("expected rewind to reproduce %q, got %q", first, second)
	}

	// partial read then rewind
	in.Rewind()
	line, _ := in.ReadLine()
	in.Rewind()
	again, _ := in.ReadLine()
	if !bytes.Equal(line, again) {
		t.Errorf("expected %q after rewind, got %q", line, again)
	}
}

func TestInput_RewindUnsupported(t *testing.T) {
	src := &streamReader{Reader: io.MultiReader(strings.NewReader("live"))}
	in := NewInput(src)
	if in.CanRewind() {
		t.Fatal("live stream should not report rewind")
	}
	in.ReadAll(0)
	if err := in.Rewind(); !errors.Is(err, ErrCapabilityUnsupported) {
		t.Errorf("expected ErrCapabilityUnsupported, got %v", err)
	}
	if n, err := in.Read(make([]byte, 1)); n != 0 || err != io.EOF {
		t.Errorf("failed rewind must not change state, got %d, %v", n, err)
	}
}

func TestInput_Close(t *testing.T) {
	src := &streamReader{Reader: strings.NewReader("x")}
	in := NewInput(src)
	if err := in.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := in.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if src.closes != 1 {
		t.Errorf("expected transport closed once, got %d", src.closes)
	}
	if _, err := in.Read(make([]byte, 1)); !errors.Is(err, ErrPortClosed) {
		t.Errorf("expected ErrPortClosed, got %v", err)
	}
	if _, err := in.ReadLine(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("expected ErrPortClosed, got %v", err)
	}
	if err := in.Rewind(); !errors.Is(err, ErrPortClosed) {
		t.Errorf("expected ErrPortClosed, got %v", err)
	}
}

func TestSpool_InMemory(t *testing.T) {
	src := &streamReader{Reader: strings.NewReader("small body")}
	in, err := Spool(src, 64, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer in.Close()

	if !in.CanRewind() {
		t.Fatal("spooled input should rewind")
	}
	first, _ := in.ReadAll(0)
	in.Rewind()
	second, _ := in.ReadAll(0)
	if string(first) != "small body" || string(second) != "small body" {
		t.Errorf("expected body twice, got %q and %q", first, second)
	}
	if src.closes != 0 {
		t.Error("spool must not close the source")
	}
}

func TestSpool_SpillsToDisk(t *testing.T) {
	dir := t.TempDir()
	body := strings.Repeat("0123456789", 100)
	in, err := Spool(&streamReader{Reader: strings.NewReader(body)}, 16, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 spool file, got %d", len(entries))
	}

	got, _ := in.ReadAll(len(body))
	if string(got) != body {
		t.Errorf("expected %d bytes back, got %d", len(body), len(got))
	}
	if err := in.Rewind(); err != nil {
		t.Fatalf("unexpected rewind error: %v", err)
	}
	got, _ = in.ReadAll(0)
	if string(got) != body {
		t.Error("rewind should reproduce the spooled body")
	}

	if err := in.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	entries, _ = os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected spool file removed, found %d entries", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("socket reset") }

func TestSpool_ReadError(t *testing.T) {
	if _, err := Spool(failingReader{}, 16, t.TempDir()); err == nil {
		t.Error("expected spool to fail on read error")
	}
}

func TestInput_ReadAllOversizedHint(t *testing.T) {
	in := NewInput(&streamReader{Reader: strings.NewReader("hi\n")})
	got, err := in.ReadAll(math.MaxInt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hi\n" {
		t.Errorf("expected hi, got %q", got)
	}
	if cap(got) > maxSizeHint {
		t.Errorf("expected preallocation capped at %d, got cap %d", maxSizeHint, cap(got))
	}
}

func TestSpool_MaxMemoryLimit(t *testing.T) {
	in, err := Spool(strings.NewReader("kept body"), math.MaxInt64, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer in.Close()
	got, _ := in.ReadAll(0)
	if string(got) != "kept body" {
		t.Errorf("expected body kept in memory, got %q", got)
	}
}
