package stream_test

import (
	"bytes"
	"context"
	"testing"

	"crawshaw.io/iox"

	"github.com/obsidiangroup/gromox-sub002/stream"
)

type memSource struct {
	data  []byte
	saves int
}

func (m *memSource) Load(ctx context.Context) ([]byte, error) {
	return append([]byte{}, m.data...), nil
}

func (m *memSource) Save(ctx context.Context, data []byte) error {
	m.data = append([]byte{}, data...)
	m.saves++
	return nil
}

func TestWriteSeekReadRoundTrip(t *testing.T) {
	filer := iox.NewFiler(0)
	defer filer.Shutdown(context.Background())
	src := &memSource{}
	s := stream.New(filer, src, stream.MaxLengthFolder, stream.OpenRead|stream.OpenWrite)
	ctx := context.Background()

	want := []byte("hello, mailbox")
	if _, err := s.Write(ctx, want); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Seek(ctx, stream.Begin, 0); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(want))
	n, err := s.Read(ctx, got)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(want) || !bytes.Equal(got, want) {
		t.Errorf("read back %q, want %q", got[:n], want)
	}

	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(src.data, want) {
		t.Errorf("committed data = %q, want %q", src.data, want)
	}
	if err := s.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if src.saves != 1 {
		t.Errorf("Save called %d times, want 1 (commit must be idempotent when not dirty)", src.saves)
	}
}

func TestWriteClampsAtMaxLength(t *testing.T) {
	filer := iox.NewFiler(0)
	defer filer.Shutdown(context.Background())
	src := &memSource{}
	s := stream.New(filer, src, 4, stream.OpenWrite)
	ctx := context.Background()

	n, err := s.Write(ctx, []byte("abcdefgh"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("Write returned %d, want 4 (short write, not an error)", n)
	}
	if s.Length() != 4 {
		t.Errorf("Length() = %d, want 4", s.Length())
	}
}

func TestSeekOutOfRange(t *testing.T) {
	filer := iox.NewFiler(0)
	defer filer.Shutdown(context.Background())
	src := &memSource{data: []byte("abc")}
	s := stream.New(filer, src, stream.MaxLengthFolder, stream.OpenRead)
	ctx := context.Background()

	if _, err := s.Seek(ctx, stream.Begin, -1); err != stream.ErrSeekOutOfRange {
		t.Errorf("err = %v, want ErrSeekOutOfRange", err)
	}
	if _, err := s.Seek(ctx, stream.End, 1); err != stream.ErrSeekOutOfRange {
		t.Errorf("err = %v, want ErrSeekOutOfRange", err)
	}
}

func TestSetLengthRejectsOverMax(t *testing.T) {
	filer := iox.NewFiler(0)
	defer filer.Shutdown(context.Background())
	src := &memSource{}
	s := stream.New(filer, src, 10, stream.OpenWrite)
	ctx := context.Background()

	if err := s.SetLength(ctx, 11); err != stream.ErrTooLong {
		t.Errorf("err = %v, want ErrTooLong", err)
	}
	if err := s.SetLength(ctx, 10); err != nil {
		t.Errorf("SetLength at exactly MaxLength should succeed: %v", err)
	}
}

func TestOnReleaseFlushesDirtyBuffer(t *testing.T) {
	filer := iox.NewFiler(0)
	defer filer.Shutdown(context.Background())
	src := &memSource{}
	s := stream.New(filer, src, stream.MaxLengthFolder, stream.OpenWrite)
	ctx := context.Background()
	if _, err := s.Write(ctx, []byte("pending")); err != nil {
		t.Fatal(err)
	}
	s.OnRelease()
	if !bytes.Equal(src.data, []byte("pending")) {
		t.Errorf("OnRelease did not flush dirty buffer: got %q", src.data)
	}
}
