// Package stream implements the stream object (spec.md §3 "Stream",
// §4.6, component C8): a byte-addressable cached view over one long
// binary or string property, with read/write/seek/commit.
//
// The cached buffer itself is built on crawshaw.io/iox's *iox.BufferFile,
// the same idiom the teacher uses everywhere it needs to buffer a
// variable-length blob of message bytes before/after I/O
// (email/msgcleaver, html/htmlembed, smtp/smtpserver/greylist,
// spilldb/db.LoadMsg).
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"crawshaw.io/iox"
)

// Origin selects the reference point for Seek (spec.md §4.6).
type Origin int

const (
	Begin Origin = iota
	Cur
	End
)

// OpenFlag is a bitmask of the flags a stream was opened with.
type OpenFlag int

const (
	OpenRead OpenFlag = 1 << iota
	OpenWrite
	OpenCreate
)

// ErrSeekOutOfRange is returned by Seek when the resulting position
// would fall outside [0, length] (spec.md §4.6 "StreamSeekError").
var ErrSeekOutOfRange = errors.New("stream: seek out of range")

// ErrTooLong is returned by SetLength when the requested length
// exceeds MaxLength (spec.md §4.6).
var ErrTooLong = errors.New("stream: length exceeds maximum")

// Source is the property this stream is a cached view over. Load reads
// the property's current bytes from the driver (or iox.Filer-backed
// store); Save writes the buffer back. Streams open over a folder
// property use a max length of 64 KiB (spec.md §3); message/attachment
// properties may allow more — MaxLength is supplied by the caller when
// constructing the Stream, not by Source.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// MaxLengthFolder is the maximum stream length for a folder property
// (spec.md §3 "64 KiB for folders").
const MaxLengthFolder = 64 * 1024

// Stream is a byte-addressable cached view over one property.
type Stream struct {
	filer     *iox.Filer
	src       Source
	maxLength int64
	flags     OpenFlag

	mu     sync.Mutex
	buf    *iox.BufferFile
	loaded bool
	length int64
	pos    int64
	dirty  bool
}

// New constructs a Stream. The backing buffer is not loaded until the
// first Read, Write, Seek, or SetLength call (spec.md §4.6 "The buffer
// is loaded lazily on first access").
func New(filer *iox.Filer, src Source, maxLength int64, flags OpenFlag) *Stream {
	return &Stream{filer: filer, src: src, maxLength: maxLength, flags: flags}
}

func (s *Stream) ensureLoaded(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	data, err := s.src.Load(ctx)
	if err != nil {
		return err
	}
	s.buf = s.filer.BufferFile(int64(len(data)))
	if len(data) > 0 {
		if _, err := s.buf.Write(data); err != nil {
			s.buf.Close()
			return err
		}
		if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
			s.buf.Close()
			return err
		}
	}
	s.length = int64(len(data))
	s.pos = 0
	s.loaded = true
	return nil
}

// Read consumes up to len(p) bytes at the current position, clamping at
// end of stream (spec.md §4.6).
func (s *Stream) Read(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	remaining := s.length - s.pos
	if remaining <= 0 {
		return 0, nil
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if _, err := s.buf.Seek(s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.buf, p)
	s.pos += int64(n)
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}

// Write grows the buffer up to MaxLength; bytes beyond that are
// silently dropped and the short write count is returned without error
// (spec.md §4.6).
func (s *Stream) Write(ctx context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	room := s.maxLength - s.pos
	if room <= 0 {
		return 0, nil
	}
	if int64(len(p)) > room {
		p = p[:room]
	}
	if _, err := s.buf.Seek(s.pos, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := s.buf.Write(p)
	if err != nil {
		return n, err
	}
	s.pos += int64(n)
	if s.pos > s.length {
		s.length = s.pos
	}
	s.dirty = true
	return n, nil
}

// Seek repositions the stream, clamping to [0, length]. An out-of-range
// result is rejected with ErrSeekOutOfRange and the position is left
// unchanged (spec.md §4.6).
func (s *Stream) Seek(ctx context.Context, origin Origin, offset int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return 0, err
	}
	var base int64
	switch origin {
	case Begin:
		base = 0
	case Cur:
		base = s.pos
	case End:
		base = s.length
	default:
		return s.pos, ErrSeekOutOfRange
	}
	newPos := base + offset
	if newPos < 0 || newPos > s.length {
		return s.pos, ErrSeekOutOfRange
	}
	s.pos = newPos
	return s.pos, nil
}

// SetLength extends the stream with zero bytes, or truncates it.
// It fails if length exceeds MaxLength (spec.md §4.6).
func (s *Stream) SetLength(ctx context.Context, length int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	if length > s.maxLength {
		return ErrTooLong
	}
	if length > s.length {
		if _, err := s.buf.Seek(s.length, io.SeekStart); err != nil {
			return err
		}
		zeros := make([]byte, length-s.length)
		if _, err := s.buf.Write(zeros); err != nil {
			return err
		}
	}
	s.length = length
	if s.pos > s.length {
		s.pos = s.length
	}
	s.dirty = true
	return nil
}

// Commit writes the dirty buffer back to the owning property and
// clears the dirty flag. Calling Commit when not dirty is a no-op and
// always succeeds (spec.md §8 "Stream.commit() is idempotent when not
// dirty").
func (s *Stream) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	data := make([]byte, s.length)
	if s.length > 0 {
		if _, err := s.buf.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.ReadFull(s.buf, data); err != nil {
			return err
		}
	}
	if err := s.src.Save(ctx, data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Length reports the stream's current length.
func (s *Stream) Length() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// OnRelease flushes a dirty stream on handle release (spec.md §3
// "flushed on commit or on handle release when dirty"), then releases
// the backing buffer. Errors are swallowed here by design: there is no
// caller left to report them to once a handle is being torn down: the
// client-visible contract is Commit, called explicitly, for errors that
// must be observed.
func (s *Stream) OnRelease() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty && s.loaded {
		data := make([]byte, s.length)
		if s.length > 0 {
			if _, err := s.buf.Seek(0, io.SeekStart); err == nil {
				io.ReadFull(s.buf, data)
			}
		}
		s.src.Save(context.Background(), data)
		s.dirty = false
	}
	if s.buf != nil {
		s.buf.Close()
	}
}
