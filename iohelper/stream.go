// Package iohelper wraps a file handle with tell/seek helpers and a list of
// deferred offset patches, so header-writing code can record "come back and
// overwrite this later" intentions without scattering raw Seek/Tell pairs
// through the module and header packages (design note §9, "Streaming
// offsets").
package iohelper

import (
	"fmt"
	"io"
)

// Stream is a read/write/seek handle with patch bookkeeping. It is not
// safe for concurrent use; a single Writer or Reader session owns one.
type Stream struct {
	rw      io.ReadWriteSeeker
	patches []patch
}

type patch struct {
	offset int64
	value  []byte
}

// NewStream wraps an existing read/write/seek handle (typically *os.File).
func NewStream(rw io.ReadWriteSeeker) *Stream {
	return &Stream{rw: rw}
}

// Tell returns the current stream position.
func (s *Stream) Tell() (int64, error) {
	return s.rw.Seek(0, io.SeekCurrent)
}

// SeekTo moves the stream to an absolute offset.
func (s *Stream) SeekTo(offset int64) error {
	_, err := s.rw.Seek(offset, io.SeekStart)
	return err
}

// SeekEnd moves the stream to the end and returns the resulting offset.
func (s *Stream) SeekEnd() (int64, error) {
	return s.rw.Seek(0, io.SeekEnd)
}

// Write writes at the current position, advancing it.
func (s *Stream) Write(p []byte) (int, error) {
	return s.rw.Write(p)
}

// Read reads from the current position, advancing it.
func (s *Stream) Read(p []byte) (int, error) {
	return s.rw.Read(p)
}

// DeferPatch records a byte slice to be written at offset once
// ApplyPatches is called, instead of seeking and writing immediately. This
// lets a header be built sequentially with placeholder sizes and patched in
// one pass at the end.
func (s *Stream) DeferPatch(offset int64, value []byte) {
	s.patches = append(s.patches, patch{offset: offset, value: value})
}

// ApplyPatches writes every deferred patch to its recorded offset, in the
// order they were registered, then restores the stream to where it was
// before the first patch was applied.
func (s *Stream) ApplyPatches() error {
	if len(s.patches) == 0 {
		return nil
	}

	cur, err := s.Tell()
	if err != nil {
		return fmt.Errorf("iohelper: tell before applying patches: %w", err)
	}

	for _, p := range s.patches {
		if err := s.SeekTo(p.offset); err != nil {
			return fmt.Errorf("iohelper: seek to patch offset %d: %w", p.offset, err)
		}
		if _, err := s.rw.Write(p.value); err != nil {
			return fmt.Errorf("iohelper: write patch at offset %d: %w", p.offset, err)
		}
	}

	s.patches = s.patches[:0]

	return s.SeekTo(cur)
}

// PatchByteAt seeks to offset, writes a single byte, and restores the
// stream position. Used for the IsCurrent demotion byte-flip (§3, §4.E)
// where the patch must land immediately rather than being deferred.
func (s *Stream) PatchByteAt(offset int64, value byte) error {
	cur, err := s.Tell()
	if err != nil {
		return fmt.Errorf("iohelper: tell before byte patch: %w", err)
	}
	if err := s.SeekTo(offset); err != nil {
		return fmt.Errorf("iohelper: seek to byte patch offset %d: %w", offset, err)
	}
	if _, err := s.rw.Write([]byte{value}); err != nil {
		return fmt.Errorf("iohelper: write byte patch at offset %d: %w", offset, err)
	}
	return s.SeekTo(cur)
}
