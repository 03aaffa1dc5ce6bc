package imagemod

import (
	"io"
)

// memSeeker is a growable, in-memory io.ReadWriteSeeker. A frame is written
// through the same modheader/iohelper machinery as any other module —
// including its own deferred size-field patches — before its bytes are
// embedded whole into the parent image module's data section, so frame
// assembly needs a real seekable sink and not just an append-only buffer.
type memSeeker struct {
	data []byte
	pos  int64
}

func newMemSeeker() *memSeeker { return &memSeeker{} }

func (m *memSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	n := copy(m.data[m.pos:end], p)
	m.pos = end
	return n, nil
}

func (m *memSeeker) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memSeeker) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = m.pos + offset
	case io.SeekEnd:
		target = int64(len(m.data)) + offset
	}
	m.pos = target
	return m.pos, nil
}

// Bytes returns the full backing slice, independent of the current read
// position.
func (m *memSeeker) Bytes() []byte {
	return m.data
}
