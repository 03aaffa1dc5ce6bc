// Package xref implements the append-only cross-reference table mapping a
// module's UUID to its on-disk offset, size, and type (spec §3 "XREF
// entry", §4.G XRefTable), plus the footer that lets a Reader locate
// whichever XREF block is current without scanning the file.
//
// A container's XREF blocks accumulate exactly like its modules do: each
// Writer.closeFile call appends a brand new block and demotes the
// previous one's IsCurrent byte to 0 in place (spec §3 "Lifecycles"), so
// the file's XREF history is itself an audit trail. Only the block the
// footer currently points to is ever read on open.
package xref

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/internal/hash"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

var signature = [4]byte{'X', 'R', 'E', 'F'}

// fieldWidths is the field-width vector spec §3 stores immediately after
// the entry count: UUID(16) ‖ type(1) ‖ size(8) ‖ offset(8).
var fieldWidths = [4]byte{16, 1, 8, 8}

const (
	reservedBytes = 32
	entrySize     = 16 + 1 + 8 + 8 // id + type + size + offset

	// xrefOffsetMarker is the 12-byte footer marker (spec §6, §9 resolved):
	// the 11 ASCII bytes of "xrefoffset\n" followed by one 0x00 byte,
	// matching the original's char[12] literal byte-for-byte.
	xrefOffsetMarkerLen = 12
	// eofMarkerLen is the 8-byte "#EOUMDF" marker plus its trailing 0x00.
	eofMarkerLen = 8
	// FooterSize is the fixed number of trailing bytes every container
	// carries after its current XREF block: marker ‖ offset:u64 ‖ marker.
	FooterSize = xrefOffsetMarkerLen + 8 + eofMarkerLen
)

var xrefOffsetMarker = append([]byte("xrefoffset\n"), 0x00)
var eofMarker = append([]byte("#EOUMDF"), 0x00)

// Entry is one XREF record: a module's identity, type, on-disk size, and
// absolute byte offset (spec §3 "XREF entry").
type Entry struct {
	ID     primitives.UUID
	Type   format.ModuleType
	Size   uint64
	Offset int64
}

// Table is the in-memory XREF block being assembled by a Writer session,
// or loaded from a Reader's open. ModuleGraphOffset/Size/Checksum are the
// sibling fields spec §3 says the XREF "also records" so a Reader can
// locate and verify the module graph block without scanning for it.
type Table struct {
	entries []Entry
	index   map[primitives.UUID]int // id -> position in entries, for O(1) AddEntry dedup

	ModuleGraphOffset   int64
	ModuleGraphSize     uint64
	ModuleGraphChecksum uint64
}

// New creates an empty Table.
func New() *Table {
	return &Table{index: make(map[primitives.UUID]int)}
}

// AddEntry records or replaces the entry for id (spec §4.F step 5:
// "xref.add(type, id, absoluteStart, totalModuleSize)"). Per the §9
// "updateModule duplicate-id" open question, a later AddEntry for an id
// already present replaces it in place rather than appending a second
// record, so "first match wins" on read is unambiguous because there is
// only ever one match (REDESIGN FLAGS decision in SPEC_FULL.md).
func (t *Table) AddEntry(moduleType format.ModuleType, id primitives.UUID, offset int64, size uint64) {
	entry := Entry{ID: id, Type: moduleType, Size: size, Offset: offset}
	if i, ok := t.index[id]; ok {
		t.entries[i] = entry
		return
	}
	t.index[id] = len(t.entries)
	t.entries = append(t.entries, entry)
}

// Entries returns every current entry, in insertion order.
func (t *Table) Entries() []Entry {
	return t.entries
}

// Find returns the entry for id, if any.
func (t *Table) Find(id primitives.UUID) (Entry, bool) {
	i, ok := t.index[id]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Len reports how many modules this table indexes.
func (t *Table) Len() int {
	return len(t.entries)
}

// WriteBlock serializes the table at s's current position (spec §4.G
// "Emit the XREF block"), recording the module graph's offset/size/
// checksum as sibling header fields. It returns the absolute offset the
// block started at.
func (t *Table) WriteBlock(s *iohelper.Stream) (int64, error) {
	blockStart, err := s.Tell()
	if err != nil {
		return 0, fmt.Errorf("xref: tell at block start: %w", err)
	}

	if _, err := s.Write(signature[:]); err != nil {
		return 0, fmt.Errorf("xref: write signature: %w", err)
	}
	if _, err := s.Write([]byte{1}); err != nil { // isCurrent = 1
		return 0, fmt.Errorf("xref: write isCurrent: %w", err)
	}
	if _, err := s.Write(primitives.PutUint32(uint32(len(t.entries)))); err != nil {
		return 0, fmt.Errorf("xref: write count: %w", err)
	}
	if _, err := s.Write(fieldWidths[:]); err != nil {
		return 0, fmt.Errorf("xref: write field widths: %w", err)
	}
	if _, err := s.Write(make([]byte, reservedBytes)); err != nil {
		return 0, fmt.Errorf("xref: write reserved bytes: %w", err)
	}
	if _, err := s.Write(primitives.PutInt64(t.ModuleGraphOffset)); err != nil {
		return 0, fmt.Errorf("xref: write module graph offset: %w", err)
	}
	if _, err := s.Write(primitives.PutUint64(t.ModuleGraphSize)); err != nil {
		return 0, fmt.Errorf("xref: write module graph size: %w", err)
	}
	if _, err := s.Write(primitives.PutUint64(t.ModuleGraphChecksum)); err != nil {
		return 0, fmt.Errorf("xref: write module graph checksum: %w", err)
	}

	for _, e := range t.entries {
		if _, err := s.Write(e.ID.Bytes()); err != nil {
			return 0, fmt.Errorf("xref: write entry id: %w", err)
		}
		if _, err := s.Write([]byte{byte(e.Type)}); err != nil {
			return 0, fmt.Errorf("xref: write entry type: %w", err)
		}
		if _, err := s.Write(primitives.PutUint64(e.Size)); err != nil {
			return 0, fmt.Errorf("xref: write entry size: %w", err)
		}
		if _, err := s.Write(primitives.PutInt64(e.Offset)); err != nil {
			return 0, fmt.Errorf("xref: write entry offset: %w", err)
		}
	}

	return blockStart, nil
}

// ReadBlock parses the XREF block at offset (spec §4.G "On open... jumps
// to the recorded XREF offset, validates the signature and isCurrent=1").
func ReadBlock(s *iohelper.Stream, offset int64) (*Table, error) {
	if err := s.SeekTo(offset); err != nil {
		return nil, fmt.Errorf("xref: seek to block %d: %w", offset, err)
	}

	var sig [4]byte
	if _, err := readFull(s, sig[:]); err != nil {
		return nil, fmt.Errorf("xref: read signature: %w", err)
	}
	if sig != signature {
		return nil, fmt.Errorf("%w: got %q", errs.ErrInvalidXrefSignature, sig[:])
	}

	var isCurrent [1]byte
	if _, err := readFull(s, isCurrent[:]); err != nil {
		return nil, fmt.Errorf("xref: read isCurrent: %w", err)
	}
	if isCurrent[0] != 1 {
		return nil, errs.ErrObsoleteXref
	}

	var countBuf [4]byte
	if _, err := readFull(s, countBuf[:]); err != nil {
		return nil, fmt.Errorf("xref: read count: %w", err)
	}
	count := le32(countBuf[:])

	var widths [4]byte
	if _, err := readFull(s, widths[:]); err != nil {
		return nil, fmt.Errorf("xref: read field widths: %w", err)
	}
	if widths != fieldWidths {
		return nil, fmt.Errorf("%w: got %v", errs.ErrInvalidXrefWidths, widths)
	}

	if _, err := readFull(s, make([]byte, reservedBytes)); err != nil {
		return nil, fmt.Errorf("xref: read reserved bytes: %w", err)
	}

	var graphOffset, graphSize, graphChecksum [8]byte
	if _, err := readFull(s, graphOffset[:]); err != nil {
		return nil, fmt.Errorf("xref: read module graph offset: %w", err)
	}
	if _, err := readFull(s, graphSize[:]); err != nil {
		return nil, fmt.Errorf("xref: read module graph size: %w", err)
	}
	if _, err := readFull(s, graphChecksum[:]); err != nil {
		return nil, fmt.Errorf("xref: read module graph checksum: %w", err)
	}

	t := New()
	t.ModuleGraphOffset = int64(le64(graphOffset[:]))
	t.ModuleGraphSize = le64(graphSize[:])
	t.ModuleGraphChecksum = le64(graphChecksum[:])

	for i := uint32(0); i < count; i++ {
		var id [16]byte
		if _, err := readFull(s, id[:]); err != nil {
			return nil, fmt.Errorf("xref: read entry %d id: %w", i, err)
		}
		var typ [1]byte
		if _, err := readFull(s, typ[:]); err != nil {
			return nil, fmt.Errorf("xref: read entry %d type: %w", i, err)
		}
		var size, off [8]byte
		if _, err := readFull(s, size[:]); err != nil {
			return nil, fmt.Errorf("xref: read entry %d size: %w", i, err)
		}
		if _, err := readFull(s, off[:]); err != nil {
			return nil, fmt.Errorf("xref: read entry %d offset: %w", i, err)
		}
		t.AddEntry(format.ModuleType(typ[0]), primitives.FromBytes(id[:]), int64(le64(off[:])), le64(size[:]))
	}

	return t, nil
}

// SetObsolete flips the isCurrent byte of the XREF block at blockOffset to
// 0 (spec §4.G setObsolete: "one-byte in-place write at the previous
// xrefOffset + 4").
func SetObsolete(s *iohelper.Stream, blockOffset int64) error {
	return s.PatchByteAt(blockOffset+4, 0)
}

// WriteFooter appends the fixed-size footer at s's current position (spec
// §6 "Footer markers"): the xrefoffset marker, the absolute offset of the
// current XREF block, and the EOF marker.
func WriteFooter(s *iohelper.Stream, xrefBlockOffset int64) error {
	if _, err := s.Write(xrefOffsetMarker); err != nil {
		return fmt.Errorf("xref: write xrefoffset marker: %w", err)
	}
	if _, err := s.Write(primitives.PutInt64(xrefBlockOffset)); err != nil {
		return fmt.Errorf("xref: write xref offset: %w", err)
	}
	if _, err := s.Write(eofMarker); err != nil {
		return fmt.Errorf("xref: write EOF marker: %w", err)
	}
	return nil
}

// ReadFooter locates and validates the fixed-size footer at the end of a
// file of the given size, returning the absolute offset of the current
// XREF block (spec §4.G "On open, the Reader seeks fileSize - footerSize,
// validates the two markers").
func ReadFooter(s *iohelper.Stream, fileSize int64) (int64, error) {
	if fileSize < FooterSize {
		return 0, fmt.Errorf("%w: file too small for footer", errs.ErrInvalidFooterMarker)
	}
	if err := s.SeekTo(fileSize - FooterSize); err != nil {
		return 0, fmt.Errorf("xref: seek to footer: %w", err)
	}

	marker1 := make([]byte, xrefOffsetMarkerLen)
	if _, err := readFull(s, marker1); err != nil {
		return 0, fmt.Errorf("xref: read xrefoffset marker: %w", err)
	}
	if string(marker1) != string(xrefOffsetMarker) {
		return 0, fmt.Errorf("%w: xrefoffset marker mismatch", errs.ErrInvalidFooterMarker)
	}

	var offBuf [8]byte
	if _, err := readFull(s, offBuf[:]); err != nil {
		return 0, fmt.Errorf("xref: read xref offset: %w", err)
	}

	marker2 := make([]byte, eofMarkerLen)
	if _, err := readFull(s, marker2); err != nil {
		return 0, fmt.Errorf("xref: read EOF marker: %w", err)
	}
	if string(marker2) != string(eofMarker) {
		return 0, fmt.Errorf("%w: EOF marker mismatch", errs.ErrInvalidFooterMarker)
	}

	return int64(le64(offBuf[:])), nil
}

// Checksum computes the integrity tag stored alongside the module graph's
// offset/size in the XREF block, over the graph's exact serialized bytes.
func Checksum(moduleGraphBytes []byte) uint64 {
	return hash.IDBytes(moduleGraphBytes)
}

func readFull(s *iohelper.Stream, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := s.Read(buf[n:])
		n += m
		if err != nil {
			if n == len(buf) {
				break
			}
			return n, fmt.Errorf("%w: %v", errs.ErrShortRead, err)
		}
		if m == 0 {
			return n, fmt.Errorf("%w: zero-byte read", errs.ErrShortRead)
		}
	}
	return n, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
