package graph

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/iohelper"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// Local tags for the module graph's TLV header (spec §4.H "Serialization
// writes EncounterSize/LinkSize TLVs then the fixed-width records"). Tag 1
// (HeaderSize) is reserved globally by primitives.TagHeaderSize.
const (
	TagEncounterSize primitives.Tag = 2
	TagLinkSize      primitives.Tag = 3
)

const (
	encounterRecordSize = 16 + 16 + 16 // id + root + last
	edgeRecordSize      = 16 + 16 + 1 + 1 // source + target + kind + deleted
)

// Encode serializes g at s's current position (spec §4.H serialization):
// a TLV header carrying the byte lengths of the two fixed-width sections
// that follow, then every encounter triple, then every edge record —
// including soft-deleted edges, so a reload observes the same state a live
// Graph already converged on. Returns the block's absolute start offset and
// total byte size, the pair a Writer records in the XREF block's sibling
// ModuleGraphOffset/ModuleGraphSize fields.
func (g *Graph) Encode(s *iohelper.Stream) (offset int64, size uint64, err error) {
	start, err := s.Tell()
	if err != nil {
		return 0, 0, fmt.Errorf("graph: tell at block start: %w", err)
	}

	encounterSize := uint32(len(g.order)) * encounterRecordSize
	linkSize := uint32(len(g.edges)) * edgeRecordSize
	headerSize := uint32(9 + 9 + 9) // HeaderSize + EncounterSize + LinkSize TLVs, 9 bytes each (5-byte TLV header + 4-byte value)

	if err := primitives.WriteTLV(s, primitives.TagHeaderSize, primitives.PutUint32(headerSize)); err != nil {
		return 0, 0, fmt.Errorf("graph: write HeaderSize: %w", err)
	}
	if err := primitives.WriteTLV(s, TagEncounterSize, primitives.PutUint32(encounterSize)); err != nil {
		return 0, 0, fmt.Errorf("graph: write EncounterSize: %w", err)
	}
	if err := primitives.WriteTLV(s, TagLinkSize, primitives.PutUint32(linkSize)); err != nil {
		return 0, 0, fmt.Errorf("graph: write LinkSize: %w", err)
	}

	for _, eid := range g.order {
		enc := g.encounters[eid]
		if _, err := s.Write(eid.Bytes()); err != nil {
			return 0, 0, fmt.Errorf("graph: write encounter id: %w", err)
		}
		if _, err := s.Write(enc.Root.Bytes()); err != nil {
			return 0, 0, fmt.Errorf("graph: write encounter root: %w", err)
		}
		if _, err := s.Write(enc.Last.Bytes()); err != nil {
			return 0, 0, fmt.Errorf("graph: write encounter last: %w", err)
		}
	}

	for _, e := range g.edges {
		if _, err := s.Write(e.Source.Bytes()); err != nil {
			return 0, 0, fmt.Errorf("graph: write edge source: %w", err)
		}
		if _, err := s.Write(e.Target.Bytes()); err != nil {
			return 0, 0, fmt.Errorf("graph: write edge target: %w", err)
		}
		if _, err := s.Write([]byte{byte(e.Kind)}); err != nil {
			return 0, 0, fmt.Errorf("graph: write edge kind: %w", err)
		}
		if _, err := s.Write([]byte{boolToU8(e.Deleted)}); err != nil {
			return 0, 0, fmt.Errorf("graph: write edge deleted flag: %w", err)
		}
	}

	end, err := s.Tell()
	if err != nil {
		return 0, 0, fmt.Errorf("graph: tell at block end: %w", err)
	}

	return start, uint64(end - start), nil
}

// Decode parses a module graph block at offset (spec §4.H "On read,
// deleted edges are ignored on traversal... cycle detection runs again on
// load"). The returned Graph re-validates acyclicity before it is handed
// back, catching corruption or manual edits a live session would never
// have produced.
func Decode(s *iohelper.Stream, offset int64, size uint64) (*Graph, error) {
	if err := s.SeekTo(offset); err != nil {
		return nil, fmt.Errorf("graph: seek to block %d: %w", offset, err)
	}

	tag, value, err := primitives.ReadTLV(s)
	if err != nil {
		return nil, fmt.Errorf("graph: read HeaderSize record: %w", err)
	}
	if tag != primitives.TagHeaderSize || len(value) != 4 {
		return nil, fmt.Errorf("%w: module graph must begin with HeaderSize", errs.ErrInvalidHeaderSize)
	}
	headerSize := le32(value)

	var consumed uint32 = 9
	var encounterSize, linkSize uint32
	for consumed < headerSize {
		tag, value, err := primitives.ReadTLV(s)
		if err != nil {
			return nil, fmt.Errorf("graph: read header TLV: %w", err)
		}
		consumed += 5 + uint32(len(value))

		switch tag {
		case TagEncounterSize:
			encounterSize = le32(value)
		case TagLinkSize:
			linkSize = le32(value)
		default:
			return nil, fmt.Errorf("%w: tag %d", errs.ErrUnknownTag, tag)
		}
	}
	if consumed != headerSize {
		return nil, fmt.Errorf("%w: declared %d, walked %d", errs.ErrHeaderSizeMismatch, headerSize, consumed)
	}

	g := New()

	encounterCount := encounterSize / encounterRecordSize
	for i := uint32(0); i < encounterCount; i++ {
		var id, root, last [16]byte
		if err := readFull(s, id[:]); err != nil {
			return nil, fmt.Errorf("graph: read encounter %d id: %w", i, err)
		}
		if err := readFull(s, root[:]); err != nil {
			return nil, fmt.Errorf("graph: read encounter %d root: %w", i, err)
		}
		if err := readFull(s, last[:]); err != nil {
			return nil, fmt.Errorf("graph: read encounter %d last: %w", i, err)
		}

		eid := primitives.FromBytes(id[:])
		g.encounters[eid] = &Encounter{
			ID:   eid,
			Root: primitives.FromBytes(root[:]),
			Last: primitives.FromBytes(last[:]),
		}
		g.order = append(g.order, eid)
	}

	edgeCount := linkSize / edgeRecordSize
	for i := uint32(0); i < edgeCount; i++ {
		var source, target [16]byte
		var kind, deleted [1]byte
		if err := readFull(s, source[:]); err != nil {
			return nil, fmt.Errorf("graph: read edge %d source: %w", i, err)
		}
		if err := readFull(s, target[:]); err != nil {
			return nil, fmt.Errorf("graph: read edge %d target: %w", i, err)
		}
		if err := readFull(s, kind[:]); err != nil {
			return nil, fmt.Errorf("graph: read edge %d kind: %w", i, err)
		}
		if err := readFull(s, deleted[:]); err != nil {
			return nil, fmt.Errorf("graph: read edge %d deleted flag: %w", i, err)
		}

		idx := len(g.edges)
		e := Edge{
			Source:  primitives.FromBytes(source[:]),
			Target:  primitives.FromBytes(target[:]),
			Kind:    EdgeKind(kind[0]),
			Deleted: deleted[0] != 0,
		}
		g.edges = append(g.edges, e)
		g.forward[e.Source] = append(g.forward[e.Source], idx)
		g.reverse[e.Target] = append(g.reverse[e.Target], idx)
	}

	actualSize := uint64(headerSize) + uint64(encounterSize) + uint64(linkSize)
	if actualSize != size {
		return nil, fmt.Errorf("%w: declared %d, computed %d", errs.ErrHeaderSizeMismatch, size, actualSize)
	}

	if err := g.CheckAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

func boolToU8(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func readFull(s *iohelper.Stream, buf []byte) error {
	n := 0
	for n < len(buf) {
		m, err := s.Read(buf[n:])
		n += m
		if err != nil {
			if n == len(buf) {
				break
			}
			return fmt.Errorf("%w: %v", errs.ErrShortRead, err)
		}
		if m == 0 {
			return fmt.Errorf("%w: zero-byte read", errs.ErrShortRead)
		}
	}
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
