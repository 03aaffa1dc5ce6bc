package reader

import (
	"fmt"

	"github.com/RobLovegrove/umdf-go/errs"
	"github.com/RobLovegrove/umdf-go/format"
	"github.com/RobLovegrove/umdf-go/modheader"
	"github.com/RobLovegrove/umdf-go/primitives"
)

// AuditEntry is one stop along a module's PreviousVersion chain (spec
// §4.I "Audit trail for a module"): "(offset, isCurrent, createdAt,
// modifiedAt, createdBy, modifiedBy, type, moduleSize)".
type AuditEntry struct {
	Offset     int64
	IsCurrent  bool
	CreatedAt  primitives.DateTime
	ModifiedAt primitives.DateTime
	CreatedBy  string
	ModifiedBy string
	Type       format.ModuleType
	ModuleSize uint64
}

// AuditTrail is every version of one module, newest (current) first.
type AuditTrail struct {
	ModuleID primitives.UUID
	Entries  []AuditEntry
}

// GetAuditTrail reads the module at its current XREF offset and follows
// its PreviousVersion chain, recording one AuditEntry per stop and
// stopping once a pointer of 0 is reached (spec §4.I). Every header walked
// must declare the same ModuleID as id; a mismatch is fatal, matching the
// 5th acceptance scenario ("audit trail... isCurrent=[true,false]").
func (r *Reader) GetAuditTrail(id primitives.UUID) (AuditTrail, error) {
	if r.closed {
		return AuditTrail{}, errs.ErrAlreadyClosed
	}

	entry, ok := r.xref.Find(id)
	if !ok {
		return AuditTrail{}, fmt.Errorf("%w: %s", errs.ErrModuleNotFound, id)
	}

	trail := AuditTrail{ModuleID: id}
	offset := entry.Offset
	for offset != 0 {
		readRes, err := modheader.ReadAt(r.stream, offset, nil)
		if err != nil {
			return AuditTrail{}, err
		}
		h := readRes.Header
		if h.ModuleID != id {
			return AuditTrail{}, fmt.Errorf("%w: at offset %d, got %s, want %s", errs.ErrAuditChainBroken, offset, h.ModuleID, id)
		}

		moduleSize, err := h.EncodedSize()
		if err != nil {
			return AuditTrail{}, err
		}

		trail.Entries = append(trail.Entries, AuditEntry{
			Offset:     offset,
			IsCurrent:  h.IsCurrent,
			CreatedAt:  h.CreatedAt,
			ModifiedAt: h.ModifiedAt,
			CreatedBy:  h.CreatedBy,
			ModifiedBy: h.ModifiedBy,
			Type:       h.ModuleType,
			ModuleSize: uint64(moduleSize) + h.StringBufferSize + h.MetadataSize + h.DataSize,
		})

		offset = int64(h.PreviousVersion)
	}

	return trail, nil
}

// GetAuditData decodes the full module content at a specific historical
// offset taken from an AuditTrail entry (spec §6 external interface
// getAuditData), rather than only the current version GetModuleData
// returns. The decoded module is not added to the id cache, since its
// ModuleID may collide with a different (current) cached instance.
func (r *Reader) GetAuditData(entry AuditEntry) (ModuleData, error) {
	if r.closed {
		return ModuleData{}, errs.ErrAlreadyClosed
	}

	switch entry.Type {
	case format.ModuleTypeTabular:
		m, err := moduleFromStream(r, entry.Offset)
		if err != nil {
			return ModuleData{}, err
		}
		data, err := m.GetModuleData()
		if err != nil {
			return ModuleData{}, err
		}
		return ModuleData{Type: format.ModuleTypeTabular, Tabular: &data}, nil
	case format.ModuleTypeImage:
		m, err := imageFromStream(r, entry.Offset)
		if err != nil {
			return ModuleData{}, err
		}
		data, err := m.GetModuleData()
		if err != nil {
			return ModuleData{}, err
		}
		return ModuleData{Type: format.ModuleTypeImage, Image: &data}, nil
	default:
		return ModuleData{}, fmt.Errorf("%w: %s", errs.ErrUnsupportedType, entry.Type)
	}
}
