package elfobj

import "encoding/binary"

// Relocation is one REL or RELA entry. Addend is nil for SHT_REL tables
// and non-nil for SHT_RELA tables, the Go rendition of Design Note
// "Polymorphism of REL vs RELA" (an explicit optional field rather than
// a variant tag, since the two entry kinds differ only by the addend).
type Relocation struct {
	Offset   uint32
	SymIndex uint32
	Type     uint8
	Addend   *uint32
}

const (
	relSize  = 8
	relaSize = 12
)

func packInfo(symIndex uint32, typ uint8) uint32 { return symIndex<<8 | uint32(typ) }

func parseRelocation(data []byte, isRela bool) (Relocation, error) {
	need := relSize
	if isRela {
		need = relaSize
	}
	if len(data) < need {
		return Relocation{}, ErrBadMagic
	}
	be := binary.BigEndian
	offset := be.Uint32(data[0:4])
	info := be.Uint32(data[4:8])
	r := Relocation{
		Offset:   offset,
		SymIndex: info >> 8,
		Type:     uint8(info & 0xFF),
	}
	if isRela {
		a := be.Uint32(data[8:12])
		r.Addend = &a
	}
	return r, nil
}

// Marshal serializes the relocation to its REL/RELA wire form (8 or 12
// bytes depending on whether Addend is set), exported for
// internal/fixup's relocation-table rewriting pass.
func (r Relocation) Marshal() []byte { return r.marshal() }

func (r Relocation) marshal() []byte {
	isRela := r.Addend != nil
	size := relSize
	if isRela {
		size = relaSize
	}
	out := make([]byte, size)
	be := binary.BigEndian
	be.PutUint32(out[0:4], r.Offset)
	be.PutUint32(out[4:8], packInfo(r.SymIndex, r.Type))
	if isRela {
		be.PutUint32(out[8:12], *r.Addend)
	}
	return out
}

// EntrySize returns the byte size of a single relocation of this table
// kind (8 for REL, 12 for RELA).
func EntrySize(shType uint32) int {
	if shType == SHT_RELA {
		return relaSize
	}
	return relSize
}
