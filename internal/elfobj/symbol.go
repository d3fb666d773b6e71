package elfobj

import "encoding/binary"

const symbolSize = 16

// Symbol is one ELF32 symbol table entry, with bind/type/visibility
// split out as derived fields (spec.md §4.A "Symbol. Derived fields").
// NewIndex is the entry's own position after parsing; the fixup pass
// (internal/fixup) sets it to the entry's position in the merged symbol
// table when it writes that table back.
type Symbol struct {
	Name     []byte // raw Latin-1 bytes, resolved from the owning strtab
	NameOff  uint32
	Value    uint32
	Size     uint32
	Info     uint8
	Other    uint8
	Shndx    uint16

	NewIndex int
}

func (s Symbol) Bind() uint8       { return s.Info >> 4 }
func (s Symbol) Type() uint8       { return s.Info & 0xF }
func (s Symbol) Visibility() uint8 { return s.Other & 0x3 }

func setInfo(bind, typ uint8) uint8 { return bind<<4 | (typ & 0xF) }

// SetBind rewrites the binding half of Info, preserving the type half.
func (s *Symbol) SetBind(bind uint8) { s.Info = setInfo(bind, s.Type()) }

// SetType rewrites the type half of Info, preserving the binding half.
func (s *Symbol) SetType(typ uint8) { s.Info = setInfo(s.Bind(), typ) }

func parseSymbol(data []byte, strtab *StrTab) (Symbol, error) {
	if len(data) < symbolSize {
		return Symbol{}, ErrBadMagic
	}
	be := binary.BigEndian
	nameOff := be.Uint32(data[0:4])
	value := be.Uint32(data[4:8])
	size := be.Uint32(data[8:12])
	info := data[12]
	other := data[13]
	shndx := be.Uint16(data[14:16])
	if shndx == SHN_XINDEX {
		return Symbol{}, ErrShnXindexUnsupported
	}
	var name []byte
	if strtab != nil {
		name = strtab.Lookup(nameOff)
	}
	return Symbol{
		Name: name, NameOff: nameOff, Value: value, Size: size,
		Info: info, Other: other, Shndx: shndx,
	}, nil
}

// Marshal serializes the symbol to its 16-byte ELF32 wire form, exported
// for internal/fixup's symbol-table rewriting pass.
func (s Symbol) Marshal() []byte { return s.marshal() }

func (s Symbol) marshal() []byte {
	out := make([]byte, symbolSize)
	be := binary.BigEndian
	be.PutUint32(out[0:4], s.NameOff)
	be.PutUint32(out[4:8], s.Value)
	be.PutUint32(out[8:12], s.Size)
	out[12] = s.Info
	out[13] = s.Other
	be.PutUint16(out[14:16], s.Shndx)
	return out
}

// IsTempName reports whether name looks like one of this tool's own
// placeholder symbols (spec.md §3 "Placeholder name" invariant).
func IsTempName(name string) bool {
	return len(name) >= 7 && name[:7] == "_asmpp_"
}
