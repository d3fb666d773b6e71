package elfobj

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// File is a fully parsed ELF32 MIPS relocatable object: a header plus an
// arena of sections addressed by index (Design Note "ELF graph cycles").
type File struct {
	Header   Header
	Sections []*Section

	symtabIndex  int // -1 if absent
	shstrtabData *StrTab
}

// Parse reads a 32-bit big-endian ET_REL MIPS object from data.
func Parse(data []byte) (*File, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	shnum := int(hdr.Shnum)
	shoff := int(hdr.Shoff)
	const shentsize = 40

	// Peek the first section header to resolve extended numbering
	// (spec.md §4.A "If header e_shnum is zero...").
	if shnum == 0 {
		if shoff+shentsize > len(data) {
			return nil, fmt.Errorf("%w: truncated section header table", ErrBadMagic)
		}
		sh0Size := binary.BigEndian.Uint32(data[shoff+20 : shoff+24])
		shnum = int(sh0Size)
	}

	type rawSH struct {
		name, typ, flags, addr, offset, size, link, info, addralign, entsize uint32
	}
	raws := make([]rawSH, shnum)
	be := binary.BigEndian
	for i := 0; i < shnum; i++ {
		off := shoff + i*shentsize
		if off+shentsize > len(data) {
			return nil, fmt.Errorf("%w: truncated section header %d", ErrBadMagic, i)
		}
		b := data[off : off+shentsize]
		raws[i] = rawSH{
			name:      be.Uint32(b[0:4]),
			typ:       be.Uint32(b[4:8]),
			flags:     be.Uint32(b[8:12]),
			addr:      be.Uint32(b[12:16]),
			offset:    be.Uint32(b[16:20]),
			size:      be.Uint32(b[20:24]),
			link:      be.Uint32(b[24:28]),
			info:      be.Uint32(b[28:32]),
			addralign: be.Uint32(b[32:36]),
			entsize:   be.Uint32(b[36:40]),
		}
	}

	if int(hdr.Shstrndx) >= len(raws) {
		return nil, ErrNoShstrtab
	}
	if raws[hdr.Shstrndx].typ != SHT_STRTAB {
		return nil, ErrShstrndxNotStrtab
	}
	shstrtabRaw := raws[hdr.Shstrndx]
	shstrtab := &StrTab{Data: sliceSection(data, shstrtabRaw.typ, shstrtabRaw.offset, shstrtabRaw.size)}

	f := &File{Header: hdr, symtabIndex: -1, shstrtabData: shstrtab}
	for i, r := range raws {
		sec := &Section{
			Index:     i,
			Name:      string(shstrtab.Lookup(r.name)),
			NameOff:   r.name,
			Type:      r.typ,
			Flags:     r.flags,
			Addr:      r.addr,
			Offset:    r.offset,
			Size:      r.size,
			Link:      r.link,
			Info:      r.info,
			Addralign: r.addralign,
			Entsize:   r.entsize,
		}
		if sec.Type != SHT_NOBITS {
			sec.Data = sliceSection(data, r.typ, r.offset, r.size)
		}
		f.Sections = append(f.Sections, sec)
	}

	if err := f.lateInit(); err != nil {
		return nil, err
	}
	return f, nil
}

func sliceSection(data []byte, typ, offset, size uint32) []byte {
	if typ == SHT_NOBITS {
		return nil
	}
	end := offset + size
	if int(end) > len(data) || end < offset {
		end = uint32(len(data))
	}
	out := make([]byte, size)
	if int(offset) < len(data) {
		copy(out, data[offset:end])
	}
	return out
}

// lateInit constructs typed children (symbols, relocations) and wires up
// each target section's RelocatedBy back-reference list. Run after any
// structural change (AddSection, DropMdebugGptab) as well as parsing.
func (f *File) lateInit() error {
	f.symtabIndex = -1
	symtabCount := 0
	for _, s := range f.Sections {
		s.Symbols = nil
		s.Relocations = nil
		s.RelocatedBy = nil
	}

	var symtab *StrTab
	for i, s := range f.Sections {
		if s.Type == SHT_SYMTAB {
			symtabCount++
			f.symtabIndex = i
		}
	}
	if symtabCount > 1 {
		return ErrMultipleSymtab
	}

	if f.symtabIndex >= 0 {
		symSec := f.Sections[f.symtabIndex]
		if int(symSec.Link) >= len(f.Sections) {
			return fmt.Errorf("%w: symtab sh_link out of range", ErrBadMagic)
		}
		symtab = &StrTab{Data: f.Sections[symSec.Link].Data}
		n := len(symSec.Data) / symbolSize
		symSec.Symbols = make([]Symbol, n)
		for i := 0; i < n; i++ {
			sym, err := parseSymbol(symSec.Data[i*symbolSize:(i+1)*symbolSize], symtab)
			if err != nil {
				return err
			}
			sym.NewIndex = i
			symSec.Symbols[i] = sym
		}
	}

	for i, s := range f.Sections {
		if s.Type != SHT_REL && s.Type != SHT_RELA {
			continue
		}
		isRela := s.Type == SHT_RELA
		entSize := EntrySize(s.Type)
		n := len(s.Data) / entSize
		s.Relocations = make([]Relocation, n)
		for j := 0; j < n; j++ {
			rel, err := parseRelocation(s.Data[j*entSize:(j+1)*entSize], isRela)
			if err != nil {
				return err
			}
			s.Relocations[j] = rel
		}
		if int(s.Info) < len(f.Sections) {
			target := f.Sections[s.Info]
			target.RelocatedBy = append(target.RelocatedBy, i)
		}
	}
	return nil
}

// Symtab returns the sole SHT_SYMTAB section, or nil if absent.
func (f *File) Symtab() *Section {
	if f.symtabIndex < 0 {
		return nil
	}
	return f.Sections[f.symtabIndex]
}

// Strtab returns the string table backing the symbol table.
func (f *File) Strtab() *StrTab {
	st := f.Symtab()
	if st == nil {
		return nil
	}
	return &StrTab{Data: f.Sections[st.Link].Data}
}

// Shstrtab returns the section-header string table.
func (f *File) Shstrtab() *StrTab { return f.shstrtabData }

// FindSection returns the first section with the given name, or nil.
func (f *File) FindSection(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// FindSymbol returns the first defined symbol table entry with the given
// name, plus its section index and value, or ok=false if absent.
func (f *File) FindSymbol(name string) (sym Symbol, ok bool) {
	st := f.Symtab()
	if st == nil {
		return Symbol{}, false
	}
	for _, s := range st.Symbols {
		if string(s.Name) == name && s.Shndx != SHN_UNDEF {
			return s, true
		}
	}
	return Symbol{}, false
}

// FindSymbolInSection returns the value of a symbol with the given name
// whose Shndx matches section.Index.
func (f *File) FindSymbolInSection(name string, section *Section) (uint32, bool) {
	st := f.Symtab()
	if st == nil {
		return 0, false
	}
	for _, s := range st.Symbols {
		if string(s.Name) == name && int(s.Shndx) == section.Index {
			return s.Value, true
		}
	}
	return 0, false
}

// AddSection appends a new, empty section named name of the given type,
// running lateInit afterward, and returns its index.
func (f *File) AddSection(name string, typ uint32) int {
	nameOff := f.shstrtabData.AddString(name)
	idx := len(f.Sections)
	f.Sections = append(f.Sections, &Section{
		Index:   idx,
		Name:    name,
		NameOff: nameOff,
		Type:    typ,
	})
	_ = f.lateInit()
	return idx
}

// DropMdebugGptab removes every section whose name starts with
// ".mdebug" or ".gptab", renumbering the remainder.
func (f *File) DropMdebugGptab() {
	kept := f.Sections[:0]
	for _, s := range f.Sections {
		if strings.HasPrefix(s.Name, ".mdebug") || strings.HasPrefix(s.Name, ".gptab") {
			continue
		}
		kept = append(kept, s)
	}
	f.Sections = kept
	for i, s := range f.Sections {
		s.Index = i
	}
	_ = f.lateInit()
}

// Write serializes the file back to bytes, recomputing every section's
// sh_offset from scratch (the fixup pass never tries to preserve the
// compiler's original layout, per spec.md §4.A "Write"). Section data is
// laid out in Sections order, each aligned to its sh_addralign; the
// section header table follows, 4-byte aligned; the file header is
// written last since it needs the final e_shoff.
func (f *File) Write() ([]byte, error) {
	type laidOut struct {
		offset uint32
		delta  int32
		moved  bool
	}
	layout := make([]laidOut, len(f.Sections))

	cursor := uint32(headerSize)
	for i, s := range f.Sections {
		if s.Type == SHT_NULL {
			layout[i] = laidOut{offset: 0}
			continue
		}
		if s.Addralign > 1 {
			if rem := cursor % s.Addralign; rem != 0 {
				cursor += s.Addralign - rem
			}
		}
		newOffset := cursor
		layout[i] = laidOut{
			offset: newOffset,
			delta:  int32(newOffset) - int32(s.Offset),
			moved:  newOffset != s.Offset,
		}
		if !s.IsNobits() {
			cursor += uint32(len(s.Data))
		}
	}

	for i, s := range f.Sections {
		if s.Type != SHT_MIPS_DEBUG {
			continue
		}
		if layout[i].moved && layout[i].delta != 0 {
			adjustHDRROffsets(s.Data, layout[i].delta)
		}
	}

	if rem := cursor % 4; rem != 0 {
		cursor += 4 - rem
	}
	shoff := cursor

	out := make([]byte, shoff+uint32(len(f.Sections))*40)

	for i, s := range f.Sections {
		if s.IsNobits() || s.Type == SHT_NULL {
			continue
		}
		copy(out[layout[i].offset:], s.Data)
	}

	be := binary.BigEndian
	for i, s := range f.Sections {
		base := int(shoff) + i*40
		size := s.Size
		if !s.IsNobits() {
			size = uint32(len(s.Data))
		}
		be.PutUint32(out[base+0:base+4], s.NameOff)
		be.PutUint32(out[base+4:base+8], s.Type)
		be.PutUint32(out[base+8:base+12], s.Flags)
		be.PutUint32(out[base+12:base+16], s.Addr)
		be.PutUint32(out[base+16:base+20], layout[i].offset)
		be.PutUint32(out[base+20:base+24], size)
		be.PutUint32(out[base+24:base+28], s.Link)
		be.PutUint32(out[base+28:base+32], s.Info)
		be.PutUint32(out[base+32:base+36], s.Addralign)
		be.PutUint32(out[base+36:base+40], s.Entsize)
	}

	hdr := f.Header
	hdr.Ehsize = headerSize
	hdr.Shentsize = 40
	hdr.Shoff = shoff
	hdr.Shnum = uint16(len(f.Sections))
	copy(out[0:headerSize], hdr.marshal())

	return out, nil
}

// GetNullTerminatedString reads a NUL-terminated Latin-1 string out of
// raw at a byte offset; used by .mdebug parsing (internal/fixup) on the
// .mdebug section's data, whose string space is located through an HDRR
// file offset rather than a section-relative string table.
func (f *File) GetNullTerminatedString(raw []byte, offset uint32) (string, error) {
	if int(offset) >= len(raw) {
		return "", fmt.Errorf("string offset %d out of range", offset)
	}
	end := offset
	for int(end) < len(raw) && raw[end] != 0 {
		end++
	}
	return string(raw[offset:end]), nil
}
