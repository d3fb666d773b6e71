package fixup

import (
	"github.com/xyproto/asmproc/internal/asmblock"
	"github.com/xyproto/asmproc/internal/elfobj"
)

// rewriteRelocations is the last structural step before the object is
// serialized (spec.md §4.E Step 13). O's existing relocations against
// .text/.rodata are dropped wherever Steps 4/6 overwrote the bytes they
// pointed at (the compiler's own view of that content no longer applies)
// and otherwise remapped onto the merged symbol table's final indices.
// A's relocations are carried across the same way, additionally mapping
// a .late_rodata-targeting entry's offset through lateRodataPosMap so it
// lands on the spliced .rodata position instead of A's private layout.
func (st *state) rewriteRelocations() error {
	for _, s := range st.o.Sections {
		if s.Type != elfobj.SHT_REL && s.Type != elfobj.SHT_RELA {
			continue
		}
		if int(s.Info) >= len(st.o.Sections) {
			continue
		}
		target := st.o.Sections[s.Info]
		drop := func(elfobj.Relocation) bool { return false }
		switch target.Name {
		case asmblock.SecText:
			drop = func(r elfobj.Relocation) bool { return st.modifiedTextPositions[r.Offset] }
		case asmblock.SecRodata:
			drop = func(r elfobj.Relocation) bool { return st.jtblReservedPositions[r.Offset] }
		}

		kept := s.Relocations[:0]
		for _, r := range s.Relocations {
			if drop(r) {
				continue
			}
			if newIdx, ok := st.oIndexToNew[int(r.SymIndex)]; ok {
				r.SymIndex = uint32(newIdx)
			}
			kept = append(kept, r)
		}
		s.Relocations = kept
		s.Data = marshalRelocations(kept)
	}

	if st.a.Symtab() == nil {
		return nil
	}
	for _, s := range st.a.Sections {
		if s.Type != elfobj.SHT_REL && s.Type != elfobj.SHT_RELA {
			continue
		}
		if int(s.Info) >= len(st.a.Sections) {
			continue
		}
		target := st.a.Sections[s.Info]
		destName := target.Name
		if destName == asmblock.SecLateRodata {
			destName = asmblock.SecRodata
		}
		destSec := st.o.FindSection(destName)
		if destSec == nil {
			continue
		}

		var appended []elfobj.Relocation
		for _, r := range s.Relocations {
			newIdx, ok := st.aIndexToNew[int(r.SymIndex)]
			if !ok {
				continue
			}
			r.SymIndex = uint32(newIdx)
			if target.Name == asmblock.SecLateRodata {
				mapped, ok := st.lateRodataPosMap[r.Offset]
				if !ok {
					continue
				}
				r.Offset = mapped
			}
			appended = append(appended, r)
		}
		if len(appended) == 0 {
			continue
		}

		relSec := st.findOrAddRelSection(destSec, s.Type == elfobj.SHT_RELA)
		relSec.Relocations = append(relSec.Relocations, appended...)
		relSec.Data = marshalRelocations(relSec.Relocations)
	}
	return nil
}

func (st *state) findOrAddRelSection(target *elfobj.Section, rela bool) *elfobj.Section {
	prefix := ".rel"
	typ := elfobj.SHT_REL
	entsize := uint32(8)
	if rela {
		prefix, typ, entsize = ".rela", elfobj.SHT_RELA, 12
	}
	name := prefix + target.Name
	if sec := st.o.FindSection(name); sec != nil {
		return sec
	}
	idx := st.o.AddSection(name, typ)
	sec := st.o.Sections[idx]
	if symtab := st.o.Symtab(); symtab != nil {
		sec.Link = uint32(symtab.Index)
	}
	sec.Info = uint32(target.Index)
	sec.Entsize = entsize
	return sec
}

func marshalRelocations(rs []elfobj.Relocation) []byte {
	out := make([]byte, 0, len(rs)*12)
	for _, r := range rs {
		out = append(out, r.Marshal()...)
	}
	return out
}
