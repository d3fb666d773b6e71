package fixup

import (
	"bytes"
	"fmt"

	"github.com/xyproto/asmproc/internal/asmblock"
	"github.com/xyproto/asmproc/internal/elfobj"
)

// relocateLateRodata locates every function's late-rodata sentinel words
// inside the compiler-produced placeholder object's .rodata
// (spec.md §4.E Step 4). Each 4-byte dummy pattern the stub wrote via a
// volatile float/double assignment round-trips through the compiler
// unchanged, so searching for the exact bytes recovers where the
// compiler chose to place that constant; a jtbl-reserved tail instead
// just claims the next JtblRodataSize bytes sequentially, since a jump
// table switch body doesn't synthesize any literal constant to search
// for.
//
// The search cursor only ever advances, mirroring the non-decreasing
// per-section placement invariant enforced in locate.go; IDO lays out
// static data for a translation unit in source order, so later
// functions' sentinels never precede earlier ones. One case handled by
// the original implementation is not handled here: the case where an
// 8-byte double sentinel's low word is demoted onto a 4-byte boundary by
// an all-zero alignment shim is not detected, since it depends on
// probing one extra word past a failed match.
func (st *state) relocateLateRodata() error {
	if !anyLateRodata(st.funcs) {
		return nil
	}
	rodata := st.o.FindSection(asmblock.SecRodata)
	if rodata == nil {
		return fmt.Errorf("fixup: late rodata present but output object has no .rodata section")
	}

	searchFrom := st.prevLoc[asmblock.SecRodata]
	posInA := uint32(8) // past the leading ".word 0, 0" alignment guard

	for i := range st.funcs {
		fn := &st.funcs[i]
		for _, dummy := range fn.LateRodataDummyBytes {
			p, ok := findPattern(rodata.Data, dummy[:], searchFrom)
			if !ok {
				return fmt.Errorf("fixup: %s: could not locate late-rodata sentinel in .rodata", fn.FnDesc)
			}
			st.lateRodataPosMap[posInA] = p
			searchFrom = p + 4
			posInA += 4
		}
		if fn.JtblRodataSize > 0 {
			base := searchFrom
			for off := uint32(0); off < fn.JtblRodataSize; off += 4 {
				st.jtblReservedPositions[base+off] = true
			}
			searchFrom = base + fn.JtblRodataSize
			posInA += fn.JtblRodataSize
		}
	}
	return nil
}

func anyLateRodata(funcs []asmblock.Function) bool {
	for _, fn := range funcs {
		if len(fn.LateRodataDummyBytes) > 0 || fn.JtblRodataSize > 0 {
			return true
		}
	}
	return false
}

func findPattern(data, pattern []byte, from uint32) (uint32, bool) {
	if len(pattern) == 0 {
		return 0, false
	}
	for i := int(from); i+len(pattern) <= len(data); i++ {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			return uint32(i), true
		}
	}
	return 0, false
}

// computeRelocatedSymbols records which of the assembled object's symbol
// table entries are the target of at least one relocation against its
// core sections (spec.md §4.E Step 5): global symbols are kept
// regardless, but a local symbol only survives the merge if something
// still points at it.
func (st *state) computeRelocatedSymbols() {
	core := map[string]bool{
		asmblock.SecText: true, asmblock.SecData: true,
		asmblock.SecRodata: true, asmblock.SecLateRodata: true,
	}
	for _, s := range st.a.Sections {
		if s.Type != elfobj.SHT_REL && s.Type != elfobj.SHT_RELA {
			continue
		}
		if int(s.Info) >= len(st.a.Sections) {
			continue
		}
		target := st.a.Sections[s.Info]
		if !core[target.Name] {
			continue
		}
		for _, r := range s.Relocations {
			st.relocatedInA[int(r.SymIndex)] = true
		}
	}
}
