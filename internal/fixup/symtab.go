package fixup

import (
	"fmt"

	"github.com/xyproto/asmproc/internal/elfobj"
)

// mergedSymbol is one entry on its way into O's final symbol table: O's
// and A's original symbols normalized to the same shape, carrying enough
// provenance (origOIdx/origAIdx) that relocation rewriting can later
// follow a reference through dedup and reordering to its final index.
type mergedSymbol struct {
	name  []byte
	value uint32
	size  uint32
	info  uint8
	other uint8
	shndx uint16

	origOIdx int // index into O's pre-merge symbol table, -1 if not from O
	origAIdx int // index into A's pre-merge symbol table, -1 if not from A
}

func (m mergedSymbol) bind() uint8 { return m.info >> 4 }

// mergeSymbolTables unions O's kept symbols with the subset of A's that
// matter (spec.md §4.E Step 10): every global, plus any local A actually
// relocates against (computeRelocatedSymbols, Step 5). A symbol that
// resolves into a section A and O both define gets remapped onto O's
// section index of the same name, with ".late_rodata" folding onto
// ".rodata" since the combined region was spliced there in Step 6.
// Placeholder symbols synthesized by this tool (IsTempName) are dropped
// from both sides; they've done their job locating splice points and
// have no business surviving into the final object.
func (st *state) mergeSymbolTables() ([]mergedSymbol, error) {
	var merged []mergedSymbol
	merged = append(merged, mergedSymbol{origOIdx: -1, origAIdx: -1})

	oSyms := st.o.Symtab().Symbols
	for i := 1; i < len(oSyms); i++ {
		s := oSyms[i]
		if elfobj.IsTempName(string(s.Name)) {
			continue
		}
		merged = append(merged, mergedSymbol{
			name: s.Name, value: s.Value, size: s.Size, info: s.Info, other: s.Other, shndx: s.Shndx,
			origOIdx: i, origAIdx: -1,
		})
	}

	glabels := map[string]bool{}
	for _, fn := range st.funcs {
		for _, g := range fn.TextGlabels {
			glabels[g] = true
		}
	}

	if st.a.Symtab() == nil {
		return merged, nil
	}
	aSyms := st.a.Symtab().Symbols
	for i := 1; i < len(aSyms); i++ {
		s := aSyms[i]
		name := string(s.Name)
		if elfobj.IsTempName(name) {
			continue
		}
		if s.Bind() != elfobj.STB_GLOBAL && !st.relocatedInA[i] {
			continue
		}

		newShndx := s.Shndx
		if s.Shndx != elfobj.SHN_UNDEF && s.Shndx != elfobj.SHN_ABS {
			aSec := st.a.Sections[s.Shndx]
			targetName := aSec.Name
			if targetName == ".late_rodata" {
				targetName = ".rodata"
			}
			oSec := st.o.FindSection(targetName)
			if oSec == nil {
				return nil, fmt.Errorf("fixup: symbol %q references section %q absent from output object", name, targetName)
			}
			newShndx = uint16(oSec.Index)
		}

		info := s.Info
		if glabels[name] {
			info = s.Bind()<<4 | elfobj.STT_FUNC
		}

		merged = append(merged, mergedSymbol{
			name: s.Name, value: s.Value, size: s.Size, info: info, other: s.Other, shndx: newShndx,
			origOIdx: -1, origAIdx: i,
		})
	}
	return merged, nil
}

// deduplicateSymbols collapses entries sharing a name (spec.md §4.E Step
// 11): an undefined reference yields to a real definition of the same
// name, two compatible definitions collapse into one, and two
// conflicting definitions are a hard error. Unnamed entries (the null
// entry, STT_SECTION symbols) are never collapsed against each other.
func (st *state) deduplicateSymbols(in []mergedSymbol) ([]mergedSymbol, error) {
	if len(in) == 0 {
		return in, nil
	}
	var undefined, defined []mergedSymbol
	for _, s := range in[1:] {
		if s.shndx == elfobj.SHN_UNDEF {
			undefined = append(undefined, s)
		} else {
			defined = append(defined, s)
		}
	}
	ordered := append([]mergedSymbol{in[0]}, undefined...)
	ordered = append(ordered, defined...)

	st.oAlias = map[int]int{}
	st.aAlias = map[int]int{}
	recordAlias := func(s mergedSymbol, idx int) {
		if s.origOIdx >= 0 {
			st.oAlias[s.origOIdx] = idx
		}
		if s.origAIdx >= 0 {
			st.aAlias[s.origAIdx] = idx
		}
	}

	byName := map[string]int{}
	var result []mergedSymbol
	result = append(result, ordered[0])
	recordAlias(ordered[0], 0)

	for _, s := range ordered[1:] {
		name := string(s.name)
		if name == "" {
			idx := len(result)
			result = append(result, s)
			recordAlias(s, idx)
			continue
		}
		if idx, ok := byName[name]; ok {
			existing := result[idx]
			switch {
			case existing.shndx != elfobj.SHN_UNDEF && s.shndx != elfobj.SHN_UNDEF:
				if existing.shndx != s.shndx || existing.value != s.value {
					return nil, fmt.Errorf("fixup: symbol %q defined twice", name)
				}
			case existing.shndx == elfobj.SHN_UNDEF && s.shndx != elfobj.SHN_UNDEF:
				result[idx] = s
			}
			recordAlias(s, idx)
			continue
		}
		idx := len(result)
		result = append(result, s)
		byName[name] = idx
		recordAlias(s, idx)
	}
	return result, nil
}

// reorderSymbols partitions the deduplicated table into locals followed
// by globals/weaks, as ELF's sh_info convention requires, with
// "_gp_disp" (if present) sorted last among the locals to match the
// original tool's ordering (spec.md §4.E Step 12). It returns the number
// of local entries including the mandatory null entry at index 0, for
// the symbol table's sh_info, and records the old-index -> new-index
// maps rewriteRelocations needs.
func (st *state) reorderSymbols(in []mergedSymbol) int {
	if len(in) == 0 {
		return 0
	}
	type placed struct {
		dedupIdx int
		sym      mergedSymbol
	}
	var locals, globals []placed
	var gpDisp *placed
	for i, s := range in[1:] {
		item := placed{dedupIdx: i + 1, sym: s}
		if string(s.name) == "_gp_disp" {
			gp := item
			gpDisp = &gp
			continue
		}
		if s.bind() == elfobj.STB_LOCAL {
			locals = append(locals, item)
		} else {
			globals = append(globals, item)
		}
	}
	if gpDisp != nil {
		locals = append(locals, *gpDisp)
	}

	final := make([]mergedSymbol, 0, len(in))
	final = append(final, in[0])
	newIndexOf := map[int]int{0: 0}
	for _, it := range locals {
		newIndexOf[it.dedupIdx] = len(final)
		final = append(final, it.sym)
	}
	localCount := len(final)
	for _, it := range globals {
		newIndexOf[it.dedupIdx] = len(final)
		final = append(final, it.sym)
	}

	st.oIndexToNew = make(map[int]int, len(st.oAlias))
	for orig, dedupIdx := range st.oAlias {
		st.oIndexToNew[orig] = newIndexOf[dedupIdx]
	}
	st.aIndexToNew = make(map[int]int, len(st.aAlias))
	for orig, dedupIdx := range st.aAlias {
		st.aIndexToNew[orig] = newIndexOf[dedupIdx]
	}

	copy(in, final)
	return localCount
}

// writeSymtab serializes the final, reordered symbol list back into O's
// symbol table section, freshly interning every name into O's string
// table (spec.md §4.E Step 13's symtab half). Re-adding names already
// present in O's string table wastes a little space rather than
// deduplicating byte-for-byte against the original tool's strtab_adj
// arithmetic; correctness doesn't depend on the string table being
// minimal.
func (st *state) writeSymtab(merged []mergedSymbol, localCount int) {
	symtabSec := st.o.Symtab()
	strtab := st.o.Strtab()

	symbols := make([]elfobj.Symbol, len(merged))
	data := make([]byte, 0, len(merged)*16)
	for i, m := range merged {
		nameOff := uint32(0)
		if len(m.name) > 0 {
			nameOff = strtab.Add(m.name)
		}
		sym := elfobj.Symbol{
			Name: m.name, NameOff: nameOff, Value: m.value, Size: m.size,
			Info: m.info, Other: m.other, Shndx: m.shndx, NewIndex: i,
		}
		symbols[i] = sym
		data = append(data, sym.Marshal()...)
	}
	symtabSec.Symbols = symbols
	symtabSec.Data = data
	symtabSec.Info = uint32(localCount)
	st.o.Sections[symtabSec.Link].Data = strtab.Data
}
