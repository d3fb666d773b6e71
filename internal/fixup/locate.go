package fixup

import (
	"fmt"

	"github.com/xyproto/asmproc/internal/asmblock"
)

// placement is one Function/SectionAlloc pairing resolved to a concrete
// destination offset in O, plus any padding directives needed to close a
// gap since the previous placement in the same section (spec.md §4.E
// Step 1).
type placement struct {
	fn      *asmblock.Function
	alloc   asmblock.SectionAlloc
	pos     uint32
	padding []string
}

// locatePlaceholdersAndPad resolves every Function's placeholder symbols
// against O's symbol table and records the splice destinations. The
// combined late-rodata placeholder ("_asmpp_late_rodata_start") is
// shared across every Function that contributed late-rodata bytes, so
// its base offset is resolved once and subsequent occurrences continue
// from the running prevLoc instead of re-resolving the same symbol
// value.
func (st *state) locatePlaceholdersAndPad() ([]placement, error) {
	var placements []placement
	resolvedBase := map[string]uint32{}

	for i := range st.funcs {
		fn := &st.funcs[i]
		for _, alloc := range fn.Data {
			if alloc.Placeholder == "" || alloc.Size == 0 {
				continue
			}

			base, ok := resolvedBase[alloc.Placeholder]
			if !ok {
				sym, found := st.o.FindSymbol(alloc.Placeholder)
				if !found {
					return nil, fmt.Errorf("fixup: placeholder symbol %q not found in %s", alloc.Placeholder, fn.FnDesc)
				}
				base = sym.Value
				resolvedBase[alloc.Placeholder] = base
			}

			pos := base
			if prev, seen := st.prevLoc[alloc.Section]; seen && prev > pos {
				pos = prev
			}

			var padding []string
			if prev, seen := st.prevLoc[alloc.Section]; seen && pos > prev {
				padding = paddingLines(alloc.Section, pos-prev)
			}

			placements = append(placements, placement{fn: fn, alloc: alloc, pos: pos, padding: padding})
			st.splices[alloc.Section] = append(st.splices[alloc.Section], spliceRec{
				pos: pos, count: alloc.Size, placeholder: alloc.Placeholder, fnDesc: fn.FnDesc,
			})
			st.prevLoc[alloc.Section] = pos + alloc.Size
		}
	}
	return placements, nil
}

func paddingLines(section string, gap uint32) []string {
	if section == asmblock.SecText {
		n := gap / 4
		lines := make([]string, n)
		for i := range lines {
			lines[i] = "nop"
		}
		return lines
	}
	return []string{fmt.Sprintf(".space %d", gap)}
}
