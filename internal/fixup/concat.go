package fixup

import (
	"fmt"
	"strings"

	"github.com/xyproto/asmproc/internal/asmblock"
)

// concatenateAssembly builds the full assembly source handed to the
// external assembler (spec.md §4.E Step 2): the prelude, then each
// function's padding and bracketed content, then a single combined
// late-rodata region spanning every Function that contributed one.
//
// A Function's real (non-late-rodata) allocations are bracketed in two
// passes, per original_source/src/objfile.rs:193-210: every alloc's
// padding is emitted first (each preceded by its own ".section" only
// when the padding is non-empty), then every alloc's "_asm_start"
// glabel (each preceded by ".section"), then a single literal ".text"
// plus the function's shared AsmConts, then every alloc's "_asm_end"
// glabel. This matters whenever a block contributes both .text and a
// real .data/.rodata/.bss section: AsmConts switches sections
// internally and must not be re-emitted or split per placement.
//
// Late-rodata allocations never take part in this grouping — unlike
// objfile.rs's per-function "data" map, asmblock.Function.Data carries
// a SecLateRodata entry too, but it is routed to the combined
// late-rodata accumulation below exactly as the original routes
// late_rodata_asm_conts, independently of the per-section data map.
func (st *state) concatenateAssembly(prelude []byte, placements []placement) []byte {
	var b strings.Builder
	b.Write(prelude)
	b.WriteByte('\n')

	type group struct {
		fn     *asmblock.Function
		allocs []placement
	}
	var groups []*group
	groupOf := map[*asmblock.Function]*group{}

	var lateRodataLines []string
	hasLateRodata := false

	for _, p := range placements {
		if p.alloc.Section == asmblock.SecLateRodata {
			hasLateRodata = true
			lateRodataLines = append(lateRodataLines, p.padding...)
			lateRodataLines = append(lateRodataLines, p.fn.LateRodataAsmConts...)
			continue
		}

		g, ok := groupOf[p.fn]
		if !ok {
			g = &group{fn: p.fn}
			groupOf[p.fn] = g
			groups = append(groups, g)
		}
		g.allocs = append(g.allocs, p)
	}

	for _, g := range groups {
		for _, p := range g.allocs {
			if len(p.padding) == 0 {
				continue
			}
			fmt.Fprintf(&b, ".section %s\n", p.alloc.Section)
			for _, line := range p.padding {
				fmt.Fprintln(&b, line)
			}
		}
		for _, p := range g.allocs {
			fmt.Fprintf(&b, ".section %s\n", p.alloc.Section)
			fmt.Fprintf(&b, "glabel %s_asm_start\n", p.alloc.Placeholder)
		}

		fmt.Fprintln(&b, ".text")
		for _, line := range g.fn.AsmConts {
			fmt.Fprintln(&b, line)
		}

		for _, p := range g.allocs {
			fmt.Fprintf(&b, ".section %s\n", p.alloc.Section)
			fmt.Fprintf(&b, "glabel %s_asm_end\n", p.alloc.Placeholder)
		}
	}

	if hasLateRodata {
		fmt.Fprintln(&b, ".section .late_rodata")
		fmt.Fprintln(&b, ".word 0, 0")
		fmt.Fprintln(&b, "glabel _asmpp_late_rodata_start")
		for _, line := range lateRodataLines {
			fmt.Fprintln(&b, line)
		}
		fmt.Fprintln(&b, "glabel _asmpp_late_rodata_end")
	}

	return []byte(b.String())
}
