package fixup

import (
	"fmt"

	"github.com/xyproto/asmproc/internal/asmblock"
)

// spliceSectionBytes overwrites O's .data/.text/.rodata bytes with the
// freshly assembled content at each placement recorded in Step 1, and
// splices late-rodata words through the position map Step 4 built
// (spec.md §4.E Step 6).
func (st *state) spliceSectionBytes() error {
	for _, secName := range []string{asmblock.SecData, asmblock.SecText, asmblock.SecRodata} {
		recs := st.splices[secName]
		if len(recs) == 0 {
			continue
		}
		oSec := st.o.FindSection(secName)
		aSec := st.a.FindSection(secName)
		if oSec == nil || aSec == nil {
			return fmt.Errorf("fixup: missing %q section while splicing assembled content", secName)
		}
		for _, rec := range recs {
			start, ok1 := st.a.FindSymbolInSection(rec.placeholder+"_asm_start", aSec)
			end, ok2 := st.a.FindSymbolInSection(rec.placeholder+"_asm_end", aSec)
			if !ok1 || !ok2 {
				return fmt.Errorf("fixup: %s: assembled object is missing %s_asm_start/_asm_end", rec.fnDesc, rec.placeholder)
			}
			if end < start || end-start != rec.count {
				return fmt.Errorf("fixup: %s: %s assembled to %d bytes, expected %d", rec.fnDesc, rec.placeholder, end-start, rec.count)
			}
			if int(rec.pos+rec.count) > len(oSec.Data) || int(end) > len(aSec.Data) {
				return fmt.Errorf("fixup: %s: splice range for %s falls outside section bounds", rec.fnDesc, rec.placeholder)
			}
			copy(oSec.Data[rec.pos:rec.pos+rec.count], aSec.Data[start:end])
			if secName == asmblock.SecText {
				for off := rec.pos; off < rec.pos+rec.count; off += 4 {
					st.modifiedTextPositions[off] = true
				}
			}
		}
	}

	if aLate := st.a.FindSection(asmblock.SecLateRodata); aLate != nil {
		oRodata := st.o.FindSection(asmblock.SecRodata)
		if oRodata == nil {
			return fmt.Errorf("fixup: late rodata assembled but output object has no .rodata section")
		}
		for posA, posO := range st.lateRodataPosMap {
			if int(posA+4) > len(aLate.Data) || int(posO+4) > len(oRodata.Data) {
				return fmt.Errorf("fixup: late-rodata splice at %#x/%#x falls outside section bounds", posA, posO)
			}
			copy(oRodata.Data[posO:posO+4], aLate.Data[posA:posA+4])
		}
	}
	return nil
}

// mergeReginfo ORs the first 20 bytes (the general-register-use masks) of
// A's .reginfo into O's, the union of registers either object touches
// (spec.md §4.E Step 7).
func (st *state) mergeReginfo() {
	oReg := st.o.FindSection(".reginfo")
	aReg := st.a.FindSection(".reginfo")
	if oReg == nil || aReg == nil {
		return
	}
	n := 20
	if len(oReg.Data) < n {
		n = len(oReg.Data)
	}
	if len(aReg.Data) < n {
		n = len(aReg.Data)
	}
	for i := 0; i < n; i++ {
		oReg.Data[i] |= aReg.Data[i]
	}
}
