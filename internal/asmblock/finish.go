package asmblock

import (
	"fmt"
	"math"
	"strings"
)

// maxFnSize bounds the number of placeholder statements packed into a
// single generated C function before the stub generator starts a new
// one (very large single functions have been observed to make the IDO
// compiler pathologically slow).
const maxFnSize = 4000

type jtblConstants struct {
	size        uint32
	minRodata   uint32
}

func (b *AsmBlock) jtblConstants() jtblConstants {
	switch {
	case b.opts.Pascal && b.opts.MIPS1:
		return jtblConstants{size: 9, minRodata: 2}
	case b.opts.Pascal:
		return jtblConstants{size: 8, minRodata: 2}
	case b.opts.MIPS1:
		return jtblConstants{size: 11, minRodata: 5}
	default:
		return jtblConstants{size: 9, minRodata: 5}
	}
}

// effectiveLateRodataAlignment returns the assumed byte alignment of the
// first late-rodata word: whatever was set/inferred via
// .late_rodata_alignment or a .double, defaulting to 8.
func (b *AsmBlock) effectiveLateRodataAlignment() int {
	if b.lateRodataAlignment != 0 {
		return b.lateRodataAlignment
	}
	return 8
}

// Finish converts the accumulated sizes and lines into the placeholder
// stub (one entry per original line, plus one trailing entry for
// section-level declarations) and the resulting Function.
func (b *AsmBlock) Finish() ([]string, Function, error) {
	if b.sizes[SecText]%4 != 0 {
		return nil, Function{}, b.fail("'.text' size must be a multiple of 4", "")
	}
	if b.sizes[SecLateRodata]%4 != 0 {
		return nil, Function{}, b.fail("'.late_rodata' size must be a multiple of 4", "")
	}

	n := b.sizes[SecText] / 4
	if n < uint32(b.derived.MinInstrCount) {
		return nil, Function{}, b.fail(
			fmt.Sprintf("not enough instructions: got %d, need at least %d", n, b.derived.MinInstrCount), "")
	}

	payload, jtblRodataSize, dummyBytes, err := b.buildLateRodataPayload(n)
	if err != nil {
		return nil, Function{}, err
	}

	src := make([]string, b.lineCount+1)

	fn := Function{
		TextGlabels:          b.textGlabels,
		AsmConts:             b.asmConts,
		LateRodataAsmConts:   b.lateRodataAsmConts,
		LateRodataDummyBytes: dummyBytes,
		JtblRodataSize:       jtblRodataSize,
		FnDesc:               b.fnDesc,
		FnInsInds:            b.fnInsInds,
	}

	firstFuncName, leftover, err := b.emitTextStub(src, payload, n)
	if err != nil {
		return nil, Function{}, err
	}

	if leftover > 0 {
		return nil, Function{}, b.fail(
			fmt.Sprintf("late rodata to text ratio is too high: %d / %d must be <= 1/3", b.sizes[SecLateRodata], b.sizes[SecText]), "")
	}

	var allocs []SectionAlloc
	if b.sizes[SecText] > 0 {
		allocs = append(allocs, SectionAlloc{Section: SecText, Placeholder: firstFuncName, Size: b.sizes[SecText]})
	}
	if b.sizes[SecLateRodata] > 0 {
		allocs = append(allocs, SectionAlloc{Section: SecLateRodata, Placeholder: "_asmpp_late_rodata_start", Size: b.sizes[SecLateRodata]})
	}

	var decls []string
	for _, spec := range []struct {
		sec      string
		category string
	}{{SecData, "data"}, {SecRodata, "rodata"}, {SecBss, "bss"}} {
		size := b.sizes[spec.sec]
		if size == 0 {
			continue
		}
		if b.opts.Pascal && (spec.sec == SecRodata || spec.sec == SecBss) {
			return nil, Function{}, b.fail(fmt.Sprintf("Pascal does not support %q placeholders", spec.sec), "")
		}
		name := b.state.MakeName(spec.category)
		allocs = append(allocs, SectionAlloc{Section: spec.sec, Placeholder: name, Size: size})
		decls = append(decls, sectionDecl(spec.sec, name, size, b.opts.Pascal))
	}
	fn.Data = allocs
	if len(decls) > 0 {
		src[b.lineCount] = strings.Join(decls, "\n")
	}

	return src, fn, nil
}

func sectionDecl(sec, name string, size uint32, pascal bool) string {
	switch sec {
	case SecRodata:
		return fmt.Sprintf(" const char %s[%d] = {1};", name, size)
	case SecData:
		if pascal {
			return fmt.Sprintf("var %s: packed array[0..%d] of char;", name, size-1)
		}
		return fmt.Sprintf(" char %s[%d] = {1};", name, size)
	case SecBss:
		return fmt.Sprintf(" char %s[%d];", name, size)
	}
	return ""
}

// buildLateRodataPayload walks the late-rodata word count, producing
// either a jump-table stub or a sequence of float/double sentinel
// writes, per the word-by-word table in the analyzer's design.
func (b *AsmBlock) buildLateRodataPayload(textInstrCount uint32) (payload []string, jtblRodataSize uint32, dummyBytes [][4]byte, err error) {
	size := b.sizes[SecLateRodata] / 4
	jc := b.jtblConstants()
	extraMips1Nop := false

	var i uint32
	for i < size {
		remaining := size - i
		if b.derived.UseJtblForRodata && remaining >= jc.minRodata &&
			int(textInstrCount)-len(payload) >= int(jc.size)+1 {
			payload = append(payload, jtblSwitchStmt(remaining, b.opts.Pascal))
			for k := uint32(1); k < jc.size; k++ {
				payload = append(payload, "")
			}
			jtblRodataSize = remaining * 4
			extraMips1Nop = i != 2
			i = size
			break
		}

		b0 := b.state.NextLateRodataHex()
		dummyBytes = append(dummyBytes, b0)

		alignment := b.effectiveLateRodataAlignment()
		landsOnEight := (alignment == 8 && i%2 == 0) || (alignment == 4 && i%2 == 1)

		if landsOnEight && i+1 < size {
			b1 := b.state.NextLateRodataHex()
			dummyBytes = append(dummyBytes, b1)
			dval := decodeDoubleBE(b0, b1)
			payload = append(payload, b.volatileDoubleStmt(dval))
			if b.opts.MIPS1 {
				payload = append(payload, "", "")
			}
			i += 2
		} else {
			fval := decodeFloatBE(b0)
			payload = append(payload, b.volatileFloatStmt(fval))
			extraMips1Nop = true
			i++
		}
		payload = append(payload, "", "")
	}

	if b.opts.MIPS1 && extraMips1Nop {
		payload = append(payload, "")
	}
	return payload, jtblRodataSize, dummyBytes, nil
}

func jtblSwitchStmt(count uint32, pascal bool) string {
	var bldr strings.Builder
	if pascal {
		bldr.WriteString("case longint(pointer(0)^) of ")
		for k := uint32(0); k < count; k++ {
			fmt.Fprintf(&bldr, "%d: ; ", k)
		}
		bldr.WriteString("otherwise end;")
		return bldr.String()
	}
	bldr.WriteString("switch(*(volatile int*)0){ ")
	for k := uint32(0); k < count; k++ {
		fmt.Fprintf(&bldr, "case %d: ", k)
	}
	bldr.WriteString("; }")
	return bldr.String()
}

func (b *AsmBlock) volatileFloatStmt(f float32) string {
	if b.opts.Pascal {
		return b.state.PascalAssignment("f", formatFloat(float64(f)))
	}
	return fmt.Sprintf("*(volatile float*)0 = %sf;", formatFloat(float64(f)))
}

func (b *AsmBlock) volatileDoubleStmt(d float64) string {
	if b.opts.Pascal {
		return b.state.PascalAssignment("d", formatFloat(d))
	}
	return fmt.Sprintf("*(volatile double*)0 = %s;", formatFloat(d))
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func decodeFloatBE(b [4]byte) float32 {
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return math.Float32frombits(bits)
}

func decodeDoubleBE(b0, b1 [4]byte) float64 {
	bits := uint64(b0[0])<<56 | uint64(b0[1])<<48 | uint64(b0[2])<<40 | uint64(b0[3])<<32 |
		uint64(b1[0])<<24 | uint64(b1[1])<<16 | uint64(b1[2])<<8 | uint64(b1[3])
	return math.Float64frombits(bits)
}

// emitTextStub walks fnInsInds, writing one placeholder statement per
// original instruction line into src, splitting into additional
// large_func placeholder functions as maxFnSize is exceeded. It returns
// the name of the first (entry) placeholder function and the count of
// late-rodata payload lines that went unconsumed (a ratio violation).
func (b *AsmBlock) emitTextStub(src []string, payload []string, totalInstr uint32) (string, int, error) {
	if len(b.fnInsInds) == 0 {
		firstName := b.state.MakeName("func")
		src[0] = b.state.FuncPrologue(firstName) + "\n" + b.state.FuncEpilogue()
		return firstName, len(payload), nil
	}

	firstName := b.state.MakeName("func")
	appendLine(src, b.fnInsInds[0].LineIndex, b.state.FuncPrologue(firstName))

	emitted := 0
	skipped := 0
	payloadIdx := 0
	remaining := int(totalInstr)

	for i, ii := range b.fnInsInds {
		remaining--
		midEmptyLine := payloadIdx < len(payload) && payload[payloadIdx] == ""
		if emitted >= maxFnSize && remaining >= b.derived.MinInstrCount && !midEmptyLine {
			appendLine(src, ii.LineIndex, b.state.FuncEpilogue())
			name := b.state.MakeName("large_func")
			appendLine(src, ii.LineIndex, b.state.FuncPrologue(name))
			emitted = 0
		}

		skipBudget := b.derived.SkipInstrCount
		if payloadIdx < len(payload) {
			skipBudget += b.derived.PreludeIfLateRodata
		}
		if skipped < skipBudget {
			skipped++
			continue
		}

		var stmt string
		if payloadIdx < len(payload) {
			stmt = payload[payloadIdx]
			payloadIdx++
		} else {
			stmt = b.defaultPlaceholderStmt()
		}
		if stmt != "" {
			appendLine(src, ii.LineIndex, stmt)
		}
		emitted++

		if i == len(b.fnInsInds)-1 {
			appendLine(src, ii.LineIndex, b.state.FuncEpilogue())
		}
	}

	return firstName, len(payload) - payloadIdx, nil
}

func appendLine(src []string, idx int, stmt string) {
	if existing := src[idx]; existing != "" {
		src[idx] = existing + "\n" + stmt
	} else {
		src[idx] = stmt
	}
}

func (b *AsmBlock) defaultPlaceholderStmt() string {
	if b.opts.Pascal {
		return b.state.PascalAssignment("i", "0")
	}
	return "*(volatile int*)0 = 0;"
}
