package fixup

import (
	"fmt"
	"path/filepath"

	"github.com/xyproto/asmproc/internal/elfobj"
	"github.com/xyproto/asmproc/internal/options"
)

const symrSize = 12

// symr is one flat-table HDRR local symbol record: a 12-byte (string
// offset, value, packed type/class/aux-index) triple. Real ECOFF groups
// these per file descriptor (FDR); this pass instead walks the whole
// local symbol table as one run, which covers the overwhelmingly common
// case of a translation unit with a single file descriptor and is
// recorded as a known simplification in DESIGN.md.
type symr struct {
	iss   uint32
	value uint32
	st    uint8
	sc    uint8
}

func parseSymr(b []byte) symr {
	word3 := elfobj.HDRRUint32(b, 8)
	return symr{
		iss:   elfobj.HDRRUint32(b, 0),
		value: elfobj.HDRRUint32(b, 4),
		st:    uint8(word3>>26) & 0x3F,
		sc:    uint8(word3>>21) & 0x1F,
	}
}

// scope-opening symbol types that must be balanced by a matching
// MipsDebugSTEnd before the local symbol table closes.
var scopeOpeners = map[uint8]bool{
	elfobj.MipsDebugSTFile:       true,
	elfobj.MipsDebugSTStruct:     true,
	elfobj.MipsDebugSTUnion:      true,
	elfobj.MipsDebugSTEnum:       true,
	elfobj.MipsDebugSTBlock:      true,
	elfobj.MipsDebugSTProc:       true,
	elfobj.MipsDebugSTStaticProc: true,
}

// storage-class-to-section mapping the debug format uses for statics,
// per the convert-statics feature's wire contract.
var scSection = map[uint8]string{
	1: ".text", 2: ".data", 3: ".bss", 15: ".rodata",
}

// promoteMdebugStatics walks O's .mdebug local symbol table and
// synthesizes a proper ELF symbol table entry for every static variable
// or static function it finds, so later tooling (and the final link) can
// see them (spec.md §4.E Step 9). Binding and the promoted name both
// depend on cfg.ConvertStatics: "local" keeps them hidden from other
// translation units; "global"/"global-with-filename" externalize them,
// the latter qualifying the name with the object file's base name to
// dodge collisions across multiple promoted objects.
func (st *state) promoteMdebugStatics(objPath string) error {
	mdebug := st.o.FindSection(".mdebug")
	if mdebug == nil {
		return nil
	}
	if !elfobj.HDRRValid(mdebug.Data) {
		return fmt.Errorf("fixup: %s: .mdebug section has no valid HDRR header", objPath)
	}

	isymMax := elfobj.HDRRUint32(mdebug.Data, elfobj.HdrrIsymMaxOffset)
	cbSym := elfobj.HDRRUint32(mdebug.Data, elfobj.HdrrCbSymOffset)
	cbSs := elfobj.HDRRUint32(mdebug.Data, elfobj.HdrrCbSsOffset)
	if isymMax > 0 {
		// The HDRR stores absolute file offsets; rebase them onto the
		// section's own data.
		if cbSym < mdebug.Offset || cbSs < mdebug.Offset {
			return fmt.Errorf("fixup: %s: .mdebug symbol tables lie before the .mdebug section", objPath)
		}
		cbSym -= mdebug.Offset
		cbSs -= mdebug.Offset
	}

	symtab := st.o.Symtab()
	if symtab == nil {
		return fmt.Errorf("fixup: %s: no symbol table to promote statics into", objPath)
	}

	depth := 0
	for i := uint32(0); i < isymMax; i++ {
		recOff := cbSym + i*symrSize
		if int(recOff+symrSize) > len(mdebug.Data) {
			return fmt.Errorf("fixup: %s: .mdebug local symbol table truncated", objPath)
		}
		rec := parseSymr(mdebug.Data[recOff : recOff+symrSize])

		if rec.st == elfobj.MipsDebugSTEnd {
			if depth == 0 {
				return fmt.Errorf("fixup: %s: .mdebug scope underflow at local symbol %d", objPath, i)
			}
			depth--
			continue
		}
		if scopeOpeners[rec.st] {
			depth++
		}

		if rec.st != elfobj.MipsDebugSTStatic && rec.st != elfobj.MipsDebugSTStaticProc {
			continue
		}
		secName, ok := scSection[rec.sc]
		if !ok {
			continue
		}
		sec := st.o.FindSection(secName)
		if sec == nil {
			continue
		}

		name, err := st.o.GetNullTerminatedString(mdebug.Data, cbSs+rec.iss)
		if err != nil {
			return fmt.Errorf("fixup: %s: reading static symbol name: %w", objPath, err)
		}
		if st.cfg.ConvertStatics == options.ConvertStaticsGlobalWithFilename {
			base := filepath.Base(objPath)
			name = fmt.Sprintf("%s:%s", name, base)
		}

		typ := elfobj.STT_OBJECT
		if rec.st == elfobj.MipsDebugSTStaticProc {
			typ = elfobj.STT_FUNC
		}
		bind := uint8(elfobj.STB_LOCAL)
		if st.cfg.ConvertStatics != options.ConvertStaticsLocal {
			bind = elfobj.STB_GLOBAL
		}

		symtab.Symbols = append(symtab.Symbols, elfobj.Symbol{
			Name:  []byte(name),
			Value: rec.value,
			Info:  bind<<4 | typ,
			Shndx: uint16(sec.Index),
		})
	}
	if depth != 0 {
		return fmt.Errorf("fixup: %s: .mdebug local symbol table has %d unclosed scope(s)", objPath, depth)
	}
	return nil
}
