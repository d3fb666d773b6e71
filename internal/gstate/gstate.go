// Package gstate implements GlobalState: the process-wide monotonic
// counters threaded through a single preprocessing invocation (spec.md
// §4.B). It never hides behind package-level mutable state — callers
// always hold an explicit *State — so repeated invocations of the
// preprocessor stay deterministic (Design Note "GlobalState as
// process-wide counter").
package gstate

import (
	"encoding/binary"
	"fmt"

	"github.com/xyproto/asmproc/internal/options"
)

// State is GlobalState: the name/value counters and derived constants
// shared by every AsmBlock processed within one preprocess call.
type State struct {
	MinInstrCount       int
	SkipInstrCount      int
	UseJtblForRodata    bool
	PreludeIfLateRodata int
	MIPS1               bool
	Pascal              bool

	nameCounter     int
	valueCounter    int
	lateRodataHex   uint32
}

// initialLateRodataHex is the seed sentinel, chosen so its low 16 bits
// are never a value the compiler could encode as a bare `lui` (spec.md
// §4.B).
const initialLateRodataHex uint32 = 0xE0123456

// New constructs a State with explicit derived constants, mirroring
// GlobalState::new in the original implementation.
func New(minInstrCount, skipInstrCount int, useJtblForRodata bool, preludeIfLateRodata int, mips1, pascal bool) *State {
	return &State{
		MinInstrCount:       minInstrCount,
		SkipInstrCount:      skipInstrCount,
		UseJtblForRodata:    useJtblForRodata,
		PreludeIfLateRodata: preludeIfLateRodata,
		MIPS1:               mips1,
		Pascal:              pascal,
		lateRodataHex:       initialLateRodataHex,
	}
}

// NewFromOpts derives a State from Opts, mirroring GlobalState::from_opts.
func NewFromOpts(o options.Opts) (*State, error) {
	d, err := options.Derive(o)
	if err != nil {
		return nil, err
	}
	return New(d.MinInstrCount, d.SkipInstrCount, d.UseJtblForRodata, d.PreludeIfLateRodata, o.MIPS1, o.Pascal), nil
}

// NextLateRodataHex returns the next 4-byte big-endian sentinel and
// advances the counter, skipping any post-increment value whose low 16
// bits are zero so the pattern remains unambiguous to locate later in
// the assembled .rodata.
func (s *State) NextLateRodataHex() [4]byte {
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], s.lateRodataHex)
	s.lateRodataHex++
	if s.lateRodataHex&0xFFFF == 0 {
		s.lateRodataHex++
	}
	return out
}

// MakeName allocates the next placeholder identifier for the given
// category (func, rodata, data, bss, large_func).
func (s *State) MakeName(category string) string {
	s.nameCounter++
	return fmt.Sprintf("_asmpp_%s%d", category, s.nameCounter)
}

// FuncPrologue returns the opening of a placeholder function/procedure.
func (s *State) FuncPrologue(name string) string {
	if s.Pascal {
		return fmt.Sprintf("procedure %s; var vi: ^integer; vf: ^single; vd: ^double; begin", name)
	}
	return fmt.Sprintf("void %s(void) {", name)
}

// FuncEpilogue closes a placeholder function/procedure.
func (s *State) FuncEpilogue() string {
	if s.Pascal {
		return "end;"
	}
	return "}"
}

// PascalAssignment generates one of the Pascal dereference-assignment
// idioms used to emit a placeholder word of a given kind ("i", "f",
// "d") at a cycling low-memory address.
func (s *State) PascalAssignment(kind, value string) string {
	s.valueCounter++
	addr := (8 * s.valueCounter) & 0x7FFF
	return fmt.Sprintf("v%s := p%s(%d); v%s^ := %s;", kind, kind, addr, kind, value)
}
