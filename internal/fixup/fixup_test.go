package fixup

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xyproto/asmproc/internal/elfobj"
)

func newState() *state {
	return &state{
		prevLoc:               map[string]uint32{},
		splices:                map[string][]spliceRec{},
		lateRodataPosMap:      map[uint32]uint32{},
		jtblReservedPositions: map[uint32]bool{},
		relocatedInA:          map[int]bool{},
		modifiedTextPositions: map[uint32]bool{},
	}
}

func TestDeduplicateSymbolsPrefersDefinedOverUndefined(t *testing.T) {
	st := newState()
	in := []mergedSymbol{
		{}, // null entry
		{name: []byte("foo"), shndx: elfobj.SHN_UNDEF, origOIdx: 1},
		{name: []byte("foo"), shndx: 2, value: 0x100, origAIdx: 3},
	}
	out, err := st.deduplicateSymbols(in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, uint16(2), out[1].shndx)
	require.Equal(t, uint32(0x100), out[1].value)
	require.Equal(t, 1, st.oAlias[1])
	require.Equal(t, 1, st.aAlias[3])
}

func TestDeduplicateSymbolsConflictingDefinitionsFail(t *testing.T) {
	st := newState()
	in := []mergedSymbol{
		{},
		{name: []byte("foo"), shndx: 1, value: 0x10},
		{name: []byte("foo"), shndx: 1, value: 0x20},
	}
	_, err := st.deduplicateSymbols(in)
	require.ErrorContains(t, err, "defined twice")
}

func TestDeduplicateSymbolsKeepsUnnamedEntriesDistinct(t *testing.T) {
	st := newState()
	in := []mergedSymbol{
		{},
		{shndx: 1, info: elfobj.STT_SECTION},
		{shndx: 2, info: elfobj.STT_SECTION},
	}
	out, err := st.deduplicateSymbols(in)
	require.NoError(t, err)
	require.Len(t, out, 3)
}

func TestReorderSymbolsPutsGpDispLastAmongLocals(t *testing.T) {
	st := newState()
	in := []mergedSymbol{
		{},
		{name: []byte("global1"), info: elfobj.STB_GLOBAL << 4},
		{name: []byte("_gp_disp"), info: elfobj.STB_LOCAL << 4},
		{name: []byte("local1"), info: elfobj.STB_LOCAL << 4},
	}
	st.oAlias = map[int]int{2: 2, 3: 3}
	st.aAlias = map[int]int{}

	localCount := st.reorderSymbols(in)
	require.Equal(t, 3, localCount) // null + local1 + _gp_disp
	require.Equal(t, "local1", string(in[1].name))
	require.Equal(t, "_gp_disp", string(in[2].name))
	require.Equal(t, "global1", string(in[3].name))
	require.Equal(t, 1, st.oIndexToNew[3]) // local1 moved to index 1
	require.Equal(t, 2, st.oIndexToNew[2]) // _gp_disp moved to index 2
}

func TestFindPattern(t *testing.T) {
	data := []byte{0, 0, 0, 0, 0xE0, 0x12, 0x34, 0x56, 1, 2, 3, 4}
	pos, ok := findPattern(data, []byte{0xE0, 0x12, 0x34, 0x56}, 0)
	require.True(t, ok)
	require.Equal(t, uint32(4), pos)

	_, ok = findPattern(data, []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0)
	require.False(t, ok)
}

func TestMergeReginfoOrsRegisterMasks(t *testing.T) {
	st := newState()
	st.o = &elfobj.File{Sections: []*elfobj.Section{
		{Name: ".reginfo", Data: make([]byte, 24)},
	}}
	st.o.Sections[0].Data[0] = 0x0F
	st.a = &elfobj.File{Sections: []*elfobj.Section{
		{Name: ".reginfo", Data: make([]byte, 24)},
	}}
	st.a.Sections[0].Data[0] = 0xF0

	st.mergeReginfo()
	require.Equal(t, byte(0xFF), st.o.Sections[0].Data[0])
}

