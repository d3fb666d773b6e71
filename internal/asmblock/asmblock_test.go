package asmblock

import (
	"strings"
	"testing"

	"github.com/xyproto/asmproc/internal/gstate"
	"github.com/xyproto/asmproc/internal/options"
)

func newTestBlock(t *testing.T, opt string, framepointer, mips1, pascal bool) *AsmBlock {
	t.Helper()
	o := options.Opts{Opt: opt, Framepointer: framepointer, MIPS1: mips1, Pascal: pascal}
	d, err := options.Derive(o)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	st := gstate.New(d.MinInstrCount, d.SkipInstrCount, d.UseJtblForRodata, d.PreludeIfLateRodata, mips1, pascal)
	return New(o, d, st, "test.s")
}

func feedLines(t *testing.T, b *AsmBlock, lines []string) {
	t.Helper()
	for _, l := range lines {
		if _, err := b.ProcessLine(l); err != nil {
			t.Fatalf("ProcessLine(%q): %v", l, err)
		}
	}
}

// TestEmptyTextBlock matches scenario 1 of the testable-properties list:
// glabel foo, then two nops, at O1 without a frame pointer.
func TestEmptyTextBlock(t *testing.T) {
	b := newTestBlock(t, "O1", false, false, false)
	feedLines(t, b, []string{"glabel foo", "nop", "nop"})

	src, fn, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(fn.TextGlabels) != 1 || fn.TextGlabels[0] != "foo" {
		t.Fatalf("text_glabels = %v, want [foo]", fn.TextGlabels)
	}
	if len(fn.FnInsInds) != 2 {
		t.Fatalf("fn_ins_inds = %v, want 2 entries", fn.FnInsInds)
	}
	firstLine := fn.FnInsInds[0].LineIndex
	if !strings.Contains(src[firstLine], "void _asmpp_func1(void) {") {
		t.Errorf("src[%d] = %q, want prologue for _asmpp_func1", firstLine, src[firstLine])
	}
	lastLine := fn.FnInsInds[len(fn.FnInsInds)-1].LineIndex
	if !strings.HasSuffix(strings.TrimSpace(src[lastLine]), "}") {
		t.Errorf("src[%d] = %q, want trailing '}'", lastLine, src[lastLine])
	}
}

// TestLateRodataFloatSentinel matches scenario 2: one late-rodata word
// at alignment 4 (not a 0-mod-8 landing), MIPS1 off.
func TestLateRodataFloatSentinel(t *testing.T) {
	b := newTestBlock(t, "O1", false, false, false)
	feedLines(t, b, []string{
		"glabel foo",
		"nop",
		"nop",
		".section .late_rodata",
		".late_rodata_alignment 4",
		".word 0",
	})

	_, fn, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(fn.LateRodataDummyBytes) != 1 {
		t.Fatalf("late_rodata_dummy_bytes = %v, want 1 entry", fn.LateRodataDummyBytes)
	}
	want := [4]byte{0xE0, 0x12, 0x34, 0x57}
	if fn.LateRodataDummyBytes[0] != want {
		t.Errorf("dummy bytes = %x, want %x", fn.LateRodataDummyBytes[0], want)
	}
}

// TestLateRodataJumpTable matches scenario 3: a 10-word late-rodata
// region under C with use_jtbl_for_rodata and MIPS1 off (O2, no
// framepointer, no KPIC).
func TestLateRodataJumpTable(t *testing.T) {
	b := newTestBlock(t, "O2", false, false, false)
	words := make([]string, 0, 20)
	words = append(words, "glabel foo")
	for i := 0; i < 20; i++ {
		words = append(words, "nop")
	}
	words = append(words, ".section .late_rodata")
	for i := 0; i < 10; i++ {
		words = append(words, ".word 0")
	}
	feedLines(t, b, words)

	_, fn, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if fn.JtblRodataSize != 40 {
		t.Errorf("jtbl_rodata_size = %d, want 40", fn.JtblRodataSize)
	}
}

// TestRatioViolation matches scenario 4: far too much late-rodata for
// the available text budget.
func TestRatioViolation(t *testing.T) {
	b := newTestBlock(t, "O1", false, false, false)
	lines := []string{"glabel foo", "nop", "nop", "nop", ".section .late_rodata"}
	for i := 0; i < 8; i++ {
		lines = append(lines, ".word 0")
	}
	feedLines(t, b, lines)

	_, _, err := b.Finish()
	if err == nil {
		t.Fatal("Finish: want ratio-violation error, got nil")
	}
	if !strings.Contains(err.Error(), "late rodata to text ratio is too high") {
		t.Errorf("err = %v, want ratio-violation message", err)
	}
}

func TestTextMustFollowGlabel(t *testing.T) {
	b := newTestBlock(t, "O1", false, false, false)
	if _, err := b.ProcessLine("nop"); err == nil {
		t.Fatal("want error for instruction before any glabel")
	}
}

func TestUnsupportedDirectiveFails(t *testing.T) {
	b := newTestBlock(t, "O1", false, false, false)
	if _, err := b.ProcessLine(".nonsense 1"); err == nil {
		t.Fatal("want error for unsupported directive")
	}
}

func TestBssSizing(t *testing.T) {
	b := newTestBlock(t, "O1", false, false, false)
	feedLines(t, b, []string{"glabel foo", "nop", "nop", ".section .bss", ".space 16"})
	_, fn, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	var found bool
	for _, a := range fn.Data {
		if a.Section == SecBss {
			found = true
			if a.Size != 16 {
				t.Errorf("bss size = %d, want 16", a.Size)
			}
		}
	}
	if !found {
		t.Fatal("no .bss allocation recorded")
	}
}
