package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xyproto/asmproc/internal/gstate"
	"github.com/xyproto/asmproc/internal/options"
)

func newTestOpts(filename string) (options.Opts, *gstate.State) {
	o := options.Opts{Opt: "O1", Filename: filename}
	d, err := options.Derive(o)
	if err != nil {
		panic(err)
	}
	st := gstate.New(d.MinInstrCount, d.SkipInstrCount, d.UseJtblForRodata, d.PreludeIfLateRodata, o.MIPS1, o.Pascal)
	return o, st
}

func TestInlineGlobalAsmBlock(t *testing.T) {
	src := "int before;\n" +
		"GLOBAL_ASM(\n" +
		"glabel foo\n" +
		"nop\n" +
		"nop\n" +
		")\n" +
		"int after;\n"

	opts, st := newTestOpts("test.c")
	var out strings.Builder
	res, err := Preprocess(strings.NewReader(src), &out, opts, st)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(res.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1", len(res.Functions))
	}
	if res.Functions[0].TextGlabels[0] != "foo" {
		t.Errorf("TextGlabels = %v, want [foo]", res.Functions[0].TextGlabels)
	}
	got := out.String()
	if !strings.Contains(got, "int before;") || !strings.Contains(got, "int after;") {
		t.Errorf("surrounding source lines dropped: %q", got)
	}
	if strings.Contains(got, "glabel foo") {
		t.Errorf("raw assembly leaked into output: %q", got)
	}
	if !strings.Contains(got, "void _asmpp_func1(void) {") {
		t.Errorf("placeholder stub missing: %q", got)
	}
}

func TestIncludeAsmFileForm(t *testing.T) {
	dir := t.TempDir()
	asmPath := filepath.Join(dir, "sub", "foo.s")
	if err := os.MkdirAll(filepath.Dir(asmPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(asmPath, []byte("glabel foo\nnop\nnop\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := "INCLUDE_ASM(\"" + filepath.Join(dir, "sub") + "\", \"foo\");\n"
	opts, st := newTestOpts(filepath.Join(dir, "test.c"))
	var out strings.Builder
	res, err := Preprocess(strings.NewReader(src), &out, opts, st)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(res.Functions) != 1 {
		t.Fatalf("Functions = %d, want 1", len(res.Functions))
	}
	if len(res.Deps) != 1 || res.Deps[0] != asmPath {
		t.Errorf("Deps = %v, want [%s]", res.Deps, asmPath)
	}
}

func TestIncludeAsmMissingFileDegradesGracefully(t *testing.T) {
	src := "INCLUDE_ASM(\"nonexistent\", \"foo\");\n"
	opts, st := newTestOpts("test.c")
	var out strings.Builder
	res, err := Preprocess(strings.NewReader(src), &out, opts, st)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if len(res.Functions) != 0 {
		t.Fatalf("Functions = %d, want 0", len(res.Functions))
	}
	if !strings.Contains(out.String(), `#include "GLOBAL_ASM:`) {
		t.Errorf("missing graceful-degradation #include, got %q", out.String())
	}
}

func TestCutsceneFloatRewrite(t *testing.T) {
	src := "CutsceneData foo[] = {\n" +
		"    1.5f, -2.0f,\n" +
		"};\n"
	opts, st := newTestOpts("test.c")
	opts.EnableCutsceneDataFloatEncoding = true
	var out strings.Builder
	if _, err := Preprocess(strings.NewReader(src), &out, opts, st); err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "1.5f") || strings.Contains(got, "-2.0f") {
		t.Errorf("float literals not rewritten: %q", got)
	}
}

func TestUnterminatedGlobalAsmBlockFails(t *testing.T) {
	src := "GLOBAL_ASM(\nglabel foo\nnop\nnop\n"
	opts, st := newTestOpts("test.c")
	var out strings.Builder
	if _, err := Preprocess(strings.NewReader(src), &out, opts, st); err == nil {
		t.Fatal("want error for unterminated GLOBAL_ASM( block")
	}
}

func TestRecurseMissingIncludeFails(t *testing.T) {
	src := "#pragma asmproc recurse\nint x;\n"
	opts, st := newTestOpts("test.c")
	var out strings.Builder
	if _, err := Preprocess(strings.NewReader(src), &out, opts, st); err == nil {
		t.Fatal("want error when #pragma asmproc recurse isn't followed by #include")
	}
}
