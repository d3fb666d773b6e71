package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xyproto/asmproc/internal/asmblock"
	"github.com/xyproto/asmproc/internal/fixup"
	"github.com/xyproto/asmproc/internal/gstate"
	"github.com/xyproto/asmproc/internal/options"
	"github.com/xyproto/asmproc/internal/source"
)

// reparseFunctions runs the preprocess pass over filename, writing the
// transformed source to w (io.Discard when only the assembly blocks are
// wanted, as in the postprocess path below). Preprocessing is pure given
// identical opts, so re-running it against the original source is how
// postprocess recovers the Functions a separate preprocess invocation
// already produced, mirroring the reference tool's own postprocess mode.
func reparseFunctions(filename string, opts options.Opts, w io.Writer) ([]string, []asmblock.Function, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("asmproc: opening %s: %w", filename, err)
	}
	defer f.Close()

	derived, err := options.Derive(opts)
	if err != nil {
		return nil, nil, err
	}
	state := gstate.New(derived.MinInstrCount, derived.SkipInstrCount, derived.UseJtblForRodata, derived.PreludeIfLateRodata, opts.MIPS1, opts.Pascal)

	res, err := source.Preprocess(f, w, opts, state)
	if err != nil {
		return nil, nil, err
	}
	return res.Deps, res.Functions, nil
}

// runFixup loads preludeFile (if any) and invokes the fixup pass against
// objPath using funcs, per spec.md §4.E / §4.F.
func runFixup(ctx context.Context, sourceFile, objPath string, funcs []asmblock.Function, preludeFile, assembler string, dropMdebugGptab bool, convertStatics string) error {
	if len(funcs) == 0 {
		logger.Debugf("%s: no assembly blocks found, nothing to fix up in %s", sourceFile, objPath)
		return nil
	}

	var prelude []byte
	if preludeFile != "" {
		b, err := os.ReadFile(preludeFile)
		if err != nil {
			return fmt.Errorf("asmproc: reading prelude %s: %w", preludeFile, err)
		}
		prelude = b
	}

	cs := options.ConvertStatics(convertStatics)
	switch cs {
	case options.ConvertStaticsNo, options.ConvertStaticsLocal, options.ConvertStaticsGlobal, options.ConvertStaticsGlobalWithFilename:
	default:
		return fmt.Errorf("asmproc: invalid --convert-statics %q", convertStatics)
	}

	cfg := fixup.Config{
		DropMdebugGptab: dropMdebugGptab,
		ConvertStatics:  cs,
	}
	logger.Infof("fixing up %s against %d assembled function(s)", objPath, len(funcs))
	return fixup.Run(ctx, objPath, funcs, prelude, splitCommand(assembler), cfg)
}

// splitCommand splits a space-separated command string into argv,
// matching how the original tool accepts "--assembler \"cmd -flag\"" as
// one shell-quoted string rather than repeated flag occurrences.
func splitCommand(s string) []string {
	var out []string
	var cur []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, c)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
