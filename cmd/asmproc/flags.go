package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/asmproc/internal/options"
)

// optFlags mirrors the optimization/ABI knobs spec.md §6 lists, shared
// by the preprocess and postprocess subcommands so the same Opts can be
// reconstructed on either side of an external compile step.
type optFlags struct {
	opt             string
	framepointer    bool
	kpic            bool
	mips1           bool
	pascal          bool
	cutsceneFloats  bool
	encoding        string
}

func addOptFlags(cmd *cobra.Command, f *optFlags) {
	cmd.Flags().StringVar(&f.opt, "opt", "O2", "optimization level: O0, O1, O2, g, or g3")
	cmd.Flags().BoolVar(&f.framepointer, "framepointer", false, "compiler was invoked with -framepointer")
	cmd.Flags().BoolVar(&f.kpic, "kpic", false, "compiler was invoked with -KPIC")
	cmd.Flags().BoolVar(&f.mips1, "mips1", false, "target is MIPS1 rather than MIPS2")
	cmd.Flags().BoolVar(&f.pascal, "pascal", false, "source is Pascal rather than C (auto-detected from extension otherwise)")
	cmd.Flags().BoolVar(&f.cutsceneFloats, "cutscene-data-float-encoding", false, "rewrite float literals inside CutsceneData tables to their hex bit patterns")
	cmd.Flags().StringVar(&f.encoding, "encoding", "utf-8", "output text encoding")
}

// buildOpts turns optFlags plus a source filename into the Opts the
// preprocessor and fixup pass both key off of, validating the CLI
// compatibility matrix (spec.md §6) up front.
func buildOpts(filename string, f *optFlags) (options.Opts, error) {
	pascal := f.pascal
	if !pascal {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".p", ".pas", ".pp":
			pascal = true
		}
	}
	o := options.Opts{
		Opt:                             f.opt,
		Framepointer:                    f.framepointer,
		KPIC:                            f.kpic,
		EnableCutsceneDataFloatEncoding: f.cutsceneFloats,
		MIPS1:                           f.mips1,
		Pascal:                          pascal,
		Filename:                        filename,
		OutputEnc:                       f.encoding,
	}
	if err := options.ValidateCompatibility(o); err != nil {
		return options.Opts{}, err
	}
	return o, nil
}
