package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
)

func newPostprocessCmd() *cobra.Command {
	var f optFlags
	var sourceFile string
	var assembler string
	var preludeFile string
	var dropMdebugGptab bool
	var convertStatics string

	cmd := &cobra.Command{
		Use:   "postprocess <objfile>",
		Short: "Splice assembled GLOBAL_ASM/INCLUDE_ASM blocks back into a compiled object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objPath := args[0]
			if sourceFile == "" {
				return fmt.Errorf("asmproc: postprocess requires --source (the file preprocess ran against)")
			}
			if assembler == "" {
				return fmt.Errorf("asmproc: postprocess requires --assembler")
			}
			opts, err := buildOpts(sourceFile, &f)
			if err != nil {
				return err
			}
			_, funcs, err := reparseFunctions(sourceFile, opts, io.Discard)
			if err != nil {
				return err
			}
			return runFixup(cmd.Context(), sourceFile, objPath, funcs, preludeFile, assembler, dropMdebugGptab, convertStatics)
		},
	}

	cmd.Flags().StringVar(&sourceFile, "source", "", "original C/Pascal file that was preprocessed to produce this object (required)")
	cmd.Flags().StringVar(&assembler, "assembler", env.Str("ASMPROC_ASSEMBLER", ""), "assembler command, e.g. \"mips-linux-gnu-as -march=vr4300 -mabi=32\" (default from $ASMPROC_ASSEMBLER)")
	cmd.Flags().StringVar(&preludeFile, "asm-prelude", "", "file containing assembly to prepend before assembling")
	cmd.Flags().BoolVar(&dropMdebugGptab, "drop-mdebug-gptab", false, "drop .mdebug and .gptab sections from the output object")
	cmd.Flags().StringVar(&convertStatics, "convert-statics", "local", "static symbol visibility: no, local, global, or global-with-filename")
	addOptFlags(cmd, &f)
	return cmd
}
