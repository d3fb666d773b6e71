package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xyproto/asmproc/internal/asmlog"
	"github.com/xyproto/env/v2"
)

// Color variables declared package-level and reused across subcommands:
// each color is named once and called wherever that severity is printed.
var (
	errColor  = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

var (
	verbose bool
	logger  *asmlog.Logger
)

func newRootCmd() *cobra.Command {
	var postProcess string
	var assembler string
	var preludeFile string
	var dropMdebugGptab bool
	var convertStatics string
	var f optFlags

	root := &cobra.Command{
		Use:           "asmproc <file>",
		Short:         "Embed hand-written MIPS assembly into C/Pascal source",
		Long:          "asmproc preprocesses GLOBAL_ASM/INCLUDE_ASM blocks into compiler-swallowable stubs and, given --post-process, splices the assembled result back into the compiled object.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = asmlog.New()
			if verbose {
				logger.Level = asmlog.LevelDebug
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			if postProcess == "" {
				return fmt.Errorf("asmproc: either run a subcommand (preprocess/postprocess) or pass --post-process <objfile>")
			}
			opts, err := buildOpts(filename, &f)
			if err != nil {
				return err
			}
			if assembler == "" {
				return fmt.Errorf("asmproc: --post-process requires --assembler")
			}
			_, funcs, err := reparseFunctions(filename, opts, io.Discard)
			if err != nil {
				return err
			}
			return runFixup(cmd.Context(), filename, postProcess, funcs, preludeFile, assembler, dropMdebugGptab, convertStatics)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug-level diagnostics")
	root.Flags().StringVar(&postProcess, "post-process", "", "object file to fix up after an external compile, re-deriving assembly blocks from <file> (compatibility form of 'asmproc postprocess')")
	root.Flags().StringVar(&assembler, "assembler", env.Str("ASMPROC_ASSEMBLER", ""), "assembler command, e.g. \"mips-linux-gnu-as -march=vr4300 -mabi=32\" (default from $ASMPROC_ASSEMBLER)")
	root.Flags().StringVar(&preludeFile, "asm-prelude", "", "file containing assembly to prepend before assembling")
	root.Flags().BoolVar(&dropMdebugGptab, "drop-mdebug-gptab", false, "drop .mdebug and .gptab sections from the output object")
	root.Flags().StringVar(&convertStatics, "convert-statics", "local", "static symbol visibility: no, local, global, or global-with-filename")
	addOptFlags(root, &f)

	root.AddCommand(newPreprocessCmd())
	root.AddCommand(newPostprocessCmd())
	return root
}

// reportError prints err to stderr in red (unless NO_COLOR/non-tty
// disables it), matching spec.md §7's top-level unwrap-and-print
// handler.
func reportError(err error) {
	if err == nil {
		return
	}
	if color.NoColor {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	errColor.Fprintf(os.Stderr, "error: %v\n", err)
}
