package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/asmproc/internal/asmrun"
	"github.com/xyproto/env/v2"
)

func newPreprocessCmd() *cobra.Command {
	var f optFlags
	var outPath string
	var compiler string
	var doCompile bool
	var compileOut string

	cmd := &cobra.Command{
		Use:   "preprocess <file>",
		Short: "Replace GLOBAL_ASM/INCLUDE_ASM blocks with compiler-swallowable stubs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			opts, err := buildOpts(filename, &f)
			if err != nil {
				return err
			}

			out := outPath
			if out == "" {
				out = opts.Filename
			}
			tmp := out + ".asmproc.tmp"
			w, err := os.Create(tmp)
			if err != nil {
				return fmt.Errorf("asmproc: creating %s: %w", tmp, err)
			}

			deps, funcs, err := reparseFunctions(filename, opts, w)
			closeErr := w.Close()
			if err != nil {
				os.Remove(tmp)
				return err
			}
			if closeErr != nil {
				os.Remove(tmp)
				return fmt.Errorf("asmproc: writing %s: %w", out, closeErr)
			}
			if err := os.Rename(tmp, out); err != nil {
				os.Remove(tmp)
				return fmt.Errorf("asmproc: replacing %s: %w", out, err)
			}
			logger.Infof("%s: found %d assembly block(s)", filename, len(funcs))

			if len(deps) > 0 {
				depPath := out + ".asmproc.d"
				if err := writeDepFile(depPath, out, deps); err != nil {
					return err
				}
				if verbose {
					dimColor.Printf("wrote %s\n", depPath)
				}
			}

			if doCompile {
				if compiler == "" {
					return fmt.Errorf("asmproc: --compile requires --compiler")
				}
				objOut := compileOut
				if objOut == "" {
					objOut = strings.TrimSuffix(out, filepath.Ext(out)) + ".o"
				}
				logger.Infof("compiling %s -> %s", out, objOut)
				if err := asmrun.Compile(cmd.Context(), splitCommand(compiler), out, objOut); err != nil {
					return fmt.Errorf("asmproc: compiling %s: %w", out, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "where to write the transformed source (default: overwrite <file>)")
	cmd.Flags().StringVar(&compiler, "compiler", env.Str("ASMPROC_COMPILER", ""), "compiler command to invoke when --compile is set (default from $ASMPROC_COMPILER)")
	cmd.Flags().BoolVar(&doCompile, "compile", false, "invoke the compiler on the transformed source after preprocessing")
	cmd.Flags().StringVar(&compileOut, "compile-output", "", "object file path for --compile (default: <output> with .o extension)")
	addOptFlags(cmd, &f)
	return cmd
}

func writeDepFile(depPath, target string, deps []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:", target)
	for _, d := range deps {
		fmt.Fprintf(&b, " %s", d)
	}
	b.WriteByte('\n')
	return os.WriteFile(depPath, []byte(b.String()), 0o644)
}
