// Package asmrun invokes the external assembler and compiler as
// subprocesses on behalf of the fixup and preprocess passes. Both tools
// are opaque collaborators (spec.md §1 "Out of scope"): this package's
// only job is running them, attaching standard streams, and turning a
// non-zero exit into a Go error.
package asmrun

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Assemble writes asmPath through the given assembler command, producing
// objPath. argv[0] is the executable; the remaining entries are passed
// through verbatim before the fixed "<asmfile> -o <objfile>" suffix
// (spec.md §4.E Step 3).
func Assemble(ctx context.Context, argv []string, asmPath, objPath string) error {
	return run(ctx, argv, asmPath, "-o", objPath)
}

// Compile invokes the external compiler on a preprocessed source file,
// used only when the CLI's --compile flag is set.
func Compile(ctx context.Context, argv []string, srcPath, objPath string) error {
	return run(ctx, argv, srcPath, "-o", objPath)
}

func run(ctx context.Context, argv []string, extra ...string) error {
	if len(argv) == 0 {
		return fmt.Errorf("asmrun: empty command")
	}
	args := make([]string, 0, len(argv)-1+len(extra))
	args = append(args, argv[1:]...)
	args = append(args, extra...)

	cmd := exec.CommandContext(ctx, argv[0], args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("asmrun: %s: %w", argv[0], err)
	}
	return nil
}
