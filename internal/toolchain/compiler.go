// Package toolchain drives the external LLVM tools: clang to produce
// textual IR and opt to run the Wingspan passes over it.
package toolchain

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultCompilerFlags ask for unoptimized, human-readable IR.
var DefaultCompilerFlags = []string{"-S", "-emit-llvm", "-O0"}

// Compiler turns a C file into a sibling .ll file.
type Compiler struct {
	Path   string
	Flags  []string
	runner Runner
}

// NewCompiler returns a compiler that invokes path with flags. A nil runner
// falls back to ExecRunner.
func NewCompiler(path string, flags []string, runner Runner) *Compiler {
	if runner == nil {
		runner = ExecRunner{}
	}
	if len(flags) == 0 {
		flags = DefaultCompilerFlags
	}
	return &Compiler{Path: path, Flags: flags, runner: runner}
}

// OutputPath is where Compile writes the IR for src: same directory, same
// base name, .ll extension.
func (c *Compiler) OutputPath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), base+".ll")
}

// Compile runs the compiler on src and returns the IR path.
func (c *Compiler) Compile(ctx context.Context, src string) (string, error) {
	if _, err := c.runner.LookPath(c.Path); err != nil {
		return "", errors.WithStack(&CompilationError{Source: src, Command: c.Path, Err: err})
	}

	out := c.OutputPath(src)
	args := append(append([]string{}, c.Flags...), src, "-o", out)
	output, err := c.runner.Run(ctx, c.Path, args...)
	if err != nil {
		return "", errors.WithStack(&CompilationError{
			Source:  src,
			Command: CommandLine(c.Path, args),
			Output:  string(output),
			Err:     err,
		})
	}
	return out, nil
}
