package toolchain

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// KnownPasses are the pipeline names the Wingspan plugin can register.
var KnownPasses = []string{
	"wingspan-mem2reg",
	"wingspan-constant-folder",
	"wingspan-dce",
	"wingspan-inline",
	"wingspan-licm",
	"wingspan-simplify-cfg",
	"wingspan-strength-reducer",
}

// DefaultPass is the pass run when none is configured.
const DefaultPass = "wingspan-mem2reg"

// UnknownPasses returns the entries of passes that are not in KnownPasses.
func UnknownPasses(passes []string) []string {
	var unknown []string
	for _, p := range passes {
		found := false
		for _, k := range KnownPasses {
			if p == k {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, p)
		}
	}
	return unknown
}

// Optimizer runs opt with the Wingspan pass plugin loaded.
type Optimizer struct {
	Path   string
	Plugin string
	Passes []string
	runner Runner
}

// NewOptimizer returns an optimizer. A nil runner falls back to ExecRunner.
func NewOptimizer(path, plugin string, passes []string, runner Runner) *Optimizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if len(passes) == 0 {
		passes = []string{DefaultPass}
	}
	return &Optimizer{Path: path, Plugin: plugin, Passes: passes, runner: runner}
}

// OutputPath appends -opt to the base name: foo.ll becomes foo-opt.ll.
func (o *Optimizer) OutputPath(ir string) string {
	ext := filepath.Ext(ir)
	return strings.TrimSuffix(ir, ext) + "-opt" + ext
}

// Optimize runs the configured passes over ir and returns the output path.
func (o *Optimizer) Optimize(ctx context.Context, ir string) (string, error) {
	if _, err := o.runner.LookPath(o.Path); err != nil {
		return "", errors.WithStack(&OptimizationError{Input: ir, Command: o.Path, Err: err})
	}
	if _, err := os.Stat(o.Plugin); err != nil {
		return "", errors.WithStack(&OptimizationError{Input: ir, Command: o.Path, Err: errors.Wrap(err, "pass plugin")})
	}

	out := o.OutputPath(ir)
	// Pass names go to opt unquoted; opt does its own pipeline parsing.
	args := []string{
		"--load-pass-plugin", o.Plugin,
		"--passes=" + strings.Join(o.Passes, ","),
		"-S",
		"-o", out,
		ir,
	}
	output, err := o.runner.Run(ctx, o.Path, args...)
	if err != nil {
		return "", errors.WithStack(&OptimizationError{
			Input:   ir,
			Command: CommandLine(o.Path, args),
			Output:  string(output),
			Err:     err,
		})
	}
	return out, nil
}
