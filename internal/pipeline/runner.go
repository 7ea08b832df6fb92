package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"wingspan/internal/storage"
	"wingspan/internal/toolchain"
)

// Ledger records finished runs.
type Ledger interface {
	RecordRun(ctx context.Context, run *storage.Run) (int64, error)
}

// Runner drives a whole compile, reconcile and optimize cycle for one C file.
type Runner struct {
	Compiler   *toolchain.Compiler
	Optimizer  *toolchain.Optimizer
	Reconciler *Reconciler
	Ledger     Ledger
	Progress   *Progress
	// KeepUnoptimized leaves the rewritten .ll next to the optimized one.
	KeepUnoptimized bool

	remove func(string) error
}

// Run executes every stage in order and stops at the first failure. The
// returned report is filled in as far as the run got, including on error.
func (r *Runner) Run(ctx context.Context, srcPath string) (*Report, error) {
	report := NewReport(srcPath)
	err := r.run(ctx, srcPath, report)
	if err != nil {
		report.Fail(err)
	}
	report.Finalize()

	if r.Ledger != nil {
		if _, lerr := r.Ledger.RecordRun(ctx, RunRecord(report)); lerr != nil {
			r.Progress.Warn("could not record run: %v", lerr)
		}
	}
	return report, err
}

func (r *Runner) run(ctx context.Context, srcPath string, report *Report) error {
	if unknown := toolchain.UnknownPasses(r.Optimizer.Passes); len(unknown) > 0 {
		msg := "passes not registered by the Wingspan plugin: " + strings.Join(unknown, ", ")
		report.AddSignal("unknown_pass", StageOptimize, "warning", msg)
		r.Progress.Warn("%s", msg)
	}

	h := report.BeginStage(StageCompile)
	irPath, err := r.Compiler.Compile(ctx, srcPath)
	if err != nil {
		err = stageErr(StageCompile, srcPath, err)
		report.EndStage(h, nil, err)
		return err
	}
	report.EndStage(h, nil, nil)
	report.IR = irPath
	r.Progress.Clang("Successfully compiled into LLVM IR at: %s", irPath)

	out, err := r.Reconciler.Reconcile(ctx, srcPath, irPath, report)
	if err != nil {
		return err
	}
	r.Progress.Reconcile("Tagged %d of %d IR functions with attribute set #%d in %s",
		len(out.Rewrite.Changes), len(out.Scan.Functions), out.Rewrite.Set.Index, irPath)

	h = report.BeginStage(StageOptimize)
	optPath, err := r.Optimizer.Optimize(ctx, irPath)
	if err != nil {
		err = stageErr(StageOptimize, irPath, err)
		report.EndStage(h, nil, err)
		return err
	}
	report.EndStage(h, nil, nil)
	report.Optimized = optPath
	r.Progress.Opt("Successfully ran %s on %s. Optimized code is at %s",
		strings.Join(r.Optimizer.Passes, ","), irPath, optPath)

	if !r.KeepUnoptimized {
		remove := r.remove
		if remove == nil {
			remove = os.Remove
		}
		// The optimized output exists at this point, so a leftover .ll is
		// only worth a warning.
		if err := remove(irPath); err != nil && !os.IsNotExist(err) {
			msg := fmt.Sprintf("could not remove intermediate IR %s: %v", irPath, err)
			report.AddSignal("cleanup_failed", StageOptimize, "warning", msg)
			r.Progress.Warn("%s", msg)
		} else {
			report.IR = ""
		}
	}
	return nil
}

// RunRecord converts a report into a ledger row.
func RunRecord(report *Report) *storage.Run {
	run := &storage.Run{
		Source:    report.Source,
		IR:        report.IR,
		Optimized: report.Optimized,
		AttrIndex: -1,
		Status:    report.Status,
		Stage:     report.FailedStage,
		Error:     report.Error,
		Functions: make([]storage.RunFunction, 0, len(report.Changes)),
	}
	if t, err := time.Parse(time.RFC3339, report.StartedAt); err == nil {
		run.StartedAt = t
	}
	if report.AttrSet != nil {
		run.AttrIndex = report.AttrSet.Index
		run.AttrProfile = report.AttrSet.Version
	}
	for _, c := range report.Changes {
		run.Functions = append(run.Functions, storage.RunFunction{
			Name:     c.Function,
			SymbolID: report.SymbolID(c.Function),
			Line:     c.Line,
			OldRef:   c.OldRef,
			NewRef:   c.NewRef,
		})
	}
	return run
}
