package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"wingspan/internal/attrset"
	"wingspan/internal/extractor"
	"wingspan/internal/llvmir"
)

// Reconciler tags the IR of user-authored functions with a fresh attribute
// set so that later passes can tell them apart from library code.
type Reconciler struct {
	extractor *extractor.Extractor
	synth     *attrset.Synthesizer
}

func NewReconciler(synth *attrset.Synthesizer) (*Reconciler, error) {
	ext, err := extractor.NewExtractor("c")
	if err != nil {
		return nil, err
	}
	return &Reconciler{extractor: ext, synth: synth}, nil
}

// Outcome is everything a reconciliation computed, before or after the
// rewritten module was written.
type Outcome struct {
	Source         *extractor.Result
	Module         *llvmir.Module
	Scan           *llvmir.ScanResult
	Reconciliation llvmir.Reconciliation
	Rewrite        *llvmir.RewriteResult
}

// Plan runs extract, scan, synthesize and rewrite without touching the IR
// file. Extraction and scanning share no data and run concurrently;
// synthesis and rewriting wait for both.
func (r *Reconciler) Plan(ctx context.Context, srcPath, irPath string, report *Report) (*Outcome, error) {
	out := &Outcome{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h := report.BeginStage(StageExtract)
		res, err := r.extractor.ExtractFromFile(gctx, srcPath)
		if err != nil {
			err = stageErr(StageExtract, srcPath, err)
			report.EndStage(h, nil, err)
			return err
		}
		report.EndStage(h, map[string]float64{
			"functions":  float64(len(res.DefinedFunctions())),
			"prototypes": float64(len(res.Prototypes())),
		}, nil)
		out.Source = res
		return nil
	})
	g.Go(func() error {
		h := report.BeginStage(StageScan)
		m, err := llvmir.ReadFile(irPath)
		if err == nil {
			out.Scan, err = llvmir.Scan(m)
		}
		if err != nil {
			err = stageErr(StageScan, irPath, err)
			report.EndStage(h, nil, err)
			return err
		}
		report.EndStage(h, map[string]float64{
			"lines":          float64(m.Len()),
			"functions":      float64(len(out.Scan.Functions)),
			"attribute_sets": float64(len(out.Scan.AttributeLines)),
		}, nil)
		out.Module = m
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Reconciliation = llvmir.Reconcile(out.Source.DefinedFunctions(), out.Scan.Functions)
	set := r.synth.Synthesize(out.Scan.MaxIndex)

	report.IR = irPath
	report.SourceFunctions = out.Source.DefinedFunctions()
	report.Prototypes = out.Source.Prototypes()
	report.Units = out.Source.Units
	report.IRFunctions = out.Scan.Functions
	report.Eligible = out.Reconciliation.Eligible
	report.IROnly = out.Reconciliation.IROnly
	report.SourceOnly = out.Reconciliation.SourceOnly
	report.AttrSet = &AttrSetInfo{
		Index:       set.Index,
		Version:     set.Version,
		Declaration: set.Declaration(),
		PreviousMax: out.Scan.MaxIndex.String(),
	}
	for _, name := range out.Reconciliation.SourceOnly {
		report.AddSignal("source_function_not_in_ir", StageRewrite, "info",
			fmt.Sprintf("%s has a body in %s but no define line in the IR", name, srcPath))
	}
	if len(out.Reconciliation.Eligible) == 0 {
		report.AddSignal("no_eligible_functions", StageRewrite, "warning",
			"no function is defined in both the source and the IR; only the attribute set is added")
	}

	h := report.BeginStage(StageRewrite)
	rw, err := llvmir.Rewrite(out.Module, out.Reconciliation.Eligible, set)
	if err != nil {
		err = stageErr(StageRewrite, irPath, err)
		report.EndStage(h, nil, err)
		return nil, err
	}
	report.EndStage(h, map[string]float64{"repointed": float64(len(rw.Changes))}, nil)
	report.Changes = rw.Changes
	out.Rewrite = rw
	return out, nil
}

// Reconcile plans the rewrite and replaces irPath with the result. On any
// error irPath is left as it was.
func (r *Reconciler) Reconcile(ctx context.Context, srcPath, irPath string, report *Report) (*Outcome, error) {
	out, err := r.Plan(ctx, srcPath, irPath, report)
	if err != nil {
		return nil, err
	}
	if err := out.Rewrite.Module.WriteFile(irPath); err != nil {
		return nil, stageErr(StageRewrite, irPath, err)
	}
	return out, nil
}
