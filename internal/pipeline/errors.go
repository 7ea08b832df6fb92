package pipeline

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageCompile  Stage = "compile"
	StageExtract  Stage = "extract"
	StageScan     Stage = "scan"
	StageRewrite  Stage = "rewrite"
	StageOptimize Stage = "optimize"
)

// StageError records which stage stopped the run. The underlying
// extractor.ParseError, llvmir.FormatError, toolchain.CompilationError or
// toolchain.OptimizationError stays reachable through errors.As.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, path string, err error) error {
	return &StageError{Stage: stage, Path: path, Err: err}
}

// StageOf returns the stage that produced err.
func StageOf(err error) (Stage, bool) {
	if se, ok := asStageError(err); ok {
		return se.Stage, true
	}
	return "", false
}

func asStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
