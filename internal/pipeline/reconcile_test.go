package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingspan/internal/attrset"
	"wingspan/internal/extractor"
	"wingspan/internal/llvmir"
)

// copyFixture copies testdata/name into dir and returns the new path.
func copyFixture(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	dst := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(dst, data, 0644))
	return dst
}

func newReconciler(t *testing.T) *Reconciler {
	t.Helper()
	synth, err := attrset.NewSynthesizer(attrset.DefaultProfile())
	require.NoError(t, err)
	r, err := NewReconciler(synth)
	require.NoError(t, err)
	return r
}

func TestReconciler_Reconcile(t *testing.T) {
	dir := t.TempDir()
	src := copyFixture(t, dir, "prog.c")
	ir := copyFixture(t, dir, "prog.ll")
	before, err := os.ReadFile(ir)
	require.NoError(t, err)

	report := NewReport(src)
	out, err := newReconciler(t).Reconcile(context.Background(), src, ir, report)
	require.NoError(t, err)

	assert.Equal(t, []string{"foo"}, out.Reconciliation.Eligible)
	assert.Equal(t, []string{"bar", "baz"}, out.Reconciliation.IROnly)
	assert.Equal(t, 2, out.Rewrite.Set.Index)

	after, err := os.ReadFile(ir)
	require.NoError(t, err)
	lines := strings.Split(string(after), "\n")
	old := strings.Split(string(before), "\n")
	require.Len(t, lines, len(old)+1)

	assert.Equal(t, "define dso_local i32 @foo(i32 noundef %0, i32 noundef %1) #2 {", lines[5])
	assert.Equal(t, old[10], lines[10], "bar keeps its attribute set")
	assert.Equal(t, old[14], lines[14], "baz keeps its attribute set")
	assert.Equal(t, "attributes #2 = "+attrset.DefaultBody, lines[20])
	assert.Equal(t, old[20:], lines[21:])

	t.Run("Report", func(t *testing.T) {
		assert.Equal(t, []string{"foo"}, report.SourceFunctions)
		assert.Equal(t, []string{"bar"}, report.Prototypes)
		require.Len(t, report.Units, 2)
		assert.Equal(t, "bar", report.Units[0].Name)
		assert.Equal(t, "int foo(int a, int b)", report.Units[1].Details.Signature)
		assert.Equal(t, report.Units[1].ID, report.SymbolID("foo"))
		assert.Empty(t, report.SymbolID("bar"), "prototypes have no definition ID")
		assert.Equal(t, []string{"foo", "bar", "baz"}, report.IRFunctions)
		require.NotNil(t, report.AttrSet)
		assert.Equal(t, "#1", report.AttrSet.PreviousMax)
		assert.Equal(t, attrset.DefaultVersion, report.AttrSet.Version)
		require.Len(t, report.Changes, 1)
		c := report.Changes[0]
		assert.Equal(t, "foo", c.Function)
		assert.Equal(t, 6, c.Line)
		assert.Equal(t, "#0", c.OldRef)
		assert.Equal(t, "#2", c.NewRef)

		names := make([]string, 0, len(report.Stages))
		for _, s := range report.Stages {
			names = append(names, s.Name)
			assert.Equal(t, "ok", s.Status)
		}
		assert.ElementsMatch(t, []string{"extract", "scan", "rewrite"}, names)
	})
}

func TestReconciler_PlanLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	src := copyFixture(t, dir, "prog.c")
	ir := copyFixture(t, dir, "prog.ll")
	before, err := os.ReadFile(ir)
	require.NoError(t, err)

	out, err := newReconciler(t).Plan(context.Background(), src, ir, NewReport(src))
	require.NoError(t, err)
	assert.Len(t, out.Rewrite.Changes, 1)

	after, err := os.ReadFile(ir)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestReconciler_Failures(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		ir     string
		stage  Stage
		target interface{}
	}{
		{name: "Unparseable source", src: "broken.c", ir: "prog.ll", stage: StageExtract, target: new(*extractor.ParseError)},
		{name: "Malformed attribute index", src: "prog.c", ir: "badattr.ll", stage: StageScan, target: new(*llvmir.FormatError)},
		{name: "Eligible define without reference", src: "prog.c", ir: "noref.ll", stage: StageRewrite, target: new(*llvmir.FormatError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := copyFixture(t, dir, tt.src)
			ir := copyFixture(t, dir, tt.ir)
			before, err := os.ReadFile(ir)
			require.NoError(t, err)

			report := NewReport(src)
			_, err = newReconciler(t).Reconcile(context.Background(), src, ir, report)
			require.Error(t, err)

			stage, ok := StageOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
			assert.True(t, errors.As(err, tt.target))

			after, err := os.ReadFile(ir)
			require.NoError(t, err)
			assert.Equal(t, string(before), string(after), "IR file must not change")
		})
	}
}

func TestReconciler_MissingIR(t *testing.T) {
	dir := t.TempDir()
	src := copyFixture(t, dir, "prog.c")

	_, err := newReconciler(t).Reconcile(context.Background(), src, filepath.Join(dir, "missing.ll"), NewReport(src))
	require.Error(t, err)
	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageScan, stage)
}
