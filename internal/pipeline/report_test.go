package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_FinalizeOrdersSignals(t *testing.T) {
	r := NewReport("prog.c")
	r.AddSignal("source_function_not_in_ir", StageRewrite, "info", "inlined has no define line")
	r.AddSignal("unknown_pass", StageOptimize, "Warning", "loop-vectorize")
	r.AddSignal("", StageRewrite, "info", "dropped")
	r.Finalize()

	require.Len(t, r.Signals, 2)
	assert.Equal(t, "unknown_pass", r.Signals[0].Code)
	assert.Equal(t, "warning", r.Signals[0].Severity)
	assert.Equal(t, "ok", r.Status)
}

func TestReport_SaveJSON(t *testing.T) {
	r := NewReport("prog.c")
	h := r.BeginStage(StageScan)
	r.EndStage(h, map[string]float64{"lines": 24, " ": 1}, nil)

	path := filepath.Join(t.TempDir(), "reports", "run.json")
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ok", decoded["status"])
	assert.Equal(t, []interface{}{}, decoded["changes"])

	stages := decoded["stages"].([]interface{})
	require.Len(t, stages, 1)
	counters := stages[0].(map[string]interface{})["counters"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"lines": float64(24)}, counters)
}
