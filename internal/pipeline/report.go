package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"wingspan/internal/extractor"
	"wingspan/internal/llvmir"
)

// ReportSignal is a finding worth surfacing that did not stop the run.
type ReportSignal struct {
	Code     string `json:"code"`
	Stage    string `json:"stage"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// StageMetric records the outcome and timing of one stage.
type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// AttrSetInfo describes the attribute set a run declared.
type AttrSetInfo struct {
	Index       int    `json:"index"`
	Version     string `json:"version"`
	Declaration string `json:"declaration"`
	PreviousMax string `json:"previous_max"`
}

// Report describes one run: what each namespace defines, what was
// rewritten, and how long each stage took.
type Report struct {
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	Source    string `json:"source"`
	IR        string `json:"ir,omitempty"`
	Optimized string `json:"optimized,omitempty"`

	SourceFunctions []string              `json:"source_functions"`
	Prototypes      []string              `json:"prototypes"`
	Units           []*extractor.CodeUnit `json:"units"`
	IRFunctions     []string              `json:"ir_functions"`
	Eligible        []string              `json:"eligible"`
	IROnly          []string              `json:"ir_only"`
	SourceOnly      []string              `json:"source_only"`
	AttrSet         *AttrSetInfo          `json:"attrset,omitempty"`
	Changes         []llvmir.Change       `json:"changes"`

	Status      string         `json:"status"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	Stages      []StageMetric  `json:"stages"`
	Signals     []ReportSignal `json:"signals,omitempty"`

	mu sync.Mutex
}

// StageHandle is returned by BeginStage and passed back to EndStage.
type StageHandle struct {
	name    string
	started time.Time
}

// NewReport starts a report for the run on source.
func NewReport(source string) *Report {
	return &Report{
		Version:         "v1",
		StartedAt:       time.Now().UTC().Format(time.RFC3339),
		Source:          source,
		SourceFunctions: []string{},
		Prototypes:      []string{},
		Units:           []*extractor.CodeUnit{},
		IRFunctions:     []string{},
		Eligible:        []string{},
		IROnly:          []string{},
		SourceOnly:      []string{},
		Changes:         []llvmir.Change{},
		Status:          "running",
		Stages:          []StageMetric{},
		Signals:         []ReportSignal{},
	}
}

// BeginStage marks the start of stage.
func (r *Report) BeginStage(stage Stage) StageHandle {
	return StageHandle{name: string(stage), started: time.Now().UTC()}
}

// EndStage may be called from concurrently running stages.
func (r *Report) EndStage(h StageHandle, counters map[string]float64, err error) {
	if r == nil || strings.TrimSpace(h.name) == "" {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	r.mu.Lock()
	r.Stages = append(r.Stages, m)
	r.mu.Unlock()
}

// AddSignal records a signal. Signals missing any field are dropped.
func (r *Report) AddSignal(code string, stage Stage, severity, message string) {
	if r == nil {
		return
	}
	s := ReportSignal{
		Code:     strings.TrimSpace(code),
		Stage:    string(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.mu.Lock()
	r.Signals = append(r.Signals, s)
	r.mu.Unlock()
}

// Fail marks the report as failed at the stage carried by err, if any.
func (r *Report) Fail(err error) {
	if r == nil || err == nil {
		return
	}
	r.Status = "failed"
	r.Error = err.Error()
	if se, ok := asStageError(err); ok {
		r.FailedStage = string(se.Stage)
	}
}

// Finalize orders stages and signals deterministically.
func (r *Report) Finalize() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Status == "running" {
		r.Status = "ok"
	}
	sort.SliceStable(r.Stages, func(i, j int) bool {
		return r.Stages[i].StartedAt < r.Stages[j].StartedAt
	})
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
}

// JSON finalizes the report and renders it indented.
func (r *Report) JSON() ([]byte, error) {
	r.Finalize()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes the JSON report to path, creating parent directories.
func (r *Report) Save(path string) error {
	if r == nil {
		return nil
	}
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	case "info":
		return 1
	default:
		return 0
	}
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SymbolID returns the stable ID of the source definition of name, or ""
// when the source has no such definition.
func (r *Report) SymbolID(name string) string {
	for _, u := range r.Units {
		if u.UnitType == extractor.UnitFunction && u.Name == name {
			return u.ID
		}
	}
	return ""
}
