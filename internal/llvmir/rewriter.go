package llvmir

import (
	"github.com/cockroachdb/errors"

	"wingspan/internal/attrset"
)

// Reconciliation splits function names across the source and IR namespaces.
// Names are compared by plain string equality.
type Reconciliation struct {
	// Eligible names are defined in both, in IR definition order.
	Eligible []string
	// IROnly names come from libraries, the runtime or the compiler itself.
	IROnly []string
	// SourceOnly names have a body in the source but no define line,
	// typically because they were inlined away.
	SourceOnly []string
}

// Reconcile intersects the source-defined and IR-defined name sets.
func Reconcile(source, ir []string) Reconciliation {
	inSource := make(map[string]bool, len(source))
	for _, name := range source {
		inSource[name] = true
	}
	inIR := make(map[string]bool, len(ir))

	r := Reconciliation{Eligible: []string{}, IROnly: []string{}, SourceOnly: []string{}}
	for _, name := range ir {
		if inIR[name] {
			continue
		}
		inIR[name] = true
		if inSource[name] {
			r.Eligible = append(r.Eligible, name)
		} else {
			r.IROnly = append(r.IROnly, name)
		}
	}
	reported := make(map[string]bool)
	for _, name := range source {
		if !inIR[name] && !reported[name] {
			reported[name] = true
			r.SourceOnly = append(r.SourceOnly, name)
		}
	}
	return r
}

// Change describes one repointed define line.
type Change struct {
	Function string `json:"function"`
	Line     int    `json:"line"` // 1-based, in the input module
	OldRef   string `json:"old_ref"`
	NewRef   string `json:"new_ref"`
	Before   string `json:"-"`
	After    string `json:"-"`
}

// RewriteResult is the rewritten module and what was done to it.
type RewriteResult struct {
	Module *Module
	Set    attrset.Set
	// InsertedLine is the 0-based index of the new declaration in Module.
	InsertedLine int
	Changes      []Change
}

// Rewrite declares set in a copy of m and repoints the define lines of every
// eligible function at it. m itself is never modified.
//
// The declaration goes right after the last existing attribute-set line, or
// at the end of the module when there is none. On each eligible define line
// only the last #N token changes. Every other line, including define lines
// of ineligible functions, is carried over byte for byte.
func Rewrite(m *Module, eligible []string, set attrset.Set) (*RewriteResult, error) {
	want := make(map[string]bool, len(eligible))
	for _, name := range eligible {
		want[name] = true
	}

	type edit struct {
		line int
		text string
	}
	var edits []edit
	var changes []Change
	lastAttr := -1

	for i := 0; i < m.Len(); i++ {
		text := m.Line(i)
		if isAttributeDecl(text) {
			lastAttr = i
			continue
		}
		name, ok := DefinedName(text)
		if !ok || !want[name] {
			continue
		}
		refs := attributeRefs(text)
		if len(refs) == 0 {
			return nil, errors.WithStack(&FormatError{
				Path:   m.Path,
				Line:   i + 1,
				Text:   text,
				Reason: "define line of " + name + " has no attribute set reference",
			})
		}
		last := refs[len(refs)-1]
		newText := text[:last[0]] + set.Ref() + text[last[1]:]
		edits = append(edits, edit{line: i, text: newText})
		changes = append(changes, Change{
			Function: name,
			Line:     i + 1,
			OldRef:   text[last[0]:last[1]],
			NewRef:   set.Ref(),
			Before:   text,
			After:    newText,
		})
	}

	out := m.Clone()
	if lastAttr < 0 {
		lastAttr = out.Len() - 1
	}
	inserted := out.insertAfter(lastAttr, set.Declaration())
	for _, e := range edits {
		line := e.line
		if line >= inserted {
			line++
		}
		out.replace(line, e.text)
	}

	if changes == nil {
		changes = []Change{}
	}
	return &RewriteResult{Module: out, Set: set, InsertedLine: inserted, Changes: changes}, nil
}
