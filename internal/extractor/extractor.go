package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	sitter "github.com/smacker/go-tree-sitter"
)

// ParseError reports source text that the grammar rejected after
// preprocessor directives were stripped.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Snippet string
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
	}
	return fmt.Sprintf("%s:%d:%d: syntax error near %q", e.Path, e.Line, e.Column, e.Snippet)
}

// Result holds every unit extracted from one source file, in source order.
type Result struct {
	Path  string
	Units []*CodeUnit
}

// DefinedFunctions returns the names of functions that have a body.
func (r *Result) DefinedFunctions() []string {
	return r.names(UnitFunction)
}

// Prototypes returns the names of functions that are only declared.
func (r *Result) Prototypes() []string {
	return r.names(UnitPrototype)
}

func (r *Result) names(unitType string) []string {
	names := []string{}
	for _, u := range r.Units {
		if u.UnitType == unitType {
			names = append(names, u.Name)
		}
	}
	return names
}

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "c":
		langExt = &CExtractor{}
	default:
		return nil, errors.Newf("unsupported language: %s", lang)
	}
	return &Extractor{langExtractor: langExt, langName: lang}, nil
}

// ExtractFromFile reads and parses a single source file.
func (e *Extractor) ExtractFromFile(ctx context.Context, filepath string) (*Result, error) {
	sourceCode, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", filepath)
	}
	return e.ExtractFromSource(ctx, filepath, sourceCode)
}

// ExtractFromSource strips preprocessor directives, parses the remaining
// text and collects function definitions and prototypes in source order.
func (e *Extractor) ExtractFromSource(ctx context.Context, filepath string, sourceCode []byte) (*Result, error) {
	stripped := StripDirectives(sourceCode)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, stripped)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse file %s", filepath)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, newParseError(filepath, root, stripped)
	}

	result := &Result{Path: filepath, Units: []*CodeUnit{}}
	Walk(root, e.langExtractor.Classify, func(kind NodeKind, node *sitter.Node) {
		if kind == KindOther {
			return
		}
		result.Units = append(result.Units, e.langExtractor.ExtractUnits(kind, node, stripped, filepath)...)
	})
	return result, nil
}

// Walk visits every named node below root in document order.
func Walk(root *sitter.Node, classify func(*sitter.Node) NodeKind, visit func(NodeKind, *sitter.Node)) {
	if root == nil {
		return
	}
	visit(classify(root), root)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		Walk(root.NamedChild(i), classify, visit)
	}
}

// StripDirectives blanks every line whose first non-whitespace character is
// '#', together with its backslash continuations. Line count is preserved so
// parse errors still point at the original line.
func StripDirectives(sourceCode []byte) []byte {
	lines := bytes.SplitAfter(sourceCode, []byte("\n"))
	var out bytes.Buffer
	out.Grow(len(sourceCode))

	inDirective := false
	for _, line := range lines {
		body, eol := splitEOL(line)
		trimmed := bytes.TrimLeft(body, " \t\f\v")
		if inDirective || bytes.HasPrefix(trimmed, []byte("#")) {
			inDirective = bytes.HasSuffix(bytes.TrimRight(body, " \t"), []byte("\\"))
			out.Write(eol)
			continue
		}
		out.Write(line)
	}
	return out.Bytes()
}

func splitEOL(line []byte) (body, eol []byte) {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return line[:len(line)-2], line[len(line)-2:]
	case bytes.HasSuffix(line, []byte("\n")):
		return line[:len(line)-1], line[len(line)-1:]
	}
	return line, nil
}

func newParseError(filepath string, root *sitter.Node, sourceCode []byte) error {
	bad := firstErrorNode(root)
	if bad == nil {
		bad = root
	}
	pe := &ParseError{
		Path:   filepath,
		Line:   int(bad.StartPoint().Row + 1),
		Column: int(bad.StartPoint().Column + 1),
	}
	if !bad.IsMissing() {
		snippet := bad.Content(sourceCode)
		if i := strings.IndexByte(snippet, '\n'); i >= 0 {
			snippet = snippet[:i]
		}
		if len(snippet) > 40 {
			snippet = snippet[:40]
		}
		pe.Snippet = snippet
	}
	return errors.WithStack(pe)
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil || !node.HasError() {
		return nil
	}
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.IsMissing() || child.Type() == "ERROR" {
			return child
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return node
}
