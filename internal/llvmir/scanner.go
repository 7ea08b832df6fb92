package llvmir

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"wingspan/internal/attrset"
)

var (
	// The first '@' on a define line introduces the function name. Names are
	// either bare LLVM identifiers or quoted strings.
	defineRe = regexp.MustCompile(`^\s*define\s[^@]*@("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+)\s*\(`)

	attributesRe = regexp.MustCompile(`^\s*attributes\s+#([^\s=]*)\s*=`)

	attributeRefRe = regexp.MustCompile(`#[0-9]+\b`)
)

// FormatError reports an IR line that breaks the line-level grammar this
// package relies on.
type FormatError struct {
	Path   string
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *FormatError) Error() string {
	path := e.Path
	if path == "" {
		path = "<ir>"
	}
	return fmt.Sprintf("%s:%d: %s: %q", path, e.Line, e.Reason, e.Text)
}

// ScanResult is what Scan learns about a module.
type ScanResult struct {
	// Functions lists defined function names in first-definition order.
	Functions []string
	// DefineLines maps each name to every 0-based line defining it.
	DefineLines map[string][]int
	// AttributeLines holds the 0-based indexes of attribute-set declarations.
	AttributeLines []int
	MaxIndex       attrset.MaxIndex
}

// LastAttributeLine returns the index of the last attribute-set
// declaration, or -1 when the module has none.
func (r *ScanResult) LastAttributeLine() int {
	if len(r.AttributeLines) == 0 {
		return -1
	}
	return r.AttributeLines[len(r.AttributeLines)-1]
}

// Defines reports whether name has a define line.
func (r *ScanResult) Defines(name string) bool {
	_, ok := r.DefineLines[name]
	return ok
}

// Scan collects defined function names and the highest attribute-set index.
// Lines are independent; nothing carries over from one line to the next.
func Scan(m *Module) (*ScanResult, error) {
	res := &ScanResult{
		Functions:   []string{},
		DefineLines: make(map[string][]int),
	}
	for i := 0; i < m.Len(); i++ {
		text := m.Line(i)

		if name, ok := DefinedName(text); ok {
			if _, seen := res.DefineLines[name]; !seen {
				res.Functions = append(res.Functions, name)
			}
			res.DefineLines[name] = append(res.DefineLines[name], i)
			continue
		}

		index, ok, err := attributeIndex(text)
		if err != nil {
			return nil, errors.WithStack(&FormatError{Path: m.Path, Line: i + 1, Text: text, Reason: err.Error()})
		}
		if !ok {
			continue
		}
		res.AttributeLines = append(res.AttributeLines, i)
		if !res.MaxIndex.Valid || index > res.MaxIndex.Value {
			res.MaxIndex = attrset.IndexOf(index)
		}
	}
	return res, nil
}

// DefinedName extracts the function name from a define line.
func DefinedName(text string) (string, bool) {
	match := defineRe.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	name := match[1]
	if strings.HasPrefix(name, `"`) {
		name = strings.TrimSuffix(strings.TrimPrefix(name, `"`), `"`)
	}
	return name, true
}

// attributeRefs returns the [start, end) offsets of the #N tokens on a
// define line. Only text after the parameter list counts, and quoted
// strings and trailing ; comments are skipped, so @"f#1" or section "#5"
// never match.
func attributeRefs(text string) [][]int {
	loc := defineRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	// loc[1] is just past the '(' opening the parameter list.
	i, depth := loc[1], 1
	for i < len(text) && depth > 0 {
		switch text[i] {
		case '"':
			i = skipQuoted(text, i)
			continue
		case '(':
			depth++
		case ')':
			depth--
		}
		i++
	}
	if depth > 0 {
		return nil
	}

	var refs [][]int
	start := i
	flush := func(end int) {
		for _, m := range attributeRefRe.FindAllStringIndex(text[start:end], -1) {
			refs = append(refs, []int{start + m[0], start + m[1]})
		}
	}
	for i < len(text) {
		switch text[i] {
		case '"':
			flush(i)
			i = skipQuoted(text, i)
			start = i
			continue
		case ';':
			flush(i)
			return refs
		}
		i++
	}
	flush(len(text))
	return refs
}

// skipQuoted returns the offset just past the string starting at text[i].
func skipQuoted(text string, i int) int {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '"':
			return j + 1
		}
	}
	return len(text)
}

func isAttributeDecl(text string) bool {
	return attributesRe.MatchString(text)
}

func attributeIndex(text string) (int, bool, error) {
	match := attributesRe.FindStringSubmatch(text)
	if match == nil {
		return 0, false, nil
	}
	digits := match[1]
	if digits == "" {
		return 0, false, errors.New("attribute set without an index")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false, errors.Newf("malformed attribute set index %q", digits)
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false, errors.Newf("attribute set index %s out of range", digits)
	}
	return index, true, nil
}
