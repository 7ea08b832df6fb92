// Package llvmir reads, scans and rewrites textual LLVM IR modules one line
// at a time. It understands exactly two line shapes, `define ... @name(`
// and `attributes #N = { ... }`; every other line is carried through
// byte for byte.
package llvmir

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Line is one line of a module and the terminator that followed it in the
// input. The last line of a file without a final newline has an empty EOL.
type Line struct {
	Text string
	EOL  string
}

// Module is a textual IR module as an ordered sequence of lines.
type Module struct {
	Path  string
	lines []Line
	eol   string
}

// Parse splits data into lines, remembering each line's terminator.
func Parse(path string, data []byte) *Module {
	m := &Module{Path: path, eol: "\n"}
	if bytes.Contains(data, []byte("\r\n")) {
		m.eol = "\r\n"
	}
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			m.lines = append(m.lines, Line{Text: string(data)})
			break
		}
		text, eol := data[:i], "\n"
		if bytes.HasSuffix(text, []byte("\r")) {
			text, eol = text[:len(text)-1], "\r\n"
		}
		m.lines = append(m.lines, Line{Text: string(text), EOL: eol})
		data = data[i+1:]
	}
	return m
}

// ReadFile loads a module from disk.
func ReadFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read IR file %s", path)
	}
	return Parse(path, data), nil
}

// Len returns the number of lines.
func (m *Module) Len() int { return len(m.lines) }

// Line returns the text of line i (0-based), without its terminator.
func (m *Module) Line(i int) string { return m.lines[i].Text }

// Lines returns a copy of every line's text.
func (m *Module) Lines() []string {
	out := make([]string, len(m.lines))
	for i, l := range m.lines {
		out[i] = l.Text
	}
	return out
}

// EOL returns the line terminator used for lines this package inserts.
func (m *Module) EOL() string { return m.eol }

// Clone returns a deep copy that can be mutated independently.
func (m *Module) Clone() *Module {
	c := &Module{Path: m.Path, eol: m.eol, lines: make([]Line, len(m.lines))}
	copy(c.lines, m.lines)
	return c
}

// insertAfter places text after line i. i == -1 inserts at the top and
// i == Len()-1 appends. A final line without a terminator keeps that
// property: the inserted line becomes the unterminated one.
func (m *Module) insertAfter(i int, text string) int {
	at := i + 1
	line := Line{Text: text, EOL: m.eol}
	if at == len(m.lines) && at > 0 && m.lines[at-1].EOL == "" {
		m.lines[at-1].EOL = m.eol
		line.EOL = ""
	}
	m.lines = append(m.lines, Line{})
	copy(m.lines[at+1:], m.lines[at:])
	m.lines[at] = line
	return at
}

func (m *Module) replace(i int, text string) {
	m.lines[i].Text = text
}

// Bytes serializes the module with every line's original terminator.
func (m *Module) Bytes() []byte {
	var buf bytes.Buffer
	for _, l := range m.lines {
		buf.WriteString(l.Text)
		buf.WriteString(l.EOL)
	}
	return buf.Bytes()
}

// WriteFile replaces path with the module's contents. The data goes to a
// temporary file in the same directory first, so a failed write leaves the
// original untouched.
func (m *Module) WriteFile(path string) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(m.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", tmpName)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return errors.Wrapf(err, "failed to set mode on %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", path)
	}
	return nil
}
