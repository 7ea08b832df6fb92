package llvmir

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wingspan/internal/attrset"
)

func loadSample(t *testing.T) *Module {
	t.Helper()
	m, err := ReadFile(filepath.Join("testdata", "sample.ll"))
	require.NoError(t, err)
	return m
}

func TestScan_Sample(t *testing.T) {
	res, err := Scan(loadSample(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"foo", "bar", "baz"}, res.Functions)
	assert.Equal(t, attrset.IndexOf(1), res.MaxIndex)
	assert.Equal(t, []int{31, 32}, res.AttributeLines)
	assert.Equal(t, 32, res.LastAttributeLine())
	assert.Equal(t, []int{8}, res.DefineLines["foo"])
	assert.False(t, res.Defines("printf"), "declarations are not definitions")
}

func TestScan_MaxIndex(t *testing.T) {
	tests := []struct {
		name string
		ir   string
		want attrset.MaxIndex
	}{
		{name: "none", ir: "define void @f() {\n}\n", want: attrset.NoIndex},
		{name: "gaps", ir: "attributes #3 = { a }\nattributes #11 = { b }\nattributes #7 = { c }\n", want: attrset.IndexOf(11)},
		{name: "zero only", ir: "attributes #0 = { a }\n", want: attrset.IndexOf(0)},
		{name: "indented", ir: "  attributes   #4 = { a }\n", want: attrset.IndexOf(4)},
		{name: "comment ignored", ir: "; attributes #99 = { a }\nattributes #2 = { b }\n", want: attrset.IndexOf(2)},
		{name: "refs are not declarations", ir: "define void @f() #42 {\n}\n", want: attrset.NoIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Scan(Parse("", []byte(tt.ir)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.MaxIndex)
		})
	}
}

func TestScan_MalformedIndex(t *testing.T) {
	for _, line := range []string{
		"attributes #1x = { a }",
		"attributes # = { a }",
		"attributes #99999999999999999999999 = { a }",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := Scan(Parse("bad.ll", []byte("define void @f() #0 {\n}\n"+line+"\n")))
			require.Error(t, err)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, 3, fe.Line)
			assert.Equal(t, "bad.ll", fe.Path)
		})
	}
}

func TestScan_DuplicateDefines(t *testing.T) {
	ir := "define void @f() #0 {\n}\ndefine void @f() #0 {\n}\n"
	res, err := Scan(Parse("", []byte(ir)))
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, res.Functions)
	assert.Equal(t, []int{0, 2}, res.DefineLines["f"])
}

func TestDefinedName(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{line: "define dso_local i32 @main() #0 {", want: "main", ok: true},
		{line: "define internal fastcc void @helper.part.0(ptr %p) #3 {", want: "helper.part.0", ok: true},
		{line: `define void @"quoted name"() {`, want: "quoted name", ok: true},
		{line: "  define void @f ( ) {", want: "f", ok: true},
		{line: "declare i32 @printf(ptr, ...)", ok: false},
		{line: "; define void @commented() {", ok: false},
		{line: "@define = global i32 0", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := DefinedName(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
