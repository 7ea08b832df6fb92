package extractor

import sitter "github.com/smacker/go-tree-sitter"

// CodeUnit is one function definition or prototype found in a source file.
type CodeUnit struct {
	ID          string           `json:"id"`
	Filepath    string           `json:"filepath"`
	Language    string           `json:"language"`
	StartLine   int              `json:"start_line"`
	EndLine     int              `json:"end_line"`
	UnitType    string           `json:"unit_type"` // "function" or "prototype"
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Details     CFunctionDetails `json:"details"`
}

// Unit types.
const (
	// UnitFunction is a function with a body.
	UnitFunction = "function"
	// UnitPrototype is a function declaration without a body.
	UnitPrototype = "prototype"
)

// NodeKind is the closed set of syntax node shapes the extraction visitor
// distinguishes.
type NodeKind int

// Node kinds.
const (
	KindOther NodeKind = iota
	KindFunctionDefinition
	KindDeclaration
)

func (k NodeKind) String() string {
	switch k {
	case KindFunctionDefinition:
		return "function_definition"
	case KindDeclaration:
		return "declaration"
	default:
		return "other"
	}
}

// LanguageExtractor defines the interface that each language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	Classify(node *sitter.Node) NodeKind
	// ExtractUnits returns the units a classified node declares. A
	// declaration may declare several functions at once.
	ExtractUnits(kind NodeKind, node *sitter.Node, sourceCode []byte, filepath string) []*CodeUnit
}
