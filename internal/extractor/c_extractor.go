package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// CExtractor implements LanguageExtractor for C.
type CExtractor struct{}

func (x *CExtractor) GetLanguage() *sitter.Language {
	return c.GetLanguage()
}

func (x *CExtractor) Classify(node *sitter.Node) NodeKind {
	switch node.Type() {
	case "function_definition":
		if node.ChildByFieldName("declarator") != nil && node.ChildByFieldName("body") != nil {
			return KindFunctionDefinition
		}
	case "declaration":
		return KindDeclaration
	}
	return KindOther
}

func (x *CExtractor) ExtractUnits(kind NodeKind, node *sitter.Node, sourceCode []byte, filepath string) []*CodeUnit {
	var units []*CodeUnit
	switch kind {
	case KindFunctionDefinition:
		if unit := x.extractFunctionUnit(node, sourceCode, filepath); unit != nil {
			units = append(units, unit)
		}
	case KindDeclaration:
		units = x.extractPrototypeUnits(node, sourceCode, filepath)
	}

	for _, unit := range units {
		unit.Language = "c"
		unit.ID = BuildStableSymbolID(unit)
	}
	return units
}

// Extraction Logic

func (x *CExtractor) extractFunctionUnit(node *sitter.Node, sourceCode []byte, filepath string) *CodeUnit {
	declarator := node.ChildByFieldName("declarator")
	name := declaratorName(declarator, sourceCode)
	if name == "" {
		return nil
	}

	details := CFunctionDetails{
		ReturnType: typeText(node, sourceCode),
		Storage:    storageSpecifiers(node, sourceCode),
		Parameters: []Param{},
		HasBody:    true,
	}
	if fn := functionDeclarator(declarator); fn != nil {
		details.Parameters, details.Variadic = x.extractParams(fn.ChildByFieldName("parameters"), sourceCode)
	}
	body := node.ChildByFieldName("body")
	details.Signature = strings.TrimSpace(string(sourceCode[node.StartByte():body.StartByte()]))

	return &CodeUnit{
		Filepath:    filepath,
		StartLine:   int(node.StartPoint().Row + 1),
		EndLine:     int(node.EndPoint().Row + 1),
		UnitType:    UnitFunction,
		Name:        name,
		Description: x.extractDocComment(node, sourceCode),
		Details:     details,
	}
}

// extractPrototypeUnits reports every function declarator of a declaration,
// so int a(void), b(void); yields two units. Variable declarations,
// including function pointers, yield none.
func (x *CExtractor) extractPrototypeUnits(node *sitter.Node, sourceCode []byte, filepath string) []*CodeUnit {
	var units []*CodeUnit
	returnType := typeText(node, sourceCode)
	storage := storageSpecifiers(node, sourceCode)
	doc := x.extractDocComment(node, sourceCode)

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "declarator" {
			continue
		}
		declarator := node.Child(i)
		if !declaresFunction(declarator) {
			continue
		}
		name := declaratorName(declarator, sourceCode)
		if name == "" {
			continue
		}

		details := CFunctionDetails{
			ReturnType: returnType,
			Storage:    storage,
			Parameters: []Param{},
			Signature:  declarationSignature(node, declarator, sourceCode),
		}
		if fn := functionDeclarator(declarator); fn != nil {
			details.Parameters, details.Variadic = x.extractParams(fn.ChildByFieldName("parameters"), sourceCode)
		}

		units = append(units, &CodeUnit{
			Filepath:    filepath,
			StartLine:   int(declarator.StartPoint().Row + 1),
			EndLine:     int(declarator.EndPoint().Row + 1),
			UnitType:    UnitPrototype,
			Name:        name,
			Description: doc,
			Details:     details,
		})
	}
	return units
}

// declarationSignature renders one declarator of a declaration with the
// declaration's specifiers, without the other declarators or the ';'.
func declarationSignature(node, declarator *sitter.Node, sourceCode []byte) string {
	var parts []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.StartByte() >= declarator.StartByte() {
			break
		}
		if !child.IsNamed() || child.Type() == "comment" || node.FieldNameForChild(i) == "declarator" {
			continue
		}
		parts = append(parts, child.Content(sourceCode))
	}
	parts = append(parts, declarator.Content(sourceCode))
	return strings.Join(parts, " ")
}

func (x *CExtractor) extractDocComment(node *sitter.Node, sourceCode []byte) string {
	var commentLines []string
	currentNode := node
	for {
		prevSibling := currentNode.PrevSibling()
		if prevSibling == nil || (currentNode.StartPoint().Row-prevSibling.EndPoint().Row > 1) {
			break
		}
		if prevSibling.Type() != "comment" {
			break
		}
		commentLines = append([]string{prevSibling.Content(sourceCode)}, commentLines...)
		currentNode = prevSibling
	}
	return cleanComment(strings.Join(commentLines, "\n"))
}

func (x *CExtractor) extractParams(paramsNode *sitter.Node, sourceCode []byte) ([]Param, bool) {
	params := []Param{}
	variadic := false
	if paramsNode == nil {
		return params, variadic
	}
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		p := paramsNode.NamedChild(i)
		switch p.Type() {
		case "variadic_parameter":
			variadic = true
		case "parameter_declaration":
			param := Param{Type: typeText(p, sourceCode)}
			if d := p.ChildByFieldName("declarator"); d != nil {
				param.Name = declaratorName(d, sourceCode)
			}
			// (void) declares an empty parameter list.
			if param.Name == "" && param.Type == "void" && paramsNode.NamedChildCount() == 1 {
				continue
			}
			params = append(params, param)
		}
	}
	if strings.Contains(paramsNode.Content(sourceCode), "...") {
		variadic = true
	}
	return params, variadic
}

// declaratorName follows a declarator chain down to the declared identifier.
func declaratorName(node *sitter.Node, sourceCode []byte) string {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "type_identifier":
			return node.Content(sourceCode)
		case "parenthesized_declarator", "attributed_declarator":
			node = innerDeclarator(node)
		default:
			node = node.ChildByFieldName("declarator")
		}
	}
	return ""
}

// functionDeclarator returns the function_declarator that binds the declared
// name, skipping pointer and parenthesized wrappers.
func functionDeclarator(node *sitter.Node) *sitter.Node {
	var found *sitter.Node
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			found = node
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator", "attributed_declarator":
			node = innerDeclarator(node)
		case "identifier", "field_identifier", "type_identifier":
			return found
		default:
			node = node.ChildByFieldName("declarator")
		}
	}
	return found
}

// declaresFunction reports whether a declaration's declarator introduces a
// function rather than an object. int (*fp)(void) is an object.
func declaresFunction(node *sitter.Node) bool {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			inner := node.ChildByFieldName("declarator")
			for inner != nil {
				switch inner.Type() {
				case "parenthesized_declarator", "attributed_declarator":
					inner = innerDeclarator(inner)
				case "pointer_declarator":
					return false
				default:
					return true
				}
			}
			return true
		case "pointer_declarator":
			node = node.ChildByFieldName("declarator")
		case "parenthesized_declarator", "attributed_declarator":
			node = innerDeclarator(node)
		default:
			return false
		}
	}
	return false
}

func innerDeclarator(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		t := child.Type()
		if strings.HasSuffix(t, "declarator") || strings.HasSuffix(t, "identifier") {
			return child
		}
	}
	return nil
}

func typeText(node *sitter.Node, sourceCode []byte) string {
	var parts []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "type_qualifier" {
			parts = append(parts, child.Content(sourceCode))
		}
	}
	if t := node.ChildByFieldName("type"); t != nil {
		parts = append(parts, t.Content(sourceCode))
	}
	return strings.Join(parts, " ")
}

func storageSpecifiers(node *sitter.Node, sourceCode []byte) []string {
	var specs []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "storage_class_specifier" {
			specs = append(specs, child.Content(sourceCode))
		}
	}
	return specs
}

func cleanComment(comment string) string {
	if comment == "" {
		return ""
	}
	lines := strings.Split(comment, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(strings.TrimSpace(line), "*")
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
