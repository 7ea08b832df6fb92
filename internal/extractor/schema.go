package extractor

// CFunctionDetails contains specific information about a C function
// definition or prototype.
type CFunctionDetails struct {
	ReturnType string   `json:"return_type"`        // Declared return type, without storage specifiers
	Storage    []string `json:"storage,omitempty"`  // static, extern, inline...
	Parameters []Param  `json:"parameters"`         // List of parameters
	Variadic   bool     `json:"variadic,omitempty"` // Ends in "..."
	Signature  string   `json:"signature"`          // Everything before the body
	HasBody    bool     `json:"has_body"`           // Definition vs. declaration
}

// Param represents a single function parameter.
type Param struct {
	Name string `json:"name,omitempty"` // Parameter name, empty in abstract declarators
	Type string `json:"type"`           // Parameter type
}
