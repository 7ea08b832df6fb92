package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BuildStableSymbolID returns lang:kind:name:hash for unit, where hash covers
// the whitespace-normalized signature. Edits to a function body or its
// formatting keep the ID; a signature change produces a new one.
func BuildStableSymbolID(unit *CodeUnit) string {
	if unit == nil {
		return ""
	}
	lang := orDefault(unit.Language, "unknown")
	kind := orDefault(unit.UnitType, "symbol")
	name := orDefault(unit.Name, "_")
	signature := strings.Join(strings.Fields(unit.Details.Signature), " ")

	sum := sha256.Sum256([]byte(lang + "|" + kind + "|" + name + "|" + signature))
	return lang + ":" + kind + ":" + name + ":" + hex.EncodeToString(sum[:8])
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
