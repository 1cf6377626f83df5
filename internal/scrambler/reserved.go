package scrambler

// ECMAScript reserved words, strict mode reserved words and the names that
// cannot be rebound safely. Matching is case-sensitive.
var reservedWords = map[string]bool{
	// Keywords
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "return": true, "super": true,
	"switch": true, "this": true, "throw": true, "try": true, "typeof": true,
	"var": true, "void": true, "while": true, "with": true, "yield": true,

	// Future reserved words
	"enum": true, "await": true,

	// Strict mode reserved words
	"implements": true, "interface": true, "let": true, "package": true,
	"private": true, "protected": true, "public": true, "static": true,

	// Literals
	"null": true, "true": true, "false": true,

	// Restricted or well-known globals
	"eval": true, "arguments": true, "undefined": true, "NaN": true, "Infinity": true,
}

// IsReserved reports whether name can never be used as a generated identifier.
func IsReserved(name string) bool {
	return reservedWords[name]
}
