package svf

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// svfLexer covers the subset of Serial Vector Format the player accepts.
// Parenthesised hex may span lines; keywords are matched case-insensitively
// by the parser.
var svfLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `(//|!)[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Hex", Pattern: `\([0-9A-Fa-f\s]*\)`},
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]*)?([eE][-+]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Semicolon", Pattern: `;`},
})
