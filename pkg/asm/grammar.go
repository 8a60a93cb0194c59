package asm

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Listing syntax:
//
//	; comment
//	.field speed int 4
//	.var greeting string "hi"
//	.func add 2 int
//	    MEM 4 int add.b
//	top:
//	    JMPCOFF top
//	    SET add.a 4 [1 0 0 0]
//	    RET
//
// Mnemonics and operand order are those of the disassembler. Ids may be
// written as names (hashed with bytecode.NameID), as numbers, or as null
// and attached. Jump operands may name a label.
var listingLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Comment", `;[^\n]*`, nil},
		{"Whitespace", `[ \t\r]+`, nil},
		{"EOL", `\n`, nil},
		{"Directive", `\.[a-z]+`, nil},
		{"Label", `[a-zA-Z_$][\w.$]*:`, nil},
		{"Float", `[-+]?(\d+\.\d*([eE][-+]?\d+)?|\d+[eE][-+]?\d+)`, nil},
		{"Int", `[-+]?(0[xX][0-9a-fA-F]+|\d+)`, nil},
		{"String", `"(\\.|[^"\\])*"`, nil},
		{"Ident", `[a-zA-Z_$][\w.$]*`, nil},
		{"Punct", `[\[\]]`, nil},
	},
})

var parser = participle.MustBuild[listing](
	participle.Lexer(listingLexer),
	participle.Elide("Comment", "Whitespace"),
)

type listing struct {
	Items []*item `( @@ | EOL )*`
}

type item struct {
	Pos lexer.Position

	Global *globalDecl `  @@`
	Func   *funcDecl   `| @@`
}

type globalDecl struct {
	Kind  string   `@(".field" | ".var")`
	Name  string   `@(Ident | Int)`
	Type  string   `@Ident`
	Value *operand `@@? EOL`
}

type funcDecl struct {
	Name    string  `".func" @(Ident | Int)`
	Params  string  `@Int`
	Returns string  `@Ident EOL`
	Lines   []*line `( @@ | EOL )*`
}

type line struct {
	Pos lexer.Position

	Label string       `  @Label`
	Instr *instruction `| @@`
}

type instruction struct {
	Pos lexer.Position

	Mnemonic string     `@Ident`
	Operands []*operand `@@* EOL`
}

type operand struct {
	Pos lexer.Position

	List  bool     `  ( @"["`
	Bytes []string `    @Int* "]" )`
	Int   *string  `| @Int`
	Float *string  `| @Float`
	Str   *string  `| @String`
	Ident *string  `| @Ident`
}
