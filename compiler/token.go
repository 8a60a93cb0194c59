package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Token types for the Baranium tokenizer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenNumber
	TokenText // identifiers, string contents and unrecognized runs

	// Keywords
	TokenTypeName // object, string, float, bool, int, uint, void
	TokenDefine
	TokenField
	TokenIf
	TokenElse
	TokenDo
	TokenWhile
	TokenFor
	TokenReturn
	TokenInstantiate
	TokenDelete
	TokenAttach
	TokenDetach
	TokenNull
	TokenAttached
	TokenTrue
	TokenFalse

	// Single characters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenAssign    // =
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenAmp       // &
	TokenPipe      // |
	TokenCaret     // ^
	TokenTilde     // ~
	TokenBang      // !
	TokenLess      // <
	TokenGreater   // >
	TokenQuote     // "
	TokenHash      // #

	// Two-character operators
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenAndAnd       // &&
	TokenOrOr         // ||
	TokenShiftLeft    // <<
	TokenShiftRight   // >>
	TokenIncrement    // ++
	TokenDecrement    // --
	TokenPlusAssign   // +=
	TokenMinusAssign  // -=
	TokenStarAssign   // *=
	TokenSlashAssign  // /=
	TokenPercentAssign
	TokenAmpAssign
	TokenPipeAssign
	TokenCaretAssign

	tokenTypeCount
)

// catalogueEntry is one row of the static keyword/operator/character table.
type catalogueEntry struct {
	Text string
	Type TokenType
}

// keywordTable lists reserved words. The index of an entry is the token's
// keyword index. Matching ignores case; the canonical text is kept.
var keywordTable = []catalogueEntry{
	{"void", TokenTypeName},
	{"object", TokenTypeName},
	{"string", TokenTypeName},
	{"float", TokenTypeName},
	{"bool", TokenTypeName},
	{"int", TokenTypeName},
	{"uint", TokenTypeName},
	{"define", TokenDefine},
	{"field", TokenField},
	{"if", TokenIf},
	{"else", TokenElse},
	{"do", TokenDo},
	{"while", TokenWhile},
	{"for", TokenFor},
	{"return", TokenReturn},
	{"instantiate", TokenInstantiate},
	{"delete", TokenDelete},
	{"attach", TokenAttach},
	{"detach", TokenDetach},
	{"null", TokenNull},
	{"attached", TokenAttached},
	{"true", TokenTrue},
	{"false", TokenFalse},
}

// charTable lists the single characters that always form their own token.
var charTable = map[byte]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'{': TokenLBrace,
	'}': TokenRBrace,
	'[': TokenLBracket,
	']': TokenRBracket,
	';': TokenSemicolon,
	',': TokenComma,
	'=': TokenAssign,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'%': TokenPercent,
	'&': TokenAmp,
	'|': TokenPipe,
	'^': TokenCaret,
	'~': TokenTilde,
	'!': TokenBang,
	'<': TokenLess,
	'>': TokenGreater,
	'"': TokenQuote,
	'#': TokenHash,
}

// combineTable maps (previous token, next character) to a two-character
// operator.
var combineTable = map[TokenType]map[byte]TokenType{
	TokenAssign:  {'=': TokenEqual},
	TokenBang:    {'=': TokenNotEqual},
	TokenLess:    {'=': TokenLessEqual, '<': TokenShiftLeft},
	TokenGreater: {'=': TokenGreaterEqual, '>': TokenShiftRight},
	TokenAmp:     {'&': TokenAndAnd, '=': TokenAmpAssign},
	TokenPipe:    {'|': TokenOrOr, '=': TokenPipeAssign},
	TokenPlus:    {'+': TokenIncrement, '=': TokenPlusAssign},
	TokenMinus:   {'-': TokenDecrement, '=': TokenMinusAssign},
	TokenStar:    {'=': TokenStarAssign},
	TokenSlash:   {'=': TokenSlashAssign},
	TokenPercent: {'=': TokenPercentAssign},
	TokenCaret:   {'=': TokenCaretAssign},
}

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenNumber:        "NUMBER",
	TokenText:          "TEXT",
	TokenTypeName:      "TYPE",
	TokenDefine:        "define",
	TokenField:         "field",
	TokenIf:            "if",
	TokenElse:          "else",
	TokenDo:            "do",
	TokenWhile:         "while",
	TokenFor:           "for",
	TokenReturn:        "return",
	TokenInstantiate:   "instantiate",
	TokenDelete:        "delete",
	TokenAttach:        "attach",
	TokenDetach:        "detach",
	TokenNull:          "null",
	TokenAttached:      "attached",
	TokenTrue:          "true",
	TokenFalse:         "false",
	TokenLParen:        "(",
	TokenRParen:        ")",
	TokenLBrace:        "{",
	TokenRBrace:        "}",
	TokenLBracket:      "[",
	TokenRBracket:      "]",
	TokenSemicolon:     ";",
	TokenComma:         ",",
	TokenAssign:        "=",
	TokenPlus:          "+",
	TokenMinus:         "-",
	TokenStar:          "*",
	TokenSlash:         "/",
	TokenPercent:       "%",
	TokenAmp:           "&",
	TokenPipe:          "|",
	TokenCaret:         "^",
	TokenTilde:         "~",
	TokenBang:          "!",
	TokenLess:          "<",
	TokenGreater:       ">",
	TokenQuote:         "\"",
	TokenHash:          "#",
	TokenEqual:         "==",
	TokenNotEqual:      "!=",
	TokenLessEqual:     "<=",
	TokenGreaterEqual:  ">=",
	TokenAndAnd:        "&&",
	TokenOrOr:          "||",
	TokenShiftLeft:     "<<",
	TokenShiftRight:    ">>",
	TokenIncrement:     "++",
	TokenDecrement:     "--",
	TokenPlusAssign:    "+=",
	TokenMinusAssign:   "-=",
	TokenStarAssign:    "*=",
	TokenSlashAssign:   "/=",
	TokenPercentAssign: "%=",
	TokenAmpAssign:     "&=",
	TokenPipeAssign:    "|=",
	TokenCaretAssign:   "^=",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether the type comes from the keyword table.
func (t TokenType) IsKeyword() bool {
	return t >= TokenTypeName && t <= TokenFalse
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Text    string
	Keyword int // index into the keyword table, -1 if none
	Line    int
	File    string // set by the preprocessor
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if len(t.Text) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Text[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Text)
}

// Is reports whether the token has the given type.
func (t Token) Is(tt TokenType) bool {
	return t.Type == tt
}

// Keywords returns the reserved words, type names first, in table order.
func Keywords() []string {
	words := make([]string, len(keywordTable))
	for i, e := range keywordTable {
		words[i] = e.Text
	}
	return words
}

// lookupKeyword finds a keyword ignoring case.
func lookupKeyword(text string) (int, bool) {
	for i, e := range keywordTable {
		if strings.EqualFold(e.Text, text) {
			return i, true
		}
	}
	return -1, false
}

// charToken builds the token for a single character from the char table.
func charToken(c byte, line int) (Token, bool) {
	tt, ok := charTable[c]
	if !ok {
		return Token{}, false
	}
	return Token{Type: tt, Text: string(c), Keyword: -1, Line: line}, true
}
