package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Tokenizer: line-oriented scanner for Baranium source
// ---------------------------------------------------------------------------

// Tokenizer turns source lines into tokens. It is line-oriented; the only
// state carried between lines is whether a block comment is still open.
type Tokenizer struct {
	inComment bool
}

// NewTokenizer creates a tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize splits a whole source text into lines and tokenizes each one.
func Tokenize(source string) []Token {
	tz := NewTokenizer()
	var tokens []Token
	for i, line := range strings.Split(source, "\n") {
		tokens = append(tokens, tz.TokenizeLine(line, i+1)...)
	}
	return tokens
}

// TokenizeLine scans one line of text. Unterminated strings and unknown
// runs of characters are returned as Text tokens; rejecting them is left
// to the parsers.
func (tz *Tokenizer) TokenizeLine(line string, lineNo int) []Token {
	line = strings.TrimSuffix(line, "\r")

	var (
		tokens   []Token
		buf      strings.Builder
		adjacent bool // last token is a char token ending right before i
	)

	flush := func() {
		if buf.Len() > 0 {
			tokens = append(tokens, classify(buf.String(), lineNo))
			buf.Reset()
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		var next byte
		if i+1 < len(line) {
			next = line[i+1]
		}

		if tz.inComment {
			if c == '*' && next == '/' {
				tz.inComment = false
				i++
			}
			adjacent = false
			continue
		}

		switch {
		case c == '/' && next == '/':
			flush()
			return tokens

		case c == '/' && next == '*':
			flush()
			tz.inComment = true
			adjacent = false
			i++
			continue

		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			flush()
			adjacent = false
			continue

		case c == '"':
			flush()
			tokens = append(tokens, Token{Type: TokenQuote, Text: `"`, Keyword: -1, Line: lineNo})
			content, end, closed := scanString(line, i+1)
			if content != "" {
				tokens = append(tokens, Token{Type: TokenText, Text: content, Keyword: -1, Line: lineNo})
			}
			if closed {
				tokens = append(tokens, Token{Type: TokenQuote, Text: `"`, Keyword: -1, Line: lineNo})
			}
			i = end
			adjacent = false
			continue
		}

		if tok, ok := charToken(c, lineNo); ok {
			flush()
			if adjacent && len(tokens) > 0 {
				last := &tokens[len(tokens)-1]
				if combined, ok := combineTable[last.Type][c]; ok {
					last.Type = combined
					last.Text += string(c)
					adjacent = false
					continue
				}
			}
			tokens = append(tokens, tok)
			adjacent = true
			continue
		}

		buf.WriteByte(c)
		adjacent = false
	}

	flush()
	return tokens
}

// scanString copies string contents starting at pos, decoding escapes.
// It returns the decoded text, the index of the closing quote (or the last
// index of the line) and whether the quote was found.
func scanString(line string, pos int) (string, int, bool) {
	var sb strings.Builder
	for i := pos; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) {
			sb.WriteByte(decodeEscape(line[i+1]))
			i++
			continue
		}
		if c == '"' {
			return sb.String(), i, true
		}
		sb.WriteByte(c)
	}
	return sb.String(), len(line) - 1, false
}

func decodeEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	}
	// \\, \", \' and unknown escapes yield the character itself
	return c
}

// resolveEscapes decodes backslash escapes in a flushed buffer.
func resolveEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			sb.WriteByte(decodeEscape(s[i+1]))
			i++
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// classify turns a flushed buffer into a Number, keyword or Text token.
func classify(text string, line int) Token {
	if isNumeral(text) {
		return Token{Type: TokenNumber, Text: text, Keyword: -1, Line: line}
	}
	if idx, ok := lookupKeyword(text); ok {
		entry := keywordTable[idx]
		return Token{Type: entry.Type, Text: entry.Text, Keyword: idx, Line: line}
	}
	return Token{Type: TokenText, Text: resolveEscapes(text), Keyword: -1, Line: line}
}

// isNumeral reports whether s is a run of digits with at most one dot.
func isNumeral(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] >= '0' && s[i] <= '9':
			digits++
		case s[i] == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// isIdentifier reports whether a Text token can name a variable or function.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
