package pipeline

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind distinguishes words from operators.
type TokenKind int

const (
	TokWord TokenKind = iota
	TokPipe
	TokRedirectIn
	TokRedirectOut
	TokAppendOut
	TokBackground
)

// Token is one lexical unit of a command line.
type Token struct {
	Kind TokenKind
	Text string
}

var (
	ErrUnclosedQuote  = fmt.Errorf("%w: unclosed quote", ErrSyntax)
	ErrTrailingEscape = fmt.Errorf("%w: trailing backslash", ErrSyntax)
)

type lexState int

const (
	stateOutside lexState = iota
	stateSingleQuote
	stateDoubleQuote
)

type lexer struct {
	toks    []Token
	word    strings.Builder
	inWord  bool // true once a word has started, even if it is "" so far
	state   lexState
	escaped bool
}

func (l *lexer) flush() {
	if l.inWord {
		l.toks = append(l.toks, Token{Kind: TokWord, Text: l.word.String()})
		l.word.Reset()
		l.inWord = false
	}
}

func (l *lexer) emit(kind TokenKind, text string) {
	l.flush()
	l.toks = append(l.toks, Token{Kind: kind, Text: text})
}

func (l *lexer) appendRune(r rune) {
	l.word.WriteRune(r)
	l.inWord = true
}

// Lex splits a command line into words and operator tokens. Words follow
// shell quoting: single quotes are literal, double quotes allow \" and \\,
// and a backslash outside quotes escapes the next character. Operators are
// only recognised outside quotes.
func Lex(line string) ([]Token, error) {
	var l lexer
	runes := []rune(line)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch l.state {
		case stateSingleQuote:
			if r == '\'' {
				l.state = stateOutside
			} else {
				l.appendRune(r)
			}

		case stateDoubleQuote:
			if l.escaped {
				if r != '\\' && r != '"' {
					l.appendRune('\\')
				}
				l.appendRune(r)
				l.escaped = false
				continue
			}
			switch r {
			case '"':
				l.state = stateOutside
			case '\\':
				l.escaped = true
			default:
				l.appendRune(r)
			}

		case stateOutside:
			if l.escaped {
				l.appendRune(r)
				l.escaped = false
				continue
			}
			switch {
			case unicode.IsSpace(r):
				l.flush()
			case r == '\'':
				l.state = stateSingleQuote
				l.inWord = true
			case r == '"':
				l.state = stateDoubleQuote
				l.inWord = true
			case r == '\\':
				l.escaped = true
			case r == '|':
				l.emit(TokPipe, OpPipe)
			case r == '<':
				l.emit(TokRedirectIn, OpRedirectIn)
			case r == '>':
				if i+1 < len(runes) && runes[i+1] == '>' {
					i++
					l.emit(TokAppendOut, OpAppendOut)
				} else {
					l.emit(TokRedirectOut, OpRedirectOut)
				}
			case r == '&':
				l.emit(TokBackground, OpBackground)
			default:
				l.appendRune(r)
			}
		}
	}

	if l.state != stateOutside {
		return nil, ErrUnclosedQuote
	}
	if l.escaped {
		return nil, ErrTrailingEscape
	}
	l.flush()
	return l.toks, nil
}

// Split tokenizes a line into words only. Operator characters are an error;
// use Parse for lines that may contain them.
func Split(line string) ([]string, error) {
	toks, err := Lex(line)
	if err != nil {
		return nil, err
	}
	words := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.Kind != TokWord {
			return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, t.Text)
		}
		words = append(words, t.Text)
	}
	return words, nil
}
