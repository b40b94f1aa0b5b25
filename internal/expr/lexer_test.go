package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Tokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []TokenKind
	}{
		{"arithmetic", "1 + 2 * 3", []TokenKind{NUMBER, PLUS, NUMBER, STAR, NUMBER, EOF}},
		{"comparison operators", "a <= b AND c != d", []TokenKind{IDENT, LTE, IDENT, AND, IDENT, NEQ, IDENT, EOF}},
		{"keywords case-insensitive", "Case WHEN x Then y Else z END", []TokenKind{CASE, WHEN, IDENT, THEN, IDENT, ELSE, IDENT, END, EOF}},
		{"dotted identifier", "contact.first_name", []TokenKind{IDENT, DOT, IDENT, EOF}},
		{"string literal", "'hello world'", []TokenKind{STRING, EOF}},
		{"escaped quote", "'it''s'", []TokenKind{STRING, EOF}},
		{"int division and power", "a // b ** c", []TokenKind{IDENT, INTDIV, IDENT, POW, IDENT, EOF}},
		{"is null", "x IS NOT NULL", []TokenKind{IDENT, IS, NOT, NULL, EOF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := NewLexer(tt.src)

			var got []TokenKind

			for {
				tok, err := lex.Next()
				require.NoError(t, err)

				got = append(got, tok.Kind)

				if tok.Kind == EOF {
					break
				}
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexer_UnterminatedString(t *testing.T) {
	lex := NewLexer("'abc")

	_, err := lex.Next()

	require.Error(t, err)
}

func TestLookupIdent_MixedCase(t *testing.T) {
	assert.Equal(t, CASE, LookupIdent("CaSe"))
	assert.Equal(t, IDENT, LookupIdent("check_requested_by_user"))
}
