package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  *Condition
	}{
		{"atom", "ready", ID("ready")},
		{"atom_with_underscore", "is_up_2", ID("is_up_2")},
		{"not", "Not(a)", Not(ID("a"))},
		{"and", "And(a, b)", And(ID("a"), ID("b"))},
		{"or_three", "Or(a, b, c)", Or(ID("a"), ID("b"), ID("c"))},
		{"nested", "And(Or(a, Not(b)), c)", And(Or(ID("a"), Not(ID("b"))), ID("c"))},
		{"whitespace", "  And( a ,\tb )  ", And(ID("a"), ID("b"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s want %s", got, tc.want)
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	exprs := []string{
		"ready",
		"Not(a)",
		"And(a, b)",
		"Or(a, b, c)",
		"And(Or(a, Not(b)), c, d)",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			c, err := Parse(expr)
			require.NoError(t, err)
			again, err := Parse(c.String())
			require.NoError(t, err)
			assert.True(t, c.Equal(again), "round trip changed %s to %s", expr, again)
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"and_one_arg", "And(a)"},
		{"or_one_arg", "Or(b)"},
		{"invalid_operator", "InvalidOp(a, b)"},
		{"invalid_operator_nested", "And(Op(a, b), c)"},
		{"unterminated_group", "And(a, b"},
		{"missing_paren_after_not", "Not a"},
		{"trailing_input", "a b"},
		{"bare_paren", "(a)"},
		{"trailing_comma", "And(a, b,)"},
		{"invalid_character_leading", "$a"},
		{"invalid_character_between_idents", "a$b"},
		{"invalid_character_in_group", "And(a$b, c)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			require.Error(t, err)
			assert.Nil(t, got, "no partial tree on error")
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseInvalidCharacterIsPositioned(t *testing.T) {
	_, err := Parse("a$b")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Pos)
	assert.Contains(t, perr.Msg, `invalid character "$"`)
}

func TestMustParsePanicsOnError(t *testing.T) {
	assert.Panics(t, func() { MustParse("And(a)") })
	assert.NotPanics(t, func() { MustParse("And(a, b)") })
}
