package parser_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/parser"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/types"
)

type parserTestCase struct {
	name     string
	input    string
	expected string
}

func runParserTests(t *testing.T, tests []parserTestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := parser.ParseString(tt.input)
			require.NoError(t, err, "parse %q", tt.input)
			assert.Equal(t, tt.expected, root.String())
		})
	}
}

func TestParserPrecedence(t *testing.T) {
	runParserTests(t, []parserTestCase{
		{"multiplication binds tighter", "2 + 2 * 3",
			"(Binary + (Number 2) (Binary * (Number 2) (Number 3)))"},
		{"left associative", "a - b - c",
			"(Binary - (Binary - (Identifier a) (Identifier b)) (Identifier c))"},
		{"coalesce right associative", "a ?? b ?? c",
			"(Binary ?? (Identifier a) (Binary ?? (Identifier b) (Identifier c)))"},
		{"group", "(a + b) * c",
			"(Binary * (Group (Binary + (Identifier a) (Identifier b))) (Identifier c))"},
		{"shift below additive", "1 << 2 + 3",
			"(Binary << (Number 1) (Binary + (Number 2) (Number 3)))"},
		{"logical chain", "a || b && c",
			"(Binary || (Identifier a) (Binary && (Identifier b) (Identifier c)))"},
		{"bitwise order", "a | b ^ c & d",
			"(Binary | (Identifier a) (Binary ^ (Identifier b) (Binary & (Identifier c) (Identifier d))))"},
		{"comparison below shift", "a < b >> 1",
			"(Binary < (Identifier a) (Binary >> (Identifier b) (Number 1)))"},
		{"equality below relational", "a == b < c",
			"(Binary == (Identifier a) (Binary < (Identifier b) (Identifier c)))"},
		{"unary", "-a * !b",
			"(Binary * (Unary - (Identifier a)) (Unary ! (Identifier b)))"},
		{"complement", "~1",
			"(Unary ~ (Number 1))"},
	})
}

func TestParserAccess(t *testing.T) {
	runParserTests(t, []parserTestCase{
		{"member", "a.b.c",
			"(Member . (Member . (Identifier a) (Identifier b)) (Identifier c))"},
		{"null conditional", "a?.b",
			"(Member ?. (Identifier a) (Identifier b))"},
		{"call", "f(1, x)",
			"(Call (Identifier f) (Number 1) (Identifier x))"},
		{"method call", "s.Substring(1)",
			"(Call (Member . (Identifier s) (Identifier Substring)) (Number 1))"},
		{"index", "a[1]",
			"(Index [ (Identifier a) (Number 1))"},
		{"null conditional index", "a?[0]",
			"(Index ?[ (Identifier a) (Number 0))"},
		{"named argument", "f(x: 1)",
			"(Call (Identifier f) (NamedArgument x (Identifier x) (Number 1)))"},
		{"generic call", "f<int>(x)",
			"(Call (Identifier f (Identifier int)) (Identifier x))"},
		{"less than is not generic", "a < b",
			"(Binary < (Identifier a) (Identifier b))"},
	})
}

func TestParserKeywords(t *testing.T) {
	runParserTests(t, []parserTestCase{
		{"conditional", "x > 0 ? 1 : 2",
			"(Condition (Binary > (Identifier x) (Number 0)) (Number 1) (Number 2))"},
		{"nested conditional", "a ? b ? 1 : 2 : 3",
			"(Condition (Identifier a) (Condition (Identifier b) (Number 1) (Number 2)) (Number 3))"},
		{"cast", "(int)x",
			"(Cast (Identifier int) (Identifier x))"},
		{"cast of negative", "(long)-1",
			"(Cast (Identifier long) (Unary - (Number 1)))"},
		{"group is not cast", "(a) - 1",
			"(Binary - (Group (Identifier a)) (Number 1))"},
		{"is", "a is string",
			"(TypeIs (Identifier a) (Identifier string))"},
		{"as", "a as string",
			"(TypeAs (Identifier a) (Identifier string))"},
		{"typeof generic", "typeof(Dictionary<string, List<int>>)",
			"(TypeOf (Identifier Dictionary (Identifier string) (Identifier List (Identifier int))))"},
		{"typeof open generic", "typeof(List<>)",
			"(TypeOf (Identifier List (EmptyType)))"},
		{"typeof nullable", "typeof(int?)",
			"(TypeOf (NullableType (Identifier int)))"},
		{"typeof array", "typeof(int[])",
			"(TypeOf (ArrayType (Identifier int)))"},
		{"default", "default(long)",
			"(Default (Identifier long))"},
		{"checked", "checked(a + 1)",
			"(Checked (Binary + (Identifier a) (Number 1)))"},
		{"unchecked", "unchecked(a * 2)",
			"(Unchecked (Binary * (Identifier a) (Number 2)))"},
	})
}

func TestParserLambdas(t *testing.T) {
	runParserTests(t, []parserTestCase{
		{"single parameter", "x => x + 1",
			"(Lambda (Arguments (Identifier x)) (Binary + (Identifier x) (Number 1)))"},
		{"parenthesized parameter", "(x) => x",
			"(Lambda (Arguments (Identifier x)) (Identifier x))"},
		{"two parameters", "(a, b) => a * b",
			"(Lambda (Arguments (Identifier a) (Identifier b)) (Binary * (Identifier a) (Identifier b)))"},
		{"no parameters", "() => 1",
			"(Lambda (Arguments) (Number 1))"},
		{"argument", "f(x => x)",
			"(Call (Identifier f) (Lambda (Arguments (Identifier x)) (Identifier x)))"},
	})
}

func TestParserConstruction(t *testing.T) {
	runParserTests(t, []parserTestCase{
		{"new", "new Point(1, 2)",
			"(New (Identifier Point) (Arguments (Number 1) (Number 2)))"},
		{"object initializer", "new Point { X = 1 }",
			"(New (Identifier Point) (Arguments) (Initializer (Assignment X (Identifier X) (Number 1))))"},
		{"collection initializer", "new List<int> { 1, 2 }",
			"(New (Identifier List (Identifier int)) (Arguments) (Initializer (Number 1) (Number 2)))"},
		{"array bounds", "new int[3]",
			"(NewArray (Identifier int) (Arguments (Number 3)))"},
		{"array init", "new int[] { 1 }",
			"(NewArray (Identifier int) (Arguments) (Initializer (Number 1)))"},
		{"implicit array", "new[] { 1, 2 }",
			"(NewArray (None) (Arguments) (Initializer (Number 1) (Number 2)))"},
	})
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  types.ErrorCode
	}{
		{"empty", "", types.ErrEmptyExpression},
		{"missing operand", "1 +", types.ErrUnexpectedEnd},
		{"two results", "1 2", types.ErrTooManyResults},
		{"missing colon", "a ? b", types.ErrExpectedToken},
		{"empty parentheses", "()", types.ErrMissingOperand},
		{"bad lambda parameters", "(1, 2) => 3", types.ErrInvalidLambdaArgs},
		{"list without lambda", "(a, b)", types.ErrInvalidLambdaArgs},
		{"missing member name", "a.", types.ErrExpectedToken},
		{"empty index", "a[]", types.ErrMissingOperand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseString(tt.input)
			require.Error(t, err)
			assert.True(t, types.IsKind(err, types.ParseError), "got %v", err)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestParserLexErrorsPassThrough(t *testing.T) {
	_, err := parser.ParseString("a # b")
	assert.True(t, types.IsKind(err, types.LexError), "got %v", err)
}

func TestParserMaxDepth(t *testing.T) {
	deep := strings.Repeat("(", 40) + "1" + strings.Repeat(")", 40)
	_, err := parser.ParseString(deep, parser.WithMaxDepth(10))
	assert.True(t, types.HasCode(err, types.ErrNestingTooDeep), "got %v", err)

	_, err = parser.ParseString(deep, parser.WithMaxDepth(100))
	assert.NoError(t, err)
}

func TestParseTokens(t *testing.T) {
	tokens, err := parser.TokenizeAll("a + 1")
	require.NoError(t, err)
	root, err := parser.ParseTokens(tokens)
	require.NoError(t, err)
	assert.Equal(t, "(Binary + (Identifier a) (Number 1))", root.String())
	assert.Equal(t, 1, root.Position().Line)
	assert.Equal(t, 3, root.Position().Column)
}

func TestNodeImmutableRebuild(t *testing.T) {
	root, err := parser.ParseString("a + b")
	require.NoError(t, err)
	before := root.String()

	swapped := root.WithChild(0, root.Child(1))
	assert.Equal(t, "(Binary + (Identifier b) (Identifier b))", swapped.String())
	assert.Equal(t, before, root.String())

	group := root.WithKind(parser.NodeGroup)
	assert.Equal(t, parser.NodeGroup, group.Kind)
	assert.Equal(t, parser.NodeBinary, root.Kind)
	assert.Nil(t, root.Child(5))
}

func TestArenaManyChildren(t *testing.T) {
	args := make([]string, 10)
	for i := range args {
		args[i] = "x"
	}
	root, err := parser.ParseString("f(" + strings.Join(args, ", ") + ")")
	require.NoError(t, err)
	assert.Equal(t, 11, root.Len())
	assert.Len(t, root.Children(), 11)
}

var binaryPrecedence = map[string]int{
	"*": 6, "/": 6, "%": 6,
	"+": 5, "-": 5,
	"<<": 4, ">>": 4,
	"&": 3, "^": 2, "|": 1,
}

// TestParserPrecedenceProperty checks the root operator of "x op1 y op2 z"
// for every pair of binary operators.
func TestParserPrecedenceProperty(t *testing.T) {
	ops := make([]string, 0, len(binaryPrecedence))
	for op := range binaryPrecedence {
		ops = append(ops, op)
	}
	rapid.Check(t, func(t *rapid.T) {
		op1 := rapid.SampledFrom(ops).Draw(t, "op1")
		op2 := rapid.SampledFrom(ops).Draw(t, "op2")
		x := rapid.IntRange(0, 1000).Draw(t, "x")
		y := rapid.IntRange(0, 1000).Draw(t, "y")
		z := rapid.IntRange(0, 1000).Draw(t, "z")

		src := strings.Join([]string{strconv.Itoa(x), op1, strconv.Itoa(y), op2, strconv.Itoa(z)}, " ")
		root, err := parser.ParseString(src)
		if err != nil {
			t.Fatalf("parse %q: %v", src, err)
		}
		if binaryPrecedence[op1] >= binaryPrecedence[op2] {
			if root.Token.Value != op2 || root.Child(0).Token.Value != op1 {
				t.Fatalf("%q parsed as %s", src, root)
			}
		} else if root.Token.Value != op1 || root.Child(1).Token.Value != op2 {
			t.Fatalf("%q parsed as %s", src, root)
		}
	})
}

// TestParserDeterministic parses generated member chains twice and expects
// identical trees.
func TestParserDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[a-z][a-z0-9_]{0,5}`), 1, 6).Draw(t, "names")
		sep := rapid.SampledFrom([]string{".", "?."}).Draw(t, "sep")
		src := strings.Join(names, sep)
		first, err := parser.ParseString(src)
		if err != nil {
			t.Skip("generated a keyword")
		}
		second, err := parser.ParseString(src)
		if err != nil {
			t.Fatalf("second parse of %q failed: %v", src, err)
		}
		if first.String() != second.String() {
			t.Fatalf("parse of %q is not deterministic", src)
		}
	})
}
