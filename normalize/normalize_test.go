package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain number", " 42 ", "42"},
		{"inline delimiters", "$5$", "5"},
		{"display delimiters", "$$x+1$$", "X+1"},
		{"paren delimiters", `\(2x\)`, "2X"},
		{"bracket delimiters", `\[2x\]`, "2X"},
		{"left right", `\left(a+b\right)`, "(A+B)"},
		{"displaystyle", `\displaystyle 3`, "3"},
		{"text wrapper", `5\text{ cm}`, "5CM"},
		{"mathrm wrapper", `\mathrm{kg}`, "KG"},
		{"mathbf wrapper", `\mathbf{v}`, "V"},
		{"wrapper with braced content", `\mathrm{x^{2}}`, "X^2"},
		{"nested wrappers", `\mathbf{\text{x}}`, "X"},
		{"wrapper around frac", `\text{\frac{1}{2}}`, "(1)/(2)"},
		{"wrapper without group", `\text x`, `\TEXTX`},
		{"times", `2 \times 3`, "2*3"},
		{"cdot", `2\cdot3`, "2*3"},
		{"div", `6 \div 2`, "6/2"},
		{"frac", `\frac{1}{2}`, "(1)/(2)"},
		{"dfrac", `\dfrac{3}{4}`, "(3)/(4)"},
		{"nested frac", `\frac{\frac{1}{2}}{3}`, "((1)/(2))/(3)"},
		{"frac with braced operand", `\frac{\sqrt{3}}{2}`, "(SQRT3)/(2)"},
		{"frac missing denominator", `\frac{1}`, `\FRAC1`},
		{"leq", `x \leq 2`, "X<=2"},
		{"le before digit", `x\le5`, "X<=5"},
		{"geq", `x\geq 2`, "X>=2"},
		{"neq", `x \neq 0`, "X!=0"},
		{"lt gt", `1 \lt x \gt 0`, "1<X>0"},
		{"pm", `\pm 3`, "+-3"},
		{"sqrt", `\sqrt{2}`, "SQRT2"},
		{"infty", `\infty`, "INF"},
		{"pi", `2\pi`, "2PI"},
		{"unknown command kept", `\alpha`, `\ALPHA`},
		{"braces", "x^{10}", "X^10"},
		{"superscript", "x²", "X^2"},
		{"subscript", "H₂O", "H_2O"},
		{"unicode operators", "2×3÷4−1", "2*3/4-1"},
		{"unicode pm", "±5", "+-5"},
		{"unicode sqrt", "√3", "SQRT3"},
		{"unicode infinity", "∞", "INF"},
		{"unicode pi", "π", "PI"},
		{"unicode comparisons", "a≤b≥c≠d", "A<=B>=C!=D"},
		{"all whitespace", "1 \t\n 2 3", "123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestEquivalent(t *testing.T) {
	tests := []struct {
		user, correct string
		want          bool
	}{
		{"5^2", "5²", true},
		{"x^{2}", "X^2", true},
		{`\frac{1}{2}`, "(1)/(2)", true},
		{"3.14", "π", false},
		{"", "5", false},
		{"5", "", false},
		{"", "", false},
		{"   ", "   ", true},
		{"  ", "\t", true},
		{"$$", " ", true},
		{`\mathrm{x^{2}}`, "x^2", true},
		{`\mathbf{\text{x}}`, "x", true},
		{"2 × 3", "2*3", true},
		{"abc", "ABC", true},
		{`$\sqrt{2}$`, "√2", true},
		{`\pi`, "π", true},
		{`x \leq 3`, "x≤3", true},
		{"0.5", `\frac{1}{2}`, false},
		{"10", "10.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.user+"|"+tt.correct, func(t *testing.T) {
			assert.Equal(t, tt.want, Equivalent(tt.user, tt.correct))
		})
	}
}

func TestCanonicalIsDeterministicAndIdempotent(t *testing.T) {
	inputs := []string{
		`\frac{\sqrt{3}}{2}`,
		"$$x^{2} + 2x + 1$$",
		`\left[ 0, \infty \right)`,
		"−√2 ± π",
		"H₂SO₄",
		`5\,\text{m/s}`,
		"Ab Cd",
	}
	for _, in := range inputs {
		first := Canonical(in)
		assert.Equal(t, first, Canonical(in), "input %q", in)
		assert.Equal(t, first, Canonical(first), "input %q", in)
	}
}

func TestEquivalentIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"5^2", "5²"},
		{"3.14", "π"},
		{`\frac{a}{b}`, "(a)/(b)"},
		{"", "1"},
	}
	for _, p := range pairs {
		assert.Equal(t, Equivalent(p[0], p[1]), Equivalent(p[1], p[0]))
	}
}

func TestEquivalentIgnoresCase(t *testing.T) {
	for _, in := range []string{"x+y", "sin(a)", "2 pi r"} {
		assert.True(t, Equivalent(in, strings.ToUpper(in)), "input %q", in)
	}
}
