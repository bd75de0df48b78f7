// Package normalize canonicalizes free-text math answers so that answers
// written in LaTeX, Unicode or plain ASCII notation can be compared for
// equality.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	delimiters = strings.NewReplacer(
		"$$", "",
		"$", "",
		`\(`, "",
		`\)`, "",
		`\[`, "",
		`\]`, "",
	)

	command  = regexp.MustCompile(`\\([a-zA-Z]+)`)
	wrapper  = regexp.MustCompile(`\\(?:text|mathrm|mathbf)\b`)
	fraction = regexp.MustCompile(`\\[dt]?frac`)

	braces = strings.NewReplacer("{", "", "}", "")

	glyphs = strings.NewReplacer(
		"⁰", "^0", "¹", "^1", "²", "^2", "³", "^3", "⁴", "^4",
		"⁵", "^5", "⁶", "^6", "⁷", "^7", "⁸", "^8", "⁹", "^9",
		"₀", "_0", "₁", "_1", "₂", "_2", "₃", "_3", "₄", "_4",
		"₅", "_5", "₆", "_6", "₇", "_7", "₈", "_8", "₉", "_9",
		"×", "*",
		"÷", "/",
		"−", "-",
		"±", "+-",
		"√", "SQRT",
		"∞", "INF",
		// uppercasing has already turned π into Π
		"π", "PI",
		"Π", "PI",
		"≤", "<=",
		"≥", ">=",
		"≠", "!=",
	)
)

// layout commands only affect rendering and are dropped.
var layout = map[string]bool{
	"left":         true,
	"right":        true,
	"displaystyle": true,
}

var macros = map[string]string{
	"times": "*",
	"cdot":  "*",
	"div":   "/",
	"lt":    "<",
	"gt":    ">",
	"le":    "<=",
	"leq":   "<=",
	"ge":    ">=",
	"geq":   ">=",
	"ne":    "!=",
	"neq":   "!=",
	"pm":    "+-",
	"sqrt":  "SQRT",
	"infty": "INF",
	"pi":    "PI",
}

// Canonical returns the canonical form of s. Two answers are considered
// equivalent when their canonical forms are identical.
func Canonical(s string) string {
	if s == "" {
		return ""
	}
	s = delimiters.Replace(s)
	s = command.ReplaceAllStringFunc(s, func(m string) string {
		if layout[m[1:]] {
			return ""
		}
		return m
	})
	s = unwrap(s)
	s = rewriteFractions(s)
	s = command.ReplaceAllStringFunc(s, func(m string) string {
		if tok, ok := macros[m[1:]]; ok {
			return tok
		}
		return m
	})
	s = braces.Replace(s)
	s = strings.ToUpper(s)
	s = glyphs.Replace(s)
	return stripSpace(s)
}

// Equivalent reports whether user and correct share a canonical form. Empty
// input on either side is never equivalent.
func Equivalent(user, correct string) bool {
	if user == "" || correct == "" {
		return false
	}
	return Canonical(user) == Canonical(correct)
}

// unwrap replaces \text{...}, \mathrm{...} and \mathbf{...} with their content.
// Content may hold braces and further wrappers. A wrapper without a brace
// group is left as written.
func unwrap(s string) string {
	var b strings.Builder
	for {
		loc := wrapper.FindStringIndex(s)
		if loc == nil {
			b.WriteString(s)
			return b.String()
		}
		inner, rest, ok := braceGroup(s[loc[1]:])
		if !ok {
			b.WriteString(s[:loc[1]])
			s = s[loc[1]:]
			continue
		}
		b.WriteString(s[:loc[0]])
		b.WriteString(unwrap(inner))
		s = rest
	}
}

// rewriteFractions rewrites \frac{a}{b} as (a)/(b), operands first. A \frac
// without two brace groups is left as written.
func rewriteFractions(s string) string {
	var b strings.Builder
	for {
		loc := fraction.FindStringIndex(s)
		if loc == nil {
			b.WriteString(s)
			return b.String()
		}
		num, rest, ok := braceGroup(s[loc[1]:])
		var den string
		if ok {
			den, rest, ok = braceGroup(rest)
		}
		if !ok {
			b.WriteString(s[:loc[1]])
			s = s[loc[1]:]
			continue
		}
		b.WriteString(s[:loc[0]])
		b.WriteString("(" + rewriteFractions(num) + ")/(" + rewriteFractions(den) + ")")
		s = rest
	}
}

// braceGroup splits a leading balanced {...} group off s, skipping leading
// whitespace.
func braceGroup(s string) (inner, rest string, ok bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if !strings.HasPrefix(s, "{") {
		return "", s, false
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true
			}
		}
	}
	return "", s, false
}

func stripSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
