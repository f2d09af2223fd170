// Package mathtext converts delimited LaTeX spans inside prose into plain
// unicode text suitable for a terminal. It recognizes display math ($$...$$
// or \[...\]) and inline math ($...$ or \(...\)). Display spans are
// substituted first so a $$ pair is never mis-parsed as two empty inline
// spans. A span that fails to convert is left as its original delimited
// source; one bad span never aborts the rest of the string.
package mathtext

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var symbolOrder = func() []string {
	order := make([]string, 0, len(symbols))
	for cmd := range symbols {
		order = append(order, cmd)
	}
	sort.Slice(order, func(i, j int) bool {
		if len(order[i]) != len(order[j]) {
			return len(order[i]) > len(order[j])
		}
		return order[i] < order[j]
	})
	return order
}()

var (
	displayDollars  = regexp.MustCompile(`\$\$(.+?)\$\$`)
	displayBrackets = regexp.MustCompile(`\\\[(.+?)\\\]`)
	inlineDollar    = regexp.MustCompile(`\$([^$\n]+?)\$`)
	inlineParens    = regexp.MustCompile(`\\\((.+?)\\\)`)

	command = regexp.MustCompile(`\\[a-zA-Z]+`)
)

const memoLimit = 4096

var memo = struct {
	sync.Mutex
	entries map[string]string
}{entries: map[string]string{}}

// Render substitutes every math span in text. Pure and memoized; safe to
// call from render paths on every frame.
func Render(text string) string {
	if !strings.ContainsAny(text, `$\`) {
		return text
	}
	memo.Lock()
	if cached, ok := memo.entries[text]; ok {
		memo.Unlock()
		return cached
	}
	memo.Unlock()

	out := substitute(text, displayDollars, true)
	out = substitute(out, displayBrackets, true)
	out = substitute(out, inlineDollar, false)
	out = substitute(out, inlineParens, false)

	memo.Lock()
	if len(memo.entries) >= memoLimit {
		memo.entries = map[string]string{}
	}
	memo.entries[text] = out
	memo.Unlock()
	return out
}

func substitute(text string, pattern *regexp.Regexp, display bool) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		latex := pattern.FindStringSubmatch(match)[1]
		rendered, err := RenderLatex(latex, display)
		if err != nil {
			return match
		}
		return rendered
	})
}

// RenderLatex converts a single LaTeX expression. Display mode pads the
// result so it reads as a standalone line fragment. Unknown commands and
// unbalanced braces are errors; the caller keeps the original source.
func RenderLatex(latex string, display bool) (string, error) {
	s := strings.TrimSpace(latex)
	if strings.Count(s, "{") != strings.Count(s, "}") {
		return "", fmt.Errorf("unbalanced braces in %q", latex)
	}

	s = expandFractions(s)
	s = expandRoots(s)
	s = expandScripts(s)

	for cmd, repl := range textCommands {
		s = stripWrapper(s, cmd, repl)
	}
	// Longest command first, so \in never fires inside \infty.
	for _, cmd := range symbolOrder {
		s = strings.ReplaceAll(s, cmd, symbols[cmd])
	}

	if rest := command.FindString(s); rest != "" {
		return "", fmt.Errorf("unsupported command %s", rest)
	}

	s = strings.NewReplacer("{", "", "}", "", "~", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if display {
		return " " + s + " ", nil
	}
	return s, nil
}

// expandFractions rewrites \frac{a}{b} as a/b, parenthesizing multi-token
// operands. Nested fractions resolve innermost first.
func expandFractions(s string) string {
	for {
		at := strings.Index(s, `\frac`)
		if at < 0 {
			return s
		}
		num, rest, ok := takeGroup(s[at+len(`\frac`):])
		if !ok {
			return s
		}
		den, tail, ok := takeGroup(rest)
		if !ok {
			return s
		}
		replaced := operand(expandFractions(num)) + "/" + operand(expandFractions(den))
		s = s[:at] + replaced + tail
	}
}

func expandRoots(s string) string {
	for {
		at := strings.Index(s, `\sqrt`)
		if at < 0 {
			return s
		}
		arg, tail, ok := takeGroup(s[at+len(`\sqrt`):])
		if !ok {
			return s
		}
		s = s[:at] + "√(" + arg + ")" + tail
	}
}

// expandScripts maps ^{...} and _{...} to unicode super/subscripts where
// the glyphs exist, and to ^(...)/_(...) where they do not.
func expandScripts(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '^' && c != '_' {
			out.WriteByte(c)
			continue
		}
		var arg, tail string
		var ok bool
		if i+1 < len(s) && s[i+1] == '{' {
			arg, tail, ok = takeGroup(s[i+1:])
			if !ok {
				out.WriteByte(c)
				continue
			}
			s = tail
		} else if i+1 < len(s) {
			arg, s = string(s[i+1]), s[i+2:]
		} else {
			out.WriteByte(c)
			continue
		}
		table := superscripts
		if c == '_' {
			table = subscripts
		}
		if mapped, ok := mapRunes(arg, table); ok {
			out.WriteString(mapped)
		} else {
			out.WriteByte(c)
			out.WriteString("(" + arg + ")")
		}
		i = -1
	}
	return out.String()
}

func mapRunes(s string, table map[rune]rune) (string, bool) {
	var out strings.Builder
	for _, r := range s {
		mapped, ok := table[r]
		if !ok {
			return "", false
		}
		out.WriteRune(mapped)
	}
	return out.String(), true
}

// takeGroup consumes a leading {...} group, honoring nesting, and returns
// the group body and the remainder.
func takeGroup(s string) (body, rest string, ok bool) {
	if len(s) == 0 || s[0] != '{' {
		return "", "", false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

func operand(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 1 || !strings.ContainsAny(s, " +-*/=") {
		return s
	}
	return "(" + s + ")"
}

// stripWrapper unwraps \cmd{body} to prefix+body, e.g. \text{if } -> "if ".
func stripWrapper(s, cmd, prefix string) string {
	for {
		at := strings.Index(s, cmd)
		if at < 0 {
			return s
		}
		body, tail, ok := takeGroup(s[at+len(cmd):])
		if !ok {
			return s
		}
		s = s[:at] + prefix + body + tail
	}
}
