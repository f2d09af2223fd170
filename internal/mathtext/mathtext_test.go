package mathtext

import (
	"strings"
	"testing"
)

func TestRenderDisplayBeforeInline(t *testing.T) {
	got := Render("$$x=1$$")
	if strings.Contains(got, "$") {
		t.Fatalf("display span not consumed whole: %q", got)
	}
	if !strings.Contains(got, "x=1") {
		t.Fatalf("display body lost: %q", got)
	}
}

func TestRenderMixedDisplayAndInline(t *testing.T) {
	got := Render(`Consider $$E = mc^2$$ where $m$ is mass.`)
	if strings.Contains(got, "$") {
		t.Fatalf("delimiters should all be consumed: %q", got)
	}
	if !strings.Contains(got, "E = mc²") {
		t.Fatalf("display equation mangled: %q", got)
	}
	if !strings.Contains(got, "where m is mass") {
		t.Fatalf("inline span mangled: %q", got)
	}
}

func TestRenderBracketAndParenDelimiters(t *testing.T) {
	got := Render(`\[ \alpha + \beta \] and \(\gamma\)`)
	if !strings.Contains(got, "α + β") || !strings.Contains(got, "γ") {
		t.Fatalf("backslash delimiters not handled: %q", got)
	}
}

func TestRenderUnpairedDollarUntouched(t *testing.T) {
	in := "costs $5 and that is all"
	if got := Render(in); got != in {
		t.Fatalf("unpaired dollar must pass through: %q", got)
	}
}

func TestRenderFailedSpanKeepsOriginal(t *testing.T) {
	got := Render(`before $\unknowncmd{x}$ after $y=2$`)
	if !strings.Contains(got, `$\unknowncmd{x}$`) {
		t.Fatalf("failed span should keep its original source: %q", got)
	}
	if !strings.Contains(got, "y=2") || strings.Contains(got, "$y=2$") {
		t.Fatalf("healthy span should still render: %q", got)
	}
}

func TestRenderUnbalancedBracesKeepOriginal(t *testing.T) {
	in := `$\frac{a}{$`
	if got := Render(in); got != in {
		t.Fatalf("unbalanced span should stay literal: %q", got)
	}
}

func TestRenderPlainTextFastPath(t *testing.T) {
	in := "no math here at all"
	if got := Render(in); got != in {
		t.Fatalf("plain text should pass through unchanged: %q", got)
	}
}

func TestRenderMemoized(t *testing.T) {
	in := `$\alpha$ twice`
	first := Render(in)
	second := Render(in)
	if first != second {
		t.Fatalf("memoized calls disagree: %q vs %q", first, second)
	}
}

func TestRenderLatexFractions(t *testing.T) {
	got, err := RenderLatex(`\frac{1}{2}`, false)
	if err != nil {
		t.Fatalf("RenderLatex: %v", err)
	}
	if got != "1/2" {
		t.Fatalf("expected 1/2, got %q", got)
	}

	got, err = RenderLatex(`\frac{a+b}{c}`, false)
	if err != nil {
		t.Fatalf("RenderLatex: %v", err)
	}
	if got != "(a+b)/c" {
		t.Fatalf("multi-token numerator should parenthesize: %q", got)
	}
}

func TestRenderLatexScripts(t *testing.T) {
	cases := []struct{ in, want string }{
		{`x^2`, "x²"},
		{`x_0`, "x₀"},
		{`x^{10}`, "x¹⁰"},
		{`A^T`, "Aᵀ"},
		{`x_{max}`, "xₘₐₓ"},
		{`x_{ref}`, "x_(ref)"},
	}
	for _, tc := range cases {
		got, err := RenderLatex(tc.in, false)
		if err != nil {
			t.Fatalf("RenderLatex(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("RenderLatex(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderLatexSymbolPrefixes(t *testing.T) {
	got, err := RenderLatex(`x \in S, n \to \infty, a \leq b`, false)
	if err != nil {
		t.Fatalf("RenderLatex: %v", err)
	}
	for _, want := range []string{"∈", "→", "∞", "≤"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %s in %q", want, got)
		}
	}
	if strings.Contains(got, "fty") || strings.Contains(got, "≤q") {
		t.Fatalf("prefix command fired inside a longer one: %q", got)
	}
}

func TestRenderLatexTextWrapper(t *testing.T) {
	got, err := RenderLatex(`\text{if } x > 0`, false)
	if err != nil {
		t.Fatalf("RenderLatex: %v", err)
	}
	if got != "if x > 0" {
		t.Fatalf("text wrapper should unwrap: %q", got)
	}
}

func TestRenderLatexSqrt(t *testing.T) {
	got, err := RenderLatex(`\sqrt{n}`, false)
	if err != nil {
		t.Fatalf("RenderLatex: %v", err)
	}
	if got != "√(n)" {
		t.Fatalf("expected √(n), got %q", got)
	}
}

func TestRenderLatexDisplayPadding(t *testing.T) {
	got, err := RenderLatex(`x=1`, true)
	if err != nil {
		t.Fatalf("RenderLatex: %v", err)
	}
	if got != " x=1 " {
		t.Fatalf("display mode should pad: %q", got)
	}
}
