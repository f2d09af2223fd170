package mathtext

var symbols = map[string]string{
	`\alpha`:   "α",
	`\beta`:    "β",
	`\gamma`:   "γ",
	`\delta`:   "δ",
	`\epsilon`: "ε",
	`\zeta`:    "ζ",
	`\eta`:     "η",
	`\theta`:   "θ",
	`\iota`:    "ι",
	`\kappa`:   "κ",
	`\lambda`:  "λ",
	`\mu`:      "μ",
	`\nu`:      "ν",
	`\xi`:      "ξ",
	`\pi`:      "π",
	`\rho`:     "ρ",
	`\sigma`:   "σ",
	`\tau`:     "τ",
	`\upsilon`: "υ",
	`\phi`:     "φ",
	`\chi`:     "χ",
	`\psi`:     "ψ",
	`\omega`:   "ω",
	`\Gamma`:   "Γ",
	`\Delta`:   "Δ",
	`\Theta`:   "Θ",
	`\Lambda`:  "Λ",
	`\Xi`:      "Ξ",
	`\Pi`:      "Π",
	`\Sigma`:   "Σ",
	`\Phi`:     "Φ",
	`\Psi`:     "Ψ",
	`\Omega`:   "Ω",

	`\leq`:     "≤",
	`\le`:      "≤",
	`\geq`:     "≥",
	`\ge`:      "≥",
	`\neq`:     "≠",
	`\ne`:      "≠",
	`\approx`:  "≈",
	`\sim`:     "~",
	`\propto`:  "∝",
	`\equiv`:   "≡",
	`\times`:   "×",
	`\cdot`:    "·",
	`\cdots`:   "⋯",
	`\ldots`:   "…",
	`\dots`:    "…",
	`\pm`:      "±",
	`\mp`:      "∓",
	`\div`:     "÷",
	`\ast`:     "*",
	`\star`:    "⋆",
	`\circ`:    "∘",
	`\infty`:   "∞",
	`\partial`: "∂",
	`\nabla`:   "∇",
	`\sum`:     "Σ",
	`\prod`:    "Π",
	`\int`:     "∫",
	`\oint`:    "∮",

	`\in`:        "∈",
	`\notin`:     "∉",
	`\subseteq`:  "⊆",
	`\subset`:    "⊂",
	`\supseteq`:  "⊇",
	`\supset`:    "⊃",
	`\cup`:       "∪",
	`\cap`:       "∩",
	`\emptyset`:  "∅",
	`\setminus`:  "∖",
	`\forall`:    "∀",
	`\exists`:    "∃",
	`\neg`:       "¬",
	`\land`:      "∧",
	`\wedge`:     "∧",
	`\lor`:       "∨",
	`\vee`:       "∨",
	`\implies`:   "⟹",
	`\iff`:       "⟺",
	`\mapsto`:    "↦",
	`\to`:        "→",
	`\gets`:      "←",
	`\leftarrow`: "←",
	`\uparrow`:   "↑",
	`\downarrow`: "↓",

	`\mathbb{R}`: "ℝ",
	`\mathbb{N}`: "ℕ",
	`\mathbb{Z}`: "ℤ",
	`\mathbb{Q}`: "ℚ",
	`\mathbb{C}`: "ℂ",
	`\ell`:       "ℓ",
	`\hbar`:      "ℏ",
	`\angle`:     "∠",
	`\perp`:      "⊥",
	`\parallel`:  "∥",
	`\prime`:     "′",
	`\degree`:    "°",

	`\,`:        " ",
	`\;`:        " ",
	`\:`:        " ",
	`\!`:        "",
	`\quad`:     "  ",
	`\qquad`:    "    ",
	`\ `:        " ",
	`\\`:        "\n",
	`\langle`:   "⟨",
	`\rangle`:   "⟩",
	`\lfloor`:   "⌊",
	`\rfloor`:   "⌋",
	`\lceil`:    "⌈",
	`\rceil`:    "⌉",
	`\left`:     "",
	`\right`:    "",
	`\big`:      "",
	`\Big`:      "",
	`\bigg`:     "",
	`\Bigg`:     "",
	`\nonumber`: "",

	`\sin`:    "sin",
	`\cos`:    "cos",
	`\tan`:    "tan",
	`\log`:    "log",
	`\ln`:     "ln",
	`\exp`:    "exp",
	`\min`:    "min",
	`\max`:    "max",
	`\arg`:    "arg",
	`\argmin`: "argmin",
	`\argmax`: "argmax",
	`\lim`:    "lim",
	`\sup`:    "sup",
	`\inf`:    "inf",
	`\det`:    "det",
	`\dim`:    "dim",
	`\mod`:    "mod",
}

// Wrapper commands whose braces carry ordinary text; the wrapper drops and
// the body stays.
var textCommands = map[string]string{
	`\text`:         "",
	`\textrm`:       "",
	`\textit`:       "",
	`\textbf`:       "",
	`\mathrm`:       "",
	`\mathit`:       "",
	`\mathbf`:       "",
	`\mathcal`:      "",
	`\mathsf`:       "",
	`\mathtt`:       "",
	`\operatorname`: "",
	`\boldsymbol`:   "",
	`\bm`:           "",
	`\hat`:          "",
	`\bar`:          "",
	`\tilde`:        "",
	`\vec`:          "",
	`\overline`:     "",
	`\underline`:    "",
}

var superscripts = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
	'+': '⁺', '-': '⁻', '=': '⁼', '(': '⁽', ')': '⁾',
	'n': 'ⁿ', 'i': 'ⁱ', 'T': 'ᵀ',
}

var subscripts = map[rune]rune{
	'0': '₀', '1': '₁', '2': '₂', '3': '₃', '4': '₄',
	'5': '₅', '6': '₆', '7': '₇', '8': '₈', '9': '₉',
	'+': '₊', '-': '₋', '=': '₌', '(': '₍', ')': '₎',
	'a': 'ₐ', 'e': 'ₑ', 'i': 'ᵢ', 'j': 'ⱼ', 'k': 'ₖ',
	'm': 'ₘ', 'n': 'ₙ', 'o': 'ₒ', 'p': 'ₚ', 't': 'ₜ',
	'x': 'ₓ',
}
