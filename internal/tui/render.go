package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/lectern/internal/document"
	"github.com/csheth/lectern/internal/layout"
	"github.com/csheth/lectern/internal/mathtext"
	"github.com/csheth/lectern/internal/selection"
)

var ansiEscapeCodes = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// renderedPage is one document page laid out for the terminal: styled lines
// for display, plain lines for search and overlays, and the clickable unit
// rectangles in line coordinates.
type renderedPage struct {
	styled []string
	plain  []string
	units  []selection.Unit
}

type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

func (cb *contentBuilder) String() string { return cb.builder.String() }

func (cb *contentBuilder) Line() int { return cb.lines }

// renderComponentPage lays out an assembled page. Every block ends with one
// newline and a blank separator line, so unit heights come straight from
// the line counter.
func renderComponentPage(p document.Page, width int) renderedPage {
	cb := &contentBuilder{}
	units := []selection.Unit{}
	wrap := contentWrapWidth(width)

	for idx, comp := range document.RenderList(p) {
		body, kind, clickable := renderComponent(comp, wrap)
		if body == "" {
			continue
		}
		if cb.Line() > 0 {
			cb.WriteRune('\n')
		}
		start := cb.Line()
		cb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			cb.WriteRune('\n')
		}
		if clickable {
			units = append(units, selection.Unit{
				ID:   fmt.Sprintf("p%d-c%d", p.Number, idx),
				Rect: selection.Rect{X: 0, Y: start, W: wrap, H: cb.Line() - start},
				Payload: selection.Payload{
					Content:  payloadText(comp),
					Kind:     kind,
					ImageRef: imageRefOf(comp),
				},
			})
		}
	}

	styled := splitLinesPreserve(strings.TrimRight(cb.String(), "\n"))
	plain := make([]string, len(styled))
	for i, line := range styled {
		plain[i] = ansiEscapeCodes.ReplaceAllString(line, "")
	}
	return renderedPage{styled: styled, plain: plain, units: units}
}

// renderComponent returns the styled block, the payload kind sent to the
// explanation endpoint, and whether the block is activatable.
func renderComponent(comp document.Component, wrap int) (string, string, bool) {
	switch comp.Kind {
	case document.KindTitle:
		return titleStyle.Render(wordwrap.String(componentText(comp), wrap)), "title", true
	case document.KindAbstract:
		return abstractStyle.Render(wordwrap.String(mathtext.Render(componentText(comp)), wrap)), "abstract", true
	case document.KindAuthorBlock:
		return authorStyle.Render(wordwrap.String(componentText(comp), wrap)), "authors", false
	case document.KindFooter:
		return helperStyle.Render(wordwrap.String(componentText(comp), wrap)), "footer", false
	case document.KindHeading:
		return sectionHeaderStyle.Render(wordwrap.String(headingText(comp), wrap)), "heading", true
	case document.KindText, document.KindParagraph:
		return wordwrap.String(mathtext.Render(comp.PlainText()), wrap), "text", true
	case document.KindFigureTitle, document.KindFigureCaption, document.KindTableCaption:
		return captionStyle.Render(wordwrap.String(mathtext.Render(componentText(comp)), wrap)), "caption", false
	case document.KindEquation:
		return renderEquation(comp, wrap), "equation", true
	case document.KindList:
		return renderList(comp, wrap), "list", true
	case document.KindImageGroup:
		return renderFigureGroup(comp, wrap, "Figure"), "image", true
	case document.KindTableGroup:
		return renderFigureGroup(comp, wrap, "Table"), "table", true
	default:
		text := comp.PlainText()
		if strings.TrimSpace(text) == "" {
			return "", "", false
		}
		return wordwrap.String(mathtext.Render(text), wrap), "text", true
	}
}

func componentText(comp document.Component) string {
	return strings.TrimSpace(comp.PlainText())
}

func headingText(comp document.Component) string {
	if comp.Heading == nil {
		return componentText(comp)
	}
	if comp.Heading.SectionNumber != "" {
		return comp.Heading.SectionNumber + "  " + comp.Heading.Text
	}
	return comp.Heading.Text
}

func renderEquation(comp document.Component, wrap int) string {
	if comp.Equation == nil {
		return ""
	}
	text, err := mathtext.RenderLatex(comp.Equation.Latex, comp.Equation.Display)
	if err != nil {
		text = comp.Equation.Latex
	}
	text = strings.TrimSpace(text)
	if comp.Equation.Number != "" {
		text = text + "   " + comp.Equation.Number
	}
	indent := (wrap - lipgloss.Width(text)) / 2
	if indent < 0 || !comp.Equation.Display {
		indent = 0
	}
	return strings.Repeat(" ", indent) + equationStyle.Render(text)
}

func renderList(comp document.Component, wrap int) string {
	if comp.List == nil {
		return ""
	}
	var b strings.Builder
	for i, item := range comp.List.Items {
		marker := " • "
		if comp.List.Ordered {
			marker = fmt.Sprintf(" %d. ", i+1)
		}
		b.WriteString(marker)
		b.WriteString(indentContinuation(wordwrap.String(mathtext.Render(item), wrap-len(marker)), len(marker)))
		if i < len(comp.List.Items)-1 {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// renderFigureGroup draws a grouped cluster side by side, one bordered box
// per member.
func renderFigureGroup(comp document.Component, wrap int, label string) string {
	if comp.Group == nil || len(comp.Group.Members) == 0 {
		return ""
	}
	boxWidth := wrap/len(comp.Group.Members) - 4
	if boxWidth < 16 {
		boxWidth = 16
	}
	boxes := make([]string, 0, len(comp.Group.Members))
	for _, member := range comp.Group.Members {
		lines := []string{label}
		if member.Figure.Alt != "" {
			lines = append(lines, wordwrap.String(member.Figure.Alt, boxWidth))
		}
		if member.Figure.Caption != "" {
			lines = append(lines, captionStyle.Render(wordwrap.String(mathtext.Render(member.Figure.Caption), boxWidth)))
		}
		if member.Figure.URL != "" {
			lines = append(lines, helperStyle.Render(truncateLine(member.Figure.URL, boxWidth)))
		}
		boxes = append(boxes, figureBoxStyle.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// payloadText is what an explanation request carries for a component;
// grouped figures send their alt text and captions.
func payloadText(comp document.Component) string {
	if comp.Kind != document.KindImageGroup && comp.Kind != document.KindTableGroup {
		return comp.PlainText()
	}
	if comp.Group == nil {
		return ""
	}
	parts := []string{}
	for _, member := range comp.Group.Members {
		if member.Figure.Alt != "" {
			parts = append(parts, member.Figure.Alt)
		}
		if member.Figure.Caption != "" {
			parts = append(parts, member.Figure.Caption)
		}
	}
	return strings.Join(parts, " ")
}

func imageRefOf(comp document.Component) string {
	if comp.Group == nil || len(comp.Group.Members) == 0 {
		return ""
	}
	return comp.Group.Members[0].Figure.URL
}

// renderFlowedPage lays out one page of the plain-text variant, where
// pagination came from the layout engine rather than the extraction
// pipeline.
func renderFlowedPage(pg layout.Page, width int) renderedPage {
	cb := &contentBuilder{}
	units := []selection.Unit{}
	wrap := contentWrapWidth(width)

	for _, block := range pg.Blocks {
		if cb.Line() > 0 {
			cb.WriteRune('\n')
		}
		start := cb.Line()
		body := wordwrap.String(mathtext.Render(block.Content), wrap)
		kind := "text"
		if block.Heading {
			body = sectionHeaderStyle.Render(body)
			kind = "heading"
		}
		cb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			cb.WriteRune('\n')
		}
		units = append(units, selection.Unit{
			ID:      block.ID,
			Rect:    selection.Rect{X: 0, Y: start, W: wrap, H: cb.Line() - start},
			Payload: selection.Payload{Content: block.Content, Kind: kind},
		})
	}

	styled := splitLinesPreserve(strings.TrimRight(cb.String(), "\n"))
	plain := make([]string, len(styled))
	for i, line := range styled {
		plain[i] = ansiEscapeCodes.ReplaceAllString(line, "")
	}
	return renderedPage{styled: styled, plain: plain, units: units}
}

// paginateFlowed splits plain-text records into viewport-sized pages.
func paginateFlowed(records []document.Record, width, height int) []layout.Page {
	var blocks []layout.Block
	for _, rec := range records {
		text := document.PlainTextOf(rec)
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, b := range layout.BlocksFromText(text) {
			b.ID = fmt.Sprintf("r%s-%s", rec.ID, b.ID)
			blocks = append(blocks, b)
		}
	}
	maxHeight := height - 4
	if maxHeight < 8 {
		maxHeight = 8
	}
	return layout.Paginate(blocks, layout.WrapEstimator{Gap: 1}, contentWrapWidth(width), maxHeight)
}

func contentWrapWidth(width int) int {
	wrap := width - viewportHorizontalPadding
	if wrap < minViewportWidth {
		wrap = minViewportWidth
	}
	return wrap
}

func indentContinuation(text string, indent int) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return text
	}
	prefix := strings.Repeat(" ", indent)
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, limit int) string {
	if limit <= 1 || len(s) <= limit {
		return s
	}
	return s[:limit-1] + "…"
}

func splitLinesPreserve(content string) []string {
	if content == "" {
		return []string{""}
	}
	return strings.Split(content, "\n")
}

type matchRange struct {
	line  int
	start int
	end   int
}

// findMatches scans plain lines case-insensitively.
func findMatches(plain []string, query string) []matchRange {
	lowerQuery := strings.ToLower(strings.TrimSpace(query))
	if lowerQuery == "" {
		return nil
	}
	var matches []matchRange
	for lineIdx, line := range plain {
		lowerLine := strings.ToLower(line)
		searchIdx := 0
		for {
			idx := strings.Index(lowerLine[searchIdx:], lowerQuery)
			if idx == -1 {
				break
			}
			start := searchIdx + idx
			matches = append(matches, matchRange{line: lineIdx, start: start, end: start + len(lowerQuery)})
			searchIdx = start + len(lowerQuery)
			if searchIdx >= len(line) {
				break
			}
		}
	}
	return matches
}

// highlightLine re-renders one plain line with its matches emphasized.
func highlightLine(plain string, matches []matchRange, currentStart int) string {
	if len(matches) == 0 {
		return plain
	}
	var b strings.Builder
	pos := 0
	for _, match := range matches {
		if match.start > len(plain) {
			break
		}
		if match.start > pos {
			b.WriteString(plain[pos:match.start])
		}
		end := match.end
		if end > len(plain) {
			end = len(plain)
		}
		segment := plain[match.start:end]
		if match.start == currentStart {
			b.WriteString(searchCurrentStyle.Render(segment))
		} else {
			b.WriteString(searchHighlightStyle.Render(segment))
		}
		pos = end
	}
	if pos < len(plain) {
		b.WriteString(plain[pos:])
	}
	return b.String()
}
