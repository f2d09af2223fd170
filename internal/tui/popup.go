package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/lectern/internal/explain"
	"github.com/csheth/lectern/internal/selection"
)

// popupState is everything one open popup owns: its placement, the explain
// session, streaming progress, the follow-up composer, and the scroll
// window over the conversation.
type popupState struct {
	popup   selection.Popup
	session *explain.Session

	explainText string
	explainDone bool
	explainErr  error
	chatText    string
	chatErr     error

	input  textinput.Model
	scroll int
	follow bool

	width  int
	height int

	mdCache    string
	mdCacheKey string
}

func newPopupState(popup selection.Popup, session *explain.Session, width, height int) *popupState {
	input := textinput.New()
	input.Placeholder = "Ask a follow-up…"
	input.CharLimit = 500
	input.Focus()
	return &popupState{
		popup:   popup,
		session: session,
		input:   input,
		follow:  true,
		width:   width,
		height:  height,
	}
}

func (p *popupState) contentWidth() int {
	w := p.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// bodyHeight is the window the conversation scrolls inside: total popup
// height minus frame, title, composer, and status rows.
func (p *popupState) bodyHeight() int {
	h := p.height - 6
	if h < 4 {
		h = 4
	}
	return h
}

func (p *popupState) scrollBy(delta int) {
	total := len(p.bodyLines())
	max := total - p.bodyHeight()
	if max < 0 {
		max = 0
	}
	p.scroll += delta
	if p.scroll < 0 {
		p.scroll = 0
	}
	if p.scroll > max {
		p.scroll = max
	}
	// Scrolling back to the bottom re-engages auto-follow.
	p.follow = p.scroll == max
}

// bodyLines renders the full conversation: the initial explanation first,
// then the chat turns in sequence order.
func (p *popupState) bodyLines() []string {
	wrap := p.contentWidth()
	lines := []string{}

	switch {
	case p.explainErr != nil:
		lines = append(lines, errorStyle.Render(wordwrap.String("Explanation failed: "+p.explainErr.Error(), wrap)))
	case p.explainText == "" && !p.explainDone:
		lines = append(lines, helperStyle.Render("Streaming explanation")+streamCaretStyle.Render("▍"))
	default:
		lines = append(lines, strings.Split(p.markdown(p.explainText), "\n")...)
		if !p.explainDone {
			lines[len(lines)-1] += streamCaretStyle.Render("▍")
		}
	}

	messages := p.session.Messages()
	for _, msg := range messages {
		lines = append(lines, "")
		label := userTurnStyle.Render("You")
		body := msg.Text
		style := assistTurnStyle
		if msg.Role == explain.RoleAssistant {
			label = popupTitleStyle.Render("Lectern")
			if msg.Streaming {
				body = p.chatText
			}
		} else {
			style = userTurnStyle
		}
		lines = append(lines, label)
		wrapped := strings.Split(wordwrap.String(body, wrap), "\n")
		for i, line := range wrapped {
			if msg.Streaming && i == len(wrapped)-1 {
				lines = append(lines, style.Render(line)+streamCaretStyle.Render("▍"))
				continue
			}
			lines = append(lines, style.Render(line))
		}
	}
	if p.chatErr != nil {
		lines = append(lines, "", errorStyle.Render(wordwrap.String("Reply failed: "+p.chatErr.Error(), wrap)))
	}
	return lines
}

// visibleLines windows the body: only the slice intersecting the viewport
// renders, and the window rides the bottom while follow is on.
func (p *popupState) visibleLines() []string {
	lines := p.bodyLines()
	height := p.bodyHeight()
	if len(lines) <= height {
		return lines
	}
	max := len(lines) - height
	if p.follow {
		p.scroll = max
	}
	if p.scroll > max {
		p.scroll = max
	}
	return lines[p.scroll : p.scroll+height]
}

func (p *popupState) view() string {
	title := popupTitleStyle.Render(kindTitle(p.popup.Payload.Kind))
	body := strings.Join(p.visibleLines(), "\n")

	status := helperStyle.Render("Enter: ask • Esc: close")
	if p.session.Busy() {
		status = helperStyle.Render("Streaming… submissions wait for the reply")
	}

	inner := strings.Join([]string{title, body, p.input.View(), status}, "\n")
	return popupFrameStyle.Width(p.width - 2).Render(inner)
}

func (p *popupState) markdown(text string) string {
	key := fmt.Sprintf("%d:%d:%s", p.width, len(text), text)
	if key == p.mdCacheKey {
		return p.mdCache
	}
	out := wordwrap.String(text, p.contentWidth())
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(p.contentWidth()),
	)
	if err == nil {
		if rendered, rerr := renderer.Render(text); rerr == nil {
			out = strings.Trim(rendered, "\n")
		}
	}
	p.mdCacheKey, p.mdCache = key, out
	return out
}

func kindTitle(kind string) string {
	switch kind {
	case "equation":
		return "Equation"
	case "image":
		return "Figure"
	case "table":
		return "Table"
	case "heading":
		return "Section"
	case "title":
		return "Title"
	case "abstract":
		return "Abstract"
	default:
		return "Passage"
	}
}

// overlay composites top onto base at (x, y) in cell coordinates. Base
// content to the right of the popup is covered for those rows.
func overlay(base, top string, x, y int) string {
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	baseLines := strings.Split(base, "\n")
	topLines := strings.Split(top, "\n")
	for i, topLine := range topLines {
		row := y + i
		if row >= len(baseLines) {
			baseLines = append(baseLines, "")
			row = len(baseLines) - 1
		}
		left := truncate.String(baseLines[row], uint(x))
		pad := x - lipgloss.Width(left)
		if pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		baseLines[row] = left + topLine
	}
	return strings.Join(baseLines, "\n")
}
