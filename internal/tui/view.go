package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *model) View() string {
	if m.width == 0 {
		return "Starting up…"
	}
	if m.stage == stageLoading && m.pageCount() == 0 {
		return m.loadingView()
	}

	m.refreshIfDirty()
	m.viewport.SetContent(m.composePage())

	header := m.headerView()
	frame := pageFrameStyle.Width(m.width - 2).Render(m.viewport.View())
	status := m.statusView()

	sections := []string{header, frame}
	if m.stage == stageSearch {
		sections = append(sections, helperStyle.Render(" /")+m.searchInput.View())
	}
	sections = append(sections, status)
	screen := strings.Join(sections, "\n")

	if m.pop != nil {
		place := m.pop.popup.Placement
		screen = overlay(screen, m.pop.view(), place.X, place.Y)
	}
	return screen
}

func (m *model) loadingView() string {
	message := m.infoMessage
	if message == "" {
		message = "Loading document…"
	}
	body := m.spinner.View() + " " + message
	if m.errorMessage != "" {
		body += "\n" + errorStyle.Render(m.errorMessage)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *model) headerView() string {
	title := titleStyle.Render("Lectern")
	doc := helperStyle.Render(m.config.DocumentID)
	page := fmt.Sprintf("Page %d/%d", m.pageIdx+1, m.pageCount())
	if m.pageCount() == 0 {
		page = "No pages"
	}

	left := " " + title + "  " + doc
	right := page + " "
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *model) statusView() string {
	parts := []string{}
	for _, snap := range m.runningJobs {
		parts = append(parts, fmt.Sprintf("%s %s…", m.spinner.View(), snap.Kind))
	}
	switch {
	case m.errorMessage != "":
		parts = append(parts, errorStyle.Render(m.errorMessage))
	case m.infoMessage != "":
		parts = append(parts, m.infoMessage)
	}
	if m.searchQuery != "" && len(m.searchMatches) > 0 {
		parts = append(parts, fmt.Sprintf("%q %d/%d (n/N)", m.searchQuery, m.searchMatchIdx+1, len(m.searchMatches)))
	}
	parts = append(parts, keyHelp(m.pop != nil))
	return statusBarStyle.Width(m.width).Render(strings.Join(parts, "  •  "))
}

func keyHelp(popupOpen bool) string {
	if popupOpen {
		return "Enter: ask • ↑/↓: scroll • Esc: close"
	}
	return "←/→: page • j/k: block • Enter: explain • /: search • q: quit"
}
