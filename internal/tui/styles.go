package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true)
	abstractStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("147"))
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	authorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	equationStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	captionStyle       = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	searchHighlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("190"))
	searchCurrentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("229"))
	selectedUnitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	cursorUnitStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#bde0fe"))

	pageFrameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	figureBoxStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("110")).Padding(0, 1)
	statusBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	popupFrameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(0, 1)
	popupTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7f5af0"))
	userTurnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd166"))
	assistTurnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	streamCaretStyle = lipgloss.NewStyle().Blink(true).Foreground(lipgloss.Color("#7f5af0"))
)
