// Package tui is the terminal document reader: paged rendering of
// extracted content, unit selection with a placement-aware popup, and
// streamed explanations with follow-up chat.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/lectern/internal/archive"
	"github.com/csheth/lectern/internal/document"
	"github.com/csheth/lectern/internal/explain"
	"github.com/csheth/lectern/internal/layout"
	"github.com/csheth/lectern/internal/selection"
)

type stage int

const (
	stageLoading stage = iota
	stageReading
	stageSearch
)

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 8
	pollInterval              = 2 * time.Second
)

// Config wires the reader to its collaborators. Records may be preloaded
// from a file or PDF import, in which case Store is unused.
type Config struct {
	DocumentID  string
	Store       *document.Client
	Explain     explain.Client
	Records     []document.Record
	Watcher     *document.Watcher
	ArchivePath string
}

type model struct {
	config Config
	stage  stage
	jobs   *jobBus

	spinner     spinner.Model
	viewport    viewport.Model
	searchInput textinput.Model

	width  int
	height int

	records    []document.Record
	pages      []document.Page
	flowed     []layout.Page
	flowedMode bool
	pageIdx    int

	rendered      renderedPage
	renderedDirty bool

	cursor int
	sel    *selection.Controller
	pop    *popupState

	searchQuery    string
	searchMatches  []matchRange
	searchMatchIdx int

	runningJobs map[string]jobSnapshot

	infoMessage  string
	errorMessage string
}

// New builds the reader model.
func New(config Config) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	search := textinput.New()
	search.Placeholder = "Search this page…"
	search.CharLimit = 120

	vp := viewport.New(80, 24)

	m := &model{
		config:         config,
		stage:          stageLoading,
		jobs:           newJobBus(),
		spinner:        spin,
		viewport:       vp,
		searchInput:    search,
		cursor:         -1,
		sel:            selection.NewController(),
		searchMatchIdx: -1,
		renderedDirty:  true,
		runningJobs:    map[string]jobSnapshot{},
		infoMessage:    "Loading document…",
	}
	if len(config.Records) > 0 {
		m.setRecords(config.Records)
	}
	return m
}

type recordsMsg struct {
	records []document.Record
	err     error
}

type pollTickMsg struct{}

type watchMsg struct {
	records []document.Record
	ok      bool
}

type streamPhase int

const (
	phaseExplain streamPhase = iota
	phaseChat
)

type snapshotMsg struct {
	instance string
	phase    streamPhase
	ch       <-chan explain.Snapshot
	snap     explain.Snapshot
}

type archiveDoneMsg struct {
	err error
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if len(m.records) == 0 && m.config.Store != nil {
		cmds = append(cmds, m.fetchCmd())
	}
	if m.config.Watcher != nil {
		cmds = append(cmds, waitWatch(m.config.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m *model) fetchCmd() tea.Cmd {
	store := m.config.Store
	docID := m.config.DocumentID
	return m.jobs.Start(jobKindFetch, func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, 35*time.Second)
		defer cancel()
		records, err := store.Fetch(ctx, docID)
		return recordsMsg{records: records, err: err}, err
	})
}

func waitWatch(w *document.Watcher) tea.Cmd {
	return func() tea.Msg {
		records, ok := <-w.Updates()
		return watchMsg{records: records, ok: ok}
	}
}

func waitSnapshot(instance string, phase streamPhase, ch <-chan explain.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap := <-ch
		return snapshotMsg{instance: instance, phase: phase, ch: ch, snap: snap}
	}
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if m.stage == stageLoading || len(m.runningJobs) > 0 || m.streamingOpen() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case jobSignalMsg:
		m.runningJobs[msg.Snapshot.ID] = msg.Snapshot
		return m, m.spinner.Tick

	case jobResultEnvelope:
		delete(m.runningJobs, msg.Snapshot.ID)
		if msg.Payload != nil {
			return m.Update(msg.Payload)
		}
		return m, nil

	case recordsMsg:
		return m.handleRecords(msg)

	case pollTickMsg:
		if len(m.records) == 0 && m.config.Store != nil {
			return m, m.fetchCmd()
		}
		return m, nil

	case watchMsg:
		if !msg.ok {
			return m, nil
		}
		m.setRecords(msg.records)
		m.infoMessage = "Document reloaded."
		return m, waitWatch(m.config.Watcher)

	case snapshotMsg:
		return m.handleSnapshot(msg)

	case archiveDoneMsg:
		if msg.err != nil {
			m.errorMessage = "Archive failed: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m *model) streamingOpen() bool {
	return m.pop != nil && (m.pop.session.Busy() || !m.pop.explainDone)
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = m.contentHeight()
	m.sel.Resize(width, height)
	m.sel.PopupSize(popupWidth(width), popupHeight(height))
	if m.pop != nil {
		m.pop.width = popupWidth(width)
		m.pop.height = popupHeight(height)
	}
	if m.flowedMode {
		m.reflow()
	}
	m.markDirty()
}

func popupWidth(width int) int {
	w := width / 2
	if w > 64 {
		w = 64
	}
	if w < 30 {
		w = 30
	}
	return w
}

func popupHeight(height int) int {
	h := height - 6
	if h > 22 {
		h = 22
	}
	if h < 8 {
		h = 8
	}
	return h
}

// contentHeight is the viewport rows left after the header, frame, and
// status bar.
func (m *model) contentHeight() int {
	h := m.height - 7
	if h < 8 {
		h = 8
	}
	return h
}

func (m *model) handleRecords(msg recordsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		if len(m.records) == 0 {
			// Keep polling; the store may just be warming up.
			return m, pollCmd()
		}
		return m, nil
	}
	m.errorMessage = ""
	if len(msg.records) == 0 {
		m.stage = stageLoading
		m.infoMessage = "Document is still processing…"
		return m, pollCmd()
	}
	m.setRecords(msg.records)
	m.infoMessage = fmt.Sprintf("Loaded %d pages. Enter explains the highlighted block.", m.pageCount())
	return m, nil
}

// setRecords assembles a fresh page list; the old one is discarded whole,
// never mutated.
func (m *model) setRecords(records []document.Record) {
	m.records = records
	m.flowedMode = !hasStructuredRecords(records)
	if m.flowedMode {
		m.reflow()
	} else {
		m.pages = document.Assemble(records)
	}
	if m.pageIdx >= m.pageCount() {
		m.pageIdx = m.pageCount() - 1
	}
	if m.pageIdx < 0 {
		m.pageIdx = 0
	}
	m.stage = stageReading
	m.cursor = -1
	m.infoMessage = ""
	m.clearSearch()
	m.markDirty()
}

func hasStructuredRecords(records []document.Record) bool {
	for _, rec := range records {
		switch rec.Type {
		case document.TypeComponents, document.TypeImage, document.TypeTable:
			return true
		}
	}
	return false
}

func (m *model) reflow() {
	m.flowed = paginateFlowed(m.records, m.width, m.contentHeight())
}

func (m *model) pageCount() int {
	if m.flowedMode {
		return len(m.flowed)
	}
	return len(m.pages)
}

func (m *model) markDirty() {
	m.renderedDirty = true
}

func (m *model) refreshIfDirty() {
	if !m.renderedDirty {
		return
	}
	m.renderedDirty = false
	width := m.width
	if width <= 0 {
		width = 80
	}
	switch {
	case m.flowedMode && m.pageIdx < len(m.flowed):
		m.rendered = renderFlowedPage(m.flowed[m.pageIdx], width)
	case !m.flowedMode && m.pageIdx < len(m.pages):
		m.rendered = renderComponentPage(m.pages[m.pageIdx], width)
	default:
		m.rendered = renderedPage{styled: []string{""}, plain: []string{""}}
	}
	m.viewport.SetContent(m.composePage())
}

// composePage applies cursor, selection, and search overlays onto the
// cached render.
func (m *model) composePage() string {
	lines := append([]string(nil), m.rendered.styled...)

	highlight := func(unit selection.Unit, style func(...string) string) {
		for y := unit.Rect.Y; y < unit.Rect.Y+unit.Rect.H && y < len(lines); y++ {
			lines[y] = style(m.rendered.plain[y])
		}
	}
	if m.cursor >= 0 && m.cursor < len(m.rendered.units) {
		highlight(m.rendered.units[m.cursor], cursorUnitStyle.Render)
	}
	if selected := m.sel.Selected(); selected != "" {
		for _, unit := range m.rendered.units {
			if unit.ID == selected {
				highlight(unit, selectedUnitStyle.Render)
			}
		}
	}

	if len(m.searchMatches) > 0 {
		currentLine, currentStart := -1, -1
		if m.searchMatchIdx >= 0 && m.searchMatchIdx < len(m.searchMatches) {
			currentLine = m.searchMatches[m.searchMatchIdx].line
			currentStart = m.searchMatches[m.searchMatchIdx].start
		}
		byLine := map[int][]matchRange{}
		for _, match := range m.searchMatches {
			byLine[match.line] = append(byLine[match.line], match)
		}
		for line, matches := range byLine {
			if line >= len(lines) {
				continue
			}
			start := -1
			if line == currentLine {
				start = currentStart
			}
			lines[line] = highlightLine(m.rendered.plain[line], matches, start)
		}
	}
	return strings.Join(lines, "\n")
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.pop != nil {
		return m.handlePopupKey(msg)
	}
	if m.stage == stageSearch {
		return m.handleSearchKey(msg)
	}
	return m.handleReadingKey(msg)
}

func (m *model) handleReadingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h", "[":
		m.gotoPage(m.pageIdx - 1)
		return m, nil
	case "right", "l", "]":
		m.gotoPage(m.pageIdx + 1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "g":
		m.viewport.GotoTop()
		return m, nil
	case "G":
		m.viewport.GotoBottom()
		return m, nil
	case "enter", " ":
		return m, m.activateCursor()
	case "/":
		m.stage = stageSearch
		m.searchInput.SetValue(m.searchQuery)
		m.searchInput.Focus()
		return m, textinput.Blink
	case "n":
		m.cycleMatch(1)
		return m, nil
	case "N":
		m.cycleMatch(-1)
		return m, nil
	case "esc":
		if m.searchQuery != "" {
			m.clearSearch()
			m.markDirty()
			return m, nil
		}
		return m, tea.Quit
	case "pgdown", "f":
		m.viewport.ViewDown()
		return m, nil
	case "pgup", "b":
		m.viewport.ViewUp()
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stage = stageReading
		m.searchInput.Blur()
		return m, nil
	case tea.KeyEnter:
		m.stage = stageReading
		m.searchInput.Blur()
		m.applySearch(m.searchInput.Value())
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *model) applySearch(query string) {
	m.searchQuery = strings.TrimSpace(query)
	m.refreshIfDirty()
	m.searchMatches = findMatches(m.rendered.plain, m.searchQuery)
	if len(m.searchMatches) == 0 {
		m.searchMatchIdx = -1
		if m.searchQuery != "" {
			m.infoMessage = fmt.Sprintf("No matches for %q on this page.", m.searchQuery)
		}
		m.markDirty()
		return
	}
	m.searchMatchIdx = 0
	m.jumpToMatch()
	m.markDirty()
}

func (m *model) cycleMatch(step int) {
	if len(m.searchMatches) == 0 {
		return
	}
	m.searchMatchIdx = (m.searchMatchIdx + step + len(m.searchMatches)) % len(m.searchMatches)
	m.jumpToMatch()
	m.markDirty()
}

func (m *model) jumpToMatch() {
	line := m.searchMatches[m.searchMatchIdx].line
	m.scrollLineIntoView(line, 1)
	m.infoMessage = fmt.Sprintf("Match %d/%d", m.searchMatchIdx+1, len(m.searchMatches))
}

func (m *model) clearSearch() {
	m.searchQuery = ""
	m.searchMatches = nil
	m.searchMatchIdx = -1
}

func (m *model) gotoPage(idx int) {
	if idx < 0 || idx >= m.pageCount() || idx == m.pageIdx {
		return
	}
	m.pageIdx = idx
	m.cursor = -1
	m.clearSearch()
	m.viewport.SetYOffset(0)
	m.markDirty()
}

func (m *model) moveCursor(step int) {
	m.refreshIfDirty()
	if len(m.rendered.units) == 0 {
		return
	}
	next := m.cursor + step
	if m.cursor < 0 {
		next = 0
		if step < 0 {
			next = len(m.rendered.units) - 1
		}
	}
	if next < 0 || next >= len(m.rendered.units) {
		return
	}
	m.cursor = next
	unit := m.rendered.units[m.cursor]
	m.scrollLineIntoView(unit.Rect.Y, unit.Rect.H)
	m.markDirty()
}

func (m *model) scrollLineIntoView(line, height int) {
	top := m.viewport.YOffset
	bottom := top + m.viewport.Height
	if line < top {
		m.viewport.SetYOffset(line)
	} else if line+height > bottom {
		m.viewport.SetYOffset(line + height - m.viewport.Height)
	}
}

// activateCursor opens the popup for the highlighted unit and fires the
// explanation stream.
func (m *model) activateCursor() tea.Cmd {
	m.refreshIfDirty()
	if m.cursor < 0 || m.cursor >= len(m.rendered.units) {
		return nil
	}
	if m.config.Explain == nil {
		m.errorMessage = "No explanation endpoint configured."
		return nil
	}
	unit := m.rendered.units[m.cursor]
	screen := unit
	screen.Rect = m.screenRect(unit.Rect)

	var archiveCmd tea.Cmd
	if m.pop != nil {
		archiveCmd = m.closePopup(false)
	}
	popup := m.sel.Activate(screen)
	session := explain.NewSession(m.config.Explain, m.config.DocumentID, popup.Instance)
	m.pop = newPopupState(popup, session, popupWidth(m.width), popupHeight(m.height))
	m.markDirty()

	ch, ok := session.Explain(context.Background(), unit.Payload.Content, unit.Payload.Kind, unit.Payload.ImageRef)
	if !ok {
		return archiveCmd
	}
	return tea.Batch(archiveCmd, waitSnapshot(popup.Instance, phaseExplain, ch), m.spinner.Tick, textinput.Blink)
}

// screenRect translates content-line coordinates into terminal cells: the
// header row plus the page frame's border and padding.
const (
	headerRows   = 1
	frameTopPad  = 2
	frameLeftPad = 3
)

func (m *model) screenRect(r selection.Rect) selection.Rect {
	return selection.Rect{
		X: r.X + frameLeftPad,
		Y: r.Y - m.viewport.YOffset + headerRows + frameTopPad,
		W: r.W,
		H: r.H,
	}
}

func (m *model) handlePopupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, m.closePopup(true)
	case tea.KeyEnter:
		return m, m.submitFollowUp()
	case tea.KeyUp:
		m.pop.scrollBy(-1)
		return m, nil
	case tea.KeyDown:
		m.pop.scrollBy(1)
		return m, nil
	case tea.KeyPgUp:
		m.pop.scrollBy(-m.pop.bodyHeight())
		return m, nil
	case tea.KeyPgDown:
		m.pop.scrollBy(m.pop.bodyHeight())
		return m, nil
	}
	var cmd tea.Cmd
	m.pop.input, cmd = m.pop.input.Update(msg)
	return m, cmd
}

func (m *model) submitFollowUp() tea.Cmd {
	text := strings.TrimSpace(m.pop.input.Value())
	if text == "" {
		return nil
	}
	ch, err := m.pop.session.Submit(context.Background(), text)
	if err != nil {
		if err == explain.ErrBusy {
			m.infoMessage = "Wait for the current reply to finish."
			return nil
		}
		m.errorMessage = err.Error()
		return nil
	}
	m.pop.input.SetValue("")
	m.pop.chatText = ""
	m.pop.chatErr = nil
	m.pop.follow = true
	return tea.Batch(waitSnapshot(m.pop.popup.Instance, phaseChat, ch), m.spinner.Tick)
}

// closePopup tears down the popup; the session stops routing tokens even
// if the network stream is still draining.
func (m *model) closePopup(clearSelection bool) tea.Cmd {
	if m.pop == nil {
		return nil
	}
	pop := m.pop
	m.pop = nil
	pop.session.Close()
	if clearSelection {
		m.sel.Close()
	}
	m.markDirty()
	return m.archivePopup(pop)
}

func (m *model) archivePopup(pop *popupState) tea.Cmd {
	if m.config.ArchivePath == "" {
		return nil
	}
	explanation := pop.session.Initial()
	if explanation == "" && pop.explainDone && pop.explainErr == nil {
		explanation = pop.explainText
	}
	turns := []archive.Turn{}
	now := time.Now()
	for _, msg := range pop.session.Messages() {
		if msg.Streaming {
			continue
		}
		turns = append(turns, archive.Turn{Role: msg.Role, Text: msg.Text, At: now})
	}
	if explanation == "" && len(turns) == 0 {
		return nil
	}
	transcript := archive.Transcript{
		DocumentID:  m.config.DocumentID,
		UnitID:      pop.popup.UnitID,
		Kind:        pop.popup.Payload.Kind,
		Content:     pop.popup.Payload.Content,
		Explanation: explanation,
		Turns:       turns,
	}
	path := m.config.ArchivePath
	return m.jobs.Start(jobKindArchive, func(context.Context) (tea.Msg, error) {
		err := archive.Append(path, transcript)
		return archiveDoneMsg{err: err}, err
	})
}

func (m *model) handleSnapshot(msg snapshotMsg) (tea.Model, tea.Cmd) {
	// A snapshot for a closed or replaced popup is stale; drop it and stop
	// waiting on that channel.
	if m.pop == nil || m.pop.popup.Instance != msg.instance {
		return m, nil
	}
	switch msg.phase {
	case phaseExplain:
		m.pop.explainText = msg.snap.Text
		if msg.snap.Done {
			m.pop.explainDone = true
			m.pop.explainErr = msg.snap.Err
			return m, nil
		}
	case phaseChat:
		m.pop.chatText = msg.snap.Text
		if msg.snap.Done {
			m.pop.chatText = ""
			m.pop.chatErr = msg.snap.Err
			return m, nil
		}
	}
	return m, waitSnapshot(msg.instance, msg.phase, msg.ch)
}

func (m *model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.MouseWheelUp:
		m.viewport.ViewUp()
		return m, nil
	case tea.MouseWheelDown:
		m.viewport.ViewDown()
		return m, nil
	case tea.MouseLeft:
		return m.handleClick(msg.X, msg.Y)
	}
	return m, nil
}

// handleClick resolves a click to a unit, or treats it as an outside click
// when the popup is open and the click lands elsewhere.
func (m *model) handleClick(x, y int) (tea.Model, tea.Cmd) {
	if m.pop != nil {
		place := m.pop.popup.Placement
		inside := x >= place.X && x < place.X+m.pop.width &&
			y >= place.Y && y < place.Y+m.pop.height
		if inside {
			return m, nil
		}
	}
	m.refreshIfDirty()
	contentX := x - frameLeftPad
	contentY := y - headerRows - frameTopPad + m.viewport.YOffset
	unit, ok := selection.Resolve(m.rendered.units, contentX, contentY)
	if !ok {
		if m.pop != nil {
			cmd := m.closePopup(true)
			m.sel.OutsideClick()
			return m, cmd
		}
		return m, nil
	}
	for i := range m.rendered.units {
		if m.rendered.units[i].ID == unit.ID {
			m.cursor = i
			break
		}
	}
	return m, m.activateCursor()
}
