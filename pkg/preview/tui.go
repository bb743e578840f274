package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/eurofeeds/pkg/feed"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	XMLViewMode
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Source describes the feed being previewed
type Source struct {
	Key      string
	Channel  feed.Channel
	SelfURL  string
	Renderer *feed.Renderer
}

// Model represents the Bubble Tea model for the preview TUI
type Model struct {
	items         []feed.Item
	source        Source
	cursor        int
	viewMode      ViewMode
	height        int
	selectedIndex int
	now           time.Time
}

// NewModel creates a new preview model
func NewModel(items []feed.Item, source Source, now time.Time) Model {
	return Model{
		items:         items,
		source:        source,
		viewMode:      ListViewMode,
		selectedIndex: -1,
		now:           now,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.viewMode == ListViewMode {
			return m.updateListView(msg)
		}
		return m.updateDetailView(msg)
	}

	return m, nil
}

func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case "home", "g":
		m.cursor = 0

	case "end", "G":
		m.cursor = max(len(m.items)-1, 0)

	case "enter":
		m.selectedIndex = m.cursor
		m.viewMode = DetailViewMode

	case "x":
		m.selectedIndex = m.cursor
		m.viewMode = XMLViewMode
	}

	return m, nil
}

func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewMode = ListViewMode

	case "x":
		if m.viewMode == DetailViewMode {
			m.viewMode = XMLViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case DetailViewMode:
		return m.renderDetailView()
	case XMLViewMode:
		return m.renderXMLView()
	default:
		return m.renderListView()
	}
}

// visibleRange keeps the cursor near the middle of the screen when the list is taller than it
func (m Model) visibleRange() (start, end int) {
	end = len(m.items)
	if m.height <= 0 {
		return 0, end
	}

	maxVisible := m.height - 6 // header, footer and padding
	if maxVisible <= 0 || maxVisible >= len(m.items) {
		return 0, end
	}

	start = max(m.cursor-maxVisible/2, 0)
	end = start + maxVisible
	if end > len(m.items) {
		end = len(m.items)
		start = max(end-maxVisible, 0)
	}
	return start, end
}

func (m Model) renderListView() string {
	var b strings.Builder

	header := fmt.Sprintf("Feed Preview - %s (%d items)", m.source.Channel.Title, len(m.items))
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		line := FormatCompactListItem(i, m.items[i])
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ or j/k: navigate • enter: view details • x: XML view • q: quit"))

	return b.String()
}

func (m Model) renderDetailView() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return "No item selected"
	}

	var b strings.Builder
	b.WriteString(FormatDetailedItem(m.items[m.selectedIndex], m.now))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • x: toggle XML view • q: quit"))

	return b.String()
}

func (m Model) renderXMLView() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return "No item selected"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("RSS Item Preview"))
	b.WriteString("\n\n")
	b.WriteString(FormatXMLItem(m.source.Renderer, m.source.Channel, m.source.SelfURL, m.items[m.selectedIndex]))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • x: toggle detail view • q: quit"))

	return b.String()
}

// Run starts the Bubble Tea program
func Run(items []feed.Item, source Source) error {
	if len(items) == 0 {
		fmt.Println("No items to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(items, source, time.Now()), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
