package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// packageListModel - Interactive package selection
// =============================================================================

// packageRow is one locked package in the picker.
type packageRow struct {
	ID         string
	Version    string
	Markers    string
	TopLevel   bool
	RequiredBy int
}

// packageListModel is the bubbletea model for picking a locked package.
type packageListModel struct {
	Rows     []packageRow
	Cursor   int
	Selected string
	Height   int
	Offset   int
}

// newPackageListModel lists every node of the lock graph.
func newPackageListModel(lg *lockGraph) packageListModel {
	var rows []packageRow
	for _, id := range lg.graph.Nodes() {
		rows = append(rows, packageRow{
			ID:         id,
			Version:    lg.info[id].Version,
			Markers:    lg.info[id].Markers,
			TopLevel:   lg.tops[id],
			RequiredBy: len(lg.graph.Parents(id)),
		})
	}
	return packageListModel{Rows: rows, Height: 15}
}

func (m packageListModel) Init() tea.Cmd {
	return nil
}

func (m packageListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Rows) == 0 {
				return m, tea.Quit
			}
			m.Selected = m.Rows[m.Cursor].ID
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m packageListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Package"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Rows))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		top := ""
		if r.TopLevel {
			top = "✓"
		}
		markers := r.Markers
		if markers == "" {
			markers = "—"
		}
		rows = append(rows, []string{cursor, r.ID, r.Version, top, fmt.Sprint(r.RequiredBy), markers})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Pipfile", "Required by", "Markers").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Rows) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col >= 3 {
				base = base.Foreground(colorDim)
			}
			if idx == m.Cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			if m.Rows[idx].TopLevel && col < 3 {
				return base.Foreground(colorCyan)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", min(m.Cursor+1, len(m.Rows)), len(m.Rows))))

	return b.String()
}
