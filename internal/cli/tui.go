package cli

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/interact"
	"github.com/matzehuels/orbit/pkg/core/render"
	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	tableHeaderStyle  = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// weightStep is how far +/- move the minimum edge weight.
const weightStep = 1.0

// =============================================================================
// ExploreModel - Interactive view over a controller
// =============================================================================

// ExploreModel is the bubbletea model behind 'orbit explore'. It lists the
// visible authors of a controller's current frame and maps keys onto
// controller operations.
type ExploreModel struct {
	ctrl  *interact.Controller
	frame *render.Frame

	Cursor int
	Offset int
	Height int

	// typing is true while the query line has focus.
	typing bool
	query  string
	status string
}

// NewExploreModel creates a model over c.
func NewExploreModel(c *interact.Controller) ExploreModel {
	m := ExploreModel{ctrl: c, Height: 15}
	m.refresh()
	m.query = m.frame.Filters.Query
	return m
}

// Frame returns the frame the model last drew.
func (m ExploreModel) Frame() *render.Frame { return m.frame }

func (m *ExploreModel) refresh() {
	var current string
	if m.frame != nil && m.Cursor < len(m.frame.Nodes) {
		current = m.frame.Nodes[m.Cursor].ID
	}
	m.frame = m.ctrl.Frame()
	if i := slices.IndexFunc(m.frame.Nodes, func(n render.FrameNode) bool { return n.ID == current }); i >= 0 {
		m.Cursor = i
	}
	m.Cursor = max(0, min(m.Cursor, len(m.frame.Nodes)-1))
	m.scroll()
}

func (m *ExploreModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
	m.Offset = max(0, m.Offset)
}

func (m ExploreModel) Init() tea.Cmd {
	return nil
}

func (m ExploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.typing {
			return m.updateQuery(msg), nil
		}
		return m.updateKey(msg)
	case tea.WindowSizeMsg:
		m.Height = max(5, msg.Height-9)
		m.scroll()
	}
	return m, nil
}

func (m ExploreModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.Cursor > 0 {
			m.Cursor--
			m.scroll()
		}
	case "down", "j":
		if m.Cursor < len(m.frame.Nodes)-1 {
			m.Cursor++
			m.scroll()
		}
	case "enter", " ":
		if n, ok := m.current(); ok {
			m.ctrl.ToggleSelection(n.ID)
			m.refresh()
		}
	case "f":
		if n, ok := m.current(); ok {
			focus := n.ID
			if m.frame.Filters.Focus == focus {
				focus = ""
			}
			m.apply(filter.SetFocus(focus))
		}
	case "1", "2", "3":
		t := snapshot.Tiers[len(snapshot.Tiers)-int(key[0]-'0')]
		if tiers, ok := toggleTier(m.frame.Filters.Tiers, t); ok {
			m.apply(filter.SetTiers(tiers...))
		}
	case "+", "=":
		m.apply(filter.SetMinWeight(stepWeight(m.frame.Filters.Weight.Min, weightStep)))
	case "-":
		m.apply(filter.SetMinWeight(stepWeight(m.frame.Filters.Weight.Min, -weightStep)))
	case "s":
		m.apply(filter.SetSharedOnly(!m.frame.Filters.SharedOnly))
	case "/":
		m.typing = true
	case "esc":
		m.ctrl.ClearSelection()
		m.refresh()
	case "x":
		m.ctrl.ClearAll()
		m.query = ""
		m.refresh()
	}
	return m, nil
}

func (m ExploreModel) updateQuery(msg tea.KeyMsg) ExploreModel {
	switch msg.Type {
	case tea.KeyEnter:
		m.typing = false
		m.apply(filter.SetQuery(m.query))
	case tea.KeyEsc:
		m.typing = false
		m.query = m.frame.Filters.Query
	case tea.KeyBackspace:
		if r := []rune(m.query); len(r) > 0 {
			m.query = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.query += string(msg.Runes)
	}
	return m
}

func (m *ExploreModel) apply(muts ...filter.Mutation) {
	if err := m.ctrl.Apply(muts...); err != nil {
		m.status = err.Error()
		return
	}
	m.refresh()
}

func (m ExploreModel) current() (render.FrameNode, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.frame.Nodes) {
		return render.FrameNode{}, false
	}
	return m.frame.Nodes[m.Cursor], true
}

// toggleTier flips t in the active tier set, where an empty set means all
// tiers. It refuses to hide the last visible tier.
func toggleTier(active []snapshot.Tier, t snapshot.Tier) ([]snapshot.Tier, bool) {
	if len(active) == 0 {
		active = snapshot.Tiers[:]
	}
	var next []snapshot.Tier
	if slices.Contains(active, t) {
		next = slices.DeleteFunc(slices.Clone(active), func(x snapshot.Tier) bool { return x == t })
		if len(next) == 0 {
			return nil, false
		}
	} else {
		next = append(slices.Clone(active), t)
	}
	if len(next) == snapshot.NumTiers {
		next = nil
	}
	return next, true
}

// stepWeight moves a minimum weight by delta. Stepping to zero or below
// removes the bound.
func stepWeight(lo, delta float64) float64 {
	if math.IsInf(lo, -1) {
		lo = 0
	}
	next := lo + delta
	if next <= 0 {
		return math.NaN()
	}
	return next
}

func (m ExploreModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("orbit explore"))
	b.WriteString("  ")
	b.WriteString(listDimStyle.Render(filterSummary(m.frame)))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ move  ⏎ select  f focus  1/2/3 tiers  +/- weight  s shared  / search  esc deselect  x reset  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.frame.Nodes))
	b.WriteString(nodeTable(m.frame.Nodes[m.Offset:end], m.Cursor-m.Offset).Render())
	b.WriteString("\n\n")

	switch {
	case m.typing:
		b.WriteString(listSelectedStyle.Render("/" + m.query + "▏"))
	case m.status != "":
		b.WriteString(StyleWarning.Render(m.status))
	default:
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d] %d of %d authors · %d links · selection %s",
			min(m.Cursor+1, len(m.frame.Nodes)), len(m.frame.Nodes),
			len(m.frame.Nodes), m.frame.TotalNodes, len(m.frame.Edges), m.frame.Selection)))
	}
	return b.String()
}

// =============================================================================
// Shared table rendering
// =============================================================================

// nodeTable renders frame nodes as a table. The row at cursor is
// emphasised; pass -1 for none.
func nodeTable(nodes []render.FrameNode, cursor int) *table.Table {
	rows := make([][]string, 0, len(nodes))
	for i, n := range nodes {
		mark := "  "
		if i == cursor {
			mark = "▸ "
		}
		rows = append(rows, []string{
			mark,
			n.Label,
			n.Tier.String(),
			communityLabel(n.Community),
			strconv.FormatFloat(n.Weight, 'f', -1, 64),
			scoreLabel(n.Score),
			nodeFlags(n),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Author", "Tier", "Community", "Weight", "Score", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return tableHeaderStyle
			}
			if row < 0 || row >= len(nodes) {
				return lipgloss.NewStyle()
			}
			n := nodes[row]
			base := lipgloss.NewStyle()
			if col == 2 {
				base = tierStyle(n.Tier)
			}
			switch {
			case row == cursor:
				return base.Foreground(colorCyan).Bold(true)
			case n.Selected:
				return base.Foreground(colorGreen)
			case n.Highlighted:
				return base.Foreground(colorYellow)
			}
			return base
		})
}

func communityLabel(c snapshot.CommunityID) string {
	if !c.Assigned() {
		return "—"
	}
	return strconv.Itoa(int(c))
}

func scoreLabel(s *float64) string {
	if s == nil {
		return "—"
	}
	return strconv.FormatFloat(*s, 'f', 3, 64)
}

func nodeFlags(n render.FrameNode) string {
	switch {
	case n.Selected:
		return "●"
	case n.Highlighted:
		return "★"
	}
	return ""
}

// filterSummary describes the active filters in one line.
func filterSummary(f *render.Frame) string {
	s := f.Filters
	var parts []string
	if len(s.Tiers) > 0 {
		names := make([]string, len(s.Tiers))
		for i, t := range s.Tiers {
			names[i] = t.String()
		}
		parts = append(parts, "tiers="+strings.Join(names, ","))
	}
	if !math.IsInf(s.Weight.Min, -1) {
		parts = append(parts, "weight≥"+strconv.FormatFloat(s.Weight.Min, 'f', -1, 64))
	}
	if s.TopN > 0 {
		parts = append(parts, "top="+strconv.Itoa(s.TopN))
	}
	if s.Focus != "" {
		parts = append(parts, "focus="+s.Focus)
	}
	if s.Query != "" {
		parts = append(parts, "query="+strconv.Quote(s.Query))
	}
	if s.SharedOnly {
		parts = append(parts, "shared-only")
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, " ")
}

// formatRelativeTime renders t relative to now for listings.
func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
