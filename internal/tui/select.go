// Package tui provides interactive terminal UI components.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/folio/internal/catalog"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m).Run()
}

// SelectionAction represents the user's action in the picker.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionSelected indicates the user picked a book.
	ActionSelected
	// ActionCancelled indicates the user left without picking.
	ActionCancelled
)

// SelectionResult holds the result of a book pick.
type SelectionResult struct {
	Action    SelectionAction
	Selection *catalog.Book
}

type bookItem struct {
	book catalog.Book
}

func (i bookItem) Title() string {
	return fmt.Sprintf("%s (%s)", i.book.Title, yearLabel(i.book.PublishedYear))
}

func (i bookItem) FilterValue() string {
	return i.book.Title + " " + i.book.Author
}

func (i bookItem) Description() string {
	if i.book.Description == nil {
		return ""
	}
	return *i.book.Description
}

type itemStyles struct {
	normal        lipgloss.Style
	selected      lipgloss.Style
	genreStyle    lipgloss.Style
	titleStyle    lipgloss.Style
	ratingStyle   lipgloss.Style
	authorStyle   lipgloss.Style
	overviewStyle lipgloss.Style
}

func newItemStyles() itemStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	container := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	selected := container.Copy().
		BorderForeground(lipgloss.Color("214")).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))

	return itemStyles{
		normal:   container,
		selected: selected,
		genreStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		ratingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		authorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
		overviewStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("248")),
	}
}

type bookDelegate struct {
	styles itemStyles
}

func newDelegate() bookDelegate {
	return bookDelegate{styles: newItemStyles()}
}

func (d bookDelegate) Height() int                         { return 5 }
func (d bookDelegate) Spacing() int                        { return 1 }
func (d bookDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d bookDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	bi, ok := item.(bookItem)
	if !ok {
		return
	}

	genreLine := d.styles.genreStyle.Render(fmt.Sprintf("[%s]", strings.ToUpper(bi.book.Genre)))
	authorLine := d.styles.authorStyle.Render(truncate(bi.book.Author, m.Width()-4))
	titleLine := d.styles.titleStyle.Render(bi.Title())
	ratingLine := d.styles.ratingStyle.Render(formatRating(bi.book))
	overviewLine := d.styles.overviewStyle.Render(truncate(bi.Description(), m.Width()-4))

	content := lipgloss.JoinVertical(lipgloss.Left, genreLine, authorLine, titleLine, ratingLine, overviewLine)

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type model struct {
	list   list.Model
	query  string
	result SelectionResult
}

func newModel(query string, items []bookItem) *model {
	listItems := make([]list.Item, len(items))
	for i, item := range items {
		listItems[i] = item
	}

	l := list.New(listItems, newDelegate(), defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &model{
		list:   l,
		query:  query,
		result: SelectionResult{Action: ActionNone},
	}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if selected, ok := m.list.SelectedItem().(bookItem); ok {
				book := selected.book
				m.result = SelectionResult{Action: ActionSelected, Selection: &book}
				return m, tea.Quit
			}
		case "ctrl+c", "q", "esc":
			m.result = SelectionResult{Action: ActionCancelled}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := clamp(defaultListWidth, msg.Width-4, 40)
		height := clamp(defaultListHeight, msg.Height-6, 5)
		m.list.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	header := headerStyle.Render(fmt.Sprintf("Books matching: %s", m.query))
	help := helpStyle.Render("Up/Down navigate | Enter show | q quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// SelectBook lets the user pick one of books. An empty list is a cancel.
func SelectBook(query string, books []catalog.Book) (SelectionResult, error) {
	if len(books) == 0 {
		return SelectionResult{Action: ActionCancelled}, nil
	}

	items := make([]bookItem, len(books))
	for i, b := range books {
		items[i] = bookItem{book: b}
	}
	finalModel, err := runProgram(newModel(query, items))
	if err != nil {
		return SelectionResult{}, err
	}

	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}
	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

func yearLabel(year int) string {
	if year <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%d", year)
}

func formatRating(b catalog.Book) string {
	if len(b.Reviews) == 0 && b.AverageRating == 0 {
		return "No ratings"
	}
	return fmt.Sprintf("%.1f/5 (%d reviews)", b.AverageRating, len(b.Reviews))
}

func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
