// Package tui is a terminal shell over the sync core. It renders each
// published state and turns key presses into submitted writes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todo/internal/core"
	"todo/internal/models"
)

// ItemCore is the part of the sync core the terminal shell uses.
type ItemCore interface {
	Watch(ctx context.Context) <-chan core.State
	Errors() <-chan *core.WriteError
	SubmitUpsert(item models.Item) *core.Pending
	SubmitDelete(item models.Item) *core.Pending
}

type stateMsg struct {
	state core.State
	ok    bool
}

type writeErrMsg struct {
	err *core.WriteError
	ok  bool
}

func waitForState(states <-chan core.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-states
		return stateMsg{state: s, ok: ok}
	}
}

func waitForWriteError(errs <-chan *core.WriteError) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-errs
		return writeErrMsg{err: err, ok: ok}
	}
}

// listItem adapts models.Item to bubbles/list.Item.
type listItem struct {
	item models.Item
}

func (i listItem) Title() string       { return i.item.Title }
func (i listItem) Description() string { return "" }
func (i listItem) FilterValue() string { return i.item.Title }

// itemDelegate renders one item per line.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, _ := item.(listItem)

	text := it.item.Title
	if it.item.Completed {
		text = Strike(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintf(w, "%s%s %s", prefix, Checkbox(it.item.Completed), text)
}

// Model is the bubbletea model for the interactive list.
type Model struct {
	core   ItemCore
	states <-chan core.State
	errs   <-chan *core.WriteError

	state   core.State
	list    list.Model
	spinner spinner.Model
	ti      textinput.Model

	adding bool
	addErr string
	status string
}

// New creates a model that follows c until ctx ends.
func New(ctx context.Context, c ItemCore) Model {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("item", "items")

	toggleBind := key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	addBind := key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	deleteBind := key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	extra := func() []key.Binding { return []key.Binding{toggleBind, addBind, deleteBind} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = accentStyle

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "New item title..."
	ti.CharLimit = models.MaxTitleLength

	return Model{
		core:    c,
		states:  c.Watch(ctx),
		errs:    c.Errors(),
		state:   core.State{Loading: true},
		list:    l,
		spinner: sp,
		ti:      ti,
	}
}

// Init starts the spinner and the state and error listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states), waitForWriteError(m.errs))
}

// Update handles core messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		return m, tea.Batch(m.setState(msg.state), waitForState(m.states))

	case writeErrMsg:
		if !msg.ok {
			return m, nil
		}
		m.status = msg.err.Error()
		return m, waitForWriteError(m.errs)

	case spinner.TickMsg:
		if !m.state.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil
	}

	if m.adding {
		return m.updateAdding(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			if it, ok := m.selected(); ok {
				m.core.SubmitUpsert(it.Toggled())
			}
			return m, nil
		case "d":
			if it, ok := m.selected(); ok {
				m.core.SubmitDelete(it)
			}
			return m, nil
		case "a":
			m.adding = true
			m.addErr = ""
			m.ti.SetValue("")
			m.ti.Focus()
			return m, textinput.Blink
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			item := models.Item{Title: strings.TrimSpace(m.ti.Value())}
			if err := item.Validate(); err != nil {
				m.addErr = err.Error()
				return m, nil
			}
			m.core.SubmitUpsert(item)
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			return m, nil
		case "esc":
			m.adding = false
			m.ti.SetValue("")
			m.ti.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) setState(s core.State) tea.Cmd {
	m.state = s

	items := make([]list.Item, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, listItem{item: it})
	}
	done, pending := models.Stats(s.Items)
	m.list.Title = header(done, pending, len(s.Items))
	return m.list.SetItems(items)
}

// selected returns the highlighted item once the list has loaded.
func (m Model) selected() (models.Item, bool) {
	if m.state.Loading || m.state.Failed() {
		return models.Item{}, false
	}
	it, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return models.Item{}, false
	}
	return it.item, true
}

// View renders the current state.
func (m Model) View() string {
	var content string
	switch {
	case m.state.Loading:
		content = m.spinner.View() + " Loading..."
	case m.state.Failed():
		content = errorStyle.Render(m.state.Err)
	case m.state.Empty():
		content = m.list.Title + "\n\n" + mutedStyle.Render("Nothing found") + "\n\n" + helpStyle.Render("a add • q quit")
	default:
		content = m.list.View()
	}

	if m.adding {
		title := "Add new item"
		if m.addErr != "" {
			title += ": " + errorStyle.Render(m.addErr)
		}
		content += "\n" + borderStyle.Render(title+"\n"+m.ti.View())
	}
	if m.status != "" {
		content += "\n" + errorStyle.Render(m.status)
	}
	return borderStyle.Render(content)
}

// Run starts the interactive list and blocks until the user quits, ctx
// ends, or the core closes.
func Run(ctx context.Context, c ItemCore) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}
	return nil
}
