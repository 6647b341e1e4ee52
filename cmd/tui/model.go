package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ViewState current screen of the console
type ViewState int

const (
	// ViewMain the action menu
	ViewMain ViewState = iota
	// ViewForm collects the inputs of the selected action
	ViewForm
	// ViewRunning an action is in flight
	ViewRunning
	// ViewResult shows the outcome of the last action
	ViewResult
)

// Actions the console can run, implemented by the cmd package
type Actions interface {
	CreateAdmin(ctx context.Context, email, name, password string) (string, error)
	Reindex(ctx context.Context) (string, error)
	CheckConfig(ctx context.Context) (string, error)
	ImportDisqus(ctx context.Context, file string, dryRun bool) (string, error)
}

// Field one text input of an action form
type Field struct {
	Label       string
	Placeholder string
	Secret      bool
}

// MenuItem one action of the menu
type MenuItem struct {
	title       string
	description string
	fields      []Field
	run         func(ctx context.Context, values []string) (string, error)
}

// Title implements list.Item
func (m MenuItem) Title() string { return m.title }

// Description implements list.Item
func (m MenuItem) Description() string { return m.description }

// FilterValue implements list.Item
func (m MenuItem) FilterValue() string { return m.title }

// CommandResult is delivered when an action finishes
type CommandResult struct {
	Success bool
	Message string
	Details string
}

// Model is the bubbletea model of the console
type Model struct {
	ctx   context.Context
	state ViewState

	menuList   list.Model
	current    *MenuItem
	inputs     []textinput.Model
	focusIndex int
	spinner    spinner.Model
	result     *CommandResult

	width, height int
	quitting      bool
}

type keyMap struct {
	Enter key.Binding
	Back  key.Binding
	Tab   key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Tab:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func menuItems(actions Actions) []list.Item {
	return []list.Item{
		MenuItem{
			title:       "Create admin user",
			description: "Bootstrap a dashboard account with the admin role",
			fields: []Field{
				{Label: "Email:", Placeholder: "admin@example.com"},
				{Label: "Name:", Placeholder: "Site Admin"},
				{Label: "Password:", Placeholder: "at least 8 characters", Secret: true},
			},
			run: func(ctx context.Context, v []string) (string, error) {
				return actions.CreateAdmin(ctx, v[0], v[1], v[2])
			},
		},
		MenuItem{
			title:       "Reindex blog counters",
			description: "Recompute comment counts of posts and post counts of categories and tags",
			run: func(ctx context.Context, _ []string) (string, error) {
				return actions.Reindex(ctx)
			},
		},
		MenuItem{
			title:       "Import Disqus comments",
			description: "Load approved comments from a Disqus XML export",
			fields: []Field{
				{Label: "Export file:", Placeholder: "/path/to/disqus.xml"},
				{Label: "Dry run (yes/no):", Placeholder: "yes"},
			},
			run: func(ctx context.Context, v []string) (string, error) {
				dry := strings.ToLower(strings.TrimSpace(v[1]))
				return actions.ImportDisqus(ctx, v[0], dry != "no" && dry != "n")
			},
		},
		MenuItem{
			title:       "Check configuration",
			description: "Validate the loaded settings and backend connectivity",
			run: func(ctx context.Context, _ []string) (string, error) {
				return actions.CheckConfig(ctx)
			},
		},
	}
}

// NewModel creates the console model
func NewModel(ctx context.Context, title string, actions Actions) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(primaryColor).
		BorderForeground(primaryColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(secondaryColor)

	menuList := list.New(menuItems(actions), delegate, 0, 0)
	menuList.Title = title
	menuList.SetShowStatusBar(false)
	menuList.SetFilteringEnabled(false)
	menuList.Styles.Title = headerStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = progressStyle

	return Model{
		ctx:      ctx,
		state:    ViewMain,
		menuList: menuList,
		spinner:  sp,
	}
}

func newInputs(fields []Field) []textinput.Model {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = f.Placeholder
		inputs[i].CharLimit = 256
		inputs[i].Width = 50
		inputs[i].Prompt = "> "
		inputs[i].PromptStyle = inputLabelStyle
		if f.Secret {
			inputs[i].EchoMode = textinput.EchoPassword
		}
	}
	if len(inputs) > 0 {
		inputs[0].Focus()
	}

	return inputs
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.menuList.SetSize(msg.Width-4, msg.Height-6)
		return m, nil
	case tea.KeyMsg:
		switch m.state {
		case ViewMain:
			return m.handleMainMenu(msg)
		case ViewForm:
			return m.handleForm(msg)
		case ViewResult:
			return m.handleResult(msg)
		default:
			return m, nil
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case CommandResult:
		m.result = &msg
		m.state = ViewResult
		return m, nil
	}

	if m.state == ViewMain {
		var cmd tea.Cmd
		m.menuList, cmd = m.menuList.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleMainMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, keys.Enter):
		item, ok := m.menuList.SelectedItem().(MenuItem)
		if !ok {
			return m, nil
		}

		m.current = &item
		if len(item.fields) == 0 {
			return m.execute()
		}

		m.inputs = newInputs(item.fields)
		m.focusIndex = 0
		m.state = ViewForm
		return m, nil
	}

	var cmd tea.Cmd
	m.menuList, cmd = m.menuList.Update(msg)
	return m, cmd
}

func (m Model) handleForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		m.state = ViewMain
		return m, nil
	case key.Matches(msg, keys.Tab):
		m.focusIndex = (m.focusIndex + 1) % len(m.inputs)
		for i := range m.inputs {
			if i == m.focusIndex {
				m.inputs[i].Focus()
			} else {
				m.inputs[i].Blur()
			}
		}
		return m, nil
	case key.Matches(msg, keys.Enter):
		if m.filled() {
			return m.execute()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	return m, cmd
}

func (m Model) handleResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Enter):
		m.state = ViewMain
		m.result = nil
		return m, nil
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) filled() bool {
	for _, input := range m.inputs {
		if strings.TrimSpace(input.Value()) == "" {
			return false
		}
	}

	return true
}

// execute runs the current action off the ui loop
func (m Model) execute() (tea.Model, tea.Cmd) {
	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}

	item, ctx := m.current, m.ctx
	m.state = ViewRunning
	m.inputs = nil
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		details, err := item.run(ctx, values)
		if err != nil {
			return CommandResult{Message: item.title + " failed", Details: err.Error()}
		}

		return CommandResult{Success: true, Message: item.title + " done", Details: details}
	})
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return subtitleStyle.Render("Bye\n")
	}

	switch m.state {
	case ViewMain:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.menuList.View(),
			helpStyle.Render("↑/↓ navigate • enter select • q quit"),
		)
	case ViewForm:
		return m.renderForm()
	case ViewRunning:
		return boxStyle.Render(m.spinner.View() + " " + m.current.title + "...")
	case ViewResult:
		return m.renderResult()
	default:
		return "unknown state"
	}
}

func (m Model) renderForm() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(m.current.title) + "\n\n")
	for i, input := range m.inputs {
		sb.WriteString(inputLabelStyle.Render(m.current.fields[i].Label) + "\n")
		sb.WriteString(input.View() + "\n\n")
	}
	sb.WriteString(helpStyle.Render("tab: next field • enter: run • esc: back"))

	return boxStyle.Render(sb.String())
}

func (m Model) renderResult() string {
	if m.result == nil {
		return "no result"
	}

	style := errorStyle
	if m.result.Success {
		style = successStyle
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		style.Render(m.result.Message),
		"",
		subtitleStyle.Render(m.result.Details),
		"",
		helpStyle.Render("enter/esc: back to menu • q: quit"),
	))
}
