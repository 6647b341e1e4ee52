package tui

import (
	"context"
	"testing"

	"github.com/Laisky/errors/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type fakeActions struct {
	created []string
	dryRuns []bool
}

func (f *fakeActions) CreateAdmin(_ context.Context, email, name, password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password too short")
	}
	f.created = append(f.created, email)
	return "created " + name, nil
}

func (f *fakeActions) Reindex(context.Context) (string, error) { return "fixed 2 posts", nil }

func (f *fakeActions) CheckConfig(context.Context) (string, error) { return "valid", nil }

func (f *fakeActions) ImportDisqus(_ context.Context, _ string, dryRun bool) (string, error) {
	f.dryRuns = append(f.dryRuns, dryRun)
	return "imported", nil
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runeKeys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// result runs cmd and returns the CommandResult it eventually produces
func result(t *testing.T, cmd tea.Cmd) CommandResult {
	t.Helper()
	require.NotNil(t, cmd)

	switch msg := cmd().(type) {
	case CommandResult:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if res, ok := c().(CommandResult); ok {
				return res
			}
		}
	}

	t.Fatal("no command result")
	return CommandResult{}
}

func TestCreateAdminForm(t *testing.T) {
	actions := new(fakeActions)
	m := NewModel(context.Background(), "Agency admin", actions)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	require.Contains(t, m.View(), "Create admin user")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewForm, m.state)
	require.Len(t, m.inputs, 3)

	m, _ = update(t, m, runeKeys("admin@agency.test"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewForm, m.state, "incomplete form must not run")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, runeKeys("Admin"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, runeKeys("correct-horse"))
	require.NotContains(t, m.View(), "correct-horse")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewRunning, m.state)
	res := result(t, cmd)
	require.True(t, res.Success)
	require.Equal(t, []string{"admin@agency.test"}, actions.created)

	m, _ = update(t, m, res)
	require.Equal(t, ViewResult, m.state)
	require.Contains(t, m.View(), "created Admin")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ViewMain, m.state)
}

func TestFailedAction(t *testing.T) {
	item := menuItems(new(fakeActions))[0].(MenuItem)
	m := NewModel(context.Background(), "Agency admin", new(fakeActions))
	m.current = &item
	m.inputs = newInputs(item.fields)
	for i, v := range []string{"a@b.test", "A", "short"} {
		m.inputs[i].SetValue(v)
	}

	_, cmd := m.execute()
	res := result(t, cmd)
	require.False(t, res.Success)
	require.Contains(t, res.Details, "password too short")
}

func TestQuit(t *testing.T) {
	m := NewModel(context.Background(), "Agency admin", new(fakeActions))
	m, cmd := update(t, m, runeKeys("q"))
	require.True(t, m.quitting)
	require.NotNil(t, cmd)
}

func TestImportDryRunDefault(t *testing.T) {
	actions := new(fakeActions)
	var item MenuItem
	for _, it := range menuItems(actions) {
		if mi := it.(MenuItem); mi.title == "Import Disqus comments" {
			item = mi
		}
	}
	require.NotNil(t, item.run)

	for _, answer := range []string{"yes", "", "No", "n"} {
		_, err := item.run(context.Background(), []string{"export.xml", answer})
		require.NoError(t, err)
	}
	require.Equal(t, []bool{true, true, false, false}, actions.dryRuns)
}
