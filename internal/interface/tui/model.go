// Package tui is an interactive session picker: a list of the current
// project's sessions, with a scrollable turn view on enter.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"cchat/internal/core/conversation"
	"cchat/internal/core/project"
	"cchat/pkg/cclog"
)

type viewMode int

const (
	pickerView viewMode = iota
	turnView
)

type Model struct {
	dir      string
	mode     viewMode
	list     list.Model
	viewport viewport.Model
	width    int
	height   int
	err      error
	title    string
}

type sessionItem struct {
	id      string
	path    string
	summary string
	when    string
}

func (i sessionItem) Title() string { return i.id }
func (i sessionItem) Description() string {
	if i.summary != "" {
		return i.summary
	}
	return i.when
}
func (i sessionItem) FilterValue() string { return i.id + " " + i.summary }

type sessionsLoadedMsg struct{ items []list.Item }
type conversationLoadedMsg struct {
	title   string
	content string
}
type errMsg struct{ err error }

// New builds the picker for one project directory.
func New(dir string) Model {
	delegate := list.NewDefaultDelegate()
	l := list.New(nil, delegate, 0, 0)
	l.Title = "Sessions"
	l.Styles.Title = titleStyle
	return Model{dir: dir, mode: pickerView, list: l}
}

func (m Model) Init() tea.Cmd {
	return loadSessions(m.dir)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-1)
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 2
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q", "esc":
			if m.mode == pickerView {
				return m, tea.Quit
			}
			m.mode = pickerView
			return m, nil
		case "enter":
			if m.mode == pickerView {
				if item, ok := m.list.SelectedItem().(sessionItem); ok {
					return m, loadConversation(m.dir, item.path)
				}
			}
		}

		switch m.mode {
		case pickerView:
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		case turnView:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case sessionsLoadedMsg:
		m.list.SetItems(msg.items)
		return m, nil

	case conversationLoadedMsg:
		m.title = msg.title
		m.viewport = viewport.New(m.width, m.height-2)
		m.viewport.SetContent(msg.content)
		m.mode = turnView
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		return "Error: " + m.err.Error() + "\n\nPress q to quit"
	}

	switch m.mode {
	case turnView:
		header := titleStyle.Render(m.title)
		footer := helpStyle.Render("↑/↓ scroll · q back")
		return header + "\n" + m.viewport.View() + "\n" + footer
	default:
		return m.list.View() + "\n" + helpStyle.Render("enter view · / filter · q quit")
	}
}

func loadSessions(dir string) tea.Cmd {
	return func() tea.Msg {
		files, err := project.SessionFiles(dir)
		if err != nil {
			return errMsg{err}
		}
		var items []list.Item
		for _, path := range files {
			f, err := cclog.Load(path)
			if err != nil {
				continue
			}
			items = append(items, sessionItem{
				id:      f.SessionID,
				path:    path,
				summary: f.Summary,
				when:    f.Mtime.Format("Jan 2 15:04"),
			})
		}
		return sessionsLoadedMsg{items: items}
	}
}

func loadConversation(dir, path string) tea.Cmd {
	return func() tea.Msg {
		files, err := project.LoadFamily(dir, path)
		if err != nil {
			return errMsg{err}
		}
		s, err := conversation.New(files...)
		if err != nil {
			return errMsg{err}
		}
		p, err := s.ActivePath()
		if err != nil {
			return errMsg{err}
		}
		turns := conversation.GroupTurns(p, conversation.TurnOptions{})

		var b strings.Builder
		for _, turn := range turns {
			if turn.BoundaryCrossed {
				b.WriteString(seamStyle.Render("── context compacted ──"))
				b.WriteString("\n")
			}
			if turn.IsCompactSummary {
				b.WriteString(seamStyle.Render(fmt.Sprintf("[%d] compact summary", turn.Index)))
				b.WriteString("\n\n")
				continue
			}
			if turn.UserText != "" {
				b.WriteString(userStyle.Render(fmt.Sprintf("[%d] user", turn.Index)))
				b.WriteString("\n" + turn.UserText + "\n")
			}
			if turn.AssistantText != "" {
				b.WriteString(assistantStyle.Render("assistant"))
				b.WriteString("\n" + turn.AssistantText + "\n")
			}
			b.WriteString("\n")
		}

		title := s.Summary()
		if title == "" {
			title = s.ID()
		}
		return conversationLoadedMsg{title: title, content: b.String()}
	}
}
