// Package tui provides a terminal user interface for midimotif
package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/james-see/midimotif/pkg/codec"
	"github.com/james-see/midimotif/pkg/midifile"
	"github.com/james-see/midimotif/pkg/model"
)

// Staff-paper color scheme
var (
	inkBlue   = lipgloss.Color("#5FAFFF")
	staffGold = lipgloss.Color("#FFD700")
	paperGray = lipgloss.Color("#C0C0C0")
	darkGray  = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(inkBlue).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(paperGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(staffGold).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(inkBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(inkBlue).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateWorking
	StateResult
)

// Operation identifies a menu action
type Operation int

const (
	OpEncode Operation = iota
	OpDecode
	OpVerify
	OpExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Op          Operation
	Extensions  []string
}

var menuItems = []MenuItem{
	{Title: "Encode", Description: "Compress a MIDI file into a motif document (.mmz)", Op: OpEncode, Extensions: []string{".mid", ".midi"}},
	{Title: "Decode", Description: "Expand a motif document back into a MIDI file", Op: OpDecode, Extensions: []string{".mmz", ".json"}},
	{Title: "Verify", Description: "Encode then decode a MIDI file and check exact reconstruction", Op: OpVerify, Extensions: []string{".mid", ".midi"}},
	{Title: "Exit", Description: "Exit the application", Op: OpExit},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	selectedFile string
	outputFile   string
	item         MenuItem
	summary      string
	err          error
	width        int
	height       int
}

// workDoneMsg signals operation completion
type workDoneMsg struct {
	outputFile string
	summary    string
	err        error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model
func New() Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".mid", ".midi", ".mmz", ".json"}
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(inkBlue)

	return Model{
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
	}
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			m.state = StateWorking
			return m, tea.Batch(m.spinner.Tick, m.performOperation())
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case workDoneMsg:
		m.state = StateResult
		m.outputFile = msg.outputFile
		m.summary = msg.summary
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		item := menuItems[m.menuIndex]
		if item.Op == OpExit {
			return m, tea.Quit
		}
		m.item = item
		m.state = StateFilePicker
		m.filePicker.AllowedTypes = item.Extensions
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.outputFile = ""
		m.summary = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) performOperation() tea.Cmd {
	input := m.selectedFile
	op := m.item.Op
	return func() tea.Msg {
		opts := model.DefaultOptions()
		base := strings.TrimSuffix(input, filepath.Ext(input))

		switch op {
		case OpEncode:
			piece, err := midifile.ReadFile(input)
			if err != nil {
				return workDoneMsg{err: err}
			}
			doc, err := codec.Encode(piece, opts)
			if err != nil {
				return workDoneMsg{err: err}
			}
			data, err := doc.Marshal()
			if err != nil {
				return workDoneMsg{err: err}
			}
			output := base + ".mmz"
			if err := os.WriteFile(output, data, 0644); err != nil {
				return workDoneMsg{err: err}
			}
			return workDoneMsg{
				outputFile: output,
				summary:    fmt.Sprintf("%d voices, %d motifs, key %s %s", len(doc.Voices), len(doc.Motifs), doc.Key.Tonic, doc.Key.Mode),
			}

		case OpDecode:
			data, err := os.ReadFile(input)
			if err != nil {
				return workDoneMsg{err: err}
			}
			doc, err := codec.ParseDocument(data)
			if err != nil {
				return workDoneMsg{err: err}
			}
			piece, err := codec.Decode(doc)
			if err != nil {
				return workDoneMsg{err: err}
			}
			output := base + ".mid"
			if err := midifile.WriteFile(piece, output); err != nil {
				return workDoneMsg{err: err}
			}
			return workDoneMsg{
				outputFile: output,
				summary:    fmt.Sprintf("%d voices reconstructed", len(piece.Voices)),
			}

		case OpVerify:
			piece, err := midifile.ReadFile(input)
			if err != nil {
				return workDoneMsg{err: err}
			}
			if err := codec.VerifyRoundTrip(piece, opts); err != nil {
				return workDoneMsg{err: err}
			}
			return workDoneMsg{
				outputFile: input,
				summary:    "round trip is exact",
			}
		}
		return workDoneMsg{err: fmt.Errorf("unknown operation")}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" SELECT OPERATION "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(staffGold).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" SELECT FILE TO %s ", strings.ToUpper(m.item.Title))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s Processing %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	s.WriteString(statusStyle.Render(fmt.Sprintf("  %s", m.item.Title)))

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.item.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render(fmt.Sprintf("✓ %s complete!", m.item.Title)))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(fmt.Sprintf("Output: %s\n", filepath.Base(m.outputFile)))
		if m.summary != "" {
			s.WriteString(statusStyle.Render("  " + m.summary))
		}
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
   __  __ ___ ____ ___ __  __  ___ _____ ___ _____
  |  \/  |_ _|  _ \_ _|  \/  |/ _ \_   _|_ _|  ___|
  | |\/| || || | | | || |\/| | | | || |  | || |_
  | |  | || || |_| | || |  | | |_| || |  | ||  _|
  |_|  |_|___|____/___|_|  |_|\___/ |_| |___|_|
`
	return lipgloss.NewStyle().Foreground(inkBlue).Render(logo)
}

// Run starts the TUI application
func Run() error {
	p := tea.NewProgram(New(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
