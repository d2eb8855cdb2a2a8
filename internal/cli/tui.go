package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	gtio "github.com/matzehuels/graphtriple/pkg/io"
)

// =============================================================================
// ImportModel - live per-file import progress
// =============================================================================

// fileState is the progress of one file.
type fileState struct {
	path   string
	lines  int
	failed int
}

// lineMsg reports one imported or failed line.
type lineMsg struct {
	path   string
	failed bool
}

// importDoneMsg carries the result of the whole import.
type importDoneMsg struct {
	sums []gtio.Summary
	err  error
}

type tickMsg time.Time

// ImportModel is the bubbletea model behind import --progress.
type ImportModel struct {
	Files   []fileState
	Done    bool
	Elapsed time.Duration

	index  map[string]int
	start  time.Time
	cancel context.CancelFunc
}

// NewImportModel creates a model for paths. cancel is called when the user
// quits before the import finishes.
func NewImportModel(paths []string, cancel context.CancelFunc) ImportModel {
	m := ImportModel{
		Files:  make([]fileState, len(paths)),
		index:  make(map[string]int, len(paths)),
		start:  time.Now(),
		cancel: cancel,
	}
	for i, p := range paths {
		m.Files[i].path = p
		m.index[p] = i
	}
	return m
}

func (m ImportModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.Done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case lineMsg:
		if i, ok := m.index[msg.path]; ok {
			m.Files[i].lines++
			if msg.failed {
				m.Files[i].failed++
			}
		}
	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.Elapsed = time.Since(m.start)
		return m, tick()
	case importDoneMsg:
		m.Done = true
		m.Elapsed = time.Since(m.start)
		return m, tea.Quit
	}
	return m, nil
}

func (m ImportModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Importing"))
	b.WriteString(" ")
	b.WriteString(StyleDim.Render(m.Elapsed.Round(100 * time.Millisecond).String()))
	b.WriteString("\n")
	if !m.Done {
		b.WriteString(StyleDim.Render("q quit"))
	}
	b.WriteString("\n")

	rows := make([][]string, len(m.Files))
	var lines, failed int
	for i, f := range m.Files {
		rows[i] = []string{f.path, strconv.Itoa(f.lines), strconv.Itoa(f.failed)}
		lines += f.lines
		failed += f.failed
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("File", "Lines", "Failed").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleHeader
			case col == 2 && row < len(m.Files) && m.Files[row].failed > 0:
				return styleFailed
			case col > 0:
				return StyleNumber
			}
			return StyleValue
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d lines · %d failed", lines, failed)))
	b.WriteString("\n")
	return b.String()
}

// runImportView imports paths while rendering an ImportModel on stderr.
func runImportView(ctx context.Context, imp *gtio.Importer, paths []string, opts gtio.ImportOptions, concurrency int) ([]gtio.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewImportModel(paths, cancel), tea.WithOutput(os.Stderr))
	opts.OnLine = func(path string, _ int, err error) {
		p.Send(lineMsg{path: path, failed: err != nil})
	}

	result := make(chan importDoneMsg, 1)
	go func() {
		sums, err := imp.ImportFiles(ctx, paths, opts, concurrency)
		msg := importDoneMsg{sums: sums, err: err}
		result <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return nil, fmt.Errorf("progress view: %w", err)
	}
	res := <-result
	return res.sums, res.err
}
