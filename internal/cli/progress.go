package cli

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/rich7420/community-ai-agent-sub001/internal/service"
)

const pollInterval = 200 * time.Millisecond

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the job status
type tickMsg time.Time

// progressModel is the bubbletea model for an ingest job running in this
// process.
type progressModel struct {
	job      *service.Job
	snap     *service.Job
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(job *service.Job) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		job:      job,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		snap := m.job.Snapshot()
		m.snap = &snap

		switch snap.Status {
		case service.JobStatusCompleted:
			m.done = true
			return m, tea.Quit
		case service.JobStatusFailed:
			m.done = true
			m.err = fmt.Errorf("%s", snap.Error)
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}
	if m.snap == nil {
		return "Loading records...\n"
	}

	var pct float64
	if m.snap.Total > 0 {
		pct = float64(m.snap.Progress) / float64(m.snap.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.snap.Status))
	counts := fmt.Sprintf("%d/%d records", m.snap.Progress, m.snap.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop; finished chunks stay stored")

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render(
			fmt.Sprintf("\nIngest %s interrupted. Re-run the same command to finish; stored records are skipped.\n", m.job.ID))
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Ingest failed: %s\n", m.err))
	}
	if m.snap != nil && m.snap.Result != nil {
		return formatIngestResult(m.theme, m.snap.Result)
	}
	return m.theme.completedStyle().Render("✓ Completed\n")
}

// formatIngestResult renders the summary shown after an ingest.
func formatIngestResult(t Theme, r *service.IngestResult) string {
	var b strings.Builder
	b.WriteString(t.completedStyle().Render("✓ Completed") + "\n\n")
	fmt.Fprintf(&b, "  Records processed: %d\n", r.Processed)
	fmt.Fprintf(&b, "  Embedded:          %d\n", r.Embedded)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "  Already embedded:  %d\n", r.Skipped)
	}
	fmt.Fprintf(&b, "  Stored:            %d\n", r.Upserted)
	if r.Failed > 0 {
		fmt.Fprintf(&b, "  Failed:            %d\n", r.Failed)
	}
	if len(r.Errors) > 0 {
		b.WriteString(t.errorStyle().Render(fmt.Sprintf("\nWarnings (%d):", len(r.Errors))) + "\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
	}
	return b.String()
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runJobProgress shows the progress UI until job finishes or the user
// quits. It returns the job error on failure.
func runJobProgress(job *service.Job) error {
	p := tea.NewProgram(newProgressModel(job))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return errInterrupted
		}
		if m.err != nil {
			return m.err
		}
	}
	return nil
}
