package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/raphaelgruber/prodscout/internal/api"
	"github.com/raphaelgruber/prodscout/internal/client"
	"github.com/raphaelgruber/prodscout/internal/models"
)

const pollInterval = time.Second

// statusColors color job and batch states in the live display.
var statusColors = map[models.Status]lipgloss.Color{
	models.StatusPending:    lipgloss.Color("#6C6C6C"),
	models.StatusInProgress: lipgloss.Color("#5FAFD7"),
	models.StatusComplete:   lipgloss.Color("#00D787"),
	models.StatusError:      lipgloss.Color("#FF005F"),
}

var hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6C6C")).Italic(true)

func statusStyle(s models.Status) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(statusColors[s])
	if s.Terminal() {
		style = style.Bold(true)
	}
	return style
}

// tickMsg triggers polling the batch status
type tickMsg time.Time

// batchUpdateMsg carries the updated batch
type batchUpdateMsg struct {
	batch api.BatchView
	err   error
}

// monitorModel is the bubbletea model for a running batch.
type monitorModel struct {
	client   *client.Client
	batchID  int64
	batch    *api.BatchView
	progress progress.Model
	done     bool
	quitting bool
	err      error
}

func newMonitorModel(c *client.Client, batchID int64) monitorModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return monitorModel{
		client:   c,
		batchID:  batchID,
		progress: prog,
	}
}

// Init returns the initial command (fetch immediately, then poll).
func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchBatch(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchBatch()

	case batchUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch batch status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.batch = &msg.batch
		if m.batch.Finished() {
			m.done = true
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
func (m monitorModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m monitorModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if m.batch == nil {
		return "Loading batch status...\n"
	}

	c := m.batch.Counts
	var pct float64
	if c.Total > 0 {
		pct = float64(c.Complete+c.Error) / float64(c.Total)
	}

	var b strings.Builder
	status := statusStyle(m.batch.Status).Render(fmt.Sprintf("[%s]", m.batch.Status))
	fmt.Fprintf(&b, "%s %s %d/%d products\n", status, m.progress.ViewAs(pct), c.Complete+c.Error, c.Total)
	for _, j := range m.batch.Jobs {
		b.WriteString(jobLine(j))
	}
	b.WriteString(hintStyle.Render("Press Ctrl+C to continue in background"))
	b.WriteString("\n")
	return b.String()
}

var jobMarks = map[models.Status]string{
	models.StatusPending:    "·",
	models.StatusInProgress: "…",
	models.StatusComplete:   "✓",
	models.StatusError:      "✗",
}

func jobLine(j models.Job) string {
	line := fmt.Sprintf("  %s %s", statusStyle(j.Status).Render(jobMarks[j.Status]), j.ProductName)
	if j.Status == models.StatusError {
		line += " " + hintStyle.Render(clip(j.Error, 60))
	}
	return line + "\n"
}

func (m monitorModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nBatch %d continues in background.\nUse 'prodscout batches show %d' to check status.\n",
			m.batchID, m.batchID)
		return hintStyle.Render(msg)
	}
	if m.err != nil {
		return statusStyle(models.StatusError).Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}
	if m.batch == nil {
		return ""
	}

	c := m.batch.Counts
	if c.Error == 0 {
		return statusStyle(models.StatusComplete).Render(fmt.Sprintf("✓ Researched %d products", c.Complete)) + "\n"
	}
	return statusStyle(models.StatusError).Render(fmt.Sprintf("✗ %d of %d products failed", c.Error, c.Total)) + "\n"
}

// fetchBatch runs in a command so Update never blocks on the network.
func (m monitorModel) fetchBatch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		b, err := m.client.GetBatch(ctx, m.batchID)
		return batchUpdateMsg{batch: b, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runBatchMonitor runs the interactive display until the batch finishes.
// Returns nil batch when the user detached with Ctrl+C.
func runBatchMonitor(c *client.Client, batchID int64) (*api.BatchView, error) {
	p := tea.NewProgram(newMonitorModel(c, batchID))

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(monitorModel)
	if !ok || m.quitting {
		return nil, nil
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.batch, nil
}

// pollBatch prints one line per job status change until the batch finishes.
// It is the fallback when stdout is not a terminal.
func pollBatch(ctx context.Context, c *client.Client, w io.Writer, batchID int64) (*api.BatchView, error) {
	seen := make(map[string]models.Status)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		b, err := c.GetBatch(ctx, batchID)
		if err != nil {
			return nil, fmt.Errorf("fetch batch %d: %w", batchID, err)
		}
		for _, line := range jobTransitions(seen, b.Jobs) {
			fmt.Fprintln(w, line)
		}
		if b.Finished() {
			fmt.Fprintf(w, "batch %d %s: %d complete, %d failed\n", b.ID, b.Status, b.Counts.Complete, b.Counts.Error)
			return &b, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// jobTransitions reports jobs whose status differs from seen, updating seen.
func jobTransitions(seen map[string]models.Status, jobs []models.Job) []string {
	var lines []string
	for _, j := range jobs {
		if seen[j.ProductName] == j.Status {
			continue
		}
		seen[j.ProductName] = j.Status
		line := fmt.Sprintf("%-12s %s", j.Status, j.ProductName)
		if j.Status == models.StatusError && j.Error != "" {
			line += ": " + j.Error
		}
		lines = append(lines, line)
	}
	return lines
}

// monitorBatch follows a batch with the live display or plain polling.
// A nil batch with nil error means the user detached.
func monitorBatch(ctx context.Context, w io.Writer, batchID int64, tui bool) (*api.BatchView, error) {
	if tui {
		return runBatchMonitor(apiClient, batchID)
	}
	return pollBatch(ctx, apiClient, w, batchID)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
