package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))
)

// Printer writes events as styled lines.
//
// Printer is safe for concurrent use; lines from different goroutines are
// never interleaved.
type Printer struct {
	w       io.Writer
	verbose bool
	mu      sync.Mutex
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, verbose: verbose}
}

// Print renders a single event.
func (p *Printer) Print(ev Event) {
	if ev.Level == LevelVerbose && !p.verbose {
		return
	}

	var line string
	switch ev.Level {
	case LevelError:
		line = errorStyle.Render("[E] " + ev.Message)
	case LevelWarning:
		line = warningStyle.Render("[W] " + ev.Message)
	case LevelSuccess:
		line = successStyle.Render("[S] " + ev.Message)
	case LevelVerbose:
		line = dimStyle.Render("[D] " + ev.Message)
	default:
		line = infoStyle.Render("[I] " + ev.Message)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

// Func returns p.Print as a Func.
func (p *Printer) Func() Func {
	return p.Print
}

// Title prints a bold heading line.
func (p *Printer) Title(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, titleStyle.Render(text))
}

// Summary prints a heading followed by aligned "label: value" rows.
func (p *Printer) Summary(title string, rows [][2]string) {
	width := 0
	for _, row := range rows {
		if len(row[0]) > width {
			width = len(row[0])
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintln(p.w, titleStyle.Render(title))
	for _, row := range rows {
		label := lipgloss.NewStyle().Width(width + 1).Render(row[0] + ":")
		fmt.Fprintln(p.w, dimStyle.Render(label)+" "+row[1])
	}
}
