package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ScanProgress renders the elapsed part of a timed scan as a progress bar
// followed by the number of services found so far.
type ScanProgress struct {
	Timeout time.Duration // Scan timeout, zero for an open-ended scan
	Found   int           // Services found so far
	Pending int           // Resolutions waiting in the queue
	Width   int           // Terminal width
	bar     progress.Model
}

// NewScanProgress creates a progress display for a scan of the given length
func NewScanProgress(timeout time.Duration) *ScanProgress {
	p := &ScanProgress{Timeout: timeout}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *ScanProgress) SetWidth(width int) *ScanProgress {
	p.Width = width
	barWidth := width - 36 // percentage and counters
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > 50 {
		barWidth = 50
	}
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return p
}

// Percent returns the elapsed fraction of the timeout, clamped to [0, 1].
// An open-ended scan reports 0.
func (p *ScanProgress) Percent(elapsed time.Duration) float64 {
	if p.Timeout <= 0 || elapsed <= 0 {
		return 0
	}
	f := float64(elapsed) / float64(p.Timeout)
	if f > 1 {
		return 1
	}
	return f
}

// Render returns the progress line for the given elapsed time
func (p *ScanProgress) Render(elapsed time.Duration) string {
	counters := fmt.Sprintf("%d found", p.Found)
	if p.Pending > 0 {
		counters += fmt.Sprintf(", %d queued", p.Pending)
	}
	if p.Timeout <= 0 {
		return lipgloss.NewStyle().PaddingLeft(2).Render(
			EventPendingStyle.Render(PendingMarker) + " scanning  " + Elapsed(elapsed) + "  " + NoteStyle.Render(counters))
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(fmt.Sprintf("%s  %3.0f%%  %s",
		p.bar.ViewAs(p.Percent(elapsed)), p.Percent(elapsed)*100, NoteStyle.Render(counters)))
}
