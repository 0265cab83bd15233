package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette for command output
var (
	PrimaryColor  = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor  = lipgloss.Color("#43BF6D") // Green - found, success
	ErrorColor    = lipgloss.Color("#FF5555") // Red - failures
	WarningColor  = lipgloss.Color("#FFA500") // Orange - resolving, warnings
	MutedColor    = lipgloss.Color("#626262") // Gray - secondary info
	TextColor     = lipgloss.Color("#FFFFFF") // White - main content
	BookmarkColor = lipgloss.Color("#F1FA8C") // Yellow - bookmarked services
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
	DefaultPadding   = 2   // Default padding inside boxes
)

// Shared styles
var (
	// HeaderTitleStyle is for the main command title (e.g., "SERVICE SCAN")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderCommandStyle is for the command path (e.g., "mdnshelper scan")
	HeaderCommandStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// HeaderParamKeyStyle is for parameter keys (e.g., "Backend:")
	HeaderParamKeyStyle = lipgloss.NewStyle().
				Foreground(MutedColor).
				PaddingLeft(2)

	// HeaderParamValueStyle is for parameter values (e.g., "bonjour")
	HeaderParamValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// EventFoundStyle is for newly resolved services
	EventFoundStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// EventPendingStyle is for resolutions in progress
	EventPendingStyle = lipgloss.NewStyle().
				Foreground(WarningColor)

	// EventMutedStyle is for lost services and status changes
	EventMutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// NoteStyle is for optional notes in parentheses
	NoteStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// SuccessTitleStyle is for the success result title
	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	// ErrorTitleStyle is for the error result title
	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// ErrorMessageStyle is for error message text
	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	// ResultKeyStyle is for result detail keys
	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(15)

	// ResultValueStyle is for result detail values
	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// ServiceNameStyle is for service names in lists
	ServiceNameStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true)

	// ServiceTypeStyle is for service types in lists
	ServiceTypeStyle = lipgloss.NewStyle().
				Foreground(MutedColor)

	// AddressStyle is for host:port and URLs
	AddressStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// BookmarkMarkerStyle is for the bookmark star
	BookmarkMarkerStyle = lipgloss.NewStyle().
				Foreground(BookmarkColor).
				Bold(true)

	// TroubleshootingTitleStyle is for "Troubleshooting:" headers
	TroubleshootingTitleStyle = lipgloss.NewStyle().
					Foreground(MutedColor).
					Bold(true)

	// TroubleshootingItemStyle is for troubleshooting bullet points
	TroubleshootingItemStyle = lipgloss.NewStyle().
					Foreground(MutedColor)
)

// Markers
const (
	SuccessMarker  = "✓"
	PendingMarker  = "●"
	MutedMarker    = "·"
	FailureMarker  = "✗"
	BookmarkMarker = "★"
	LostMarker     = "−"
	UpdatedMarker  = "↻"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SuccessBoxStyle returns the border style for success result boxes
func SuccessBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(SuccessColor).
		Width(width-2).
		Padding(0, 2)
}

// ErrorBoxStyle returns the border style for error result boxes
func ErrorBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ErrorColor).
		Width(width-2).
		Padding(0, 2)
}

// WarningBoxStyle returns the border style for warning result boxes
func WarningBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width-2).
		Padding(0, 2)
}

// TroubleshootingBoxStyle returns the border style for troubleshooting sections
func TroubleshootingBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(width-12).
		Padding(0, 1).
		MarginLeft(3)
}
