package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/service"
)

// clearLine returns the cursor to column 0 and erases the progress line
const clearLine = "\r\x1b[2K"

// ScanConfig holds configuration for a scan or resolve command
type ScanConfig struct {
	Title       string        // Command title (e.g., "Service Scan")
	Command     string        // Full command (e.g., "mdnshelper scan")
	Params      []Param       // Parameters to display in header
	Timeout     time.Duration // Scan timeout for the progress bar
	Interactive bool          // Redraw a progress line between events
	Output      io.Writer     // Output writer (default: os.Stdout)
}

// ScanReporter prints orchestrator events as they arrive: the header
// first, one line per event, and a result box at the end.
//
// HandleEvent is safe to call from the orchestrator's dispatcher while
// Tick runs on the command's goroutine.
type ScanReporter struct {
	mu       sync.Mutex
	config   ScanConfig
	header   *Header
	progress *ScanProgress
	output   io.Writer
	start    time.Time
	found    map[service.Key]bool
	failures int
	drawn    bool
	width    int
}

// NewScanReporter creates a reporter for a scan or resolve command
func NewScanReporter(config ScanConfig) *ScanReporter {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	header := NewHeader(config.Title, config.Command, config.Params...)
	header.SetWidth(width)

	progress := NewScanProgress(config.Timeout)
	progress.SetWidth(width)

	return &ScanReporter{
		config:   config,
		header:   header,
		progress: progress,
		output:   config.Output,
		found:    make(map[service.Key]bool),
		width:    width,
	}
}

// Begin prints the header and starts the clock
func (r *ScanReporter) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = time.Now()
	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)
}

// HandleEvent prints one orchestrator event. It is shaped to be passed
// directly to discovery.Manager.Subscribe.
func (r *ScanReporter) HandleEvent(ev discovery.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case discovery.EventFound, discovery.EventUpdated:
		r.found[ev.Service.Key()] = true
	case discovery.EventLost:
		for k := range r.found {
			if k.Name == ev.Name {
				delete(r.found, k)
			}
		}
	case discovery.EventResolveFailed, discovery.EventError:
		r.failures++
	}
	r.progress.Found = len(r.found)

	line := EventLine(ev)
	if line == "" {
		return
	}
	r.clearProgress()
	_, _ = fmt.Fprintln(r.output, line)
}

// Tick redraws the progress line. It does nothing for non-interactive output.
func (r *ScanReporter) Tick(queued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.config.Interactive {
		return
	}
	r.progress.Pending = queued
	r.clearProgress()
	_, _ = fmt.Fprint(r.output, r.progress.Render(time.Since(r.start)))
	r.drawn = true
}

// Found returns the number of distinct services currently resolved
func (r *ScanReporter) Found() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.found)
}

// Finish prints the result box. A nil err with no services found is
// reported as a warning.
func (r *ScanReporter) Finish(services []service.Resolved, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearProgress()
	_, _ = fmt.Fprintln(r.output)

	duration := Elapsed(time.Since(r.start))
	var result *Result
	switch {
	case err != nil:
		result = NewFailureResult(r.config.Title+" failed", err, DiscoveryTroubleshooting)
	case len(services) == 0:
		result = NewWarningResult("No services found",
			Detail{Key: "Duration", Value: duration})
	default:
		result = NewSuccessResult(r.config.Title+" complete",
			Detail{Key: "Services", Value: fmt.Sprint(len(services))},
			Detail{Key: "Duration", Value: duration})
		if r.failures > 0 {
			result.AddDetail("Failures", fmt.Sprint(r.failures))
		}
	}
	result.SetWidth(r.width)
	_, _ = fmt.Fprintln(r.output, result.Render())

	if err == nil && len(services) > 0 {
		_, _ = fmt.Fprintln(r.output)
		_, _ = fmt.Fprintln(r.output, RenderServiceList(services))
	}
}

func (r *ScanReporter) clearProgress() {
	if r.drawn {
		_, _ = fmt.Fprint(r.output, clearLine)
		r.drawn = false
	}
}

// EventLine renders an orchestrator event as a single styled line, or ""
// for events that have no line of their own.
func EventLine(ev discovery.Event) string {
	switch ev.Kind {
	case discovery.EventFound:
		return EventFoundStyle.Render("  "+SuccessMarker+" found   ") + ServiceLine(ev.Service)
	case discovery.EventUpdated:
		return EventFoundStyle.Render("  "+UpdatedMarker+" updated ") + ServiceLine(ev.Service)
	case discovery.EventLost:
		return EventMutedStyle.Render("  " + LostMarker + " lost    " + ev.Name)
	case discovery.EventResolving:
		return EventPendingStyle.Render("  "+PendingMarker+" resolving ") + ev.Identity.String()
	case discovery.EventResolveFailed:
		msg := ev.Status.String()
		if ev.Message != "" {
			msg = ev.Message
		}
		return ErrorMessageStyle.Render("  "+FailureMarker+" failed  ") + ev.Identity.String() +
			"  " + NoteStyle.Render("("+msg+")")
	case discovery.EventError:
		return ErrorMessageStyle.Render("  " + FailureMarker + " error   " + ev.Message)
	case discovery.EventRunning:
		if ev.Running {
			return EventMutedStyle.Render("  " + MutedMarker + " scan started")
		}
		return EventMutedStyle.Render("  " + MutedMarker + " scan stopped")
	}
	return ""
}
