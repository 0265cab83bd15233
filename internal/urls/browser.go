package urls

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/logging"
)

// Browser preference values
const (
	BrowserDefault = "default"
	BrowserPrint   = "print"
)

// ErrNoURL is returned when there is nothing to open.
var ErrNoURL = errors.New("no URL to open")

// Opener opens URLs according to the preferred browser setting.
type Opener struct {
	// Preference is "default", "print" or a command line. A command line may
	// contain "%s" where the URL goes, otherwise the URL is appended.
	Preference string

	// Print receives the URL when the preference is "print"
	Print func(url string)

	// run starts a command, replaceable in tests
	run func(ctx context.Context, name string, args ...string) error
}

// NewOpener creates an Opener for a browser preference.
func NewOpener(preference string, printFn func(string)) *Opener {
	return &Opener{Preference: preference, Print: printFn, run: startCommand}
}

// Open opens url. With the "print" preference nothing is launched.
func (o *Opener) Open(ctx context.Context, url string) error {
	if url == "" {
		return ErrNoURL
	}

	pref := strings.TrimSpace(o.Preference)
	if pref == "" {
		pref = BrowserDefault
	}

	if pref == BrowserPrint {
		if o.Print != nil {
			o.Print(url)
		}
		return nil
	}

	name, args, err := commandFor(pref, url, runtime.GOOS)
	if err != nil {
		return err
	}

	logging.Debug("Opening URL",
		zap.String("url", url),
		zap.String("command", name))

	run := o.run
	if run == nil {
		run = startCommand
	}
	if err := run(ctx, name, args...); err != nil {
		return fmt.Errorf("failed to open %s with %s: %w", url, name, err)
	}
	return nil
}

// commandFor builds the command line that opens url.
func commandFor(pref, url, goos string) (string, []string, error) {
	if pref == BrowserDefault {
		switch goos {
		case "darwin":
			return "open", []string{url}, nil
		case "windows":
			return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
		default:
			return "xdg-open", []string{url}, nil
		}
	}

	fields := strings.Fields(pref)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty browser command")
	}
	substituted := false
	for i, f := range fields[1:] {
		if strings.Contains(f, "%s") {
			fields[i+1] = strings.ReplaceAll(f, "%s", url)
			substituted = true
		}
	}
	if !substituted {
		fields = append(fields, url)
	}
	return fields[0], fields[1:], nil
}

// startCommand launches the opener detached from ctx so the browser outlives
// the caller.
func startCommand(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Browsers may stay in the foreground; reap in the background
	go func() { _ = cmd.Wait() }()
	return nil
}
