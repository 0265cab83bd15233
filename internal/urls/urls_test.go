package urls

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/muurk/mdnshelper/internal/service"
)

func TestAddressAsURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"10.0.0.5", 80, "http://10.0.0.5:80"},
		{"192.168.1.20", 8080, "http://192.168.1.20:8080"},
		{"fe80::1", 631, "http://[fe80::1]:631"},
		{"nas.local", 0, "http://nas.local"},
		{"fe80::1", 0, "http://[fe80::1]"},
		{"", 80, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := AddressAsURL(tt.host, tt.port); got != tt.want {
				t.Errorf("AddressAsURL(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
			}
		})
	}
}

func TestServiceURL(t *testing.T) {
	r := service.Resolved{ServiceName: "nas", HostAddress: "10.0.0.5", Port: 80}
	if got := ServiceURL(r); got != "http://10.0.0.5:80" {
		t.Errorf("ServiceURL() = %q, want http://10.0.0.5:80", got)
	}
	r.Port = 0
	if got := ServiceURL(r); got != "" {
		t.Errorf("ServiceURL() without port = %q, want empty", got)
	}
}

func TestCommandFor(t *testing.T) {
	const url = "http://10.0.0.5:80"
	tests := []struct {
		name     string
		pref     string
		goos     string
		wantName string
		wantArgs []string
	}{
		{"linux default", BrowserDefault, "linux", "xdg-open", []string{url}},
		{"darwin default", BrowserDefault, "darwin", "open", []string{url}},
		{"windows default", BrowserDefault, "windows", "rundll32", []string{"url.dll,FileProtocolHandler", url}},
		{"append url", "firefox --new-tab", "linux", "firefox", []string{"--new-tab", url}},
		{"placeholder", "chromium --app=%s", "linux", "chromium", []string{"--app=" + url}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := commandFor(tt.pref, url, tt.goos)
			if err != nil {
				t.Fatalf("commandFor() error = %v", err)
			}
			if name != tt.wantName {
				t.Errorf("command = %q, want %q", name, tt.wantName)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestOpenerPrint(t *testing.T) {
	var printed string
	o := NewOpener(BrowserPrint, func(u string) { printed = u })
	o.run = func(context.Context, string, ...string) error {
		t.Error("print preference should not start a command")
		return nil
	}

	if err := o.Open(context.Background(), "http://10.0.0.5:80"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if printed != "http://10.0.0.5:80" {
		t.Errorf("printed = %q, want the URL", printed)
	}
}

func TestOpenerRunsCommand(t *testing.T) {
	var gotName string
	var gotArgs []string
	o := NewOpener("mybrowser", nil)
	o.run = func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}

	if err := o.Open(context.Background(), "http://h:1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if gotName != "mybrowser" || len(gotArgs) != 1 || gotArgs[0] != "http://h:1" {
		t.Errorf("ran %q %v, want mybrowser [http://h:1]", gotName, gotArgs)
	}

	boom := errors.New("boom")
	o.run = func(context.Context, string, ...string) error { return boom }
	if err := o.Open(context.Background(), "http://h:1"); !errors.Is(err, boom) {
		t.Errorf("Open() error = %v, want wrapped boom", err)
	}
}

func TestOpenerNoURL(t *testing.T) {
	o := NewOpener(BrowserDefault, nil)
	if err := o.Open(context.Background(), ""); !errors.Is(err, ErrNoURL) {
		t.Errorf("Open(\"\") error = %v, want ErrNoURL", err)
	}
}
