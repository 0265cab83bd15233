package main

import (
	"testing"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/service"
)

func TestApplyPreference(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
		check   func(p *config.Preferences) bool
	}{
		{"native discovery", "discover_backend", "native", false,
			func(p *config.Preferences) bool { return p.DiscoverBackend == service.BackendNative }},
		{"zeroconf alias", "discover_backend", "zeroconf", false,
			func(p *config.Preferences) bool { return p.DiscoverBackend == service.BackendBonjour }},
		{"unknown backend", "discover_backend", "avahi", true, nil},
		{"incompatible resolver", "resolve_backend", "native", true, nil},
		{"scan timeout", "scan_timeout", "30", false,
			func(p *config.Preferences) bool { return p.ScanTimeout == 30 }},
		{"zero timeout", "resolve_window", "0", true, nil},
		{"shortcut timeout", "shortcut_timeout", " 20 ", false,
			func(p *config.Preferences) bool { return p.ShortcutTimeout == 20 }},
		{"browse type", "browse_type", "_http._tcp", false,
			func(p *config.Preferences) bool { return p.BrowseType == "_http._tcp" }},
		{"bad browse type", "browse_type", "http", true, nil},
		{"domain gets trailing dot", "domain", "example.com", false,
			func(p *config.Preferences) bool { return p.Domain == "example.com." }},
		{"oneshot", "native_resolve_mode", "oneshot", false,
			func(p *config.Preferences) bool { return !p.ContinuousNativeResolve() }},
		{"bad mode", "native_resolve_mode", "sometimes", true, nil},
		{"browser command", "preferred_browser", "firefox %s", false,
			func(p *config.Preferences) bool { return p.PreferredBrowser == "firefox %s" }},
		{"case insensitive key", "SCAN_TIMEOUT", "5", false,
			func(p *config.Preferences) bool { return p.ScanTimeout == 5 }},
		{"unknown key", "colour", "blue", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := config.NewRegistry()
			err := applyPreference(r, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyPreference(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(r.Preferences) {
				t.Errorf("applyPreference(%q, %q) left %+v", tt.key, tt.value, *r.Preferences)
			}
		})
	}
}

func TestSwitchingToBonjourResetsResolver(t *testing.T) {
	r := config.NewRegistry()
	if err := applyPreference(r, "discover_backend", "native"); err != nil {
		t.Fatal(err)
	}
	if err := applyPreference(r, "resolve_backend", "native"); err != nil {
		t.Fatal(err)
	}
	if err := applyPreference(r, "discover_backend", "bonjour"); err != nil {
		t.Fatal(err)
	}
	values := preferenceValues(*r.Preferences)
	if values["resolve_backend"] != "bonjour" {
		t.Errorf("resolve_backend = %q, want bonjour", values["resolve_backend"])
	}
}

func TestShortcutID(t *testing.T) {
	if got := shortcutID([]string{"_http._tcp/nas"}); got != "_http._tcp/nas" {
		t.Errorf("shortcutID(id) = %q", got)
	}
	if got := shortcutID([]string{"_http._tcp", "nas"}); got != config.ShortcutID("_http._tcp", "nas") {
		t.Errorf("shortcutID(type, name) = %q", got)
	}
}

func TestResolveDeadline(t *testing.T) {
	prefs := *config.DefaultPreferences()
	typeLevel := service.NewBonjourRecord("_http._tcp", "")
	instance := service.NewBonjourInstance("nas", "_http._tcp", "")

	if got := resolveDeadline(typeLevel, prefs, 0); got != prefs.ResolveDuration()+1e9 {
		t.Errorf("type-level deadline = %s", got)
	}
	if got := resolveDeadline(instance, prefs, 0); got != prefs.ShortcutDuration() {
		t.Errorf("instance deadline = %s", got)
	}
	if got := resolveDeadline(instance, prefs, 4); got != 4e9 {
		t.Errorf("flag deadline = %s", got)
	}
}
