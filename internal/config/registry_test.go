package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/mdnshelper/internal/service"
)

func TestGetConfigDir(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("XDG_CONFIG_HOME", "")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "mdnshelper") {
		t.Errorf("GetConfigDir() = %v, should contain 'mdnshelper'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigPathOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(ConfigPathEnvVar, want)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if got != want {
		t.Errorf("GetConfigPath() = %v, want %v", got, want)
	}

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Dir(want) {
		t.Errorf("GetConfigDir() = %v, want %v", dir, filepath.Dir(want))
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Shortcuts == nil {
		t.Error("NewRegistry().Shortcuts should not be nil")
	}

	p := reg.Preferences
	if p.DiscoverBackend != service.BackendBonjour || p.ResolveBackend != service.BackendBonjour {
		t.Errorf("default backends = %s/%s, want bonjour/bonjour", p.DiscoverBackend, p.ResolveBackend)
	}
	if p.ScanDuration() != 10*time.Second {
		t.Errorf("ScanDuration() = %v, want 10s", p.ScanDuration())
	}
	if p.ResolveDuration() != 3*time.Second {
		t.Errorf("ResolveDuration() = %v, want 3s", p.ResolveDuration())
	}
	if p.ShortcutDuration() != 15*time.Second {
		t.Errorf("ShortcutDuration() = %v, want 15s", p.ShortcutDuration())
	}
	if !p.ContinuousNativeResolve() {
		t.Error("native resolve should default to continuous")
	}
}

func TestSetDiscoverBackend(t *testing.T) {
	reg := NewRegistry()

	reg.SetDiscoverBackend(service.BackendNative)
	if err := reg.SetResolveBackend(service.BackendNative); err != nil {
		t.Fatalf("SetResolveBackend(native) error = %v", err)
	}

	// bonjour discovery cannot be paired with native resolving
	reg.SetDiscoverBackend(service.BackendBonjour)
	if got := reg.Preferences.ResolveBackend; got != service.BackendBonjour {
		t.Errorf("ResolveBackend = %s, want bonjour", got)
	}
}

func TestSetResolveBackend(t *testing.T) {
	tests := []struct {
		name     string
		discover service.Backend
		resolve  service.Backend
		wantErr  bool
	}{
		{"native/native", service.BackendNative, service.BackendNative, false},
		{"native/bonjour", service.BackendNative, service.BackendBonjour, false},
		{"bonjour/bonjour", service.BackendBonjour, service.BackendBonjour, false},
		{"bonjour/native", service.BackendBonjour, service.BackendNative, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.SetDiscoverBackend(tt.discover)
			before := reg.Preferences.ResolveBackend

			err := reg.SetResolveBackend(tt.resolve)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetResolveBackend() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && reg.Preferences.ResolveBackend != before {
				t.Errorf("ResolveBackend changed to %s on error", reg.Preferences.ResolveBackend)
			}
		})
	}
}

func TestBookmarks(t *testing.T) {
	reg := NewRegistry()

	reg.AddBookmark("_http._tcp", "nas")
	reg.AddBookmark("_http._tcp", "nas")
	if len(reg.Bookmarks) != 1 {
		t.Fatalf("len(Bookmarks) = %d, want 1", len(reg.Bookmarks))
	}
	if !reg.IsBookmarked("_http._tcp", "nas") {
		t.Error("IsBookmarked() = false after AddBookmark")
	}
	if reg.IsBookmarked("_ssh._tcp", "nas") {
		t.Error("bookmarks should match on type and name")
	}

	if reg.ToggleBookmark("_http._tcp", "nas") {
		t.Error("ToggleBookmark() on existing bookmark should return false")
	}
	if reg.IsBookmarked("_http._tcp", "nas") {
		t.Error("bookmark still present after toggle")
	}
	if !reg.ToggleBookmark("_http._tcp", "nas") {
		t.Error("ToggleBookmark() on missing bookmark should return true")
	}
	if reg.RemoveBookmark("_ipp._tcp", "printer") {
		t.Error("RemoveBookmark() of unknown bookmark should return false")
	}
}

func TestUnavailableBookmarks(t *testing.T) {
	reg := NewRegistry()
	reg.AddBookmark("_http._tcp", "nas")
	reg.AddBookmark("_ipp._tcp", "printer")
	reg.AddBookmark("_ssh._tcp", "router")

	resolved := []service.Resolved{
		{ServiceType: "_ipp._tcp", ServiceName: "printer"},
	}

	got := reg.UnavailableBookmarks(resolved)
	if len(got) != 2 {
		t.Fatalf("UnavailableBookmarks() = %v, want 2 entries", got)
	}
	if got[0].Name != "nas" || got[1].Name != "router" {
		t.Errorf("UnavailableBookmarks() = %v, want nas then router", got)
	}
}

func TestShortcuts(t *testing.T) {
	reg := NewRegistry()

	sc, err := reg.PinShortcut(Shortcut{Type: "_http._tcp", Name: "nas", Label: "Storage"})
	if err != nil {
		t.Fatalf("PinShortcut() error = %v", err)
	}
	if sc.Domain != service.LocalDomain {
		t.Errorf("Domain = %q, want %q", sc.Domain, service.LocalDomain)
	}
	if sc.ID() != "_http._tcp/nas" {
		t.Errorf("ID() = %q, want _http._tcp/nas", sc.ID())
	}
	created := sc.CreatedAt

	// re-pinning keeps the creation time
	again, err := reg.PinShortcut(Shortcut{Type: "_http._tcp", Name: "nas"})
	if err != nil {
		t.Fatalf("PinShortcut() error = %v", err)
	}
	if !again.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", again.CreatedAt, created)
	}
	if again.DisplayName() != "nas" {
		t.Errorf("DisplayName() = %q, want nas", again.DisplayName())
	}

	if _, err := reg.PinShortcut(Shortcut{Type: "_http._tcp"}); err == nil {
		t.Error("PinShortcut() without a name should fail")
	}

	reg.UpdateShortcutSeen(sc.ID(), "10.0.0.5", 80)
	got := reg.GetShortcut(sc.ID())
	if got.LastHost != "10.0.0.5" || got.LastPort != 80 || got.LastUsed.IsZero() {
		t.Errorf("UpdateShortcutSeen() left %+v", got)
	}

	if _, err := reg.PinShortcut(Shortcut{Type: "_ipp._tcp", Name: "alpha"}); err != nil {
		t.Fatalf("PinShortcut() error = %v", err)
	}
	list := reg.ListShortcuts()
	if len(list) != 2 || list[0].Name != "alpha" {
		t.Errorf("ListShortcuts() order = %v, want alpha first", list)
	}

	if !reg.RemoveShortcut(sc.ID()) {
		t.Error("RemoveShortcut() = false, want true")
	}
	if reg.GetShortcut(sc.ID()) != nil {
		t.Error("shortcut still present after RemoveShortcut")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom(missing) error = %v", err)
	}
	reg.SetDiscoverBackend(service.BackendNative)
	if err := reg.SetResolveBackend(service.BackendNative); err != nil {
		t.Fatal(err)
	}
	reg.Preferences.NativeResolve = NativeResolveOneShot
	reg.AddBookmark("_http._tcp", "nas")
	if _, err := reg.PinShortcut(Shortcut{Type: "_ipp._tcp", Name: "printer"}); err != nil {
		t.Fatal(err)
	}

	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# mdnshelper Configuration File") {
		t.Error("saved file should start with the header comment")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should not remain after Save()")
	}

	loaded, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	if loaded.Preferences.DiscoverBackend != service.BackendNative ||
		loaded.Preferences.ResolveBackend != service.BackendNative {
		t.Errorf("loaded backends = %s/%s, want native/native",
			loaded.Preferences.DiscoverBackend, loaded.Preferences.ResolveBackend)
	}
	if loaded.Preferences.ContinuousNativeResolve() {
		t.Error("loaded native resolve mode should be oneshot")
	}
	if !loaded.IsBookmarked("_http._tcp", "nas") {
		t.Error("bookmark lost across save/load")
	}
	if loaded.GetShortcut("_ipp._tcp/printer") == nil {
		t.Error("shortcut lost across save/load")
	}
}

func TestLoadRegistryRepairsPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`version: 1
preferences:
  discover_backend: bonjour
  resolve_backend: native
  scan_timeout: 0
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistryFrom(path)
	if err != nil {
		t.Fatalf("LoadRegistryFrom() error = %v", err)
	}
	p := reg.Preferences
	if p.ResolveBackend != service.BackendBonjour {
		t.Errorf("ResolveBackend = %s, want bonjour", p.ResolveBackend)
	}
	if p.ScanTimeout != 10 {
		t.Errorf("ScanTimeout = %d, want 10", p.ScanTimeout)
	}
	if p.BrowseType != service.MetaQueryType {
		t.Errorf("BrowseType = %q, want %q", p.BrowseType, service.MetaQueryType)
	}
	if reg.Shortcuts == nil {
		t.Error("Shortcuts should be initialised")
	}
}

func TestLoadRegistryErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad version", "version: 2\n"},
		{"bad backend", "version: 1\npreferences:\n  discover_backend: nsd\n"},
		{"not yaml", "version: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistryFrom(path); err == nil {
				t.Error("LoadRegistryFrom() should fail")
			}
		})
	}
}

func BenchmarkIsBookmarked(b *testing.B) {
	reg := NewRegistry()
	for i := 0; i < 50; i++ {
		reg.AddBookmark("_http._tcp", strings.Repeat("x", i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.IsBookmarked("_http._tcp", "missing")
	}
}
