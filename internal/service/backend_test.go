package service

import "testing"

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"native", BackendNative, false},
		{"Bonjour", BackendBonjour, false},
		{" zeroconf ", BackendBonjour, false},
		{"nsd", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEffectiveResolver(t *testing.T) {
	tests := []struct {
		discover, resolve, want Backend
	}{
		{BackendNative, BackendNative, BackendNative},
		{BackendNative, BackendBonjour, BackendBonjour},
		{BackendBonjour, BackendBonjour, BackendBonjour},
		{BackendBonjour, BackendNative, BackendBonjour},
	}

	for _, tt := range tests {
		if got := EffectiveResolver(tt.discover, tt.resolve); got != tt.want {
			t.Errorf("EffectiveResolver(%s, %s) = %s, want %s", tt.discover, tt.resolve, got, tt.want)
		}
	}
}

func TestSupported(t *testing.T) {
	if got := Supported(BackendBonjour); len(got) != 1 || got[0] != BackendBonjour {
		t.Errorf("Supported(bonjour) = %v, want [bonjour]", got)
	}
	got := Supported(BackendNative)
	if len(got) != 2 {
		t.Fatalf("Supported(native) = %v, want two backends", got)
	}
	got[0] = BackendBonjour
	if Supported(BackendNative)[0] != BackendNative {
		t.Error("Supported should return a copy")
	}
}

func TestCompatibilityTable(t *testing.T) {
	shortcut, _ := NewShortcutRecord("_http._tcp", "nas", "local.")
	native := NewNativeRecord("_http._tcp", "nas", "local.", "")
	bonjour := NewBonjourRecord("_http._tcp", "local.")

	tests := []struct {
		name    string
		pref    Backend
		id      Identity
		want    Backend
		wantOK  bool
		canSelf bool
	}{
		{"native resolves native", BackendNative, native, BackendNative, true, true},
		{"native cannot resolve bonjour", BackendNative, bonjour, BackendNative, false, false},
		{"bonjour resolves bonjour", BackendBonjour, bonjour, BackendBonjour, true, true},
		{"bonjour resolves native", BackendBonjour, native, BackendBonjour, true, true},
		{"shortcut always bonjour", BackendNative, shortcut, BackendBonjour, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolverFor(tt.pref, tt.id)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolverFor() = (%s, %v), want (%s, %v)", got, ok, tt.want, tt.wantOK)
			}
			if can := CanResolve(tt.pref, tt.id); can != tt.canSelf {
				t.Errorf("CanResolve(%s, %s) = %v, want %v", tt.pref, tt.id, can, tt.canSelf)
			}
		})
	}
}

func TestBackendText(t *testing.T) {
	var b Backend
	if err := b.UnmarshalText([]byte("native")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if b != BackendNative {
		t.Errorf("UnmarshalText() = %q, want native", b)
	}
	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) should fail")
	}
	if err := b.UnmarshalText(nil); err != nil || b != "" {
		t.Errorf("UnmarshalText(empty) = (%q, %v), want zero value", b, err)
	}
}
