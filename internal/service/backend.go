package service

import (
	"fmt"
	"strings"
)

// Backend names one of the two mDNS client implementations.
type Backend string

const (
	BackendNative  Backend = "native"
	BackendBonjour Backend = "bonjour"
)

// Backends lists every known backend in display order.
var Backends = []Backend{BackendNative, BackendBonjour}

// ParseBackend converts a user supplied name into a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendNative:
		return BackendNative, nil
	case BackendBonjour, "zeroconf":
		return BackendBonjour, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want native or bonjour)", s)
	}
}

func (b Backend) String() string { return string(b) }

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value leaves
// the zero Backend so callers can apply their default.
func (b *Backend) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*b = ""
		return nil
	}
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// pairs is the static (discovery, resolving) compatibility table. Native
// discovery hands out records that either backend can resolve; records
// discovered by bonjour can only be resolved by bonjour.
var pairs = map[Backend][]Backend{
	BackendNative:  {BackendNative, BackendBonjour},
	BackendBonjour: {BackendBonjour},
}

// resolvable lists which identity kinds each resolving backend accepts.
var resolvable = map[Backend]map[Kind]bool{
	BackendNative:  {KindNative: true},
	BackendBonjour: {KindNative: true, KindBonjour: true, KindShortcut: true},
}

// Supported returns the resolving backends usable with a discovery backend.
// The first entry is the default.
func Supported(discover Backend) []Backend {
	out := make([]Backend, len(pairs[discover]))
	copy(out, pairs[discover])
	return out
}

// ValidPair reports whether resolve may be used after discovering with discover.
func ValidPair(discover, resolve Backend) bool {
	for _, b := range pairs[discover] {
		if b == resolve {
			return true
		}
	}
	return false
}

// EffectiveResolver returns the resolving backend to use given the user's
// choice. An incompatible choice is replaced by the first supported one.
func EffectiveResolver(discover, resolve Backend) Backend {
	if ValidPair(discover, resolve) {
		return resolve
	}
	if s := pairs[discover]; len(s) > 0 {
		return s[0]
	}
	return resolve
}

// CanResolve reports whether backend b is able to resolve id.
func CanResolve(b Backend, id Identity) bool {
	return resolvable[b][id.Kind()]
}

// ResolverFor picks the backend that resolves id given the preferred
// resolving backend. Shortcut records always go to bonjour. The second
// return value is false when the preferred backend cannot handle id.
func ResolverFor(preferred Backend, id Identity) (Backend, bool) {
	if id.Kind() == KindShortcut {
		return BackendBonjour, true
	}
	if CanResolve(preferred, id) {
		return preferred, true
	}
	return preferred, false
}
