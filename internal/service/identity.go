package service

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MetaQueryType enumerates every service type advertised on the link.
	MetaQueryType = "_services._dns-sd._udp"

	// LocalDomain is the multicast DNS domain.
	LocalDomain = "local."
)

// ErrInvalidIdentity is returned when a shortcut record lacks a type or a name.
var ErrInvalidIdentity = errors.New("service type and name are required")

// Kind tells which family of record an Identity came from.
type Kind int

const (
	// KindNative records are produced by the native (brutella/dnssd) backend.
	KindNative Kind = iota
	// KindBonjour records are produced by the bonjour (zeroconf) backend.
	KindBonjour
	// KindShortcut records are rebuilt from a pinned shortcut.
	KindShortcut
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindBonjour:
		return "bonjour"
	case KindShortcut:
		return "shortcut"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Identity names a service independently of the backend that found it.
// It is a comparable value and never changes after construction.
type Identity struct {
	kind        Kind
	serviceType string
	name        string
	domain      string
	regType     string
	iface       string
}

// NewNativeRecord builds the identity of a native discovery result.
func NewNativeRecord(serviceType, name, domain, iface string) Identity {
	return Identity{
		kind:        KindNative,
		serviceType: trimType(serviceType),
		name:        name,
		domain:      normalizeDomain(domain),
		iface:       iface,
	}
}

// NewBonjourRecord builds a type-level bonjour identity. regType is the
// registration type such as "_http._tcp".
func NewBonjourRecord(regType, domain string) Identity {
	regType = trimType(regType)
	return Identity{
		kind:        KindBonjour,
		serviceType: regType,
		domain:      normalizeDomain(domain),
		regType:     regType,
	}
}

// NewBonjourInstance builds an instance-level bonjour identity.
func NewBonjourInstance(name, regType, domain string) Identity {
	id := NewBonjourRecord(regType, domain)
	id.name = name
	return id
}

// NewShortcutRecord rebuilds the identity stored in a pinned shortcut.
func NewShortcutRecord(serviceType, name, domain string) (Identity, error) {
	if strings.TrimSpace(serviceType) == "" || strings.TrimSpace(name) == "" {
		return Identity{}, ErrInvalidIdentity
	}
	return Identity{
		kind:        KindShortcut,
		serviceType: trimType(serviceType),
		name:        name,
		domain:      normalizeDomain(domain),
		regType:     trimType(serviceType),
	}, nil
}

// IdentityFor builds the identity a discovery with the given backend would
// have produced for a user supplied type and optional instance name.
func IdentityFor(discover Backend, serviceType, name, domain string) Identity {
	if discover == BackendNative {
		return NewNativeRecord(serviceType, name, domain, "")
	}
	if name == "" {
		return NewBonjourRecord(serviceType, domain)
	}
	return NewBonjourInstance(name, serviceType, domain)
}

// SplitEnumeration splits the target of a meta-query PTR record, for example
// "_http._tcp.local", into the service type "_http._tcp" and domain "local.".
func SplitEnumeration(ptr string) (serviceType, domain string, ok bool) {
	labels := strings.Split(strings.TrimSuffix(ptr, "."), ".")
	if len(labels) < 2 {
		return "", "", false
	}
	if !strings.HasPrefix(labels[0], "_") {
		return "", "", false
	}
	if labels[1] != "_tcp" && labels[1] != "_udp" {
		return "", "", false
	}
	serviceType = labels[0] + "." + labels[1]
	domain = LocalDomain
	if len(labels) > 2 {
		domain = strings.Join(labels[2:], ".") + "."
	}
	return serviceType, domain, true
}

func (id Identity) Kind() Kind      { return id.kind }
func (id Identity) Type() string    { return id.serviceType }
func (id Identity) Name() string    { return id.name }
func (id Identity) Domain() string  { return id.domain }
func (id Identity) RegType() string { return id.regType }
func (id Identity) Iface() string   { return id.iface }

// IsZero reports whether id was never constructed.
func (id Identity) IsZero() bool { return id == Identity{} }

// IsTypeLevel reports whether the identity names a whole service type
// rather than one instance of it.
func (id Identity) IsTypeLevel() bool { return id.name == "" }

// Query returns the browse query for the identity's type, e.g. "_http._tcp.local.".
func (id Identity) Query() string {
	return id.serviceType + "." + id.domain
}

// InstanceName returns the fully qualified instance name, with dots and
// backslashes in the instance label escaped.
func (id Identity) InstanceName() string {
	if id.name == "" {
		return id.Query()
	}
	return escapeLabel(id.name) + "." + id.Query()
}

func (id Identity) String() string {
	if id.name == "" {
		return fmt.Sprintf("%s:%s", id.kind, id.Query())
	}
	return fmt.Sprintf("%s:%s", id.kind, id.InstanceName())
}

func trimType(t string) string {
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, ".")
	t = strings.TrimSuffix(t, ".local")
	return t
}

func normalizeDomain(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return LocalDomain
	}
	if !strings.HasSuffix(d, ".") {
		d += "."
	}
	return d
}

func escapeLabel(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '.' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
