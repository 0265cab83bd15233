package service

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Key identifies an entry in the resolved-service collection
type Key struct {
	Type string
	Name string
}

func (k Key) String() string {
	return k.Type + "/" + k.Name
}

// Resolved is what observers receive once an identity has been resolved.
// A Resolved is a value: a later resolution of the same service produces a
// new Resolved that replaces the old one.
type Resolved struct {
	// Identity is the discovered identity this projection was built from
	Identity Identity

	// ServiceType is the registration type (e.g., "_http._tcp")
	ServiceType string

	// ServiceName is the instance name (e.g., "Living Room Printer")
	ServiceName string

	// Domain is the mDNS domain, usually "local."
	Domain string

	// HostName is the target host (e.g., "printer.local.")
	HostName string

	// HostAddress is the textual IP address, IPv4 preferred
	HostAddress string

	// Port is the service port, 0 when unknown
	Port int

	// Extra contains the TXT record key/value pairs in announcement order
	Extra TXT

	// Bookmarked is display state supplied by the bookmark store
	Bookmarked bool

	// ResolvedAt is when the resolution callback fired
	ResolvedAt time.Time
}

// Key returns the collection key for r.
func (r Resolved) Key() Key {
	return Key{Type: r.ServiceType, Name: r.ServiceName}
}

// HasAddress reports whether r carries a usable host address and port.
func (r Resolved) HasAddress() bool {
	return r.HostAddress != "" && r.Port > 0
}

// Address returns "host:port", or an empty string when r has no address.
func (r Resolved) Address() string {
	if !r.HasAddress() {
		return ""
	}
	return net.JoinHostPort(r.HostAddress, strconv.Itoa(r.Port))
}

func (r Resolved) String() string {
	if r.HasAddress() {
		return fmt.Sprintf("%s (%s) at %s", r.ServiceName, r.ServiceType, r.Address())
	}
	return fmt.Sprintf("%s (%s)", r.ServiceName, r.ServiceType)
}

// Record is the backend-neutral shape of one resolution answer. Adapters
// fill it from their library's entry type.
type Record struct {
	Name   string
	Type   string
	Domain string
	Host   string
	IPv4   []net.IP
	IPv6   []net.IP
	Port   int
	Text   TXT
}

// NewResolved builds a Resolved from a resolution answer for id. Fields the
// answer leaves empty fall back to what the identity already knows.
func NewResolved(id Identity, rec Record) Resolved {
	r := Resolved{
		Identity:    id,
		ServiceType: rec.Type,
		ServiceName: rec.Name,
		Domain:      rec.Domain,
		HostName:    rec.Host,
		Port:        rec.Port,
		Extra:       rec.Text,
		ResolvedAt:  time.Now(),
	}
	if r.ServiceType == "" {
		r.ServiceType = id.Type()
	} else {
		r.ServiceType = trimType(r.ServiceType)
	}
	if r.ServiceName == "" {
		r.ServiceName = id.Name()
	}
	if r.Domain == "" {
		r.Domain = id.Domain()
	} else {
		r.Domain = normalizeDomain(r.Domain)
	}
	if r.Port < 0 {
		r.Port = 0
	}

	// Prefer IPv4, fall back to IPv6
	if len(rec.IPv4) > 0 {
		r.HostAddress = rec.IPv4[0].String()
	} else if len(rec.IPv6) > 0 {
		r.HostAddress = rec.IPv6[0].String()
	}
	return r
}

// SplitIPs separates a mixed address list into IPv4 and IPv6 addresses.
func SplitIPs(ips []net.IP) (v4, v6 []net.IP) {
	for _, ip := range ips {
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			v4 = append(v4, ip)
		} else {
			v6 = append(v6, ip)
		}
	}
	return v4, v6
}
