package native

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metaQuery = "_services._dns-sd._udp.local."

func ptr(name, target string, ttl uint32) dns.RR {
	return &dns.PTR{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: ttl},
		Ptr: target,
	}
}

// wire packs and unpacks msg the way it travels between responder and browser.
func wire(t *testing.T, msg *dns.Msg) *dns.Msg {
	t.Helper()
	packed, err := msg.Pack()
	require.NoError(t, err)
	out := new(dns.Msg)
	require.NoError(t, out.Unpack(packed))
	return out
}

func TestNewMetaQuery(t *testing.T) {
	q := newMetaQuery("_services._dns-sd._udp.local")

	assert.Zero(t, q.Id)
	assert.False(t, q.RecursionDesired)
	assert.False(t, q.Response)
	require.Len(t, q.Question, 1)
	assert.Equal(t, metaQuery, q.Question[0].Name)
	assert.Equal(t, dns.TypePTR, q.Question[0].Qtype)
	assert.Equal(t, uint16(dns.ClassINET), q.Question[0].Qclass)

	_, err := q.Pack()
	assert.NoError(t, err)
}

func TestTypesFromMessage(t *testing.T) {
	resp := new(dns.Msg)
	resp.Response = true
	resp.Authoritative = true
	resp.Answer = []dns.RR{
		ptr(metaQuery, "_http._tcp.local.", 4500),
		ptr(metaQuery, "_ipp._tcp.local.", 0), // goodbye
		ptr("_http._tcp.local.", "dev1._http._tcp.local.", 4500),
		ptr("_SERVICES._dns-sd._udp.local.", "_smb._tcp.local.", 4500),
		ptr(metaQuery, "not-a-type.local.", 4500),
	}
	resp.Extra = []dns.RR{
		ptr(metaQuery, "_ssh._tcp.local.", 4500),
		ptr(metaQuery, "_http._tcp.local.", 4500),
		&dns.A{
			Hdr: dns.RR_Header{Name: "dev1.local.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 120},
			A:   net.ParseIP("10.0.0.1"),
		},
	}

	got := typesFromMessage(wire(t, resp), "_services._dns-sd._udp.local")
	assert.Equal(t, []typeAnswer{
		{Type: "_http._tcp", Domain: "local."},
		{Type: "_smb._tcp", Domain: "local."},
		{Type: "_ssh._tcp", Domain: "local."},
	}, got)
}

func TestTypesFromMessageIgnoresQueries(t *testing.T) {
	// a query carrying known answers is not a response
	query := newMetaQuery(metaQuery)
	query.Answer = []dns.RR{ptr(metaQuery, "_http._tcp.local.", 4500)}

	assert.Empty(t, typesFromMessage(wire(t, query), metaQuery))
	assert.Empty(t, typesFromMessage(nil, metaQuery))
}
