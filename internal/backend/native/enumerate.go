package native

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/brutella/dnssd"
	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
)

// Meta-query retransmission backs off from the first to the last interval.
const (
	firstQueryInterval = time.Second
	maxQueryInterval   = 20 * time.Second
)

// typeAnswer is one service type named by a meta-query response.
type typeAnswer struct {
	Type   string
	Domain string
}

// enumerateTypes sends the DNS-SD meta-query for query, e.g.
// "_services._dns-sd._udp.local.", and calls found for every service type in
// the answers until ctx ends. found may see a type more than once and may be
// called from more than one goroutine.
//
// dnssd only reports browse entries that carry SRV and address records, so
// the bare PTR answers of the meta-query are read off the wire here.
// Multicast answers arrive on a dnssd connection. Responders that treat the
// ephemeral source port as a legacy resolver answer the sending socket.
func enumerateTypes(ctx context.Context, query string, found func(typeAnswer)) error {
	mconn, err := dnssd.NewMDNSConn()
	if err != nil {
		return err
	}
	defer mconn.Close()

	// dnssd's readers stop only on cancellation, not on a deadline
	readCtx, stopReading := context.WithCancel(context.Background())
	defer stopReading()

	uconn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		return err
	}
	defer uconn.Close()

	packed, err := newMetaQuery(query).Pack()
	if err != nil {
		return fmt.Errorf("failed to pack meta-query: %w", err)
	}

	report := func(msg *dns.Msg, iface string) {
		for _, t := range typesFromMessage(msg, query) {
			logging.Debug("Service type answered meta-query",
				zap.String("type", t.Type),
				zap.String("domain", t.Domain),
				zap.String("iface", iface))
			found(t)
		}
	}

	go func() {
		buf := make([]byte, 65536)
		for {
			n, _, err := uconn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			msg := new(dns.Msg)
			if err := msg.Unpack(buf[:n]); err != nil {
				continue
			}
			report(msg, "")
		}
	}()

	requests := mconn.Read(readCtx)
	interval := firstQueryInterval
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if _, err := uconn.WriteToUDP(packed, dnssd.AddrIPv4LinkLocalMulticast); err != nil {
				logging.Debug("Failed to send meta-query", zap.Error(err))
			}
			timer.Reset(interval)
			interval = min(interval*2, maxQueryInterval)
		case req := <-requests:
			report(req.Raw(), req.IfaceName())
		}
	}
}

// newMetaQuery builds a single-question PTR query in mDNS form: id zero and
// no recursion.
func newMetaQuery(query string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(query), dns.TypePTR)
	m.Id = 0
	m.RecursionDesired = false
	return m
}

// typesFromMessage returns the service types a response names for query.
// Goodbye records (TTL 0) and PTRs for other names are skipped.
func typesFromMessage(msg *dns.Msg, query string) []typeAnswer {
	if msg == nil || !msg.Response {
		return nil
	}
	var out []typeAnswer
	seen := make(map[typeAnswer]bool)
	for _, rr := range append(append([]dns.RR(nil), msg.Answer...), msg.Extra...) {
		ptr, ok := rr.(*dns.PTR)
		if !ok || ptr.Hdr.Ttl == 0 {
			continue
		}
		if !strings.EqualFold(ptr.Hdr.Name, dns.Fqdn(query)) {
			continue
		}
		t, d, ok := service.SplitEnumeration(ptr.Ptr)
		if !ok {
			continue
		}
		ans := typeAnswer{Type: t, Domain: d}
		if !seen[ans] {
			seen[ans] = true
			out = append(out, ans)
		}
	}
	return out
}
