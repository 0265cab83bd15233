package urls

import (
	"net"
	"strconv"
	"strings"

	"github.com/muurk/mdnshelper/internal/service"
)

// Documentation is the project's documentation site.
const Documentation = "https://muurk.github.io/mdnshelper/"

// Troubleshooting covers multicast issues such as firewalls dropping
// UDP port 5353 or Wi-Fi client isolation.
const Troubleshooting = "https://muurk.github.io/mdnshelper/troubleshooting/"

// AddressAsURL composes the endpoint URL of a resolved service,
// "http://host:port". IPv6 hosts are bracketed. An empty host yields "".
func AddressAsURL(host string, port int) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if port <= 0 {
		if strings.Contains(host, ":") {
			return "http://[" + host + "]"
		}
		return "http://" + host
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// ServiceURL returns the endpoint URL of r, or "" when r has no address.
func ServiceURL(r service.Resolved) string {
	if !r.HasAddress() {
		return ""
	}
	return AddressAsURL(r.HostAddress, r.Port)
}
