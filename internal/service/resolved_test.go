package service

import (
	"encoding/json"
	"net"
	"testing"
)

func TestNewResolved(t *testing.T) {
	id := NewNativeRecord("_http._tcp", "dev1", "local.", "")

	tests := []struct {
		name        string
		rec         Record
		wantAddress string
		wantType    string
		wantName    string
		wantPort    int
	}{
		{
			name: "ipv4 preferred",
			rec: Record{
				Name: "dev1",
				Type: "_http._tcp.",
				Host: "dev1.local.",
				IPv4: []net.IP{net.ParseIP("10.0.0.5")},
				IPv6: []net.IP{net.ParseIP("fe80::1")},
				Port: 80,
			},
			wantAddress: "10.0.0.5",
			wantType:    "_http._tcp",
			wantName:    "dev1",
			wantPort:    80,
		},
		{
			name: "ipv6 fallback",
			rec: Record{
				IPv6: []net.IP{net.ParseIP("fe80::1")},
				Port: 8080,
			},
			wantAddress: "fe80::1",
			wantType:    "_http._tcp",
			wantName:    "dev1",
			wantPort:    8080,
		},
		{
			name:     "no address",
			rec:      Record{Name: "other", Port: -1},
			wantType: "_http._tcp",
			wantName: "other",
			wantPort: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolved(id, tt.rec)
			if r.HostAddress != tt.wantAddress {
				t.Errorf("HostAddress = %q, want %q", r.HostAddress, tt.wantAddress)
			}
			if r.ServiceType != tt.wantType {
				t.Errorf("ServiceType = %q, want %q", r.ServiceType, tt.wantType)
			}
			if r.ServiceName != tt.wantName {
				t.Errorf("ServiceName = %q, want %q", r.ServiceName, tt.wantName)
			}
			if r.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", r.Port, tt.wantPort)
			}
			if r.Identity != id {
				t.Error("Identity should be carried through")
			}
			if r.Domain != LocalDomain {
				t.Errorf("Domain = %q, want %q", r.Domain, LocalDomain)
			}
		})
	}
}

func TestResolvedAddress(t *testing.T) {
	r := Resolved{HostAddress: "10.0.0.5", Port: 80}
	if got := r.Address(); got != "10.0.0.5:80" {
		t.Errorf("Address() = %q, want 10.0.0.5:80", got)
	}

	r = Resolved{HostAddress: "fe80::1", Port: 443}
	if got := r.Address(); got != "[fe80::1]:443" {
		t.Errorf("Address() = %q, want [fe80::1]:443", got)
	}

	r = Resolved{HostAddress: "10.0.0.5"}
	if r.HasAddress() {
		t.Error("HasAddress() should be false without a port")
	}
	if got := r.Address(); got != "" {
		t.Errorf("Address() = %q, want empty", got)
	}
}

func TestSplitIPs(t *testing.T) {
	v4, v6 := SplitIPs([]net.IP{
		net.ParseIP("192.168.1.2"),
		net.ParseIP("fe80::2"),
		nil,
		net.ParseIP("10.0.0.1"),
	})
	if len(v4) != 2 || len(v6) != 1 {
		t.Errorf("SplitIPs() = %d v4, %d v6, want 2 and 1", len(v4), len(v6))
	}
}

func TestParseTXT(t *testing.T) {
	txt := ParseTXT([]string{"path=/", "srcvers=1D90645", "flag", "", "path=/admin", "eq=a=b"})

	wantKeys := []string{"path", "srcvers", "flag", "eq"}
	keys := txt.Keys()
	if len(keys) != len(wantKeys) {
		t.Fatalf("Keys() = %v, want %v", keys, wantKeys)
	}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], wantKeys[i])
		}
	}

	if v, _ := txt.Get("path"); v != "/admin" {
		t.Errorf("Get(path) = %q, want /admin", v)
	}
	if v, ok := txt.Get("flag"); !ok || v != "" {
		t.Errorf("Get(flag) = (%q, %v), want empty and present", v, ok)
	}
	if v, _ := txt.Get("eq"); v != "a=b" {
		t.Errorf("Get(eq) = %q, want a=b", v)
	}
	if _, ok := txt.Get("missing"); ok {
		t.Error("Get(missing) should report absence")
	}
}

func TestTXTMarshalJSONKeepsOrder(t *testing.T) {
	txt := ParseTXT([]string{"z=1", "a=2", "m=3"})
	b, err := json.Marshal(txt)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(b), `{"z":"1","a":"2","m":"3"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}

	empty, err := json.Marshal(TXT{})
	if err != nil {
		t.Fatalf("Marshal(empty) error = %v", err)
	}
	if string(empty) != "{}" {
		t.Errorf("Marshal(empty) = %s, want {}", empty)
	}
}

func TestTXTFromMap(t *testing.T) {
	txt := TXTFromMap(map[string]string{"b": "2", "a": "1"})
	keys := txt.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}
	if txt.Len() != 2 {
		t.Errorf("Len() = %d, want 2", txt.Len())
	}
}
