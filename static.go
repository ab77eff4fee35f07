package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a Metadata source that always reports the given addresses.
// ipv6 may be empty.
func FromString(ipv4, ipv6 string) (Metadata, error) {
	var s staticMetadata
	v4, err := netip.ParseAddr(ipv4)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	if !v4.Unmap().Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 address", ipv4)
	}
	s.ipv4 = v4.Unmap()
	if ipv6 != "" {
		v6, err := netip.ParseAddr(ipv6)
		if err != nil {
			return nil, fmt.Errorf("unable to parse IP: %w", err)
		}
		if !v6.Is6() || v6.Is4In6() {
			return nil, fmt.Errorf("%s is not an IPv6 address", ipv6)
		}
		s.ipv6 = v6
	}
	return s, nil
}

type staticMetadata struct {
	ipv4, ipv6 netip.Addr
}

func (s staticMetadata) FetchToken(context.Context) (string, error) { return "static", nil }

func (s staticMetadata) FetchIPv4(context.Context, string) (netip.Addr, error) { return s.ipv4, nil }

func (s staticMetadata) FetchIPv6(context.Context, string) netip.Addr { return s.ipv6 }
