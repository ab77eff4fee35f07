package ddns

import (
	"context"
	"net/netip"
)

// Metadata discovers the addresses assigned to the running instance.
type Metadata interface {
	FetchToken(ctx context.Context) (string, error)
	FetchIPv4(ctx context.Context, token string) (netip.Addr, error)
	// FetchIPv6 returns the zero Addr when the instance has no IPv6 address or the lookup failed.
	FetchIPv6(ctx context.Context, token string) netip.Addr
}

// Updater pushes addresses to the DNS provider.
// Zero addresses are left out of the request; at least one must be valid.
type Updater interface {
	Update(ctx context.Context, domain, token string, ipv4, ipv6 netip.Addr) (UpdateResult, error)
}
