package ddns

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultMetadataURL is the link-local address of the instance metadata service.
const DefaultMetadataURL = "http://169.254.169.254"

const (
	tokenPath = "/latest/api/token"
	ipv4Path  = "/latest/meta-data/public-ipv4"
	ipv6Path  = "/latest/meta-data/ipv6"

	tokenTTLHeader = "X-metadata-token-ttl-seconds"
	tokenHeader    = "X-metadata-token"

	// tokenTTL is the lifetime requested for each session token (6 hours).
	tokenTTL = "21600"

	metadataTimeout = 5 * time.Second
)

var (
	ErrTokenFetch = errors.New("metadata token fetch failed")
	ErrIPv4Fetch  = errors.New("public IPv4 fetch failed")
)

// MetadataService constructs a Metadata implementation for the session-token protected
// instance metadata service rooted at baseURL.
//
// Each call performs exactly one request; retrying is left to the caller.
func MetadataService(baseURL string) (Metadata, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("metadata URL %q must be absolute", baseURL)
	}
	return &metadataService{baseURL: u}, nil
}

type metadataService struct {
	httpClient *http.Client
	baseURL    *url.URL
}

func (ms *metadataService) SetHTTPClient(c *http.Client) { ms.httpClient = c }

// FetchToken implements ddns.Metadata.
func (ms *metadataService) FetchToken(ctx context.Context) (string, error) {
	token, err := ms.get(ctx, http.MethodPut, tokenPath, http.Header{tokenTTLHeader: {tokenTTL}})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenFetch, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty response body", ErrTokenFetch)
	}
	return token, nil
}

// FetchIPv4 implements ddns.Metadata.
func (ms *metadataService) FetchIPv4(ctx context.Context, token string) (netip.Addr, error) {
	body, err := ms.get(ctx, http.MethodGet, ipv4Path, http.Header{tokenHeader: {token}})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %w", ErrIPv4Fetch, err)
	}
	if body == "" {
		return netip.Addr{}, fmt.Errorf("%w: empty response body", ErrIPv4Fetch)
	}
	ip, err := netip.ParseAddr(body)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: error parsing IP address from response body: %w", ErrIPv4Fetch, err)
	}
	if !ip.Unmap().Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s is not an IPv4 address", ErrIPv4Fetch, ip)
	}
	return ip.Unmap(), nil
}

// FetchIPv6 implements ddns.Metadata.
//
// An instance without IPv6 and a failed lookup look the same here; both return the zero Addr.
func (ms *metadataService) FetchIPv6(ctx context.Context, token string) netip.Addr {
	body, err := ms.get(ctx, http.MethodGet, ipv6Path, http.Header{tokenHeader: {token}})
	if err != nil || body == "" {
		return netip.Addr{}
	}
	ip, err := netip.ParseAddr(body)
	if err != nil || !ip.Is6() || ip.Is4In6() {
		return netip.Addr{}
	}
	return ip
}

// get returns the trimmed first line of the response body.
func (ms *metadataService) get(ctx context.Context, method, path string, header http.Header) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, ms.baseURL.JoinPath(path).String(), nil)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	for k, v := range header {
		req.Header.Set(k, strings.Join(v, ","))
	}

	httpclient := ms.httpClient
	if httpclient == nil {
		httpclient = defaultHTTPClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("http request returned %s", resp.Status)
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var defaultHTTPClient = cleanhttp.DefaultPooledClient()
