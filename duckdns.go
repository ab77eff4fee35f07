package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

// DefaultUpdateURL is the DuckDNS update endpoint.
const DefaultUpdateURL = "https://www.duckdns.org/update"

const (
	updateTimeout = 10 * time.Second

	// responses are at most a few bytes; anything longer is not one of ours.
	maxResponseBytes = 512
)

// ErrTransport is wrapped by every Update failure that may succeed on a later attempt.
var ErrTransport = errors.New("dns update transport error")

// UpdateResult classifies the provider's answer to one update request.
type UpdateResult int

const (
	Indeterminate UpdateResult = iota
	Success
	Rejected
)

func (r UpdateResult) String() string {
	switch r {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	default:
		return "indeterminate"
	}
}

// DuckDNS constructs an Updater for a DuckDNS-style endpoint:
// a single GET carrying domains, token, ip and ipv6 query parameters,
// answered with the plain text "OK" or "KO".
func DuckDNS(endpoint string) (Updater, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("update URL %q must be absolute", endpoint)
	}
	return &duckDNS{endpoint: u}, nil
}

type duckDNS struct {
	httpClient *http.Client
	endpoint   *url.URL
}

func (d *duckDNS) SetHTTPClient(c *http.Client) { d.httpClient = c }

// Update implements ddns.Updater with exactly one request.
//
// "OK" maps to Success and "KO" to Rejected.
// Every other outcome is Indeterminate with an error wrapping ErrTransport.
func (d *duckDNS) Update(ctx context.Context, domain, token string, ipv4, ipv6 netip.Addr) (UpdateResult, error) {
	if !ipv4.IsValid() && !ipv6.IsValid() {
		return Indeterminate, errors.New("ddns.DuckDNS.Update: at least one address is required")
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.requestURL(domain, token, ipv4, ipv6), nil)
	if err != nil {
		return Indeterminate, fmt.Errorf("%w: error creating request: %w", ErrTransport, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := d.httpClient
	if httpclient == nil {
		httpclient = defaultHTTPClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		// the URL carries the token; keep it out of logs
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return Indeterminate, fmt.Errorf("%w: http request failed: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Indeterminate, fmt.Errorf("%w: http request returned %s", ErrTransport, resp.Status)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Indeterminate, fmt.Errorf("%w: error reading response body: %w", ErrTransport, err)
	}

	switch body := strings.TrimRight(string(b), "\r\n"); body {
	case "OK":
		return Success, nil
	case "KO":
		return Rejected, nil
	default:
		return Indeterminate, fmt.Errorf("%w: unexpected response body %q", ErrTransport, body)
	}
}

func (d *duckDNS) requestURL(domain, token string, ipv4, ipv6 netip.Addr) string {
	q := url.Values{}
	q.Set("domains", domain)
	q.Set("token", token)
	if ipv4.IsValid() {
		q.Set("ip", ipv4.String())
	}
	if ipv6.IsValid() {
		q.Set("ipv6", ipv6.String())
	}
	u := *d.endpoint
	u.RawQuery = q.Encode()
	return u.String()
}
