package ddns

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Option configures a Reconciler; see New.
type Option func(*Reconciler) error

// UsingMetadata replaces the metadata service client, e.g. with FromString.
func UsingMetadata(m Metadata) Option {
	return func(r *Reconciler) error {
		if m == nil {
			return fmt.Errorf("ddns.UsingMetadata: metadata source cannot be nil")
		}
		r.metadata = m
		return nil
	}
}

func UsingMetadataURL(baseURL string) Option {
	return func(r *Reconciler) (err error) {
		if r.metadata, err = MetadataService(baseURL); err != nil {
			return fmt.Errorf("ddns.UsingMetadataURL: %w", err)
		}
		return nil
	}
}

func UsingUpdater(u Updater) Option {
	return func(r *Reconciler) error {
		if u == nil {
			return fmt.Errorf("ddns.UsingUpdater: updater cannot be nil")
		}
		r.updater = u
		return nil
	}
}

func UsingUpdateURL(endpoint string) Option {
	return func(r *Reconciler) (err error) {
		if r.updater, err = DuckDNS(endpoint); err != nil {
			return fmt.Errorf("ddns.UsingUpdateURL: %w", err)
		}
		return nil
	}
}

// UsingHTTPClient sets the client used by the built-in metadata and update clients.
// Custom sources receive it if they implement SetHTTPClient(*http.Client).
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(r *Reconciler) error {
		if httpclient == nil {
			httpclient = defaultHTTPClient
		}
		r.httpClient = httpclient
		return nil
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(r *Reconciler) error {
		if logger == nil {
			logger = discard
		}
		r.logger = logger
		return nil
	}
}

// WithInterval sets the time between checks. It must be at least one second.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) error {
		if d < time.Second {
			return fmt.Errorf("ddns.WithInterval: interval %s is shorter than 1s", d)
		}
		r.interval = d
		return nil
	}
}

// WithIPv6 controls whether the IPv6 address is looked up and sent. It is enabled by default.
func WithIPv6(enabled bool) Option {
	return func(r *Reconciler) error {
		r.ipv6 = enabled
		return nil
	}
}

// WithUpdateRetry sets how many times an update is attempted per change
// and the fixed delay between attempts that failed in transport.
func WithUpdateRetry(attempts int, delay time.Duration) Option {
	return func(r *Reconciler) error {
		if attempts < 1 {
			return fmt.Errorf("ddns.WithUpdateRetry: attempts must be at least 1; got %d", attempts)
		}
		if delay < 0 {
			return fmt.Errorf("ddns.WithUpdateRetry: delay cannot be negative; got %s", delay)
		}
		r.updateAttempts, r.updateRetryDelay = attempts, delay
		return nil
	}
}

// WithHeartbeatEvery logs a heartbeat after every n consecutive unchanged cycles.
func WithHeartbeatEvery(n int) Option {
	return func(r *Reconciler) error {
		if n < 1 {
			return fmt.Errorf("ddns.WithHeartbeatEvery: n must be at least 1; got %d", n)
		}
		r.heartbeatEvery = n
		return nil
	}
}

// WithMetrics registers the reconciler's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(r *Reconciler) error {
		r.registerer = reg
		return nil
	}
}

func withSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Reconciler) error {
		r.sleep = sleep
		return nil
	}
}

func mustParse(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return u
}
