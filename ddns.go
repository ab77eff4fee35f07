package ddns

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval         = 5 * time.Minute
	DefaultUpdateAttempts   = 3
	DefaultUpdateRetryDelay = 10 * time.Second
	DefaultHeartbeatEvery   = 12

	// maxBackoffMultiplier caps the metadata failure streak, and with it the backoff at 5 intervals.
	maxBackoffMultiplier = 5
)

var (
	ErrRejected        = errors.New("dns update rejected by provider")
	ErrUpdateExhausted = errors.New("dns update attempts exhausted")
)

var discard = func() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}()

// State is the reconciler's memory between cycles. It is never persisted.
type State struct {
	LastIPv4            netip.Addr
	LastIPv6            netip.Addr
	ConsecutiveFailures int
	HeartbeatCounter    int
}

// Reconciler owns the update loop for a single domain.
// It is not safe for concurrent use; one goroutine drives it.
type Reconciler struct {
	metadata   Metadata
	updater    Updater
	httpClient *http.Client
	logger     *logrus.Entry
	registerer prometheus.Registerer
	metrics    *metrics
	sleep      func(context.Context, time.Duration) error

	domain           string
	token            string
	interval         time.Duration
	ipv6             bool
	updateAttempts   int
	updateRetryDelay time.Duration
	heartbeatEvery   int

	state State
}

// New creates a Reconciler for domain, authenticating to the provider with token.
//
// Without options it reads addresses from DefaultMetadataURL, updates DefaultUpdateURL,
// checks every DefaultInterval, includes IPv6, and discards its logs.
func New(domain, token string, options ...Option) (*Reconciler, error) {
	if domain == "" {
		return nil, errors.New("ddns.New: domain cannot be empty")
	}
	if token == "" {
		return nil, errors.New("ddns.New: token cannot be empty")
	}
	r := &Reconciler{
		domain:           domain,
		token:            token,
		interval:         DefaultInterval,
		ipv6:             true,
		updateAttempts:   DefaultUpdateAttempts,
		updateRetryDelay: DefaultUpdateRetryDelay,
		heartbeatEvery:   DefaultHeartbeatEvery,
		sleep:            sleepContext,
		logger:           discard,
	}
	for i, opt := range options {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}

	if r.metadata == nil {
		r.metadata = &metadataService{baseURL: mustParse(DefaultMetadataURL)}
	}
	if r.updater == nil {
		r.updater = &duckDNS{endpoint: mustParse(DefaultUpdateURL)}
	}

	// applied last so that UsingHTTPClient reaches sources registered after it
	if r.httpClient != nil {
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		if m, ok := r.metadata.(setHTTPClient); ok {
			m.SetHTTPClient(r.httpClient)
		}
		if u, ok := r.updater.(setHTTPClient); ok {
			u.SetHTTPClient(r.httpClient)
		}
	}
	r.metrics = newMetrics(r.registerer)
	return r, nil
}

// State returns a copy of the reconciler's current state.
func (r *Reconciler) State() State {
	return r.state
}

// RunDaemon checks the instance addresses and updates DNS on every interval until ctx is done.
// Failures are logged and retried; the only return is ctx.Err().
func (r *Reconciler) RunDaemon(ctx context.Context) error {
	mode := "IPv4 only"
	if r.ipv6 {
		mode = "IPv4 + IPv6"
	}
	r.logger.Infof("starting dynamic DNS updater for %s (%s, check interval %s)", r.domain, mode, r.interval)

	for {
		delay, _ := r.cycle(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// RunDDNS performs a single cycle without the trailing sleep and returns its failure, if any.
func (r *Reconciler) RunDDNS(ctx context.Context) error {
	_, err := r.cycle(ctx)
	return err
}

// cycle runs one reconciliation pass and returns how long to wait before the next one.
func (r *Reconciler) cycle(ctx context.Context) (next time.Duration, err error) {
	token, err := r.metadata.FetchToken(ctx)
	if err != nil {
		return r.metadataFailed(ctx, "token", err)
	}
	ipv4, err := r.metadata.FetchIPv4(ctx, token)
	if err != nil {
		return r.metadataFailed(ctx, "ipv4", err)
	}
	var ipv6 netip.Addr
	if r.ipv6 {
		ipv6 = r.metadata.FetchIPv6(ctx, token)
	}

	r.state.ConsecutiveFailures = 0
	r.metrics.consecutiveFailures.Set(0)

	if ipv4 == r.state.LastIPv4 && ipv6 == r.state.LastIPv6 {
		r.heartbeat(ipv4, ipv6)
		r.metrics.cycle("unchanged")
		return r.interval, nil
	}

	r.state.HeartbeatCounter = 0
	r.logChange(ipv4, ipv6)
	if err := r.update(ctx, ipv4, ipv6); err != nil {
		r.metrics.cycle("update_failed")
		return r.interval, err
	}
	r.metrics.cycle("updated")
	return r.interval, nil
}

var stageNames = map[string]string{
	"token": "metadata token",
	"ipv4":  "public IPv4",
}

func (r *Reconciler) metadataFailed(ctx context.Context, stage string, err error) (time.Duration, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	r.state.ConsecutiveFailures = min(r.state.ConsecutiveFailures+1, maxBackoffMultiplier)
	delay := metadataBackoff(r.interval, r.state.ConsecutiveFailures)

	r.metrics.metadataFailure(stage, r.state.ConsecutiveFailures)
	r.metrics.cycle("metadata_failed")
	r.logger.WithError(err).Warnf("failed to fetch %s (retry %d), retrying in %s",
		stageNames[stage], r.state.ConsecutiveFailures, delay)
	return delay, err
}

// metadataBackoff grows linearly with the failure streak: 1x, 2x ... 5x the interval, then stays at 5x.
func metadataBackoff(interval time.Duration, failures int) time.Duration {
	failures = max(1, min(failures, maxBackoffMultiplier))
	return interval * time.Duration(failures)
}

// update pushes the observed addresses to the provider, retrying transport errors
// after a fixed delay. State is committed only on Success.
func (r *Reconciler) update(ctx context.Context, ipv4, ipv6 netip.Addr) error {
	var lastErr error
	for attempt := 1; attempt <= r.updateAttempts; attempt++ {
		result, err := r.updater.Update(ctx, r.domain, r.token, ipv4, ipv6)
		r.metrics.updateAttempt(result)

		switch result {
		case Success:
			r.state.LastIPv4, r.state.LastIPv6 = ipv4, ipv6
			r.logger.Infof("DNS updated successfully for %s: %s", r.domain, describe(ipv4, ipv6))
			return nil
		case Rejected:
			r.logger.Errorf("DNS update rejected by provider for %s, check the domain and token", r.domain)
			return ErrRejected
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if lastErr == nil {
			lastErr = ErrTransport
		}
		if attempt == r.updateAttempts {
			break
		}
		r.logger.WithError(lastErr).Warnf("DNS update attempt %d/%d failed, retrying in %s",
			attempt, r.updateAttempts, r.updateRetryDelay)
		if err := r.sleep(ctx, r.updateRetryDelay); err != nil {
			return err
		}
	}

	r.logger.WithError(lastErr).Errorf("DNS update failed after %d attempts", r.updateAttempts)
	return fmt.Errorf("%w after %d attempts: %w", ErrUpdateExhausted, r.updateAttempts, lastErr)
}

func (r *Reconciler) logChange(ipv4, ipv6 netip.Addr) {
	if ipv4 != r.state.LastIPv4 {
		r.logger.Infof("IPv4 changed: %s -> %s", orNone(r.state.LastIPv4), orNone(ipv4))
	}
	if ipv6 != r.state.LastIPv6 {
		if !ipv6.IsValid() {
			r.logger.Infof("IPv6 removed (was: %s)", r.state.LastIPv6)
		} else {
			r.logger.Infof("IPv6 changed: %s -> %s", orNone(r.state.LastIPv6), ipv6)
		}
	}
}

func (r *Reconciler) heartbeat(ipv4, ipv6 netip.Addr) {
	r.state.HeartbeatCounter++
	if r.state.HeartbeatCounter%r.heartbeatEvery == 0 {
		r.logger.Infof("still running, addresses unchanged: %s", describe(ipv4, ipv6))
	}
}

func describe(ipv4, ipv6 netip.Addr) string {
	s := "IPv4 " + orNone(ipv4)
	if ipv6.IsValid() {
		s += ", IPv6 " + ipv6.String()
	}
	return s
}

func orNone(a netip.Addr) string {
	if !a.IsValid() {
		return "none"
	}
	return a.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
