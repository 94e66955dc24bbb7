package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/vitalsbot/core/config"
	"github.com/m3rciful/vitalsbot/core/telegram/netutil"
)

const (
	defaultRequestTimeout = 15 * time.Second
	transportRetries      = 2
	transportBackoff      = time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. In long-poll
// mode the timeout also covers the getUpdates wait.
func BuildHTTPClient(cfg *coreconfig.Config) *http.Client {
	timeout := cfg.Telegram.RequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if cfg.Telegram.RunMode != coreconfig.RunModeWebhook {
		timeout += longPollTimeout(cfg)
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &retryTransport{next: base, retries: transportRetries, backoff: transportBackoff},
	}
}

var errNoRewind = errors.New("telegram: request body cannot be replayed")

// retryTransport repeats a request whose connection failed before the API
// answered. API answers pass through untouched; the dispatcher owns that
// retry policy.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetry(err); attempt++ {
		retry, rerr := rewind(req)
		if rerr != nil {
			return nil, err
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(t.backoff * time.Duration(attempt)):
		}
		resp, err = t.next.RoundTrip(retry)
	}
	return resp, err
}

// rewind clones req with a fresh body. Requests whose body cannot be
// replayed are not retried.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errNoRewind
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}
