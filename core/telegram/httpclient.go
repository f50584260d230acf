package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/lovematch/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	handshakeTimeout = 5 * time.Second
	idleConnTimeout  = 90 * time.Second
	keepAlive        = 30 * time.Second
	// responseSlack is added on top of the long-poll hold time.
	responseSlack = 10 * time.Second
	minClientWait = 30 * time.Second
)

var errRewind = errors.New("telegram: request body cannot be replayed")

// ClientOptions sizes the Telegram HTTP client.
type ClientOptions struct {
	// PollTimeout is how long Telegram may hold a getUpdates call open.
	PollTimeout time.Duration
	// DialRetries repeats requests whose connection never came up.
	DialRetries  int
	RetryBackoff time.Duration
}

// BuildHTTPClient returns a client whose deadlines outlast a long poll.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	wait := opts.PollTimeout + responseSlack
	if wait < minClientWait {
		wait = minClientWait
	}
	if opts.DialRetries < 0 {
		opts.DialRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   handshakeTimeout,
		ResponseHeaderTimeout: wait,
	}

	return &http.Client{
		Timeout: wait,
		Transport: &dialRetryTransport{
			base:    transport,
			retries: opts.DialRetries,
			backoff: opts.RetryBackoff,
		},
	}
}

// dialRetryTransport repeats a request only when it never left the host,
// so a sendMessage is not delivered twice.
type dialRetryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *dialRetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		curr := req
		if attempt > 0 {
			curr = req.Clone(req.Context())
			if req.Body != nil {
				if req.GetBody == nil {
					return nil, errRewind
				}
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, err := t.base.RoundTrip(curr)
		if err == nil || attempt >= t.retries || !netutil.NotSent(err) {
			return resp, err
		}

		timer := time.NewTimer(t.backoff * time.Duration(attempt+1))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}
