// Package sender runs outbound Telegram calls on a bounded worker pool so
// a slow API never holds up the update that caused the message.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher. Zero values
// select the defaults applied by NewDispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	id       string
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func newJob(ctx context.Context, action, endpoint string, run func() error) job {
	return job{id: uuid.NewString(), ctx: ctx, action: action, endpoint: endpoint, run: run}
}

// attrs describes j for every log line about it.
func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	out := []slog.Attr{slog.String("job_id", j.id), slog.String("action", j.action)}
	if j.endpoint != "" {
		out = append(out, slog.String("endpoint", j.endpoint))
	}
	if chatID := logger.ChatIDFrom(j.ctx); chatID != 0 {
		out = append(out, slog.Int64("chat_id", chatID))
	}
	return append(out, extra...)
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts opts.Workers workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may be called more than once,
// so it must be safe to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- newJob(ctx, action, endpoint, run):
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit enqueues run like Enqueue but never rejects it: when the queue is
// full or closed the job runs on its own goroutine without retries.
// It reports whether the job was queued.
func (d *Dispatcher) Submit(ctx context.Context, action, endpoint string, run func() error) bool {
	err := d.Enqueue(ctx, action, endpoint, run)
	if err == nil {
		return true
	}
	if run == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	j := newJob(ctx, action, endpoint, run)
	logger.LogEvent(ctx, logger.Sender, slog.LevelWarn, "queue.fallback",
		j.attrs(slog.String("err", err.Error()))...)
	go func() {
		start := time.Now()
		if err := run(); err != nil {
			d.failed.Add(1)
			logFailure(j, err, 1, time.Since(start))
		}
	}()
	return false
}

// ErrorCount returns the number of jobs that finally failed.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) process(j job) {
	start := time.Now()
	logger.LogEvent(j.ctx, logger.Sender, slog.LevelDebug, "send.start", j.attrs()...)

	attempts, err := d.deliver(j)
	elapsed := slog.Int("elapsed_ms", durationToMS(time.Since(start)))
	switch {
	case err != nil:
		d.failed.Add(1)
		logFailure(j, err, attempts, time.Since(start))
	case attempts > 1:
		logger.LogEvent(j.ctx, logger.Sender, slog.LevelInfo, "send.retry.success",
			j.attrs(slog.Int("attempt", attempts), elapsed)...)
	default:
		logger.LogEvent(j.ctx, logger.Sender, slog.LevelDebug, "send.success", j.attrs(elapsed)...)
	}
}

// deliver runs j until it succeeds, fails permanently, runs out of
// attempts or exceeds MaxDuration. Telegram flood-waits replace the
// linear backoff.
func (d *Dispatcher) deliver(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		err := j.run()
		if err == nil {
			return attempt, nil
		}
		if attempt == limit || !netutil.ShouldRetry(err) {
			return attempt, err
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		logger.LogEvent(j.ctx, logger.Sender, slog.LevelDebug, "send.retry.backoff",
			j.attrs(slog.Int("attempt", attempt), slog.Duration("delay", delay))...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

func logFailure(j job, err error, attempts int, elapsed time.Duration) {
	kind := classifyError(err)
	attrs := j.attrs(
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", kind),
		slog.Int("attempts", attempts),
		slog.Int("elapsed_ms", durationToMS(elapsed)),
	)
	// A blocked bot is routine for unsolicited alerts.
	if kind == "unreachable" {
		logger.LogEvent(j.ctx, logger.Sender, slog.LevelWarn, "send.unreachable", attrs...)
		return
	}
	logger.LogEvent(j.ctx, logger.Sender, slog.LevelError, "send.fail", attrs...)
}

func durationToMS(d time.Duration) int {
	return int(logger.RoundMS(d) / time.Millisecond)
}

// classifyError buckets err for the error_kind log attribute. Recipients
// that blocked the bot or never opened a chat are "unreachable".
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "dial"
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	switch status := netutil.Status(err); {
	case status == http.StatusForbidden:
		return "unreachable"
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// sanitizeErrorMessage keeps bot tokens embedded in request URLs out of logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
