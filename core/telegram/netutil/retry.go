// Package netutil classifies failed Telegram API calls for the retry loops.
package netutil

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxFloodWait caps how long a single flood-wait may stall a worker.
const maxFloodWait = 30 * time.Second

// ShouldRetry reports whether a failed call is worth repeating.
// Dial failures, timeouts, flood-waits and Telegram 5xx answers are
// transient. Anything else, such as a user who blocked the bot, is final.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := RetryAfter(err); ok {
		return true
	}
	if transientNet(err) {
		return true
	}
	return Status(err) >= http.StatusInternalServerError
}

func transientNet(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Timeout() || opErr.Op == "dial") {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTimeout || dnsErr.IsTemporary) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return transientNet(urlErr.Err)
	}
	return false
}

// RetryAfter returns the pause Telegram requested with a 429 answer,
// capped at maxFloodWait.
func RetryAfter(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) || flood.RetryAfter <= 0 {
		return 0, false
	}
	wait := time.Duration(flood.RetryAfter) * time.Second
	if wait > maxFloodWait {
		wait = maxFloodWait
	}
	return wait, true
}

// Status extracts the HTTP status Telegram answered with, or 0 when the
// call never got a response.
func Status(err error) int {
	if err == nil {
		return 0
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return http.StatusTooManyRequests
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	var group tele.GroupError
	if errors.As(err, &group) {
		return http.StatusBadRequest
	}

	// Unlisted API errors render as "telegram: <description> (<code>)".
	msg := err.Error()
	open, closing := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || closing <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing]))
	if convErr != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}

// NotSent reports whether err happened before the request reached
// Telegram, so repeating it cannot deliver a message twice.
func NotSent(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
