package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Class is the retry verdict for a failure.
type Class int

const (
	// ClassRateLimited means the upstream is throttling us. Always worth
	// retrying after a backoff.
	ClassRateLimited Class = iota

	// ClassTransient means a network-level or server-side failure that may
	// clear on its own. Retryable up to the attempt cap.
	ClassTransient

	// ClassFatal means the request itself is broken (bad input, auth).
	// Never retried.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// Classify inspects a failure and decides whether it is worth retrying.
// Classification is deliberately conservative: text that could plausibly
// mean throttling is treated as rate limiting, because an extra retry is
// much cheaper than abandoning a recoverable item.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassFatal
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if c, ok := classifyStatus(sc.HTTPStatus()); ok {
			return c
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	if strings.Contains(s, "429") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "ratelimit") ||
		strings.Contains(sLower, "quota") ||
		strings.Contains(sLower, "too many requests") ||
		strings.Contains(sLower, "throttl") ||
		strings.Contains(sLower, "overloaded") {
		return ClassRateLimited
	}

	if strings.Contains(s, "500") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "504") ||
		strings.Contains(sLower, "timeout") ||
		strings.Contains(sLower, "timed out") ||
		strings.Contains(sLower, "connection refused") ||
		strings.Contains(sLower, "connection reset") ||
		strings.Contains(sLower, "broken pipe") ||
		strings.Contains(sLower, "unexpected eof") ||
		strings.Contains(sLower, "internal server error") ||
		strings.Contains(sLower, "temporarily unavailable") {
		return ClassTransient
	}

	return ClassFatal
}

func classifyStatus(status int) (Class, bool) {
	switch {
	case status == 429:
		return ClassRateLimited, true
	case status == 529: // anthropic "overloaded", throttle-shaped
		return ClassRateLimited, true
	case status >= 500:
		return ClassTransient, true
	case status == 408:
		return ClassTransient, true
	case status >= 400:
		return ClassFatal, true
	}
	return 0, false
}
