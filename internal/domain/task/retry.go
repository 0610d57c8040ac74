package task

import "time"

// maxDoublingExponent bounds the exponential backoff growth.
const maxDoublingExponent = 7

// RetryBackoffConfig carries the two knobs the retry policy needs from a
// backend's BackendConfig, kept separate from the backend package to keep
// this function pure and independently testable.
type RetryBackoffConfig struct {
	RetryMinInterval time.Duration
	RetryMaxInterval time.Duration
}

// NextRetryAt computes the next retry timestamp from the current retry
// count (0-origin: number of failures so far):
//
//	delay = min(max, min + (max-min) * 2^min(retryCount, 7))
//
// The clamp to RetryMaxInterval is mandatory and must never be skipped —
// the doubling term can exceed max for small min before it is applied.
func NextRetryAt(now time.Time, retryCount int, cfg RetryBackoffConfig) time.Time {
	return now.Add(NextRetryDelay(retryCount, cfg))
}

// NextRetryDelay is the pure delay computation underlying NextRetryAt,
// exposed separately so callers (and tests) can assert the formula without
// depending on wall-clock time.
func NextRetryDelay(retryCount int, cfg RetryBackoffConfig) time.Duration {
	exponent := retryCount
	if exponent > maxDoublingExponent {
		exponent = maxDoublingExponent
	}
	if exponent < 0 {
		exponent = 0
	}

	spread := cfg.RetryMaxInterval - cfg.RetryMinInterval
	doubling := spread * time.Duration(1<<uint(exponent))
	delay := cfg.RetryMinInterval + doubling

	if delay > cfg.RetryMaxInterval {
		delay = cfg.RetryMaxInterval
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
