package utils

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"mediafetch/internal"
)

// TokenBucketLimiter implements rate limiting using token bucket algorithm
type TokenBucketLimiter struct {
	rate       int64
	bucket     int64
	maxBucket  int64
	lastUpdate time.Time
	mutex      sync.Mutex
}

// NewTokenBucketLimiter creates a new rate limiter. A rate <= 0 disables limiting.
func NewTokenBucketLimiter(bytesPerSecond int64) internal.RateLimiter {
	return &TokenBucketLimiter{
		rate:       bytesPerSecond,
		bucket:     bytesPerSecond,
		maxBucket:  bytesPerSecond,
		lastUpdate: time.Now(),
	}
}

// Wait blocks until the specified number of bytes can be consumed
func (r *TokenBucketLimiter) Wait(ctx context.Context, n int) error {
	r.mutex.Lock()
	if r.rate <= 0 {
		r.mutex.Unlock()
		return nil
	}

	now := time.Now()
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now

	r.bucket += int64(elapsed.Seconds() * float64(r.rate))
	if r.bucket > r.maxBucket {
		r.bucket = r.maxBucket
	}

	needed := int64(n)
	if r.bucket >= needed {
		r.bucket -= needed
		r.mutex.Unlock()
		return nil
	}

	deficit := needed - r.bucket
	waitTime := time.Duration(float64(deficit) / float64(r.rate) * float64(time.Second))
	r.bucket = 0
	r.mutex.Unlock()

	timer := time.NewTimer(waitTime)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetRate updates the rate limit
func (r *TokenBucketLimiter) SetRate(bytesPerSecond int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.rate = bytesPerSecond
	r.maxBucket = bytesPerSecond
	if r.bucket > r.maxBucket {
		r.bucket = r.maxBucket
	}
}

// RateLimitedReader throttles reads from an underlying reader
type RateLimitedReader struct {
	ctx     context.Context
	reader  io.Reader
	limiter internal.RateLimiter
}

// NewRateLimitedReader wraps reader; a nil limiter passes reads through
func NewRateLimitedReader(ctx context.Context, reader io.Reader, limiter internal.RateLimiter) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, reader: reader, limiter: limiter}
}

// Read implements io.Reader
func (r *RateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.limiter != nil {
		if werr := r.limiter.Wait(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

var rateSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"KB", 1 << 10},
	{"MB", 1 << 20},
	{"GB", 1 << 30},
	{"K", 1 << 10},
	{"M", 1 << 20},
	{"G", 1 << 30},
	{"B", 1},
}

// ParseRateLimit parses human-readable rate limit strings (e.g., "500K", "5M", "1.5MB").
// The empty string means unlimited and returns 0.
func ParseRateLimit(rateStr string) (int64, error) {
	rateStr = strings.TrimSpace(rateStr)
	if rateStr == "" {
		return 0, nil
	}

	// Handle pure numbers (bytes per second)
	if val, err := strconv.ParseInt(rateStr, 10, 64); err == nil {
		if val < 0 {
			return 0, fmt.Errorf("rate cannot be negative: %d", val)
		}
		return val, nil
	}

	upper := strings.ToUpper(rateStr)
	for _, s := range rateSuffixes {
		if !strings.HasSuffix(upper, s.suffix) {
			continue
		}

		numStr := strings.TrimSpace(rateStr[:len(rateStr)-len(s.suffix)])
		value, err := strconv.ParseFloat(numStr, 64)
		if err != nil || numStr == "" {
			return 0, fmt.Errorf("invalid numeric value in rate: %q", numStr)
		}
		if value < 0 {
			return 0, fmt.Errorf("rate cannot be negative: %v", value)
		}
		return int64(value * float64(s.multiplier)), nil
	}

	return 0, fmt.Errorf("unsupported rate format: %s (supported suffixes: B, K/KB, M/MB, G/GB)", rateStr)
}

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
