package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterIdleTimeout     = 1 * time.Hour
)

type (
	// RateLimiter decides whether a request identified by a client key should
	// be allowed. The in-memory implementation keys by client IP; a
	// distributed store could implement the same interface for multi-node
	// deployments.
	RateLimiter interface {
		// Allow checks if a request from the given client should be allowed.
		// Returns true if allowed, false if rate limited.
		Allow(clientKey string) bool
	}

	// ClientRateLimiter implements RateLimiter with one token bucket per
	// client, built on golang.org/x/time/rate.
	//
	// The bucket refills at the requests-per-window quota converted to a
	// sustained per-second rate, with burst capacity equal to the full window
	// quota, so a fresh client can spend its whole allowance at once.
	//
	// Memory cleanup runs periodically to prevent unbounded growth: clients
	// idle longer than an hour are removed.
	ClientRateLimiter struct {
		limit rate.Limit
		burst int

		mu            sync.Mutex
		clients       map[string]*clientLimiter
		cleanupTicker *time.Ticker
		done          chan struct{}
	}

	// clientLimiter tracks rate limit state for a single client key.
	clientLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
	}
)

// NewClientRateLimiter creates a per-client rate limiter allowing requests
// requests per window.
//
// Example:
//
//	rl := NewClientRateLimiter(100, time.Minute)
//	defer rl.Close()
func NewClientRateLimiter(requests int, window time.Duration) *ClientRateLimiter {
	if requests <= 0 {
		requests = 1
	}

	if window <= 0 {
		window = time.Minute
	}

	rl := &ClientRateLimiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   requests,
		clients: make(map[string]*clientLimiter),
		done:    make(chan struct{}),
	}

	rl.startCleanup()

	return rl
}

// Allow checks if a request from the given client key should be allowed.
// Implements the RateLimiter interface. Buckets are created lazily on first
// sight of a client.
func (rl *ClientRateLimiter) Allow(clientKey string) bool {
	rl.mu.Lock()

	cl, ok := rl.clients[clientKey]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rl.limit, rl.burst),
		}

		rl.clients[clientKey] = cl
	}

	cl.lastAccess = time.Now()

	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// Close stops the cleanup goroutine and releases resources.
// Must be called when the ClientRateLimiter is no longer needed.
//
// Close is not part of the RateLimiter interface; callers that need cleanup
// use a type assertion:
//
//	if closer, ok := limiter.(io.Closer); ok {
//	    closer.Close()
//	}
func (rl *ClientRateLimiter) Close() error {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)

	return nil
}

// startCleanup starts a background goroutine that periodically removes
// stale client buckets to prevent memory leaks.
func (rl *ClientRateLimiter) startCleanup() {
	rl.cleanupTicker = time.NewTicker(rateLimiterCleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// cleanup removes client buckets that haven't been accessed recently.
func (rl *ClientRateLimiter) cleanup() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > rateLimiterIdleTimeout {
			delete(rl.clients, key)
		}
	}
}

// RateLimit returns a middleware that enforces per-client rate limits on the
// given paths. With no paths, every request is limited.
//
// The client key is the remote IP. When a request exceeds the limit, the
// middleware returns a 429 (Too Many Requests) error envelope.
func RateLimit(limiter RateLimiter, logger *slog.Logger, paths ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(paths))
	for _, path := range paths {
		limited[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && !limited[r.URL.Path] {
				next.ServeHTTP(w, r)

				return
			}

			if !limiter.Allow(clientKey(r)) {
				requestID := GetRequestID(r.Context())

				logger.Warn("Rate limit exceeded",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("request_id", requestID),
				)

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeEnvelopeError(w, http.StatusTooManyRequests, "RateLimited", detail, requestID); err != nil {
					logger.Error("Failed to write rate limit response",
						slog.String("request_id", requestID),
						slog.String("error", err.Error()),
					)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey extracts the client IP from the request, falling back to the
// whole RemoteAddr when it carries no port.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
