package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const hostLimiterBurst = 2

// hostLimiter spaces requests per upstream host.
type hostLimiter struct {
	rps      rate.Limit
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

func newHostLimiter(rps float64) *hostLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &hostLimiter{
		rps:      limit,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to rawURL's host is allowed.
func (h *hostLimiter) Wait(ctx context.Context, rawURL string) error {
	if err := h.get(hostOf(rawURL)).Wait(ctx); err != nil {
		return fmt.Errorf("host rate limiter wait: %w", err)
	}

	return nil
}

func (h *hostLimiter) get(host string) *rate.Limiter {
	h.mu.RLock()
	limiter, exists := h.limiters[host]
	h.mu.RUnlock()

	if exists {
		return limiter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if limiter, exists := h.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(h.rps, hostLimiterBurst)
	h.limiters[host] = limiter

	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
