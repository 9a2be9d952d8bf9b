package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/pkg/logger"
)

// limiterCap bounds the per-client limiter map before it is reset wholesale.
const limiterCap = 10000

// RateLimiter throttles requests per client. Authenticated requests are keyed
// by user ID, anonymous ones by remote IP, so login attempts from one address
// share a budget.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      int
	burst    int
	log      *logger.Logger
}

// NewRateLimiter creates a limiter allowing rps sustained requests per second
// with the given burst per client.
func NewRateLimiter(rps, burst int, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
		log:      log,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.limiters) > limiterCap {
		rl.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := rl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
		rl.limiters[key] = lim
	}
	return lim
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.limiter(key).Allow() {
			rl.log.WithFields(map[string]any{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("rate limit exceeded")

			se := errors.RateLimited(rl.rps, "1s")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(se.HTTPStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": se.Message,
				"code":  string(se.Code),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok {
		return id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
