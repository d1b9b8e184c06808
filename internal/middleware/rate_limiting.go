package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/2beens/cfdnsadmin/internal/telemetry/metrics"
	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"
)

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit limits requests per client IP, within the named group of routes.
// Proxy headers only count when the direct peer is in trustedProxies.
func RateLimit(
	rateLimiter RequestRateLimiter,
	routerName string,
	allowedPerMin int,
	trustedProxies pkg.TrustedProxies,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			clientIP, err := pkg.ReadUserIP(r, trustedProxies)
			if err != nil {
				log.Debugf("rate limit [%s]: cannot read client ip: %s", routerName, err)
				clientIP = "unknown"
			}

			res, err := rateLimiter.Allow(
				r.Context(),
				fmt.Sprintf("%s||%s", routerName, clientIP),
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", routerName, err)
				pkg.WriteError(w, http.StatusInternalServerError, "Rate limit internal error", "")
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.Inc()
			}
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			pkg.WriteError(
				w,
				http.StatusTooManyRequests,
				"Too many requests",
				fmt.Sprintf("retry after %d seconds", retryAfter),
			)
		})
	}
}
