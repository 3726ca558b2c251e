package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/transport"
)

// maxTrackedClients bounds the per-client map; idle clients are swept once
// it is exceeded.
const maxTrackedClients = 1024

// RateLimit allows each client IP at most limit requests per sliding window,
// using the same ledger the outbound clients throttle with.
func RateLimit(limit int, window time.Duration, clk clock.Clock) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		clients = make(map[string]*transport.Ledger)
	)
	allow := func(ip string) (bool, time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now := clk.Now()
		if len(clients) > maxTrackedClients {
			for k, l := range clients {
				l.Prune(now)
				if l.Len() == 0 {
					delete(clients, k)
				}
			}
		}
		l, ok := clients[ip]
		if !ok {
			l = transport.NewLedger(limit, window)
			clients[ip] = l
		}
		l.Prune(now)
		if l.Full() {
			oldest, _ := l.Oldest()
			return false, oldest.Add(window).Sub(now)
		}
		l.Record(now)
		return true, 0
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, wait := allow(clientIP(r)); !ok {
				secs := max(1, int(wait.Round(time.Second)/time.Second))
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP takes the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
