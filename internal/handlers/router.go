package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouterOptions configures the relay's HTTP surface
type RouterOptions struct {
	APIPrefix      string
	AllowedOrigins []string
	RateLimit      int // requests per window, 0 disables limiting
	RateWindow     time.Duration
}

// NewRouter builds the relay router: /health at the root and the API under
// the configured prefix
func NewRouter(h *RelayHandler, opts RouterOptions, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, accessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	r.Get("/health", h.handleHealth)

	api := chi.NewRouter()
	if opts.RateLimit > 0 {
		api.Use(newIPLimiter(opts.RateLimit, opts.RateWindow).middleware)
	}
	h.RegisterRoutes(api)

	prefix := opts.APIPrefix
	if prefix == "" || prefix == "/" {
		r.Mount("/", api)
	} else {
		r.Mount(prefix, api)
	}

	return r
}

// accessLog logs one structured line per request
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_ip", r.RemoteAddr))
		})
	}
}

// ipLimiter applies a token bucket per client address. Clients idle for a
// whole window are forgotten; their bucket would be full again anyway.
type ipLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &ipLimiter{
		clients:   make(map[string]*clientLimiter),
		every:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		idle:      window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[ip] = c
	}
	c.seen = now
	return c.limiter
}

func (l *ipLimiter) sweepLocked(now time.Time) {
	for ip, c := range l.clients {
		if now.Sub(c.seen) >= l.idle {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !l.get(ip).Allow() {
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later", "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}
