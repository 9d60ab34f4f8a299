package server

import (
	"ArtistExchange/internal/observability"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RateLimiter holds one token bucket per client, keyed by caller id when
// the request carries one and by remote address otherwise. Idle clients
// are evicted least-recently-used first.
type RateLimiter struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
	metrics *observability.Metrics
}

// NewRateLimiter allows rps requests per second per client with the given
// burst, tracking at most capacity clients.
func NewRateLimiter(rps float64, burst, capacity int, metrics *observability.Metrics) (*RateLimiter, error) {
	if burst <= 0 {
		burst = 1
	}
	cache, err := lru.New[string, *rate.Limiter](capacity)
	if err != nil {
		return nil, fmt.Errorf("rate limiter lru: %w", err)
	}
	return &RateLimiter{
		buckets: cache,
		limit:   rate.Limit(rps),
		burst:   burst,
		metrics: metrics,
	}, nil
}

// Allow takes one token from key's bucket.
func (l *RateLimiter) Allow(key, transport string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Add(key, bucket)
	}
	l.mu.Unlock()

	if bucket.Allow() {
		return true
	}
	if l.metrics != nil {
		l.metrics.APIRateLimited.WithLabelValues(transport).Inc()
	}
	return false
}

// UnaryInterceptor rejects over-limit calls with ResourceExhausted.
func (l *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !l.Allow(grpcClientKey(ctx), "grpc") {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// Middleware rejects over-limit requests with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(httpClientKey(r), "http") {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "RateLimited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func grpcClientKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(callerMetadataKey); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return hostOf(p.Addr.String())
	}
	return "unknown"
}

func httpClientKey(r *http.Request) string {
	if v := r.Header.Get(callerHeader); v != "" {
		return v
	}
	return hostOf(r.RemoteAddr)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
