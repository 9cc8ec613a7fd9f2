package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures which browser origins may call the public API.
type CORSPolicy struct {
	AllowedOrigins   []string // "*" allows any origin
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// WithCORS answers preflights and decorates responses for allowed origins.
// An empty AllowedOrigins disables it. Methods default to GET, POST and
// OPTIONS; exposed headers default to the request id and Retry-After.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := make(map[string]struct{})
	wildcard := false
	for _, o := range normalizeList(cfg.AllowedOrigins) {
		if o == "*" {
			wildcard = true
			continue
		}
		origins[strings.ToLower(o)] = struct{}{}
	}
	if !wildcard && len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	methods := joinOr(cfg.AllowedMethods, http.MethodGet, http.MethodPost, http.MethodOptions)
	exposed := joinOr(cfg.ExposedHeaders, RequestIDHeader, "Retry-After")
	allowHeaders := strings.Join(normalizeList(cfg.AllowedHeaders), ", ")
	maxAge := ""
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		maxAge = strconv.Itoa(secs)
	}

	allowed := func(origin string) (string, bool) {
		if _, ok := origins[strings.ToLower(origin)]; ok {
			return origin, true
		}
		if !wildcard {
			return "", false
		}
		// Credentialed requests may not be answered with a literal "*".
		if cfg.AllowCredentials {
			return origin, true
		}
		return "*", true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")

			allowOrigin, ok := allowed(origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				h.Set("Access-Control-Allow-Methods", methods)
				if allowHeaders != "" {
					h.Set("Access-Control-Allow-Headers", allowHeaders)
				}
				if maxAge != "" {
					h.Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			h.Set("Access-Control-Expose-Headers", exposed)
			next.ServeHTTP(w, r)
		})
	}
}

func joinOr(values []string, fallback ...string) string {
	if list := normalizeList(values); len(list) > 0 {
		return strings.Join(list, ", ")
	}
	return strings.Join(fallback, ", ")
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
