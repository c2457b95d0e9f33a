package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders adds browser security headers to all responses. The API is
// JSON-only, so the CSP locks everything down outside development.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-DNS-Prefetch-Control", "off")
			w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
			w.Header().Set("Permissions-Policy",
				"accelerometer=(), camera=(), geolocation=(), gyroscope=(), "+
					"magnetometer=(), microphone=(), payment=(), usb=()")

			if config.Env == "production" {
				w.Header().Set("Content-Security-Policy",
					"default-src 'none'; frame-ancestors 'none'; base-uri 'self'")
				w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
				if r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https" {
					w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
				}
			} else {
				w.Header().Set("Content-Security-Policy",
					"default-src 'self' http: https: ws:; frame-ancestors 'self'; base-uri 'self'")
				w.Header().Set("Cross-Origin-Embedder-Policy", "credentialless")
			}

			next.ServeHTTP(w, r)
		})
	}
}
