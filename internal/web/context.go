package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/awardshelf/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
// RemoteAddr has already been rewritten by TrustedRealIP for proxied requests.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}
