package otpengine

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Engine records
// it on audit events so abuse investigations can correlate lockouts with
// request origins. It plays no part in the per-identity locks themselves.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
