package middleware

// Handler processes a single accepted connection's remote address and
// reports whether it may proceed past admission control. This generalises
// the teacher's http.Handler-based Middleware interface to a connection-
// admission chain, since this server's core has no net/http request to
// wrap.
type Handler func(remoteAddr string) bool

// Middleware decorates a Handler with additional admission logic
type Middleware func(next Handler) Handler

// Chain composes middlewares into a single Handler, applied in order
func Chain(final Handler, mws ...Middleware) Handler {
	h := final
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
