// Package httpmiddleware holds the HTTP middleware chain shared by the shop
// API: panic recovery, CORS, request IDs, request-scoped loggers, access logs
// and OpenTelemetry instrumentation.
package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware decorates an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RouteFinder returns the route template that served r, e.g.
// "/api/orders/{orderID}/items". It is only meaningful after the router ran.
type RouteFinder func(r *http.Request) string

// ShareRouteContext installs an empty chi routing context that chi routers
// further down reuse, so outer middleware can read the matched pattern once
// the request has been served.
func ShareRouteContext() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if chi.RouteContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ChiRoute is a RouteFinder for requests passed through ShareRouteContext.
// Unmatched requests report "unknown" to keep metric cardinality bounded.
func ChiRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
