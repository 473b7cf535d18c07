package pipeline

import (
	"context"
	"fmt"
	"sync"

	entityresolver "github.com/c360studio/cinegraph/processor/entity-resolver"
	queryclassifier "github.com/c360studio/cinegraph/processor/query-classifier"
)

// Handler answers a question that was routed to it.
type Handler interface {
	Handle(ctx context.Context, query string, res entityresolver.Result) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, query string, res entityresolver.Result) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, query string, res entityresolver.Result) (string, error) {
	return f(ctx, query, res)
}

// KnownRoutes is the closed set of routes a Routes table accepts.
var KnownRoutes = []queryclassifier.Type{
	queryclassifier.TypeGraph,
	queryclassifier.TypeSimilarity,
}

// UnknownRouteError is returned for a route outside KnownRoutes or one with
// no registered handler.
type UnknownRouteError struct {
	Route queryclassifier.Type
}

func (e *UnknownRouteError) Error() string {
	return fmt.Sprintf("unknown route %q", e.Route)
}

// Routes maps classification types to handlers.
type Routes struct {
	mu       sync.RWMutex
	handlers map[queryclassifier.Type]Handler
}

// NewRoutes creates an empty routing table.
func NewRoutes() *Routes {
	return &Routes{handlers: make(map[queryclassifier.Type]Handler)}
}

// Register binds h to route. Routes outside KnownRoutes are rejected.
func (r *Routes) Register(route queryclassifier.Type, h Handler) error {
	if !isKnown(route) {
		return &UnknownRouteError{Route: route}
	}
	if h == nil {
		return fmt.Errorf("nil handler for route %q", route)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[route] = h
	return nil
}

// Lookup returns the handler for route.
func (r *Routes) Lookup(route queryclassifier.Type) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[route]
	if !ok {
		return nil, &UnknownRouteError{Route: route}
	}
	return h, nil
}

func isKnown(route queryclassifier.Type) bool {
	for _, k := range KnownRoutes {
		if k == route {
			return true
		}
	}
	return false
}
