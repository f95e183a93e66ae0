package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/schederr"
)

// Request is the generic envelope every dispatched operation receives. The
// concrete per-operation request struct travels in Payload; handlers type-
// assert it back out.
type Request struct {
	Operation     string
	Credential    Credential
	Payload       any
	RequiredRoles []string
	AdminOnly     bool
}

// HandlerFunc implements one RPC operation.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

// Middleware wraps a HandlerFunc with a cross-cutting concern.
type Middleware func(next HandlerFunc) HandlerFunc

type registeredOp struct {
	handler HandlerFunc
	roles   func(Request) []string
	admin   bool
}

// Dispatcher is the explicit RPC dispatch table: every operation is
// registered once with its authorization requirements, and every call is
// routed through the same middleware chain (auth, logging, metrics)
// regardless of which concrete handler serves it.
type Dispatcher struct {
	logger zerolog.Logger
	chain  []Middleware
	ops    map[string]registeredOp
}

// NewDispatcher builds a Dispatcher applying mw to every registered
// operation, innermost-last: mw[0] is the outermost wrapper.
func NewDispatcher(mw ...Middleware) *Dispatcher {
	return &Dispatcher{
		logger: log.WithComponent("api"),
		chain:  mw,
		ops:    make(map[string]registeredOp),
	}
}

// Register adds operation name to the dispatch table. rolesFn computes the
// roles required to invoke this specific request (e.g. the job's Role
// field), since the required role is rarely static per-operation.
func (d *Dispatcher) Register(name string, handler HandlerFunc, rolesFn func(Request) []string, adminOnly bool) {
	wrapped := handler
	for i := len(d.chain) - 1; i >= 0; i-- {
		wrapped = d.chain[i](wrapped)
	}
	d.ops[name] = registeredOp{handler: wrapped, roles: rolesFn, admin: adminOnly}
}

// Dispatch routes a call by operation name through the registered handler's
// middleware chain, returning schederr.Internal if name was never
// registered.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, cred Credential, payload any) (*Response, error) {
	op, ok := d.ops[name]
	if !ok {
		return nil, schederr.Internal(nil, "api: unknown operation %q", name)
	}
	req := Request{
		Operation:  name,
		Credential: cred,
		Payload:    payload,
		AdminOnly:  op.admin,
	}
	if op.roles != nil {
		req.RequiredRoles = op.roles(req)
	}
	resp, err := op.handler(withIdentity(ctx, cred.Identity), req)
	if err != nil && resp == nil {
		resp = &Response{Code: schederr.Code(err), Message: err.Error()}
	}
	return resp, err
}

// loggingMiddleware records one structured log line per call, success or
// failure, with the operation name and identity that invoked it.
func loggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			ev := logger.Info()
			if err != nil {
				ev = logger.Error().Err(err)
			}
			ev.Str("operation", req.Operation).
				Str("identity", req.Credential.Identity).
				Dur("elapsed", time.Since(start)).
				Msg("api call")
			return resp, err
		}
	}
}

// metricsMiddleware records per-operation request counts and latency onto
// the already-registered ballast_api_requests_total / _duration_seconds
// series.
func metricsMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (*Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			outcome := "success"
			if err != nil || (resp != nil && resp.Code != schederr.ResponseOK) {
				outcome = "error"
			}
			metrics.APIRequestsTotal.WithLabelValues(req.Operation, outcome).Inc()
			metrics.APIRequestDuration.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

// authMiddleware rejects a call before it reaches the handler unless the
// credential satisfies the operation's AdminOnly flag (declared at
// registration time) and RequiredRoles (computed per request at dispatch
// time). Every call an admin credential passes is logged as an audit line.
func authMiddleware() Middleware {
	logger := log.WithComponent("api")
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (*Response, error) {
			if req.AdminOnly && !req.Credential.Admin {
				return nil, schederr.AuthFailed("operation %q requires admin capability", req.Operation)
			}
			for _, role := range req.RequiredRoles {
				if !req.Credential.HasRole(role) {
					return nil, schederr.AuthFailed("identity %q is not authorized for role %q", req.Credential.Identity, role)
				}
			}
			if req.Credential.Admin {
				logger.Info().Str("operation", req.Operation).Str("identity", req.Credential.Identity).Msg("admin capability used")
			}
			return next(ctx, req)
		}
	}
}

// DefaultMiddleware returns the standard chain every production Dispatcher
// should apply: authorization first (reject before doing any work), then
// logging and metrics around whatever the handler actually did.
func DefaultMiddleware(logger zerolog.Logger) []Middleware {
	return []Middleware{authMiddleware(), loggingMiddleware(logger), metricsMiddleware()}
}
