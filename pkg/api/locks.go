package api

import "context"

func wrapAcquireLock(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.AcquireLock(ctx, req.Payload.(AcquireLockRequest))
	}
}

// AcquireLock takes an advisory lock on req.Key for the calling identity.
func (s *Server) AcquireLock(ctx context.Context, req AcquireLockRequest) (*Response, error) {
	lk, err := s.locks.Acquire(req.Key, identityFromContext(ctx))
	if err != nil {
		return nil, err
	}
	return ok("lock acquired", lk), nil
}

func wrapReleaseLock(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.ReleaseLock(ctx, req.Payload.(ReleaseLockRequest))
	}
}

// ReleaseLock releases req.Key iff req.Token matches the held lock's token.
func (s *Server) ReleaseLock(ctx context.Context, req ReleaseLockRequest) (*Response, error) {
	if err := s.locks.Release(req.Key, req.Token); err != nil {
		return nil, err
	}
	return ok("lock released", nil), nil
}

type identityKey struct{}

// withIdentity attaches identity to ctx so downstream calls (e.g.
// AcquireLock) can recover it without threading a Credential through every
// internal call signature.
func withIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func identityFromContext(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey{}).(string)
	return identity
}
