package api

import "context"

func wrapSetQuota(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.SetQuota(ctx, req.Payload.(SetQuotaRequest))
	}
}

// SetQuota stores req.Quota, overwriting any existing value for its role.
func (s *Server) SetQuota(ctx context.Context, req SetQuotaRequest) (*Response, error) {
	if err := s.quota.SetQuota(&req.Quota); err != nil {
		return nil, err
	}
	return ok("quota set", req.Quota), nil
}
