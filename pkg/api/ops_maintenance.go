package api

import "context"

func wrapStartMaintenance(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.StartMaintenance(ctx, req.Payload.(HostsRequest))
	}
}

// StartMaintenance moves every named host from NONE to SCHEDULED.
func (s *Server) StartMaintenance(ctx context.Context, req HostsRequest) (*Response, error) {
	if err := s.maint.StartMaintenance(req.Hosts); err != nil {
		return nil, err
	}
	return ok("maintenance scheduled", req.Hosts), nil
}

func wrapDrainHosts(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.DrainHosts(ctx, req.Payload.(HostsRequest))
	}
}

// DrainHosts moves every named host to DRAINING, evicting its active tasks.
func (s *Server) DrainHosts(ctx context.Context, req HostsRequest) (*Response, error) {
	if err := s.maint.Drain(req.Hosts); err != nil {
		return nil, err
	}
	return ok("hosts draining", req.Hosts), nil
}

func wrapEndMaintenance(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.EndMaintenance(ctx, req.Payload.(HostsRequest))
	}
}

// EndMaintenance returns every named host to NONE regardless of its
// current drain progress.
func (s *Server) EndMaintenance(ctx context.Context, req HostsRequest) (*Response, error) {
	if err := s.maint.EndMaintenance(req.Hosts); err != nil {
		return nil, err
	}
	return ok("maintenance ended", req.Hosts), nil
}

func wrapMaintenanceStatus(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.MaintenanceStatus(ctx, req.Payload.(HostsRequest))
	}
}

// MaintenanceStatus returns the maintenance mode of every named host, or of
// every host with a recorded mode if req.Hosts is empty.
func (s *Server) MaintenanceStatus(ctx context.Context, req HostsRequest) (*Response, error) {
	modes, err := s.maint.Status(req.Hosts)
	if err != nil {
		return nil, err
	}
	return ok("", modes), nil
}
