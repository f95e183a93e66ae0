package api

import (
	"context"

	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

func wrapGetTasksStatus(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.GetTasksStatus(ctx, req.Payload.(TaskStatusQuery))
	}
}

// GetTasksStatus returns every task matching query.
func (s *Server) GetTasksStatus(ctx context.Context, query TaskStatusQuery) (*Response, error) {
	tasks, err := storage.Read(s.facade, func(st storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return st.Tasks().ListTasks()
	})
	if err != nil {
		return nil, schederr.Storage(err, "list tasks")
	}
	matched := make([]*types.ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		if query.matches(t) {
			matched = append(matched, t)
		}
	}
	return ok("", matched), nil
}

func wrapGetJobs(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.GetJobs(ctx, req.Payload.(string))
	}
}

// GetJobs returns every stored JobConfiguration for role, or every job if
// role is empty.
func (s *Server) GetJobs(ctx context.Context, role string) (*Response, error) {
	jobs, err := storage.Read(s.facade, func(st storage.StoreProvider) ([]*types.JobConfiguration, error) {
		return st.Jobs().ListJobs(role)
	})
	if err != nil {
		return nil, schederr.Storage(err, "list jobs for role %q", role)
	}
	return ok("", jobs), nil
}

// RoleSummary is one role's aggregate task counts, returned by
// GetRoleSummary.
type RoleSummary struct {
	Role        string
	ActiveTasks int
	JobCount    int
}

func wrapGetRoleSummary(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.GetRoleSummary(ctx)
	}
}

// GetRoleSummary aggregates active task and job counts per role across the
// whole cluster.
func (s *Server) GetRoleSummary(ctx context.Context) (*Response, error) {
	summaries, err := storage.Read(s.facade, func(st storage.StoreProvider) (map[string]*RoleSummary, error) {
		out := make(map[string]*RoleSummary)
		tasks, err := st.Tasks().ListTasks()
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if !t.Status.IsActive() {
				continue
			}
			rs := out[t.Role]
			if rs == nil {
				rs = &RoleSummary{Role: t.Role}
				out[t.Role] = rs
			}
			rs.ActiveTasks++
		}
		jobs, err := st.Jobs().ListJobs("")
		if err != nil {
			return nil, err
		}
		for _, j := range jobs {
			rs := out[j.Key.Role]
			if rs == nil {
				rs = &RoleSummary{Role: j.Key.Role}
				out[j.Key.Role] = rs
			}
			rs.JobCount++
		}
		return out, nil
	})
	if err != nil {
		return nil, schederr.Storage(err, "aggregate role summary")
	}
	list := make([]*RoleSummary, 0, len(summaries))
	for _, rs := range summaries {
		list = append(list, rs)
	}
	return ok("", list), nil
}

func wrapGetQuota(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.GetQuota(ctx, req.Payload.(string))
	}
}

// GetQuota returns role's stored quota and current production usage.
func (s *Server) GetQuota(ctx context.Context, role string) (*Response, error) {
	type quotaView struct {
		Role  string
		Quota *types.Quota
		Used  any
	}
	q, err := storage.Read(s.facade, func(st storage.StoreProvider) (*types.Quota, error) {
		quota, _, err := st.Quotas().GetQuota(role)
		return quota, err
	})
	if err != nil {
		return nil, schederr.Storage(err, "read quota for role %q", role)
	}
	if q == nil {
		return nil, schederr.InvalidRequest("role %q has no quota configured", role)
	}
	usage, err := s.quota.CurrentUsage(role)
	if err != nil {
		return nil, err
	}
	return ok("", quotaView{Role: role, Quota: q, Used: usage}), nil
}

func wrapGetVersion(s *Server) HandlerFunc {
	return func(ctx context.Context, req Request) (*Response, error) {
		return s.GetVersion(ctx)
	}
}

// GetVersion returns the running scheduler's build version.
func (s *Server) GetVersion(ctx context.Context) (*Response, error) {
	return ok("", s.version), nil
}
