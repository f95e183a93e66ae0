package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/types"
)

func TestSetQuotaThenGetQuota(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.server.SetQuota(ctx, SetQuotaRequest{Quota: types.Quota{Role: "r", CPU: 10, RAMMB: 1024, DiskMB: 2048}})
	require.NoError(t, err)

	resp, err := e.server.GetQuota(ctx, "r")
	require.NoError(t, err)
	require.NotNil(t, resp.Data)
}

func TestGetQuotaUnknownRoleFails(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.server.GetQuota(context.Background(), "nobody")
	require.Error(t, err)
}
