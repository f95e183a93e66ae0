package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecoveryBackupStageCommitLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	resp, err := e.server.PerformBackup(ctx)
	require.NoError(t, err)
	id := resp.Data.(string)
	require.NotEmpty(t, id)

	_, err = e.server.StageRecovery(ctx, StageRecoveryRequest{BackupID: id})
	require.NoError(t, err)

	resp, err = e.server.QueryRecovery(ctx, RecoveryQueryRequest{})
	require.NoError(t, err)
	require.Empty(t, resp.Data)

	_, err = e.server.CommitRecovery(ctx)
	require.NoError(t, err)
}

func TestUnloadRecoveryWithoutStageIsSafe(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.server.UnloadRecovery(context.Background())
	require.NoError(t, err)
}
