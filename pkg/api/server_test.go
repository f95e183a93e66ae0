package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/cron"
	"github.com/ballast-sched/ballast/pkg/events"
	"github.com/ballast-sched/ballast/pkg/lock"
	"github.com/ballast-sched/ballast/pkg/maintenance"
	"github.com/ballast-sched/ballast/pkg/quota"
	"github.com/ballast-sched/ballast/pkg/recovery"
	"github.com/ballast-sched/ballast/pkg/scheduler"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
)

type testEnv struct {
	server *Server
	facade *storage.Facade
	host   *statemachine.Host
	clk    *clock.Fake
	broker *events.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	facade, err := storage.Open(t.TempDir(), storage.WithNotifier(broker))
	require.NoError(t, err)

	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := scheduler.NewTaskSink(facade, fake, nil)
	host := statemachine.NewHost(sink)
	sink.BindHost(host)

	locks := lock.New(facade, fake)
	q := quota.New(facade)
	maint := maintenance.NewController(maintenance.Config{Facade: facade, Host: host, Broker: broker, SchedulerHost: "scheduler-1"})
	maint.Start()
	t.Cleanup(maint.Stop)
	rec := recovery.New(facade)
	cronSched := cron.New(facade, host, fake)

	srv := New(Config{
		Facade:   facade,
		Host:     host,
		Locks:    locks,
		Quota:    q,
		Maint:    maint,
		Recovery: rec,
		Cron:     cronSched,
		Clock:    fake,
		Version:  "test",
	})

	return &testEnv{server: srv, facade: facade, host: host, clk: fake, broker: broker}
}
