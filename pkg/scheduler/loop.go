// Package scheduler implements the per-GroupKey scheduling loop (§4.3): a
// FIFO queue of pending tasks per scheduling-equivalence class, each worked
// by one goroutine that cooperates with a single global rate limiter, a
// Placer, and a Preemptor.
package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/events"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Placer performs one placement attempt for taskID, per §4.4. It reports
// whether the task was placed; a false result with a nil error means no
// offer satisfied the task and the group should back off.
type Placer interface {
	Place(ctx context.Context, taskID string) (bool, error)
}

// Preemptor searches for and, if found, begins preempting a victim task so
// a future placement attempt for taskID can succeed. Per §4.5 this is
// best-effort: its result only affects logging/metrics, never the group's
// retry schedule directly.
type Preemptor interface {
	FindVictim(ctx context.Context, taskID string) (found bool, err error)
}

// Loop owns every TaskGroup and the goroutines that work them.
type Loop struct {
	facade    *storage.Facade
	placer    Placer
	preemptor Preemptor
	broker    *events.Broker
	clk       clock.Clock
	limiter   *rate.Limiter
	backoffFn func() Backoff

	mu     sync.Mutex
	groups map[types.GroupKey]*TaskGroup

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// Config configures a Loop at construction time.
type Config struct {
	Facade    *storage.Facade
	Placer    Placer
	Preemptor Preemptor
	Broker    *events.Broker
	Clock     clock.Clock
	// RateLimit bounds the aggregate placement-attempt rate across every
	// group; it is the sole cross-group coordination point (§5).
	RateLimit rate.Limit
	RateBurst int
	// BackoffFactory builds a fresh Backoff for each newly created group.
	// Defaults to DefaultGroupBackoff.
	BackoffFactory func() Backoff
}

// NewLoop builds a Loop from cfg.
func NewLoop(cfg Config) *Loop {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	backoffFn := cfg.BackoffFactory
	if backoffFn == nil {
		backoffFn = func() Backoff { return DefaultGroupBackoff() }
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = 50
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = int(limit)
		if burst < 1 {
			burst = 1
		}
	}
	return &Loop{
		facade:    cfg.Facade,
		placer:    cfg.Placer,
		preemptor: cfg.Preemptor,
		broker:    cfg.Broker,
		clk:       c,
		limiter:   rate.NewLimiter(limit, burst),
		backoffFn: backoffFn,
		groups:    make(map[types.GroupKey]*TaskGroup),
		logger:    log.WithComponent("scheduling-loop"),
	}
}

// Start arms the loop: it subscribes to task.put events for the PENDING
// entry point, and once storage signals readiness, enumerates every
// currently-PENDING task as the recovery entry point (§4.3's third entry
// point, deletion, is handled by the same subscription: a task.deleted event
// removes the task from every group's queue).
func (l *Loop) Start() {
	l.ctx, l.cancel = context.WithCancel(context.Background())

	sub := l.broker.Subscribe()
	l.wg.Add(1)
	go l.consumeEvents(sub)

	l.wg.Add(1)
	go l.onStorageReady()
}

// Stop halts every group worker and the event subscription.
func (l *Loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

func (l *Loop) consumeEvents(sub events.Subscriber) {
	defer l.wg.Done()
	defer l.broker.Unsubscribe(sub)
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.Type == events.EventTaskPut && ev.Metadata["status"] == string(types.StatusPending) {
				l.Enqueue(ev.TaskID, l.clk.Now())
			}
			if ev.Type == events.EventTaskDeleted {
				l.removeFromAllGroups(ev.TaskID)
			}
		case <-l.ctx.Done():
			return
		}
	}
}

// onStorageReady waits for storage recovery to complete, then enumerates
// every PENDING task and enqueues it with a bounded random initial delay so
// a large fleet restart doesn't thunder-herd the placement rate limiter.
func (l *Loop) onStorageReady() {
	defer l.wg.Done()
	select {
	case <-l.facade.Ready():
	case <-l.ctx.Done():
		return
	}

	tasks, err := storage.Read(l.facade, func(s storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasksByStatus(types.StatusPending)
	})
	if err != nil {
		l.logger.Error().Err(err).Msg("initial pending-task scan failed")
		return
	}

	const maxInitialJitter = 5 * time.Second
	for _, t := range tasks {
		delay := time.Duration(rand.Int63n(int64(maxInitialJitter)))
		l.Enqueue(t.TaskID, l.clk.Now().Add(delay))
	}
	l.logger.Info().Int("count", len(tasks)).Msg("enqueued pending tasks after storage recovery")
}

// Enqueue places taskID onto its GroupKey's queue, ready at readyAt. The
// task's TaskConfig is looked up to derive the GroupKey.
func (l *Loop) Enqueue(taskID string, readyAt time.Time) {
	task, err := storage.Read(l.facade, func(s storage.StoreProvider) (*types.ScheduledTask, error) {
		t, found, err := s.Tasks().GetTask(taskID)
		if err != nil || !found {
			return nil, err
		}
		return t, nil
	})
	if err != nil || task == nil {
		return
	}

	g := l.groupFor(GroupKeyOf(task.TaskConfig))
	g.Enqueue(taskID, readyAt)
}

func (l *Loop) removeFromAllGroups(taskID string) {
	l.mu.Lock()
	groups := make([]*TaskGroup, 0, len(l.groups))
	for _, g := range l.groups {
		groups = append(groups, g)
	}
	l.mu.Unlock()
	for _, g := range groups {
		g.Remove(taskID)
	}
}

func (l *Loop) groupFor(key types.GroupKey) *TaskGroup {
	l.mu.Lock()
	g, ok := l.groups[key]
	if !ok {
		g = newTaskGroup(key, l.backoffFn())
		l.groups[key] = g
		metrics.TaskGroupsActive.Inc()
		l.wg.Add(1)
		go l.runGroup(g)
	}
	l.mu.Unlock()
	return g
}

// idlePoll bounds how long a worker sleeps on an EMPTY group before
// re-checking state; Enqueue's wake signal usually fires first.
const idlePoll = 5 * time.Second

func (l *Loop) runGroup(g *TaskGroup) {
	defer l.wg.Done()
	for {
		now := l.clk.Now()
		var wait time.Duration
		switch g.state(now) {
		case groupEmpty:
			wait = idlePoll
		case groupNotReady:
			wait = g.nextReadyAt().Sub(now)
		case groupReady:
			wait = 0
		}

		if wait > 0 {
			select {
			case <-l.clk.After(wait):
			case <-g.wake:
			case <-l.ctx.Done():
				return
			}
			continue
		}

		select {
		case <-l.ctx.Done():
			return
		default:
		}

		taskID, ok := g.popHead()
		if !ok {
			continue
		}

		l.attempt(g, taskID)
	}
}

func (l *Loop) attempt(g *TaskGroup, taskID string) {
	waitStart := l.clk.Now()
	if err := l.limiter.Wait(l.ctx); err != nil {
		// context cancelled: loop is stopping, drop the attempt back onto the
		// queue so a restart picks it up.
		g.pushBack(taskID, l.clk.Now())
		return
	}
	metrics.RateLimiterWaitDuration.Observe(l.clk.Now().Sub(waitStart).Seconds())

	timer := metrics.NewTimer()
	placed, err := l.placer.Place(l.ctx, taskID)
	metrics.SchedulingLatency.Observe(timer.Duration().Seconds())

	switch {
	case err != nil:
		l.logger.Error().Err(err).Str("task_id", taskID).Msg("placement attempt errored")
		metrics.SchedulingAttemptsTotal.WithLabelValues("error").Inc()
		g.pushBack(taskID, l.clk.Now().Add(g.backoff.NextPenalty()))
	case placed:
		metrics.SchedulingAttemptsTotal.WithLabelValues("placed").Inc()
		g.backoff.Reset()
	default:
		metrics.SchedulingAttemptsTotal.WithLabelValues("no_offer").Inc()
		penalty := g.backoff.NextPenalty()
		metrics.GroupBackoffSeconds.Observe(penalty.Seconds())
		g.pushBack(taskID, l.clk.Now().Add(penalty))

		if l.preemptor != nil {
			if found, perr := l.preemptor.FindVictim(l.ctx, taskID); perr != nil {
				l.logger.Warn().Err(perr).Str("task_id", taskID).Msg("preemption search failed")
			} else if found {
				l.logger.Info().Str("task_id", taskID).Msg("preemption candidate identified")
			}
		}
	}
}
