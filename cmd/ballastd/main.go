package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/ballast-sched/ballast/pkg/api"
	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/cron"
	"github.com/ballast-sched/ballast/pkg/events"
	"github.com/ballast-sched/ballast/pkg/lock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/maintenance"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/placement"
	"github.com/ballast-sched/ballast/pkg/preempt"
	"github.com/ballast-sched/ballast/pkg/quota"
	"github.com/ballast-sched/ballast/pkg/recovery"
	"github.com/ballast-sched/ballast/pkg/scheduler"
	"github.com/ballast-sched/ballast/pkg/statemachine"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ballastd",
	Short:   "ballastd - cluster workload scheduler core",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"ballastd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler core as a daemon",
	Long: `Run starts every scheduler core component against a single durable
log directory: the transactional storage facade, the per-task state
machine, the scheduling loop with its placer and preemptor, the lock
manager, quota checker, maintenance controller, recovery controller, and
cron scheduler. The resulting RPC surface is exposed only as the Go
Dispatcher built by pkg/api — wiring it to a wire transport is left to
whatever process embeds this package, per this build's scope. The admin
HTTP surface (health/ready/live/metrics) listens on --admin-addr.`,
	RunE: runServe,
}

func init() {
	runCmd.Flags().String("config", "", "YAML file supplying defaults for any flag below that wasn't passed explicitly")
	runCmd.Flags().String("data-dir", "./ballast-data", "Durable log and snapshot directory")
	runCmd.Flags().String("admin-addr", "127.0.0.1:9090", "Admin HTTP listen address (health/ready/live/metrics)")
	runCmd.Flags().String("scheduler-host", "", "Identity this scheduler instance reports on state transitions (defaults to the OS hostname)")
	runCmd.Flags().Duration("snapshot-interval", 5*time.Minute, "Interval between full storage snapshots")
	runCmd.Flags().Duration("cron-tick", 30*time.Second, "Interval at which the cron scheduler checks for due jobs")
	runCmd.Flags().Float64("placement-rate", 50, "Aggregate placement attempts per second across every task group")
}

// fileConfig mirrors runCmd's flags for the optional --config YAML file.
// Any field left zero in the file leaves the flag's own default (or the
// value the operator passed on the command line, which always wins).
type fileConfig struct {
	DataDir          string        `yaml:"dataDir"`
	AdminAddr        string        `yaml:"adminAddr"`
	SchedulerHost    string        `yaml:"schedulerHost"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	CronTick         time.Duration `yaml:"cronTick"`
	PlacementRate    float64       `yaml:"placementRate"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	adminAddr, _ := cmd.Flags().GetString("admin-addr")
	schedulerHost, _ := cmd.Flags().GetString("scheduler-host")
	snapshotInterval, _ := cmd.Flags().GetDuration("snapshot-interval")
	cronTick, _ := cmd.Flags().GetDuration("cron-tick")
	placementRate, _ := cmd.Flags().GetFloat64("placement-rate")

	if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
		fc, err := loadFileConfig(configPath)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("data-dir") && fc.DataDir != "" {
			dataDir = fc.DataDir
		}
		if !cmd.Flags().Changed("admin-addr") && fc.AdminAddr != "" {
			adminAddr = fc.AdminAddr
		}
		if !cmd.Flags().Changed("scheduler-host") && fc.SchedulerHost != "" {
			schedulerHost = fc.SchedulerHost
		}
		if !cmd.Flags().Changed("snapshot-interval") && fc.SnapshotInterval != 0 {
			snapshotInterval = fc.SnapshotInterval
		}
		if !cmd.Flags().Changed("cron-tick") && fc.CronTick != 0 {
			cronTick = fc.CronTick
		}
		if !cmd.Flags().Changed("placement-rate") && fc.PlacementRate != 0 {
			placementRate = fc.PlacementRate
		}
	}

	if schedulerHost == "" {
		if host, err := os.Hostname(); err == nil {
			schedulerHost = host
		} else {
			schedulerHost = "ballastd"
		}
	}

	logger := log.WithComponent("ballastd")
	logger.Info().Str("data_dir", dataDir).Str("scheduler_host", schedulerHost).Msg("starting scheduler core")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	facade, err := storage.Open(dataDir,
		storage.WithNotifier(broker),
		storage.WithSnapshotInterval(snapshotInterval),
	)
	if err != nil {
		return fmt.Errorf("open storage facade: %w", err)
	}

	clk := clock.New()

	sink := scheduler.NewTaskSink(facade, clk, nil)
	host := statemachine.NewHost(sink)
	sink.BindHost(host)

	offers := placement.NewOfferPool()
	placer := placement.NewAction(placement.Config{
		Facade:        facade,
		Host:          host,
		Sink:          sink,
		Offers:        offers,
		Clock:         clk,
		SchedulerHost: schedulerHost,
	})
	preemptor := preempt.New(preempt.Config{
		Facade:        facade,
		Host:          host,
		SchedulerHost: schedulerHost,
	})
	loop := scheduler.NewLoop(scheduler.Config{
		Facade:    facade,
		Placer:    placer,
		Preemptor: preemptor,
		Broker:    broker,
		Clock:     clk,
		RateLimit: rate.Limit(placementRate),
	})

	locks := lock.New(facade, clk)
	quotaChecker := quota.New(facade)
	maint := maintenance.NewController(maintenance.Config{
		Facade:        facade,
		Host:          host,
		Broker:        broker,
		SchedulerHost: schedulerHost,
	})
	recoveryCtrl := recovery.New(facade)
	cronSched := cron.New(facade, host, clk)

	apiServer := api.New(api.Config{
		Facade:   facade,
		Host:     host,
		Locks:    locks,
		Quota:    quotaChecker,
		Maint:    maint,
		Recovery: recoveryCtrl,
		Cron:     cronSched,
		Clock:    clk,
		Version:  Version,
	})
	// BuildDispatcher assembles the full RPC dispatch table; this process
	// doesn't terminate a wire transport itself, but constructing it here
	// both proves the wiring and leaves it ready for whatever embeds this
	// package as a library to mount over its own transport.
	dispatcher := apiServer.BuildDispatcher()
	_ = dispatcher

	collector := metrics.NewCollector(facade)
	admin := api.NewAdminServer(facade)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go admin.WatchStorageReadiness(ctx)
	go trackLiveTasksOnRecovery(ctx, facade, host, logger)

	loop.Start()
	maint.Start()
	collector.Start()
	go cronSched.Run(ctx, cronTick)

	adminErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", adminAddr).Msg("admin HTTP surface listening")
		if err := admin.Start(ctx, adminAddr); err != nil {
			adminErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutdown signal received")
	case err := <-adminErrCh:
		logger.Error().Err(err).Msg("admin HTTP server failed")
	}

	cancel()
	maint.Stop()
	loop.Stop()
	collector.Stop()

	if err := facade.Snapshot(); err != nil {
		logger.Error().Err(err).Msg("final snapshot before shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

// trackLiveTasksOnRecovery waits for the facade to finish replaying its
// durable log, then registers every non-terminal task with the state
// machine host. The host's tracked-task set lives only in memory: replay
// repopulates the stores but never calls Host.Track, so without this every
// UpdateState call against a task that survived a restart would fail with
// "no tracked task" the moment its next event arrived.
func trackLiveTasksOnRecovery(ctx context.Context, facade *storage.Facade, host *statemachine.Host, logger zerolog.Logger) {
	select {
	case <-facade.Ready():
	case <-ctx.Done():
		return
	}

	tasks, err := storage.Read(facade, func(s storage.StoreProvider) ([]*types.ScheduledTask, error) {
		return s.Tasks().ListTasks()
	})
	if err != nil {
		logger.Error().Err(err).Msg("post-recovery task scan failed")
		return
	}

	tracked := 0
	for _, t := range tasks {
		if t.Status.IsTerminal() {
			continue
		}
		host.Track(t.TaskID, t.Status, t.IsService, t.MaxTaskFailures, t.FailureCount)
		tracked++
	}
	logger.Info().Int("count", tracked).Msg("tracked live tasks after recovery")
}
