package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

var _ Scheduler = (*CronScheduler)(nil)

// CronScheduler runs jobs on cron specs or descriptors such as "@every 5m".
// A tick that finds the previous run of the same job still busy is skipped,
// and a panicking job is recovered and logged.
type CronScheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

func NewCronScheduler() *CronScheduler {
	log := cronLogger{}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob schedules job under its name. Adding a name twice replaces the
// earlier schedule.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	id, err := c.cron.AddJob(spec, &runner{job: job, spec: spec, ctx: c.runContext})
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	c.mu.Lock()
	if prev, ok := c.entries[name]; ok {
		c.cron.Remove(prev)
	}
	c.entries[name] = id
	c.mu.Unlock()
	logger.Info("job scheduled")
	return nil
}

// Jobs returns the scheduled job names in lexical order.
func (c *CronScheduler) Jobs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins ticking. Runs receive ctx, so cancelling it stops work in
// flight without waiting for Stop.
func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

// Stop halts ticking and waits for running jobs to return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

type runner struct {
	job  Job
	spec string
	ctx  func() context.Context
}

func (r *runner) Run() {
	ctx := r.ctx()
	logger := logutil.GetLogger(ctx).With(zap.String("job", r.job.Name()), zap.String("spec", r.spec))
	start := time.Now()
	logger.Debug("job started")
	if err := r.job.Run(ctx); err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	logger.Info("job finished", zap.Duration("duration", time.Since(start)))
}

// cronLogger routes cron's own messages into the service logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logutil.GetLogger(context.Background()).Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logutil.GetLogger(context.Background()).Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
