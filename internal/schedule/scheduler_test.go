package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	name    string
	runs    atomic.Int32
	release chan struct{}
	started chan struct{}
}

func (j *blockingJob) Name() string { return j.name }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	j.started <- struct{}{}
	<-j.release
	return errors.New("done")
}

type panicJob struct{}

func (panicJob) Name() string { return "panics" }

func (panicJob) Run(ctx context.Context) error { panic("boom") }

func (c *CronScheduler) wrapped(t *testing.T, name string) func() {
	t.Helper()
	c.mu.Lock()
	id, ok := c.entries[name]
	c.mu.Unlock()
	require.True(t, ok)
	return c.cron.Entry(id).WrappedJob.Run
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	c := NewCronScheduler()
	job := &blockingJob{name: "blocking", release: make(chan struct{}), started: make(chan struct{}, 1)}
	require.NoError(t, c.AddJob(job, "@every 1h"))
	run := c.wrapped(t, "blocking")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		run()
	}()
	<-job.started
	run()
	close(job.release)
	wg.Wait()
	require.Equal(t, int32(1), job.runs.Load())
}

func TestPanicIsRecovered(t *testing.T) {
	c := NewCronScheduler()
	require.NoError(t, c.AddJob(panicJob{}, "@every 1h"))
	require.NotPanics(t, c.wrapped(t, "panics"))
}

func TestAddJobSpecs(t *testing.T) {
	c := NewCronScheduler()
	require.NoError(t, c.AddJob(&blockingJob{name: "b"}, "@every 5m"))
	require.NoError(t, c.AddJob(&blockingJob{name: "b"}, "0 3 * * *"))
	require.NoError(t, c.AddJob(&blockingJob{name: "a"}, "*/10 * * * *"))
	require.Error(t, c.AddJob(&blockingJob{name: "c"}, "every tuesday"))
	require.Equal(t, []string{"a", "b"}, c.Jobs())
	require.Len(t, c.cron.Entries(), 2)
}

func TestRunUsesStartContext(t *testing.T) {
	c := NewCronScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	var seen context.Context
	r := &runner{job: funcJob(func(ctx context.Context) error { seen = ctx; return nil }), ctx: c.runContext}
	r.Run()
	require.ErrorIs(t, seen.Err(), context.Canceled)
}

type funcJob func(ctx context.Context) error

func (f funcJob) Name() string { return "func" }

func (f funcJob) Run(ctx context.Context) error { return f(ctx) }
