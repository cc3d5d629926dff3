package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/ecovest/internal/metrics"
	testingpkg "github.com/aristath/ecovest/internal/testing"
)

type fakeJob struct {
	name string
	err  error
	runs int
}

func (j *fakeJob) Run() error {
	j.runs++
	return j.err
}

func (j *fakeJob) Name() string { return j.name }

func TestScheduler_RunNowRecordsOutcome(t *testing.T) {
	reg := metrics.NewRegistry()
	s := New(reg, zerolog.Nop())

	ok := &fakeJob{name: "ok"}
	bad := &fakeJob{name: "bad", err: errors.New("boom")}

	require.NoError(t, s.RunNow(ok))
	assert.Error(t, s.RunNow(bad))

	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.JobRuns.WithLabelValues("ok", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.JobRuns.WithLabelValues("bad", "failure")))
}

// blockingJob runs until release is closed.
type blockingJob struct {
	started chan struct{}
	release chan struct{}
	done    chan struct{}
}

func newBlockingJob() *blockingJob {
	return &blockingJob{
		started: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (j *blockingJob) Run() error {
	close(j.started)
	<-j.release
	close(j.done)
	return nil
}

func (j *blockingJob) Name() string { return "blocking" }

func TestScheduler_RunAsyncSkipsOverlappingRun(t *testing.T) {
	reg := metrics.NewRegistry()
	s := New(reg, zerolog.Nop())
	job := newBlockingJob()

	require.NoError(t, s.RunAsync(job))
	<-job.started

	assert.ErrorIs(t, s.RunNow(job), ErrJobRunning)

	close(job.release)
	s.Stop()
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.JobRuns.WithLabelValues("blocking", "success")))
}

func TestScheduler_StopWaitsForManualRuns(t *testing.T) {
	s := New(nil, zerolog.Nop())
	job := newBlockingJob()

	require.NoError(t, s.RunAsync(job))
	<-job.started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a manual run was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(job.release)
	<-stopped
	select {
	case <-job.done:
	default:
		t.Fatal("job did not finish before Stop returned")
	}

	assert.ErrorIs(t, s.RunAsync(&fakeJob{name: "late"}), ErrStopped)
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(nil, zerolog.Nop())

	assert.NoError(t, s.AddJob("0 0 3 * * *", &fakeJob{name: "nightly"}))
	assert.NoError(t, s.AddJob("@every 1h", &fakeJob{name: "hourly"}))
	assert.Error(t, s.AddJob("not a schedule", &fakeJob{name: "broken"}))

	s.Start()
	s.Stop()
}

func TestCheckWALCheckpointsJob(t *testing.T) {
	assert.NoError(t, NewCheckWALCheckpointsJob(nil, zerolog.Nop()).Run())

	db, cleanup := testingpkg.NewTestDB(t)
	defer cleanup()

	job := NewCheckWALCheckpointsJob(db, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
	assert.NoError(t, job.Run())
}
