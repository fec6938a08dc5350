// Package jobs runs the periodic leaderboard maintenance: the rank recompute
// and the monthly snapshot-and-reset.
//
// Go Learning Note — Cron Schedules:
// github.com/robfig/cron (v1) parses six-field specs with a leading seconds
// field, e.g. "0 */15 * * * *" for every 15 minutes. Each entry runs in its
// own goroutine, so two replicas (or one slow run and the next tick) can
// overlap. Every run therefore takes a "job:<name>" lock first and is skipped
// when someone else holds it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/metrics"
	"masjidgo/internal/repository"
)

const (
	JobRankRecompute   = "rank_recompute"
	JobMonthlySnapshot = "monthly_snapshot"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Leaderboard is the maintenance surface the jobs drive.
type Leaderboard interface {
	RecomputeRanks(ctx context.Context) (int, error)
	SnapshotAndResetMonthly(ctx context.Context, month string) (int, error)
}

// Result reports one job run.
type Result struct {
	Job      string
	Skipped  bool
	Affected int
	Err      error
}

type job struct {
	spec string
	run  func(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner and the job registry. Each Start builds a
// fresh runner, so a Stop/Start cycle never schedules a job twice.
type Scheduler struct {
	cron    *cron.Cron
	loc     *time.Location
	jobs    map[string]job
	locks   repository.LockManager
	lockTTL time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
	log     *logger.Logger
	clock   func() time.Time

	mu      sync.Mutex
	started bool
}

// NewScheduler registers the leaderboard jobs with the specs of cfg. Times
// are evaluated in loc, which should be the scoring zone so that "the first
// of the month" means the same day the streaks use.
func NewScheduler(cfg config.JobsConfig, board Leaderboard, locks repository.LockManager, loc *time.Location, m *metrics.Metrics, baseLog *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}

	s := &Scheduler{
		loc:     loc,
		locks:   locks,
		lockTTL: lockTTL,
		timeout: lockTTL,
		metrics: m,
		log:     baseLog.With("component", "JobScheduler"),
		clock:   func() time.Time { return time.Now().In(loc) },
	}
	s.jobs = map[string]job{
		JobRankRecompute: {
			spec: cfg.RankRecompute,
			run:  board.RecomputeRanks,
		},
		JobMonthlySnapshot: {
			spec: cfg.MonthlySnapshot,
			run: func(ctx context.Context) (int, error) {
				return board.SnapshotAndResetMonthly(ctx, s.closingMonth())
			},
		},
	}
	return s
}

// closingMonth is the month that ended before the current run: the run fires
// shortly after midnight on day 1, so the previous day names it.
func (s *Scheduler) closingMonth() string {
	return entities.MonthKey(s.clock().AddDate(0, 0, -1))
}

// Start schedules every job with a non-empty spec and starts the runner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	runner := cron.NewWithLocation(s.loc)
	for _, name := range s.Names() {
		j := s.jobs[name]
		if j.spec == "" {
			s.log.Info("job disabled", "job", name)
			continue
		}
		if err := runner.AddFunc(j.spec, func() { s.RunNow(context.Background(), name) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, j.spec, err)
		}
		s.log.Info("job scheduled", "job", name, "spec", j.spec)
	}
	runner.Start()
	s.cron = runner
	s.started = true
	return nil
}

// Stop halts the runner. Runs already in flight finish on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}

// Names lists the registered jobs in a stable order.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow runs a job once, outside the schedule, under the same lock as a
// scheduled run.
func (s *Scheduler) RunNow(ctx context.Context, name string) Result {
	res := Result{Job: name}
	j, ok := s.jobs[name]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownJob, name)
		return res
	}

	key := "job:" + name
	token, acquired, err := s.locks.AcquireLock(ctx, key, s.lockTTL)
	if err != nil {
		res.Err = fmt.Errorf("acquire %s: %w", key, err)
		s.metrics.JobRun(name, "error")
		s.log.Error("job lock failed", "job", name, "error", err)
		return res
	}
	if !acquired {
		res.Skipped = true
		s.metrics.JobRun(name, "skipped")
		s.log.Info("job skipped, lock held elsewhere", "job", name)
		return res
	}
	defer func() {
		if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("job lock release failed", "job", name, "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res.Affected, res.Err = s.safeRun(runCtx, name, j)
	if res.Err != nil {
		s.metrics.JobRun(name, "error")
		s.log.Error("job failed", "job", name, "error", res.Err, "took", time.Since(start))
		return res
	}
	s.metrics.JobRun(name, "ok")
	s.log.Info("job finished", "job", name, "affected", res.Affected, "took", time.Since(start))
	return res
}

// safeRun turns a panic in a job into an error so the cron goroutine and
// the lock release survive it.
func (s *Scheduler) safeRun(ctx context.Context, name string, j job) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()
	return j.run(ctx)
}
