// Package jobqueue runs named one-shot and recurring jobs. Timers and cron
// only enqueue fired jobs; the owner drains Fired and calls Job.Run, so every
// job body executes on the owner's goroutine.
package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Func is a job body.
type Func func(ctx context.Context, job *Job) error

type kind int

const (
	kindOnce kind = iota
	kindRecurring
)

// Job is a scheduled callback. Name groups jobs (e.g. by event uid).
type Job struct {
	Name string
	Data any

	q     *Queue
	fn    Func
	kind  kind
	at    time.Time
	timer *time.Timer
	entry cron.EntryID
	sched cron.Schedule

	// guarded by q.mu
	removed bool
	pending bool
}

// Queue owns the timers and the cron runner.
type Queue struct {
	mu   sync.Mutex
	log  *zap.Logger
	loc  *time.Location
	now  func() time.Time
	cron *cron.Cron
	jobs map[*Job]struct{}

	fired    chan *Job
	done     chan struct{}
	stopOnce sync.Once
}

type Option func(*Queue)

// WithLocation sets the timezone cron specs are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(q *Queue) { q.loc = loc }
}

// WithClock replaces time.Now when computing one-shot delays.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithBuffer sets the capacity of the fired channel.
func WithBuffer(n int) Option {
	return func(q *Queue) { q.fired = make(chan *Job, n) }
}

func New(log *zap.Logger, opts ...Option) *Queue {
	q := &Queue{
		log:   log,
		loc:   time.Local,
		now:   time.Now,
		jobs:  make(map[*Job]struct{}),
		fired: make(chan *Job, 64),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.cron = cron.New(cron.WithLocation(q.loc))
	return q
}

// Start starts cron triggering. One-shot timers run regardless.
func (q *Queue) Start() {
	q.cron.Start()
}

// Stop stops cron and every pending timer. Jobs stay listed but never fire.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		close(q.done)

		q.mu.Lock()
		for j := range q.jobs {
			if j.timer != nil {
				j.timer.Stop()
			}
		}
		q.mu.Unlock()

		select {
		case <-q.cron.Stop().Done():
		case <-ctx.Done():
		}
	})
}

// Fired delivers jobs whose time has come.
func (q *Queue) Fired() <-chan *Job {
	return q.fired
}

// Location is the timezone cron specs use.
func (q *Queue) Location() *time.Location {
	return q.loc
}

// RunOnce schedules fn at the given time. A time in the past fires immediately.
func (q *Queue) RunOnce(name string, at time.Time, data any, fn Func) *Job {
	j := &Job{Name: name, Data: data, q: q, fn: fn, kind: kindOnce, at: at}

	delay := at.Sub(q.now())
	if delay < 0 {
		delay = 0
	}

	q.mu.Lock()
	q.jobs[j] = struct{}{}
	j.timer = time.AfterFunc(delay, func() { q.dispatch(j) })
	q.mu.Unlock()

	q.log.Debug("job scheduled",
		zap.String("name", name),
		zap.Time("at", at),
		zap.Duration("in", delay),
	)
	return j
}

// RunRepeating runs fn every interval, the first time after first.
func (q *Queue) RunRepeating(name string, every, first time.Duration, data any, fn Func) (*Job, error) {
	if every <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if first < 0 {
		first = 0
	}
	return q.schedule(name, &delayedEvery{first: q.now().Add(first), every: every}, data, fn), nil
}

// RunCron runs fn on a standard 5-field cron spec in the queue's location.
func (q *Queue) RunCron(name, spec string, data any, fn Func) (*Job, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return q.schedule(name, sched, data, fn), nil
}

func (q *Queue) schedule(name string, sched cron.Schedule, data any, fn Func) *Job {
	j := &Job{Name: name, Data: data, q: q, fn: fn, kind: kindRecurring, sched: sched}

	q.mu.Lock()
	j.entry = q.cron.Schedule(sched, cron.FuncJob(func() { q.dispatch(j) }))
	q.jobs[j] = struct{}{}
	next := q.nextLocked(j)
	q.mu.Unlock()

	q.log.Debug("recurring job scheduled", zap.String("name", name), zap.Time("next", next))
	return j
}

func (q *Queue) dispatch(j *Job) {
	q.mu.Lock()
	if j.removed {
		q.mu.Unlock()
		return
	}
	switch j.kind {
	case kindOnce:
		delete(q.jobs, j)
	case kindRecurring:
		// Skip a tick while the previous run is still waiting on the owner.
		if j.pending {
			q.mu.Unlock()
			q.log.Warn("job still pending, tick skipped", zap.String("name", j.Name))
			return
		}
		j.pending = true
	}
	q.mu.Unlock()

	select {
	case q.fired <- j:
	case <-q.done:
	}
}

// JobsByName returns the live jobs with the given name.
func (q *Queue) JobsByName(name string) []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*Job
	for j := range q.jobs {
		if j.Name == name {
			out = append(out, j)
		}
	}
	q.sortLocked(out)
	return out
}

// Jobs returns every live job ordered by next fire time.
func (q *Queue) Jobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Job, 0, len(q.jobs))
	for j := range q.jobs {
		out = append(out, j)
	}
	q.sortLocked(out)
	return out
}

func (q *Queue) sortLocked(jobs []*Job) {
	next := make(map[*Job]time.Time, len(jobs))
	for _, j := range jobs {
		next[j] = q.nextLocked(j)
	}
	sort.SliceStable(jobs, func(a, b int) bool {
		na, nb := next[jobs[a]], next[jobs[b]]
		if na.Equal(nb) {
			return jobs[a].Name < jobs[b].Name
		}
		return na.Before(nb)
	})
}

func (q *Queue) nextLocked(j *Job) time.Time {
	if j.kind == kindOnce {
		return j.at
	}
	if next := q.cron.Entry(j.entry).Next; !next.IsZero() {
		return next
	}
	// cron fills Next only once started.
	now := q.now().In(q.loc)
	if d, ok := j.sched.(*delayedEvery); ok {
		return d.upcoming(now)
	}
	return j.sched.Next(now)
}

// Next is the job's next fire time.
func (j *Job) Next() time.Time {
	j.q.mu.Lock()
	defer j.q.mu.Unlock()
	return j.q.nextLocked(j)
}

// Remove cancels the job. A removed job never runs, including one that has
// already fired and waits in the channel. Remove is idempotent.
func (j *Job) Remove() {
	q := j.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if j.removed {
		return
	}
	j.removed = true
	delete(q.jobs, j)
	if j.timer != nil {
		j.timer.Stop()
	}
	if j.kind == kindRecurring {
		q.cron.Remove(j.entry)
	}
}

// Removed reports whether Remove was called.
func (j *Job) Removed() bool {
	j.q.mu.Lock()
	defer j.q.mu.Unlock()
	return j.removed
}

// Run executes the job body unless the job was removed.
func (j *Job) Run(ctx context.Context) error {
	j.q.mu.Lock()
	removed := j.removed
	j.pending = false
	j.q.mu.Unlock()

	if removed {
		return nil
	}
	return j.fn(ctx, j)
}

// delayedEvery fires at first, or as soon as cron starts if that is later,
// then every interval after the previous run.
type delayedEvery struct {
	mu      sync.Mutex
	first   time.Time
	every   time.Duration
	started bool
}

// Next is called by cron only. Its first call consumes the initial run.
func (s *delayedEvery) Next(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.upcomingLocked(t)
	s.started = true
	return next
}

// upcoming reports the next fire time without consuming the initial run.
func (s *delayedEvery) upcoming(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upcomingLocked(t)
}

func (s *delayedEvery) upcomingLocked(t time.Time) time.Time {
	if !s.started {
		if t.Before(s.first) {
			return s.first
		}
		return t
	}
	return t.Add(s.every)
}
