package timers

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/internal/metrics"
)

const component = "timers"

// ErrStopped is returned by Register after Stop.
var ErrStopped = errors.New("timers: scheduler stopped")

// Firer delivers a due timer.
type Firer interface {
	Fire(ctx context.Context, sid int64, rec Record)
}

// FirerFunc adapts a function to Firer.
type FirerFunc func(ctx context.Context, sid int64, rec Record)

func (f FirerFunc) Fire(ctx context.Context, sid int64, rec Record) { f(ctx, sid, rec) }

// CancelResult reports what Cancel removed. Both false means nothing was set.
type CancelResult struct {
	Handle bool
	Record bool
}

// Any reports whether anything was cancelled.
func (r CancelResult) Any() bool { return r.Handle || r.Record }

// Entry describes a live handle.
type Entry struct {
	SessionID int64
	Record    Record
	Next      time.Time
}

type handle struct {
	rec   Record
	timer Timer
	next  time.Time
}

// Scheduler owns the live timer handles, at most one per session. The Store is
// read at Restore and written on Register, Cancel and one-shot completion.
type Scheduler struct {
	clock Clock
	store *Store
	firer Firer

	mu      sync.Mutex
	live    map[int64]*handle
	base    context.Context
	stopped bool

	inflight sync.WaitGroup
}

// NewScheduler returns an idle scheduler. A nil clock means SystemClock.
func NewScheduler(store *Store, firer Firer, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		clock: clock,
		store: store,
		firer: firer,
		live:  make(map[int64]*handle),
		base:  context.Background(),
	}
}

// Start sets the context fires run under. Cancelling it does not stop handles; use Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = context.WithoutCancel(ctx)
}

// Restore arms a handle for every stored record. One-shots already due and
// malformed records are dropped and removed from the store in one write.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	var drop []int64
	restored := 0

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, ErrStopped
	}
	for sid, rec := range records {
		if err := rec.Validate(); err != nil {
			logger.Warn(ctx, component, "timer.restore.drop",
				slog.Int64("session_id", sid),
				slog.String("reason", "malformed"),
				slog.String("err", err.Error()),
			)
			drop = append(drop, sid)
			continue
		}
		next, ok := Next(rec, now)
		if !ok {
			logger.Info(ctx, component, "timer.restore.drop",
				slog.Int64("session_id", sid),
				slog.String("timer_id", rec.ID),
				slog.String("reason", "missed"),
			)
			drop = append(drop, sid)
			continue
		}
		s.dropLocked(sid)
		s.armLocked(sid, rec, next, now)
		restored++
	}
	s.syncGaugeLocked()
	s.mu.Unlock()

	metrics.TimersRestored.WithLabelValues("scheduled").Add(float64(restored))
	metrics.TimersRestored.WithLabelValues("dropped").Add(float64(len(drop)))

	if len(drop) > 0 {
		if _, err := s.store.DeleteMany(ctx, drop); err != nil {
			s.writeFailed(ctx, "timer.restore.prune", err)
		}
	}

	logger.Info(ctx, component, "timers.restored",
		slog.Int("timers", restored),
		slog.Int("count", len(drop)),
	)
	return restored, nil
}

// Register replaces the session's timer with rec and returns its first fire time.
// A failed store write is logged; the live handle is kept.
func (s *Scheduler) Register(ctx context.Context, sid int64, rec Record) (time.Time, error) {
	if err := rec.Validate(); err != nil {
		return time.Time{}, err
	}
	now := s.clock.Now()
	next, ok := Next(rec, now)
	if !ok {
		next = now
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return time.Time{}, ErrStopped
	}
	replaced := s.dropLocked(sid)
	s.armLocked(sid, rec, next, now)
	s.syncGaugeLocked()
	s.mu.Unlock()

	if err := s.store.Put(ctx, sid, rec); err != nil {
		s.writeFailed(ctx, "timer.register.persist", err)
	}

	logger.Info(ctx, component, "timer.register",
		slog.Int64("session_id", sid),
		slog.String("timer_id", rec.ID),
		slog.String("kind", string(rec.Kind)),
		slog.Time("next_fire", next),
		slog.Bool("replaced", replaced),
	)
	return next, nil
}

// Cancel stops the session's handle and deletes its record. A fire already in
// progress still completes.
func (s *Scheduler) Cancel(ctx context.Context, sid int64) CancelResult {
	s.mu.Lock()
	res := CancelResult{Handle: s.dropLocked(sid)}
	s.syncGaugeLocked()
	s.mu.Unlock()

	existed, err := s.store.Delete(ctx, sid)
	if err != nil {
		s.writeFailed(ctx, "timer.cancel.persist", err)
	}
	res.Record = existed

	logger.Info(ctx, component, "timer.cancel",
		slog.Int64("session_id", sid),
		slog.Bool("handle", res.Handle),
		slog.Bool("record", res.Record),
	)
	return res
}

// Stop disarms every handle and waits for fires in progress. The store is left
// as is so the next Restore picks the timers up again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for sid, h := range s.live {
		h.timer.Stop()
		delete(s.live, sid)
	}
	s.syncGaugeLocked()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lookup returns the live handle of sid.
func (s *Scheduler) Lookup(sid int64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.live[sid]
	if !ok {
		return Entry{}, false
	}
	return Entry{SessionID: sid, Record: h.rec, Next: h.next}, true
}

// Entries lists live handles ordered by next fire time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.live))
	for sid, h := range s.live {
		out = append(out, Entry{SessionID: sid, Record: h.rec, Next: h.next})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Next.Equal(out[j].Next) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Next.Before(out[j].Next)
	})
	return out
}

// Len returns the number of live handles.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Scheduler) armLocked(sid int64, rec Record, next, now time.Time) {
	h := &handle{rec: rec, next: next}
	delay := next.Sub(now)
	if delay < 0 {
		delay = 0
	}
	h.timer = s.clock.AfterFunc(delay, func() { s.fire(sid, h) })
	s.live[sid] = h
}

func (s *Scheduler) dropLocked(sid int64) bool {
	h, ok := s.live[sid]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(s.live, sid)
	return true
}

func (s *Scheduler) fire(sid int64, h *handle) {
	s.mu.Lock()
	// A replaced or cancelled handle may still be called if Stop lost the race.
	if s.stopped || s.live[sid] != h {
		s.mu.Unlock()
		return
	}
	rec := h.rec
	if rec.Kind == KindPeriodic {
		now := s.clock.Now()
		h.next = nextAfter(now, *rec.FirstDueAt, rec.Interval())
		h.timer = s.clock.AfterFunc(h.next.Sub(now), func() { s.fire(sid, h) })
	} else {
		delete(s.live, sid)
	}
	s.syncGaugeLocked()
	ctx := s.base
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	ctx = logger.WithSession(ctx, sid)
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, component, "timer.fire.panic",
				slog.Int64("session_id", sid),
				slog.String("timer_id", rec.ID),
				slog.Any("panic", r),
			)
		}
	}()
	s.firer.Fire(ctx, sid, rec)
}

func (s *Scheduler) syncGaugeLocked() {
	metrics.TimersActive.Set(float64(len(s.live)))
}

func (s *Scheduler) writeFailed(ctx context.Context, event string, err error) {
	metrics.StoreWriteFailures.WithLabelValues(Document).Inc()
	logger.Warn(ctx, component, event,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
}
