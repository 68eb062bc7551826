package engine

import (
	"sync"
	"time"
)

// Scheduler runs deferred engine work. Every task can be cancelled, and
// CancelAll drops everything still pending so a teardown or re-init cannot be
// followed by a stale write.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
	CancelAll()
}

// TimerScheduler schedules work on runtime timers.
type TimerScheduler struct {
	mu     sync.Mutex
	gen    uint64
	nextID uint64
	timers map[uint64]*time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[uint64]*time.Timer)}
}

func (s *TimerScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	gen := s.gen

	// The callback takes the lock, so it cannot observe the map before the
	// timer is registered below.
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		stale := gen != s.gen
		s.mu.Unlock()

		if live && !stale {
			fn()
		}
	})

	return func() { s.cancel(id) }
}

func (s *TimerScheduler) cancel(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending returns the number of tasks that have not yet run or been cancelled.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// ManualScheduler holds tasks until Flush is called. It ignores durations.
type ManualScheduler struct {
	mu     sync.Mutex
	nextID uint64
	tasks  []manualTask
}

type manualTask struct {
	id    uint64
	delay time.Duration
	fn    func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) After(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.tasks = append(s.tasks, manualTask{id: id, delay: d, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, t := range s.tasks {
			if t.id == id {
				s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
				return
			}
		}
	}
}

func (s *ManualScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = nil
}

// Pending returns the number of queued tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Delays returns the requested delay of each queued task, in order.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.delay
	}
	return out
}

// Flush runs the tasks queued at the time of the call, in order. Tasks they
// schedule stay queued for the next Flush. It returns how many ran.
func (s *ManualScheduler) Flush() int {
	s.mu.Lock()
	batch := make(map[uint64]bool, len(s.tasks))
	for _, t := range s.tasks {
		batch[t.id] = true
	}
	s.mu.Unlock()

	ran := 0
	for {
		s.mu.Lock()
		idx := -1
		for i, t := range s.tasks {
			if batch[t.id] {
				idx = i
				break
			}
		}
		if idx < 0 {
			s.mu.Unlock()
			return ran
		}
		t := s.tasks[idx]
		s.tasks = append(s.tasks[:idx:idx], s.tasks[idx+1:]...)
		delete(batch, t.id)
		s.mu.Unlock()

		t.fn()
		ran++
	}
}
