package ticket

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// State is the lifecycle position of a channel's autoclose task.
type State int

const (
	StateNone State = iota
	StateScheduled
	StateFired
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateScheduled:
		return "scheduled"
	case StateFired:
		return "fired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Task describes a scheduled autoclose.
type Task struct {
	ChannelID   snowflake.ID
	Generation  uint64
	Delay       time.Duration
	ScheduledAt time.Time
	FireAt      time.Time
}

// FireFunc runs when a task's delay elapses uninterrupted.
type FireFunc func(Task)

type pending struct {
	task  Task
	timer Timer
	fire  FireFunc
}

// Scheduler keeps at most one pending autoclose task per channel.
// Every task carries a generation number; a timer whose generation is no
// longer the live one for its channel does nothing when it goes off.
type Scheduler struct {
	clock  Clock
	logger *zap.Logger

	mu         sync.Mutex
	tasks      map[snowflake.ID]*pending
	generation uint64
	stopped    bool
	running    sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(clock Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		logger: logger.Named("autoclose"),
		tasks:  make(map[snowflake.ID]*pending),
	}
}

// Schedule starts a task for the channel, cancelling any pending one first.
func (s *Scheduler) Schedule(channelID snowflake.ID, delay time.Duration, fire FireFunc) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return Task{}, false
	}

	s.cancelLocked(channelID)

	return s.scheduleLocked(channelID, delay, fire), true
}

// ScheduleIfAbsent starts a task only when the channel has none pending.
// The check and the scheduling happen atomically.
func (s *Scheduler) ScheduleIfAbsent(channelID snowflake.ID, delay time.Duration, fire FireFunc) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return Task{}, false
	}

	if p, ok := s.tasks[channelID]; ok {
		return p.task, false
	}

	return s.scheduleLocked(channelID, delay, fire), true
}

// Cancel stops the channel's pending task. Cancelling nothing is a no-op.
func (s *Scheduler) Cancel(channelID snowflake.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelLocked(channelID)
}

// Get returns the channel's pending task.
func (s *Scheduler) Get(channelID snowflake.ID) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.tasks[channelID]
	if !ok {
		return Task{}, false
	}

	return p.task, true
}

// State reports whether the channel has a pending task.
func (s *Scheduler) State(channelID snowflake.ID) State {
	if _, ok := s.Get(channelID); ok {
		return StateScheduled
	}

	return StateNone
}

// Pending returns the number of pending tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}

// Shutdown cancels every pending task, refuses new ones and waits for
// callbacks that already started.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.stopped = true

	count := len(s.tasks)
	for channelID := range s.tasks {
		s.cancelLocked(channelID)
	}
	s.mu.Unlock()

	s.running.Wait()

	s.logger.Info("Autoclose scheduler stopped", zap.Int("cancelled", count))
}

func (s *Scheduler) scheduleLocked(channelID snowflake.ID, delay time.Duration, fire FireFunc) Task {
	s.generation++
	now := s.clock.Now()

	task := Task{
		ChannelID:   channelID,
		Generation:  s.generation,
		Delay:       delay,
		ScheduledAt: now,
		FireAt:      now.Add(delay),
	}

	generation := s.generation
	p := &pending{task: task, fire: fire}
	s.tasks[channelID] = p
	p.timer = s.clock.AfterFunc(delay, func() {
		s.expire(channelID, generation)
	})

	s.logger.Debug("Autoclose task transition",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("generation", generation),
		zap.Stringer("state", StateScheduled),
		zap.Time("fireAt", task.FireAt))

	return task
}

func (s *Scheduler) cancelLocked(channelID snowflake.ID) bool {
	p, ok := s.tasks[channelID]
	if !ok {
		return false
	}

	p.timer.Stop()
	delete(s.tasks, channelID)

	s.logger.Debug("Autoclose task transition",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("generation", p.task.Generation),
		zap.Stringer("state", StateCancelled))

	return true
}

// expire runs the task if it is still the live one for its channel.
// The task leaves the table before its callback runs, so it ends in
// StateNone even when the callback fails.
func (s *Scheduler) expire(channelID snowflake.ID, generation uint64) {
	s.mu.Lock()
	p, ok := s.tasks[channelID]
	if s.stopped || !ok || p.task.Generation != generation {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, channelID)
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()

	s.logger.Debug("Autoclose task transition",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("generation", generation),
		zap.Stringer("state", StateFired))

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Autoclose task panicked",
				zap.Uint64("channelID", uint64(channelID)),
				zap.Any("panic", r))
		}
	}()

	p.fire(p.task)
}
