package refresher

import (
	"sync"
	"time"

	"github.com/yllada/vpn-client/common"
)

// task is one scheduled callback and the time it becomes due.
type task struct {
	id   int
	when time.Time
	fn   func()
}

// Scheduler runs callbacks at requested times.
//
// Instead of arming one timer per task, it keeps a record of tasks with
// their due timestamps and periodically checks the list. Per-task timers
// pause while the system is suspended, so a task scheduled "in two hours"
// would fire two hours after resume; comparing against the wall clock on
// every check makes overdue tasks fire promptly after resume.
type Scheduler struct {
	mu            sync.Mutex
	checkInterval time.Duration
	tasks         []task
	lastID        int
	running       bool
	stopChan      chan struct{}
	done          chan struct{}

	// now is the time source; tests may replace it.
	now func() time.Time
}

// NewScheduler creates a scheduler with the default check interval.
func NewScheduler() *Scheduler {
	return NewSchedulerWithInterval(common.SchedulerCheckInterval)
}

// NewSchedulerWithInterval creates a scheduler that checks for due tasks
// every checkInterval.
func NewSchedulerWithInterval(checkInterval time.Duration) *Scheduler {
	return &Scheduler{
		checkInterval: checkInterval,
		now:           time.Now,
	}
}

// Start begins running scheduled tasks. Tasks already due run right away.
// Starting a running scheduler returns common.ErrAlreadyRunning.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return common.ErrAlreadyRunning
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop()
	return nil
}

// Stop stops the scheduler and discards all remaining tasks.
// Stopping a stopped scheduler is a no-op. No task runs after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunAfter schedules fn to run after the given delay and returns the task id.
func (s *Scheduler) RunAfter(delay time.Duration, fn func()) int {
	return s.RunAt(s.now().Add(delay), fn)
}

// RunAt schedules fn to run at the given time and returns the task id.
// Tasks run on the scheduler's goroutine, in due-time insertion order.
func (s *Scheduler) RunAt(when time.Time, fn func()) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	s.tasks = append(s.tasks, task{id: s.lastID, when: when, fn: fn})
	return s.lastID
}

// Cancel removes a pending task by id. Cancelling an unknown or already
// executed task is a no-op.
func (s *Scheduler) Cancel(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, t := range s.tasks {
		if t.id == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// Pending returns the number of tasks waiting to run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) runLoop() {
	defer close(s.done)

	// Run anything already due before the first interval elapses.
	s.runDueTasks()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runDueTasks()
		}
	}
}

// runDueTasks pops every task whose timestamp is not in the future and
// runs it on the scheduler goroutine.
func (s *Scheduler) runDueTasks() {
	now := s.now()

	s.mu.Lock()
	var due []task
	remaining := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.when.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	s.tasks = remaining
	s.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}
