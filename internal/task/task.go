package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
)

// maxStepsPerResume bounds how many continuations one task may run inside a
// single Resume call, so a task that keeps yielding already-satisfied waits
// cannot stall the frame.
const maxStepsPerResume = 32

// Continuation is one slice of a task's work. It runs once the task's
// current wait is satisfied and returns the next wait.
type Continuation func() Await

// Await describes what a task is suspended on and what runs next.
type Await struct {
	at     time.Duration
	signal *Signal
	next   Continuation
	done   bool
}

// At suspends until the clock reaches t.
func At(t time.Duration, next Continuation) Await {
	return Await{at: t, next: next}
}

// On suspends until s fires.
func On(s *Signal, next Continuation) Await {
	return Await{signal: s, next: next}
}

// Finish ends the task.
func Finish() Await {
	return Await{done: true}
}

func (a Await) ready(now time.Duration) bool {
	if a.signal != nil {
		return a.signal.Fired()
	}
	return now >= a.at
}

type State int

const (
	Running State = iota
	Finished
	Cancelled
)

// Task is a cooperative routine owned by one entity.
type Task struct {
	id       uint64
	owner    ecs.EntityID
	label    string
	await    Await
	state    State
	onCancel func()
	done     *Signal
}

func (t *Task) Owner() ecs.EntityID { return t.owner }
func (t *Task) Label() string       { return t.label }
func (t *Task) State() State        { return t.state }

// Done fires when the task finishes or is cancelled.
func (t *Task) Done() *Signal { return t.done }

// Queue holds every running task. Single goroutine access only.
type Queue struct {
	clock  *Clock
	tasks  []*Task
	nextID uint64
	log    *zap.Logger
}

func NewQueue(clock *Clock, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{clock: clock, log: log}
}

func (q *Queue) Clock() *Clock { return q.clock }

// Start runs first immediately, up to its first suspension point, the way a
// coroutine starts. onCancel runs if the task is cancelled before finishing.
func (q *Queue) Start(owner ecs.EntityID, label string, first Continuation, onCancel func()) *Task {
	q.nextID++
	t := &Task{
		id:       q.nextID,
		owner:    owner,
		label:    label,
		onCancel: onCancel,
		done:     NewSignal(),
	}
	t.await = first()
	if t.await.done || t.await.next == nil {
		q.finish(t)
		return t
	}
	q.tasks = append(q.tasks, t)
	q.step(t)
	return t
}

// Sleep returns an Await that resumes d after the current clock time.
func (q *Queue) Sleep(d time.Duration, next Continuation) Await {
	return At(q.clock.Now()+d, next)
}

// Resume runs every task whose wait is satisfied, in start order.
func (q *Queue) Resume() {
	if len(q.tasks) == 0 {
		return
	}
	// continuations may start new tasks; they are picked up next frame
	current := append([]*Task(nil), q.tasks...)
	for _, t := range current {
		if t.state == Running {
			q.step(t)
		}
	}
	q.compact()
}

func (q *Queue) step(t *Task) {
	now := q.clock.Now()
	for i := 0; i < maxStepsPerResume; i++ {
		if t.state != Running || !t.await.ready(now) {
			return
		}
		next := t.await.next
		t.await = next()
		if t.await.done || t.await.next == nil {
			q.finish(t)
			return
		}
	}
	q.log.Debug("task yielded too often in one frame",
		zap.String("task", t.label),
		zap.Uint64("owner", uint64(t.owner)))
}

func (q *Queue) finish(t *Task) {
	if t.state != Running {
		return
	}
	t.state = Finished
	t.done.Fire()
}

// Cancel abandons every running task owned by owner. Each task's onCancel
// runs exactly once; its continuations never run again. Returns the number
// of cancelled tasks.
func (q *Queue) Cancel(owner ecs.EntityID) int {
	n := 0
	for _, t := range q.tasks {
		if t.owner != owner || t.state != Running {
			continue
		}
		t.state = Cancelled
		if t.onCancel != nil {
			t.onCancel()
		}
		t.done.Fire()
		n++
	}
	q.compact()
	return n
}

// Running reports whether owner has an unfinished task.
func (q *Queue) Running(owner ecs.EntityID) bool {
	for _, t := range q.tasks {
		if t.owner == owner && t.state == Running {
			return true
		}
	}
	return false
}

// Len returns the number of running tasks.
func (q *Queue) Len() int {
	n := 0
	for _, t := range q.tasks {
		if t.state == Running {
			n++
		}
	}
	return n
}

func (q *Queue) compact() {
	live := q.tasks[:0]
	for _, t := range q.tasks {
		if t.state == Running {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}
	q.tasks = live
}
