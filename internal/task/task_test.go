package task

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
)

func newQueue() (*Queue, *Clock) {
	c := NewClock()
	return NewQueue(c, nil), c
}

func TestQueue_StartRunsUntilFirstSuspension(t *testing.T) {
	q, _ := newQueue()
	owner := ecs.NewEntityID(1, 0)
	steps := 0

	q.Start(owner, "walk", func() Await {
		steps++
		return q.Sleep(100*time.Millisecond, func() Await {
			steps++
			return Finish()
		})
	}, nil)

	testutil.AssertEqual(t, "steps after start", steps, 1)
	testutil.AssertEqual(t, "running", q.Running(owner), true)
}

func TestQueue_ResumeAtTime(t *testing.T) {
	q, c := newQueue()
	owner := ecs.NewEntityID(1, 0)
	resumedAt := time.Duration(-1)

	tk := q.Start(owner, "walk", func() Await {
		return q.Sleep(50*time.Millisecond, func() Await {
			resumedAt = c.Now()
			return Finish()
		})
	}, nil)

	c.Advance(16 * time.Millisecond)
	q.Resume()
	testutil.AssertEqual(t, "early", resumedAt, time.Duration(-1))

	for i := 0; i < 3; i++ {
		c.Advance(16 * time.Millisecond)
		q.Resume()
	}
	testutil.AssertEqual(t, "resumed at", resumedAt, 64*time.Millisecond)
	testutil.AssertEqual(t, "state", tk.State(), Finished)
	testutil.AssertEqual(t, "done fired", tk.Done().Fired(), true)
	testutil.AssertEqual(t, "queue empty", q.Len(), 0)
}

func TestQueue_ResumeOnSignal(t *testing.T) {
	q, c := newQueue()
	sig := NewSignal()
	resumed := false

	q.Start(ecs.NewEntityID(1, 0), "wait", func() Await {
		return On(sig, func() Await {
			resumed = true
			return Finish()
		})
	}, nil)

	c.Advance(time.Second)
	q.Resume()
	testutil.AssertEqual(t, "before fire", resumed, false)

	sig.Fire()
	q.Resume()
	testutil.AssertEqual(t, "after fire", resumed, true)
}

func TestQueue_CancelRunsCleanupOnce(t *testing.T) {
	q, c := newQueue()
	owner := ecs.NewEntityID(2, 0)
	other := ecs.NewEntityID(3, 0)
	cleanups := 0
	continued := false

	q.Start(owner, "walk", func() Await {
		return q.Sleep(time.Millisecond, func() Await {
			continued = true
			return Finish()
		})
	}, func() { cleanups++ })
	q.Start(other, "walk", func() Await {
		return q.Sleep(time.Hour, func() Await { return Finish() })
	}, nil)

	testutil.AssertEqual(t, "cancelled", q.Cancel(owner), 1)
	testutil.AssertEqual(t, "cancel again", q.Cancel(owner), 0)

	c.Advance(time.Second)
	q.Resume()

	testutil.AssertEqual(t, "cleanups", cleanups, 1)
	testutil.AssertEqual(t, "continued", continued, false)
	testutil.AssertEqual(t, "other still running", q.Running(other), true)
}

func TestQueue_ChainedReadyWaitsRunInOneResume(t *testing.T) {
	q, c := newQueue()
	order := []int{}

	q.Start(ecs.NewEntityID(1, 0), "chain", func() Await {
		return q.Sleep(10*time.Millisecond, func() Await {
			order = append(order, 1)
			return At(0, func() Await {
				order = append(order, 2)
				return Finish()
			})
		})
	}, nil)

	c.Advance(10 * time.Millisecond)
	q.Resume()
	testutil.AssertEqual(t, "steps", len(order), 2)
}

func TestQueue_RunawayTaskIsBounded(t *testing.T) {
	q, _ := newQueue()
	calls := 0
	var loop Continuation
	loop = func() Await {
		calls++
		return At(0, loop)
	}

	q.Start(ecs.NewEntityID(1, 0), "spin", loop, nil)
	testutil.AssertEqual(t, "first frame calls", calls, 1+maxStepsPerResume)

	q.Resume()
	testutil.AssertEqual(t, "second frame calls", calls, 1+2*maxStepsPerResume)
}

func TestQueue_ResumesInStartOrder(t *testing.T) {
	q, c := newQueue()
	var order []uint32

	for _, idx := range []uint32{5, 2, 9} {
		id := ecs.NewEntityID(idx, 0)
		q.Start(id, "order", func() Await {
			return q.Sleep(time.Millisecond, func() Await {
				order = append(order, id.Index())
				return Finish()
			})
		}, nil)
	}

	c.Advance(time.Millisecond)
	q.Resume()

	testutil.AssertEqual(t, "count", len(order), 3)
	testutil.AssertEqual(t, "first", order[0], uint32(5))
	testutil.AssertEqual(t, "second", order[1], uint32(2))
	testutil.AssertEqual(t, "third", order[2], uint32(9))
}
