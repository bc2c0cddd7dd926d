package turn

import (
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"

	"github.com/prismgrid/prismgrid/internal/core/ecs"
	"github.com/prismgrid/prismgrid/internal/grid"
)

// fakeParticipant completes inside BeginTurn when completeNow is set.
type fakeParticipant struct {
	id          ecs.EntityID
	primary     Category
	secondary   Category
	hasSec      bool
	sched       *Scheduler
	completeNow bool
	begun       []Turn
	forced      int
}

func (f *fakeParticipant) ID() ecs.EntityID  { return f.id }
func (f *fakeParticipant) Primary() Category { return f.primary }
func (f *fakeParticipant) ForceEnd()         { f.forced++ }

func (f *fakeParticipant) Secondary() (Category, bool) {
	return f.secondary, f.hasSec
}

func (f *fakeParticipant) BeginTurn(t Turn) {
	f.begun = append(f.begun, t)
	if f.completeNow {
		f.sched.CompleteTurn(f.id)
	}
}

func newParticipant(s *Scheduler, idx uint32, c Category) *fakeParticipant {
	return &fakeParticipant{id: ecs.NewEntityID(idx, 0), primary: c, sched: s}
}

func TestCategory_OrderAndParse(t *testing.T) {
	testutil.AssertEqual(t, "player next", Player.Next(), World)
	testutil.AssertEqual(t, "post wraps", Post.Next(), Player)

	c, err := ParseCategory(" Enemy ")
	if err != nil {
		t.Fatalf("ParseCategory: %v", err)
	}
	testutil.AssertEqual(t, "parsed", c, Enemy)

	if _, err := ParseCategory("boss"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestScheduler_RegisterRejectsDuplicates(t *testing.T) {
	s := NewScheduler(nil)
	p := newParticipant(s, 1, Player)

	if err := s.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(p); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate Register() = %v, want %v", err, ErrAlreadyRegistered)
	}
	if err := s.Register(newParticipant(s, 2, Category(9))); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("invalid Register() = %v, want %v", err, ErrInvalidCategory)
	}
}

func TestScheduler_JoinBarrier(t *testing.T) {
	s := NewScheduler(nil)
	player := newParticipant(s, 1, Player)
	a := newParticipant(s, 2, Enemy)
	b := newParticipant(s, 3, Enemy)
	for _, p := range []*fakeParticipant{player, a, b} {
		if err := s.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	testutil.AssertEqual(t, "start player", s.AdvanceWith(grid.East), true)
	testutil.AssertEqual(t, "player began", len(player.begun), 1)
	testutil.AssertEqual(t, "direction", player.begun[0].Direction, grid.East)
	testutil.AssertEqual(t, "blocked", s.Advance(), false)

	s.CompleteTurn(player.id)
	testutil.AssertEqual(t, "world turn", s.Advance(), true)
	testutil.AssertEqual(t, "current", s.Current(), World)

	testutil.AssertEqual(t, "enemy turn", s.Advance(), true)
	testutil.AssertEqual(t, "a began", len(a.begun), 1)
	testutil.AssertEqual(t, "b began", len(b.begun), 1)

	s.CompleteTurn(a.id)
	testutil.AssertEqual(t, "waiting on b", s.Advance(), false)
	testutil.AssertEqual(t, "pending", len(s.Pending()), 1)

	s.CompleteTurn(b.id)
	testutil.AssertEqual(t, "post", s.Advance(), true)
	testutil.AssertEqual(t, "current", s.Current(), Post)
}

func TestScheduler_CompleteTurnIsIdempotent(t *testing.T) {
	s := NewScheduler(nil)
	p := newParticipant(s, 1, Player)
	settles := 0
	s.OnSettled(func(Category) { settles++ })
	if err := s.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Advance()
	s.CompleteTurn(p.id)
	s.CompleteTurn(p.id)
	s.CompleteTurn(ecs.NewEntityID(99, 0))

	testutil.AssertEqual(t, "settles", settles, 1)
	testutil.AssertEqual(t, "settled", s.Settled(), true)
}

func TestScheduler_SynchronousCompletionSettlesOnce(t *testing.T) {
	s := NewScheduler(nil)
	var finished []Category
	s.OnSettled(func(c Category) { finished = append(finished, c) })

	for i := uint32(1); i <= 3; i++ {
		p := newParticipant(s, i, Enemy)
		p.completeNow = true
		if err := s.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	s.Advance() // player, empty
	s.Advance() // world, empty
	s.Advance() // enemy, all complete inside BeginTurn

	testutil.AssertEqual(t, "settle count", len(finished), 3)
	testutil.AssertEqual(t, "last settled", finished[2], Enemy)
	testutil.AssertEqual(t, "settled", s.Settled(), true)
}

func TestScheduler_ForceTurnEnd(t *testing.T) {
	s := NewScheduler(nil)
	p := newParticipant(s, 1, Player)
	if err := s.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.ForceTurnEnd(p.id)
	testutil.AssertEqual(t, "not running, no force", p.forced, 0)

	s.Advance()
	s.ForceTurnEnd(p.id)
	testutil.AssertEqual(t, "forced", p.forced, 1)
	testutil.AssertEqual(t, "running", s.IsRunning(p.id), false)
	testutil.AssertEqual(t, "advance", s.Advance(), true)
}

func TestScheduler_SecondaryCategory(t *testing.T) {
	s := NewScheduler(nil)
	p := newParticipant(s, 1, Enemy)
	p.secondary, p.hasSec = Post, true
	p.completeNow = true
	if err := s.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 4; i++ {
		s.Advance()
	}
	testutil.AssertEqual(t, "turns", len(p.begun), 2)
	testutil.AssertEqual(t, "first", p.begun[0].Category, Enemy)
	testutil.AssertEqual(t, "second", p.begun[1].Category, Post)
}

func TestScheduler_DeregisterWhileWaiting(t *testing.T) {
	s := NewScheduler(nil)
	a := newParticipant(s, 1, Player)
	b := newParticipant(s, 2, Player)
	settled := false
	s.OnSettled(func(Category) { settled = true })
	for _, p := range []*fakeParticipant{a, b} {
		if err := s.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	s.Advance()
	s.CompleteTurn(a.id)
	s.Deregister(b.id)

	testutil.AssertEqual(t, "settled", settled, true)
	testutil.AssertEqual(t, "advance", s.Advance(), true)
}

// hookParticipant runs onBegin once from inside its first BeginTurn and
// always completes synchronously.
type hookParticipant struct {
	fakeParticipant
	onBegin func()
}

func (h *hookParticipant) BeginTurn(t Turn) {
	h.begun = append(h.begun, t)
	if h.onBegin != nil {
		h.onBegin()
		h.onBegin = nil
	}
	h.sched.CompleteTurn(h.id)
}

func TestScheduler_RegisterAndDeregisterDuringFanOut(t *testing.T) {
	s := NewScheduler(nil)
	late := newParticipant(s, 3, Enemy)
	late.completeNow = true
	victim := newParticipant(s, 2, Enemy)
	hook := &hookParticipant{fakeParticipant: *newParticipant(s, 1, Enemy)}
	hook.onBegin = func() {
		if err := s.Register(late); err != nil {
			t.Errorf("Register during fan-out: %v", err)
		}
		s.Deregister(victim.id)
	}
	if err := s.SetOrder([]Category{Enemy}); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	if err := s.Register(hook); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(victim); err != nil {
		t.Fatalf("Register: %v", err)
	}
	settles := 0
	s.OnSettled(func(Category) { settles++ })

	testutil.AssertEqual(t, "advance", s.Advance(), true)

	testutil.AssertEqual(t, "hook begun", len(hook.begun), 1)
	testutil.AssertEqual(t, "victim begun", len(victim.begun), 0)
	testutil.AssertEqual(t, "late begun", len(late.begun), 0)
	testutil.AssertEqual(t, "settled", s.Settled(), true)
	testutil.AssertEqual(t, "settles", settles, 1)
	testutil.AssertEqual(t, "pending", len(s.Pending()), 0)

	// the late registrant joins from the next turn on
	testutil.AssertEqual(t, "next advance", s.Advance(), true)
	testutil.AssertEqual(t, "late begun next turn", len(late.begun), 1)
	testutil.AssertEqual(t, "settles after second", settles, 2)
}

func TestScheduler_Reset(t *testing.T) {
	s := NewScheduler(nil)
	p := newParticipant(s, 1, Player)
	if err := s.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Advance()
	s.Reset()

	testutil.AssertEqual(t, "settled", s.Settled(), true)
	testutil.AssertEqual(t, "current", s.Current(), Player)
	testutil.AssertEqual(t, "next", s.Next(), Player)
	if err := s.Register(p); err != nil {
		t.Errorf("re-register after reset: %v", err)
	}
}

func TestScheduler_SetOrder(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.SetOrder([]Category{Player, Enemy}); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	w := newParticipant(s, 1, World)
	w.completeNow = true
	if err := s.Register(w); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var seen []Category
	s.OnSettled(func(c Category) { seen = append(seen, c) })
	for i := 0; i < 3; i++ {
		s.Advance()
	}

	testutil.AssertEqual(t, "world never runs", len(w.begun), 0)
	testutil.AssertEqual(t, "third wraps", seen[2], Player)

	if err := s.SetOrder([]Category{Player, Player}); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("duplicate order: got %v", err)
	}
}
