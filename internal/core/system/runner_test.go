package system

import (
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }

func (r recorder) Update(time.Duration) {
	*r.log = append(*r.log, r.name)
}

func TestRunner_PhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"cleanup", PhaseCleanup, &log})
	r.Register(recorder{"turn", PhaseTurn, &log})
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"turn2", PhaseTurn, &log})

	r.Tick(time.Millisecond)

	testutil.AssertEqual(t, "count", len(log), 4)
	testutil.AssertEqual(t, "first", log[0], "input")
	testutil.AssertEqual(t, "second", log[1], "turn")
	testutil.AssertEqual(t, "third", log[2], "turn2")
	testutil.AssertEqual(t, "last", log[3], "cleanup")
}
