package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"

	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/world"
)

var (
	stylePlayer   = color.Style{color.FgGreen, color.OpBold}
	styleEnemy    = color.Style{color.FgRed, color.OpBold}
	styleFrozen   = color.Style{color.FgBlue, color.OpBold}
	styleWall     = color.Style{color.FgGray}
	styleProp     = color.Style{color.FgCyan}
	styleEmitter  = color.Style{color.FgYellow, color.OpBold}
	styleDisabled = color.Style{color.FgYellow}
	styleGoal     = color.Style{color.FgMagenta, color.OpBold}
	styleBeam     = color.Style{color.FgYellow}
	styleSubtle   = color.Style{color.FgGray, color.OpBold}
)

var arrows = map[grid.Direction]string{
	grid.North: "^",
	grid.East:  ">",
	grid.South: "v",
	grid.West:  "<",
}

// board draws the simulation as a character grid, north at the top.
type board struct {
	sim  *world.Simulation
	last string
}

func newBoard(sim *world.Simulation) *board {
	return &board{sim: sim}
}

// Draw writes the frame to w when it differs from the last one drawn.
func (b *board) Draw(w io.Writer) error {
	frame := b.Frame()
	if frame == b.last {
		return nil
	}
	b.last = frame
	_, err := io.WriteString(w, "\033[H\033[2J"+frame)
	return err
}

// Frame renders the board and status lines. Lines end in CRLF since the
// terminal is in raw mode.
func (b *board) Frame() string {
	ix := b.sim.Index()
	beams := b.beamCells()

	var sb strings.Builder
	lvl := b.sim.Level()
	name := lvl.Name
	if name == "" {
		name = lvl.ID
	}
	sb.WriteString(styleSubtle.Sprint(name) + "\r\n")

	for z := ix.Height() - 1; z >= 0; z-- {
		for x := 0; x < ix.Width(); x++ {
			c := grid.Coord{X: x, Z: z}
			sb.WriteString(b.glyph(c, beams[c]))
			sb.WriteByte(' ')
		}
		sb.WriteString("\r\n")
	}

	sched := b.sim.Scheduler()
	status := fmt.Sprintf("turn %d  %s", sched.Number(), sched.Current())
	if !sched.Settled() {
		status += "  ..."
	}
	if b.sim.Solved() {
		status += "  " + styleGoal.Sprint("SOLVED")
	}
	sb.WriteString(status + "\r\n")
	sb.WriteString(styleSubtle.Sprint("wasd/arrows move  r reset  q quit") + "\r\n")
	return sb.String()
}

func (b *board) glyph(c grid.Coord, lit bool) string {
	var drawn string
	for _, o := range b.sim.Index().EntitiesAt(c) {
		g := b.occupant(o)
		if g == "" {
			continue
		}
		drawn = g
		// movers and solid props win over floor tiles in the same cell
		if kind, _ := b.sim.KindOf(o.ID()); kind.Blocking() {
			break
		}
	}
	if drawn != "" {
		return drawn
	}
	if lit {
		return styleBeam.Sprint("·")
	}
	return styleSubtle.Sprint(".")
}

func (b *board) occupant(o grid.Occupant) string {
	switch v := o.(type) {
	case *world.Player:
		return stylePlayer.Sprint("@")
	case *world.Enemy:
		if v.Frozen() {
			return styleFrozen.Sprint("M")
		}
		return styleEnemy.Sprint("M")
	case *world.Emitter:
		if !v.Enabled() {
			return styleDisabled.Sprint("e")
		}
		return styleEmitter.Sprint("E")
	case *world.Reflector:
		out := v.Outgoing()
		if len(out) == 1 {
			return styleProp.Sprint(arrows[out[0]])
		}
		return styleProp.Sprint("+")
	case *world.TypeChanger:
		return styleProp.Sprint("%")
	case *world.Teleporter:
		return styleProp.Sprint("O")
	case *world.Wall:
		return styleWall.Sprint("#")
	case *world.Goal:
		return styleGoal.Sprint("*")
	}
	return ""
}

// beamCells marks every cell a live beam segment passes through.
func (b *board) beamCells() map[grid.Coord]bool {
	ix := b.sim.Index()
	lit := make(map[grid.Coord]bool)
	limit := ix.Width() + ix.Height()
	for _, segs := range b.sim.Beams() {
		for _, s := range segs {
			end := ix.CellOf(s.End)
			c := ix.CellOf(s.Start)
			for i := 0; i < limit && c != end; i++ {
				c = c.Step(s.Direction)
				if !ix.Contains(c) {
					break
				}
				lit[c] = true
			}
		}
	}
	return lit
}
