package main

import (
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/prismgrid/prismgrid/internal/grid"
	"github.com/prismgrid/prismgrid/internal/system"
)

// rawTerminal puts stdin into raw mode so single key presses arrive
// without Enter. restore is a no-op when stdin is not a terminal.
func rawTerminal() (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, old) }, nil
}

// escWait is how long a trailing ESC waits for the rest of an arrow key
// sequence before it counts as a press of Escape.
const escWait = 50 * time.Millisecond

// readKeys decodes key presses from r until it fails, then closes out.
func readKeys(r io.Reader, out chan<- system.Input) {
	defer close(out)
	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		buf := make([]byte, 8)
		for {
			n, err := r.Read(buf)
			if err != nil {
				return
			}
			chunks <- append([]byte(nil), buf[:n]...)
		}
	}()

	var dec keyDecoder
	var wait <-chan time.Time
	send := func(ins []system.Input) {
		for _, in := range ins {
			out <- in
		}
	}
	for {
		select {
		case b, ok := <-chunks:
			if !ok {
				send(dec.Flush())
				return
			}
			send(dec.Decode(b))
			wait = nil
			if dec.Partial() {
				wait = time.After(escWait)
			}
		case <-wait:
			wait = nil
			send(dec.Flush())
		}
	}
}

// keyDecoder maps raw terminal bytes to inputs. Arrow keys arrive as
// ESC [ A..D or ESC O A..D and may be split across reads, so an unfinished
// sequence is held until the next Decode or Flush.
type keyDecoder struct {
	carry []byte
}

// Partial reports whether an unfinished escape sequence is being held.
func (d *keyDecoder) Partial() bool { return len(d.carry) > 0 }

// Flush gives up on a held sequence and reports it as Escape.
func (d *keyDecoder) Flush() []system.Input {
	if len(d.carry) == 0 {
		return nil
	}
	d.carry = d.carry[:0]
	return []system.Input{{Quit: true}}
}

func (d *keyDecoder) Decode(b []byte) []system.Input {
	if len(d.carry) > 0 {
		b = append(d.carry, b...)
		d.carry = nil
	}
	var out []system.Input
	move := func(dir grid.Direction) {
		out = append(out, system.Input{Dir: dir, Move: true})
	}
	for i := 0; i < len(b); i++ {
		switch c := b[i]; c {
		case 0x1b:
			intro := i+1 < len(b) && (b[i+1] == '[' || b[i+1] == 'O')
			if i+1 == len(b) || (intro && i+2 == len(b)) {
				d.carry = append(d.carry[:0], b[i:]...)
				return out
			}
			if intro {
				switch b[i+2] {
				case 'A':
					move(grid.North)
				case 'B':
					move(grid.South)
				case 'C':
					move(grid.East)
				case 'D':
					move(grid.West)
				}
				i += 2
				continue
			}
			out = append(out, system.Input{Quit: true})
		case 'w', 'W', 'k':
			move(grid.North)
		case 's', 'S', 'j':
			move(grid.South)
		case 'd', 'D', 'l':
			move(grid.East)
		case 'a', 'A', 'h':
			move(grid.West)
		case 'r', 'R':
			out = append(out, system.Input{Reset: true})
		case 'q', 'Q', 0x03, 0x04:
			out = append(out, system.Input{Quit: true})
		}
	}
	return out
}
