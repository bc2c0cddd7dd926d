package event

import (
	"reflect"
)

type queued struct {
	t  reflect.Type
	ev any
}

// Bus is a double-buffered event bus. Events are delivered in emission order
// at the next SwapBuffers and DispatchAll pair, which the event system runs
// once per frame. Events emitted in phases before it are delivered later in
// the same frame; events emitted in phases after it wait for the next frame.
type Bus struct {
	front    []queued
	back     []queued
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer (delivered at the next swap).
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.back = append(b.back, queued{t: t, ev: event})
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back to front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front[:0]
}

// DispatchAll delivers all front-buffer events to their handlers. Events a
// handler emits land in the back buffer.
func (b *Bus) DispatchAll() int {
	n := 0
	for _, q := range b.front {
		for _, h := range b.handlers[q.t] {
			// Subscribe and Emit key on the same type, so the call is safe.
			reflect.ValueOf(h).Call([]reflect.Value{reflect.ValueOf(q.ev)})
		}
		n++
	}
	b.front = b.front[:0]
	return n
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int { return len(b.back) }

// Drop discards every queued event in both buffers.
func (b *Bus) Drop() {
	b.front = b.front[:0]
	b.back = b.back[:0]
}
