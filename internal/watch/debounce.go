package watch

import (
	"context"
	"time"
)

// fired is sent when a path's timer expires. gen identifies which arming
// of the timer fired.
type fired struct {
	name string
	gen  uint64
}

type pendingFile struct {
	timer *time.Timer
	gen   uint64
}

// debouncer tracks one timer per path. It is owned by the Run loop and is
// not safe for concurrent use; only the timer callbacks touch ready.
type debouncer struct {
	ctx     context.Context
	settle  time.Duration
	ready   chan fired
	pending map[string]pendingFile
	seq     uint64
}

func newDebouncer(ctx context.Context, settle time.Duration) *debouncer {
	return &debouncer{
		ctx:     ctx,
		settle:  settle,
		ready:   make(chan fired, 64),
		pending: make(map[string]pendingFile),
	}
}

// touch (re)starts the settle period for name. Every call arms a fresh
// timer with a new generation, so a timer that already fired and is
// waiting in ready becomes stale.
func (d *debouncer) touch(name string) {
	if p, ok := d.pending[name]; ok {
		p.timer.Stop()
	}
	d.seq++
	f := fired{name: name, gen: d.seq}
	d.pending[name] = pendingFile{
		gen: f.gen,
		timer: time.AfterFunc(d.settle, func() {
			select {
			case d.ready <- f:
			case <-d.ctx.Done():
			}
		}),
	}
}

// forget drops name without processing it.
func (d *debouncer) forget(name string) {
	if p, ok := d.pending[name]; ok {
		p.timer.Stop()
		delete(d.pending, name)
	}
}

// settled reports whether f is the latest arming for its path and, if so,
// stops tracking the path.
func (d *debouncer) settled(f fired) bool {
	p, ok := d.pending[f.name]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.name)
	return true
}

func (d *debouncer) stop() {
	for name := range d.pending {
		d.forget(name)
	}
}
