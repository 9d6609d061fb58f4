package trace

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Heartbeat wraps a tracer and watches the procedure spans passing through
// it. Every interval it emits an event naming the procedures still being
// lowered, oldest first, so a stuck procedure shows up by name.
//
// Procedure spans are watched even when the wrapped tracer's level drops
// them; only the events that level accepts are forwarded.
type Heartbeat struct {
	inner    Tracer
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	open   map[uint64]openProc
	ticks  uint64
	stopCh chan struct{}
	done   chan struct{}
}

type openProc struct {
	name    string
	started time.Time
}

// StartHeartbeat starts emitting heartbeats to tracer every interval and
// returns the watching tracer; install it in place of tracer. New does this
// when Config.Heartbeat is set. It returns nil when tracing is off or the
// interval is not positive; Stop accepts nil.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := newHeartbeat(tracer, interval)
	go h.run()
	return h
}

func newHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		inner:    tracer,
		interval: interval,
		now:      time.Now,
		open:     make(map[uint64]openProc),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (h *Heartbeat) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-h.stopCh:
			return
		}
	}
}

// beat emits one heartbeat describing the procedures in flight.
func (h *Heartbeat) beat() {
	now := h.now()
	h.mu.Lock()
	h.ticks++
	seq := h.ticks
	procs := make([]openProc, 0, len(h.open))
	for _, p := range h.open {
		procs = append(procs, p)
	}
	h.mu.Unlock()

	slices.SortFunc(procs, func(a, b openProc) int {
		if c := a.started.Compare(b.started); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	ev := &Event{
		Time:  now,
		Kind:  KindHeartbeat,
		Scope: ScopeDriver,
		GID:   goroutineID(),
		Name:  "heartbeat",
		Extra: map[string]string{"in_flight": strconv.Itoa(len(procs))},
	}
	if len(procs) == 0 {
		ev.Detail = fmt.Sprintf("#%d idle", seq)
	} else {
		parts := make([]string, len(procs))
		for i, p := range procs {
			parts[i] = fmt.Sprintf("%s %s", p.name, now.Sub(p.started).Round(time.Millisecond))
		}
		ev.Detail = fmt.Sprintf("#%d %s", seq, strings.Join(parts, ", "))
		ev.Extra["oldest"] = procs[0].name
	}
	h.inner.Emit(ev)
}

// Emit records procedure span boundaries and forwards ev when the wrapped
// tracer's level accepts it.
func (h *Heartbeat) Emit(ev *Event) {
	if ev.Scope == ScopeProcedure {
		h.mu.Lock()
		switch ev.Kind {
		case KindSpanBegin:
			h.open[ev.SpanID] = openProc{name: ev.Name, started: ev.Time}
		case KindSpanEnd:
			delete(h.open, ev.SpanID)
		}
		h.mu.Unlock()
	}
	if h.inner.Level().ShouldEmit(ev.Scope) {
		h.inner.Emit(ev)
	}
}

// InFlight returns the names of the procedures currently being lowered.
func (h *Heartbeat) InFlight() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.open))
	for _, p := range h.open {
		names = append(names, p.name)
	}
	slices.Sort(names)
	return names
}

func (h *Heartbeat) Flush() error { return h.inner.Flush() }

// Close stops the heartbeat and closes the wrapped tracer.
func (h *Heartbeat) Close() error {
	h.Stop()
	return h.inner.Close()
}

// Level reports at least LevelDetail so procedure spans reach Emit.
func (h *Heartbeat) Level() Level { return max(h.inner.Level(), LevelDetail) }

func (h *Heartbeat) Enabled() bool { return h.inner.Enabled() }

// Stop ends the heartbeat goroutine and waits for it. Stopping twice is a
// no-op.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.mu.Lock()
	select {
	case <-h.stopCh:
		h.mu.Unlock()
		return
	default:
		close(h.stopCh)
	}
	h.mu.Unlock()
	<-h.done
}
