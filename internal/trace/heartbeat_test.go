package trace

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestHeartbeatNamesProceduresInFlight(t *testing.T) {
	ring := NewRingTracer(16, LevelPhase)
	h := newHeartbeat(ring, time.Second)
	t0 := time.Unix(100, 0)
	h.now = func() time.Time { return t0.Add(2 * time.Second) }

	proc := func(kind Kind, id uint64, name string, at time.Time) {
		h.Emit(&Event{Time: at, Kind: kind, Scope: ScopeProcedure, SpanID: id, ParentID: 1, Name: name})
	}
	h.Emit(&Event{Time: t0, Kind: KindSpanBegin, Scope: ScopePass, SpanID: 1, Name: "lower:loops"})
	proc(KindSpanBegin, 2, "proc:Program.Slow", t0)
	proc(KindSpanBegin, 3, "proc:Program.Fast", t0.Add(time.Second))

	if got := h.InFlight(); !slices.Equal(got, []string{"proc:Program.Fast", "proc:Program.Slow"}) {
		t.Fatalf("in flight = %v", got)
	}
	proc(KindSpanEnd, 3, "proc:Program.Fast", t0.Add(time.Second))
	h.beat()
	proc(KindSpanEnd, 2, "proc:Program.Slow", t0.Add(2*time.Second))
	h.beat()

	var beats []Event
	events := ring.Snapshot()
	if len(events) == 0 || events[0].Name != "lower:loops" {
		t.Fatalf("pass event was not forwarded")
	}
	for _, ev := range events {
		if ev.Scope == ScopeProcedure {
			t.Fatalf("procedure event %q leaked past the phase level", ev.Name)
		}
		if ev.Kind == KindHeartbeat {
			beats = append(beats, ev)
		}
	}
	if len(beats) != 2 {
		t.Fatalf("got %d heartbeats, want 2", len(beats))
	}
	if beats[0].Detail != "#1 proc:Program.Slow 2s" || beats[0].Extra["oldest"] != "proc:Program.Slow" {
		t.Fatalf("first heartbeat = %q %v", beats[0].Detail, beats[0].Extra)
	}
	if !strings.HasSuffix(beats[1].Detail, "idle") || beats[1].Extra["in_flight"] != "0" {
		t.Fatalf("second heartbeat = %q %v", beats[1].Detail, beats[1].Extra)
	}
}

func TestHeartbeatStopIsIdempotent(t *testing.T) {
	if StartHeartbeat(Nop, time.Second) != nil {
		t.Fatalf("a disabled tracer must not get a heartbeat")
	}
	h := StartHeartbeat(NewRingTracer(4, LevelPhase), time.Hour)
	h.Stop()
	h.Stop()
	var nilBeat *Heartbeat
	nilBeat.Stop()
}

func TestNewWrapsStoreWithHeartbeat(t *testing.T) {
	tr, err := New(Config{Level: LevelPhase, Mode: ModeRing, Heartbeat: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h, ok := tr.(*Heartbeat)
	if !ok {
		t.Fatalf("New returned %T, want *Heartbeat", tr)
	}
	if RingOf(h) == nil {
		t.Fatalf("ring must stay reachable behind the heartbeat")
	}
	if h.Level() != LevelDetail {
		t.Fatalf("heartbeat level = %s, want detail", h.Level())
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
