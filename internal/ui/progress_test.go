package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/hesam/SketchSharp-sub001/internal/driver"
)

func TestApplyEventTracksModules(t *testing.T) {
	m := NewProgressModel("lowering", []string{"loops", "switch"}, nil).(*progressModel)

	m.applyEvent(driver.Event{Module: "loops", Stage: driver.StageLower, Status: driver.StatusWorking, Total: 4})
	m.applyEvent(driver.Event{Module: "loops", Proc: "Program.Main", Stage: driver.StageLower, Status: driver.StatusDone})
	if got := m.items[0].label(); got != "lowering 1/4" {
		t.Fatalf("label = %q", got)
	}
	if f := m.fraction(); f <= 0 || f >= 0.5 {
		t.Fatalf("fraction = %v", f)
	}

	m.applyEvent(driver.Event{Module: "loops", Stage: driver.StageEncode, Status: driver.StatusDone})
	m.applyEvent(driver.Event{Module: "switch", Stage: driver.StageLower, Status: driver.StatusError, Err: errors.New("boom")})
	m.applyEvent(driver.Event{Module: "unknown", Status: driver.StatusDone})
	if m.items[0].status != "done" || m.items[1].status != "error" {
		t.Fatalf("statuses = %q, %q", m.items[0].status, m.items[1].status)
	}
	if m.fraction() != 1 {
		t.Fatalf("all modules finished, fraction = %v", m.fraction())
	}

	view := m.View()
	for _, want := range []string{"lowering", "loops", "switch", "done", "error"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestTruncateRespectsDisplayWidth(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("short name changed: %q", got)
	}
	got := truncate("Program.Main$lambda$12", 10)
	if runewidth.StringWidth(got) > 10 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q", got)
	}
	if w := runewidth.StringWidth(truncate("模块模块模块", 5)); w > 5 {
		t.Fatalf("wide runes overflow: width %d", w)
	}
}

func TestCtrlCMarksInterrupted(t *testing.T) {
	m := NewProgressModel("lowering", []string{"loops"}, nil)
	if Interrupted(m) {
		t.Fatalf("fresh model reports interrupted")
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil || !Interrupted(next) {
		t.Fatalf("ctrl+c must quit and mark the model interrupted")
	}

	done, _ := NewProgressModel("lowering", nil, nil).Update(doneMsg{})
	if Interrupted(done) {
		t.Fatalf("closing the event stream is not an interruption")
	}
}
