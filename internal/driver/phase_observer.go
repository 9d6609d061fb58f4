package driver

import "time"

// Stage is a step of lowering one module.
type Stage string

const (
	// StageLower covers lowering procedures.
	StageLower Stage = "lower"
	// StageValidate covers structural validation of the result.
	StageValidate Stage = "validate"
	// StageEncode covers rendering the requested output.
	StageEncode Stage = "encode"
)

// Status captures progress within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	// StatusCached reports a module served from the disk cache.
	StatusCached Status = "cached"
)

// Event reports progress for a module, or for one of its procedures when
// Proc is set.
type Event struct {
	Module  string
	Proc    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	// Total is the number of procedures about to be lowered; set on the
	// module's StageLower/StatusWorking event.
	Total int
}

// Sink consumes progress events. Lowering calls OnEvent from worker
// goroutines, so implementations must be goroutine-safe.
type Sink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- ev
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(ev Event) { f(ev) }

func emit(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(ev)
}
