package coincidence

import "math"

type AccumulatorState uint8

const (
	AccumulatorEmpty AccumulatorState = iota
	AccumulatorAccumulating
)

func (s AccumulatorState) String() string {
	switch s {
	case AccumulatorEmpty:
		return "Empty"
	case AccumulatorAccumulating:
		return "Accumulating"
	default:
		return "Unknown"
	}
}

// EventAccumulator groups time sorted hits of one window into events. It
// belongs to a single call and is never shared between windows.
type EventAccumulator struct {
	state           AccumulatorState
	windowIndex     uint64
	eventTimeWindow float64
	minMultiplicity int
	hits            []Hit
}

func NewEventAccumulator(windowIndex uint64, p Params) *EventAccumulator {
	return &EventAccumulator{
		state:           AccumulatorEmpty,
		windowIndex:     windowIndex,
		eventTimeWindow: p.EventTimeWindow,
		minMultiplicity: p.MinEventMultiplicity,
	}
}

func (a *EventAccumulator) State() AccumulatorState {
	return a.state
}

// Add appends the hit to the current event while it lies within the event
// time window of the first hit. Otherwise the current event is closed and
// returned if it reaches the minimum multiplicity, and the hit starts a new
// event.
func (a *EventAccumulator) Add(hit Hit) (Event, bool) {
	if a.state == AccumulatorEmpty {
		a.hits = []Hit{hit}
		a.state = AccumulatorAccumulating
		return Event{}, false
	}
	if hit.Time-a.hits[0].Time < a.eventTimeWindow {
		a.hits = append(a.hits, hit)
		return Event{}, false
	}
	event, ok := a.close()
	a.hits = []Hit{hit}
	a.state = AccumulatorAccumulating
	return event, ok
}

// Flush closes the current event at the end of the window. Flushing an
// empty accumulator does nothing.
func (a *EventAccumulator) Flush() (Event, bool) {
	if a.state == AccumulatorEmpty {
		return Event{}, false
	}
	event, ok := a.close()
	a.hits = nil
	a.state = AccumulatorEmpty
	return event, ok
}

func (a *EventAccumulator) close() (Event, bool) {
	if len(a.hits) < a.minMultiplicity {
		return Event{}, false
	}
	return Event{WindowIndex: a.windowIndex, Hits: a.hits}, true
}

// BuildEvents groups the time sorted hits of one window. The event in
// progress at the end of the window is flushed, not carried over.
func BuildEvents(windowIndex uint64, hits []Hit, p Params) []Event {
	acc := NewEventAccumulator(windowIndex, p)
	events := make([]Event, 0)
	for _, hit := range hits {
		if event, ok := acc.Add(hit); ok {
			events = append(events, event)
		}
	}
	if event, ok := acc.Flush(); ok {
		events = append(events, event)
	}
	return events
}

// BuildPairEvents takes consecutive hits two at a time. A pair closer than
// the event time window and on different scintillators becomes an event;
// otherwise the scan advances by a single hit.
func BuildPairEvents(windowIndex uint64, hits []Hit, p Params) []Event {
	events := make([]Event, 0)
	if p.MinEventMultiplicity > 2 {
		return events
	}
	for i := 0; i+1 < len(hits); {
		first, second := hits[i], hits[i+1]
		if math.Abs(second.Time-first.Time) < p.EventTimeWindow && first.ScinID != second.ScinID {
			events = append(events, Event{
				WindowIndex: windowIndex,
				Hits:        []Hit{first, second},
			})
			i += 2
			continue
		}
		i++
	}
	return events
}
