package coincidence

import "fmt"

type EdgeType uint8

const (
	Leading EdgeType = iota
	Trailing
)

func (e EdgeType) String() string {
	switch e {
	case Leading:
		return "Leading"
	case Trailing:
		return "Trailing"
	default:
		return "Unknown"
	}
}

type Side uint8

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "Unknown"
	}
}

func ParseSide(s string) (Side, error) {
	switch s {
	case "A", "a":
		return SideA, nil
	case "B", "b":
		return SideB, nil
	}
	return SideA, fmt.Errorf("unknown side %q", s)
}

// RecoFlag marks channel signals breaking the leading/trailing alternation
// of their channel.
type RecoFlag uint8

const (
	FlagUnknown RecoFlag = iota
	FlagGood
	FlagCorrupted
)

func (f RecoFlag) String() string {
	switch f {
	case FlagGood:
		return "Good"
	case FlagCorrupted:
		return "Corrupted"
	default:
		return "Unknown"
	}
}

// ChannelSignal is a single threshold crossing on one readout channel.
// Time is always in picoseconds.
type ChannelSignal struct {
	ChannelID       int
	PMID            int
	Board           int
	Edge            EdgeType
	ThresholdNumber int
	ThresholdValue  float64
	Time            float64
	Flag            RecoFlag
}

// TimeWindow holds the channel signals of one readout window in arrival order.
type TimeWindow struct {
	Index   uint64
	Signals []ChannelSignal
}

// RawRecord is a channel timestamp as delivered by the readout, before the
// channel is resolved against the detector setup. TimeNs is in nanoseconds.
type RawRecord struct {
	Channel   uint32
	Edge      uint8
	Threshold uint8
	TimeNs    float64
}

type RawWindow struct {
	Index   uint64
	Records []RawRecord
}

type ThresholdPair struct {
	Leading  ChannelSignal
	Trailing ChannelSignal
}

func (p ThresholdPair) ToT() float64 {
	return p.Trailing.Time - p.Leading.Time
}

// RawSignal is the multi-threshold pulse of one photosensor. Thresholds is
// indexed by threshold number - 1; a nil entry is an empty slot.
type RawSignal struct {
	PMID           int
	ScinID         int
	Side           Side
	MatrixPosition int
	Thresholds     []*ThresholdPair
}

// Time is the leading edge on the lowest filled threshold.
func (r *RawSignal) Time() float64 {
	for _, pair := range r.Thresholds {
		if pair != nil {
			return pair.Leading.Time
		}
	}
	return 0
}

func (r *RawSignal) ToT() float64 {
	tot := 0.0
	for _, pair := range r.Thresholds {
		if pair != nil {
			tot += pair.ToT()
		}
	}
	return tot
}

func (r *RawSignal) NumThresholds() int {
	n := 0
	for _, pair := range r.Thresholds {
		if pair != nil {
			n++
		}
	}
	return n
}

const MaxMatrixPositions = 4

// MatrixSignal is a closed single-side signal of one scintillator, merged
// over the photosensors reading that side.
type MatrixSignal struct {
	ID     int
	ScinID int
	Side   Side
	PMs    [MaxMatrixPositions]*RawSignal
	Time   float64
	ToT    float64
}

func (m *MatrixSignal) Multiplicity() int {
	n := 0
	for _, raw := range m.PMs {
		if raw != nil {
			n++
		}
	}
	return n
}

type Hit struct {
	SignalA           *MatrixSignal
	SignalB           *MatrixSignal
	ScinID            int
	Theta             float64
	Time              float64
	TimeDiff          float64
	ToT               float64
	Energy            float64
	Position          Vec
	Dummy             bool
	QualityOfTime     float64
	QualityOfTimeDiff float64
	QualityOfEnergy   float64
}

type EventType uint8

const (
	EventUnknown   EventType = 0
	EventTwoGamma  EventType = 1 << 0
	EventThreeHit  EventType = 1 << 1
	EventScattered EventType = 1 << 2
)

func (t EventType) Is(flag EventType) bool {
	return t&flag != 0
}

type Event struct {
	WindowIndex uint64
	Type        EventType
	Hits        []Hit
}

func (e *Event) Multiplicity() int {
	return len(e.Hits)
}

// HitPair is a line of response candidate built from two hits of one event.
// First is the hit on the scintillator with the smaller azimuthal angle.
type HitPair struct {
	WindowIndex       uint64
	First             Hit
	Second            Hit
	TOF               float64
	AngularSeparation float64
	AnnihilationPoint Vec
	ScatterStatistic  float64
	Accepted          bool
}

type TripleClass uint8

const (
	TripleUnclassified TripleClass = iota
	TripleThreeGamma
	TripleBackToBackPlusPrompt
)

func (c TripleClass) String() string {
	switch c {
	case TripleThreeGamma:
		return "three_gamma"
	case TripleBackToBackPlusPrompt:
		return "back_to_back_prompt"
	default:
		return "unclassified"
	}
}

type TripleCandidate struct {
	WindowIndex  uint64
	Hits         [3]int
	Gaps         [3]float64
	TransformedX float64
	TransformedY float64
	Class        TripleClass
}
