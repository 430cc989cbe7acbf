package coincidence

import (
	"cmp"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

const qualityNotComputed = -1

// GroupByScintillator partitions matrix signals by scintillator. Every
// list is stably sorted by time, which is the precondition of MatchSignals.
func GroupByScintillator(signals []*MatrixSignal) map[int][]*MatrixSignal {
	groups := make(map[int][]*MatrixSignal)
	for _, signal := range signals {
		groups[signal.ScinID] = append(groups[signal.ScinID], signal)
	}
	for _, group := range groups {
		sortSignalsByTime(group)
	}
	return groups
}

func sortSignalsByTime(signals []*MatrixSignal) {
	slices.SortStableFunc(signals, func(a, b *MatrixSignal) int {
		return cmp.Compare(a.Time, b.Time)
	})
}

// MatchSignals pairs the signals of one scintillator with a single greedy
// pass. The earliest remaining signal takes the first opposite side signal
// closer than ABTimeDiff, skipping same side signals on the way. If the
// window is exceeded first, the signal is counted as unmatched and never
// retried. Signals on the reference scintillator or in the reference slot
// become dummy hits.
func MatchSignals(signals []*MatrixSignal, det *Detector, p Params, calib *Calibration, stats *Statistics) []Hit {
	remaining := slices.Clone(signals)
	sortSignalsByTime(remaining)

	hits := make([]Hit, 0, len(remaining)/2)
	for len(remaining) > 0 {
		s := remaining[0]
		scin, ok := det.Scintillators[s.ScinID]
		if !ok {
			scin.ID = s.ScinID
		}

		if isReference(s.ScinID, scin, ok, p) {
			hits = append(hits, CreateDummyHit(s, scin))
			stats.DummyHits.Inc()
			remaining = remaining[1:]
			continue
		}

		match := -1
		for j := 1; j < len(remaining); j++ {
			t := remaining[j]
			if t.Time-s.Time >= p.ABTimeDiff {
				break
			}
			if t.Side != s.Side {
				match = j
				break
			}
		}
		if match < 0 {
			stats.UnmatchedSignals.Inc()
			remaining = remaining[1:]
			continue
		}

		hits = append(hits, CreateHit(s, remaining[match], scin, calib))
		stats.Hits.Inc()
		remaining = slices.Delete(remaining, match, match+1)
		remaining = remaining[1:]
	}
	return hits
}

// MatchAllSignals matches every scintillator in ascending id and returns
// the hits stably sorted by time.
func MatchAllSignals(signals []*MatrixSignal, det *Detector, p Params, calib *Calibration, stats *Statistics) []Hit {
	groups := GroupByScintillator(signals)
	hits := make([]Hit, 0, len(signals)/2)
	for _, scinID := range sortedKeys(groups) {
		hits = append(hits, MatchSignals(groups[scinID], det, p, calib, stats)...)
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Time, b.Time)
	})
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("%d hits from %d signals on %d scintillators", len(hits), len(signals), len(groups))
		logger.Info(message, "hits")
	}
	return hits
}

// CreateHit builds a two sided hit. The arguments may come in any side
// order.
func CreateHit(first, second *MatrixSignal, scin Scintillator, calib *Calibration) Hit {
	a, b := first, second
	if a.Side == SideB {
		a, b = b, a
	}
	timeDiff := b.Time - a.Time
	tot := (a.ToT + b.ToT) / 2
	tot = tot*calib.Multiplicative(scin.ID, CalibTOTFactorA) + calib.Additive(scin.ID, CalibTOTFactorB)

	local := Vec{
		X: scin.X,
		Y: scin.Y,
		Z: scin.Z + timeDiff*calib.Multiplicative(scin.ID, CalibEffVelocity)/2,
	}
	return Hit{
		SignalA:           a,
		SignalB:           b,
		ScinID:            scin.ID,
		Theta:             scin.Theta,
		Time:              (a.Time+b.Time)/2 - calib.Additive(scin.ID, CalibTOFCorrection),
		TimeDiff:          timeDiff,
		ToT:               tot,
		Energy:            tot,
		Position:          rotateXYZ(local, scin.RotX, scin.RotY, scin.RotZ),
		QualityOfTime:     qualityNotComputed,
		QualityOfTimeDiff: qualityNotComputed,
		QualityOfEnergy:   qualityNotComputed,
	}
}

func isReference(scinID int, scin Scintillator, known bool, p Params) bool {
	if p.ReferenceScinID >= 0 && scinID == p.ReferenceScinID {
		return true
	}
	return known && p.ReferenceSlotID >= 0 && scin.SlotID == p.ReferenceSlotID
}

// CreateDummyHit places a single sided hit at the strip center, rotated
// into detector coordinates like two sided hits.
func CreateDummyHit(signal *MatrixSignal, scin Scintillator) Hit {
	hit := Hit{
		ScinID:            scin.ID,
		Theta:             scin.Theta,
		Time:              signal.Time,
		ToT:               signal.ToT,
		Energy:            signal.ToT,
		Position:          scin.DetectorCenter(),
		Dummy:             true,
		QualityOfTime:     qualityNotComputed,
		QualityOfTimeDiff: qualityNotComputed,
		QualityOfEnergy:   qualityNotComputed,
	}
	if signal.Side == SideA {
		hit.SignalA = signal
	} else {
		hit.SignalB = signal
	}
	return hit
}

// rotateXYZ rotates v about the X, Y and Z axes in that order. Angles are
// in degrees.
func rotateXYZ(v Vec, degX, degY, degZ float64) Vec {
	axes := []struct {
		deg  float64
		axis Vec
	}{
		{degX, Vec{X: 1}},
		{degY, Vec{Y: 1}},
		{degZ, Vec{Z: 1}},
	}
	for _, a := range axes {
		if a.deg == 0 {
			continue
		}
		v = r3.NewRotation(a.deg*math.Pi/180, a.axis).Rotate(v)
	}
	return v
}
