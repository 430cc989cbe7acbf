package coincidence

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

// SpeedOfLight in cm/ps.
const SpeedOfLight = 0.0299792458

func ScatterStatistic(a, b Hit) float64 {
	distance := r3.Norm(r3.Sub(a.Position, b.Position))
	return distance - SpeedOfLight*math.Abs(a.Time-b.Time)
}

// RemoveScatters tests every pair of hits of the event. When the scatter
// statistic of a pair is below the threshold in absolute value, the later
// hit of the pair (the higher index on equal times) is removed. All pairs
// are tested on the full hit list before anything is removed.
func RemoveScatters(hits []Hit, threshold float64) ([]Hit, []Hit) {
	marked := make([]bool, len(hits))
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if math.Abs(ScatterStatistic(hits[i], hits[j])) >= threshold {
				continue
			}
			if hits[i].Time > hits[j].Time {
				marked[i] = true
			} else {
				marked[j] = true
			}
		}
	}

	kept := make([]Hit, 0, len(hits))
	removed := make([]Hit, 0)
	for i, hit := range hits {
		if marked[i] {
			removed = append(removed, hit)
		} else {
			kept = append(kept, hit)
		}
	}
	return kept, removed
}

// orderByTheta returns the pair with the hit on the scintillator with the
// smaller azimuthal angle first.
func orderByTheta(h1, h2 Hit) (Hit, Hit) {
	if h2.Theta < h1.Theta {
		return h2, h1
	}
	return h1, h2
}

// TimeOfFlight is the time of the lower theta hit minus the time of the
// other one.
func TimeOfFlight(h1, h2 Hit) float64 {
	first, second := orderByTheta(h1, h2)
	return first.Time - second.Time
}

// AngularSeparation is the angle in degrees between the transverse
// positions of the two hits.
func AngularSeparation(h1, h2 Hit) float64 {
	u := Vec{X: h1.Position.X, Y: h1.Position.Y}
	v := Vec{X: h2.Position.X, Y: h2.Position.Y}
	norms := r3.Norm(u) * r3.Norm(v)
	if norms == 0 {
		return 0
	}
	cos := r3.Dot(u, v) / norms
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// AnnihilationPoint shifts the middle point between a and b by half the
// flight distance along the a to b direction. b is the later in angle hit.
func AnnihilationPoint(a, b Vec, tof float64) Vec {
	mid := r3.Scale(0.5, r3.Add(a, b))
	direction := r3.Sub(b, a)
	if r3.Norm(direction) == 0 {
		return mid
	}
	return r3.Add(mid, r3.Scale(0.5*tof*SpeedOfLight, r3.Unit(direction)))
}

// CheckLOR builds the hit pair and applies the elliptical cut
// (TOF/a)^2 + ((angle-180)/b)^2 <= 1.
func CheckLOR(h1, h2 Hit, tofHalfWidth, angleHalfWidth float64) HitPair {
	first, second := orderByTheta(h1, h2)
	tof := TimeOfFlight(first, second)
	angle := AngularSeparation(first, second)

	tofTerm := tof / tofHalfWidth
	angleTerm := (angle - 180) / angleHalfWidth
	return HitPair{
		First:             first,
		Second:            second,
		TOF:               tof,
		AngularSeparation: angle,
		AnnihilationPoint: AnnihilationPoint(first.Position, second.Position, tof),
		ScatterStatistic:  ScatterStatistic(first, second),
		Accepted:          tofTerm*tofTerm+angleTerm*angleTerm <= 1,
	}
}

func normalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ClassifyTriple sorts the azimuthal angles of three hits and classifies the
// topology from the two largest gaps between them. The transformed
// coordinates are the sum and difference of the two smallest gaps.
func ClassifyTriple(h1, h2, h3 Hit, tolerance float64) TripleCandidate {
	thetas := []float64{normalizeAngle(h1.Theta), normalizeAngle(h2.Theta), normalizeAngle(h3.Theta)}
	slices.Sort(thetas)
	gaps := []float64{
		thetas[1] - thetas[0],
		thetas[2] - thetas[1],
		360 - thetas[2] + thetas[0],
	}
	slices.Sort(gaps)
	gMax := gaps[2]

	candidate := TripleCandidate{
		Gaps:         [3]float64{gaps[0], gaps[1], gaps[2]},
		TransformedX: gaps[1] + gaps[0],
		TransformedY: gaps[1] - gaps[0],
		Class:        TripleUnclassified,
	}
	switch {
	case math.Abs(gMax-180) < tolerance:
		candidate.Class = TripleBackToBackPlusPrompt
	case gMax < 180-tolerance:
		candidate.Class = TripleThreeGamma
	}
	return candidate
}

// ClassifyTriples classifies every unordered triple of the hits.
func ClassifyTriples(hits []Hit, tolerance float64) []TripleCandidate {
	triples := make([]TripleCandidate, 0)
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			for k := j + 1; k < len(hits); k++ {
				candidate := ClassifyTriple(hits[i], hits[j], hits[k], tolerance)
				candidate.Hits = [3]int{i, j, k}
				triples = append(triples, candidate)
			}
		}
	}
	return triples
}

// ResolvedEvent is an event after the scatter test, with its back to back
// candidate (if exactly two hits survive) and its three hit topologies.
type ResolvedEvent struct {
	Event   Event
	Removed []Hit
	LOR     *HitPair
	Triples []TripleCandidate
}

func ResolveEvent(event Event, p Params, stats *Statistics) ResolvedEvent {
	kept, removed := RemoveScatters(event.Hits, p.ScatterThreshold)
	resolved := ResolvedEvent{
		Event:   Event{WindowIndex: event.WindowIndex, Type: event.Type, Hits: kept},
		Removed: removed,
	}
	if len(removed) > 0 {
		resolved.Event.Type |= EventScattered
		stats.ScatterRemovals.Add(float64(len(removed)))
	}

	if len(event.Hits) >= 3 {
		resolved.Event.Type |= EventThreeHit
		resolved.Triples = ClassifyTriples(event.Hits, p.TripleAngleTolerance)
		for i := range resolved.Triples {
			resolved.Triples[i].WindowIndex = event.WindowIndex
			stats.AddTriple(resolved.Triples[i].Class)
		}
	}

	if len(kept) == 2 {
		lor := CheckLOR(kept[0], kept[1], p.LORTOFHalfWidth, p.LORAngleHalfWidth)
		lor.WindowIndex = event.WindowIndex
		resolved.LOR = &lor
		if lor.Accepted {
			resolved.Event.Type |= EventTwoGamma
			stats.AcceptedLORs.Inc()
		} else {
			stats.RejectedLORs.Inc()
		}
	}
	return resolved
}
