package coincidence

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScatterStatisticSymmetric(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		a := testHit(1, 0, rng.Float64()*1e4, Vec{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 50})
		b := testHit(2, 0, rng.Float64()*1e4, Vec{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 50})
		assert.Equal(t, ScatterStatistic(a, b), ScatterStatistic(b, a))
	}
}

// scatterTriplet returns three hits whose scatter statistics are 5 for
// (0, 1), 200 for (0, 2) and 210 for (1, 2).
func scatterTriplet() []Hit {
	t1 := 2.5 / SpeedOfLight
	return []Hit{
		testHit(1, 0, 0, Vec{}),
		testHit(2, 90, t1, Vec{X: 7.5}),
		testHit(3, 180, 1000, Vec{X: -(200 + 1000*SpeedOfLight)}),
	}
}

func TestRemoveScatters(t *testing.T) {
	t.Parallel()
	hits := scatterTriplet()
	require.InDelta(t, 5, ScatterStatistic(hits[0], hits[1]), 1e-9)
	require.InDelta(t, 200, ScatterStatistic(hits[0], hits[2]), 1e-9)
	require.InDelta(t, 210, ScatterStatistic(hits[1], hits[2]), 1e-9)

	kept, removed := RemoveScatters(hits, 40)

	assert.Equal(t, []Hit{hits[0], hits[2]}, kept)
	assert.Equal(t, []Hit{hits[1]}, removed)
}

func TestRemoveScattersTies(t *testing.T) {
	t.Parallel()
	hits := []Hit{
		testHit(1, 0, 100, Vec{}),
		testHit(2, 0, 100, Vec{X: 1}),
	}
	kept, removed := RemoveScatters(hits, 40)
	assert.Equal(t, []Hit{hits[0]}, kept)
	assert.Equal(t, []Hit{hits[1]}, removed)

	// The later hit is removed even when it comes first.
	hits[0].Time = 200
	kept, removed = RemoveScatters(hits, 40)
	assert.Equal(t, []Hit{hits[1]}, kept)
	assert.Equal(t, []Hit{hits[0]}, removed)
}

func TestRemoveScattersDisabled(t *testing.T) {
	t.Parallel()
	hits := scatterTriplet()
	kept, removed := RemoveScatters(hits, 0)
	assert.Equal(t, hits, kept)
	assert.Empty(t, removed)
}

func TestCheckLOR(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		first    Hit
		second   Hit
		tof      float64
		angle    float64
		accepted bool
	}{
		{
			name:     "back to back",
			first:    testHit(1, 0, 100, Vec{X: 50}),
			second:   testHit(3, 180, 0, Vec{X: -50}),
			tof:      100,
			angle:    180,
			accepted: true,
		},
		{
			name:     "sign convention does not depend on argument order",
			first:    testHit(3, 180, 0, Vec{X: -50}),
			second:   testHit(1, 0, 100, Vec{X: 50}),
			tof:      100,
			angle:    180,
			accepted: true,
		},
		{
			name:   "tof outside the ellipse",
			first:  testHit(1, 0, 3000, Vec{X: 50}),
			second: testHit(3, 180, 0, Vec{X: -50}),
			tof:    3000,
			angle:  180,
		},
		{
			name:   "perpendicular hits",
			first:  testHit(1, 0, 0, Vec{X: 50}),
			second: testHit(2, 90, 0, Vec{Y: 50}),
			tof:    0,
			angle:  90,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lor := CheckLOR(tt.first, tt.second, 2000, 15)
			assert.InDelta(t, tt.tof, lor.TOF, 1e-9)
			assert.InDelta(t, tt.angle, lor.AngularSeparation, 1e-9)
			assert.Equal(t, tt.accepted, lor.Accepted)
			assert.LessOrEqual(t, lor.First.Theta, lor.Second.Theta)
			assert.Equal(t, TimeOfFlight(tt.first, tt.second), lor.TOF)
			assert.Equal(t, TimeOfFlight(tt.second, tt.first), lor.TOF)
		})
	}
}

func TestCheckLORIsElliptical(t *testing.T) {
	t.Parallel()
	first := testHit(1, 0, 1600, Vec{X: 50})
	second := testHit(3, 180, 0, Vec{X: -50})
	lor := CheckLOR(first, second, 2000, 15)
	assert.True(t, lor.Accepted)

	// 0.8 of both half widths passes two rectangular cuts but not the ellipse.
	tilted := testHit(3, 168, 0, rotateXYZ(Vec{X: 50}, 0, 0, 168))
	lor = CheckLOR(first, tilted, 2000, 15)
	assert.InDelta(t, 1600, lor.TOF, 1e-9)
	assert.InDelta(t, 168, lor.AngularSeparation, 1e-9)
	assert.False(t, lor.Accepted)
}

func TestAnnihilationPoint(t *testing.T) {
	t.Parallel()
	a := Vec{}
	b := Vec{X: 10}

	point := AnnihilationPoint(a, b, 100)
	assert.InDelta(t, 5+0.5*100*SpeedOfLight, point.X, 1e-9)
	assert.InDelta(t, 0, point.Y, 1e-9)

	assert.Equal(t, Vec{X: 5}, AnnihilationPoint(a, b, 0))
	assert.Equal(t, a, AnnihilationPoint(a, a, 100))
}

func TestClassifyTriple(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		thetas [3]float64
		gaps   [3]float64
		x, y   float64
		class  TripleClass
	}{
		{"symmetric three gamma", [3]float64{0, 120, 240}, [3]float64{120, 120, 120}, 240, 0, TripleThreeGamma},
		{"back to back plus prompt", [3]float64{180, 0, 90}, [3]float64{90, 90, 180}, 180, 0, TripleBackToBackPlusPrompt},
		{"gap wraps around 360", [3]float64{350, 10, 175}, [3]float64{20, 165, 175}, 185, 145, TripleBackToBackPlusPrompt},
		{"clustered hits", [3]float64{0, 10, 20}, [3]float64{10, 10, 340}, 20, 0, TripleUnclassified},
		{"uneven small gaps", [3]float64{0, 30, 100}, [3]float64{30, 70, 260}, 100, 40, TripleUnclassified},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			candidate := ClassifyTriple(
				Hit{Theta: tt.thetas[0]}, Hit{Theta: tt.thetas[1]}, Hit{Theta: tt.thetas[2]}, 10)
			assert.Equal(t, tt.gaps, candidate.Gaps)
			assert.Equal(t, tt.class, candidate.Class)
			assert.Equal(t, tt.x, candidate.TransformedX)
			assert.Equal(t, tt.y, candidate.TransformedY)
		})
	}
}

func TestClassifyTriplesEnumeratesCombinations(t *testing.T) {
	t.Parallel()
	hits := []Hit{{Theta: 0}, {Theta: 90}, {Theta: 180}, {Theta: 270}}
	triples := ClassifyTriples(hits, 10)

	require.Len(t, triples, 4)
	assert.Equal(t, [3]int{0, 1, 2}, triples[0].Hits)
	assert.Equal(t, [3]int{1, 2, 3}, triples[3].Hits)
}

func TestResolveEvent(t *testing.T) {
	t.Parallel()
	p := DefaultParams()
	p.ScatterThreshold = 40
	stats := NewStatistics()

	event := Event{WindowIndex: 6, Hits: scatterTriplet()}
	resolved := ResolveEvent(event, p, stats)

	assert.Len(t, resolved.Event.Hits, 2)
	assert.Len(t, resolved.Removed, 1)
	assert.True(t, resolved.Event.Type.Is(EventScattered))
	assert.True(t, resolved.Event.Type.Is(EventThreeHit))
	require.NotNil(t, resolved.LOR)
	assert.Equal(t, uint64(6), resolved.LOR.WindowIndex)
	require.Len(t, resolved.Triples, 1)
	assert.Equal(t, uint64(6), resolved.Triples[0].WindowIndex)

	assert.Equal(t, 1.0, CounterValue(stats.ScatterRemovals))
	assert.Equal(t, 1.0, CounterValue(stats.AcceptedLORs)+CounterValue(stats.RejectedLORs))
	assert.Equal(t, 1.0, stats.TripleCount(resolved.Triples[0].Class))
	assert.Len(t, event.Hits, 3)
}

func TestResolveEventBackToBack(t *testing.T) {
	t.Parallel()
	stats := NewStatistics()
	event := Event{Hits: []Hit{
		testHit(1, 0, 100, Vec{X: 50}),
		testHit(3, 180, 0, Vec{X: -50}),
	}}
	resolved := ResolveEvent(event, DefaultParams(), stats)

	require.NotNil(t, resolved.LOR)
	assert.True(t, resolved.LOR.Accepted)
	assert.True(t, resolved.Event.Type.Is(EventTwoGamma))
	assert.False(t, resolved.Event.Type.Is(EventThreeHit))
	assert.Empty(t, resolved.Triples)
	assert.Equal(t, 1.0, CounterValue(stats.AcceptedLORs))
}
