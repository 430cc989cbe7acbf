package coincidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTimeWindow(t *testing.T) {
	t.Parallel()
	det := testDetector(t)
	p := testParams()
	stats := NewStatistics()

	raw := RawWindow{
		Index: 3,
		Records: []RawRecord{
			{Channel: 111, Edge: uint8(Leading), Threshold: 1, TimeNs: 1.5},
			{Channel: 65, Edge: uint8(Leading), TimeNs: 2},
			{Channel: 999, Edge: uint8(Leading), TimeNs: 2},
			{Channel: 112, Edge: 7, TimeNs: 2},
			{Channel: 112, Edge: uint8(Trailing), Threshold: 1, TimeNs: 2},
			{Channel: 112, Edge: uint8(Trailing), TimeNs: -1e6},
		},
	}
	window := ToTimeWindow(raw, det, nil, p, stats)

	assert.Equal(t, uint64(3), window.Index)
	require.Len(t, window.Signals, 2)
	assert.Equal(t, ChannelSignal{
		ChannelID:       111,
		PMID:            11,
		Edge:            Leading,
		ThresholdNumber: 1,
		ThresholdValue:  80,
		Time:            1500,
		Flag:            FlagGood,
	}, window.Signals[0])
	assert.Equal(t, -1e6, window.Signals[1].Time)
	assert.Equal(t, Trailing, window.Signals[1].Edge)

	assert.Equal(t, 1.0, CounterValue(stats.TriggerRecords))
	assert.Equal(t, 1.0, CounterValue(stats.UnknownChannels))
	assert.Equal(t, 2.0, CounterValue(stats.MalformedRecords))
}

func TestToTimeWindowTriggerFilterDisabled(t *testing.T) {
	t.Parallel()
	det := testDetector(t)
	p := testParams()
	p.TriggerChannelStride = 0
	stats := NewStatistics()

	ToTimeWindow(RawWindow{Records: []RawRecord{{Channel: 65}}}, det, nil, p, stats)
	assert.Equal(t, 0.0, CounterValue(stats.TriggerRecords))
	assert.Equal(t, 1.0, CounterValue(stats.UnknownChannels))
}

func TestToTimeWindowSubtractsChannelOffsets(t *testing.T) {
	t.Parallel()
	det := testDetector(t)
	p := testParams()
	calib := NewCalibration()
	calib.SetChannelOffset(111, 250)
	calib.SetChannelOffset(121, -40)

	raw := RawWindow{Records: []RawRecord{
		{Channel: 111, Edge: uint8(Leading), Threshold: 1, TimeNs: 10},
		{Channel: 121, Edge: uint8(Leading), Threshold: 1, TimeNs: 10},
		{Channel: 131, Edge: uint8(Leading), Threshold: 1, TimeNs: 10},
		{Channel: 111, Edge: uint8(Trailing), Threshold: 1, TimeNs: -1e6},
	}}
	window := ToTimeWindow(raw, det, calib, p, NewStatistics())

	require.Len(t, window.Signals, 4)
	assert.Equal(t, 9750.0, window.Signals[0].Time)
	assert.Equal(t, 10040.0, window.Signals[1].Time)
	assert.Equal(t, 10000.0, window.Signals[2].Time)
	assert.Equal(t, -1e6, window.Signals[3].Time)
}

func TestFlagChannelSignals(t *testing.T) {
	t.Parallel()
	tests := []struct {
		edges string
		flags string
	}{
		{"LTLTLT", "GGGGGG"},
		{"LLT", "CGG"},
		{"LLTT", "CGGC"},
		{"LLLLTTTT", "CCCGGCCC"},
		{"LLTTLTLTTTLLLLTT", "CGGCGGGGCCCCCGGC"},
		{"T", "G"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.edges, func(t *testing.T) {
			t.Parallel()
			// Stored in reverse to check the channel is walked in time order.
			signals := make([]ChannelSignal, len(tt.edges))
			for i, e := range tt.edges {
				signal := ChannelSignal{ChannelID: 111, Time: float64(100 * i)}
				if e == 'T' {
					signal.Edge = Trailing
				}
				signals[len(signals)-1-i] = signal
			}

			corrupted := FlagChannelSignals(signals)

			got := make([]byte, len(signals))
			want := 0
			for i := range signals {
				signal := signals[len(signals)-1-i]
				got[i] = signal.Flag.String()[0]
				if signal.Flag == FlagCorrupted {
					want++
				}
			}
			assert.Equal(t, tt.flags, string(got))
			assert.Equal(t, want, corrupted)
		})
	}
}

func TestToTimeWindowCountsCorruptedEdges(t *testing.T) {
	t.Parallel()
	det := testDetector(t)
	stats := NewStatistics()

	// LL on channel 111, a clean LT on channel 121.
	raw := RawWindow{Records: []RawRecord{
		{Channel: 111, Edge: uint8(Leading), Threshold: 1, TimeNs: 10},
		{Channel: 121, Edge: uint8(Leading), Threshold: 1, TimeNs: 10},
		{Channel: 111, Edge: uint8(Leading), Threshold: 1, TimeNs: 11},
		{Channel: 121, Edge: uint8(Trailing), Threshold: 1, TimeNs: 20},
	}}
	window := ToTimeWindow(raw, det, nil, testParams(), stats)

	require.Len(t, window.Signals, 4)
	assert.Equal(t, FlagCorrupted, window.Signals[0].Flag)
	assert.Equal(t, FlagGood, window.Signals[1].Flag)
	assert.Equal(t, FlagGood, window.Signals[2].Flag)
	assert.Equal(t, FlagGood, window.Signals[3].Flag)
	assert.Equal(t, 1.0, CounterValue(stats.CorruptedEdges))
}

func TestGroupByPMKeepsArrivalOrder(t *testing.T) {
	t.Parallel()
	window := TimeWindow{Signals: []ChannelSignal{
		{PMID: 2, Time: 30},
		{PMID: 1, Time: 20},
		{PMID: 2, Time: 10},
	}}
	groups := GroupByPM(window)

	require.Len(t, groups, 2)
	assert.Equal(t, []ChannelSignal{{PMID: 2, Time: 30}, {PMID: 2, Time: 10}}, groups[2])
	assert.Equal(t, []int{1, 2}, sortedKeys(groups))
}

func edge(th int, e EdgeType, time float64) ChannelSignal {
	return ChannelSignal{ChannelID: 110 + th, PMID: 11, ThresholdNumber: th, Edge: e, Time: time}
}

func TestBuildRawSignals(t *testing.T) {
	t.Parallel()
	det := testDetector(t)
	pm := det.Photosensors[11]

	tests := []struct {
		name       string
		signals    []ChannelSignal
		want       [][2]float64 // threshold 1 and 2 leading times, 0 when empty
		sentinels  float64
		discarded  float64
		unattached float64
	}{
		{
			name: "two pulses paired by arrival order",
			signals: []ChannelSignal{
				edge(1, Leading, 1000),
				edge(2, Leading, 1200),
				edge(1, Trailing, 5000),
				edge(2, Trailing, 4000),
				edge(1, Leading, 90000),
				edge(1, Trailing, 95000),
			},
			want: [][2]float64{{1000, 1200}, {90000, 0}},
		},
		{
			name: "higher threshold too far from the anchor",
			signals: []ChannelSignal{
				edge(1, Leading, 1000),
				edge(1, Trailing, 5000),
				edge(2, Leading, 7000),
				edge(2, Trailing, 8000),
			},
			want:       [][2]float64{{1000, 0}},
			unattached: 1,
		},
		{
			name: "sentinel edges are dropped",
			signals: []ChannelSignal{
				edge(1, Leading, -1e6),
				edge(1, Trailing, 5000),
			},
			sentinels: 1,
		},
		{
			name: "invalid lead trail gaps",
			signals: []ChannelSignal{
				edge(1, Leading, 5000),
				edge(1, Trailing, 5000),
				edge(1, Leading, 10000),
				edge(1, Trailing, 10000+400000),
				edge(1, Leading, 20000),
			},
			discarded: 3,
		},
		{
			name: "higher threshold without anchor",
			signals: []ChannelSignal{
				edge(2, Leading, 1000),
				edge(2, Trailing, 2000),
			},
			unattached: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stats := NewStatistics()
			raws := BuildRawSignals(pm, tt.signals, testParams(), stats)

			require.Len(t, raws, len(tt.want))
			for i, want := range tt.want {
				raw := raws[i]
				assert.Equal(t, 11, raw.PMID)
				assert.Equal(t, 1, raw.ScinID)
				assert.Equal(t, SideA, raw.Side)
				assert.Equal(t, 1, raw.MatrixPosition)
				require.NotNil(t, raw.Thresholds[0])
				assert.Equal(t, want[0], raw.Thresholds[0].Leading.Time)
				assert.Equal(t, want[0], raw.Time())
				if want[1] == 0 {
					assert.Nil(t, raw.Thresholds[1])
				} else {
					require.NotNil(t, raw.Thresholds[1])
					assert.Equal(t, want[1], raw.Thresholds[1].Leading.Time)
				}
			}
			assert.Equal(t, tt.sentinels, CounterValue(stats.SentinelEdges))
			assert.Equal(t, tt.discarded, CounterValue(stats.DiscardedPairs))
			assert.Equal(t, tt.unattached, CounterValue(stats.UnattachedThresholds))
		})
	}
}

func TestRawSignalToT(t *testing.T) {
	t.Parallel()
	raw := RawSignal{Thresholds: []*ThresholdPair{
		{Leading: ChannelSignal{Time: 100}, Trailing: ChannelSignal{Time: 400}},
		nil,
		{Leading: ChannelSignal{Time: 150}, Trailing: ChannelSignal{Time: 250}},
	}}
	assert.Equal(t, 400.0, raw.ToT())
	assert.Equal(t, 100.0, raw.Time())
	assert.Equal(t, 2, raw.NumThresholds())
}

func TestBuildAllRawSignalsOrdersByPhotosensor(t *testing.T) {
	t.Parallel()
	det := testDetector(t)
	window := TimeWindow{Signals: []ChannelSignal{
		{ChannelID: 231, PMID: 23, ThresholdNumber: 1, Edge: Leading, Time: 10},
		{ChannelID: 111, PMID: 11, ThresholdNumber: 1, Edge: Leading, Time: 20},
		{ChannelID: 231, PMID: 23, ThresholdNumber: 1, Edge: Trailing, Time: 110},
		{ChannelID: 111, PMID: 11, ThresholdNumber: 1, Edge: Trailing, Time: 120},
	}}
	raws := BuildAllRawSignals(window, det, testParams(), NewStatistics())

	require.Len(t, raws, 2)
	assert.Equal(t, 11, raws[0].PMID)
	assert.Equal(t, 23, raws[1].PMID)
	assert.Equal(t, SideB, raws[1].Side)
}
