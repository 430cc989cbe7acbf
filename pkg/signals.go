package coincidence

import (
	"cmp"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// ToTimeWindow resolves the records of a raw window against the detector
// setup. Times are scaled from ns to ps and the channel offset is
// subtracted, except for the no-signal sentinel which is kept as is.
// Records on trigger channels, on unknown channels or with out of range
// fields are counted and skipped. The signals are then flagged with
// FlagChannelSignals.
func ToTimeWindow(raw RawWindow, det *Detector, calib *Calibration, p Params, stats *Statistics) TimeWindow {
	window := TimeWindow{
		Index:   raw.Index,
		Signals: make([]ChannelSignal, 0, len(raw.Records)),
	}
	for i, rec := range raw.Records {
		if p.TriggerChannelStride > 0 && int(rec.Channel)%p.TriggerChannelStride == 0 {
			stats.TriggerRecords.Inc()
			continue
		}
		channel, ok := det.Channels[int(rec.Channel)]
		if !ok {
			stats.UnknownChannels.Inc()
			if configuration.Verbosity > 1 {
				err := &ErrUnknownChannel{Channel: int(rec.Channel)}
				message := fmt.Sprintf("Skipping record %d in window %d: %v", i, raw.Index, err)
				logger.Info(message, "signals")
			}
			continue
		}
		if reason := checkRecord(rec, channel, p); reason != "" {
			stats.MalformedRecords.Inc()
			err := &ErrMalformedRecord{Window: raw.Index, Record: i, Reason: reason}
			logger.Error(err.Error())
			continue
		}

		time := rec.TimeNs
		if time != p.NoSignalValue {
			time = time*1000 - calib.ChannelOffset(channel.ID)
		}
		window.Signals = append(window.Signals, ChannelSignal{
			ChannelID:       channel.ID,
			PMID:            channel.PMID,
			Board:           channel.Board,
			Edge:            EdgeType(rec.Edge),
			ThresholdNumber: channel.ThresholdNumber,
			ThresholdValue:  channel.ThresholdValue,
			Time:            time,
		})
	}
	if corrupted := FlagChannelSignals(window.Signals); corrupted > 0 {
		stats.CorruptedEdges.Add(float64(corrupted))
		if configuration.Verbosity > 1 {
			message := fmt.Sprintf("Window %d: %d signals out of the leading/trailing sequence", raw.Index, corrupted)
			logger.Info(message, "signals")
		}
	}
	return window
}

// FlagChannelSignals walks every channel in time order and flags the
// signals that break the LTLT alternation, returning how many were marked
// corrupted. In a leading-leading sequence the first leading is corrupted;
// in a trailing-trailing sequence the second trailing is, and so is the
// first unless an earlier pair already marked it good. Examples:
//
//	LTLTLT -> GGGGGG
//	LLTT   -> CGGC
//	LLLLTTTT -> CCCGGCCC
//
// The flags are diagnostic, pairing does not look at them.
func FlagChannelSignals(signals []ChannelSignal) int {
	byChannel := make(map[int][]int)
	for i, signal := range signals {
		byChannel[signal.ChannelID] = append(byChannel[signal.ChannelID], i)
	}

	corrupted := 0
	for _, indices := range byChannel {
		slices.SortStableFunc(indices, func(a, b int) int {
			return cmp.Compare(signals[a].Time, signals[b].Time)
		})
		for n, i := range indices {
			first := &signals[i]
			if n == len(indices)-1 {
				if first.Flag == FlagUnknown {
					first.Flag = FlagGood
				}
				break
			}
			second := &signals[indices[n+1]]
			switch {
			case first.Edge == Leading && second.Edge == Trailing:
				first.Flag = FlagGood
				second.Flag = FlagGood
			case first.Edge == Trailing && second.Edge == Leading:
				if first.Flag == FlagUnknown {
					first.Flag = FlagGood
				}
			case first.Edge == Leading && second.Edge == Leading:
				first.Flag = FlagCorrupted
			case first.Edge == Trailing && second.Edge == Trailing:
				if first.Flag == FlagUnknown {
					first.Flag = FlagCorrupted
				}
				second.Flag = FlagCorrupted
			}
		}
	}
	for _, signal := range signals {
		if signal.Flag == FlagCorrupted {
			corrupted++
		}
	}
	return corrupted
}

func checkRecord(rec RawRecord, channel Channel, p Params) string {
	if EdgeType(rec.Edge) != Leading && EdgeType(rec.Edge) != Trailing {
		return fmt.Sprintf("unknown edge type %d", rec.Edge)
	}
	if rec.Threshold != 0 && int(rec.Threshold) != channel.ThresholdNumber {
		return fmt.Sprintf("threshold %d does not match channel %d threshold %d", rec.Threshold, channel.ID, channel.ThresholdNumber)
	}
	if channel.ThresholdNumber < 1 || channel.ThresholdNumber > p.NumThresholds {
		return fmt.Sprintf("threshold number %d out of range", channel.ThresholdNumber)
	}
	if math.IsNaN(rec.TimeNs) || math.IsInf(rec.TimeNs, 0) {
		return "time is not a finite number"
	}
	return ""
}

// GroupByPM partitions the window signals by photosensor keeping the
// arrival order inside every group.
func GroupByPM(window TimeWindow) map[int][]ChannelSignal {
	groups := make(map[int][]ChannelSignal)
	for _, signal := range window.Signals {
		groups[signal.PMID] = append(groups[signal.PMID], signal)
	}
	return groups
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// BuildRawSignals assembles the multi-threshold pulses of one photosensor.
// On every threshold the i-th leading edge is paired with the i-th trailing
// edge. Threshold 1 pairs anchor the pulses; each higher threshold attaches
// the first unused pair whose leading edge lies within EdgeMaxTime of the
// anchor.
func BuildRawSignals(pm Photosensor, signals []ChannelSignal, p Params, stats *Statistics) []*RawSignal {
	leads := make([][]ChannelSignal, p.NumThresholds)
	trails := make([][]ChannelSignal, p.NumThresholds)
	for _, signal := range signals {
		if signal.ThresholdNumber < 1 || signal.ThresholdNumber > p.NumThresholds {
			stats.MalformedRecords.Inc()
			continue
		}
		th := signal.ThresholdNumber - 1
		switch signal.Edge {
		case Leading:
			leads[th] = append(leads[th], signal)
		case Trailing:
			trails[th] = append(trails[th], signal)
		default:
			stats.MalformedRecords.Inc()
		}
	}

	pairs := make([][]ThresholdPair, p.NumThresholds)
	for th := 0; th < p.NumThresholds; th++ {
		pairs[th] = pairEdges(leads[th], trails[th], p, stats)
	}

	raws := make([]*RawSignal, 0, len(pairs[0]))
	for i := range pairs[0] {
		raw := &RawSignal{
			PMID:           pm.ID,
			ScinID:         pm.ScinID,
			Side:           pm.Side,
			MatrixPosition: pm.MatrixPosition,
			Thresholds:     make([]*ThresholdPair, p.NumThresholds),
		}
		raw.Thresholds[0] = &pairs[0][i]
		raws = append(raws, raw)
	}

	for th := 1; th < p.NumThresholds; th++ {
		used := make([]bool, len(pairs[th]))
		for _, raw := range raws {
			anchor := raw.Thresholds[0].Leading.Time
			for j := range pairs[th] {
				if used[j] {
					continue
				}
				if math.Abs(pairs[th][j].Leading.Time-anchor) <= p.EdgeMaxTime {
					raw.Thresholds[th] = &pairs[th][j]
					used[j] = true
					break
				}
			}
		}
		for _, u := range used {
			if !u {
				stats.UnattachedThresholds.Inc()
			}
		}
	}
	stats.RawSignals.Add(float64(len(raws)))
	return raws
}

func pairEdges(leads []ChannelSignal, trails []ChannelSignal, p Params, stats *Statistics) []ThresholdPair {
	n := min(len(leads), len(trails))
	if extra := len(leads) + len(trails) - 2*n; extra > 0 {
		stats.DiscardedPairs.Add(float64(extra))
	}

	pairs := make([]ThresholdPair, 0, n)
	for i := 0; i < n; i++ {
		pair := ThresholdPair{Leading: leads[i], Trailing: trails[i]}
		if pair.Leading.Time == p.NoSignalValue || pair.Trailing.Time == p.NoSignalValue {
			stats.SentinelEdges.Inc()
			continue
		}
		gap := pair.ToT()
		if gap <= 0 || gap > p.LeadTrailMaxTime {
			stats.DiscardedPairs.Inc()
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

// BuildAllRawSignals runs BuildRawSignals for every photosensor of the
// window in ascending photosensor id.
func BuildAllRawSignals(window TimeWindow, det *Detector, p Params, stats *Statistics) []*RawSignal {
	groups := GroupByPM(window)
	raws := make([]*RawSignal, 0, len(groups))
	for _, pmID := range sortedKeys(groups) {
		pm, ok := det.Photosensors[pmID]
		if !ok {
			stats.UnknownChannels.Add(float64(len(groups[pmID])))
			continue
		}
		raws = append(raws, BuildRawSignals(pm, groups[pmID], p, stats)...)
	}
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("Window %d: %d raw signals from %d photosensors", window.Index, len(raws), len(groups))
		logger.Info(message, "signals")
	}
	return raws
}
