package coincidence

import "fmt"

type WindowResult struct {
	Index  uint64
	Hits   []Hit
	Events []ResolvedEvent
	Error  bool
}

// Reconstructor runs the full chain on single windows. Detector and
// Calibration are only read, so one Reconstructor serves all workers.
type Reconstructor struct {
	Params      Params
	Detector    *Detector
	Calibration *Calibration
	Stats       *Statistics
}

func NewReconstructor(p Params, det *Detector, calib *Calibration, stats *Statistics) *Reconstructor {
	if calib == nil {
		calib = NewCalibration()
	}
	if stats == nil {
		stats = NewStatistics()
	}
	return &Reconstructor{
		Params:      p,
		Detector:    det,
		Calibration: calib,
		Stats:       stats,
	}
}

// ProcessWindow turns the records of one window into hits and resolved
// events.
func (r *Reconstructor) ProcessWindow(raw RawWindow) WindowResult {
	window := ToTimeWindow(raw, r.Detector, r.Calibration, r.Params, r.Stats)
	raws := BuildAllRawSignals(window, r.Detector, r.Params, r.Stats)
	matrices := MergeMatrixSignals(raws, r.Params, r.Calibration, r.Stats)
	hits := MatchAllSignals(matrices, r.Detector, r.Params, r.Calibration, r.Stats)

	var events []Event
	if r.Params.PairwiseEvents {
		events = BuildPairEvents(window.Index, hits, r.Params)
	} else {
		events = BuildEvents(window.Index, hits, r.Params)
	}
	r.Stats.Events.Add(float64(len(events)))

	result := WindowResult{
		Index:  window.Index,
		Hits:   hits,
		Events: make([]ResolvedEvent, 0, len(events)),
	}
	for _, event := range events {
		result.Events = append(result.Events, ResolveEvent(event, r.Params, r.Stats))
	}
	r.Stats.WindowsProcessed.Inc()

	if configuration.Verbosity > 1 {
		message := fmt.Sprintf("Window %d: %d records, %d hits, %d events", raw.Index, len(raw.Records), len(hits), len(events))
		logger.Info(message, "pipeline")
	}
	return result
}

func (r WindowResult) LORs() []HitPair {
	lors := make([]HitPair, 0)
	for _, event := range r.Events {
		if event.LOR != nil {
			lors = append(lors, *event.LOR)
		}
	}
	return lors
}
