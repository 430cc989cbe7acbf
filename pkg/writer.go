package coincidence

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	hdf5 "github.com/jmbenlloch/go-hdf5"
)

type Writer struct {
	File         *hdf5.File
	Filename     string
	RunGroup     *hdf5.Group
	RecoGroup    *hdf5.Group
	RunInfoTable *hdf5.Dataset
	ParamsTable  *hdf5.Dataset
	HitsTable    *hdf5.Dataset
	EventsTable  *hdf5.Dataset
	EventHits    *hdf5.Dataset
	LORsTable    *hdf5.Dataset
	TriplesTable *hdf5.Dataset
	WriteHits    bool
	WriteEvents  bool
	WriteLORs    bool
	HitCounter   int
	EvtCounter   int
	EvtHitCount  int
	LORCounter   int
	TripleCount  int
}

func NewWriter(filename string, config Configuration) (*Writer, error) {
	if config.Verbosity > 0 {
		message := fmt.Sprintf("Creating file %s", filename)
		logger.Info(message, "writer")
	}

	var err error
	writer := &Writer{
		Filename:    filename,
		WriteHits:   config.WriteHits,
		WriteEvents: config.WriteEvents,
		WriteLORs:   config.WriteLORs,
	}
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	// On failure the file is closed with whatever was created so far.
	fail := func(err error) (*Writer, error) {
		return nil, errors.Join(err, writer.Close())
	}

	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return fail(err)
	}
	if writer.RecoGroup, err = createGroup(writer.File, "Reco"); err != nil {
		return fail(err)
	}

	level := config.CompressionLevel
	tables := []struct {
		dst      **hdf5.Dataset
		group    *hdf5.Group
		name     string
		datatype interface{}
		enabled  bool
	}{
		{&writer.RunInfoTable, writer.RunGroup, "runInfo", RunInfoHDF5{}, true},
		{&writer.ParamsTable, writer.RunGroup, "parameters", ParamsHDF5{}, true},
		{&writer.HitsTable, writer.RecoGroup, "hits", HitHDF5{}, writer.WriteHits},
		{&writer.EventsTable, writer.RecoGroup, "events", EventHDF5{}, writer.WriteEvents},
		{&writer.EventHits, writer.RecoGroup, "event_hits", EventHitHDF5{}, writer.WriteEvents},
		{&writer.LORsTable, writer.RecoGroup, "lors", LORHDF5{}, writer.WriteLORs},
		{&writer.TriplesTable, writer.RecoGroup, "triples", TripleHDF5{}, writer.WriteLORs},
	}
	for _, table := range tables {
		if !table.enabled {
			continue
		}
		if *table.dst, err = createTable(table.group, table.name, table.datatype, level); err != nil {
			return fail(err)
		}
	}
	return writer, nil
}

func (w *Writer) WriteRunInfo(runNumber int, runID uuid.UUID, p Params) error {
	info := RunInfoHDF5{
		run_number: int32(runNumber),
		run_id:     convertToHdf5String(runID.String()),
	}
	if err := writeEntryToTable(w.RunInfoTable, info, 0); err != nil {
		return fmt.Errorf("error writing run info: %w", err)
	}

	values := []struct {
		name  string
		value float64
	}{
		{"event_time_window", p.EventTimeWindow},
		{"min_event_multiplicity", float64(p.MinEventMultiplicity)},
		{"ab_time_diff", p.ABTimeDiff},
		{"edge_max_time", p.EdgeMaxTime},
		{"lead_trail_max_time", p.LeadTrailMaxTime},
		{"merging_time", p.MergingTime},
		{"num_thresholds", float64(p.NumThresholds)},
		{"scatter_threshold", p.ScatterThreshold},
		{"reference_scin_id", float64(p.ReferenceScinID)},
		{"reference_slot_id", float64(p.ReferenceSlotID)},
		{"lor_tof_half_width", p.LORTOFHalfWidth},
		{"lor_angle_half_width", p.LORAngleHalfWidth},
		{"triple_angle_tolerance", p.TripleAngleTolerance},
	}
	// The array MUST be allocated at creation, if not, HDF5 will panic
	entries := make([]ParamsHDF5, len(values))
	for i, v := range values {
		entries[i] = ParamsHDF5{param: convertToHdf5String(v.name), value: v.value}
	}
	if err := writeArrayToTable(w.ParamsTable, &entries, 0); err != nil {
		return fmt.Errorf("error writing parameters: %w", err)
	}
	return nil
}

func hitToHDF5(window uint64, hit Hit) HitHDF5 {
	var dummy uint8
	if hit.Dummy {
		dummy = 1
	}
	return HitHDF5{
		window:   window,
		scin_id:  int32(hit.ScinID),
		dummy:    dummy,
		time:     hit.Time,
		timeDiff: hit.TimeDiff,
		tot:      hit.ToT,
		energy:   hit.Energy,
		theta:    hit.Theta,
		x:        hit.Position.X,
		y:        hit.Position.Y,
		z:        hit.Position.Z,
	}
}

// WriteResult appends the output of one window. Windows flagged with an
// error are skipped.
func (w *Writer) WriteResult(result WindowResult) error {
	if result.Error {
		return nil
	}
	if w.WriteHits {
		hits := make([]HitHDF5, len(result.Hits))
		for i, hit := range result.Hits {
			hits[i] = hitToHDF5(result.Index, hit)
		}
		if err := writeArrayToTable(w.HitsTable, &hits, w.HitCounter); err != nil {
			return fmt.Errorf("error writing hits of window %d: %w", result.Index, err)
		}
		w.HitCounter += len(hits)
	}

	events := make([]EventHDF5, 0, len(result.Events))
	eventHits := make([]EventHitHDF5, 0)
	lors := make([]LORHDF5, 0)
	triples := make([]TripleHDF5, 0)
	for i, resolved := range result.Events {
		evtNumber := int64(w.EvtCounter + i)
		event := resolved.Event
		entry := EventHDF5{
			evt_number:   evtNumber,
			window:       result.Index,
			multiplicity: int32(event.Multiplicity()),
			removed:      int32(len(resolved.Removed)),
			event_type:   uint8(event.Type),
		}
		if len(event.Hits) > 0 {
			entry.time = event.Hits[0].Time
		}
		events = append(events, entry)
		for _, hit := range event.Hits {
			eventHits = append(eventHits, EventHitHDF5{
				evt_number: evtNumber,
				scin_id:    int32(hit.ScinID),
				time:       hit.Time,
				tot:        hit.ToT,
				x:          hit.Position.X,
				y:          hit.Position.Y,
				z:          hit.Position.Z,
			})
		}
		if resolved.LOR != nil {
			lor := resolved.LOR
			var accepted uint8
			if lor.Accepted {
				accepted = 1
			}
			lors = append(lors, LORHDF5{
				evt_number: evtNumber,
				window:     result.Index,
				scin_a:     int32(lor.First.ScinID),
				scin_b:     int32(lor.Second.ScinID),
				accepted:   accepted,
				tof:        lor.TOF,
				angle:      lor.AngularSeparation,
				scatter:    lor.ScatterStatistic,
				x:          lor.AnnihilationPoint.X,
				y:          lor.AnnihilationPoint.Y,
				z:          lor.AnnihilationPoint.Z,
			})
		}
		for _, triple := range resolved.Triples {
			triples = append(triples, TripleHDF5{
				evt_number: evtNumber,
				window:     result.Index,
				class:      uint8(triple.Class),
				gap0:       triple.Gaps[0],
				gap1:       triple.Gaps[1],
				gap2:       triple.Gaps[2],
				sum:        triple.TransformedX,
				diff:       triple.TransformedY,
			})
		}
	}

	if w.WriteEvents {
		if err := writeArrayToTable(w.EventsTable, &events, w.EvtCounter); err != nil {
			return fmt.Errorf("error writing events of window %d: %w", result.Index, err)
		}
		if err := writeArrayToTable(w.EventHits, &eventHits, w.EvtHitCount); err != nil {
			return fmt.Errorf("error writing event hits of window %d: %w", result.Index, err)
		}
		w.EvtHitCount += len(eventHits)
	}
	if w.WriteLORs {
		if err := writeArrayToTable(w.LORsTable, &lors, w.LORCounter); err != nil {
			return fmt.Errorf("error writing lors of window %d: %w", result.Index, err)
		}
		if err := writeArrayToTable(w.TriplesTable, &triples, w.TripleCount); err != nil {
			return fmt.Errorf("error writing triples of window %d: %w", result.Index, err)
		}
		w.LORCounter += len(lors)
		w.TripleCount += len(triples)
	}
	w.EvtCounter += len(events)
	return nil
}

func (w *Writer) Close() error {
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Closing file %s", w.Filename)
		logger.Info(message, "writer")
	}
	var errs []error

	datasets := []struct {
		name string
		dset *hdf5.Dataset
	}{
		{"run info table", w.RunInfoTable},
		{"parameters table", w.ParamsTable},
		{"hits table", w.HitsTable},
		{"events table", w.EventsTable},
		{"event hits table", w.EventHits},
		{"lors table", w.LORsTable},
		{"triples table", w.TriplesTable},
	}
	for _, d := range datasets {
		if d.dset == nil {
			continue
		}
		if err := d.dset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", d.name, err))
		}
	}
	if w.RunGroup != nil {
		if err := w.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if w.RecoGroup != nil {
		if err := w.RecoGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing reco group: %w", err))
		}
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
