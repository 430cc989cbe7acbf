package coincidence

import (
	"cmp"
	"fmt"

	"golang.org/x/exp/slices"
)

type sideKey struct {
	scinID int
	side   Side
}

func compareSideKeys(a, b sideKey) int {
	if c := cmp.Compare(a.scinID, b.scinID); c != 0 {
		return c
	}
	return cmp.Compare(a.side, b.side)
}

// MergeMatrixSignals merges the photosensor signals of every scintillator
// side into matrix signals. A seed (the earliest unmerged signal) collects
// the later unmerged signals closer than MergingTime whose matrix position
// is still free. Signals left out by a position collision seed their own
// matrix signal afterwards.
func MergeMatrixSignals(raws []*RawSignal, p Params, calib *Calibration, stats *Statistics) []*MatrixSignal {
	groups := make(map[sideKey][]*RawSignal)
	for _, raw := range raws {
		if raw.MatrixPosition < 1 || raw.MatrixPosition > MaxMatrixPositions {
			stats.MalformedRecords.Inc()
			continue
		}
		key := sideKey{scinID: raw.ScinID, side: raw.Side}
		groups[key] = append(groups[key], raw)
	}
	keys := make([]sideKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareSideKeys)

	matrices := make([]*MatrixSignal, 0, len(raws))
	for _, key := range keys {
		group := slices.Clone(groups[key])
		slices.SortStableFunc(group, func(a, b *RawSignal) int {
			return cmp.Compare(a.Time(), b.Time())
		})

		merged := make([]bool, len(group))
		for i, seed := range group {
			if merged[i] {
				continue
			}
			matrix := &MatrixSignal{
				ID:     len(matrices),
				ScinID: key.scinID,
				Side:   key.side,
			}
			matrix.PMs[seed.MatrixPosition-1] = seed
			merged[i] = true
			for j := i + 1; j < len(group); j++ {
				if merged[j] {
					continue
				}
				if group[j].Time()-seed.Time() >= p.MergingTime {
					break
				}
				slot := group[j].MatrixPosition - 1
				if matrix.PMs[slot] != nil {
					continue
				}
				matrix.PMs[slot] = group[j]
				merged[j] = true
			}
			finalizeMatrixSignal(matrix, calib)
			matrices = append(matrices, matrix)
		}
	}
	stats.MatrixSignals.Add(float64(len(matrices)))
	if configuration.Verbosity > 2 {
		message := fmt.Sprintf("%d matrix signals from %d raw signals", len(matrices), len(raws))
		logger.Info(message, "matrix")
	}
	return matrices
}

func finalizeMatrixSignal(matrix *MatrixSignal, calib *Calibration) {
	n := 0
	time, tot := 0.0, 0.0
	for _, raw := range matrix.PMs {
		if raw == nil {
			continue
		}
		time += raw.Time()
		tot += raw.ToT()
		n++
	}
	time /= float64(n)
	tot /= float64(n)

	if matrix.Side == SideB {
		time -= calib.Additive(matrix.ScinID, CalibBCorrection)
	}
	if tot > 0 {
		time -= calib.Additive(matrix.ScinID, CalibTimeWalkA) / tot
	}
	matrix.Time = time
	matrix.ToT = tot
}
