package coincidence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testDetector has three scintillators at 0, 90 and 180 degrees. Every side
// is read by two photosensors (matrix positions 1 and 2) with two
// thresholds each. Photosensor ids are scin*10+n, channel ids pm*10+th.
func testDetector(t *testing.T) *Detector {
	t.Helper()
	scins := []Scintillator{
		{ID: 1, X: 50, Theta: 0},
		{ID: 2, Y: 50, Theta: 90},
		{ID: 3, X: -50, Theta: 180},
	}
	var pms []Photosensor
	var channels []Channel
	for _, scin := range scins {
		for n := 1; n <= 4; n++ {
			pm := Photosensor{
				ID:             scin.ID*10 + n,
				ScinID:         scin.ID,
				Side:           Side((n - 1) / 2),
				MatrixPosition: (n-1)%2 + 1,
			}
			pms = append(pms, pm)
			for th := 1; th <= 2; th++ {
				channels = append(channels, Channel{
					ID:              pm.ID*10 + th,
					PMID:            pm.ID,
					ThresholdNumber: th,
					ThresholdValue:  float64(80 * th),
				})
			}
		}
	}
	det, err := NewDetector(scins, pms, channels)
	require.NoError(t, err)
	return det
}

func testParams() Params {
	p := DefaultParams()
	p.NumThresholds = 2
	return p
}

func matrixSignal(id int, scinID int, side Side, time float64) *MatrixSignal {
	return &MatrixSignal{ID: id, ScinID: scinID, Side: side, Time: time, ToT: 10}
}

func testHit(scinID int, theta float64, time float64, pos Vec) Hit {
	return Hit{ScinID: scinID, Theta: theta, Time: time, Position: pos}
}
