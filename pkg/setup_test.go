package coincidence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSetupFile(t *testing.T) {
	t.Parallel()
	filename := filepath.Join(t.TempDir(), "setup.yaml")
	content := `
scintillators:
  - {id: 1, x: 42.5, y: 0, z: 0, theta: 0, length: 50}
  - {id: 2, x: -42.5, y: 0, z: 0, rot_z: 180, theta: 180, length: 50}
photosensors:
  - {id: 11, scin_id: 1, side: A, matrix_position: 1}
  - {id: 12, scin_id: 1, side: B, matrix_position: 1}
  - {id: 21, scin_id: 2, side: a, matrix_position: 2}
channels:
  - {id: 111, pm_id: 11, threshold_number: 1, threshold_value: 80}
  - {id: 112, pm_id: 11, threshold_number: 2, threshold_value: 200}
  - {id: 121, pm_id: 12, board: 3, threshold_number: 1, threshold_value: 80}
`
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	det, err := LoadSetupFile(filename)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, det.ScintillatorIDs())
	assert.Equal(t, 42.5, det.Scintillators[1].X)
	assert.Equal(t, 180.0, det.Scintillators[2].RotZ)
	assert.Equal(t, Vec{X: -42.5}, det.Scintillators[2].Center())

	assert.Equal(t, SideB, det.Photosensors[12].Side)
	assert.Equal(t, SideA, det.Photosensors[21].Side)
	assert.Equal(t, 2, det.Photosensors[21].MatrixPosition)

	assert.Equal(t, Channel{ID: 121, PMID: 12, Board: 3, ThresholdNumber: 1, ThresholdValue: 80}, det.Channels[121])
	assert.Len(t, det.Channels, 3)
}

func TestNewDetectorRejectsInconsistentSetup(t *testing.T) {
	t.Parallel()
	scins := []Scintillator{{ID: 1}}
	tests := []struct {
		name     string
		scins    []Scintillator
		pms      []Photosensor
		channels []Channel
	}{
		{"duplicated scintillator", []Scintillator{{ID: 1}, {ID: 1}}, nil, nil},
		{"unknown scintillator", scins, []Photosensor{{ID: 1, ScinID: 2, MatrixPosition: 1}}, nil},
		{"bad matrix position", scins, []Photosensor{{ID: 1, ScinID: 1, MatrixPosition: 5}}, nil},
		{"bad side", scins, []Photosensor{{ID: 1, ScinID: 1, MatrixPosition: 1, SideName: "C"}}, nil},
		{"unknown photosensor", scins, nil, []Channel{{ID: 1, PMID: 3}}},
		{"shared threshold", scins, []Photosensor{{ID: 1, ScinID: 1, MatrixPosition: 1}},
			[]Channel{{ID: 11, PMID: 1, ThresholdNumber: 1}, {ID: 12, PMID: 1, ThresholdNumber: 1}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewDetector(tt.scins, tt.pms, tt.channels)
			assert.Error(t, err)
		})
	}
}

func TestLoadSetupFileMissing(t *testing.T) {
	t.Parallel()
	_, err := LoadSetupFile(filepath.Join(t.TempDir(), "nope.yaml"))
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
}
