package coincidence

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/spatial/r3"
)

type Vec = r3.Vec

// Scintillator angles are in degrees. Theta is the azimuthal position of
// the strip on the barrel. X, Y and Z locate the strip center in the
// frame of its module, before the RotX, RotY, RotZ rotation that takes
// module coordinates to detector coordinates. SlotID groups strips
// mounted in the same slot.
type Scintillator struct {
	ID     int     `db:"ScinID" json:"id"`
	SlotID int     `db:"SlotID" json:"slot_id"`
	X      float64 `db:"X" json:"x"`
	Y      float64 `db:"Y" json:"y"`
	Z      float64 `db:"Z" json:"z"`
	RotX   float64 `db:"RotX" json:"rot_x"`
	RotY   float64 `db:"RotY" json:"rot_y"`
	RotZ   float64 `db:"RotZ" json:"rot_z"`
	Theta  float64 `db:"Theta" json:"theta"`
	Length float64 `db:"Length" json:"length"`
}

// Center is the strip center in module coordinates.
func (s Scintillator) Center() Vec {
	return Vec{X: s.X, Y: s.Y, Z: s.Z}
}

// DetectorCenter is the strip center in detector coordinates.
func (s Scintillator) DetectorCenter() Vec {
	return rotateXYZ(s.Center(), s.RotX, s.RotY, s.RotZ)
}

type Photosensor struct {
	ID             int    `db:"PMID" json:"id"`
	ScinID         int    `db:"ScinID" json:"scin_id"`
	SideName       string `db:"Side" json:"side"`
	MatrixPosition int    `db:"MatrixPosition" json:"matrix_position"`
	Side           Side   `db:"-" json:"-"`
}

type Channel struct {
	ID              int     `db:"ChannelID" json:"id"`
	PMID            int     `db:"PMID" json:"pm_id"`
	Board           int     `db:"Board" json:"board"`
	ThresholdNumber int     `db:"ThresholdNumber" json:"threshold_number"`
	ThresholdValue  float64 `db:"ThresholdValue" json:"threshold_value"`
}

// Detector is the read-only geometry and channel mapping used by the
// reconstruction. It must not be modified once the workers are started.
type Detector struct {
	Scintillators map[int]Scintillator
	Photosensors  map[int]Photosensor
	Channels      map[int]Channel
}

func NewDetector(scins []Scintillator, pms []Photosensor, channels []Channel) (*Detector, error) {
	d := &Detector{
		Scintillators: make(map[int]Scintillator, len(scins)),
		Photosensors:  make(map[int]Photosensor, len(pms)),
		Channels:      make(map[int]Channel, len(channels)),
	}
	for _, scin := range scins {
		if _, ok := d.Scintillators[scin.ID]; ok {
			return nil, fmt.Errorf("duplicated scintillator %d", scin.ID)
		}
		d.Scintillators[scin.ID] = scin
	}
	for _, pm := range pms {
		if _, ok := d.Scintillators[pm.ScinID]; !ok {
			return nil, fmt.Errorf("photosensor %d refers to unknown scintillator %d", pm.ID, pm.ScinID)
		}
		if pm.MatrixPosition < 1 || pm.MatrixPosition > MaxMatrixPositions {
			return nil, fmt.Errorf("photosensor %d has matrix position %d out of range", pm.ID, pm.MatrixPosition)
		}
		if pm.SideName != "" {
			side, err := ParseSide(pm.SideName)
			if err != nil {
				return nil, fmt.Errorf("photosensor %d: %w", pm.ID, err)
			}
			pm.Side = side
		}
		pm.SideName = pm.Side.String()
		d.Photosensors[pm.ID] = pm
	}
	thresholds := make(map[[2]int]int, len(channels))
	for _, ch := range channels {
		if _, ok := d.Photosensors[ch.PMID]; !ok {
			return nil, fmt.Errorf("channel %d refers to unknown photosensor %d", ch.ID, ch.PMID)
		}
		key := [2]int{ch.PMID, ch.ThresholdNumber}
		if other, ok := thresholds[key]; ok {
			return nil, fmt.Errorf("channels %d and %d share threshold %d of photosensor %d",
				other, ch.ID, ch.ThresholdNumber, ch.PMID)
		}
		thresholds[key] = ch.ID
		d.Channels[ch.ID] = ch
	}
	return d, nil
}

func (d *Detector) ScintillatorIDs() []int {
	ids := make([]int, 0, len(d.Scintillators))
	for id := range d.Scintillators {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

type setupFile struct {
	Scintillators []Scintillator `json:"scintillators"`
	Photosensors  []Photosensor  `json:"photosensors"`
	Channels      []Channel      `json:"channels"`
}

// LoadSetupFile reads the detector description from a JSON or YAML file
// with scintillators, photosensors and channels lists.
func LoadSetupFile(filename string) (*Detector, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	var setup setupFile
	if err := k.UnmarshalWithConf("", &setup, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("error decoding setup file %s: %w", filename, err)
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Setup read from %s: %d scintillators, %d photosensors, %d channels",
			filename, len(setup.Scintillators), len(setup.Photosensors), len(setup.Channels))
		logger.Info(message, "setup")
	}
	return NewDetector(setup.Scintillators, setup.Photosensors, setup.Channels)
}
