package coincidence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Calibration parameter names, per scintillator.
const (
	CalibBCorrection   = "b_correction"
	CalibTOFCorrection = "tof_correction"
	CalibEffVelocity   = "eff_velocity"
	CalibTOTFactorA    = "tot_factor_a"
	CalibTOTFactorB    = "tot_factor_b"
	CalibTimeWalkA     = "time_walk.param_a"
)

// Calibration file prefixes of the per-channel time offsets. The second
// spelling is found in older calibration files.
var channelOffsetPrefixes = []string{"channel_offsets.", "channel_offests."}

type calibKey struct {
	scinID int
	name   string
}

// Calibration is a read-only table of per-scintillator constants and
// per-channel time offsets (ps). Missing entries fall back to neutral
// values, 0 for additive corrections and offsets and 1 for multiplicative
// factors.
type Calibration struct {
	values         map[calibKey]float64
	channelOffsets map[int]float64
}

type CalibrationEntry struct {
	ScinID int     `db:"ScinID"`
	Param  string  `db:"Param"`
	Value  float64 `db:"Value"`
}

type ChannelOffsetEntry struct {
	ChannelID int     `db:"ChannelID"`
	Offset    float64 `db:"TimeOffset"`
}

func NewCalibration() *Calibration {
	return &Calibration{
		values:         make(map[calibKey]float64),
		channelOffsets: make(map[int]float64),
	}
}

func (c *Calibration) Set(scinID int, name string, value float64) {
	c.values[calibKey{scinID: scinID, name: name}] = value
}

func (c *Calibration) Lookup(scinID int, name string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	value, ok := c.values[calibKey{scinID: scinID, name: name}]
	return value, ok
}

func (c *Calibration) Additive(scinID int, name string) float64 {
	if value, ok := c.Lookup(scinID, name); ok {
		return value
	}
	return 0
}

func (c *Calibration) Multiplicative(scinID int, name string) float64 {
	if value, ok := c.Lookup(scinID, name); ok {
		return value
	}
	return 1
}

func (c *Calibration) SetChannelOffset(channelID int, offset float64) {
	c.channelOffsets[channelID] = offset
}

// ChannelOffset is subtracted from every timestamp of the channel.
func (c *Calibration) ChannelOffset(channelID int) float64 {
	if c == nil {
		return 0
	}
	return c.channelOffsets[channelID]
}

// Len counts scintillator constants and channel offsets.
func (c *Calibration) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values) + len(c.channelOffsets)
}

// LoadCalibrationFile reads a JSON or YAML file whose flattened keys look
// like scin.<id>.<name>, e.g. scin.12.b_correction or
// scin.12.time_walk.param_a, or channel_offsets.<channel id>. Other keys
// are ignored.
func LoadCalibrationFile(filename string) (*Calibration, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}

	calib := NewCalibration()
	for _, key := range k.Keys() {
		if channelID, ok := parseChannelOffsetKey(key); ok {
			calib.SetChannelOffset(channelID, k.Float64(key))
			continue
		}
		scinID, name, ok := parseCalibrationKey(key)
		if !ok {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("Ignoring calibration key %s", key)
				logger.Info(message, "calibration")
			}
			continue
		}
		calib.Set(scinID, name, k.Float64(key))
	}
	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Read %d calibration constants from %s", calib.Len(), filename)
		logger.Info(message, "calibration")
	}
	return calib, nil
}

func parseCalibrationKey(key string) (int, string, bool) {
	rest, ok := strings.CutPrefix(key, "scin.")
	if !ok {
		return 0, "", false
	}
	idStr, name, ok := strings.Cut(rest, ".")
	if !ok || name == "" {
		return 0, "", false
	}
	scinID, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, "", false
	}
	return scinID, name, true
}

func parseChannelOffsetKey(key string) (int, bool) {
	for _, prefix := range channelOffsetPrefixes {
		idStr, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		channelID, err := strconv.Atoi(idStr)
		if err != nil {
			return 0, false
		}
		return channelID, true
	}
	return 0, false
}
