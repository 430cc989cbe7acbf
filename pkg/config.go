package coincidence

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EventBuilderGeneric  = "generic"
	EventBuilderPairwise = "pairwise"
)

type Configuration struct {
	FileIn               string  `json:"file_in"`
	FileOut              string  `json:"file_out"`
	SetupFile            string  `json:"setup_file"`
	CalibFile            string  `json:"calib_file"`
	NoDB                 bool    `json:"no_db"`
	DBDriver             string  `json:"db_driver"`
	Host                 string  `json:"host"`
	User                 string  `json:"user"`
	Passwd               string  `json:"pass"`
	DBName               string  `json:"dbname"`
	RunNumber            int     `json:"run_number"`
	NumWorkers           int     `json:"num_workers"`
	MaxWindows           int     `json:"max_windows"`
	Skip                 int     `json:"skip"`
	Verbosity            int     `json:"verbosity"`
	CompressionLevel     int     `json:"compression_level"`
	WriteHits            bool    `json:"write_hits"`
	WriteEvents          bool    `json:"write_events"`
	WriteLORs            bool    `json:"write_lors"`
	EventTimeWindow      float64 `json:"event_time_window"`
	MinEventMultiplicity int     `json:"min_event_multiplicity"`
	EventBuilder         string  `json:"event_builder"`
	ABTimeDiff           float64 `json:"ab_time_diff"`
	EdgeMaxTime          float64 `json:"edge_max_time"`
	LeadTrailMaxTime     float64 `json:"lead_trail_max_time"`
	MergingTime          float64 `json:"merging_time"`
	NumThresholds        int     `json:"num_thresholds"`
	NoSignalValue        float64 `json:"no_signal_value"`
	TriggerChannelStride int     `json:"trigger_channel_stride"`
	ScatterThreshold     float64 `json:"scatter_threshold"`
	ReferenceScinID      int     `json:"reference_scin_id"`
	ReferenceSlotID      int     `json:"reference_slot_id"`
	LORTOFHalfWidth      float64 `json:"lor_tof_half_width"`
	LORAngleHalfWidth    float64 `json:"lor_angle_half_width"`
	TripleAngleTolerance float64 `json:"triple_angle_tolerance"`
}

var configuration = DefaultConfiguration()

func SetConfiguration(config Configuration) {
	configuration = config
}

func DefaultConfiguration() Configuration {
	var config Configuration

	config.NoDB = false
	config.DBDriver = "mysql"
	config.Host = "localhost"
	config.User = "jpetreader"
	config.Passwd = "readonly"
	config.DBName = "jpet"
	config.NumWorkers = 1
	config.MaxWindows = 1000000000
	config.Skip = 0
	config.Verbosity = 0
	config.CompressionLevel = 4
	config.WriteHits = true
	config.WriteEvents = true
	config.WriteLORs = true

	config.EventTimeWindow = 5000
	config.MinEventMultiplicity = 1
	config.EventBuilder = EventBuilderGeneric
	config.ABTimeDiff = 6000
	config.EdgeMaxTime = 5
	config.LeadTrailMaxTime = 300
	config.MergingTime = 2000
	config.NumThresholds = 4
	config.NoSignalValue = -1e6
	config.TriggerChannelStride = 65
	config.ScatterThreshold = 0
	config.ReferenceScinID = -1
	config.ReferenceSlotID = -1
	config.LORTOFHalfWidth = 2000
	config.LORAngleHalfWidth = 15
	config.TripleAngleTolerance = 10
	return config
}

// LoadConfiguration layers the defaults, the given JSON or YAML file (if
// any) and COINC_* environment variables, in that order.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	k := koanf.New(".")
	if filename != "" {
		if err := k.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return config, fmt.Errorf("%w: %w", ErrLoadConfig, &ErrOpenFile{Filename: filename, Err: err})
		}
	}

	envProvider := env.Provider("COINC_", ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "coinc_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return config, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return config, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	return config, nil
}

func (c Configuration) Validate() error {
	var problems []string
	if c.EventTimeWindow <= 0 {
		problems = append(problems, "event_time_window must be positive")
	}
	if c.MinEventMultiplicity < 1 {
		problems = append(problems, "min_event_multiplicity must be at least 1")
	}
	if c.EventBuilder != EventBuilderGeneric && c.EventBuilder != EventBuilderPairwise {
		problems = append(problems, fmt.Sprintf("unknown event_builder %q", c.EventBuilder))
	}
	if c.ABTimeDiff <= 0 {
		problems = append(problems, "ab_time_diff must be positive")
	}
	if c.EdgeMaxTime <= 0 {
		problems = append(problems, "edge_max_time must be positive")
	}
	if c.LeadTrailMaxTime <= 0 {
		problems = append(problems, "lead_trail_max_time must be positive")
	}
	if c.MergingTime < 0 {
		problems = append(problems, "merging_time must not be negative")
	}
	if c.NumThresholds < 1 {
		problems = append(problems, "num_thresholds must be at least 1")
	}
	if c.TriggerChannelStride < 0 {
		problems = append(problems, "trigger_channel_stride must not be negative")
	}
	if c.ScatterThreshold < 0 {
		problems = append(problems, "scatter_threshold must not be negative")
	}
	if c.LORTOFHalfWidth <= 0 || c.LORAngleHalfWidth <= 0 {
		problems = append(problems, "lor half widths must be positive")
	}
	if c.TripleAngleTolerance < 0 {
		problems = append(problems, "triple_angle_tolerance must not be negative")
	}
	if c.NumWorkers < 1 {
		problems = append(problems, "num_workers must be at least 1")
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		problems = append(problems, "compression_level must be between 0 and 9")
	}
	if c.NoDB && c.SetupFile == "" {
		problems = append(problems, "setup_file is required when no_db is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Params holds the reconstruction parameters with every time in ps.
type Params struct {
	EventTimeWindow      float64
	MinEventMultiplicity int
	PairwiseEvents       bool
	ABTimeDiff           float64
	EdgeMaxTime          float64
	LeadTrailMaxTime     float64
	MergingTime          float64
	NumThresholds        int
	NoSignalValue        float64
	TriggerChannelStride int
	ScatterThreshold     float64
	ReferenceScinID      int
	ReferenceSlotID      int
	LORTOFHalfWidth      float64
	LORAngleHalfWidth    float64
	TripleAngleTolerance float64
}

func (c Configuration) Params() Params {
	return Params{
		EventTimeWindow:      c.EventTimeWindow,
		MinEventMultiplicity: c.MinEventMultiplicity,
		PairwiseEvents:       c.EventBuilder == EventBuilderPairwise,
		ABTimeDiff:           c.ABTimeDiff,
		EdgeMaxTime:          c.EdgeMaxTime * 1000,
		LeadTrailMaxTime:     c.LeadTrailMaxTime * 1000,
		MergingTime:          c.MergingTime,
		NumThresholds:        c.NumThresholds,
		NoSignalValue:        c.NoSignalValue,
		TriggerChannelStride: c.TriggerChannelStride,
		ScatterThreshold:     c.ScatterThreshold,
		ReferenceScinID:      c.ReferenceScinID,
		ReferenceSlotID:      c.ReferenceSlotID,
		LORTOFHalfWidth:      c.LORTOFHalfWidth,
		LORAngleHalfWidth:    c.LORAngleHalfWidth,
		TripleAngleTolerance: c.TripleAngleTolerance,
	}
}

func DefaultParams() Params {
	return DefaultConfiguration().Params()
}
