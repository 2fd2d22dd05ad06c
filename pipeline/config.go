package pipeline

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-mhi/match"
)

// Config is the on-disk description of a dataset run: where the clips live,
// how the collection is indexed, the default motion-history parameters, and
// any per-clip overrides.
type Config struct {
	Dataset   DatasetConfig    `yaml:"dataset"`
	Defaults  ClipParams       `yaml:"defaults"`
	Overrides []OverrideConfig `yaml:"overrides"`
	Match     MatchConfig      `yaml:"match"`
}

// DatasetConfig describes the clip collection layout.
type DatasetConfig struct {
	// Dir is the directory holding the video files.
	Dir string `yaml:"dir"`
	// Pattern is the fmt pattern producing a clip file name from its
	// (action, participant, trial) key, e.g. "A%dP%dT%d.mp4".
	Pattern string `yaml:"pattern"`
	// Actions, Participants and Trials size the collection; keys run from 1
	// to each bound inclusive.
	Actions      int `yaml:"actions"`
	Participants int `yaml:"participants"`
	Trials       int `yaml:"trials"`
	// Workers bounds concurrent clip processing. Zero picks a default.
	Workers int `yaml:"workers"`
	// TargetWidth optionally downscales frames before processing.
	TargetWidth int `yaml:"target_width"`
}

// OverrideConfig binds a parameter override to one clip.
type OverrideConfig struct {
	Action      int        `yaml:"action"`
	Participant int        `yaml:"participant"`
	Trial       int        `yaml:"trial"`
	Params      ClipParams `yaml:",inline"`
}

// MatchConfig tunes the feature matcher.
type MatchConfig struct {
	// Scale multiplies pairwise descriptor distances.
	Scale float64 `yaml:"scale"`
}

// LoadConfig reads and validates a YAML dataset configuration.
//
// Arguments:
//   - path: Path to the configuration file.
//
// Returns:
//   - *Config: The parsed configuration with defaults applied.
//   - error: If the file cannot be read, parsed, or describes an empty
//     collection.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline: reading config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "pipeline: parsing config %s", path)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Dataset.Pattern == "" {
		c.Dataset.Pattern = "A%dP%dT%d.mp4"
	}
	c.Defaults = c.Defaults.mergedOver(DefaultParams())
}

func (c *Config) validate() error {
	if c.Dataset.Actions <= 0 || c.Dataset.Participants <= 0 || c.Dataset.Trials <= 0 {
		return errors.Errorf("pipeline: dataset bounds must be positive, got %dx%dx%d",
			c.Dataset.Actions, c.Dataset.Participants, c.Dataset.Trials)
	}
	for _, o := range c.Overrides {
		if o.Action < 1 || o.Action > c.Dataset.Actions ||
			o.Participant < 1 || o.Participant > c.Dataset.Participants ||
			o.Trial < 1 || o.Trial > c.Dataset.Trials {
			return errors.Errorf("pipeline: override key A%dP%dT%d outside dataset bounds",
				o.Action, o.Participant, o.Trial)
		}
	}
	return nil
}

// ParamTable converts the override list into a lookup table keyed by clip
// identity.
func (c *Config) ParamTable() ParamTable {
	table := make(ParamTable, len(c.Overrides))
	for _, o := range c.Overrides {
		table[match.Key{Action: o.Action, Participant: o.Participant, Trial: o.Trial}] = o.Params
	}
	return table
}
