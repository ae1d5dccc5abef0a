package libqpi

import (
	"os"

	"github.com/2x3systems/goqpi/libqpi/coherence"
	"github.com/2x3systems/goqpi/libqpi/rewrite"
	"github.com/2x3systems/goqpi/qpi"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config gathers every tunable of a run.  Zero values are never meaningful; start from DefaultConfig.
type Config struct {
	Coherence coherence.Weights `yaml:"coherence"`
	Rewrite   rewrite.Weights   `yaml:"rewrite"`
	Bins      int               `yaml:"bins"`      // 0 means the minimal bin count of each graph
	MaxSteps  int               `yaml:"max_steps"` // evolution step budget
	Workers   int               `yaml:"workers"`   // scoring goroutines
	MinDelta  float64           `yaml:"min_delta"` // rewrites must predict ΔC above this
	Catalog   string            `yaml:"catalog"`   // catalog path; empty for in-memory
}

func DefaultConfig() Config {
	return Config{
		Coherence: coherence.DefaultWeights(),
		Rewrite:   rewrite.DefaultWeights(),
		MaxSteps:  64,
		Workers:   4,
	}
}

// LoadConfig overlays the YAML file at pathname onto DefaultConfig and validates the result.
func LoadConfig(pathname string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(pathname)
	if err != nil {
		return Config{}, err
	}
	if err = yaml.Unmarshal(buf, &cfg); err != nil {
		return Config{}, errors.Wrapf(qpi.ErrBadConfig, "%s: %v", pathname, err)
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "%s", pathname)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if err := cfg.Coherence.Validate(); err != nil {
		return err
	}
	if err := cfg.Rewrite.Validate(); err != nil {
		return err
	}
	switch {
	case cfg.Bins < 0:
		return errors.Wrapf(qpi.ErrBadConfig, "bins = %d", cfg.Bins)
	case cfg.MaxSteps < 1:
		return errors.Wrapf(qpi.ErrBadConfig, "max_steps = %d", cfg.MaxSteps)
	case cfg.Workers < 1:
		return errors.Wrapf(qpi.ErrBadConfig, "workers = %d", cfg.Workers)
	}
	return nil
}

// Engine returns a rewrite engine configured by cfg.
func (cfg *Config) Engine() *rewrite.Engine {
	return &rewrite.Engine{
		Coherence: cfg.Coherence,
		Rules:     cfg.Rewrite,
		Workers:   cfg.Workers,
		MinDelta:  cfg.MinDelta,
	}
}
