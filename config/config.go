package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config holds every tunable of a training run. Zero values are filled
// in from the published hyperparameters, so an empty file is a valid
// configuration apart from the dataset paths.
type Config struct {
	Data struct {
		TrainDir string `yaml:"train_dir"`
		ValDir   string `yaml:"val_dir"`
		TestDir  string `yaml:"test_dir"`
	} `yaml:"data"`

	Model struct {
		ImageSize     int    `yaml:"image_size"`
		BackboneGrid  int    `yaml:"backbone_grid"`
		Seed          int64  `yaml:"seed"`
		CheckpointDir string `yaml:"checkpoint_dir"`
	} `yaml:"model"`

	Training struct {
		Epochs          int     `yaml:"epochs"`
		BatchSize       int     `yaml:"batch_size"`
		ValBatchSize    int     `yaml:"val_batch_size"`
		LearningRate    float64 `yaml:"learning_rate"`
		PlateauFactor   float64 `yaml:"plateau_factor"`
		PlateauPatience int     `yaml:"plateau_patience"`
		Augment         bool    `yaml:"augment"`
		CacheSize       int     `yaml:"cache_size"`
	} `yaml:"training"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Default returns the configuration used in the reference experiments.
func Default() *Config {
	var cfg Config
	cfg.Model.ImageSize = 224
	cfg.Model.BackboneGrid = 7
	cfg.Model.Seed = 1
	cfg.Model.CheckpointDir = "checkpoints"
	cfg.Training.Epochs = 50
	cfg.Training.BatchSize = 16
	cfg.Training.ValBatchSize = 64
	cfg.Training.LearningRate = 0.001
	cfg.Training.PlateauFactor = 0.1
	cfg.Training.PlateauPatience = 10
	cfg.Training.Augment = true
	cfg.Training.CacheSize = 1024
	cfg.History.Path = "runs.db"
	cfg.Log.Level = "info"
	return &cfg
}

// Load reads a YAML configuration file, filling omitted fields with
// defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores defaults for fields an explicit zero would
// break.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Model.ImageSize <= 0 {
		c.Model.ImageSize = d.Model.ImageSize
	}
	if c.Model.BackboneGrid <= 0 {
		c.Model.BackboneGrid = d.Model.BackboneGrid
	}
	if c.Model.CheckpointDir == "" {
		c.Model.CheckpointDir = d.Model.CheckpointDir
	}
	if c.Training.Epochs <= 0 {
		c.Training.Epochs = d.Training.Epochs
	}
	if c.Training.BatchSize <= 0 {
		c.Training.BatchSize = d.Training.BatchSize
	}
	if c.Training.ValBatchSize <= 0 {
		c.Training.ValBatchSize = d.Training.ValBatchSize
	}
	if c.Training.LearningRate <= 0 {
		c.Training.LearningRate = d.Training.LearningRate
	}
	if c.Training.PlateauFactor <= 0 {
		c.Training.PlateauFactor = d.Training.PlateauFactor
	}
	if c.Training.PlateauPatience <= 0 {
		c.Training.PlateauPatience = d.Training.PlateauPatience
	}
	if c.Training.CacheSize <= 0 {
		c.Training.CacheSize = d.Training.CacheSize
	}
	if c.History.Path == "" {
		c.History.Path = d.History.Path
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Validate checks constraints the defaults cannot repair.
func (c *Config) Validate() error {
	if c.Training.PlateauFactor >= 1 {
		return fmt.Errorf("plateau_factor must be below 1, got %g", c.Training.PlateauFactor)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
