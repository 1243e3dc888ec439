// Package config handles s3otool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/spring-s3o/pkg/encoding"
	"github.com/Faultbox/spring-s3o/pkg/export"
	"github.com/Faultbox/spring-s3o/pkg/formats"
)

// Config holds all tool settings.
type Config struct {
	Decode   DecodeConfig   `yaml:"decode"`
	Textures TexturesConfig `yaml:"textures"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DecodeConfig holds S3O decoder settings.
type DecodeConfig struct {
	StringPolicy string `yaml:"string_policy"` // "ascii" or "windows-1252"
	MaxDepth     int    `yaml:"max_depth"`     // Piece tree depth limit
}

// TexturesConfig holds texture lookup settings.
type TexturesConfig struct {
	ObjectsDir  string   `yaml:"objects_dir"`  // Directory that holds models, searched upwards from the model
	TexturesDir string   `yaml:"textures_dir"` // Sibling of ObjectsDir that holds textures
	SearchPaths []string `yaml:"search_paths"` // Extra directories searched after the derived one
}

// ExportConfig holds glTF export settings.
type ExportConfig struct {
	Binary bool   `yaml:"binary"`  // Write .glb instead of .gltf
	FlipUV string `yaml:"flip_uv"` // "auto", "always" or "never"
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Decode: DecodeConfig{
			StringPolicy: encoding.StrictASCII.String(),
			MaxDepth:     formats.DefaultS3OMaxDepth,
		},
		Textures: TexturesConfig{
			ObjectsDir:  "objects3d",
			TexturesDir: "unittextures",
		},
		Export: ExportConfig{
			Binary: false,
			FlipUV: "auto",
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// Validate checks values that cannot be checked by YAML decoding alone.
func (c *Config) Validate() error {
	if _, err := encoding.ParseStringPolicy(c.Decode.StringPolicy); err != nil {
		return fmt.Errorf("decode.string_policy: %w", err)
	}
	if c.Decode.MaxDepth < 1 {
		return fmt.Errorf("decode.max_depth must be positive, got %d", c.Decode.MaxDepth)
	}
	if _, err := export.ParseFlipMode(c.Export.FlipUV); err != nil {
		return fmt.Errorf("export.flip_uv must be auto, always or never: %w", err)
	}
	return nil
}

// DecodeOptions converts the decode section into parser options.
func (c *Config) DecodeOptions() ([]formats.S3OOption, error) {
	policy, err := encoding.ParseStringPolicy(c.Decode.StringPolicy)
	if err != nil {
		return nil, err
	}
	return []formats.S3OOption{
		formats.WithStringPolicy(policy),
		formats.WithMaxDepth(c.Decode.MaxDepth),
	}, nil
}
