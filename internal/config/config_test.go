package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Faultbox/spring-s3o/pkg/formats"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Decode.StringPolicy != "ascii" {
		t.Errorf("expected string policy 'ascii', got %s", cfg.Decode.StringPolicy)
	}
	if cfg.Decode.MaxDepth != formats.DefaultS3OMaxDepth {
		t.Errorf("expected max depth %d, got %d", formats.DefaultS3OMaxDepth, cfg.Decode.MaxDepth)
	}
	if cfg.Textures.ObjectsDir != "objects3d" {
		t.Errorf("expected objects dir 'objects3d', got %s", cfg.Textures.ObjectsDir)
	}
	if cfg.Textures.TexturesDir != "unittextures" {
		t.Errorf("expected textures dir 'unittextures', got %s", cfg.Textures.TexturesDir)
	}
	if cfg.Export.Binary {
		t.Error("expected binary export to be false by default")
	}
	if cfg.Export.FlipUV != "auto" {
		t.Errorf("expected flip_uv 'auto', got %s", cfg.Export.FlipUV)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "s3otool.yaml")

	yamlContent := `
decode:
  string_policy: windows-1252
  max_depth: 32

textures:
  objects_dir: Objects3D
  textures_dir: UnitTextures
  search_paths:
    - /opt/spring/textures

export:
  binary: true
  flip_uv: never

logging:
  level: "debug"
  log_file: "s3otool.log"
  max_backups: 1
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Decode.StringPolicy != "windows-1252" {
		t.Errorf("expected windows-1252, got %s", cfg.Decode.StringPolicy)
	}
	if cfg.Decode.MaxDepth != 32 {
		t.Errorf("expected max depth 32, got %d", cfg.Decode.MaxDepth)
	}
	if cfg.Textures.ObjectsDir != "Objects3D" || cfg.Textures.TexturesDir != "UnitTextures" {
		t.Errorf("unexpected texture dirs: %+v", cfg.Textures)
	}
	if len(cfg.Textures.SearchPaths) != 1 || cfg.Textures.SearchPaths[0] != "/opt/spring/textures" {
		t.Errorf("unexpected search paths: %v", cfg.Textures.SearchPaths)
	}
	if !cfg.Export.Binary {
		t.Error("expected binary to be true")
	}
	if cfg.Export.FlipUV != "never" {
		t.Errorf("expected flip_uv never, got %s", cfg.Export.FlipUV)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "s3otool.log" {
		t.Errorf("expected log file 's3otool.log', got %s", cfg.Logging.LogFile)
	}
	if cfg.Logging.MaxBackups != 1 {
		t.Errorf("expected max backups 1, got %d", cfg.Logging.MaxBackups)
	}
	// Untouched keys keep their defaults.
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("expected default max size 10, got %d", cfg.Logging.MaxSizeMB)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
decode:
  max_depth: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/s3otool.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"lenient strings", func(c *Config) { c.Decode.StringPolicy = "windows-1252" }, false},
		{"unknown string policy", func(c *Config) { c.Decode.StringPolicy = "ebcdic" }, true},
		{"zero depth", func(c *Config) { c.Decode.MaxDepth = 0 }, true},
		{"flip always", func(c *Config) { c.Export.FlipUV = "always" }, false},
		{"flip mixed case", func(c *Config) { c.Export.FlipUV = "Auto" }, false},
		{"flip upper case", func(c *Config) { c.Export.FlipUV = "NEVER" }, false},
		{"bad flip", func(c *Config) { c.Export.FlipUV = "sometimes" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeOptions(t *testing.T) {
	cfg := Default()
	opts, err := cfg.DecodeOptions()
	if err != nil {
		t.Fatalf("DecodeOptions failed: %v", err)
	}
	if len(opts) != 2 {
		t.Errorf("expected 2 options, got %d", len(opts))
	}

	cfg.Decode.StringPolicy = "klingon"
	if _, err := cfg.DecodeOptions(); err == nil {
		t.Error("expected error for unknown string policy")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWD) })

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	if err := os.WriteFile("s3otool.yaml", []byte("decode:\n  max_depth: 8\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find s3otool.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "strings flag",
			setup: func() { *flagStrings = "windows-1252" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Decode.StringPolicy != "windows-1252" {
					t.Errorf("expected windows-1252, got %s", cfg.Decode.StringPolicy)
				}
			},
			teardown: func() { *flagStrings = "" },
		},
		{
			name:  "max depth flag",
			setup: func() { *flagMaxDepth = 12 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Decode.MaxDepth != 12 {
					t.Errorf("expected max depth 12, got %d", cfg.Decode.MaxDepth)
				}
			},
			teardown: func() { *flagMaxDepth = 0 },
		},
		{
			name:  "textures flag",
			setup: func() { *flagTextures = "/a, /b,," },
			verify: func(t *testing.T, cfg *Config) {
				if len(cfg.Textures.SearchPaths) != 2 || cfg.Textures.SearchPaths[1] != "/b" {
					t.Errorf("unexpected search paths %v", cfg.Textures.SearchPaths)
				}
			},
			teardown: func() { *flagTextures = "" },
		},
		{
			name:  "glb and log flags",
			setup: func() { *flagBinary = true; *flagLogFile = "out.log" },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Export.Binary {
					t.Error("expected binary export")
				}
				if cfg.Logging.LogFile != "out.log" {
					t.Errorf("expected log file out.log, got %s", cfg.Logging.LogFile)
				}
			},
			teardown: func() { *flagBinary = false; *flagLogFile = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "s3otool.yaml")

	yamlContent := `
decode:
  string_policy: windows-1252
  max_depth: 40
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagMaxDepth = 16
	defer func() {
		*flagConfig = ""
		*flagMaxDepth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Depth from flag, not file
	if cfg.Decode.MaxDepth != 16 {
		t.Errorf("expected max depth 16 from flag, got %d", cfg.Decode.MaxDepth)
	}
	// Policy from file since no flag override
	if cfg.Decode.StringPolicy != "windows-1252" {
		t.Errorf("expected windows-1252 from file, got %s", cfg.Decode.StringPolicy)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("export:\n  flip_uv: maybe\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected validation error, got nil")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Decode.MaxDepth = 99

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if loaded.Decode.MaxDepth != 99 {
		t.Errorf("expected max depth 99 after reload, got %d", loaded.Decode.MaxDepth)
	}
}

func TestSave(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("ConfigDir ignores XDG_CONFIG_HOME on " + runtime.GOOS)
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Export.FlipUV = "never"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, DefaultPath()); err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if loaded.Export.FlipUV != "never" {
		t.Errorf("expected flip_uv never after reload, got %s", loaded.Export.FlipUV)
	}
}
