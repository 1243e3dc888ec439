package config

import (
	"flag"
	"strings"
)

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile  = flag.String("log", "", "Write logs to this file")
	flagStrings  = flag.String("strings", "", "String policy: ascii or windows-1252")
	flagMaxDepth = flag.Int("max-depth", 0, "Maximum piece tree depth")
	flagTextures = flag.String("textures", "", "Comma-separated extra texture directories")
	flagBinary   = flag.Bool("glb", false, "Export binary glTF (.glb)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag arguments left after ParseFlags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagStrings != "" {
		cfg.Decode.StringPolicy = *flagStrings
	}
	if *flagMaxDepth > 0 {
		cfg.Decode.MaxDepth = *flagMaxDepth
	}
	if *flagTextures != "" {
		for _, dir := range strings.Split(*flagTextures, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				cfg.Textures.SearchPaths = append(cfg.Textures.SearchPaths, dir)
			}
		}
	}
	if *flagBinary {
		cfg.Export.Binary = true
	}
}
