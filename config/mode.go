package config

import (
	"os"
	"strings"
)

// ModeEnvKey selects which environment-specific files are layered on top of
// the base config file.
const ModeEnvKey = "GO_ENV_MODE"

type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode reads ModeEnvKey on every call so tests can switch modes with t.Setenv.
func CurrentMode() Mode {
	return ParseMode(os.Getenv(ModeEnvKey))
}

// modeSuffixes lists the file name suffixes layered for mode, in load order.
func modeSuffixes(mode Mode) []string {
	switch mode {
	case ProMode:
		return []string{"production", "pro", "prod"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"development", "dev"}
	}
}
