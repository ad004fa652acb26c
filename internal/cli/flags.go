package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/jmylchreest/tincture/internal/colour"
)

// Command-line flags take precedence over the loaded configuration, but only
// when they were actually given.

func intOverride(flags *pflag.FlagSet, name string, value, configured int) int {
	if flags.Changed(name) {
		return value
	}
	return configured
}

func stringOverride(flags *pflag.FlagSet, name string, value, configured string) string {
	if flags.Changed(name) {
		return value
	}
	return configured
}

func boolOverride(flags *pflag.FlagSet, name string, value, configured bool) bool {
	if flags.Changed(name) {
		return value
	}
	return configured
}

// resolveColourCount applies the configured default and rejects counts the
// extractors cannot honour.
func resolveColourCount(flags *pflag.FlagSet, value int) (int, error) {
	n := intOverride(flags, "colours", value, cfg.Colours)
	if n < colour.MinColours || n > colour.MaxColours {
		return 0, fmt.Errorf("colours must be between %d and %d, got %d", colour.MinColours, colour.MaxColours, n)
	}
	return n, nil
}

// resolveMethod applies the configured default and parses the method name.
func resolveMethod(flags *pflag.FlagSet, value string) (colour.Method, error) {
	return colour.ParseMethod(stringOverride(flags, "method", value, cfg.Method))
}
