// Package config loads tincture settings from defaults, a YAML file, a .env
// file and TINCTURE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/image"
)

// AppSlug names the per-user config and cache directories.
const AppSlug = "tincture"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TINCTURE_"

// Config holds user settings.
type Config struct {
	Colours         int    `yaml:"colours"`
	Method          string `yaml:"method"`
	SeedMode        string `yaml:"seed_mode"`
	MaxDimension    int    `yaml:"max_dimension"`
	ExtractStride   int    `yaml:"extract_stride"`
	HistogramStride int    `yaml:"histogram_stride"`
	AlphaThreshold  int    `yaml:"alpha_threshold"`
	MaxIterations   int    `yaml:"max_iterations"`
	LibraryPath     string `yaml:"library_path"`
	CacheDir        string `yaml:"cache_dir"`
	CacheImages     bool   `yaml:"cache_images"`
	AllowInsecure   bool   `yaml:"allow_insecure"`
	LogLevel        string `yaml:"log_level"`
}

// Default returns the built-in settings. Paths are left empty and filled by ResolvePaths.
func Default() *Config {
	return &Config{
		Colours:         5,
		Method:          string(colour.MethodKMeans),
		SeedMode:        string(engine.SeedModeRandom),
		MaxDimension:    image.DefaultMaxDimension,
		ExtractStride:   image.DefaultExtractStride,
		HistogramStride: image.DefaultHistogramStride,
		AlphaThreshold:  image.DefaultAlphaThreshold,
		MaxIterations:   colour.DefaultMaxIterations,
		LogLevel:        "warn",
	}
}

// LoadOptions locates the optional config sources.
type LoadOptions struct {
	// ConfigFile is an explicit YAML path. It must exist when set.
	// When empty, Paths.ConfigFile is read if present.
	ConfigFile string

	// EnvFile is a dotenv file. Missing files are ignored. Empty means ".env".
	EnvFile string

	// Paths supplies default locations. Zero value skips the default config file.
	Paths Paths
}

// Load builds the effective configuration.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path := opts.ConfigFile
	required := path != ""
	if !required {
		path = opts.Paths.ConfigFile
	}
	if path != "" {
		if err := cfg.mergeFile(expandPath(path), required); err != nil {
			return nil, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if cfg.LibraryPath == "" {
		cfg.LibraryPath = opts.Paths.LibraryPath
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = opts.Paths.CacheDir
	}
	cfg.LibraryPath = expandPath(cfg.LibraryPath)
	cfg.CacheDir = expandPath(cfg.CacheDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path) // #nosec G304 - User-specified config file, intended to be read
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays TINCTURE_* variables using lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"COLOURS", &c.Colours},
		{"MAX_DIMENSION", &c.MaxDimension},
		{"EXTRACT_STRIDE", &c.ExtractStride},
		{"HISTOGRAM_STRIDE", &c.HistogramStride},
		{"ALPHA_THRESHOLD", &c.AlphaThreshold},
		{"MAX_ITERATIONS", &c.MaxIterations},
	}
	for _, v := range ints {
		raw, ok := lookup(EnvPrefix + v.key)
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, v.key, err)
		}
		*v.dst = n
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"METHOD", &c.Method},
		{"SEED_MODE", &c.SeedMode},
		{"LIBRARY_PATH", &c.LibraryPath},
		{"CACHE_DIR", &c.CacheDir},
		{"LOG_LEVEL", &c.LogLevel},
	}
	for _, v := range strs {
		if raw, ok := lookup(EnvPrefix + v.key); ok && raw != "" {
			*v.dst = raw
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"CACHE_IMAGES", &c.CacheImages},
		{"ALLOW_INSECURE", &c.AllowInsecure},
	}
	for _, v := range bools {
		raw, ok := lookup(EnvPrefix + v.key)
		if !ok || raw == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, v.key, err)
		}
		*v.dst = b
	}

	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Colours < colour.MinColours || c.Colours > colour.MaxColours {
		errs = append(errs, fmt.Errorf("colours must be between %d and %d, got %d",
			colour.MinColours, colour.MaxColours, c.Colours))
	}
	if _, err := colour.ParseMethod(c.Method); err != nil {
		errs = append(errs, err)
	}
	if _, err := engine.ParseSeedMode(c.SeedMode); err != nil {
		errs = append(errs, err)
	}
	if c.MaxDimension < 1 {
		errs = append(errs, fmt.Errorf("max_dimension must be positive, got %d", c.MaxDimension))
	}
	if c.ExtractStride < 1 || c.HistogramStride < 1 {
		errs = append(errs, fmt.Errorf("strides must be positive, got extract=%d histogram=%d",
			c.ExtractStride, c.HistogramStride))
	}
	if c.AlphaThreshold < 1 || c.AlphaThreshold > 255 {
		errs = append(errs, fmt.Errorf("alpha_threshold must be between 1 and 255, got %d", c.AlphaThreshold))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations))
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "off":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// Decoder returns an image decoder configured from c.
func (c *Config) Decoder() *image.Decoder {
	return &image.Decoder{
		MaxDimension:   c.MaxDimension,
		AlphaThreshold: uint8(c.AlphaThreshold), // #nosec G115 - validated to 1..255
	}
}

// Paths holds per-user file locations.
type Paths struct {
	ConfigDir   string
	ConfigFile  string
	LibraryPath string
	CacheDir    string
}

// ResolvePaths derives default locations under the user config and cache directories.
// Directories are created as needed.
func ResolvePaths(appSlug string) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}
	baseDir := filepath.Join(configDir, appSlug)

	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = filepath.Join(baseDir, "cache")
	}
	cacheDir := filepath.Join(cacheRoot, appSlug, "images")

	for _, dir := range []string{baseDir, cacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil { // #nosec G301 - user directories
			return Paths{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return Paths{
		ConfigDir:   baseDir,
		ConfigFile:  filepath.Join(baseDir, "config.yaml"),
		LibraryPath: filepath.Join(baseDir, "library.db"),
		CacheDir:    cacheDir,
	}, nil
}

func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}
