package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		ConfigFile:  filepath.Join(dir, "missing.yaml"),
		LibraryPath: filepath.Join(dir, "library.db"),
		CacheDir:    filepath.Join(dir, "cache"),
	}

	cfg, err := Load(LoadOptions{Paths: paths, EnvFile: filepath.Join(dir, "none.env")})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Colours != 5 || cfg.Method != "kmeans" || cfg.SeedMode != "random" {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if cfg.MaxDimension != 150 || cfg.ExtractStride != 4 || cfg.HistogramStride != 2 || cfg.AlphaThreshold != 128 {
		t.Errorf("decoder defaults = %+v", cfg)
	}
	if cfg.LibraryPath != paths.LibraryPath || cfg.CacheDir != paths.CacheDir {
		t.Errorf("paths = %q, %q; want defaults from Paths", cfg.LibraryPath, cfg.CacheDir)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "config.yaml", `
colours: 6
method: histogram
max_dimension: 200
library_path: /tmp/from-file.db
`)
	envFile := writeFile(t, dir, "test.env", "TINCTURE_MAX_ITERATIONS=42\nTINCTURE_MAX_DIMENSION=999\n")
	t.Cleanup(func() { os.Unsetenv("TINCTURE_MAX_ITERATIONS") })

	// Process environment beats both the dotenv file and the YAML file.
	t.Setenv("TINCTURE_MAX_DIMENSION", "120")
	t.Setenv("TINCTURE_COLOURS", "7")

	cfg, err := Load(LoadOptions{ConfigFile: file, EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "env over file", got: cfg.Colours, want: 7},
		{name: "file over default", got: cfg.Method, want: "histogram"},
		{name: "process env over dotenv", got: cfg.MaxDimension, want: 120},
		{name: "dotenv over default", got: cfg.MaxIterations, want: 42},
		{name: "file path", got: cfg.LibraryPath, want: "/tmp/from-file.db"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	noEnv := filepath.Join(dir, "none.env")

	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "missing explicit file", file: filepath.Join(dir, "nope.yaml"), wantErr: "failed to read config file"},
		{name: "bad yaml", file: writeFile(t, dir, "bad.yaml", "colours: [1, 2"), wantErr: "failed to parse YAML"},
		{name: "bad env int", env: map[string]string{"TINCTURE_COLOURS": "many"}, wantErr: "TINCTURE_COLOURS"},
		{name: "bad env bool", env: map[string]string{"TINCTURE_CACHE_IMAGES": "maybe"}, wantErr: "TINCTURE_CACHE_IMAGES"},
		{name: "out of range", env: map[string]string{"TINCTURE_COLOURS": "12"}, wantErr: "colours must be between"},
		{name: "unknown method", env: map[string]string{"TINCTURE_METHOD": "octree"}, wantErr: "unknown method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(LoadOptions{ConfigFile: tt.file, EnvFile: noEnv})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "colours low", mutate: func(c *Config) { c.Colours = 2 }, wantErr: true},
		{name: "colours high", mutate: func(c *Config) { c.Colours = 9 }, wantErr: true},
		{name: "seed mode", mutate: func(c *Config) { c.SeedMode = "dice" }, wantErr: true},
		{name: "stride", mutate: func(c *Config) { c.ExtractStride = 0 }, wantErr: true},
		{name: "alpha", mutate: func(c *Config) { c.AlphaThreshold = 300 }, wantErr: true},
		{name: "iterations", mutate: func(c *Config) { c.MaxIterations = 0 }, wantErr: true},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "log level case", mutate: func(c *Config) { c.LogLevel = "DEBUG" }},
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

func TestDecoder(t *testing.T) {
	cfg := Default()
	cfg.MaxDimension = 64
	cfg.AlphaThreshold = 200

	d := cfg.Decoder()
	if d.MaxDimension != 64 || d.AlphaThreshold != 200 {
		t.Errorf("Decoder() = %+v", d)
	}
}

func TestResolvePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))

	paths, err := ResolvePaths("tincture-test")
	if err != nil {
		t.Fatalf("ResolvePaths() unexpected error: %v", err)
	}

	if !strings.HasPrefix(paths.LibraryPath, home) || filepath.Base(paths.LibraryPath) != "library.db" {
		t.Errorf("LibraryPath = %q", paths.LibraryPath)
	}
	if filepath.Base(paths.ConfigFile) != "config.yaml" {
		t.Errorf("ConfigFile = %q", paths.ConfigFile)
	}
	for _, dir := range []string{paths.ConfigDir, paths.CacheDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("directory %q not created: %v", dir, err)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TINCTURE_TEST_DIR", "/data")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~/lib.db", filepath.Join(home, "lib.db")},
		{"$TINCTURE_TEST_DIR/lib.db", "/data/lib.db"},
		{"/abs/lib.db", "/abs/lib.db"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
