package cli

import (
	"bytes"
	"context"
	"encoding/json"
	stdimage "image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/library"
	"github.com/jmylchreest/tincture/internal/util/hash"
)

// isolate points config, cache and library paths at a temporary directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("TINCTURE_LIBRARY_PATH", filepath.Join(dir, "library.db"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
}

func TestExtractAndLibraryCommands(t *testing.T) {
	dir := isolate(t)
	red := filepath.Join(dir, "red.png")
	writePNG(t, red, color.NRGBA{R: 255, A: 255})

	out, err := execute(t, "extract", "--colours", "3", "--method", "kmeans", "--format", "hex", "--save", "--name", "red", red)
	if err != nil {
		t.Fatalf("extract returned error: %v", err)
	}
	if want := "#FF0000\n#FF0000\n#FF0000\n"; out != want {
		t.Errorf("extract output = %q, want %q", out, want)
	}

	out, err = execute(t, "library", "list", "--json")
	if err != nil {
		t.Fatalf("library list returned error: %v", err)
	}
	var saved []library.SavedPalette
	if err := json.Unmarshal([]byte(out), &saved); err != nil {
		t.Fatalf("library list output is not JSON: %v\n%s", err, out)
	}
	if len(saved) != 1 || saved[0].Name != "red" || len(saved[0].Colors) != 3 {
		t.Fatalf("library list = %+v", saved)
	}

	data, err := os.ReadFile(red)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := saved[0].ContentHash, hash.ContentHash(data, hash.DefaultHexLen); got != want {
		t.Errorf("ContentHash = %s, want %s", got, want)
	}

	if _, err := execute(t, "library", "set", "colours", "6"); err != nil {
		t.Fatalf("library set returned error: %v", err)
	}
	out, err = execute(t, "library", "get", "colours")
	if err != nil || out != "6\n" {
		t.Errorf("library get = %q, %v; want \"6\\n\"", out, err)
	}

	if _, err := execute(t, "library", "set", "colours", "12"); err == nil {
		t.Error("library set accepted an out-of-range colour count")
	}
}

func TestExtractFallsBackOnUndecodableImage(t *testing.T) {
	dir := isolate(t)
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "extract", "--colours", "3", "--method", "kmeans", "--format", "hex", "--save=false", bad)
	if err != nil {
		t.Fatalf("extract returned error: %v", err)
	}
	want := strings.Join(colour.FallbackPalette(3), "\n") + "\n"
	if out != want {
		t.Errorf("extract output = %q, want fallback %q", out, want)
	}

	out, err = execute(t, "extract", "--colours", "3", "--method", "kmeans", "--format", "hex", "--save", bad)
	if err != nil {
		t.Fatalf("extract --save returned error: %v", err)
	}
	if out != want {
		t.Errorf("extract --save output = %q, want fallback %q", out, want)
	}

	out, err = execute(t, "library", "list", "--json")
	if err != nil {
		t.Fatalf("library list returned error: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("library list = %s, want no saved palettes after a failed extraction", out)
	}
}

func TestExtractRejectsInvalidInput(t *testing.T) {
	dir := isolate(t)
	img := filepath.Join(dir, "img.png")
	writePNG(t, img, color.NRGBA{B: 255, A: 255})

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing file", args: []string{"extract", filepath.Join(dir, "missing.png")}},
		{name: "too many colours", args: []string{"extract", "--colours", "9", img}},
		{name: "unknown method", args: []string{"extract", "--colours", "3", "--method", "median", img}},
		{name: "unknown format", args: []string{"extract", "--method", "kmeans", "--format", "xml", img}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("execute(%v) expected error", tt.args)
			}
		})
	}

	// Restore shared flag state for later tests.
	extractFormat = "hex"
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out, "tincture version") {
		t.Errorf("version output = %q", out)
	}
}

func TestFormatPalette(t *testing.T) {
	palette := colour.NewPalette([]colour.RGB{{R: 255, G: 255, B: 255}, {R: 10, G: 20, B: 30}})

	tests := []struct {
		name    string
		format  string
		preview bool
		want    string
		wantErr bool
	}{
		{name: "hex", format: "hex", want: "#FFFFFF\n#0A141E\n"},
		{name: "rgb", format: "rgb", want: "rgb(255, 255, 255)\nrgb(10, 20, 30)\n"},
		{name: "unsupported", format: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatPalette(palette, colour.MethodKMeans, tt.format, tt.preview)
			if (err != nil) != tt.wantErr {
				t.Fatalf("formatPalette() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("formatPalette() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("json", func(t *testing.T) {
		got, err := formatPalette(palette, colour.MethodHistogram, "json", false)
		if err != nil {
			t.Fatalf("formatPalette() unexpected error: %v", err)
		}
		var decoded colour.PaletteJSON
		if err := json.Unmarshal([]byte(got), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if decoded.Count != 2 || decoded.Method != colour.MethodHistogram || decoded.Colors[1].Hex != "#0A141E" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("preview", func(t *testing.T) {
		got, _ := formatPalette(palette, colour.MethodKMeans, "hex", true)
		if !strings.Contains(got, "\033[48;2;10;20;30m") || !strings.Contains(got, "#0A141E") {
			t.Errorf("preview output = %q", got)
		}
	})
}

func TestResolveSeed(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		seed     int64
		seedSet  bool
		wantMode engine.SeedMode
		wantSeed int64
		wantErr  bool
	}{
		{name: "default", mode: "", wantMode: engine.SeedModeRandom},
		{name: "content", mode: "content", wantMode: engine.SeedModeContent},
		{name: "manual", mode: "manual", seed: 42, seedSet: true, wantMode: engine.SeedModeManual, wantSeed: 42},
		{name: "filepath", mode: "FilePath", wantMode: engine.SeedModeManual, wantSeed: hash.PathSeed("img.png")},
		{name: "manual without seed", mode: "manual", wantErr: true},
		{name: "unknown", mode: "clock", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, seed, err := resolveSeed(tt.mode, tt.seed, tt.seedSet, "img.png")
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveSeed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if mode != tt.wantMode || seed != tt.wantSeed {
				t.Errorf("resolveSeed() = %s, %d; want %s, %d", mode, seed, tt.wantMode, tt.wantSeed)
			}
		})
	}
}

func TestNormaliseSetting(t *testing.T) {
	tests := []struct {
		key, value string
		want       string
		wantErr    bool
	}{
		{key: library.SettingColours, value: " 4 ", want: "4"},
		{key: library.SettingColours, value: "2", wantErr: true},
		{key: library.SettingColours, value: "many", wantErr: true},
		{key: library.SettingMethod, value: "Histogram", want: "histogram"},
		{key: library.SettingMethod, value: "median", wantErr: true},
		{key: "theme", value: "dark", wantErr: true},
	}

	for _, tt := range tests {
		_, got, err := normaliseSetting(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("normaliseSetting(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("normaliseSetting(%q, %q) = %q, want %q", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestFormatHistogram(t *testing.T) {
	h := &colour.LuminosityHistogram{Average: 64, Contrast: 93, DarkPercent: 75, BrightPercent: 25, MaxValue: 255}
	h.Bins[0] = 100
	h.Bins[5] = 1
	h.Bins[31] = 50

	lines := strings.Split(formatHistogram(h, 10), "\n")
	tests := []struct {
		line int
		want string
	}{
		{0, "  0-  7 │██████████ 100"},
		{1, "  8- 15 │ 0"},
		{5, " 40- 47 │▏ 1"},
		{31, "248-255 │█████ 50"},
		{33, "Average:   64"},
		{34, "Range:     0-255"},
		{35, "Contrast:  93%"},
		{36, "Dark:      75%"},
	}
	for _, tt := range tests {
		if lines[tt.line] != tt.want {
			t.Errorf("line %d = %q, want %q", tt.line, lines[tt.line], tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name           string
		level          string
		verbose, quiet bool
		debug, warn    bool
	}{
		{name: "configured info", level: "info", debug: false, warn: true},
		{name: "unknown level", level: "loud", debug: false, warn: true},
		{name: "verbose", level: "error", verbose: true, debug: true, warn: true},
		{name: "quiet", level: "debug", quiet: true, debug: false, warn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLogger(tt.level, tt.verbose, tt.quiet)
			if l.IsDebug() != tt.debug || l.IsWarn() != tt.warn {
				t.Errorf("IsDebug() = %v, IsWarn() = %v; want %v, %v", l.IsDebug(), l.IsWarn(), tt.debug, tt.warn)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	for _, s := range []string{"0", "-1", "abc", ""} {
		if _, err := parseID(s); err == nil {
			t.Errorf("parseID(%q) expected error", s)
		}
	}
	if id, err := parseID("42"); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
}
