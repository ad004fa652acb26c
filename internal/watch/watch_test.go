package watch

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/library"
)

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

// writeAtomic writes via a non-image temp name so watchers see one complete file.
func writeAtomic(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("failed to rename %s: %v", tmp, err)
	}
}

func newStore(t *testing.T) *library.Store {
	t.Helper()
	s, err := library.Open(context.Background(), filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("library.Open() unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newEngine() *engine.Engine {
	return engine.New(engine.Options{SeedMode: engine.SeedModeManual, Seed: 1})
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	store := newStore(t)
	w := New(Options{Extractor: newEngine(), Library: store, Colours: 3, Method: colour.MethodKMeans})
	_ = w.loadSettings(context.Background())

	red := filepath.Join(dir, "red.png")
	writeAtomic(t, red, pngBytes(t, color.NRGBA{R: 255, A: 255}))

	res, err := w.ProcessFile(context.Background(), red)
	if err != nil {
		t.Fatalf("ProcessFile() unexpected error: %v", err)
	}
	if res.Skipped || res.ID == 0 {
		t.Fatalf("ProcessFile() = %+v, want a saved palette", res)
	}
	if len(res.Colors) != 3 || res.Colors[0] != "#FF0000" {
		t.Errorf("Colors = %v, want three reds", res.Colors)
	}

	saved, err := store.GetPalette(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("GetPalette() unexpected error: %v", err)
	}
	if saved.Name != "red.png" || saved.ContentHash != res.ContentHash {
		t.Errorf("saved palette = %+v", saved)
	}

	// Same bytes under another name are a duplicate.
	copyPath := filepath.Join(dir, "copy.png")
	writeAtomic(t, copyPath, pngBytes(t, color.NRGBA{R: 255, A: 255}))
	res, err = w.ProcessFile(context.Background(), copyPath)
	if err != nil {
		t.Fatalf("ProcessFile() unexpected error: %v", err)
	}
	if !res.Skipped {
		t.Errorf("ProcessFile(copy) = %+v, want skipped", res)
	}
}

func TestProcessFileSkipsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	store := newStore(t)
	path := filepath.Join(dir, "blue.png")
	writeAtomic(t, path, pngBytes(t, color.NRGBA{B: 255, A: 255}))

	first := New(Options{Extractor: newEngine(), Library: store, Colours: 4, Method: colour.MethodHistogram})
	_ = first.loadSettings(context.Background())
	if _, err := first.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile() unexpected error: %v", err)
	}

	second := New(Options{Extractor: newEngine(), Library: store, Colours: 4, Method: colour.MethodHistogram})
	_ = second.loadSettings(context.Background())
	res, err := second.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile() unexpected error: %v", err)
	}
	if !res.Skipped || len(res.Colors) != 4 {
		t.Errorf("ProcessFile() = %+v, want skipped with stored colours", res)
	}
}

func TestProcessFileErrors(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{Extractor: newEngine(), Colours: 3, Method: colour.MethodKMeans})

	bad := filepath.Join(dir, "bad.png")
	writeAtomic(t, bad, []byte("not a png"))

	tests := []struct {
		name string
		path string
	}{
		{name: "missing", path: filepath.Join(dir, "missing.png")},
		{name: "directory", path: dir},
		{name: "undecodable", path: bad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.ProcessFile(context.Background(), tt.path); err == nil {
				t.Error("ProcessFile() expected error")
			}
		})
	}
}

func TestSettingsFollowLibrary(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, library.SettingColours, "6"); err != nil {
		t.Fatal(err)
	}

	w := New(Options{Extractor: newEngine(), Library: store})
	stop := w.loadSettings(ctx)
	defer stop()

	if c, m := w.settings(); c != 6 || m != colour.MethodKMeans {
		t.Errorf("settings() = %d, %s; want 6, kmeans", c, m)
	}

	if err := store.Set(ctx, library.SettingMethod, "histogram"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		if _, m := w.settings(); m == colour.MethodHistogram {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("method change was not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Pinned options ignore stored preferences.
	pinned := New(Options{Extractor: newEngine(), Library: store, Colours: 3, Method: colour.MethodKMeans})
	defer pinned.loadSettings(ctx)()
	if c, m := pinned.settings(); c != 3 || m != colour.MethodKMeans {
		t.Errorf("pinned settings() = %d, %s; want 3, kmeans", c, m)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	store := newStore(t)

	existing := filepath.Join(dir, "existing.png")
	writeAtomic(t, existing, pngBytes(t, color.NRGBA{G: 255, A: 255}))

	results := make(chan Result, 10)
	w := New(Options{
		Extractor: newEngine(),
		Library:   store,
		Colours:   3,
		Method:    colour.MethodKMeans,
		Initial:   true,
		Debounce:  20 * time.Millisecond,
		OnResult:  func(r Result) { results <- r },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, dir) }()

	wait := func() Result {
		t.Helper()
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for result")
		}
		return Result{}
	}

	if r := wait(); r.Path != existing || r.Skipped {
		t.Errorf("initial result = %+v", r)
	}

	added := filepath.Join(dir, "added.png")
	writeAtomic(t, added, pngBytes(t, color.NRGBA{R: 255, G: 255, A: 255}))
	if r := wait(); r.Path != added || r.Colors[0] != "#FFFF00" {
		t.Errorf("added result = %+v", r)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() returned %v", err)
	}

	list, err := store.ListPalettes(context.Background(), library.ListOptions{})
	if err != nil || len(list) != 2 {
		t.Errorf("library has %d palettes (%v), want 2", len(list), err)
	}
}

func TestRunRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "x.png")
	writeAtomic(t, file, []byte("x"))

	w := New(Options{Extractor: newEngine()})
	if err := w.Run(context.Background(), file); err == nil {
		t.Error("Run() expected error for a file path")
	}
	if err := w.Run(context.Background(), filepath.Join(file, "missing")); err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want access error", err)
	}
}
