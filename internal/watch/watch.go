// Package watch extracts palettes from images as they appear in a directory
// and records them in the palette library.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/image"
	"github.com/jmylchreest/tincture/internal/library"
	"github.com/jmylchreest/tincture/internal/util/hash"
)

// DefaultDebounce is how long a file must be quiet before it is processed.
const DefaultDebounce = 250 * time.Millisecond

// Extractor produces a palette from encoded image bytes.
type Extractor interface {
	Extract(data []byte, colorCount int, method colour.Method) (*colour.Palette, error)
}

// Library is the subset of library.Store the watcher needs.
type Library interface {
	SavePalette(ctx context.Context, p library.SavedPalette) (int64, error)
	FindByContent(ctx context.Context, contentHash string, method colour.Method) (library.SavedPalette, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Subscribe(key string) (<-chan library.Change, func())
}

// Result describes one processed file.
type Result struct {
	Path        string
	ContentHash string
	ID          int64
	Colors      []string
	Skipped     bool
}

// Options configures a Watcher.
type Options struct {
	Extractor Extractor
	Library   Library
	Loader    image.Loader

	// Colours and Method pin the extraction settings. When zero, the library
	// settings are used and followed for changes, then the defaults.
	Colours int
	Method  colour.Method

	// Initial processes images already in the directory before watching.
	Initial bool

	Debounce time.Duration
	Logger   hclog.Logger

	// OnResult is called after each processed file.
	OnResult func(Result)
}

// Watcher watches a directory for new or changed images.
type Watcher struct {
	opts Options

	mu      sync.Mutex
	colours int
	method  colour.Method
	seen    map[string]struct{}
}

// New creates a Watcher.
func New(opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if opts.Loader == nil {
		opts.Loader = image.NewFileLoader()
	}
	return &Watcher{
		opts:    opts,
		colours: 5,
		method:  colour.MethodKMeans,
		seen:    make(map[string]struct{}),
	}
}

// Run watches dir until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to access watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	stopSettings := w.loadSettings(ctx)
	defer stopSettings()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.opts.Logger.Info("watching directory", "path", dir)

	if w.opts.Initial {
		files, err := image.ScanDirectoryForImages(dir)
		if err != nil {
			w.opts.Logger.Debug("no existing images", "error", err)
		}
		for _, f := range files {
			w.handle(ctx, f)
		}
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(w.opts.Debounce/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !image.IsImageFile(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Error("watch error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.opts.Debounce {
					continue
				}
				delete(pending, path)
				w.handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	res, err := w.ProcessFile(ctx, path)
	if err != nil {
		w.opts.Logger.Warn("failed to process image", "path", path, "error", err)
		return
	}
	if res.Skipped {
		w.opts.Logger.Debug("skipping duplicate image", "path", path, "hash", res.ContentHash)
	} else {
		w.opts.Logger.Info("saved palette", "path", path, "id", res.ID, "colours", res.Colors)
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res)
	}
}

// ProcessFile extracts and saves the palette for one image. Content that was
// already processed, in this run or an earlier one, is reported as skipped.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := w.opts.Loader.Load(ctx, path)
	if err != nil {
		return Result{}, err
	}

	colours, method := w.settings()
	contentHash := hash.ContentHash(data, hash.DefaultHexLen)
	res := Result{Path: path, ContentHash: contentHash}

	key := contentHash + "|" + string(method) + "|" + strconv.Itoa(colours)
	w.mu.Lock()
	_, dup := w.seen[key]
	w.mu.Unlock()
	if dup {
		res.Skipped = true
		return res, nil
	}

	if w.opts.Library != nil {
		existing, err := w.opts.Library.FindByContent(ctx, contentHash, method)
		switch {
		case err == nil && len(existing.Colors) == colours:
			w.markSeen(key)
			res.Skipped = true
			res.ID = existing.ID
			res.Colors = existing.Colors
			return res, nil
		case err != nil && !errors.Is(err, library.ErrPaletteNotFound):
			return Result{}, err
		}
	}

	palette, err := w.opts.Extractor.Extract(data, colours, method)
	if err != nil {
		return Result{}, err
	}
	res.Colors = palette.ToHex()

	if w.opts.Library != nil {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		id, err := w.opts.Library.SavePalette(ctx, library.SavedPalette{
			Name:        filepath.Base(path),
			Source:      abs,
			ContentHash: contentHash,
			Method:      method,
			Colors:      res.Colors,
		})
		if err != nil {
			return Result{}, err
		}
		res.ID = id
	}

	w.markSeen(key)
	return res, nil
}

func (w *Watcher) markSeen(key string) {
	w.mu.Lock()
	w.seen[key] = struct{}{}
	w.mu.Unlock()
}

func (w *Watcher) settings() (int, colour.Method) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.colours, w.method
}

// loadSettings applies pinned options or stored preferences and, for the
// unpinned ones, follows library changes until the returned stop is called.
func (w *Watcher) loadSettings(ctx context.Context) func() {
	var stops []func()
	stop := func() {
		for _, s := range stops {
			s()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.opts.Colours > 0 {
		w.colours = colour.ClampCount(w.opts.Colours)
	}
	if w.opts.Method != "" {
		w.method = w.opts.Method
	}
	if w.opts.Library == nil {
		return stop
	}

	if w.opts.Colours <= 0 {
		if v, ok, err := w.opts.Library.Get(ctx, library.SettingColours); err == nil && ok {
			w.applyColours(v)
		}
		ch, cancel := w.opts.Library.Subscribe(library.SettingColours)
		stops = append(stops, cancel)
		go w.follow(ch, w.applyColoursLocked)
	}
	if w.opts.Method == "" {
		if v, ok, err := w.opts.Library.Get(ctx, library.SettingMethod); err == nil && ok {
			w.applyMethod(v)
		}
		ch, cancel := w.opts.Library.Subscribe(library.SettingMethod)
		stops = append(stops, cancel)
		go w.follow(ch, w.applyMethodLocked)
	}

	return stop
}

func (w *Watcher) follow(ch <-chan library.Change, apply func(string)) {
	for c := range ch {
		apply(c.Value)
	}
}

func (w *Watcher) applyColours(v string) {
	n, err := strconv.Atoi(v)
	if err != nil {
		w.opts.Logger.Warn("ignoring invalid colours setting", "value", v)
		return
	}
	w.colours = colour.ClampCount(n)
}

func (w *Watcher) applyMethod(v string) {
	m, err := colour.ParseMethod(v)
	if err != nil {
		w.opts.Logger.Warn("ignoring invalid method setting", "value", v)
		return
	}
	w.method = m
}

func (w *Watcher) applyColoursLocked(v string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyColours(v)
}

func (w *Watcher) applyMethodLocked(v string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyMethod(v)
}
