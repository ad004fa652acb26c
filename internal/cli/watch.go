package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/watch"
)

var (
	// Watch command flags
	watchColours  int
	watchMethod   string
	watchSeedMode string
	watchInitial  bool
	watchDebounce time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Extract palettes for images added to a directory",
	Long: `Watch a directory and save a palette to the library for every image
that is created or modified in it.

Images whose content is already in the library are skipped. Without
--colours or --method the watcher uses the library preferences and follows
changes made with 'tincture library set' while it runs.

Examples:
  # Watch the wallpaper directory, processing what is already there first
  tincture watch --initial ~/Pictures/wallpapers

  # Always extract 8 colours with the hue histogram
  tincture watch -c 8 -m histogram ~/Pictures/wallpapers`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().IntVarP(&watchColours, "colours", "c", 0, "number of colours to extract (3-8, default: library preference)")
	watchCmd.Flags().StringVarP(&watchMethod, "method", "m", "", "extraction method (kmeans, histogram, default: library preference)")
	watchCmd.Flags().StringVar(&watchSeedMode, "seed-mode", string(engine.SeedModeContent), "k-means seed mode (random, content)")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "process images already in the directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "wait for files to stop changing before processing")
}

// runWatch executes the watch command.
func runWatch(cmd *cobra.Command, args []string) error {
	opts := watch.Options{
		Initial:  watchInitial,
		Debounce: watchDebounce,
		Logger:   logger.Named("watch"),
	}

	if cmd.Flags().Changed("colours") {
		if watchColours < colour.MinColours || watchColours > colour.MaxColours {
			return fmt.Errorf("colours must be between %d and %d, got %d", colour.MinColours, colour.MaxColours, watchColours)
		}
		opts.Colours = watchColours
	}
	if cmd.Flags().Changed("method") {
		m, err := colour.ParseMethod(watchMethod)
		if err != nil {
			return err
		}
		opts.Method = m
	}

	mode, err := engine.ParseSeedMode(watchSeedMode)
	if err != nil {
		return err
	}
	if mode == engine.SeedModeManual {
		return fmt.Errorf("seed mode %q is not supported by watch", mode)
	}
	opts.Extractor = newEngine(mode, 0)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	opts.Library = store

	out := cmd.OutOrStdout()
	quiet := isQuiet(cmd)
	opts.OnResult = func(r watch.Result) {
		if quiet || r.Skipped {
			return
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", r.ID, r.Path, strings.Join(r.Colors, " "))
	}

	return watch.New(opts).Run(ctx, args[0])
}
