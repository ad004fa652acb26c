package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/image"
	"github.com/jmylchreest/tincture/internal/security"
)

const (
	// barLabelWidth is the space taken by the range label and value around each bar.
	barLabelWidth = 18

	defaultBarWidth = 50
	maxBarWidth     = 100
)

var (
	// Analyze command flags
	analyzeFormat        string
	analyzeWidth         int
	analyzeCache         bool
	analyzeAllowInsecure bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <image|directory|url>",
	Short: "Show the luminosity histogram of an image",
	Long: `Show how brightness is distributed across an image.

Luminance is split into 32 bins normalised so the tallest bin is 100, along
with the average, the min-max contrast and the share of dark, mid and bright
pixels.

Examples:
  # Print bars sized to the terminal
  tincture analyze wallpaper.jpg

  # Print the report as JSON
  tincture analyze --format json wallpaper.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "output format (text, json)")
	analyzeCmd.Flags().IntVarP(&analyzeWidth, "width", "w", 0, "maximum bar width (default: fit the terminal)")
	analyzeCmd.Flags().BoolVar(&analyzeCache, "cache", false, "cache downloaded images on disk")
	analyzeCmd.Flags().BoolVar(&analyzeAllowInsecure, "allow-insecure", false, "allow plain HTTP downloads")
}

// runAnalyze executes the analyze command.
func runAnalyze(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	imagePath, err := image.ResolveImagePath(args[0])
	if err != nil {
		return fmt.Errorf("invalid image path: %w", err)
	}

	loader := image.NewSmartLoader(image.SmartLoaderOptions{
		URL: security.URLOptions{
			AllowInsecure: boolOverride(flags, "allow-insecure", analyzeAllowInsecure, cfg.AllowInsecure),
		},
		Cache:    boolOverride(flags, "cache", analyzeCache, cfg.CacheImages),
		CacheDir: cfg.CacheDir,
	})
	data, err := loader.Load(cmd.Context(), imagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	h := newEngine(engine.SeedModeRandom, 0).AnalyzeLuminosity(data)
	if h == nil {
		return fmt.Errorf("no opaque pixels could be read from %s", imagePath)
	}

	switch analyzeFormat {
	case "json":
		out, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to convert to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	case "text":
		width := analyzeWidth
		if width <= 0 {
			width = terminalBarWidth()
		}
		fmt.Fprint(cmd.OutOrStdout(), formatHistogram(h, width))
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", analyzeFormat)
	}
	return nil
}

// terminalBarWidth fits the bars to stdout, or returns a default off-terminal.
func terminalBarWidth() int {
	fd := int(os.Stdout.Fd()) // #nosec G115 - file descriptors fit in int
	if !term.IsTerminal(fd) {
		return defaultBarWidth
	}
	cols, _, err := term.GetSize(fd)
	if err != nil || cols <= barLabelWidth {
		return defaultBarWidth
	}
	return min(cols-barLabelWidth, maxBarWidth)
}

// formatHistogram renders one bar per bin followed by the summary statistics.
// A bin of 100 fills width characters.
func formatHistogram(h *colour.LuminosityHistogram, width int) string {
	width = max(width, 1)
	binWidth := 256 / colour.LuminosityBins

	var sb strings.Builder
	for i, v := range h.Bins {
		lo := i * binWidth
		bar := strings.Repeat("█", v*width/100)
		if bar == "" && v > 0 {
			bar = "▏"
		}
		fmt.Fprintf(&sb, "%3d-%3d │%s %d\n", lo, lo+binWidth-1, bar, v)
	}

	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "Average:   %d\n", h.Average)
	fmt.Fprintf(&sb, "Range:     %d-%d\n", h.MinValue, h.MaxValue)
	fmt.Fprintf(&sb, "Contrast:  %d%%\n", h.Contrast)
	fmt.Fprintf(&sb, "Dark:      %d%%\n", h.DarkPercent)
	fmt.Fprintf(&sb, "Mid:       %d%%\n", h.MidPercent)
	fmt.Fprintf(&sb, "Bright:    %d%%\n", h.BrightPercent)
	return sb.String()
}
